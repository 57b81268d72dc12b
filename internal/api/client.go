// Package api is the HTTP client for the progress, bookmark and notes
// endpoints. It satisfies the backend interfaces of the playback core.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
)

const maxErrorBodyBytes = 1024

type Config struct {
	BaseURL string
	// Token is sent as a bearer token on every request.
	Token     string
	Timeout   time.Duration
	UserAgent string
	// RetryDelays are the waits between attempts of idempotent requests.
	RetryDelays []time.Duration
}

func DefaultConfig() Config {
	return Config{
		BaseURL:     "http://localhost:8080",
		Timeout:     10 * time.Second,
		UserAgent:   "coursetrack/1.0",
		RetryDelays: []time.Duration{500 * time.Millisecond, 2 * time.Second},
	}
}

// Error is a non-2xx response.
type Error struct {
	StatusCode int
	Message    string
	RequestID  string
}

func (e *Error) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("api: status %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("api: status %d", e.StatusCode)
}

// Temporary reports whether retrying the request may succeed.
func (e *Error) Temporary() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// IsNotFound reports whether err is a 404 from the API.
func IsNotFound(err error) bool {
	var apiErr *Error
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}

type Client struct {
	base        string
	token       string
	userAgent   string
	http        *http.Client
	retryDelays []time.Duration
}

func New(cfg Config) *Client {
	def := DefaultConfig()
	if cfg.BaseURL == "" {
		cfg.BaseURL = def.BaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = def.UserAgent
	}
	return &Client{
		base:        strings.TrimRight(cfg.BaseURL, "/"),
		token:       cfg.Token,
		userAgent:   cfg.UserAgent,
		http:        &http.Client{Timeout: cfg.Timeout},
		retryDelays: cfg.RetryDelays,
	}
}

type request struct {
	method     string
	path       string
	query      url.Values
	body       any
	out        any
	idempotent bool
}

func (c *Client) do(ctx context.Context, r request) error {
	var payload []byte
	if r.body != nil {
		b, err := json.Marshal(r.body)
		if err != nil {
			return fmt.Errorf("marshal %s %s: %w", r.method, r.path, err)
		}
		payload = b
	}

	attempts := 1
	if r.idempotent {
		attempts += len(c.retryDelays)
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		lastErr = c.send(ctx, r, payload)
		if lastErr == nil || !retryable(lastErr) || attempt == attempts {
			return lastErr
		}
		select {
		case <-time.After(c.retryDelays[attempt-1]):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return lastErr
}

func (c *Client) send(ctx context.Context, r request, payload []byte) error {
	target := c.base + r.path
	if len(r.query) > 0 {
		target += "?" + r.query.Encode()
	}

	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, r.method, target, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	requestID := uuid.NewString()
	req.Header.Set("X-Request-ID", requestID)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", r.method, r.path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
		apiErr := &Error{StatusCode: resp.StatusCode, RequestID: requestID}
		var decoded struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(raw, &decoded) == nil {
			apiErr.Message = decoded.Error
		}
		return apiErr
	}

	if r.out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(r.out); err != nil {
		return fmt.Errorf("decode %s %s: %w", r.method, r.path, err)
	}
	return nil
}

func retryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Temporary()
	}
	return true
}

func segment(s string) string { return url.PathEscape(s) }
