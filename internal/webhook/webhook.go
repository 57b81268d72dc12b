// Package webhook posts progress milestones to an operator-configured
// endpoint. Payloads are signed with HMAC-SHA256 and every attempt is
// recorded in webhook_deliveries.
package webhook

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/coursetrack/coursetrack/internal/database"
	"github.com/coursetrack/coursetrack/internal/metrics"
)

const (
	EventVideoCompleted   = "video.completed"
	EventChapterCompleted = "chapter.completed"

	SignatureHeader = "X-Webhook-Signature"
	EventHeader     = "X-Webhook-Event"
	DeliveryHeader  = "X-Webhook-Delivery"

	maxResponseBodyBytes = 1024
	userAgent            = "coursetrack-webhooks/1.0"
)

type Event struct {
	Name      string         `json:"event"`
	Timestamp time.Time      `json:"timestamp"`
	Data      map[string]any `json:"data"`
}

func VideoCompleted(videoID string, at time.Time) Event {
	return Event{Name: EventVideoCompleted, Timestamp: at.UTC(), Data: map[string]any{"videoId": videoID}}
}

func ChapterCompleted(chapterID string, at time.Time) Event {
	return Event{Name: EventChapterCompleted, Timestamp: at.UTC(), Data: map[string]any{"chapterId": chapterID}}
}

type Config struct {
	URL    string
	Secret string
	// Timeout bounds one delivery including retries.
	Timeout     time.Duration
	RetryDelays []time.Duration
}

type Client struct {
	db          database.DBTX
	url         string
	secret      string
	timeout     time.Duration
	http        *http.Client
	retryDelays []time.Duration
	wg          sync.WaitGroup
}

func New(db database.DBTX, cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.RetryDelays == nil {
		cfg.RetryDelays = []time.Duration{time.Second, 4 * time.Second}
	}
	return &Client{
		db:          db,
		url:         cfg.URL,
		secret:      cfg.Secret,
		timeout:     cfg.Timeout,
		http:        &http.Client{Timeout: 10 * time.Second},
		retryDelays: cfg.RetryDelays,
	}
}

// SignPayload returns "sha256=" followed by the hex HMAC of payload.
func SignPayload(secret string, payload []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

// DispatchAsync delivers in the background. It is a no-op when no URL is
// configured.
func (c *Client) DispatchAsync(userID string, event Event) {
	if c.url == "" {
		return
	}
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
		defer cancel()
		if err := c.Dispatch(ctx, userID, event); err != nil {
			slog.Warn("webhook: delivery failed", "user_id", userID, "event", event.Name, "error", err)
		}
	}()
}

// Wait blocks until background deliveries have finished.
func (c *Client) Wait() {
	c.wg.Wait()
}

type attempt struct {
	status int
	body   string
	err    error
}

func (a attempt) delivered() bool {
	return a.err == nil && a.status >= 200 && a.status < 300
}

// retryable is false for client errors other than timeouts and throttling;
// the receiver rejected the payload and will reject it again.
func (a attempt) retryable() bool {
	if a.err != nil || a.status >= 500 {
		return true
	}
	return a.status == http.StatusRequestTimeout || a.status == http.StatusTooManyRequests
}

// Dispatch sends event, retrying once per configured delay. All attempts
// share one delivery id so receivers can deduplicate.
func (c *Client) Dispatch(ctx context.Context, userID string, event Event) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal webhook payload: %w", err)
	}
	deliveryID := uuid.NewString()
	signature := SignPayload(c.secret, body)

	var last attempt
	for n := 1; n <= 1+len(c.retryDelays); n++ {
		last = c.post(ctx, deliveryID, event.Name, body, signature)
		c.logDelivery(ctx, deliveryID, userID, event.Name, body, last, n)

		if last.delivered() {
			metrics.IncWebhookDelivery(event.Name, nil)
			return nil
		}
		if !last.retryable() || n > len(c.retryDelays) {
			break
		}
		select {
		case <-time.After(c.retryDelays[n-1]):
		case <-ctx.Done():
			metrics.IncWebhookDelivery(event.Name, ctx.Err())
			return ctx.Err()
		}
	}

	err = last.err
	if err == nil {
		err = fmt.Errorf("webhook returned status %d", last.status)
	}
	metrics.IncWebhookDelivery(event.Name, err)
	return err
}

func (c *Client) post(ctx context.Context, deliveryID, eventName string, body []byte, signature string) attempt {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return attempt{err: fmt.Errorf("create webhook request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set(SignatureHeader, signature)
	req.Header.Set(EventHeader, eventName)
	req.Header.Set(DeliveryHeader, deliveryID)

	resp, err := c.http.Do(req)
	if err != nil {
		return attempt{body: err.Error(), err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxResponseBodyBytes))
	return attempt{status: resp.StatusCode, body: string(raw)}
}

func (c *Client) logDelivery(ctx context.Context, deliveryID, userID, event string, payload []byte, a attempt, n int) {
	if c.db == nil {
		return
	}
	var status *int
	if a.err == nil {
		status = &a.status
	}
	if _, err := c.db.Exec(ctx,
		`INSERT INTO webhook_deliveries (delivery_id, user_id, event, payload, status_code, response_body, attempt)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		deliveryID, userID, event, payload, status, a.body, n,
	); err != nil {
		slog.Error("webhook: failed to log delivery", "delivery_id", deliveryID, "user_id", userID, "error", err)
	}
}
