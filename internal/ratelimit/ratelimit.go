// Package ratelimit throttles API callers with one token bucket per user,
// falling back to the client IP for unauthenticated requests.
package ratelimit

import (
	"context"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/coursetrack/coursetrack/internal/httputil"
	"github.com/coursetrack/coursetrack/internal/metrics"
)

const (
	idleTTL         = 10 * time.Minute
	cleanupInterval = 5 * time.Minute
)

// KeyFunc returns the bucket key for a request and its kind for metrics.
type KeyFunc func(r *http.Request) (key, kind string)

type bucket struct {
	tokens   *rate.Limiter
	lastSeen time.Time
}

type Limiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	rate    rate.Limit
	burst   int
	keyFunc KeyFunc
	now     func() time.Time
}

func NewLimiter(requestsPerSecond float64, burst int) *Limiter {
	return &Limiter{
		buckets: make(map[string]*bucket),
		rate:    rate.Limit(requestsPerSecond),
		burst:   burst,
		keyFunc: ByClientIP,
		now:     time.Now,
	}
}

// WithKeyFunc swaps how requests are grouped into buckets.
func (l *Limiter) WithKeyFunc(fn KeyFunc) *Limiter {
	l.keyFunc = fn
	return l
}

// take spends one token from key's bucket. When the bucket is empty it
// returns false and how long until a token is available.
func (l *Limiter) take(key string) (bool, time.Duration) {
	now := l.now()

	l.mu.Lock()
	b, ok := l.buckets[key]
	if !ok {
		b = &bucket{tokens: rate.NewLimiter(l.rate, l.burst)}
		l.buckets[key] = b
	}
	b.lastSeen = now
	l.mu.Unlock()

	res := b.tokens.ReserveN(now, 1)
	if !res.OK() {
		return false, time.Second
	}
	delay := res.DelayFrom(now)
	if delay == 0 {
		return true, 0
	}
	res.CancelAt(now)
	return false, delay
}

// Run evicts idle buckets until ctx is done.
func (l *Limiter) Run(ctx context.Context) {
	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.evictIdle()
		}
	}
}

func (l *Limiter) evictIdle() {
	l.mu.Lock()
	defer l.mu.Unlock()
	cutoff := l.now().Add(-idleTTL)
	for key, b := range l.buckets {
		if b.lastSeen.Before(cutoff) {
			delete(l.buckets, key)
		}
	}
}

func (l *Limiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key, kind := l.keyFunc(r)

		ok, wait := l.take(key)
		if !ok {
			metrics.IncRateLimited(kind)
			w.Header().Set("Retry-After", retryAfter(wait))
			httputil.WriteError(w, http.StatusTooManyRequests, "too many requests")
			return
		}

		next.ServeHTTP(w, r)
	})
}

// retryAfter renders a wait as whole seconds, never less than one.
func retryAfter(wait time.Duration) string {
	secs := int(math.Ceil(wait.Seconds()))
	if secs < 1 {
		secs = 1
	}
	return strconv.Itoa(secs)
}

// ByClientIP keys on the first X-Forwarded-For hop, then RemoteAddr.
func ByClientIP(r *http.Request) (string, string) {
	return "ip:" + ClientIP(r), "ip"
}

// ByUser keys on the authenticated user when userID returns one.
func ByUser(userID func(context.Context) string) KeyFunc {
	return func(r *http.Request) (string, string) {
		if id := userID(r.Context()); id != "" {
			return "user:" + id, "user"
		}
		return ByClientIP(r)
	}
}

func ClientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		first, _, _ := strings.Cut(forwarded, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
