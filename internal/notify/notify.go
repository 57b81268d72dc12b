// Package notify delivers transient, user-visible notices such as "Failed to
// update bookmark" to whatever surfaces are listening.
package notify

import (
	"log/slog"
	"sync"
	"time"

	"github.com/coursetrack/coursetrack/internal/clock"
)

// Notifier receives one notice.
type Notifier interface {
	Notify(message string)
}

// Multi fans out every notice to all registered notifiers.
type Multi struct {
	notifiers []Notifier
}

func NewMulti(notifiers ...Notifier) *Multi {
	return &Multi{notifiers: notifiers}
}

func (m *Multi) Notify(message string) {
	for _, n := range m.notifiers {
		if n != nil {
			n.Notify(message)
		}
	}
}

// Log records notices in the structured log.
type Log struct{}

func (Log) Notify(message string) {
	slog.Info("notify: notice shown", "message", message)
}

type Toast struct {
	Message string    `json:"message"`
	At      time.Time `json:"at"`
}

const DefaultToastLimit = 5

// Toasts keeps the most recent notices until the UI drains them. Older
// notices are dropped once the limit is reached.
type Toasts struct {
	clk   clock.Clock
	limit int

	mu    sync.Mutex
	items []Toast
}

func NewToasts(clk clock.Clock, limit int) *Toasts {
	if limit <= 0 {
		limit = DefaultToastLimit
	}
	return &Toasts{clk: clk, limit: limit}
}

func (t *Toasts) Notify(message string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.items = append(t.items, Toast{Message: message, At: t.clk.Now()})
	if over := len(t.items) - t.limit; over > 0 {
		t.items = append([]Toast(nil), t.items[over:]...)
	}
}

// Drain returns the pending toasts, oldest first, and clears them.
func (t *Toasts) Drain() []Toast {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := t.items
	t.items = nil
	return out
}
