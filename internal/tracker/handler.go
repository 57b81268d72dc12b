// Package tracker serves the progress, bookmark and notes endpoints the
// playback core writes to. Every write is an upsert keyed by user.
package tracker

import (
	"context"
	"log/slog"
	"time"

	"github.com/coursetrack/coursetrack/internal/database"
	"github.com/coursetrack/coursetrack/internal/webhook"
)

// EventSink receives progress milestones. *webhook.Client satisfies it.
type EventSink interface {
	DispatchAsync(userID string, event webhook.Event)
}

type Handler struct {
	db     database.DBTX
	now    func() time.Time
	events EventSink
}

func NewHandler(db database.DBTX) *Handler {
	return &Handler{db: db, now: time.Now}
}

// WithEvents makes the handler report milestones to sink.
func (h *Handler) WithEvents(sink EventSink) *Handler {
	h.events = sink
	return h
}

func (h *Handler) emit(userID string, event webhook.Event) {
	if h.events == nil {
		return
	}
	h.events.DispatchAsync(userID, event)
}

// recordActivity marks today as an active day for the user. Failures are
// logged only; streaks must never block a progress write.
func (h *Handler) recordActivity(ctx context.Context, userID string) {
	day := h.now().UTC().Format(time.DateOnly)
	if _, err := h.db.Exec(ctx,
		`INSERT INTO activity_days (user_id, day) VALUES ($1, $2)
		 ON CONFLICT (user_id, day) DO NOTHING`,
		userID, day,
	); err != nil {
		slog.Error("tracker: failed to record activity day", "user_id", userID, "error", err)
	}
}
