package progress

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/coursetrack/coursetrack/internal/metrics"
)

// Reason names the trigger of a progress write.
type Reason string

const (
	ReasonInterval Reason = "interval"
	ReasonPause    Reason = "pause"
	ReasonHidden   Reason = "hidden"
	ReasonUnload   Reason = "unload"
	ReasonComplete Reason = "complete"
)

const DefaultWriteTimeout = 30 * time.Second

// ErrInvalidTime is returned when a write is refused because the playback
// reading is zero or not a finite number.
var ErrInvalidTime = errors.New("progress: invalid playback time")

// VideoUpdate is the body of a video progress upsert. Nil fields are left
// untouched by the backend.
type VideoUpdate struct {
	Completed          *bool    `json:"completed,omitempty"`
	LastWatchedSeconds *float64 `json:"lastWatchedSeconds,omitempty"`
}

// Client is the backend used by the persister. UpsertVideoProgress must be
// an upsert keyed by (user, video), never an append.
type Client interface {
	UpsertVideoProgress(ctx context.Context, videoID string, update VideoUpdate) error
	CompleteChapter(ctx context.Context, chapterID string) error
}

// Persister writes watch progress without blocking the caller. Failed writes
// are logged and dropped: the next tick or event retries with fresher data.
type Persister struct {
	client       Client
	writeTimeout time.Duration
	wg           sync.WaitGroup
}

func NewPersister(client Client, writeTimeout time.Duration) *Persister {
	if writeTimeout <= 0 {
		writeTimeout = DefaultWriteTimeout
	}
	return &Persister{client: client, writeTimeout: writeTimeout}
}

// ValidTime reports whether seconds may be written as a resume position.
func ValidTime(seconds float64) bool {
	return seconds > 0 && !math.IsNaN(seconds) && !math.IsInf(seconds, 0)
}

// SaveTime starts an asynchronous write of the resume position. It returns
// ErrInvalidTime, without any I/O, when the reading must not overwrite real
// progress. The write outlives the caller: it runs on its own context so a
// save started right before a page unload still completes.
func (p *Persister) SaveTime(videoID string, seconds float64, reason Reason) error {
	if videoID == "" || !ValidTime(seconds) {
		metrics.IncProgressRejected(string(reason))
		return ErrInvalidTime
	}

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), p.writeTimeout)
		defer cancel()

		err := p.client.UpsertVideoProgress(ctx, videoID, VideoUpdate{LastWatchedSeconds: &seconds})
		metrics.IncProgressWrite(string(reason), err)
		if err != nil {
			slog.Error("progress: failed to save position",
				"video_id", videoID, "seconds", seconds, "reason", reason, "error", err)
		}
	}()
	return nil
}

// MarkVideoComplete writes the completion flag synchronously. The caller owns
// the optimistic state and decides what to do with the error.
func (p *Persister) MarkVideoComplete(ctx context.Context, videoID string, completed bool) error {
	err := p.client.UpsertVideoProgress(ctx, videoID, VideoUpdate{Completed: &completed})
	metrics.IncProgressWrite(string(ReasonComplete), err)
	if err != nil {
		return fmt.Errorf("mark video %s complete=%t: %w", videoID, completed, err)
	}
	return nil
}

// CompleteChapter marks a chapter complete in the background and reports the
// outcome to done, which may be nil.
func (p *Persister) CompleteChapter(chapterID string, done func(error)) {
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), p.writeTimeout)
		defer cancel()

		err := p.client.CompleteChapter(ctx, chapterID)
		if err != nil {
			slog.Error("progress: failed to complete chapter", "chapter_id", chapterID, "error", err)
			err = fmt.Errorf("complete chapter %s: %w", chapterID, err)
		}
		if done != nil {
			done(err)
		}
	}()
}

// Wait blocks until every write started so far has finished.
func (p *Persister) Wait() {
	p.wg.Wait()
}
