package toggle

import (
	"context"
	"log/slog"

	"github.com/coursetrack/coursetrack/internal/events"
)

const (
	BookmarkFailedMessage = "Failed to update bookmark"
	ProgressFailedMessage = "Failed to update video progress"
)

type BookmarkClient interface {
	CreateBookmark(ctx context.Context, videoID string, timestampSeconds float64) error
	DeleteBookmark(ctx context.Context, videoID string) error
}

// TimeReader supplies the position stored with a new bookmark.
type TimeReader interface {
	CurrentTime() float64
}

// CompletionWriter persists the watched flag. progress.Persister satisfies it.
type CompletionWriter interface {
	MarkVideoComplete(ctx context.Context, videoID string, completed bool) error
}

// Policy reacts to a successful completion change of a video.
type Policy func(ctx context.Context, videoID string, completed bool)

// NewBookmark builds the bookmark toggle for one video.
func NewBookmark(videoID string, initial bool, client BookmarkClient, clock TimeReader, bus *events.Bus, notifier Notifier) *Toggle {
	t := New("bookmark", initial, func(ctx context.Context, next bool) error {
		if next {
			return client.CreateBookmark(ctx, videoID, clock.CurrentTime())
		}
		return client.DeleteBookmark(ctx, videoID)
	}, notifier, BookmarkFailedMessage)
	t.OnSuccess(func(_ context.Context, value bool) {
		bus.Publish(events.BookmarkUpdated{VideoID: videoID, Bookmarked: value})
	})
	return t
}

// NewCompletion builds the watched toggle for one video. Policies run, in
// order, after the sibling panels have been told about the change.
func NewCompletion(videoID string, initial bool, writer CompletionWriter, bus *events.Bus, notifier Notifier, policies ...Policy) *Toggle {
	t := New("completion", initial, func(ctx context.Context, next bool) error {
		return writer.MarkVideoComplete(ctx, videoID, next)
	}, notifier, ProgressFailedMessage)
	t.OnSuccess(func(ctx context.Context, value bool) {
		bus.Publish(events.VideoProgressUpdated{VideoID: videoID, Completed: value})
		for _, p := range policies {
			p(ctx, videoID, value)
		}
	})
	return t
}

// RemoveBookmarkOnComplete un-bookmarks a video once it is marked watched.
func RemoveBookmarkOnComplete(bookmark *Toggle) Policy {
	return func(ctx context.Context, videoID string, completed bool) {
		if completed && bookmark.Value() {
			// Set already rolled back and raised the notice on failure.
			if err := bookmark.Set(ctx, false); err != nil {
				slog.Debug("toggle: bookmark removal after completion failed", "video_id", videoID, "error", err)
			}
		}
	}
}
