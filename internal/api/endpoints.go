package api

import (
	"context"
	"net/http"
	"net/url"

	"github.com/coursetrack/coursetrack/internal/chapter"
	"github.com/coursetrack/coursetrack/internal/notes"
	"github.com/coursetrack/coursetrack/internal/progress"
)

// VideoProgress is the per-video snapshot used to seed panels on mount.
type VideoProgress struct {
	VideoID            string   `json:"videoId"`
	Completed          bool     `json:"completed"`
	LastWatchedSeconds float64  `json:"lastWatchedSeconds"`
	Bookmarked         bool     `json:"bookmarked"`
	BookmarkSeconds    *float64 `json:"bookmarkSeconds,omitempty"`
}

type Streak struct {
	Current       int    `json:"current"`
	Longest       int    `json:"longest"`
	LastActiveDay string `json:"lastActiveDay,omitempty"`
}

func (c *Client) UpsertVideoProgress(ctx context.Context, videoID string, update progress.VideoUpdate) error {
	return c.do(ctx, request{
		method:     http.MethodPost,
		path:       "/api/progress/video/" + segment(videoID),
		body:       update,
		idempotent: true,
	})
}

func (c *Client) VideoProgress(ctx context.Context, videoID string) (VideoProgress, error) {
	var out VideoProgress
	err := c.do(ctx, request{
		method:     http.MethodGet,
		path:       "/api/progress/video/" + segment(videoID),
		out:        &out,
		idempotent: true,
	})
	return out, err
}

func (c *Client) CompleteChapter(ctx context.Context, chapterID string) error {
	return c.do(ctx, request{
		method:     http.MethodPost,
		path:       "/api/progress/chapter/" + segment(chapterID),
		idempotent: true,
	})
}

// CompletedChapters returns the ids of the chapters of videoID already done.
func (c *Client) CompletedChapters(ctx context.Context, videoID string) ([]string, error) {
	var out struct {
		ChapterIDs []string `json:"chapterIds"`
	}
	err := c.do(ctx, request{
		method:     http.MethodGet,
		path:       "/api/progress/chapters",
		query:      url.Values{"videoId": {videoID}},
		out:        &out,
		idempotent: true,
	})
	return out.ChapterIDs, err
}

func (c *Client) Streak(ctx context.Context) (Streak, error) {
	var out Streak
	err := c.do(ctx, request{
		method:     http.MethodGet,
		path:       "/api/progress/streak",
		out:        &out,
		idempotent: true,
	})
	return out, err
}

func (c *Client) CreateBookmark(ctx context.Context, videoID string, timestampSeconds float64) error {
	return c.do(ctx, request{
		method: http.MethodPost,
		path:   "/api/bookmarks",
		body: map[string]any{
			"videoId":          videoID,
			"timestampSeconds": timestampSeconds,
		},
		idempotent: true,
	})
}

func (c *Client) DeleteBookmark(ctx context.Context, videoID string) error {
	return c.do(ctx, request{
		method:     http.MethodDelete,
		path:       "/api/bookmarks/" + segment(videoID),
		idempotent: true,
	})
}

func (c *Client) ListNotes(ctx context.Context, videoID, courseID string) ([]notes.Note, error) {
	var out []notes.Note
	err := c.do(ctx, request{
		method:     http.MethodGet,
		path:       "/api/notes",
		query:      url.Values{"videoId": {videoID}, "courseId": {courseID}},
		out:        &out,
		idempotent: true,
	})
	return out, err
}

func (c *Client) CreateNote(ctx context.Context, n notes.NewNote) (notes.Note, error) {
	var out notes.Note
	err := c.do(ctx, request{
		method: http.MethodPost,
		path:   "/api/notes",
		body:   n,
		out:    &out,
	})
	return out, err
}

func (c *Client) UpdateNote(ctx context.Context, id, body string) (notes.Note, error) {
	var out notes.Note
	err := c.do(ctx, request{
		method:     http.MethodPatch,
		path:       "/api/notes/" + segment(id),
		body:       map[string]string{"body": body},
		out:        &out,
		idempotent: true,
	})
	return out, err
}

func (c *Client) DeleteNote(ctx context.Context, id string) error {
	return c.do(ctx, request{
		method:     http.MethodDelete,
		path:       "/api/notes/" + segment(id),
		idempotent: true,
	})
}

// Chapters returns the chapters of a video in playback order.
func (c *Client) Chapters(ctx context.Context, videoID string) ([]chapter.Chapter, error) {
	var out []chapter.Chapter
	err := c.do(ctx, request{
		method:     http.MethodGet,
		path:       "/api/videos/" + segment(videoID) + "/chapters",
		out:        &out,
		idempotent: true,
	})
	return out, err
}
