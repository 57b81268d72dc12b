package tracker

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/coursetrack/coursetrack/internal/auth"
	"github.com/coursetrack/coursetrack/internal/httputil"
	"github.com/coursetrack/coursetrack/internal/validate"
)

type createBookmarkRequest struct {
	VideoID          string  `json:"videoId"`
	TimestampSeconds float64 `json:"timestampSeconds"`
}

// CreateBookmark sets the user's single bookmark on a video, moving it if
// one already exists.
func (h *Handler) CreateBookmark(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserIDFromContext(r.Context())

	var req createBookmarkRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if msg := validate.VideoID(req.VideoID); msg != "" {
		httputil.WriteError(w, http.StatusBadRequest, msg)
		return
	}
	if msg := validate.Timestamp(req.TimestampSeconds, "timestampSeconds"); msg != "" {
		httputil.WriteError(w, http.StatusBadRequest, msg)
		return
	}

	if _, err := h.db.Exec(r.Context(),
		`INSERT INTO bookmarks (user_id, video_id, timestamp_seconds)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (user_id, video_id) DO UPDATE SET timestamp_seconds = EXCLUDED.timestamp_seconds`,
		userID, req.VideoID, req.TimestampSeconds,
	); err != nil {
		slog.Error("tracker: failed to save bookmark", "video_id", req.VideoID, "error", err)
		httputil.WriteError(w, http.StatusInternalServerError, "failed to save bookmark")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// DeleteBookmark is idempotent: removing a missing bookmark succeeds.
func (h *Handler) DeleteBookmark(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserIDFromContext(r.Context())
	videoID := chi.URLParam(r, "videoId")
	if msg := validate.VideoID(videoID); msg != "" {
		httputil.WriteError(w, http.StatusBadRequest, msg)
		return
	}

	if _, err := h.db.Exec(r.Context(),
		`DELETE FROM bookmarks WHERE user_id = $1 AND video_id = $2`,
		userID, videoID,
	); err != nil {
		slog.Error("tracker: failed to delete bookmark", "video_id", videoID, "error", err)
		httputil.WriteError(w, http.StatusInternalServerError, "failed to delete bookmark")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
