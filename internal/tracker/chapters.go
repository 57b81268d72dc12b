package tracker

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/coursetrack/coursetrack/internal/chapter"
	"github.com/coursetrack/coursetrack/internal/httputil"
	"github.com/coursetrack/coursetrack/internal/validate"
)

// ListChapters returns a video's chapters in playback order. Chapters are
// written by the ingestion pipeline; this endpoint only reads them.
func (h *Handler) ListChapters(w http.ResponseWriter, r *http.Request) {
	videoID := chi.URLParam(r, "videoId")
	if msg := validate.VideoID(videoID); msg != "" {
		httputil.WriteError(w, http.StatusBadRequest, msg)
		return
	}

	rows, err := h.db.Query(r.Context(),
		`SELECT id, title, start_seconds, end_seconds, position
		 FROM chapters
		 WHERE video_id = $1
		 ORDER BY position`,
		videoID,
	)
	if err != nil {
		httputil.WriteError(w, http.StatusInternalServerError, "failed to list chapters")
		return
	}
	defer rows.Close()

	items := make([]chapter.Chapter, 0)
	for rows.Next() {
		var c chapter.Chapter
		if err := rows.Scan(&c.ID, &c.Title, &c.StartSeconds, &c.EndSeconds, &c.Order); err != nil {
			httputil.WriteError(w, http.StatusInternalServerError, "failed to scan chapter")
			return
		}
		items = append(items, c)
	}
	if err := rows.Err(); err != nil {
		httputil.WriteError(w, http.StatusInternalServerError, "failed to list chapters")
		return
	}

	httputil.WriteJSON(w, http.StatusOK, items)
}
