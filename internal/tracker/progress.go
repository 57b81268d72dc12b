package tracker

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/coursetrack/coursetrack/internal/auth"
	"github.com/coursetrack/coursetrack/internal/httputil"
	"github.com/coursetrack/coursetrack/internal/validate"
	"github.com/coursetrack/coursetrack/internal/webhook"
)

type videoProgressRequest struct {
	Completed          *bool    `json:"completed"`
	LastWatchedSeconds *float64 `json:"lastWatchedSeconds"`
}

type videoProgressResponse struct {
	VideoID            string   `json:"videoId"`
	Completed          bool     `json:"completed"`
	LastWatchedSeconds float64  `json:"lastWatchedSeconds"`
	Bookmarked         bool     `json:"bookmarked"`
	BookmarkSeconds    *float64 `json:"bookmarkSeconds,omitempty"`
}

type completedChaptersResponse struct {
	ChapterIDs []string `json:"chapterIds"`
}

type streakResponse struct {
	Current       int    `json:"current"`
	Longest       int    `json:"longest"`
	LastActiveDay string `json:"lastActiveDay,omitempty"`
}

// UpsertVideoProgress stores the watched flag and/or resume position. Fields
// left out of the body keep their stored value.
func (h *Handler) UpsertVideoProgress(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserIDFromContext(r.Context())
	videoID := chi.URLParam(r, "videoId")
	if msg := validate.VideoID(videoID); msg != "" {
		httputil.WriteError(w, http.StatusBadRequest, msg)
		return
	}

	var req videoProgressRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Completed == nil && req.LastWatchedSeconds == nil {
		httputil.WriteError(w, http.StatusBadRequest, "nothing to update")
		return
	}
	if req.LastWatchedSeconds != nil {
		if msg := validate.Timestamp(*req.LastWatchedSeconds, "lastWatchedSeconds"); msg != "" {
			httputil.WriteError(w, http.StatusBadRequest, msg)
			return
		}
	}

	// becameCompleted is true only when this write flipped the row to
	// completed, so retried writes do not repeat the milestone.
	var becameCompleted bool
	if err := h.db.QueryRow(r.Context(),
		`WITH prev AS (
		   SELECT completed FROM video_progress
		   WHERE user_id = $1 AND video_id = $2
		   FOR UPDATE
		 )
		 INSERT INTO video_progress (user_id, video_id, completed, last_watched_seconds)
		 VALUES ($1, $2, COALESCE($3::boolean, false), COALESCE($4::double precision, 0))
		 ON CONFLICT (user_id, video_id) DO UPDATE SET
		   completed = COALESCE($3::boolean, video_progress.completed),
		   last_watched_seconds = COALESCE($4::double precision, video_progress.last_watched_seconds),
		   updated_at = now()
		 RETURNING completed AND NOT COALESCE((SELECT completed FROM prev), false)`,
		userID, videoID, req.Completed, req.LastWatchedSeconds,
	).Scan(&becameCompleted); err != nil {
		slog.Error("tracker: failed to upsert video progress", "video_id", videoID, "error", err)
		httputil.WriteError(w, http.StatusInternalServerError, "failed to save video progress")
		return
	}

	h.recordActivity(r.Context(), userID)
	if becameCompleted {
		h.emit(userID, webhook.VideoCompleted(videoID, h.now()))
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetVideoProgress returns the resume snapshot for one video. Videos never
// watched come back zeroed rather than 404.
func (h *Handler) GetVideoProgress(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserIDFromContext(r.Context())
	videoID := chi.URLParam(r, "videoId")
	if msg := validate.VideoID(videoID); msg != "" {
		httputil.WriteError(w, http.StatusBadRequest, msg)
		return
	}

	resp := videoProgressResponse{VideoID: videoID}
	var bookmarkSeconds float64
	err := h.db.QueryRow(r.Context(),
		`SELECT COALESCE(vp.completed, false), COALESCE(vp.last_watched_seconds, 0),
		        b.video_id IS NOT NULL, COALESCE(b.timestamp_seconds, 0)
		 FROM (SELECT $1::text AS user_id, $2::text AS video_id) k
		 LEFT JOIN video_progress vp ON vp.user_id = k.user_id AND vp.video_id = k.video_id
		 LEFT JOIN bookmarks b ON b.user_id = k.user_id AND b.video_id = k.video_id`,
		userID, videoID,
	).Scan(&resp.Completed, &resp.LastWatchedSeconds, &resp.Bookmarked, &bookmarkSeconds)
	if err != nil {
		slog.Error("tracker: failed to load video progress", "video_id", videoID, "error", err)
		httputil.WriteError(w, http.StatusInternalServerError, "failed to load video progress")
		return
	}
	if resp.Bookmarked {
		resp.BookmarkSeconds = &bookmarkSeconds
	}

	httputil.WriteJSON(w, http.StatusOK, resp)
}

// CompleteChapter marks a chapter done. Repeating the call keeps the first
// completion time and does not emit the milestone again.
func (h *Handler) CompleteChapter(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserIDFromContext(r.Context())
	chapterID := chi.URLParam(r, "chapterId")
	if chapterID == "" {
		httputil.WriteError(w, http.StatusBadRequest, "chapter id is required")
		return
	}

	tag, err := h.db.Exec(r.Context(),
		`INSERT INTO chapter_progress (user_id, chapter_id, completed, completed_at)
		 VALUES ($1, $2, true, now())
		 ON CONFLICT (user_id, chapter_id) DO UPDATE SET completed = true
		 WHERE NOT chapter_progress.completed`,
		userID, chapterID,
	)
	if err != nil {
		slog.Error("tracker: failed to complete chapter", "chapter_id", chapterID, "error", err)
		httputil.WriteError(w, http.StatusInternalServerError, "failed to save chapter progress")
		return
	}

	h.recordActivity(r.Context(), userID)
	if tag.RowsAffected() > 0 {
		h.emit(userID, webhook.ChapterCompleted(chapterID, h.now()))
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) CompletedChapters(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserIDFromContext(r.Context())
	videoID := r.URL.Query().Get("videoId")
	if msg := validate.VideoID(videoID); msg != "" {
		httputil.WriteError(w, http.StatusBadRequest, msg)
		return
	}

	rows, err := h.db.Query(r.Context(),
		`SELECT cp.chapter_id
		 FROM chapter_progress cp
		 JOIN chapters c ON c.id = cp.chapter_id
		 WHERE cp.user_id = $1 AND c.video_id = $2 AND cp.completed
		 ORDER BY c.position`,
		userID, videoID,
	)
	if err != nil {
		httputil.WriteError(w, http.StatusInternalServerError, "failed to list chapter progress")
		return
	}
	defer rows.Close()

	resp := completedChaptersResponse{ChapterIDs: make([]string, 0)}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			httputil.WriteError(w, http.StatusInternalServerError, "failed to scan chapter progress")
			return
		}
		resp.ChapterIDs = append(resp.ChapterIDs, id)
	}
	if err := rows.Err(); err != nil {
		httputil.WriteError(w, http.StatusInternalServerError, "failed to list chapter progress")
		return
	}

	httputil.WriteJSON(w, http.StatusOK, resp)
}

func (h *Handler) Streak(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserIDFromContext(r.Context())

	rows, err := h.db.Query(r.Context(),
		`SELECT day FROM activity_days WHERE user_id = $1 ORDER BY day`,
		userID,
	)
	if err != nil {
		httputil.WriteError(w, http.StatusInternalServerError, "failed to load activity")
		return
	}
	defer rows.Close()

	var days []time.Time
	for rows.Next() {
		var day time.Time
		if err := rows.Scan(&day); err != nil {
			httputil.WriteError(w, http.StatusInternalServerError, "failed to scan activity")
			return
		}
		days = append(days, day)
	}
	if err := rows.Err(); err != nil {
		httputil.WriteError(w, http.StatusInternalServerError, "failed to load activity")
		return
	}

	current, longest := ComputeStreak(days, h.now())
	resp := streakResponse{Current: current, Longest: longest}
	if len(days) > 0 {
		resp.LastActiveDay = days[len(days)-1].Format(time.DateOnly)
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}
