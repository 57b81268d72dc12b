package tracker

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/coursetrack/coursetrack/internal/auth"
	"github.com/coursetrack/coursetrack/internal/httputil"
	"github.com/coursetrack/coursetrack/internal/notes"
	"github.com/coursetrack/coursetrack/internal/validate"
)

type updateNoteRequest struct {
	Body string `json:"body"`
}

func (h *Handler) ListNotes(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserIDFromContext(r.Context())
	videoID := r.URL.Query().Get("videoId")
	courseID := r.URL.Query().Get("courseId")
	if msg := validate.VideoID(videoID); msg != "" {
		httputil.WriteError(w, http.StatusBadRequest, msg)
		return
	}
	if msg := validate.CourseID(courseID); msg != "" {
		httputil.WriteError(w, http.StatusBadRequest, msg)
		return
	}

	rows, err := h.db.Query(r.Context(),
		`SELECT id, video_id, course_id, body, timestamp_seconds, created_at, updated_at
		 FROM notes
		 WHERE user_id = $1 AND video_id = $2 AND course_id = $3
		 ORDER BY timestamp_seconds, created_at`,
		userID, videoID, courseID,
	)
	if err != nil {
		httputil.WriteError(w, http.StatusInternalServerError, "failed to list notes")
		return
	}
	defer rows.Close()

	items := make([]notes.Note, 0)
	for rows.Next() {
		var n notes.Note
		if err := rows.Scan(&n.ID, &n.VideoID, &n.CourseID, &n.Body, &n.TimestampSeconds, &n.CreatedAt, &n.UpdatedAt); err != nil {
			httputil.WriteError(w, http.StatusInternalServerError, "failed to scan note")
			return
		}
		items = append(items, n)
	}
	if err := rows.Err(); err != nil {
		httputil.WriteError(w, http.StatusInternalServerError, "failed to list notes")
		return
	}

	httputil.WriteJSON(w, http.StatusOK, items)
}

func (h *Handler) CreateNote(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserIDFromContext(r.Context())

	var req notes.NewNote
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.Body = strings.TrimSpace(req.Body)
	for _, msg := range []string{
		validate.VideoID(req.VideoID),
		validate.CourseID(req.CourseID),
		validate.NoteBody(req.Body),
		validate.Timestamp(req.TimestampSeconds, "timestampSeconds"),
	} {
		if msg != "" {
			httputil.WriteError(w, http.StatusBadRequest, msg)
			return
		}
	}

	n := notes.Note{
		VideoID:          req.VideoID,
		CourseID:         req.CourseID,
		Body:             req.Body,
		TimestampSeconds: req.TimestampSeconds,
	}
	err := h.db.QueryRow(r.Context(),
		`INSERT INTO notes (user_id, video_id, course_id, body, timestamp_seconds)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id, created_at, updated_at`,
		userID, n.VideoID, n.CourseID, n.Body, n.TimestampSeconds,
	).Scan(&n.ID, &n.CreatedAt, &n.UpdatedAt)
	if err != nil {
		slog.Error("tracker: failed to create note", "video_id", n.VideoID, "error", err)
		httputil.WriteError(w, http.StatusInternalServerError, "failed to create note")
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, n)
}

// UpdateNote edits the body only. A note's timestamp is fixed at creation.
func (h *Handler) UpdateNote(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserIDFromContext(r.Context())
	noteID := chi.URLParam(r, "id")
	if _, err := uuid.Parse(noteID); err != nil {
		httputil.WriteError(w, http.StatusNotFound, "note not found")
		return
	}

	var req updateNoteRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	body := strings.TrimSpace(req.Body)
	if msg := validate.NoteBody(body); msg != "" {
		httputil.WriteError(w, http.StatusBadRequest, msg)
		return
	}

	n := notes.Note{ID: noteID, Body: body}
	err := h.db.QueryRow(r.Context(),
		`UPDATE notes SET body = $3, updated_at = now()
		 WHERE id = $1 AND user_id = $2
		 RETURNING video_id, course_id, timestamp_seconds, created_at, updated_at`,
		noteID, userID, body,
	).Scan(&n.VideoID, &n.CourseID, &n.TimestampSeconds, &n.CreatedAt, &n.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			httputil.WriteError(w, http.StatusNotFound, "note not found")
			return
		}
		slog.Error("tracker: failed to update note", "note_id", noteID, "error", err)
		httputil.WriteError(w, http.StatusInternalServerError, "failed to update note")
		return
	}

	httputil.WriteJSON(w, http.StatusOK, n)
}

func (h *Handler) DeleteNote(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserIDFromContext(r.Context())
	noteID := chi.URLParam(r, "id")
	if _, err := uuid.Parse(noteID); err != nil {
		httputil.WriteError(w, http.StatusNotFound, "note not found")
		return
	}

	tag, err := h.db.Exec(r.Context(),
		`DELETE FROM notes WHERE id = $1 AND user_id = $2`,
		noteID, userID,
	)
	if err != nil {
		slog.Error("tracker: failed to delete note", "note_id", noteID, "error", err)
		httputil.WriteError(w, http.StatusInternalServerError, "failed to delete note")
		return
	}
	if tag.RowsAffected() == 0 {
		httputil.WriteError(w, http.StatusNotFound, "note not found")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
