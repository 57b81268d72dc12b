package tracker

import (
	"encoding/json"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"

	"github.com/coursetrack/coursetrack/internal/notes"
)

const testNoteID = "3f1c2b7e-8f57-4a9c-9d1e-2b7c0e4a5f61"

func TestListNotes(t *testing.T) {
	h, mock := newTestHandler(t)
	defer mock.Close()

	created := time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)
	mock.ExpectQuery(`SELECT id, video_id, course_id, body, timestamp_seconds, created_at, updated_at`).
		WithArgs(testUserID, "vid-1", "course-1").
		WillReturnRows(pgxmock.NewRows([]string{"id", "video_id", "course_id", "body", "timestamp_seconds", "created_at", "updated_at"}).
			AddRow(testNoteID, "vid-1", "course-1", "defer runs LIFO", 61.0, created, created))

	rec := serve(t, h, http.MethodGet, "/api/notes?videoId=vid-1&courseId=course-1", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d: %s", http.StatusOK, rec.Code, rec.Body.String())
	}

	var got []notes.Note
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if len(got) != 1 || got[0].ID != testNoteID || got[0].TimestampSeconds != 61 {
		t.Errorf("unexpected notes %+v", got)
	}
}

func TestListNotes_RequiresCourseID(t *testing.T) {
	h, mock := newTestHandler(t)
	defer mock.Close()

	rec := serve(t, h, http.MethodGet, "/api/notes?videoId=vid-1", nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected status %d, got %d", http.StatusBadRequest, rec.Code)
	}
	if got := parseErrorResponse(t, rec.Body.Bytes()); got != "course id is required" {
		t.Errorf("unexpected error %q", got)
	}
}

func TestCreateNote(t *testing.T) {
	h, mock := newTestHandler(t)
	defer mock.Close()

	created := time.Date(2026, 10, 16, 9, 30, 0, 0, time.UTC)
	mock.ExpectQuery(`INSERT INTO notes`).
		WithArgs(testUserID, "vid-1", "course-1", "goroutines are cheap", 754.25).
		WillReturnRows(pgxmock.NewRows([]string{"id", "created_at", "updated_at"}).
			AddRow(testNoteID, created, created))

	rec := serve(t, h, http.MethodPost, "/api/notes", notes.NewNote{
		VideoID:          "vid-1",
		CourseID:         "course-1",
		Body:             "  goroutines are cheap  ",
		TimestampSeconds: 754.25,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected status %d, got %d: %s", http.StatusCreated, rec.Code, rec.Body.String())
	}

	var got notes.Note
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if got.ID != testNoteID || got.Body != "goroutines are cheap" || !got.CreatedAt.Equal(created) {
		t.Errorf("unexpected note %+v", got)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet pgxmock expectations: %v", err)
	}
}

func TestCreateNote_BodyTooLong(t *testing.T) {
	h, mock := newTestHandler(t)
	defer mock.Close()

	rec := serve(t, h, http.MethodPost, "/api/notes", notes.NewNote{
		VideoID:  "vid-1",
		CourseID: "course-1",
		Body:     strings.Repeat("a", 5001),
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected status %d, got %d", http.StatusBadRequest, rec.Code)
	}
	if got := parseErrorResponse(t, rec.Body.Bytes()); got != "note must be 5000 characters or fewer" {
		t.Errorf("unexpected error %q", got)
	}
}

func TestUpdateNote(t *testing.T) {
	h, mock := newTestHandler(t)
	defer mock.Close()

	created := time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)
	mock.ExpectQuery(`UPDATE notes SET body`).
		WithArgs(testNoteID, testUserID, "edited").
		WillReturnRows(pgxmock.NewRows([]string{"video_id", "course_id", "timestamp_seconds", "created_at", "updated_at"}).
			AddRow("vid-1", "course-1", 61.0, created, testNow))

	rec := serve(t, h, http.MethodPatch, "/api/notes/"+testNoteID, updateNoteRequest{Body: "edited"})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d: %s", http.StatusOK, rec.Code, rec.Body.String())
	}
	var got notes.Note
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if got.Body != "edited" || got.TimestampSeconds != 61 {
		t.Errorf("unexpected note %+v", got)
	}
}

func TestUpdateNote_NotOwner(t *testing.T) {
	h, mock := newTestHandler(t)
	defer mock.Close()

	mock.ExpectQuery(`UPDATE notes SET body`).
		WithArgs(testNoteID, testUserID, "edited").
		WillReturnError(pgx.ErrNoRows)

	rec := serve(t, h, http.MethodPatch, "/api/notes/"+testNoteID, updateNoteRequest{Body: "edited"})
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected status %d, got %d", http.StatusNotFound, rec.Code)
	}
}

func TestUpdateNote_InvalidID(t *testing.T) {
	h, mock := newTestHandler(t)
	defer mock.Close()

	rec := serve(t, h, http.MethodPatch, "/api/notes/not-a-uuid", updateNoteRequest{Body: "edited"})
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected status %d, got %d", http.StatusNotFound, rec.Code)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("expected no database calls: %v", err)
	}
}

func TestDeleteNote(t *testing.T) {
	h, mock := newTestHandler(t)
	defer mock.Close()

	mock.ExpectExec(`DELETE FROM notes`).
		WithArgs(testNoteID, testUserID).
		WillReturnResult(pgxmock.NewResult("DELETE", 1))

	rec := serve(t, h, http.MethodDelete, "/api/notes/"+testNoteID, nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected status %d, got %d: %s", http.StatusNoContent, rec.Code, rec.Body.String())
	}
}

func TestDeleteNote_NotFound(t *testing.T) {
	h, mock := newTestHandler(t)
	defer mock.Close()

	mock.ExpectExec(`DELETE FROM notes`).
		WithArgs(testNoteID, testUserID).
		WillReturnResult(pgxmock.NewResult("DELETE", 0))

	rec := serve(t, h, http.MethodDelete, "/api/notes/"+testNoteID, nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected status %d, got %d", http.StatusNotFound, rec.Code)
	}
}
