package httputil

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestWriteJSON(t *testing.T) {
	type snapshot struct {
		VideoID            string  `json:"videoId"`
		LastWatchedSeconds float64 `json:"lastWatchedSeconds"`
	}

	tests := []struct {
		name   string
		status int
		value  any
		want   string
	}{
		{"struct", http.StatusOK, snapshot{VideoID: "v1", LastWatchedSeconds: 93.5}, `{"videoId":"v1","lastWatchedSeconds":93.5}`},
		{"map", http.StatusCreated, map[string]string{"status": "ok"}, `{"status":"ok"}`},
		{"list", http.StatusOK, []string{"c0", "c2"}, `["c0","c2"]`},
		{"error", http.StatusNotFound, ErrorBody{Error: "video not found"}, `{"error":"video not found"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			WriteJSON(rec, tt.status, tt.value)

			if rec.Code != tt.status {
				t.Errorf("expected status %d, got %d", tt.status, rec.Code)
			}
			if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
				t.Errorf("expected application/json, got %q", ct)
			}
			if got := strings.TrimSpace(rec.Body.String()); got != tt.want {
				t.Errorf("body = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestWriteJSONUnencodableValue(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteJSON(rec, http.StatusOK, map[string]any{"bad": make(chan int)})

	if rec.Code != http.StatusOK {
		t.Errorf("status should already be committed, got %d", rec.Code)
	}
}

func TestWriteError(t *testing.T) {
	for status, msg := range map[int]string{
		http.StatusBadRequest:          "",
		http.StatusUnauthorized:        "invalid token",
		http.StatusTooManyRequests:     "too many requests",
		http.StatusInternalServerError: "failed to save progress",
	} {
		rec := httptest.NewRecorder()
		WriteError(rec, status, msg)

		if rec.Code != status {
			t.Errorf("expected status %d, got %d", status, rec.Code)
		}
		want := `{"error":"` + msg + `"}`
		if got := strings.TrimSpace(rec.Body.String()); got != want {
			t.Errorf("body = %s, want %s", got, want)
		}
	}
}

func TestDecodeJSON(t *testing.T) {
	var dst struct {
		VideoID          string  `json:"videoId"`
		TimestampSeconds float64 `json:"timestampSeconds"`
	}
	req := httptest.NewRequest(http.MethodPost, "/api/bookmarks", strings.NewReader(`{"videoId":"v1","timestampSeconds":42}`+"\n"))
	if err := DecodeJSON(req, &dst); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if dst.VideoID != "v1" || dst.TimestampSeconds != 42 {
		t.Errorf("unexpected decode result %+v", dst)
	}
}

func TestDecodeJSONRejects(t *testing.T) {
	tests := []struct {
		name string
		body string
		want error
	}{
		{"empty", "", errEmptyBody},
		{"malformed", "{not json", nil},
		{"two objects", `{"body":"a"}{"body":"b"}`, errTrailingData},
		{"trailing garbage", `{"body":"a"} x`, errTrailingData},
		{"oversized", `{"body":"` + strings.Repeat("x", MaxBodyBytes) + `"}`, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var dst map[string]any
			req := httptest.NewRequest(http.MethodPost, "/api/notes", strings.NewReader(tt.body))
			err := DecodeJSON(req, &dst)
			if err == nil {
				t.Fatal("expected error")
			}
			if tt.want != nil && !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}
}
