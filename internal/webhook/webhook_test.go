package webhook

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v4"
)

var fastRetries = []time.Duration{time.Millisecond, time.Millisecond}

func newMock(t *testing.T) pgxmock.PgxPoolIface {
	t.Helper()
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("create pgxmock pool: %v", err)
	}
	t.Cleanup(mock.Close)
	return mock
}

func expectDeliveryLog(mock pgxmock.PgxPoolIface, eventName string, n int) {
	mock.ExpectExec("INSERT INTO webhook_deliveries").
		WithArgs(pgxmock.AnyArg(), "user-1", eventName, pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), n).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
}

// noStatus matches the NULL status_code logged for transport failures.
type noStatus struct{}

func (noStatus) Match(v any) bool {
	p, ok := v.(*int)
	return ok && p == nil
}

// statusSequence answers with codes in order, repeating the last one.
func statusSequence(codes ...int) (http.Handler, *atomic.Int32) {
	var calls atomic.Int32
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		i := int(calls.Add(1)) - 1
		if i >= len(codes) {
			i = len(codes) - 1
		}
		w.WriteHeader(codes[i])
	}), &calls
}

func TestSignPayload(t *testing.T) {
	payload := []byte(`{"event":"video.completed","data":{}}`)

	mac := hmac.New(sha256.New, []byte("test-secret"))
	mac.Write(payload)
	want := "sha256=" + hex.EncodeToString(mac.Sum(nil))

	if got := SignPayload("test-secret", payload); got != want {
		t.Errorf("expected signature %s, got %s", want, got)
	}
	if SignPayload("secret-one", payload) == SignPayload("secret-two", payload) {
		t.Error("different secrets should produce different signatures")
	}
}

func TestEventConstructors(t *testing.T) {
	at := time.Date(2026, 10, 16, 14, 0, 0, 0, time.FixedZone("CEST", 2*3600))

	got := []Event{VideoCompleted("v1", at), ChapterCompleted("c1", at)}
	want := []Event{
		{Name: EventVideoCompleted, Timestamp: at.UTC(), Data: map[string]any{"videoId": "v1"}},
		{Name: EventChapterCompleted, Timestamp: at.UTC(), Data: map[string]any{"chapterId": "c1"}},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("events mismatch (-want +got):\n%s", diff)
	}
}

func TestDispatchSignsAndLabelsRequest(t *testing.T) {
	mock := newMock(t)
	var header http.Header
	var body []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header = r.Header.Clone()
		body, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	event := VideoCompleted("abc123", time.Date(2026, 10, 16, 12, 0, 0, 0, time.UTC))
	expectDeliveryLog(mock, EventVideoCompleted, 1)

	client := New(mock, Config{URL: srv.URL, Secret: "my-secret", RetryDelays: fastRetries})
	if err := client.Dispatch(context.Background(), "user-1", event); err != nil {
		t.Fatalf("dispatch: %v", err)
	}

	if got := header.Get(SignatureHeader); got != SignPayload("my-secret", body) {
		t.Errorf("signature %q does not match body", got)
	}
	if got := header.Get(EventHeader); got != EventVideoCompleted {
		t.Errorf("expected event header %q, got %q", EventVideoCompleted, got)
	}
	if _, err := uuid.Parse(header.Get(DeliveryHeader)); err != nil {
		t.Errorf("expected a uuid delivery id, got %q", header.Get(DeliveryHeader))
	}
	var received Event
	if err := json.Unmarshal(body, &received); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if diff := cmp.Diff(event, received); diff != "" {
		t.Errorf("payload mismatch (-want +got):\n%s", diff)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet mock expectations: %v", err)
	}
}

func TestDispatchRetryPolicy(t *testing.T) {
	tests := []struct {
		name     string
		codes    []int
		attempts int
		wantErr  string
	}{
		{"recovers after server errors", []int{500, 502, 200}, 3, ""},
		{"gives up after retries", []int{502}, 3, "status 502"},
		{"retries throttling", []int{429, 204}, 2, ""},
		{"stops on rejection", []int{400}, 1, "status 400"},
		{"stops on gone", []int{410}, 1, "status 410"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := newMock(t)
			handler, calls := statusSequence(tt.codes...)
			srv := httptest.NewServer(handler)
			defer srv.Close()
			for n := 1; n <= tt.attempts; n++ {
				expectDeliveryLog(mock, EventChapterCompleted, n)
			}

			client := New(mock, Config{URL: srv.URL, Secret: "secret", RetryDelays: fastRetries})
			err := client.Dispatch(context.Background(), "user-1", ChapterCompleted("c1", time.Now()))

			switch {
			case tt.wantErr == "" && err != nil:
				t.Fatalf("expected delivery, got %v", err)
			case tt.wantErr != "" && (err == nil || !strings.Contains(err.Error(), tt.wantErr)):
				t.Fatalf("expected error containing %q, got %v", tt.wantErr, err)
			}
			if int(calls.Load()) != tt.attempts {
				t.Errorf("expected %d attempts, got %d", tt.attempts, calls.Load())
			}
			if err := mock.ExpectationsWereMet(); err != nil {
				t.Errorf("unmet mock expectations: %v", err)
			}
		})
	}
}

func TestDispatchKeepsDeliveryIDAcrossRetries(t *testing.T) {
	var mu sync.Mutex
	var ids []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		ids = append(ids, r.Header.Get(DeliveryHeader))
		mu.Unlock()
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	client := New(nil, Config{URL: srv.URL, Secret: "secret", RetryDelays: fastRetries})
	_ = client.Dispatch(context.Background(), "user-1", VideoCompleted("v1", time.Now()))

	if len(ids) != 3 || ids[0] == "" || ids[0] != ids[1] || ids[1] != ids[2] {
		t.Errorf("expected one delivery id on all 3 attempts, got %v", ids)
	}
}

func TestDispatchConnectionErrorLogsNullStatus(t *testing.T) {
	mock := newMock(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	unreachable := srv.URL
	srv.Close()

	for n := 1; n <= 3; n++ {
		mock.ExpectExec("INSERT INTO webhook_deliveries").
			WithArgs(pgxmock.AnyArg(), "user-1", EventVideoCompleted, pgxmock.AnyArg(), noStatus{}, pgxmock.AnyArg(), n).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))
	}

	client := New(mock, Config{URL: unreachable, Secret: "secret", RetryDelays: fastRetries})
	if err := client.Dispatch(context.Background(), "user-1", VideoCompleted("v3", time.Now())); err == nil {
		t.Fatal("expected error for unreachable URL")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet mock expectations: %v", err)
	}
}

func TestDispatchStopsWhenContextEnds(t *testing.T) {
	handler, calls := statusSequence(http.StatusInternalServerError)
	srv := httptest.NewServer(handler)
	defer srv.Close()

	client := New(nil, Config{URL: srv.URL, Secret: "secret", RetryDelays: []time.Duration{time.Hour}})
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	if err := client.Dispatch(ctx, "user-1", VideoCompleted("v1", time.Now())); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected context.DeadlineExceeded, got %v", err)
	}
	if calls.Load() != 1 {
		t.Errorf("expected a single attempt before the deadline, got %d", calls.Load())
	}
}

func TestResponseBodyTruncated(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(strings.Repeat("x", 2000)))
	}))
	defer srv.Close()

	client := New(nil, Config{URL: srv.URL, Secret: "secret"})
	a := client.post(context.Background(), "d1", EventVideoCompleted, []byte("{}"), "sha256=test")

	if !a.delivered() {
		t.Fatalf("expected delivered attempt, got %+v", a)
	}
	if len(a.body) != maxResponseBodyBytes {
		t.Errorf("expected body truncated to %d bytes, got %d", maxResponseBodyBytes, len(a.body))
	}
}

func TestDispatchAsync(t *testing.T) {
	handler, calls := statusSequence(http.StatusNoContent)
	srv := httptest.NewServer(handler)
	defer srv.Close()

	client := New(nil, Config{URL: srv.URL, Secret: "secret", RetryDelays: fastRetries})
	client.DispatchAsync("user-1", VideoCompleted("v1", time.Now()))
	client.Wait()

	if calls.Load() != 1 {
		t.Errorf("expected 1 delivery, got %d", calls.Load())
	}

	unset := New(nil, Config{})
	unset.DispatchAsync("user-1", VideoCompleted("v1", time.Now()))
	unset.Wait()
}
