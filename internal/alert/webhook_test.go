package alert

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"controlling_tanks/internal/models"

	"github.com/cenkalti/backoff/v4"
	"github.com/sony/gobreaker"
)

func testEvent() models.SafetyEvent {
	return models.SafetyEvent{
		EventID:     "ev-1",
		OccurredAt:  time.Date(2025, 5, 1, 8, 0, 0, 0, time.UTC),
		Type:        models.EventEmergencyShutdown,
		Description: "Emergency shutdown: overflow",
	}
}

func newTestWebhook(url string) *Webhook {
	w := NewWebhook(url, time.Second, nil)
	w.newBackOff = func() backoff.BackOff { return &backoff.ZeroBackOff{} }
	return w
}

func TestWebhook_Alert_PostsJSON(t *testing.T) {
	t.Parallel()

	var got webhookPayload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.Header.Get("Content-Type") != "application/json" {
			t.Errorf("unexpected request %s %s", r.Method, r.Header.Get("Content-Type"))
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode: %v", err)
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	if err := newTestWebhook(srv.URL).Alert(context.Background(), testEvent()); err != nil {
		t.Fatalf("Alert: %v", err)
	}
	if got.Event.EventID != "ev-1" || got.Text != "[EMERGENCY_SHUTDOWN] Emergency shutdown: overflow" {
		t.Fatalf("payload = %+v", got)
	}
}

func TestWebhook_Alert_RetriesServerErrors(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	if err := newTestWebhook(srv.URL).Alert(context.Background(), testEvent()); err != nil {
		t.Fatalf("Alert: %v", err)
	}
	if calls.Load() != 3 {
		t.Fatalf("calls = %d, want 3", calls.Load())
	}
}

func TestWebhook_Alert_ClientErrorIsNotRetried(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	if err := newTestWebhook(srv.URL).Alert(context.Background(), testEvent()); err == nil {
		t.Fatal("expected error")
	}
	if calls.Load() != 1 {
		t.Fatalf("calls = %d, want 1", calls.Load())
	}
}

func TestWebhook_Alert_BreakerOpens(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	wh := newTestWebhook(srv.URL)
	for i := 0; i < breakerFailures; i++ {
		if err := wh.Alert(context.Background(), testEvent()); err == nil {
			t.Fatalf("attempt %d: expected error", i)
		}
	}
	before := calls.Load()

	err := wh.Alert(context.Background(), testEvent())
	if !errors.Is(err, gobreaker.ErrOpenState) {
		t.Fatalf("expected open breaker, got %v", err)
	}
	if calls.Load() != before {
		t.Fatal("open breaker must not reach the endpoint")
	}
}
