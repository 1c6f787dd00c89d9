package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"controlling_tanks/internal/models"
	"controlling_tanks/internal/service"

	"github.com/gin-gonic/gin"
)

func doGet(r *gin.Engine, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	for k, vv := range authHeader("valid") {
		for _, v := range vv {
			req.Header.Add(k, v)
		}
	}
	r.ServeHTTP(w, req)
	return w
}

func TestLogsHandler_ListAndValidation(t *testing.T) {
	auth := &mockAuth{parseID: 99}
	now := time.Now().UTC().Truncate(time.Second)
	events := []models.SafetyEvent{
		{EventID: "e1", OccurredAt: now, Type: models.EventPumpStarted, PumpID: "p1", Description: "start"},
		{EventID: "e2", OccurredAt: now.Add(1 * time.Second), Type: models.EventSafetyCheckFailed, PumpID: "p1", Description: "cooldown"},
	}
	logs := &mockEventLog{resp: events}
	s := &service.Service{
		Authorization: auth,
		EventLog:      logs,
	}
	r := newTestRouter(s)

	// invalid 'from' → 400
	if w := doGet(r, "/api/v1/logs/?from=notatime"); w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 invalid 'from', got %d", w.Code)
	}

	// from after to → 400
	if w := doGet(r, "/api/v1/logs/?from=2025-08-02&to=2025-08-01T00:00:00Z"); w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for inverted range, got %d", w.Code)
	}

	// Valid range and type (lowercase type is normalized to upper in the service call)
	q := "/api/v1/logs/?from=" + now.Format(time.RFC3339) + "&to=" + now.Add(2*time.Second).Format(time.RFC3339) + "&type=safety_check_failed"
	w := doGet(r, q)
	if w.Code != http.StatusOK {
		t.Fatalf("logs status=%d, body=%s", w.Code, w.Body.String())
	}
	var out struct {
		Count  int                  `json:"count"`
		Events []models.SafetyEvent `json:"events"`
	}
	_ = json.Unmarshal(w.Body.Bytes(), &out)
	if out.Count != 2 || len(out.Events) != 2 {
		t.Fatalf("unexpected response: %+v", out)
	}
	if logs.lastType != "SAFETY_CHECK_FAILED" {
		t.Fatalf("expected lastType SAFETY_CHECK_FAILED, got %q", logs.lastType)
	}
	if !logs.lastFrom.Equal(now) {
		t.Fatalf("lastFrom = %v, want %v", logs.lastFrom, now)
	}
}

func TestLogsHandler_DateOnlyToIsEndOfDay(t *testing.T) {
	logs := &mockEventLog{}
	r := newTestRouter(&service.Service{Authorization: &mockAuth{parseID: 1}, EventLog: logs})

	if w := doGet(r, "/api/v1/logs/?to=2025-08-31"); w.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
	want := time.Date(2025, 8, 31, 23, 59, 59, 999999999, time.UTC)
	if !logs.lastTo.Equal(want) {
		t.Fatalf("lastTo = %v, want %v", logs.lastTo, want)
	}
}

type nopEventRepo struct{}

func (nopEventRepo) Append(context.Context, models.SafetyEvent) error { return nil }
func (nopEventRepo) List(context.Context, time.Time, time.Time, string) ([]models.SafetyEvent, error) {
	return nil, nil
}

func TestLogsHandler_UnknownTypeIsBadRequest(t *testing.T) {
	s := &service.Service{
		Authorization: &mockAuth{parseID: 1},
		EventLog:      service.NewEventLogService(nopEventRepo{}),
	}
	r := newTestRouter(s)
	if w := doGet(r, "/api/v1/logs/?type=bogus"); w.Code != http.StatusBadRequest {
		t.Fatalf("status=%d, want 400; body=%s", w.Code, w.Body.String())
	}
	if w := doGet(r, "/api/v1/logs/?type=overflow_detected"); w.Code != http.StatusOK {
		t.Fatalf("status=%d, want 200; body=%s", w.Code, w.Body.String())
	}
}

func TestLogsHandler_StorageErrorIs500(t *testing.T) {
	logs := &mockEventLog{err: errors.New("db down")}
	r := newTestRouter(&service.Service{Authorization: &mockAuth{parseID: 1}, EventLog: logs})
	w := doGet(r, "/api/v1/logs/")
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status=%d, want 500", w.Code)
	}
	if strings.Contains(w.Body.String(), "db down") {
		t.Fatalf("internal error leaked: %s", w.Body.String())
	}
}

func TestRecentEvents_Limit(t *testing.T) {
	pumps := &mockPumps{events: []models.SafetyEvent{{EventID: "a", Type: models.EventPumpStopped}}}
	r := newTestRouter(&service.Service{Authorization: &mockAuth{parseID: 1}, PumpSafety: pumps})

	cases := []struct {
		query     string
		wantCode  int
		wantLimit int
	}{
		{"", http.StatusOK, defaultRecentLimit},
		{"?limit=5", http.StatusOK, 5},
		{"?limit=99999", http.StatusOK, maxRecentLimit},
		{"?limit=0", http.StatusBadRequest, 0},
		{"?limit=abc", http.StatusBadRequest, 0},
	}
	for _, tc := range cases {
		pumps.lastLimit = 0
		w := doGet(r, "/api/v1/logs/recent"+tc.query)
		if w.Code != tc.wantCode {
			t.Fatalf("%q: status=%d, want %d", tc.query, w.Code, tc.wantCode)
		}
		if pumps.lastLimit != tc.wantLimit {
			t.Fatalf("%q: limit=%d, want %d", tc.query, pumps.lastLimit, tc.wantLimit)
		}
	}
}
