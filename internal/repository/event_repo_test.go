package repository

import (
	"context"
	"encoding/json"
	"errors"
	"regexp"
	"strings"
	"testing"
	"time"

	"controlling_tanks/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
)

func testCtx(t *testing.T) context.Context {
	t.Helper()
	c, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	t.Cleanup(cancel)
	return c
}

func newSQLMock(t *testing.T) (sqlmock.Sqlmock, func() *EventSQLite) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock new: %v", err)
	}
	t.Cleanup(func() {
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("mock expectations: %v", err)
		}
		_ = db.Close()
	})
	return mock, func() *EventSQLite { return NewEventSQLite(db) }
}

var eventColumns = []string{"id", "occurred_at", "type", "pump_id", "tank_id", "message", "meta"}

func TestEventAppend_FillsDefaults(t *testing.T) {
	t.Parallel()

	mock, repo := newSQLMock(t)
	mock.ExpectExec(regexp.QuoteMeta(insertEventSQL)).
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), "PUMP_STARTED", "p1", nil, "Pump p1 started", `{"pump_type":"fill"}`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo().Append(testCtx(t), models.SafetyEvent{
		Type:        " pump_started ",
		PumpID:      "p1",
		Description: "Pump p1 started",
		Metadata:    map[string]any{"pump_type": "fill"},
	})
	if err != nil {
		t.Fatalf("Append: %v", err)
	}
}

func TestEventAppend_DBError(t *testing.T) {
	t.Parallel()

	mock, repo := newSQLMock(t)
	mock.ExpectExec("INSERT INTO safety_events").WillReturnError(errors.New("down"))

	err := repo().Append(testCtx(t), models.SafetyEvent{
		EventID:     "e1",
		Type:        models.EventEmergencyShutdown,
		Description: "x",
	})
	if err == nil || !strings.Contains(err.Error(), "down") {
		t.Fatalf("expected wrapped db error, got %v", err)
	}
}

func TestEventList_NoFilters(t *testing.T) {
	t.Parallel()

	mock, repo := newSQLMock(t)
	now := time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)
	js, _ := json.Marshal(map[string]any{"reason": "overflow"})

	rows := sqlmock.NewRows(eventColumns).
		AddRow("1", now, "EMERGENCY_SHUTDOWN", nil, "tank1", "stop", string(js)).
		AddRow("2", now.Add(time.Hour), "PUMP_STARTED", "p1", nil, "start", nil)
	mock.ExpectQuery(regexp.QuoteMeta(selectEventsSQL + " ORDER BY occurred_at ASC")).WillReturnRows(rows)

	got, err := repo().List(testCtx(t), time.Time{}, time.Time{}, "")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("want 2 events, got %d", len(got))
	}
	if got[0].Type != models.EventEmergencyShutdown || got[0].TankID != "tank1" || got[0].PumpID != "" {
		t.Fatalf("unexpected first event %+v", got[0])
	}
	b, _ := json.Marshal(got[0].Metadata)
	if string(b) != string(js) {
		t.Fatalf("metadata = %s, want %s", b, js)
	}
	if got[1].PumpID != "p1" || got[1].Metadata != nil {
		t.Fatalf("unexpected second event %+v", got[1])
	}
}

func TestEventList_WithFilters(t *testing.T) {
	t.Parallel()

	mock, repo := newSQLMock(t)
	from := time.Date(2025, 1, 1, 11, 0, 0, 0, time.UTC)
	to := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)

	q := selectEventsSQL + " WHERE occurred_at >= ? AND occurred_at <= ? AND type = ? ORDER BY occurred_at ASC"
	mock.ExpectQuery(regexp.QuoteMeta(q)).
		WithArgs("2025-01-01 11:00:00", "2025-01-01 12:00:00", "SAFETY_CHECK_FAILED").
		WillReturnRows(sqlmock.NewRows(eventColumns).AddRow("3", from, "SAFETY_CHECK_FAILED", "p2", nil, "denied", nil))

	got, err := repo().List(testCtx(t), from, to, " safety_check_failed ")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(got) != 1 || got[0].EventID != "3" {
		t.Fatalf("unexpected results: %+v", got)
	}
}

func TestEventList_ScanError(t *testing.T) {
	t.Parallel()

	mock, repo := newSQLMock(t)
	mock.ExpectQuery("SELECT id, occurred_at").
		WillReturnRows(sqlmock.NewRows(eventColumns).AddRow("x", "not-a-time", "PUMP_STOPPED", nil, nil, "m", nil))

	if _, err := repo().List(testCtx(t), time.Time{}, time.Time{}, ""); err == nil {
		t.Fatal("expected scan error")
	}
}
