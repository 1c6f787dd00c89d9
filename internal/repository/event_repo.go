package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"controlling_tanks/internal/models"

	"github.com/google/uuid"
)

// sqliteTimeLayout matches SQLite's TIMESTAMP text form.
const sqliteTimeLayout = "2006-01-02 15:04:05"

const (
	insertEventSQL = `
		INSERT INTO safety_events (id, occurred_at, type, pump_id, tank_id, message, meta)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	selectEventsSQL = `SELECT id, occurred_at, type, pump_id, tank_id, message, meta FROM safety_events`
)

type EventSQLite struct {
	db *sql.DB
}

func NewEventSQLite(db *sql.DB) *EventSQLite { return &EventSQLite{db: db} }

// Append inserts an event, filling in the id and timestamp when missing.
func (r *EventSQLite) Append(ctx context.Context, e models.SafetyEvent) error {
	if e.EventID == "" {
		e.EventID = uuid.NewString()
	}
	if e.OccurredAt.IsZero() {
		e.OccurredAt = time.Now()
	}

	var meta *string
	if e.Metadata != nil {
		b, err := json.Marshal(e.Metadata)
		if err != nil {
			return fmt.Errorf("marshal event metadata: %w", err)
		}
		s := string(b)
		meta = &s
	}

	_, err := r.db.ExecContext(ctx, insertEventSQL,
		e.EventID,
		e.OccurredAt.UTC().Format(sqliteTimeLayout),
		strings.ToUpper(strings.TrimSpace(string(e.Type))),
		nullString(e.PumpID),
		nullString(e.TankID),
		e.Description,
		meta,
	)
	if err != nil {
		return fmt.Errorf("insert safety event %s: %w", e.EventID, err)
	}
	return nil
}

// List returns events in [from, to] (zero bounds are open) optionally
// restricted to one type, oldest first.
func (r *EventSQLite) List(ctx context.Context, from, to time.Time, typ string) ([]models.SafetyEvent, error) {
	var (
		conds []string
		args  []any
	)
	if !from.IsZero() {
		conds = append(conds, "occurred_at >= ?")
		args = append(args, from.UTC().Format(sqliteTimeLayout))
	}
	if !to.IsZero() {
		conds = append(conds, "occurred_at <= ?")
		args = append(args, to.UTC().Format(sqliteTimeLayout))
	}
	if typ = strings.ToUpper(strings.TrimSpace(typ)); typ != "" {
		conds = append(conds, "type = ?")
		args = append(args, typ)
	}

	q := selectEventsSQL
	if len(conds) > 0 {
		q += " WHERE " + strings.Join(conds, " AND ")
	}
	q += " ORDER BY occurred_at ASC"

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query safety events: %w", err)
	}
	defer rows.Close()

	out := make([]models.SafetyEvent, 0, 64)
	for rows.Next() {
		var (
			ev             models.SafetyEvent
			typ            string
			pumpID, tankID sql.NullString
			meta           sql.NullString
		)
		if err := rows.Scan(&ev.EventID, &ev.OccurredAt, &typ, &pumpID, &tankID, &ev.Description, &meta); err != nil {
			return nil, fmt.Errorf("scan safety event: %w", err)
		}
		ev.Type = models.SafetyEventType(typ)
		ev.OccurredAt = ev.OccurredAt.UTC()
		ev.PumpID = pumpID.String
		ev.TankID = tankID.String

		if meta.Valid && meta.String != "" {
			var v any
			if err := json.Unmarshal([]byte(meta.String), &v); err == nil {
				ev.Metadata = v
			} else {
				ev.Metadata = meta.String
			}
		}
		out = append(out, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate safety events: %w", err)
	}
	return out, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
