package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"controlling_tanks/internal/models"
)

const (
	upsertPumpStatsSQL = `
		INSERT INTO pump_stats (pump_id, pump_type, total_runtime_s, maintenance_hours, oscillation_count, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(pump_id) DO UPDATE SET
			pump_type=excluded.pump_type,
			total_runtime_s=excluded.total_runtime_s,
			maintenance_hours=excluded.maintenance_hours,
			oscillation_count=excluded.oscillation_count,
			updated_at=excluded.updated_at
	`
	selectPumpStatsSQL = `
		SELECT pump_id, pump_type, total_runtime_s, maintenance_hours, oscillation_count
		FROM pump_stats ORDER BY pump_id
	`
)

type PumpStatsSQLite struct {
	db  *sql.DB
	now func() time.Time
}

func NewPumpStatsSQLite(db *sql.DB) *PumpStatsSQLite {
	return &PumpStatsSQLite{db: db, now: time.Now}
}

// SaveAll upserts every snapshot in one transaction.
func (r *PumpStatsSQLite) SaveAll(ctx context.Context, stats []models.PumpStats) error {
	if len(stats) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin pump stats transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	ts := r.now().UTC()
	for _, s := range stats {
		if _, err := tx.ExecContext(ctx, upsertPumpStatsSQL,
			s.PumpID,
			string(s.PumpType),
			int64(s.TotalRuntimeSec),
			int64(s.MaintenanceHours),
			int64(s.OscillationCount),
			ts,
		); err != nil {
			return fmt.Errorf("upsert pump stats %s: %w", s.PumpID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit pump stats: %w", err)
	}
	return nil
}

// LoadAll returns the persisted counters. State is not stored; callers decide it.
func (r *PumpStatsSQLite) LoadAll(ctx context.Context) ([]models.PumpStats, error) {
	rows, err := r.db.QueryContext(ctx, selectPumpStatsSQL)
	if err != nil {
		return nil, fmt.Errorf("query pump stats: %w", err)
	}
	defer rows.Close()

	var out []models.PumpStats
	for rows.Next() {
		var (
			s                      models.PumpStats
			typ                    string
			runtime, hours, cycles int64
		)
		if err := rows.Scan(&s.PumpID, &typ, &runtime, &hours, &cycles); err != nil {
			return nil, fmt.Errorf("scan pump stats: %w", err)
		}
		s.PumpType = models.PumpType(typ)
		s.TotalRuntimeSec = uint64(runtime)
		s.MaintenanceHours = uint64(hours)
		s.OscillationCount = uint32(cycles)
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate pump stats: %w", err)
	}
	return out, nil
}
