package repository

import (
	"context"
	"database/sql"
	"fmt"

	"controlling_tanks/internal/models"
)

const (
	insertReadingSQL = `
		INSERT INTO level_readings (tank_id, level_cm, level_percent, sensor_type, is_valid, error, recorded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	selectRecentReadingsSQL = `
		SELECT tank_id, level_cm, level_percent, sensor_type, is_valid, error, recorded_at
		FROM level_readings WHERE tank_id = ? ORDER BY recorded_at DESC LIMIT ?
	`
)

type ReadingSQLite struct {
	db *sql.DB
}

func NewReadingSQLite(db *sql.DB) *ReadingSQLite {
	return &ReadingSQLite{db: db}
}

func (r *ReadingSQLite) Append(ctx context.Context, rd models.WaterLevelReading) error {
	_, err := r.db.ExecContext(ctx, insertReadingSQL,
		rd.TankID,
		rd.LevelCm,
		rd.LevelPercent,
		rd.SensorType,
		rd.IsValid,
		nullString(rd.ErrorMessage),
		rd.Timestamp.UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert level reading for %s: %w", rd.TankID, err)
	}
	return nil
}

// Recent returns up to limit readings of a tank, newest first.
func (r *ReadingSQLite) Recent(ctx context.Context, tankID string, limit int) ([]models.WaterLevelReading, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.db.QueryContext(ctx, selectRecentReadingsSQL, tankID, limit)
	if err != nil {
		return nil, fmt.Errorf("query level readings: %w", err)
	}
	defer rows.Close()

	out := make([]models.WaterLevelReading, 0, limit)
	for rows.Next() {
		var (
			rd  models.WaterLevelReading
			msg sql.NullString
		)
		if err := rows.Scan(&rd.TankID, &rd.LevelCm, &rd.LevelPercent, &rd.SensorType, &rd.IsValid, &msg, &rd.Timestamp); err != nil {
			return nil, fmt.Errorf("scan level reading: %w", err)
		}
		rd.ErrorMessage = msg.String
		rd.Timestamp = rd.Timestamp.UTC()
		out = append(out, rd)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate level readings: %w", err)
	}
	return out, nil
}
