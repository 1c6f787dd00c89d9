package repository

import (
	"context"
	"database/sql"
	"time"

	"controlling_tanks/internal/models"
)

type Authorization interface {
	Create(username, hash string) (int, error)
	GetByUsername(username string) (*models.Operator, error)
}

// EventRepo stores safety events for later querying.
type EventRepo interface {
	Append(ctx context.Context, e models.SafetyEvent) error
	List(ctx context.Context, from, to time.Time, typ string) ([]models.SafetyEvent, error)
}

// PumpStatsRepo keeps the cumulative counters that must survive a restart.
type PumpStatsRepo interface {
	SaveAll(ctx context.Context, stats []models.PumpStats) error
	LoadAll(ctx context.Context) ([]models.PumpStats, error)
}

// ReadingRepo stores the level history sampled by the supervisor.
type ReadingRepo interface {
	Append(ctx context.Context, r models.WaterLevelReading) error
	Recent(ctx context.Context, tankID string, limit int) ([]models.WaterLevelReading, error)
}

type Repository struct {
	EventRepo     EventRepo
	PumpStatsRepo PumpStatsRepo
	ReadingRepo   ReadingRepo
	Auth          Authorization
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{
		EventRepo:     NewEventSQLite(db),
		PumpStatsRepo: NewPumpStatsSQLite(db),
		ReadingRepo:   NewReadingSQLite(db),
		Auth:          NewOperatorRepository(db),
	}
}
