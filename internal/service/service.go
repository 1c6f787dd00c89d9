package service

import (
	"context"
	"time"

	"controlling_tanks/internal/models"
	"controlling_tanks/internal/repository"
	"controlling_tanks/internal/waterlevel"
)

type Authorization interface {
	SignUp(username, password string) (int, error)
	GenerateToken(username, password string) (string, error)
	ParseToken(accessToken string) (int, error)
}

// PumpSafety is the authority every pump start and stop goes through.
type PumpSafety interface {
	CanStartPump(ctx context.Context, pumpID string, t models.PumpType) error
	StartPump(ctx context.Context, pumpID string, t models.PumpType) error
	StartOscillation(ctx context.Context, pumpID string, t models.PumpType) error
	RegisterPumpStart(ctx context.Context, pumpID string, t models.PumpType) error
	RegisterOscillationStart(ctx context.Context, pumpID string, t models.PumpType) error
	RegisterPumpStop(ctx context.Context, pumpID, reason string) error
	CheckRuntimeLimit(pumpID string, t models.PumpType) bool
	CheckOscillationSafety(ctx context.Context, pumpID string, speedMs int) error
	ResetOscillationCounter(pumpID string) error
	EmergencyShutdown(ctx context.Context, reason string) error
	ResetEmergencyStop(ctx context.Context) error
	EmergencyStatus() (bool, *models.EmergencyMarker)
	MarkFault(ctx context.Context, pumpID, reason string) error
	ClearFault(pumpID string) error
	EnterMaintenance(pumpID string) error
	CompleteMaintenance(pumpID string) error
	CalibratePump(ctx context.Context, pumpID string, t models.PumpType, actualLevelCm *float64) (models.PumpCalibration, error)
	GetPumpStats(pumpID string) (models.PumpStats, error)
	AllPumpStats() []models.PumpStats
	RecentEvents(limit int) []models.SafetyEvent
}

// Levels is the water-level query point.
type Levels interface {
	GetTankLevel(tankID string) (models.WaterLevelReading, error)
	GetAllLevels() []models.WaterLevelReading
	CalibrateTank(tankID string, actualLevelCm float64) error
	GetStats() []waterlevel.MonitorStats
	TankIDs() []string
}

// LevelHistory serves stored tank readings.
type LevelHistory interface {
	History(ctx context.Context, tankID string, limit int) ([]models.WaterLevelReading, error)
}

// Monitoring exposes the read-only system snapshot.
type Monitoring interface {
	GetStatus(ctx context.Context) (models.SystemStatus, error)
}

// EventLog exposes the persisted safety events with filtering.
type EventLog interface {
	List(ctx context.Context, f LogFilter) ([]models.SafetyEvent, error)
}

// Supervisor runs the background loop that samples tanks and watches pumps.
// Stop via context cancellation in main() for graceful shutdown.
type Supervisor interface {
	Run(ctx context.Context, tick time.Duration)
}

// Service aggregates the sub-services handed to the HTTP layer.
type Service struct {
	PumpSafety
	Levels
	LevelHistory
	Monitoring
	EventLog
	Supervisor
	Authorization
}

// Deps are the already-built collaborators NewService wires together.
type Deps struct {
	Safety     *PumpSafetyService
	Levels     *waterlevel.System
	Auth       *AuthService
	Supervisor *SupervisorService
}

func NewService(repos *repository.Repository, d Deps) *Service {
	return &Service{
		PumpSafety:    d.Safety,
		Levels:        d.Levels,
		LevelHistory:  NewLevelHistoryService(repos.ReadingRepo, d.Levels.TankIDs),
		Monitoring:    NewMonitoringService(d.Safety, d.Levels),
		EventLog:      NewEventLogService(repos.EventRepo),
		Supervisor:    d.Supervisor,
		Authorization: d.Auth,
	}
}

var (
	_ PumpSafety    = (*PumpSafetyService)(nil)
	_ Levels        = (*waterlevel.System)(nil)
	_ LevelHistory  = (*LevelHistoryService)(nil)
	_ Monitoring    = (*MonitoringService)(nil)
	_ EventLog      = (*EventLogService)(nil)
	_ Supervisor    = (*SupervisorService)(nil)
	_ Authorization = (*AuthService)(nil)
)
