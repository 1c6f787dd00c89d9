package service

import (
	"context"
	"fmt"
	"time"

	"controlling_tanks/internal/logger"
	"controlling_tanks/internal/metrics"
	"controlling_tanks/internal/models"
	"controlling_tanks/internal/sensor"
)

// supervisedSafety is what the supervisor needs from PumpSafetyService.
type supervisedSafety interface {
	AllPumpStats() []models.PumpStats
	EmergencyStatus() (bool, *models.EmergencyMarker)
	EmergencyShutdown(ctx context.Context, reason string) error
	CheckRuntimeLimit(pumpID string, t models.PumpType) bool
	ReportOverflow(ctx context.Context, tankID string, r models.WaterLevelReading)
	ReportRuntimeExceeded(ctx context.Context, pumpID string, t models.PumpType, ran time.Duration)
}

// ReadingSink stores sampled level readings (SQLite history, InfluxDB...).
type ReadingSink interface {
	Append(ctx context.Context, r models.WaterLevelReading) error
}

// SupervisorService samples every tank on a tick and watches running pumps.
type SupervisorService struct {
	safety   supervisedSafety
	levels   levelSource
	overflow sensor.OverflowProvider
	sinks    []ReadingSink
	metrics  *metrics.Metrics
	log      *logger.Logger
	now      func() time.Time

	overflowing map[string]bool
	// run start already reported as over the limit, per pump
	reported map[string]time.Time
}

func NewSupervisorService(safety supervisedSafety, levels levelSource, overflow sensor.OverflowProvider,
	m *metrics.Metrics, log *logger.Logger, sinks ...ReadingSink) *SupervisorService {
	if log == nil {
		log = logger.NewNop()
	}
	return &SupervisorService{
		safety:      safety,
		levels:      levels,
		overflow:    overflow,
		sinks:       sinks,
		metrics:     m,
		log:         log,
		now:         time.Now,
		overflowing: make(map[string]bool),
		reported:    make(map[string]time.Time),
	}
}

// Run ticks at the given interval until ctx is canceled.
func (s *SupervisorService) Run(ctx context.Context, tick time.Duration) {
	t := time.NewTicker(tick)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			s.Tick(ctx)
		}
	}
}

// Tick runs one supervision pass. Run calls it; tests call it directly.
func (s *SupervisorService) Tick(ctx context.Context) {
	readings := s.levels.GetAllLevels()
	for _, r := range readings {
		s.metrics.ObserveLevel(r.TankID, r.LevelPercent, r.IsValid)
		s.store(ctx, r)
		s.checkOverflow(ctx, r)
	}
	s.checkRuntime(ctx)
}

func (s *SupervisorService) store(ctx context.Context, r models.WaterLevelReading) {
	for _, sink := range s.sinks {
		if err := sink.Append(ctx, r); err != nil {
			s.log.Warnw("reading_store_failed", "tank_id", r.TankID, "sink", fmt.Sprintf("%T", sink), "err", err)
		}
	}
}

func (s *SupervisorService) checkOverflow(ctx context.Context, r models.WaterLevelReading) {
	if s.overflow == nil {
		return
	}
	over, err := s.overflow.IsOverflowing(r.TankID)
	if err != nil {
		s.log.Warnw("overflow_read_failed", "tank_id", r.TankID, "err", err)
		return
	}
	was := s.overflowing[r.TankID]
	s.overflowing[r.TankID] = over
	if !over {
		if was {
			s.log.Infow("overflow_cleared", "tank_id", r.TankID)
		}
		return
	}
	if !was {
		s.safety.ReportOverflow(ctx, r.TankID, r)
	}

	if active, _ := s.safety.EmergencyStatus(); active {
		return
	}
	for _, p := range s.safety.AllPumpStats() {
		if p.PumpType == models.PumpFill && p.State.IsActive() && TankForPumpType(p.PumpType) == r.TankID {
			reason := fmt.Sprintf("overflow on %s while fill pump %s is running", r.TankID, p.PumpID)
			if err := s.safety.EmergencyShutdown(ctx, reason); err != nil {
				s.log.Errorw("emergency_shutdown_incomplete", "err", err)
			}
			return
		}
	}
}

func (s *SupervisorService) checkRuntime(ctx context.Context) {
	now := s.now()
	for _, p := range s.safety.AllPumpStats() {
		if !p.State.IsActive() || p.StartedAt.IsZero() {
			delete(s.reported, p.PumpID)
			continue
		}
		if s.safety.CheckRuntimeLimit(p.PumpID, p.PumpType) {
			continue
		}
		if started, ok := s.reported[p.PumpID]; ok && started.Equal(p.StartedAt) {
			continue
		}
		s.reported[p.PumpID] = p.StartedAt
		s.safety.ReportRuntimeExceeded(ctx, p.PumpID, p.PumpType, now.Sub(p.StartedAt))
	}
}
