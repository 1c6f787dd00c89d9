package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"controlling_tanks/internal/config"
	"controlling_tanks/internal/logger"
	"controlling_tanks/internal/metrics"
	"controlling_tanks/internal/models"
	"controlling_tanks/internal/repository"
	"controlling_tanks/internal/sensor"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
)

// LevelReader is the part of the water-level system the safety monitor uses.
type LevelReader interface {
	GetTankLevel(tankID string) (models.WaterLevelReading, error)
	CalibrateTank(tankID string, actualLevelCm float64) error
}

// EventRecorder persists safety events (SQLite, journal, MQTT...).
type EventRecorder interface {
	Append(ctx context.Context, e models.SafetyEvent) error
}

// Alerter notifies people about an emergency shutdown.
type Alerter interface {
	Alert(ctx context.Context, e models.SafetyEvent) error
}

// MarkerStore persists the emergency latch across restarts.
type MarkerStore interface {
	Write(m models.EmergencyMarker) error
	Read() (*models.EmergencyMarker, error)
	Remove() error
}

type CalibrationStore interface {
	Save(c models.PumpCalibration) error
}

// PumpSafetyDeps are the collaborators of PumpSafetyService. Only Levels is
// required; nil fields fall back to no-ops.
type PumpSafetyDeps struct {
	Levels       LevelReader
	Overflow     sensor.OverflowProvider
	Recorder     EventRecorder
	Alerter      Alerter
	Markers      MarkerStore
	Calibrations CalibrationStore
	Stats        repository.PumpStatsRepo
	Metrics      *metrics.Metrics
	Log          *logger.Logger
	Clock        Clock
}

const alertTimeout = 30 * time.Second

var pumpStates = []string{
	string(models.PumpIdle),
	string(models.PumpRunning),
	string(models.PumpOscillating),
	string(models.PumpCooldown),
	string(models.PumpEmergencyStop),
	string(models.PumpMaintenance),
	string(models.PumpFault),
}

// pumpRecord is everything tracked for one pump, guarded by PumpSafetyService.mu.
type pumpRecord struct {
	state             models.PumpState
	pumpType          models.PumpType
	startedAt         time.Time
	lastOperationAt   time.Time
	totalRuntime      time.Duration
	maintenanceHours  uint64
	oscillationCycles uint32
	faultReason       string
}

// stopClock folds the current run into the runtime counters.
func (r *pumpRecord) stopClock(now time.Time) time.Duration {
	if r.startedAt.IsZero() {
		return 0
	}
	ran := now.Sub(r.startedAt)
	if ran < 0 {
		ran = 0
	}
	r.totalRuntime += ran
	r.maintenanceHours += uint64(ran / time.Hour)
	r.startedAt = time.Time{}
	return ran
}

func (r *pumpRecord) snapshot(id string) models.PumpStats {
	return models.PumpStats{
		PumpID:           id,
		PumpType:         r.pumpType,
		State:            r.state,
		StartedAt:        r.startedAt,
		LastOperationAt:  r.lastOperationAt,
		TotalRuntimeSec:  uint64(r.totalRuntime / time.Second),
		MaintenanceHours: r.maintenanceHours,
		OscillationCount: r.oscillationCycles,
		FaultReason:      r.faultReason,
	}
}

// PumpSafetyService is the single authority over pump state. Every start must
// be approved by CanStartPump and every transition goes through it.
type PumpSafetyService struct {
	cfg          config.SafetyConfig
	levels       LevelReader
	overflow     sensor.OverflowProvider
	recorder     EventRecorder
	alerter      Alerter
	markers      MarkerStore
	calibrations CalibrationStore
	stats        repository.PumpStatsRepo
	metrics      *metrics.Metrics
	log          *logger.Logger
	clock        Clock
	scheduler    *keyedScheduler

	mu    sync.Mutex
	pumps map[string]*pumpRecord

	// Writers of the latch hold mu first, so a start registered under mu
	// either sees the latch or is caught by the shutdown sweep.
	emergencyMu sync.RWMutex
	emergency   bool
	marker      *models.EmergencyMarker

	historyMu sync.Mutex
	history   []models.SafetyEvent

	alerts sync.WaitGroup
}

func NewPumpSafetyService(cfg config.SafetyConfig, deps PumpSafetyDeps) *PumpSafetyService {
	if deps.Log == nil {
		deps.Log = logger.NewNop()
	}
	if deps.Clock == nil {
		deps.Clock = systemClock{}
	}
	if cfg.HistoryLimit < 1 {
		cfg.HistoryLimit = 1000
	}
	return &PumpSafetyService{
		cfg:          cfg,
		levels:       deps.Levels,
		overflow:     deps.Overflow,
		recorder:     deps.Recorder,
		alerter:      deps.Alerter,
		markers:      deps.Markers,
		calibrations: deps.Calibrations,
		stats:        deps.Stats,
		metrics:      deps.Metrics,
		log:          deps.Log,
		clock:        deps.Clock,
		scheduler:    newKeyedScheduler(deps.Clock),
		pumps:        make(map[string]*pumpRecord),
	}
}

// TankForPumpType maps a pump to the tank its level policy and calibration use.
func TankForPumpType(t models.PumpType) string {
	switch t {
	case models.PumpFill, models.PumpDrain:
		return config.Tank1
	default:
		return config.Tank2
	}
}

func (s *PumpSafetyService) cooldown() time.Duration {
	return time.Duration(s.cfg.CooldownSeconds) * time.Second
}

// record returns the pump's record, creating an idle one. Callers hold s.mu.
func (s *PumpSafetyService) record(id string, t models.PumpType) *pumpRecord {
	rec, ok := s.pumps[id]
	if !ok {
		rec = &pumpRecord{state: models.PumpIdle}
		s.pumps[id] = rec
	}
	if t != "" && !rec.state.IsActive() {
		rec.pumpType = t
	}
	return rec
}

func validatePump(id string, t models.PumpType) error {
	if err := models.ValidatePumpID(id); err != nil {
		return err
	}
	if t != "" {
		if _, err := models.ParsePumpType(string(t)); err != nil {
			return err
		}
	}
	return nil
}

// emit stamps ev, keeps it in the bounded history and hands it to the recorder.
func (s *PumpSafetyService) emit(ctx context.Context, ev models.SafetyEvent) models.SafetyEvent {
	ev.EventID = uuid.NewString()
	ev.OccurredAt = s.clock.Now().UTC()

	s.historyMu.Lock()
	s.history = append(s.history, ev)
	if over := len(s.history) - s.cfg.HistoryLimit; over > 0 {
		s.history = append([]models.SafetyEvent(nil), s.history[over:]...)
	}
	s.historyMu.Unlock()

	s.metrics.SafetyEvent(string(ev.Type))
	if s.recorder != nil {
		if err := s.recorder.Append(context.WithoutCancel(ctx), ev); err != nil {
			s.log.Errorw("safety_event_persist_failed", "event_id", ev.EventID, "type", ev.Type, "err", err)
		}
	}
	return ev
}

// RecentEvents returns up to limit of the newest in-memory events, oldest first.
func (s *PumpSafetyService) RecentEvents(limit int) []models.SafetyEvent {
	s.historyMu.Lock()
	defer s.historyMu.Unlock()
	start := 0
	if limit > 0 && len(s.history) > limit {
		start = len(s.history) - limit
	}
	return append([]models.SafetyEvent(nil), s.history[start:]...)
}

func (s *PumpSafetyService) emergencyActive() bool {
	return failClosed(s.log, "emergency_latch", true, func() bool {
		s.emergencyMu.RLock()
		defer s.emergencyMu.RUnlock()
		return s.emergency
	})
}

// EmergencyStatus reports the latch and, when engaged, why.
func (s *PumpSafetyService) EmergencyStatus() (bool, *models.EmergencyMarker) {
	s.emergencyMu.RLock()
	defer s.emergencyMu.RUnlock()
	if s.marker == nil {
		return s.emergency, nil
	}
	m := *s.marker
	return s.emergency, &m
}

// CanStartPump returns nil when the pump may start now, or a *DenialError
// naming the first rule that blocks it.
func (s *PumpSafetyService) CanStartPump(ctx context.Context, pumpID string, t models.PumpType) error {
	// While latched every request gets the emergency denial, even a malformed one.
	if !s.emergencyActive() {
		if err := validatePump(pumpID, t); err != nil {
			return err
		}
	}
	err := s.evaluateStart(pumpID, t)
	if err != nil {
		s.reportDenial(ctx, pumpID, t, "start", err)
	}
	return err
}

func (s *PumpSafetyService) evaluateStart(id string, t models.PumpType) error {
	if s.emergencyActive() {
		return deny(ErrEmergencyStop, "Emergency stop is active: pump %s cannot start", id)
	}

	s.mu.Lock()
	var rec pumpRecord
	if r, ok := s.pumps[id]; ok {
		rec = *r
	} else {
		rec.state = models.PumpIdle
	}
	s.mu.Unlock()

	switch rec.state {
	case models.PumpRunning:
		return deny(ErrPumpBusy, "pump %s is already running", id)
	case models.PumpOscillating:
		return deny(ErrPumpBusy, "pump %s is already oscillating", id)
	case models.PumpCooldown:
		return deny(ErrCooldown, "pump %s is in cooldown", id)
	case models.PumpFault:
		return deny(ErrPumpUnavailable, "pump %s is in fault state: %s", id, rec.faultReason)
	case models.PumpMaintenance:
		return deny(ErrPumpUnavailable, "pump %s is under maintenance", id)
	case models.PumpEmergencyStop:
		return deny(ErrPumpUnavailable, "pump %s is emergency stopped and must be reset", id)
	}

	if !rec.lastOperationAt.IsZero() {
		if remaining := s.cooldown() - s.clock.Now().Sub(rec.lastOperationAt); remaining > 0 {
			return deny(ErrCooldown, "pump %s is in cooldown: %d seconds remaining", id, int(math.Ceil(remaining.Seconds())))
		}
	}

	if err := s.checkLevelPolicy(t); err != nil {
		return err
	}

	if rec.maintenanceHours > s.cfg.MaintenanceIntervalHours {
		return deny(ErrMaintenanceDue, "pump %s has exceeded maintenance interval (%d h > %d h)",
			id, rec.maintenanceHours, s.cfg.MaintenanceIntervalHours)
	}
	return nil
}

func (s *PumpSafetyService) checkLevelPolicy(t models.PumpType) error {
	if t != models.PumpFill && t != models.PumpDrain {
		return nil
	}
	tank := TankForPumpType(t)
	pct := s.policyLevel(tank)

	if t == models.PumpFill && pct > s.cfg.FillMaxPercent {
		return deny(ErrLevelPolicy, "tank %s level %.1f%% is too high for fill (max %.0f%%)", tank, pct, s.cfg.FillMaxPercent)
	}
	if t == models.PumpDrain && pct < s.cfg.DrainMinPercent {
		return deny(ErrLevelPolicy, "tank %s level %.1f%% is too low for drain (min %.0f%%)", tank, pct, s.cfg.DrainMinPercent)
	}
	return nil
}

// policyLevel reads the tank level, falling back to the overflow switch when
// the level system cannot answer.
func (s *PumpSafetyService) policyLevel(tank string) float64 {
	if s.levels != nil {
		r, err := s.levels.GetTankLevel(tank)
		if err == nil {
			return r.LevelPercent
		}
		s.log.Warnw("policy_level_unavailable", "tank_id", tank, "err", err)
	}
	if s.overflow != nil {
		if over, err := s.overflow.IsOverflowing(tank); err == nil && over {
			return 95
		}
	}
	return 50
}

func (s *PumpSafetyService) reportDenial(ctx context.Context, id string, t models.PumpType, check string, err error) {
	label := denialLabel(err)
	s.metrics.StartDenied(label)
	s.log.Warnw("pump_check_failed", "pump_id", id, "check", check, "reason", err.Error())

	typ := models.EventSafetyCheckFailed
	if label == "maintenance" {
		typ = models.EventMaintenanceRequired
	}
	meta := map[string]any{"check": check, "reason": label}
	if t != "" {
		meta["pump_type"] = t
	}
	s.emit(ctx, models.SafetyEvent{
		Type:        typ,
		PumpID:      id,
		Description: err.Error(),
		Metadata:    meta,
	})
}

// StartPump checks and registers a start in one call.
func (s *PumpSafetyService) StartPump(ctx context.Context, id string, t models.PumpType) error {
	if err := s.CanStartPump(ctx, id, t); err != nil {
		return err
	}
	return s.RegisterPumpStart(ctx, id, t)
}

// StartOscillation checks and registers an oscillating run in one call.
func (s *PumpSafetyService) StartOscillation(ctx context.Context, id string, t models.PumpType) error {
	if err := s.CanStartPump(ctx, id, t); err != nil {
		return err
	}
	return s.RegisterOscillationStart(ctx, id, t)
}

// RegisterPumpStart records that an approved pump is now running.
func (s *PumpSafetyService) RegisterPumpStart(ctx context.Context, id string, t models.PumpType) error {
	return s.registerStart(ctx, id, t, models.PumpRunning)
}

// RegisterOscillationStart is RegisterPumpStart for oscillating operation; it
// also resets the cycle counter.
func (s *PumpSafetyService) RegisterOscillationStart(ctx context.Context, id string, t models.PumpType) error {
	return s.registerStart(ctx, id, t, models.PumpOscillating)
}

func (s *PumpSafetyService) registerStart(ctx context.Context, id string, t models.PumpType, to models.PumpState) error {
	if err := validatePump(id, t); err != nil {
		return err
	}

	now := s.clock.Now()
	s.mu.Lock()
	// EmergencyShutdown latches and sweeps under s.mu, so this check and the
	// transition below cannot straddle a shutdown.
	if s.emergencyActive() {
		s.mu.Unlock()
		return deny(ErrEmergencyStop, "Emergency stop is active: pump %s cannot start", id)
	}
	rec := s.record(id, t)
	if rec.state != models.PumpIdle {
		from := rec.state
		s.mu.Unlock()
		return fmt.Errorf("%w: cannot start pump %s from %s", ErrInvalidTransition, id, from)
	}
	rec.state = to
	rec.startedAt = now
	rec.lastOperationAt = now
	if to == models.PumpOscillating {
		rec.oscillationCycles = 0
	}
	pumpType := rec.pumpType
	s.mu.Unlock()

	s.scheduler.Cancel(id)
	s.metrics.PumpState(id, string(to), pumpStates)
	s.log.Infow("pump_started", "pump_id", id, "pump_type", pumpType, "state", to)
	s.emit(ctx, models.SafetyEvent{
		Type:        models.EventPumpStarted,
		PumpID:      id,
		TankID:      TankForPumpType(pumpType),
		Description: fmt.Sprintf("Pump %s started (%s)", id, to),
		Metadata:    map[string]any{"pump_type": pumpType, "mode": to},
	})
	return nil
}

// RegisterPumpStop ends a run, adds its duration to the runtime and
// maintenance counters and opens the cooldown window.
func (s *PumpSafetyService) RegisterPumpStop(ctx context.Context, id, reason string) error {
	if err := models.ValidatePumpID(id); err != nil {
		return err
	}

	now := s.clock.Now()
	s.mu.Lock()
	rec, ok := s.pumps[id]
	if !ok || !rec.state.IsActive() {
		state := models.PumpIdle
		if ok {
			state = rec.state
		}
		s.mu.Unlock()
		return fmt.Errorf("%w: pump %s is %s, not running", ErrInvalidTransition, id, state)
	}
	hoursBefore := rec.maintenanceHours
	ran := rec.stopClock(now)
	rec.state = models.PumpCooldown
	rec.lastOperationAt = now
	snap := rec.snapshot(id)
	s.mu.Unlock()

	s.scheduler.Schedule(id, s.cooldown(), func() { s.finishCooldown(id) })
	s.metrics.PumpState(id, string(models.PumpCooldown), pumpStates)
	s.log.Infow("pump_stopped", "pump_id", id, "reason", reason, "ran", ran.Round(time.Second))

	s.emit(ctx, models.SafetyEvent{
		Type:        models.EventPumpStopped,
		PumpID:      id,
		TankID:      TankForPumpType(snap.PumpType),
		Description: fmt.Sprintf("Pump %s stopped: %s", id, reason),
		Metadata: map[string]any{
			"reason":          reason,
			"runtime_s":       int64(ran / time.Second),
			"total_runtime_s": snap.TotalRuntimeSec,
		},
	})

	limit := s.cfg.MaintenanceIntervalHours
	if hoursBefore <= limit && snap.MaintenanceHours > limit {
		s.emit(ctx, models.SafetyEvent{
			Type:        models.EventMaintenanceRequired,
			PumpID:      id,
			Description: fmt.Sprintf("Pump %s reached %d operating hours", id, snap.MaintenanceHours),
			Metadata:    map[string]any{"maintenance_hours": snap.MaintenanceHours},
		})
	}
	return nil
}

func (s *PumpSafetyService) finishCooldown(id string) {
	s.mu.Lock()
	rec, ok := s.pumps[id]
	done := ok && rec.state == models.PumpCooldown
	if done {
		rec.state = models.PumpIdle
	}
	s.mu.Unlock()

	if done {
		s.metrics.PumpState(id, string(models.PumpIdle), pumpStates)
		s.log.Debugw("pump_cooldown_finished", "pump_id", id)
	}
}

// CheckRuntimeLimit reports whether the pump is still inside the continuous
// runtime ceiling of its type. A pump that is not running is within limits.
func (s *PumpSafetyService) CheckRuntimeLimit(id string, t models.PumpType) bool {
	return failClosed(s.log, "runtime_limit", false, func() bool {
		s.mu.Lock()
		defer s.mu.Unlock()

		rec, ok := s.pumps[id]
		if !ok || !rec.state.IsActive() || rec.startedAt.IsZero() {
			return true
		}
		limit := t.MaxRuntime()
		if limit <= 0 {
			return false
		}
		return s.clock.Now().Sub(rec.startedAt) < limit
	})
}

// CheckOscillationSafety validates one oscillation half-cycle and counts it.
func (s *PumpSafetyService) CheckOscillationSafety(ctx context.Context, id string, speedMs int) error {
	if err := models.ValidatePumpID(id); err != nil {
		return err
	}

	var err error
	switch {
	case speedMs < s.cfg.MinOscillationMs:
		err = deny(ErrOscillationSpeed, "oscillation speed %d ms is too fast (minimum %d ms)", speedMs, s.cfg.MinOscillationMs)
	case speedMs > s.cfg.MaxOscillationMs:
		err = deny(ErrOscillationSpeed, "oscillation speed %d ms is too slow (maximum %d ms)", speedMs, s.cfg.MaxOscillationMs)
	default:
		s.mu.Lock()
		rec := s.record(id, "")
		rec.oscillationCycles++
		n := rec.oscillationCycles
		s.mu.Unlock()
		if n > s.cfg.MaxOscillationCycles {
			err = deny(ErrOscillationLimit, "pump %s: maximum oscillation cycles exceeded (%d > %d)", id, n, s.cfg.MaxOscillationCycles)
		}
	}

	if err != nil {
		s.reportDenial(ctx, id, "", "oscillation", err)
	}
	return err
}

func (s *PumpSafetyService) ResetOscillationCounter(id string) error {
	if err := models.ValidatePumpID(id); err != nil {
		return err
	}
	s.mu.Lock()
	s.record(id, "").oscillationCycles = 0
	s.mu.Unlock()
	return nil
}

// EmergencyShutdown engages the latch, forces every active pump into
// emergency_stop and persists the marker. The latch is set even when the
// marker cannot be written; that failure is returned.
func (s *PumpSafetyService) EmergencyShutdown(ctx context.Context, reason string) error {
	if reason == "" {
		reason = "unspecified"
	}
	now := s.clock.Now()
	marker := models.EmergencyMarker{Timestamp: now.UTC(), Reason: reason}

	var stopped []string
	s.mu.Lock()
	s.emergencyMu.Lock()
	s.emergency = true
	s.marker = &marker
	s.emergencyMu.Unlock()
	for id, rec := range s.pumps {
		if rec.state.IsActive() {
			rec.stopClock(now)
			rec.state = models.PumpEmergencyStop
			rec.lastOperationAt = now
			stopped = append(stopped, id)
		}
	}
	s.mu.Unlock()
	s.metrics.EmergencyStop(true)
	sort.Strings(stopped)

	for _, id := range stopped {
		s.metrics.PumpState(id, string(models.PumpEmergencyStop), pumpStates)
	}

	var markerErr error
	if s.markers != nil {
		if err := s.markers.Write(marker); err != nil {
			markerErr = fmt.Errorf("write emergency marker: %w", err)
			s.log.Errorw("emergency_marker_write_failed", "err", err)
		}
	}

	s.log.Errorw("emergency_shutdown", "reason", reason, "stopped_pumps", stopped)
	ev := s.emit(ctx, models.SafetyEvent{
		Type:        models.EventEmergencyShutdown,
		Description: "Emergency shutdown: " + reason,
		Metadata:    map[string]any{"reason": reason, "stopped_pumps": stopped},
	})
	s.notify(ev)
	return markerErr
}

// notify delivers ev to the alerter without blocking the caller.
func (s *PumpSafetyService) notify(ev models.SafetyEvent) {
	if s.alerter == nil {
		return
	}
	s.alerts.Add(1)
	go func() {
		defer s.alerts.Done()
		ctx, cancel := context.WithTimeout(context.Background(), alertTimeout)
		defer cancel()
		if err := s.alerter.Alert(ctx, ev); err != nil {
			s.metrics.AlertFailed()
			s.log.Errorw("emergency_alert_failed", "event_id", ev.EventID, "err", err)
		}
	}()
}

// ResetEmergencyStop clears the latch, removes the marker and returns
// emergency-stopped pumps to idle.
func (s *PumpSafetyService) ResetEmergencyStop(ctx context.Context) error {
	var released []string
	s.mu.Lock()
	s.emergencyMu.Lock()
	was := s.emergency
	s.emergency = false
	s.marker = nil
	s.emergencyMu.Unlock()
	for id, rec := range s.pumps {
		if rec.state == models.PumpEmergencyStop {
			rec.state = models.PumpIdle
			released = append(released, id)
		}
	}
	s.mu.Unlock()
	s.metrics.EmergencyStop(false)
	for _, id := range released {
		s.metrics.PumpState(id, string(models.PumpIdle), pumpStates)
	}

	s.log.Infow("emergency_reset", "was_active", was, "released_pumps", len(released))

	if s.markers != nil {
		if err := s.markers.Remove(); err != nil {
			return fmt.Errorf("remove emergency marker: %w", err)
		}
	}
	return nil
}

// MarkFault takes a pump out of service until ClearFault.
func (s *PumpSafetyService) MarkFault(ctx context.Context, id, reason string) error {
	if err := models.ValidatePumpID(id); err != nil {
		return err
	}
	now := s.clock.Now()
	s.mu.Lock()
	rec := s.record(id, "")
	if rec.state.IsActive() {
		rec.stopClock(now)
		rec.lastOperationAt = now
	}
	rec.state = models.PumpFault
	rec.faultReason = reason
	s.mu.Unlock()

	s.scheduler.Cancel(id)
	s.metrics.PumpState(id, string(models.PumpFault), pumpStates)
	s.emit(ctx, models.SafetyEvent{
		Type:        models.EventSafetyCheckFailed,
		PumpID:      id,
		Description: fmt.Sprintf("Pump %s marked faulty: %s", id, reason),
		Metadata:    map[string]any{"check": "fault", "reason": reason},
	})
	return nil
}

func (s *PumpSafetyService) ClearFault(id string) error {
	return s.leaveState(id, models.PumpFault, func(r *pumpRecord) { r.faultReason = "" })
}

// EnterMaintenance blocks starts until CompleteMaintenance.
func (s *PumpSafetyService) EnterMaintenance(id string) error {
	if err := models.ValidatePumpID(id); err != nil {
		return err
	}
	s.mu.Lock()
	rec := s.record(id, "")
	if rec.state.IsActive() {
		s.mu.Unlock()
		return fmt.Errorf("%w: pump %s is running", ErrInvalidTransition, id)
	}
	rec.state = models.PumpMaintenance
	s.mu.Unlock()

	s.scheduler.Cancel(id)
	s.metrics.PumpState(id, string(models.PumpMaintenance), pumpStates)
	s.log.Infow("pump_maintenance_started", "pump_id", id)
	return nil
}

// CompleteMaintenance resets the maintenance hours and, if the pump was in
// maintenance, returns it to idle.
func (s *PumpSafetyService) CompleteMaintenance(id string) error {
	if err := models.ValidatePumpID(id); err != nil {
		return err
	}
	s.mu.Lock()
	rec := s.record(id, "")
	hours := rec.maintenanceHours
	rec.maintenanceHours = 0
	if rec.state == models.PumpMaintenance {
		rec.state = models.PumpIdle
	}
	state := rec.state
	s.mu.Unlock()

	s.metrics.PumpState(id, string(state), pumpStates)
	s.log.Infow("pump_maintenance_completed", "pump_id", id, "cleared_hours", hours)
	return nil
}

func (s *PumpSafetyService) leaveState(id string, from models.PumpState, mutate func(*pumpRecord)) error {
	if err := models.ValidatePumpID(id); err != nil {
		return err
	}
	s.mu.Lock()
	rec, ok := s.pumps[id]
	if !ok || rec.state != from {
		s.mu.Unlock()
		return fmt.Errorf("%w: pump %s is not in %s", ErrInvalidTransition, id, from)
	}
	rec.state = models.PumpIdle
	mutate(rec)
	s.mu.Unlock()

	s.metrics.PumpState(id, string(models.PumpIdle), pumpStates)
	return nil
}

// GetPumpStats returns a snapshot; unknown pumps report as idle.
func (s *PumpSafetyService) GetPumpStats(id string) (models.PumpStats, error) {
	if err := models.ValidatePumpID(id); err != nil {
		return models.PumpStats{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if rec, ok := s.pumps[id]; ok {
		return rec.snapshot(id), nil
	}
	return models.PumpStats{PumpID: id, State: models.PumpIdle}, nil
}

// AllPumpStats returns a snapshot of every known pump ordered by id.
func (s *PumpSafetyService) AllPumpStats() []models.PumpStats {
	s.mu.Lock()
	out := make([]models.PumpStats, 0, len(s.pumps))
	for id, rec := range s.pumps {
		out = append(out, rec.snapshot(id))
	}
	s.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].PumpID < out[j].PumpID })
	return out
}

// RestoreState re-engages a persisted emergency latch and reloads the
// cumulative pump counters. Pumps always come back idle. A marker that
// cannot be read still latches.
func (s *PumpSafetyService) RestoreState(ctx context.Context) error {
	var markerErr error
	if s.markers != nil {
		m, err := s.markers.Read()
		if err != nil {
			markerErr = fmt.Errorf("read emergency marker: %w", err)
			m = &models.EmergencyMarker{Timestamp: s.clock.Now().UTC(), Reason: "emergency marker unreadable at startup"}
			s.log.Errorw("emergency_marker_unreadable", "err", err)
		}
		if m != nil {
			s.mu.Lock()
			s.emergencyMu.Lock()
			s.emergency = true
			s.marker = m
			s.emergencyMu.Unlock()
			s.mu.Unlock()
			s.metrics.EmergencyStop(true)
			s.log.Warnw("emergency_marker_present",
				"reason", m.Reason,
				"since", humanize.Time(m.Timestamp),
			)
		}
	}

	if s.stats == nil {
		return markerErr
	}
	saved, err := s.stats.LoadAll(ctx)
	if err != nil {
		return errors.Join(markerErr, fmt.Errorf("load pump stats: %w", err))
	}
	s.mu.Lock()
	for _, st := range saved {
		rec := s.record(st.PumpID, st.PumpType)
		rec.totalRuntime = time.Duration(st.TotalRuntimeSec) * time.Second
		rec.maintenanceHours = st.MaintenanceHours
	}
	s.mu.Unlock()
	s.log.Infow("pump_stats_restored", "pumps", len(saved))
	return markerErr
}

// SnapshotStats persists the cumulative counters of every pump.
func (s *PumpSafetyService) SnapshotStats(ctx context.Context) error {
	if s.stats == nil {
		return nil
	}
	return s.stats.SaveAll(ctx, s.AllPumpStats())
}

// Close cancels pending cooldowns and waits for in-flight alerts.
func (s *PumpSafetyService) Close() {
	s.scheduler.StopAll()
	s.alerts.Wait()
}

// ReportOverflow records that tankID's overflow switch tripped.
func (s *PumpSafetyService) ReportOverflow(ctx context.Context, tankID string, r models.WaterLevelReading) {
	s.log.Warnw("overflow_detected", "tank_id", tankID, "level_percent", r.LevelPercent, "reading_valid", r.IsValid)
	s.emit(ctx, models.SafetyEvent{
		Type:        models.EventOverflowDetected,
		TankID:      tankID,
		Description: fmt.Sprintf("Overflow detected on %s", tankID),
		Metadata: map[string]any{
			"level_percent": r.LevelPercent,
			"reading_valid": r.IsValid,
			"sensor_type":   r.SensorType,
		},
	})
}

// ReportRuntimeExceeded records that an active pump ran past its ceiling.
// Stopping it is up to the actuation side.
func (s *PumpSafetyService) ReportRuntimeExceeded(ctx context.Context, id string, t models.PumpType, ran time.Duration) {
	s.log.Errorw("pump_runtime_exceeded", "pump_id", id, "pump_type", t, "ran", ran.Round(time.Second), "limit", t.MaxRuntime())
	s.emit(ctx, models.SafetyEvent{
		Type:        models.EventSafetyCheckFailed,
		PumpID:      id,
		TankID:      TankForPumpType(t),
		Description: fmt.Sprintf("Pump %s exceeded its %s runtime limit of %s", id, t, t.MaxRuntime()),
		Metadata: map[string]any{
			"check":     "runtime",
			"runtime_s": int64(ran / time.Second),
			"limit_s":   int64(t.MaxRuntime() / time.Second),
		},
	})
}
