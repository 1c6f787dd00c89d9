package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"controlling_tanks/internal/config"
	"controlling_tanks/internal/logger"
	"controlling_tanks/internal/models"
	"controlling_tanks/internal/sensor"
)

var t0 = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

// fakeClock only moves when Advance is called; due callbacks run inside Advance.
type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*fakeTimer
}

type fakeTimer struct {
	at   time.Time
	fn   func()
	done bool
}

func newFakeClock() *fakeClock { return &fakeClock{now: t0} }

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) AfterFunc(d time.Duration, f func()) func() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTimer{at: c.now.Add(d), fn: f}
	c.timers = append(c.timers, t)
	return func() bool {
		c.mu.Lock()
		defer c.mu.Unlock()
		if t.done {
			return false
		}
		t.done = true
		return true
	}
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	var due []*fakeTimer
	for _, t := range c.timers {
		if !t.done && !t.at.After(c.now) {
			t.done = true
			due = append(due, t)
		}
	}
	c.mu.Unlock()

	for _, t := range due {
		t.fn()
	}
}

type panicClock struct{}

func (panicClock) Now() time.Time                              { panic("clock unavailable") }
func (panicClock) AfterFunc(time.Duration, func()) func() bool { return func() bool { return false } }

// fakeLevels serves fixed readings per tank.
type fakeLevels struct {
	mu           sync.Mutex
	percent      map[string]float64
	err          error
	calibrated   map[string]float64
	calibrateErr error
}

func newFakeLevels() *fakeLevels {
	return &fakeLevels{
		percent:    map[string]float64{config.Tank1: 50, config.Tank2: 50},
		calibrated: map[string]float64{},
	}
}

func (f *fakeLevels) set(tank string, pct float64) {
	f.mu.Lock()
	f.percent[tank] = pct
	f.mu.Unlock()
}

func (f *fakeLevels) GetTankLevel(tank string) (models.WaterLevelReading, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return models.WaterLevelReading{}, f.err
	}
	pct, ok := f.percent[tank]
	if !ok {
		return models.WaterLevelReading{}, errors.New("tank not found")
	}
	return models.WaterLevelReading{TankID: tank, LevelCm: pct, LevelPercent: pct, IsValid: true, SensorType: "mock"}, nil
}

func (f *fakeLevels) GetAllLevels() []models.WaterLevelReading {
	var out []models.WaterLevelReading
	for _, tank := range []string{config.Tank1, config.Tank2} {
		if r, err := f.GetTankLevel(tank); err == nil {
			out = append(out, r)
		}
	}
	return out
}

func (f *fakeLevels) CalibrateTank(tank string, cm float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.calibrateErr != nil {
		return f.calibrateErr
	}
	f.calibrated[tank] = cm
	return nil
}

type fakeRecorder struct {
	mu     sync.Mutex
	events []models.SafetyEvent
}

func (r *fakeRecorder) Append(_ context.Context, e models.SafetyEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

func (r *fakeRecorder) ofType(t models.SafetyEventType) []models.SafetyEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.SafetyEvent
	for _, e := range r.events {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

type fakeAlerter struct {
	got chan models.SafetyEvent
}

func newFakeAlerter() *fakeAlerter { return &fakeAlerter{got: make(chan models.SafetyEvent, 4)} }

func (a *fakeAlerter) Alert(_ context.Context, e models.SafetyEvent) error {
	a.got <- e
	return nil
}

type memMarkers struct {
	mu       sync.Mutex
	marker   *models.EmergencyMarker
	writeErr error
	readErr  error
}

func (m *memMarkers) Write(mk models.EmergencyMarker) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.writeErr != nil {
		return m.writeErr
	}
	m.marker = &mk
	return nil
}

func (m *memMarkers) Read() (*models.EmergencyMarker, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.readErr != nil {
		return nil, m.readErr
	}
	return m.marker, nil
}

func (m *memMarkers) Remove() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.marker = nil
	return nil
}

type memCalibrations struct {
	mu    sync.Mutex
	saved []models.PumpCalibration
}

func (m *memCalibrations) Save(c models.PumpCalibration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saved = append(m.saved, c)
	return nil
}

type memStats struct {
	mu     sync.Mutex
	loaded []models.PumpStats
	saved  []models.PumpStats
}

func (m *memStats) SaveAll(_ context.Context, s []models.PumpStats) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saved = append([]models.PumpStats(nil), s...)
	return nil
}

func (m *memStats) LoadAll(context.Context) ([]models.PumpStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.loaded, nil
}

func testSafetyConfig() config.SafetyConfig {
	return config.SafetyConfig{
		CooldownSeconds:          30,
		MaxOscillationCycles:     100,
		MinOscillationMs:         100,
		MaxOscillationMs:         5000,
		MaintenanceIntervalHours: 1000,
		FillMaxPercent:           85,
		DrainMinPercent:          15,
		HistoryLimit:             1000,
	}
}

type harness struct {
	svc          *PumpSafetyService
	clock        *fakeClock
	levels       *fakeLevels
	overflow     *sensor.StaticOverflow
	recorder     *fakeRecorder
	alerter      *fakeAlerter
	markers      *memMarkers
	calibrations *memCalibrations
	stats        *memStats
}

func newHarness() *harness {
	h := &harness{
		clock:        newFakeClock(),
		levels:       newFakeLevels(),
		overflow:     sensor.NewStaticOverflow(),
		recorder:     &fakeRecorder{},
		alerter:      newFakeAlerter(),
		markers:      &memMarkers{},
		calibrations: &memCalibrations{},
		stats:        &memStats{},
	}
	h.svc = NewPumpSafetyService(testSafetyConfig(), PumpSafetyDeps{
		Levels:       h.levels,
		Overflow:     h.overflow,
		Recorder:     h.recorder,
		Alerter:      h.alerter,
		Markers:      h.markers,
		Calibrations: h.calibrations,
		Stats:        h.stats,
		Log:          logger.NewNop(),
		Clock:        h.clock,
	})
	return h
}
