package waterlevel

import (
	"errors"
	"fmt"
	"sync"

	"controlling_tanks/internal/config"
	"controlling_tanks/internal/logger"
	"controlling_tanks/internal/models"
	"controlling_tanks/internal/sensor"
)

// ErrTankNotFound is returned for ids that have no monitor.
var ErrTankNotFound = errors.New("tank not found")

// System is the registry of per-tank monitors and the single place levels are
// queried from.
type System struct {
	cfg      config.SensorConfig
	drv      sensor.TimingDriver
	overflow sensor.OverflowProvider
	log      *logger.Logger

	mu       sync.RWMutex
	monitors map[string]*Monitor
	order    []string
}

func NewSystem(cfg config.SensorConfig, drv sensor.TimingDriver, overflow sensor.OverflowProvider, log *logger.Logger) *System {
	return &System{
		cfg:      cfg,
		drv:      drv,
		overflow: overflow,
		log:      log,
		monitors: make(map[string]*Monitor),
	}
}

// Init builds one monitor per configured tank. An unknown sensor type falls
// back to the mock sensor with a warning.
func (s *System) Init() error {
	kind, ok := sensor.ParseKind(s.cfg.SensorType)
	if !ok {
		s.log.Warnw("unknown_sensor_type", "sensor_type", s.cfg.SensorType, "using", sensor.KindMock)
	}
	if kind == sensor.KindUltrasonic && s.drv == nil {
		s.log.Warnw("gpio_driver_missing", "sensor_type", kind)
		s.drv = sensor.Unavailable{}
	}

	monitors := make(map[string]*Monitor)
	var order []string
	for _, tank := range s.cfg.Tanks() {
		m := NewMonitor(MonitorConfig{
			TankID:                 tank.ID,
			TankHeightCm:           s.cfg.TankHeightCm,
			MaxFillLevelCm:         s.cfg.MaxFillLevelCm,
			MinLevelCm:             s.cfg.MinLevelCm,
			MovingAverageSamples:   s.cfg.MovingAverageSamples,
			MaxConsecutiveFailures: s.cfg.MaxConsecutiveFailures,
			EnableFallback:         s.cfg.EnableFallbackMode,
		}, s.newSensor(kind, tank), s.overflow, s.log)
		monitors[tank.ID] = m
		order = append(order, tank.ID)
	}

	s.mu.Lock()
	s.monitors = monitors
	s.order = order
	s.mu.Unlock()

	s.log.Infow("water_level_system_ready", "sensor_type", kind, "tanks", order)
	return nil
}

func (s *System) newSensor(kind sensor.Kind, tank config.TankSpec) sensor.LevelSensor {
	if kind == sensor.KindUltrasonic {
		return sensor.NewUltrasonic(s.drv, sensor.UltrasonicConfig{
			TriggerPin:   tank.TriggerPin,
			EchoPin:      tank.EchoPin,
			Timeout:      s.cfg.SensorTimeout(),
			TankHeightCm: s.cfg.TankHeightCm,
			Offset:       s.cfg.CalibrationOffset,
			Factor:       s.cfg.CalibrationFactor,
		})
	}
	return sensor.NewMock(sensor.DefaultMockDistanceCm)
}

func (s *System) monitor(tankID string) (*Monitor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.monitors[tankID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrTankNotFound, tankID)
	}
	return m, nil
}

func (s *System) GetTankLevel(tankID string) (models.WaterLevelReading, error) {
	m, err := s.monitor(tankID)
	if err != nil {
		return models.WaterLevelReading{}, err
	}
	return m.GetLevel(), nil
}

// GetAllLevels reads every tank in configuration order.
func (s *System) GetAllLevels() []models.WaterLevelReading {
	ids := s.TankIDs()
	out := make([]models.WaterLevelReading, 0, len(ids))
	for _, id := range ids {
		if r, err := s.GetTankLevel(id); err == nil {
			out = append(out, r)
		}
	}
	return out
}

func (s *System) CalibrateTank(tankID string, actualLevelCm float64) error {
	m, err := s.monitor(tankID)
	if err != nil {
		return err
	}
	return m.Calibrate(actualLevelCm)
}

func (s *System) GetStats() []MonitorStats {
	ids := s.TankIDs()
	out := make([]MonitorStats, 0, len(ids))
	for _, id := range ids {
		if m, err := s.monitor(id); err == nil {
			out = append(out, m.Stats())
		}
	}
	return out
}

func (s *System) TankIDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.order...)
}

// Sensor exposes the sensor behind a tank, mainly so tests can drive mocks.
func (s *System) Sensor(tankID string) (sensor.LevelSensor, error) {
	m, err := s.monitor(tankID)
	if err != nil {
		return nil, err
	}
	return m.sensor, nil
}
