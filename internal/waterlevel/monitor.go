// Package waterlevel turns raw sensor distances into smoothed tank levels and
// degrades to the overflow switch when a sensor keeps failing.
package waterlevel

import (
	"fmt"
	"sync"
	"time"

	"controlling_tanks/internal/logger"
	"controlling_tanks/internal/models"
	"controlling_tanks/internal/sensor"
)

const (
	fallbackOverflowPercent = 95.0
	fallbackAssumedPercent  = 50.0

	// SensorTypeFallback marks readings estimated from the overflow switch.
	SensorTypeFallback = "overflow_fallback"
)

// MonitorConfig is the fixed geometry and filtering setup of one tank.
type MonitorConfig struct {
	TankID                 string
	TankHeightCm           float64
	MaxFillLevelCm         float64
	MinLevelCm             float64
	MovingAverageSamples   int
	MaxConsecutiveFailures int
	EnableFallback         bool
}

// MonitorStats is a point-in-time view of a monitor's counters.
type MonitorStats struct {
	TankID              string                    `json:"tank_id"`
	SensorType          string                    `json:"sensor_type"`
	TotalReads          uint64                    `json:"total_reads"`
	FailedReads         uint64                    `json:"failed_reads"`
	FallbackReads       uint64                    `json:"fallback_reads"`
	ConsecutiveFailures int                       `json:"consecutive_failures"`
	HistorySize         int                       `json:"history_size"`
	LastValid           *models.WaterLevelReading `json:"last_valid,omitempty"`
}

// Monitor owns the sensor of a single tank. Reads are serialised.
type Monitor struct {
	cfg      MonitorConfig
	sensor   sensor.LevelSensor
	overflow sensor.OverflowProvider
	log      *logger.Logger
	now      func() time.Time

	mu                  sync.Mutex
	history             []float64
	consecutiveFailures int
	lastValid           *models.WaterLevelReading
	totalReads          uint64
	failedReads         uint64
	fallbackReads       uint64
}

func NewMonitor(cfg MonitorConfig, s sensor.LevelSensor, overflow sensor.OverflowProvider, log *logger.Logger) *Monitor {
	if cfg.MovingAverageSamples < 1 {
		cfg.MovingAverageSamples = 1
	}
	return &Monitor{
		cfg:      cfg,
		sensor:   s,
		overflow: overflow,
		log:      log,
		now:      time.Now,
		history:  make([]float64, 0, cfg.MovingAverageSamples),
	}
}

// GetLevel reads the sensor once and returns the best available estimate.
// It never fails: problems are reported through IsValid and ErrorMessage.
func (m *Monitor) GetLevel() models.WaterLevelReading {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.totalReads++
	distance, err := m.sensor.Read()
	if err != nil {
		return m.onFailure(err)
	}

	m.consecutiveFailures = 0
	if len(m.history) == m.cfg.MovingAverageSamples {
		m.history = m.history[1:]
	}
	m.history = append(m.history, distance)

	var sum float64
	for _, v := range m.history {
		sum += v
	}
	mean := sum / float64(len(m.history))
	levelCm := m.cfg.TankHeightCm - mean

	reading := models.WaterLevelReading{
		TankID:       m.cfg.TankID,
		LevelCm:      levelCm,
		LevelPercent: clampPercent(levelCm * 100 / m.cfg.TankHeightCm),
		Timestamp:    m.now().UTC(),
		SensorType:   string(m.sensor.Kind()),
		IsValid:      true,
	}
	last := reading
	m.lastValid = &last
	return reading
}

func (m *Monitor) onFailure(err error) models.WaterLevelReading {
	m.failedReads++
	m.consecutiveFailures++
	m.log.Warnw("sensor_read_failed",
		"tank_id", m.cfg.TankID,
		"consecutive_failures", m.consecutiveFailures,
		"err", err,
	)

	if m.cfg.EnableFallback && m.consecutiveFailures >= m.cfg.MaxConsecutiveFailures {
		return m.fallbackReading(err)
	}

	if m.lastValid != nil {
		stale := *m.lastValid
		stale.IsValid = false
		stale.ErrorMessage = err.Error()
		return stale
	}

	return models.WaterLevelReading{
		TankID:       m.cfg.TankID,
		Timestamp:    m.now().UTC(),
		SensorType:   string(m.sensor.Kind()),
		ErrorMessage: err.Error(),
	}
}

// fallbackReading estimates the level from the overflow switch. An unreadable
// switch counts as not overflowing.
func (m *Monitor) fallbackReading(cause error) models.WaterLevelReading {
	m.fallbackReads++

	overflowing, ovErr := m.overflow.IsOverflowing(m.cfg.TankID)
	reading := models.WaterLevelReading{
		TankID:     m.cfg.TankID,
		Timestamp:  m.now().UTC(),
		SensorType: SensorTypeFallback,
	}
	switch {
	case ovErr != nil:
		reading.LevelCm = m.cfg.TankHeightCm / 2
		reading.LevelPercent = fallbackAssumedPercent
		reading.ErrorMessage = fmt.Sprintf("sensor failed %d times (%v); overflow switch unreadable (%v); assuming mid level",
			m.consecutiveFailures, cause, ovErr)
	case overflowing:
		reading.LevelCm = m.cfg.MaxFillLevelCm
		reading.LevelPercent = fallbackOverflowPercent
		reading.ErrorMessage = fmt.Sprintf("sensor failed %d times (%v); overflow switch active", m.consecutiveFailures, cause)
	default:
		reading.LevelCm = m.cfg.TankHeightCm / 2
		reading.LevelPercent = fallbackAssumedPercent
		reading.ErrorMessage = fmt.Sprintf("sensor failed %d times (%v); assuming mid level", m.consecutiveFailures, cause)
	}

	m.log.Warnw("level_fallback",
		"tank_id", m.cfg.TankID,
		"level_percent", reading.LevelPercent,
		"overflow", overflowing,
	)
	return reading
}

// Calibrate passes the true level to the sensor and restarts the moving average.
func (m *Monitor) Calibrate(actualLevelCm float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.sensor.Calibrate(actualLevelCm); err != nil {
		return fmt.Errorf("calibrate %s: %w", m.cfg.TankID, err)
	}
	m.history = m.history[:0]
	m.log.Infow("tank_calibrated", "tank_id", m.cfg.TankID, "actual_level_cm", actualLevelCm)
	return nil
}

func (m *Monitor) Stats() MonitorStats {
	m.mu.Lock()
	defer m.mu.Unlock()

	st := MonitorStats{
		TankID:              m.cfg.TankID,
		SensorType:          string(m.sensor.Kind()),
		TotalReads:          m.totalReads,
		FailedReads:         m.failedReads,
		FallbackReads:       m.fallbackReads,
		ConsecutiveFailures: m.consecutiveFailures,
		HistorySize:         len(m.history),
	}
	if m.lastValid != nil {
		lv := *m.lastValid
		st.LastValid = &lv
	}
	return st
}

func (m *Monitor) Config() MonitorConfig {
	return m.cfg
}

func clampPercent(p float64) float64 {
	switch {
	case p < 0:
		return 0
	case p > 100:
		return 100
	default:
		return p
	}
}
