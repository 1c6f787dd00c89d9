// Package config loads controller settings from configs/config.yml with
// TANKS_* environment overrides.
package config

import (
	"errors"
	"fmt"
	"time"
)

// Config holds the complete controller configuration.
type Config struct {
	Port     string         `mapstructure:"port"`
	LogLevel string         `mapstructure:"log_level"`
	DB       DBConfig       `mapstructure:"db"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Sensor   SensorConfig   `mapstructure:"sensor"`
	Overflow OverflowConfig `mapstructure:"overflow"`
	Safety   SafetyConfig   `mapstructure:"safety"`
	Alerts   AlertsConfig   `mapstructure:"alerts"`
	Influx   InfluxConfig   `mapstructure:"influx"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Jobs     JobsConfig     `mapstructure:"jobs"`
}

type DBConfig struct {
	Path string `mapstructure:"path"`
}

// StorageConfig locates the file artifacts the safety monitor writes.
type StorageConfig struct {
	EventLog        string `mapstructure:"event_log"`
	CalibrationDir  string `mapstructure:"calibration_dir"`
	EmergencyMarker string `mapstructure:"emergency_marker"`
}

// Sensor types understood by the water-level system.
const (
	SensorUltrasonic = "ultrasonic"
	SensorMock       = "mock"
)

// SensorConfig describes the level sensors and the tank geometry they measure.
type SensorConfig struct {
	SensorType             string  `mapstructure:"sensor_type"`
	TankHeightCm           float64 `mapstructure:"tank_height_cm"`
	MaxFillLevelCm         float64 `mapstructure:"max_fill_level_cm"`
	MinLevelCm             float64 `mapstructure:"min_level_cm"`
	MovingAverageSamples   int     `mapstructure:"moving_average_samples"`
	SensorTimeoutMs        int     `mapstructure:"sensor_timeout_ms"`
	EnableFallbackMode     bool    `mapstructure:"enable_fallback_mode"`
	MaxConsecutiveFailures int     `mapstructure:"max_consecutive_failures"`
	Tank1SensorPin         int     `mapstructure:"tank1_sensor_pin"`
	Tank1EchoPin           int     `mapstructure:"tank1_echo_pin"`
	Tank2SensorPin         int     `mapstructure:"tank2_sensor_pin"`
	Tank2EchoPin           int     `mapstructure:"tank2_echo_pin"`
	CalibrationOffset      float64 `mapstructure:"calibration_offset"`
	CalibrationFactor      float64 `mapstructure:"calibration_factor"`
	GPIOChip               string  `mapstructure:"gpio_chip"`
}

// TankSpec binds a tank id to the pins of its level sensor.
type TankSpec struct {
	ID         string
	TriggerPin int
	EchoPin    int
}

// Tank ids known to the installation.
const (
	Tank1 = "tank1"
	Tank2 = "tank2"
)

// Tanks lists the configured tanks in a stable order.
func (s SensorConfig) Tanks() []TankSpec {
	return []TankSpec{
		{ID: Tank1, TriggerPin: s.Tank1SensorPin, EchoPin: s.Tank1EchoPin},
		{ID: Tank2, TriggerPin: s.Tank2SensorPin, EchoPin: s.Tank2EchoPin},
	}
}

// SensorTimeout is SensorTimeoutMs as a duration.
func (s SensorConfig) SensorTimeout() time.Duration {
	return time.Duration(s.SensorTimeoutMs) * time.Millisecond
}

// Overflow sources.
const (
	OverflowGPIO   = "gpio"
	OverflowStatic = "static"
)

// OverflowConfig describes the binary float switches.
type OverflowConfig struct {
	Source   string `mapstructure:"source"`
	Tank1Pin int    `mapstructure:"tank1_pin"`
	Tank2Pin int    `mapstructure:"tank2_pin"`
}

// SafetyConfig holds the pump safety thresholds.
type SafetyConfig struct {
	CooldownSeconds          int     `mapstructure:"cooldown_seconds"`
	MaxOscillationCycles     uint32  `mapstructure:"max_oscillation_cycles"`
	MinOscillationMs         int     `mapstructure:"min_oscillation_ms"`
	MaxOscillationMs         int     `mapstructure:"max_oscillation_ms"`
	MaintenanceIntervalHours uint64  `mapstructure:"maintenance_interval_hours"`
	FillMaxPercent           float64 `mapstructure:"fill_max_percent"`
	DrainMinPercent          float64 `mapstructure:"drain_min_percent"`
	HistoryLimit             int     `mapstructure:"history_limit"`
}

// AlertsConfig configures where emergency notifications and events are sent.
type AlertsConfig struct {
	WebhookURL     string        `mapstructure:"webhook_url"`
	WebhookTimeout time.Duration `mapstructure:"webhook_timeout"`
	MQTTBroker     string        `mapstructure:"mqtt_broker"`
	MQTTTopic      string        `mapstructure:"mqtt_topic"`
	MQTTClientID   string        `mapstructure:"mqtt_client_id"`
}

// InfluxConfig is optional; an empty URL disables the level time series.
type InfluxConfig struct {
	URL    string `mapstructure:"url"`
	Token  string `mapstructure:"token"`
	Org    string `mapstructure:"org"`
	Bucket string `mapstructure:"bucket"`
}

// Enabled reports whether level readings should be written to InfluxDB.
func (c InfluxConfig) Enabled() bool { return c.URL != "" }

type AuthConfig struct {
	SigningKey string        `mapstructure:"signing_key"`
	TokenTTL   time.Duration `mapstructure:"token_ttl"`
}

// JobsConfig controls the background supervisor and the stats snapshot job.
type JobsConfig struct {
	PollInterval     time.Duration `mapstructure:"poll_interval"`
	SnapshotSchedule string        `mapstructure:"snapshot_schedule"`
}

// Validate checks the whole configuration and reports every problem at once.
func (c *Config) Validate() error {
	var errs []error

	if err := c.Sensor.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("sensor: %w", err))
	}
	if err := c.Overflow.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("overflow: %w", err))
	}
	if err := c.Safety.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("safety: %w", err))
	}
	if c.Influx.Enabled() && (c.Influx.Org == "" || c.Influx.Bucket == "") {
		errs = append(errs, errors.New("influx: org and bucket are required when url is set"))
	}
	if c.Auth.SigningKey == "" {
		errs = append(errs, errors.New("auth: signing_key is required"))
	}
	if c.Jobs.PollInterval <= 0 {
		errs = append(errs, errors.New("jobs: poll_interval must be positive"))
	}

	return errors.Join(errs...)
}

// Validate checks tank geometry and filtering parameters.
func (s *SensorConfig) Validate() error {
	var errs []error

	if s.TankHeightCm <= 0 {
		errs = append(errs, errors.New("tank_height_cm must be positive"))
	}
	if s.MaxFillLevelCm > s.TankHeightCm {
		errs = append(errs, errors.New("max_fill_level_cm must not exceed tank_height_cm"))
	}
	if s.MinLevelCm < 0 || s.MinLevelCm >= s.MaxFillLevelCm {
		errs = append(errs, errors.New("min_level_cm must be between 0 and max_fill_level_cm"))
	}
	if s.MovingAverageSamples < 1 {
		errs = append(errs, errors.New("moving_average_samples must be at least 1"))
	}
	if s.SensorTimeoutMs < 1 {
		errs = append(errs, errors.New("sensor_timeout_ms must be at least 1"))
	}
	if s.MaxConsecutiveFailures < 1 {
		errs = append(errs, errors.New("max_consecutive_failures must be at least 1"))
	}
	if s.CalibrationFactor == 0 {
		errs = append(errs, errors.New("calibration_factor must not be zero"))
	}

	return errors.Join(errs...)
}

func (o *OverflowConfig) Validate() error {
	switch o.Source {
	case OverflowGPIO, OverflowStatic:
		return nil
	default:
		return fmt.Errorf("invalid source: %q", o.Source)
	}
}

// Validate checks that the safety thresholds are coherent.
func (s *SafetyConfig) Validate() error {
	var errs []error

	if s.CooldownSeconds < 0 {
		errs = append(errs, errors.New("cooldown_seconds must be non-negative"))
	}
	if s.MinOscillationMs <= 0 || s.MaxOscillationMs < s.MinOscillationMs {
		errs = append(errs, errors.New("oscillation speed range is invalid"))
	}
	if s.MaxOscillationCycles == 0 {
		errs = append(errs, errors.New("max_oscillation_cycles must be positive"))
	}
	if s.FillMaxPercent <= 0 || s.FillMaxPercent > 100 {
		errs = append(errs, errors.New("fill_max_percent must be in (0, 100]"))
	}
	if s.DrainMinPercent < 0 || s.DrainMinPercent >= s.FillMaxPercent {
		errs = append(errs, errors.New("drain_min_percent must be in [0, fill_max_percent)"))
	}
	if s.HistoryLimit < 1 {
		errs = append(errs, errors.New("history_limit must be at least 1"))
	}

	return errors.Join(errs...)
}
