package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const envPrefix = "TANKS"

// LoadError wraps a failure to read or decode a configuration file.
type LoadError struct {
	Path string
	Err  error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("loading config from %s: %v", e.Path, e.Err)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// Load reads configuration from path, or from configs/config.yml when path is empty.
// A missing default file is not an error: defaults and environment apply.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.AddConfigPath("configs")
		v.SetConfigName("config")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, &LoadError{Path: describePath(v, path), Err: err}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, &LoadError{Path: describePath(v, path), Err: err}
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

func describePath(v *viper.Viper, path string) string {
	if used := v.ConfigFileUsed(); used != "" {
		return used
	}
	if path != "" {
		return path
	}
	return "configs/config.yml"
}

// setDefaults registers every key so that env overrides work without a file.
func setDefaults(v *viper.Viper) {
	v.SetDefault("port", "8080")
	v.SetDefault("log_level", "info")
	v.SetDefault("db.path", "app.db")

	v.SetDefault("storage.event_log", "data/safety_events.ndjson")
	v.SetDefault("storage.calibration_dir", "data/calibration")
	v.SetDefault("storage.emergency_marker", "data/EMERGENCY_STOP")

	v.SetDefault("sensor.sensor_type", SensorUltrasonic)
	v.SetDefault("sensor.tank_height_cm", 100.0)
	v.SetDefault("sensor.max_fill_level_cm", 90.0)
	v.SetDefault("sensor.min_level_cm", 10.0)
	v.SetDefault("sensor.moving_average_samples", 5)
	v.SetDefault("sensor.sensor_timeout_ms", 30)
	v.SetDefault("sensor.enable_fallback_mode", true)
	v.SetDefault("sensor.max_consecutive_failures", 3)
	v.SetDefault("sensor.tank1_sensor_pin", 23)
	v.SetDefault("sensor.tank1_echo_pin", 24)
	v.SetDefault("sensor.tank2_sensor_pin", 17)
	v.SetDefault("sensor.tank2_echo_pin", 27)
	v.SetDefault("sensor.calibration_offset", 0.0)
	v.SetDefault("sensor.calibration_factor", 1.0)
	v.SetDefault("sensor.gpio_chip", "gpiochip0")

	v.SetDefault("overflow.source", OverflowGPIO)
	v.SetDefault("overflow.tank1_pin", 5)
	v.SetDefault("overflow.tank2_pin", 6)

	v.SetDefault("safety.cooldown_seconds", 30)
	v.SetDefault("safety.max_oscillation_cycles", 100)
	v.SetDefault("safety.min_oscillation_ms", 100)
	v.SetDefault("safety.max_oscillation_ms", 5000)
	v.SetDefault("safety.maintenance_interval_hours", 1000)
	v.SetDefault("safety.fill_max_percent", 85.0)
	v.SetDefault("safety.drain_min_percent", 15.0)
	v.SetDefault("safety.history_limit", 1000)

	v.SetDefault("alerts.webhook_url", "")
	v.SetDefault("alerts.webhook_timeout", 5*time.Second)
	v.SetDefault("alerts.mqtt_broker", "")
	v.SetDefault("alerts.mqtt_topic", "tanks/safety")
	v.SetDefault("alerts.mqtt_client_id", "tank-controller")

	v.SetDefault("influx.url", "")
	v.SetDefault("influx.token", "")
	v.SetDefault("influx.org", "")
	v.SetDefault("influx.bucket", "")

	v.SetDefault("auth.signing_key", "")
	v.SetDefault("auth.token_ttl", time.Hour)

	v.SetDefault("jobs.poll_interval", 5*time.Second)
	v.SetDefault("jobs.snapshot_schedule", "@every 1m")
}
