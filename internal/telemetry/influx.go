package telemetry

import (
	"context"
	"fmt"

	"controlling_tanks/internal/config"
	"controlling_tanks/internal/models"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

const levelMeasurement = "tank_level"

type pointWriter interface {
	WritePoint(ctx context.Context, point ...*write.Point) error
}

// InfluxSink writes sampled tank levels to InfluxDB as the tank_level
// measurement, tagged by tank and sensor type.
type InfluxSink struct {
	client influxdb2.Client
	writer pointWriter
}

func NewInfluxSink(cfg config.InfluxConfig) *InfluxSink {
	client := influxdb2.NewClient(cfg.URL, cfg.Token)
	return &InfluxSink{client: client, writer: client.WriteAPIBlocking(cfg.Org, cfg.Bucket)}
}

func (s *InfluxSink) Append(ctx context.Context, r models.WaterLevelReading) error {
	if err := s.writer.WritePoint(ctx, levelPoint(r)); err != nil {
		return fmt.Errorf("influx write %s: %w", r.TankID, err)
	}
	return nil
}

func (s *InfluxSink) Close() {
	if s.client != nil {
		s.client.Close()
	}
}

func levelPoint(r models.WaterLevelReading) *write.Point {
	tags := map[string]string{
		"tank_id":     r.TankID,
		"sensor_type": r.SensorType,
	}
	fields := map[string]interface{}{
		"level_cm":      r.LevelCm,
		"level_percent": r.LevelPercent,
		"valid":         r.IsValid,
	}
	return influxdb2.NewPoint(levelMeasurement, tags, fields, r.Timestamp)
}
