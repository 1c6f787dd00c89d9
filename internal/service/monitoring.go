package service

import (
	"context"
	"time"

	"controlling_tanks/internal/models"

	"github.com/dustin/go-humanize"
)

type pumpStatusSource interface {
	EmergencyStatus() (bool, *models.EmergencyMarker)
	AllPumpStats() []models.PumpStats
}

type levelSource interface {
	GetAllLevels() []models.WaterLevelReading
}

type MonitoringService struct {
	pumps  pumpStatusSource
	levels levelSource
	now    func() time.Time
}

func NewMonitoringService(pumps pumpStatusSource, levels levelSource) *MonitoringService {
	return &MonitoringService{pumps: pumps, levels: levels, now: time.Now}
}

// GetStatus reads every tank and snapshots every known pump. Tank reads go to
// the sensors, so this blocks for up to one sensor timeout per tank.
func (s *MonitoringService) GetStatus(ctx context.Context) (models.SystemStatus, error) {
	if err := ctx.Err(); err != nil {
		return models.SystemStatus{}, err
	}
	now := s.now()

	st := models.SystemStatus{
		GeneratedAt: now.UTC(),
		Emergency:   emergencyStatus(s.pumps, now),
		Tanks:       s.levels.GetAllLevels(),
		Pumps:       s.pumps.AllPumpStats(),
	}
	if st.Tanks == nil {
		st.Tanks = []models.WaterLevelReading{}
	}
	if st.Pumps == nil {
		st.Pumps = []models.PumpStats{}
	}
	return st, nil
}

func emergencyStatus(src pumpStatusSource, now time.Time) models.EmergencyStatus {
	active, marker := src.EmergencyStatus()
	out := models.EmergencyStatus{Active: active}
	if marker != nil {
		out.Reason = marker.Reason
		out.Since = marker.Timestamp
		out.Age = humanize.RelTime(marker.Timestamp, now, "ago", "from now")
	}
	return out
}
