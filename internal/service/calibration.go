package service

import (
	"context"
	"fmt"

	"controlling_tanks/internal/models"
)

const defaultResponseDelayMs = 500

// nominal flow rates in litres per minute
var defaultFlowRates = map[models.PumpType]float64{
	models.PumpFill:        12,
	models.PumpDrain:       15,
	models.PumpCirculation: 20,
	models.PumpAuxiliary:   5,
}

// CalibratePump derives the operating parameters of a pump from its tank's
// current level and stores them. When actualLevelCm is set the tank sensor is
// calibrated first. The pump must be allowed to start.
func (s *PumpSafetyService) CalibratePump(ctx context.Context, id string, t models.PumpType, actualLevelCm *float64) (models.PumpCalibration, error) {
	if t == "" {
		return models.PumpCalibration{}, fmt.Errorf("pump type is required for calibration")
	}
	if err := s.CanStartPump(ctx, id, t); err != nil {
		return models.PumpCalibration{}, err
	}
	if s.levels == nil {
		return models.PumpCalibration{}, fmt.Errorf("no level system configured")
	}

	tank := TankForPumpType(t)
	sensorCalibrated := false
	if actualLevelCm != nil {
		if err := s.levels.CalibrateTank(tank, *actualLevelCm); err != nil {
			return models.PumpCalibration{}, fmt.Errorf("calibrate tank %s: %w", tank, err)
		}
		sensorCalibrated = true
	}

	reading, err := s.levels.GetTankLevel(tank)
	if err != nil {
		return models.PumpCalibration{}, fmt.Errorf("read tank %s: %w", tank, err)
	}

	cal := models.PumpCalibration{
		PumpID:           id,
		PumpType:         t,
		TankID:           tank,
		LevelCm:          reading.LevelCm,
		LevelPercent:     reading.LevelPercent,
		ReadingValid:     reading.IsValid,
		FlowRateLPM:      defaultFlowRates[t],
		ResponseDelayMs:  defaultResponseDelayMs,
		MaxRuntimeSec:    int(t.MaxRuntime().Seconds()),
		SensorCalibrated: sensorCalibrated,
		CalibratedAt:     s.clock.Now().UTC(),
	}

	if s.calibrations != nil {
		if err := s.calibrations.Save(cal); err != nil {
			return models.PumpCalibration{}, fmt.Errorf("save calibration: %w", err)
		}
	}
	s.log.Infow("pump_calibrated",
		"pump_id", id,
		"tank_id", tank,
		"level_percent", reading.LevelPercent,
		"reading_valid", reading.IsValid,
	)
	return cal, nil
}
