package repository

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"controlling_tanks/internal/models"
)

// ErrCalibrationNotFound is returned when a pump was never calibrated.
var ErrCalibrationNotFound = errors.New("calibration not found")

// CalibrationFiles stores one pump_<id>.json per calibrated pump.
type CalibrationFiles struct {
	dir string
}

func NewCalibrationFiles(dir string) *CalibrationFiles {
	return &CalibrationFiles{dir: dir}
}

func (c *CalibrationFiles) path(pumpID string) string {
	return filepath.Join(c.dir, "pump_"+pumpID+".json")
}

func (c *CalibrationFiles) Save(cal models.PumpCalibration) error {
	if err := models.ValidatePumpID(cal.PumpID); err != nil {
		return err
	}
	if err := os.MkdirAll(c.dir, 0o755); err != nil {
		return fmt.Errorf("create calibration dir: %w", err)
	}
	b, err := json.MarshalIndent(cal, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal calibration %s: %w", cal.PumpID, err)
	}
	if err := os.WriteFile(c.path(cal.PumpID), b, 0o644); err != nil {
		return fmt.Errorf("write calibration %s: %w", cal.PumpID, err)
	}
	return nil
}

func (c *CalibrationFiles) Load(pumpID string) (models.PumpCalibration, error) {
	if err := models.ValidatePumpID(pumpID); err != nil {
		return models.PumpCalibration{}, err
	}
	b, err := os.ReadFile(c.path(pumpID))
	if errors.Is(err, fs.ErrNotExist) {
		return models.PumpCalibration{}, fmt.Errorf("%w: %s", ErrCalibrationNotFound, pumpID)
	}
	if err != nil {
		return models.PumpCalibration{}, fmt.Errorf("read calibration %s: %w", pumpID, err)
	}
	var cal models.PumpCalibration
	if err := json.Unmarshal(b, &cal); err != nil {
		return models.PumpCalibration{}, fmt.Errorf("decode calibration %s: %w", pumpID, err)
	}
	return cal, nil
}
