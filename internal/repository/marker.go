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

// MarkerFile persists the emergency stop across restarts. While the file
// exists the controller boots with the emergency latch engaged.
type MarkerFile struct {
	path string
}

func NewMarkerFile(path string) *MarkerFile {
	return &MarkerFile{path: path}
}

func (m *MarkerFile) Write(marker models.EmergencyMarker) error {
	if err := os.MkdirAll(filepath.Dir(m.path), 0o755); err != nil {
		return fmt.Errorf("create marker dir: %w", err)
	}
	b, err := json.MarshalIndent(marker, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal emergency marker: %w", err)
	}
	tmp := m.path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return fmt.Errorf("write emergency marker: %w", err)
	}
	if err := os.Rename(tmp, m.path); err != nil {
		return fmt.Errorf("install emergency marker: %w", err)
	}
	return nil
}

// Read returns (nil, nil) when no marker exists. A marker that exists but
// cannot be parsed is still reported as present.
func (m *MarkerFile) Read() (*models.EmergencyMarker, error) {
	b, err := os.ReadFile(m.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read emergency marker: %w", err)
	}

	var marker models.EmergencyMarker
	if err := json.Unmarshal(b, &marker); err != nil {
		return &models.EmergencyMarker{Reason: "unreadable emergency marker"}, nil
	}
	return &marker, nil
}

// Remove deletes the marker; a missing file is not an error.
func (m *MarkerFile) Remove() error {
	if err := os.Remove(m.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove emergency marker: %w", err)
	}
	return nil
}
