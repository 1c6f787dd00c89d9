package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"controlling_tanks/internal/models"
)

// EventJournal appends safety events to a newline-delimited JSON file.
// The file is opened per write so that log rotation by an external tool is safe.
type EventJournal struct {
	path string
	mu   sync.Mutex
}

func NewEventJournal(path string) (*EventJournal, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create journal dir: %w", err)
	}
	return &EventJournal{path: path}, nil
}

func (j *EventJournal) Append(_ context.Context, e models.SafetyEvent) error {
	line, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal event %s: %w", e.EventID, err)
	}
	line = append(line, '\n')

	j.mu.Lock()
	defer j.mu.Unlock()

	f, err := os.OpenFile(j.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open journal: %w", err)
	}
	if _, err := f.Write(line); err != nil {
		_ = f.Close()
		return fmt.Errorf("write journal: %w", err)
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return fmt.Errorf("sync journal: %w", err)
	}
	return f.Close()
}

func (j *EventJournal) Path() string { return j.path }
