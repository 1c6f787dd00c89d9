package alert

import (
	"context"
	"errors"

	"controlling_tanks/internal/models"
)

// Recorder persists a safety event.
type Recorder interface {
	Append(ctx context.Context, e models.SafetyEvent) error
}

// Notifier raises an alert for a safety event.
type Notifier interface {
	Alert(ctx context.Context, e models.SafetyEvent) error
}

// MultiRecorder appends to every recorder, even when an earlier one fails.
type MultiRecorder []Recorder

func (m MultiRecorder) Append(ctx context.Context, e models.SafetyEvent) error {
	var errs []error
	for _, r := range m {
		if err := r.Append(ctx, e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// MultiNotifier alerts through every channel, even when an earlier one fails.
type MultiNotifier []Notifier

func (m MultiNotifier) Alert(ctx context.Context, e models.SafetyEvent) error {
	var errs []error
	for _, n := range m {
		if err := n.Alert(ctx, e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
