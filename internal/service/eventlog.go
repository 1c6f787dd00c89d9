package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"controlling_tanks/internal/models"
	"controlling_tanks/internal/repository"
)

// LogFilter selects persisted safety events by time range and type.
type LogFilter struct {
	From time.Time // inclusive; zero means no lower bound
	To   time.Time // inclusive; zero means no upper bound
	Type string    // "" or one of the SafetyEventType values, case-insensitive
}

type EventLogService struct {
	eventRepo repository.EventRepo
}

func NewEventLogService(eventRepo repository.EventRepo) *EventLogService {
	return &EventLogService{eventRepo: eventRepo}
}

var (
	errInvalidTimeRange = errors.New("invalid time range: From must be <= To")
	errUnknownEventType = errors.New("unknown event type")
)

var knownEventTypes = map[models.SafetyEventType]struct{}{
	models.EventPumpStarted:         {},
	models.EventPumpStopped:         {},
	models.EventOverflowDetected:    {},
	models.EventEmergencyShutdown:   {},
	models.EventSafetyCheckFailed:   {},
	models.EventMaintenanceRequired: {},
}

// IsFilterError reports whether err came from a malformed LogFilter.
func IsFilterError(err error) bool {
	return errors.Is(err, errInvalidTimeRange) || errors.Is(err, errUnknownEventType)
}

// utc converts t to UTC, keeping the zero value as "unbounded".
func utc(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	return t.UTC()
}

// normalize returns f with UTC bounds and the type upper-cased, or a filter
// error when the range is inverted or the type is not a safety event type.
func (f LogFilter) normalize() (LogFilter, error) {
	out := LogFilter{
		From: utc(f.From),
		To:   utc(f.To),
		Type: strings.ToUpper(strings.TrimSpace(f.Type)),
	}
	if !out.From.IsZero() && !out.To.IsZero() && out.From.After(out.To) {
		return LogFilter{}, errInvalidTimeRange
	}
	if out.Type != "" {
		if _, ok := knownEventTypes[models.SafetyEventType(out.Type)]; !ok {
			return LogFilter{}, fmt.Errorf("%w %q", errUnknownEventType, f.Type)
		}
	}
	return out, nil
}

// List returns persisted safety events matching f, oldest first.
func (s *EventLogService) List(ctx context.Context, f LogFilter) ([]models.SafetyEvent, error) {
	nf, err := f.normalize()
	if err != nil {
		return nil, err
	}
	events, err := s.eventRepo.List(ctx, nf.From, nf.To, nf.Type)
	if err != nil {
		return nil, fmt.Errorf("list safety events: %w", err)
	}
	if events == nil {
		events = []models.SafetyEvent{}
	}
	return events, nil
}
