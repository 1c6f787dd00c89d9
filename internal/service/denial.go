package service

import (
	"errors"
	"fmt"
)

// Reasons a pump operation can be refused. Match with errors.Is.
var (
	ErrEmergencyStop     = errors.New("emergency stop active")
	ErrPumpBusy          = errors.New("pump busy")
	ErrCooldown          = errors.New("pump in cooldown")
	ErrPumpUnavailable   = errors.New("pump unavailable")
	ErrLevelPolicy       = errors.New("tank level outside policy")
	ErrMaintenanceDue    = errors.New("maintenance interval exceeded")
	ErrOscillationSpeed  = errors.New("oscillation speed out of range")
	ErrOscillationLimit  = errors.New("oscillation cycle limit reached")
	ErrInvalidTransition = errors.New("invalid pump state transition")
)

// DenialError is a safety refusal. Its message is meant for operators.
type DenialError struct {
	Reason error
	Msg    string
}

func (e *DenialError) Error() string { return e.Msg }

func (e *DenialError) Unwrap() error { return e.Reason }

func deny(reason error, format string, args ...any) *DenialError {
	return &DenialError{Reason: reason, Msg: fmt.Sprintf(format, args...)}
}

// IsDenial reports whether err is a safety refusal rather than a fault.
func IsDenial(err error) bool {
	var d *DenialError
	return errors.As(err, &d)
}

// denialLabel is the short reason used for metrics.
func denialLabel(err error) string {
	switch {
	case errors.Is(err, ErrEmergencyStop):
		return "emergency"
	case errors.Is(err, ErrPumpBusy):
		return "busy"
	case errors.Is(err, ErrCooldown):
		return "cooldown"
	case errors.Is(err, ErrPumpUnavailable):
		return "unavailable"
	case errors.Is(err, ErrLevelPolicy):
		return "level"
	case errors.Is(err, ErrMaintenanceDue):
		return "maintenance"
	default:
		return "other"
	}
}
