package sensor

import (
	"errors"
	"time"
)

// TimingDriver is the pin-level access an ultrasonic sensor needs.
type TimingDriver interface {
	Write(pin int, high bool) error
	Read(pin int) (bool, error)
	// WaitForLevel blocks until pin reads high (or low) and returns the time
	// the level was observed. It returns ErrTimeout after timeout.
	WaitForLevel(pin int, high bool, timeout time.Duration) (time.Time, error)
}

// ErrGPIOUnavailable is reported by drivers on hosts without a GPIO character device.
var ErrGPIOUnavailable = errors.New("gpio not available on this host")

// Unavailable is a driver whose every call fails with Err. Sensors built on it
// always fail, which pushes their monitors into degraded mode.
type Unavailable struct {
	Err error
}

func (u Unavailable) err() error {
	if u.Err == nil {
		return ErrGPIOUnavailable
	}
	return u.Err
}

func (u Unavailable) Write(int, bool) error { return u.err() }

func (u Unavailable) Read(int) (bool, error) { return false, u.err() }

func (u Unavailable) WaitForLevel(int, bool, time.Duration) (time.Time, error) {
	return time.Time{}, u.err()
}
