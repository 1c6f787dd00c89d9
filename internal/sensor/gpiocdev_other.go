//go:build !linux

package sensor

import "time"

// ChipDriver is unavailable off Linux; OpenChip always fails.
type ChipDriver struct{}

func OpenChip(string) (*ChipDriver, error) {
	return nil, ErrGPIOUnavailable
}

func (*ChipDriver) Write(int, bool) error { return ErrGPIOUnavailable }

func (*ChipDriver) Read(int) (bool, error) { return false, ErrGPIOUnavailable }

func (*ChipDriver) WaitForLevel(int, bool, time.Duration) (time.Time, error) {
	return time.Time{}, ErrGPIOUnavailable
}

func (*ChipDriver) Close() error { return nil }
