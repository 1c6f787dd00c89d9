package service

import "time"

// Clock abstracts time so cooldown and runtime rules can be tested.
type Clock interface {
	Now() time.Time
	// AfterFunc runs f after d. The returned stop reports whether it
	// prevented f from running.
	AfterFunc(d time.Duration, f func()) (stop func() bool)
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

func (systemClock) AfterFunc(d time.Duration, f func()) func() bool {
	return time.AfterFunc(d, f).Stop
}
