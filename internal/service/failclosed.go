package service

import "controlling_tanks/internal/logger"

// failClosed runs fn and returns unsafe if fn panics.
//
// Go mutexes do not poison, so most state simply recovers through normal
// error returns. Two answers are different: whether the emergency latch is
// engaged and whether a pump is still inside its runtime ceiling. When either
// cannot be determined, the caller gets the answer that stops the pump.
func failClosed[T any](log *logger.Logger, site string, unsafe T, fn func() T) (out T) {
	defer func() {
		if r := recover(); r != nil {
			log.Errorw("fail_closed", "site", site, "panic", r)
			out = unsafe
		}
	}()
	return fn()
}
