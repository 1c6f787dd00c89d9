package sensor

import (
	"errors"
	"fmt"
	"sync"
)

// ErrUnknownTank is returned for tanks without an overflow switch.
var ErrUnknownTank = errors.New("no overflow switch for tank")

// OverflowProvider reports the binary high-water float switch of a tank.
type OverflowProvider interface {
	IsOverflowing(tankID string) (bool, error)
}

// FloatSwitches reads normally-open float switches wired to input pins.
// A high input means the water has reached the switch.
type FloatSwitches struct {
	drv  TimingDriver
	pins map[string]int
}

func NewFloatSwitches(drv TimingDriver, pins map[string]int) *FloatSwitches {
	cp := make(map[string]int, len(pins))
	for k, v := range pins {
		cp[k] = v
	}
	return &FloatSwitches{drv: drv, pins: cp}
}

func (f *FloatSwitches) IsOverflowing(tankID string) (bool, error) {
	pin, ok := f.pins[tankID]
	if !ok {
		return false, fmt.Errorf("%w: %s", ErrUnknownTank, tankID)
	}
	high, err := f.drv.Read(pin)
	if err != nil {
		return false, fmt.Errorf("read overflow switch for %s: %w", tankID, err)
	}
	return high, nil
}

// StaticOverflow holds overflow flags set in software. It backs installations
// without float switches and the tests.
type StaticOverflow struct {
	mu    sync.RWMutex
	flags map[string]bool
	err   error
}

func NewStaticOverflow() *StaticOverflow {
	return &StaticOverflow{flags: make(map[string]bool)}
}

func (s *StaticOverflow) Set(tankID string, overflowing bool) {
	s.mu.Lock()
	s.flags[tankID] = overflowing
	s.mu.Unlock()
}

// SetError makes every subsequent query fail with err (nil clears it).
func (s *StaticOverflow) SetError(err error) {
	s.mu.Lock()
	s.err = err
	s.mu.Unlock()
}

func (s *StaticOverflow) IsOverflowing(tankID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.err != nil {
		return false, s.err
	}
	return s.flags[tankID], nil
}
