package service

import (
	"sync"
	"time"
)

// keyedScheduler keeps at most one pending task per key. Scheduling a key
// again replaces its task; a replaced task never runs.
type keyedScheduler struct {
	clock Clock

	mu      sync.Mutex
	gen     uint64
	pending map[string]pendingTask
}

type pendingTask struct {
	gen  uint64
	stop func() bool
}

func newKeyedScheduler(clock Clock) *keyedScheduler {
	return &keyedScheduler{clock: clock, pending: make(map[string]pendingTask)}
}

func (s *keyedScheduler) Schedule(key string, d time.Duration, fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if p, ok := s.pending[key]; ok {
		p.stop()
	}
	s.gen++
	gen := s.gen
	stop := s.clock.AfterFunc(d, func() {
		s.mu.Lock()
		cur, ok := s.pending[key]
		if !ok || cur.gen != gen {
			s.mu.Unlock()
			return
		}
		delete(s.pending, key)
		s.mu.Unlock()
		fn()
	})
	s.pending[key] = pendingTask{gen: gen, stop: stop}
}

// Cancel drops the pending task for key, if any.
func (s *keyedScheduler) Cancel(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.pending[key]; ok {
		p.stop()
		delete(s.pending, key)
	}
}

func (s *keyedScheduler) Pending(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.pending[key]
	return ok
}

// StopAll cancels every pending task.
func (s *keyedScheduler) StopAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, p := range s.pending {
		p.stop()
		delete(s.pending, k)
	}
}
