package service

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"controlling_tanks/internal/logger"
	"controlling_tanks/internal/models"
)

// shutdownClock engages the emergency latch the first time Now is called
// after arm, i.e. in the middle of whatever operation asked for the time.
type shutdownClock struct {
	*fakeClock
	svc   *PumpSafetyService
	armed atomic.Bool
}

func (c *shutdownClock) Now() time.Time {
	if c.armed.CompareAndSwap(true, false) {
		_ = c.svc.EmergencyShutdown(context.Background(), "overflow tank1")
	}
	return c.fakeClock.Now()
}

func TestRegisterPumpStart_ShutdownMidRegistration(t *testing.T) {
	t.Parallel()

	clock := &shutdownClock{fakeClock: newFakeClock()}
	svc := NewPumpSafetyService(testSafetyConfig(), PumpSafetyDeps{
		Markers: &memMarkers{},
		Log:     logger.NewNop(),
		Clock:   clock,
	})
	clock.svc = svc
	clock.armed.Store(true)

	err := svc.RegisterPumpStart(context.Background(), "fill1", models.PumpFill)
	if !errors.Is(err, ErrEmergencyStop) {
		t.Fatalf("RegisterPumpStart = %v, want emergency denial", err)
	}
	if active, _ := svc.EmergencyStatus(); !active {
		t.Fatal("latch not engaged")
	}
	st, _ := svc.GetPumpStats("fill1")
	if st.State.IsActive() {
		t.Fatalf("pump left %s under an engaged latch", st.State)
	}
	svc.Close()
}

func TestEmergencyShutdown_RacingStartsNeverLeaveRunningPumps(t *testing.T) {
	t.Parallel()

	h := newHarness()
	ctx := context.Background()
	ids := []string{"a1", "a2", "a3", "a4", "a5", "a6", "a7", "a8"}

	var wg sync.WaitGroup
	start := make(chan struct{})
	for _, id := range ids {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			<-start
			_ = h.svc.StartPump(ctx, id, models.PumpAuxiliary)
		}(id)
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		<-start
		_ = h.svc.EmergencyShutdown(ctx, "overflow")
	}()
	close(start)
	wg.Wait()

	for _, st := range h.svc.AllPumpStats() {
		if st.State.IsActive() {
			t.Fatalf("pump %s is %s after emergency shutdown", st.PumpID, st.State)
		}
	}
	h.svc.Close()
}

func TestStartPump_ConcurrentSameIDExactlyOneWins(t *testing.T) {
	t.Parallel()

	h := newHarness()
	ctx := context.Background()
	const callers = 32

	var (
		wg      sync.WaitGroup
		won     atomic.Int32
		badErrs = make(chan error, callers)
	)
	start := make(chan struct{})
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			err := h.svc.StartPump(ctx, "circ1", models.PumpCirculation)
			switch {
			case err == nil:
				won.Add(1)
			case errors.Is(err, ErrInvalidTransition), errors.Is(err, ErrPumpBusy):
			default:
				badErrs <- err
			}
		}()
	}
	close(start)
	wg.Wait()
	close(badErrs)

	for err := range badErrs {
		t.Errorf("unexpected error: %v", err)
	}
	if n := won.Load(); n != 1 {
		t.Fatalf("%d callers started the pump, want 1", n)
	}
	if evs := h.recorder.ofType(models.EventPumpStarted); len(evs) != 1 {
		t.Fatalf("pump_started events = %d, want 1", len(evs))
	}
	st, _ := h.svc.GetPumpStats("circ1")
	if st.State != models.PumpRunning {
		t.Fatalf("state = %s", st.State)
	}
}

func TestRegisterPumpStop_ReadersSeeConsistentSnapshots(t *testing.T) {
	t.Parallel()

	h := newHarness()
	ctx := context.Background()
	mustNoErr(t, h.svc.StartPump(ctx, "aux1", models.PumpAuxiliary))
	h.clock.Advance(10 * time.Minute)

	var (
		wg   sync.WaitGroup
		done atomic.Bool
	)
	check := func(st models.PumpStats) {
		switch st.State {
		case models.PumpRunning:
			if st.TotalRuntimeSec != 0 || st.StartedAt.IsZero() {
				t.Errorf("running snapshot already accounted: %+v", st)
			}
		case models.PumpCooldown:
			if st.TotalRuntimeSec != 600 || !st.StartedAt.IsZero() {
				t.Errorf("cooldown snapshot with stale runtime: %+v", st)
			}
		default:
			t.Errorf("unexpected state %s", st.State)
		}
	}
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for !done.Load() {
				st, err := h.svc.GetPumpStats("aux1")
				if err != nil {
					t.Errorf("GetPumpStats: %v", err)
					return
				}
				check(st)
				for _, st := range h.svc.AllPumpStats() {
					check(st)
				}
			}
		}()
	}

	mustNoErr(t, h.svc.RegisterPumpStop(ctx, "aux1", "target reached"))
	done.Store(true)
	wg.Wait()

	st, _ := h.svc.GetPumpStats("aux1")
	if st.State != models.PumpCooldown || st.TotalRuntimeSec != 600 {
		t.Fatalf("final snapshot = %+v", st)
	}
	h.svc.Close()
}
