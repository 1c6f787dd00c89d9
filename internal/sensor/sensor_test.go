package sensor

import (
	"errors"
	"math"
	"sync"
	"testing"
	"time"
)

type waitResult struct {
	at  time.Time
	err error
}

// fakeDriver replays scripted WaitForLevel results and records trigger writes.
type fakeDriver struct {
	mu      sync.Mutex
	waits   []waitResult
	writes  []bool
	inputs  map[int]bool
	readErr error
}

func (f *fakeDriver) Write(_ int, high bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.writes = append(f.writes, high)
	return nil
}

func (f *fakeDriver) Read(pin int) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.readErr != nil {
		return false, f.readErr
	}
	return f.inputs[pin], nil
}

func (f *fakeDriver) WaitForLevel(int, bool, time.Duration) (time.Time, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.waits) == 0 {
		return time.Time{}, ErrTimeout
	}
	r := f.waits[0]
	f.waits = f.waits[1:]
	return r.at, r.err
}

// echoFor scripts one echo pulse whose length corresponds to distanceCm.
func echoFor(distanceCm float64) []waitResult {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	us := distanceCm * 2 / soundCmPerUs
	return []waitResult{
		{at: start},
		{at: start.Add(time.Duration(us * float64(time.Microsecond)))},
	}
}

func timeout() []waitResult {
	return []waitResult{{err: ErrTimeout}}
}

func newTestUltrasonic(drv TimingDriver, offset, factor float64) (*Ultrasonic, *[]time.Duration) {
	u := NewUltrasonic(drv, UltrasonicConfig{
		TriggerPin:   23,
		EchoPin:      24,
		Timeout:      30 * time.Millisecond,
		TankHeightCm: 100,
		Offset:       offset,
		Factor:       factor,
	})
	var slept []time.Duration
	u.sleep = func(d time.Duration) { slept = append(slept, d) }
	return u, &slept
}

func approx(a, b float64) bool {
	return math.Abs(a-b) < 1e-3
}

func TestUltrasonic_ReadAveragesSamples(t *testing.T) {
	t.Parallel()

	var script []waitResult
	script = append(script, echoFor(30)...)
	script = append(script, echoFor(32)...)
	script = append(script, echoFor(34)...)
	drv := &fakeDriver{waits: script}
	u, slept := newTestUltrasonic(drv, 0, 1)

	got, err := u.Read()
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if !approx(got, 32) {
		t.Fatalf("Read = %.4f, want 32", got)
	}

	var gaps int
	for _, d := range *slept {
		if d == sampleInterval {
			gaps++
		}
	}
	if gaps != samplesPerRead-1 {
		t.Fatalf("expected %d sample gaps, got %d", samplesPerRead-1, gaps)
	}
	// low, high, low per sample
	if len(drv.writes) != 3*samplesPerRead || !drv.writes[1] || drv.writes[2] {
		t.Fatalf("unexpected trigger sequence %v", drv.writes)
	}
}

func TestUltrasonic_ReadSkipsFailedSamples(t *testing.T) {
	t.Parallel()

	var script []waitResult
	script = append(script, timeout()...)
	script = append(script, echoFor(40)...)
	script = append(script, echoFor(20)[0], waitResult{err: ErrTimeout})
	drv := &fakeDriver{waits: script}
	u, _ := newTestUltrasonic(drv, 0, 1)

	got, err := u.Read()
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if !approx(got, 40) {
		t.Fatalf("Read = %.4f, want 40", got)
	}
}

func TestUltrasonic_ReadAllSamplesFail(t *testing.T) {
	t.Parallel()

	u, _ := newTestUltrasonic(&fakeDriver{}, 0, 1)
	_, err := u.Read()
	if !errors.Is(err, ErrNoSamples) {
		t.Fatalf("expected ErrNoSamples, got %v", err)
	}
}

func TestUltrasonic_OffsetAndFactor(t *testing.T) {
	t.Parallel()

	var script []waitResult
	for i := 0; i < samplesPerRead; i++ {
		script = append(script, echoFor(30)...)
	}
	u, _ := newTestUltrasonic(&fakeDriver{waits: script}, 2, 1.5)

	got, err := u.Read()
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if !approx(got, 48) {
		t.Fatalf("Read = %.4f, want (30+2)*1.5 = 48", got)
	}
}

func TestUltrasonic_Calibrate(t *testing.T) {
	t.Parallel()

	// raw 33cm while the water is actually at 70cm (distance should be 30)
	script := echoFor(33)
	for i := 0; i < samplesPerRead; i++ {
		script = append(script, echoFor(33)...)
	}
	u, _ := newTestUltrasonic(&fakeDriver{waits: script}, 0, 1)

	if err := u.Calibrate(70); err != nil {
		t.Fatalf("Calibrate: %v", err)
	}
	if !approx(u.Offset(), -3) {
		t.Fatalf("offset = %.4f, want -3", u.Offset())
	}
	got, err := u.Read()
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if !approx(got, 30) {
		t.Fatalf("calibrated Read = %.4f, want 30", got)
	}
}

func TestUltrasonic_CalibrateRejectsOutOfRange(t *testing.T) {
	t.Parallel()

	u, _ := newTestUltrasonic(&fakeDriver{}, 0, 1)
	for _, lvl := range []float64{-1, 101} {
		if err := u.Calibrate(lvl); !errors.Is(err, ErrInvalidLevel) {
			t.Fatalf("Calibrate(%v) = %v, want ErrInvalidLevel", lvl, err)
		}
	}
}

func TestUltrasonic_CalibrateSampleFails(t *testing.T) {
	t.Parallel()

	u, _ := newTestUltrasonic(&fakeDriver{}, 1, 1)
	if err := u.Calibrate(50); !errors.Is(err, ErrTimeout) {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}
	if u.Offset() != 1 {
		t.Fatalf("offset changed on failed calibration: %v", u.Offset())
	}
}

func TestMock(t *testing.T) {
	t.Parallel()

	m := NewMock(30)
	if m.Kind() != KindMock {
		t.Fatalf("kind = %s", m.Kind())
	}
	if err := m.Calibrate(55); err != nil {
		t.Fatalf("Calibrate: %v", err)
	}
	v, err := m.Read()
	if err != nil || v != 30 {
		t.Fatalf("Read = %v, %v; calibration must not change the value", v, err)
	}
	m.SetValue(12)
	if v, _ := m.Read(); v != 12 {
		t.Fatalf("Read after SetValue = %v", v)
	}
	if c := m.Calibrations(); len(c) != 1 || c[0] != 55 {
		t.Fatalf("calibrations = %v", c)
	}
}

func TestParseKind(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in   string
		want Kind
		ok   bool
	}{
		{"ultrasonic", KindUltrasonic, true},
		{" Mock ", KindMock, true},
		{"lidar", KindMock, false},
		{"", KindMock, false},
	}
	for _, tc := range cases {
		got, ok := ParseKind(tc.in)
		if got != tc.want || ok != tc.ok {
			t.Errorf("ParseKind(%q) = %s, %v; want %s, %v", tc.in, got, ok, tc.want, tc.ok)
		}
	}
}

func TestFloatSwitches(t *testing.T) {
	t.Parallel()

	drv := &fakeDriver{inputs: map[int]bool{5: true, 6: false}}
	fs := NewFloatSwitches(drv, map[string]int{"tank1": 5, "tank2": 6})

	if over, err := fs.IsOverflowing("tank1"); err != nil || !over {
		t.Fatalf("tank1 = %v, %v", over, err)
	}
	if over, err := fs.IsOverflowing("tank2"); err != nil || over {
		t.Fatalf("tank2 = %v, %v", over, err)
	}
	if _, err := fs.IsOverflowing("tank9"); !errors.Is(err, ErrUnknownTank) {
		t.Fatalf("expected ErrUnknownTank, got %v", err)
	}

	drv.readErr = errors.New("line busy")
	if _, err := fs.IsOverflowing("tank1"); err == nil {
		t.Fatal("expected read error")
	}
}

func TestStaticOverflow(t *testing.T) {
	t.Parallel()

	s := NewStaticOverflow()
	s.Set("tank1", true)
	if over, _ := s.IsOverflowing("tank1"); !over {
		t.Fatal("tank1 should overflow")
	}
	if over, _ := s.IsOverflowing("tank2"); over {
		t.Fatal("tank2 should not overflow")
	}
	boom := errors.New("boom")
	s.SetError(boom)
	if _, err := s.IsOverflowing("tank1"); !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
}

func TestUnavailable(t *testing.T) {
	t.Parallel()

	u := NewUltrasonic(Unavailable{}, UltrasonicConfig{TankHeightCm: 100, Timeout: time.Millisecond})
	u.sleep = func(time.Duration) {}
	if _, err := u.Read(); !errors.Is(err, ErrNoSamples) {
		t.Fatalf("expected ErrNoSamples, got %v", err)
	}
}
