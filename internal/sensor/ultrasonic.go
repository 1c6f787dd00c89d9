package sensor

import (
	"fmt"
	"sync"
	"time"
)

const (
	// speed of sound in cm per microsecond at ~20°C
	soundCmPerUs = 0.0343

	samplesPerRead = 3
	sampleInterval = 50 * time.Millisecond
	triggerPulse   = 10 * time.Microsecond
	triggerSettle  = 2 * time.Microsecond
)

// UltrasonicConfig describes one trigger/echo sensor mounted above a tank.
type UltrasonicConfig struct {
	TriggerPin   int
	EchoPin      int
	Timeout      time.Duration
	TankHeightCm float64
	Offset       float64
	Factor       float64
}

// Ultrasonic is an HC-SR04 style sensor.
type Ultrasonic struct {
	drv TimingDriver
	cfg UltrasonicConfig

	// sleep is replaced in tests
	sleep func(time.Duration)

	mu     sync.Mutex
	offset float64
}

func NewUltrasonic(drv TimingDriver, cfg UltrasonicConfig) *Ultrasonic {
	if cfg.Factor == 0 {
		cfg.Factor = 1
	}
	return &Ultrasonic{
		drv:    drv,
		cfg:    cfg,
		sleep:  time.Sleep,
		offset: cfg.Offset,
	}
}

func (u *Ultrasonic) Kind() Kind { return KindUltrasonic }

// Offset returns the current calibration offset in centimetres.
func (u *Ultrasonic) Offset() float64 {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.offset
}

// rawDistance fires one trigger pulse and times the echo.
func (u *Ultrasonic) rawDistance() (float64, error) {
	if err := u.drv.Write(u.cfg.TriggerPin, false); err != nil {
		return 0, fmt.Errorf("trigger low: %w", err)
	}
	u.sleep(triggerSettle)
	if err := u.drv.Write(u.cfg.TriggerPin, true); err != nil {
		return 0, fmt.Errorf("trigger high: %w", err)
	}
	u.sleep(triggerPulse)
	if err := u.drv.Write(u.cfg.TriggerPin, false); err != nil {
		return 0, fmt.Errorf("trigger low: %w", err)
	}

	rise, err := u.drv.WaitForLevel(u.cfg.EchoPin, true, u.cfg.Timeout)
	if err != nil {
		return 0, fmt.Errorf("waiting for echo start: %w", err)
	}
	fall, err := u.drv.WaitForLevel(u.cfg.EchoPin, false, u.cfg.Timeout)
	if err != nil {
		return 0, fmt.Errorf("waiting for echo end: %w", err)
	}

	us := float64(fall.Sub(rise)) / float64(time.Microsecond)
	return us * soundCmPerUs / 2, nil
}

// Read averages up to three samples taken 50ms apart. It fails only when all
// of them fail.
func (u *Ultrasonic) Read() (float64, error) {
	u.mu.Lock()
	defer u.mu.Unlock()

	var (
		sum     float64
		n       int
		lastErr error
	)
	for i := 0; i < samplesPerRead; i++ {
		if i > 0 {
			u.sleep(sampleInterval)
		}
		raw, err := u.rawDistance()
		if err != nil {
			lastErr = err
			continue
		}
		sum += (raw + u.offset) * u.cfg.Factor
		n++
	}
	if n == 0 {
		return 0, fmt.Errorf("%w: %v", ErrNoSamples, lastErr)
	}
	return sum / float64(n), nil
}

// Calibrate takes one fresh sample and shifts the offset so that sample maps
// to the distance implied by actualLevelCm.
func (u *Ultrasonic) Calibrate(actualLevelCm float64) error {
	if actualLevelCm < 0 || actualLevelCm > u.cfg.TankHeightCm {
		return fmt.Errorf("%w: %.1f cm (tank height %.1f cm)", ErrInvalidLevel, actualLevelCm, u.cfg.TankHeightCm)
	}

	u.mu.Lock()
	defer u.mu.Unlock()

	raw, err := u.rawDistance()
	if err != nil {
		return fmt.Errorf("calibration sample: %w", err)
	}
	expected := u.cfg.TankHeightCm - actualLevelCm
	u.offset = expected/u.cfg.Factor - raw
	return nil
}
