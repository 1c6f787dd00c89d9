package sensor

import "sync"

// DefaultMockDistanceCm puts a 100cm tank at half full.
const DefaultMockDistanceCm = 50.0

// Mock returns a fixed distance and never fails.
type Mock struct {
	mu           sync.Mutex
	value        float64
	calibrations []float64
}

func NewMock(distanceCm float64) *Mock {
	return &Mock{value: distanceCm}
}

func (m *Mock) Kind() Kind { return KindMock }

func (m *Mock) Read() (float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.value, nil
}

// SetValue changes the distance returned by Read.
func (m *Mock) SetValue(distanceCm float64) {
	m.mu.Lock()
	m.value = distanceCm
	m.mu.Unlock()
}

// Calibrate records the requested level; the reported distance is unchanged.
func (m *Mock) Calibrate(actualLevelCm float64) error {
	m.mu.Lock()
	m.calibrations = append(m.calibrations, actualLevelCm)
	m.mu.Unlock()
	return nil
}

// Calibrations returns every level passed to Calibrate, oldest first.
func (m *Mock) Calibrations() []float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]float64(nil), m.calibrations...)
}
