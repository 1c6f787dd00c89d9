package handlers

import (
	"context"
	"net/http"
	"time"

	"controlling_tanks/internal/models"
	"controlling_tanks/internal/service"
	"controlling_tanks/internal/waterlevel"

	"github.com/gin-gonic/gin"
)

// ---- Service Mocks ----

type mockAuth struct {
	signUpID      int
	signUpErr     error
	genTokenToken string
	genTokenErr   error
	parseID       int
	parseErr      error

	lastSignUpUsername string
	lastSignUpPassword string
	lastGenUsername    string
	lastGenPassword    string
	lastParseToken     string
}

func (m *mockAuth) SignUp(username, password string) (int, error) {
	m.lastSignUpUsername = username
	m.lastSignUpPassword = password
	return m.signUpID, m.signUpErr
}
func (m *mockAuth) GenerateToken(username, password string) (string, error) {
	m.lastGenUsername = username
	m.lastGenPassword = password
	return m.genTokenToken, m.genTokenErr
}
func (m *mockAuth) ParseToken(token string) (int, error) {
	m.lastParseToken = token
	return m.parseID, m.parseErr
}

// mockPumps answers every PumpSafety call with err and records what it was asked.
type mockPumps struct {
	err        error
	stats      models.PumpStats
	all        []models.PumpStats
	withinLim  bool
	emergency  bool
	marker     *models.EmergencyMarker
	events     []models.SafetyEvent
	cal        models.PumpCalibration
	emergencyE error

	calls      []string
	lastID     string
	lastType   models.PumpType
	lastReason string
	lastSpeed  int
	lastLimit  int
	lastActual *float64
}

func (m *mockPumps) record(call, id string) error {
	m.calls = append(m.calls, call)
	m.lastID = id
	return m.err
}

func (m *mockPumps) CanStartPump(_ context.Context, id string, t models.PumpType) error {
	m.lastType = t
	return m.record("CanStartPump", id)
}
func (m *mockPumps) StartPump(_ context.Context, id string, t models.PumpType) error {
	m.lastType = t
	return m.record("StartPump", id)
}
func (m *mockPumps) StartOscillation(_ context.Context, id string, t models.PumpType) error {
	m.lastType = t
	return m.record("StartOscillation", id)
}
func (m *mockPumps) RegisterPumpStart(_ context.Context, id string, t models.PumpType) error {
	m.lastType = t
	return m.record("RegisterPumpStart", id)
}
func (m *mockPumps) RegisterOscillationStart(_ context.Context, id string, t models.PumpType) error {
	m.lastType = t
	return m.record("RegisterOscillationStart", id)
}
func (m *mockPumps) RegisterPumpStop(_ context.Context, id, reason string) error {
	m.lastReason = reason
	return m.record("RegisterPumpStop", id)
}
func (m *mockPumps) CheckRuntimeLimit(id string, t models.PumpType) bool {
	m.lastType = t
	_ = m.record("CheckRuntimeLimit", id)
	return m.withinLim
}
func (m *mockPumps) CheckOscillationSafety(_ context.Context, id string, speedMs int) error {
	m.lastSpeed = speedMs
	return m.record("CheckOscillationSafety", id)
}
func (m *mockPumps) ResetOscillationCounter(id string) error {
	return m.record("ResetOscillationCounter", id)
}
func (m *mockPumps) EmergencyShutdown(_ context.Context, reason string) error {
	m.calls = append(m.calls, "EmergencyShutdown")
	m.lastReason = reason
	m.emergency = true
	m.marker = &models.EmergencyMarker{Timestamp: time.Now().Add(-time.Minute), Reason: reason}
	return m.emergencyE
}
func (m *mockPumps) ResetEmergencyStop(context.Context) error {
	m.calls = append(m.calls, "ResetEmergencyStop")
	if m.emergencyE != nil {
		return m.emergencyE
	}
	m.emergency, m.marker = false, nil
	return nil
}
func (m *mockPumps) EmergencyStatus() (bool, *models.EmergencyMarker) { return m.emergency, m.marker }
func (m *mockPumps) MarkFault(_ context.Context, id, reason string) error {
	m.lastReason = reason
	return m.record("MarkFault", id)
}
func (m *mockPumps) ClearFault(id string) error       { return m.record("ClearFault", id) }
func (m *mockPumps) EnterMaintenance(id string) error { return m.record("EnterMaintenance", id) }
func (m *mockPumps) CompleteMaintenance(id string) error {
	return m.record("CompleteMaintenance", id)
}
func (m *mockPumps) CalibratePump(_ context.Context, id string, t models.PumpType, actual *float64) (models.PumpCalibration, error) {
	m.lastType = t
	m.lastActual = actual
	return m.cal, m.record("CalibratePump", id)
}
func (m *mockPumps) GetPumpStats(id string) (models.PumpStats, error) {
	st := m.stats
	st.PumpID = id
	return st, nil
}
func (m *mockPumps) AllPumpStats() []models.PumpStats { return m.all }
func (m *mockPumps) RecentEvents(limit int) []models.SafetyEvent {
	m.lastLimit = limit
	return m.events
}

type mockLevels struct {
	readings     map[string]models.WaterLevelReading
	err          error
	calibrateErr error
	stats        []waterlevel.MonitorStats

	lastCalibrated map[string]float64
}

func (m *mockLevels) GetTankLevel(id string) (models.WaterLevelReading, error) {
	if m.err != nil {
		return models.WaterLevelReading{}, m.err
	}
	return m.readings[id], nil
}
func (m *mockLevels) GetAllLevels() []models.WaterLevelReading {
	var out []models.WaterLevelReading
	for _, id := range m.TankIDs() {
		out = append(out, m.readings[id])
	}
	return out
}
func (m *mockLevels) CalibrateTank(id string, cm float64) error {
	if m.calibrateErr != nil {
		return m.calibrateErr
	}
	if m.lastCalibrated == nil {
		m.lastCalibrated = map[string]float64{}
	}
	m.lastCalibrated[id] = cm
	return nil
}
func (m *mockLevels) GetStats() []waterlevel.MonitorStats { return m.stats }
func (m *mockLevels) TankIDs() []string                   { return []string{"tank1", "tank2"} }

type mockHistory struct {
	readings  []models.WaterLevelReading
	err       error
	lastTank  string
	lastLimit int
}

func (m *mockHistory) History(_ context.Context, tankID string, limit int) ([]models.WaterLevelReading, error) {
	m.lastTank, m.lastLimit = tankID, limit
	return m.readings, m.err
}

type mockMonitoring struct {
	status models.SystemStatus
	err    error
}

func (m *mockMonitoring) GetStatus(ctx context.Context) (models.SystemStatus, error) {
	return m.status, m.err
}

type mockEventLog struct {
	resp     []models.SafetyEvent
	err      error
	lastFrom time.Time
	lastTo   time.Time
	lastType string
}

func (m *mockEventLog) List(ctx context.Context, f service.LogFilter) ([]models.SafetyEvent, error) {
	m.lastFrom = f.From
	m.lastTo = f.To
	m.lastType = f.Type
	return m.resp, m.err
}

// ---- Shared Test Helpers ----

func newTestRouter(s *service.Service) *gin.Engine {
	h := NewHandler(s, nil, nil)
	gin.SetMode(gin.TestMode)
	return h.InitRoutes()
}

func authHeader(token string) http.Header {
	h := http.Header{}
	if token != "" {
		h.Set("Authorization", "Bearer "+token)
	}
	return h
}
