package handlers

import (
	"net/http"
	"strings"

	"controlling_tanks/internal/models"

	"github.com/gin-gonic/gin"
)

const (
	modeRun       = "run"
	modeOscillate = "oscillate"

	statusStarted = "started"
	statusStopped = "stopped"
	statusAllowed = "allowed"
)

// StartPumpRequest starts a pump after the safety checks pass.
type StartPumpRequest struct {
	// Pump type. Allowed: fill, drain, circulation, auxiliary
	Type string `json:"type" binding:"required" example:"fill"`
	// run (default) or oscillate
	Mode string `json:"mode,omitempty" example:"run"`
}

// StopPumpRequest records the end of a run.
type StopPumpRequest struct {
	Reason string `json:"reason,omitempty" example:"target level reached"`
}

// OscillationRequest reports one oscillation half-cycle.
type OscillationRequest struct {
	SpeedMs *int `json:"speed_ms" binding:"required" example:"1000"`
}

// CalibratePumpRequest calibrates a pump; ActualLevelCm also calibrates its tank sensor.
type CalibratePumpRequest struct {
	Type          string   `json:"type" binding:"required" example:"drain"`
	ActualLevelCm *float64 `json:"actual_level_cm,omitempty" example:"42.5"`
}

// FaultRequest takes a pump out of service.
type FaultRequest struct {
	Reason string `json:"reason" binding:"required" example:"dry run detected"`
}

// pumpTypeOrBadRequest parses a pump type and writes a 400 on failure.
func pumpTypeOrBadRequest(c *gin.Context, raw string) (models.PumpType, bool) {
	t, err := models.ParsePumpType(raw)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return "", false
	}
	return t, true
}

// @Summary      List pumps
// @Tags         pumps
// @Produce      json
// @Success      200  {object}  map[string]interface{}  "count, pumps"
// @Failure      401  {object}  map[string]string
// @Router       /api/v1/pumps [get]
// @Security     BearerAuth
func (h *Handler) listPumps(c *gin.Context) {
	pumps := h.services.PumpSafety.AllPumpStats()
	c.JSON(http.StatusOK, gin.H{"count": len(pumps), "pumps": pumps})
}

// @Summary      Pump statistics
// @Tags         pumps
// @Produce      json
// @Param        id   path      string  true  "Pump id"
// @Success      200  {object}  models.PumpStats
// @Failure      400  {object}  map[string]string
// @Router       /api/v1/pumps/{id} [get]
// @Security     BearerAuth
func (h *Handler) getPump(c *gin.Context) {
	st, err := h.services.PumpSafety.GetPumpStats(c.Param("id"))
	if err != nil {
		h.respondServiceError(c, "failed to load pump", "pump_stats_failed", err)
		return
	}
	c.JSON(http.StatusOK, st)
}

// @Summary      Check whether a pump may start
// @Tags         pumps
// @Produce      json
// @Param        id    path   string  true  "Pump id"
// @Param        type  query  string  true  "Pump type"  Enums(fill,drain,circulation,auxiliary)
// @Success      200   {object}  map[string]interface{}
// @Failure      409   {object}  map[string]interface{}  "denied with reason"
// @Router       /api/v1/pumps/{id}/can-start [get]
// @Security     BearerAuth
func (h *Handler) canStartPump(c *gin.Context) {
	t, ok := pumpTypeOrBadRequest(c, c.Query("type"))
	if !ok {
		return
	}
	id := c.Param("id")
	if err := h.services.PumpSafety.CanStartPump(c.Request.Context(), id, t); err != nil {
		h.respondServiceError(c, "failed to check pump", "pump_can_start_failed", err, "pump_id", id)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": statusAllowed, "pump_id": id})
}

// @Summary      Check the runtime ceiling of a running pump
// @Tags         pumps
// @Produce      json
// @Param        id    path   string  true  "Pump id"
// @Param        type  query  string  true  "Pump type"  Enums(fill,drain,circulation,auxiliary)
// @Success      200   {object}  map[string]interface{}  "within_limit"
// @Router       /api/v1/pumps/{id}/runtime [get]
// @Security     BearerAuth
func (h *Handler) checkRuntime(c *gin.Context) {
	t, ok := pumpTypeOrBadRequest(c, c.Query("type"))
	if !ok {
		return
	}
	id := c.Param("id")
	if err := models.ValidatePumpID(id); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"pump_id":       id,
		"within_limit":  h.services.PumpSafety.CheckRuntimeLimit(id, t),
		"max_runtime_s": int(t.MaxRuntime().Seconds()),
	})
}

// @Summary      Start pump
// @Description  Runs every safety check, then registers the start.
// @Tags         pumps
// @Accept       json
// @Produce      json
// @Param        id    path   string            true  "Pump id"
// @Param        body  body   StartPumpRequest  true  "Start payload"
// @Success      200   {object}  map[string]interface{}  "status, pump"
// @Failure      400   {object}  map[string]string
// @Failure      409   {object}  map[string]interface{}
// @Router       /api/v1/pumps/{id}/start [post]
// @Security     BearerAuth
func (h *Handler) startPump(c *gin.Context) {
	var req StartPumpRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": errInvalidBodyPref + err.Error()})
		return
	}
	t, ok := pumpTypeOrBadRequest(c, req.Type)
	if !ok {
		return
	}
	id := c.Param("id")
	ctx := c.Request.Context()

	var err error
	switch strings.ToLower(strings.TrimSpace(req.Mode)) {
	case "", modeRun:
		err = h.services.PumpSafety.StartPump(ctx, id, t)
	case modeOscillate:
		err = h.services.PumpSafety.StartOscillation(ctx, id, t)
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "mode must be run or oscillate"})
		return
	}
	if err != nil {
		h.respondServiceError(c, "failed to start pump", "pump_start_failed", err, "pump_id", id)
		return
	}
	h.respondWithPump(c, statusStarted, id)
}

// @Summary      Stop pump
// @Tags         pumps
// @Accept       json
// @Produce      json
// @Param        id    path   string           true   "Pump id"
// @Param        body  body   StopPumpRequest  false  "Stop payload"
// @Success      200   {object}  map[string]interface{}
// @Failure      409   {object}  map[string]string
// @Router       /api/v1/pumps/{id}/stop [post]
// @Security     BearerAuth
func (h *Handler) stopPump(c *gin.Context) {
	var req StopPumpRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": errInvalidBodyPref + err.Error()})
			return
		}
	}
	if req.Reason == "" {
		req.Reason = "operator request"
	}
	id := c.Param("id")
	if err := h.services.PumpSafety.RegisterPumpStop(c.Request.Context(), id, req.Reason); err != nil {
		h.respondServiceError(c, "failed to stop pump", "pump_stop_failed", err, "pump_id", id)
		return
	}
	h.respondWithPump(c, statusStopped, id)
}

// @Summary      Validate one oscillation half-cycle
// @Tags         pumps
// @Accept       json
// @Produce      json
// @Param        id    path   string              true  "Pump id"
// @Param        body  body   OscillationRequest  true  "Cycle speed"
// @Success      200   {object}  map[string]interface{}
// @Failure      409   {object}  map[string]interface{}
// @Router       /api/v1/pumps/{id}/oscillation/check [post]
// @Security     BearerAuth
func (h *Handler) checkOscillation(c *gin.Context) {
	var req OscillationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": errInvalidBodyPref + err.Error()})
		return
	}
	id := c.Param("id")
	if err := h.services.PumpSafety.CheckOscillationSafety(c.Request.Context(), id, *req.SpeedMs); err != nil {
		h.respondServiceError(c, "failed to check oscillation", "oscillation_check_failed", err, "pump_id", id)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": statusAllowed, "pump_id": id})
}

// @Summary      Reset the oscillation cycle counter
// @Tags         pumps
// @Produce      json
// @Param        id   path  string  true  "Pump id"
// @Success      200  {object}  map[string]string
// @Router       /api/v1/pumps/{id}/oscillation/reset [post]
// @Security     BearerAuth
func (h *Handler) resetOscillation(c *gin.Context) {
	id := c.Param("id")
	if err := h.services.PumpSafety.ResetOscillationCounter(id); err != nil {
		h.respondServiceError(c, "failed to reset oscillation", "oscillation_reset_failed", err, "pump_id", id)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": statusOK})
}

// @Summary      Calibrate pump
// @Tags         pumps
// @Accept       json
// @Produce      json
// @Param        id    path   string                true  "Pump id"
// @Param        body  body   CalibratePumpRequest  true  "Calibration payload"
// @Success      200   {object}  models.PumpCalibration
// @Failure      400   {object}  map[string]string
// @Failure      409   {object}  map[string]interface{}
// @Router       /api/v1/pumps/{id}/calibrate [post]
// @Security     BearerAuth
func (h *Handler) calibratePump(c *gin.Context) {
	var req CalibratePumpRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": errInvalidBodyPref + err.Error()})
		return
	}
	t, ok := pumpTypeOrBadRequest(c, req.Type)
	if !ok {
		return
	}
	id := c.Param("id")
	cal, err := h.services.PumpSafety.CalibratePump(c.Request.Context(), id, t, req.ActualLevelCm)
	if err != nil {
		h.respondServiceError(c, "failed to calibrate pump", "pump_calibrate_failed", err, "pump_id", id)
		return
	}
	c.JSON(http.StatusOK, cal)
}

// @Summary      Mark pump faulty
// @Tags         pumps
// @Accept       json
// @Produce      json
// @Param        id    path   string        true  "Pump id"
// @Param        body  body   FaultRequest  true  "Fault reason"
// @Success      200   {object}  map[string]interface{}
// @Router       /api/v1/pumps/{id}/fault [post]
// @Security     BearerAuth
func (h *Handler) markFault(c *gin.Context) {
	var req FaultRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": errInvalidBodyPref + err.Error()})
		return
	}
	id := c.Param("id")
	if err := h.services.PumpSafety.MarkFault(c.Request.Context(), id, req.Reason); err != nil {
		h.respondServiceError(c, "failed to mark fault", "pump_fault_failed", err, "pump_id", id)
		return
	}
	h.respondWithPump(c, string(models.PumpFault), id)
}

// @Summary      Clear pump fault
// @Tags         pumps
// @Produce      json
// @Param        id   path  string  true  "Pump id"
// @Success      200  {object}  map[string]interface{}
// @Failure      409  {object}  map[string]string
// @Router       /api/v1/pumps/{id}/fault [delete]
// @Security     BearerAuth
func (h *Handler) clearFault(c *gin.Context) {
	id := c.Param("id")
	if err := h.services.PumpSafety.ClearFault(id); err != nil {
		h.respondServiceError(c, "failed to clear fault", "pump_clear_fault_failed", err, "pump_id", id)
		return
	}
	h.respondWithPump(c, string(models.PumpIdle), id)
}

// @Summary      Put pump into maintenance
// @Tags         pumps
// @Produce      json
// @Param        id   path  string  true  "Pump id"
// @Success      200  {object}  map[string]interface{}
// @Failure      409  {object}  map[string]string
// @Router       /api/v1/pumps/{id}/maintenance [post]
// @Security     BearerAuth
func (h *Handler) enterMaintenance(c *gin.Context) {
	id := c.Param("id")
	if err := h.services.PumpSafety.EnterMaintenance(id); err != nil {
		h.respondServiceError(c, "failed to enter maintenance", "pump_maintenance_failed", err, "pump_id", id)
		return
	}
	h.respondWithPump(c, string(models.PumpMaintenance), id)
}

// @Summary      Complete maintenance
// @Description  Resets the maintenance hours and returns the pump to idle.
// @Tags         pumps
// @Produce      json
// @Param        id   path  string  true  "Pump id"
// @Success      200  {object}  map[string]interface{}
// @Router       /api/v1/pumps/{id}/maintenance [delete]
// @Security     BearerAuth
func (h *Handler) completeMaintenance(c *gin.Context) {
	id := c.Param("id")
	if err := h.services.PumpSafety.CompleteMaintenance(id); err != nil {
		h.respondServiceError(c, "failed to complete maintenance", "pump_maintenance_complete_failed", err, "pump_id", id)
		return
	}
	h.respondWithPump(c, "maintenance_completed", id)
}

// respondWithPump writes status plus the pump's current stats (best-effort).
func (h *Handler) respondWithPump(c *gin.Context, status, id string) {
	resp := gin.H{"status": status}
	if st, err := h.services.PumpSafety.GetPumpStats(id); err == nil {
		resp["pump"] = st
	}
	c.JSON(http.StatusOK, resp)
}
