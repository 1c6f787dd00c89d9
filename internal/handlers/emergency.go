package handlers

import (
	"net/http"
	"time"

	"controlling_tanks/internal/models"

	"github.com/dustin/go-humanize"
	"github.com/gin-gonic/gin"
)

// EmergencyRequest engages the emergency stop.
type EmergencyRequest struct {
	Reason string `json:"reason" binding:"required" example:"manual stop"`
}

func (h *Handler) emergencyView() models.EmergencyStatus {
	active, marker := h.services.PumpSafety.EmergencyStatus()
	out := models.EmergencyStatus{Active: active}
	if marker != nil {
		out.Reason = marker.Reason
		out.Since = marker.Timestamp
		out.Age = humanize.RelTime(marker.Timestamp, time.Now(), "ago", "from now")
	}
	return out
}

// @Summary      Emergency latch
// @Tags         emergency
// @Produce      json
// @Success      200  {object}  models.EmergencyStatus
// @Router       /api/v1/emergency [get]
// @Security     BearerAuth
func (h *Handler) getEmergency(c *gin.Context) {
	c.JSON(http.StatusOK, h.emergencyView())
}

// @Summary      Emergency shutdown
// @Description  Stops every active pump and blocks all starts until reset.
// @Tags         emergency
// @Accept       json
// @Produce      json
// @Param        body  body   EmergencyRequest  true  "Reason"
// @Success      200   {object}  models.EmergencyStatus
// @Failure      400   {object}  map[string]string
// @Router       /api/v1/emergency [post]
// @Security     BearerAuth
func (h *Handler) triggerEmergency(c *gin.Context) {
	var req EmergencyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": errInvalidBodyPref + err.Error()})
		return
	}
	if err := h.services.PumpSafety.EmergencyShutdown(c.Request.Context(), req.Reason); err != nil {
		// the latch is engaged even when the marker could not be written
		if h.log != nil {
			h.log.Errorw("emergency_marker_failed", "err", err)
		}
		c.JSON(http.StatusOK, gin.H{"emergency": h.emergencyView(), "warning": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"emergency": h.emergencyView()})
}

// @Summary      Reset emergency stop
// @Tags         emergency
// @Produce      json
// @Success      200  {object}  models.EmergencyStatus
// @Failure      500  {object}  map[string]string
// @Router       /api/v1/emergency/reset [post]
// @Security     BearerAuth
func (h *Handler) resetEmergency(c *gin.Context) {
	operator, _ := c.Get(operatorCtxKey)
	if err := h.services.PumpSafety.ResetEmergencyStop(c.Request.Context()); err != nil {
		h.logAndJSONError(c, http.StatusInternalServerError, "failed to reset emergency stop", "emergency_reset_failed", err)
		return
	}
	if h.log != nil {
		h.log.Warnw("emergency_reset_by_operator", "operator_id", operator)
	}
	c.JSON(http.StatusOK, gin.H{"emergency": h.emergencyView()})
}
