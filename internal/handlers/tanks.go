package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

// CalibrateTankRequest carries the measured water level.
type CalibrateTankRequest struct {
	ActualLevelCm *float64 `json:"actual_level_cm" binding:"required" example:"42.5"`
}

// @Summary      Read every tank
// @Tags         tanks
// @Produce      json
// @Success      200  {object}  map[string]interface{}  "count, tanks"
// @Router       /api/v1/tanks [get]
// @Security     BearerAuth
func (h *Handler) listTanks(c *gin.Context) {
	tanks := h.services.Levels.GetAllLevels()
	c.JSON(http.StatusOK, gin.H{"count": len(tanks), "tanks": tanks})
}

// @Summary      Read one tank
// @Tags         tanks
// @Produce      json
// @Param        id   path      string  true  "Tank id"  Enums(tank1,tank2)
// @Success      200  {object}  models.WaterLevelReading
// @Failure      404  {object}  map[string]string
// @Router       /api/v1/tanks/{id} [get]
// @Security     BearerAuth
func (h *Handler) getTank(c *gin.Context) {
	id := c.Param("id")
	r, err := h.services.Levels.GetTankLevel(id)
	if err != nil {
		h.respondServiceError(c, "failed to read tank", "tank_read_failed", err, "tank_id", id)
		return
	}
	c.JSON(http.StatusOK, r)
}

// @Summary      Calibrate a tank sensor
// @Tags         tanks
// @Accept       json
// @Produce      json
// @Param        id    path   string                true  "Tank id"
// @Param        body  body   CalibrateTankRequest  true  "Measured level"
// @Success      200   {object}  map[string]interface{}
// @Failure      400   {object}  map[string]string
// @Failure      404   {object}  map[string]string
// @Router       /api/v1/tanks/{id}/calibrate [post]
// @Security     BearerAuth
func (h *Handler) calibrateTank(c *gin.Context) {
	var req CalibrateTankRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": errInvalidBodyPref + err.Error()})
		return
	}
	id := c.Param("id")
	if err := h.services.Levels.CalibrateTank(id, *req.ActualLevelCm); err != nil {
		h.respondServiceError(c, "failed to calibrate tank", "tank_calibrate_failed", err, "tank_id", id)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "calibrated", "tank_id": id})
}

// @Summary      Sensor statistics per tank
// @Tags         tanks
// @Produce      json
// @Success      200  {object}  map[string]interface{}  "tanks"
// @Router       /api/v1/tanks/stats [get]
// @Security     BearerAuth
func (h *Handler) tankStats(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"tanks": h.services.Levels.GetStats()})
}

// @Summary      Stored level history
// @Description  Readings sampled by the supervisor, newest first.
// @Tags         tanks
// @Produce      json
// @Param        id     path   string  true   "Tank id"
// @Param        limit  query  int     false  "Maximum number of readings (default 100)"
// @Success      200    {object}  map[string]interface{}  "count, readings"
// @Failure      400    {object}  map[string]string
// @Failure      404    {object}  map[string]string
// @Router       /api/v1/tanks/{id}/history [get]
// @Security     BearerAuth
func (h *Handler) tankHistory(c *gin.Context) {
	limit := 0
	if s := c.Query("limit"); s != "" {
		v, err := strconv.Atoi(s)
		if err != nil || v < 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return
		}
		limit = v
	}
	id := c.Param("id")
	readings, err := h.services.LevelHistory.History(c.Request.Context(), id, limit)
	if err != nil {
		h.respondServiceError(c, "failed to load level history", "tank_history_failed", err, "tank_id", id)
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": len(readings), "readings": readings})
}
