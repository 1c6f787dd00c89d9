package handlers

import (
	"errors"
	"net/http"

	"controlling_tanks/internal/models"
	"controlling_tanks/internal/sensor"
	"controlling_tanks/internal/service"
	"controlling_tanks/internal/waterlevel"

	"github.com/gin-gonic/gin"
)

// Centralized error logging and response.
func (h *Handler) logAndJSONError(c *gin.Context, httpCode int, userMsg, logKey string, err error, kv ...interface{}) {
	if h.log != nil && err != nil {
		fields := append([]interface{}{"err", err}, kv...)
		h.log.Errorw(logKey, fields...)
	}
	c.JSON(httpCode, gin.H{"error": userMsg})
}

// respondServiceError maps service errors onto HTTP codes. Safety denials and
// invalid transitions are conflicts; their messages are meant for operators.
func (h *Handler) respondServiceError(c *gin.Context, userMsg, logKey string, err error, kv ...interface{}) {
	switch {
	case service.IsDenial(err):
		if h.log != nil {
			h.log.Infow(logKey, append([]interface{}{"denied", err.Error()}, kv...)...)
		}
		c.JSON(http.StatusConflict, gin.H{"error": err.Error(), "denied": true})
	case errors.Is(err, service.ErrInvalidTransition):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, models.ErrInvalidPumpID), errors.Is(err, sensor.ErrInvalidLevel):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, waterlevel.ErrTankNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	default:
		h.logAndJSONError(c, http.StatusInternalServerError, userMsg, logKey, err, kv...)
	}
}
