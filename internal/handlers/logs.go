package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"controlling_tanks/internal/service"

	"github.com/gin-gonic/gin"
)

const (
	defaultRecentLimit = 50
	maxRecentLimit     = 1000
)

// Accepted layouts for ?from and ?to, tried in order.
var queryTimeLayouts = []string{time.RFC3339, "2006-01-02 15:04:05", time.DateOnly}

// logQuery is the raw query string of GET /logs.
type logQuery struct {
	From string `form:"from"`
	To   string `form:"to"`
	Type string `form:"type"`
}

// filter turns the query into a LogFilter. A date-only ?to covers the whole day.
func (q logQuery) filter() (service.LogFilter, error) {
	var f service.LogFilter
	var err error
	if q.From != "" {
		if f.From, err = parseQueryTime(q.From); err != nil {
			return f, fmt.Errorf("invalid 'from': %w", err)
		}
	}
	if q.To != "" {
		if f.To, err = parseQueryTime(q.To); err != nil {
			return f, fmt.Errorf("invalid 'to': %w", err)
		}
		if !strings.ContainsAny(q.To, "T ") {
			f.To = f.To.AddDate(0, 0, 1).Add(-time.Nanosecond)
		}
	}
	if !f.From.IsZero() && !f.To.IsZero() && f.From.After(f.To) {
		return f, errors.New("'from' must be <= 'to'")
	}
	f.Type = strings.ToUpper(strings.TrimSpace(q.Type))
	return f, nil
}

// @Summary      List safety events
// @Description  Events in [from, to], optionally of one type. Times are RFC3339, 'YYYY-MM-DD HH:MM:SS' or 'YYYY-MM-DD'; a date-only 'to' includes that whole day.
// @Tags         logs
// @Produce      json
// @Param        from  query   string  false  "Start of range"  example(2025-08-01)
// @Param        to    query   string  false  "End of range"  example(2025-08-31)
// @Param        type  query   string  false  "Event type"  Enums(PUMP_STARTED,PUMP_STOPPED,OVERFLOW_DETECTED,EMERGENCY_SHUTDOWN,SAFETY_CHECK_FAILED,MAINTENANCE_REQUIRED)
// @Success      200   {object}  map[string]interface{}  "count, events"
// @Failure      400   {object}  map[string]string
// @Failure      401   {object}  map[string]string
// @Failure      500   {object}  map[string]string
// @Router       /api/v1/logs [get]
// @Security     BearerAuth
func (h *Handler) getLogs(c *gin.Context) {
	var q logQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	f, err := q.filter()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	events, err := h.services.EventLog.List(c.Request.Context(), f)
	switch {
	case service.IsFilterError(err):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case err != nil:
		h.logAndJSONError(c, http.StatusInternalServerError, "failed to load logs", "logs_list_failed", err,
			"from", f.From, "to", f.To, "type", f.Type)
	default:
		c.JSON(http.StatusOK, gin.H{"count": len(events), "events": events})
	}
}

// @Summary      Recent safety events
// @Description  Newest in-memory events, oldest first. Includes events not yet persisted.
// @Tags         logs
// @Produce      json
// @Param        limit  query  int  false  "Maximum number of events (default 50, max 1000)"
// @Success      200    {object}  map[string]interface{}  "count, events"
// @Router       /api/v1/logs/recent [get]
// @Security     BearerAuth
func (h *Handler) recentEvents(c *gin.Context) {
	limit := defaultRecentLimit
	if s := c.Query("limit"); s != "" {
		v, err := strconv.Atoi(s)
		if err != nil || v < 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return
		}
		limit = min(v, maxRecentLimit)
	}
	events := h.services.PumpSafety.RecentEvents(limit)
	c.JSON(http.StatusOK, gin.H{"count": len(events), "events": events})
}

func parseQueryTime(s string) (time.Time, error) {
	for _, layout := range queryTimeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("%q is not RFC3339, 'YYYY-MM-DD HH:MM:SS' or 'YYYY-MM-DD'", s)
}
