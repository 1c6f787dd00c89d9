package handlers

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"controlling_tanks/internal/logger"
	"controlling_tanks/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	maxMsgSize = 1 << 12 // clients only send control frames

	defaultPushInterval = time.Second
	minPushInterval     = 10 * time.Millisecond
	maxPushInterval     = 10 * time.Second
)

// wsEnvelope is every frame on the stream: type "status" with data, or "error".
type wsEnvelope struct {
	Type  string      `json:"type"`
	Data  interface{} `json:"data,omitempty"`
	Error string      `json:"error,omitempty"`
}

// The stream is read-only and served on the controller's local network, so
// any origin may subscribe.
var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// pushInterval reads ?interval=2s or ?interval_ms=2000. Out of range or
// malformed values fall back to the default.
func pushInterval(c *gin.Context) time.Duration {
	if s := c.Query("interval"); s != "" {
		if d, err := time.ParseDuration(s); err == nil && d >= minPushInterval && d <= maxPushInterval {
			return d
		}
	}
	if s := c.Query("interval_ms"); s != "" {
		if ms, err := strconv.Atoi(s); err == nil {
			if d := time.Duration(ms) * time.Millisecond; d >= minPushInterval && d <= maxPushInterval {
				return d
			}
		}
	}
	return defaultPushInterval
}

// @Summary      Live status stream
// @Description  WebSocket. Pushes the system status every interval (default 1s, max 10s).
// @Tags         system
// @Param        interval     query  string  false  "Push interval, e.g. 2s"
// @Param        interval_ms  query  int     false  "Push interval in milliseconds"
// @Router       /ws [get]
func (h *Handler) wsConnect(c *gin.Context) {
	interval := pushInterval(c)

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		if h.log != nil {
			h.log.Errorw("ws_upgrade_failed", "err", err)
		}
		return
	}
	defer func() { _ = conn.Close() }()

	log := h.log
	if log == nil {
		log = logger.NewNop()
	}
	s := &statusStream{conn: conn, status: h.services.Monitoring, log: log}
	s.run(c.Request.Context(), interval)
}

// statusStream pushes status frames to one client until it goes away.
type statusStream struct {
	conn   *websocket.Conn
	status service.Monitoring
	log    *logger.Logger
}

func (s *statusStream) run(ctx context.Context, interval time.Duration) {
	s.conn.SetReadLimit(maxMsgSize)
	_ = s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	gone := make(chan struct{})
	go s.drain(gone)

	push := time.NewTicker(interval)
	defer push.Stop()
	ping := time.NewTicker(pingPeriod)
	defer ping.Stop()

	if err := s.push(ctx); err != nil {
		s.log.Infow("ws_write_failed", "err", err)
		return
	}
	for {
		select {
		case <-gone:
			return
		case <-ctx.Done():
			return
		case <-ping.C:
			if err := s.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				s.log.Infow("ws_ping_failed", "err", err)
				return
			}
		case <-push.C:
			if err := s.push(ctx); err != nil {
				s.log.Infow("ws_write_failed", "err", err)
				return
			}
		}
	}
}

// drain reads until the client disconnects so control frames are processed.
func (s *statusStream) drain(gone chan<- struct{}) {
	defer close(gone)
	for {
		if _, _, err := s.conn.ReadMessage(); err != nil {
			s.log.Debugw("ws_read_closed", "err", err)
			return
		}
	}
}

// push writes one frame. A failed status lookup becomes an error frame; only
// write failures end the stream.
func (s *statusStream) push(ctx context.Context) error {
	env := wsEnvelope{Type: "status"}
	if st, err := s.status.GetStatus(ctx); err != nil {
		s.log.Errorw("ws_get_status_failed", "err", err)
		env = wsEnvelope{Type: "error", Error: errGetStatus}
	} else {
		env.Data = st
	}
	_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return s.conn.WriteJSON(env)
}
