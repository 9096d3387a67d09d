package handlers

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"robot_control/internal/models"
	"robot_control/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

const (
	writeWait   = 10 * time.Second
	pongWait    = 60 * time.Second
	pingPeriod  = (pongWait * 9) / 10
	maxReadSize = 512

	// The feed is push-driven; polling only covers updates a slow client
	// dropped.
	defaultResync = 5 * time.Second
	minResync     = 50 * time.Millisecond
	maxResync     = time.Minute
)

// Frame types on /ws.
const (
	frameState = "state"
	frameEvent = "event"
)

type wsFrame struct {
	Type  string             `json:"type"`
	State *models.RobotState `json:"state,omitempty"`
	Event *models.RobotEvent `json:"event,omitempty"`
}

// The admin listener only lives on the robot's own access point, so any
// origin may subscribe.
var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// robotFeed is one live /ws client.
type robotFeed struct {
	h    *Handler
	conn *websocket.Conn
	// last is the most recent state sent; identical snapshots are not resent.
	last models.RobotState
	sent bool
}

// wsConnect pushes a "state" frame whenever a cycle starts, drives the pin
// or ends, and an "event" frame for each journal entry.
func (h *Handler) wsConnect(c *gin.Context) {
	resync := resyncInterval(c)

	// Subscribe before upgrading so no cycle between the initial snapshot
	// and the first select is missed.
	updates, cancel := h.services.Monitoring.Subscribe()
	defer cancel()

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		if h.log != nil {
			h.log.Errorw("ws_upgrade_failed", "err", err)
		}
		return
	}
	defer func() { _ = conn.Close() }()

	conn.SetReadLimit(maxReadSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	gone := make(chan struct{})
	go drain(conn, gone)

	f := &robotFeed{h: h, conn: conn}
	ctx := c.Request.Context()
	if err := f.pushState(ctx); err != nil {
		h.wsClosed("initial_state", err)
		return
	}

	poll := time.NewTicker(resync)
	ping := time.NewTicker(pingPeriod)
	defer poll.Stop()
	defer ping.Stop()

	for {
		var err error
		select {
		case <-gone:
			return
		case <-ctx.Done():
			return
		case u, ok := <-updates:
			if !ok {
				return
			}
			if u.Kind == service.UpdateEvent && u.Event != nil {
				err = f.write(wsFrame{Type: frameEvent, Event: u.Event})
			} else {
				err = f.pushState(ctx)
			}
		case <-poll.C:
			err = f.pushState(ctx)
		case <-ping.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			err = conn.WriteMessage(websocket.PingMessage, nil)
		}
		if err != nil {
			h.wsClosed("write", err)
			return
		}
	}
}

// pushState sends a fresh snapshot unless it matches the last one sent.
func (f *robotFeed) pushState(ctx context.Context) error {
	st, err := f.h.services.Monitoring.GetState(ctx)
	if err != nil {
		return err
	}
	if f.sent && st == f.last {
		return nil
	}
	if err := f.write(wsFrame{Type: frameState, State: &st}); err != nil {
		return err
	}
	f.last, f.sent = st, true
	return nil
}

func (f *robotFeed) write(fr wsFrame) error {
	_ = f.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return f.conn.WriteJSON(fr)
}

func (h *Handler) wsClosed(stage string, err error) {
	if h.log != nil {
		h.log.Infow("ws_closed", "stage", stage, "err", err)
	}
}

// drain reads and discards client frames so control frames are handled and
// a disconnect closes gone.
func drain(conn *websocket.Conn, gone chan<- struct{}) {
	defer close(gone)
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

// resyncInterval reads ?resync=<duration>, clamped to [minResync, maxResync].
// ?resync_ms is accepted for clients that cannot format durations.
func resyncInterval(c *gin.Context) time.Duration {
	d := defaultResync
	if s := c.Query("resync"); s != "" {
		if v, err := time.ParseDuration(s); err == nil {
			d = v
		}
	} else if s := c.Query("resync_ms"); s != "" {
		if v, err := strconv.Atoi(s); err == nil {
			d = time.Duration(v) * time.Millisecond
		}
	}
	switch {
	case d < minResync:
		return minResync
	case d > maxResync:
		return maxResync
	}
	return d
}
