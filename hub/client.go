// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package hub

import (
	"encoding/json"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/oklog/ulid/v2"

	"github.com/danielhkuo/huddle-plan/models"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024 // commands carry whole itineraries
	sendBuffer     = 256
)

// Client is one authenticated WebSocket connection. A user may hold several
// of these at once; the hub's per-user counts keep presence honest across
// them.
type Client struct {
	ID          string
	UserID      string
	DisplayName string

	hub  *Hub
	conn *websocket.Conn
	send chan []byte

	// sessions is owned by the hub and guarded by its mutex.
	sessions map[string]bool

	active atomic.Int64

	sendMu sync.Mutex
	shut   bool
}

func NewClient(h *Hub, conn *websocket.Conn, userID, displayName string) *Client {
	c := &Client{
		ID:          ulid.Make().String(),
		UserID:      userID,
		DisplayName: displayName,
		hub:         h,
		conn:        conn,
		send:        make(chan []byte, sendBuffer),
		sessions:    make(map[string]bool),
	}
	c.touch()
	return c
}

func (c *Client) touch() {
	c.active.Store(time.Now().UnixNano())
}

func (c *Client) lastActive() time.Time {
	return time.Unix(0, c.active.Load())
}

// enqueue offers a frame without blocking. False means the buffer is full
// and the connection should be dropped. Frames offered to a connection that
// is already shutting down are silently discarded.
func (c *Client) enqueue(payload []byte) bool {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	if c.shut {
		return true
	}
	select {
	case c.send <- payload:
		return true
	default:
		return false
	}
}

func (c *Client) sendEvent(event models.Event) {
	if payload := marshalEvent(event); payload != nil {
		c.enqueue(payload)
	}
}

// sendError reports a failed command to this connection only.
func (c *Client) sendError(sessionID string, err error) {
	c.sendEvent(models.Event{
		Type:      models.EventError,
		SessionID: sessionID,
		Data:      models.ErrorResponse{Error: err.Error()},
		Timestamp: time.Now(),
	})
}

func (c *Client) close() {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	if c.shut {
		return
	}
	c.shut = true
	close(c.send)
}

// ReadPump pumps inbound frames into the dispatcher until the connection
// dies, then unwinds the registration.
func (c *Client) ReadPump() {
	defer func() {
		c.hub.Disconnect(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				slog.Debug("websocket read failed", "client_id", c.ID, "error", err)
			}
			return
		}

		var cmd models.Command
		if err := json.Unmarshal(raw, &cmd); err != nil {
			c.sendError("", err)
			continue
		}

		c.touch()
		c.hub.dispatch(c, cmd)
	}
}

// WritePump drains the send buffer to the socket and keeps the connection
// alive with pings. Ping ticks double as the idle check that flips quiet
// users to away.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case payload, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
			c.hub.markIdleAway(c)
		}
	}
}
