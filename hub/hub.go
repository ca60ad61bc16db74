// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package hub

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/danielhkuo/huddle-plan/models"
	"github.com/danielhkuo/huddle-plan/session"
)

// Hub is the connection registry and broadcast router. It tracks every live
// connection, which sessions each connection has joined, and how many
// connections each user holds per session, so presence transitions fire only
// on the first join and the last disconnect.
type Hub struct {
	store     *session.Store
	heartbeat time.Duration

	mu      sync.RWMutex
	clients map[*Client]bool
	rooms   map[string]map[*Client]bool
	members map[string]map[string]int // sessionID -> userID -> live connections
}

func NewHub(store *session.Store, heartbeat time.Duration) *Hub {
	return &Hub{
		store:     store,
		heartbeat: heartbeat,
		clients:   make(map[*Client]bool),
		rooms:     make(map[string]map[*Client]bool),
		members:   make(map[string]map[string]int),
	}
}

// Register adds a freshly upgraded connection. The connection receives
// global discovery events immediately; session events only after it joins.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	h.clients[c] = true
	h.mu.Unlock()
	slog.Info("client connected", "client_id", c.ID, "user_id", c.UserID)
}

// Disconnect tears a connection down: every session it joined sees the
// equivalent of an explicit leave, and ended sessions with no connections
// left are released.
func (h *Hub) Disconnect(c *Client) {
	h.mu.Lock()
	if !h.clients[c] {
		h.mu.Unlock()
		return
	}
	delete(h.clients, c)

	var lastOf []string
	for sessionID := range c.sessions {
		if h.detachLocked(c, sessionID) {
			lastOf = append(lastOf, sessionID)
		}
	}
	c.sessions = make(map[string]bool)
	h.mu.Unlock()

	c.close()

	for _, sessionID := range lastOf {
		h.store.Leave(sessionID, c.UserID)
		h.store.ReleaseIfIdle(sessionID)
	}
	slog.Info("client disconnected", "client_id", c.ID, "user_id", c.UserID)
}

// subscribe attaches a connection to a session's fan-out set and reports
// whether the attachment is new; a repeat join is a no-op.
func (h *Hub) subscribe(c *Client, sessionID string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	if c.sessions[sessionID] {
		return false
	}
	c.sessions[sessionID] = true

	if h.rooms[sessionID] == nil {
		h.rooms[sessionID] = make(map[*Client]bool)
	}
	h.rooms[sessionID][c] = true

	if h.members[sessionID] == nil {
		h.members[sessionID] = make(map[string]int)
	}
	h.members[sessionID][c.UserID]++
	return true
}

// unsubscribe detaches a connection from a session and reports whether the
// user has no connections to that session left.
func (h *Hub) unsubscribe(c *Client, sessionID string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !c.sessions[sessionID] {
		return false
	}
	delete(c.sessions, sessionID)
	return h.detachLocked(c, sessionID)
}

func (h *Hub) detachLocked(c *Client, sessionID string) bool {
	if clients, ok := h.rooms[sessionID]; ok {
		delete(clients, c)
		if len(clients) == 0 {
			delete(h.rooms, sessionID)
		}
	}
	counts, ok := h.members[sessionID]
	if !ok {
		return false
	}
	counts[c.UserID]--
	if counts[c.UserID] > 0 {
		return false
	}
	delete(counts, c.UserID)
	if len(counts) == 0 {
		delete(h.members, sessionID)
	}
	return true
}

// Publish fans an event out to the session's connections only. Sends never
// block: a connection whose buffer is full is dropped rather than allowed to
// stall the rest of the session.
func (h *Hub) Publish(sessionID string, event models.Event) {
	payload := marshalEvent(event)
	if payload == nil {
		return
	}

	h.mu.RLock()
	targets := make([]*Client, 0, len(h.rooms[sessionID]))
	for c := range h.rooms[sessionID] {
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	for _, c := range targets {
		if !c.enqueue(payload) {
			h.dropStalled(c)
		}
	}
}

// PublishTo delivers an event to one user's connections within a session.
// The session actors use it to hand joiners their session-state snapshot
// on the same path as Publish, keeping the stream ordered per connection.
func (h *Hub) PublishTo(sessionID, userID string, event models.Event) {
	payload := marshalEvent(event)
	if payload == nil {
		return
	}

	h.mu.RLock()
	var targets []*Client
	for c := range h.rooms[sessionID] {
		if c.UserID == userID {
			targets = append(targets, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range targets {
		if !c.enqueue(payload) {
			h.dropStalled(c)
		}
	}
}

// PublishGlobal delivers discovery events to every live connection,
// joined or not.
func (h *Hub) PublishGlobal(event models.Event) {
	payload := marshalEvent(event)
	if payload == nil {
		return
	}

	h.mu.RLock()
	targets := make([]*Client, 0, len(h.clients))
	for c := range h.clients {
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	for _, c := range targets {
		if !c.enqueue(payload) {
			h.dropStalled(c)
		}
	}
}

// dropStalled runs the teardown on its own goroutine. Publish executes on
// the session actor's goroutine, and Disconnect feeds leave commands back
// into that same actor's mailbox; doing it inline would deadlock.
func (h *Hub) dropStalled(c *Client) {
	slog.Warn("dropping stalled client", "client_id", c.ID, "user_id", c.UserID)
	go h.Disconnect(c)
}

// dispatch routes one inbound command. The acting user always comes from the
// authenticated connection; failures go back to the originator only, as an
// error event, and are never broadcast.
func (h *Hub) dispatch(c *Client, cmd models.Command) {
	switch cmd.Action {
	case models.ActionJoinSession:
		// Attach before the join reaches the session actor. The actor
		// answers with session-state through the room's fan-out, so every
		// event it processes after the join queues strictly behind the
		// snapshot; subscribing afterwards would let a mutation land in a
		// window covered by neither the snapshot nor a delivered event.
		added := h.subscribe(c, cmd.SessionID)
		if _, err := h.store.Join(cmd.SessionID, c.UserID, c.DisplayName); err != nil {
			if added {
				h.unsubscribe(c, cmd.SessionID)
			}
			c.sendError(cmd.SessionID, err)
		}

	case models.ActionLeaveSession:
		if h.unsubscribe(c, cmd.SessionID) {
			h.store.Leave(cmd.SessionID, c.UserID)
			h.store.ReleaseIfIdle(cmd.SessionID)
		}

	case models.ActionVote:
		direction := ""
		if cmd.Vote != nil {
			direction = *cmd.Vote
		}
		if _, err := h.store.CastVote(cmd.SessionID, cmd.ItemID, c.UserID, direction); err != nil {
			c.sendError(cmd.SessionID, err)
		}

	case models.ActionUpdateItinerary:
		if cmd.Itinerary == nil {
			c.sendError(cmd.SessionID, fmt.Errorf("%w: itinerary payload is required", session.ErrValidation))
			return
		}
		if _, err := h.store.UpdateItinerary(cmd.SessionID, *cmd.Itinerary, c.UserID); err != nil {
			c.sendError(cmd.SessionID, err)
		}

	case models.ActionAddComment:
		if err := h.store.AddComment(cmd.SessionID, cmd.ItemID, c.UserID, cmd.Comment); err != nil {
			c.sendError(cmd.SessionID, err)
		}

	case models.ActionCursorMove:
		if cmd.Position == nil {
			c.sendError(cmd.SessionID, fmt.Errorf("%w: position payload is required", session.ErrValidation))
			return
		}
		if err := h.store.MoveCursor(cmd.SessionID, c.UserID, *cmd.Position); err != nil {
			c.sendError(cmd.SessionID, err)
		}

	default:
		c.sendError(cmd.SessionID, fmt.Errorf("%w: unknown action %q", session.ErrValidation, cmd.Action))
	}
}

// markIdleAway flips the connection's sessions to away when the user has
// gone quiet. Called from the write pump's ping ticks.
func (h *Hub) markIdleAway(c *Client) {
	if time.Since(c.lastActive()) < h.heartbeat {
		return
	}
	h.mu.RLock()
	sessions := make([]string, 0, len(c.sessions))
	for sessionID := range c.sessions {
		sessions = append(sessions, sessionID)
	}
	h.mu.RUnlock()

	for _, sessionID := range sessions {
		h.store.SetPresence(sessionID, c.UserID, models.PresenceAway)
	}
}

func marshalEvent(event models.Event) []byte {
	payload, err := json.Marshal(event)
	if err != nil {
		slog.Error("marshal event", "type", event.Type, "error", err)
		return nil
	}
	return payload
}
