// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package models

import "time"

// Outbound event kinds (engine → client)
const (
	EventSessionState     = "session-state"
	EventSessionCreated   = "session-created"
	EventUserJoined       = "user-joined"
	EventUserLeft         = "user-left"
	EventVoteUpdate       = "vote-update"
	EventItineraryUpdated = "itinerary-updated"
	EventCursorUpdate     = "cursor-update"
	EventCommentAdded     = "comment-added"
	EventError            = "error"
)

// Inbound command actions (client → engine)
const (
	ActionJoinSession     = "join-session"
	ActionLeaveSession    = "leave-session"
	ActionVote            = "vote"
	ActionUpdateItinerary = "update-itinerary"
	ActionAddComment      = "add-comment"
	ActionCursorMove      = "cursor-move"
)

// Event is the single outbound frame shape. Data carries one of the payload
// types below (or a full Session for session-state).
type Event struct {
	Type      string    `json:"type"`
	SessionID string    `json:"sessionId,omitempty"`
	Data      any       `json:"data,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Command is the single inbound frame shape. The issuing user is always
// derived server-side from the authenticated connection, never from the
// payload. Action selects which optional fields are read.
type Command struct {
	Action    string          `json:"action"`
	SessionID string          `json:"sessionId,omitempty"`
	ItemID    string          `json:"itemId,omitempty"`
	Vote      *string         `json:"vote,omitempty"` // "up", "down", or null to clear
	Itinerary *Itinerary      `json:"itinerary,omitempty"`
	Comment   string          `json:"comment,omitempty"`
	Position  *CursorPosition `json:"position,omitempty"`
}

// Event payloads

type VoteUpdate struct {
	ItemID string    `json:"itemId"`
	Votes  VoteTally `json:"votes"`
}

// PresenceDelta announces a participant presence change (user-left, away
// flips). user-joined carries the full Participant instead.
type PresenceDelta struct {
	UserID   string `json:"userId"`
	Presence string `json:"presence"`
}

type ItineraryUpdate struct {
	Itinerary Itinerary `json:"itinerary"`
	UpdatedBy string    `json:"updatedBy"`
}

type CursorUpdate struct {
	UserID   string         `json:"userId"`
	Position CursorPosition `json:"position"`
}

// Comment is relayed to the session, not stored; a reconnecting client
// recovers state from the next session-state snapshot, which has no
// comment history.
type Comment struct {
	ID      string    `json:"id"`
	ItemID  string    `json:"itemId"`
	UserID  string    `json:"userId"`
	Comment string    `json:"comment"`
	At      time.Time `json:"at"`
}
