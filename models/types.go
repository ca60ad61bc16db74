// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package models

import "time"

// Session status constants
const (
	StatusActive = "active"
	StatusEnded  = "ended"
)

// Participant presence constants
const (
	PresenceActive  = "active"
	PresenceAway    = "away"
	PresenceOffline = "offline"
)

// Vote direction constants. An empty direction clears the caller's vote.
const (
	VoteUp   = "up"
	VoteDown = "down"
)

// Request types

type CreateSessionRequest struct {
	Name   string  `json:"name"`
	TeamID *string `json:"teamId,omitempty"`
}

// SettingsPatch is a partial settings update; nil fields are left unchanged.
type SettingsPatch struct {
	VotingEnabled    *bool `json:"votingEnabled,omitempty"`
	AnonymousVoting  *bool `json:"anonymousVoting,omitempty"`
	RequireConsensus *bool `json:"requireConsensus,omitempty"`
	AutoSchedule     *bool `json:"autoSchedule,omitempty"`
}

// Response types

type ListSessionsResponse struct {
	Sessions []Session `json:"sessions"`
}

// Domain types

type SessionSettings struct {
	VotingEnabled    bool `json:"votingEnabled"`
	AnonymousVoting  bool `json:"anonymousVoting"`
	RequireConsensus bool `json:"requireConsensus"`
	AutoSchedule     bool `json:"autoSchedule"`
}

// DefaultSettings returns the settings a freshly created session starts with.
func DefaultSettings() SessionSettings {
	return SessionSettings{VotingEnabled: true}
}

type CursorPosition struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Participant is the durable per-user record within a session. It is keyed
// by userId and survives disconnects; a user who drops every connection is
// flipped to offline, never deleted, so vote attribution stays intact.
type Participant struct {
	UserID      string          `json:"userId"`
	DisplayName string          `json:"displayName"`
	Presence    string          `json:"presence"`
	Cursor      *CursorPosition `json:"cursor,omitempty"`
	JoinedAt    time.Time       `json:"joinedAt"`
}

// VoteTally holds the aggregated counts for one itinerary item. Voters is
// omitted from broadcast payloads when the session votes anonymously.
// Ballots (userId → direction) is server-side bookkeeping for duplicate-vote
// prevention; it is stripped from every payload that reaches a client and
// only survives in persisted snapshots.
type VoteTally struct {
	Upvotes   int               `json:"upvotes"`
	Downvotes int               `json:"downvotes"`
	Total     int               `json:"total"`
	Voters    []string          `json:"voters,omitempty"`
	Ballots   map[string]string `json:"ballots,omitempty"`
}

type ItineraryItem struct {
	ID          string         `json:"id"`
	Title       string         `json:"title"`
	Description string         `json:"description,omitempty"`
	Location    string         `json:"location,omitempty"`
	Price       float64        `json:"price,omitempty"`
	Rating      float64        `json:"rating,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

// Itinerary is an explicit ordered sequence; item order is authoritative and
// never reconstructed from timestamps.
type Itinerary struct {
	Items     []ItineraryItem `json:"items"`
	StartDate *time.Time      `json:"startDate,omitempty"`
	EndDate   *time.Time      `json:"endDate,omitempty"`
}

// Session is the full snapshot entity sent as session-state. Participants
// are a set keyed by userId internally; on the wire they are always an
// ordered sequence (by join time) for client convenience.
type Session struct {
	ID           string               `json:"id"`
	Name         string               `json:"name"`
	CreatorID    string               `json:"creatorId"`
	TeamID       *string              `json:"teamId,omitempty"`
	Status       string               `json:"status"`
	CreatedAt    time.Time            `json:"createdAt"`
	EndedAt      *time.Time           `json:"endedAt,omitempty"`
	Settings     SessionSettings      `json:"settings"`
	Itinerary    Itinerary            `json:"itinerary"`
	Votes        map[string]VoteTally `json:"votes"`
	Participants []Participant        `json:"participants"`
}

// Error response

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}
