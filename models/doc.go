// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package models defines the domain, wire, and error types for the engine.

# Domain Types

  - Session: full session snapshot (settings, itinerary, votes, participants)
  - Participant: durable per-user record, keyed by userId within a session
  - VoteTally: aggregated counts for one itinerary item
  - ItineraryItem / Itinerary: explicit ordered activity sequence

# Wire Types

One frame shape per direction:

  - Command: inbound, discriminated by Action (join-session, leave-session,
    vote, update-itinerary, add-comment, cursor-move)
  - Event: outbound, discriminated by Type (session-state, session-created,
    user-joined, user-left, vote-update, itinerary-updated, cursor-update,
    comment-added, error)

All JSON field names are camelCase; that is the wire format the web and
native clients already speak.

# Constants

Session status:

	StatusActive = "active"
	StatusEnded  = "ended"

Presence:

	PresenceActive  = "active"
	PresenceAway    = "away"
	PresenceOffline = "offline"

Vote directions:

	VoteUp   = "up"
	VoteDown = "down"
*/
package models
