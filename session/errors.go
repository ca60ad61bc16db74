// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package session

import "errors"

// Engine error taxonomy. Handlers and the hub match these with errors.Is;
// a rejected command returns one of these to the caller only and never
// mutates state or triggers a broadcast.
var (
	ErrNotFound       = errors.New("session not found")
	ErrValidation     = errors.New("validation failed")
	ErrVotingDisabled = errors.New("voting is disabled for this session")
	ErrSessionEnded   = errors.New("session has ended")
	ErrSessionActive  = errors.New("session is still active")
	ErrUnknownItem    = errors.New("unknown itinerary item")
	ErrNotMember      = errors.New("user is not a session participant")
)
