// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package handlers implements the HTTP surface of the planning engine.

# Session Management

SessionHandler covers session lifecycle over plain HTTP:

  - POST /sessions creates a session; the authenticated user becomes its
    creator.
  - GET /sessions lists sessions, filtered by ?scope=mine and
    ?status=active|ended.
  - GET /sessions/{id} returns the full sanitized snapshot.
  - POST /sessions/{id}/end ends a session (creator only, idempotent).
  - PATCH /sessions/{id}/settings merges a partial settings update
    (creator only).

Engine sentinel errors map onto status codes in one place
(writeEngineError): unknown session is 404, validation problems are 400,
ended-session and voting-disabled conflicts are 409, membership failures
are 403.

# Real-Time Connection

WSHandler upgrades GET /ws to a WebSocket connection. All collaborative
traffic (join, vote, itinerary edits, comments, cursors) flows over the
socket as JSON commands; the HTTP endpoints exist for lifecycle and
discovery. The bearer token is read from the token query parameter because
browsers cannot set headers on upgrade requests.
*/
package handlers
