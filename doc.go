// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package main provides the entry point for the huddle-plan server.

Huddle Plan is a real-time collaborative planning engine: small groups
build a shared itinerary together, vote on its items, and watch each
other's presence and cursors live over WebSocket.

# Starting the Server

The server reads environment variables (a .env file works in dev) or CLI
flags:

	AUTH_TOKEN_SECRET=... DATABASE_URL=postgres://... go run main.go

Or with flags:

	go run main.go -p 3319 -d "postgres://..." -auth-secret "..."

# Configuration

Required settings:

  - AUTH_TOKEN_SECRET (-auth-secret): HMAC secret for bearer tokens

Optional settings:

  - PORT (-p): Server port (default: 3319)
  - DATABASE_URL (-d): PostgreSQL connection string for session
    snapshots; empty runs the engine in-memory only
  - ALLOW_SPECTATORS (-spectators): Allow read-only joins to ended
    sessions (default: false)
  - HEARTBEAT_SECONDS (-heartbeat): Idle timeout before a quiet
    connection is marked away (default: 60)

# Architecture

Session state lives in memory: one actor goroutine per session serializes
every mutation, and reads are served from atomically published snapshots.
The database, when configured, only holds crash-recovery snapshots.

  - session: the engine (sessions, participants, votes, itinerary)
  - hub: connection registry and broadcast fan-out
  - handlers: HTTP lifecycle endpoints and the WebSocket upgrade
  - router: route definitions using Go 1.22+ routing
  - middleware: auth, CORS, logging, JSON helpers
  - models: wire types shared by HTTP and WebSocket surfaces
  - auth: bearer token verification
  - db: schema creation and the snapshot store
  - cliparse: configuration parsing

See package documentation for each component.
*/
package main
