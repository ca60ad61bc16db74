// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package router defines HTTP routes for the huddle-plan API.

# Route Registration

NewRouter creates a configured http.ServeMux with all endpoints:

	mux := router.NewRouter(store, hub, verifier)

# Endpoints

Health:

	GET /health

Session lifecycle and discovery (all require a bearer token):

	POST  /sessions               - Create session
	GET   /sessions               - List sessions (?scope=mine, ?status=)
	GET   /sessions/{id}          - Full session snapshot
	POST  /sessions/{id}/end      - End session (creator only)
	PATCH /sessions/{id}/settings - Merge settings patch (creator only)

Real-time:

	GET /ws?token=... - WebSocket upgrade; join/vote/itinerary/comment/
	                    cursor commands ride the socket

# Handler Initialization

The router creates handler instances with dependency injection:

	sessionHandler := handlers.NewSessionHandler(store)
	wsHandler := handlers.NewWSHandler(hub)

Every route except the WebSocket upgrade is wrapped in request logging;
all of them sit behind RequireAuth.
*/
package router
