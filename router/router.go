// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package router

import (
	"net/http"

	"github.com/danielhkuo/huddle-plan/auth"
	"github.com/danielhkuo/huddle-plan/handlers"
	"github.com/danielhkuo/huddle-plan/hub"
	"github.com/danielhkuo/huddle-plan/middleware"
	"github.com/danielhkuo/huddle-plan/session"
)

func NewRouter(store *session.Store, h *hub.Hub, verifier *auth.Verifier) *http.ServeMux {
	mux := http.NewServeMux()

	// Initialize handlers
	sessionHandler := handlers.NewSessionHandler(store)
	wsHandler := handlers.NewWSHandler(h)

	// Health check
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	// Session lifecycle and discovery
	mux.HandleFunc("POST /sessions", middleware.WithLogging(middleware.RequireAuth(verifier, sessionHandler.CreateSession)))
	mux.HandleFunc("GET /sessions", middleware.WithLogging(middleware.RequireAuth(verifier, sessionHandler.ListSessions)))
	mux.HandleFunc("GET /sessions/{id}", middleware.WithLogging(middleware.RequireAuth(verifier, sessionHandler.GetSession)))
	mux.HandleFunc("POST /sessions/{id}/end", middleware.WithLogging(middleware.RequireAuth(verifier, sessionHandler.EndSession)))
	mux.HandleFunc("DELETE /sessions/{id}", middleware.WithLogging(middleware.RequireAuth(verifier, sessionHandler.DeleteSession)))
	mux.HandleFunc("PATCH /sessions/{id}/settings", middleware.WithLogging(middleware.RequireAuth(verifier, sessionHandler.UpdateSettings)))

	// Real-time connection; all collaborative traffic rides the socket
	mux.HandleFunc("GET /ws", middleware.RequireAuth(verifier, wsHandler.Connect))

	// Root endpoint
	mux.HandleFunc("GET /", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("huddle-plan API v1"))
	})

	return mux
}
