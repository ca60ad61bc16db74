// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/danielhkuo/huddle-plan/hub"
	"github.com/danielhkuo/huddle-plan/middleware"
)

type WSHandler struct {
	hub      *hub.Hub
	upgrader websocket.Upgrader
}

func NewWSHandler(h *hub.Hub) *WSHandler {
	return &WSHandler{
		hub: h,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Origins are enforced by the CORS layer in front.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// Connect handles GET /ws?token=...
// Browsers cannot set headers on WebSocket upgrades, so the bearer token
// rides in the query string and RequireAuth picks it up from there.
func (h *WSHandler) Connect(w http.ResponseWriter, r *http.Request) {
	identity, ok := middleware.IdentityFrom(r.Context())
	if !ok {
		middleware.ErrorResponse(w, http.StatusUnauthorized, "missing identity")
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written its own error response.
		slog.Warn("websocket upgrade failed", "error", err, "ip", middleware.GetClientIP(r))
		return
	}

	client := hub.NewClient(h.hub, conn, identity.UserID, identity.DisplayName)
	h.hub.Register(client)

	slog.Info("websocket connected",
		"client_id", client.ID,
		"user_id", identity.UserID,
		"ip", middleware.GetClientIP(r),
	)

	go client.WritePump()
	go client.ReadPump()
}
