// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/danielhkuo/huddle-plan/middleware"
	"github.com/danielhkuo/huddle-plan/models"
	"github.com/danielhkuo/huddle-plan/session"
)

type SessionHandler struct {
	store *session.Store
}

func NewSessionHandler(store *session.Store) *SessionHandler {
	return &SessionHandler{store: store}
}

// writeEngineError maps engine sentinel errors to HTTP status codes.
func writeEngineError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, session.ErrNotFound):
		middleware.ErrorResponse(w, http.StatusNotFound, err.Error())
	case errors.Is(err, session.ErrValidation), errors.Is(err, session.ErrUnknownItem):
		middleware.ErrorResponse(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, session.ErrSessionEnded),
		errors.Is(err, session.ErrSessionActive),
		errors.Is(err, session.ErrVotingDisabled):
		middleware.ErrorResponse(w, http.StatusConflict, err.Error())
	case errors.Is(err, session.ErrNotMember):
		middleware.ErrorResponse(w, http.StatusForbidden, err.Error())
	default:
		slog.Error("unexpected engine error", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Internal error")
	}
}

// CreateSession handles POST /sessions
func (h *SessionHandler) CreateSession(w http.ResponseWriter, r *http.Request) {
	identity, ok := middleware.IdentityFrom(r.Context())
	if !ok {
		middleware.ErrorResponse(w, http.StatusUnauthorized, "missing identity")
		return
	}

	var req models.CreateSessionRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	snap, err := h.store.CreateSession(req.Name, identity.UserID, req.TeamID)
	if err != nil {
		writeEngineError(w, err)
		return
	}

	middleware.JSONResponse(w, http.StatusCreated, snap)
}

// ListSessions handles GET /sessions?scope=mine&status=active
func (h *SessionHandler) ListSessions(w http.ResponseWriter, r *http.Request) {
	identity, ok := middleware.IdentityFrom(r.Context())
	if !ok {
		middleware.ErrorResponse(w, http.StatusUnauthorized, "missing identity")
		return
	}

	status := r.URL.Query().Get("status")
	switch status {
	case "", models.StatusActive, models.StatusEnded:
	default:
		middleware.ErrorResponse(w, http.StatusBadRequest, "status must be active or ended")
		return
	}

	scope := r.URL.Query().Get("scope")
	switch scope {
	case "", "all", "mine":
	default:
		middleware.ErrorResponse(w, http.StatusBadRequest, "scope must be all or mine")
		return
	}

	sessions := h.store.ListSessions(session.Filter{
		UserID: identity.UserID,
		Mine:   scope == "mine",
		Status: status,
	})

	middleware.JSONResponse(w, http.StatusOK, models.ListSessionsResponse{Sessions: sessions})
}

// GetSession handles GET /sessions/{id}
func (h *SessionHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		middleware.ErrorResponse(w, http.StatusBadRequest, "session id is required")
		return
	}

	snap, err := h.store.GetSession(id)
	if err != nil {
		writeEngineError(w, err)
		return
	}

	middleware.JSONResponse(w, http.StatusOK, snap)
}

// EndSession handles POST /sessions/{id}/end
func (h *SessionHandler) EndSession(w http.ResponseWriter, r *http.Request) {
	identity, ok := middleware.IdentityFrom(r.Context())
	if !ok {
		middleware.ErrorResponse(w, http.StatusUnauthorized, "missing identity")
		return
	}

	id := r.PathValue("id")
	if id == "" {
		middleware.ErrorResponse(w, http.StatusBadRequest, "session id is required")
		return
	}

	snap, err := h.store.GetSession(id)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	if snap.CreatorID != identity.UserID {
		middleware.ErrorResponse(w, http.StatusForbidden, "only the creator can end a session")
		return
	}

	snap, err = h.store.EndSession(id, identity.UserID)
	if err != nil {
		writeEngineError(w, err)
		return
	}

	middleware.JSONResponse(w, http.StatusOK, snap)
}

// DeleteSession handles DELETE /sessions/{id}. Only the creator can delete,
// and only once the session has ended.
func (h *SessionHandler) DeleteSession(w http.ResponseWriter, r *http.Request) {
	identity, ok := middleware.IdentityFrom(r.Context())
	if !ok {
		middleware.ErrorResponse(w, http.StatusUnauthorized, "missing identity")
		return
	}

	id := r.PathValue("id")
	if id == "" {
		middleware.ErrorResponse(w, http.StatusBadRequest, "session id is required")
		return
	}

	snap, err := h.store.GetSession(id)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	if snap.CreatorID != identity.UserID {
		middleware.ErrorResponse(w, http.StatusForbidden, "only the creator can delete a session")
		return
	}

	if err := h.store.DeleteSession(r.Context(), id); err != nil {
		writeEngineError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// UpdateSettings handles PATCH /sessions/{id}/settings
func (h *SessionHandler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	identity, ok := middleware.IdentityFrom(r.Context())
	if !ok {
		middleware.ErrorResponse(w, http.StatusUnauthorized, "missing identity")
		return
	}

	id := r.PathValue("id")
	if id == "" {
		middleware.ErrorResponse(w, http.StatusBadRequest, "session id is required")
		return
	}

	var patch models.SettingsPatch
	if err := middleware.ParseJSONBody(r, &patch); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	snap, err := h.store.GetSession(id)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	if snap.CreatorID != identity.UserID {
		middleware.ErrorResponse(w, http.StatusForbidden, "only the creator can change settings")
		return
	}

	snap, err = h.store.ApplySettingsPatch(id, patch)
	if err != nil {
		writeEngineError(w, err)
		return
	}

	slog.Info("session settings updated", "session_id", id, "by", identity.UserID)
	middleware.JSONResponse(w, http.StatusOK, snap)
}
