// ListSync - Shared Shopping Lists with Real-Time Collaboration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/listsync

// Package api serves the ListSync REST API and the WebSocket endpoint.
package api

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"

	"github.com/tomtom215/listsync/internal/auth"
	"github.com/tomtom215/listsync/internal/authz"
	"github.com/tomtom215/listsync/internal/logging"
	"github.com/tomtom215/listsync/internal/middleware"
	"github.com/tomtom215/listsync/internal/realtime"
	"github.com/tomtom215/listsync/internal/store"
	"github.com/tomtom215/listsync/internal/validation"
)

// Notifier publishes list and item changes to connected clients.
// *realtime.Broadcaster implements it.
type Notifier interface {
	NotifyItemCreated(ctx context.Context, listID int64, item interface{}, actorUserID, actorSessionID string)
	NotifyItemUpdated(ctx context.Context, listID int64, item interface{}, actorUserID, actorSessionID string)
	NotifyItemDeleted(ctx context.Context, listID, itemID int64, actorUserID, actorSessionID string)
	NotifyListUpdated(ctx context.Context, listID int64, list interface{}, actorUserID, actorSessionID string)
	NotifyListShared(ctx context.Context, listID int64, list interface{}, actorUserID, actorSessionID string)
	NotifyListDeleted(ctx context.Context, listID int64, actorUserID, actorSessionID string)
	NotifyListMemberRemoved(ctx context.Context, listID int64, removedUserID, actorUserID, actorSessionID string)
}

var _ Notifier = (*realtime.Broadcaster)(nil)

// Handler holds the dependencies of all HTTP handlers.
type Handler struct {
	store     *store.Store
	guard     *store.Guard
	tokens    *auth.JWTManager
	policy    *authz.Enforcer
	notifier  Notifier
	realtime  *realtime.Manager
	origins   *ChiMiddleware
	upgrader  websocket.Upgrader
	startTime time.Time
}

// HandlerDeps groups the collaborators passed to NewHandler.
type HandlerDeps struct {
	Store    *store.Store
	Guard    *store.Guard
	Tokens   *auth.JWTManager
	Policy   *authz.Enforcer
	Notifier Notifier
	Realtime *realtime.Manager
	Chi      *ChiMiddleware
}

// NewHandler creates a Handler.
func NewHandler(deps HandlerDeps) *Handler {
	h := &Handler{
		store:     deps.Store,
		guard:     deps.Guard,
		tokens:    deps.Tokens,
		policy:    deps.Policy,
		notifier:  deps.Notifier,
		realtime:  deps.Realtime,
		origins:   deps.Chi,
		startTime: time.Now(),
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:   1024,
		WriteBufferSize:  1024,
		CheckOrigin:      h.checkWebSocketOrigin,
		HandshakeTimeout: 10 * time.Second,
	}
	return h
}

// checkWebSocketOrigin accepts requests without an Origin header (native
// clients), origins listed in CORS_ORIGINS, and same-host origins.
func (h *Handler) checkWebSocketOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	if h.origins != nil && h.origins.AllowsOrigin(origin) {
		return true
	}
	u, err := url.Parse(origin)
	if err == nil && strings.EqualFold(u.Host, r.Host) {
		return true
	}
	logging.Ctx(r.Context()).Warn().Str("origin", origin).Msg("WebSocket connection rejected: origin not allowed")
	return false
}

// actor returns the caller's user id and the acting session id.
func actor(r *http.Request) (userID, sessionID string) {
	if id := auth.IdentityFromContext(r.Context()); id != nil {
		userID = id.UserID
	}
	return userID, middleware.GetSessionID(r.Context())
}

// pathID parses a positive int64 URL parameter.
func pathID(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		return 0, ErrInvalidPathID
	}
	return id, nil
}

// decodeAndValidate reads a JSON body into dst and validates it. It writes
// the error response and returns false on failure.
func decodeAndValidate(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	rw := NewResponseWriter(w, r)
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		rw.BadRequest("Invalid request body")
		return false
	}
	if verr := validation.ValidateStruct(dst); verr != nil {
		rw.ValidationError(verr)
		return false
	}
	return true
}

// listForMember loads a list the caller may read. Lists the caller cannot
// see are reported as not found.
func (h *Handler) listForMember(w http.ResponseWriter, r *http.Request) (*store.List, bool) {
	rw := NewResponseWriter(w, r)
	listID, err := pathID(r, "list_id")
	if err != nil {
		rw.BadRequest(err.Error())
		return nil, false
	}
	userID, _ := actor(r)

	allowed, err := h.store.HasAccess(r.Context(), userID, listID)
	if err != nil {
		rw.DatabaseError(err)
		return nil, false
	}
	if !allowed {
		rw.NotFound("List not found")
		return nil, false
	}

	list, err := h.store.GetList(r.Context(), listID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			rw.NotFound("List not found")
			return nil, false
		}
		rw.DatabaseError(err)
		return nil, false
	}
	return list, true
}

// listFor is listForMember plus a policy check of action against the
// caller's role on the list.
func (h *Handler) listFor(w http.ResponseWriter, r *http.Request, action authz.Action) (*store.List, bool) {
	list, ok := h.listForMember(w, r)
	if !ok {
		return nil, false
	}
	if !h.authorize(w, r, list, action) {
		return nil, false
	}
	return list, true
}

// authorize writes 403 and returns false when the caller's role on list
// does not permit action. The caller must already be known to have access.
func (h *Handler) authorize(w http.ResponseWriter, r *http.Request, list *store.List, action authz.Action) bool {
	userID, _ := actor(r)
	role := authz.RoleOf(list.OwnerID, userID, true)
	if h.policy.Allowed(role, action) {
		return true
	}
	logging.Ctx(r.Context()).Debug().
		Int64("list_id", list.ID).
		Str("role", string(role)).
		Str("action", string(action)).
		Msg("List action denied")
	NewResponseWriter(w, r).Forbidden("Only the list owner can do this")
	return false
}
