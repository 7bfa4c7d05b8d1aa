// ListSync - Shared Shopping Lists with Real-Time Collaboration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/listsync

package api

import (
	"net/http"

	"github.com/tomtom215/listsync/internal/auth"
	"github.com/tomtom215/listsync/internal/logging"
)

// WebSocket upgrades GET /ws/lists/{list_id} and hands the socket to the
// realtime manager. The token comes from the "token" query parameter, or a
// bearer header for non-browser clients. Authentication and access failures
// are reported after the upgrade as close codes 1008 and 1003.
func (h *Handler) WebSocket(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	if h.realtime == nil {
		logging.Warn().Msg("WebSocket connection rejected: realtime manager not initialized")
		rw.ServiceUnavailable("WebSocket service unavailable")
		return
	}

	listID, err := pathID(r, "list_id")
	if err != nil {
		rw.BadRequest(err.Error())
		return
	}

	token := r.URL.Query().Get("token")
	if token == "" {
		token = auth.ExtractBearerToken(r)
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.Ctx(r.Context()).Warn().Err(err).Msg("WebSocket upgrade error")
		return
	}

	h.realtime.ServeConn(r.Context(), conn, token, listID)
}
