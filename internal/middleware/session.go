// ListSync - Shared Shopping Lists with Real-Time Collaboration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/listsync

package middleware

import (
	"context"
	"net/http"
)

// SessionIDHeader carries the WebSocket session id of the client tab that
// issued a REST mutation.
const SessionIDHeader = "X-Session-ID"

const maxSessionIDLength = 64

// SessionID copies the X-Session-ID header into the request context.
// Missing or oversized values leave the context without a session id.
func SessionID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sessionID := r.Header.Get(SessionIDHeader)
		if sessionID == "" || len(sessionID) > maxSessionIDLength {
			next.ServeHTTP(w, r)
			return
		}
		next.ServeHTTP(w, r.WithContext(ContextWithSessionID(r.Context(), sessionID)))
	})
}

// ContextWithSessionID stores the acting session id in ctx.
func ContextWithSessionID(ctx context.Context, sessionID string) context.Context {
	return context.WithValue(ctx, SessionIDKey, sessionID)
}

// GetSessionID returns the acting session id, or "" when the request had none.
func GetSessionID(ctx context.Context) string {
	if id, ok := ctx.Value(SessionIDKey).(string); ok {
		return id
	}
	return ""
}
