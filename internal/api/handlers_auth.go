// ListSync - Shared Shopping Lists with Real-Time Collaboration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/listsync

package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/tomtom215/listsync/internal/logging"
	"github.com/tomtom215/listsync/internal/store"
)

type registerRequest struct {
	Email    string `json:"email" validate:"required,email,max=254"`
	Name     string `json:"name" validate:"notblank,max=100"`
	Password string `json:"password" validate:"required,min=8,max=128"`
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// AuthResponse is returned by Register and Login.
type AuthResponse struct {
	User      *store.User `json:"user"`
	Token     string      `json:"token"`
	ExpiresAt time.Time   `json:"expires_at"`
}

// Register creates an account and returns a token for it.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	var req registerRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	user, err := h.store.CreateUser(r.Context(), req.Email, req.Name, req.Password)
	if errors.Is(err, store.ErrEmailTaken) {
		rw.Conflict("Email already registered")
		return
	}
	if err != nil {
		rw.DatabaseError(err)
		return
	}

	resp, ok := h.issueToken(rw, user)
	if !ok {
		return
	}
	logging.Ctx(r.Context()).Info().Str("user_id", user.ID).Msg("User registered")
	rw.Created(resp)
}

// Login exchanges email and password for a token.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	var req loginRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	user, err := h.store.Authenticate(r.Context(), req.Email, req.Password)
	if errors.Is(err, store.ErrInvalidCredentials) {
		logging.Ctx(r.Context()).Warn().Str("remote_addr", r.RemoteAddr).Msg("Failed login attempt")
		rw.Unauthorized("Invalid email or password")
		return
	}
	if err != nil {
		rw.DatabaseError(err)
		return
	}

	resp, ok := h.issueToken(rw, user)
	if !ok {
		return
	}
	rw.Success(resp)
}

func (h *Handler) issueToken(rw *ResponseWriter, user *store.User) (*AuthResponse, bool) {
	token, expiresAt, err := h.tokens.GenerateToken(user.ID)
	if err != nil {
		logging.Error().Err(err).Str("user_id", user.ID).Msg("Failed to sign token")
		rw.InternalError("Failed to issue token")
		return nil, false
	}
	return &AuthResponse{User: user, Token: token, ExpiresAt: expiresAt}, true
}
