// ListSync - Shared Shopping Lists with Real-Time Collaboration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/listsync

// Package auth issues and verifies ListSync access tokens and resolves them
// to user identities.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/tomtom215/listsync/internal/config"
)

// ErrEmptySecret is returned when no signing secret is configured.
var ErrEmptySecret = errors.New("JWT_SECRET is required but was empty")

// JWTManager signs HS256 access tokens for logged-in users.
//
// Tokens carry the user id in sub, the configured audience as a one-element
// array in aud, and exp/iat/nbf. Verification lives in Authenticator so that
// tokens minted elsewhere with the same secret (for example with a string
// aud) are accepted too.
type JWTManager struct {
	secret   []byte
	audience string
	ttl      time.Duration
	now      func() time.Time
}

// NewJWTManager creates a token manager from security configuration.
func NewJWTManager(cfg *config.SecurityConfig) (*JWTManager, error) {
	if cfg.JWTSecret == "" {
		return nil, ErrEmptySecret
	}
	return &JWTManager{
		secret:   []byte(cfg.JWTSecret),
		audience: cfg.JWTAudience,
		ttl:      cfg.TokenTTL,
		now:      time.Now,
	}, nil
}

// GenerateToken creates a signed token for userID and returns it together
// with its expiry.
func (m *JWTManager) GenerateToken(userID string) (string, time.Time, error) {
	now := m.now()
	expiresAt := now.Add(m.ttl)
	claims := jwt.RegisteredClaims{
		Subject:   userID,
		Audience:  jwt.ClaimStrings{m.audience},
		ExpiresAt: jwt.NewNumericDate(expiresAt),
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now),
		ID:        uuid.New().String(),
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, expiresAt, nil
}

// Audience returns the audience value tokens are issued for.
func (m *JWTManager) Audience() string {
	return m.audience
}
