// ListSync - Shared Shopping Lists with Real-Time Collaboration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/listsync

package realtime

import (
	"context"
	"errors"
	"fmt"

	"github.com/tomtom215/listsync/internal/auth"
)

// AccessVerifier decides whether a user may subscribe to a list.
// *store.Guard and *store.Store both satisfy it.
type AccessVerifier interface {
	HasAccess(ctx context.Context, userID string, listID int64) (bool, error)
}

// TokenAuthenticator verifies handshake tokens. *auth.Authenticator satisfies
// it.
type TokenAuthenticator interface {
	Authenticate(ctx context.Context, token string) (*auth.Identity, error)
}

// Handshake rejection reasons for access checks. Authentication reasons come
// from auth.Reason.
const (
	rejectAccessDenied = "access_denied"
	rejectAccessLookup = "access_lookup_failed"
)

var errAccessDenied = errors.New("realtime: access denied")

// accessError carries the metric label for a failed access check.
type accessError struct {
	reason string
	err    error
}

func (e *accessError) Error() string {
	return fmt.Sprintf("%s: %v", e.reason, e.err)
}

func (e *accessError) Unwrap() error { return e.err }

// checkAccess returns nil when userID may read listID. Store errors deny
// access like a negative answer does.
func checkAccess(ctx context.Context, verifier AccessVerifier, userID string, listID int64) error {
	allowed, err := verifier.HasAccess(ctx, userID, listID)
	if err != nil {
		return &accessError{reason: rejectAccessLookup, err: err}
	}
	if !allowed {
		return &accessError{reason: rejectAccessDenied, err: errAccessDenied}
	}
	return nil
}
