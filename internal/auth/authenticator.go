// ListSync - Shared Shopping Lists with Real-Time Collaboration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/listsync

package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/tomtom215/listsync/internal/store"
)

// Reason tags why a token was rejected.
type Reason string

const (
	ReasonMalformedToken Reason = "malformed_token"
	ReasonExpired        Reason = "expired"
	ReasonBadAudience    Reason = "bad_audience"
	ReasonMissingSubject Reason = "missing_subject"
	ReasonUnknownSubject Reason = "unknown_subject"

	// ReasonLookupFailed covers store errors, timeouts and an open circuit
	// while resolving the subject. Callers treat it like any other failure.
	ReasonLookupFailed Reason = "lookup_failed"
)

// Failure is the error returned by Authenticate.
type Failure struct {
	Reason Reason
	Err    error
}

func (f *Failure) Error() string {
	if f.Err != nil {
		return fmt.Sprintf("authentication failed (%s): %v", f.Reason, f.Err)
	}
	return fmt.Sprintf("authentication failed (%s)", f.Reason)
}

func (f *Failure) Unwrap() error {
	return f.Err
}

func fail(reason Reason, err error) *Failure {
	return &Failure{Reason: reason, Err: err}
}

// ReasonOf extracts the failure reason from err, or "" if err is not a
// *Failure.
func ReasonOf(err error) Reason {
	var f *Failure
	if errors.As(err, &f) {
		return f.Reason
	}
	return ""
}

// Identity is a verified user.
type Identity struct {
	UserID string
	Email  string
	Name   string
}

// UserResolver resolves a token subject to a user. *store.Store and
// *store.Guard both satisfy it.
type UserResolver interface {
	GetUser(ctx context.Context, id string) (*store.User, error)
}

// Authenticator turns a bearer token into an Identity.
type Authenticator struct {
	secret        []byte
	audience      string
	resolver      UserResolver
	lookupTimeout time.Duration
}

// NewAuthenticator creates an Authenticator that verifies tokens with the
// manager's secret and expects the manager's audience.
func NewAuthenticator(manager *JWTManager, resolver UserResolver, lookupTimeout time.Duration) *Authenticator {
	return &Authenticator{
		secret:        manager.secret,
		audience:      manager.audience,
		resolver:      resolver,
		lookupTimeout: lookupTimeout,
	}
}

// Authenticate verifies signature, expiry, audience and subject, then looks
// the subject up. Every error it returns is a *Failure.
func (a *Authenticator) Authenticate(ctx context.Context, tokenString string) (*Identity, error) {
	if tokenString == "" {
		return nil, fail(ReasonMalformedToken, errors.New("empty token"))
	}

	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return a.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, fail(ReasonExpired, err)
		}
		return nil, fail(ReasonMalformedToken, err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, fail(ReasonMalformedToken, errors.New("invalid claims"))
	}

	if err := checkAudience(claims["aud"], a.audience); err != nil {
		return nil, fail(ReasonBadAudience, err)
	}

	subject := getStringClaim(claims, "sub")
	if subject == "" {
		return nil, fail(ReasonMissingSubject, nil)
	}

	lookupCtx := ctx
	if a.lookupTimeout > 0 {
		var cancel context.CancelFunc
		lookupCtx, cancel = context.WithTimeout(ctx, a.lookupTimeout)
		defer cancel()
	}
	user, err := a.resolver.GetUser(lookupCtx, subject)
	if errors.Is(err, store.ErrNotFound) {
		return nil, fail(ReasonUnknownSubject, err)
	}
	if err != nil {
		return nil, fail(ReasonLookupFailed, err)
	}

	return &Identity{UserID: user.ID, Email: user.Email, Name: user.Name}, nil
}

// checkAudience accepts aud as a single string or an array of strings that
// contains expected. Other shapes, including arrays with non-string
// elements, are rejected.
func checkAudience(aud interface{}, expected string) error {
	switch a := aud.(type) {
	case string:
		if a == expected {
			return nil
		}
		return fmt.Errorf("audience %q does not match", a)
	case []interface{}:
		found := false
		for _, item := range a {
			s, ok := item.(string)
			if !ok {
				return fmt.Errorf("audience array contains %T", item)
			}
			if s == expected {
				found = true
			}
		}
		if found {
			return nil
		}
		return fmt.Errorf("audience %v does not contain %q", a, expected)
	case nil:
		return errors.New("audience claim missing")
	default:
		return fmt.Errorf("audience claim has unsupported type %T", aud)
	}
}

func getStringClaim(claims jwt.MapClaims, key string) string {
	if val, ok := claims[key].(string); ok {
		return val
	}
	return ""
}
