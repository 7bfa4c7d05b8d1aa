// ListSync - Shared Shopping Lists with Real-Time Collaboration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/listsync

package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/tomtom215/listsync/internal/config"
	"github.com/tomtom215/listsync/internal/logging"
	"github.com/tomtom215/listsync/internal/metrics"
)

// Reader is the subset of Store used on the WebSocket handshake path.
type Reader interface {
	GetUser(ctx context.Context, id string) (*User, error)
	HasAccess(ctx context.Context, userID string, listID int64) (bool, error)
}

// Guard protects handshake lookups with a circuit breaker and a per-call
// timeout. A timeout, an open circuit and a store error all surface as
// errors; ErrNotFound passes through and does not count as a failure.
type Guard struct {
	reader  Reader
	cb      *gobreaker.CircuitBreaker[interface{}]
	name    string
	timeout time.Duration
}

// NewGuard wraps reader. timeout bounds every call; a non-positive timeout
// relies on the caller's context alone.
func NewGuard(reader Reader, cfg config.BreakerConfig, timeout time.Duration) *Guard {
	cbName := "store-lookup"
	metrics.CircuitBreakerState.WithLabelValues(cbName).Set(0)

	cb := gobreaker.NewCircuitBreaker[interface{}](gobreaker.Settings{
		Name:        cbName,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < cfg.MinRequests {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			shouldTrip := failureRatio >= cfg.FailureRatio
			if shouldTrip {
				logging.Warn().
					Uint32("failures", counts.TotalFailures).
					Float64("failure_rate", failureRatio*100).
					Msg("[CIRCUIT BREAKER] Opening circuit")
			}
			return shouldTrip
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, ErrNotFound)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Info().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("[CIRCUIT BREAKER] State transition")
			metrics.CircuitBreakerState.WithLabelValues(name).Set(stateToFloat(to))
			metrics.CircuitBreakerTransitions.WithLabelValues(name, from.String(), to.String()).Inc()
		},
	})

	return &Guard{reader: reader, cb: cb, name: cbName, timeout: timeout}
}

// State returns the current breaker state.
func (g *Guard) State() gobreaker.State {
	return g.cb.State()
}

// GetUser looks up a user under the breaker and timeout.
func (g *Guard) GetUser(ctx context.Context, id string) (*User, error) {
	res, err := g.execute(ctx, func(ctx context.Context) (interface{}, error) {
		return g.reader.GetUser(ctx, id)
	})
	if err != nil {
		return nil, err
	}
	user, ok := res.(*User)
	if !ok {
		return nil, fmt.Errorf("circuit breaker: unexpected result type %T", res)
	}
	return user, nil
}

// HasAccess checks list access under the breaker and timeout.
func (g *Guard) HasAccess(ctx context.Context, userID string, listID int64) (bool, error) {
	res, err := g.execute(ctx, func(ctx context.Context) (interface{}, error) {
		return g.reader.HasAccess(ctx, userID, listID)
	})
	if err != nil {
		return false, err
	}
	allowed, ok := res.(bool)
	if !ok {
		return false, fmt.Errorf("circuit breaker: unexpected result type %T", res)
	}
	return allowed, nil
}

type lookupResult struct {
	val interface{}
	err error
}

// execute runs fn through the breaker. fn runs on its own goroutine so that
// a stalled store call still honours the deadline; its late result is
// discarded.
func (g *Guard) execute(ctx context.Context, fn func(context.Context) (interface{}, error)) (interface{}, error) {
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	result, err := g.cb.Execute(func() (interface{}, error) {
		done := make(chan lookupResult, 1)
		go func() {
			v, err := fn(ctx)
			done <- lookupResult{val: v, err: err}
		}()
		select {
		case r := <-done:
			return r.val, r.err
		case <-ctx.Done():
			return nil, fmt.Errorf("store lookup: %w", ctx.Err())
		}
	})

	switch {
	case err == nil, errors.Is(err, ErrNotFound):
		metrics.CircuitBreakerRequests.WithLabelValues(g.name, "success").Inc()
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		metrics.CircuitBreakerRequests.WithLabelValues(g.name, "rejected").Inc()
		logging.Warn().Err(err).Str("breaker", g.name).Msg("[CIRCUIT BREAKER] Request rejected")
	default:
		metrics.CircuitBreakerRequests.WithLabelValues(g.name, "failure").Inc()
	}
	return result, err
}

func stateToFloat(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}
