// ListSync - Shared Shopping Lists with Real-Time Collaboration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/listsync

package store

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/tomtom215/listsync/internal/config"
)

type fakeReader struct {
	calls   atomic.Int32
	delay   time.Duration
	userErr error
	access  bool
}

func (f *fakeReader) GetUser(ctx context.Context, id string) (*User, error) {
	f.calls.Add(1)
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	if f.userErr != nil {
		return nil, f.userErr
	}
	return &User{ID: id}, nil
}

func (f *fakeReader) HasAccess(ctx context.Context, userID string, listID int64) (bool, error) {
	f.calls.Add(1)
	return f.access, nil
}

func testBreakerConfig() config.BreakerConfig {
	return config.BreakerConfig{
		MaxRequests:  1,
		Interval:     time.Minute,
		Timeout:      time.Minute,
		MinRequests:  3,
		FailureRatio: 0.5,
	}
}

func TestGuard_PassesThrough(t *testing.T) {
	reader := &fakeReader{access: true}
	g := NewGuard(reader, testBreakerConfig(), time.Second)

	u, err := g.GetUser(context.Background(), "u1")
	if err != nil || u.ID != "u1" {
		t.Fatalf("GetUser() = %v, %v", u, err)
	}
	ok, err := g.HasAccess(context.Background(), "u1", 5)
	if err != nil || !ok {
		t.Fatalf("HasAccess() = %v, %v", ok, err)
	}
}

func TestGuard_Timeout(t *testing.T) {
	reader := &fakeReader{delay: 200 * time.Millisecond}
	g := NewGuard(reader, testBreakerConfig(), 20*time.Millisecond)

	start := time.Now()
	_, err := g.GetUser(context.Background(), "slow")
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("GetUser() error = %v, want deadline exceeded", err)
	}
	if elapsed := time.Since(start); elapsed > 150*time.Millisecond {
		t.Errorf("GetUser() took %v, timeout not honoured", elapsed)
	}
}

func TestGuard_NotFoundDoesNotTrip(t *testing.T) {
	reader := &fakeReader{userErr: ErrNotFound}
	g := NewGuard(reader, testBreakerConfig(), time.Second)

	for i := 0; i < 10; i++ {
		if _, err := g.GetUser(context.Background(), "ghost"); !errors.Is(err, ErrNotFound) {
			t.Fatalf("GetUser() error = %v, want ErrNotFound", err)
		}
	}
	if g.State() != gobreaker.StateClosed {
		t.Errorf("breaker state = %v, want closed", g.State())
	}
}

func TestGuard_OpensOnFailures(t *testing.T) {
	reader := &fakeReader{userErr: errors.New("disk on fire")}
	g := NewGuard(reader, testBreakerConfig(), time.Second)

	for i := 0; i < 3; i++ {
		_, _ = g.GetUser(context.Background(), "u")
	}
	if g.State() != gobreaker.StateOpen {
		t.Fatalf("breaker state = %v, want open", g.State())
	}

	before := reader.calls.Load()
	_, err := g.GetUser(context.Background(), "u")
	if !errors.Is(err, gobreaker.ErrOpenState) {
		t.Errorf("GetUser() error = %v, want ErrOpenState", err)
	}
	if reader.calls.Load() != before {
		t.Error("open breaker should not call the reader")
	}
}
