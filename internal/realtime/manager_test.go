// ListSync - Shared Shopping Lists with Real-Time Collaboration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/listsync

package realtime

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func newTestManager() *Manager {
	return NewManager(&fakeAuthenticator{}, &fakeAccess{}, Options{})
}

func TestOptions_WithDefaults(t *testing.T) {
	tests := []struct {
		name string
		in   Options
		want Options
	}{
		{"zero value", Options{}, DefaultOptions()},
		{
			"ping period not shorter than pong wait",
			Options{PongWait: 10 * time.Second, PingPeriod: 20 * time.Second},
			func() Options {
				o := DefaultOptions()
				o.PongWait = 10 * time.Second
				o.PingPeriod = 9 * time.Second
				return o
			}(),
		},
		{
			"explicit values kept",
			Options{WriteWait: time.Second, PongWait: 4 * time.Second, PingPeriod: 2 * time.Second, MaxMessageSize: 10, BroadcastConcurrency: 2, InboundRate: 1, InboundBurst: 1},
			Options{WriteWait: time.Second, PongWait: 4 * time.Second, PingPeriod: 2 * time.Second, MaxMessageSize: 10, BroadcastConcurrency: 2, InboundRate: 1, InboundBurst: 1},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.in.withDefaults(); got != tt.want {
				t.Errorf("withDefaults() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestManager_BroadcastPartialFailure(t *testing.T) {
	m := newTestManager()

	first, firstSock := newTestConnection("a", 42, "s1")
	second, secondSock := newTestConnection("b", 42, "s2")
	third, thirdSock := newTestConnection("c", 42, "s3")
	secondSock.writeErr = errors.New("broken pipe")

	for _, c := range []*Connection{first, second, third} {
		registerTest(t, m, c)
	}

	event := NewItemChange(EventCreated, 42, map[string]string{"name": "Eggs"}, "a", time.Now())
	result, err := m.Broadcast(context.Background(), 42, event, Exclusion{})
	if err != nil {
		t.Fatalf("Broadcast() error = %v", err)
	}

	want := BroadcastResult{Recipients: 3, Delivered: 2, Failed: 1}
	if result != want {
		t.Errorf("Broadcast() = %+v, want %+v", result, want)
	}
	if firstSock.writeCount() != 1 || thirdSock.writeCount() != 1 {
		t.Errorf("healthy connections got %d and %d frames, want 1 each", firstSock.writeCount(), thirdSock.writeCount())
	}
	if _, ok := m.registry.Lookup(second); ok {
		t.Error("failed connection should be deregistered")
	}
	if !secondSock.isClosed() {
		t.Error("failed connection should be closed")
	}
	if m.registry.Len() != 2 {
		t.Errorf("registry Len = %d, want 2", m.registry.Len())
	}
}

func TestManager_BroadcastCanceledContextKeepsConnections(t *testing.T) {
	m := newTestManager()

	first, firstSock := newTestConnection("a", 42, "s1")
	second, secondSock := newTestConnection("b", 42, "s2")
	registerTest(t, m, first)
	registerTest(t, m, second)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	event := NewItemChange(EventCreated, 42, map[string]string{"name": "Eggs"}, "a", time.Now())
	result, err := m.Broadcast(ctx, 42, event, Exclusion{})
	if err != nil {
		t.Fatalf("Broadcast() error = %v", err)
	}

	want := BroadcastResult{Recipients: 2, Abandoned: 2}
	if result != want {
		t.Errorf("Broadcast() = %+v, want %+v", result, want)
	}
	if m.registry.Len() != 2 {
		t.Errorf("registry Len = %d, want 2", m.registry.Len())
	}
	for i, s := range []*fakeSocket{firstSock, secondSock} {
		if s.isClosed() {
			t.Errorf("conn %d closed with %d, want open", i, s.lastCloseCode())
		}
	}
}

func TestManager_BroadcastSelfExclusion(t *testing.T) {
	m := newTestManager()

	laptop, laptopSock := newTestConnection("alice", 42, "s-laptop")
	phone, phoneSock := newTestConnection("alice", 42, "s-phone")
	bob, bobSock := newTestConnection("bob", 42, "s-bob")
	elsewhere, elsewhereSock := newTestConnection("bob", 8, "s-elsewhere")
	for _, c := range []*Connection{laptop, phone, bob, elsewhere} {
		registerTest(t, m, c)
	}

	event := NewItemChange(EventUpdated, 42, map[string]string{"name": "Milk"}, "alice", time.Now())
	result, err := m.Broadcast(context.Background(), 42, event, ExcludeSession("s-laptop"))
	if err != nil {
		t.Fatalf("Broadcast() error = %v", err)
	}

	if result.Skipped != 1 || result.Delivered != 2 {
		t.Errorf("Broadcast() = %+v, want 1 skipped and 2 delivered", result)
	}
	if laptopSock.writeCount() != 0 {
		t.Error("originating session should not receive its own change")
	}
	if phoneSock.writeCount() != 1 {
		t.Error("other device of the acting user should receive the change")
	}
	if bobSock.writeCount() != 1 {
		t.Error("other member should receive the change")
	}
	if elsewhereSock.writeCount() != 0 {
		t.Error("connection in another room should receive nothing")
	}
}

func TestManager_BroadcastEmptyRoom(t *testing.T) {
	m := newTestManager()
	result, err := m.Broadcast(context.Background(), 1, NewListChange(EventUpdated, 1, nil, "u", time.Now()), Exclusion{})
	if err != nil {
		t.Fatalf("Broadcast() error = %v", err)
	}
	if result != (BroadcastResult{}) {
		t.Errorf("Broadcast() on empty room = %+v", result)
	}
}

func TestManager_Evict(t *testing.T) {
	m := newTestManager()

	alice, aliceSock := newTestConnection("alice", 5, "s-a")
	bob1, bob1Sock := newTestConnection("bob", 5, "s-b1")
	bob2, bob2Sock := newTestConnection("bob", 5, "s-b2")
	for _, c := range []*Connection{alice, bob1, bob2} {
		registerTest(t, m, c)
	}

	if n := m.Evict(context.Background(), 5, "bob", websocket.ClosePolicyViolation, "access revoked"); n != 2 {
		t.Errorf("Evict(bob) = %d, want 2", n)
	}
	for _, s := range []*fakeSocket{bob1Sock, bob2Sock} {
		if !s.isClosed() || s.lastCloseCode() != websocket.ClosePolicyViolation {
			t.Errorf("bob socket closed=%v code=%d, want closed with 1008", s.isClosed(), s.lastCloseCode())
		}
	}
	if aliceSock.isClosed() {
		t.Error("alice should stay connected")
	}

	if n := m.Evict(context.Background(), 5, "", websocket.CloseNormalClosure, "list deleted"); n != 1 {
		t.Errorf("Evict(all) = %d, want 1", n)
	}
	if aliceSock.lastCloseCode() != websocket.CloseNormalClosure {
		t.Errorf("alice close code = %d, want 1000", aliceSock.lastCloseCode())
	}
	if !m.registry.IsRoomEmpty(5) {
		t.Error("room should be empty after evicting everyone")
	}
}

func TestManager_RunWithContextClosesConnections(t *testing.T) {
	m := newTestManager()

	conns := make([]*fakeSocket, 3)
	for i := range conns {
		var c *Connection
		c, conns[i] = newTestConnection("u", int64(i), "s-"+string(rune('a'+i)))
		registerTest(t, m, c)
	}

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- m.RunWithContext(ctx) }()
	cancel()

	select {
	case err := <-errCh:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("RunWithContext() error = %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("RunWithContext did not return after cancel")
	}

	for i, s := range conns {
		if s.lastCloseCode() != websocket.CloseGoingAway {
			t.Errorf("conn %d close code = %d, want 1001", i, s.lastCloseCode())
		}
	}
	if m.registry.Len() != 0 {
		t.Errorf("registry Len = %d after shutdown, want 0", m.registry.Len())
	}
}

func TestGetShutdownReason(t *testing.T) {
	canceled, cancel := context.WithCancel(context.Background())
	cancel()

	expired, cancel2 := context.WithTimeout(context.Background(), -time.Second)
	defer cancel2()

	if got := getShutdownReason(canceled); got != ShutdownReasonContextCanceled {
		t.Errorf("canceled: got %s", got)
	}
	if got := getShutdownReason(expired); got != ShutdownReasonContextDeadline {
		t.Errorf("expired: got %s", got)
	}
}
