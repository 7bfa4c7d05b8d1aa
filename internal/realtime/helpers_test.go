// ListSync - Shared Shopping Lists with Real-Time Collaboration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/listsync

package realtime

import (
	"context"
	"encoding/binary"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/tomtom215/listsync/internal/auth"
	"github.com/tomtom215/listsync/internal/logging"
)

//nolint:gochecknoinits // test-only logger setup
func init() {
	logging.Init(logging.Config{Level: "error", Output: io.Discard})
}

// fakeSocket records frames written to it. ReadMessage returns io.EOF.
type fakeSocket struct {
	mu         sync.Mutex
	writes     [][]byte
	closeCodes []int
	closed     bool
	writeErr   error
}

func (f *fakeSocket) ReadMessage() (int, []byte, error) { return 0, nil, io.EOF }

func (f *fakeSocket) WriteMessage(_ int, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.writeErr != nil {
		return f.writeErr
	}
	f.writes = append(f.writes, append([]byte(nil), data...))
	return nil
}

func (f *fakeSocket) WriteControl(messageType int, data []byte, _ time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if messageType == websocket.CloseMessage && len(data) >= 2 {
		f.closeCodes = append(f.closeCodes, int(binary.BigEndian.Uint16(data[:2])))
	}
	return nil
}

func (f *fakeSocket) SetReadLimit(int64) {}

func (f *fakeSocket) SetReadDeadline(time.Time) error { return nil }

func (f *fakeSocket) SetWriteDeadline(time.Time) error { return nil }

func (f *fakeSocket) SetPongHandler(func(string) error) {}

func (f *fakeSocket) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeSocket) writeCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.writes)
}

func (f *fakeSocket) lastCloseCode() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.closeCodes) == 0 {
		return 0
	}
	return f.closeCodes[len(f.closeCodes)-1]
}

func (f *fakeSocket) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

// newTestConnection builds an unregistered connection over a fake socket.
func newTestConnection(userID string, roomID int64, sessionID string) (*Connection, *fakeSocket) {
	sock := &fakeSocket{}
	return newConnection(sock, userID, roomID, sessionID, DefaultOptions()), sock
}

// fakeAuthenticator maps tokens to identities.
type fakeAuthenticator struct {
	tokens map[string]string
}

func (f *fakeAuthenticator) Authenticate(_ context.Context, token string) (*auth.Identity, error) {
	userID, ok := f.tokens[token]
	if !ok {
		return nil, &auth.Failure{Reason: auth.ReasonMalformedToken}
	}
	return &auth.Identity{UserID: userID}, nil
}

// fakeAccess grants users access to the listed rooms.
type fakeAccess struct {
	grants map[string][]int64
	err    error
}

func (f *fakeAccess) HasAccess(_ context.Context, userID string, listID int64) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	for _, id := range f.grants[userID] {
		if id == listID {
			return true, nil
		}
	}
	return false, nil
}

// registerTest registers conn in m's registry and fails the test on error.
func registerTest(t *testing.T, m *Manager, conn *Connection) {
	t.Helper()
	if err := m.registry.Register(conn.roomID, conn, conn.userID, conn.sessionID); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
}

// waitFor polls cond until it holds or timeout elapses.
func waitFor(t *testing.T, timeout time.Duration, msg string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("%s: timeout after %v", msg, timeout)
}
