// ListSync - Shared Shopping Lists with Real-Time Collaboration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/listsync

package api

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"

	"github.com/tomtom215/listsync/internal/auth"
	"github.com/tomtom215/listsync/internal/authz"
	"github.com/tomtom215/listsync/internal/config"
	"github.com/tomtom215/listsync/internal/logging"
	"github.com/tomtom215/listsync/internal/realtime"
	"github.com/tomtom215/listsync/internal/store"
)

//nolint:gochecknoinits // test-only logger setup
func init() {
	logging.Init(logging.Config{Level: "error", Output: io.Discard})
}

// testEnv is a fully wired server over an in-memory store.
type testEnv struct {
	server   *httptest.Server
	store    *store.Store
	realtime *realtime.Manager
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	st, err := store.Open(config.DatabaseConfig{InMemory: true})
	if err != nil {
		t.Fatalf("store.Open() error = %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	security := &config.SecurityConfig{
		JWTSecret:         "api_test_secret_that_is_at_least_32_chars",
		JWTAudience:       "listsync:auth",
		TokenTTL:          time.Hour,
		LookupTimeout:     time.Second,
		RateLimitDisabled: true,
	}
	tokens, err := auth.NewJWTManager(security)
	if err != nil {
		t.Fatalf("NewJWTManager() error = %v", err)
	}

	guard := store.NewGuard(st, config.BreakerConfig{
		MaxRequests:  1,
		Interval:     time.Minute,
		Timeout:      time.Second,
		MinRequests:  100,
		FailureRatio: 1,
	}, time.Second)
	authn := auth.NewAuthenticator(tokens, guard, security.LookupTimeout)

	manager := realtime.NewManager(authn, guard, realtime.Options{})
	broadcaster := realtime.NewBroadcaster()
	if err := manager.SetAsActiveBackend(broadcaster); err != nil {
		t.Fatalf("SetAsActiveBackend() error = %v", err)
	}

	policy, err := authz.NewEnforcer()
	if err != nil {
		t.Fatalf("authz.NewEnforcer() error = %v", err)
	}

	chiMW := NewChiMiddlewareFromConfig(security)
	handler := NewHandler(HandlerDeps{
		Store:    st,
		Guard:    guard,
		Tokens:   tokens,
		Policy:   policy,
		Notifier: broadcaster,
		Realtime: manager,
		Chi:      chiMW,
	})
	server := httptest.NewServer(NewRouter(handler, chiMW, authn).SetupChi())
	t.Cleanup(server.Close)

	return &testEnv{server: server, store: st, realtime: manager}
}

// call performs a JSON request and decodes the envelope.
func (e *testEnv) call(t *testing.T, method, path, token, sessionID string, body interface{}) (int, APIResponse) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, e.server.URL+path, reader)
	if err != nil {
		t.Fatalf("NewRequest() error = %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if sessionID != "" {
		req.Header.Set("X-Session-ID", sessionID)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s error = %v", method, path, err)
	}
	defer resp.Body.Close()

	var env APIResponse
	if resp.StatusCode != http.StatusNoContent {
		if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
			t.Fatalf("%s %s: decode body: %v", method, path, err)
		}
	}
	return resp.StatusCode, env
}

// decodeData re-decodes env.Data into dst.
func decodeData(t *testing.T, env APIResponse, dst interface{}) {
	t.Helper()
	data, err := json.Marshal(env.Data)
	if err != nil {
		t.Fatalf("marshal data: %v", err)
	}
	if err := json.Unmarshal(data, dst); err != nil {
		t.Fatalf("unmarshal data: %v", err)
	}
}

// registerUser registers an account and returns its token and id.
func (e *testEnv) registerUser(t *testing.T, email string) (token, userID string) {
	t.Helper()
	status, env := e.call(t, http.MethodPost, "/api/v1/auth/register", "", "", map[string]string{
		"email":    email,
		"name":     strings.Split(email, "@")[0],
		"password": "correct horse battery",
	})
	if status != http.StatusCreated {
		t.Fatalf("register %s: status %d, error %+v", email, status, env.Error)
	}
	var resp AuthResponse
	decodeData(t, env, &resp)
	return resp.Token, resp.User.ID
}

func (e *testEnv) createList(t *testing.T, token, name string) store.List {
	t.Helper()
	status, env := e.call(t, http.MethodPost, "/api/v1/lists", token, "", map[string]string{"name": name})
	if status != http.StatusCreated {
		t.Fatalf("create list: status %d, error %+v", status, env.Error)
	}
	var list store.List
	decodeData(t, env, &list)
	return list
}

// dialList opens a WebSocket to a list and returns it with its session id.
func (e *testEnv) dialList(t *testing.T, listID int64, token string) (*websocket.Conn, string) {
	t.Helper()
	wsURL := "ws" + strings.TrimPrefix(e.server.URL, "http") + "/ws/lists/" + itoa(listID) + "?token=" + token
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if resp != nil && resp.Body != nil {
		defer resp.Body.Close()
	}
	if err != nil {
		t.Fatalf("Failed to dial websocket: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })

	var msg map[string]interface{}
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read connection_established: %v", err)
	}
	sessionID, _ := msg["session_id"].(string)
	return conn, sessionID
}

func readEvent(t *testing.T, conn *websocket.Conn) map[string]interface{} {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg map[string]interface{}
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("ReadJSON() error = %v", err)
	}
	return msg
}

func expectNoEvent(t *testing.T, conn *websocket.Conn) {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(200 * time.Millisecond))
	if _, data, err := conn.ReadMessage(); err == nil {
		t.Fatalf("unexpected frame: %s", data)
	}
}

func expectCloseCode(t *testing.T, conn *websocket.Conn, code int) {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	for {
		_, _, err := conn.ReadMessage()
		if err == nil {
			continue
		}
		if !websocket.IsCloseError(err, code) {
			t.Fatalf("ReadMessage() error = %v, want close %d", err, code)
		}
		return
	}
}

func itoa(n int64) string {
	return strconv.FormatInt(n, 10)
}
