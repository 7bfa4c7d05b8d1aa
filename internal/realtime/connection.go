// ListSync - Shared Shopping Lists with Real-Time Collaboration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/listsync

package realtime

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"
)

// Socket is the part of *websocket.Conn the manager uses.
type Socket interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	WriteControl(messageType int, data []byte, deadline time.Time) error
	SetReadLimit(limit int64)
	SetReadDeadline(t time.Time) error
	SetWriteDeadline(t time.Time) error
	SetPongHandler(h func(appData string) error)
	Close() error
}

var _ Socket = (*websocket.Conn)(nil)

// errConnectionClosed is returned when writing to a connection after close.
var errConnectionClosed = errors.New("realtime: connection closed")

// connectionIDCounter gives every connection a monotonically increasing id
// used to order registry snapshots.
var connectionIDCounter atomic.Uint64

// Connection is one live WebSocket subscribed to a list. The manager owns
// its socket; all data frames go through write so at most one writer touches
// the socket at a time.
type Connection struct {
	id        uint64
	socket    Socket
	userID    string
	roomID    int64
	sessionID string

	// correlationID groups the connection's log lines; broadcast logs run
	// under the producer's context and carry it explicitly.
	correlationID string

	writeWait time.Duration
	writeMu   sync.Mutex
	limiter   *rate.Limiter

	closeOnce sync.Once
	closed    atomic.Bool
}

func newConnection(socket Socket, userID string, roomID int64, sessionID string, opts Options) *Connection {
	return &Connection{
		id:        connectionIDCounter.Add(1),
		socket:    socket,
		userID:    userID,
		roomID:    roomID,
		sessionID: sessionID,
		writeWait: opts.WriteWait,
		limiter:   rate.NewLimiter(rate.Limit(opts.InboundRate), opts.InboundBurst),
	}
}

// ID returns the connection's ordering id.
func (c *Connection) ID() uint64 { return c.id }

// UserID returns the authenticated user of the connection.
func (c *Connection) UserID() string { return c.userID }

// RoomID returns the list the connection is subscribed to.
func (c *Connection) RoomID() int64 { return c.roomID }

// SessionID returns the server-generated session id.
func (c *Connection) SessionID() string { return c.sessionID }

// write sends one text frame within writeWait. A done ctx returns ctx.Err()
// without touching the socket; callers must not treat that as a socket
// failure.
func (c *Connection) write(ctx context.Context, payload []byte) error {
	if c.closed.Load() {
		return errConnectionClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.writeLocked(payload)
}

func (c *Connection) writeLocked(payload []byte) error {
	if err := c.socket.SetWriteDeadline(time.Now().Add(c.writeWait)); err != nil {
		return err
	}
	return c.socket.WriteMessage(websocket.TextMessage, payload)
}

// writeJSON marshals v and sends it as one text frame.
func (c *Connection) writeJSON(ctx context.Context, v interface{}) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.write(ctx, payload)
}

// ping sends a keepalive control frame. Control frames may be written
// concurrently with data frames.
func (c *Connection) ping() error {
	if c.closed.Load() {
		return errConnectionClosed
	}
	return c.socket.WriteControl(websocket.PingMessage, nil, time.Now().Add(c.writeWait))
}

// close sends a close frame with code and closes the socket. Only the first
// call has an effect; errors are ignored.
func (c *Connection) close(code int, reason string) {
	c.closeOnce.Do(func() {
		c.closed.Store(true)
		msg := websocket.FormatCloseMessage(code, reason)
		_ = c.socket.WriteControl(websocket.CloseMessage, msg, time.Now().Add(c.writeWait))
		_ = c.socket.Close()
	})
}
