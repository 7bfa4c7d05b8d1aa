// ListSync - Shared Shopping Lists with Real-Time Collaboration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/listsync

package realtime

import (
	"errors"
	"sort"
	"sync"

	"github.com/tomtom215/listsync/internal/metrics"
)

var (
	// ErrAlreadyRegistered is returned when a connection is registered twice.
	ErrAlreadyRegistered = errors.New("realtime: connection already registered")

	// ErrDuplicateSession is returned when a session id is already in use by
	// another registered connection.
	ErrDuplicateSession = errors.New("realtime: session id already registered")

	// ErrNilConnection is returned when registering a nil connection.
	ErrNilConnection = errors.New("realtime: nil connection")
)

// Registration is the registry entry for one subscribed connection.
type Registration struct {
	Conn      *Connection
	RoomID    int64
	UserID    string
	SessionID string
}

// Registry tracks which connections are subscribed to which room (list).
//
// rooms and byConn are always updated together under mu: every connection in
// byConn appears in exactly one room set, and a room key exists only while
// its set is non-empty. Reads hand out copies so callers never perform I/O
// while holding mu.
type Registry struct {
	mu       sync.Mutex
	rooms    map[int64]map[*Connection]*Registration
	byConn   map[*Connection]*Registration
	sessions map[string]*Connection
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		rooms:    make(map[int64]map[*Connection]*Registration),
		byConn:   make(map[*Connection]*Registration),
		sessions: make(map[string]*Connection),
	}
}

// Register subscribes conn to roomID. Registering the same connection twice,
// or reusing a live session id, is rejected and leaves the registry unchanged.
func (r *Registry) Register(roomID int64, conn *Connection, userID, sessionID string) error {
	if conn == nil {
		return ErrNilConnection
	}

	r.mu.Lock()
	if _, ok := r.byConn[conn]; ok {
		r.mu.Unlock()
		return ErrAlreadyRegistered
	}
	if _, ok := r.sessions[sessionID]; ok {
		r.mu.Unlock()
		return ErrDuplicateSession
	}

	reg := &Registration{Conn: conn, RoomID: roomID, UserID: userID, SessionID: sessionID}
	room, ok := r.rooms[roomID]
	if !ok {
		room = make(map[*Connection]*Registration)
		r.rooms[roomID] = room
	}
	room[conn] = reg
	r.byConn[conn] = reg
	r.sessions[sessionID] = conn
	conns, rooms := len(r.byConn), len(r.rooms)
	r.mu.Unlock()

	metrics.SetRegistryGauges(conns, rooms)
	return nil
}

// Deregister removes conn from its room. It reports whether conn was
// registered; calling it for an unknown connection is a no-op.
func (r *Registry) Deregister(conn *Connection) (Registration, bool) {
	r.mu.Lock()
	reg, ok := r.byConn[conn]
	if !ok {
		r.mu.Unlock()
		return Registration{}, false
	}

	delete(r.byConn, conn)
	delete(r.sessions, reg.SessionID)
	if room, exists := r.rooms[reg.RoomID]; exists {
		delete(room, conn)
		if len(room) == 0 {
			delete(r.rooms, reg.RoomID)
		}
	}
	conns, rooms := len(r.byConn), len(r.rooms)
	r.mu.Unlock()

	metrics.SetRegistryGauges(conns, rooms)
	return *reg, true
}

// ConnectionsInRoom returns a snapshot of the room's registrations ordered by
// connection id.
func (r *Registry) ConnectionsInRoom(roomID int64) []Registration {
	r.mu.Lock()
	room := r.rooms[roomID]
	snapshot := make([]Registration, 0, len(room))
	for _, reg := range room {
		snapshot = append(snapshot, *reg)
	}
	r.mu.Unlock()

	sortByConnectionID(snapshot)
	return snapshot
}

// IsRoomEmpty reports whether no connection is subscribed to roomID.
func (r *Registry) IsRoomEmpty(roomID int64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.rooms[roomID]
	return !ok
}

// Lookup returns the registration of conn.
func (r *Registry) Lookup(conn *Connection) (Registration, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	reg, ok := r.byConn[conn]
	if !ok {
		return Registration{}, false
	}
	return *reg, true
}

// All returns a snapshot of every registration ordered by connection id.
func (r *Registry) All() []Registration {
	r.mu.Lock()
	snapshot := make([]Registration, 0, len(r.byConn))
	for _, reg := range r.byConn {
		snapshot = append(snapshot, *reg)
	}
	r.mu.Unlock()

	sortByConnectionID(snapshot)
	return snapshot
}

// Len returns the number of registered connections.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.byConn)
}

// RoomCount returns the number of non-empty rooms.
func (r *Registry) RoomCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.rooms)
}

func sortByConnectionID(regs []Registration) {
	sort.Slice(regs, func(i, j int) bool {
		return regs[i].Conn.id < regs[j].Conn.id
	})
}
