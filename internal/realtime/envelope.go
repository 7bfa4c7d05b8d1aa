// ListSync - Shared Shopping Lists with Real-Time Collaboration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/listsync

package realtime

import "time"

// Message types
const (
	MessageTypeConnectionEstablished = "connection_established"
	MessageTypePing                  = "ping"
	MessageTypePong                  = "pong"
	MessageTypeItemChange            = "item_change"
	MessageTypeListChange            = "list_change"
)

// EventType is the kind of change carried by an item_change or list_change
// envelope.
type EventType string

const (
	EventCreated       EventType = "created"
	EventUpdated       EventType = "updated"
	EventDeleted       EventType = "deleted"
	EventShared        EventType = "shared"
	EventMemberRemoved EventType = "member_removed"
)

// timestampLayout is ISO-8601 in UTC with millisecond precision.
const timestampLayout = "2006-01-02T15:04:05.000Z07:00"

func formatTimestamp(t time.Time) string {
	return t.UTC().Format(timestampLayout)
}

// ConnectionEstablished is the first frame sent on every accepted connection.
type ConnectionEstablished struct {
	Type      string `json:"type"`
	Message   string `json:"message"`
	SessionID string `json:"session_id"`
	Timestamp string `json:"timestamp"`
}

// Pong answers a client ping.
type Pong struct {
	Type      string `json:"type"`
	Timestamp string `json:"timestamp"`
}

// ClientMessage is an inbound frame. Only the type field is read.
type ClientMessage struct {
	Type string `json:"type"`
}

// ChangeEvent is an item_change or list_change envelope.
type ChangeEvent struct {
	Type      string      `json:"type"`
	EventType EventType   `json:"event_type"`
	ListID    int64       `json:"list_id"`
	Item      interface{} `json:"item,omitempty"`
	List      interface{} `json:"list,omitempty"`
	Timestamp string      `json:"timestamp"`
	UserID    string      `json:"user_id"`
}

// NewItemChange builds an item_change envelope.
func NewItemChange(eventType EventType, listID int64, item interface{}, actorUserID string, at time.Time) *ChangeEvent {
	return &ChangeEvent{
		Type:      MessageTypeItemChange,
		EventType: eventType,
		ListID:    listID,
		Item:      item,
		Timestamp: formatTimestamp(at),
		UserID:    actorUserID,
	}
}

// NewListChange builds a list_change envelope.
func NewListChange(eventType EventType, listID int64, list interface{}, actorUserID string, at time.Time) *ChangeEvent {
	return &ChangeEvent{
		Type:      MessageTypeListChange,
		EventType: eventType,
		ListID:    listID,
		List:      list,
		Timestamp: formatTimestamp(at),
		UserID:    actorUserID,
	}
}

// Exclusion selects connections to skip during a broadcast. Rules apply in
// order: SessionID, then Connection, then UserID. UserID only applies when
// neither of the other two is set.
type Exclusion struct {
	SessionID  string
	Connection *Connection
	UserID     string
}

// ExcludeSession skips the connection with the given session id. An empty id
// excludes nothing.
func ExcludeSession(sessionID string) Exclusion {
	return Exclusion{SessionID: sessionID}
}

func (e Exclusion) skips(reg Registration) bool {
	if e.SessionID != "" && reg.SessionID == e.SessionID {
		return true
	}
	if e.Connection != nil && reg.Conn == e.Connection {
		return true
	}
	if e.UserID != "" && e.SessionID == "" && e.Connection == nil {
		return reg.UserID == e.UserID
	}
	return false
}

// BroadcastResult summarizes one fan-out. Failed counts socket write
// errors; Abandoned counts recipients not written to because the caller's
// context ended first.
type BroadcastResult struct {
	Recipients int
	Delivered  int
	Skipped    int
	Failed     int
	Abandoned  int
}
