// ListSync - Shared Shopping Lists with Real-Time Collaboration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/listsync

package realtime

import (
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
)

func TestExclusion_Precedence(t *testing.T) {
	self, _ := newTestConnection("alice", 1, "s-self")
	otherDevice, _ := newTestConnection("alice", 1, "s-phone")
	bob, _ := newTestConnection("bob", 1, "s-bob")

	reg := func(c *Connection) Registration {
		return Registration{Conn: c, RoomID: 1, UserID: c.userID, SessionID: c.sessionID}
	}

	tests := []struct {
		name    string
		exclude Exclusion
		conn    *Connection
		want    bool
	}{
		{"no exclusion", Exclusion{}, self, false},
		{"session matches", Exclusion{SessionID: "s-self"}, self, true},
		{"session spares other device of same user", Exclusion{SessionID: "s-self"}, otherDevice, false},
		{"connection matches", Exclusion{Connection: self}, self, true},
		{"connection spares others", Exclusion{Connection: self}, otherDevice, false},
		{"session miss then connection match", Exclusion{SessionID: "s-none", Connection: bob}, bob, true},
		{"user id alone skips all user devices", Exclusion{UserID: "alice"}, otherDevice, true},
		{"user id alone spares other users", Exclusion{UserID: "alice"}, bob, false},
		{"user id ignored when session set", Exclusion{SessionID: "s-self", UserID: "alice"}, otherDevice, false},
		{"user id ignored when connection set", Exclusion{Connection: self, UserID: "alice"}, otherDevice, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.exclude.skips(reg(tt.conn)); got != tt.want {
				t.Errorf("skips() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestChangeEvent_WireShape(t *testing.T) {
	at := time.Date(2026, 3, 4, 10, 30, 0, 0, time.FixedZone("CET", 3600))
	event := NewItemChange(EventCreated, 42, map[string]interface{}{"id": 7, "name": "Milk"}, "user-1", at)

	data, err := json.Marshal(event)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}

	var got map[string]interface{}
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}

	if got["type"] != MessageTypeItemChange || got["event_type"] != "created" {
		t.Errorf("type/event_type = %v/%v", got["type"], got["event_type"])
	}
	if id, ok := got["list_id"].(float64); !ok || id != 42 {
		t.Errorf("list_id = %#v, want JSON number 42", got["list_id"])
	}
	if got["user_id"] != "user-1" {
		t.Errorf("user_id = %#v, want string", got["user_id"])
	}
	if got["timestamp"] != "2026-03-04T09:30:00.000Z" {
		t.Errorf("timestamp = %v, want UTC ISO-8601", got["timestamp"])
	}
	if _, ok := got["item"].(map[string]interface{}); !ok {
		t.Errorf("item = %#v, want object", got["item"])
	}
	if _, ok := got["list"]; ok {
		t.Error("item_change should not carry a list field")
	}
}

func TestListChange_WireShape(t *testing.T) {
	event := NewListChange(EventMemberRemoved, 9, MemberRemoved{ID: 9, RemovedUserID: "bob"}, "alice", time.Now())

	data, err := json.Marshal(event)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	s := string(data)
	for _, want := range []string{
		`"type":"list_change"`,
		`"event_type":"member_removed"`,
		`"list_id":9`,
		`"list":{"id":9,"removed_user_id":"bob"}`,
		`"user_id":"alice"`,
	} {
		if !strings.Contains(s, want) {
			t.Errorf("envelope %s missing %s", s, want)
		}
	}
}
