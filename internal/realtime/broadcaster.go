// ListSync - Shared Shopping Lists with Real-Time Collaboration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/listsync

package realtime

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/tomtom215/listsync/internal/logging"
)

// Backend delivers events to connected clients. *Manager implements it.
type Backend interface {
	Broadcast(ctx context.Context, roomID int64, event *ChangeEvent, exclude Exclusion) (BroadcastResult, error)
	Evict(ctx context.Context, roomID int64, userID string, code int, reason string) int
}

// DeletedRef is the payload sent for deleted items and lists.
type DeletedRef struct {
	ID int64 `json:"id"`
}

// MemberRemoved is the list payload of a member_removed event.
type MemberRemoved struct {
	ID            int64  `json:"id"`
	RemovedUserID string `json:"removed_user_id"`
}

// Broadcaster is what request handlers call after a successful mutation.
// It never returns an error and never panics: with no backend attached every
// call is a no-op, and delivery problems are logged.
//
// actorSessionID is the X-Session-ID of the request that made the change.
// The connection with that session id does not receive the event; other
// devices of the same user do. An empty actorSessionID excludes nobody.
type Broadcaster struct {
	mu      sync.RWMutex
	backend Backend
	now     func() time.Time
}

// NewBroadcaster creates a Broadcaster with no backend.
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{now: time.Now}
}

// Attach sets the backend. It may be called once.
func (b *Broadcaster) Attach(backend Backend) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.backend != nil {
		return ErrBackendAttached
	}
	b.backend = backend
	return nil
}

// Attached reports whether a backend is set.
func (b *Broadcaster) Attached() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.backend != nil
}

// NotifyItemCreated sends an item_change/created event to the list's room.
func (b *Broadcaster) NotifyItemCreated(ctx context.Context, listID int64, item interface{}, actorUserID, actorSessionID string) {
	b.publish(ctx, NewItemChange(EventCreated, listID, item, actorUserID, b.now()), actorSessionID, nil)
}

// NotifyItemUpdated sends an item_change/updated event to the list's room.
func (b *Broadcaster) NotifyItemUpdated(ctx context.Context, listID int64, item interface{}, actorUserID, actorSessionID string) {
	b.publish(ctx, NewItemChange(EventUpdated, listID, item, actorUserID, b.now()), actorSessionID, nil)
}

// NotifyItemDeleted sends an item_change/deleted event carrying the item id.
func (b *Broadcaster) NotifyItemDeleted(ctx context.Context, listID, itemID int64, actorUserID, actorSessionID string) {
	b.publish(ctx, NewItemChange(EventDeleted, listID, DeletedRef{ID: itemID}, actorUserID, b.now()), actorSessionID, nil)
}

// NotifyListUpdated sends a list_change/updated event, for example after a rename.
func (b *Broadcaster) NotifyListUpdated(ctx context.Context, listID int64, list interface{}, actorUserID, actorSessionID string) {
	b.publish(ctx, NewListChange(EventUpdated, listID, list, actorUserID, b.now()), actorSessionID, nil)
}

// NotifyListShared sends a list_change/shared event after a member is added.
func (b *Broadcaster) NotifyListShared(ctx context.Context, listID int64, list interface{}, actorUserID, actorSessionID string) {
	b.publish(ctx, NewListChange(EventShared, listID, list, actorUserID, b.now()), actorSessionID, nil)
}

// NotifyListDeleted tells the room the list is gone, then closes every
// connection in it with 1000.
func (b *Broadcaster) NotifyListDeleted(ctx context.Context, listID int64, actorUserID, actorSessionID string) {
	event := NewListChange(EventDeleted, listID, DeletedRef{ID: listID}, actorUserID, b.now())
	b.publish(ctx, event, actorSessionID, func(ctx context.Context, backend Backend) {
		backend.Evict(ctx, listID, "", websocket.CloseNormalClosure, "list deleted")
	})
}

// NotifyListMemberRemoved tells the room a member was removed, then closes
// that member's connections with 1008 since they no longer have access.
func (b *Broadcaster) NotifyListMemberRemoved(ctx context.Context, listID int64, removedUserID, actorUserID, actorSessionID string) {
	payload := MemberRemoved{ID: listID, RemovedUserID: removedUserID}
	event := NewListChange(EventMemberRemoved, listID, payload, actorUserID, b.now())
	b.publish(ctx, event, actorSessionID, func(ctx context.Context, backend Backend) {
		backend.Evict(ctx, listID, removedUserID, websocket.ClosePolicyViolation, "access revoked")
	})
}

// publish detaches ctx from the producer's cancellation but keeps its values.
// Delivery is bounded only by the backend's write wait.
func (b *Broadcaster) publish(ctx context.Context, event *ChangeEvent, actorSessionID string, after func(context.Context, Backend)) {
	ctx = context.WithoutCancel(ctx)

	b.mu.RLock()
	backend := b.backend
	b.mu.RUnlock()

	log := logging.Ctx(ctx)
	if backend == nil {
		log.Debug().
			Str("type", event.Type).
			Str("event_type", string(event.EventType)).
			Int64("list_id", event.ListID).
			Msg("No realtime backend attached, dropping notification")
		return
	}

	defer func() {
		if r := recover(); r != nil {
			log.Error().
				Str("panic", fmt.Sprint(r)).
				Str("type", event.Type).
				Int64("list_id", event.ListID).
				Msg("Recovered from panic while broadcasting")
		}
	}()

	result, err := backend.Broadcast(ctx, event.ListID, event, ExcludeSession(actorSessionID))
	if err != nil {
		log.Error().Err(err).
			Str("type", event.Type).
			Int64("list_id", event.ListID).
			Msg("Failed to broadcast change")
	} else {
		log.Debug().
			Str("type", event.Type).
			Str("event_type", string(event.EventType)).
			Int64("list_id", event.ListID).
			Int("delivered", result.Delivered).
			Int("skipped", result.Skipped).
			Int("failed", result.Failed).
			Msg("Broadcast change")
	}

	if after != nil {
		after(ctx, backend)
	}
}
