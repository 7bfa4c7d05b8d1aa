// ListSync - Shared Shopping Lists with Real-Time Collaboration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/listsync

package api

import (
	"errors"
	"net/http"

	"github.com/tomtom215/listsync/internal/authz"
	"github.com/tomtom215/listsync/internal/store"
)

type createItemRequest struct {
	Name     string `json:"name" validate:"notblank,max=200"`
	Quantity string `json:"quantity" validate:"max=50"`
	Category string `json:"category" validate:"max=50"`
}

type updateItemRequest struct {
	Name     *string `json:"name" validate:"omitempty,notblank,max=200"`
	Quantity *string `json:"quantity" validate:"omitempty,max=50"`
	Category *string `json:"category" validate:"omitempty,max=50"`
	Checked  *bool   `json:"checked"`
}

func (u updateItemRequest) empty() bool {
	return u.Name == nil && u.Quantity == nil && u.Category == nil && u.Checked == nil
}

// ListItems returns the items of a list.
func (h *Handler) ListItems(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	list, ok := h.listFor(w, r, authz.ActionRead)
	if !ok {
		return
	}

	items, err := h.store.Items(r.Context(), list.ID)
	if err != nil {
		rw.DatabaseError(err)
		return
	}
	if items == nil {
		items = []store.Item{}
	}
	rw.SuccessList(items, len(items))
}

// CreateItem adds an item to a list.
func (h *Handler) CreateItem(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	list, ok := h.listFor(w, r, authz.ActionEditItems)
	if !ok {
		return
	}

	var req createItemRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	item, err := h.store.CreateItem(r.Context(), list.ID, req.Name, req.Quantity, req.Category)
	if err != nil {
		rw.DatabaseError(err)
		return
	}

	userID, sessionID := actor(r)
	h.notifier.NotifyItemCreated(r.Context(), list.ID, item, userID, sessionID)
	rw.Created(item)
}

// UpdateItem applies a partial update to an item.
func (h *Handler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	list, ok := h.listFor(w, r, authz.ActionEditItems)
	if !ok {
		return
	}
	itemID, err := pathID(r, "item_id")
	if err != nil {
		rw.BadRequest(err.Error())
		return
	}

	var req updateItemRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	if req.empty() {
		rw.BadRequest(ErrEmptyUpdate.Error())
		return
	}

	item, err := h.store.UpdateItem(r.Context(), list.ID, itemID, store.ItemUpdate{
		Name:     req.Name,
		Quantity: req.Quantity,
		Category: req.Category,
		Checked:  req.Checked,
	})
	if errors.Is(err, store.ErrNotFound) {
		rw.NotFound("Item not found")
		return
	}
	if err != nil {
		rw.DatabaseError(err)
		return
	}

	userID, sessionID := actor(r)
	h.notifier.NotifyItemUpdated(r.Context(), list.ID, item, userID, sessionID)
	rw.Success(item)
}

// DeleteItem removes an item from a list.
func (h *Handler) DeleteItem(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	list, ok := h.listFor(w, r, authz.ActionEditItems)
	if !ok {
		return
	}
	itemID, err := pathID(r, "item_id")
	if err != nil {
		rw.BadRequest(err.Error())
		return
	}

	err = h.store.DeleteItem(r.Context(), list.ID, itemID)
	if errors.Is(err, store.ErrNotFound) {
		rw.NotFound("Item not found")
		return
	}
	if err != nil {
		rw.DatabaseError(err)
		return
	}

	userID, sessionID := actor(r)
	h.notifier.NotifyItemDeleted(r.Context(), list.ID, itemID, userID, sessionID)
	rw.NoContent()
}
