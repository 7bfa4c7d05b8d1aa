// ListSync - Shared Shopping Lists with Real-Time Collaboration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/listsync

package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/tomtom215/listsync/internal/authz"
	"github.com/tomtom215/listsync/internal/logging"
	"github.com/tomtom215/listsync/internal/store"
)

type listRequest struct {
	Name string `json:"name" validate:"notblank,max=200"`
}

type shareRequest struct {
	Email string `json:"email" validate:"required,email"`
}

// ListDetail is a list with its items and members.
type ListDetail struct {
	store.List
	Items   []store.Item       `json:"items"`
	Members []store.Membership `json:"members"`
}

// SharedList is the payload of a list shared event.
type SharedList struct {
	store.List
	SharedWithUserID string `json:"shared_with_user_id"`
}

// ListLists returns every list the caller owns or is a member of.
func (h *Handler) ListLists(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	userID, _ := actor(r)

	lists, err := h.store.ListsForUser(r.Context(), userID)
	if err != nil {
		rw.DatabaseError(err)
		return
	}
	if lists == nil {
		lists = []store.List{}
	}
	rw.SuccessList(lists, len(lists))
}

// CreateList creates a list owned by the caller.
func (h *Handler) CreateList(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	var req listRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	userID, _ := actor(r)

	list, err := h.store.CreateList(r.Context(), userID, req.Name)
	if err != nil {
		rw.DatabaseError(err)
		return
	}
	rw.Created(list)
}

// GetList returns a list with its items and members.
func (h *Handler) GetList(w http.ResponseWriter, r *http.Request) {
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
	members, err := h.store.Members(r.Context(), list.ID)
	if err != nil {
		rw.DatabaseError(err)
		return
	}
	if items == nil {
		items = []store.Item{}
	}
	if members == nil {
		members = []store.Membership{}
	}
	rw.Success(ListDetail{List: *list, Items: items, Members: members})
}

// UpdateList renames a list. Any member may rename.
func (h *Handler) UpdateList(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	list, ok := h.listFor(w, r, authz.ActionRename)
	if !ok {
		return
	}

	var req listRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	updated, err := h.store.RenameList(r.Context(), list.ID, req.Name)
	if err != nil {
		rw.DatabaseError(err)
		return
	}

	userID, sessionID := actor(r)
	h.notifier.NotifyListUpdated(r.Context(), updated.ID, updated, userID, sessionID)
	rw.Success(updated)
}

// DeleteList deletes a list with its items and memberships. Owner only.
func (h *Handler) DeleteList(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	list, ok := h.listFor(w, r, authz.ActionDelete)
	if !ok {
		return
	}

	if err := h.store.DeleteList(r.Context(), list.ID); err != nil {
		rw.DatabaseError(err)
		return
	}

	userID, sessionID := actor(r)
	h.notifier.NotifyListDeleted(r.Context(), list.ID, userID, sessionID)
	logging.Ctx(r.Context()).Info().Int64("list_id", list.ID).Str("user_id", userID).Msg("List deleted")
	rw.NoContent()
}

// ShareList gives the user with the given email access to the list. Owner only.
func (h *Handler) ShareList(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	list, ok := h.listFor(w, r, authz.ActionShare)
	if !ok {
		return
	}

	var req shareRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	target, err := h.store.GetUserByEmail(r.Context(), req.Email)
	if errors.Is(err, store.ErrNotFound) {
		rw.NotFound("No user with that email")
		return
	}
	if err != nil {
		rw.DatabaseError(err)
		return
	}

	err = h.store.AddMember(r.Context(), list.ID, target.ID)
	if errors.Is(err, store.ErrOwnerMembership) {
		rw.Conflict("The owner already has access")
		return
	}
	if err != nil {
		rw.DatabaseError(err)
		return
	}

	payload := SharedList{List: *list, SharedWithUserID: target.ID}
	userID, sessionID := actor(r)
	h.notifier.NotifyListShared(r.Context(), list.ID, payload, userID, sessionID)
	rw.Success(payload)
}

// ListMembers returns the members of a list, excluding the owner.
func (h *Handler) ListMembers(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	list, ok := h.listFor(w, r, authz.ActionRead)
	if !ok {
		return
	}

	members, err := h.store.Members(r.Context(), list.ID)
	if err != nil {
		rw.DatabaseError(err)
		return
	}
	if members == nil {
		members = []store.Membership{}
	}
	rw.SuccessList(members, len(members))
}

// RemoveMember revokes a member's access. Removing someone else needs the
// remove_member permission; removing yourself needs leave.
func (h *Handler) RemoveMember(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	list, ok := h.listForMember(w, r)
	if !ok {
		return
	}

	userID, sessionID := actor(r)
	target := chi.URLParam(r, "user_id")
	action := authz.ActionRemoveMember
	if target == userID {
		action = authz.ActionLeave
	}
	if !h.authorize(w, r, list, action) {
		return
	}

	err := h.store.RemoveMember(r.Context(), list.ID, target)
	if errors.Is(err, store.ErrNotFound) {
		rw.NotFound("Not a member of this list")
		return
	}
	if err != nil {
		rw.DatabaseError(err)
		return
	}

	h.notifier.NotifyListMemberRemoved(r.Context(), list.ID, target, userID, sessionID)
	rw.NoContent()
}
