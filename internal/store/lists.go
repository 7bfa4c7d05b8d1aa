// ListSync - Shared Shopping Lists with Real-Time Collaboration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/listsync

package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"
)

// CreateList creates a list owned by ownerID.
func (s *Store) CreateList(_ context.Context, ownerID, name string) (list *List, err error) {
	defer func(start time.Time) { err = observe("create_list", start, err) }(time.Now())

	id, err := nextID(s.listSeq)
	if err != nil {
		return nil, err
	}
	now := s.now()
	l := List{
		ID:        id,
		Name:      strings.TrimSpace(name),
		OwnerID:   ownerID,
		CreatedAt: now,
		UpdatedAt: now,
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		if err := setJSON(txn, listKey(id), l); err != nil {
			return err
		}
		return txn.Set(listOwnerKey(ownerID, id), []byte{})
	})
	if err != nil {
		return nil, err
	}
	return &l, nil
}

// GetList returns the list with the given id.
func (s *Store) GetList(_ context.Context, listID int64) (list *List, err error) {
	defer func(start time.Time) { err = observe("get_list", start, err) }(time.Now())

	var l List
	err = s.db.View(func(txn *badger.Txn) error {
		return getJSON(txn, listKey(listID), &l)
	})
	if err != nil {
		return nil, err
	}
	return &l, nil
}

// RenameList updates a list's name.
func (s *Store) RenameList(_ context.Context, listID int64, name string) (list *List, err error) {
	defer func(start time.Time) { err = observe("rename_list", start, err) }(time.Now())

	var l List
	err = s.db.Update(func(txn *badger.Txn) error {
		if err := getJSON(txn, listKey(listID), &l); err != nil {
			return err
		}
		l.Name = strings.TrimSpace(name)
		l.UpdatedAt = s.now()
		return setJSON(txn, listKey(listID), l)
	})
	if err != nil {
		return nil, err
	}
	return &l, nil
}

// DeleteList removes a list together with its items and memberships.
func (s *Store) DeleteList(_ context.Context, listID int64) (err error) {
	defer func(start time.Time) { err = observe("delete_list", start, err) }(time.Now())

	return s.db.Update(func(txn *badger.Txn) error {
		var l List
		if err := getJSON(txn, listKey(listID), &l); err != nil {
			return err
		}

		keys := [][]byte{listKey(listID), listOwnerKey(l.OwnerID, listID)}
		keys = append(keys, keysWithPrefix(txn, itemPrefix(listID))...)

		memberPrefix := []byte(memberKeyPrefix + idKey(listID) + ":")
		for _, k := range keysWithPrefix(txn, memberPrefix) {
			userID := string(k[len(memberPrefix):])
			keys = append(keys, k, memberUserKey(userID, listID))
		}

		for _, k := range keys {
			if err := txn.Delete(k); err != nil {
				return fmt.Errorf("delete %s: %w", k, err)
			}
		}
		return nil
	})
}

// ListsForUser returns every list the user owns or is a member of, ordered
// by id.
func (s *Store) ListsForUser(_ context.Context, userID string) (lists []List, err error) {
	defer func(start time.Time) { err = observe("lists_for_user", start, err) }(time.Now())

	err = s.db.View(func(txn *badger.Txn) error {
		indexKeys := keysWithPrefix(txn, []byte(listOwnerKeyPrefix+userID+":"))
		indexKeys = append(indexKeys, keysWithPrefix(txn, []byte(memberUserKeyPrefix+userID+":"))...)

		for _, k := range indexKeys {
			listID, err := lastIDSegment(k)
			if err != nil {
				return err
			}
			var l List
			if err := getJSON(txn, listKey(listID), &l); err != nil {
				if errors.Is(err, ErrNotFound) {
					continue
				}
				return err
			}
			lists = append(lists, l)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(lists, func(i, j int) bool { return lists[i].ID < lists[j].ID })
	return lists, nil
}

// AddMember grants userID access to a list. Adding an existing member is a
// no-op; adding the owner is ErrOwnerMembership.
func (s *Store) AddMember(_ context.Context, listID int64, userID string) (err error) {
	defer func(start time.Time) { err = observe("add_member", start, err) }(time.Now())

	return s.db.Update(func(txn *badger.Txn) error {
		var l List
		if err := getJSON(txn, listKey(listID), &l); err != nil {
			return err
		}
		if l.OwnerID == userID {
			return ErrOwnerMembership
		}
		if err := getJSON(txn, []byte(userKeyPrefix+userID), &userRecord{}); err != nil {
			return err
		}

		found, err := exists(txn, memberKey(listID, userID))
		if err != nil || found {
			return err
		}
		m := Membership{ListID: listID, UserID: userID, AddedAt: s.now()}
		if err := setJSON(txn, memberKey(listID, userID), m); err != nil {
			return err
		}
		return txn.Set(memberUserKey(userID, listID), []byte{})
	})
}

// RemoveMember revokes a membership. ErrNotFound if there was none.
func (s *Store) RemoveMember(_ context.Context, listID int64, userID string) (err error) {
	defer func(start time.Time) { err = observe("remove_member", start, err) }(time.Now())

	return s.db.Update(func(txn *badger.Txn) error {
		found, err := exists(txn, memberKey(listID, userID))
		if err != nil {
			return err
		}
		if !found {
			return ErrNotFound
		}
		if err := txn.Delete(memberKey(listID, userID)); err != nil {
			return err
		}
		return txn.Delete(memberUserKey(userID, listID))
	})
}

// Members returns the memberships of a list.
func (s *Store) Members(_ context.Context, listID int64) (members []Membership, err error) {
	defer func(start time.Time) { err = observe("members", start, err) }(time.Now())

	err = s.db.View(func(txn *badger.Txn) error {
		if err := getJSON(txn, listKey(listID), &List{}); err != nil {
			return err
		}

		prefix := []byte(memberKeyPrefix + idKey(listID) + ":")
		it := txn.NewIterator(badger.IteratorOptions{PrefetchValues: true, PrefetchSize: 32, Prefix: prefix})
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var m Membership
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &m)
			}); err != nil {
				return err
			}
			members = append(members, m)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return members, nil
}

// HasAccess reports whether userID owns the list or is one of its members.
// A list that does not exist yields false without an error.
func (s *Store) HasAccess(_ context.Context, userID string, listID int64) (ok bool, err error) {
	defer func(start time.Time) { err = observe("has_access", start, err) }(time.Now())

	err = s.db.View(func(txn *badger.Txn) error {
		var l List
		if err := getJSON(txn, listKey(listID), &l); err != nil {
			if errors.Is(err, ErrNotFound) {
				return nil
			}
			return err
		}
		if l.OwnerID == userID {
			ok = true
			return nil
		}
		ok, err = exists(txn, memberKey(listID, userID))
		return err
	})
	return ok, err
}
