// ListSync - Shared Shopping Lists with Real-Time Collaboration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/listsync

package store

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"
)

// CreateItem appends an item to a list.
func (s *Store) CreateItem(_ context.Context, listID int64, name, quantity, category string) (item *Item, err error) {
	defer func(start time.Time) { err = observe("create_item", start, err) }(time.Now())

	id, err := nextID(s.itemSeq)
	if err != nil {
		return nil, err
	}
	now := s.now()
	it := Item{
		ID:        id,
		ListID:    listID,
		Name:      strings.TrimSpace(name),
		Quantity:  strings.TrimSpace(quantity),
		Category:  strings.TrimSpace(category),
		CreatedAt: now,
		UpdatedAt: now,
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		var l List
		if err := getJSON(txn, listKey(listID), &l); err != nil {
			return err
		}
		l.UpdatedAt = now
		if err := setJSON(txn, listKey(listID), l); err != nil {
			return err
		}
		return setJSON(txn, itemKey(listID, id), it)
	})
	if err != nil {
		return nil, err
	}
	return &it, nil
}

// GetItem returns one item of a list.
func (s *Store) GetItem(_ context.Context, listID, itemID int64) (item *Item, err error) {
	defer func(start time.Time) { err = observe("get_item", start, err) }(time.Now())

	var it Item
	err = s.db.View(func(txn *badger.Txn) error {
		return getJSON(txn, itemKey(listID, itemID), &it)
	})
	if err != nil {
		return nil, err
	}
	return &it, nil
}

// UpdateItem applies the non-nil fields of upd to an item.
func (s *Store) UpdateItem(_ context.Context, listID, itemID int64, upd ItemUpdate) (item *Item, err error) {
	defer func(start time.Time) { err = observe("update_item", start, err) }(time.Now())

	var it Item
	err = s.db.Update(func(txn *badger.Txn) error {
		if err := getJSON(txn, itemKey(listID, itemID), &it); err != nil {
			return err
		}
		if upd.Name != nil {
			it.Name = strings.TrimSpace(*upd.Name)
		}
		if upd.Quantity != nil {
			it.Quantity = strings.TrimSpace(*upd.Quantity)
		}
		if upd.Category != nil {
			it.Category = strings.TrimSpace(*upd.Category)
		}
		if upd.Checked != nil {
			it.Checked = *upd.Checked
		}
		it.UpdatedAt = s.now()
		return setJSON(txn, itemKey(listID, itemID), it)
	})
	if err != nil {
		return nil, err
	}
	return &it, nil
}

// DeleteItem removes an item. ErrNotFound if it did not exist.
func (s *Store) DeleteItem(_ context.Context, listID, itemID int64) (err error) {
	defer func(start time.Time) { err = observe("delete_item", start, err) }(time.Now())

	return s.db.Update(func(txn *badger.Txn) error {
		found, err := exists(txn, itemKey(listID, itemID))
		if err != nil {
			return err
		}
		if !found {
			return ErrNotFound
		}
		return txn.Delete(itemKey(listID, itemID))
	})
}

// Items returns the items of a list ordered by id.
func (s *Store) Items(_ context.Context, listID int64) (items []Item, err error) {
	defer func(start time.Time) { err = observe("items", start, err) }(time.Now())

	err = s.db.View(func(txn *badger.Txn) error {
		if err := getJSON(txn, listKey(listID), &List{}); err != nil {
			return err
		}

		prefix := itemPrefix(listID)
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		iter := txn.NewIterator(opts)
		defer iter.Close()
		for iter.Seek(prefix); iter.ValidForPrefix(prefix); iter.Next() {
			var it Item
			if err := iter.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &it)
			}); err != nil {
				return err
			}
			items = append(items, it)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	// Keys are not zero padded, so key order is lexical rather than numeric.
	sort.Slice(items, func(i, j int) bool { return items[i].ID < items[j].ID })
	return items, nil
}
