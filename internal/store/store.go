// ListSync - Shared Shopping Lists with Real-Time Collaboration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/listsync

// Package store persists users, shopping lists, items and list memberships in
// BadgerDB. Values are JSON documents; numeric list and item ids come from
// badger sequences.
//
// Key layout:
//
//	user:{user_id}                  -> userRecord
//	user_email:{email}              -> user_id
//	list:{list_id}                  -> List
//	list_owner:{user_id}:{list_id}  -> (empty)
//	member:{list_id}:{user_id}      -> Membership
//	member_user:{user_id}:{list_id} -> (empty)
//	item:{list_id}:{item_id}        -> Item
package store

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"

	"github.com/tomtom215/listsync/internal/config"
	"github.com/tomtom215/listsync/internal/logging"
	"github.com/tomtom215/listsync/internal/metrics"
)

// Key prefixes for BadgerDB storage
const (
	userKeyPrefix       = "user:"
	userEmailKeyPrefix  = "user_email:"
	listKeyPrefix       = "list:"
	listOwnerKeyPrefix  = "list_owner:"
	memberKeyPrefix     = "member:"
	memberUserKeyPrefix = "member_user:"
	itemKeyPrefix       = "item:"

	listSequenceKey = "seq:list"
	itemSequenceKey = "seq:item"

	// sequenceBandwidth is how many ids a sequence leases per disk write.
	sequenceBandwidth = 100
)

var (
	// ErrNotFound is returned when a user, list or item does not exist.
	ErrNotFound = errors.New("store: not found")

	// ErrEmailTaken is returned by CreateUser when the email is registered.
	ErrEmailTaken = errors.New("store: email already registered")

	// ErrInvalidCredentials is returned by Authenticate for an unknown email
	// or a wrong password.
	ErrInvalidCredentials = errors.New("store: invalid credentials")

	// ErrOwnerMembership is returned when sharing a list with its owner.
	ErrOwnerMembership = errors.New("store: owner cannot be added as a member")
)

// Store is the badger-backed persistence layer.
type Store struct {
	db      *badger.DB
	listSeq *badger.Sequence
	itemSeq *badger.Sequence

	// now is replaceable in tests.
	now func() time.Time
}

// Open opens (or creates) the database described by cfg.
func Open(cfg config.DatabaseConfig) (*Store, error) {
	opts := badger.DefaultOptions(cfg.Path)
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	}
	opts.Logger = newBadgerLogger()

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger: %w", err)
	}

	s, err := New(db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	logging.Info().
		Str("path", cfg.Path).
		Bool("in_memory", cfg.InMemory).
		Msg("Store opened")
	return s, nil
}

// New wraps an already open badger database.
func New(db *badger.DB) (*Store, error) {
	listSeq, err := db.GetSequence([]byte(listSequenceKey), sequenceBandwidth)
	if err != nil {
		return nil, fmt.Errorf("list sequence: %w", err)
	}
	itemSeq, err := db.GetSequence([]byte(itemSequenceKey), sequenceBandwidth)
	if err != nil {
		_ = listSeq.Release()
		return nil, fmt.Errorf("item sequence: %w", err)
	}
	return &Store{
		db:      db,
		listSeq: listSeq,
		itemSeq: itemSeq,
		now:     func() time.Time { return time.Now().UTC() },
	}, nil
}

// Close releases the id sequences and closes the database.
func (s *Store) Close() error {
	var errs []error
	if err := s.listSeq.Release(); err != nil {
		errs = append(errs, fmt.Errorf("release list sequence: %w", err))
	}
	if err := s.itemSeq.Release(); err != nil {
		errs = append(errs, fmt.Errorf("release item sequence: %w", err))
	}
	if err := s.db.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close badger: %w", err))
	}
	return errors.Join(errs...)
}

// Ping reports whether the database is usable.
func (s *Store) Ping() error {
	if s.db.IsClosed() {
		return errors.New("store: database closed")
	}
	return nil
}

// RunGC reclaims value log space until badger reports nothing left to
// rewrite. In-memory databases have no value log and return nil.
func (s *Store) RunGC(ratio float64) (err error) {
	defer func(start time.Time) { err = observe("value_log_gc", start, err) }(time.Now())

	for {
		err := s.db.RunValueLogGC(ratio)
		if errors.Is(err, badger.ErrNoRewrite) || errors.Is(err, badger.ErrGCInMemoryMode) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("value log gc: %w", err)
		}
	}
}

// nextID returns the next positive id from seq. Badger sequences start at 0.
func nextID(seq *badger.Sequence) (int64, error) {
	n, err := seq.Next()
	if err != nil {
		return 0, fmt.Errorf("next sequence value: %w", err)
	}
	return int64(n) + 1, nil
}

// observe records metrics for a store operation and passes err through.
func observe(operation string, start time.Time, err error) error {
	if errors.Is(err, ErrNotFound) {
		metrics.RecordStoreOperation(operation, time.Since(start), nil)
		return err
	}
	metrics.RecordStoreOperation(operation, time.Since(start), err)
	return err
}

func idKey(id int64) string {
	return strconv.FormatInt(id, 10)
}

func listKey(listID int64) []byte {
	return []byte(listKeyPrefix + idKey(listID))
}

func listOwnerKey(userID string, listID int64) []byte {
	return []byte(listOwnerKeyPrefix + userID + ":" + idKey(listID))
}

func memberKey(listID int64, userID string) []byte {
	return []byte(memberKeyPrefix + idKey(listID) + ":" + userID)
}

func memberUserKey(userID string, listID int64) []byte {
	return []byte(memberUserKeyPrefix + userID + ":" + idKey(listID))
}

func itemKey(listID, itemID int64) []byte {
	return []byte(itemKeyPrefix + idKey(listID) + ":" + idKey(itemID))
}

func itemPrefix(listID int64) []byte {
	return []byte(itemKeyPrefix + idKey(listID) + ":")
}

// getJSON loads key into v, mapping a missing key to ErrNotFound.
func getJSON(txn *badger.Txn, key []byte, v interface{}) error {
	item, err := txn.Get(key)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	return item.Value(func(val []byte) error {
		return json.Unmarshal(val, v)
	})
}

func setJSON(txn *badger.Txn, key []byte, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", key, err)
	}
	return txn.Set(key, data)
}

func exists(txn *badger.Txn, key []byte) (bool, error) {
	_, err := txn.Get(key)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// keysWithPrefix collects every key under prefix without loading values.
func keysWithPrefix(txn *badger.Txn, prefix []byte) [][]byte {
	opts := badger.DefaultIteratorOptions
	opts.PrefetchValues = false
	opts.Prefix = prefix
	it := txn.NewIterator(opts)
	defer it.Close()

	var keys [][]byte
	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		keys = append(keys, it.Item().KeyCopy(nil))
	}
	return keys
}

// lastIDSegment parses the trailing ":<id>" of an index key.
func lastIDSegment(key []byte) (int64, error) {
	for i := len(key) - 1; i >= 0; i-- {
		if key[i] == ':' {
			return strconv.ParseInt(string(key[i+1:]), 10, 64)
		}
	}
	return 0, fmt.Errorf("malformed index key %q", key)
}
