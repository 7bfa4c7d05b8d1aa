// ListSync - Shared Shopping Lists with Real-Time Collaboration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/listsync

package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// CreateUser registers a new account with a bcrypt-hashed password.
func (s *Store) CreateUser(_ context.Context, email, name, password string) (user *User, err error) {
	defer func(start time.Time) { err = observe("create_user", start, err) }(time.Now())

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	rec := userRecord{
		User: User{
			ID:        uuid.New().String(),
			Email:     normalizeEmail(email),
			Name:      strings.TrimSpace(name),
			CreatedAt: s.now(),
		},
		PasswordHash: hash,
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		emailKey := []byte(userEmailKeyPrefix + rec.Email)
		taken, err := exists(txn, emailKey)
		if err != nil {
			return fmt.Errorf("check email: %w", err)
		}
		if taken {
			return ErrEmailTaken
		}
		if err := txn.Set(emailKey, []byte(rec.ID)); err != nil {
			return fmt.Errorf("set email index: %w", err)
		}
		return setJSON(txn, []byte(userKeyPrefix+rec.ID), rec)
	})
	if err != nil {
		return nil, err
	}
	return &rec.User, nil
}

// GetUser returns the user with the given id.
func (s *Store) GetUser(_ context.Context, id string) (user *User, err error) {
	defer func(start time.Time) { err = observe("get_user", start, err) }(time.Now())

	var rec userRecord
	err = s.db.View(func(txn *badger.Txn) error {
		return getJSON(txn, []byte(userKeyPrefix+id), &rec)
	})
	if err != nil {
		return nil, err
	}
	return &rec.User, nil
}

// GetUserByEmail returns the user registered with email.
func (s *Store) GetUserByEmail(_ context.Context, email string) (user *User, err error) {
	defer func(start time.Time) { err = observe("get_user_by_email", start, err) }(time.Now())

	rec, err := s.userRecordByEmail(email)
	if err != nil {
		return nil, err
	}
	return &rec.User, nil
}

// Authenticate checks an email/password pair and returns the matching user.
// Unknown emails and wrong passwords both yield ErrInvalidCredentials.
func (s *Store) Authenticate(_ context.Context, email, password string) (user *User, err error) {
	defer func(start time.Time) { err = observe("authenticate", start, err) }(time.Now())

	rec, err := s.userRecordByEmail(email)
	if errors.Is(err, ErrNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword(rec.PasswordHash, []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	return &rec.User, nil
}

func (s *Store) userRecordByEmail(email string) (*userRecord, error) {
	var rec userRecord
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(userEmailKeyPrefix + normalizeEmail(email)))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		id, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		return getJSON(txn, []byte(userKeyPrefix+string(id)), &rec)
	})
	if err != nil {
		return nil, err
	}
	return &rec, nil
}
