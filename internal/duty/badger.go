// Fieldtrace - Field Service Ticketing and Live Workforce Tracking
// Copyright 2026 Fieldtrace Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/fieldtrace/fieldtrace

package duty

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"

	"github.com/fieldtrace/fieldtrace/internal/models"
)

// Key prefixes for BadgerDB storage
const (
	activeKeyPrefix = "duty_active:"
	closedKeyPrefix = "duty_closed:"
)

// closedSessionTTL bounds how long archived sessions stay in the
// store. Long-term history lives in DuckDB location tables; this is
// only for operational inspection.
const closedSessionTTL = 30 * 24 * time.Hour

// BadgerStore persists duty sessions in BadgerDB so open sessions
// survive a server restart. A tracker that reloads mid-shift keeps
// streaming without checking in again.
type BadgerStore struct {
	db *badger.DB
}

// NewBadgerStore opens a BadgerDB-backed duty session store at path.
func NewBadgerStore(path string) (*BadgerStore, error) {
	opts := badger.DefaultOptions(path)
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger duty store: %w", err)
	}
	return &BadgerStore{db: db}, nil
}

// NewBadgerStoreWithDB wraps an already open BadgerDB handle.
func NewBadgerStoreWithDB(db *badger.DB) *BadgerStore {
	return &BadgerStore{db: db}
}

// Active implements Store.
func (s *BadgerStore) Active(_ context.Context, employeeID string) (models.DutySession, error) {
	var session models.DutySession

	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(activeKeyPrefix + employeeID))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrNoActiveSession
		}
		if err != nil {
			return fmt.Errorf("get active session: %w", err)
		}

		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &session)
		})
	})

	if err != nil {
		return models.DutySession{}, err
	}
	return session, nil
}

// ActiveAll implements Store.
func (s *BadgerStore) ActiveAll(_ context.Context) ([]models.DutySession, error) {
	var sessions []models.DutySession

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = true
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(activeKeyPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var session models.DutySession
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &session)
			})
			if err != nil {
				return err
			}
			sessions = append(sessions, session)
		}
		return nil
	})

	if err != nil {
		return nil, fmt.Errorf("list active sessions: %w", err)
	}
	return sessions, nil
}

// Put implements Store.
func (s *BadgerStore) Put(_ context.Context, session models.DutySession) error {
	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}

	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(activeKeyPrefix+session.EmployeeID), data)
	})
}

// CloseSession implements Store. The archived copy expires via badger
// TTL.
func (s *BadgerStore) CloseSession(_ context.Context, session models.DutySession) error {
	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}

	return s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Delete([]byte(activeKeyPrefix + session.EmployeeID)); err != nil && !errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("delete active session: %w", err)
		}

		closedKey := []byte(closedKeyPrefix + session.EmployeeID + ":" + session.ID)
		entry := badger.NewEntry(closedKey, data).WithTTL(closedSessionTTL)
		if err := txn.SetEntry(entry); err != nil {
			return fmt.Errorf("archive session: %w", err)
		}
		return nil
	})
}

// Close implements Store.
func (s *BadgerStore) Close() error {
	return s.db.Close()
}
