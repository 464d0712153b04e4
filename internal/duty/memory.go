// Fieldtrace - Field Service Ticketing and Live Workforce Tracking
// Copyright 2026 Fieldtrace Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/fieldtrace/fieldtrace

package duty

import (
	"context"
	"sync"

	"github.com/fieldtrace/fieldtrace/internal/models"
)

// MemoryStore keeps duty sessions in process memory. Sessions do not
// survive a restart; suitable for development and tests.
type MemoryStore struct {
	mu     sync.RWMutex
	active map[string]models.DutySession
	closed []models.DutySession
}

// NewMemoryStore creates an in-memory duty session store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		active: make(map[string]models.DutySession),
	}
}

// Active implements Store.
func (s *MemoryStore) Active(_ context.Context, employeeID string) (models.DutySession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	session, ok := s.active[employeeID]
	if !ok {
		return models.DutySession{}, ErrNoActiveSession
	}
	return session, nil
}

// ActiveAll implements Store.
func (s *MemoryStore) ActiveAll(_ context.Context) ([]models.DutySession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.DutySession, 0, len(s.active))
	for _, session := range s.active {
		out = append(out, session)
	}
	return out, nil
}

// Put implements Store.
func (s *MemoryStore) Put(_ context.Context, session models.DutySession) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.active[session.EmployeeID] = session
	return nil
}

// CloseSession implements Store.
func (s *MemoryStore) CloseSession(_ context.Context, session models.DutySession) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.active, session.EmployeeID)
	s.closed = append(s.closed, session)
	return nil
}

// Close implements Store.
func (s *MemoryStore) Close() error {
	return nil
}
