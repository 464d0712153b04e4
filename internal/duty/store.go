// Fieldtrace - Field Service Ticketing and Live Workforce Tracking
// Copyright 2026 Fieldtrace Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/fieldtrace/fieldtrace

// Package duty manages server-authoritative tracking sessions. A
// device only streams positions while its employee has an open duty
// session; the client asks the server for its duty state on load
// instead of trusting anything cached locally.
package duty

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/fieldtrace/fieldtrace/internal/logging"
	"github.com/fieldtrace/fieldtrace/internal/metrics"
	"github.com/fieldtrace/fieldtrace/internal/models"
)

// ErrNoActiveSession is returned when an employee has no open session.
var ErrNoActiveSession = errors.New("no active duty session")

// Store persists duty sessions. Implementations must be safe for
// concurrent use.
type Store interface {
	// Active returns the open session for an employee, or
	// ErrNoActiveSession.
	Active(ctx context.Context, employeeID string) (models.DutySession, error)

	// ActiveAll returns every open session.
	ActiveAll(ctx context.Context) ([]models.DutySession, error)

	// Put stores an open session, replacing any existing one for the
	// employee.
	Put(ctx context.Context, session models.DutySession) error

	// CloseSession marks the session ended and removes it from the
	// active set. The archived session keeps its end time.
	CloseSession(ctx context.Context, session models.DutySession) error

	// Close releases store resources.
	Close() error
}

// Service wraps a Store with idempotent start/stop semantics and a
// max-age sweeper.
type Service struct {
	store         Store
	maxSessionAge time.Duration

	now func() time.Time
}

// NewService creates a duty session service. Sessions older than
// maxSessionAge are force-closed by the sweeper so a tracker that
// never checks out does not stream forever.
func NewService(store Store, maxSessionAge time.Duration) *Service {
	return &Service{
		store:         store,
		maxSessionAge: maxSessionAge,
		now:           time.Now,
	}
}

// Start opens a duty session for the employee. Calling Start with a
// session already open returns the existing session unchanged, so
// repeated taps on the client cannot fork sessions.
func (s *Service) Start(ctx context.Context, employeeID string) (models.DutySession, bool, error) {
	if existing, err := s.store.Active(ctx, employeeID); err == nil {
		return existing, false, nil
	} else if !errors.Is(err, ErrNoActiveSession) {
		return models.DutySession{}, false, err
	}

	session := models.DutySession{
		ID:         uuid.New().String(),
		EmployeeID: employeeID,
		StartedAt:  s.now().UTC(),
	}
	if err := s.store.Put(ctx, session); err != nil {
		return models.DutySession{}, false, err
	}

	metrics.DutySessionsStarted.Inc()
	s.updateActiveGauge(ctx)
	logging.Info().Str("employee_id", employeeID).Str("session_id", session.ID).Msg("Duty session started")

	return session, true, nil
}

// Stop closes the employee's open session. Stopping with no open
// session is a no-op, not an error.
func (s *Service) Stop(ctx context.Context, employeeID string) (models.DutySession, bool, error) {
	session, err := s.store.Active(ctx, employeeID)
	if errors.Is(err, ErrNoActiveSession) {
		return models.DutySession{}, false, nil
	}
	if err != nil {
		return models.DutySession{}, false, err
	}

	session.EndedAt = s.now().UTC()
	if err := s.store.CloseSession(ctx, session); err != nil {
		return models.DutySession{}, false, err
	}

	metrics.DutySessionsStopped.Inc()
	s.updateActiveGauge(ctx)
	logging.Info().Str("employee_id", employeeID).Str("session_id", session.ID).Msg("Duty session stopped")

	return session, true, nil
}

// Status returns the handshake payload for a tracker deciding whether
// to stream.
func (s *Service) Status(ctx context.Context, employeeID string) (models.DutyStatusResponse, error) {
	resp := models.DutyStatusResponse{ServerNow: s.now().UTC()}

	session, err := s.store.Active(ctx, employeeID)
	if errors.Is(err, ErrNoActiveSession) {
		return resp, nil
	}
	if err != nil {
		return resp, err
	}

	resp.OnDuty = true
	resp.Session = &session
	return resp, nil
}

// OnDuty reports whether the employee currently has an open session.
func (s *Service) OnDuty(ctx context.Context, employeeID string) bool {
	_, err := s.store.Active(ctx, employeeID)
	return err == nil
}

// sweep force-closes sessions older than the max age.
func (s *Service) sweep(ctx context.Context) {
	sessions, err := s.store.ActiveAll(ctx)
	if err != nil {
		logging.Error().Err(err).Msg("Duty sweep failed to list sessions")
		return
	}

	cutoff := s.now().Add(-s.maxSessionAge)
	for _, session := range sessions {
		if session.StartedAt.After(cutoff) {
			continue
		}
		session.EndedAt = s.now().UTC()
		if err := s.store.CloseSession(ctx, session); err != nil {
			logging.Error().Err(err).Str("session_id", session.ID).Msg("Duty sweep failed to close session")
			continue
		}
		metrics.DutySessionsExpired.Inc()
		logging.Warn().
			Str("employee_id", session.EmployeeID).
			Str("session_id", session.ID).
			Time("started_at", session.StartedAt).
			Msg("Duty session expired by max age")
	}
	s.updateActiveGauge(ctx)
}

func (s *Service) updateActiveGauge(ctx context.Context) {
	if sessions, err := s.store.ActiveAll(ctx); err == nil {
		metrics.DutySessionsActive.Set(float64(len(sessions)))
	}
}

// Serve runs the expiry sweeper until ctx is cancelled. Implements the
// suture service contract.
func (s *Service) Serve(ctx context.Context) error {
	interval := s.maxSessionAge / 8
	if interval < time.Minute {
		interval = time.Minute
	}

	logging.Info().
		Dur("max_session_age", s.maxSessionAge).
		Dur("sweep_interval", interval).
		Msg("Duty session sweeper started")

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logging.Info().Msg("Duty session sweeper stopped")
			return ctx.Err()
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}
