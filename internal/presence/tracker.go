// Fieldtrace - Field Service Ticketing and Live Workforce Tracking
// Copyright 2026 Fieldtrace Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/fieldtrace/fieldtrace

// Package presence maintains the authoritative in-memory view of every
// employee's last known position. All ingest paths (REST and websocket)
// funnel through Tracker.Apply, which enforces a monotonic client
// timestamp guard so delayed or replayed reports never overwrite a
// newer position.
//
// Online classification is a pure function of server receive time: an
// employee is online when their last update arrived within the
// configured threshold. Client clocks are never consulted for this.
package presence

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/fieldtrace/fieldtrace/internal/logging"
	"github.com/fieldtrace/fieldtrace/internal/metrics"
	"github.com/fieldtrace/fieldtrace/internal/models"
)

// ErrStaleUpdate is returned by Apply when the incoming client
// timestamp is older than the one already stored for the employee.
var ErrStaleUpdate = errors.New("location update older than stored position")

// Flusher persists a batch of presence records to durable storage.
// The tracker calls it on every flush tick with the records that
// changed since the previous tick.
type Flusher interface {
	FlushPresence(ctx context.Context, records []models.PresenceRecord) error
}

// FlusherFunc adapts a function to the Flusher interface.
type FlusherFunc func(ctx context.Context, records []models.PresenceRecord) error

// FlushPresence implements Flusher.
func (f FlusherFunc) FlushPresence(ctx context.Context, records []models.PresenceRecord) error {
	return f(ctx, records)
}

// Tracker is the in-memory presence map. It is safe for concurrent use.
type Tracker struct {
	mu      sync.RWMutex
	records map[string]models.PresenceRecord
	dirty   map[string]struct{}

	threshold     time.Duration
	flushInterval time.Duration
	flusher       Flusher

	// now is replaceable in tests
	now func() time.Time
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithFlusher sets the durable storage sink for flush ticks.
func WithFlusher(f Flusher) Option {
	return func(t *Tracker) { t.flusher = f }
}

// WithClock overrides the time source. Tests only.
func WithClock(now func() time.Time) Option {
	return func(t *Tracker) { t.now = now }
}

// NewTracker creates a presence tracker. threshold controls online
// classification, flushInterval controls how often dirty records are
// written to durable storage during Serve.
func NewTracker(threshold, flushInterval time.Duration, opts ...Option) *Tracker {
	t := &Tracker{
		records:       make(map[string]models.PresenceRecord),
		dirty:         make(map[string]struct{}),
		threshold:     threshold,
		flushInterval: flushInterval,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Threshold returns the online classification window.
func (t *Tracker) Threshold() time.Duration {
	return t.threshold
}

// LoadInitial seeds the map from durable storage at startup. Loaded
// records are not marked dirty. Existing entries with a newer client
// timestamp are kept, so a load after ingest has begun cannot roll the
// map backwards.
func (t *Tracker) LoadInitial(records []models.PresenceRecord) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for _, rec := range records {
		if existing, ok := t.records[rec.EmployeeID]; ok && existing.TimestampClient >= rec.TimestampClient {
			continue
		}
		t.records[rec.EmployeeID] = rec
	}
	metrics.PresenceMapSize.Set(float64(len(t.records)))
}

// Apply validates ordering and stores the update, returning the record
// now held for the employee. receivedAt is the server receive time and
// becomes the record's UpdatedAt. Returns ErrStaleUpdate when the
// update's client timestamp is older than the stored one; the stored
// record is returned unchanged in that case.
func (t *Tracker) Apply(update models.LocationUpdate, receivedAt time.Time) (models.PresenceRecord, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if existing, ok := t.records[update.EmployeeID]; ok && update.TimestampClient < existing.TimestampClient {
		return existing, ErrStaleUpdate
	}

	rec := models.PresenceRecord{
		EmployeeID:      update.EmployeeID,
		Lat:             update.Lat,
		Lng:             update.Lng,
		Accuracy:        update.Accuracy,
		TimestampClient: update.TimestampClient,
		UpdatedAt:       receivedAt,
	}
	if existing, ok := t.records[update.EmployeeID]; ok {
		rec.EmployeeName = existing.EmployeeName
	}

	t.records[update.EmployeeID] = rec
	t.dirty[update.EmployeeID] = struct{}{}
	metrics.PresenceMapSize.Set(float64(len(t.records)))

	return rec, nil
}

// SetEmployeeName attaches a display name to an employee's record so
// broadcasts carry it without a database round trip.
func (t *Tracker) SetEmployeeName(employeeID, name string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if rec, ok := t.records[employeeID]; ok {
		rec.EmployeeName = name
		t.records[employeeID] = rec
	}
}

// Get returns the record for one employee.
func (t *Tracker) Get(employeeID string) (models.PresenceRecord, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	rec, ok := t.records[employeeID]
	return rec, ok
}

// Snapshot returns a copy of every record, ordered by employee ID so
// successive snapshots of the same state are identical.
func (t *Tracker) Snapshot() []models.PresenceRecord {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]models.PresenceRecord, 0, len(t.records))
	for _, rec := range t.records {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EmployeeID < out[j].EmployeeID })
	return out
}

// Online reports whether a record last updated at updatedAt counts as
// online at instant now, given the classification threshold.
func Online(now, updatedAt time.Time, threshold time.Duration) bool {
	return now.Sub(updatedAt) < threshold
}

// IsOnline classifies one employee using the tracker's threshold.
func (t *Tracker) IsOnline(employeeID string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()

	rec, ok := t.records[employeeID]
	if !ok {
		return false
	}
	return Online(t.now(), rec.UpdatedAt, t.threshold)
}

// OnlineCount returns how many employees are currently online.
func (t *Tracker) OnlineCount() int {
	t.mu.RLock()
	defer t.mu.RUnlock()

	now := t.now()
	count := 0
	for _, rec := range t.records {
		if Online(now, rec.UpdatedAt, t.threshold) {
			count++
		}
	}
	return count
}

// takeDirty removes and returns the records changed since the last call.
func (t *Tracker) takeDirty() []models.PresenceRecord {
	t.mu.Lock()
	defer t.mu.Unlock()

	if len(t.dirty) == 0 {
		return nil
	}
	out := make([]models.PresenceRecord, 0, len(t.dirty))
	for id := range t.dirty {
		if rec, ok := t.records[id]; ok {
			out = append(out, rec)
		}
	}
	t.dirty = make(map[string]struct{})
	return out
}

// Flush writes all dirty records through the configured flusher. On
// flush failure the records are re-marked dirty so the next tick
// retries them.
func (t *Tracker) Flush(ctx context.Context) error {
	if t.flusher == nil {
		return nil
	}

	batch := t.takeDirty()
	if len(batch) == 0 {
		return nil
	}

	start := time.Now()
	err := t.flusher.FlushPresence(ctx, batch)
	metrics.PresenceFlushDuration.Observe(time.Since(start).Seconds())
	metrics.PresenceFlushes.Inc()

	if err != nil {
		t.mu.Lock()
		for _, rec := range batch {
			t.dirty[rec.EmployeeID] = struct{}{}
		}
		t.mu.Unlock()
		return err
	}
	return nil
}

// Serve runs the periodic flush loop until ctx is cancelled, then
// performs a final flush. Implements the suture service contract.
func (t *Tracker) Serve(ctx context.Context) error {
	logging.Info().
		Dur("flush_interval", t.flushInterval).
		Dur("online_threshold", t.threshold).
		Msg("Presence tracker started")

	ticker := time.NewTicker(t.flushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			if err := t.Flush(flushCtx); err != nil {
				logging.Error().Err(err).Msg("Final presence flush failed")
			}
			cancel()
			logging.Info().Msg("Presence tracker stopped")
			return ctx.Err()
		case <-ticker.C:
			if err := t.Flush(ctx); err != nil {
				logging.Error().Err(err).Msg("Presence flush failed")
			}
			metrics.PresenceOnline.Set(float64(t.OnlineCount()))
		}
	}
}
