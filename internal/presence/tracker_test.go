// Fieldtrace - Field Service Ticketing and Live Workforce Tracking
// Copyright 2026 Fieldtrace Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/fieldtrace/fieldtrace

package presence

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/fieldtrace/fieldtrace/internal/logging"
	"github.com/fieldtrace/fieldtrace/internal/models"
)

func init() {
	logging.Init(logging.Config{Level: "disabled", Format: "json", Output: io.Discard})
}

func newTestTracker(opts ...Option) *Tracker {
	return NewTracker(2*time.Minute, 15*time.Second, opts...)
}

func update(id string, ts int64) models.LocationUpdate {
	return models.LocationUpdate{
		EmployeeID:      id,
		Lat:             -6.2,
		Lng:             106.8,
		Accuracy:        10,
		TimestampClient: ts,
	}
}

func TestApplyStoresNewerUpdate(t *testing.T) {
	tr := newTestTracker()
	now := time.Now()

	rec, err := tr.Apply(update("emp-1", 1000), now)
	if err != nil {
		t.Fatalf("first apply failed: %v", err)
	}
	if rec.TimestampClient != 1000 {
		t.Errorf("expected timestamp 1000, got %d", rec.TimestampClient)
	}

	rec, err = tr.Apply(update("emp-1", 2000), now.Add(time.Second))
	if err != nil {
		t.Fatalf("newer apply failed: %v", err)
	}
	if rec.TimestampClient != 2000 {
		t.Errorf("expected timestamp 2000, got %d", rec.TimestampClient)
	}
}

func TestApplyRejectsOlderTimestamp(t *testing.T) {
	tr := newTestTracker()
	now := time.Now()

	if _, err := tr.Apply(update("emp-1", 2000), now); err != nil {
		t.Fatalf("apply failed: %v", err)
	}

	rec, err := tr.Apply(update("emp-1", 1000), now.Add(time.Second))
	if !errors.Is(err, ErrStaleUpdate) {
		t.Fatalf("expected ErrStaleUpdate, got %v", err)
	}
	// Stored record must be untouched.
	if rec.TimestampClient != 2000 {
		t.Errorf("stored record changed on stale apply: %d", rec.TimestampClient)
	}
	if got, _ := tr.Get("emp-1"); got.TimestampClient != 2000 {
		t.Errorf("map regressed to %d", got.TimestampClient)
	}
}

func TestApplyEqualTimestampOverwrites(t *testing.T) {
	tr := newTestTracker()
	now := time.Now()

	if _, err := tr.Apply(update("emp-1", 1000), now); err != nil {
		t.Fatalf("apply failed: %v", err)
	}

	// Same client timestamp with a corrected position wins.
	u := update("emp-1", 1000)
	u.Lat = -6.3
	rec, err := tr.Apply(u, now.Add(time.Second))
	if err != nil {
		t.Fatalf("equal timestamp apply failed: %v", err)
	}
	if rec.Lat != -6.3 {
		t.Errorf("expected corrected latitude, got %f", rec.Lat)
	}
}

func TestOnlineThresholdBoundary(t *testing.T) {
	threshold := 2 * time.Minute
	now := time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name      string
		updatedAt time.Time
		want      bool
	}{
		{"just updated", now, true},
		{"one second ago", now.Add(-time.Second), true},
		{"just inside threshold", now.Add(-threshold + time.Millisecond), true},
		{"exactly at threshold", now.Add(-threshold), false},
		{"past threshold", now.Add(-threshold - time.Second), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Online(now, tt.updatedAt, threshold); got != tt.want {
				t.Errorf("Online(%v) = %v, want %v", now.Sub(tt.updatedAt), got, tt.want)
			}
		})
	}
}

func TestIsOnlineUsesServerTime(t *testing.T) {
	current := time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)
	tr := newTestTracker(WithClock(func() time.Time { return current }))

	// Client timestamp far in the past must not affect classification.
	if _, err := tr.Apply(update("emp-1", 1), current); err != nil {
		t.Fatalf("apply failed: %v", err)
	}
	if !tr.IsOnline("emp-1") {
		t.Error("freshly applied record should be online regardless of client clock")
	}

	current = current.Add(3 * time.Minute)
	if tr.IsOnline("emp-1") {
		t.Error("record past threshold should be offline")
	}
	if tr.IsOnline("emp-unknown") {
		t.Error("unknown employee should be offline")
	}
}

func TestSnapshotOrderedAndIsolated(t *testing.T) {
	tr := newTestTracker()
	now := time.Now()

	for _, id := range []string{"emp-c", "emp-a", "emp-b"} {
		if _, err := tr.Apply(update(id, 1000), now); err != nil {
			t.Fatalf("apply failed: %v", err)
		}
	}

	snap := tr.Snapshot()
	if len(snap) != 3 {
		t.Fatalf("expected 3 records, got %d", len(snap))
	}
	for i, want := range []string{"emp-a", "emp-b", "emp-c"} {
		if snap[i].EmployeeID != want {
			t.Errorf("snapshot[%d] = %s, want %s", i, snap[i].EmployeeID, want)
		}
	}

	// Mutating the snapshot must not leak into the tracker.
	snap[0].Lat = 99
	if rec, _ := tr.Get("emp-a"); rec.Lat == 99 {
		t.Error("snapshot mutation leaked into tracker")
	}
}

func TestLoadInitialKeepsNewerEntries(t *testing.T) {
	tr := newTestTracker()
	now := time.Now()

	if _, err := tr.Apply(update("emp-1", 5000), now); err != nil {
		t.Fatalf("apply failed: %v", err)
	}

	tr.LoadInitial([]models.PresenceRecord{
		{EmployeeID: "emp-1", TimestampClient: 1000, UpdatedAt: now.Add(-time.Hour)},
		{EmployeeID: "emp-2", TimestampClient: 3000, UpdatedAt: now.Add(-time.Minute)},
	})

	if rec, _ := tr.Get("emp-1"); rec.TimestampClient != 5000 {
		t.Errorf("load rolled emp-1 back to %d", rec.TimestampClient)
	}
	if _, ok := tr.Get("emp-2"); !ok {
		t.Error("load should add emp-2")
	}
}

func TestConcurrentApplies(t *testing.T) {
	tr := newTestTracker()
	now := time.Now()

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				id := fmt.Sprintf("emp-%d", i%10)
				_, _ = tr.Apply(update(id, int64(g*1000+i)), now)
				tr.Snapshot()
				tr.IsOnline(id)
			}
		}(g)
	}
	wg.Wait()

	if got := len(tr.Snapshot()); got != 10 {
		t.Errorf("expected 10 employees, got %d", got)
	}
}

func TestFlushRetriesFailedBatch(t *testing.T) {
	var mu sync.Mutex
	var calls [][]models.PresenceRecord
	fail := true

	tr := newTestTracker(WithFlusher(FlusherFunc(func(_ context.Context, recs []models.PresenceRecord) error {
		mu.Lock()
		defer mu.Unlock()
		calls = append(calls, recs)
		if fail {
			return errors.New("disk full")
		}
		return nil
	})))

	now := time.Now()
	if _, err := tr.Apply(update("emp-1", 1000), now); err != nil {
		t.Fatalf("apply failed: %v", err)
	}

	if err := tr.Flush(context.Background()); err == nil {
		t.Fatal("expected flush error")
	}

	// Failed records stay dirty and go out on the next flush.
	fail = false
	if err := tr.Flush(context.Background()); err != nil {
		t.Fatalf("retry flush failed: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(calls) != 2 {
		t.Fatalf("expected 2 flush calls, got %d", len(calls))
	}
	if len(calls[1]) != 1 || calls[1][0].EmployeeID != "emp-1" {
		t.Errorf("retry batch missing emp-1: %v", calls[1])
	}
}

func TestFlushSkipsWhenClean(t *testing.T) {
	called := false
	tr := newTestTracker(WithFlusher(FlusherFunc(func(context.Context, []models.PresenceRecord) error {
		called = true
		return nil
	})))

	if err := tr.Flush(context.Background()); err != nil {
		t.Fatalf("flush failed: %v", err)
	}
	if called {
		t.Error("flusher should not run with no dirty records")
	}
}

func TestServeFlushesOnShutdown(t *testing.T) {
	var mu sync.Mutex
	flushed := 0

	tr := NewTracker(2*time.Minute, time.Hour, WithFlusher(FlusherFunc(func(_ context.Context, recs []models.PresenceRecord) error {
		mu.Lock()
		flushed += len(recs)
		mu.Unlock()
		return nil
	})))

	if _, err := tr.Apply(update("emp-1", 1000), time.Now()); err != nil {
		t.Fatalf("apply failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- tr.Serve(ctx) }()

	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not stop after cancel")
	}

	mu.Lock()
	defer mu.Unlock()
	if flushed != 1 {
		t.Errorf("expected final flush of 1 record, got %d", flushed)
	}
}
