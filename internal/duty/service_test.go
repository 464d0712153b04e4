// Fieldtrace - Field Service Ticketing and Live Workforce Tracking
// Copyright 2026 Fieldtrace Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/fieldtrace/fieldtrace

package duty

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/fieldtrace/fieldtrace/internal/logging"
)

func init() {
	logging.Init(logging.Config{Level: "disabled", Format: "json", Output: io.Discard})
}

func newTestService() *Service {
	return NewService(NewMemoryStore(), 16*time.Hour)
}

func TestStartCreatesSession(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	session, started, err := svc.Start(ctx, "emp-1")
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if !started {
		t.Error("expected new session")
	}
	if session.EmployeeID != "emp-1" || session.ID == "" {
		t.Errorf("unexpected session: %+v", session)
	}
	if !session.Active() {
		t.Error("new session should be active")
	}
}

func TestStartIsIdempotent(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	first, _, err := svc.Start(ctx, "emp-1")
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	second, started, err := svc.Start(ctx, "emp-1")
	if err != nil {
		t.Fatalf("second Start failed: %v", err)
	}
	if started {
		t.Error("second start should not create a session")
	}
	if second.ID != first.ID {
		t.Errorf("second start returned different session: %s vs %s", second.ID, first.ID)
	}
}

func TestStopIsIdempotent(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	// Stop with nothing open is a no-op
	_, stopped, err := svc.Stop(ctx, "emp-1")
	if err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	if stopped {
		t.Error("stop without session should report nothing stopped")
	}

	if _, _, err := svc.Start(ctx, "emp-1"); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	session, stopped, err := svc.Stop(ctx, "emp-1")
	if err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	if !stopped {
		t.Error("expected session to stop")
	}
	if session.Active() {
		t.Error("stopped session should have an end time")
	}

	// Second stop is a no-op
	_, stopped, err = svc.Stop(ctx, "emp-1")
	if err != nil {
		t.Fatalf("second Stop failed: %v", err)
	}
	if stopped {
		t.Error("second stop should be a no-op")
	}
}

func TestStopThenStartYieldsOneActiveSession(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	first, _, err := svc.Start(ctx, "emp-1")
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if _, _, err := svc.Stop(ctx, "emp-1"); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	second, started, err := svc.Start(ctx, "emp-1")
	if err != nil {
		t.Fatalf("restart failed: %v", err)
	}

	if !started {
		t.Error("restart should create a fresh session")
	}
	if second.ID == first.ID {
		t.Error("restart must not resurrect the closed session")
	}

	active, err := svc.store.ActiveAll(ctx)
	if err != nil {
		t.Fatalf("ActiveAll failed: %v", err)
	}
	if len(active) != 1 {
		t.Errorf("expected exactly one active session, got %d", len(active))
	}
}

func TestStatusHandshake(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	status, err := svc.Status(ctx, "emp-1")
	if err != nil {
		t.Fatalf("Status failed: %v", err)
	}
	if status.OnDuty || status.Session != nil {
		t.Errorf("expected off duty, got %+v", status)
	}
	if status.ServerNow.IsZero() {
		t.Error("expected server time in handshake")
	}

	session, _, err := svc.Start(ctx, "emp-1")
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	status, err = svc.Status(ctx, "emp-1")
	if err != nil {
		t.Fatalf("Status failed: %v", err)
	}
	if !status.OnDuty || status.Session == nil || status.Session.ID != session.ID {
		t.Errorf("expected on duty with session %s, got %+v", session.ID, status)
	}
}

func TestSweepClosesExpiredSessions(t *testing.T) {
	current := time.Date(2026, 8, 31, 6, 0, 0, 0, time.UTC)
	svc := NewService(NewMemoryStore(), 16*time.Hour)
	svc.now = func() time.Time { return current }

	ctx := context.Background()
	if _, _, err := svc.Start(ctx, "emp-old"); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	current = current.Add(17 * time.Hour)
	if _, _, err := svc.Start(ctx, "emp-fresh"); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	svc.sweep(ctx)

	if svc.OnDuty(ctx, "emp-old") {
		t.Error("expired session should be closed by sweep")
	}
	if !svc.OnDuty(ctx, "emp-fresh") {
		t.Error("fresh session should survive sweep")
	}
}

func TestServeStopsOnCancel(t *testing.T) {
	svc := newTestService()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Serve(ctx) }()

	cancel()
	select {
	case err := <-done:
		if err == nil {
			t.Error("expected context error")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not stop after cancel")
	}
}
