// Fieldtrace - Field Service Ticketing and Live Workforce Tracking
// Copyright 2026 Fieldtrace Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/fieldtrace/fieldtrace

package services

import (
	"context"
)

// ContextRunner matches components whose run loop already follows the
// suture pattern: block until the context cancels, then return.
//
// Satisfied by *websocket.Hub (RunWithContext), *presence.Tracker and
// *duty.Service (Serve), and the NATS subscriber.
type ContextRunner interface {
	Serve(ctx context.Context) error
}

// RunnerService gives a ContextRunner a stable name in supervisor logs.
type RunnerService struct {
	runner ContextRunner
	name   string
}

// NewRunnerService wraps a runner under the given service name.
func NewRunnerService(name string, runner ContextRunner) *RunnerService {
	return &RunnerService{runner: runner, name: name}
}

// Serve implements suture.Service.
func (r *RunnerService) Serve(ctx context.Context) error {
	return r.runner.Serve(ctx)
}

// String identifies the service in supervisor logs.
func (r *RunnerService) String() string {
	return r.name
}

// runnerFunc adapts a bare function to ContextRunner.
type runnerFunc func(ctx context.Context) error

func (f runnerFunc) Serve(ctx context.Context) error { return f(ctx) }

// NewFuncService wraps a run function as a named supervised service.
func NewFuncService(name string, fn func(ctx context.Context) error) *RunnerService {
	return &RunnerService{runner: runnerFunc(fn), name: name}
}
