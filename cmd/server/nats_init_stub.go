// Fieldtrace - Field Service Ticketing and Live Workforce Tracking
// Copyright 2026 Fieldtrace Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/fieldtrace/fieldtrace

//go:build !nats

package main

import (
	"github.com/fieldtrace/fieldtrace/internal/config"
	"github.com/fieldtrace/fieldtrace/internal/events"
	"github.com/fieldtrace/fieldtrace/internal/logging"
	"github.com/fieldtrace/fieldtrace/internal/supervisor"
	ws "github.com/fieldtrace/fieldtrace/internal/websocket"
)

// NATSComponents is a stub for builds without -tags nats.
type NATSComponents struct{}

// InitNATS is a no-op in non-NATS builds.
func InitNATS(cfg *config.Config, _ *ws.Hub) (*NATSComponents, error) {
	if cfg.NATS.Enabled {
		logging.Warn().Msg("NATS_ENABLED=true but NATS support not compiled (build with -tags nats)")
	}
	return nil, nil
}

// EventPublisher returns nil; the handler falls back to its no-op
// publisher.
func (c *NATSComponents) EventPublisher() events.Publisher {
	return nil
}

// Shutdown is a no-op in non-NATS builds.
func (c *NATSComponents) Shutdown() {}

// ShutdownNATS is a no-op in non-NATS builds.
func ShutdownNATS(_ *NATSComponents) {}

// AddNATSToSupervisor is a no-op in non-NATS builds.
func AddNATSToSupervisor(_ *supervisor.Tree, _ *NATSComponents) {}
