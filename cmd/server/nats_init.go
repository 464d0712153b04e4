// Fieldtrace - Field Service Ticketing and Live Workforce Tracking
// Copyright 2026 Fieldtrace Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/fieldtrace/fieldtrace

//go:build nats

package main

import (
	"github.com/fieldtrace/fieldtrace/internal/config"
	"github.com/fieldtrace/fieldtrace/internal/events"
	"github.com/fieldtrace/fieldtrace/internal/logging"
	"github.com/fieldtrace/fieldtrace/internal/supervisor"
	"github.com/fieldtrace/fieldtrace/internal/supervisor/services"
	ws "github.com/fieldtrace/fieldtrace/internal/websocket"
)

// NATSComponents bundles the optional event infrastructure: an
// embedded JetStream server (single-node deployments), the Watermill
// publisher the ingest funnel writes to, and the subscriber that
// bridges accepted locations from other instances into the local
// websocket hub.
type NATSComponents struct {
	embedded   *events.EmbeddedServer
	publisher  *events.NATSPublisher
	subscriber *events.Subscriber
}

// InitNATS wires the event pipeline when NATS_ENABLED=true. With
// NATS_EMBEDDED_SERVER=true an in-process JetStream server is started
// and the client URL is rewritten to point at it.
func InitNATS(cfg *config.Config, wsHub *ws.Hub) (*NATSComponents, error) {
	if !cfg.NATS.Enabled {
		logging.Info().Msg("NATS disabled (NATS_ENABLED=false)")
		return nil, nil
	}

	comps := &NATSComponents{}

	if cfg.NATS.EmbeddedServer {
		embedded, err := events.NewEmbeddedServer(&cfg.NATS)
		if err != nil {
			return nil, err
		}
		comps.embedded = embedded
		cfg.NATS.URL = embedded.ClientURL()
		logging.Info().Str("url", cfg.NATS.URL).Msg("Embedded NATS server started")
	}

	publisher, err := events.NewNATSPublisher(&cfg.NATS, nil)
	if err != nil {
		comps.Shutdown()
		return nil, err
	}
	comps.publisher = publisher

	subscriber, err := events.NewSubscriber(&cfg.NATS, wsHub, nil)
	if err != nil {
		comps.Shutdown()
		return nil, err
	}
	comps.subscriber = subscriber

	logging.Info().Str("url", cfg.NATS.URL).Str("stream", cfg.NATS.StreamName).Msg("NATS event pipeline initialized")
	return comps, nil
}

// EventPublisher returns the publisher for the ingest funnel, or nil
// when NATS is disabled.
func (c *NATSComponents) EventPublisher() events.Publisher {
	if c == nil || c.publisher == nil {
		return nil
	}
	return c.publisher
}

// Shutdown closes the pipeline in reverse dependency order.
func (c *NATSComponents) Shutdown() {
	if c == nil {
		return
	}
	if c.subscriber != nil {
		if err := c.subscriber.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing NATS subscriber")
		}
	}
	if c.publisher != nil {
		if err := c.publisher.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing NATS publisher")
		}
	}
	if c.embedded != nil {
		c.embedded.Shutdown()
	}
}

// ShutdownNATS is the deferred cleanup hook used by main.
func ShutdownNATS(c *NATSComponents) {
	c.Shutdown()
}

// AddNATSToSupervisor places the subscriber's consume loop under the
// messaging layer so a broker hiccup restarts only the consumer.
func AddNATSToSupervisor(tree *supervisor.Tree, c *NATSComponents) {
	if c == nil || c.subscriber == nil {
		return
	}
	tree.AddMessagingService(services.NewRunnerService("nats-subscriber", c.subscriber))
	logging.Info().Msg("NATS subscriber added to supervisor tree")
}
