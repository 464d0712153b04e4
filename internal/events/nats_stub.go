// Fieldtrace - Field Service Ticketing and Live Workforce Tracking
// Copyright 2026 Fieldtrace Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/fieldtrace/fieldtrace

//go:build !nats

package events

import (
	"context"
	"fmt"

	"github.com/fieldtrace/fieldtrace/internal/config"
	"github.com/fieldtrace/fieldtrace/internal/models"
)

// ErrNATSDisabled is returned by NATS constructors in builds without
// the nats tag.
var ErrNATSDisabled = fmt.Errorf("NATS support not enabled (build with -tags nats)")

// Broadcaster receives accepted positions consumed off the bus.
type Broadcaster interface {
	BroadcastEmployeeLocation(rec models.PresenceRecord)
}

// EmbeddedServer is a stub for builds without the nats tag.
type EmbeddedServer struct{}

func NewEmbeddedServer(_ *config.NATSConfig) (*EmbeddedServer, error) {
	return nil, ErrNATSDisabled
}

func (s *EmbeddedServer) ClientURL() string { return "" }
func (s *EmbeddedServer) Shutdown()         {}

// NATSPublisher is a stub for builds without the nats tag.
type NATSPublisher struct{}

func NewNATSPublisher(_ *config.NATSConfig, _ interface{}) (*NATSPublisher, error) {
	return nil, ErrNATSDisabled
}

func (p *NATSPublisher) Publish(ctx context.Context, topic string, payload interface{}) error {
	return ErrNATSDisabled
}

func (p *NATSPublisher) Close() error { return nil }

// Subscriber is a stub for builds without the nats tag.
type Subscriber struct{}

func NewSubscriber(_ *config.NATSConfig, _ Broadcaster, _ interface{}) (*Subscriber, error) {
	return nil, ErrNATSDisabled
}

func (s *Subscriber) Serve(ctx context.Context) error { return ErrNATSDisabled }
func (s *Subscriber) Close() error                    { return nil }
