// Fieldtrace - Field Service Ticketing and Live Workforce Tracking
// Copyright 2026 Fieldtrace Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/fieldtrace/fieldtrace

// Package events is the pub/sub edge of the tracking pipeline. Accepted
// location updates and duty transitions are published as events so
// other instances can feed their own websocket subscribers without
// sharing the request path. NATS transport is compiled in with the
// nats build tag; without it the package degrades to a no-op publisher
// and everything still works through the direct in-process path.
package events

import (
	"context"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/fieldtrace/fieldtrace/internal/models"
)

// instanceID names this process on the bus. Consumers use it to skip
// events they published themselves; the accepting instance already
// broadcast the record on the request path.
var instanceID = uuid.New().String()

// InstanceID returns this process's bus identity.
func InstanceID() string {
	return instanceID
}

// Topics carried over the event bus.
const (
	TopicLocationAccepted = "location.accepted"
	TopicDutyStarted      = "duty.started"
	TopicDutyStopped      = "duty.stopped"
)

// LocationAccepted is the payload published for every update that
// clears the ingest funnel.
type LocationAccepted struct {
	Record models.PresenceRecord `json:"record"`
	Source string                `json:"source"`
	Origin string                `json:"origin"`
}

// FromSelf reports whether this process published the event.
func (e LocationAccepted) FromSelf() bool {
	return e.Origin == instanceID
}

// DutyChanged is the payload for duty.started and duty.stopped.
type DutyChanged struct {
	Session models.DutySession `json:"session"`
	At      time.Time          `json:"at"`
}

// Publisher sends domain events to the bus. Implementations must be
// safe for concurrent use and must not block the caller on a slow bus.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload interface{}) error
	Close() error
}

// NopPublisher discards events. Used when NATS is disabled or not
// compiled in.
type NopPublisher struct{}

func (NopPublisher) Publish(ctx context.Context, topic string, payload interface{}) error {
	return nil
}

func (NopPublisher) Close() error { return nil }

func marshalPayload(payload interface{}) ([]byte, error) {
	return json.Marshal(payload)
}

func unmarshalPayload(data []byte, v interface{}) error {
	return json.Unmarshal(data, v)
}
