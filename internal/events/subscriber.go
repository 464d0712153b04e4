// Fieldtrace - Field Service Ticketing and Live Workforce Tracking
// Copyright 2026 Fieldtrace Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/fieldtrace/fieldtrace

//go:build nats

package events

import (
	"context"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	wmNats "github.com/ThreeDotsLabs/watermill-nats/v2/pkg/nats"
	"github.com/ThreeDotsLabs/watermill/message"
	natsgo "github.com/nats-io/nats.go"

	"github.com/fieldtrace/fieldtrace/internal/config"
	"github.com/fieldtrace/fieldtrace/internal/logging"
	"github.com/fieldtrace/fieldtrace/internal/metrics"
	"github.com/fieldtrace/fieldtrace/internal/models"
)

// Broadcaster receives accepted positions consumed off the bus. The
// websocket hub satisfies this, letting instances that did not handle
// the original request still feed their admin subscribers.
type Broadcaster interface {
	BroadcastEmployeeLocation(rec models.PresenceRecord)
}

// Subscriber consumes location.accepted events and forwards them to a
// Broadcaster. Runs under the supervision tree via Serve.
type Subscriber struct {
	subscriber  message.Subscriber
	broadcaster Broadcaster
	queueGroup  string
}

// NewSubscriber connects a Watermill subscriber to the broker. All
// instances share cfg.QueueGroup so each event is broadcast once per
// instance, not once per subscriber.
func NewSubscriber(cfg *config.NATSConfig, broadcaster Broadcaster, logger watermill.LoggerAdapter) (*Subscriber, error) {
	if logger == nil {
		logger = watermill.NewStdLogger(false, false)
	}

	sub, err := wmNats.NewSubscriber(wmNats.SubscriberConfig{
		URL: cfg.URL,
		NatsOptions: []natsgo.Option{
			natsgo.RetryOnFailedConnect(true),
			natsgo.MaxReconnects(-1),
			natsgo.ReconnectWait(2 * time.Second),
		},
		Unmarshaler:      &wmNats.NATSMarshaler{},
		QueueGroupPrefix: cfg.QueueGroup,
		JetStream: wmNats.JetStreamConfig{
			Disabled:      false,
			AutoProvision: true,
			DurablePrefix: cfg.DurableName,
		},
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("create watermill subscriber: %w", err)
	}

	return &Subscriber{
		subscriber:  sub,
		broadcaster: broadcaster,
		queueGroup:  cfg.QueueGroup,
	}, nil
}

// Serve consumes events until the context is canceled. Malformed
// payloads are acked and dropped; redelivery cannot fix them.
func (s *Subscriber) Serve(ctx context.Context) error {
	messages, err := s.subscriber.Subscribe(ctx, TopicLocationAccepted)
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", TopicLocationAccepted, err)
	}

	logging.Info().
		Str("topic", TopicLocationAccepted).
		Str("queue_group", s.queueGroup).
		Msg("event subscriber started")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-messages:
			if !ok {
				return fmt.Errorf("subscription channel closed")
			}
			s.handle(msg)
		}
	}
}

func (s *Subscriber) handle(msg *message.Message) {
	defer msg.Ack()

	var event LocationAccepted
	if err := unmarshalPayload(msg.Payload, &event); err != nil {
		logging.Warn().Err(err).Str("message_uuid", msg.UUID).Msg("dropping malformed location event")
		return
	}

	metrics.EventsConsumed.Inc()

	// The accepting instance already broadcast this record on the
	// request path.
	if event.FromSelf() {
		return
	}

	if s.broadcaster != nil {
		s.broadcaster.BroadcastEmployeeLocation(event.Record)
	}
}

// Close shuts down the underlying Watermill subscriber.
func (s *Subscriber) Close() error {
	return s.subscriber.Close()
}
