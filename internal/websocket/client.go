// Fieldtrace - Field Service Ticketing and Live Workforce Tracking
// Copyright 2026 Fieldtrace Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/fieldtrace/fieldtrace

package websocket

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"

	"github.com/fieldtrace/fieldtrace/internal/logging"
	"github.com/fieldtrace/fieldtrace/internal/metrics"
	"github.com/fieldtrace/fieldtrace/internal/models"
	"github.com/fieldtrace/fieldtrace/internal/presence"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024 // 64 KB, location frames are tiny
)

// clientIDCounter assigns unique, monotonically increasing IDs so the
// hub can iterate clients in a stable order.
var clientIDCounter atomic.Uint64

// inboundMessage defers Data decoding until the type is known.
type inboundMessage struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// Client bridges one websocket connection and the hub. The identity
// fields come from the verified JWT, never from the socket payload.
type Client struct {
	id         uint64
	hub        *Hub
	conn       *websocket.Conn
	send       chan Message
	employeeID string
	role       models.Role
}

// NewClient wraps an upgraded connection with the caller's verified
// identity.
func NewClient(hub *Hub, conn *websocket.Conn, employeeID string, role models.Role) *Client {
	return &Client{
		id:         clientIDCounter.Add(1),
		hub:        hub,
		conn:       conn,
		send:       make(chan Message, 256),
		employeeID: employeeID,
		role:       role,
	}
}

// ID returns the client's unique identifier.
func (c *Client) ID() uint64 {
	return c.id
}

// Start registers the client with the hub and begins both pumps.
func (c *Client) Start() {
	c.hub.Register <- c
	go c.writePump()
	go c.readPump()
}

// readPump reads frames off the connection and dispatches them until
// the peer goes away.
func (c *Client) readPump() {
	defer func() {
		c.hub.Unregister <- c
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		logging.Error().Err(err).Msg("failed to set read deadline")
		return
	}
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var msg inboundMessage
		if err := c.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				metrics.WSErrors.WithLabelValues("unexpected_close").Inc()
				logging.Error().Err(err).Str("employee_id", c.employeeID).Msg("unexpected websocket close")
			}
			return
		}
		metrics.WSMessagesReceived.Inc()
		c.handleMessage(msg)
	}
}

func (c *Client) handleMessage(msg inboundMessage) {
	switch msg.Type {
	case MessageTypePing:
		c.trySend(Message{Type: MessageTypePong})

	case MessageTypeJoinAsAdmin:
		if c.role != models.RoleAdmin {
			metrics.WSErrors.WithLabelValues("join_denied").Inc()
			logging.Warn().
				Str("employee_id", c.employeeID).
				Str("role", string(c.role)).
				Msg("non-admin attempted to join live map room")
			c.trySend(errorMessage("FORBIDDEN", "admin role required"))
			return
		}
		c.hub.subscribe <- c

	case MessageTypeLocationUpdate:
		c.handleLocationUpdate(msg.Data)

	default:
		logging.Debug().Str("type", msg.Type).Msg("ignoring unknown websocket message type")
	}
}

// handleLocationUpdate decodes a position frame and pushes it through
// the shared ingest funnel. The employee id is forced to the token
// identity so a client cannot report positions for someone else.
func (c *Client) handleLocationUpdate(data json.RawMessage) {
	if c.hub.ingest == nil {
		logging.Warn().Msg("no ingest sink configured, dropping locationUpdate")
		return
	}

	var update models.LocationUpdate
	if err := json.Unmarshal(data, &update); err != nil {
		metrics.WSErrors.WithLabelValues("bad_payload").Inc()
		c.trySend(errorMessage("BAD_REQUEST", "malformed locationUpdate payload"))
		return
	}
	update.EmployeeID = c.employeeID

	ctx, cancel := context.WithTimeout(context.Background(), writeWait)
	defer cancel()

	if err := c.hub.ingest(ctx, update); err != nil {
		if errors.Is(err, presence.ErrStaleUpdate) {
			c.trySend(errorMessage("STALE_UPDATE", "a newer position is already recorded"))
			return
		}
		c.trySend(errorMessage("REJECTED", err.Error()))
	}
}

// trySend queues a frame without blocking the read pump.
func (c *Client) trySend(msg Message) {
	select {
	case c.send <- msg:
	default:
	}
}

func errorMessage(code, detail string) Message {
	return Message{
		Type: MessageTypeError,
		Data: map[string]string{"code": code, "message": detail},
	}
}

// writePump drains the send channel to the connection and keeps the
// peer alive with pings.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				logging.Error().Err(err).Msg("failed to set write deadline")
				return
			}
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(message); err != nil {
				metrics.WSErrors.WithLabelValues("write_failed").Inc()
				logging.Error().Err(err).Msg("failed to write websocket message")
				return
			}

		case <-ticker.C:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
