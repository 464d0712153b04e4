// Fieldtrace - Field Service Ticketing and Live Workforce Tracking
// Copyright 2026 Fieldtrace Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/fieldtrace/fieldtrace

package websocket

import (
	"context"
	"sort"
	"sync"

	"github.com/fieldtrace/fieldtrace/internal/logging"
	"github.com/fieldtrace/fieldtrace/internal/metrics"
	"github.com/fieldtrace/fieldtrace/internal/models"
)

// Message types on the realtime channel. The names are part of the
// frontend wire contract and must not change.
const (
	MessageTypeJoinAsAdmin      = "joinAsAdmin"
	MessageTypeLocationUpdate   = "locationUpdate"
	MessageTypeEmployeeLocation = "employeeLocation"
	MessageTypePing             = "ping"
	MessageTypePong             = "pong"
	MessageTypeError            = "error"
)

// Message is one frame on the realtime channel.
type Message struct {
	Type string      `json:"type"`
	Data interface{} `json:"data,omitempty"`
}

// IngestFunc receives a location update read off a client connection.
// Every socket-borne update goes through the same funnel as the REST
// ingest path, so staleness and rate checks apply uniformly.
type IngestFunc func(ctx context.Context, update models.LocationUpdate) error

// Hub owns the set of connected clients and fans employee positions
// out to admin subscribers. Only clients that joined the admin room
// receive employeeLocation frames.
type Hub struct {
	clients    map[*Client]bool
	admins     map[*Client]bool
	broadcast  chan Message
	Register   chan *Client
	Unregister chan *Client
	subscribe  chan *Client
	ingest     IngestFunc
	mu         sync.RWMutex
}

// NewHub creates a hub routing inbound location updates through ingest.
// A nil ingest drops socket-borne updates with a warning.
func NewHub(ingest IngestFunc) *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		admins:     make(map[*Client]bool),
		broadcast:  make(chan Message, 256),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		subscribe:  make(chan *Client),
		ingest:     ingest,
	}
}

// RunWithContext runs the hub event loop until the context is
// canceled, then closes every client and returns ctx.Err(). Designed
// for suture supervision.
//
// Selection is priority ordered so behavior stays predictable when
// several channels are ready: shutdown first, then client lifecycle,
// then broadcasts.
func (h *Hub) RunWithContext(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			h.shutdown(ctx)
			return ctx.Err()
		default:
		}

		select {
		case client := <-h.Register:
			h.addClient(client)
			continue
		case client := <-h.Unregister:
			h.removeClient(client)
			continue
		case client := <-h.subscribe:
			h.addAdmin(client)
			continue
		default:
		}

		select {
		case <-ctx.Done():
			h.shutdown(ctx)
			return ctx.Err()
		case client := <-h.Register:
			h.addClient(client)
		case client := <-h.Unregister:
			h.removeClient(client)
		case client := <-h.subscribe:
			h.addAdmin(client)
		case message := <-h.broadcast:
			h.broadcastToAdmins(message)
		}
	}
}

func (h *Hub) addClient(client *Client) {
	h.mu.Lock()
	h.clients[client] = true
	total := len(h.clients)
	h.mu.Unlock()

	metrics.WSConnections.Set(float64(total))
	logging.Info().
		Str("employee_id", client.employeeID).
		Str("role", string(client.role)).
		Int("total_clients", total).
		Msg("websocket client connected")
}

func (h *Hub) removeClient(client *Client) {
	h.mu.Lock()
	if _, ok := h.clients[client]; ok {
		delete(h.clients, client)
		close(client.send)
	}
	delete(h.admins, client)
	total := len(h.clients)
	subs := len(h.admins)
	h.mu.Unlock()

	metrics.WSConnections.Set(float64(total))
	metrics.WSAdminSubscribers.Set(float64(subs))
	logging.Info().
		Str("employee_id", client.employeeID).
		Int("total_clients", total).
		Msg("websocket client disconnected")
}

// addAdmin enrolls a client into the live map room. The role check
// happened on the read pump before the client reached this channel.
func (h *Hub) addAdmin(client *Client) {
	h.mu.Lock()
	if _, ok := h.clients[client]; ok {
		h.admins[client] = true
	}
	subs := len(h.admins)
	h.mu.Unlock()

	metrics.WSAdminSubscribers.Set(float64(subs))
	logging.Info().
		Str("employee_id", client.employeeID).
		Int("admin_subscribers", subs).
		Msg("client joined live map room")
}

// broadcastToAdmins delivers a message to admin subscribers in client
// ID order. Clients with a full send buffer are dropped; a stalled
// admin tab must not back-pressure the ingest path.
func (h *Hub) broadcastToAdmins(message Message) {
	h.mu.Lock()
	defer h.mu.Unlock()

	subs := make([]*Client, 0, len(h.admins))
	for client := range h.admins {
		subs = append(subs, client)
	}
	sort.Slice(subs, func(i, j int) bool { return subs[i].id < subs[j].id })

	var toRemove []*Client
	for _, client := range subs {
		select {
		case client.send <- message:
			metrics.WSMessagesSent.Inc()
		default:
			toRemove = append(toRemove, client)
		}
	}

	for _, client := range toRemove {
		close(client.send)
		delete(h.clients, client)
		delete(h.admins, client)
		metrics.WSErrors.WithLabelValues("slow_consumer").Inc()
		logging.Warn().
			Str("employee_id", client.employeeID).
			Msg("dropped slow websocket subscriber")
	}
	metrics.WSConnections.Set(float64(len(h.clients)))
	metrics.WSAdminSubscribers.Set(float64(len(h.admins)))
}

func (h *Hub) shutdown(ctx context.Context) {
	h.mu.Lock()
	clients := make([]*Client, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
	}
	sort.Slice(clients, func(i, j int) bool { return clients[i].id < clients[j].id })
	for _, client := range clients {
		close(client.send)
		delete(h.clients, client)
		delete(h.admins, client)
	}
	h.mu.Unlock()

	metrics.WSConnections.Set(0)
	metrics.WSAdminSubscribers.Set(0)

	reason := "context_canceled"
	if ctx.Err() == context.DeadlineExceeded {
		reason = "context_deadline"
	}
	logging.Info().
		Str("component", "websocket-hub").
		Str("reason", reason).
		Int("clients_closed", len(clients)).
		Msg("websocket hub stopped")
}

// BroadcastEmployeeLocation pushes an accepted position to the admin
// room. Non-blocking; if the hub loop is saturated the frame is
// dropped and the next flush catches the map up.
func (h *Hub) BroadcastEmployeeLocation(rec models.PresenceRecord) {
	message := Message{
		Type: MessageTypeEmployeeLocation,
		Data: rec,
	}

	select {
	case h.broadcast <- message:
	default:
		metrics.WSErrors.WithLabelValues("broadcast_full").Inc()
		logging.Warn().Msg("broadcast channel full, dropping employeeLocation")
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// AdminCount returns the number of live map subscribers.
func (h *Hub) AdminCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.admins)
}
