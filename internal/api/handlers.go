// Fieldtrace - Field Service Ticketing and Live Workforce Tracking
// Copyright 2026 Fieldtrace Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/fieldtrace/fieldtrace

// Package api is the HTTP edge of the server: Chi routing, request
// validation, response envelopes, and the websocket upgrade point.
//
// Handler methods are split across files by concern:
//   - handlers_auth.go: login
//   - handlers_location.go: ingest funnel, roster, history, websocket
//   - handlers_duty.go: duty session handshake
//   - handlers_tickets.go, handlers_attendance.go, handlers_leave.go,
//     handlers_payroll.go, handlers_employees.go: domain CRUD
//   - handlers_health.go: liveness and readiness
package api

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/fieldtrace/fieldtrace/internal/auth"
	"github.com/fieldtrace/fieldtrace/internal/cache"
	"github.com/fieldtrace/fieldtrace/internal/config"
	"github.com/fieldtrace/fieldtrace/internal/database"
	"github.com/fieldtrace/fieldtrace/internal/duty"
	"github.com/fieldtrace/fieldtrace/internal/events"
	"github.com/fieldtrace/fieldtrace/internal/logging"
	"github.com/fieldtrace/fieldtrace/internal/presence"
	ws "github.com/fieldtrace/fieldtrace/internal/websocket"
)

// Handler carries the dependencies shared by all HTTP handlers.
type Handler struct {
	db          *database.DB
	tracker     *presence.Tracker
	duty        *duty.Service
	wsHub       *ws.Hub
	config      *config.Config
	jwtManager  *auth.JWTManager
	hasher      *auth.PasswordHasher
	publisher   events.Publisher
	rosterCache *cache.Cache
	limiter     *ingestLimiter
	startTime   time.Time
}

// NewHandler wires the API layer. publisher may be nil; it is replaced
// with a no-op so handlers never branch on it.
func NewHandler(db *database.DB, tracker *presence.Tracker, dutySvc *duty.Service, wsHub *ws.Hub,
	cfg *config.Config, jwtManager *auth.JWTManager, hasher *auth.PasswordHasher, publisher events.Publisher) *Handler {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	return &Handler{
		db:          db,
		tracker:     tracker,
		duty:        dutySvc,
		wsHub:       wsHub,
		config:      cfg,
		jwtManager:  jwtManager,
		hasher:      hasher,
		publisher:   publisher,
		rosterCache: cache.New("roster", cfg.API.RosterCacheTTL),
		limiter:     newIngestLimiter(cfg.Tracking.MinUpdateInterval, cfg.Tracking.UpdateBurst),
		startTime:   time.Now(),
	}
}

func (h *Handler) getUpgrader() websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:   1024,
		WriteBufferSize:  1024,
		CheckOrigin:      h.checkWebSocketOrigin,
		HandshakeTimeout: 10 * time.Second,
	}
}

// checkWebSocketOrigin validates the Origin header against the
// configured CORS origins. Requests without an Origin header are
// allowed: the tracking clients are mobile apps, not browsers, and
// they never send one.
func (h *Handler) checkWebSocketOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	if h.config == nil {
		return true
	}
	for _, allowed := range h.config.Security.CORSOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	logging.Warn().Str("origin", sanitizeLogValue(origin)).Msg("websocket connection rejected from unauthorized origin")
	return false
}
