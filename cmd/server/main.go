// Fieldtrace - Field Service Ticketing and Live Workforce Tracking
// Copyright 2026 Fieldtrace Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/fieldtrace/fieldtrace

// Package main is the entry point for the Fieldtrace server.
//
// Fieldtrace is a field service management backend: service tickets,
// attendance, leave, payroll, and live workforce tracking. Field
// employees stream their position over REST or websocket while on
// duty; dispatchers watch the fleet on a live map fed by the same
// ingest funnel.
//
// # Startup order
//
//  1. Configuration: Koanf v2 layered sources (defaults, config file,
//     environment variables)
//  2. Database: DuckDB schema for accounts, tickets, HR records, and
//     location storage
//  3. Presence tracker: in-memory latest-position map, warmed from the
//     database so online state survives restarts
//  4. Duty session store: memory or BadgerDB per DUTY_STORE
//  5. Auth: JWT manager, bcrypt hasher, Casbin enforcer
//  6. NATS (optional, -tags nats): JetStream event fan-out for
//     multi-instance deployments
//  7. Supervisor tree: data, messaging, and API layers under suture
//
// # Build tags
//
//	go build ./cmd/server              # single instance, no broker
//	go build -tags nats ./cmd/server   # NATS JetStream event fan-out
//
// # Signal handling
//
// SIGINT and SIGTERM trigger graceful shutdown: the HTTP listener
// drains in-flight requests, the presence tracker flushes dirty
// records, and the duty store closes cleanly.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fieldtrace/fieldtrace/internal/api"
	"github.com/fieldtrace/fieldtrace/internal/auth"
	"github.com/fieldtrace/fieldtrace/internal/authz"
	"github.com/fieldtrace/fieldtrace/internal/config"
	"github.com/fieldtrace/fieldtrace/internal/database"
	"github.com/fieldtrace/fieldtrace/internal/duty"
	"github.com/fieldtrace/fieldtrace/internal/logging"
	"github.com/fieldtrace/fieldtrace/internal/models"
	"github.com/fieldtrace/fieldtrace/internal/presence"
	"github.com/fieldtrace/fieldtrace/internal/supervisor"
	"github.com/fieldtrace/fieldtrace/internal/supervisor/services"
	ws "github.com/fieldtrace/fieldtrace/internal/websocket"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	logging.Info().
		Str("db_path", cfg.Database.Path).
		Str("duty_store", cfg.Duty.Store).
		Bool("nats_enabled", cfg.NATS.Enabled).
		Msg("Starting Fieldtrace")

	db, err := database.New(&cfg.Database)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize database")
	}
	defer func() {
		if err := db.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing database")
		}
	}()
	logging.Info().Msg("Database initialized")

	hasher := auth.NewPasswordHasher(cfg.Security.BcryptCost)

	if cfg.Security.AdminUsername != "" && cfg.Security.AdminPassword != "" {
		hash, err := hasher.Hash(cfg.Security.AdminPassword)
		if err != nil {
			logging.Fatal().Err(err).Msg("Failed to hash admin password")
		}
		if err := db.EnsureAdminAccount(context.Background(), cfg.Security.AdminUsername, hash); err != nil {
			logging.Fatal().Err(err).Msg("Failed to ensure admin account")
		}
	} else {
		logging.Warn().Msg("ADMIN_USERNAME/ADMIN_PASSWORD not set; no admin account seeded")
	}

	// Presence tracker, warmed from the latest-position table so online
	// classification is correct immediately after a restart.
	tracker := presence.NewTracker(cfg.Tracking.OnlineThreshold, cfg.Tracking.FlushInterval, presence.WithFlusher(db))
	if records, err := db.LoadLatest(context.Background()); err != nil {
		logging.Warn().Err(err).Msg("Failed to load stored positions; starting with empty presence map")
	} else {
		tracker.LoadInitial(records)
		logging.Info().Int("records", len(records)).Msg("Presence map warmed from storage")
	}

	var dutyStore duty.Store
	switch cfg.Duty.Store {
	case "badger":
		store, err := duty.NewBadgerStore(cfg.Duty.StorePath)
		if err != nil {
			logging.Fatal().Err(err).Str("path", cfg.Duty.StorePath).Msg("Failed to open duty session store")
		}
		defer func() {
			if err := store.Close(); err != nil {
				logging.Error().Err(err).Msg("Error closing duty store")
			}
		}()
		dutyStore = store
		logging.Info().Str("path", cfg.Duty.StorePath).Msg("Duty sessions persisted with BadgerDB")
	default:
		dutyStore = duty.NewMemoryStore()
		logging.Warn().Msg("Duty sessions stored in memory; active sessions are lost on restart (set DUTY_STORE=badger)")
	}
	dutySvc := duty.NewService(dutyStore, cfg.Duty.MaxSessionAge)

	jwtManager, err := auth.NewJWTManager(&cfg.Security)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize JWT manager")
	}

	enforcer, err := authz.NewEnforcer(nil)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize authorization enforcer")
	}

	if cfg.Security.RateLimitDisabled {
		logging.Warn().Msg("Rate limiting is DISABLED (DISABLE_RATE_LIMIT=true)")
	}

	// The hub and the handler reference each other: the hub pushes
	// socket position reports into the handler's ingest funnel, and the
	// handler broadcasts accepted records back through the hub. The
	// function indirection breaks the construction cycle.
	var handler *api.Handler
	wsHub := ws.NewHub(func(ctx context.Context, update models.LocationUpdate) error {
		return handler.IngestFromSocket(ctx, update)
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	natsComponents, err := InitNATS(cfg, wsHub)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize NATS")
	}
	defer ShutdownNATS(natsComponents)

	handler = api.NewHandler(db, tracker, dutySvc, wsHub, cfg, jwtManager, hasher, natsComponents.EventPublisher())

	router := api.NewRouter(handler, auth.NewMiddleware(jwtManager), authz.NewMiddleware(enforcer), api.NewChiMiddleware(&cfg.Security))

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router.SetupChi(),
		ReadTimeout:  cfg.Server.Timeout,
		WriteTimeout: cfg.Server.Timeout,
		IdleTimeout:  60 * time.Second,
	}

	tree, err := supervisor.NewTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to create supervisor tree")
	}

	tree.AddDataService(services.NewRunnerService("presence-tracker", tracker))
	tree.AddDataService(services.NewRunnerService("duty-reaper", dutySvc))
	tree.AddDataService(services.NewPrunerService(db, cfg.Tracking.HistoryRetention))

	tree.AddMessagingService(services.NewHubService(wsHub))
	AddNATSToSupervisor(tree, natsComponents)

	tree.AddAPIService(services.NewHTTPServerService(server, 10*time.Second))
	logging.Info().Str("addr", server.Addr).Msg("HTTP server service added")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logging.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
		cancel()
	}()

	logging.Info().Msg("Starting supervisor tree")
	errCh := tree.ServeBackground(ctx)

	select {
	case <-ctx.Done():
		logging.Info().Msg("Context canceled, waiting for supervisor to finish")
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor tree error")
		}
	}

	for err := range errCh {
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor shutdown error")
		}
	}

	// Final flush so positions received since the last tick survive.
	flushCtx, flushCancel := context.WithTimeout(context.Background(), 5*time.Second)
	if err := tracker.Flush(flushCtx); err != nil {
		logging.Error().Err(err).Msg("Final presence flush failed")
	}
	flushCancel()

	unstopped, _ := tree.UnstoppedServiceReport()
	for _, svc := range unstopped {
		logging.Warn().Str("service", svc.Name).Msg("Service failed to stop within timeout")
	}

	logging.Info().Msg("Fieldtrace stopped gracefully")
}
