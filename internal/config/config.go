// Fieldtrace - Field Service Ticketing and Live Workforce Tracking
// Copyright 2026 Fieldtrace Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/fieldtrace/fieldtrace

// Package config holds all application configuration, loaded via Koanf v2
// with layered sources (highest priority wins):
//
//  1. Built-in defaults
//  2. Optional YAML config file (config.yaml)
//  3. Environment variables
//
// Config is immutable after Load() and safe for concurrent reads.
package config

import (
	"time"
)

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig   `koanf:"server"`
	Database DatabaseConfig `koanf:"database"`
	Security SecurityConfig `koanf:"security"`
	Tracking TrackingConfig `koanf:"tracking"`
	Duty     DutyConfig     `koanf:"duty"`
	NATS     NATSConfig     `koanf:"nats"`
	API      APIConfig      `koanf:"api"`
	Logging  LoggingConfig  `koanf:"logging"`
}

// ServerConfig holds HTTP server settings.
//
// Environment variables:
//   - HTTP_HOST, HTTP_PORT, HTTP_TIMEOUT
type ServerConfig struct {
	Host    string        `koanf:"host"`
	Port    int           `koanf:"port"`
	Timeout time.Duration `koanf:"timeout"`
}

// DatabaseConfig holds DuckDB settings. DuckDB is the system of record for
// employees, tickets, attendance, leave, salary slips, and location history.
type DatabaseConfig struct {
	// Path is the database file path. Use ":memory:" for ephemeral storage.
	Path string `koanf:"path"`

	// MaxMemory caps DuckDB memory usage (e.g. "1GB").
	MaxMemory string `koanf:"max_memory"`

	// Threads is the DuckDB worker thread count. 0 = runtime.NumCPU().
	Threads int `koanf:"threads"`
}

// SecurityConfig holds authentication and request hardening settings.
//
// JWTSecret must be at least 32 characters. AdminUsername/AdminPassword seed
// the initial admin account when the employee table is empty.
type SecurityConfig struct {
	JWTSecret      string        `koanf:"jwt_secret"`
	SessionTimeout time.Duration `koanf:"session_timeout"`
	AdminUsername  string        `koanf:"admin_username"`
	AdminPassword  string        `koanf:"admin_password"`
	BcryptCost     int           `koanf:"bcrypt_cost"`

	RateLimitReqs     int           `koanf:"rate_limit_requests"`
	RateLimitWindow   time.Duration `koanf:"rate_limit_window"`
	RateLimitDisabled bool          `koanf:"rate_limit_disabled"`

	CORSOrigins []string `koanf:"cors_origins"`
}

// TrackingConfig holds presence and location ingest settings.
type TrackingConfig struct {
	// OnlineThreshold classifies a presence record online when
	// now-updatedAt is below it. Pure read-time derivation, never stored.
	OnlineThreshold time.Duration `koanf:"online_threshold"`

	// FlushInterval is how often the presence tracker flushes dirty
	// records to the latest-position table.
	FlushInterval time.Duration `koanf:"flush_interval"`

	// MinUpdateInterval throttles per-employee ingest; updates arriving
	// faster than this are dropped before touching history storage.
	MinUpdateInterval time.Duration `koanf:"min_update_interval"`

	// UpdateBurst is the token-bucket burst for the per-employee limiter.
	UpdateBurst int `koanf:"update_burst"`

	// HistoryRetention bounds how long raw location points are kept.
	HistoryRetention time.Duration `koanf:"history_retention"`
}

// DutyConfig holds duty-session settings. Duty state is server-authoritative;
// clients resume tracking only after the /duty/status handshake confirms it.
type DutyConfig struct {
	// Store selects the session store: "memory" or "badger".
	Store string `koanf:"store"`

	// StorePath is the BadgerDB directory when Store is "badger".
	StorePath string `koanf:"store_path"`

	// MaxSessionAge expires duty sessions that were never stopped.
	MaxSessionAge time.Duration `koanf:"max_session_age"`
}

// NATSConfig holds event-pipeline settings. Effective only in builds with
// the nats tag; otherwise location events fan out via the WebSocket hub alone.
type NATSConfig struct {
	Enabled        bool   `koanf:"enabled"`
	URL            string `koanf:"url"`
	EmbeddedServer bool   `koanf:"embedded_server"`
	StoreDir       string `koanf:"store_dir"`
	MaxMemory      int64  `koanf:"max_memory"`
	MaxStore       int64  `koanf:"max_store"`
	StreamName     string `koanf:"stream_name"`
	DurableName    string `koanf:"durable_name"`
	QueueGroup     string `koanf:"queue_group"`
}

// APIConfig holds pagination and response caching settings.
type APIConfig struct {
	DefaultPageSize int           `koanf:"default_page_size"`
	MaxPageSize     int           `koanf:"max_page_size"`
	RosterCacheTTL  time.Duration `koanf:"roster_cache_ttl"`
}

// LoggingConfig holds log output settings.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// defaultConfig returns a Config with all defaults applied. These are
// overridden by the config file and environment variables.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:    "0.0.0.0",
			Port:    5000,
			Timeout: 30 * time.Second,
		},
		Database: DatabaseConfig{
			Path:      "/data/fieldtrace.duckdb",
			MaxMemory: "1GB",
			Threads:   0,
		},
		Security: SecurityConfig{
			JWTSecret:         "",
			SessionTimeout:    24 * time.Hour,
			AdminUsername:     "",
			AdminPassword:     "",
			BcryptCost:        12,
			RateLimitReqs:     100,
			RateLimitWindow:   time.Minute,
			RateLimitDisabled: false,
			CORSOrigins:       []string{},
		},
		Tracking: TrackingConfig{
			OnlineThreshold:   2 * time.Minute,
			FlushInterval:     15 * time.Second,
			MinUpdateInterval: 2 * time.Second,
			UpdateBurst:       5,
			HistoryRetention:  90 * 24 * time.Hour,
		},
		Duty: DutyConfig{
			Store:         "badger",
			StorePath:     "/data/duty",
			MaxSessionAge: 16 * time.Hour,
		},
		NATS: NATSConfig{
			Enabled:        false,
			URL:            "nats://127.0.0.1:4222",
			EmbeddedServer: true,
			StoreDir:       "/data/nats/jetstream",
			MaxMemory:      1 << 30,
			MaxStore:       10 << 30,
			StreamName:     "LOCATION",
			DurableName:    "location-processor",
			QueueGroup:     "processors",
		},
		API: APIConfig{
			DefaultPageSize: 20,
			MaxPageSize:     100,
			RosterCacheTTL:  5 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
	}
}
