// Fieldtrace - Field Service Ticketing and Live Workforce Tracking
// Copyright 2026 Fieldtrace Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/fieldtrace/fieldtrace

package api

import (
	"net/http"
	"time"
)

type healthStatus struct {
	Status        string  `json:"status"`
	UptimeSeconds float64 `json:"uptime_seconds"`
	Database      string  `json:"database"`
	Tracking      struct {
		TrackedEmployees int `json:"tracked_employees"`
		Online           int `json:"online"`
	} `json:"tracking"`
	WebSocket struct {
		Clients          int `json:"clients"`
		AdminSubscribers int `json:"admin_subscribers"`
	} `json:"websocket"`
}

// Health reports overall status with tracking and socket counts.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	status := healthStatus{
		Status:        "ok",
		UptimeSeconds: time.Since(h.startTime).Seconds(),
		Database:      "ok",
	}
	if err := h.db.Ping(r.Context()); err != nil {
		status.Status = "degraded"
		status.Database = "unreachable"
	}
	status.Tracking.TrackedEmployees = len(h.tracker.Snapshot())
	status.Tracking.Online = h.tracker.OnlineCount()
	status.WebSocket.Clients = h.wsHub.ClientCount()
	status.WebSocket.AdminSubscribers = h.wsHub.AdminCount()

	code := http.StatusOK
	if status.Status != "ok" {
		code = http.StatusServiceUnavailable
	}
	respondData(w, code, status, start)
}

// HealthLive is the liveness probe; it answers as long as the process
// can serve HTTP.
func (h *Handler) HealthLive(w http.ResponseWriter, r *http.Request) {
	respondData(w, http.StatusOK, map[string]string{"status": "alive"}, time.Now())
}

// HealthReady is the readiness probe; it fails while the database is
// unreachable so the instance is pulled from rotation.
func (h *Handler) HealthReady(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	if err := h.db.Ping(r.Context()); err != nil {
		respondError(w, http.StatusServiceUnavailable, "DATABASE_ERROR", "database not reachable", err)
		return
	}
	respondData(w, http.StatusOK, map[string]string{"status": "ready"}, start)
}
