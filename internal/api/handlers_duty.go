// Fieldtrace - Field Service Ticketing and Live Workforce Tracking
// Copyright 2026 Fieldtrace Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/fieldtrace/fieldtrace

package api

import (
	"net/http"
	"time"

	"github.com/fieldtrace/fieldtrace/internal/auth"
	"github.com/fieldtrace/fieldtrace/internal/events"
	"github.com/fieldtrace/fieldtrace/internal/logging"
)

// DutyStatus is GET /api/v1/duty/status: the handshake a tracking
// client performs on load. The server state is authoritative; clients
// resume or stop streaming based on this answer, never on local state.
func (h *Handler) DutyStatus(w http.ResponseWriter, r *http.Request) {
	claims := auth.ClaimsFromContext(r.Context())
	if claims == nil {
		respondError(w, http.StatusUnauthorized, "AUTHENTICATION_ERROR", "missing token claims", nil)
		return
	}

	start := time.Now()
	status, err := h.duty.Status(r.Context(), claims.EmployeeID())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "could not read duty state", err)
		return
	}
	respondData(w, http.StatusOK, status, start)
}

// DutyStart is POST /api/v1/duty/start. Idempotent: starting while
// already on duty returns the existing session.
func (h *Handler) DutyStart(w http.ResponseWriter, r *http.Request) {
	claims := auth.ClaimsFromContext(r.Context())
	if claims == nil {
		respondError(w, http.StatusUnauthorized, "AUTHENTICATION_ERROR", "missing token claims", nil)
		return
	}

	start := time.Now()
	session, started, err := h.duty.Start(r.Context(), claims.EmployeeID())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "could not start duty session", err)
		return
	}

	if started {
		if err := h.publisher.Publish(r.Context(), events.TopicDutyStarted, events.DutyChanged{
			Session: session,
			At:      time.Now().UTC(),
		}); err != nil {
			logging.Ctx(r.Context()).Warn().Err(err).Msg("failed to publish duty event")
		}
	}

	code := http.StatusOK
	if started {
		code = http.StatusCreated
	}
	respondData(w, code, session, start)
}

// DutyStop is POST /api/v1/duty/stop. Idempotent: stopping while off
// duty is a no-op success.
func (h *Handler) DutyStop(w http.ResponseWriter, r *http.Request) {
	claims := auth.ClaimsFromContext(r.Context())
	if claims == nil {
		respondError(w, http.StatusUnauthorized, "AUTHENTICATION_ERROR", "missing token claims", nil)
		return
	}

	start := time.Now()
	session, stopped, err := h.duty.Stop(r.Context(), claims.EmployeeID())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "could not stop duty session", err)
		return
	}

	if stopped {
		if err := h.publisher.Publish(r.Context(), events.TopicDutyStopped, events.DutyChanged{
			Session: session,
			At:      time.Now().UTC(),
		}); err != nil {
			logging.Ctx(r.Context()).Warn().Err(err).Msg("failed to publish duty event")
		}
		respondData(w, http.StatusOK, session, start)
		return
	}
	respondData(w, http.StatusOK, map[string]bool{"onDuty": false}, start)
}
