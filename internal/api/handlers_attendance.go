// Fieldtrace - Field Service Ticketing and Live Workforce Tracking
// Copyright 2026 Fieldtrace Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/fieldtrace/fieldtrace

package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/fieldtrace/fieldtrace/internal/auth"
	"github.com/fieldtrace/fieldtrace/internal/database"
	"github.com/fieldtrace/fieldtrace/internal/models"
)

type checkInRequest struct {
	Lat float64 `json:"lat" validate:"omitempty,latitude"`
	Lng float64 `json:"lng" validate:"omitempty,longitude"`
}

// CheckIn is POST /api/v1/attendance/check-in. One row per employee
// per UTC date; a second check-in the same day is rejected.
func (h *Handler) CheckIn(w http.ResponseWriter, r *http.Request) {
	claims := auth.ClaimsFromContext(r.Context())
	if claims == nil {
		respondError(w, http.StatusUnauthorized, "AUTHENTICATION_ERROR", "missing token claims", nil)
		return
	}

	var req checkInRequest
	_ = decodeOptionalBody(r, &req)

	now := time.Now().UTC()
	start := time.Now()
	att, err := h.db.CheckIn(r.Context(), claims.EmployeeID(), now.Format("2006-01-02"), now, req.Lat, req.Lng)
	if err != nil {
		if errors.Is(err, database.ErrAlreadyCheckedIn) {
			respondError(w, http.StatusConflict, "CONFLICT", "already checked in today", nil)
			return
		}
		respondError(w, http.StatusInternalServerError, "DATABASE_ERROR", "check-in failed", err)
		return
	}
	respondData(w, http.StatusCreated, att, start)
}

// CheckOut is POST /api/v1/attendance/check-out.
func (h *Handler) CheckOut(w http.ResponseWriter, r *http.Request) {
	claims := auth.ClaimsFromContext(r.Context())
	if claims == nil {
		respondError(w, http.StatusUnauthorized, "AUTHENTICATION_ERROR", "missing token claims", nil)
		return
	}

	now := time.Now().UTC()
	start := time.Now()
	att, err := h.db.CheckOut(r.Context(), claims.EmployeeID(), now.Format("2006-01-02"), now)
	if err != nil {
		if errors.Is(err, database.ErrNotCheckedIn) {
			respondError(w, http.StatusConflict, "CONFLICT", "no check-in recorded today", nil)
			return
		}
		respondError(w, http.StatusInternalServerError, "DATABASE_ERROR", "check-out failed", err)
		return
	}
	respondData(w, http.StatusOK, att, start)
}

// ListAttendance is GET /api/v1/attendance?from=&to=&employeeId=.
// Employees see their own rows; admins anyone's or everyone's.
func (h *Handler) ListAttendance(w http.ResponseWriter, r *http.Request) {
	claims := auth.ClaimsFromContext(r.Context())
	if claims == nil {
		respondError(w, http.StatusUnauthorized, "AUTHENTICATION_ERROR", "missing token claims", nil)
		return
	}

	now := time.Now().UTC()
	from := r.URL.Query().Get("from")
	to := r.URL.Query().Get("to")
	if from == "" {
		from = now.AddDate(0, -1, 0).Format("2006-01-02")
	}
	if to == "" {
		to = now.Format("2006-01-02")
	}

	employeeID := r.URL.Query().Get("employeeId")
	if claims.Role != models.RoleAdmin {
		employeeID = claims.EmployeeID()
	}

	start := time.Now()
	rows, err := h.db.ListAttendance(r.Context(), employeeID, from, to)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "DATABASE_ERROR", "could not list attendance", err)
		return
	}
	if rows == nil {
		rows = []models.Attendance{}
	}
	respondData(w, http.StatusOK, rows, start)
}
