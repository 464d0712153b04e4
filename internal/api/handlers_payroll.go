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

// ListSalarySlips is GET /api/v1/payroll/slips?employeeId=&period=.
// Non-admins only see their own slips.
func (h *Handler) ListSalarySlips(w http.ResponseWriter, r *http.Request) {
	claims := auth.ClaimsFromContext(r.Context())
	if claims == nil {
		respondError(w, http.StatusUnauthorized, "AUTHENTICATION_ERROR", "missing token claims", nil)
		return
	}

	employeeID := r.URL.Query().Get("employeeId")
	if claims.Role != models.RoleAdmin {
		employeeID = claims.EmployeeID()
	}
	if employeeID == "" {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "employeeId is required", nil)
		return
	}

	start := time.Now()
	if period := r.URL.Query().Get("period"); period != "" {
		slip, err := h.db.GetSalarySlip(r.Context(), employeeID, period)
		if err != nil {
			if errors.Is(err, database.ErrNotFound) {
				respondError(w, http.StatusNotFound, "NOT_FOUND", "salary slip not found", nil)
				return
			}
			respondError(w, http.StatusInternalServerError, "DATABASE_ERROR", "could not load salary slip", err)
			return
		}
		respondData(w, http.StatusOK, slip, start)
		return
	}

	slips, err := h.db.ListSalarySlips(r.Context(), employeeID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "DATABASE_ERROR", "could not list salary slips", err)
		return
	}
	if slips == nil {
		slips = []models.SalarySlip{}
	}
	respondData(w, http.StatusOK, slips, start)
}

type createSlipRequest struct {
	EmployeeID string  `json:"employeeId" validate:"required"`
	Period     string  `json:"period" validate:"required,period"`
	BaseSalary float64 `json:"baseSalary" validate:"required,gt=0"`
	Allowances float64 `json:"allowances" validate:"gte=0"`
	Deductions float64 `json:"deductions" validate:"gte=0"`
}

// CreateSalarySlip is POST /api/v1/payroll/slips, admin only. One slip
// per employee and period.
func (h *Handler) CreateSalarySlip(w http.ResponseWriter, r *http.Request) {
	claims := auth.ClaimsFromContext(r.Context())
	if claims == nil || claims.Role != models.RoleAdmin {
		respondError(w, http.StatusForbidden, "AUTHORIZATION_ERROR", "only admins issue salary slips", nil)
		return
	}

	var req createSlipRequest
	if !decodeBody(w, r, &req) {
		return
	}

	start := time.Now()
	if _, err := h.db.GetEmployeeByID(r.Context(), req.EmployeeID); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			respondError(w, http.StatusNotFound, "NOT_FOUND", "employee not found", nil)
			return
		}
		respondError(w, http.StatusInternalServerError, "DATABASE_ERROR", "could not load employee", err)
		return
	}

	slip := &models.SalarySlip{
		EmployeeID: req.EmployeeID,
		Period:     req.Period,
		BaseSalary: req.BaseSalary,
		Allowances: req.Allowances,
		Deductions: req.Deductions,
	}
	if err := h.db.CreateSalarySlip(r.Context(), slip); err != nil {
		if errors.Is(err, database.ErrSlipExists) {
			respondError(w, http.StatusConflict, "CONFLICT", "slip already issued for this period", nil)
			return
		}
		respondError(w, http.StatusInternalServerError, "DATABASE_ERROR", "could not create salary slip", err)
		return
	}
	respondData(w, http.StatusCreated, slip, start)
}
