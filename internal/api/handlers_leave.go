// Fieldtrace - Field Service Ticketing and Live Workforce Tracking
// Copyright 2026 Fieldtrace Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/fieldtrace/fieldtrace

package api

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/fieldtrace/fieldtrace/internal/auth"
	"github.com/fieldtrace/fieldtrace/internal/database"
	"github.com/fieldtrace/fieldtrace/internal/models"
)

type leaveRequestBody struct {
	Type      string `json:"type" validate:"omitempty,oneof=ANNUAL SICK UNPAID"`
	StartDate string `json:"startDate" validate:"required,dateonly"`
	EndDate   string `json:"endDate" validate:"required,dateonly"`
	Reason    string `json:"reason" validate:"required,max=1000"`
}

// CreateLeaveRequest is POST /api/v1/leave.
func (h *Handler) CreateLeaveRequest(w http.ResponseWriter, r *http.Request) {
	claims := auth.ClaimsFromContext(r.Context())
	if claims == nil {
		respondError(w, http.StatusUnauthorized, "AUTHENTICATION_ERROR", "missing token claims", nil)
		return
	}

	var req leaveRequestBody
	if !decodeBody(w, r, &req) {
		return
	}
	if req.EndDate < req.StartDate {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "endDate precedes startDate", nil)
		return
	}

	// Untyped requests from older clients default to annual leave.
	leaveType := models.LeaveType(req.Type)
	if leaveType == "" {
		leaveType = models.LeaveAnnual
	}

	leave := &models.LeaveRequest{
		EmployeeID: claims.EmployeeID(),
		Type:       leaveType,
		StartDate:  req.StartDate,
		EndDate:    req.EndDate,
		Reason:     req.Reason,
	}

	start := time.Now()
	if err := h.db.CreateLeaveRequest(r.Context(), leave); err != nil {
		respondError(w, http.StatusInternalServerError, "DATABASE_ERROR", "could not create leave request", err)
		return
	}
	respondData(w, http.StatusCreated, leave, start)
}

// ListLeaveRequests is GET /api/v1/leave?status=&employeeId=.
// Employees are scoped to their own requests.
func (h *Handler) ListLeaveRequests(w http.ResponseWriter, r *http.Request) {
	claims := auth.ClaimsFromContext(r.Context())
	if claims == nil {
		respondError(w, http.StatusUnauthorized, "AUTHENTICATION_ERROR", "missing token claims", nil)
		return
	}

	employeeID := r.URL.Query().Get("employeeId")
	if claims.Role != models.RoleAdmin {
		employeeID = claims.EmployeeID()
	}
	status := models.LeaveStatus(strings.ToUpper(r.URL.Query().Get("status")))

	start := time.Now()
	requests, err := h.db.ListLeaveRequests(r.Context(), employeeID, status)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "DATABASE_ERROR", "could not list leave requests", err)
		return
	}
	if requests == nil {
		requests = []models.LeaveRequest{}
	}
	respondData(w, http.StatusOK, requests, start)
}

// LeaveBalance summarises an employee's leave days for one year.
type LeaveBalance struct {
	EmployeeID   string `json:"employeeId"`
	Year         int    `json:"year"`
	ApprovedDays int    `json:"approvedDays"`
	PendingDays  int    `json:"pendingDays"`
}

// LeaveBalanceSummary is GET /api/v1/leave/balance?year=&employeeId=.
// Day counts are inclusive of both endpoints and clipped to the year.
// Non-admin callers always get their own balance.
func (h *Handler) LeaveBalanceSummary(w http.ResponseWriter, r *http.Request) {
	claims := auth.ClaimsFromContext(r.Context())
	if claims == nil {
		respondError(w, http.StatusUnauthorized, "AUTHENTICATION_ERROR", "missing token claims", nil)
		return
	}

	employeeID := r.URL.Query().Get("employeeId")
	if claims.Role != models.RoleAdmin || employeeID == "" {
		employeeID = claims.EmployeeID()
	}

	year := time.Now().UTC().Year()
	if raw := r.URL.Query().Get("year"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 2000 || parsed > 2200 {
			respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "year must be a four digit year", nil)
			return
		}
		year = parsed
	}

	start := time.Now()
	requests, err := h.db.ListLeaveRequests(r.Context(), employeeID, "")
	if err != nil {
		respondError(w, http.StatusInternalServerError, "DATABASE_ERROR", "could not list leave requests", err)
		return
	}

	balance := LeaveBalance{EmployeeID: employeeID, Year: year}
	for _, req := range requests {
		days := leaveDaysInYear(req.StartDate, req.EndDate, year)
		switch req.Status {
		case models.LeaveApproved:
			balance.ApprovedDays += days
		case models.LeavePending:
			balance.PendingDays += days
		}
	}
	respondData(w, http.StatusOK, balance, start)
}

// leaveDaysInYear counts the days of [startDate, endDate] that fall in
// the given year. Stored dates have already passed dateonly validation,
// so parse failures count as zero.
func leaveDaysInYear(startDate, endDate string, year int) int {
	from, err := time.Parse("2006-01-02", startDate)
	if err != nil {
		return 0
	}
	to, err := time.Parse("2006-01-02", endDate)
	if err != nil {
		return 0
	}

	yearStart := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
	yearEnd := time.Date(year, time.December, 31, 0, 0, 0, 0, time.UTC)
	if from.Before(yearStart) {
		from = yearStart
	}
	if to.After(yearEnd) {
		to = yearEnd
	}
	if to.Before(from) {
		return 0
	}
	return int(to.Sub(from).Hours()/24) + 1
}

type reviewLeaveRequest struct {
	Approve bool   `json:"approve"`
	Note    string `json:"note" validate:"max=1000"`
}

// ReviewLeaveRequest is POST /api/v1/leave/{id}/review, admin only.
func (h *Handler) ReviewLeaveRequest(w http.ResponseWriter, r *http.Request) {
	claims := auth.ClaimsFromContext(r.Context())
	if claims == nil || claims.Role != models.RoleAdmin {
		respondError(w, http.StatusForbidden, "AUTHORIZATION_ERROR", "only admins review leave requests", nil)
		return
	}

	var req reviewLeaveRequest
	if !decodeBody(w, r, &req) {
		return
	}

	status := models.LeaveRejected
	if req.Approve {
		status = models.LeaveApproved
	}

	start := time.Now()
	reviewed, err := h.db.ReviewLeaveRequest(r.Context(), chi.URLParam(r, "id"), claims.EmployeeID(), status, req.Note)
	if err != nil {
		switch {
		case errors.Is(err, database.ErrNotFound):
			respondError(w, http.StatusNotFound, "NOT_FOUND", "leave request not found", nil)
		case errors.Is(err, database.ErrLeaveReviewed):
			respondError(w, http.StatusConflict, "CONFLICT", "leave request already reviewed", nil)
		default:
			respondError(w, http.StatusInternalServerError, "DATABASE_ERROR", "review failed", err)
		}
		return
	}
	respondData(w, http.StatusOK, reviewed, start)
}
