// Fieldtrace - Field Service Ticketing and Live Workforce Tracking
// Copyright 2026 Fieldtrace Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/fieldtrace/fieldtrace

package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/fieldtrace/fieldtrace/internal/auth"
	"github.com/fieldtrace/fieldtrace/internal/database"
	"github.com/fieldtrace/fieldtrace/internal/models"
)

type createTicketRequest struct {
	Title       string `json:"title" validate:"required,max=200"`
	Description string `json:"description" validate:"required,max=4000"`
	Address     string `json:"address" validate:"max=500"`
	CustomerID  string `json:"customerId"`
}

// CreateTicket is POST /api/v1/tickets. Customers open tickets for
// themselves; admins may open one on a customer's behalf.
func (h *Handler) CreateTicket(w http.ResponseWriter, r *http.Request) {
	claims := auth.ClaimsFromContext(r.Context())
	if claims == nil {
		respondError(w, http.StatusUnauthorized, "AUTHENTICATION_ERROR", "missing token claims", nil)
		return
	}

	var req createTicketRequest
	if !decodeBody(w, r, &req) {
		return
	}

	customerID := claims.EmployeeID()
	if claims.Role == models.RoleAdmin && req.CustomerID != "" {
		customerID = req.CustomerID
	}

	ticket := &models.Ticket{
		Title:       req.Title,
		Description: req.Description,
		Address:     req.Address,
		CustomerID:  customerID,
	}

	start := time.Now()
	if err := h.db.CreateTicket(r.Context(), ticket); err != nil {
		respondError(w, http.StatusInternalServerError, "DATABASE_ERROR", "could not create ticket", err)
		return
	}
	respondData(w, http.StatusCreated, ticket, start)
}

// ListTickets is GET /api/v1/tickets. Non-admin callers are scoped to
// their own tickets regardless of filter parameters.
func (h *Handler) ListTickets(w http.ResponseWriter, r *http.Request) {
	claims := auth.ClaimsFromContext(r.Context())
	if claims == nil {
		respondError(w, http.StatusUnauthorized, "AUTHENTICATION_ERROR", "missing token claims", nil)
		return
	}

	limit, offset := h.pagination(r)
	filter := database.TicketFilter{
		Status:     models.TicketStatus(r.URL.Query().Get("status")),
		AssigneeID: r.URL.Query().Get("assigneeId"),
		CustomerID: r.URL.Query().Get("customerId"),
		Deleted:    r.URL.Query().Get("deleted") == "true",
		Limit:      limit,
		Offset:     offset,
	}

	switch claims.Role {
	case models.RoleEmployee:
		filter.AssigneeID = claims.EmployeeID()
	case models.RoleCustomer:
		filter.CustomerID = claims.EmployeeID()
		filter.Deleted = false
	}

	start := time.Now()
	tickets, err := h.db.ListTickets(r.Context(), filter)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "DATABASE_ERROR", "could not list tickets", err)
		return
	}
	if tickets == nil {
		tickets = []models.Ticket{}
	}
	respondData(w, http.StatusOK, tickets, start)
}

// loadTicketScoped fetches a ticket and enforces per-role ownership.
// Admins see everything; employees their assignments; customers their
// own tickets. Returns false after writing the response on failure.
func (h *Handler) loadTicketScoped(w http.ResponseWriter, r *http.Request) (models.Ticket, *auth.Claims, bool) {
	claims := auth.ClaimsFromContext(r.Context())
	if claims == nil {
		respondError(w, http.StatusUnauthorized, "AUTHENTICATION_ERROR", "missing token claims", nil)
		return models.Ticket{}, nil, false
	}

	ticket, err := h.db.GetTicket(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			respondError(w, http.StatusNotFound, "NOT_FOUND", "ticket not found", nil)
		} else {
			respondError(w, http.StatusInternalServerError, "DATABASE_ERROR", "could not load ticket", err)
		}
		return models.Ticket{}, nil, false
	}

	switch claims.Role {
	case models.RoleAdmin:
	case models.RoleEmployee:
		if ticket.AssigneeID != claims.EmployeeID() {
			respondError(w, http.StatusForbidden, "AUTHORIZATION_ERROR", "ticket is not assigned to you", nil)
			return models.Ticket{}, nil, false
		}
	case models.RoleCustomer:
		if ticket.CustomerID != claims.EmployeeID() {
			respondError(w, http.StatusForbidden, "AUTHORIZATION_ERROR", "not your ticket", nil)
			return models.Ticket{}, nil, false
		}
	}
	return ticket, claims, true
}

// GetTicket is GET /api/v1/tickets/{id}.
func (h *Handler) GetTicket(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ticket, _, ok := h.loadTicketScoped(w, r)
	if !ok {
		return
	}
	respondData(w, http.StatusOK, ticket, start)
}

type updateTicketRequest struct {
	Title       string `json:"title" validate:"required,max=200"`
	Description string `json:"description" validate:"required,max=4000"`
	Address     string `json:"address" validate:"max=500"`
}

// UpdateTicket is PUT /api/v1/tickets/{id}: rewrites the descriptive
// fields. Admins may edit any live ticket; customers may edit their own
// while it is still open. Lifecycle, assignee and cost have dedicated
// endpoints.
func (h *Handler) UpdateTicket(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ticket, claims, ok := h.loadTicketScoped(w, r)
	if !ok {
		return
	}
	switch claims.Role {
	case models.RoleAdmin:
	case models.RoleCustomer:
		if ticket.Status != models.TicketOpen {
			respondError(w, http.StatusConflict, "INVALID_TRANSITION", "ticket can no longer be edited", nil)
			return
		}
	default:
		respondError(w, http.StatusForbidden, "AUTHORIZATION_ERROR", "employees cannot edit ticket details", nil)
		return
	}

	var req updateTicketRequest
	if !decodeBody(w, r, &req) {
		return
	}

	updated, err := h.db.UpdateTicketDetails(r.Context(), ticket.ID, req.Title, req.Description, req.Address, claims.EmployeeID())
	if err != nil {
		respondTicketError(w, err)
		return
	}
	respondData(w, http.StatusOK, updated, start)
}

type assignTicketRequest struct {
	AssigneeID string `json:"assigneeId" validate:"required"`
}

// AssignTicket is POST /api/v1/tickets/{id}/assign. Admin only; covers
// both first assignment and reassignment. The assignee must be an
// active employee account.
func (h *Handler) AssignTicket(w http.ResponseWriter, r *http.Request) {
	claims := auth.ClaimsFromContext(r.Context())
	if claims == nil || claims.Role != models.RoleAdmin {
		respondError(w, http.StatusForbidden, "AUTHORIZATION_ERROR", "only admins assign tickets", nil)
		return
	}

	var req assignTicketRequest
	if !decodeBody(w, r, &req) {
		return
	}

	assignee, err := h.db.GetEmployeeByID(r.Context(), req.AssigneeID)
	if err != nil || assignee.Role != models.RoleEmployee || assignee.DeletedAt != nil {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "assignee must be an active employee", nil)
		return
	}

	start := time.Now()
	ticket, err := h.db.AssignTicket(r.Context(), chi.URLParam(r, "id"), req.AssigneeID, claims.EmployeeID())
	if err != nil {
		respondTicketError(w, err)
		return
	}
	respondData(w, http.StatusOK, ticket, start)
}

func respondTicketError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, database.ErrNotFound):
		respondError(w, http.StatusNotFound, "NOT_FOUND", "ticket not found", nil)
	case errors.Is(err, database.ErrInvalidTransition):
		respondError(w, http.StatusConflict, "INVALID_TRANSITION", "ticket status does not allow this operation", nil)
	default:
		respondError(w, http.StatusInternalServerError, "DATABASE_ERROR", "ticket operation failed", err)
	}
}

// transition is shared by the start/complete/cancel handlers.
func (h *Handler) transition(w http.ResponseWriter, r *http.Request, next models.TicketStatus, detail string) {
	start := time.Now()
	ticket, claims, ok := h.loadTicketScoped(w, r)
	if !ok {
		return
	}
	// Customers may cancel their own open tickets but drive nothing else.
	if claims.Role == models.RoleCustomer && next != models.TicketCancelled {
		respondError(w, http.StatusForbidden, "AUTHORIZATION_ERROR", "customers can only cancel", nil)
		return
	}

	updated, err := h.db.TransitionTicket(r.Context(), ticket.ID, next, claims.EmployeeID(), detail)
	if err != nil {
		respondTicketError(w, err)
		return
	}
	respondData(w, http.StatusOK, updated, start)
}

// StartTicket is POST /api/v1/tickets/{id}/start.
func (h *Handler) StartTicket(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, models.TicketInProgress, "")
}

// CompleteTicket is POST /api/v1/tickets/{id}/complete.
func (h *Handler) CompleteTicket(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Detail string `json:"detail" validate:"max=1000"`
	}
	// Body is optional; a missing one completes without detail.
	_ = decodeOptionalBody(r, &req)
	h.transition(w, r, models.TicketCompleted, req.Detail)
}

// CancelTicket is POST /api/v1/tickets/{id}/cancel.
func (h *Handler) CancelTicket(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Detail string `json:"detail" validate:"max=1000"`
	}
	_ = decodeOptionalBody(r, &req)
	h.transition(w, r, models.TicketCancelled, req.Detail)
}

type setCostRequest struct {
	EstimatedCost float64 `json:"estimatedCost" validate:"gte=0"`
}

// SetTicketCost is PUT /api/v1/tickets/{id}/cost. Admins and the
// assigned employee may set it while the ticket is live.
func (h *Handler) SetTicketCost(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	_, claims, ok := h.loadTicketScoped(w, r)
	if !ok {
		return
	}
	if claims.Role == models.RoleCustomer {
		respondError(w, http.StatusForbidden, "AUTHORIZATION_ERROR", "customers cannot set cost", nil)
		return
	}

	var req setCostRequest
	if !decodeBody(w, r, &req) {
		return
	}

	ticket, err := h.db.SetEstimatedCost(r.Context(), chi.URLParam(r, "id"), req.EstimatedCost, claims.EmployeeID())
	if err != nil {
		respondTicketError(w, err)
		return
	}
	respondData(w, http.StatusOK, ticket, start)
}

// TicketLogs is GET /api/v1/tickets/{id}/logs: the audit trail.
func (h *Handler) TicketLogs(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ticket, _, ok := h.loadTicketScoped(w, r)
	if !ok {
		return
	}

	logs, err := h.db.ListTicketLogs(r.Context(), ticket.ID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "DATABASE_ERROR", "could not load ticket logs", err)
		return
	}
	if logs == nil {
		logs = []models.TicketLog{}
	}
	respondData(w, http.StatusOK, logs, start)
}

type addTicketLogRequest struct {
	Note string `json:"note" validate:"required,max=1000"`
}

// AddTicketLog is POST /api/v1/tickets/{id}/logs: appends a free-form
// note to the audit trail. Anyone with access to the ticket may note.
func (h *Handler) AddTicketLog(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ticket, claims, ok := h.loadTicketScoped(w, r)
	if !ok {
		return
	}

	var req addTicketLogRequest
	if !decodeBody(w, r, &req) {
		return
	}

	entry, err := h.db.AddTicketLog(r.Context(), ticket.ID, claims.EmployeeID(), req.Note)
	if err != nil {
		respondTicketError(w, err)
		return
	}
	respondData(w, http.StatusCreated, entry, start)
}

// DeleteTicket is DELETE /api/v1/tickets/{id}: soft delete, admin only.
func (h *Handler) DeleteTicket(w http.ResponseWriter, r *http.Request) {
	claims := auth.ClaimsFromContext(r.Context())
	if claims == nil || claims.Role != models.RoleAdmin {
		respondError(w, http.StatusForbidden, "AUTHORIZATION_ERROR", "only admins delete tickets", nil)
		return
	}

	start := time.Now()
	if err := h.db.SoftDeleteTicket(r.Context(), chi.URLParam(r, "id"), claims.EmployeeID()); err != nil {
		respondTicketError(w, err)
		return
	}
	respondData(w, http.StatusOK, map[string]bool{"deleted": true}, start)
}

// RestoreTicket is POST /api/v1/tickets/{id}/restore, admin only.
func (h *Handler) RestoreTicket(w http.ResponseWriter, r *http.Request) {
	claims := auth.ClaimsFromContext(r.Context())
	if claims == nil || claims.Role != models.RoleAdmin {
		respondError(w, http.StatusForbidden, "AUTHORIZATION_ERROR", "only admins restore tickets", nil)
		return
	}

	start := time.Now()
	if err := h.db.RestoreTicket(r.Context(), chi.URLParam(r, "id"), claims.EmployeeID()); err != nil {
		respondTicketError(w, err)
		return
	}
	respondData(w, http.StatusOK, map[string]bool{"restored": true}, start)
}
