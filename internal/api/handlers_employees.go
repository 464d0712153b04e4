// Fieldtrace - Field Service Ticketing and Live Workforce Tracking
// Copyright 2026 Fieldtrace Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/fieldtrace/fieldtrace

package api

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/fieldtrace/fieldtrace/internal/auth"
	"github.com/fieldtrace/fieldtrace/internal/database"
	"github.com/fieldtrace/fieldtrace/internal/models"
)

// Me is GET /api/v1/employees/me. Any authenticated account may read
// its own record.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	claims := auth.ClaimsFromContext(r.Context())
	if claims == nil {
		respondError(w, http.StatusUnauthorized, "AUTHENTICATION_ERROR", "missing token claims", nil)
		return
	}

	start := time.Now()
	emp, err := h.db.GetEmployeeByID(r.Context(), claims.EmployeeID())
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			respondError(w, http.StatusNotFound, "NOT_FOUND", "account not found", nil)
			return
		}
		respondError(w, http.StatusInternalServerError, "DATABASE_ERROR", "could not load account", err)
		return
	}
	respondData(w, http.StatusOK, emp, start)
}

// ListEmployees is GET /api/v1/employees?role=&limit=&offset=, admin only.
func (h *Handler) ListEmployees(w http.ResponseWriter, r *http.Request) {
	claims := auth.ClaimsFromContext(r.Context())
	if claims == nil || claims.Role != models.RoleAdmin {
		respondError(w, http.StatusForbidden, "AUTHORIZATION_ERROR", "only admins list accounts", nil)
		return
	}

	role := models.Role(strings.ToUpper(r.URL.Query().Get("role")))
	limit, offset := h.pagination(r)

	start := time.Now()
	employees, err := h.db.ListEmployees(r.Context(), role, limit, offset)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "DATABASE_ERROR", "could not list accounts", err)
		return
	}
	if employees == nil {
		employees = []models.Employee{}
	}
	respondData(w, http.StatusOK, employees, start)
}

type createEmployeeRequest struct {
	Username     string `json:"username" validate:"required,min=3,max=64"`
	Email        string `json:"email" validate:"required,email"`
	Password     string `json:"password" validate:"required,min=8,max=128"`
	FullName     string `json:"fullName" validate:"required,max=200"`
	Phone        string `json:"phone" validate:"max=32"`
	ProfileImage string `json:"profileImage" validate:"omitempty,url"`
	Role         string `json:"role" validate:"required,oneof=ADMIN EMPLOYEE CUSTOMER"`
}

// CreateEmployee is POST /api/v1/employees, admin only.
func (h *Handler) CreateEmployee(w http.ResponseWriter, r *http.Request) {
	claims := auth.ClaimsFromContext(r.Context())
	if claims == nil || claims.Role != models.RoleAdmin {
		respondError(w, http.StatusForbidden, "AUTHORIZATION_ERROR", "only admins create accounts", nil)
		return
	}

	var req createEmployeeRequest
	if !decodeBody(w, r, &req) {
		return
	}

	hash, err := h.hasher.Hash(req.Password)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "could not hash password", err)
		return
	}

	emp := &models.Employee{
		Username:     req.Username,
		Email:        req.Email,
		FullName:     req.FullName,
		Phone:        req.Phone,
		ProfileImage: req.ProfileImage,
		Role:         models.Role(req.Role),
		PasswordHash: hash,
		Active:       true,
	}

	start := time.Now()
	if err := h.db.CreateEmployee(r.Context(), emp); err != nil {
		if errors.Is(err, database.ErrDuplicate) {
			respondError(w, http.StatusConflict, "CONFLICT", "username or email already in use", nil)
			return
		}
		respondError(w, http.StatusInternalServerError, "DATABASE_ERROR", "could not create account", err)
		return
	}
	respondData(w, http.StatusCreated, emp, start)
}

// GetEmployee is GET /api/v1/employees/{id}, admin only.
func (h *Handler) GetEmployee(w http.ResponseWriter, r *http.Request) {
	claims := auth.ClaimsFromContext(r.Context())
	if claims == nil || claims.Role != models.RoleAdmin {
		respondError(w, http.StatusForbidden, "AUTHORIZATION_ERROR", "only admins read other accounts", nil)
		return
	}

	start := time.Now()
	emp, err := h.db.GetEmployeeByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			respondError(w, http.StatusNotFound, "NOT_FOUND", "account not found", nil)
			return
		}
		respondError(w, http.StatusInternalServerError, "DATABASE_ERROR", "could not load account", err)
		return
	}
	respondData(w, http.StatusOK, emp, start)
}

type updateEmployeeRequest struct {
	Email        string `json:"email" validate:"omitempty,email"`
	Password     string `json:"password" validate:"omitempty,min=8,max=128"`
	FullName     string `json:"fullName" validate:"omitempty,max=200"`
	Phone        string `json:"phone" validate:"max=32"`
	ProfileImage string `json:"profileImage" validate:"omitempty,url"`
	Role         string `json:"role" validate:"omitempty,oneof=ADMIN EMPLOYEE CUSTOMER"`
	Active       *bool  `json:"active"`
}

// UpdateEmployee is PUT /api/v1/employees/{id}, admin only. Only the
// fields present in the body change.
func (h *Handler) UpdateEmployee(w http.ResponseWriter, r *http.Request) {
	claims := auth.ClaimsFromContext(r.Context())
	if claims == nil || claims.Role != models.RoleAdmin {
		respondError(w, http.StatusForbidden, "AUTHORIZATION_ERROR", "only admins update accounts", nil)
		return
	}

	var req updateEmployeeRequest
	if !decodeBody(w, r, &req) {
		return
	}

	start := time.Now()
	emp, err := h.db.GetEmployeeByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			respondError(w, http.StatusNotFound, "NOT_FOUND", "account not found", nil)
			return
		}
		respondError(w, http.StatusInternalServerError, "DATABASE_ERROR", "could not load account", err)
		return
	}

	if req.Email != "" {
		emp.Email = req.Email
	}
	if req.FullName != "" {
		emp.FullName = req.FullName
	}
	if req.Phone != "" {
		emp.Phone = req.Phone
	}
	if req.ProfileImage != "" {
		emp.ProfileImage = req.ProfileImage
	}
	if req.Role != "" {
		emp.Role = models.Role(req.Role)
	}
	if req.Active != nil {
		emp.Active = *req.Active
	}
	if req.Password != "" {
		hash, err := h.hasher.Hash(req.Password)
		if err != nil {
			respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "could not hash password", err)
			return
		}
		emp.PasswordHash = hash
	}

	if err := h.db.UpdateEmployee(r.Context(), &emp); err != nil {
		respondError(w, http.StatusInternalServerError, "DATABASE_ERROR", "could not update account", err)
		return
	}
	respondData(w, http.StatusOK, emp, start)
}

// DeleteEmployee is DELETE /api/v1/employees/{id}, admin only. The
// account is deactivated and soft-deleted so its history survives.
func (h *Handler) DeleteEmployee(w http.ResponseWriter, r *http.Request) {
	claims := auth.ClaimsFromContext(r.Context())
	if claims == nil || claims.Role != models.RoleAdmin {
		respondError(w, http.StatusForbidden, "AUTHORIZATION_ERROR", "only admins delete accounts", nil)
		return
	}
	if chi.URLParam(r, "id") == claims.EmployeeID() {
		respondError(w, http.StatusConflict, "CONFLICT", "cannot delete own account", nil)
		return
	}

	start := time.Now()
	if err := h.db.SoftDeleteEmployee(r.Context(), chi.URLParam(r, "id")); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			respondError(w, http.StatusNotFound, "NOT_FOUND", "account not found", nil)
			return
		}
		respondError(w, http.StatusInternalServerError, "DATABASE_ERROR", "could not delete account", err)
		return
	}
	respondData(w, http.StatusOK, map[string]bool{"deleted": true}, start)
}
