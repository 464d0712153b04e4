// Fieldtrace - Field Service Ticketing and Live Workforce Tracking
// Copyright 2026 Fieldtrace Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/fieldtrace/fieldtrace

package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/fieldtrace/fieldtrace/internal/database"
	"github.com/fieldtrace/fieldtrace/internal/logging"
	"github.com/fieldtrace/fieldtrace/internal/models"
)

// Login verifies credentials and issues a JWT. Unknown usernames and
// wrong passwords produce the same response so the endpoint cannot be
// used to probe for accounts.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req models.LoginRequest
	if !decodeBody(w, r, &req) {
		return
	}

	emp, err := h.db.GetEmployeeByUsername(r.Context(), req.Username)
	if err != nil {
		if !errors.Is(err, database.ErrNotFound) {
			respondError(w, http.StatusInternalServerError, "DATABASE_ERROR", "login failed", err)
			return
		}
		// Burn a bcrypt comparison so missing accounts take as long
		// as wrong passwords.
		h.hasher.Verify("$2a$10$NqZ5o1yCVnmPOFWvZzKZbeS3fKk0aGg9qVnWvWYv1uFZCpO1hJ1iW", req.Password)
		respondError(w, http.StatusUnauthorized, "AUTHENTICATION_ERROR", "invalid username or password", nil)
		return
	}

	if !h.hasher.Verify(emp.PasswordHash, req.Password) {
		logging.Warn().Str("username", sanitizeLogValue(req.Username)).Msg("failed login attempt")
		respondError(w, http.StatusUnauthorized, "AUTHENTICATION_ERROR", "invalid username or password", nil)
		return
	}

	token, expiresAt, err := h.jwtManager.GenerateToken(emp.ID, emp.Username, emp.Role, req.RememberMe)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "could not issue token", err)
		return
	}

	logging.Info().Str("username", emp.Username).Str("role", string(emp.Role)).Msg("login")
	respondData(w, http.StatusOK, models.LoginResponse{
		Token:     token,
		ExpiresAt: expiresAt,
		Username:  emp.Username,
		Role:      emp.Role,
		UserID:    emp.ID,
	}, time.Now())
}
