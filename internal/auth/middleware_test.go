// Fieldtrace - Field Service Ticketing and Live Workforce Tracking
// Copyright 2026 Fieldtrace Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/fieldtrace/fieldtrace

package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/fieldtrace/fieldtrace/internal/models"
)

func newTestMiddleware(t *testing.T) (*Middleware, *JWTManager) {
	t.Helper()
	m, err := NewJWTManager(testSecurityConfig())
	if err != nil {
		t.Fatalf("NewJWTManager failed: %v", err)
	}
	return NewMiddleware(m), m
}

func TestAuthenticateRejectsMissingToken(t *testing.T) {
	mw, _ := newTestMiddleware(t)

	handler := mw.Authenticate(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler should not run without a token")
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/tickets", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", rec.Code)
	}
}

func TestAuthenticateRejectsGarbageToken(t *testing.T) {
	mw, _ := newTestMiddleware(t)

	handler := mw.Authenticate(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler should not run with a garbage token")
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/tickets", nil)
	req.Header.Set("Authorization", "Bearer not.a.token")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", rec.Code)
	}
}

func TestAuthenticatePassesClaims(t *testing.T) {
	mw, jm := newTestMiddleware(t)

	token, _, err := jm.GenerateToken("emp-7", "bob", models.RoleAdmin, false)
	if err != nil {
		t.Fatalf("GenerateToken failed: %v", err)
	}

	var gotClaims *Claims
	handler := mw.Authenticate(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotClaims = ClaimsFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/tickets", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if gotClaims == nil {
		t.Fatal("expected claims in context")
	}
	if gotClaims.EmployeeID() != "emp-7" || gotClaims.Role != models.RoleAdmin {
		t.Errorf("unexpected claims: %+v", gotClaims)
	}
}

func TestAuthenticateAcceptsQueryToken(t *testing.T) {
	mw, jm := newTestMiddleware(t)

	token, _, err := jm.GenerateToken("emp-7", "bob", models.RoleEmployee, false)
	if err != nil {
		t.Fatalf("GenerateToken failed: %v", err)
	}

	called := false
	handler := mw.Authenticate(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))

	req := httptest.NewRequest(http.MethodGet, "/ws?token="+token, nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if !called {
		t.Error("expected query token to authenticate")
	}
}

func TestRoleFromContextEmpty(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if got := RoleFromContext(req.Context()); got != "" {
		t.Errorf("expected empty role, got %q", got)
	}
}
