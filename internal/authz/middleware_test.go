// Fieldtrace - Field Service Ticketing and Live Workforce Tracking
// Copyright 2026 Fieldtrace Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/fieldtrace/fieldtrace

package authz

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/fieldtrace/fieldtrace/internal/auth"
	"github.com/fieldtrace/fieldtrace/internal/models"
)

func requestWithRole(method, path string, role models.Role) *http.Request {
	req := httptest.NewRequest(method, path, nil)
	claims := &auth.Claims{Role: role}
	ctx := context.WithValue(req.Context(), auth.ClaimsContextKey, claims)
	return req.WithContext(ctx)
}

func TestAuthorizeRequestAllows(t *testing.T) {
	mw := NewMiddleware(newTestEnforcer(t))

	called := false
	handler := mw.AuthorizeRequest(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, requestWithRole(http.MethodPost, "/location/update", models.RoleEmployee))

	if !called {
		t.Errorf("expected employee location write allowed, got %d", rec.Code)
	}
}

func TestAuthorizeRequestDenies(t *testing.T) {
	mw := NewMiddleware(newTestEnforcer(t))

	handler := mw.AuthorizeRequest(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler should not run")
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, requestWithRole(http.MethodGet, "/location/all/latest", models.RoleCustomer))

	if rec.Code != http.StatusForbidden {
		t.Errorf("expected 403, got %d", rec.Code)
	}
}

func TestAuthorizeRequestNoClaims(t *testing.T) {
	mw := NewMiddleware(newTestEnforcer(t))

	handler := mw.AuthorizeRequest(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler should not run")
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/tickets", nil))

	if rec.Code != http.StatusForbidden {
		t.Errorf("expected 403, got %d", rec.Code)
	}
}

func TestRequireRole(t *testing.T) {
	mw := RequireRole(models.RoleAdmin)

	called := false
	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, requestWithRole(http.MethodGet, "/api/v1/payroll/slips", models.RoleAdmin))
	if !called {
		t.Error("expected admin allowed")
	}

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, requestWithRole(http.MethodGet, "/api/v1/payroll/slips", models.RoleEmployee))
	if rec.Code != http.StatusForbidden {
		t.Errorf("expected 403 for employee, got %d", rec.Code)
	}
}
