// Fieldtrace - Field Service Ticketing and Live Workforce Tracking
// Copyright 2026 Fieldtrace Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/fieldtrace/fieldtrace

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/fieldtrace/fieldtrace/internal/auth"
	"github.com/fieldtrace/fieldtrace/internal/authz"
	"github.com/fieldtrace/fieldtrace/internal/middleware"
)

// Router assembles the Chi route tree from the handler and the
// middleware stacks.
type Router struct {
	handler *Handler
	authMW  *auth.Middleware
	authzMW *authz.Middleware
	chiMW   *ChiMiddleware
}

// NewRouter wires the route tree dependencies.
func NewRouter(handler *Handler, authMW *auth.Middleware, authzMW *authz.Middleware, chiMW *ChiMiddleware) *Router {
	return &Router{
		handler: handler,
		authMW:  authMW,
		authzMW: authzMW,
		chiMW:   chiMW,
	}
}

// SetupChi builds the full route tree.
//
// The legacy tracking paths (/users/update-location, /location/*, /ws)
// are mounted at the root, outside /api/v1, because deployed mobile
// clients have them baked in.
func (router *Router) SetupChi() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(router.chiMW.CORS())

	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1/health", func(r chi.Router) {
		r.Use(router.chiMW.RateLimitHealth())
		r.Get("/", router.handler.Health)
		r.Get("/live", router.handler.HealthLive)
		r.Get("/ready", router.handler.HealthReady)
	})

	r.Route("/api/v1/auth", func(r chi.Router) {
		r.Use(router.chiMW.RateLimit())
		r.With(router.chiMW.RateLimitLogin()).Post("/login", router.handler.Login)
	})

	// Legacy tracking surface, paths preserved verbatim.
	r.Group(func(r chi.Router) {
		r.Use(router.chiMW.RateLimit())
		r.Use(middleware.PrometheusMetrics)
		r.Use(router.authMW.Authenticate)
		r.Use(router.authzMW.AuthorizeRequest)

		r.Put("/users/update-location", router.handler.UpdateLocationLegacy)
		r.Post("/location/update", router.handler.UpdateLocation)
		r.Get("/location/all/latest", router.handler.LatestLocations)
		r.Get("/location/history/{employeeId}", router.handler.LocationHistory)
		r.Get("/ws", router.handler.WebSocket)
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(router.chiMW.RateLimit())
		r.Use(middleware.PrometheusMetrics)
		r.Use(router.authMW.Authenticate)
		r.Use(router.authzMW.AuthorizeRequest)

		r.Route("/duty", func(r chi.Router) {
			r.Get("/status", router.handler.DutyStatus)
			r.Post("/start", router.handler.DutyStart)
			r.Post("/stop", router.handler.DutyStop)
		})

		r.Route("/tickets", func(r chi.Router) {
			r.Get("/", router.handler.ListTickets)
			r.Post("/", router.handler.CreateTicket)
			r.Get("/{id}", router.handler.GetTicket)
			r.Put("/{id}", router.handler.UpdateTicket)
			r.Post("/{id}/assign", router.handler.AssignTicket)
			r.Post("/{id}/start", router.handler.StartTicket)
			r.Post("/{id}/complete", router.handler.CompleteTicket)
			r.Post("/{id}/cancel", router.handler.CancelTicket)
			r.Put("/{id}/cost", router.handler.SetTicketCost)
			r.Get("/{id}/logs", router.handler.TicketLogs)
			r.Post("/{id}/logs", router.handler.AddTicketLog)
			r.Delete("/{id}", router.handler.DeleteTicket)
			r.Post("/{id}/restore", router.handler.RestoreTicket)
		})

		r.Route("/attendance", func(r chi.Router) {
			r.Post("/check-in", router.handler.CheckIn)
			r.Post("/check-out", router.handler.CheckOut)
			r.Get("/", router.handler.ListAttendance)
		})

		r.Route("/leave", func(r chi.Router) {
			r.Post("/", router.handler.CreateLeaveRequest)
			r.Get("/", router.handler.ListLeaveRequests)
			r.Get("/balance", router.handler.LeaveBalanceSummary)
			r.Post("/{id}/review", router.handler.ReviewLeaveRequest)
		})

		r.Route("/payroll/slips", func(r chi.Router) {
			r.Get("/", router.handler.ListSalarySlips)
			r.Post("/", router.handler.CreateSalarySlip)
		})

		r.Route("/employees", func(r chi.Router) {
			r.Get("/me", router.handler.Me)
			r.Get("/", router.handler.ListEmployees)
			r.Post("/", router.handler.CreateEmployee)
			r.Get("/{id}", router.handler.GetEmployee)
			r.Put("/{id}", router.handler.UpdateEmployee)
			r.Delete("/{id}", router.handler.DeleteEmployee)
		})
	})

	return r
}
