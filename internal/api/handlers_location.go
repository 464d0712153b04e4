// Fieldtrace - Field Service Ticketing and Live Workforce Tracking
// Copyright 2026 Fieldtrace Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/fieldtrace/fieldtrace

package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/fieldtrace/fieldtrace/internal/auth"
	"github.com/fieldtrace/fieldtrace/internal/events"
	"github.com/fieldtrace/fieldtrace/internal/logging"
	"github.com/fieldtrace/fieldtrace/internal/metrics"
	"github.com/fieldtrace/fieldtrace/internal/models"
	"github.com/fieldtrace/fieldtrace/internal/presence"
	"github.com/fieldtrace/fieldtrace/internal/validation"
	ws "github.com/fieldtrace/fieldtrace/internal/websocket"
)

// Ingest rejection reasons. These double as metric label values.
var (
	ErrOffDuty   = errors.New("employee is not on duty")
	ErrThrottled = errors.New("update rate exceeded")
)

// ingest is the single authoritative funnel for position reports. Both
// transport paths (REST and websocket) call it; nothing else writes to
// the presence map. Order of checks: shape, throttle, duty, then the
// monotonic apply.
func (h *Handler) ingest(ctx context.Context, update models.LocationUpdate, source string) (models.PresenceRecord, error) {
	start := time.Now()

	if verr := validation.ValidateStruct(&update); verr != nil {
		metrics.RecordIngest(source, "validation", time.Since(start))
		return models.PresenceRecord{}, fmt.Errorf("invalid update: %w", verr)
	}

	// Devices that do not stamp their reports take the receive time, so
	// the monotonic guard still orders them against stamped updates.
	if update.TimestampClient == 0 {
		update.TimestampClient = start.UnixMilli()
	}

	if !h.limiter.Allow(update.EmployeeID) {
		metrics.RecordIngest(source, "throttled", time.Since(start))
		return models.PresenceRecord{}, ErrThrottled
	}

	if !h.duty.OnDuty(ctx, update.EmployeeID) {
		metrics.RecordIngest(source, "off_duty", time.Since(start))
		return models.PresenceRecord{}, ErrOffDuty
	}

	rec, err := h.tracker.Apply(update, time.Now())
	if err != nil {
		metrics.RecordIngest(source, "stale", time.Since(start))
		return models.PresenceRecord{}, err
	}

	// Track history on the request path so a crash between flushes
	// cannot lose samples; the latest-position table rides the
	// tracker's batched flush.
	if err := h.db.InsertHistory(ctx, rec); err != nil {
		logging.Ctx(ctx).Error().Err(err).Str("employee_id", rec.EmployeeID).Msg("failed to persist history sample")
	}

	h.wsHub.BroadcastEmployeeLocation(rec)
	if err := h.publisher.Publish(ctx, events.TopicLocationAccepted, events.LocationAccepted{
		Record: rec,
		Source: source,
		Origin: events.InstanceID(),
	}); err != nil {
		logging.Ctx(ctx).Warn().Err(err).Msg("failed to publish location event")
	}

	metrics.RecordIngest(source, "", time.Since(start))
	return rec, nil
}

// IngestFromSocket adapts the funnel to the websocket hub's signature.
func (h *Handler) IngestFromSocket(ctx context.Context, update models.LocationUpdate) error {
	_, err := h.ingest(ctx, update, "websocket")
	return err
}

// respondIngestError maps funnel rejections onto the error envelope.
func respondIngestError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, presence.ErrStaleUpdate):
		respondError(w, http.StatusConflict, "STALE_UPDATE", "a newer position is already recorded", nil)
	case errors.Is(err, ErrOffDuty):
		respondError(w, http.StatusConflict, "CONFLICT", "tracking requires an active duty session", nil)
	case errors.Is(err, ErrThrottled):
		respondError(w, http.StatusTooManyRequests, "RATE_LIMIT_EXCEEDED", "position update rate exceeded", nil)
	default:
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), nil)
	}
}

// UpdateLocation is POST /location/update, the primary ingest path.
// The employee identity comes from the token, not the body.
func (h *Handler) UpdateLocation(w http.ResponseWriter, r *http.Request) {
	claims := auth.ClaimsFromContext(r.Context())
	if claims == nil {
		respondError(w, http.StatusUnauthorized, "AUTHENTICATION_ERROR", "missing token claims", nil)
		return
	}

	// The wire body carries no employeeId, so decode first and let the
	// funnel validate once the identity is filled in.
	var update models.LocationUpdate
	if !decodeJSON(w, r, &update) {
		return
	}
	update.EmployeeID = claims.EmployeeID()

	rec, err := h.ingest(r.Context(), update, "rest")
	if err != nil {
		respondIngestError(w, err)
		return
	}
	respondData(w, http.StatusOK, rec, time.Now())
}

// legacyLocationRequest is the GeoJSON-flavored body of the historical
// profile endpoint: coordinates ordered [lng, lat].
type legacyLocationRequest struct {
	Coordinates     []float64 `json:"coordinates" validate:"required,len=2"`
	Accuracy        float64   `json:"accuracy" validate:"gte=0"`
	TimestampClient int64     `json:"timestampClient"`
}

// UpdateLocationLegacy is PUT /users/update-location, kept for devices
// that still report through the profile endpoint. It forwards into the
// same funnel as POST /location/update.
func (h *Handler) UpdateLocationLegacy(w http.ResponseWriter, r *http.Request) {
	claims := auth.ClaimsFromContext(r.Context())
	if claims == nil {
		respondError(w, http.StatusUnauthorized, "AUTHENTICATION_ERROR", "missing token claims", nil)
		return
	}

	var req legacyLocationRequest
	if !decodeBody(w, r, &req) {
		return
	}

	// Old clients did not timestamp the profile write; the funnel
	// resolves a zero stamp to receive time.
	update := models.LocationUpdate{
		EmployeeID:      claims.EmployeeID(),
		Lng:             req.Coordinates[0],
		Lat:             req.Coordinates[1],
		Accuracy:        req.Accuracy,
		TimestampClient: req.TimestampClient,
	}

	rec, err := h.ingest(r.Context(), update, "rest")
	if err != nil {
		respondIngestError(w, err)
		return
	}
	respondData(w, http.StatusOK, rec, time.Now())
}

// LatestLocations is GET /location/all/latest: the map roster of every
// active employee's stored position with online classification. The
// response is cached briefly; the live view updates over the socket.
func (h *Handler) LatestLocations(w http.ResponseWriter, r *http.Request) {
	const cacheKey = "latest_locations"
	if cached, ok := h.rosterCache.Get(cacheKey); ok {
		respondCached(w, cached)
		return
	}

	start := time.Now()
	roster, err := h.db.LatestWithEmployees(r.Context(), time.Now(), h.tracker.Threshold())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "DATABASE_ERROR", "could not load latest locations", err)
		return
	}
	if roster == nil {
		roster = []models.LatestLocation{}
	}

	h.rosterCache.Set(cacheKey, roster)
	respondData(w, http.StatusOK, roster, start)
}

// LocationHistory is GET /location/history/{employeeId}?date=YYYY-MM-DD.
// Employees may fetch only their own track; admins anyone's.
func (h *Handler) LocationHistory(w http.ResponseWriter, r *http.Request) {
	claims := auth.ClaimsFromContext(r.Context())
	if claims == nil {
		respondError(w, http.StatusUnauthorized, "AUTHENTICATION_ERROR", "missing token claims", nil)
		return
	}

	employeeID := chi.URLParam(r, "employeeId")
	if claims.Role != models.RoleAdmin && employeeID != claims.EmployeeID() {
		respondError(w, http.StatusForbidden, "AUTHORIZATION_ERROR", "cannot read another employee's history", nil)
		return
	}

	date := r.URL.Query().Get("date")
	if date == "" {
		date = time.Now().UTC().Format("2006-01-02")
	}

	start := time.Now()
	points, err := h.db.HistoryByDate(r.Context(), employeeID, date)
	if err != nil {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "invalid date, expected YYYY-MM-DD", err)
		return
	}
	if points == nil {
		points = []models.HistoryPoint{}
	}
	respondData(w, http.StatusOK, points, start)
}

// WebSocket is GET /ws: upgrades the connection and hands it to the
// hub. Identity and role come from the token validated by the
// authentication middleware (header or token query parameter).
func (h *Handler) WebSocket(w http.ResponseWriter, r *http.Request) {
	claims := auth.ClaimsFromContext(r.Context())
	if claims == nil {
		respondError(w, http.StatusUnauthorized, "AUTHENTICATION_ERROR", "missing token claims", nil)
		return
	}

	upgrader := h.getUpgrader()
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		metrics.WSErrors.WithLabelValues("upgrade_failed").Inc()
		logging.Ctx(r.Context()).Error().Err(err).Msg("websocket upgrade failed")
		return
	}

	client := ws.NewClient(h.wsHub, conn, claims.EmployeeID(), claims.Role)
	client.Start()
}
