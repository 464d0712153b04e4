// Fieldtrace - Field Service Ticketing and Live Workforce Tracking
// Copyright 2026 Fieldtrace Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/fieldtrace/fieldtrace

package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/fieldtrace/fieldtrace/internal/auth"
	"github.com/fieldtrace/fieldtrace/internal/authz"
	"github.com/fieldtrace/fieldtrace/internal/config"
	"github.com/fieldtrace/fieldtrace/internal/database"
	"github.com/fieldtrace/fieldtrace/internal/duty"
	"github.com/fieldtrace/fieldtrace/internal/logging"
	"github.com/fieldtrace/fieldtrace/internal/models"
	"github.com/fieldtrace/fieldtrace/internal/presence"
	ws "github.com/fieldtrace/fieldtrace/internal/websocket"
)

func init() {
	logging.Init(logging.Config{Level: "disabled", Output: io.Discard})
}

type testServer struct {
	router  http.Handler
	db      *database.DB
	duty    *duty.Service
	tracker *presence.Tracker
	jwt     *auth.JWTManager
	hasher  *auth.PasswordHasher
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	cfg := &config.Config{
		Security: config.SecurityConfig{
			JWTSecret:         "test-secret-0123456789abcdef0123456789abcdef",
			SessionTimeout:    time.Hour,
			RateLimitDisabled: true,
			CORSOrigins:       []string{"*"},
		},
		Tracking: config.TrackingConfig{
			OnlineThreshold:   2 * time.Minute,
			FlushInterval:     time.Hour,
			MinUpdateInterval: time.Millisecond,
			UpdateBurst:       100,
		},
		Duty: config.DutyConfig{MaxSessionAge: 12 * time.Hour},
		API: config.APIConfig{
			DefaultPageSize: 20,
			MaxPageSize:     100,
			RosterCacheTTL:  time.Minute,
		},
	}

	db, err := database.New(&config.DatabaseConfig{
		Path:      filepath.Join(t.TempDir(), "fieldtrace.db"),
		MaxMemory: "256MB",
		Threads:   2,
	})
	if err != nil {
		t.Fatalf("database.New error: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	tracker := presence.NewTracker(cfg.Tracking.OnlineThreshold, cfg.Tracking.FlushInterval, presence.WithFlusher(db))
	dutySvc := duty.NewService(duty.NewMemoryStore(), cfg.Duty.MaxSessionAge)

	jwtManager, err := auth.NewJWTManager(&cfg.Security)
	if err != nil {
		t.Fatalf("NewJWTManager error: %v", err)
	}
	hasher := auth.NewPasswordHasher(bcrypt.MinCost)

	hub := ws.NewHub(nil)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go func() { _ = hub.RunWithContext(ctx) }()

	handler := NewHandler(db, tracker, dutySvc, hub, cfg, jwtManager, hasher, nil)

	enforcer, err := authz.NewEnforcer(nil)
	if err != nil {
		t.Fatalf("NewEnforcer error: %v", err)
	}

	router := NewRouter(handler, auth.NewMiddleware(jwtManager), authz.NewMiddleware(enforcer), NewChiMiddleware(&cfg.Security)).SetupChi()

	return &testServer{
		router:  router,
		db:      db,
		duty:    dutySvc,
		tracker: tracker,
		jwt:     jwtManager,
		hasher:  hasher,
	}
}

// seedAccount creates an account with the given password and returns it
// with a bearer token.
func (s *testServer) seedAccount(t *testing.T, username, password string, role models.Role) (models.Employee, string) {
	t.Helper()
	hash, err := s.hasher.Hash(password)
	if err != nil {
		t.Fatalf("Hash error: %v", err)
	}
	emp := &models.Employee{
		Username:     username,
		Email:        username + "@example.com",
		FullName:     "Test " + username,
		Role:         role,
		PasswordHash: hash,
		Active:       true,
	}
	if err := s.db.CreateEmployee(context.Background(), emp); err != nil {
		t.Fatalf("CreateEmployee(%s) error: %v", username, err)
	}
	token, _, err := s.jwt.GenerateToken(emp.ID, emp.Username, emp.Role, false)
	if err != nil {
		t.Fatalf("GenerateToken error: %v", err)
	}
	return *emp, token
}

func (s *testServer) do(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal request body: %v", err)
		}
		buf = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

// decodeEnvelope unmarshals the standard response envelope and re-decodes
// data into out if non-nil.
func decodeEnvelope(t *testing.T, w *httptest.ResponseRecorder, out interface{}) models.APIResponse {
	t.Helper()
	var envelope models.APIResponse
	if err := json.Unmarshal(w.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("unmarshal envelope: %v\nbody: %s", err, w.Body.String())
	}
	if out != nil && envelope.Data != nil {
		raw, err := json.Marshal(envelope.Data)
		if err != nil {
			t.Fatalf("remarshal data: %v", err)
		}
		if err := json.Unmarshal(raw, out); err != nil {
			t.Fatalf("unmarshal data: %v", err)
		}
	}
	return envelope
}

func errorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	envelope := decodeEnvelope(t, w, nil)
	if envelope.Error == nil {
		t.Fatalf("expected error envelope, body: %s", w.Body.String())
	}
	return envelope.Error.Code
}

func TestLoginAndMe(t *testing.T) {
	s := newTestServer(t)
	emp, _ := s.seedAccount(t, "alice", "correct-horse-battery", models.RoleEmployee)

	w := s.do(t, http.MethodPost, "/api/v1/auth/login", "", models.LoginRequest{
		Username: "alice",
		Password: "correct-horse-battery",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("login status = %d, body: %s", w.Code, w.Body.String())
	}
	var login models.LoginResponse
	decodeEnvelope(t, w, &login)
	if login.Token == "" || login.UserID != emp.ID || login.Role != models.RoleEmployee {
		t.Errorf("unexpected login response: %+v", login)
	}

	w = s.do(t, http.MethodGet, "/api/v1/employees/me", login.Token, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("me status = %d, body: %s", w.Code, w.Body.String())
	}
	var me models.Employee
	decodeEnvelope(t, w, &me)
	if me.ID != emp.ID || me.Username != "alice" {
		t.Errorf("me = %+v, want id=%s", me, emp.ID)
	}
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	s := newTestServer(t)
	s.seedAccount(t, "alice", "correct-horse-battery", models.RoleEmployee)

	tests := []struct {
		name     string
		username string
		password string
	}{
		{"wrong password", "alice", "wrong-password-here"},
		{"unknown user", "nobody", "correct-horse-battery"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := s.do(t, http.MethodPost, "/api/v1/auth/login", "", models.LoginRequest{
				Username: tt.username,
				Password: tt.password,
			})
			if w.Code != http.StatusUnauthorized {
				t.Errorf("status = %d, want 401", w.Code)
			}
		})
	}
}

func TestUnauthenticatedRequestsRejected(t *testing.T) {
	s := newTestServer(t)
	w := s.do(t, http.MethodGet, "/api/v1/employees/me", "", nil)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", w.Code)
	}
}

func TestLocationIngestRequiresDuty(t *testing.T) {
	s := newTestServer(t)
	emp, token := s.seedAccount(t, "alice", "correct-horse-battery", models.RoleEmployee)

	update := models.LocationUpdate{
		Lat:             40.4168,
		Lng:             -3.7038,
		Accuracy:        5,
		TimestampClient: time.Now().UnixMilli(),
	}
	w := s.do(t, http.MethodPost, "/location/update", token, update)
	if w.Code != http.StatusConflict {
		t.Fatalf("off-duty status = %d, want 409, body: %s", w.Code, w.Body.String())
	}

	if _, _, err := s.duty.Start(context.Background(), emp.ID); err != nil {
		t.Fatalf("duty.Start error: %v", err)
	}

	w = s.do(t, http.MethodPost, "/location/update", token, update)
	if w.Code != http.StatusOK {
		t.Fatalf("on-duty status = %d, body: %s", w.Code, w.Body.String())
	}
	var rec models.PresenceRecord
	decodeEnvelope(t, w, &rec)
	if rec.EmployeeID != emp.ID || rec.Lat != update.Lat {
		t.Errorf("record = %+v, want employee=%s lat=%v", rec, emp.ID, update.Lat)
	}
}

func TestLocationIngestWireBody(t *testing.T) {
	s := newTestServer(t)
	emp, token := s.seedAccount(t, "alice", "correct-horse-battery", models.RoleEmployee)
	if _, _, err := s.duty.Start(context.Background(), emp.ID); err != nil {
		t.Fatalf("duty.Start error: %v", err)
	}

	// The wire body carries no employeeId; identity comes from the
	// token alone.
	body := json.RawMessage(fmt.Sprintf(`{"lat":40.4168,"lng":-3.7038,"accuracy":5,"timestampClient":%d}`,
		time.Now().UnixMilli()-60000))
	w := s.do(t, http.MethodPost, "/location/update", token, body)
	if w.Code != http.StatusOK {
		t.Fatalf("wire body status = %d, body: %s", w.Code, w.Body.String())
	}
	var rec models.PresenceRecord
	decodeEnvelope(t, w, &rec)
	if rec.EmployeeID != emp.ID {
		t.Errorf("record employee = %q, want token identity %s", rec.EmployeeID, emp.ID)
	}

	// Zero and extreme coordinates are legitimate positions.
	base := time.Now().UnixMilli() - 30000
	boundaries := []struct{ lat, lng float64 }{
		{0, 0},
		{0, 109.33},
		{90, 180},
		{-90, -180},
	}
	for i, p := range boundaries {
		w := s.do(t, http.MethodPost, "/location/update", token, models.LocationUpdate{
			Lat: p.lat, Lng: p.lng, TimestampClient: base + int64(i),
		})
		if w.Code != http.StatusOK {
			t.Errorf("lat=%v lng=%v status = %d, body: %s", p.lat, p.lng, w.Code, w.Body.String())
		}
	}

	// Out-of-range coordinates and negative stamps stay rejected.
	w = s.do(t, http.MethodPost, "/location/update", token, json.RawMessage(`{"lat":90.1,"lng":0,"timestampClient":1}`))
	if w.Code != http.StatusBadRequest {
		t.Errorf("out-of-range latitude status = %d, want 400", w.Code)
	}
	w = s.do(t, http.MethodPost, "/location/update", token, json.RawMessage(`{"lat":1,"lng":1,"timestampClient":-5}`))
	if w.Code != http.StatusBadRequest {
		t.Errorf("negative stamp status = %d, want 400", w.Code)
	}

	// An unstamped report takes the server receive time.
	w = s.do(t, http.MethodPost, "/location/update", token, json.RawMessage(`{"lat":41.0,"lng":-3.5}`))
	if w.Code != http.StatusOK {
		t.Fatalf("unstamped status = %d, body: %s", w.Code, w.Body.String())
	}
	decodeEnvelope(t, w, &rec)
	if rec.TimestampClient == 0 {
		t.Error("unstamped report should resolve to server receive time")
	}
}

func TestLocationIngestRejectsStaleUpdate(t *testing.T) {
	s := newTestServer(t)
	emp, token := s.seedAccount(t, "alice", "correct-horse-battery", models.RoleEmployee)
	if _, _, err := s.duty.Start(context.Background(), emp.ID); err != nil {
		t.Fatalf("duty.Start error: %v", err)
	}

	now := time.Now().UnixMilli()
	w := s.do(t, http.MethodPost, "/location/update", token, models.LocationUpdate{
		Lat: 40.0, Lng: -3.0, TimestampClient: now,
	})
	if w.Code != http.StatusOK {
		t.Fatalf("first update status = %d, body: %s", w.Code, w.Body.String())
	}

	w = s.do(t, http.MethodPost, "/location/update", token, models.LocationUpdate{
		Lat: 41.0, Lng: -4.0, TimestampClient: now - 5000,
	})
	if w.Code != http.StatusConflict {
		t.Fatalf("stale update status = %d, want 409", w.Code)
	}
	if code := errorCode(t, w); code != "STALE_UPDATE" {
		t.Errorf("error code = %s, want STALE_UPDATE", code)
	}

	// Equal timestamps overwrite.
	w = s.do(t, http.MethodPost, "/location/update", token, models.LocationUpdate{
		Lat: 42.0, Lng: -5.0, TimestampClient: now,
	})
	if w.Code != http.StatusOK {
		t.Errorf("equal-timestamp status = %d, want 200", w.Code)
	}
}

func TestLegacyUpdateLocationEndpoint(t *testing.T) {
	s := newTestServer(t)
	emp, token := s.seedAccount(t, "alice", "correct-horse-battery", models.RoleEmployee)
	if _, _, err := s.duty.Start(context.Background(), emp.ID); err != nil {
		t.Fatalf("duty.Start error: %v", err)
	}

	w := s.do(t, http.MethodPut, "/users/update-location", token, map[string]interface{}{
		"coordinates": []float64{-3.7038, 40.4168},
		"accuracy":    8.5,
	})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body: %s", w.Code, w.Body.String())
	}
	var rec models.PresenceRecord
	decodeEnvelope(t, w, &rec)
	if rec.Lat != 40.4168 || rec.Lng != -3.7038 {
		t.Errorf("coordinates swapped or lost: %+v", rec)
	}
	if rec.TimestampClient == 0 {
		t.Error("legacy update without timestamp should default to server time")
	}
}

func TestLatestLocationsAdminOnlyAndCached(t *testing.T) {
	s := newTestServer(t)
	_, adminToken := s.seedAccount(t, "admin", "correct-horse-battery", models.RoleAdmin)
	emp, empToken := s.seedAccount(t, "alice", "correct-horse-battery", models.RoleEmployee)

	if w := s.do(t, http.MethodGet, "/location/all/latest", empToken, nil); w.Code != http.StatusForbidden {
		t.Errorf("employee roster status = %d, want 403", w.Code)
	}

	if _, _, err := s.duty.Start(context.Background(), emp.ID); err != nil {
		t.Fatalf("duty.Start error: %v", err)
	}
	w := s.do(t, http.MethodPost, "/location/update", empToken, models.LocationUpdate{
		Lat: 40.0, Lng: -3.0, TimestampClient: time.Now().UnixMilli(),
	})
	if w.Code != http.StatusOK {
		t.Fatalf("ingest status = %d, body: %s", w.Code, w.Body.String())
	}
	if err := s.tracker.Flush(context.Background()); err != nil {
		t.Fatalf("tracker.Flush error: %v", err)
	}

	w = s.do(t, http.MethodGet, "/location/all/latest", adminToken, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("roster status = %d, body: %s", w.Code, w.Body.String())
	}
	var roster []models.LatestLocation
	envelope := decodeEnvelope(t, w, &roster)
	if envelope.Metadata.Cached {
		t.Error("first roster read should not be cached")
	}
	if len(roster) != 1 || roster[0].Employee.ID != emp.ID || !roster[0].Online {
		t.Errorf("roster = %+v, want one online entry for %s", roster, emp.ID)
	}

	w = s.do(t, http.MethodGet, "/location/all/latest", adminToken, nil)
	if envelope := decodeEnvelope(t, w, nil); !envelope.Metadata.Cached {
		t.Error("second roster read should be served from cache")
	}
}

func TestLocationHistoryScopedToSelf(t *testing.T) {
	s := newTestServer(t)
	alice, aliceToken := s.seedAccount(t, "alice", "correct-horse-battery", models.RoleEmployee)
	bob, _ := s.seedAccount(t, "bob", "correct-horse-battery", models.RoleEmployee)
	_, adminToken := s.seedAccount(t, "admin", "correct-horse-battery", models.RoleAdmin)

	if w := s.do(t, http.MethodGet, "/location/history/"+bob.ID, aliceToken, nil); w.Code != http.StatusForbidden {
		t.Errorf("cross-employee history status = %d, want 403", w.Code)
	}
	if w := s.do(t, http.MethodGet, "/location/history/"+alice.ID, aliceToken, nil); w.Code != http.StatusOK {
		t.Errorf("own history status = %d, want 200", w.Code)
	}
	if w := s.do(t, http.MethodGet, "/location/history/"+alice.ID, adminToken, nil); w.Code != http.StatusOK {
		t.Errorf("admin history status = %d, want 200", w.Code)
	}
}

func TestDutyHandshake(t *testing.T) {
	s := newTestServer(t)
	_, token := s.seedAccount(t, "alice", "correct-horse-battery", models.RoleEmployee)

	var status models.DutyStatusResponse
	w := s.do(t, http.MethodGet, "/api/v1/duty/status", token, nil)
	decodeEnvelope(t, w, &status)
	if status.OnDuty {
		t.Error("fresh account should be off duty")
	}
	if status.ServerNow.IsZero() {
		t.Error("handshake must carry the server clock")
	}

	if w := s.do(t, http.MethodPost, "/api/v1/duty/start", token, nil); w.Code != http.StatusCreated {
		t.Fatalf("duty start status = %d, want 201, body: %s", w.Code, w.Body.String())
	}
	// Starting again is idempotent and returns the existing session.
	if w := s.do(t, http.MethodPost, "/api/v1/duty/start", token, nil); w.Code != http.StatusOK {
		t.Errorf("repeat duty start status = %d, want 200", w.Code)
	}

	w = s.do(t, http.MethodGet, "/api/v1/duty/status", token, nil)
	decodeEnvelope(t, w, &status)
	if !status.OnDuty || status.Session == nil {
		t.Errorf("expected active session, got %+v", status)
	}

	if w := s.do(t, http.MethodPost, "/api/v1/duty/stop", token, nil); w.Code != http.StatusOK {
		t.Errorf("duty stop status = %d, want 200", w.Code)
	}
	w = s.do(t, http.MethodGet, "/api/v1/duty/status", token, nil)
	decodeEnvelope(t, w, &status)
	if status.OnDuty {
		t.Error("stopped account should be off duty")
	}
}

func TestTicketLifecycle(t *testing.T) {
	s := newTestServer(t)
	_, adminToken := s.seedAccount(t, "admin", "correct-horse-battery", models.RoleAdmin)
	employee, employeeToken := s.seedAccount(t, "tech", "correct-horse-battery", models.RoleEmployee)
	_, customerToken := s.seedAccount(t, "cust", "correct-horse-battery", models.RoleCustomer)

	w := s.do(t, http.MethodPost, "/api/v1/tickets", customerToken, map[string]string{
		"title":       "Boiler not heating",
		"description": "No hot water since yesterday evening.",
		"address":     "12 Elm Street",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("create ticket status = %d, body: %s", w.Code, w.Body.String())
	}
	var ticket models.Ticket
	decodeEnvelope(t, w, &ticket)
	if ticket.Status != models.TicketOpen {
		t.Fatalf("new ticket status = %s, want OPEN", ticket.Status)
	}

	w = s.do(t, http.MethodPost, fmt.Sprintf("/api/v1/tickets/%s/assign", ticket.ID), adminToken, map[string]string{
		"assigneeId": employee.ID,
	})
	if w.Code != http.StatusOK {
		t.Fatalf("assign status = %d, body: %s", w.Code, w.Body.String())
	}

	if w := s.do(t, http.MethodPost, fmt.Sprintf("/api/v1/tickets/%s/start", ticket.ID), employeeToken, nil); w.Code != http.StatusOK {
		t.Fatalf("start status = %d, body: %s", w.Code, w.Body.String())
	}
	if w := s.do(t, http.MethodPost, fmt.Sprintf("/api/v1/tickets/%s/complete", ticket.ID), employeeToken, nil); w.Code != http.StatusOK {
		t.Fatalf("complete status = %d, body: %s", w.Code, w.Body.String())
	}

	// A completed ticket cannot be cancelled.
	w = s.do(t, http.MethodPost, fmt.Sprintf("/api/v1/tickets/%s/cancel", ticket.ID), customerToken, nil)
	if w.Code != http.StatusConflict {
		t.Errorf("cancel-after-complete status = %d, want 409", w.Code)
	}

	w = s.do(t, http.MethodGet, fmt.Sprintf("/api/v1/tickets/%s/logs", ticket.ID), adminToken, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("logs status = %d, body: %s", w.Code, w.Body.String())
	}
	var logs []models.TicketLog
	decodeEnvelope(t, w, &logs)
	if len(logs) < 3 {
		t.Errorf("expected at least create/assign/transition logs, got %d", len(logs))
	}
}

func TestTicketOwnershipScoping(t *testing.T) {
	s := newTestServer(t)
	_, adminToken := s.seedAccount(t, "admin", "correct-horse-battery", models.RoleAdmin)
	_, aliceToken := s.seedAccount(t, "alice", "correct-horse-battery", models.RoleCustomer)
	_, bobToken := s.seedAccount(t, "bob", "correct-horse-battery", models.RoleCustomer)

	w := s.do(t, http.MethodPost, "/api/v1/tickets", aliceToken, map[string]string{
		"title":       "Leaking tap",
		"description": "Kitchen tap drips constantly.",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("create status = %d, body: %s", w.Code, w.Body.String())
	}
	var ticket models.Ticket
	decodeEnvelope(t, w, &ticket)

	if w := s.do(t, http.MethodGet, "/api/v1/tickets/"+ticket.ID, bobToken, nil); w.Code != http.StatusForbidden {
		t.Errorf("other customer's read status = %d, want 403", w.Code)
	}
	if w := s.do(t, http.MethodGet, "/api/v1/tickets/"+ticket.ID, aliceToken, nil); w.Code != http.StatusOK {
		t.Errorf("owner read status = %d, want 200", w.Code)
	}
	if w := s.do(t, http.MethodGet, "/api/v1/tickets/"+ticket.ID, adminToken, nil); w.Code != http.StatusOK {
		t.Errorf("admin read status = %d, want 200", w.Code)
	}

	// Customers cannot drive worker transitions.
	if w := s.do(t, http.MethodPost, fmt.Sprintf("/api/v1/tickets/%s/start", ticket.ID), aliceToken, nil); w.Code != http.StatusForbidden {
		t.Errorf("customer start status = %d, want 403", w.Code)
	}
}

func TestTicketEditAndNotes(t *testing.T) {
	s := newTestServer(t)
	_, adminToken := s.seedAccount(t, "admin", "correct-horse-battery", models.RoleAdmin)
	employee, employeeToken := s.seedAccount(t, "tech", "correct-horse-battery", models.RoleEmployee)
	_, customerToken := s.seedAccount(t, "cust", "correct-horse-battery", models.RoleCustomer)

	w := s.do(t, http.MethodPost, "/api/v1/tickets", customerToken, map[string]string{
		"title":       "Fuse box sparking",
		"description": "Sparks when the oven turns on.",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("create status = %d, body: %s", w.Code, w.Body.String())
	}
	var ticket models.Ticket
	decodeEnvelope(t, w, &ticket)

	w = s.do(t, http.MethodPut, "/api/v1/tickets/"+ticket.ID, customerToken, map[string]string{
		"title":       "Fuse box sparking",
		"description": "Sparks when the oven turns on. Smell of burning plastic.",
		"address":     "3 Oak Lane",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("owner edit status = %d, body: %s", w.Code, w.Body.String())
	}
	var edited models.Ticket
	decodeEnvelope(t, w, &edited)
	if edited.Address != "3 Oak Lane" {
		t.Errorf("address = %q after edit", edited.Address)
	}

	w = s.do(t, http.MethodPost, "/api/v1/tickets/"+ticket.ID+"/logs", customerToken, map[string]string{
		"note": "Please ring the bell twice, the buzzer is broken.",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("note status = %d, body: %s", w.Code, w.Body.String())
	}
	var entry models.TicketLog
	decodeEnvelope(t, w, &entry)
	if entry.Action != "note" {
		t.Errorf("log action = %q, want note", entry.Action)
	}

	w = s.do(t, http.MethodPost, fmt.Sprintf("/api/v1/tickets/%s/assign", ticket.ID), adminToken, map[string]string{
		"assigneeId": employee.ID,
	})
	if w.Code != http.StatusOK {
		t.Fatalf("assign status = %d, body: %s", w.Code, w.Body.String())
	}

	// Once assigned the ticket is no longer customer-editable, and the
	// assignee cannot rewrite the customer's description either.
	w = s.do(t, http.MethodPut, "/api/v1/tickets/"+ticket.ID, customerToken, map[string]string{
		"title": "x", "description": "y",
	})
	if w.Code != http.StatusConflict {
		t.Errorf("edit-after-assign status = %d, want 409", w.Code)
	}
	w = s.do(t, http.MethodPut, "/api/v1/tickets/"+ticket.ID, employeeToken, map[string]string{
		"title": "x", "description": "y",
	})
	if w.Code != http.StatusForbidden {
		t.Errorf("employee edit status = %d, want 403", w.Code)
	}

	// The assignee may still append notes.
	w = s.do(t, http.MethodPost, "/api/v1/tickets/"+ticket.ID+"/logs", employeeToken, map[string]string{
		"note": "Parts ordered, revisit Thursday.",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("assignee note status = %d, body: %s", w.Code, w.Body.String())
	}

	w = s.do(t, http.MethodGet, "/api/v1/tickets/"+ticket.ID+"/logs", adminToken, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("logs status = %d, body: %s", w.Code, w.Body.String())
	}
	var logs []models.TicketLog
	decodeEnvelope(t, w, &logs)
	notes := 0
	for _, l := range logs {
		if l.Action == "note" {
			notes++
		}
	}
	if notes != 2 {
		t.Errorf("note entries = %d, want 2", notes)
	}
}

func TestAttendanceCheckInOnce(t *testing.T) {
	s := newTestServer(t)
	_, token := s.seedAccount(t, "alice", "correct-horse-battery", models.RoleEmployee)

	if w := s.do(t, http.MethodPost, "/api/v1/attendance/check-out", token, nil); w.Code != http.StatusConflict {
		t.Errorf("check-out before check-in status = %d, want 409", w.Code)
	}

	w := s.do(t, http.MethodPost, "/api/v1/attendance/check-in", token, map[string]float64{
		"lat": 40.0, "lng": -3.0,
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("check-in status = %d, body: %s", w.Code, w.Body.String())
	}
	if w := s.do(t, http.MethodPost, "/api/v1/attendance/check-in", token, nil); w.Code != http.StatusConflict {
		t.Errorf("second check-in status = %d, want 409", w.Code)
	}
	if w := s.do(t, http.MethodPost, "/api/v1/attendance/check-out", token, nil); w.Code != http.StatusOK {
		t.Errorf("check-out status = %d, want 200", w.Code)
	}

	w = s.do(t, http.MethodGet, "/api/v1/attendance", token, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("list status = %d, body: %s", w.Code, w.Body.String())
	}
	var records []models.Attendance
	decodeEnvelope(t, w, &records)
	if len(records) != 1 {
		t.Errorf("attendance records = %d, want 1", len(records))
	}
}

func TestLeaveReviewFlow(t *testing.T) {
	s := newTestServer(t)
	admin, adminToken := s.seedAccount(t, "admin", "correct-horse-battery", models.RoleAdmin)
	_, empToken := s.seedAccount(t, "alice", "correct-horse-battery", models.RoleEmployee)

	w := s.do(t, http.MethodPost, "/api/v1/leave", empToken, map[string]string{
		"type":      "SICK",
		"startDate": "2026-10-01",
		"endDate":   "2026-10-03",
		"reason":    "family visit",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("create leave status = %d, body: %s", w.Code, w.Body.String())
	}
	var leave models.LeaveRequest
	decodeEnvelope(t, w, &leave)
	if leave.Status != models.LeavePending {
		t.Fatalf("leave status = %s, want PENDING", leave.Status)
	}
	if leave.Type != models.LeaveSick {
		t.Errorf("leave type = %s, want SICK", leave.Type)
	}

	// An unknown type is rejected, a missing one defaults to annual.
	w = s.do(t, http.MethodPost, "/api/v1/leave", empToken, map[string]string{
		"type": "SABBATICAL", "startDate": "2026-10-01", "endDate": "2026-10-01", "reason": "no",
	})
	if w.Code != http.StatusBadRequest {
		t.Errorf("unknown type status = %d, want 400", w.Code)
	}
	w = s.do(t, http.MethodPost, "/api/v1/leave", empToken, map[string]string{
		"startDate": "2026-10-06", "endDate": "2026-10-06", "reason": "errand",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("untyped create status = %d, body: %s", w.Code, w.Body.String())
	}
	var untyped models.LeaveRequest
	decodeEnvelope(t, w, &untyped)
	if untyped.Type != models.LeaveAnnual {
		t.Errorf("default leave type = %s, want ANNUAL", untyped.Type)
	}

	// Employees cannot review.
	if w := s.do(t, http.MethodPost, "/api/v1/leave/"+leave.ID+"/review", empToken, map[string]bool{"approve": true}); w.Code != http.StatusForbidden {
		t.Errorf("employee review status = %d, want 403", w.Code)
	}

	w = s.do(t, http.MethodPost, "/api/v1/leave/"+leave.ID+"/review", adminToken, map[string]interface{}{
		"approve": true, "note": "enjoy",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("review status = %d, body: %s", w.Code, w.Body.String())
	}
	var reviewed models.LeaveRequest
	decodeEnvelope(t, w, &reviewed)
	if reviewed.Status != models.LeaveApproved || reviewed.ReviewerID != admin.ID {
		t.Errorf("reviewed = %+v, want APPROVED by %s", reviewed, admin.ID)
	}

	// Reviews are final.
	w = s.do(t, http.MethodPost, "/api/v1/leave/"+leave.ID+"/review", adminToken, map[string]bool{"approve": false})
	if w.Code != http.StatusConflict {
		t.Errorf("second review status = %d, want 409", w.Code)
	}
}

func TestLeaveRejectsInvertedDates(t *testing.T) {
	s := newTestServer(t)
	_, token := s.seedAccount(t, "alice", "correct-horse-battery", models.RoleEmployee)

	w := s.do(t, http.MethodPost, "/api/v1/leave", token, map[string]string{
		"startDate": "2026-10-05",
		"endDate":   "2026-10-01",
		"reason":    "time travel",
	})
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestLeaveBalanceSummary(t *testing.T) {
	s := newTestServer(t)
	_, adminToken := s.seedAccount(t, "admin", "correct-horse-battery", models.RoleAdmin)
	alice, aliceToken := s.seedAccount(t, "alice", "correct-horse-battery", models.RoleEmployee)

	for _, span := range []struct {
		from, to string
		approve  bool
	}{
		{"2026-10-01", "2026-10-03", true},
		{"2026-12-30", "2027-01-02", true},
		{"2026-11-10", "2026-11-10", false},
	} {
		w := s.do(t, http.MethodPost, "/api/v1/leave", aliceToken, map[string]string{
			"startDate": span.from, "endDate": span.to, "reason": "personal",
		})
		if w.Code != http.StatusCreated {
			t.Fatalf("create leave status = %d, body: %s", w.Code, w.Body.String())
		}
		var leave models.LeaveRequest
		decodeEnvelope(t, w, &leave)
		if span.approve {
			w = s.do(t, http.MethodPost, "/api/v1/leave/"+leave.ID+"/review", adminToken, map[string]bool{"approve": true})
			if w.Code != http.StatusOK {
				t.Fatalf("review status = %d, body: %s", w.Code, w.Body.String())
			}
		}
	}

	// The year-straddling request contributes only its 2026 days.
	w := s.do(t, http.MethodGet, "/api/v1/leave/balance?year=2026", aliceToken, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("balance status = %d, body: %s", w.Code, w.Body.String())
	}
	var balance LeaveBalance
	decodeEnvelope(t, w, &balance)
	if balance.EmployeeID != alice.ID || balance.Year != 2026 {
		t.Fatalf("balance scope = %+v", balance)
	}
	if balance.ApprovedDays != 5 {
		t.Errorf("approved days = %d, want 5", balance.ApprovedDays)
	}
	if balance.PendingDays != 1 {
		t.Errorf("pending days = %d, want 1", balance.PendingDays)
	}

	w = s.do(t, http.MethodGet, "/api/v1/leave/balance?year=2027", aliceToken, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("balance status = %d, body: %s", w.Code, w.Body.String())
	}
	decodeEnvelope(t, w, &balance)
	if balance.ApprovedDays != 2 {
		t.Errorf("2027 approved days = %d, want 2", balance.ApprovedDays)
	}

	// Admins can inspect any employee's balance.
	w = s.do(t, http.MethodGet, "/api/v1/leave/balance?year=2026&employeeId="+alice.ID, adminToken, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("admin balance status = %d, body: %s", w.Code, w.Body.String())
	}
	decodeEnvelope(t, w, &balance)
	if balance.EmployeeID != alice.ID {
		t.Errorf("admin balance employee = %s, want %s", balance.EmployeeID, alice.ID)
	}
}

func TestPayrollSlips(t *testing.T) {
	s := newTestServer(t)
	_, adminToken := s.seedAccount(t, "admin", "correct-horse-battery", models.RoleAdmin)
	alice, aliceToken := s.seedAccount(t, "alice", "correct-horse-battery", models.RoleEmployee)
	bob, _ := s.seedAccount(t, "bob", "correct-horse-battery", models.RoleEmployee)

	create := map[string]interface{}{
		"employeeId": alice.ID,
		"period":     "2026-08",
		"baseSalary": 2400.0,
		"allowances": 150.0,
		"deductions": 50.0,
	}
	w := s.do(t, http.MethodPost, "/api/v1/payroll/slips", adminToken, create)
	if w.Code != http.StatusCreated {
		t.Fatalf("create slip status = %d, body: %s", w.Code, w.Body.String())
	}
	var slip models.SalarySlip
	decodeEnvelope(t, w, &slip)
	if slip.NetPay != 2500.0 {
		t.Errorf("netPay = %v, want 2500", slip.NetPay)
	}

	if w := s.do(t, http.MethodPost, "/api/v1/payroll/slips", adminToken, create); w.Code != http.StatusConflict {
		t.Errorf("duplicate slip status = %d, want 409", w.Code)
	}

	// Employees only read their own slips, regardless of query params.
	w = s.do(t, http.MethodGet, "/api/v1/payroll/slips?employeeId="+bob.ID, aliceToken, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("list status = %d, body: %s", w.Code, w.Body.String())
	}
	var slips []models.SalarySlip
	decodeEnvelope(t, w, &slips)
	if len(slips) != 1 || slips[0].EmployeeID != alice.ID {
		t.Errorf("slips = %+v, want only alice's", slips)
	}

	// Employees cannot issue slips even with an admin-shaped body.
	if w := s.do(t, http.MethodPost, "/api/v1/payroll/slips", aliceToken, create); w.Code != http.StatusForbidden {
		t.Errorf("employee create slip status = %d, want 403", w.Code)
	}
}

func TestEmployeeAdministration(t *testing.T) {
	s := newTestServer(t)
	admin, adminToken := s.seedAccount(t, "admin", "correct-horse-battery", models.RoleAdmin)

	w := s.do(t, http.MethodPost, "/api/v1/employees", adminToken, map[string]string{
		"username": "carol",
		"email":    "carol@example.com",
		"password": "correct-horse-battery",
		"fullName": "Carol Field",
		"role":     "EMPLOYEE",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("create status = %d, body: %s", w.Code, w.Body.String())
	}
	var carol models.Employee
	decodeEnvelope(t, w, &carol)
	if carol.ID == "" || carol.Role != models.RoleEmployee {
		t.Fatalf("created = %+v", carol)
	}

	// Username collision.
	w = s.do(t, http.MethodPost, "/api/v1/employees", adminToken, map[string]string{
		"username": "carol",
		"email":    "other@example.com",
		"password": "correct-horse-battery",
		"fullName": "Other Carol",
		"role":     "EMPLOYEE",
	})
	if w.Code != http.StatusConflict {
		t.Errorf("duplicate username status = %d, want 409", w.Code)
	}

	active := false
	w = s.do(t, http.MethodPut, "/api/v1/employees/"+carol.ID, adminToken, map[string]interface{}{
		"fullName": "Carol A. Field",
		"active":   active,
	})
	if w.Code != http.StatusOK {
		t.Fatalf("update status = %d, body: %s", w.Code, w.Body.String())
	}
	var updated models.Employee
	decodeEnvelope(t, w, &updated)
	if updated.FullName != "Carol A. Field" || updated.Active {
		t.Errorf("updated = %+v", updated)
	}

	if w := s.do(t, http.MethodDelete, "/api/v1/employees/"+admin.ID, adminToken, nil); w.Code != http.StatusConflict {
		t.Errorf("self-delete status = %d, want 409", w.Code)
	}
	if w := s.do(t, http.MethodDelete, "/api/v1/employees/"+carol.ID, adminToken, nil); w.Code != http.StatusOK {
		t.Errorf("delete status = %d, want 200", w.Code)
	}
}

func TestHealthEndpoints(t *testing.T) {
	s := newTestServer(t)

	for _, path := range []string{"/api/v1/health", "/api/v1/health/live", "/api/v1/health/ready"} {
		w := s.do(t, http.MethodGet, path, "", nil)
		if w.Code != http.StatusOK {
			t.Errorf("%s status = %d, want 200", path, w.Code)
		}
	}
}
