// Fieldtrace - Field Service Ticketing and Live Workforce Tracking
// Copyright 2026 Fieldtrace Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/fieldtrace/fieldtrace

package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/fieldtrace/fieldtrace/internal/metrics"
	"github.com/fieldtrace/fieldtrace/internal/models"
)

// ErrInvalidTransition is returned when a status change is not allowed
// by the ticket lifecycle.
var ErrInvalidTransition = errors.New("ticket status transition not allowed")

// TicketFilter narrows ListTickets results.
type TicketFilter struct {
	Status     models.TicketStatus
	AssigneeID string
	CustomerID string
	Deleted    bool
	Limit      int
	Offset     int
}

// CreateTicket inserts a new open ticket.
func (db *DB) CreateTicket(ctx context.Context, t *models.Ticket) error {
	if t.ID == "" {
		t.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	t.CreatedAt = now
	t.UpdatedAt = now
	t.Status = models.TicketOpen

	start := time.Now()
	_, err := db.conn.ExecContext(ctx, `
		INSERT INTO tickets (id, title, description, customer_id, assignee_id, status, estimated_cost, address, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.Title, t.Description, t.CustomerID, nullString(t.AssigneeID), string(t.Status), t.EstimatedCost, t.Address, t.CreatedAt, t.UpdatedAt)
	metrics.RecordDBQuery("INSERT", "tickets", time.Since(start), err)
	if err != nil {
		return fmt.Errorf("insert ticket: %w", err)
	}
	return nil
}

const ticketColumns = `id, title, description, customer_id, COALESCE(assignee_id, ''), status, estimated_cost, COALESCE(address, ''), created_at, updated_at, started_at, completed_at, deleted_at`

func scanTicket(row interface{ Scan(...interface{}) error }) (models.Ticket, error) {
	var t models.Ticket
	var status string
	var startedAt, completedAt, deletedAt sql.NullTime

	err := row.Scan(&t.ID, &t.Title, &t.Description, &t.CustomerID, &t.AssigneeID,
		&status, &t.EstimatedCost, &t.Address, &t.CreatedAt, &t.UpdatedAt,
		&startedAt, &completedAt, &deletedAt)
	if err != nil {
		return t, err
	}
	t.Status = models.TicketStatus(status)
	if startedAt.Valid {
		t.StartedAt = &startedAt.Time
	}
	if completedAt.Valid {
		t.CompletedAt = &completedAt.Time
	}
	if deletedAt.Valid {
		t.DeletedAt = &deletedAt.Time
	}
	return t, nil
}

// GetTicket returns one ticket, including soft-deleted ones so admins
// can inspect and restore them.
func (db *DB) GetTicket(ctx context.Context, id string) (models.Ticket, error) {
	start := time.Now()
	row := db.conn.QueryRowContext(ctx, `SELECT `+ticketColumns+` FROM tickets WHERE id = ?`, id)
	t, err := scanTicket(row)
	metrics.RecordDBQuery("SELECT", "tickets", time.Since(start), err)

	if errors.Is(err, sql.ErrNoRows) {
		return t, ErrNotFound
	}
	if err != nil {
		return t, fmt.Errorf("get ticket: %w", err)
	}
	return t, nil
}

// ListTickets returns tickets matching the filter, newest first.
func (db *DB) ListTickets(ctx context.Context, filter TicketFilter) ([]models.Ticket, error) {
	query := `SELECT ` + ticketColumns + ` FROM tickets WHERE 1=1`
	args := []interface{}{}

	if filter.Deleted {
		query += ` AND deleted_at IS NOT NULL`
	} else {
		query += ` AND deleted_at IS NULL`
	}
	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	if filter.AssigneeID != "" {
		query += ` AND assignee_id = ?`
		args = append(args, filter.AssigneeID)
	}
	if filter.CustomerID != "" {
		query += ` AND customer_id = ?`
		args = append(args, filter.CustomerID)
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	query += ` ORDER BY created_at DESC LIMIT ? OFFSET ?`
	args = append(args, limit, filter.Offset)

	start := time.Now()
	rows, err := db.conn.QueryContext(ctx, query, args...)
	metrics.RecordDBQuery("SELECT", "tickets", time.Since(start), err)
	if err != nil {
		return nil, fmt.Errorf("list tickets: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []models.Ticket
	for rows.Next() {
		t, err := scanTicket(rows)
		if err != nil {
			return nil, fmt.Errorf("scan ticket: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// AssignTicket sets or replaces the assignee and moves the ticket to
// ASSIGNED. Allowed from OPEN (assign) and ASSIGNED (reassign).
func (db *DB) AssignTicket(ctx context.Context, ticketID, assigneeID, actorID string) (models.Ticket, error) {
	t, err := db.GetTicket(ctx, ticketID)
	if err != nil {
		return t, err
	}
	if !t.Status.CanTransition(models.TicketAssigned) {
		return t, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, t.Status, models.TicketAssigned)
	}

	now := time.Now().UTC()
	start := time.Now()
	_, err = db.conn.ExecContext(ctx,
		`UPDATE tickets SET assignee_id = ?, status = ?, updated_at = ? WHERE id = ?`,
		assigneeID, string(models.TicketAssigned), now, ticketID)
	metrics.RecordDBQuery("UPDATE", "tickets", time.Since(start), err)
	if err != nil {
		return t, fmt.Errorf("assign ticket: %w", err)
	}

	action := "assigned"
	if t.AssigneeID != "" {
		action = "reassigned"
	}
	db.appendTicketLog(ctx, ticketID, actorID, action, "assignee "+assigneeID)

	return db.GetTicket(ctx, ticketID)
}

// TransitionTicket moves a ticket through its lifecycle, stamping
// started/completed times where relevant.
func (db *DB) TransitionTicket(ctx context.Context, ticketID string, next models.TicketStatus, actorID, detail string) (models.Ticket, error) {
	t, err := db.GetTicket(ctx, ticketID)
	if err != nil {
		return t, err
	}
	if !t.Status.CanTransition(next) {
		return t, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, t.Status, next)
	}

	now := time.Now().UTC()
	query := `UPDATE tickets SET status = ?, updated_at = ?`
	args := []interface{}{string(next), now}

	switch next {
	case models.TicketInProgress:
		query += `, started_at = ?`
		args = append(args, now)
	case models.TicketCompleted:
		query += `, completed_at = ?`
		args = append(args, now)
	}
	query += ` WHERE id = ?`
	args = append(args, ticketID)

	start := time.Now()
	_, err = db.conn.ExecContext(ctx, query, args...)
	metrics.RecordDBQuery("UPDATE", "tickets", time.Since(start), err)
	if err != nil {
		return t, fmt.Errorf("transition ticket: %w", err)
	}

	db.appendTicketLog(ctx, ticketID, actorID, string(next), detail)

	return db.GetTicket(ctx, ticketID)
}

// UpdateTicketDetails rewrites the descriptive fields of a live ticket.
// Lifecycle state, assignee and cost are managed by their own operations.
func (db *DB) UpdateTicketDetails(ctx context.Context, ticketID, title, description, address, actorID string) (models.Ticket, error) {
	t, err := db.GetTicket(ctx, ticketID)
	if err != nil {
		return t, err
	}
	if t.Status.Terminal() {
		return t, fmt.Errorf("%w: edit on %s ticket", ErrInvalidTransition, t.Status)
	}

	start := time.Now()
	_, err = db.conn.ExecContext(ctx,
		`UPDATE tickets SET title = ?, description = ?, address = ?, updated_at = ? WHERE id = ?`,
		title, description, address, time.Now().UTC(), ticketID)
	metrics.RecordDBQuery("UPDATE", "tickets", time.Since(start), err)
	if err != nil {
		return t, fmt.Errorf("update ticket: %w", err)
	}

	db.appendTicketLog(ctx, ticketID, actorID, "updated", "")

	return db.GetTicket(ctx, ticketID)
}

// SetEstimatedCost updates the quoted cost on a live ticket.
func (db *DB) SetEstimatedCost(ctx context.Context, ticketID string, cost float64, actorID string) (models.Ticket, error) {
	t, err := db.GetTicket(ctx, ticketID)
	if err != nil {
		return t, err
	}
	if t.Status.Terminal() {
		return t, fmt.Errorf("%w: cost change on %s ticket", ErrInvalidTransition, t.Status)
	}

	start := time.Now()
	_, err = db.conn.ExecContext(ctx,
		`UPDATE tickets SET estimated_cost = ?, updated_at = ? WHERE id = ?`,
		cost, time.Now().UTC(), ticketID)
	metrics.RecordDBQuery("UPDATE", "tickets", time.Since(start), err)
	if err != nil {
		return t, fmt.Errorf("set estimated cost: %w", err)
	}

	db.appendTicketLog(ctx, ticketID, actorID, "estimated_cost", fmt.Sprintf("%.2f", cost))

	return db.GetTicket(ctx, ticketID)
}

// SoftDeleteTicket hides a ticket from normal listings.
func (db *DB) SoftDeleteTicket(ctx context.Context, ticketID, actorID string) error {
	start := time.Now()
	res, err := db.conn.ExecContext(ctx,
		`UPDATE tickets SET deleted_at = ?, updated_at = ? WHERE id = ? AND deleted_at IS NULL`,
		time.Now().UTC(), time.Now().UTC(), ticketID)
	metrics.RecordDBQuery("UPDATE", "tickets", time.Since(start), err)
	if err != nil {
		return fmt.Errorf("soft delete ticket: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}

	db.appendTicketLog(ctx, ticketID, actorID, "deleted", "")
	return nil
}

// RestoreTicket undoes a soft delete.
func (db *DB) RestoreTicket(ctx context.Context, ticketID, actorID string) error {
	start := time.Now()
	res, err := db.conn.ExecContext(ctx,
		`UPDATE tickets SET deleted_at = NULL, updated_at = ? WHERE id = ? AND deleted_at IS NOT NULL`,
		time.Now().UTC(), ticketID)
	metrics.RecordDBQuery("UPDATE", "tickets", time.Since(start), err)
	if err != nil {
		return fmt.Errorf("restore ticket: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}

	db.appendTicketLog(ctx, ticketID, actorID, "restored", "")
	return nil
}

// appendTicketLog records an audit entry. Log failures are reported
// but never fail the parent operation.
func (db *DB) appendTicketLog(ctx context.Context, ticketID, actorID, action, detail string) {
	start := time.Now()
	_, err := db.conn.ExecContext(ctx, `
		INSERT INTO ticket_logs (id, ticket_id, actor_id, action, detail, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		uuid.New().String(), ticketID, actorID, action, detail, time.Now().UTC())
	metrics.RecordDBQuery("INSERT", "ticket_logs", time.Since(start), err)
	if err != nil {
		logError(ctx, err, "Failed to append ticket log")
	}
}

// AddTicketLog appends a free-form note to a ticket's audit trail.
// Unlike the internal lifecycle entries, a note failure is reported to
// the caller.
func (db *DB) AddTicketLog(ctx context.Context, ticketID, actorID, note string) (models.TicketLog, error) {
	if _, err := db.GetTicket(ctx, ticketID); err != nil {
		return models.TicketLog{}, err
	}

	l := models.TicketLog{
		ID:        uuid.New().String(),
		TicketID:  ticketID,
		ActorID:   actorID,
		Action:    "note",
		Detail:    note,
		CreatedAt: time.Now().UTC(),
	}

	start := time.Now()
	_, err := db.conn.ExecContext(ctx, `
		INSERT INTO ticket_logs (id, ticket_id, actor_id, action, detail, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		l.ID, l.TicketID, l.ActorID, l.Action, l.Detail, l.CreatedAt)
	metrics.RecordDBQuery("INSERT", "ticket_logs", time.Since(start), err)
	if err != nil {
		return models.TicketLog{}, fmt.Errorf("add ticket log: %w", err)
	}
	return l, nil
}

// ListTicketLogs returns the audit trail for a ticket, oldest first.
func (db *DB) ListTicketLogs(ctx context.Context, ticketID string) ([]models.TicketLog, error) {
	start := time.Now()
	rows, err := db.conn.QueryContext(ctx, `
		SELECT id, ticket_id, actor_id, action, COALESCE(detail, ''), created_at
		FROM ticket_logs WHERE ticket_id = ? ORDER BY created_at`, ticketID)
	metrics.RecordDBQuery("SELECT", "ticket_logs", time.Since(start), err)
	if err != nil {
		return nil, fmt.Errorf("list ticket logs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []models.TicketLog
	for rows.Next() {
		var l models.TicketLog
		if err := rows.Scan(&l.ID, &l.TicketID, &l.ActorID, &l.Action, &l.Detail, &l.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan ticket log: %w", err)
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

func nullString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
