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

// ErrLeaveReviewed is returned when reviewing a request that already
// left the PENDING state.
var ErrLeaveReviewed = errors.New("leave request already reviewed")

// CreateLeaveRequest inserts a new PENDING request.
func (db *DB) CreateLeaveRequest(ctx context.Context, req *models.LeaveRequest) error {
	now := time.Now().UTC()
	req.ID = uuid.New().String()
	req.Status = models.LeavePending
	req.CreatedAt = now
	req.UpdatedAt = now

	start := time.Now()
	_, err := db.conn.ExecContext(ctx, `
		INSERT INTO leave_requests (id, employee_id, leave_type, start_date, end_date, reason, status, reviewer_id, review_note, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, NULL, NULL, ?, ?)`,
		req.ID, req.EmployeeID, string(req.Type), req.StartDate, req.EndDate, req.Reason, req.Status, req.CreatedAt, req.UpdatedAt)
	metrics.RecordDBQuery("INSERT", "leave_requests", time.Since(start), err)
	if err != nil {
		return fmt.Errorf("insert leave request: %w", err)
	}
	return nil
}

// GetLeaveRequest returns one request by id, or ErrNotFound.
func (db *DB) GetLeaveRequest(ctx context.Context, id string) (*models.LeaveRequest, error) {
	start := time.Now()
	row := db.conn.QueryRowContext(ctx, leaveSelect+` WHERE id = ?`, id)
	req, err := scanLeaveRequest(row)
	metrics.RecordDBQuery("SELECT", "leave_requests", time.Since(start), err)
	return req, err
}

// ReviewLeaveRequest moves a PENDING request to APPROVED or REJECTED.
// Requests already reviewed are not re-reviewable.
func (db *DB) ReviewLeaveRequest(ctx context.Context, id, reviewerID string, status models.LeaveStatus, note string) (*models.LeaveRequest, error) {
	if status != models.LeaveApproved && status != models.LeaveRejected {
		return nil, fmt.Errorf("invalid review status %q", status)
	}

	req, err := db.GetLeaveRequest(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.Status != models.LeavePending {
		return nil, ErrLeaveReviewed
	}

	now := time.Now().UTC()
	start := time.Now()
	_, err = db.conn.ExecContext(ctx, `
		UPDATE leave_requests SET status = ?, reviewer_id = ?, review_note = ?, updated_at = ?
		WHERE id = ? AND status = ?`,
		status, reviewerID, note, now, id, models.LeavePending)
	metrics.RecordDBQuery("UPDATE", "leave_requests", time.Since(start), err)
	if err != nil {
		return nil, fmt.Errorf("update leave request: %w", err)
	}

	req.Status = status
	req.ReviewerID = reviewerID
	req.ReviewNote = note
	req.UpdatedAt = now
	return req, nil
}

// ListLeaveRequests returns requests newest first, optionally filtered
// by employee and status.
func (db *DB) ListLeaveRequests(ctx context.Context, employeeID string, status models.LeaveStatus) ([]models.LeaveRequest, error) {
	query := leaveSelect + ` WHERE 1=1`
	var args []interface{}
	if employeeID != "" {
		query += ` AND employee_id = ?`
		args = append(args, employeeID)
	}
	if status != "" {
		query += ` AND status = ?`
		args = append(args, status)
	}
	query += ` ORDER BY created_at DESC`

	start := time.Now()
	rows, err := db.conn.QueryContext(ctx, query, args...)
	metrics.RecordDBQuery("SELECT", "leave_requests", time.Since(start), err)
	if err != nil {
		return nil, fmt.Errorf("list leave requests: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []models.LeaveRequest
	for rows.Next() {
		req, err := scanLeaveRequest(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *req)
	}
	return out, rows.Err()
}

const leaveSelect = `
	SELECT id, employee_id, leave_type, start_date, end_date, reason, status, reviewer_id, review_note, created_at, updated_at
	FROM leave_requests`

func scanLeaveRequest(row interface{ Scan(...interface{}) error }) (*models.LeaveRequest, error) {
	var req models.LeaveRequest
	var reviewerID, reviewNote sql.NullString
	err := row.Scan(&req.ID, &req.EmployeeID, &req.Type, &req.StartDate, &req.EndDate, &req.Reason,
		&req.Status, &reviewerID, &reviewNote, &req.CreatedAt, &req.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan leave request: %w", err)
	}
	req.ReviewerID = reviewerID.String
	req.ReviewNote = reviewNote.String
	return &req, nil
}
