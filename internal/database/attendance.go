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

// ErrAlreadyCheckedIn is returned when an employee checks in twice on
// the same date.
var ErrAlreadyCheckedIn = errors.New("already checked in for this date")

// ErrNotCheckedIn is returned when checking out without an open
// attendance row for the date.
var ErrNotCheckedIn = errors.New("no check-in recorded for this date")

// CheckIn opens the attendance row for employeeID on date. One row per
// employee per date; a second check-in on the same date fails.
func (db *DB) CheckIn(ctx context.Context, employeeID, date string, checkIn time.Time, lat, lng float64) (*models.Attendance, error) {
	existing, err := db.AttendanceByDate(ctx, employeeID, date)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, err
	}
	if existing != nil {
		return nil, ErrAlreadyCheckedIn
	}

	att := &models.Attendance{
		ID:         uuid.New().String(),
		EmployeeID: employeeID,
		Date:       date,
		CheckIn:    checkIn.UTC(),
		CheckInLat: lat,
		CheckInLng: lng,
	}

	start := time.Now()
	_, err = db.conn.ExecContext(ctx, `
		INSERT INTO attendance (id, employee_id, date, check_in, check_out, check_in_lat, check_in_lng)
		VALUES (?, ?, ?, ?, NULL, ?, ?)`,
		att.ID, att.EmployeeID, att.Date, att.CheckIn, att.CheckInLat, att.CheckInLng)
	metrics.RecordDBQuery("INSERT", "attendance", time.Since(start), err)
	if err != nil {
		return nil, fmt.Errorf("insert attendance: %w", err)
	}
	return att, nil
}

// CheckOut stamps check_out on the open attendance row for the date.
func (db *DB) CheckOut(ctx context.Context, employeeID, date string, checkOut time.Time) (*models.Attendance, error) {
	att, err := db.AttendanceByDate(ctx, employeeID, date)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotCheckedIn
		}
		return nil, err
	}

	out := checkOut.UTC()
	start := time.Now()
	_, err = db.conn.ExecContext(ctx,
		`UPDATE attendance SET check_out = ? WHERE id = ?`, out, att.ID)
	metrics.RecordDBQuery("UPDATE", "attendance", time.Since(start), err)
	if err != nil {
		return nil, fmt.Errorf("update attendance: %w", err)
	}
	att.CheckOut = &out
	return att, nil
}

// AttendanceByDate returns the attendance row for one employee and
// date, or ErrNotFound.
func (db *DB) AttendanceByDate(ctx context.Context, employeeID, date string) (*models.Attendance, error) {
	start := time.Now()
	row := db.conn.QueryRowContext(ctx, `
		SELECT id, employee_id, date, check_in, check_out, COALESCE(check_in_lat, 0), COALESCE(check_in_lng, 0)
		FROM attendance WHERE employee_id = ? AND date = ?`, employeeID, date)

	att, err := scanAttendance(row)
	metrics.RecordDBQuery("SELECT", "attendance", time.Since(start), err)
	return att, err
}

// ListAttendance returns attendance rows for an employee between two
// inclusive dates, newest first. Empty employeeID lists all employees.
func (db *DB) ListAttendance(ctx context.Context, employeeID, from, to string) ([]models.Attendance, error) {
	query := `
		SELECT id, employee_id, date, check_in, check_out, COALESCE(check_in_lat, 0), COALESCE(check_in_lng, 0)
		FROM attendance WHERE date >= ? AND date <= ?`
	args := []interface{}{from, to}
	if employeeID != "" {
		query += ` AND employee_id = ?`
		args = append(args, employeeID)
	}
	query += ` ORDER BY date DESC, check_in DESC`

	start := time.Now()
	rows, err := db.conn.QueryContext(ctx, query, args...)
	metrics.RecordDBQuery("SELECT", "attendance", time.Since(start), err)
	if err != nil {
		return nil, fmt.Errorf("list attendance: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []models.Attendance
	for rows.Next() {
		att, err := scanAttendance(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *att)
	}
	return out, rows.Err()
}

func scanAttendance(row interface{ Scan(...interface{}) error }) (*models.Attendance, error) {
	var att models.Attendance
	var checkOut sql.NullTime
	err := row.Scan(&att.ID, &att.EmployeeID, &att.Date, &att.CheckIn, &checkOut, &att.CheckInLat, &att.CheckInLng)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan attendance: %w", err)
	}
	if checkOut.Valid {
		t := checkOut.Time
		att.CheckOut = &t
	}
	return &att, nil
}
