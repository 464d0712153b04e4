// Fieldtrace - Field Service Ticketing and Live Workforce Tracking
// Copyright 2026 Fieldtrace Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/fieldtrace/fieldtrace

package database

import (
	"context"
	"fmt"
	"time"
)

// schemaContext returns a context with timeout for schema operations
func schemaContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 60*time.Second)
}

// createTables creates the core database tables
func (db *DB) createTables() error {
	ctx, cancel := schemaContext()
	defer cancel()

	queries := []string{
		`CREATE TABLE IF NOT EXISTS employees (
			id TEXT PRIMARY KEY,
			username TEXT NOT NULL UNIQUE,
			email TEXT NOT NULL,
			full_name TEXT NOT NULL,
			phone TEXT,
			profile_image TEXT,
			role TEXT NOT NULL,
			password_hash TEXT NOT NULL,
			active BOOLEAN NOT NULL DEFAULT true,
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL,
			deleted_at TIMESTAMP
		)`,

		`CREATE TABLE IF NOT EXISTS tickets (
			id TEXT PRIMARY KEY,
			title TEXT NOT NULL,
			description TEXT NOT NULL,
			customer_id TEXT NOT NULL,
			assignee_id TEXT,
			status TEXT NOT NULL,
			estimated_cost DOUBLE NOT NULL DEFAULT 0,
			address TEXT,
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL,
			started_at TIMESTAMP,
			completed_at TIMESTAMP,
			deleted_at TIMESTAMP
		)`,

		`CREATE TABLE IF NOT EXISTS ticket_logs (
			id TEXT PRIMARY KEY,
			ticket_id TEXT NOT NULL,
			actor_id TEXT NOT NULL,
			action TEXT NOT NULL,
			detail TEXT,
			created_at TIMESTAMP NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS attendance (
			id TEXT PRIMARY KEY,
			employee_id TEXT NOT NULL,
			date TEXT NOT NULL,
			check_in TIMESTAMP NOT NULL,
			check_out TIMESTAMP,
			check_in_lat DOUBLE,
			check_in_lng DOUBLE,
			UNIQUE (employee_id, date)
		)`,

		`CREATE TABLE IF NOT EXISTS leave_requests (
			id TEXT PRIMARY KEY,
			employee_id TEXT NOT NULL,
			leave_type TEXT NOT NULL DEFAULT 'ANNUAL',
			start_date TEXT NOT NULL,
			end_date TEXT NOT NULL,
			reason TEXT NOT NULL,
			status TEXT NOT NULL,
			reviewer_id TEXT,
			review_note TEXT,
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS salary_slips (
			id TEXT PRIMARY KEY,
			employee_id TEXT NOT NULL,
			period TEXT NOT NULL,
			base_salary DOUBLE NOT NULL,
			allowances DOUBLE NOT NULL DEFAULT 0,
			deductions DOUBLE NOT NULL DEFAULT 0,
			net_pay DOUBLE NOT NULL,
			issued_at TIMESTAMP NOT NULL,
			UNIQUE (employee_id, period)
		)`,

		// One row per employee, overwritten by presence flushes
		`CREATE TABLE IF NOT EXISTS locations_latest (
			employee_id TEXT PRIMARY KEY,
			lat DOUBLE NOT NULL,
			lng DOUBLE NOT NULL,
			accuracy DOUBLE NOT NULL,
			timestamp_client BIGINT NOT NULL,
			updated_at TIMESTAMP NOT NULL
		)`,

		// Append-only track samples, pruned by retention
		`CREATE TABLE IF NOT EXISTS location_history (
			id TEXT PRIMARY KEY,
			employee_id TEXT NOT NULL,
			lat DOUBLE NOT NULL,
			lng DOUBLE NOT NULL,
			accuracy DOUBLE NOT NULL,
			timestamp_client BIGINT NOT NULL,
			recorded_at TIMESTAMP NOT NULL
		)`,
	}

	for _, query := range queries {
		if _, err := db.conn.ExecContext(ctx, query); err != nil {
			return fmt.Errorf("failed to execute query: %s: %w", query, err)
		}
	}

	return nil
}

// createIndexes creates indexes for the hot query paths
func (db *DB) createIndexes() error {
	ctx, cancel := schemaContext()
	defer cancel()

	indexes := []string{
		`CREATE INDEX IF NOT EXISTS idx_employees_role ON employees (role)`,
		`CREATE INDEX IF NOT EXISTS idx_tickets_status ON tickets (status)`,
		`CREATE INDEX IF NOT EXISTS idx_tickets_assignee ON tickets (assignee_id)`,
		`CREATE INDEX IF NOT EXISTS idx_tickets_customer ON tickets (customer_id)`,
		`CREATE INDEX IF NOT EXISTS idx_ticket_logs_ticket ON ticket_logs (ticket_id, created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_attendance_employee ON attendance (employee_id, date)`,
		`CREATE INDEX IF NOT EXISTS idx_leave_employee ON leave_requests (employee_id, status)`,
		`CREATE INDEX IF NOT EXISTS idx_history_employee_time ON location_history (employee_id, recorded_at)`,
		`CREATE INDEX IF NOT EXISTS idx_history_recorded ON location_history (recorded_at)`,
	}

	for _, query := range indexes {
		if _, err := db.conn.ExecContext(ctx, query); err != nil {
			return fmt.Errorf("failed to create index: %s: %w", query, err)
		}
	}

	return nil
}
