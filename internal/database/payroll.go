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

// ErrSlipExists is returned when issuing a second slip for the same
// employee and period.
var ErrSlipExists = errors.New("salary slip already issued for this period")

// CreateSalarySlip issues a slip for one employee and period. Net pay
// is derived server-side from the components.
func (db *DB) CreateSalarySlip(ctx context.Context, slip *models.SalarySlip) error {
	slip.ID = uuid.New().String()
	slip.NetPay = slip.BaseSalary + slip.Allowances - slip.Deductions
	slip.IssuedAt = time.Now().UTC()

	existing, err := db.GetSalarySlip(ctx, slip.EmployeeID, slip.Period)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return err
	}
	if existing != nil {
		return ErrSlipExists
	}

	start := time.Now()
	_, err = db.conn.ExecContext(ctx, `
		INSERT INTO salary_slips (id, employee_id, period, base_salary, allowances, deductions, net_pay, issued_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		slip.ID, slip.EmployeeID, slip.Period, slip.BaseSalary, slip.Allowances, slip.Deductions, slip.NetPay, slip.IssuedAt)
	metrics.RecordDBQuery("INSERT", "salary_slips", time.Since(start), err)
	if err != nil {
		return fmt.Errorf("insert salary slip: %w", err)
	}
	return nil
}

// GetSalarySlip returns the slip for one employee and period, or
// ErrNotFound.
func (db *DB) GetSalarySlip(ctx context.Context, employeeID, period string) (*models.SalarySlip, error) {
	start := time.Now()
	row := db.conn.QueryRowContext(ctx, `
		SELECT id, employee_id, period, base_salary, allowances, deductions, net_pay, issued_at
		FROM salary_slips WHERE employee_id = ? AND period = ?`, employeeID, period)

	var slip models.SalarySlip
	err := row.Scan(&slip.ID, &slip.EmployeeID, &slip.Period, &slip.BaseSalary,
		&slip.Allowances, &slip.Deductions, &slip.NetPay, &slip.IssuedAt)
	metrics.RecordDBQuery("SELECT", "salary_slips", time.Since(start), err)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan salary slip: %w", err)
	}
	return &slip, nil
}

// ListSalarySlips returns slips for an employee, most recent period
// first. Empty employeeID lists all.
func (db *DB) ListSalarySlips(ctx context.Context, employeeID string) ([]models.SalarySlip, error) {
	query := `
		SELECT id, employee_id, period, base_salary, allowances, deductions, net_pay, issued_at
		FROM salary_slips`
	var args []interface{}
	if employeeID != "" {
		query += ` WHERE employee_id = ?`
		args = append(args, employeeID)
	}
	query += ` ORDER BY period DESC`

	start := time.Now()
	rows, err := db.conn.QueryContext(ctx, query, args...)
	metrics.RecordDBQuery("SELECT", "salary_slips", time.Since(start), err)
	if err != nil {
		return nil, fmt.Errorf("list salary slips: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []models.SalarySlip
	for rows.Next() {
		var slip models.SalarySlip
		if err := rows.Scan(&slip.ID, &slip.EmployeeID, &slip.Period, &slip.BaseSalary,
			&slip.Allowances, &slip.Deductions, &slip.NetPay, &slip.IssuedAt); err != nil {
			return nil, fmt.Errorf("scan salary slip: %w", err)
		}
		out = append(out, slip)
	}
	return out, rows.Err()
}
