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
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/fieldtrace/fieldtrace/internal/logging"
	"github.com/fieldtrace/fieldtrace/internal/metrics"
	"github.com/fieldtrace/fieldtrace/internal/models"
)

// ErrNotFound is returned by lookups that match no row.
var ErrNotFound = errors.New("record not found")

// ErrDuplicate is returned when an insert collides with a unique
// constraint, typically a reused username or email.
var ErrDuplicate = errors.New("record already exists")

func isConstraintError(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(strings.ToLower(err.Error()), "constraint")
}

// CreateEmployee inserts a new account. The caller supplies the
// password hash; plaintext never reaches this layer.
func (db *DB) CreateEmployee(ctx context.Context, emp *models.Employee) error {
	if emp.ID == "" {
		emp.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	emp.CreatedAt = now
	emp.UpdatedAt = now
	emp.Active = true

	start := time.Now()
	_, err := db.conn.ExecContext(ctx, `
		INSERT INTO employees (id, username, email, full_name, phone, profile_image, role, password_hash, active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		emp.ID, emp.Username, emp.Email, emp.FullName, emp.Phone, emp.ProfileImage, string(emp.Role), emp.PasswordHash, emp.Active, emp.CreatedAt, emp.UpdatedAt)
	metrics.RecordDBQuery("INSERT", "employees", time.Since(start), err)
	if err != nil {
		if isConstraintError(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("insert employee: %w", err)
	}
	return nil
}

const employeeColumns = `id, username, email, full_name, COALESCE(phone, ''), COALESCE(profile_image, ''), role, password_hash, active, created_at, updated_at, deleted_at`

func scanEmployee(row interface{ Scan(...interface{}) error }) (models.Employee, error) {
	var emp models.Employee
	var role string
	var deletedAt sql.NullTime

	err := row.Scan(&emp.ID, &emp.Username, &emp.Email, &emp.FullName, &emp.Phone, &emp.ProfileImage,
		&role, &emp.PasswordHash, &emp.Active, &emp.CreatedAt, &emp.UpdatedAt, &deletedAt)
	if err != nil {
		return emp, err
	}
	emp.Role = models.Role(role)
	if deletedAt.Valid {
		emp.DeletedAt = &deletedAt.Time
	}
	return emp, nil
}

// GetEmployeeByID returns one employee, including soft-deleted rows.
func (db *DB) GetEmployeeByID(ctx context.Context, id string) (models.Employee, error) {
	start := time.Now()
	row := db.conn.QueryRowContext(ctx,
		`SELECT `+employeeColumns+` FROM employees WHERE id = ?`, id)
	emp, err := scanEmployee(row)
	metrics.RecordDBQuery("SELECT", "employees", time.Since(start), err)

	if errors.Is(err, sql.ErrNoRows) {
		return emp, ErrNotFound
	}
	if err != nil {
		return emp, fmt.Errorf("get employee: %w", err)
	}
	return emp, nil
}

// GetEmployeeByUsername returns one active employee for login.
func (db *DB) GetEmployeeByUsername(ctx context.Context, username string) (models.Employee, error) {
	start := time.Now()
	row := db.conn.QueryRowContext(ctx,
		`SELECT `+employeeColumns+` FROM employees WHERE username = ? AND deleted_at IS NULL AND active`, username)
	emp, err := scanEmployee(row)
	metrics.RecordDBQuery("SELECT", "employees", time.Since(start), err)

	if errors.Is(err, sql.ErrNoRows) {
		return emp, ErrNotFound
	}
	if err != nil {
		return emp, fmt.Errorf("get employee by username: %w", err)
	}
	return emp, nil
}

// ListEmployees returns accounts, optionally filtered by role.
// Soft-deleted accounts are excluded.
func (db *DB) ListEmployees(ctx context.Context, role models.Role, limit, offset int) ([]models.Employee, error) {
	query := `SELECT ` + employeeColumns + ` FROM employees WHERE deleted_at IS NULL`
	args := []interface{}{}
	if role != "" {
		query += ` AND role = ?`
		args = append(args, string(role))
	}
	query += ` ORDER BY full_name LIMIT ? OFFSET ?`
	args = append(args, limit, offset)

	start := time.Now()
	rows, err := db.conn.QueryContext(ctx, query, args...)
	metrics.RecordDBQuery("SELECT", "employees", time.Since(start), err)
	if err != nil {
		return nil, fmt.Errorf("list employees: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []models.Employee
	for rows.Next() {
		emp, err := scanEmployee(rows)
		if err != nil {
			return nil, fmt.Errorf("scan employee: %w", err)
		}
		out = append(out, emp)
	}
	return out, rows.Err()
}

// UpdateEmployee updates mutable profile fields.
func (db *DB) UpdateEmployee(ctx context.Context, emp *models.Employee) error {
	emp.UpdatedAt = time.Now().UTC()

	start := time.Now()
	res, err := db.conn.ExecContext(ctx, `
		UPDATE employees
		SET email = ?, full_name = ?, phone = ?, profile_image = ?, role = ?, active = ?, updated_at = ?
		WHERE id = ? AND deleted_at IS NULL`,
		emp.Email, emp.FullName, emp.Phone, emp.ProfileImage, string(emp.Role), emp.Active, emp.UpdatedAt, emp.ID)
	metrics.RecordDBQuery("UPDATE", "employees", time.Since(start), err)
	if err != nil {
		return fmt.Errorf("update employee: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// SoftDeleteEmployee marks an account deleted without losing referential
// history on tickets and locations.
func (db *DB) SoftDeleteEmployee(ctx context.Context, id string) error {
	start := time.Now()
	res, err := db.conn.ExecContext(ctx,
		`UPDATE employees SET deleted_at = ?, active = false WHERE id = ? AND deleted_at IS NULL`,
		time.Now().UTC(), id)
	metrics.RecordDBQuery("UPDATE", "employees", time.Since(start), err)
	if err != nil {
		return fmt.Errorf("soft delete employee: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// EnsureAdminAccount creates the bootstrap admin when configured and
// missing. Existing accounts are left untouched.
func (db *DB) EnsureAdminAccount(ctx context.Context, username, passwordHash string) error {
	if username == "" || passwordHash == "" {
		return nil
	}

	_, err := db.GetEmployeeByUsername(ctx, username)
	if err == nil {
		return nil
	}
	if !errors.Is(err, ErrNotFound) {
		return err
	}

	admin := &models.Employee{
		Username:     username,
		Email:        username + "@localhost",
		FullName:     "Administrator",
		Role:         models.RoleAdmin,
		PasswordHash: passwordHash,
	}
	if err := db.CreateEmployee(ctx, admin); err != nil {
		return err
	}
	logging.Info().Str("username", username).Msg("Bootstrap admin account created")
	return nil
}
