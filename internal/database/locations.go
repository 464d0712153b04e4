// Fieldtrace - Field Service Ticketing and Live Workforce Tracking
// Copyright 2026 Fieldtrace Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/fieldtrace/fieldtrace

package database

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/fieldtrace/fieldtrace/internal/metrics"
	"github.com/fieldtrace/fieldtrace/internal/models"
)

// FlushPresence upserts a batch of presence records into
// locations_latest. Called by the presence tracker on its flush tick;
// implements presence.Flusher.
func (db *DB) FlushPresence(ctx context.Context, records []models.PresenceRecord) error {
	if len(records) == 0 {
		return nil
	}

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin flush tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO locations_latest (employee_id, lat, lng, accuracy, timestamp_client, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (employee_id) DO UPDATE SET
			lat = excluded.lat,
			lng = excluded.lng,
			accuracy = excluded.accuracy,
			timestamp_client = excluded.timestamp_client,
			updated_at = excluded.updated_at`)
	if err != nil {
		return fmt.Errorf("prepare upsert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	start := time.Now()
	for _, rec := range records {
		if _, err := stmt.ExecContext(ctx, rec.EmployeeID, rec.Lat, rec.Lng, rec.Accuracy, rec.TimestampClient, rec.UpdatedAt.UTC()); err != nil {
			metrics.RecordDBQuery("UPSERT", "locations_latest", time.Since(start), err)
			return fmt.Errorf("upsert latest location: %w", err)
		}
	}

	err = tx.Commit()
	metrics.RecordDBQuery("UPSERT", "locations_latest", time.Since(start), err)
	if err != nil {
		return fmt.Errorf("commit flush tx: %w", err)
	}
	return nil
}

// LoadLatest returns every stored latest position for seeding the
// presence map at startup.
func (db *DB) LoadLatest(ctx context.Context) ([]models.PresenceRecord, error) {
	start := time.Now()
	rows, err := db.conn.QueryContext(ctx, `
		SELECT l.employee_id, COALESCE(e.full_name, ''), l.lat, l.lng, l.accuracy, l.timestamp_client, l.updated_at
		FROM locations_latest l
		LEFT JOIN employees e ON e.id = l.employee_id`)
	metrics.RecordDBQuery("SELECT", "locations_latest", time.Since(start), err)
	if err != nil {
		return nil, fmt.Errorf("load latest locations: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []models.PresenceRecord
	for rows.Next() {
		var rec models.PresenceRecord
		if err := rows.Scan(&rec.EmployeeID, &rec.EmployeeName, &rec.Lat, &rec.Lng, &rec.Accuracy, &rec.TimestampClient, &rec.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan latest location: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// LatestWithEmployees returns the stored latest position of every
// active employee with the owning account populated, the shape the
// map roster endpoint serves. onlineThreshold classifies each row
// against now.
func (db *DB) LatestWithEmployees(ctx context.Context, now time.Time, onlineThreshold time.Duration) ([]models.LatestLocation, error) {
	start := time.Now()
	rows, err := db.conn.QueryContext(ctx, `
		SELECT e.id, e.full_name, e.username, e.role, COALESCE(e.profile_image, ''),
		       l.lat, l.lng, l.accuracy, l.timestamp_client, l.updated_at
		FROM locations_latest l
		JOIN employees e ON e.id = l.employee_id
		WHERE e.deleted_at IS NULL
		ORDER BY e.full_name`)
	metrics.RecordDBQuery("SELECT", "locations_latest", time.Since(start), err)
	if err != nil {
		return nil, fmt.Errorf("query latest with employees: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []models.LatestLocation
	for rows.Next() {
		var loc models.LatestLocation
		var role string
		if err := rows.Scan(&loc.Employee.ID, &loc.Employee.FullName, &loc.Employee.Username, &role,
			&loc.Employee.ProfileImage, &loc.Lat, &loc.Lng, &loc.Accuracy, &loc.TimestampClient, &loc.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan latest location: %w", err)
		}
		loc.Employee.Role = models.Role(role)
		loc.Online = now.Sub(loc.UpdatedAt) < onlineThreshold
		out = append(out, loc)
	}
	return out, rows.Err()
}

// InsertHistory appends one track sample.
func (db *DB) InsertHistory(ctx context.Context, rec models.PresenceRecord) error {
	start := time.Now()
	_, err := db.conn.ExecContext(ctx, `
		INSERT INTO location_history (id, employee_id, lat, lng, accuracy, timestamp_client, recorded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		uuid.New().String(), rec.EmployeeID, rec.Lat, rec.Lng, rec.Accuracy, rec.TimestampClient, rec.UpdatedAt.UTC())
	metrics.RecordDBQuery("INSERT", "location_history", time.Since(start), err)
	if err != nil {
		return fmt.Errorf("insert history: %w", err)
	}
	return nil
}

// HistoryByDate returns an employee's track for one calendar day in
// UTC, ordered by recording time.
func (db *DB) HistoryByDate(ctx context.Context, employeeID, date string) ([]models.HistoryPoint, error) {
	dayStart, err := time.Parse("2006-01-02", date)
	if err != nil {
		return nil, fmt.Errorf("parse date %q: %w", date, err)
	}
	dayEnd := dayStart.Add(24 * time.Hour)

	start := time.Now()
	rows, err := db.conn.QueryContext(ctx, `
		SELECT lat, lng, accuracy, timestamp_client, recorded_at
		FROM location_history
		WHERE employee_id = ? AND recorded_at >= ? AND recorded_at < ?
		ORDER BY recorded_at`,
		employeeID, dayStart, dayEnd)
	metrics.RecordDBQuery("SELECT", "location_history", time.Since(start), err)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []models.HistoryPoint
	for rows.Next() {
		var p models.HistoryPoint
		if err := rows.Scan(&p.Lat, &p.Lng, &p.Accuracy, &p.TimestampClient, &p.RecordedAt); err != nil {
			return nil, fmt.Errorf("scan history point: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// PruneHistory deletes track samples older than the retention window.
// Returns the number of rows removed.
func (db *DB) PruneHistory(ctx context.Context, retention time.Duration) (int64, error) {
	cutoff := time.Now().UTC().Add(-retention)

	start := time.Now()
	res, err := db.conn.ExecContext(ctx,
		`DELETE FROM location_history WHERE recorded_at < ?`, cutoff)
	metrics.RecordDBQuery("DELETE", "location_history", time.Since(start), err)
	if err != nil {
		return 0, fmt.Errorf("prune history: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}
