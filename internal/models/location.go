// Fieldtrace - Field Service Ticketing and Live Workforce Tracking
// Copyright 2026 Fieldtrace Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/fieldtrace/fieldtrace

package models

import (
	"time"
)

// LocationUpdate is a single position report from a field device. The
// same shape arrives over the REST ingest endpoint and the websocket
// channel; both paths funnel into one server-side apply. Zero is a
// valid coordinate (equator, prime meridian), so only the range tags
// apply; a zero TimestampClient resolves to server receive time.
type LocationUpdate struct {
	EmployeeID      string  `json:"employeeId" validate:"required"`
	Lat             float64 `json:"lat" validate:"latitude"`
	Lng             float64 `json:"lng" validate:"longitude"`
	Accuracy        float64 `json:"accuracy" validate:"gte=0"`
	TimestampClient int64   `json:"timestampClient" validate:"gte=0"`
}

// ClientTime converts the device-reported millisecond epoch to a Time.
func (u LocationUpdate) ClientTime() time.Time {
	return time.UnixMilli(u.TimestampClient)
}

// PresenceRecord is the server-side view of one employee's last known
// position. UpdatedAt is the server receive time and is the sole input
// to online classification; the client timestamp only orders writes.
type PresenceRecord struct {
	EmployeeID      string    `json:"employeeId"`
	EmployeeName    string    `json:"employeeName,omitempty"`
	Lat             float64   `json:"lat"`
	Lng             float64   `json:"lng"`
	Accuracy        float64   `json:"accuracy"`
	TimestampClient int64     `json:"timestampClient"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

// LatestLocation is the REST representation of a stored latest position,
// with the owning employee populated the way the map view consumes it.
type LatestLocation struct {
	Employee        EmployeeRef `json:"employee"`
	Lat             float64     `json:"lat"`
	Lng             float64     `json:"lng"`
	Accuracy        float64     `json:"accuracy"`
	TimestampClient int64       `json:"timestampClient"`
	UpdatedAt       time.Time   `json:"updatedAt"`
	Online          bool        `json:"online"`
}

// EmployeeRef is the embedded employee sub-document on location reads.
// The _id and name keys mirror the document shape the map frontend was
// built against.
type EmployeeRef struct {
	ID           string `json:"_id"`
	FullName     string `json:"name"`
	Username     string `json:"username"`
	Role         Role   `json:"role"`
	ProfileImage string `json:"profileImage,omitempty"`
}

// HistoryPoint is one stored sample on an employee's track for a day.
type HistoryPoint struct {
	Lat             float64   `json:"lat"`
	Lng             float64   `json:"lng"`
	Accuracy        float64   `json:"accuracy"`
	TimestampClient int64     `json:"timestampClient"`
	RecordedAt      time.Time `json:"recordedAt"`
}

// GeoJSONPoint mirrors the legacy profile coordinate field, ordered
// [lng, lat] per the GeoJSON convention.
type GeoJSONPoint struct {
	Type        string    `json:"type"`
	Coordinates []float64 `json:"coordinates" validate:"len=2"`
}

// DutySession is one server-authoritative tracking session. A session
// with a zero EndedAt is active.
type DutySession struct {
	ID         string    `json:"id"`
	EmployeeID string    `json:"employeeId"`
	StartedAt  time.Time `json:"startedAt"`
	EndedAt    time.Time `json:"endedAt"`
}

// Active reports whether the session is still open.
func (s DutySession) Active() bool {
	return s.EndedAt.IsZero()
}
