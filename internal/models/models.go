// Fieldtrace - Field Service Ticketing and Live Workforce Tracking
// Copyright 2026 Fieldtrace Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/fieldtrace/fieldtrace

// Package models defines the shared domain types exchanged between the
// API layer, the persistence layer, and the realtime channel.
package models

import (
	"time"
)

// Role enumerates the access levels an account can hold.
type Role string

const (
	RoleAdmin    Role = "ADMIN"
	RoleEmployee Role = "EMPLOYEE"
	RoleCustomer Role = "CUSTOMER"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleEmployee, RoleCustomer:
		return true
	}
	return false
}

// Employee is an account in the system. Despite the name it covers all
// three roles; customers and admins are employees with a different role,
// matching the single-collection layout the frontend expects.
type Employee struct {
	ID           string     `json:"id"`
	Username     string     `json:"username"`
	Email        string     `json:"email"`
	FullName     string     `json:"fullName"`
	Phone        string     `json:"phone,omitempty"`
	ProfileImage string     `json:"profileImage,omitempty"`
	Role         Role       `json:"role"`
	PasswordHash string     `json:"-"`
	Active       bool       `json:"active"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt"`
	DeletedAt    *time.Time `json:"deletedAt,omitempty"`
}

// TicketStatus is the lifecycle state of a service ticket.
type TicketStatus string

const (
	TicketOpen       TicketStatus = "OPEN"
	TicketAssigned   TicketStatus = "ASSIGNED"
	TicketInProgress TicketStatus = "IN_PROGRESS"
	TicketCompleted  TicketStatus = "COMPLETED"
	TicketCancelled  TicketStatus = "CANCELLED"
)

// CanTransition reports whether a ticket may move from its current
// status to next. Terminal states accept no further transitions.
func (s TicketStatus) CanTransition(next TicketStatus) bool {
	switch s {
	case TicketOpen:
		return next == TicketAssigned || next == TicketCancelled
	case TicketAssigned:
		return next == TicketAssigned || next == TicketInProgress || next == TicketCancelled
	case TicketInProgress:
		return next == TicketCompleted || next == TicketCancelled
	}
	return false
}

// Terminal reports whether the status ends the ticket lifecycle.
func (s TicketStatus) Terminal() bool {
	return s == TicketCompleted || s == TicketCancelled
}

// Ticket is a customer service request routed to a field employee.
type Ticket struct {
	ID            string       `json:"id"`
	Title         string       `json:"title"`
	Description   string       `json:"description"`
	CustomerID    string       `json:"customerId"`
	AssigneeID    string       `json:"assigneeId,omitempty"`
	Status        TicketStatus `json:"status"`
	EstimatedCost float64      `json:"estimatedCost"`
	Address       string       `json:"address,omitempty"`
	CreatedAt     time.Time    `json:"createdAt"`
	UpdatedAt     time.Time    `json:"updatedAt"`
	StartedAt     *time.Time   `json:"startedAt,omitempty"`
	CompletedAt   *time.Time   `json:"completedAt,omitempty"`
	DeletedAt     *time.Time   `json:"deletedAt,omitempty"`
}

// TicketLog is one audit entry in a ticket's history.
type TicketLog struct {
	ID        string    `json:"id"`
	TicketID  string    `json:"ticketId"`
	ActorID   string    `json:"actorId"`
	Action    string    `json:"action"`
	Detail    string    `json:"detail,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// Attendance records a single working day for an employee.
type Attendance struct {
	ID         string     `json:"id"`
	EmployeeID string     `json:"employeeId"`
	Date       string     `json:"date"`
	CheckIn    time.Time  `json:"checkIn"`
	CheckOut   *time.Time `json:"checkOut,omitempty"`
	CheckInLat float64    `json:"checkInLat,omitempty"`
	CheckInLng float64    `json:"checkInLng,omitempty"`
}

// LeaveStatus is the review state of a leave request.
type LeaveStatus string

const (
	LeavePending  LeaveStatus = "PENDING"
	LeaveApproved LeaveStatus = "APPROVED"
	LeaveRejected LeaveStatus = "REJECTED"
)

// LeaveType classifies a leave request.
type LeaveType string

const (
	LeaveAnnual LeaveType = "ANNUAL"
	LeaveSick   LeaveType = "SICK"
	LeaveUnpaid LeaveType = "UNPAID"
)

// LeaveRequest is an employee request for time off, reviewed by an admin.
type LeaveRequest struct {
	ID         string      `json:"id"`
	EmployeeID string      `json:"employeeId"`
	Type       LeaveType   `json:"type"`
	StartDate  string      `json:"startDate"`
	EndDate    string      `json:"endDate"`
	Reason     string      `json:"reason"`
	Status     LeaveStatus `json:"status"`
	ReviewerID string      `json:"reviewerId,omitempty"`
	ReviewNote string      `json:"reviewNote,omitempty"`
	CreatedAt  time.Time   `json:"createdAt"`
	UpdatedAt  time.Time   `json:"updatedAt"`
}

// SalarySlip is a monthly payroll statement for an employee.
type SalarySlip struct {
	ID         string    `json:"id"`
	EmployeeID string    `json:"employeeId"`
	Period     string    `json:"period"`
	BaseSalary float64   `json:"baseSalary"`
	Allowances float64   `json:"allowances"`
	Deductions float64   `json:"deductions"`
	NetPay     float64   `json:"netPay"`
	IssuedAt   time.Time `json:"issuedAt"`
}
