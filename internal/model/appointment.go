package model

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

type AppointmentStatus string

const (
	AppointmentStatusPending   AppointmentStatus = "PENDING"
	AppointmentStatusConfirmed AppointmentStatus = "CONFIRMED"
	AppointmentStatusCheckedIn AppointmentStatus = "CHECKED_IN"
	AppointmentStatusCompleted AppointmentStatus = "COMPLETED"
	AppointmentStatusCancelled AppointmentStatus = "CANCELLED"
	AppointmentStatusNoShow    AppointmentStatus = "NO_SHOW"
)

// DefaultDurationMinutes applies when a booking request leaves the duration out.
const DefaultDurationMinutes = 30

// AppointmentStatuses lists every status in lifecycle order.
var AppointmentStatuses = []AppointmentStatus{
	AppointmentStatusPending,
	AppointmentStatusConfirmed,
	AppointmentStatusCheckedIn,
	AppointmentStatusCompleted,
	AppointmentStatusCancelled,
	AppointmentStatusNoShow,
}

func (s AppointmentStatus) Valid() bool {
	switch s {
	case AppointmentStatusPending,
		AppointmentStatusConfirmed,
		AppointmentStatusCheckedIn,
		AppointmentStatusCompleted,
		AppointmentStatusCancelled,
		AppointmentStatusNoShow:
		return true
	}
	return false
}

func (s AppointmentStatus) String() string {
	return string(s)
}

// ParseAppointmentStatus accepts any letter case, e.g. "checked_in".
func ParseAppointmentStatus(raw string) (AppointmentStatus, error) {
	s := AppointmentStatus(strings.ToUpper(strings.TrimSpace(raw)))
	if !s.Valid() {
		return "", fmt.Errorf("invalid appointment status %q", raw)
	}
	return s, nil
}

type Appointment struct {
	ID              uuid.UUID         `db:"id" json:"id"`
	OrganizationID  uuid.UUID         `db:"organization_id" json:"organization_id"`
	DoctorID        uuid.UUID         `db:"doctor_id" json:"doctor_id"`
	PatientID       uuid.UUID         `db:"patient_id" json:"patient_id"`
	ScheduledStart  time.Time         `db:"scheduled_start" json:"scheduled_start"`
	DurationMinutes int               `db:"duration_minutes" json:"duration_minutes"`
	Status          AppointmentStatus `db:"status" json:"status"`
	Type            string            `db:"type" json:"type"`
	Notes           string            `db:"notes" json:"notes,omitempty"`
	Location        string            `db:"location" json:"location,omitempty"`
	CancelledAt     *time.Time        `db:"cancelled_at" json:"cancelled_at,omitempty"`
	CancelReason    *string           `db:"cancel_reason" json:"cancel_reason,omitempty"`
	CreatedAt       time.Time         `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time         `db:"updated_at" json:"updated_at"`
}

// End is the raw (unbuffered) end instant of the appointment.
func (a *Appointment) End() time.Time {
	return a.ScheduledStart.Add(time.Duration(a.DurationMinutes) * time.Minute)
}

type CreateAppointmentRequest struct {
	PatientID       uuid.UUID `json:"patient_id" binding:"required"`
	DoctorID        uuid.UUID `json:"doctor_id" binding:"required"`
	ScheduledStart  time.Time `json:"scheduled_start" binding:"required"`
	DurationMinutes *int      `json:"duration_minutes" binding:"omitempty,min=1,max=1440"`
	Type            string    `json:"type" binding:"required,max=100"`
	Notes           string    `json:"notes" binding:"max=1000"`
	Location        string    `json:"location" binding:"max=255"`
}

type UpdateStatusRequest struct {
	Status       AppointmentStatus `json:"status" binding:"required,appointment_status"`
	CancelReason string            `json:"cancel_reason" binding:"max=500"`
}

type AppointmentFilter struct {
	DoctorID  uuid.UUID
	PatientID uuid.UUID
	Status    AppointmentStatus
	From      time.Time
	To        time.Time
	Pagination
}

// Availability is the outcome of a dry-run conflict check.
type Availability struct {
	DoctorID    uuid.UUID      `json:"doctor_id"`
	WindowStart time.Time      `json:"window_start"`
	WindowEnd   time.Time      `json:"window_end"`
	Available   bool           `json:"available"`
	Conflicts   []*Appointment `json:"conflicts,omitempty"`
}
