package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type OutboxStatus string

const (
	OutboxStatusPending   OutboxStatus = "PENDING"
	OutboxStatusProcessed OutboxStatus = "PROCESSED"
	OutboxStatusFailed    OutboxStatus = "FAILED"
)

const (
	EventAppointmentCreated       = "appointment.created"
	EventAppointmentStatusChanged = "appointment.status_changed"
	EventAppointmentDeleted       = "appointment.deleted"
)

type OutboxEvent struct {
	ID             uuid.UUID       `db:"id" json:"id"`
	OrganizationID uuid.UUID       `db:"organization_id" json:"organization_id"`
	AggregateID    uuid.UUID       `db:"aggregate_id" json:"aggregate_id"`
	EventType      string          `db:"event_type" json:"event_type"`
	Payload        json.RawMessage `db:"payload" json:"payload"`
	Status         OutboxStatus    `db:"status" json:"status"`
	ErrorMessage   *string         `db:"error_message" json:"error_message,omitempty"`
	RetryCount     int             `db:"retry_count" json:"retry_count"`
	CreatedAt      time.Time       `db:"created_at" json:"created_at"`
	ProcessedAt    *time.Time      `db:"processed_at" json:"processed_at,omitempty"`
	UpdatedAt      time.Time       `db:"updated_at" json:"updated_at"`
}

// StatusChange is the payload of appointment.status_changed events.
type StatusChange struct {
	Appointment *Appointment      `json:"appointment"`
	From        AppointmentStatus `json:"from"`
	To          AppointmentStatus `json:"to"`
}
