package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/kenko/clinic-api/internal/model"
)

var (
	ErrNotFound = errors.New("record not found")
)

// All repository interfaces in one file
type (
	// AppointmentRepository reads appointments and runs scheduling writes in
	// a transaction.
	AppointmentRepository interface {
		// RunInTx commits when fn returns nil and rolls back otherwise.
		RunInTx(ctx context.Context, fn func(tx AppointmentTx) error) error
		Get(ctx context.Context, orgID, id uuid.UUID) (*model.Appointment, error)
		List(ctx context.Context, orgID uuid.UUID, filter *model.AppointmentFilter) ([]*model.Appointment, error)
		ListForDoctor(ctx context.Context, orgID, doctorID uuid.UUID, from, to time.Time) ([]*model.Appointment, error)
		Ping(ctx context.Context) error
	}

	// AppointmentTx is the transactional view handed to RunInTx callbacks.
	AppointmentTx interface {
		// LockDoctor serializes scheduling for one doctor of one organization
		// until the transaction ends.
		LockDoctor(ctx context.Context, orgID, doctorID uuid.UUID) error
		GetForUpdate(ctx context.Context, orgID, id uuid.UUID) (*model.Appointment, error)
		// ListBlocking returns the doctor's appointments that still occupy time
		// and intersect [from, to).
		ListBlocking(ctx context.Context, orgID, doctorID uuid.UUID, from, to time.Time) ([]*model.Appointment, error)
		Create(ctx context.Context, appointment *model.Appointment) error
		UpdateStatus(ctx context.Context, appointment *model.Appointment) error
		Delete(ctx context.Context, orgID, id uuid.UUID) error
		EnqueueEvent(ctx context.Context, event *model.OutboxEvent) error
	}

	PatientDirectory interface {
		OrganizationOf(ctx context.Context, patientID uuid.UUID) (uuid.UUID, error)
	}

	OutboxRepository interface {
		GetPendingEvents(ctx context.Context, limit int) ([]*model.OutboxEvent, error)
		MarkProcessed(ctx context.Context, id uuid.UUID) error
		MarkFailed(ctx context.Context, id uuid.UUID, errorMessage string) error
		DeleteProcessedBefore(ctx context.Context, before time.Time) (int64, error)
	}
)
