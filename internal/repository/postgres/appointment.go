package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/kenko/clinic-api/internal/model"
	"github.com/kenko/clinic-api/internal/repository"
)

const appointmentColumns = `id, organization_id, doctor_id, patient_id, scheduled_start, duration_minutes,
	status, type, notes, location, cancelled_at, cancel_reason, created_at, updated_at`

// releasedStatuses no longer occupy the doctor's time.
var releasedStatuses = pq.Array([]string{
	string(model.AppointmentStatusCancelled),
	string(model.AppointmentStatusNoShow),
})

type AppointmentRepository struct {
	BaseRepository
}

var _ repository.AppointmentRepository = (*AppointmentRepository)(nil)

func NewAppointmentRepository(base BaseRepository) *AppointmentRepository {
	return &AppointmentRepository{base}
}

func (r *AppointmentRepository) RunInTx(ctx context.Context, fn func(tx repository.AppointmentTx) error) error {
	return r.WithTx(ctx, func(tx *sqlx.Tx) error {
		return fn(&appointmentTx{tx: tx})
	})
}

func (r *AppointmentRepository) Get(ctx context.Context, orgID, id uuid.UUID) (*model.Appointment, error) {
	var apt model.Appointment
	query := `SELECT ` + appointmentColumns + ` FROM appointments WHERE id = $1 AND organization_id = $2`
	if err := r.db.GetContext(ctx, &apt, query, id, orgID); err != nil {
		return nil, fmt.Errorf("failed to get appointment: %w", notFound(err, "appointment "+id.String()))
	}
	return &apt, nil
}

func (r *AppointmentRepository) List(ctx context.Context, orgID uuid.UUID, filter *model.AppointmentFilter) ([]*model.Appointment, error) {
	if filter == nil {
		filter = &model.AppointmentFilter{}
	}
	page := filter.Pagination.Normalize()

	conditions := []string{"organization_id = $1"}
	args := []interface{}{orgID}
	add := func(cond string, arg interface{}) {
		args = append(args, arg)
		conditions = append(conditions, fmt.Sprintf(cond, len(args)))
	}

	if filter.DoctorID != uuid.Nil {
		add("doctor_id = $%d", filter.DoctorID)
	}
	if filter.PatientID != uuid.Nil {
		add("patient_id = $%d", filter.PatientID)
	}
	if filter.Status != "" {
		add("status = $%d", string(filter.Status))
	}
	if !filter.From.IsZero() {
		add("scheduled_start >= $%d", filter.From)
	}
	if !filter.To.IsZero() {
		add("scheduled_start < $%d", filter.To)
	}

	args = append(args, page.Limit, page.Offset)
	query := fmt.Sprintf(`
		SELECT %s
		FROM appointments
		WHERE %s
		ORDER BY scheduled_start ASC, id ASC
		LIMIT $%d OFFSET $%d
	`, appointmentColumns, strings.Join(conditions, " AND "), len(args)-1, len(args))

	appointments := []*model.Appointment{}
	if err := r.db.SelectContext(ctx, &appointments, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list appointments: %w", err)
	}
	return appointments, nil
}

func (r *AppointmentRepository) ListForDoctor(ctx context.Context, orgID, doctorID uuid.UUID, from, to time.Time) ([]*model.Appointment, error) {
	query := `
		SELECT ` + appointmentColumns + `
		FROM appointments
		WHERE organization_id = $1 AND doctor_id = $2
		AND scheduled_start >= $3 AND scheduled_start < $4
		ORDER BY scheduled_start ASC, id ASC
	`
	appointments := []*model.Appointment{}
	if err := r.db.SelectContext(ctx, &appointments, query, orgID, doctorID, from, to); err != nil {
		return nil, fmt.Errorf("failed to list doctor appointments: %w", err)
	}
	return appointments, nil
}

type appointmentTx struct {
	tx *sqlx.Tx
}

// LockDoctor takes a transaction-scoped advisory lock keyed on the
// organization and doctor.
func (t *appointmentTx) LockDoctor(ctx context.Context, orgID, doctorID uuid.UUID) error {
	key := orgID.String() + ":" + doctorID.String()
	if _, err := t.tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`, key); err != nil {
		return fmt.Errorf("failed to lock doctor schedule: %w", err)
	}
	return nil
}

func (t *appointmentTx) GetForUpdate(ctx context.Context, orgID, id uuid.UUID) (*model.Appointment, error) {
	var apt model.Appointment
	query := `SELECT ` + appointmentColumns + ` FROM appointments WHERE id = $1 AND organization_id = $2 FOR UPDATE`
	if err := t.tx.GetContext(ctx, &apt, query, id, orgID); err != nil {
		return nil, fmt.Errorf("failed to get appointment: %w", notFound(err, "appointment "+id.String()))
	}
	return &apt, nil
}

func (t *appointmentTx) ListBlocking(ctx context.Context, orgID, doctorID uuid.UUID, from, to time.Time) ([]*model.Appointment, error) {
	query := `
		SELECT ` + appointmentColumns + `
		FROM appointments
		WHERE organization_id = $1 AND doctor_id = $2
		AND status <> ALL($3)
		AND scheduled_start < $5
		AND scheduled_start + make_interval(mins => duration_minutes) > $4
		ORDER BY scheduled_start ASC
	`
	appointments := []*model.Appointment{}
	if err := t.tx.SelectContext(ctx, &appointments, query, orgID, doctorID, releasedStatuses, from, to); err != nil {
		return nil, fmt.Errorf("failed to list blocking appointments: %w", err)
	}
	return appointments, nil
}

func (t *appointmentTx) Create(ctx context.Context, apt *model.Appointment) error {
	query := `
		INSERT INTO appointments (
			id, organization_id, doctor_id, patient_id, scheduled_start, duration_minutes,
			status, type, notes, location, cancelled_at, cancel_reason, created_at, updated_at
		) VALUES (
			:id, :organization_id, :doctor_id, :patient_id, :scheduled_start, :duration_minutes,
			:status, :type, :notes, :location, :cancelled_at, :cancel_reason, :created_at, :updated_at
		)
	`
	if _, err := t.tx.NamedExecContext(ctx, query, apt); err != nil {
		return fmt.Errorf("failed to create appointment: %w", err)
	}
	return nil
}

func (t *appointmentTx) UpdateStatus(ctx context.Context, apt *model.Appointment) error {
	query := `
		UPDATE appointments
		SET status = $1, cancelled_at = $2, cancel_reason = $3, updated_at = $4
		WHERE id = $5 AND organization_id = $6
	`
	res, err := t.tx.ExecContext(ctx, query,
		string(apt.Status),
		apt.CancelledAt,
		apt.CancelReason,
		apt.UpdatedAt,
		apt.ID,
		apt.OrganizationID,
	)
	if err != nil {
		return fmt.Errorf("failed to update appointment status: %w", err)
	}
	return expectOne(res, "appointment "+apt.ID.String())
}

func (t *appointmentTx) Delete(ctx context.Context, orgID, id uuid.UUID) error {
	res, err := t.tx.ExecContext(ctx, `DELETE FROM appointments WHERE id = $1 AND organization_id = $2`, id, orgID)
	if err != nil {
		return fmt.Errorf("failed to delete appointment: %w", err)
	}
	return expectOne(res, "appointment "+id.String())
}

func (t *appointmentTx) EnqueueEvent(ctx context.Context, event *model.OutboxEvent) error {
	if event.Payload == nil {
		return fmt.Errorf("event payload cannot be nil")
	}
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}

	query := `
		INSERT INTO outbox_events (
			id, organization_id, aggregate_id, event_type, payload, status, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := t.tx.ExecContext(ctx, query,
		event.ID,
		event.OrganizationID,
		event.AggregateID,
		event.EventType,
		string(event.Payload),
		string(model.OutboxStatusPending),
		event.CreatedAt,
		event.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create outbox event: %w", err)
	}
	return nil
}
