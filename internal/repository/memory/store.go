// Package memory keeps appointments, patients and outbox events in process.
// It backs the test suites and the "memory" storage driver for local runs.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kenko/clinic-api/internal/model"
	"github.com/kenko/clinic-api/internal/repository"
	"github.com/kenko/clinic-api/internal/scheduling"
)

// Store implements the appointment, patient and outbox repositories.
// Transactions hold the store mutex for their whole duration, so every
// RunInTx call is serialized against every other one.
type Store struct {
	mu           sync.Mutex
	appointments map[uuid.UUID]*model.Appointment
	patients     map[uuid.UUID]*model.Patient
	events       []*model.OutboxEvent
}

var (
	_ repository.AppointmentRepository = (*Store)(nil)
	_ repository.PatientDirectory      = (*Store)(nil)
	_ repository.OutboxRepository      = (*Store)(nil)
)

func NewStore() *Store {
	return &Store{
		appointments: make(map[uuid.UUID]*model.Appointment),
		patients:     make(map[uuid.UUID]*model.Patient),
	}
}

// AddPatient registers a patient so bookings for it can pass the
// organization check.
func (s *Store) AddPatient(p *model.Patient) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *p
	s.patients[p.ID] = &cp
}

func (s *Store) OrganizationOf(ctx context.Context, patientID uuid.UUID) (uuid.UUID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.patients[patientID]
	if !ok {
		return uuid.Nil, fmt.Errorf("patient %s: %w", patientID, repository.ErrNotFound)
	}
	return p.OrganizationID, nil
}

func (s *Store) Ping(ctx context.Context) error {
	return ctx.Err()
}

func (s *Store) RunInTx(ctx context.Context, fn func(tx repository.AppointmentTx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	tx := &storeTx{
		appointments: make(map[uuid.UUID]*model.Appointment, len(s.appointments)),
	}
	for id, apt := range s.appointments {
		tx.appointments[id] = apt
	}

	if err := fn(tx); err != nil {
		return err
	}

	s.appointments = tx.appointments
	s.events = append(s.events, tx.events...)
	return nil
}

func (s *Store) Get(ctx context.Context, orgID, id uuid.UUID) (*model.Appointment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return lookup(s.appointments, orgID, id)
}

func (s *Store) List(ctx context.Context, orgID uuid.UUID, filter *model.AppointmentFilter) ([]*model.Appointment, error) {
	if filter == nil {
		filter = &model.AppointmentFilter{}
	}
	page := filter.Pagination.Normalize()

	s.mu.Lock()
	defer s.mu.Unlock()

	var result []*model.Appointment
	for _, apt := range s.appointments {
		if apt.OrganizationID != orgID || !matches(apt, filter) {
			continue
		}
		result = append(result, clone(apt))
	}
	sortByStart(result)

	if page.Offset >= len(result) {
		return []*model.Appointment{}, nil
	}
	result = result[page.Offset:]
	if len(result) > page.Limit {
		result = result[:page.Limit]
	}
	return result, nil
}

func (s *Store) ListForDoctor(ctx context.Context, orgID, doctorID uuid.UUID, from, to time.Time) ([]*model.Appointment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	result := []*model.Appointment{}
	for _, apt := range s.appointments {
		if apt.OrganizationID != orgID || apt.DoctorID != doctorID {
			continue
		}
		if apt.ScheduledStart.Before(from) || !apt.ScheduledStart.Before(to) {
			continue
		}
		result = append(result, clone(apt))
	}
	sortByStart(result)
	return result, nil
}

func (s *Store) GetPendingEvents(ctx context.Context, limit int) ([]*model.OutboxEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var pending []*model.OutboxEvent
	for _, evt := range s.events {
		if evt.Status != model.OutboxStatusPending {
			continue
		}
		cp := *evt
		pending = append(pending, &cp)
		if limit > 0 && len(pending) == limit {
			break
		}
	}
	return pending, nil
}

func (s *Store) MarkProcessed(ctx context.Context, id uuid.UUID) error {
	return s.updateEvent(id, func(evt *model.OutboxEvent) {
		now := time.Now().UTC()
		evt.Status = model.OutboxStatusProcessed
		evt.ProcessedAt = &now
		evt.UpdatedAt = now
	})
}

func (s *Store) MarkFailed(ctx context.Context, id uuid.UUID, errorMessage string) error {
	return s.updateEvent(id, func(evt *model.OutboxEvent) {
		evt.Status = model.OutboxStatusFailed
		evt.ErrorMessage = &errorMessage
		evt.RetryCount++
		evt.UpdatedAt = time.Now().UTC()
	})
}

func (s *Store) DeleteProcessedBefore(ctx context.Context, before time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.events[:0]
	var deleted int64
	for _, evt := range s.events {
		if evt.Status == model.OutboxStatusProcessed && evt.ProcessedAt != nil && evt.ProcessedAt.Before(before) {
			deleted++
			continue
		}
		kept = append(kept, evt)
	}
	s.events = kept
	return deleted, nil
}

func (s *Store) updateEvent(id uuid.UUID, fn func(evt *model.OutboxEvent)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, evt := range s.events {
		if evt.ID == id {
			fn(evt)
			return nil
		}
	}
	return fmt.Errorf("outbox event %s: %w", id, repository.ErrNotFound)
}

type storeTx struct {
	appointments map[uuid.UUID]*model.Appointment
	events       []*model.OutboxEvent
}

// LockDoctor is satisfied by the store mutex RunInTx already holds.
func (t *storeTx) LockDoctor(ctx context.Context, orgID, doctorID uuid.UUID) error {
	return ctx.Err()
}

func (t *storeTx) GetForUpdate(ctx context.Context, orgID, id uuid.UUID) (*model.Appointment, error) {
	return lookup(t.appointments, orgID, id)
}

func (t *storeTx) ListBlocking(ctx context.Context, orgID, doctorID uuid.UUID, from, to time.Time) ([]*model.Appointment, error) {
	window := scheduling.Window{Start: from, End: to}

	var result []*model.Appointment
	for _, apt := range t.appointments {
		if apt.OrganizationID != orgID || apt.DoctorID != doctorID || !scheduling.BlocksSchedule(apt.Status) {
			continue
		}
		if window.Overlaps(scheduling.AppointmentWindow(apt.ScheduledStart, apt.DurationMinutes)) {
			result = append(result, clone(apt))
		}
	}
	sortByStart(result)
	return result, nil
}

func (t *storeTx) Create(ctx context.Context, appointment *model.Appointment) error {
	if _, exists := t.appointments[appointment.ID]; exists {
		return fmt.Errorf("appointment %s already exists", appointment.ID)
	}
	t.appointments[appointment.ID] = clone(appointment)
	return nil
}

func (t *storeTx) UpdateStatus(ctx context.Context, appointment *model.Appointment) error {
	current, ok := t.appointments[appointment.ID]
	if !ok || current.OrganizationID != appointment.OrganizationID {
		return fmt.Errorf("appointment %s: %w", appointment.ID, repository.ErrNotFound)
	}
	updated := clone(current)
	updated.Status = appointment.Status
	updated.CancelledAt = appointment.CancelledAt
	updated.CancelReason = appointment.CancelReason
	updated.UpdatedAt = appointment.UpdatedAt
	t.appointments[appointment.ID] = updated
	return nil
}

func (t *storeTx) Delete(ctx context.Context, orgID, id uuid.UUID) error {
	if _, err := lookup(t.appointments, orgID, id); err != nil {
		return err
	}
	delete(t.appointments, id)
	return nil
}

func (t *storeTx) EnqueueEvent(ctx context.Context, event *model.OutboxEvent) error {
	if event.Payload == nil {
		return fmt.Errorf("event payload cannot be nil")
	}
	cp := *event
	if cp.ID == uuid.Nil {
		cp.ID = uuid.New()
	}
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = time.Now().UTC()
	}
	cp.UpdatedAt = cp.CreatedAt
	cp.Status = model.OutboxStatusPending
	t.events = append(t.events, &cp)
	return nil
}

func lookup(appointments map[uuid.UUID]*model.Appointment, orgID, id uuid.UUID) (*model.Appointment, error) {
	apt, ok := appointments[id]
	if !ok || apt.OrganizationID != orgID {
		return nil, fmt.Errorf("appointment %s: %w", id, repository.ErrNotFound)
	}
	return clone(apt), nil
}

func matches(apt *model.Appointment, filter *model.AppointmentFilter) bool {
	if filter.DoctorID != uuid.Nil && apt.DoctorID != filter.DoctorID {
		return false
	}
	if filter.PatientID != uuid.Nil && apt.PatientID != filter.PatientID {
		return false
	}
	if filter.Status != "" && apt.Status != filter.Status {
		return false
	}
	if !filter.From.IsZero() && apt.ScheduledStart.Before(filter.From) {
		return false
	}
	if !filter.To.IsZero() && !apt.ScheduledStart.Before(filter.To) {
		return false
	}
	return true
}

func clone(apt *model.Appointment) *model.Appointment {
	cp := *apt
	return &cp
}

func sortByStart(appointments []*model.Appointment) {
	sort.Slice(appointments, func(i, j int) bool {
		if appointments[i].ScheduledStart.Equal(appointments[j].ScheduledStart) {
			return appointments[i].ID.String() < appointments[j].ID.String()
		}
		return appointments[i].ScheduledStart.Before(appointments[j].ScheduledStart)
	})
}
