package appointment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"

	"github.com/kenko/clinic-api/internal/model"
	"github.com/kenko/clinic-api/internal/repository"
	"github.com/kenko/clinic-api/internal/scheduling"
	"github.com/kenko/clinic-api/pkg/logger"
	"github.com/kenko/clinic-api/pkg/metrics"
)

const MaxDurationMinutes = 24 * 60

type Config struct {
	// Clock defaults to time.Now.
	Clock func() time.Time
	// Location decides which calendar day an agenda covers. Defaults to UTC.
	Location *time.Location
	// DefaultLocation is stored on bookings that name no room.
	DefaultLocation   string
	OwnershipCacheTTL time.Duration
}

type Service struct {
	repo     repository.AppointmentRepository
	patients repository.PatientDirectory
	owners   *cache.Cache
	log      *logger.Logger
	metrics  *metrics.Metrics
	clock    func() time.Time
	loc      *time.Location
	room     string
}

func NewService(
	repo repository.AppointmentRepository,
	patients repository.PatientDirectory,
	log *logger.Logger,
	m *metrics.Metrics,
	cfg Config,
) *Service {
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.OwnershipCacheTTL <= 0 {
		cfg.OwnershipCacheTTL = 5 * time.Minute
	}

	return &Service{
		repo:     repo,
		patients: patients,
		owners:   cache.New(cfg.OwnershipCacheTTL, 2*cfg.OwnershipCacheTTL),
		log:      log,
		metrics:  m,
		clock:    cfg.Clock,
		loc:      cfg.Location,
		room:     cfg.DefaultLocation,
	}
}

func (s *Service) CreateAppointment(ctx context.Context, orgID uuid.UUID, req *model.CreateAppointmentRequest) (*model.Appointment, error) {
	now := s.clock().UTC()

	duration := model.DefaultDurationMinutes
	if req.DurationMinutes != nil {
		duration = *req.DurationMinutes
	}
	if duration <= 0 || duration > MaxDurationMinutes {
		return nil, ErrInvalidDuration
	}
	if req.ScheduledStart.Before(now) {
		return nil, ErrStartInPast
	}
	if err := s.checkPatient(ctx, orgID, req.PatientID); err != nil {
		return nil, err
	}

	location := strings.TrimSpace(req.Location)
	if location == "" {
		location = s.room
	}

	apt := &model.Appointment{
		ID:              uuid.New(),
		OrganizationID:  orgID,
		DoctorID:        req.DoctorID,
		PatientID:       req.PatientID,
		ScheduledStart:  req.ScheduledStart.UTC(),
		DurationMinutes: duration,
		Status:          model.AppointmentStatusPending,
		Type:            req.Type,
		Notes:           req.Notes,
		Location:        location,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	window := scheduling.EffectiveWindow(apt.ScheduledStart, apt.DurationMinutes)

	started := time.Now()
	err := s.repo.RunInTx(ctx, func(tx repository.AppointmentTx) error {
		if err := tx.LockDoctor(ctx, orgID, apt.DoctorID); err != nil {
			return err
		}

		existing, err := tx.ListBlocking(ctx, orgID, apt.DoctorID, window.Start, window.End)
		if err != nil {
			return err
		}
		if err := scheduling.CheckConflict(apt.DoctorID, orgID, apt.ScheduledStart, apt.DurationMinutes, existing); err != nil {
			return err
		}

		if err := tx.Create(ctx, apt); err != nil {
			return err
		}
		return s.enqueue(ctx, tx, apt, model.EventAppointmentCreated, apt, now)
	})
	s.observe("create_appointment", started, err)
	if err != nil {
		var conflict *scheduling.SchedulingConflictError
		if errors.As(err, &conflict) {
			s.metrics.SchedulingConflicts.Inc()
			s.log.Warn("scheduling conflict",
				"doctor_id", apt.DoctorID.String(),
				"organization_id", orgID.String(),
				"window_start", window.Start,
				"window_end", window.End)
			return nil, err
		}
		return nil, fmt.Errorf("failed to create appointment: %w", err)
	}

	s.metrics.AppointmentsCreated.Inc()
	s.log.Info("appointment created",
		"appointment_id", apt.ID.String(),
		"organization_id", orgID.String(),
		"doctor_id", apt.DoctorID.String())

	return apt, nil
}

func (s *Service) UpdateStatus(ctx context.Context, orgID, id uuid.UUID, req *model.UpdateStatusRequest) (*model.Appointment, error) {
	target, err := model.ParseAppointmentStatus(string(req.Status))
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidStatus, req.Status)
	}
	now := s.clock().UTC()

	var (
		updated *model.Appointment
		from    model.AppointmentStatus
	)
	started := time.Now()
	err = s.repo.RunInTx(ctx, func(tx repository.AppointmentTx) error {
		apt, err := tx.GetForUpdate(ctx, orgID, id)
		if err != nil {
			return err
		}

		if err := scheduling.ValidateTransition(apt.Status, target); err != nil {
			s.metrics.InvalidTransitions.WithLabelValues(apt.Status.String(), target.String()).Inc()
			return err
		}

		if target == model.AppointmentStatusCancelled {
			reason := strings.TrimSpace(req.CancelReason)
			if reason == "" {
				return ErrCancelReasonRequired
			}
			apt.CancelledAt = &now
			apt.CancelReason = &reason
		}

		from = apt.Status
		apt.Status = target
		apt.UpdatedAt = now
		if err := tx.UpdateStatus(ctx, apt); err != nil {
			return err
		}

		updated = apt
		return s.enqueue(ctx, tx, apt, model.EventAppointmentStatusChanged, &model.StatusChange{
			Appointment: apt,
			From:        from,
			To:          target,
		}, now)
	})
	s.observe("update_appointment_status", started, err)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to update appointment status: %w", err)
	}

	s.metrics.StatusTransitions.WithLabelValues(from.String(), target.String()).Inc()
	s.log.Info("appointment status updated",
		"appointment_id", id.String(),
		"from", from.String(),
		"to", target.String())

	return updated, nil
}

func (s *Service) GetAppointment(ctx context.Context, orgID, id uuid.UUID) (*model.Appointment, error) {
	started := time.Now()
	apt, err := s.repo.Get(ctx, orgID, id)
	s.observe("get_appointment", started, err)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get appointment: %w", err)
	}
	return apt, nil
}

// ListAppointments normalizes filter.Pagination in place so callers can echo
// the page that was actually served.
func (s *Service) ListAppointments(ctx context.Context, orgID uuid.UUID, filter *model.AppointmentFilter) ([]*model.Appointment, error) {
	if filter == nil {
		filter = &model.AppointmentFilter{}
	}
	if filter.Status != "" {
		status, err := model.ParseAppointmentStatus(string(filter.Status))
		if err != nil {
			return nil, fmt.Errorf("%w: %s", ErrInvalidStatus, filter.Status)
		}
		filter.Status = status
	}
	if !filter.From.IsZero() && !filter.To.IsZero() && !filter.To.After(filter.From) {
		return nil, ErrInvalidWindow
	}
	filter.Pagination = filter.Pagination.Normalize()

	started := time.Now()
	appointments, err := s.repo.List(ctx, orgID, filter)
	s.observe("list_appointments", started, err)
	if err != nil {
		return nil, fmt.Errorf("failed to list appointments: %w", err)
	}
	return appointments, nil
}

// DoctorAgenda lists a doctor's appointments on one calendar day in the
// service location, earliest first. Only the year, month and day of day are
// used; a zero day means today.
func (s *Service) DoctorAgenda(ctx context.Context, orgID, doctorID uuid.UUID, day time.Time) ([]*model.Appointment, error) {
	var (
		y int
		m time.Month
		d int
	)
	if day.IsZero() {
		y, m, d = s.clock().In(s.loc).Date()
	} else {
		y, m, d = day.Date()
	}
	start := time.Date(y, m, d, 0, 0, 0, 0, s.loc)
	end := start.AddDate(0, 0, 1)

	started := time.Now()
	appointments, err := s.repo.ListForDoctor(ctx, orgID, doctorID, start, end)
	s.observe("doctor_agenda", started, err)
	if err != nil {
		return nil, fmt.Errorf("failed to load doctor agenda: %w", err)
	}
	return appointments, nil
}

// CheckAvailability runs the booking conflict check without writing anything.
func (s *Service) CheckAvailability(ctx context.Context, orgID, doctorID uuid.UUID, start time.Time, durationMinutes int) (*model.Availability, error) {
	if durationMinutes == 0 {
		durationMinutes = model.DefaultDurationMinutes
	}
	if durationMinutes < 0 || durationMinutes > MaxDurationMinutes {
		return nil, ErrInvalidDuration
	}
	start = start.UTC()
	window := scheduling.EffectiveWindow(start, durationMinutes)

	var existing []*model.Appointment
	started := time.Now()
	err := s.repo.RunInTx(ctx, func(tx repository.AppointmentTx) error {
		var err error
		existing, err = tx.ListBlocking(ctx, orgID, doctorID, window.Start, window.End)
		return err
	})
	s.observe("check_availability", started, err)
	if err != nil {
		return nil, fmt.Errorf("failed to check availability: %w", err)
	}

	conflicts := scheduling.Conflicts(doctorID, orgID, start, durationMinutes, existing)
	return &model.Availability{
		DoctorID:    doctorID,
		WindowStart: window.Start,
		WindowEnd:   window.End,
		Available:   len(conflicts) == 0,
		Conflicts:   conflicts,
	}, nil
}

func (s *Service) DeleteAppointment(ctx context.Context, orgID, id uuid.UUID) error {
	now := s.clock().UTC()

	started := time.Now()
	err := s.repo.RunInTx(ctx, func(tx repository.AppointmentTx) error {
		apt, err := tx.GetForUpdate(ctx, orgID, id)
		if err != nil {
			return err
		}
		if err := tx.Delete(ctx, orgID, id); err != nil {
			return err
		}
		return s.enqueue(ctx, tx, apt, model.EventAppointmentDeleted, apt, now)
	})
	s.observe("delete_appointment", started, err)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("failed to delete appointment: %w", err)
	}

	s.metrics.AppointmentsDeleted.Inc()
	s.log.Info("appointment deleted", "appointment_id", id.String(), "organization_id", orgID.String())
	return nil
}

// checkPatient confirms the patient is registered with orgID. Ownership never
// changes, so found owners are cached.
func (s *Service) checkPatient(ctx context.Context, orgID, patientID uuid.UUID) error {
	key := patientID.String()

	var owner uuid.UUID
	if cached, ok := s.owners.Get(key); ok {
		s.metrics.OwnershipCacheLookup.WithLabelValues("hit").Inc()
		owner = cached.(uuid.UUID)
	} else {
		s.metrics.OwnershipCacheLookup.WithLabelValues("miss").Inc()
		started := time.Now()
		found, err := s.patients.OrganizationOf(ctx, patientID)
		s.observe("patient_lookup", started, err)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return ErrPatientNotFound
			}
			return fmt.Errorf("failed to look up patient: %w", err)
		}
		owner = found
		s.owners.SetDefault(key, owner)
	}

	if owner != orgID {
		return ErrPatientNotInOrganization
	}
	return nil
}

// observe records a store round trip. Rejections decided by the scheduling
// rules or a missing row still count as successful queries.
func (s *Service) observe(operation string, started time.Time, err error) {
	var (
		transition *scheduling.InvalidStateTransitionError
		conflict   *scheduling.SchedulingConflictError
	)
	if errors.As(err, &transition) || errors.As(err, &conflict) ||
		errors.Is(err, ErrCancelReasonRequired) || errors.Is(err, repository.ErrNotFound) {
		err = nil
	}
	s.metrics.ObserveDB(operation, time.Since(started), err)
}

func (s *Service) enqueue(ctx context.Context, tx repository.AppointmentTx, apt *model.Appointment, eventType string, payload interface{}, now time.Time) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal %s payload: %w", eventType, err)
	}
	return tx.EnqueueEvent(ctx, &model.OutboxEvent{
		ID:             uuid.New(),
		OrganizationID: apt.OrganizationID,
		AggregateID:    apt.ID,
		EventType:      eventType,
		Payload:        data,
		Status:         model.OutboxStatusPending,
		CreatedAt:      now,
		UpdatedAt:      now,
	})
}
