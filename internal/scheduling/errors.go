package scheduling

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/kenko/clinic-api/internal/model"
)

// InvalidStateTransitionError is returned when a status change is not an edge
// of the appointment lifecycle.
type InvalidStateTransitionError struct {
	From model.AppointmentStatus
	To   model.AppointmentStatus
}

func (e *InvalidStateTransitionError) Error() string {
	return fmt.Sprintf("cannot change appointment status from %s to %s", e.From, e.To)
}

// SchedulingConflictError is returned when a proposed booking overlaps an
// appointment the doctor already holds. The caller has to pick another time.
type SchedulingConflictError struct {
	DoctorID       uuid.UUID
	ProposedWindow Window
}

func (e *SchedulingConflictError) Error() string {
	return fmt.Sprintf("doctor %s is not available between %s and %s",
		e.DoctorID,
		e.ProposedWindow.Start.Format(time.RFC3339),
		e.ProposedWindow.End.Format(time.RFC3339),
	)
}
