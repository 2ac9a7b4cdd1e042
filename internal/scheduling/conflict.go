package scheduling

import (
	"time"

	"github.com/google/uuid"

	"github.com/kenko/clinic-api/internal/model"
)

// Buffer widens a proposed booking on both sides before it is compared with
// stored appointments. Stored appointments are compared unbuffered.
const Buffer = 5 * time.Minute

// Window is a half-open interval [Start, End).
type Window struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Overlaps reports whether w and o share any instant. Windows that only touch
// at an endpoint do not overlap.
func (w Window) Overlaps(o Window) bool {
	return w.Start.Before(o.End) && o.Start.Before(w.End)
}

// AppointmentWindow is the raw window [start, start+duration).
func AppointmentWindow(start time.Time, durationMinutes int) Window {
	return Window{
		Start: start,
		End:   start.Add(time.Duration(durationMinutes) * time.Minute),
	}
}

// EffectiveWindow is the buffered window used for a proposed booking:
// [start-Buffer, start+duration+Buffer).
func EffectiveWindow(start time.Time, durationMinutes int) Window {
	raw := AppointmentWindow(start, durationMinutes)
	return Window{
		Start: raw.Start.Add(-Buffer),
		End:   raw.End.Add(Buffer),
	}
}

// BlocksSchedule reports whether an appointment in status s still occupies
// the doctor's time.
func BlocksSchedule(s model.AppointmentStatus) bool {
	return s != model.AppointmentStatusCancelled && s != model.AppointmentStatusNoShow
}

// Conflicts returns the existing appointments that collide with the proposed
// booking. Appointments for another doctor or organization, and cancelled or
// no-show appointments, are ignored.
func Conflicts(doctorID, organizationID uuid.UUID, proposedStart time.Time, proposedDurationMinutes int, existing []*model.Appointment) []*model.Appointment {
	proposed := EffectiveWindow(proposedStart, proposedDurationMinutes)

	var conflicts []*model.Appointment
	for _, apt := range existing {
		if apt == nil || apt.DoctorID != doctorID || apt.OrganizationID != organizationID {
			continue
		}
		if !BlocksSchedule(apt.Status) {
			continue
		}
		if proposed.Overlaps(AppointmentWindow(apt.ScheduledStart, apt.DurationMinutes)) {
			conflicts = append(conflicts, apt)
		}
	}
	return conflicts
}

// HasConflict reports whether the proposed booking collides with any of the
// existing appointments.
func HasConflict(doctorID, organizationID uuid.UUID, proposedStart time.Time, proposedDurationMinutes int, existing []*model.Appointment) bool {
	return len(Conflicts(doctorID, organizationID, proposedStart, proposedDurationMinutes, existing)) > 0
}

// CheckConflict is HasConflict returning a *SchedulingConflictError when the
// booking collides.
func CheckConflict(doctorID, organizationID uuid.UUID, proposedStart time.Time, proposedDurationMinutes int, existing []*model.Appointment) error {
	if HasConflict(doctorID, organizationID, proposedStart, proposedDurationMinutes, existing) {
		return &SchedulingConflictError{
			DoctorID:       doctorID,
			ProposedWindow: EffectiveWindow(proposedStart, proposedDurationMinutes),
		}
	}
	return nil
}
