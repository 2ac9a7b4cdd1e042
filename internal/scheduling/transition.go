// Package scheduling holds the appointment rules that do not depend on storage
// or transport: which status changes are legal and whether a proposed booking
// collides with a doctor's existing appointments. Everything here is pure.
package scheduling

import (
	"github.com/kenko/clinic-api/internal/model"
)

// AllowedTransitions returns the statuses reachable in one step from s.
// Terminal and unknown statuses have none.
func AllowedTransitions(s model.AppointmentStatus) []model.AppointmentStatus {
	switch s {
	case model.AppointmentStatusPending:
		return []model.AppointmentStatus{
			model.AppointmentStatusConfirmed,
			model.AppointmentStatusCancelled,
		}
	case model.AppointmentStatusConfirmed:
		return []model.AppointmentStatus{
			model.AppointmentStatusCheckedIn,
			model.AppointmentStatusCancelled,
			model.AppointmentStatusNoShow,
		}
	case model.AppointmentStatusCheckedIn:
		return []model.AppointmentStatus{
			model.AppointmentStatusCompleted,
		}
	case model.AppointmentStatusCompleted,
		model.AppointmentStatusCancelled,
		model.AppointmentStatusNoShow:
		return nil
	default:
		return nil
	}
}

// IsValidTransition reports whether an appointment in current may move to
// requested. Self transitions are never valid.
func IsValidTransition(current, requested model.AppointmentStatus) bool {
	for _, next := range AllowedTransitions(current) {
		if next == requested {
			return true
		}
	}
	return false
}

// IsTerminal reports whether s has no outgoing transitions.
func IsTerminal(s model.AppointmentStatus) bool {
	return s.Valid() && len(AllowedTransitions(s)) == 0
}

// ValidateTransition is IsValidTransition returning an
// *InvalidStateTransitionError on rejection.
func ValidateTransition(current, requested model.AppointmentStatus) error {
	if !IsValidTransition(current, requested) {
		return &InvalidStateTransitionError{From: current, To: requested}
	}
	return nil
}
