package appointment

import "errors"

var (
	ErrNotFound                 = errors.New("appointment not found")
	ErrPatientNotFound          = errors.New("patient not found")
	ErrPatientNotInOrganization = errors.New("patient does not belong to this organization")
	ErrStartInPast              = errors.New("appointment cannot be scheduled in the past")
	ErrInvalidDuration          = errors.New("appointment duration must be between 1 and 1440 minutes")
	ErrInvalidStatus            = errors.New("invalid appointment status")
	ErrCancelReasonRequired     = errors.New("a cancellation reason is required")
	ErrInvalidWindow            = errors.New("window end must be after its start")
)
