package model

import (
	"github.com/google/uuid"
)

// Patient is the slice of a patient record the scheduler needs: which
// organization owns it.
type Patient struct {
	ID             uuid.UUID `json:"id" db:"id"`
	OrganizationID uuid.UUID `json:"organization_id" db:"organization_id"`
	FirstName      string    `json:"first_name" db:"first_name"`
	LastName       string    `json:"last_name" db:"last_name"`
}

// Pagination represents common pagination parameters
type Pagination struct {
	Limit  int `json:"limit" form:"limit"`
	Offset int `json:"offset" form:"offset"`
}

const (
	DefaultListLimit = 50
	MaxListLimit     = 200
)

// Normalize clamps the limit into [1, MaxListLimit] and the offset to >= 0.
func (p Pagination) Normalize() Pagination {
	if p.Limit <= 0 {
		p.Limit = DefaultListLimit
	}
	if p.Limit > MaxListLimit {
		p.Limit = MaxListLimit
	}
	if p.Offset < 0 {
		p.Offset = 0
	}
	return p
}
