package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/kenko/clinic-api/internal/repository"
)

type PatientRepository struct {
	BaseRepository
}

var _ repository.PatientDirectory = (*PatientRepository)(nil)

func NewPatientRepository(base BaseRepository) *PatientRepository {
	return &PatientRepository{base}
}

func (r *PatientRepository) OrganizationOf(ctx context.Context, patientID uuid.UUID) (uuid.UUID, error) {
	var orgID uuid.UUID
	err := r.db.GetContext(ctx, &orgID, `SELECT organization_id FROM patients WHERE id = $1`, patientID)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to get patient organization: %w", notFound(err, "patient "+patientID.String()))
	}
	return orgID, nil
}
