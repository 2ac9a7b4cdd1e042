package scheduling

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kenko/clinic-api/internal/model"
)

var (
	doctorID = uuid.MustParse("2b1f4d0e-8f5c-4a59-9e59-0d7a3c1f6a11")
	orgID    = uuid.MustParse("7c0d3a52-1e4b-4f0a-bb0c-5d2e9f8a4c22")
)

func at(hour, minute int) time.Time {
	return time.Date(2026, time.March, 9, hour, minute, 0, 0, time.UTC)
}

func existingAt(start time.Time, minutes int, status model.AppointmentStatus) *model.Appointment {
	return &model.Appointment{
		ID:              uuid.New(),
		OrganizationID:  orgID,
		DoctorID:        doctorID,
		PatientID:       uuid.New(),
		ScheduledStart:  start,
		DurationMinutes: minutes,
		Status:          status,
	}
}

func TestHasConflict_Scenarios(t *testing.T) {
	tests := []struct {
		name     string
		existing *model.Appointment
		start    time.Time
		minutes  int
		want     bool
	}{
		{
			name:     "buffered proposal overlaps confirmed booking",
			existing: existingAt(at(10, 0), 30, model.AppointmentStatusConfirmed),
			start:    at(10, 25),
			minutes:  30,
			want:     true,
		},
		{
			name:     "proposal well after booking",
			existing: existingAt(at(10, 0), 30, model.AppointmentStatusConfirmed),
			start:    at(11, 0),
			minutes:  30,
			want:     false,
		},
		{
			name:     "cancelled booking is ignored",
			existing: existingAt(at(10, 0), 30, model.AppointmentStatusCancelled),
			start:    at(10, 10),
			minutes:  30,
			want:     false,
		},
		{
			name:     "no show booking is ignored",
			existing: existingAt(at(10, 0), 30, model.AppointmentStatusNoShow),
			start:    at(10, 10),
			minutes:  30,
			want:     false,
		},
		{
			name:     "completed booking still blocks",
			existing: existingAt(at(10, 0), 30, model.AppointmentStatusCompleted),
			start:    at(10, 10),
			minutes:  30,
			want:     true,
		},
		{
			name:     "buffer reaches back into booking",
			existing: existingAt(at(10, 0), 30, model.AppointmentStatusPending),
			start:    at(10, 34),
			minutes:  30,
			want:     true,
		},
		{
			name:     "buffer ends exactly at booking end",
			existing: existingAt(at(10, 0), 30, model.AppointmentStatusPending),
			start:    at(10, 35),
			minutes:  30,
			want:     false,
		},
		{
			name:     "buffer ends exactly at booking start",
			existing: existingAt(at(10, 0), 30, model.AppointmentStatusPending),
			start:    at(9, 25),
			minutes:  30,
			want:     false,
		},
		{
			name:     "zero duration proposal inside booking",
			existing: existingAt(at(10, 0), 30, model.AppointmentStatusConfirmed),
			start:    at(10, 15),
			minutes:  0,
			want:     true,
		},
		{
			name:     "zero duration booking caught by buffer",
			existing: existingAt(at(10, 0), 0, model.AppointmentStatusConfirmed),
			start:    at(10, 3),
			minutes:  30,
			want:     true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := HasConflict(doctorID, orgID, tt.start, tt.minutes, []*model.Appointment{tt.existing})
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestHasConflict_IgnoresOtherDoctorsAndOrganizations(t *testing.T) {
	otherDoctor := existingAt(at(10, 0), 30, model.AppointmentStatusConfirmed)
	otherDoctor.DoctorID = uuid.New()

	otherOrg := existingAt(at(10, 0), 30, model.AppointmentStatusConfirmed)
	otherOrg.OrganizationID = uuid.New()

	existing := []*model.Appointment{otherDoctor, otherOrg, nil}
	assert.False(t, HasConflict(doctorID, orgID, at(10, 0), 30, existing))
}

func TestHasConflict_EmptyCandidates(t *testing.T) {
	assert.False(t, HasConflict(doctorID, orgID, at(10, 0), 30, nil))
}

func TestWindow_AdjacentDoesNotOverlap(t *testing.T) {
	existing := AppointmentWindow(at(10, 0), 30)
	proposed := AppointmentWindow(at(10, 30), 30)

	assert.False(t, existing.Overlaps(proposed))
	assert.False(t, proposed.Overlaps(existing))
}

func TestWindow_OverlapIsSymmetric(t *testing.T) {
	var windows []Window
	for _, start := range []time.Time{at(9, 50), at(10, 0), at(10, 15), at(10, 30), at(10, 45)} {
		for _, minutes := range []int{0, 15, 30, 60} {
			windows = append(windows, AppointmentWindow(start, minutes))
		}
	}

	for _, a := range windows {
		for _, b := range windows {
			assert.Equal(t, a.Overlaps(b), b.Overlaps(a), "%v vs %v", a, b)
		}
	}
}

func TestHasConflict_SwappingRolesKeepsVerdict(t *testing.T) {
	tests := []struct {
		name           string
		aStart, bStart time.Time
		minutes        int
	}{
		{"overlapping", at(10, 0), at(10, 20), 30},
		{"within buffer", at(10, 0), at(10, 33), 30},
		{"far apart", at(10, 0), at(12, 0), 30},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := existingAt(tt.aStart, tt.minutes, model.AppointmentStatusConfirmed)
			b := existingAt(tt.bStart, tt.minutes, model.AppointmentStatusConfirmed)

			aProposed := HasConflict(doctorID, orgID, tt.aStart, tt.minutes, []*model.Appointment{b})
			bProposed := HasConflict(doctorID, orgID, tt.bStart, tt.minutes, []*model.Appointment{a})
			assert.Equal(t, aProposed, bProposed)
		})
	}
}

func TestEffectiveWindow(t *testing.T) {
	w := EffectiveWindow(at(10, 25), 30)
	assert.Equal(t, at(10, 20), w.Start)
	assert.Equal(t, at(11, 0), w.End)

	point := EffectiveWindow(at(10, 0), 0)
	assert.Equal(t, at(9, 55), point.Start)
	assert.Equal(t, at(10, 5), point.End)
}

func TestConflicts_ReturnsOnlyOverlapping(t *testing.T) {
	hit := existingAt(at(10, 0), 30, model.AppointmentStatusConfirmed)
	miss := existingAt(at(13, 0), 30, model.AppointmentStatusConfirmed)
	cancelled := existingAt(at(10, 15), 30, model.AppointmentStatusCancelled)

	got := Conflicts(doctorID, orgID, at(10, 25), 30, []*model.Appointment{hit, miss, cancelled})
	require.Len(t, got, 1)
	assert.Equal(t, hit.ID, got[0].ID)
}

func TestCheckConflict(t *testing.T) {
	existing := []*model.Appointment{existingAt(at(10, 0), 30, model.AppointmentStatusConfirmed)}

	require.NoError(t, CheckConflict(doctorID, orgID, at(11, 0), 30, existing))

	err := CheckConflict(doctorID, orgID, at(10, 25), 30, existing)
	require.Error(t, err)

	var conflict *SchedulingConflictError
	require.True(t, errors.As(err, &conflict))
	assert.Equal(t, doctorID, conflict.DoctorID)
	assert.Equal(t, at(10, 20), conflict.ProposedWindow.Start)
	assert.Equal(t, at(11, 0), conflict.ProposedWindow.End)
}
