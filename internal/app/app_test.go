package app

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kenko/clinic-api/config"
	"github.com/kenko/clinic-api/internal/middleware"
	"github.com/kenko/clinic-api/internal/model"
	"github.com/kenko/clinic-api/pkg/logger"
	"github.com/kenko/clinic-api/pkg/messaging"
)

func memoryConfig(t *testing.T, patientID, orgID uuid.UUID) *config.Config {
	t.Helper()
	t.Setenv("CLINIC_STORAGE_DRIVER", "memory")
	t.Setenv("CLINIC_SERVER_MODE", "test")
	cfg, err := config.LoadConfig("")
	require.NoError(t, err)
	cfg.Storage.Patients = []config.PatientSeed{{ID: patientID, OrganizationID: orgID}}
	return cfg
}

func TestApp_MemoryEndToEnd(t *testing.T) {
	patientID, orgID := uuid.New(), uuid.New()
	cfg := memoryConfig(t, patientID, orgID)

	a, err := New(context.Background(), cfg, logger.Nop())
	require.NoError(t, err)
	defer a.Close()
	assert.Nil(t, a.DB())

	broker, err := a.Broker(context.Background())
	require.NoError(t, err)
	assert.IsType(t, &messaging.LogBroker{}, broker)

	r, err := a.Router()
	require.NoError(t, err)

	body, err := json.Marshal(map[string]interface{}{
		"patient_id":      patientID,
		"doctor_id":       uuid.New(),
		"scheduled_start": time.Now().Add(48 * time.Hour).UTC().Format(time.RFC3339),
		"type":            "consultation",
	})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/appointments", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(middleware.HeaderXOrganizationID, orgID.String())
	w := httptest.NewRecorder()
	r.Engine().ServeHTTP(w, req)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = httptest.NewRecorder()
	r.Engine().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/health/ready", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	r.Engine().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "clinic_scheduling_appointments_created_total 1")

	processor, cleanup, err := a.Workers(broker)
	require.NoError(t, err)
	require.NotNil(t, cleanup)

	n, err := processor.ProcessBatch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	pending, err := a.Outbox.GetPendingEvents(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestApp_PendingEventsCarryCreatedType(t *testing.T) {
	patientID, orgID := uuid.New(), uuid.New()
	a, err := New(context.Background(), memoryConfig(t, patientID, orgID), logger.Nop())
	require.NoError(t, err)
	defer a.Close()

	svc, err := a.Service()
	require.NoError(t, err)

	minutes := 20
	_, err = svc.CreateAppointment(context.Background(), orgID, &model.CreateAppointmentRequest{
		PatientID:       patientID,
		DoctorID:        uuid.New(),
		ScheduledStart:  time.Now().Add(time.Hour),
		DurationMinutes: &minutes,
		Type:            "follow-up",
	})
	require.NoError(t, err)

	pending, err := a.Outbox.GetPendingEvents(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, model.EventAppointmentCreated, pending[0].EventType)
}
