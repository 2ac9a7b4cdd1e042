package appointment

import (
	"context"
	stderrors "errors"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/kenko/clinic-api/internal/middleware"
	"github.com/kenko/clinic-api/internal/model"
	"github.com/kenko/clinic-api/internal/scheduling"
	"github.com/kenko/clinic-api/internal/service/appointment"
	"github.com/kenko/clinic-api/pkg/errors"
	"github.com/kenko/clinic-api/pkg/httputil"
)

const dateLayout = "2006-01-02"

type Handler struct {
	service *appointment.Service
}

func NewHandler(service *appointment.Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes mounts the appointment routes. rg is expected to carry the
// Tenant middleware.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	appointments := rg.Group("/appointments")
	{
		appointments.GET("/availability", h.CheckAvailability)
		appointments.POST("", h.CreateAppointment)
		appointments.GET("", h.ListAppointments)
		appointments.GET("/:id", h.GetAppointment)
		appointments.PATCH("/:id/status", h.UpdateStatus)
		appointments.DELETE("/:id", h.DeleteAppointment)
	}
	rg.GET("/doctors/:doctorId/agenda", h.DoctorAgenda)
}

func (h *Handler) CreateAppointment(c *gin.Context) {
	orgID, ok := organization(c)
	if !ok {
		return
	}

	var req model.CreateAppointmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithError(c, errors.NewBadRequest(middleware.DescribeBindError(err), err))
		return
	}

	apt, err := h.service.CreateAppointment(c.Request.Context(), orgID, &req)
	if err != nil {
		httputil.RespondWithError(c, toAppError(err))
		return
	}

	httputil.RespondWithCreated(c, apt)
}

func (h *Handler) GetAppointment(c *gin.Context) {
	orgID, ok := organization(c)
	if !ok {
		return
	}
	id, ok := uuidParam(c, "id", "appointment ID")
	if !ok {
		return
	}

	apt, err := h.service.GetAppointment(c.Request.Context(), orgID, id)
	if err != nil {
		httputil.RespondWithError(c, toAppError(err))
		return
	}

	httputil.RespondWithSuccess(c, apt)
}

func (h *Handler) ListAppointments(c *gin.Context) {
	orgID, ok := organization(c)
	if !ok {
		return
	}

	filter := &model.AppointmentFilter{Status: model.AppointmentStatus(c.Query("status"))}
	var err error
	if filter.DoctorID, err = optionalUUID(c.Query("doctor_id")); err != nil {
		httputil.RespondWithError(c, errors.NewBadRequest("invalid doctor ID", err))
		return
	}
	if filter.PatientID, err = optionalUUID(c.Query("patient_id")); err != nil {
		httputil.RespondWithError(c, errors.NewBadRequest("invalid patient ID", err))
		return
	}
	if filter.From, err = optionalTime(c.Query("from")); err != nil {
		httputil.RespondWithError(c, errors.NewBadRequest("from must be an RFC 3339 timestamp", err))
		return
	}
	if filter.To, err = optionalTime(c.Query("to")); err != nil {
		httputil.RespondWithError(c, errors.NewBadRequest("to must be an RFC 3339 timestamp", err))
		return
	}
	if err := c.ShouldBindQuery(&filter.Pagination); err != nil {
		httputil.RespondWithError(c, errors.NewBadRequest("limit and offset must be integers", err))
		return
	}

	appointments, err := h.service.ListAppointments(c.Request.Context(), orgID, filter)
	if err != nil {
		httputil.RespondWithError(c, toAppError(err))
		return
	}

	httputil.RespondWithList(c, appointments, filter.Limit, filter.Offset, len(appointments))
}

func (h *Handler) UpdateStatus(c *gin.Context) {
	orgID, ok := organization(c)
	if !ok {
		return
	}
	id, ok := uuidParam(c, "id", "appointment ID")
	if !ok {
		return
	}

	var req model.UpdateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithError(c, errors.NewBadRequest(middleware.DescribeBindError(err), err))
		return
	}

	apt, err := h.service.UpdateStatus(c.Request.Context(), orgID, id, &req)
	if err != nil {
		httputil.RespondWithError(c, toAppError(err))
		return
	}

	httputil.RespondWithSuccess(c, apt)
}

func (h *Handler) DeleteAppointment(c *gin.Context) {
	orgID, ok := organization(c)
	if !ok {
		return
	}
	id, ok := uuidParam(c, "id", "appointment ID")
	if !ok {
		return
	}

	if err := h.service.DeleteAppointment(c.Request.Context(), orgID, id); err != nil {
		httputil.RespondWithError(c, toAppError(err))
		return
	}

	httputil.RespondWithMessage(c, "appointment deleted")
}

// CheckAvailability answers whether doctor_id is free for a booking at start.
// duration_minutes is optional.
func (h *Handler) CheckAvailability(c *gin.Context) {
	orgID, ok := organization(c)
	if !ok {
		return
	}

	doctorID, err := uuid.Parse(c.Query("doctor_id"))
	if err != nil {
		httputil.RespondWithError(c, errors.NewBadRequest("invalid doctor ID", err))
		return
	}
	start, err := time.Parse(time.RFC3339, c.Query("start"))
	if err != nil {
		httputil.RespondWithError(c, errors.NewBadRequest("start must be an RFC 3339 timestamp", err))
		return
	}
	var minutes int
	if raw := c.Query("duration_minutes"); raw != "" {
		if minutes, err = strconv.Atoi(raw); err != nil || minutes == 0 {
			httputil.RespondWithError(c, errors.NewBadRequest(appointment.ErrInvalidDuration.Error(), err))
			return
		}
	}

	availability, err := h.service.CheckAvailability(c.Request.Context(), orgID, doctorID, start, minutes)
	if err != nil {
		httputil.RespondWithError(c, toAppError(err))
		return
	}

	httputil.RespondWithSuccess(c, availability)
}

func (h *Handler) DoctorAgenda(c *gin.Context) {
	orgID, ok := organization(c)
	if !ok {
		return
	}
	doctorID, ok := uuidParam(c, "doctorId", "doctor ID")
	if !ok {
		return
	}

	var day time.Time
	if raw := c.Query("date"); raw != "" {
		var err error
		if day, err = time.Parse(dateLayout, raw); err != nil {
			httputil.RespondWithError(c, errors.NewBadRequest("date must look like 2006-01-02", err))
			return
		}
	}

	appointments, err := h.service.DoctorAgenda(c.Request.Context(), orgID, doctorID, day)
	if err != nil {
		httputil.RespondWithError(c, toAppError(err))
		return
	}

	httputil.RespondWithSuccess(c, appointments)
}

// toAppError translates service and scheduling errors into API errors.
func toAppError(err error) *errors.AppError {
	var (
		transition *scheduling.InvalidStateTransitionError
		conflict   *scheduling.SchedulingConflictError
	)
	switch {
	case stderrors.As(err, &transition):
		return errors.NewBadRequest(err.Error(), err)
	case stderrors.As(err, &conflict):
		return errors.NewConflict(err.Error(), err)
	case stderrors.Is(err, appointment.ErrNotFound),
		stderrors.Is(err, appointment.ErrPatientNotFound):
		return errors.NewNotFound(err.Error(), err)
	case stderrors.Is(err, appointment.ErrPatientNotInOrganization):
		return errors.NewForbidden(err.Error(), err)
	case stderrors.Is(err, appointment.ErrStartInPast),
		stderrors.Is(err, appointment.ErrInvalidDuration),
		stderrors.Is(err, appointment.ErrInvalidStatus),
		stderrors.Is(err, appointment.ErrCancelReasonRequired),
		stderrors.Is(err, appointment.ErrInvalidWindow):
		return errors.NewBadRequest(err.Error(), err)
	case stderrors.Is(err, context.DeadlineExceeded):
		return errors.Timeout()
	default:
		return errors.NewInternal(err)
	}
}

func organization(c *gin.Context) (uuid.UUID, bool) {
	orgID, ok := middleware.OrganizationID(c)
	if !ok {
		httputil.RespondWithError(c, errors.NewBadRequest("missing organization", nil))
	}
	return orgID, ok
}

func uuidParam(c *gin.Context, name, what string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		httputil.RespondWithError(c, errors.NewBadRequest("invalid "+what, err))
		return uuid.Nil, false
	}
	return id, true
}

func optionalUUID(raw string) (uuid.UUID, error) {
	if raw == "" {
		return uuid.Nil, nil
	}
	return uuid.Parse(raw)
}

func optionalTime(raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339, raw)
}
