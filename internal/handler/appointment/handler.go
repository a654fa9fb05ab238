package appointment

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/clinicops/scheduler-api/internal/middleware"
	"github.com/clinicops/scheduler-api/internal/model"
	"github.com/clinicops/scheduler-api/internal/service/appointment"
	"github.com/clinicops/scheduler-api/internal/service/schedule"
	apperrors "github.com/clinicops/scheduler-api/pkg/errors"
	"github.com/clinicops/scheduler-api/pkg/httputil"
)

type Handler struct {
	service     *appointment.Service
	scheduleSvc *schedule.Service
}

func NewHandler(service *appointment.Service, scheduleSvc *schedule.Service) *Handler {
	return &Handler{service: service, scheduleSvc: scheduleSvc}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	appointments := rg.Group("/appointments")
	{
		appointments.POST("", h.CreateAppointment)
		appointments.GET("", h.ListAppointments)
		appointments.GET("/today", h.TodaysAppointments)
		appointments.GET("/upcoming", h.UpcomingAppointments)
		appointments.GET("/statistics", h.Statistics)
		appointments.GET("/availability", h.CheckAvailability)
		appointments.GET("/doctor/:doctorId", h.AppointmentsByDoctor)
		appointments.GET("/doctor/:doctorId/schedule", h.DoctorSchedule)
		appointments.GET("/patient/:patientId", h.AppointmentsByPatient)
		appointments.GET("/:id", h.GetAppointment)
		appointments.PUT("/:id", h.UpdateAppointment)
		appointments.PUT("/:id/status", h.UpdateStatus)
		appointments.PUT("/:id/cancel", h.CancelAppointment)
		appointments.DELETE("/:id", h.DeleteAppointment)
	}
}

func (h *Handler) CreateAppointment(c *gin.Context) {
	var req model.CreateAppointmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithError(c, bindError(err))
		return
	}

	createdBy, err := callerID(c)
	if err != nil {
		httputil.RespondWithError(c, apperrors.Unauthorized(err))
		return
	}

	apt, err := h.service.Create(c.Request.Context(), &req, createdBy)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithCreated(c, apt)
}

func (h *Handler) GetAppointment(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httputil.RespondWithError(c, apperrors.BadRequest("invalid appointment ID", err))
		return
	}

	apt, err := h.service.Get(c.Request.Context(), id)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithSuccess(c, apt)
}

func (h *Handler) ListAppointments(c *gin.Context) {
	filters := &model.AppointmentFilters{}

	if v := c.Query("doctor_id"); v != "" {
		doctorID, err := uuid.Parse(v)
		if err != nil {
			httputil.RespondWithError(c, apperrors.BadRequest("invalid doctor ID", err))
			return
		}
		filters.DoctorID = &doctorID
	}
	if v := c.Query("patient_id"); v != "" {
		patientID, err := uuid.Parse(v)
		if err != nil {
			httputil.RespondWithError(c, apperrors.BadRequest("invalid patient ID", err))
			return
		}
		filters.PatientID = &patientID
	}
	if v := c.Query("status"); v != "" {
		status := model.AppointmentStatus(v)
		if !status.Valid() {
			httputil.RespondWithError(c, apperrors.BadRequest(fmt.Sprintf("invalid status %q", v), nil))
			return
		}
		filters.Statuses = []model.AppointmentStatus{status}
	}
	if v := c.Query("start_date"); v != "" {
		from, err := parseTime(v)
		if err != nil {
			httputil.RespondWithError(c, apperrors.BadRequest("invalid start_date", err))
			return
		}
		filters.From = &from
	}
	if v := c.Query("end_date"); v != "" {
		to, err := parseEndTime(v)
		if err != nil {
			httputil.RespondWithError(c, apperrors.BadRequest("invalid end_date", err))
			return
		}
		filters.To = &to
	}

	appointments, err := h.service.List(c.Request.Context(), filters)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithSuccess(c, appointments)
}

func (h *Handler) TodaysAppointments(c *gin.Context) {
	appointments, err := h.scheduleSvc.Today(c.Request.Context())
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, appointments)
}

func (h *Handler) UpcomingAppointments(c *gin.Context) {
	days := -1
	if v := c.Query("days"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed < 0 {
			httputil.RespondWithError(c, apperrors.BadRequest("days must be a non-negative integer", err))
			return
		}
		days = parsed
	}

	appointments, err := h.scheduleSvc.Upcoming(c.Request.Context(), days)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, appointments)
}

func (h *Handler) Statistics(c *gin.Context) {
	var from, to *time.Time
	if v := c.Query("start_date"); v != "" {
		t, err := parseTime(v)
		if err != nil {
			httputil.RespondWithError(c, apperrors.BadRequest("invalid start_date", err))
			return
		}
		from = &t
	}
	if v := c.Query("end_date"); v != "" {
		t, err := parseEndTime(v)
		if err != nil {
			httputil.RespondWithError(c, apperrors.BadRequest("invalid end_date", err))
			return
		}
		to = &t
	}

	stats, err := h.scheduleSvc.Statistics(c.Request.Context(), from, to)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, stats)
}

func (h *Handler) CheckAvailability(c *gin.Context) {
	doctorID, err := uuid.Parse(c.Query("doctor_id"))
	if err != nil {
		httputil.RespondWithError(c, apperrors.BadRequest("invalid doctor ID", err))
		return
	}
	start, err := parseTime(c.Query("start_time"))
	if err != nil {
		httputil.RespondWithError(c, apperrors.BadRequest("invalid start_time", err))
		return
	}

	duration := 0
	if v := c.Query("duration"); v != "" {
		duration, err = strconv.Atoi(v)
		if err != nil || duration <= 0 {
			httputil.RespondWithError(c, apperrors.BadRequest("duration must be a positive integer", err))
			return
		}
	}

	available, err := h.service.IsAvailable(c.Request.Context(), doctorID, start, duration, nil)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, gin.H{"available": available})
}

func (h *Handler) AppointmentsByDoctor(c *gin.Context) {
	doctorID, err := uuid.Parse(c.Param("doctorId"))
	if err != nil {
		httputil.RespondWithError(c, apperrors.BadRequest("invalid doctor ID", err))
		return
	}

	var date *time.Time
	if v := c.Query("date"); v != "" {
		t, err := parseTime(v)
		if err != nil {
			httputil.RespondWithError(c, apperrors.BadRequest("invalid date", err))
			return
		}
		date = &t
	}

	appointments, err := h.scheduleSvc.ByDoctor(c.Request.Context(), doctorID, date)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, appointments)
}

func (h *Handler) DoctorSchedule(c *gin.Context) {
	doctorID, err := uuid.Parse(c.Param("doctorId"))
	if err != nil {
		httputil.RespondWithError(c, apperrors.BadRequest("invalid doctor ID", err))
		return
	}
	from, err := parseTime(c.Query("start_date"))
	if err != nil {
		httputil.RespondWithError(c, apperrors.BadRequest("invalid start_date", err))
		return
	}
	to, err := parseEndTime(c.Query("end_date"))
	if err != nil {
		httputil.RespondWithError(c, apperrors.BadRequest("invalid end_date", err))
		return
	}

	appointments, err := h.scheduleSvc.DoctorSchedule(c.Request.Context(), doctorID, from, to)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, appointments)
}

func (h *Handler) AppointmentsByPatient(c *gin.Context) {
	patientID, err := uuid.Parse(c.Param("patientId"))
	if err != nil {
		httputil.RespondWithError(c, apperrors.BadRequest("invalid patient ID", err))
		return
	}

	appointments, err := h.scheduleSvc.ByPatient(c.Request.Context(), patientID)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, appointments)
}

func (h *Handler) UpdateAppointment(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httputil.RespondWithError(c, apperrors.BadRequest("invalid appointment ID", err))
		return
	}

	var req model.UpdateAppointmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithError(c, bindError(err))
		return
	}

	apt, err := h.service.Update(c.Request.Context(), id, &req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithSuccess(c, apt)
}

func (h *Handler) UpdateStatus(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httputil.RespondWithError(c, apperrors.BadRequest("invalid appointment ID", err))
		return
	}

	var req model.UpdateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithError(c, bindError(err))
		return
	}

	apt, err := h.service.UpdateStatus(c.Request.Context(), id, req.Status)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithSuccess(c, apt)
}

func (h *Handler) CancelAppointment(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httputil.RespondWithError(c, apperrors.BadRequest("invalid appointment ID", err))
		return
	}

	apt, err := h.service.Cancel(c.Request.Context(), id)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithSuccess(c, apt)
}

func (h *Handler) DeleteAppointment(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httputil.RespondWithError(c, apperrors.BadRequest("invalid appointment ID", err))
		return
	}

	if err := h.service.Delete(c.Request.Context(), id); err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithSuccess(c, gin.H{"deleted": id})
}

func callerID(c *gin.Context) (uuid.UUID, error) {
	raw := c.GetString(middleware.ContextUserID)
	if raw == "" {
		return uuid.Nil, fmt.Errorf("missing caller identity")
	}
	return uuid.Parse(raw)
}

// parseTime accepts RFC 3339 timestamps and bare dates.
func parseTime(v string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", v)
}

// parseEndTime is parseTime for upper bounds: a bare date is widened to
// the end of that day so the whole day stays inside the range.
func parseEndTime(v string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t, nil
	}
	t, err := time.Parse("2006-01-02", v)
	if err != nil {
		return time.Time{}, err
	}
	return t.Add(24*time.Hour - time.Nanosecond), nil
}

func bindError(err error) error {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return apperrors.BadRequest(fmt.Sprintf("field %s failed validation on %s", fe.Field(), fe.Tag()), err)
	}
	return apperrors.BadRequest("invalid request body", err)
}
