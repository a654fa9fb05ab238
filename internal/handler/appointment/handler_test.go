package appointment

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clinicops/scheduler-api/internal/config"
	"github.com/clinicops/scheduler-api/internal/model"
	"github.com/clinicops/scheduler-api/internal/repository/memory"
	appointmentsvc "github.com/clinicops/scheduler-api/internal/service/appointment"
	"github.com/clinicops/scheduler-api/internal/service/schedule"
)

func newTestRouter(t *testing.T) (*gin.Engine, *memory.AppointmentRepository) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	repo := memory.NewAppointmentRepository()
	cfg := config.SchedulingConfig{BufferMinutes: 60, EnforceTransitions: true, DefaultDuration: 30}
	svc := appointmentsvc.NewService(repo, cfg, nil, nil, zerolog.Nop())
	scheduleSvc := schedule.NewService(repo, cfg)

	router := gin.New()
	NewHandler(svc, scheduleSvc).RegisterRoutes(router.Group("/api/v1"))
	return router, repo
}

func seedAt(t *testing.T, repo *memory.AppointmentRepository, doctorID uuid.UUID, start time.Time) *model.Appointment {
	t.Helper()
	apt := &model.Appointment{
		ID:              uuid.New(),
		PatientID:       uuid.New(),
		DoctorID:        doctorID,
		CreatedByUserID: uuid.New(),
		StartTime:       start,
		Duration:        30,
		EndTime:         start.Add(30 * time.Minute),
		Status:          model.AppointmentStatusScheduled,
		Type:            model.AppointmentTypeConsultation,
		Priority:        model.PriorityMedium,
	}
	require.NoError(t, repo.Create(context.Background(), apt))
	return apt
}

func TestDoctorScheduleBareEndDateCoversWholeDay(t *testing.T) {
	router, repo := newTestRouter(t)
	doctorID := uuid.New()

	early := seedAt(t, repo, doctorID, time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC))
	late := seedAt(t, repo, doctorID, time.Date(2025, 1, 2, 18, 0, 0, 0, time.UTC))
	seedAt(t, repo, doctorID, time.Date(2025, 1, 3, 9, 0, 0, 0, time.UTC))

	url := fmt.Sprintf("/api/v1/appointments/doctor/%s/schedule?start_date=2025-01-01&end_date=2025-01-02", doctorID)
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, url, nil)
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Success bool                 `json:"success"`
		Data    []*model.Appointment `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.True(t, body.Success)

	require.Len(t, body.Data, 2)
	assert.Equal(t, early.ID, body.Data[0].ID)
	assert.Equal(t, late.ID, body.Data[1].ID)
}

func TestParseEndTime(t *testing.T) {
	ts, err := parseEndTime("2025-01-02T10:30:00Z")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 1, 2, 10, 30, 0, 0, time.UTC), ts)

	ts, err = parseEndTime("2025-01-02")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 1, 2, 23, 59, 59, int(time.Second-time.Nanosecond), time.UTC), ts)

	_, err = parseEndTime("bogus")
	assert.Error(t, err)
}
