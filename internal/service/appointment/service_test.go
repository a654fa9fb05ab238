package appointment_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clinicops/scheduler-api/internal/config"
	"github.com/clinicops/scheduler-api/internal/model"
	"github.com/clinicops/scheduler-api/internal/repository/memory"
	"github.com/clinicops/scheduler-api/internal/service/appointment"
	apperrors "github.com/clinicops/scheduler-api/pkg/errors"
)

func defaultConfig() config.SchedulingConfig {
	return config.SchedulingConfig{
		BufferMinutes:      60,
		EnforceTransitions: true,
		DefaultDuration:    30,
	}
}

func newTestService(t *testing.T, cfg config.SchedulingConfig) (*appointment.Service, *memory.AppointmentRepository) {
	t.Helper()
	repo := memory.NewAppointmentRepository()
	svc := appointment.NewService(repo, cfg, nil, nil, zerolog.Nop())
	return svc, repo
}

func createReq(doctorID, patientID uuid.UUID, start time.Time, duration int) *model.CreateAppointmentRequest {
	return &model.CreateAppointmentRequest{
		AppointmentDateTime: start,
		Duration:            duration,
		Type:                model.AppointmentTypeConsultation,
		DoctorID:            doctorID,
		PatientID:           patientID,
	}
}

func TestCreateAppointmentDefaults(t *testing.T) {
	svc, _ := newTestService(t, defaultConfig())
	doctorID, patientID, createdBy := uuid.New(), uuid.New(), uuid.New()
	start := time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)

	apt, err := svc.Create(context.Background(), createReq(doctorID, patientID, start, 0), createdBy)
	require.NoError(t, err)

	assert.NotEqual(t, uuid.Nil, apt.ID)
	assert.Equal(t, model.AppointmentStatusScheduled, apt.Status)
	assert.Equal(t, 30, apt.Duration)
	assert.Equal(t, model.PriorityMedium, apt.Priority)
	assert.Equal(t, start.Add(30*time.Minute), apt.EndTime)
	assert.Equal(t, createdBy, apt.CreatedByUserID)
	assert.Nil(t, apt.ActualStartTime)
	assert.Nil(t, apt.ActualEndTime)
}

func TestCreateAppointmentConflicts(t *testing.T) {
	svc, _ := newTestService(t, defaultConfig())
	ctx := context.Background()
	doctorID := uuid.New()
	day := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	_, err := svc.Create(ctx, createReq(doctorID, uuid.New(), day.Add(10*time.Hour), 30), uuid.New())
	require.NoError(t, err)

	tests := []struct {
		name      string
		start     time.Time
		wantsSlot bool
	}{
		{"inside existing window", day.Add(10*time.Hour + 15*time.Minute), false},
		{"existing start inside proposed window", day.Add(9*time.Hour + 30*time.Minute), false},
		{"within look-back buffer", day.Add(10*time.Hour + 45*time.Minute), false},
		{"outside buffer after", day.Add(11*time.Hour + 30*time.Minute), true},
		{"well before existing", day.Add(8 * time.Hour), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Create(ctx, createReq(doctorID, uuid.New(), tt.start, 30), uuid.New())
			if tt.wantsSlot {
				assert.NoError(t, err)
			} else {
				assert.True(t, apperrors.IsConflict(err), "expected conflict, got %v", err)
			}
		})
	}
}

func TestCreateAppointmentOtherDoctorUnaffected(t *testing.T) {
	svc, _ := newTestService(t, defaultConfig())
	ctx := context.Background()
	start := time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)

	_, err := svc.Create(ctx, createReq(uuid.New(), uuid.New(), start, 30), uuid.New())
	require.NoError(t, err)

	_, err = svc.Create(ctx, createReq(uuid.New(), uuid.New(), start, 30), uuid.New())
	assert.NoError(t, err)
}

func TestCreateAfterCancelSucceeds(t *testing.T) {
	svc, _ := newTestService(t, defaultConfig())
	ctx := context.Background()
	doctorID := uuid.New()
	start := time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)

	first, err := svc.Create(ctx, createReq(doctorID, uuid.New(), start, 30), uuid.New())
	require.NoError(t, err)

	conflicting := createReq(doctorID, uuid.New(), start.Add(15*time.Minute), 30)
	_, err = svc.Create(ctx, conflicting, uuid.New())
	require.True(t, apperrors.IsConflict(err))

	_, err = svc.Cancel(ctx, first.ID)
	require.NoError(t, err)

	_, err = svc.Create(ctx, conflicting, uuid.New())
	assert.NoError(t, err)
}

func TestCompletedAppointmentFreesSlot(t *testing.T) {
	svc, _ := newTestService(t, defaultConfig())
	ctx := context.Background()
	doctorID := uuid.New()
	start := time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)

	apt, err := svc.Create(ctx, createReq(doctorID, uuid.New(), start, 30), uuid.New())
	require.NoError(t, err)

	_, err = svc.UpdateStatus(ctx, apt.ID, model.AppointmentStatusInProgress)
	require.NoError(t, err)
	_, err = svc.UpdateStatus(ctx, apt.ID, model.AppointmentStatusCompleted)
	require.NoError(t, err)

	_, err = svc.Create(ctx, createReq(doctorID, uuid.New(), start.Add(15*time.Minute), 30), uuid.New())
	assert.NoError(t, err)
}

func TestNoShowStillBlocksSlot(t *testing.T) {
	svc, _ := newTestService(t, defaultConfig())
	ctx := context.Background()
	doctorID := uuid.New()
	start := time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)

	apt, err := svc.Create(ctx, createReq(doctorID, uuid.New(), start, 30), uuid.New())
	require.NoError(t, err)

	_, err = svc.UpdateStatus(ctx, apt.ID, model.AppointmentStatusNoShow)
	require.NoError(t, err)

	_, err = svc.Create(ctx, createReq(doctorID, uuid.New(), start.Add(15*time.Minute), 30), uuid.New())
	assert.True(t, apperrors.IsConflict(err))
}

func TestRescheduleExcludesSelf(t *testing.T) {
	svc, _ := newTestService(t, defaultConfig())
	ctx := context.Background()
	start := time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)

	apt, err := svc.Create(ctx, createReq(uuid.New(), uuid.New(), start, 30), uuid.New())
	require.NoError(t, err)

	// Rescheduling to the same time must never conflict with itself.
	updated, err := svc.Update(ctx, apt.ID, &model.UpdateAppointmentRequest{
		AppointmentDateTime: &start,
	})
	require.NoError(t, err)
	assert.True(t, updated.StartTime.Equal(start))
}

func TestRescheduleConflictLeavesRecordUnchanged(t *testing.T) {
	svc, _ := newTestService(t, defaultConfig())
	ctx := context.Background()
	doctorID := uuid.New()
	day := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	_, err := svc.Create(ctx, createReq(doctorID, uuid.New(), day.Add(10*time.Hour), 30), uuid.New())
	require.NoError(t, err)

	second, err := svc.Create(ctx, createReq(doctorID, uuid.New(), day.Add(13*time.Hour), 30), uuid.New())
	require.NoError(t, err)

	target := day.Add(10*time.Hour + 15*time.Minute)
	_, err = svc.Update(ctx, second.ID, &model.UpdateAppointmentRequest{
		AppointmentDateTime: &target,
	})
	require.True(t, apperrors.IsConflict(err))

	current, err := svc.Get(ctx, second.ID)
	require.NoError(t, err)
	assert.True(t, current.StartTime.Equal(day.Add(13*time.Hour)))
}

func TestUpdateClinicalFields(t *testing.T) {
	svc, _ := newTestService(t, defaultConfig())
	ctx := context.Background()
	start := time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)

	apt, err := svc.Create(ctx, createReq(uuid.New(), uuid.New(), start, 30), uuid.New())
	require.NoError(t, err)

	diagnosis := "migraine"
	treatment := "rest and hydration"
	nurseID := uuid.New()
	updated, err := svc.Update(ctx, apt.ID, &model.UpdateAppointmentRequest{
		Diagnosis: &diagnosis,
		Treatment: &treatment,
		NurseID:   &nurseID,
	})
	require.NoError(t, err)

	assert.Equal(t, diagnosis, updated.Diagnosis)
	assert.Equal(t, treatment, updated.Treatment)
	require.NotNil(t, updated.NurseID)
	assert.Equal(t, nurseID, *updated.NurseID)
	assert.True(t, updated.StartTime.Equal(start))
}

func TestUpdateDurationRecomputesEndTime(t *testing.T) {
	svc, _ := newTestService(t, defaultConfig())
	ctx := context.Background()
	start := time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)

	apt, err := svc.Create(ctx, createReq(uuid.New(), uuid.New(), start, 30), uuid.New())
	require.NoError(t, err)

	duration := 45
	updated, err := svc.Update(ctx, apt.ID, &model.UpdateAppointmentRequest{Duration: &duration})
	require.NoError(t, err)

	assert.Equal(t, 45, updated.Duration)
	assert.True(t, updated.EndTime.Equal(start.Add(45*time.Minute)))
}

func TestUpdateNotFound(t *testing.T) {
	svc, _ := newTestService(t, defaultConfig())

	notes := "nobody home"
	_, err := svc.Update(context.Background(), uuid.New(), &model.UpdateAppointmentRequest{Notes: &notes})
	assert.True(t, apperrors.IsNotFound(err))
}

func TestUpdateStatusStampsActualTimes(t *testing.T) {
	svc, _ := newTestService(t, defaultConfig())
	ctx := context.Background()
	start := time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)

	apt, err := svc.Create(ctx, createReq(uuid.New(), uuid.New(), start, 30), uuid.New())
	require.NoError(t, err)

	inProgress, err := svc.UpdateStatus(ctx, apt.ID, model.AppointmentStatusInProgress)
	require.NoError(t, err)
	require.NotNil(t, inProgress.ActualStartTime)
	assert.Nil(t, inProgress.ActualEndTime)
	startedAt := *inProgress.ActualStartTime

	completed, err := svc.UpdateStatus(ctx, apt.ID, model.AppointmentStatusCompleted)
	require.NoError(t, err)
	require.NotNil(t, completed.ActualStartTime)
	require.NotNil(t, completed.ActualEndTime)
	assert.True(t, completed.ActualStartTime.Equal(startedAt))
}

func TestUpdateStatusRejectsIllegalTransition(t *testing.T) {
	svc, _ := newTestService(t, defaultConfig())
	ctx := context.Background()
	start := time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)

	apt, err := svc.Create(ctx, createReq(uuid.New(), uuid.New(), start, 30), uuid.New())
	require.NoError(t, err)

	_, err = svc.UpdateStatus(ctx, apt.ID, model.AppointmentStatusInProgress)
	require.NoError(t, err)
	_, err = svc.UpdateStatus(ctx, apt.ID, model.AppointmentStatusCompleted)
	require.NoError(t, err)

	_, err = svc.UpdateStatus(ctx, apt.ID, model.AppointmentStatusScheduled)
	assert.True(t, apperrors.IsBadRequest(err), "terminal status must not be reopened, got %v", err)

	_, err = svc.Cancel(ctx, apt.ID)
	assert.True(t, apperrors.IsBadRequest(err))
}

func TestUpdateStatusPermissiveMode(t *testing.T) {
	cfg := defaultConfig()
	cfg.EnforceTransitions = false
	svc, _ := newTestService(t, cfg)
	ctx := context.Background()
	start := time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)

	apt, err := svc.Create(ctx, createReq(uuid.New(), uuid.New(), start, 30), uuid.New())
	require.NoError(t, err)

	_, err = svc.UpdateStatus(ctx, apt.ID, model.AppointmentStatusCompleted)
	require.NoError(t, err)

	// Legacy behavior: any status move is accepted without a legality check.
	reopened, err := svc.UpdateStatus(ctx, apt.ID, model.AppointmentStatusScheduled)
	require.NoError(t, err)
	assert.Equal(t, model.AppointmentStatusScheduled, reopened.Status)
}

func TestDeleteBypassesStateMachine(t *testing.T) {
	svc, _ := newTestService(t, defaultConfig())
	ctx := context.Background()
	start := time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)

	apt, err := svc.Create(ctx, createReq(uuid.New(), uuid.New(), start, 30), uuid.New())
	require.NoError(t, err)

	_, err = svc.UpdateStatus(ctx, apt.ID, model.AppointmentStatusInProgress)
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, apt.ID))

	_, err = svc.Get(ctx, apt.ID)
	assert.True(t, apperrors.IsNotFound(err))

	assert.True(t, apperrors.IsNotFound(svc.Delete(ctx, apt.ID)))
}

func TestStrictOverlapMode(t *testing.T) {
	cfg := defaultConfig()
	cfg.StrictOverlap = true
	svc, _ := newTestService(t, cfg)
	ctx := context.Background()
	doctorID := uuid.New()
	day := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	_, err := svc.Create(ctx, createReq(doctorID, uuid.New(), day.Add(10*time.Hour), 30), uuid.New())
	require.NoError(t, err)

	// Overlapping the real window still conflicts.
	_, err = svc.Create(ctx, createReq(doctorID, uuid.New(), day.Add(10*time.Hour+15*time.Minute), 30), uuid.New())
	assert.True(t, apperrors.IsConflict(err))

	// Back-to-back is allowed once true end times are respected.
	_, err = svc.Create(ctx, createReq(doctorID, uuid.New(), day.Add(10*time.Hour+30*time.Minute), 30), uuid.New())
	assert.NoError(t, err)

	// 11:15 is clear of both real windows but the 10:30 start falls in
	// its look-back buffer; the legacy rule would have rejected this.
	_, err = svc.Create(ctx, createReq(doctorID, uuid.New(), day.Add(11*time.Hour+15*time.Minute), 30), uuid.New())
	assert.NoError(t, err)
}

func TestCreateRejectsInvalidRequest(t *testing.T) {
	svc, _ := newTestService(t, defaultConfig())
	ctx := context.Background()

	req := createReq(uuid.New(), uuid.New(), time.Time{}, 30)
	_, err := svc.Create(ctx, req, uuid.New())
	assert.True(t, apperrors.IsBadRequest(err))

	req = createReq(uuid.New(), uuid.New(), time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC), -10)
	_, err = svc.Create(ctx, req, uuid.New())
	assert.True(t, apperrors.IsBadRequest(err))
}
