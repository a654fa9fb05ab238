package appointment_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clinicops/scheduler-api/internal/model"
	"github.com/clinicops/scheduler-api/internal/repository/memory"
)

func seedAppointment(t *testing.T, repo *memory.AppointmentRepository, doctorID uuid.UUID, start time.Time, duration int, status model.AppointmentStatus) *model.Appointment {
	t.Helper()
	apt := &model.Appointment{
		ID:              uuid.New(),
		PatientID:       uuid.New(),
		DoctorID:        doctorID,
		CreatedByUserID: uuid.New(),
		StartTime:       start,
		Duration:        duration,
		EndTime:         start.Add(time.Duration(duration) * time.Minute),
		Status:          status,
		Type:            model.AppointmentTypeConsultation,
		Priority:        model.PriorityMedium,
	}
	require.NoError(t, repo.Create(context.Background(), apt))
	return apt
}

func TestIsAvailableBufferBoundaries(t *testing.T) {
	svc, repo := newTestService(t, defaultConfig())
	doctorID := uuid.New()
	existing := time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)
	seedAppointment(t, repo, doctorID, existing, 30, model.AppointmentStatusScheduled)

	tests := []struct {
		name      string
		start     time.Time
		duration  int
		available bool
	}{
		{"existing start at proposed end is inclusive", existing.Add(-time.Hour), 60, false},
		{"existing start exactly at buffer edge", existing.Add(time.Hour), 30, false},
		{"one minute past the buffer", existing.Add(61 * time.Minute), 30, true},
		{"one minute before the window", existing.Add(-61 * time.Minute), 60, true},
		{"same start time", existing, 30, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			available, err := svc.IsAvailable(context.Background(), doctorID, tt.start, tt.duration, nil)
			require.NoError(t, err)
			assert.Equal(t, tt.available, available)
		})
	}
}

func TestIsAvailableIgnoresTerminalStatuses(t *testing.T) {
	svc, repo := newTestService(t, defaultConfig())
	doctorID := uuid.New()
	start := time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)

	seedAppointment(t, repo, doctorID, start, 30, model.AppointmentStatusCancelled)
	seedAppointment(t, repo, doctorID, start.Add(2*time.Hour), 30, model.AppointmentStatusCompleted)

	available, err := svc.IsAvailable(context.Background(), doctorID, start, 30, nil)
	require.NoError(t, err)
	assert.True(t, available)

	available, err = svc.IsAvailable(context.Background(), doctorID, start.Add(2*time.Hour), 30, nil)
	require.NoError(t, err)
	assert.True(t, available)
}

func TestIsAvailableExcludesGivenAppointment(t *testing.T) {
	svc, repo := newTestService(t, defaultConfig())
	doctorID := uuid.New()
	start := time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)
	apt := seedAppointment(t, repo, doctorID, start, 30, model.AppointmentStatusScheduled)

	available, err := svc.IsAvailable(context.Background(), doctorID, start, 30, &apt.ID)
	require.NoError(t, err)
	assert.True(t, available)

	available, err = svc.IsAvailable(context.Background(), doctorID, start, 30, nil)
	require.NoError(t, err)
	assert.False(t, available)
}

func TestIsAvailableDefaultDuration(t *testing.T) {
	svc, repo := newTestService(t, defaultConfig())
	doctorID := uuid.New()
	start := time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)
	seedAppointment(t, repo, doctorID, start.Add(20*time.Minute), 30, model.AppointmentStatusScheduled)

	// Zero duration falls back to the configured default of 30 minutes,
	// which makes the proposed window reach the existing start.
	available, err := svc.IsAvailable(context.Background(), doctorID, start, 0, nil)
	require.NoError(t, err)
	assert.False(t, available)
}
