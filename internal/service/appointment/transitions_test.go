package appointment

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/clinicops/scheduler-api/internal/model"
)

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from    model.AppointmentStatus
		to      model.AppointmentStatus
		allowed bool
	}{
		{model.AppointmentStatusScheduled, model.AppointmentStatusInProgress, true},
		{model.AppointmentStatusScheduled, model.AppointmentStatusCancelled, true},
		{model.AppointmentStatusScheduled, model.AppointmentStatusNoShow, true},
		{model.AppointmentStatusScheduled, model.AppointmentStatusCompleted, false},
		{model.AppointmentStatusInProgress, model.AppointmentStatusCompleted, true},
		{model.AppointmentStatusInProgress, model.AppointmentStatusNoShow, true},
		{model.AppointmentStatusInProgress, model.AppointmentStatusScheduled, false},
		{model.AppointmentStatusCompleted, model.AppointmentStatusScheduled, false},
		{model.AppointmentStatusCompleted, model.AppointmentStatusCancelled, false},
		{model.AppointmentStatusCancelled, model.AppointmentStatusScheduled, false},
		{model.AppointmentStatusNoShow, model.AppointmentStatusScheduled, false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.allowed, CanTransition(tt.from, tt.to),
			"%s -> %s", tt.from, tt.to)
	}
}
