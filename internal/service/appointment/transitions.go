package appointment

import (
	"github.com/clinicops/scheduler-api/internal/model"
)

// legalTransitions encodes the appointment state machine. Completed and
// cancelled are terminal; a no-show must be set explicitly and cannot be
// reopened.
var legalTransitions = map[model.AppointmentStatus][]model.AppointmentStatus{
	model.AppointmentStatusScheduled: {
		model.AppointmentStatusInProgress,
		model.AppointmentStatusCancelled,
		model.AppointmentStatusNoShow,
	},
	model.AppointmentStatusInProgress: {
		model.AppointmentStatusCompleted,
		model.AppointmentStatusNoShow,
	},
	model.AppointmentStatusCompleted: {},
	model.AppointmentStatusCancelled: {},
	model.AppointmentStatusNoShow:    {},
}

// CanTransition reports whether the state machine permits moving an
// appointment from one status to another.
func CanTransition(from, to model.AppointmentStatus) bool {
	for _, allowed := range legalTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}
