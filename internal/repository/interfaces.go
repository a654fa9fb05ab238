package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/clinicops/scheduler-api/internal/model"
)

// AppointmentRepository is the store boundary for appointment records.
// Implementations return fully-hydrated records; callers never mutate a
// record in place without persisting it back through Update.
type AppointmentRepository interface {
	Create(ctx context.Context, appointment *model.Appointment) error
	Get(ctx context.Context, id uuid.UUID) (*model.Appointment, error)
	Update(ctx context.Context, appointment *model.Appointment) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, filters *model.AppointmentFilters) ([]*model.Appointment, error)

	// ListBlockingForDoctor returns the doctor's appointments that occupy
	// a slot (not cancelled, not completed), optionally excluding one id.
	// The availability check evaluates these in memory.
	ListBlockingForDoctor(ctx context.Context, doctorID uuid.UUID, excludeID *uuid.UUID) ([]*model.Appointment, error)

	// Statistics counts appointments in the optional start-time range,
	// grouped by status and by type.
	Statistics(ctx context.Context, from, to *time.Time) (*model.AppointmentStatistics, error)

	// WithTx runs fn against a repository bound to a single transaction,
	// so an availability check and the write it guards see one snapshot.
	WithTx(ctx context.Context, fn func(AppointmentRepository) error) error
}
