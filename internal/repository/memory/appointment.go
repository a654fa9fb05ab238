// Package memory provides an in-memory AppointmentRepository used by
// tests and local development. It mirrors the Postgres repository's
// filter and ordering semantics.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/clinicops/scheduler-api/internal/model"
	"github.com/clinicops/scheduler-api/internal/repository"
	apperrors "github.com/clinicops/scheduler-api/pkg/errors"
)

type AppointmentRepository struct {
	mu           sync.RWMutex
	txMu         sync.Mutex
	appointments map[uuid.UUID]*model.Appointment
}

func NewAppointmentRepository() *AppointmentRepository {
	return &AppointmentRepository{
		appointments: make(map[uuid.UUID]*model.Appointment),
	}
}

func (r *AppointmentRepository) Create(ctx context.Context, appointment *model.Appointment) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.appointments[appointment.ID]; exists {
		return fmt.Errorf("appointment %s already exists", appointment.ID)
	}

	appointment.CreatedAt = time.Now()
	appointment.UpdatedAt = appointment.CreatedAt
	r.appointments[appointment.ID] = clone(appointment)
	return nil
}

func (r *AppointmentRepository) Get(ctx context.Context, id uuid.UUID) (*model.Appointment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	apt, ok := r.appointments[id]
	if !ok {
		return nil, apperrors.NotFound("appointment", nil)
	}
	return clone(apt), nil
}

func (r *AppointmentRepository) Update(ctx context.Context, appointment *model.Appointment) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.appointments[appointment.ID]
	if !ok {
		return apperrors.NotFound("appointment", nil)
	}

	appointment.CreatedAt = existing.CreatedAt
	appointment.UpdatedAt = time.Now()
	r.appointments[appointment.ID] = clone(appointment)
	return nil
}

func (r *AppointmentRepository) Delete(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.appointments[id]; !ok {
		return apperrors.NotFound("appointment", nil)
	}
	delete(r.appointments, id)
	return nil
}

func (r *AppointmentRepository) List(ctx context.Context, filters *model.AppointmentFilters) ([]*model.Appointment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*model.Appointment
	for _, apt := range r.appointments {
		if matches(apt, filters) {
			out = append(out, clone(apt))
		}
	}

	desc := filters != nil && filters.SortDesc
	sort.SliceStable(out, func(i, j int) bool {
		if desc {
			return out[i].StartTime.After(out[j].StartTime)
		}
		return out[i].StartTime.Before(out[j].StartTime)
	})
	return out, nil
}

func (r *AppointmentRepository) ListBlockingForDoctor(ctx context.Context, doctorID uuid.UUID, excludeID *uuid.UUID) ([]*model.Appointment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*model.Appointment
	for _, apt := range r.appointments {
		if apt.DoctorID != doctorID || !apt.Status.Blocking() {
			continue
		}
		if excludeID != nil && apt.ID == *excludeID {
			continue
		}
		out = append(out, clone(apt))
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].StartTime.Before(out[j].StartTime)
	})
	return out, nil
}

func (r *AppointmentRepository) Statistics(ctx context.Context, from, to *time.Time) (*model.AppointmentStatistics, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stats := &model.AppointmentStatistics{
		ByStatus: make(map[model.AppointmentStatus]int),
		ByType:   make(map[model.AppointmentType]int),
	}
	for _, apt := range r.appointments {
		if from != nil && apt.StartTime.Before(*from) {
			continue
		}
		if to != nil && apt.StartTime.After(*to) {
			continue
		}
		stats.Total++
		stats.ByStatus[apt.Status]++
		stats.ByType[apt.Type]++
	}
	return stats, nil
}

// WithTx serializes transactional sections against each other, which is
// enough to make check-then-write atomic for in-memory use.
func (r *AppointmentRepository) WithTx(ctx context.Context, fn func(repository.AppointmentRepository) error) error {
	r.txMu.Lock()
	defer r.txMu.Unlock()
	return fn(r)
}

func matches(apt *model.Appointment, filters *model.AppointmentFilters) bool {
	if filters == nil {
		return true
	}
	if filters.DoctorID != nil && apt.DoctorID != *filters.DoctorID {
		return false
	}
	if filters.PatientID != nil && apt.PatientID != *filters.PatientID {
		return false
	}
	if len(filters.Statuses) > 0 && !containsStatus(filters.Statuses, apt.Status) {
		return false
	}
	if len(filters.NotStatuses) > 0 && containsStatus(filters.NotStatuses, apt.Status) {
		return false
	}
	if filters.From != nil && apt.StartTime.Before(*filters.From) {
		return false
	}
	if filters.To != nil && apt.StartTime.After(*filters.To) {
		return false
	}
	return true
}

func containsStatus(statuses []model.AppointmentStatus, s model.AppointmentStatus) bool {
	for _, candidate := range statuses {
		if candidate == s {
			return true
		}
	}
	return false
}

func clone(apt *model.Appointment) *model.Appointment {
	c := *apt
	return &c
}
