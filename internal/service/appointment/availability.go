package appointment

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/clinicops/scheduler-api/internal/config"
	"github.com/clinicops/scheduler-api/internal/model"
	"github.com/clinicops/scheduler-api/internal/repository"
)

// AvailabilityChecker decides whether a proposed time window is free for
// a doctor. It evaluates the doctor's slot-holding appointments fetched
// from the store, so it can run against a transaction-bound repository.
type AvailabilityChecker struct {
	buffer        time.Duration
	strictOverlap bool
}

func NewAvailabilityChecker(cfg config.SchedulingConfig) *AvailabilityChecker {
	buffer := time.Duration(cfg.BufferMinutes) * time.Minute
	if buffer <= 0 {
		buffer = time.Hour
	}
	return &AvailabilityChecker{
		buffer:        buffer,
		strictOverlap: cfg.StrictOverlap,
	}
}

// IsAvailable reports whether the doctor has no conflicting appointment
// in the proposed window. excludeID skips one appointment, so a
// reschedule never conflicts with itself.
func (c *AvailabilityChecker) IsAvailable(ctx context.Context, repo repository.AppointmentRepository, doctorID uuid.UUID, start time.Time, durationMinutes int, excludeID *uuid.UUID) (bool, error) {
	existing, err := repo.ListBlockingForDoctor(ctx, doctorID, excludeID)
	if err != nil {
		return false, err
	}

	end := start.Add(time.Duration(durationMinutes) * time.Minute)
	for _, apt := range existing {
		if c.conflicts(apt, start, end) {
			return false, nil
		}
	}
	return true, nil
}

func (c *AvailabilityChecker) conflicts(existing *model.Appointment, start, end time.Time) bool {
	if c.strictOverlap {
		existingStart, existingEnd := existing.Window()
		return existingStart.Before(end) && existingEnd.After(start)
	}

	// Legacy rule: an existing appointment conflicts when its start falls
	// inside the proposed window (inclusive), or inside a fixed look-back
	// buffer before the proposed start. The existing appointment's own end
	// time is not consulted.
	s := existing.StartTime
	if !s.Before(start) && !s.After(end) {
		return true
	}
	bufferStart := start.Add(-c.buffer)
	return !s.After(start) && !s.Before(bufferStart)
}
