package appointment

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/clinicops/scheduler-api/internal/config"
	"github.com/clinicops/scheduler-api/internal/model"
	"github.com/clinicops/scheduler-api/internal/repository"
	apperrors "github.com/clinicops/scheduler-api/pkg/errors"
	"github.com/clinicops/scheduler-api/pkg/messaging"
	"github.com/clinicops/scheduler-api/pkg/metrics"
)

// Event channels published on the broker.
const (
	EventAppointmentCreated       = "appointment.created"
	EventAppointmentUpdated       = "appointment.updated"
	EventAppointmentStatusChanged = "appointment.status_changed"
	EventAppointmentDeleted       = "appointment.deleted"
)

// Service is the only writer of appointment records. It consults the
// availability checker before any write that changes time, duration or
// doctor, and enforces the status state machine when configured to.
type Service struct {
	repo    repository.AppointmentRepository
	checker *AvailabilityChecker
	broker  messaging.Broker
	metrics *metrics.Metrics
	logger  zerolog.Logger
	cfg     config.SchedulingConfig
}

func NewService(repo repository.AppointmentRepository, cfg config.SchedulingConfig, broker messaging.Broker, m *metrics.Metrics, logger zerolog.Logger) *Service {
	if cfg.DefaultDuration <= 0 {
		cfg.DefaultDuration = 30
	}
	return &Service{
		repo:    repo,
		checker: NewAvailabilityChecker(cfg),
		broker:  broker,
		metrics: m,
		logger:  logger,
		cfg:     cfg,
	}
}

// Checker exposes the availability checker for read-only availability
// queries (e.g. the availability endpoint).
func (s *Service) Checker() *AvailabilityChecker {
	return s.checker
}

// IsAvailable answers an availability query without writing anything.
func (s *Service) IsAvailable(ctx context.Context, doctorID uuid.UUID, start time.Time, durationMinutes int, excludeID *uuid.UUID) (bool, error) {
	if durationMinutes <= 0 {
		durationMinutes = s.cfg.DefaultDuration
	}
	return s.checker.IsAvailable(ctx, s.repo, doctorID, start, durationMinutes, excludeID)
}

// Create books a new appointment for the requested doctor and window.
// The availability check and the insert run in one transaction; a
// conflicting active appointment fails the call with a conflict error
// and nothing is written.
func (s *Service) Create(ctx context.Context, req *model.CreateAppointmentRequest, createdByUserID uuid.UUID) (*model.Appointment, error) {
	duration := req.Duration
	if duration == 0 {
		duration = s.cfg.DefaultDuration
	}
	if duration < 0 {
		return nil, apperrors.BadRequest("duration must be a positive number of minutes", nil)
	}
	if req.AppointmentDateTime.IsZero() {
		return nil, apperrors.BadRequest("appointment date/time is required", nil)
	}

	priority := req.Priority
	if priority == "" {
		priority = model.PriorityMedium
	}

	apt := &model.Appointment{
		ID:               uuid.New(),
		PatientID:        req.PatientID,
		DoctorID:         req.DoctorID,
		NurseID:          req.NurseID,
		CreatedByUserID:  createdByUserID,
		StartTime:        req.AppointmentDateTime,
		Duration:         duration,
		EndTime:          req.AppointmentDateTime.Add(time.Duration(duration) * time.Minute),
		Status:           model.AppointmentStatusScheduled,
		Type:             req.Type,
		Priority:         priority,
		Reason:           req.Reason,
		Symptoms:         req.Symptoms,
		Diagnosis:        req.Diagnosis,
		Treatment:        req.Treatment,
		Prescription:     req.Prescription,
		Notes:            req.Notes,
		NextFollowUpDate: req.NextFollowUpDate,
	}

	err := s.repo.WithTx(ctx, func(txRepo repository.AppointmentRepository) error {
		available, err := s.checker.IsAvailable(ctx, txRepo, apt.DoctorID, apt.StartTime, apt.Duration, nil)
		if err != nil {
			return fmt.Errorf("failed to check availability: %w", err)
		}
		if !available {
			return apperrors.Conflict("doctor is not available at the requested time", nil)
		}
		return txRepo.Create(ctx, apt)
	})
	if err != nil {
		if apperrors.IsConflict(err) && s.metrics != nil {
			s.metrics.SchedulingConflicts.Inc()
		}
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.AppointmentsCreated.Inc()
	}

	// Re-read so callers observe the persisted record, not the in-memory copy.
	created, err := s.repo.Get(ctx, apt.ID)
	if err != nil {
		return nil, err
	}

	s.publish(ctx, EventAppointmentCreated, created)
	return created, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*model.Appointment, error) {
	return s.repo.Get(ctx, id)
}

func (s *Service) List(ctx context.Context, filters *model.AppointmentFilters) ([]*model.Appointment, error) {
	return s.repo.List(ctx, filters)
}

// Update applies field changes to an appointment. When the start time or
// duration changes, availability is re-checked for the appointment's
// doctor with its own id excluded; a conflict leaves the record untouched.
func (s *Service) Update(ctx context.Context, id uuid.UUID, req *model.UpdateAppointmentRequest) (*model.Appointment, error) {
	if req.Duration != nil && *req.Duration <= 0 {
		return nil, apperrors.BadRequest("duration must be a positive number of minutes", nil)
	}

	err := s.repo.WithTx(ctx, func(txRepo repository.AppointmentRepository) error {
		apt, err := txRepo.Get(ctx, id)
		if err != nil {
			return err
		}

		if req.AppointmentDateTime != nil || req.Duration != nil {
			newStart := apt.StartTime
			if req.AppointmentDateTime != nil {
				newStart = *req.AppointmentDateTime
			}
			newDuration := apt.Duration
			if req.Duration != nil {
				newDuration = *req.Duration
			}

			available, err := s.checker.IsAvailable(ctx, txRepo, apt.DoctorID, newStart, newDuration, &apt.ID)
			if err != nil {
				return fmt.Errorf("failed to check availability: %w", err)
			}
			if !available {
				return apperrors.Conflict("doctor is not available at the requested time", nil)
			}

			apt.StartTime = newStart
			apt.Duration = newDuration
		}

		if req.Type != nil {
			apt.Type = *req.Type
		}
		if req.Priority != nil {
			apt.Priority = *req.Priority
		}
		if req.Reason != nil {
			apt.Reason = *req.Reason
		}
		if req.Symptoms != nil {
			apt.Symptoms = *req.Symptoms
		}
		if req.Diagnosis != nil {
			apt.Diagnosis = *req.Diagnosis
		}
		if req.Treatment != nil {
			apt.Treatment = *req.Treatment
		}
		if req.Prescription != nil {
			apt.Prescription = *req.Prescription
		}
		if req.Notes != nil {
			apt.Notes = *req.Notes
		}
		if req.NurseID != nil {
			apt.NurseID = req.NurseID
		}
		if req.NextFollowUpDate != nil {
			apt.NextFollowUpDate = req.NextFollowUpDate
		}

		apt.EndTime = apt.StartTime.Add(time.Duration(apt.Duration) * time.Minute)

		return txRepo.Update(ctx, apt)
	})
	if err != nil {
		if apperrors.IsConflict(err) && s.metrics != nil {
			s.metrics.SchedulingConflicts.Inc()
		}
		return nil, err
	}

	updated, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	s.publish(ctx, EventAppointmentUpdated, updated)
	return updated, nil
}

// UpdateStatus moves an appointment to a new status. The first transition
// into in_progress stamps the actual start time; the first transition into
// completed stamps the actual end time. When transition enforcement is on,
// moves outside the state machine are rejected.
func (s *Service) UpdateStatus(ctx context.Context, id uuid.UUID, status model.AppointmentStatus) (*model.Appointment, error) {
	if !status.Valid() {
		return nil, apperrors.BadRequest(fmt.Sprintf("invalid appointment status %q", status), nil)
	}

	apt, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if s.cfg.EnforceTransitions && !CanTransition(apt.Status, status) {
		return nil, apperrors.BadRequest(
			fmt.Sprintf("cannot transition appointment from %s to %s", apt.Status, status), nil)
	}

	now := time.Now()
	apt.Status = status
	if status == model.AppointmentStatusInProgress && apt.ActualStartTime == nil {
		apt.ActualStartTime = &now
	}
	if status == model.AppointmentStatusCompleted && apt.ActualEndTime == nil {
		apt.ActualEndTime = &now
	}

	if err := s.repo.Update(ctx, apt); err != nil {
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.StatusTransitions.WithLabelValues(string(status)).Inc()
		if status == model.AppointmentStatusCancelled {
			s.metrics.AppointmentsCancelled.Inc()
		}
	}

	updated, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	s.publish(ctx, EventAppointmentStatusChanged, updated)
	return updated, nil
}

// Cancel is a status change to cancelled.
func (s *Service) Cancel(ctx context.Context, id uuid.UUID) (*model.Appointment, error) {
	return s.UpdateStatus(ctx, id, model.AppointmentStatusCancelled)
}

// Delete removes the record outright, bypassing the state machine.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	apt, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}

	s.publish(ctx, EventAppointmentDeleted, apt)
	return nil
}

// publish sends an appointment event to the broker. Publishing is best
// effort: a broker failure is logged and counted, never surfaced to the
// caller whose write already committed.
func (s *Service) publish(ctx context.Context, eventType string, apt *model.Appointment) {
	if s.broker == nil {
		return
	}

	msg := messaging.Message{Type: eventType, Payload: apt}
	if err := s.broker.Publish(ctx, eventType, msg); err != nil {
		if s.metrics != nil {
			s.metrics.EventsFailed.Inc()
		}
		s.logger.Error().Err(err).
			Str("event_type", eventType).
			Str("appointment_id", apt.ID.String()).
			Msg("failed to publish appointment event")
		return
	}
	if s.metrics != nil {
		s.metrics.EventsPublished.WithLabelValues(eventType).Inc()
	}
}
