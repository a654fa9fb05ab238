package schedule

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	gocache "github.com/patrickmn/go-cache"

	"github.com/clinicops/scheduler-api/internal/config"
	"github.com/clinicops/scheduler-api/internal/model"
	"github.com/clinicops/scheduler-api/internal/repository"
)

const (
	statsCacheTTL     = 30 * time.Second
	statsCacheCleanup = 5 * time.Minute
)

// Service answers read-only schedule and statistics queries. It never
// writes and never takes part in conflict checking.
type Service struct {
	repo         repository.AppointmentRepository
	statsCache   *gocache.Cache
	upcomingDays int
	now          func() time.Time
}

func NewService(repo repository.AppointmentRepository, cfg config.SchedulingConfig) *Service {
	days := cfg.UpcomingDays
	if days <= 0 {
		days = 7
	}
	return &Service{
		repo:         repo,
		statsCache:   gocache.New(statsCacheTTL, statsCacheCleanup),
		upcomingDays: days,
		now:          time.Now,
	}
}

// Today returns the current day's appointments in ascending start order,
// excluding cancelled ones.
func (s *Service) Today(ctx context.Context) ([]*model.Appointment, error) {
	start, end := dayWindow(s.now())
	return s.repo.List(ctx, &model.AppointmentFilters{
		From:        &start,
		To:          &end,
		NotStatuses: []model.AppointmentStatus{model.AppointmentStatusCancelled},
	})
}

// Upcoming returns scheduled appointments starting between now and now
// plus the given number of days. Negative days falls back to the
// configured default.
func (s *Service) Upcoming(ctx context.Context, days int) ([]*model.Appointment, error) {
	if days < 0 {
		days = s.upcomingDays
	}
	now := s.now()
	until := now.AddDate(0, 0, days)
	return s.repo.List(ctx, &model.AppointmentFilters{
		From:     &now,
		To:       &until,
		Statuses: []model.AppointmentStatus{model.AppointmentStatusScheduled},
	})
}

// DoctorSchedule returns a doctor's non-cancelled appointments in the
// given range, ascending.
func (s *Service) DoctorSchedule(ctx context.Context, doctorID uuid.UUID, from, to time.Time) ([]*model.Appointment, error) {
	return s.repo.List(ctx, &model.AppointmentFilters{
		DoctorID:    &doctorID,
		From:        &from,
		To:          &to,
		NotStatuses: []model.AppointmentStatus{model.AppointmentStatusCancelled},
	})
}

// ByDoctor returns all of a doctor's appointments, optionally restricted
// to the calendar day of date.
func (s *Service) ByDoctor(ctx context.Context, doctorID uuid.UUID, date *time.Time) ([]*model.Appointment, error) {
	filters := &model.AppointmentFilters{DoctorID: &doctorID}
	if date != nil {
		start, end := dayWindow(*date)
		filters.From = &start
		filters.To = &end
	}
	return s.repo.List(ctx, filters)
}

// ByPatient returns a patient's appointments, most recent first.
func (s *Service) ByPatient(ctx context.Context, patientID uuid.UUID) ([]*model.Appointment, error) {
	return s.repo.List(ctx, &model.AppointmentFilters{
		PatientID: &patientID,
		SortDesc:  true,
	})
}

// Statistics returns totals and per-status/per-type counts over the
// optional range. Results are served from a short-lived cache; staleness
// within the TTL is accepted.
func (s *Service) Statistics(ctx context.Context, from, to *time.Time) (*model.AppointmentStatistics, error) {
	key := statsKey(from, to)
	if cached, ok := s.statsCache.Get(key); ok {
		return cached.(*model.AppointmentStatistics), nil
	}

	stats, err := s.repo.Statistics(ctx, from, to)
	if err != nil {
		return nil, err
	}

	s.statsCache.Set(key, stats, gocache.DefaultExpiration)
	return stats, nil
}

// dayWindow returns the midnight-to-end-of-day bounds for t's calendar
// day in t's location.
func dayWindow(t time.Time) (start, end time.Time) {
	start = time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
	end = start.Add(24*time.Hour - time.Nanosecond)
	return start, end
}

func statsKey(from, to *time.Time) string {
	f, t := "all", "all"
	if from != nil {
		f = fmt.Sprintf("%d", from.Unix())
	}
	if to != nil {
		t = fmt.Sprintf("%d", to.Unix())
	}
	return f + ":" + t
}
