package model

import (
	"time"

	"github.com/google/uuid"
)

type AppointmentStatus string

const (
	AppointmentStatusScheduled  AppointmentStatus = "scheduled"
	AppointmentStatusInProgress AppointmentStatus = "in_progress"
	AppointmentStatusCompleted  AppointmentStatus = "completed"
	AppointmentStatusCancelled  AppointmentStatus = "cancelled"
	AppointmentStatusNoShow     AppointmentStatus = "no_show"
)

// ActiveStatuses are the statuses that block a doctor's time slot.
// Only cancelled and completed appointments free the slot; a no-show
// still counts until it is acted on.
var ActiveStatuses = []AppointmentStatus{
	AppointmentStatusScheduled,
	AppointmentStatusInProgress,
	AppointmentStatusNoShow,
}

// Blocking reports whether an appointment in this status participates
// in conflict checks.
func (s AppointmentStatus) Blocking() bool {
	return s != AppointmentStatusCancelled && s != AppointmentStatusCompleted
}

// Terminal reports whether no further status transitions are permitted.
func (s AppointmentStatus) Terminal() bool {
	return s == AppointmentStatusCancelled || s == AppointmentStatusCompleted
}

func (s AppointmentStatus) Valid() bool {
	switch s {
	case AppointmentStatusScheduled, AppointmentStatusInProgress,
		AppointmentStatusCompleted, AppointmentStatusCancelled,
		AppointmentStatusNoShow:
		return true
	}
	return false
}

type AppointmentType string

const (
	AppointmentTypeConsultation   AppointmentType = "consultation"
	AppointmentTypeFollowUp       AppointmentType = "follow_up"
	AppointmentTypeEmergency      AppointmentType = "emergency"
	AppointmentTypeRoutineCheckup AppointmentType = "routine_checkup"
	AppointmentTypeSpecialist     AppointmentType = "specialist"
)

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

type Appointment struct {
	ID              uuid.UUID         `db:"id" json:"id"`
	PatientID       uuid.UUID         `db:"patient_id" json:"patient_id"`
	DoctorID        uuid.UUID         `db:"doctor_id" json:"doctor_id"`
	NurseID         *uuid.UUID        `db:"nurse_id" json:"nurse_id,omitempty"`
	CreatedByUserID uuid.UUID         `db:"created_by_user_id" json:"created_by_user_id"`
	StartTime       time.Time         `db:"start_time" json:"start_time"`
	Duration        int               `db:"duration" json:"duration"`
	EndTime         time.Time         `db:"end_time" json:"end_time"`
	Status          AppointmentStatus `db:"status" json:"status"`
	Type            AppointmentType   `db:"type" json:"type"`
	Priority        Priority          `db:"priority" json:"priority"`

	Reason       string `db:"reason" json:"reason,omitempty"`
	Symptoms     string `db:"symptoms" json:"symptoms,omitempty"`
	Diagnosis    string `db:"diagnosis" json:"diagnosis,omitempty"`
	Treatment    string `db:"treatment" json:"treatment,omitempty"`
	Prescription string `db:"prescription" json:"prescription,omitempty"`
	Notes        string `db:"notes" json:"notes,omitempty"`

	ActualStartTime  *time.Time `db:"actual_start_time" json:"actual_start_time,omitempty"`
	ActualEndTime    *time.Time `db:"actual_end_time" json:"actual_end_time,omitempty"`
	NextFollowUpDate *time.Time `db:"next_follow_up_date" json:"next_follow_up_date,omitempty"`

	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// Window returns the appointment's scheduled time window.
func (a *Appointment) Window() (start, end time.Time) {
	return a.StartTime, a.StartTime.Add(time.Duration(a.Duration) * time.Minute)
}

type CreateAppointmentRequest struct {
	AppointmentDateTime time.Time       `json:"appointment_date_time" binding:"required"`
	Duration            int             `json:"duration" binding:"omitempty,gt=0"`
	Type                AppointmentType `json:"type" binding:"required,oneof=consultation follow_up emergency routine_checkup specialist"`
	Priority            Priority        `json:"priority" binding:"omitempty,oneof=low medium high urgent"`
	Reason              string          `json:"reason"`
	Symptoms            string          `json:"symptoms"`
	Diagnosis           string          `json:"diagnosis"`
	Treatment           string          `json:"treatment"`
	Prescription        string          `json:"prescription"`
	Notes               string          `json:"notes"`
	DoctorID            uuid.UUID       `json:"doctor_id" binding:"required"`
	NurseID             *uuid.UUID      `json:"nurse_id"`
	PatientID           uuid.UUID       `json:"patient_id" binding:"required"`
	NextFollowUpDate    *time.Time      `json:"next_follow_up_date"`
}

type UpdateAppointmentRequest struct {
	AppointmentDateTime *time.Time       `json:"appointment_date_time"`
	Duration            *int             `json:"duration" binding:"omitempty,gt=0"`
	Type                *AppointmentType `json:"type" binding:"omitempty,oneof=consultation follow_up emergency routine_checkup specialist"`
	Priority            *Priority        `json:"priority" binding:"omitempty,oneof=low medium high urgent"`
	Reason              *string          `json:"reason"`
	Symptoms            *string          `json:"symptoms"`
	Diagnosis           *string          `json:"diagnosis"`
	Treatment           *string          `json:"treatment"`
	Prescription        *string          `json:"prescription"`
	Notes               *string          `json:"notes"`
	NurseID             *uuid.UUID       `json:"nurse_id"`
	NextFollowUpDate    *time.Time       `json:"next_follow_up_date"`
}

type UpdateStatusRequest struct {
	Status AppointmentStatus `json:"status" binding:"required,oneof=scheduled in_progress completed cancelled no_show"`
}

// AppointmentFilters narrows repository list queries. Zero values mean
// "no filter". Statuses and NotStatuses are mutually exclusive in practice.
type AppointmentFilters struct {
	DoctorID    *uuid.UUID
	PatientID   *uuid.UUID
	Statuses    []AppointmentStatus
	NotStatuses []AppointmentStatus
	From        *time.Time
	To          *time.Time
	SortDesc    bool
}

type AppointmentStatistics struct {
	Total    int                       `json:"total"`
	ByStatus map[AppointmentStatus]int `json:"by_status"`
	ByType   map[AppointmentType]int   `json:"by_type"`
}
