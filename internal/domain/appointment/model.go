// Package appointment schedules patient visits against doctor availability.
package appointment

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/abhishek2k21/purpletide-hospital-hub/internal/apperror"
)

type Status string

const (
	StatusScheduled Status = "scheduled"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
	StatusNoShow    Status = "no-show"
)

// SlotLength is the booking granularity. A doctor holds at most one
// scheduled appointment per slot.
const SlotLength = 30 * time.Minute

type Appointment struct {
	ID            uuid.UUID `json:"id"`
	PatientID     uuid.UUID `json:"patient_id"`
	DoctorID      uuid.UUID `json:"doctor_id"`
	PatientName   string    `json:"patient_name,omitempty"`
	DoctorName    string    `json:"doctor_name,omitempty"`
	Department    string    `json:"department,omitempty"`
	AppointmentAt time.Time `json:"appointment_at"`
	Reason        string    `json:"reason"`
	Notes         string    `json:"notes"`
	Status        Status    `json:"status"`
	CreatedBy     string    `json:"created_by"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// SlotStart is the start of the slot t falls in.
func SlotStart(t time.Time) time.Time {
	return t.UTC().Truncate(SlotLength)
}

// ScheduleInput is the booking form.
type ScheduleInput struct {
	PatientID     uuid.UUID `json:"patient_id"`
	DoctorID      uuid.UUID `json:"doctor_id"`
	AppointmentAt time.Time `json:"appointment_at"`
	Reason        string    `json:"reason"`
	Notes         string    `json:"notes"`
}

func (in *ScheduleInput) Validate(now time.Time) error {
	in.Reason = strings.TrimSpace(in.Reason)
	v := &apperror.ValidationError{}
	v.Check(in.PatientID != uuid.Nil, "patient_id", "is required")
	v.Check(in.DoctorID != uuid.Nil, "doctor_id", "is required")
	v.Check(!in.AppointmentAt.IsZero(), "appointment_at", "is required")
	if !in.AppointmentAt.IsZero() {
		v.Check(in.AppointmentAt.After(now), "appointment_at", "must be in the future")
	}
	v.Check(len(in.Reason) <= 500, "reason", "must be at most 500 characters")
	return v.Err()
}

// UpdateInput reschedules an appointment or edits its text. Nil fields are
// left unchanged.
type UpdateInput struct {
	AppointmentAt *time.Time `json:"appointment_at"`
	Reason        *string    `json:"reason"`
	Notes         *string    `json:"notes"`
}

// transitionAllowed reports whether an appointment may move from one
// status to another. Only scheduled appointments change status.
func transitionAllowed(from, to Status) bool {
	if from != StatusScheduled {
		return false
	}
	switch to {
	case StatusCompleted, StatusCancelled, StatusNoShow:
		return true
	}
	return false
}
