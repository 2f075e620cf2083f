package appointment

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/abhishek2k21/purpletide-hospital-hub/internal/calendar"
	"github.com/abhishek2k21/purpletide-hospital-hub/internal/events"
	"github.com/abhishek2k21/purpletide-hospital-hub/internal/listing"
)

var ListSpec = listing.Spec{
	Sorts:       []string{"appointment_at", "created_at", "status"},
	DefaultSort: "appointment_at",
	Filters:     []string{"patient_id", "doctor_id", "status", "from", "to"},
}

// StatusChange moves an appointment out of the scheduled state.
type StatusChange struct {
	ID    uuid.UUID
	To    Status
	Notes string
	// Visit, when set, becomes the patient's last visit date.
	Visit *calendar.Date
}

// Filter narrows a list. Zero fields are ignored; From/To bound
// appointment_at as a half-open range.
type Filter struct {
	PatientID uuid.UUID
	DoctorID  uuid.UUID
	Status    Status
	From      time.Time
	To        time.Time
}

type Store interface {
	// Create and Reschedule return a conflict when the doctor already holds
	// a scheduled appointment in the same slot.
	Create(ctx context.Context, a *Appointment, evt *events.Event) error
	Get(ctx context.Context, id uuid.UUID) (*Appointment, error)
	Update(ctx context.Context, a *Appointment, evt *events.Event) error
	// ChangeStatus applies ch only while the appointment is still
	// scheduled.
	ChangeStatus(ctx context.Context, ch StatusChange, evt *events.Event) error
	List(ctx context.Context, params listing.Params, f Filter) (*listing.Page[Appointment], error)
}
