// Package prescription implements the event-sourced prescription aggregate
// and its dispensing workflow.
package prescription

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/abhishek2k21/purpletide-hospital-hub/internal/apperror"
	"github.com/abhishek2k21/purpletide-hospital-hub/internal/events"
)

const AggregateType = "prescription"

type Status string

const (
	StatusPending   Status = "pending"
	StatusDispensed Status = "dispensed"
	StatusCancelled Status = "cancelled"
)

// CreatedData is the payload of prescription.created.
type CreatedData struct {
	PrescriptionID string `json:"prescription_id"`
	PatientID      string `json:"patient_id"`
	PatientName    string `json:"patient_name"`
	DoctorID       string `json:"doctor_id"`
	DoctorName     string `json:"doctor_name"`
	MedicineID     string `json:"medicine_id"`
	MedicineName   string `json:"medicine_name"`
	Dosage         string `json:"dosage"`
	Frequency      string `json:"frequency"`
	Quantity       int    `json:"quantity"`
	Instructions   string `json:"instructions"`
}

// DispensedData is the payload of prescription.dispensed.
type DispensedData struct {
	PrescriptionID string    `json:"prescription_id"`
	PatientName    string    `json:"patient_name"`
	MedicineID     string    `json:"medicine_id"`
	MedicineName   string    `json:"medicine_name"`
	Quantity       int       `json:"quantity"`
	DispensedBy    string    `json:"dispensed_by"`
	DispensedAt    time.Time `json:"dispensed_at"`
}

// CancelledData is the payload of prescription.cancelled.
type CancelledData struct {
	PrescriptionID string `json:"prescription_id"`
	MedicineName   string `json:"medicine_name"`
	Reason         string `json:"reason"`
}

// Aggregate is the prescription aggregate root. State changes only through
// events, which are kept in changes until the store persists them.
type Aggregate struct {
	id           uuid.UUID
	version      int
	status       Status
	patientID    uuid.UUID
	patientName  string
	doctorID     uuid.UUID
	medicineID   uuid.UUID
	medicineName string
	dosage       string
	frequency    string
	quantity     int
	instructions string
	dispensedBy  string
	dispensedAt  *time.Time
	createdAt    time.Time
	updatedAt    time.Time
	changes      []*events.Event
}

func NewAggregate(id uuid.UUID) *Aggregate {
	return &Aggregate{id: id}
}

func (a *Aggregate) ID() uuid.UUID            { return a.id }
func (a *Aggregate) Version() int             { return a.version }
func (a *Aggregate) Status() Status           { return a.status }
func (a *Aggregate) MedicineID() uuid.UUID    { return a.medicineID }
func (a *Aggregate) Quantity() int            { return a.quantity }
func (a *Aggregate) Changes() []*events.Event { return a.changes }
func (a *Aggregate) ClearChanges()            { a.changes = nil }

// Create records a new pending prescription.
func (a *Aggregate) Create(ctx context.Context, data CreatedData) error {
	if a.version != 0 {
		return apperror.InvalidState("prescription already created")
	}
	data.PrescriptionID = a.id.String()
	return a.raise(ctx, events.PrescriptionCreated, data)
}

// Dispense hands the medicine out. Stock is withdrawn by the store in the
// same transaction that records the event.
func (a *Aggregate) Dispense(ctx context.Context, at time.Time) error {
	if a.status != StatusPending {
		return apperror.InvalidState(fmt.Sprintf("prescription is %s", a.status))
	}
	return a.raise(ctx, events.PrescriptionDispensed, DispensedData{
		PrescriptionID: a.id.String(),
		PatientName:    a.patientName,
		MedicineID:     a.medicineID.String(),
		MedicineName:   a.medicineName,
		Quantity:       a.quantity,
		DispensedBy:    events.ActorFromContext(ctx),
		DispensedAt:    at.UTC(),
	})
}

func (a *Aggregate) Cancel(ctx context.Context, reason string) error {
	if a.status != StatusPending {
		return apperror.InvalidState(fmt.Sprintf("prescription is %s", a.status))
	}
	return a.raise(ctx, events.PrescriptionCancelled, CancelledData{
		PrescriptionID: a.id.String(),
		MedicineName:   a.medicineName,
		Reason:         reason,
	})
}

func (a *Aggregate) raise(ctx context.Context, eventType events.Type, data any) error {
	evt, err := events.Record(ctx, eventType, AggregateType, a.id.String(), data)
	if err != nil {
		return err
	}
	if err := a.apply(evt); err != nil {
		return err
	}
	a.changes = append(a.changes, evt)
	return nil
}

func (a *Aggregate) apply(evt *events.Event) error {
	switch evt.Type {
	case events.PrescriptionCreated:
		var d CreatedData
		if err := evt.Decode(&d); err != nil {
			return fmt.Errorf("decode %s: %w", evt.Type, err)
		}
		a.status = StatusPending
		a.patientID, _ = uuid.Parse(d.PatientID)
		a.patientName = d.PatientName
		a.doctorID, _ = uuid.Parse(d.DoctorID)
		a.medicineID, _ = uuid.Parse(d.MedicineID)
		a.medicineName = d.MedicineName
		a.dosage = d.Dosage
		a.frequency = d.Frequency
		a.quantity = d.Quantity
		a.instructions = d.Instructions
		a.createdAt = evt.OccurredAt
	case events.PrescriptionDispensed:
		var d DispensedData
		if err := evt.Decode(&d); err != nil {
			return fmt.Errorf("decode %s: %w", evt.Type, err)
		}
		a.status = StatusDispensed
		a.dispensedBy = d.DispensedBy
		at := d.DispensedAt
		a.dispensedAt = &at
	case events.PrescriptionCancelled:
		a.status = StatusCancelled
	default:
		return fmt.Errorf("unknown prescription event %s", evt.Type)
	}
	a.version++
	a.updatedAt = evt.OccurredAt
	return nil
}

// LoadFromHistory rebuilds state from stored events in version order.
func (a *Aggregate) LoadFromHistory(history []*events.Event) error {
	if len(history) == 0 {
		return errors.New("empty prescription history")
	}
	for _, evt := range history {
		if err := a.apply(evt); err != nil {
			return err
		}
	}
	return nil
}

// Prescription is the read model of an aggregate.
type Prescription struct {
	ID           uuid.UUID  `json:"id"`
	PatientID    uuid.UUID  `json:"patient_id"`
	DoctorID     uuid.UUID  `json:"doctor_id"`
	MedicineID   uuid.UUID  `json:"medicine_id"`
	MedicineName string     `json:"medicine_name"`
	Dosage       string     `json:"dosage"`
	Frequency    string     `json:"frequency"`
	Quantity     int        `json:"quantity"`
	Instructions string     `json:"instructions"`
	Status       Status     `json:"status"`
	Version      int        `json:"version"`
	DispensedBy  string     `json:"dispensed_by,omitempty"`
	DispensedAt  *time.Time `json:"dispensed_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// Snapshot returns the aggregate's current read model.
func (a *Aggregate) Snapshot() *Prescription {
	return &Prescription{
		ID:           a.id,
		PatientID:    a.patientID,
		DoctorID:     a.doctorID,
		MedicineID:   a.medicineID,
		MedicineName: a.medicineName,
		Dosage:       a.dosage,
		Frequency:    a.frequency,
		Quantity:     a.quantity,
		Instructions: a.instructions,
		Status:       a.status,
		Version:      a.version,
		DispensedBy:  a.dispensedBy,
		DispensedAt:  a.dispensedAt,
		CreatedAt:    a.createdAt,
		UpdatedAt:    a.updatedAt,
	}
}
