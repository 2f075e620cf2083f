// Package events defines the domain event envelope shared by the API,
// the outbox relay and the activity service.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Type names a domain event.
type Type string

const (
	PatientRegistered      Type = "patient.registered"
	PatientUpdated         Type = "patient.updated"
	PatientDeleted         Type = "patient.deleted"
	AppointmentScheduled   Type = "appointment.scheduled"
	AppointmentRescheduled Type = "appointment.rescheduled"
	AppointmentCancelled   Type = "appointment.cancelled"
	AppointmentCompleted   Type = "appointment.completed"
	AppointmentNoShow      Type = "appointment.no_show"
	InventoryRestocked     Type = "inventory.restocked"
	InventoryLowStock      Type = "inventory.low_stock"
	PrescriptionCreated    Type = "prescription.created"
	PrescriptionDispensed  Type = "prescription.dispensed"
	PrescriptionCancelled  Type = "prescription.cancelled"
	InvoiceIssued          Type = "invoice.issued"
	InvoicePaid            Type = "invoice.paid"
	InvoiceVoided          Type = "invoice.voided"
	DocumentUploaded       Type = "document.uploaded"
	UserSignedUp           Type = "user.signed_up"
)

// Topic is the single stream all hospital events are published to.
// Events are keyed by aggregate id so per-aggregate ordering holds.
const Topic = "hospital.events"

// Event is the envelope written to the outbox and published to the stream.
type Event struct {
	ID            string          `json:"id"`
	Type          Type            `json:"type"`
	AggregateID   string          `json:"aggregate_id"`
	AggregateType string          `json:"aggregate_type"`
	Actor         string          `json:"actor,omitempty"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Data          json.RawMessage `json:"data"`
}

// New builds an event, marshalling data into the envelope.
func New(eventType Type, aggregateType, aggregateID string, data any) (*Event, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("marshal %s data: %w", eventType, err)
	}
	return &Event{
		ID:            uuid.New().String(),
		Type:          eventType,
		AggregateID:   aggregateID,
		AggregateType: aggregateType,
		OccurredAt:    time.Now().UTC(),
		Data:          raw,
	}, nil
}

// WithActor records who caused the event.
func (e *Event) WithActor(actor string) *Event {
	e.Actor = actor
	return e
}

// Decode unmarshals the event payload into v.
func (e *Event) Decode(v any) error {
	return json.Unmarshal(e.Data, v)
}

// Parse decodes an envelope from its wire form.
func Parse(raw []byte) (*Event, error) {
	var e Event
	if err := json.Unmarshal(raw, &e); err != nil {
		return nil, fmt.Errorf("decode event: %w", err)
	}
	if e.ID == "" || e.Type == "" {
		return nil, fmt.Errorf("decode event: missing id or type")
	}
	return &e, nil
}

type actorKey struct{}

// ContextWithActor attaches the id of the user performing a request.
func ContextWithActor(ctx context.Context, actor string) context.Context {
	return context.WithValue(ctx, actorKey{}, actor)
}

// ActorFromContext returns the actor set by ContextWithActor, or "".
func ActorFromContext(ctx context.Context) string {
	actor, _ := ctx.Value(actorKey{}).(string)
	return actor
}

// Record builds an event attributed to the actor carried by ctx.
func Record(ctx context.Context, eventType Type, aggregateType, aggregateID string, data any) (*Event, error) {
	evt, err := New(eventType, aggregateType, aggregateID, data)
	if err != nil {
		return nil, err
	}
	return evt.WithActor(ActorFromContext(ctx)), nil
}
