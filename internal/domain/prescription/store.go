package prescription

import (
	"context"

	"github.com/google/uuid"

	"github.com/abhishek2k21/purpletide-hospital-hub/internal/events"
	"github.com/abhishek2k21/purpletide-hospital-hub/internal/listing"
)

var ListSpec = listing.Spec{
	Sorts:       []string{"created_at", "updated_at", "status"},
	DefaultSort: "created_at",
	Filters:     []string{"patient_id", "doctor_id", "status"},
}

// Filter narrows a list. Zero fields are ignored.
type Filter struct {
	PatientID uuid.UUID
	DoctorID  uuid.UUID
	Status    Status
}

// StockWithdrawal takes dispensed units out of inventory in the same
// transaction that records the dispense.
type StockWithdrawal struct {
	ItemID   uuid.UUID
	Quantity int
}

// HistoryEntry is one stored event of a prescription.
type HistoryEntry struct {
	Version int           `json:"version"`
	Event   *events.Event `json:"event"`
}

type Store interface {
	// Save appends the aggregate's pending changes, refreshes the read
	// model and queues the events for publishing. A concurrent writer
	// that already took the next version yields a conflict. When stock
	// is set the withdrawal fails with an invalid-state error if the item
	// holds fewer units than requested.
	Save(ctx context.Context, agg *Aggregate, stock *StockWithdrawal) error
	Load(ctx context.Context, id uuid.UUID) (*Aggregate, error)
	History(ctx context.Context, id uuid.UUID) ([]HistoryEntry, error)
	Get(ctx context.Context, id uuid.UUID) (*Prescription, error)
	List(ctx context.Context, params listing.Params, f Filter) (*listing.Page[Prescription], error)
}
