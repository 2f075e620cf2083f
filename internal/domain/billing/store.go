package billing

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/abhishek2k21/purpletide-hospital-hub/internal/events"
	"github.com/abhishek2k21/purpletide-hospital-hub/internal/listing"
)

var ListSpec = listing.Spec{
	Sorts:       []string{"created_at", "total", "number", "status"},
	DefaultSort: "created_at",
	DefaultDesc: true,
	Filters:     []string{"patient_id", "status", "from", "to"},
}

// Filter narrows a list. From/To bound created_at as a half-open range.
type Filter struct {
	PatientID uuid.UUID
	Status    Status
	From      time.Time
	To        time.Time
}

// ModifyFunc mutates a locked invoice and returns the events to record.
type ModifyFunc func(inv *Invoice) ([]*events.Event, error)

type Store interface {
	// Create assigns the next invoice number and inserts inv.
	Create(ctx context.Context, inv *Invoice) error
	Get(ctx context.Context, id uuid.UUID) (*Invoice, error)
	Modify(ctx context.Context, id uuid.UUID, fn ModifyFunc) (*Invoice, error)
	List(ctx context.Context, params listing.Params, f Filter) (*listing.Page[Invoice], error)
}
