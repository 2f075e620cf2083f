package patient

import (
	"context"

	"github.com/google/uuid"

	"github.com/abhishek2k21/purpletide-hospital-hub/internal/events"
	"github.com/abhishek2k21/purpletide-hospital-hub/internal/listing"
)

// ListSpec declares the sort keys and filters of the patient list.
var ListSpec = listing.Spec{
	Sorts:       []string{"name", "registration_date", "last_visit_date", "created_at"},
	DefaultSort: "registration_date",
	DefaultDesc: true,
	Filters:     []string{"gender", "status"},
}

// Store persists patients. Writes take the event describing the change so
// implementations can record both atomically.
type Store interface {
	Create(ctx context.Context, p *Patient, evt *events.Event) error
	Get(ctx context.Context, id uuid.UUID) (*Patient, error)
	Update(ctx context.Context, p *Patient, evt *events.Event) error
	// Delete removes the patient and their records and returns the storage
	// keys of the documents removed with them.
	Delete(ctx context.Context, id uuid.UUID, evt *events.Event) ([]string, error)
	List(ctx context.Context, params listing.Params) (*listing.Page[Patient], error)
}
