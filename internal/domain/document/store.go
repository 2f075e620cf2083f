package document

import (
	"context"

	"github.com/google/uuid"

	"github.com/abhishek2k21/purpletide-hospital-hub/internal/events"
	"github.com/abhishek2k21/purpletide-hospital-hub/internal/listing"
)

var ListSpec = listing.Spec{
	Sorts:       []string{"created_at", "title", "size_bytes"},
	DefaultSort: "created_at",
	DefaultDesc: true,
	Filters:     []string{"patient_id", "category"},
}

type Filter struct {
	PatientID uuid.UUID
	Category  Category
}

type Store interface {
	Create(ctx context.Context, d *Document, evt *events.Event) error
	Get(ctx context.Context, id uuid.UUID) (*Document, error)
	// Delete removes the row and returns it so the caller can drop the blob.
	Delete(ctx context.Context, id uuid.UUID) (*Document, error)
	List(ctx context.Context, params listing.Params, f Filter) (*listing.Page[Document], error)
}
