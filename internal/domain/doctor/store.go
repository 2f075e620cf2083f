package doctor

import (
	"context"

	"github.com/google/uuid"

	"github.com/abhishek2k21/purpletide-hospital-hub/internal/listing"
)

var ListSpec = listing.Spec{
	Sorts:       []string{"name", "department", "experience_years", "created_at"},
	DefaultSort: "name",
	Filters:     []string{"department", "specialization"},
}

type Store interface {
	Create(ctx context.Context, d *Doctor) error
	Get(ctx context.Context, id uuid.UUID) (*Doctor, error)
	Update(ctx context.Context, d *Doctor) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, params listing.Params) (*listing.Page[Doctor], error)
}
