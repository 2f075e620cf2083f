package settings

import (
	"context"

	"github.com/google/uuid"

	"github.com/abhishek2k21/purpletide-hospital-hub/internal/listing"
)

var ProfileListSpec = listing.Spec{
	Sorts:       []string{"name", "email", "role", "created_at"},
	DefaultSort: "name",
	Filters:     []string{"role"},
}

type Store interface {
	GetProfile(ctx context.Context, id uuid.UUID) (*Profile, error)
	// EnsureProfile inserts p unless a profile with its id exists, and
	// returns the stored row.
	EnsureProfile(ctx context.Context, p *Profile) (*Profile, error)
	UpdateProfile(ctx context.Context, id uuid.UUID, in ProfileInput) (*Profile, error)
	SetRole(ctx context.Context, id uuid.UUID, role Role) (*Profile, error)
	ListProfiles(ctx context.Context, params listing.Params, role Role) (*listing.Page[Profile], error)

	Values(ctx context.Context) (map[string]string, error)
	SetValues(ctx context.Context, values map[string]string, actor string) error
}
