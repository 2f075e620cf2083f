package inventory

import (
	"context"

	"github.com/google/uuid"

	"github.com/abhishek2k21/purpletide-hospital-hub/internal/calendar"
	"github.com/abhishek2k21/purpletide-hospital-hub/internal/events"
	"github.com/abhishek2k21/purpletide-hospital-hub/internal/listing"
)

var ListSpec = listing.Spec{
	Sorts:       []string{"name", "quantity", "expiry_date", "unit_price", "created_at"},
	DefaultSort: "name",
	Filters:     []string{"category", "low_stock", "expiring_within"},
}

// Filter narrows a list. ExpiringBy keeps items expiring on or before
// that day.
type Filter struct {
	Category   string
	LowStock   bool
	ExpiringBy *calendar.Date
}

// ModifyFunc mutates a locked item and returns the events to record with
// the change.
type ModifyFunc func(it *Item) ([]*events.Event, error)

type Store interface {
	Create(ctx context.Context, it *Item) error
	Get(ctx context.Context, id uuid.UUID) (*Item, error)
	// Modify loads the item under a row lock, applies fn and saves the
	// result together with the returned events.
	Modify(ctx context.Context, id uuid.UUID, fn ModifyFunc) (*Item, error)
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, params listing.Params, f Filter) (*listing.Page[Item], error)
}
