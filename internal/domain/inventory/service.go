package inventory

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/abhishek2k21/purpletide-hospital-hub/internal/apperror"
	"github.com/abhishek2k21/purpletide-hospital-hub/internal/calendar"
	"github.com/abhishek2k21/purpletide-hospital-hub/internal/events"
	"github.com/abhishek2k21/purpletide-hospital-hub/internal/listing"
)

type Service struct {
	store  Store
	logger *zap.Logger
	now    func() time.Time
}

func NewService(store Store, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: store, logger: logger, now: time.Now}
}

func (s *Service) Create(ctx context.Context, it *Item) (*Item, error) {
	it.Normalize()
	if err := it.Validate(); err != nil {
		return nil, err
	}
	it.ID = uuid.New()
	if err := s.store.Create(ctx, it); err != nil {
		return nil, fmt.Errorf("create inventory item: %w", err)
	}
	s.logger.Info("inventory item added", zap.String("item_id", it.ID.String()), zap.String("name", it.Name))
	return it, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Item, error) {
	return s.store.Get(ctx, id)
}

// lowStockTransition returns the low-stock event when a change takes an
// item into low stock.
func lowStockTransition(ctx context.Context, wasLow bool, it *Item) ([]*events.Event, error) {
	if wasLow || !it.LowStock() {
		return nil, nil
	}
	evt, err := LowStockEvent(ctx, it)
	if err != nil {
		return nil, err
	}
	return []*events.Event{evt}, nil
}

// Update replaces the item's editable fields, including quantity.
func (s *Service) Update(ctx context.Context, id uuid.UUID, in *Item) (*Item, error) {
	in.Normalize()
	if err := in.Validate(); err != nil {
		return nil, err
	}
	return s.store.Modify(ctx, id, func(it *Item) ([]*events.Event, error) {
		wasLow := it.LowStock()
		it.Name = in.Name
		it.Category = in.Category
		it.Quantity = in.Quantity
		it.Unit = in.Unit
		it.UnitPrice = in.UnitPrice
		it.ReorderLevel = in.ReorderLevel
		it.Supplier = in.Supplier
		it.Location = in.Location
		it.ExpiryDate = in.ExpiryDate
		return lowStockTransition(ctx, wasLow, it)
	})
}

// Restock adds a delivery and stamps the restock time.
func (s *Service) Restock(ctx context.Context, id uuid.UUID, in RestockInput) (*Item, error) {
	if in.Quantity <= 0 {
		v := &apperror.ValidationError{}
		v.Add("quantity", "must be positive")
		return nil, v
	}
	item, err := s.store.Modify(ctx, id, func(it *Item) ([]*events.Event, error) {
		it.Quantity += in.Quantity
		now := s.now().UTC()
		it.LastRestocked = &now
		if in.ExpiryDate != nil {
			it.ExpiryDate = in.ExpiryDate
		}
		data := eventData(it)
		data.Delta = in.Quantity
		evt, err := events.Record(ctx, events.InventoryRestocked, AggregateType, it.ID.String(), data)
		if err != nil {
			return nil, err
		}
		return []*events.Event{evt}, nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("inventory restocked",
		zap.String("item_id", id.String()),
		zap.Int("added", in.Quantity),
		zap.Int("quantity", item.Quantity))
	return item, nil
}

// Adjust applies a signed correction. Stock never goes below zero.
func (s *Service) Adjust(ctx context.Context, id uuid.UUID, in AdjustInput) (*Item, error) {
	if in.Delta == 0 {
		v := &apperror.ValidationError{}
		v.Add("delta", "must not be zero")
		return nil, v
	}
	return s.store.Modify(ctx, id, func(it *Item) ([]*events.Event, error) {
		if it.Quantity+in.Delta < 0 {
			return nil, apperror.InvalidState(fmt.Sprintf("insufficient stock: %d %s on hand", it.Quantity, it.Unit))
		}
		wasLow := it.LowStock()
		it.Quantity += in.Delta
		s.logger.Info("inventory adjusted",
			zap.String("item_id", it.ID.String()),
			zap.Int("delta", in.Delta),
			zap.String("reason", strings.TrimSpace(in.Reason)))
		return lowStockTransition(ctx, wasLow, it)
	})
}

func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	return s.store.Delete(ctx, id)
}

// List reads the category, low_stock and expiring_within (days) filters.
func (s *Service) List(ctx context.Context, params listing.Params) (*listing.Page[Item], error) {
	var f Filter
	v := &apperror.ValidationError{}

	if c, ok := params.Filter("category"); ok {
		f.Category = c
	}
	if raw, ok := params.Filter("low_stock"); ok {
		low, err := strconv.ParseBool(raw)
		v.Check(err == nil, "low_stock", "must be true or false")
		f.LowStock = low
	}
	if raw, ok := params.Filter("expiring_within"); ok {
		days, err := strconv.Atoi(raw)
		v.Check(err == nil && days >= 0, "expiring_within", "must be a non-negative number of days")
		if err == nil && days >= 0 {
			by := calendar.Of(s.now()).AddDays(days)
			f.ExpiringBy = &by
		}
	}
	if err := v.Err(); err != nil {
		return nil, err
	}
	return s.store.List(ctx, params, f)
}
