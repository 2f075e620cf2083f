// Package inventory tracks pharmacy and ward stock.
package inventory

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/abhishek2k21/purpletide-hospital-hub/internal/apperror"
	"github.com/abhishek2k21/purpletide-hospital-hub/internal/calendar"
	"github.com/abhishek2k21/purpletide-hospital-hub/internal/events"
)

const AggregateType = "inventory"

// Item is one stocked product. UnitPrice is in minor currency units.
type Item struct {
	ID            uuid.UUID      `json:"id"`
	Name          string         `json:"name"`
	Category      string         `json:"category"`
	Quantity      int            `json:"quantity"`
	Unit          string         `json:"unit"`
	UnitPrice     int64          `json:"unit_price"`
	ReorderLevel  int            `json:"reorder_level"`
	Supplier      string         `json:"supplier"`
	Location      string         `json:"location"`
	ExpiryDate    *calendar.Date `json:"expiry_date,omitempty"`
	LastRestocked *time.Time     `json:"last_restocked,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
}

// LowStock reports whether the item is at or below its reorder level.
func (it *Item) LowStock() bool {
	return it.Quantity <= it.ReorderLevel
}

// MarshalJSON adds the derived low_stock flag.
func (it Item) MarshalJSON() ([]byte, error) {
	type plain Item
	return json.Marshal(struct {
		plain
		LowStock bool `json:"low_stock"`
	}{plain(it), it.LowStock()})
}

func (it *Item) Normalize() {
	it.Name = strings.TrimSpace(it.Name)
	it.Category = strings.TrimSpace(it.Category)
	it.Unit = strings.TrimSpace(it.Unit)
	it.Supplier = strings.TrimSpace(it.Supplier)
	it.Location = strings.TrimSpace(it.Location)
}

func (it *Item) Validate() error {
	v := &apperror.ValidationError{}
	v.Check(it.Name != "", "name", "is required")
	v.Check(it.Quantity >= 0, "quantity", "cannot be negative")
	v.Check(it.UnitPrice >= 0, "unit_price", "cannot be negative")
	v.Check(it.ReorderLevel >= 0, "reorder_level", "cannot be negative")
	return v.Err()
}

// RestockInput adds a delivery to stock.
type RestockInput struct {
	Quantity int `json:"quantity"`
	// ExpiryDate, when set, replaces the stored expiry with the new batch's.
	ExpiryDate *calendar.Date `json:"expiry_date,omitempty"`
}

// AdjustInput corrects stock by a signed delta (breakage, audit, returns).
type AdjustInput struct {
	Delta  int    `json:"delta"`
	Reason string `json:"reason"`
}

// EventData is the payload of inventory events.
type EventData struct {
	ItemID       string `json:"item_id"`
	Name         string `json:"name"`
	Category     string `json:"category"`
	Quantity     int    `json:"quantity"`
	ReorderLevel int    `json:"reorder_level"`
	Unit         string `json:"unit"`
	Supplier     string `json:"supplier"`
	Delta        int    `json:"delta,omitempty"`
	Reason       string `json:"reason,omitempty"`
}

func eventData(it *Item) EventData {
	return EventData{
		ItemID:       it.ID.String(),
		Name:         it.Name,
		Category:     it.Category,
		Quantity:     it.Quantity,
		ReorderLevel: it.ReorderLevel,
		Unit:         it.Unit,
		Supplier:     it.Supplier,
	}
}

// CrossedReorderLevel reports whether a stock change took the item from
// above its reorder level to at or below it.
func CrossedReorderLevel(before, after, reorderLevel int) bool {
	return before > reorderLevel && after <= reorderLevel
}

// LowStockEvent builds the inventory.low_stock event for it.
func LowStockEvent(ctx context.Context, it *Item) (*events.Event, error) {
	return events.Record(ctx, events.InventoryLowStock, AggregateType, it.ID.String(), eventData(it))
}
