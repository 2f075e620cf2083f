// Package billing issues patient invoices and records payments.
package billing

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/abhishek2k21/purpletide-hospital-hub/internal/apperror"
)

const AggregateType = "invoice"

type Status string

const (
	StatusDraft  Status = "draft"
	StatusIssued Status = "issued"
	StatusPaid   Status = "paid"
	StatusVoid   Status = "void"
)

type PaymentMethod string

const (
	PaymentCash      PaymentMethod = "cash"
	PaymentCard      PaymentMethod = "card"
	PaymentUPI       PaymentMethod = "upi"
	PaymentInsurance PaymentMethod = "insurance"
)

func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentCash, PaymentCard, PaymentUPI, PaymentInsurance:
		return true
	}
	return false
}

// LineItem is one billed line. Prices are in minor currency units.
type LineItem struct {
	Description string     `json:"description"`
	Quantity    int        `json:"quantity"`
	UnitPrice   int64      `json:"unit_price"`
	ItemID      *uuid.UUID `json:"item_id,omitempty"`
	Amount      int64      `json:"amount"`
}

type Invoice struct {
	ID            uuid.UUID     `json:"id"`
	Number        string        `json:"number"`
	PatientID     uuid.UUID     `json:"patient_id"`
	AppointmentID *uuid.UUID    `json:"appointment_id,omitempty"`
	Items         []LineItem    `json:"items"`
	Subtotal      int64         `json:"subtotal"`
	TaxBPS        int           `json:"tax_bps"`
	Tax           int64         `json:"tax"`
	Discount      int64         `json:"discount"`
	Total         int64         `json:"total"`
	Status        Status        `json:"status"`
	PaymentMethod PaymentMethod `json:"payment_method,omitempty"`
	Notes         string        `json:"notes"`
	CreatedBy     string        `json:"created_by"`
	IssuedAt      *time.Time    `json:"issued_at,omitempty"`
	PaidAt        *time.Time    `json:"paid_at,omitempty"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`
}

// FormatNumber renders an invoice number from the month the draft was
// created and a sequence value, e.g. INV-202406-000042.
func FormatNumber(at time.Time, seq int64) string {
	return fmt.Sprintf("INV-%04d%02d-%06d", at.Year(), int(at.Month()), seq)
}

// Recalculate fills line amounts and the invoice totals. Tax is charged
// on the discounted subtotal and rounded half up.
func (inv *Invoice) Recalculate() {
	var subtotal int64
	for i := range inv.Items {
		inv.Items[i].Amount = int64(inv.Items[i].Quantity) * inv.Items[i].UnitPrice
		subtotal += inv.Items[i].Amount
	}
	inv.Subtotal = subtotal
	taxable := subtotal - inv.Discount
	if taxable < 0 {
		taxable = 0
	}
	inv.Tax = (taxable*int64(inv.TaxBPS) + 5000) / 10000
	inv.Total = taxable + inv.Tax
}

// DraftInput is the invoice form.
type DraftInput struct {
	PatientID     uuid.UUID  `json:"patient_id"`
	AppointmentID *uuid.UUID `json:"appointment_id"`
	Items         []LineItem `json:"items"`
	Discount      int64      `json:"discount"`
	Notes         string     `json:"notes"`
}

// Validate checks the form fields. Lines naming an inventory item may
// leave the price empty, so the discount is checked separately by
// CheckDiscount once prices are known.
func (in *DraftInput) Validate() error {
	in.Notes = strings.TrimSpace(in.Notes)
	v := &apperror.ValidationError{}
	v.Check(in.PatientID != uuid.Nil, "patient_id", "is required")
	v.Check(in.Discount >= 0, "discount", "must not be negative")
	for i := range in.Items {
		it := &in.Items[i]
		it.Description = strings.TrimSpace(it.Description)
		field := fmt.Sprintf("items[%d]", i)
		v.Check(it.Description != "" || it.ItemID != nil, field+".description", "is required")
		v.Check(it.Quantity > 0, field+".quantity", "must be positive")
		v.Check(it.UnitPrice >= 0, field+".unit_price", "must not be negative")
	}
	return v.Err()
}

// CheckDiscount rejects a discount larger than the subtotal of the lines.
func (in *DraftInput) CheckDiscount() error {
	var subtotal int64
	for _, it := range in.Items {
		subtotal += int64(it.Quantity) * it.UnitPrice
	}
	v := &apperror.ValidationError{}
	v.Check(in.Discount <= subtotal, "discount", "must not exceed the subtotal")
	return v.Err()
}

// EventData is the payload of invoice events.
type EventData struct {
	InvoiceID     string        `json:"invoice_id"`
	Number        string        `json:"number"`
	PatientID     string        `json:"patient_id"`
	Total         int64         `json:"total"`
	Status        Status        `json:"status"`
	PaymentMethod PaymentMethod `json:"payment_method,omitempty"`
	Reason        string        `json:"reason,omitempty"`
}

func eventData(inv *Invoice) EventData {
	return EventData{
		InvoiceID:     inv.ID.String(),
		Number:        inv.Number,
		PatientID:     inv.PatientID.String(),
		Total:         inv.Total,
		Status:        inv.Status,
		PaymentMethod: inv.PaymentMethod,
	}
}
