package billing

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/abhishek2k21/purpletide-hospital-hub/internal/apperror"
	"github.com/abhishek2k21/purpletide-hospital-hub/internal/calendar"
	"github.com/abhishek2k21/purpletide-hospital-hub/internal/domain/appointment"
	"github.com/abhishek2k21/purpletide-hospital-hub/internal/domain/inventory"
	"github.com/abhishek2k21/purpletide-hospital-hub/internal/domain/patient"
	"github.com/abhishek2k21/purpletide-hospital-hub/internal/events"
	"github.com/abhishek2k21/purpletide-hospital-hub/internal/listing"
)

type PatientLookup interface {
	Get(ctx context.Context, id uuid.UUID) (*patient.Patient, error)
}

type AppointmentLookup interface {
	Get(ctx context.Context, id uuid.UUID) (*appointment.Appointment, error)
}

type ItemLookup interface {
	Get(ctx context.Context, id uuid.UUID) (*inventory.Item, error)
}

// TaxRates supplies the hospital tax rate in basis points.
type TaxRates interface {
	TaxRateBPS(ctx context.Context) (int, error)
}

type Service struct {
	store        Store
	patients     PatientLookup
	appointments AppointmentLookup
	items        ItemLookup
	taxes        TaxRates
	zone         *calendar.Zone
	logger       *zap.Logger
	now          func() time.Time
}

func NewService(store Store, patients PatientLookup, appointments AppointmentLookup, items ItemLookup,
	taxes TaxRates, zone *calendar.Zone, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		store:        store,
		patients:     patients,
		appointments: appointments,
		items:        items,
		taxes:        taxes,
		zone:         zone,
		logger:       logger,
		now:          time.Now,
	}
}

// prepare validates a draft form and resolves references. Lines that
// name an inventory item default to its name and unit price.
func (s *Service) prepare(ctx context.Context, in *DraftInput) error {
	if err := in.Validate(); err != nil {
		return err
	}
	if _, err := s.patients.Get(ctx, in.PatientID); err != nil {
		return err
	}
	if in.AppointmentID != nil {
		a, err := s.appointments.Get(ctx, *in.AppointmentID)
		if err != nil {
			return err
		}
		if a.PatientID != in.PatientID {
			v := &apperror.ValidationError{}
			v.Add("appointment_id", "belongs to another patient")
			return v
		}
	}
	for i := range in.Items {
		line := &in.Items[i]
		if line.ItemID == nil {
			continue
		}
		it, err := s.items.Get(ctx, *line.ItemID)
		if err != nil {
			return err
		}
		if line.Description == "" {
			line.Description = it.Name
		}
		if line.UnitPrice == 0 {
			line.UnitPrice = it.UnitPrice
		}
	}
	return in.CheckDiscount()
}

// Create opens a draft invoice at the current tax rate.
func (s *Service) Create(ctx context.Context, in DraftInput) (*Invoice, error) {
	if err := s.prepare(ctx, &in); err != nil {
		return nil, err
	}
	bps, err := s.taxes.TaxRateBPS(ctx)
	if err != nil {
		return nil, fmt.Errorf("read tax rate: %w", err)
	}

	inv := &Invoice{
		ID:            uuid.New(),
		PatientID:     in.PatientID,
		AppointmentID: in.AppointmentID,
		Items:         in.Items,
		TaxBPS:        bps,
		Discount:      in.Discount,
		Status:        StatusDraft,
		Notes:         in.Notes,
		CreatedBy:     events.ActorFromContext(ctx),
		CreatedAt:     s.now().In(s.zone.Location(ctx)),
	}
	if inv.Items == nil {
		inv.Items = []LineItem{}
	}
	inv.Recalculate()
	if err := s.store.Create(ctx, inv); err != nil {
		return nil, err
	}
	s.logger.Info("invoice created",
		zap.String("invoice_id", inv.ID.String()),
		zap.String("number", inv.Number),
		zap.Int64("total", inv.Total))
	return inv, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Invoice, error) {
	return s.store.Get(ctx, id)
}

// UpdateDraft replaces the lines, discount and notes of a draft.
func (s *Service) UpdateDraft(ctx context.Context, id uuid.UUID, in DraftInput) (*Invoice, error) {
	if err := s.prepare(ctx, &in); err != nil {
		return nil, err
	}
	return s.store.Modify(ctx, id, func(inv *Invoice) ([]*events.Event, error) {
		if inv.Status != StatusDraft {
			return nil, apperror.InvalidState("only draft invoices can be edited")
		}
		if in.PatientID != inv.PatientID {
			v := &apperror.ValidationError{}
			v.Add("patient_id", "cannot be changed")
			return nil, v
		}
		inv.AppointmentID = in.AppointmentID
		inv.Items = in.Items
		if inv.Items == nil {
			inv.Items = []LineItem{}
		}
		inv.Discount = in.Discount
		inv.Notes = in.Notes
		inv.Recalculate()
		return nil, nil
	})
}

// Issue finalises a draft. An issued invoice is no longer editable.
func (s *Service) Issue(ctx context.Context, id uuid.UUID) (*Invoice, error) {
	return s.store.Modify(ctx, id, func(inv *Invoice) ([]*events.Event, error) {
		if inv.Status != StatusDraft {
			return nil, apperror.InvalidState(fmt.Sprintf("invoice is %s", inv.Status))
		}
		if len(inv.Items) == 0 {
			return nil, apperror.InvalidState("invoice has no line items")
		}
		now := s.now().UTC()
		inv.Status = StatusIssued
		inv.IssuedAt = &now
		return s.record(ctx, events.InvoiceIssued, inv, "")
	})
}

// Pay records full payment. A draft is issued and paid in one step.
func (s *Service) Pay(ctx context.Context, id uuid.UUID, method PaymentMethod) (*Invoice, error) {
	if !method.Valid() {
		v := &apperror.ValidationError{}
		v.Add("payment_method", "must be cash, card, upi or insurance")
		return nil, v
	}
	return s.store.Modify(ctx, id, func(inv *Invoice) ([]*events.Event, error) {
		if inv.Status != StatusDraft && inv.Status != StatusIssued {
			return nil, apperror.InvalidState(fmt.Sprintf("invoice is %s", inv.Status))
		}
		if len(inv.Items) == 0 {
			return nil, apperror.InvalidState("invoice has no line items")
		}
		now := s.now().UTC()
		if inv.IssuedAt == nil {
			inv.IssuedAt = &now
		}
		inv.Status = StatusPaid
		inv.PaymentMethod = method
		inv.PaidAt = &now
		return s.record(ctx, events.InvoicePaid, inv, "")
	})
}

// Void cancels an unpaid invoice.
func (s *Service) Void(ctx context.Context, id uuid.UUID, reason string) (*Invoice, error) {
	return s.store.Modify(ctx, id, func(inv *Invoice) ([]*events.Event, error) {
		switch inv.Status {
		case StatusPaid:
			return nil, apperror.InvalidState("paid invoices cannot be voided")
		case StatusVoid:
			return nil, apperror.InvalidState("invoice is already void")
		}
		inv.Status = StatusVoid
		return s.record(ctx, events.InvoiceVoided, inv, strings.TrimSpace(reason))
	})
}

func (s *Service) record(ctx context.Context, t events.Type, inv *Invoice, reason string) ([]*events.Event, error) {
	data := eventData(inv)
	data.Reason = reason
	evt, err := events.Record(ctx, t, AggregateType, inv.ID.String(), data)
	if err != nil {
		return nil, err
	}
	return []*events.Event{evt}, nil
}

func (s *Service) List(ctx context.Context, params listing.Params) (*listing.Page[Invoice], error) {
	var f Filter
	loc := s.zone.Location(ctx)
	v := &apperror.ValidationError{}
	if raw, ok := params.Filter("patient_id"); ok {
		id, err := uuid.Parse(raw)
		v.Check(err == nil, "patient_id", "must be a UUID")
		f.PatientID = id
	}
	if raw, ok := params.Filter("status"); ok {
		st := Status(raw)
		v.Check(st == StatusDraft || st == StatusIssued || st == StatusPaid || st == StatusVoid,
			"status", "must be draft, issued, paid or void")
		f.Status = st
	}
	if raw, ok := params.Filter("from"); ok {
		d, err := calendar.Parse(raw)
		v.Check(err == nil, "from", "must be a date (YYYY-MM-DD)")
		if err == nil {
			f.From = d.Time(loc)
		}
	}
	if raw, ok := params.Filter("to"); ok {
		d, err := calendar.Parse(raw)
		v.Check(err == nil, "to", "must be a date (YYYY-MM-DD)")
		if err == nil {
			f.To = d.AddDays(1).Time(loc)
		}
	}
	if err := v.Err(); err != nil {
		return nil, err
	}
	return s.store.List(ctx, params, f)
}

// ForPatient returns a patient's most recent invoices.
func (s *Service) ForPatient(ctx context.Context, patientID uuid.UUID, limit int) ([]Invoice, error) {
	page, err := s.store.List(ctx, listing.Params{Sort: "created_at", Desc: true, Limit: limit},
		Filter{PatientID: patientID})
	if err != nil {
		return nil, err
	}
	return page.Items, nil
}
