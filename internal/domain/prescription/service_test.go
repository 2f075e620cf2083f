package prescription

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/abhishek2k21/purpletide-hospital-hub/internal/apperror"
	"github.com/abhishek2k21/purpletide-hospital-hub/internal/domain/doctor"
	"github.com/abhishek2k21/purpletide-hospital-hub/internal/domain/inventory"
	"github.com/abhishek2k21/purpletide-hospital-hub/internal/domain/patient"
	"github.com/abhishek2k21/purpletide-hospital-hub/internal/events"
	"github.com/abhishek2k21/purpletide-hospital-hub/internal/listing"
)

// -- Mocks --

// mockStore keeps event streams and a stock map, and applies a save
// all-or-nothing like the Postgres store.
type mockStore struct {
	streams   map[uuid.UUID][]*events.Event
	stock     map[uuid.UUID]int
	published []*events.Event
	lastList  Filter
}

func newMockStore() *mockStore {
	return &mockStore{streams: make(map[uuid.UUID][]*events.Event), stock: make(map[uuid.UUID]int)}
}

func (m *mockStore) Save(_ context.Context, agg *Aggregate, stock *StockWithdrawal) error {
	changes := agg.Changes()
	if len(m.streams[agg.ID()]) != agg.Version()-len(changes) {
		return apperror.Conflict("prescription was modified concurrently")
	}
	if stock != nil {
		if m.stock[stock.ItemID] < stock.Quantity {
			return apperror.InvalidState("insufficient stock")
		}
		m.stock[stock.ItemID] -= stock.Quantity
	}
	m.streams[agg.ID()] = append(m.streams[agg.ID()], changes...)
	m.published = append(m.published, changes...)
	agg.ClearChanges()
	return nil
}

func (m *mockStore) Load(_ context.Context, id uuid.UUID) (*Aggregate, error) {
	stream, ok := m.streams[id]
	if !ok {
		return nil, apperror.NotFound("prescription", id.String())
	}
	agg := NewAggregate(id)
	if err := agg.LoadFromHistory(stream); err != nil {
		return nil, err
	}
	return agg, nil
}

func (m *mockStore) History(_ context.Context, id uuid.UUID) ([]HistoryEntry, error) {
	stream, ok := m.streams[id]
	if !ok {
		return nil, apperror.NotFound("prescription", id.String())
	}
	out := make([]HistoryEntry, len(stream))
	for i, evt := range stream {
		out[i] = HistoryEntry{Version: i + 1, Event: evt}
	}
	return out, nil
}

func (m *mockStore) Get(ctx context.Context, id uuid.UUID) (*Prescription, error) {
	agg, err := m.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	return agg.Snapshot(), nil
}

func (m *mockStore) List(_ context.Context, params listing.Params, f Filter) (*listing.Page[Prescription], error) {
	m.lastList = f
	var items []Prescription
	for id := range m.streams {
		agg, _ := m.Load(context.Background(), id)
		p := agg.Snapshot()
		if f.PatientID != uuid.Nil && p.PatientID != f.PatientID {
			continue
		}
		items = append(items, *p)
	}
	return &listing.Page[Prescription]{Items: items, Total: len(items), Limit: params.Limit}, nil
}

type mockPatients map[uuid.UUID]*patient.Patient

func (m mockPatients) Get(_ context.Context, id uuid.UUID) (*patient.Patient, error) {
	if p, ok := m[id]; ok {
		return p, nil
	}
	return nil, apperror.NotFound("patient", id.String())
}

type mockDoctors map[uuid.UUID]*doctor.Doctor

func (m mockDoctors) Get(_ context.Context, id uuid.UUID) (*doctor.Doctor, error) {
	if d, ok := m[id]; ok {
		return d, nil
	}
	return nil, apperror.NotFound("doctor", id.String())
}

type mockMedicines map[uuid.UUID]*inventory.Item

func (m mockMedicines) Get(_ context.Context, id uuid.UUID) (*inventory.Item, error) {
	if it, ok := m[id]; ok {
		return it, nil
	}
	return nil, apperror.NotFound("inventory item", id.String())
}

// -- Fixture --

type fixture struct {
	svc      *Service
	store    *mockStore
	patient  *patient.Patient
	doctor   *doctor.Doctor
	medicine *inventory.Item
}

func newFixture() *fixture {
	p := &patient.Patient{ID: uuid.New(), FirstName: "Rahul", LastName: "Verma"}
	d := &doctor.Doctor{ID: uuid.New(), FirstName: "Rajesh", LastName: "Sharma"}
	med := &inventory.Item{ID: uuid.New(), Name: "Amoxicillin 500mg", Quantity: 30, ReorderLevel: 10}

	store := newMockStore()
	store.stock[med.ID] = med.Quantity
	svc := NewService(store, mockPatients{p.ID: p}, mockDoctors{d.ID: d}, mockMedicines{med.ID: med}, nil)
	svc.now = func() time.Time { return time.Date(2024, 6, 10, 9, 30, 0, 0, time.UTC) }
	return &fixture{svc: svc, store: store, patient: p, doctor: d, medicine: med}
}

func (f *fixture) create(t *testing.T, qty int) *Prescription {
	t.Helper()
	ctx := events.ContextWithActor(context.Background(), "doctor-1")
	rx, err := f.svc.Create(ctx, CreateInput{
		PatientID:  f.patient.ID,
		DoctorID:   f.doctor.ID,
		MedicineID: f.medicine.ID,
		Dosage:     "500mg",
		Frequency:  "twice daily",
		Quantity:   qty,
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	return rx
}

// -- Tests --

func TestCreatePending(t *testing.T) {
	f := newFixture()
	rx := f.create(t, 10)

	if rx.Status != StatusPending || rx.Version != 1 {
		t.Errorf("status/version = %s/%d", rx.Status, rx.Version)
	}
	if rx.MedicineName != "Amoxicillin 500mg" || rx.PatientID != f.patient.ID {
		t.Errorf("prescription = %+v", rx)
	}
	if f.store.stock[f.medicine.ID] != 30 {
		t.Errorf("create must not touch stock, got %d", f.store.stock[f.medicine.ID])
	}
	if len(f.store.published) != 1 || f.store.published[0].Type != events.PrescriptionCreated {
		t.Fatalf("events = %+v", f.store.published)
	}
	if f.store.published[0].Actor != "doctor-1" {
		t.Errorf("actor = %q", f.store.published[0].Actor)
	}
	var data CreatedData
	if err := f.store.published[0].Decode(&data); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if data.PatientName != "Rahul Verma" || data.DoctorName != "Dr. Rajesh Sharma" {
		t.Errorf("data = %+v", data)
	}
}

func TestCreateRejections(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	_, err := f.svc.Create(ctx, CreateInput{PatientID: f.patient.ID, DoctorID: f.doctor.ID, MedicineID: f.medicine.ID})
	if !apperror.IsValidation(err) {
		t.Errorf("missing dosage/quantity: err = %v", err)
	}

	_, err = f.svc.Create(ctx, CreateInput{
		PatientID: uuid.New(), DoctorID: f.doctor.ID, MedicineID: f.medicine.ID,
		Dosage: "5ml", Quantity: 1,
	})
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("unknown patient: err = %v", err)
	}

	_, err = f.svc.Create(ctx, CreateInput{
		PatientID: f.patient.ID, DoctorID: f.doctor.ID, MedicineID: uuid.New(),
		Dosage: "5ml", Quantity: 1,
	})
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("unknown medicine: err = %v", err)
	}
	if len(f.store.streams) != 0 {
		t.Errorf("nothing should be stored")
	}
}

func TestDispenseWithdrawsStock(t *testing.T) {
	f := newFixture()
	rx := f.create(t, 12)

	ctx := events.ContextWithActor(context.Background(), "pharmacist-1")
	got, err := f.svc.Dispense(ctx, rx.ID)
	if err != nil {
		t.Fatalf("Dispense: %v", err)
	}
	if got.Status != StatusDispensed || got.Version != 2 {
		t.Errorf("status/version = %s/%d", got.Status, got.Version)
	}
	if got.DispensedBy != "pharmacist-1" || got.DispensedAt == nil {
		t.Errorf("dispensed by/at = %q/%v", got.DispensedBy, got.DispensedAt)
	}
	if f.store.stock[f.medicine.ID] != 18 {
		t.Errorf("stock = %d, want 18", f.store.stock[f.medicine.ID])
	}

	if _, err := f.svc.Dispense(ctx, rx.ID); !errors.Is(err, apperror.ErrInvalidState) {
		t.Errorf("second dispense: err = %v", err)
	}
	if f.store.stock[f.medicine.ID] != 18 {
		t.Errorf("stock changed on rejected dispense: %d", f.store.stock[f.medicine.ID])
	}
}

func TestDispenseInsufficientStock(t *testing.T) {
	f := newFixture()
	rx := f.create(t, 31)

	_, err := f.svc.Dispense(context.Background(), rx.ID)
	if !errors.Is(err, apperror.ErrInvalidState) {
		t.Fatalf("err = %v, want invalid state", err)
	}
	if f.store.stock[f.medicine.ID] != 30 {
		t.Errorf("stock = %d", f.store.stock[f.medicine.ID])
	}
	got, _ := f.svc.Get(context.Background(), rx.ID)
	if got.Status != StatusPending {
		t.Errorf("status = %s, want pending", got.Status)
	}
}

func TestCancel(t *testing.T) {
	f := newFixture()
	rx := f.create(t, 5)

	got, err := f.svc.Cancel(context.Background(), rx.ID, " patient allergic ")
	if err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if got.Status != StatusCancelled {
		t.Errorf("status = %s", got.Status)
	}
	if _, err := f.svc.Dispense(context.Background(), rx.ID); !errors.Is(err, apperror.ErrInvalidState) {
		t.Errorf("dispense after cancel: err = %v", err)
	}
	if _, err := f.svc.Cancel(context.Background(), rx.ID, ""); !errors.Is(err, apperror.ErrInvalidState) {
		t.Errorf("second cancel: err = %v", err)
	}

	history, err := f.svc.History(context.Background(), rx.ID)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(history) != 2 || history[1].Event.Type != events.PrescriptionCancelled || history[1].Version != 2 {
		t.Errorf("history = %+v", history)
	}
	var data CancelledData
	if err := history[1].Event.Decode(&data); err != nil || data.Reason != "patient allergic" {
		t.Errorf("cancel data = %+v (%v)", data, err)
	}
}

func TestStaleAggregateConflicts(t *testing.T) {
	f := newFixture()
	rx := f.create(t, 5)

	first, _ := f.store.Load(context.Background(), rx.ID)
	second, _ := f.store.Load(context.Background(), rx.ID)

	if err := first.Dispense(context.Background(), time.Now()); err != nil {
		t.Fatal(err)
	}
	if err := f.store.Save(context.Background(), first, nil); err != nil {
		t.Fatalf("first save: %v", err)
	}
	if err := second.Cancel(context.Background(), "late"); err != nil {
		t.Fatal(err)
	}
	if err := f.store.Save(context.Background(), second, nil); !errors.Is(err, apperror.ErrConflict) {
		t.Errorf("stale save: err = %v", err)
	}
}

func TestAggregateRejectsDoubleCreate(t *testing.T) {
	agg := NewAggregate(uuid.New())
	if err := agg.Create(context.Background(), CreatedData{Quantity: 1}); err != nil {
		t.Fatal(err)
	}
	if err := agg.Create(context.Background(), CreatedData{Quantity: 1}); !errors.Is(err, apperror.ErrInvalidState) {
		t.Errorf("err = %v", err)
	}
	if agg.Version() != 1 || len(agg.Changes()) != 1 {
		t.Errorf("version/changes = %d/%d", agg.Version(), len(agg.Changes()))
	}
}

func TestLoadFromHistoryRejectsUnknownEvent(t *testing.T) {
	evt, _ := events.New(events.InvoicePaid, AggregateType, "x", map[string]string{})
	if err := NewAggregate(uuid.New()).LoadFromHistory([]*events.Event{evt}); err == nil {
		t.Error("expected error for foreign event")
	}
	if err := NewAggregate(uuid.New()).LoadFromHistory(nil); err == nil {
		t.Error("expected error for empty history")
	}
}

func TestListFilters(t *testing.T) {
	f := newFixture()
	f.create(t, 1)

	params := listing.Params{Filters: map[string]string{"patient_id": f.patient.ID.String(), "status": "pending"}}
	page, err := f.svc.List(context.Background(), params)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if f.store.lastList.PatientID != f.patient.ID || f.store.lastList.Status != StatusPending {
		t.Errorf("filter = %+v", f.store.lastList)
	}
	if page.Total != 1 {
		t.Errorf("total = %d", page.Total)
	}

	_, err = f.svc.List(context.Background(), listing.Params{Filters: map[string]string{"status": "lost"}})
	if !apperror.IsValidation(err) {
		t.Errorf("bad status: err = %v", err)
	}

	items, err := f.svc.ForPatient(context.Background(), f.patient.ID, 5)
	if err != nil || len(items) != 1 {
		t.Errorf("ForPatient = %v, %v", items, err)
	}
}
