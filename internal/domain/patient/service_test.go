package patient

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/abhishek2k21/purpletide-hospital-hub/internal/apperror"
	"github.com/abhishek2k21/purpletide-hospital-hub/internal/calendar"
	"github.com/abhishek2k21/purpletide-hospital-hub/internal/events"
	"github.com/abhishek2k21/purpletide-hospital-hub/internal/infrastructure/blob"
	"github.com/abhishek2k21/purpletide-hospital-hub/internal/listing"
)

// -- Mock Store --

type mockStore struct {
	patients map[uuid.UUID]*Patient
	docKeys  map[uuid.UUID][]string
	events   []*events.Event
}

func newMockStore() *mockStore {
	return &mockStore{patients: make(map[uuid.UUID]*Patient), docKeys: make(map[uuid.UUID][]string)}
}

func (m *mockStore) Create(_ context.Context, p *Patient, evt *events.Event) error {
	p.CreatedAt = time.Now()
	p.UpdatedAt = p.CreatedAt
	cp := *p
	m.patients[p.ID] = &cp
	m.events = append(m.events, evt)
	return nil
}

func (m *mockStore) Get(_ context.Context, id uuid.UUID) (*Patient, error) {
	p, ok := m.patients[id]
	if !ok {
		return nil, apperror.NotFound("patient", id.String())
	}
	cp := *p
	return &cp, nil
}

func (m *mockStore) Update(_ context.Context, p *Patient, evt *events.Event) error {
	if _, ok := m.patients[p.ID]; !ok {
		return apperror.NotFound("patient", p.ID.String())
	}
	cp := *p
	m.patients[p.ID] = &cp
	m.events = append(m.events, evt)
	return nil
}

func (m *mockStore) Delete(_ context.Context, id uuid.UUID, evt *events.Event) ([]string, error) {
	if _, ok := m.patients[id]; !ok {
		return nil, apperror.NotFound("patient", id.String())
	}
	keys := m.docKeys[id]
	delete(m.patients, id)
	delete(m.docKeys, id)
	m.events = append(m.events, evt)
	return keys, nil
}

func (m *mockStore) List(_ context.Context, params listing.Params) (*listing.Page[Patient], error) {
	var items []Patient
	for _, p := range m.patients {
		if g, ok := params.Filter("gender"); ok && string(p.Gender) != g {
			continue
		}
		if params.Search != "" && !strings.Contains(strings.ToLower(p.FullName()), strings.ToLower(params.Search)) {
			continue
		}
		items = append(items, *p)
	}
	return &listing.Page[Patient]{Items: listing.Window(items, params), Total: len(items), Limit: params.Limit}, nil
}

func newTestService() (*Service, *mockStore) {
	store := newMockStore()
	svc := NewService(store, nil)
	svc.now = func() time.Time { return time.Date(2024, 6, 15, 9, 0, 0, 0, time.UTC) }
	return svc, store
}

func validPatient() *Patient {
	return &Patient{
		FirstName: " Sarah ",
		LastName:  "Johnson",
		Email:     "Sarah.Johnson@Example.com",
		Phone:     "+91 98765 43210",
		Gender:    GenderFemale,
	}
}

func TestRegister(t *testing.T) {
	svc, store := newTestService()
	ctx := events.ContextWithActor(context.Background(), "nurse-1")

	p, err := svc.Register(ctx, validPatient())
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if p.ID == uuid.Nil {
		t.Fatal("expected ID to be assigned")
	}
	if p.FirstName != "Sarah" || p.Email != "sarah.johnson@example.com" {
		t.Errorf("fields not normalized: %+v", p)
	}
	if p.Status != StatusActive {
		t.Errorf("status = %s, want Active", p.Status)
	}
	if p.RegistrationDate.String() != "2024-06-15" {
		t.Errorf("registration date = %s", p.RegistrationDate)
	}
	if len(store.events) != 1 {
		t.Fatalf("events = %d, want 1", len(store.events))
	}
	evt := store.events[0]
	if evt.Type != events.PatientRegistered || evt.Actor != "nurse-1" || evt.AggregateID != p.ID.String() {
		t.Errorf("event = %+v", evt)
	}
	var data EventData
	if err := evt.Decode(&data); err != nil || data.Name != "Sarah Johnson" {
		t.Errorf("event data = %+v, %v", data, err)
	}
}

func TestRegisterValidation(t *testing.T) {
	svc, store := newTestService()

	p := validPatient()
	p.Email = "not-an-email"
	p.Phone = "123"
	_, err := svc.Register(context.Background(), p)
	if !apperror.IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
	var ve *apperror.ValidationError
	errors.As(err, &ve)
	if len(ve.Fields) != 2 {
		t.Errorf("fields = %+v", ve.Fields)
	}
	if len(store.patients) != 0 {
		t.Error("invalid patient was stored")
	}
}

func TestUpdateKeepsRegistrationAndRecordsStatusChange(t *testing.T) {
	svc, store := newTestService()
	ctx := context.Background()

	created, err := svc.Register(ctx, validPatient())
	if err != nil {
		t.Fatal(err)
	}
	visit := calendar.Date{Year: 2024, Month: 6, Day: 1}
	store.patients[created.ID].LastVisitDate = &visit

	in := validPatient()
	in.Status = StatusCritical
	in.RegistrationDate = calendar.Date{Year: 1999, Month: 1, Day: 1}
	updated, err := svc.Update(ctx, created.ID, in)
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if updated.RegistrationDate != created.RegistrationDate {
		t.Errorf("registration date changed to %s", updated.RegistrationDate)
	}
	if updated.LastVisitDate == nil || *updated.LastVisitDate != visit {
		t.Errorf("last visit date lost: %v", updated.LastVisitDate)
	}

	last := store.events[len(store.events)-1]
	var data EventData
	if err := last.Decode(&data); err != nil {
		t.Fatal(err)
	}
	if last.Type != events.PatientUpdated || data.PreviousStatus != StatusActive || data.Status != StatusCritical {
		t.Errorf("event = %s %+v", last.Type, data)
	}
}

func TestUpdateMissingPatient(t *testing.T) {
	svc, _ := newTestService()
	_, err := svc.Update(context.Background(), uuid.New(), validPatient())
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("expected not found, got %v", err)
	}
}

func TestDelete(t *testing.T) {
	svc, store := newTestService()
	ctx := context.Background()

	p, err := svc.Register(ctx, validPatient())
	if err != nil {
		t.Fatal(err)
	}
	if err := svc.Delete(ctx, p.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, ok := store.patients[p.ID]; ok {
		t.Error("patient still stored")
	}
	if store.events[len(store.events)-1].Type != events.PatientDeleted {
		t.Error("missing deleted event")
	}
	if err := svc.Delete(ctx, p.ID); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("second delete = %v", err)
	}
}

func TestDeleteRemovesDocumentBlobs(t *testing.T) {
	svc, store := newTestService()
	blobs := blob.NewMemoryStore()
	svc.WithBlobs(blobs)
	ctx := context.Background()

	p, err := svc.Register(ctx, validPatient())
	if err != nil {
		t.Fatal(err)
	}
	other, err := svc.Register(ctx, validPatient())
	if err != nil {
		t.Fatal(err)
	}
	for _, key := range []string{"patients/a/lab.pdf", "patients/a/xray.png", "patients/b/consent.pdf"} {
		if err := blobs.Put(ctx, key, "application/pdf", []byte("x")); err != nil {
			t.Fatal(err)
		}
	}
	store.docKeys[p.ID] = []string{"patients/a/lab.pdf", "patients/a/xray.png"}
	store.docKeys[other.ID] = []string{"patients/b/consent.pdf"}

	if err := svc.Delete(ctx, p.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if blobs.Len() != 1 {
		t.Errorf("%d blobs left, want only the other patient's", blobs.Len())
	}
	if _, err := blobs.Get(ctx, "patients/b/consent.pdf"); err != nil {
		t.Errorf("other patient's blob: %v", err)
	}
}

func TestListFiltersByGender(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	if _, err := svc.Register(ctx, validPatient()); err != nil {
		t.Fatal(err)
	}
	male := validPatient()
	male.FirstName, male.Gender = "Rahul", GenderMale
	if _, err := svc.Register(ctx, male); err != nil {
		t.Fatal(err)
	}

	page, err := svc.List(ctx, listing.Params{Filters: map[string]string{"gender": "Male"}, Limit: 10})
	if err != nil {
		t.Fatal(err)
	}
	if page.Total != 1 || page.Items[0].FirstName != "Rahul" {
		t.Errorf("page = %+v", page)
	}
}
