package settings

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/abhishek2k21/purpletide-hospital-hub/internal/apperror"
	"github.com/abhishek2k21/purpletide-hospital-hub/internal/calendar"
	"github.com/abhishek2k21/purpletide-hospital-hub/internal/events"
	"github.com/abhishek2k21/purpletide-hospital-hub/internal/listing"
)

type mockStore struct {
	profiles map[uuid.UUID]*Profile
	values   map[string]string
	actor    string
}

func newMockStore() *mockStore {
	h := DefaultHospital()
	return &mockStore{profiles: make(map[uuid.UUID]*Profile), values: h.values()}
}

func (m *mockStore) GetProfile(_ context.Context, id uuid.UUID) (*Profile, error) {
	p, ok := m.profiles[id]
	if !ok {
		return nil, apperror.NotFound("profile", id.String())
	}
	cp := *p
	return &cp, nil
}

func (m *mockStore) EnsureProfile(ctx context.Context, p *Profile) (*Profile, error) {
	if _, ok := m.profiles[p.ID]; !ok {
		cp := *p
		cp.CreatedAt = time.Now()
		m.profiles[p.ID] = &cp
	}
	return m.GetProfile(ctx, p.ID)
}

func (m *mockStore) UpdateProfile(ctx context.Context, id uuid.UUID, in ProfileInput) (*Profile, error) {
	p, ok := m.profiles[id]
	if !ok {
		return nil, apperror.NotFound("profile", id.String())
	}
	p.FirstName, p.LastName, p.Phone = in.FirstName, in.LastName, in.Phone
	p.Department, p.Designation, p.AvatarURL = in.Department, in.Designation, in.AvatarURL
	return m.GetProfile(ctx, id)
}

func (m *mockStore) SetRole(ctx context.Context, id uuid.UUID, role Role) (*Profile, error) {
	p, ok := m.profiles[id]
	if !ok {
		return nil, apperror.NotFound("profile", id.String())
	}
	p.Role = role
	return m.GetProfile(ctx, id)
}

func (m *mockStore) ListProfiles(_ context.Context, _ listing.Params, role Role) (*listing.Page[Profile], error) {
	var out []Profile
	for _, p := range m.profiles {
		if role == "" || p.Role == role {
			out = append(out, *p)
		}
	}
	return &listing.Page[Profile]{Items: out, Total: len(out)}, nil
}

func (m *mockStore) Values(context.Context) (map[string]string, error) {
	cp := make(map[string]string, len(m.values))
	for k, v := range m.values {
		cp[k] = v
	}
	return cp, nil
}

func (m *mockStore) SetValues(_ context.Context, values map[string]string, actor string) error {
	for k, v := range values {
		m.values[k] = v
	}
	m.actor = actor
	return nil
}

func TestEnsureProfileIsIdempotent(t *testing.T) {
	svc := NewService(newMockStore(), nil)
	id := uuid.New()

	p, err := svc.EnsureProfile(context.Background(), id, " New.User@Hospital.com ", "")
	if err != nil {
		t.Fatalf("EnsureProfile: %v", err)
	}
	if p.Role != RoleStaff || p.Email != "new.user@hospital.com" {
		t.Errorf("profile = %+v", p)
	}

	again, err := svc.EnsureProfile(context.Background(), id, "other@hospital.com", RoleAdmin)
	if err != nil {
		t.Fatal(err)
	}
	if again.Role != RoleStaff || again.Email != "new.user@hospital.com" {
		t.Errorf("existing profile changed: %+v", again)
	}

	role, ok, err := svc.RoleOf(context.Background(), id)
	if err != nil || !ok || role != RoleStaff {
		t.Errorf("RoleOf = %s, %v, %v", role, ok, err)
	}
	if _, ok, err := svc.RoleOf(context.Background(), uuid.New()); ok || err != nil {
		t.Errorf("RoleOf unknown = %v, %v", ok, err)
	}
}

func TestUpdateProfile(t *testing.T) {
	svc := NewService(newMockStore(), nil)
	id := uuid.New()
	if _, err := svc.EnsureProfile(context.Background(), id, "a@hospital.com", RoleNurse); err != nil {
		t.Fatal(err)
	}

	p, err := svc.UpdateProfile(context.Background(), id, ProfileInput{
		FirstName:   " Meena ",
		LastName:    "Iyer",
		Phone:       "+91 98765 43210",
		Designation: "Head Nurse",
		AvatarURL:   "https://cdn.example.com/a.png",
	})
	if err != nil {
		t.Fatalf("UpdateProfile: %v", err)
	}
	if p.FirstName != "Meena" || p.Designation != "Head Nurse" || p.Role != RoleNurse {
		t.Errorf("profile = %+v", p)
	}

	for _, in := range []ProfileInput{
		{Phone: "call me"},
		{AvatarURL: "javascript:alert(1)"},
	} {
		if _, err := svc.UpdateProfile(context.Background(), id, in); !apperror.IsValidation(err) {
			t.Errorf("input %+v: err = %v", in, err)
		}
	}
}

func TestSetRole(t *testing.T) {
	svc := NewService(newMockStore(), nil)
	var changed []uuid.UUID
	svc.OnRoleChanged(func(_ context.Context, id uuid.UUID) error {
		changed = append(changed, id)
		return nil
	})
	admin, user := uuid.New(), uuid.New()
	_, _ = svc.EnsureProfile(context.Background(), admin, "admin@hospital.com", RoleAdmin)
	_, _ = svc.EnsureProfile(context.Background(), user, "u@hospital.com", RoleStaff)
	ctx := events.ContextWithActor(context.Background(), admin.String())

	p, err := svc.SetRole(ctx, user, RolePharmacy)
	if err != nil {
		t.Fatalf("SetRole: %v", err)
	}
	if p.Role != RolePharmacy {
		t.Errorf("role = %s", p.Role)
	}
	if len(changed) != 1 || changed[0] != user {
		t.Errorf("role change hook calls = %v", changed)
	}
	if _, err := svc.SetRole(ctx, user, "superuser"); !apperror.IsValidation(err) {
		t.Errorf("bad role: err = %v", err)
	}
	if _, err := svc.SetRole(ctx, admin, RoleStaff); !errors.Is(err, apperror.ErrInvalidState) {
		t.Errorf("own role: err = %v", err)
	}
	if _, err := svc.SetRole(ctx, uuid.New(), RoleLab); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("unknown user: err = %v", err)
	}

	if len(changed) != 1 {
		t.Errorf("hook ran for rejected changes: %v", changed)
	}

	page, err := svc.ListProfiles(ctx, listing.Params{Filters: map[string]string{"role": "pharmacy"}})
	if err != nil || page.Total != 1 {
		t.Errorf("ListProfiles = %+v, %v", page, err)
	}
}

func TestHospitalSettings(t *testing.T) {
	store := newMockStore()
	svc := NewService(store, nil)
	ctx := events.ContextWithActor(context.Background(), "admin-1")

	h, err := svc.Hospital(ctx)
	if err != nil {
		t.Fatalf("Hospital: %v", err)
	}
	if h != DefaultHospital() {
		t.Errorf("hospital = %+v", h)
	}

	updated, err := svc.UpdateHospital(ctx, Hospital{
		HospitalName: "PurpleTide General",
		Currency:     "inr",
		TaxRateBPS:   1800,
		Timezone:     "Asia/Kolkata",
	})
	if err != nil {
		t.Fatalf("UpdateHospital: %v", err)
	}
	if updated.Currency != "INR" || store.actor != "admin-1" {
		t.Errorf("updated = %+v by %s", updated, store.actor)
	}
	bps, err := svc.TaxRateBPS(ctx)
	if err != nil || bps != 1800 {
		t.Errorf("TaxRateBPS = %d, %v", bps, err)
	}
	loc, err := svc.Location(ctx)
	if err != nil || loc.String() != "Asia/Kolkata" {
		t.Errorf("Location = %v, %v", loc, err)
	}

	bad := []Hospital{
		{HospitalName: "", Currency: "INR", Timezone: "UTC"},
		{HospitalName: "X", Currency: "RUPEES", Timezone: "UTC"},
		{HospitalName: "X", Currency: "INR", TaxRateBPS: 10001, Timezone: "UTC"},
		{HospitalName: "X", Currency: "INR", Timezone: "Mars/Olympus"},
	}
	for _, h := range bad {
		if _, err := svc.UpdateHospital(ctx, h); !apperror.IsValidation(err) {
			t.Errorf("%+v: err = %v", h, err)
		}
	}
}

func TestZoneFollowsTimezoneChange(t *testing.T) {
	svc := NewService(newMockStore(), nil)
	zone := calendar.NewZone(svc.Location, time.Hour)
	svc.OnHospitalChanged(zone.Invalidate)
	ctx := context.Background()

	if got := zone.Location(ctx).String(); got != "Asia/Kolkata" {
		t.Fatalf("zone = %s", got)
	}
	h := DefaultHospital()
	h.Timezone = "Asia/Dubai"
	if _, err := svc.UpdateHospital(ctx, h); err != nil {
		t.Fatalf("UpdateHospital: %v", err)
	}
	if got := zone.Location(ctx).String(); got != "Asia/Dubai" {
		t.Errorf("zone after update = %s, want Asia/Dubai", got)
	}
}

func TestHospitalFromRejectsBadTaxRate(t *testing.T) {
	if _, err := hospitalFrom(map[string]string{KeyTaxRateBPS: "18%"}); err == nil {
		t.Error("expected error")
	}
}
