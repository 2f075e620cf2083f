package settings

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/abhishek2k21/purpletide-hospital-hub/internal/apperror"
	"github.com/abhishek2k21/purpletide-hospital-hub/internal/events"
	"github.com/abhishek2k21/purpletide-hospital-hub/internal/listing"
)

type Service struct {
	store           Store
	logger          *zap.Logger
	roleChanged     func(ctx context.Context, id uuid.UUID) error
	hospitalChanged func()
}

func NewService(store Store, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: store, logger: logger}
}

// OnRoleChanged registers fn to run after a user's role is changed.
func (s *Service) OnRoleChanged(fn func(ctx context.Context, id uuid.UUID) error) {
	s.roleChanged = fn
}

// OnHospitalChanged registers fn to run after the hospital settings are
// saved.
func (s *Service) OnHospitalChanged(fn func()) {
	s.hospitalChanged = fn
}

func (s *Service) Profile(ctx context.Context, id uuid.UUID) (*Profile, error) {
	return s.store.GetProfile(ctx, id)
}

// RoleOf returns the role stored on a user's profile. ok is false when the
// user has no profile yet.
func (s *Service) RoleOf(ctx context.Context, id uuid.UUID) (role Role, ok bool, err error) {
	p, err := s.store.GetProfile(ctx, id)
	if errors.Is(err, apperror.ErrNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return p.Role, true, nil
}

// EnsureProfile creates a profile for a new account. An existing profile
// is returned unchanged.
func (s *Service) EnsureProfile(ctx context.Context, id uuid.UUID, email string, role Role) (*Profile, error) {
	if !role.Valid() {
		role = DefaultRole
	}
	p, err := s.store.EnsureProfile(ctx, &Profile{
		ID:    id,
		Email: strings.ToLower(strings.TrimSpace(email)),
		Role:  role,
	})
	if err != nil {
		return nil, fmt.Errorf("ensure profile: %w", err)
	}
	return p, nil
}

func (s *Service) UpdateProfile(ctx context.Context, id uuid.UUID, in ProfileInput) (*Profile, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	return s.store.UpdateProfile(ctx, id, in)
}

// SetRole changes another user's role. Admins cannot change their own
// role, so the last admin cannot lock everyone out by accident.
func (s *Service) SetRole(ctx context.Context, id uuid.UUID, role Role) (*Profile, error) {
	if !role.Valid() {
		v := &apperror.ValidationError{}
		v.Add("role", "must be admin, doctor, nurse, staff, pharmacy or lab")
		return nil, v
	}
	if actor := events.ActorFromContext(ctx); actor == id.String() {
		return nil, apperror.InvalidState("you cannot change your own role")
	}
	p, err := s.store.SetRole(ctx, id, role)
	if err != nil {
		return nil, err
	}
	s.logger.Info("role changed",
		zap.String("user_id", id.String()),
		zap.String("role", string(role)),
		zap.String("by", events.ActorFromContext(ctx)))
	if s.roleChanged != nil {
		if err := s.roleChanged(ctx, id); err != nil {
			s.logger.Warn("open sessions keep the old role until the cache expires",
				zap.String("user_id", id.String()), zap.Error(err))
		}
	}
	return p, nil
}

func (s *Service) ListProfiles(ctx context.Context, params listing.Params) (*listing.Page[Profile], error) {
	var role Role
	if raw, ok := params.Filter("role"); ok {
		role = Role(raw)
		if !role.Valid() {
			v := &apperror.ValidationError{}
			v.Add("role", "is not a known role")
			return nil, v
		}
	}
	return s.store.ListProfiles(ctx, params, role)
}

func (s *Service) Hospital(ctx context.Context) (Hospital, error) {
	values, err := s.store.Values(ctx)
	if err != nil {
		return Hospital{}, err
	}
	return hospitalFrom(values)
}

func (s *Service) UpdateHospital(ctx context.Context, h Hospital) (Hospital, error) {
	if err := h.Validate(); err != nil {
		return Hospital{}, err
	}
	if err := s.store.SetValues(ctx, h.values(), events.ActorFromContext(ctx)); err != nil {
		return Hospital{}, err
	}
	s.logger.Info("hospital settings updated", zap.String("by", events.ActorFromContext(ctx)))
	if s.hospitalChanged != nil {
		s.hospitalChanged()
	}
	return h, nil
}

// TaxRateBPS is the tax charged on new invoices.
func (s *Service) TaxRateBPS(ctx context.Context) (int, error) {
	h, err := s.Hospital(ctx)
	if err != nil {
		return 0, err
	}
	return h.TaxRateBPS, nil
}

// Location is the hospital time zone, falling back to UTC when the
// stored name is unknown.
func (s *Service) Location(ctx context.Context) (*time.Location, error) {
	h, err := s.Hospital(ctx)
	if err != nil {
		return nil, err
	}
	loc, err := time.LoadLocation(h.Timezone)
	if err != nil {
		s.logger.Warn("unknown hospital time zone", zap.String("timezone", h.Timezone))
		return time.UTC, nil
	}
	return loc, nil
}
