package doctor

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/abhishek2k21/purpletide-hospital-hub/internal/listing"
)

type Service struct {
	store  Store
	logger *zap.Logger
}

func NewService(store Store, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: store, logger: logger}
}

func (s *Service) Create(ctx context.Context, d *Doctor) (*Doctor, error) {
	d.Normalize()
	if err := d.Validate(); err != nil {
		return nil, err
	}
	d.ID = uuid.New()
	if err := s.store.Create(ctx, d); err != nil {
		return nil, fmt.Errorf("create doctor: %w", err)
	}
	s.logger.Info("doctor added", zap.String("doctor_id", d.ID.String()), zap.String("department", d.Department))
	return d, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Doctor, error) {
	return s.store.Get(ctx, id)
}

func (s *Service) Update(ctx context.Context, id uuid.UUID, d *Doctor) (*Doctor, error) {
	d.ID = id
	d.Normalize()
	if err := d.Validate(); err != nil {
		return nil, err
	}
	if err := s.store.Update(ctx, d); err != nil {
		return nil, err
	}
	return d, nil
}

func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	return s.store.Delete(ctx, id)
}

func (s *Service) List(ctx context.Context, params listing.Params) (*listing.Page[Doctor], error) {
	return s.store.List(ctx, params)
}
