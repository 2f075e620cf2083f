package patient

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/abhishek2k21/purpletide-hospital-hub/internal/calendar"
	"github.com/abhishek2k21/purpletide-hospital-hub/internal/events"
	"github.com/abhishek2k21/purpletide-hospital-hub/internal/listing"
)

// AggregateType tags patient events.
const AggregateType = "patient"

// EventData is the payload of every patient event.
type EventData struct {
	PatientID      string `json:"patient_id"`
	Name           string `json:"name"`
	Status         Status `json:"status"`
	PreviousStatus Status `json:"previous_status,omitempty"`
}

// BlobRemover deletes stored document contents.
type BlobRemover interface {
	Delete(ctx context.Context, key string) error
}

type Service struct {
	store  Store
	blobs  BlobRemover
	logger *zap.Logger
	now    func() time.Time
}

func NewService(store Store, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: store, logger: logger, now: time.Now}
}

// WithBlobs sets where the contents of a deleted patient's documents are
// removed from.
func (s *Service) WithBlobs(b BlobRemover) *Service {
	s.blobs = b
	return s
}

func (s *Service) today() calendar.Date {
	return calendar.Of(s.now())
}

// Register validates and stores a new patient.
func (s *Service) Register(ctx context.Context, p *Patient) (*Patient, error) {
	p.Normalize()
	today := s.today()
	if p.RegistrationDate.IsZero() {
		p.RegistrationDate = today
	}
	if err := p.Validate(today); err != nil {
		return nil, err
	}
	p.ID = uuid.New()

	evt, err := events.Record(ctx, events.PatientRegistered, AggregateType, p.ID.String(),
		EventData{PatientID: p.ID.String(), Name: p.FullName(), Status: p.Status})
	if err != nil {
		return nil, err
	}
	if err := s.store.Create(ctx, p, evt); err != nil {
		return nil, fmt.Errorf("register patient: %w", err)
	}

	s.logger.Info("patient registered", zap.String("patient_id", p.ID.String()))
	return p, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Patient, error) {
	return s.store.Get(ctx, id)
}

// Update replaces the editable fields of a patient. Registration date and
// creation time are kept; a missing last visit date keeps the stored one.
func (s *Service) Update(ctx context.Context, id uuid.UUID, p *Patient) (*Patient, error) {
	existing, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	p.ID = id
	p.RegistrationDate = existing.RegistrationDate
	p.CreatedAt = existing.CreatedAt
	if p.LastVisitDate == nil {
		p.LastVisitDate = existing.LastVisitDate
	}
	p.Normalize()
	if err := p.Validate(s.today()); err != nil {
		return nil, err
	}

	data := EventData{PatientID: id.String(), Name: p.FullName(), Status: p.Status}
	if existing.Status != p.Status {
		data.PreviousStatus = existing.Status
	}
	evt, err := events.Record(ctx, events.PatientUpdated, AggregateType, id.String(), data)
	if err != nil {
		return nil, err
	}
	if err := s.store.Update(ctx, p, evt); err != nil {
		return nil, fmt.Errorf("update patient: %w", err)
	}
	return p, nil
}

// Delete removes a patient together with their appointments, invoices and
// documents.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	existing, err := s.store.Get(ctx, id)
	if err != nil {
		return err
	}
	evt, err := events.Record(ctx, events.PatientDeleted, AggregateType, id.String(),
		EventData{PatientID: id.String(), Name: existing.FullName(), Status: existing.Status})
	if err != nil {
		return err
	}
	keys, err := s.store.Delete(ctx, id, evt)
	if err != nil {
		return fmt.Errorf("delete patient: %w", err)
	}
	s.logger.Info("patient deleted", zap.String("patient_id", id.String()), zap.Int("documents", len(keys)))

	if s.blobs == nil {
		return nil
	}
	// The rows are gone, so a failed blob delete only leaves an orphan.
	bctx := context.WithoutCancel(ctx)
	for _, key := range keys {
		if err := s.blobs.Delete(bctx, key); err != nil {
			s.logger.Warn("orphaned document blob", zap.String("key", key), zap.Error(err))
		}
	}
	return nil
}

func (s *Service) List(ctx context.Context, params listing.Params) (*listing.Page[Patient], error) {
	return s.store.List(ctx, params)
}
