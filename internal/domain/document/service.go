package document

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/abhishek2k21/purpletide-hospital-hub/internal/apperror"
	"github.com/abhishek2k21/purpletide-hospital-hub/internal/domain/patient"
	"github.com/abhishek2k21/purpletide-hospital-hub/internal/events"
	"github.com/abhishek2k21/purpletide-hospital-hub/internal/infrastructure/blob"
	"github.com/abhishek2k21/purpletide-hospital-hub/internal/listing"
)

type PatientLookup interface {
	Get(ctx context.Context, id uuid.UUID) (*patient.Patient, error)
}

type Service struct {
	store    Store
	blobs    blob.Store
	patients PatientLookup
	logger   *zap.Logger
}

func NewService(store Store, blobs blob.Store, patients PatientLookup, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: store, blobs: blobs, patients: patients, logger: logger}
}

// Upload stores the file contents, then the metadata row. The blob is
// removed again when the row cannot be written.
func (s *Service) Upload(ctx context.Context, in UploadInput) (*Document, error) {
	in.Normalize()
	if err := in.Validate(); err != nil {
		return nil, err
	}
	if _, err := s.patients.Get(ctx, in.PatientID); err != nil {
		return nil, err
	}

	d := &Document{
		ID:          uuid.New(),
		PatientID:   in.PatientID,
		Category:    in.Category,
		Title:       in.Title,
		FileName:    in.FileName,
		ContentType: in.ContentType,
		SizeBytes:   int64(len(in.Data)),
		Checksum:    Checksum(in.Data),
		UploadedBy:  events.ActorFromContext(ctx),
	}
	d.StorageKey = StorageKey(d.PatientID, d.ID, d.FileName)

	evt, err := events.Record(ctx, events.DocumentUploaded, AggregateType, d.ID.String(), EventData{
		DocumentID: d.ID.String(),
		PatientID:  d.PatientID.String(),
		Category:   d.Category,
		Title:      d.Title,
		FileName:   d.FileName,
		SizeBytes:  d.SizeBytes,
	})
	if err != nil {
		return nil, err
	}

	if err := s.blobs.Put(ctx, d.StorageKey, d.ContentType, in.Data); err != nil {
		return nil, fmt.Errorf("store document contents: %w", err)
	}
	if err := s.store.Create(ctx, d, evt); err != nil {
		if derr := s.blobs.Delete(context.WithoutCancel(ctx), d.StorageKey); derr != nil {
			s.logger.Warn("orphaned document blob", zap.String("key", d.StorageKey), zap.Error(derr))
		}
		return nil, err
	}
	s.logger.Info("document uploaded",
		zap.String("document_id", d.ID.String()),
		zap.String("patient_id", d.PatientID.String()),
		zap.String("category", string(d.Category)),
		zap.Int64("size", d.SizeBytes))
	return d, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Document, error) {
	return s.store.Get(ctx, id)
}

// Open returns the metadata and the contents. Callers close the body.
func (s *Service) Open(ctx context.Context, id uuid.UUID) (*Document, *blob.Object, error) {
	d, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	obj, err := s.blobs.Get(ctx, d.StorageKey)
	if errors.Is(err, blob.ErrNotFound) {
		return nil, nil, apperror.NotFound("document contents", id.String())
	}
	if err != nil {
		return nil, nil, err
	}
	return d, obj, nil
}

func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	d, err := s.store.Delete(ctx, id)
	if err != nil {
		return err
	}
	if err := s.blobs.Delete(ctx, d.StorageKey); err != nil {
		s.logger.Warn("delete document blob", zap.String("key", d.StorageKey), zap.Error(err))
	}
	return nil
}

func (s *Service) List(ctx context.Context, params listing.Params) (*listing.Page[Document], error) {
	var f Filter
	v := &apperror.ValidationError{}
	if raw, ok := params.Filter("patient_id"); ok {
		id, err := uuid.Parse(raw)
		v.Check(err == nil, "patient_id", "must be a UUID")
		f.PatientID = id
	}
	if raw, ok := params.Filter("category"); ok {
		f.Category = Category(raw)
		v.Check(f.Category.Valid(), "category", "is not a known document category")
	}
	if err := v.Err(); err != nil {
		return nil, err
	}
	return s.store.List(ctx, params, f)
}

// ForPatient returns a patient's most recent documents.
func (s *Service) ForPatient(ctx context.Context, patientID uuid.UUID, limit int) ([]Document, error) {
	page, err := s.store.List(ctx, listing.Params{Sort: "created_at", Desc: true, Limit: limit},
		Filter{PatientID: patientID})
	if err != nil {
		return nil, err
	}
	return page.Items, nil
}
