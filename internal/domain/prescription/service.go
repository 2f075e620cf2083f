package prescription

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/abhishek2k21/purpletide-hospital-hub/internal/apperror"
	"github.com/abhishek2k21/purpletide-hospital-hub/internal/domain/doctor"
	"github.com/abhishek2k21/purpletide-hospital-hub/internal/domain/inventory"
	"github.com/abhishek2k21/purpletide-hospital-hub/internal/domain/patient"
	"github.com/abhishek2k21/purpletide-hospital-hub/internal/listing"
)

type PatientLookup interface {
	Get(ctx context.Context, id uuid.UUID) (*patient.Patient, error)
}

type DoctorLookup interface {
	Get(ctx context.Context, id uuid.UUID) (*doctor.Doctor, error)
}

type MedicineLookup interface {
	Get(ctx context.Context, id uuid.UUID) (*inventory.Item, error)
}

// CreateInput is a doctor's order for a medicine.
type CreateInput struct {
	PatientID    uuid.UUID `json:"patient_id"`
	DoctorID     uuid.UUID `json:"doctor_id"`
	MedicineID   uuid.UUID `json:"medicine_id"`
	Dosage       string    `json:"dosage"`
	Frequency    string    `json:"frequency"`
	Quantity     int       `json:"quantity"`
	Instructions string    `json:"instructions"`
}

func (in *CreateInput) Validate() error {
	in.Dosage = strings.TrimSpace(in.Dosage)
	in.Frequency = strings.TrimSpace(in.Frequency)
	in.Instructions = strings.TrimSpace(in.Instructions)

	v := &apperror.ValidationError{}
	v.Check(in.PatientID != uuid.Nil, "patient_id", "is required")
	v.Check(in.DoctorID != uuid.Nil, "doctor_id", "is required")
	v.Check(in.MedicineID != uuid.Nil, "medicine_id", "is required")
	v.Check(in.Dosage != "", "dosage", "is required")
	v.Check(in.Quantity > 0, "quantity", "must be positive")
	return v.Err()
}

type Service struct {
	store     Store
	patients  PatientLookup
	doctors   DoctorLookup
	medicines MedicineLookup
	logger    *zap.Logger
	now       func() time.Time
}

func NewService(store Store, patients PatientLookup, doctors DoctorLookup, medicines MedicineLookup, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		store:     store,
		patients:  patients,
		doctors:   doctors,
		medicines: medicines,
		logger:    logger,
		now:       time.Now,
	}
}

// Create records a pending prescription. Stock is not reserved until the
// prescription is dispensed.
func (s *Service) Create(ctx context.Context, in CreateInput) (*Prescription, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	p, err := s.patients.Get(ctx, in.PatientID)
	if err != nil {
		return nil, err
	}
	d, err := s.doctors.Get(ctx, in.DoctorID)
	if err != nil {
		return nil, err
	}
	med, err := s.medicines.Get(ctx, in.MedicineID)
	if err != nil {
		return nil, err
	}

	agg := NewAggregate(uuid.New())
	err = agg.Create(ctx, CreatedData{
		PatientID:    p.ID.String(),
		PatientName:  p.FullName(),
		DoctorID:     d.ID.String(),
		DoctorName:   d.DisplayName(),
		MedicineID:   med.ID.String(),
		MedicineName: med.Name,
		Dosage:       in.Dosage,
		Frequency:    in.Frequency,
		Quantity:     in.Quantity,
		Instructions: in.Instructions,
	})
	if err != nil {
		return nil, err
	}
	if err := s.store.Save(ctx, agg, nil); err != nil {
		return nil, fmt.Errorf("save prescription: %w", err)
	}
	s.logger.Info("prescription created",
		zap.String("prescription_id", agg.ID().String()),
		zap.String("patient_id", p.ID.String()),
		zap.String("medicine", med.Name))
	return agg.Snapshot(), nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Prescription, error) {
	return s.store.Get(ctx, id)
}

func (s *Service) History(ctx context.Context, id uuid.UUID) ([]HistoryEntry, error) {
	return s.store.History(ctx, id)
}

// Dispense marks a pending prescription dispensed and withdraws its
// quantity from inventory atomically.
func (s *Service) Dispense(ctx context.Context, id uuid.UUID) (*Prescription, error) {
	agg, err := s.store.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := agg.Dispense(ctx, s.now()); err != nil {
		return nil, err
	}
	stock := &StockWithdrawal{ItemID: agg.MedicineID(), Quantity: agg.Quantity()}
	if err := s.store.Save(ctx, agg, stock); err != nil {
		return nil, err
	}
	s.logger.Info("prescription dispensed",
		zap.String("prescription_id", id.String()),
		zap.Int("quantity", agg.Quantity()))
	return agg.Snapshot(), nil
}

func (s *Service) Cancel(ctx context.Context, id uuid.UUID, reason string) (*Prescription, error) {
	agg, err := s.store.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := agg.Cancel(ctx, strings.TrimSpace(reason)); err != nil {
		return nil, err
	}
	if err := s.store.Save(ctx, agg, nil); err != nil {
		return nil, err
	}
	return agg.Snapshot(), nil
}

func (s *Service) List(ctx context.Context, params listing.Params) (*listing.Page[Prescription], error) {
	var f Filter
	v := &apperror.ValidationError{}
	if raw, ok := params.Filter("patient_id"); ok {
		id, err := uuid.Parse(raw)
		v.Check(err == nil, "patient_id", "must be a UUID")
		f.PatientID = id
	}
	if raw, ok := params.Filter("doctor_id"); ok {
		id, err := uuid.Parse(raw)
		v.Check(err == nil, "doctor_id", "must be a UUID")
		f.DoctorID = id
	}
	if raw, ok := params.Filter("status"); ok {
		st := Status(raw)
		v.Check(st == StatusPending || st == StatusDispensed || st == StatusCancelled,
			"status", "must be pending, dispensed or cancelled")
		f.Status = st
	}
	if err := v.Err(); err != nil {
		return nil, err
	}
	return s.store.List(ctx, params, f)
}

// ForPatient returns a patient's most recent prescriptions.
func (s *Service) ForPatient(ctx context.Context, patientID uuid.UUID, limit int) ([]Prescription, error) {
	page, err := s.store.List(ctx, listing.Params{Sort: "created_at", Desc: true, Limit: limit},
		Filter{PatientID: patientID})
	if err != nil {
		return nil, err
	}
	return page.Items, nil
}
