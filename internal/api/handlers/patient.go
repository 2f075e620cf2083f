package handlers

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/abhishek2k21/purpletide-hospital-hub/internal/domain/appointment"
	"github.com/abhishek2k21/purpletide-hospital-hub/internal/domain/billing"
	"github.com/abhishek2k21/purpletide-hospital-hub/internal/domain/document"
	"github.com/abhishek2k21/purpletide-hospital-hub/internal/domain/patient"
	"github.com/abhishek2k21/purpletide-hospital-hub/internal/domain/prescription"
	"github.com/abhishek2k21/purpletide-hospital-hub/internal/listing"
)

// summaryLimit caps each related list on the patient summary.
const summaryLimit = 50

type PatientService interface {
	Register(ctx context.Context, p *patient.Patient) (*patient.Patient, error)
	Get(ctx context.Context, id uuid.UUID) (*patient.Patient, error)
	Update(ctx context.Context, id uuid.UUID, p *patient.Patient) (*patient.Patient, error)
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, params listing.Params) (*listing.Page[patient.Patient], error)
}

// PatientRecords fetches the records shown on a patient's detail page.
type PatientRecords struct {
	Appointments  interface{ ForPatient(context.Context, uuid.UUID, int) ([]appointment.Appointment, error) }
	Prescriptions interface{ ForPatient(context.Context, uuid.UUID, int) ([]prescription.Prescription, error) }
	Invoices      interface{ ForPatient(context.Context, uuid.UUID, int) ([]billing.Invoice, error) }
	Documents     interface{ ForPatient(context.Context, uuid.UUID, int) ([]document.Document, error) }
}

type PatientSummary struct {
	Patient       *patient.Patient            `json:"patient"`
	Appointments  []appointment.Appointment   `json:"appointments"`
	Prescriptions []prescription.Prescription `json:"prescriptions"`
	Invoices      []billing.Invoice           `json:"invoices"`
	Documents     []document.Document         `json:"documents"`
}

type PatientHandler struct {
	svc     PatientService
	records PatientRecords
	logger  *zap.Logger
}

func NewPatientHandler(svc PatientService, records PatientRecords, logger *zap.Logger) *PatientHandler {
	return &PatientHandler{svc: svc, records: records, logger: logger}
}

func (h *PatientHandler) List(w http.ResponseWriter, r *http.Request) {
	page, err := h.svc.List(r.Context(), listParams(r, patient.ListSpec))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (h *PatientHandler) Create(w http.ResponseWriter, r *http.Request) {
	var p patient.Patient
	if err := decodeJSON(w, r, &p); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	created, err := h.svc.Register(r.Context(), &p)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (h *PatientHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	p, err := h.svc.Get(r.Context(), id)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *PatientHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	var p patient.Patient
	if err := decodeJSON(w, r, &p); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	updated, err := h.svc.Update(r.Context(), id, &p)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (h *PatientHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if err := h.svc.Delete(r.Context(), id); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Summary returns the patient with their recent appointments,
// prescriptions, invoices and documents, fetched concurrently.
func (h *PatientHandler) Summary(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("patient-handler").Start(r.Context(), "patient_summary")
	defer span.End()

	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	span.SetAttributes(attribute.String("patient_id", id.String()))

	p, err := h.svc.Get(ctx, id)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	sum := PatientSummary{Patient: p}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		sum.Appointments, err = h.records.Appointments.ForPatient(gctx, id, summaryLimit)
		return err
	})
	g.Go(func() (err error) {
		sum.Prescriptions, err = h.records.Prescriptions.ForPatient(gctx, id, summaryLimit)
		return err
	})
	g.Go(func() (err error) {
		sum.Invoices, err = h.records.Invoices.ForPatient(gctx, id, summaryLimit)
		return err
	})
	g.Go(func() (err error) {
		sum.Documents, err = h.records.Documents.ForPatient(gctx, id, summaryLimit)
		return err
	})
	if err := g.Wait(); err != nil {
		span.RecordError(err)
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, sum)
}
