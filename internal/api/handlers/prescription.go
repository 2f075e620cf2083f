package handlers

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/abhishek2k21/purpletide-hospital-hub/internal/api/middleware"
	"github.com/abhishek2k21/purpletide-hospital-hub/internal/domain/prescription"
	"github.com/abhishek2k21/purpletide-hospital-hub/internal/listing"
)

type PrescriptionService interface {
	Create(ctx context.Context, in prescription.CreateInput) (*prescription.Prescription, error)
	Get(ctx context.Context, id uuid.UUID) (*prescription.Prescription, error)
	History(ctx context.Context, id uuid.UUID) ([]prescription.HistoryEntry, error)
	Dispense(ctx context.Context, id uuid.UUID) (*prescription.Prescription, error)
	Cancel(ctx context.Context, id uuid.UUID, reason string) (*prescription.Prescription, error)
	List(ctx context.Context, params listing.Params) (*listing.Page[prescription.Prescription], error)
}

// PrescriptionHandler handles prescription endpoints
type PrescriptionHandler struct {
	svc    PrescriptionService
	logger *zap.Logger
}

func NewPrescriptionHandler(svc PrescriptionService, logger *zap.Logger) *PrescriptionHandler {
	return &PrescriptionHandler{svc: svc, logger: logger}
}

func (h *PrescriptionHandler) List(w http.ResponseWriter, r *http.Request) {
	page, err := h.svc.List(r.Context(), listParams(r, prescription.ListSpec))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

// Create handles POST /prescriptions
func (h *PrescriptionHandler) Create(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("prescription-handler").Start(r.Context(), "create_prescription")
	defer span.End()

	var in prescription.CreateInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	p, err := h.svc.Create(ctx, in)
	if err != nil {
		span.RecordError(err)
		writeError(w, r, h.logger, err)
		return
	}
	span.SetAttributes(attribute.String("prescription_id", p.ID.String()))

	h.logger.Info("prescription created",
		zap.String("id", p.ID.String()),
		zap.String("medicine", p.MedicineName),
		zap.String("request_id", middleware.GetRequestID(ctx)),
	)
	writeJSON(w, http.StatusCreated, p)
}

func (h *PrescriptionHandler) Get(w http.ResponseWriter, r *http.Request) {
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

// Events handles GET /prescriptions/{id}/events
func (h *PrescriptionHandler) Events(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	history, err := h.svc.History(r.Context(), id)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, history)
}

// Dispense handles POST /prescriptions/{id}/dispense
func (h *PrescriptionHandler) Dispense(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("prescription-handler").Start(r.Context(), "dispense_prescription")
	defer span.End()

	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	span.SetAttributes(attribute.String("prescription_id", id.String()))

	p, err := h.svc.Dispense(ctx, id)
	if err != nil {
		span.RecordError(err)
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *PrescriptionHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	var body struct {
		Reason string `json:"reason"`
	}
	if err := decodeOptionalJSON(w, r, &body); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	p, err := h.svc.Cancel(r.Context(), id, body.Reason)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}
