package handlers

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/abhishek2k21/purpletide-hospital-hub/internal/domain/billing"
	"github.com/abhishek2k21/purpletide-hospital-hub/internal/listing"
)

type InvoiceService interface {
	Create(ctx context.Context, in billing.DraftInput) (*billing.Invoice, error)
	Get(ctx context.Context, id uuid.UUID) (*billing.Invoice, error)
	UpdateDraft(ctx context.Context, id uuid.UUID, in billing.DraftInput) (*billing.Invoice, error)
	Issue(ctx context.Context, id uuid.UUID) (*billing.Invoice, error)
	Pay(ctx context.Context, id uuid.UUID, method billing.PaymentMethod) (*billing.Invoice, error)
	Void(ctx context.Context, id uuid.UUID, reason string) (*billing.Invoice, error)
	List(ctx context.Context, params listing.Params) (*listing.Page[billing.Invoice], error)
}

type InvoiceHandler struct {
	svc    InvoiceService
	logger *zap.Logger
}

func NewInvoiceHandler(svc InvoiceService, logger *zap.Logger) *InvoiceHandler {
	return &InvoiceHandler{svc: svc, logger: logger}
}

func (h *InvoiceHandler) List(w http.ResponseWriter, r *http.Request) {
	page, err := h.svc.List(r.Context(), listParams(r, billing.ListSpec))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (h *InvoiceHandler) Create(w http.ResponseWriter, r *http.Request) {
	var in billing.DraftInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	inv, err := h.svc.Create(r.Context(), in)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, inv)
}

func (h *InvoiceHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	inv, err := h.svc.Get(r.Context(), id)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, inv)
}

// Update replaces the lines of a draft invoice.
func (h *InvoiceHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	var in billing.DraftInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	inv, err := h.svc.UpdateDraft(r.Context(), id, in)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, inv)
}

func (h *InvoiceHandler) Issue(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	inv, err := h.svc.Issue(r.Context(), id)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, inv)
}

func (h *InvoiceHandler) Pay(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	var body struct {
		PaymentMethod billing.PaymentMethod `json:"payment_method"`
	}
	if err := decodeJSON(w, r, &body); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	inv, err := h.svc.Pay(r.Context(), id, body.PaymentMethod)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, inv)
}

func (h *InvoiceHandler) Void(w http.ResponseWriter, r *http.Request) {
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
	inv, err := h.svc.Void(r.Context(), id, body.Reason)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, inv)
}
