package handlers

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/abhishek2k21/purpletide-hospital-hub/internal/domain/doctor"
	"github.com/abhishek2k21/purpletide-hospital-hub/internal/listing"
)

type DoctorService interface {
	Create(ctx context.Context, d *doctor.Doctor) (*doctor.Doctor, error)
	Get(ctx context.Context, id uuid.UUID) (*doctor.Doctor, error)
	Update(ctx context.Context, id uuid.UUID, d *doctor.Doctor) (*doctor.Doctor, error)
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, params listing.Params) (*listing.Page[doctor.Doctor], error)
}

type DoctorHandler struct {
	svc    DoctorService
	logger *zap.Logger
}

func NewDoctorHandler(svc DoctorService, logger *zap.Logger) *DoctorHandler {
	return &DoctorHandler{svc: svc, logger: logger}
}

func (h *DoctorHandler) List(w http.ResponseWriter, r *http.Request) {
	page, err := h.svc.List(r.Context(), listParams(r, doctor.ListSpec))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (h *DoctorHandler) Create(w http.ResponseWriter, r *http.Request) {
	var d doctor.Doctor
	if err := decodeJSON(w, r, &d); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	created, err := h.svc.Create(r.Context(), &d)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (h *DoctorHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	d, err := h.svc.Get(r.Context(), id)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (h *DoctorHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	var d doctor.Doctor
	if err := decodeJSON(w, r, &d); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	updated, err := h.svc.Update(r.Context(), id, &d)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (h *DoctorHandler) Delete(w http.ResponseWriter, r *http.Request) {
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
