package handlers

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/abhishek2k21/purpletide-hospital-hub/internal/domain/appointment"
	"github.com/abhishek2k21/purpletide-hospital-hub/internal/listing"
)

type AppointmentService interface {
	Schedule(ctx context.Context, in appointment.ScheduleInput) (*appointment.Appointment, error)
	Get(ctx context.Context, id uuid.UUID) (*appointment.Appointment, error)
	Update(ctx context.Context, id uuid.UUID, in appointment.UpdateInput) (*appointment.Appointment, error)
	Cancel(ctx context.Context, id uuid.UUID, reason string) (*appointment.Appointment, error)
	Complete(ctx context.Context, id uuid.UUID, notes string) (*appointment.Appointment, error)
	MarkNoShow(ctx context.Context, id uuid.UUID) (*appointment.Appointment, error)
	List(ctx context.Context, params listing.Params) (*listing.Page[appointment.Appointment], error)
}

type AppointmentHandler struct {
	svc    AppointmentService
	logger *zap.Logger
}

func NewAppointmentHandler(svc AppointmentService, logger *zap.Logger) *AppointmentHandler {
	return &AppointmentHandler{svc: svc, logger: logger}
}

func (h *AppointmentHandler) List(w http.ResponseWriter, r *http.Request) {
	page, err := h.svc.List(r.Context(), listParams(r, appointment.ListSpec))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (h *AppointmentHandler) Create(w http.ResponseWriter, r *http.Request) {
	var in appointment.ScheduleInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	a, err := h.svc.Schedule(r.Context(), in)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, a)
}

func (h *AppointmentHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	a, err := h.svc.Get(r.Context(), id)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (h *AppointmentHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	var in appointment.UpdateInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	a, err := h.svc.Update(r.Context(), id, in)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

// transitionBody is the optional body of the status-change endpoints.
type transitionBody struct {
	Reason string `json:"reason"`
	Notes  string `json:"notes"`
}

func (h *AppointmentHandler) transition(w http.ResponseWriter, r *http.Request,
	do func(ctx context.Context, id uuid.UUID, body transitionBody) (*appointment.Appointment, error)) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	var body transitionBody
	if err := decodeOptionalJSON(w, r, &body); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	a, err := do(r.Context(), id, body)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (h *AppointmentHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, func(ctx context.Context, id uuid.UUID, b transitionBody) (*appointment.Appointment, error) {
		return h.svc.Cancel(ctx, id, b.Reason)
	})
}

func (h *AppointmentHandler) Complete(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, func(ctx context.Context, id uuid.UUID, b transitionBody) (*appointment.Appointment, error) {
		return h.svc.Complete(ctx, id, b.Notes)
	})
}

func (h *AppointmentHandler) NoShow(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, func(ctx context.Context, id uuid.UUID, _ transitionBody) (*appointment.Appointment, error) {
		return h.svc.MarkNoShow(ctx, id)
	})
}
