package handlers

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/abhishek2k21/purpletide-hospital-hub/internal/domain/inventory"
	"github.com/abhishek2k21/purpletide-hospital-hub/internal/listing"
)

type InventoryService interface {
	Create(ctx context.Context, it *inventory.Item) (*inventory.Item, error)
	Get(ctx context.Context, id uuid.UUID) (*inventory.Item, error)
	Update(ctx context.Context, id uuid.UUID, in *inventory.Item) (*inventory.Item, error)
	Restock(ctx context.Context, id uuid.UUID, in inventory.RestockInput) (*inventory.Item, error)
	Adjust(ctx context.Context, id uuid.UUID, in inventory.AdjustInput) (*inventory.Item, error)
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, params listing.Params) (*listing.Page[inventory.Item], error)
}

type InventoryHandler struct {
	svc    InventoryService
	logger *zap.Logger
}

func NewInventoryHandler(svc InventoryService, logger *zap.Logger) *InventoryHandler {
	return &InventoryHandler{svc: svc, logger: logger}
}

func (h *InventoryHandler) List(w http.ResponseWriter, r *http.Request) {
	page, err := h.svc.List(r.Context(), listParams(r, inventory.ListSpec))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (h *InventoryHandler) Create(w http.ResponseWriter, r *http.Request) {
	var it inventory.Item
	if err := decodeJSON(w, r, &it); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	created, err := h.svc.Create(r.Context(), &it)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (h *InventoryHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	it, err := h.svc.Get(r.Context(), id)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, it)
}

func (h *InventoryHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	var it inventory.Item
	if err := decodeJSON(w, r, &it); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	updated, err := h.svc.Update(r.Context(), id, &it)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (h *InventoryHandler) Restock(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	var in inventory.RestockInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	it, err := h.svc.Restock(r.Context(), id, in)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, it)
}

func (h *InventoryHandler) Adjust(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	var in inventory.AdjustInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	it, err := h.svc.Adjust(r.Context(), id, in)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, it)
}

func (h *InventoryHandler) Delete(w http.ResponseWriter, r *http.Request) {
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
