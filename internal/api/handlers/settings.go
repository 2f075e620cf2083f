package handlers

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/abhishek2k21/purpletide-hospital-hub/internal/auth"
	"github.com/abhishek2k21/purpletide-hospital-hub/internal/domain/settings"
	"github.com/abhishek2k21/purpletide-hospital-hub/internal/listing"
)

type SettingsService interface {
	Profile(ctx context.Context, id uuid.UUID) (*settings.Profile, error)
	EnsureProfile(ctx context.Context, id uuid.UUID, email string, role settings.Role) (*settings.Profile, error)
	UpdateProfile(ctx context.Context, id uuid.UUID, in settings.ProfileInput) (*settings.Profile, error)
	SetRole(ctx context.Context, id uuid.UUID, role settings.Role) (*settings.Profile, error)
	ListProfiles(ctx context.Context, params listing.Params) (*listing.Page[settings.Profile], error)
	Hospital(ctx context.Context) (settings.Hospital, error)
	UpdateHospital(ctx context.Context, h settings.Hospital) (settings.Hospital, error)
}

type SettingsHandler struct {
	svc    SettingsService
	logger *zap.Logger
}

func NewSettingsHandler(svc SettingsService, logger *zap.Logger) *SettingsHandler {
	return &SettingsHandler{svc: svc, logger: logger}
}

// Profile returns the caller's profile, creating it on first access.
func (h *SettingsHandler) Profile(w http.ResponseWriter, r *http.Request) {
	p := principal(r)
	if p == nil {
		writeError(w, r, h.logger, auth.ErrUnauthorized)
		return
	}
	prof, err := h.svc.EnsureProfile(r.Context(), p.UserID, p.Email, p.Role)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, prof)
}

func (h *SettingsHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	p := principal(r)
	if p == nil {
		writeError(w, r, h.logger, auth.ErrUnauthorized)
		return
	}
	var in settings.ProfileInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	prof, err := h.svc.UpdateProfile(r.Context(), p.UserID, in)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, prof)
}

func (h *SettingsHandler) Hospital(w http.ResponseWriter, r *http.Request) {
	hs, err := h.svc.Hospital(r.Context())
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, hs)
}

func (h *SettingsHandler) UpdateHospital(w http.ResponseWriter, r *http.Request) {
	var in settings.Hospital
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	hs, err := h.svc.UpdateHospital(r.Context(), in)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, hs)
}

func (h *SettingsHandler) Users(w http.ResponseWriter, r *http.Request) {
	page, err := h.svc.ListProfiles(r.Context(), listParams(r, settings.ProfileListSpec))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (h *SettingsHandler) SetRole(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	var body struct {
		Role settings.Role `json:"role"`
	}
	if err := decodeJSON(w, r, &body); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	prof, err := h.svc.SetRole(r.Context(), id, body.Role)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, prof)
}
