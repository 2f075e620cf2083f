package handlers

import (
	"context"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/abhishek2k21/purpletide-hospital-hub/internal/auth"
	"github.com/abhishek2k21/purpletide-hospital-hub/internal/observability/metrics"
)

type AuthService interface {
	SignIn(ctx context.Context, email, password string) (*auth.Session, error)
	SignUp(ctx context.Context, email, password string) (*auth.Session, error)
	SignOut(ctx context.Context, p *auth.Principal) error
	ForgotPassword(ctx context.Context, email, redirectTo string) error
	ResetPassword(ctx context.Context, token, password string) error
}

type AuthHandler struct {
	svc     AuthService
	metrics *metrics.Metrics
	logger  *zap.Logger
}

func NewAuthHandler(svc AuthService, m *metrics.Metrics, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{svc: svc, metrics: m, logger: logger}
}

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *AuthHandler) SignIn(w http.ResponseWriter, r *http.Request) {
	var req credentials
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	sess, err := h.svc.SignIn(r.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			h.countSignIn("none", "rejected")
		}
		writeError(w, r, h.logger, err)
		return
	}
	h.countSignIn(string(sess.Principal.Source), "ok")
	writeJSON(w, http.StatusOK, sess)
}

func (h *AuthHandler) countSignIn(source, outcome string) {
	if h.metrics != nil {
		h.metrics.SignIns.WithLabelValues(source, outcome).Inc()
	}
}

func (h *AuthHandler) SignUp(w http.ResponseWriter, r *http.Request) {
	var req credentials
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	sess, err := h.svc.SignUp(r.Context(), req.Email, req.Password)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, sess)
}

func (h *AuthHandler) SignOut(w http.ResponseWriter, r *http.Request) {
	p := principal(r)
	if p == nil {
		writeError(w, r, h.logger, auth.ErrUnauthorized)
		return
	}
	if err := h.svc.SignOut(r.Context(), p); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Session returns the caller as resolved by the auth middleware.
func (h *AuthHandler) Session(w http.ResponseWriter, r *http.Request) {
	p := principal(r)
	if p == nil {
		writeError(w, r, h.logger, auth.ErrUnauthorized)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *AuthHandler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email      string `json:"email"`
		RedirectTo string `json:"redirect_to"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if err := h.svc.ForgotPassword(r.Context(), req.Email, req.RedirectTo); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{
		"status": "if an account exists for this email, a reset link has been sent",
	})
}

func (h *AuthHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Token    string `json:"token"`
		Password string `json:"password"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if err := h.svc.ResetPassword(r.Context(), req.Token, req.Password); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "password updated"})
}
