package handlers

import (
	"context"
	"net/http"

	"go.uber.org/zap"

	"github.com/abhishek2k21/purpletide-hospital-hub/internal/domain/report"
)

type ReportService interface {
	Dashboard(ctx context.Context) (*report.Dashboard, error)
	Series(ctx context.Context, months int) (*report.Series, error)
	Activity(ctx context.Context, limit int) ([]report.Activity, error)
}

type ReportHandler struct {
	svc    ReportService
	logger *zap.Logger
}

func NewReportHandler(svc ReportService, logger *zap.Logger) *ReportHandler {
	return &ReportHandler{svc: svc, logger: logger}
}

func (h *ReportHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	d, err := h.svc.Dashboard(r.Context())
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (h *ReportHandler) Series(w http.ResponseWriter, r *http.Request) {
	months, err := report.ParseMonths(r.URL.Query().Get("months"))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	s, err := h.svc.Series(r.Context(), months)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, s)
}

func (h *ReportHandler) Activity(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", 20)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	items, err := h.svc.Activity(r.Context(), limit)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}
