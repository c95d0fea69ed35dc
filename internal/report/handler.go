package report

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"learnpage/internal/app/apiresp"
)

type Handler struct {
	svc reportService
}

type reportService interface {
	SummaryByPage(ctx context.Context, pageID string) (*PageSummary, error)
	ExportEventsExcel(ctx context.Context, pageID string) ([]byte, error)
}

func NewHandler(svc reportService) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) PageSummary(w http.ResponseWriter, r *http.Request) {
	pageID := strings.TrimSpace(r.URL.Query().Get("page_id"))
	if pageID == "" {
		apiresp.WriteError(w, r, http.StatusBadRequest, "page_id is required")
		return
	}
	summary, err := h.svc.SummaryByPage(r.Context(), pageID)
	if err != nil {
		apiresp.WriteError(w, r, http.StatusInternalServerError, "internal error")
		return
	}
	apiresp.WriteOK(w, r, http.StatusOK, summary)
}

func (h *Handler) ExportEvents(w http.ResponseWriter, r *http.Request) {
	pageID := strings.TrimSpace(r.URL.Query().Get("page_id"))
	data, err := h.svc.ExportEventsExcel(r.Context(), pageID)
	if err != nil {
		apiresp.WriteError(w, r, http.StatusInternalServerError, "internal error")
		return
	}

	filename := "events.xlsx"
	if pageID != "" {
		filename = fmt.Sprintf("events-%s.xlsx", pageID)
	}
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}
