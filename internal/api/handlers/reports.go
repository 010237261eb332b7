package handlers

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/nikhilbhutani/promptvexity/internal/apperr"
	"github.com/nikhilbhutani/promptvexity/internal/models"
	"github.com/nikhilbhutani/promptvexity/internal/moderation"
)

type ReportHandler struct {
	svc *moderation.Service
}

func NewReportHandler(svc *moderation.Service) *ReportHandler {
	return &ReportHandler{svc: svc}
}

type reportRequest struct {
	ContentType string              `json:"content_type"`
	ContentID   uuid.UUID           `json:"content_id"`
	Reason      models.ReportReason `json:"reason"`
	Details     string              `json:"details"`
}

func (h *ReportHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req reportRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	ref, err := models.ParseContentRef(req.ContentType, req.ContentID)
	if err != nil {
		writeError(w, r, apperr.Validationf("content_type must be prompt or problem"))
		return
	}

	report, err := h.svc.CreateReport(r.Context(), actorFrom(r), ref, req.Reason, req.Details)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, report)
}

func (h *ReportHandler) List(w http.ResponseWriter, r *http.Request) {
	status := models.ReportStatus(r.URL.Query().Get("status"))

	reports, err := h.svc.ListReports(r.Context(), actorFrom(r), status)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"reports": reports, "count": len(reports)})
}

type resolveRequest struct {
	Action        moderation.Action `json:"action"`
	DeleteContent bool              `json:"delete_content"`
}

func (h *ReportHandler) Resolve(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req resolveRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	report, err := h.svc.ResolveReport(r.Context(), actorFrom(r), id, req.Action, req.DeleteContent)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, report)
}
