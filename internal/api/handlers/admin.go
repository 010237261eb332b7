package handlers

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/nikhilbhutani/promptvexity/internal/audit"
	"github.com/nikhilbhutani/promptvexity/internal/store"
)

// StatsRecomputer schedules a rebuild of one prompt's stats row.
type StatsRecomputer interface {
	EnqueueStatsRecompute(ctx context.Context, promptID uuid.UUID) error
}

type AdminHandler struct {
	auditSvc *audit.Service
	stats    StatsRecomputer
}

func NewAdminHandler(auditSvc *audit.Service, stats StatsRecomputer) *AdminHandler {
	return &AdminHandler{auditSvc: auditSvc, stats: stats}
}

func (h *AdminHandler) AuditLogs(w http.ResponseWriter, r *http.Request) {
	q := store.AuditQuery{
		Action: r.URL.Query().Get("action"),
	}
	q.Limit, q.Offset = pagination(r)

	logs, err := h.auditSvc.GetAuditLogs(r.Context(), q)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"logs": logs, "count": len(logs)})
}

func (h *AdminHandler) RecomputeStats(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}

	if err := h.stats.EnqueueStatsRecompute(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]string{"status": "queued"})
}
