package handlers

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/nikhilbhutani/promptvexity/internal/models"
	"github.com/nikhilbhutani/promptvexity/internal/workspace"
)

type memberRequest struct {
	UserID uuid.UUID   `json:"user_id"`
	Role   models.Role `json:"role"`
}

type WorkspaceHandler struct {
	svc *workspace.Service
}

func NewWorkspaceHandler(svc *workspace.Service) *WorkspaceHandler {
	return &WorkspaceHandler{svc: svc}
}

// Me returns the caller's personal workspace, creating it on first use.
func (h *WorkspaceHandler) Me(w http.ResponseWriter, r *http.Request) {
	actor := actorFrom(r)
	if err := actor.RequireUser(); err != nil {
		writeError(w, r, err)
		return
	}

	ws, err := h.svc.Ensure(r.Context(), actor.UserID)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, ws)
}

func (h *WorkspaceHandler) ListMembers(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}

	members, err := h.svc.ListMembers(r.Context(), actorFrom(r), id)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"members": members})
}

func (h *WorkspaceHandler) AddMember(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req memberRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	m, err := h.svc.AddMember(r.Context(), actorFrom(r), id, req.UserID, req.Role)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, m)
}

func (h *WorkspaceHandler) RemoveMember(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	userID, err := pathID(r, "userID")
	if err != nil {
		writeError(w, r, err)
		return
	}

	if err := h.svc.RemoveMember(r.Context(), actorFrom(r), id, userID); err != nil {
		writeError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
