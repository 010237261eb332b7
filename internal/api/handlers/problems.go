package handlers

import (
	"net/http"

	"github.com/nikhilbhutani/promptvexity/internal/problem"
	"github.com/nikhilbhutani/promptvexity/internal/prompt"
	"github.com/nikhilbhutani/promptvexity/internal/rank"
)

type ProblemHandler struct {
	svc     *problem.Service
	prompts *prompt.Service
}

func NewProblemHandler(svc *problem.Service, prompts *prompt.Service) *ProblemHandler {
	return &ProblemHandler{svc: svc, prompts: prompts}
}

func (h *ProblemHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req problem.CreateInput
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	p, err := h.svc.Create(r.Context(), actorFrom(r), req)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, p)
}

func (h *ProblemHandler) List(w http.ResponseWriter, r *http.Request) {
	by, err := rank.ParseSort(r.URL.Query().Get("sort"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	limit, offset := pagination(r)

	problems, err := h.svc.List(r.Context(), by, limit, offset)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"problems": problems, "count": len(problems)})
}

func (h *ProblemHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}

	p, err := h.svc.Get(r.Context(), actorFrom(r), id)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, p)
}

func (h *ProblemHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req problem.UpdateInput
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	p, err := h.svc.Update(r.Context(), actorFrom(r), id, req)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, p)
}

func (h *ProblemHandler) ListPrompts(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	by, err := rank.ParseSort(r.URL.Query().Get("sort"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	limit, offset := pagination(r)

	prompts, err := h.prompts.ListByProblem(r.Context(), actorFrom(r), id, by, limit, offset)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"prompts": prompts, "count": len(prompts)})
}

func (h *ProblemHandler) ListMembers(w http.ResponseWriter, r *http.Request) {
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

func (h *ProblemHandler) AddMember(w http.ResponseWriter, r *http.Request) {
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

func (h *ProblemHandler) RemoveMember(w http.ResponseWriter, r *http.Request) {
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
