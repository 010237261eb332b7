package handlers

import (
	"net/http"

	"github.com/nikhilbhutani/promptvexity/internal/lineage"
	"github.com/nikhilbhutani/promptvexity/internal/prompt"
	"github.com/nikhilbhutani/promptvexity/internal/review"
	"github.com/nikhilbhutani/promptvexity/internal/vote"
)

type PromptHandler struct {
	svc     *prompt.Service
	lineage *lineage.Resolver
	votes   *vote.Service
	reviews *review.Service
}

func NewPromptHandler(svc *prompt.Service, resolver *lineage.Resolver, votes *vote.Service, reviews *review.Service) *PromptHandler {
	return &PromptHandler{svc: svc, lineage: resolver, votes: votes, reviews: reviews}
}

func (h *PromptHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req prompt.CreateInput
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

func (h *PromptHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}

	actor := actorFrom(r)
	p, err := h.svc.Get(r.Context(), actor, id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	h.svc.RecordView(r.Context(), actor, id)

	writeJSON(w, http.StatusOK, p)
}

func (h *PromptHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req prompt.UpdateInput
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

func (h *PromptHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}

	if err := h.svc.Delete(r.Context(), actorFrom(r), id); err != nil {
		writeError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *PromptHandler) Fork(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req prompt.ForkInput
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	p, err := h.svc.Fork(r.Context(), actorFrom(r), id, req)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, p)
}

func (h *PromptHandler) Lineage(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	if _, err := h.svc.Get(r.Context(), actorFrom(r), id); err != nil {
		writeError(w, r, err)
		return
	}

	nodes, err := h.lineage.GetLineage(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"lineage": nodes})
}

func (h *PromptHandler) Children(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	if _, err := h.svc.Get(r.Context(), actorFrom(r), id); err != nil {
		writeError(w, r, err)
		return
	}

	children, err := h.lineage.GetChildren(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"children": children})
}

type renderRequest struct {
	Variables map[string]string `json:"variables"`
}

func (h *PromptHandler) Render(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req renderRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	resp, err := h.svc.Render(r.Context(), actorFrom(r), id, req.Variables)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// Copy returns the prompt text and counts a copy.
func (h *PromptHandler) Copy(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}

	actor := actorFrom(r)
	p, err := h.svc.Get(r.Context(), actor, id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	h.svc.RecordCopy(r.Context(), actor, id)

	writeJSON(w, http.StatusOK, map[string]any{
		"system_prompt": p.SystemPrompt,
		"user_template": p.UserTemplate,
		"model":         p.Model,
		"params":        p.Params,
	})
}

type hiddenRequest struct {
	Hidden bool `json:"hidden"`
}

func (h *PromptHandler) SetHidden(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req hiddenRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	if err := h.svc.SetHidden(r.Context(), actorFrom(r), id, req.Hidden); err != nil {
		writeError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

type voteRequest struct {
	Value int `json:"value"`
}

func (h *PromptHandler) GetVote(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}

	value, ok, err := h.votes.GetUserVote(r.Context(), actorFrom(r), id)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"value": value, "voted": ok})
}

func (h *PromptHandler) CastVote(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req voteRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	stats, err := h.votes.CastVote(r.Context(), actorFrom(r), id, req.Value)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, stats)
}

func (h *PromptHandler) ClearVote(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}

	stats, err := h.votes.ClearVote(r.Context(), actorFrom(r), id)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, stats)
}

func (h *PromptHandler) CreateReview(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req review.CreateInput
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	rv, err := h.reviews.Create(r.Context(), actorFrom(r), id, req)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, rv)
}

func (h *PromptHandler) ListReviews(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}

	reviews, err := h.reviews.List(r.Context(), actorFrom(r), id)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"reviews": reviews, "count": len(reviews)})
}
