package handlers

import (
	"net/http"

	"github.com/nikhilbhutani/promptvexity/internal/rank"
)

type RankHandler struct {
	views *rank.Views
}

func NewRankHandler(views *rank.Views) *RankHandler {
	return &RankHandler{views: views}
}

func (h *RankHandler) Prompts(w http.ResponseWriter, r *http.Request) {
	limit, _ := pagination(r)

	prompts, err := h.views.RankPrompts(r.Context(), limit)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"prompts": prompts, "count": len(prompts)})
}

func (h *RankHandler) Problems(w http.ResponseWriter, r *http.Request) {
	limit, _ := pagination(r)

	problems, err := h.views.RankProblems(r.Context(), limit)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"problems": problems, "count": len(problems)})
}
