// Package rank scores prompts and problems and orders listings.
package rank

import (
	"math"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/nikhilbhutani/promptvexity/internal/apperr"
	"github.com/nikhilbhutani/promptvexity/internal/models"
)

type Sort string

const (
	SortNewest Sort = "newest"
	SortTop    Sort = "top"
	SortBest   Sort = "best"
)

// ParseSort accepts the query parameter form. An empty value sorts newest
// first.
func ParseSort(s string) (Sort, error) {
	switch Sort(strings.ToLower(strings.TrimSpace(s))) {
	case "", SortNewest:
		return SortNewest, nil
	case SortTop:
		return SortTop, nil
	case SortBest:
		return SortBest, nil
	}
	return "", apperr.Validationf("unknown sort %q, expected newest, top or best", s)
}

const (
	forkWeight   = 0.5
	recencyScale = 24.0
	breadthBonus = 0.25
)

// Score combines net votes, forks and age. It grows with upvotes and forks,
// never grows with downvotes, and decays with age measured against now.
func Score(p models.Prompt, st models.PromptStats, now time.Time) float64 {
	net := float64(st.Upvotes - st.Downvotes)
	votes := 0.0
	switch {
	case net > 0:
		votes = math.Log1p(net)
	case net < 0:
		votes = -math.Log1p(-net)
	}

	forks := forkWeight * math.Log1p(float64(st.ForkCount))

	ageHours := now.Sub(p.CreatedAt).Hours()
	if ageHours < 0 {
		ageHours = 0
	}
	recency := 1 / (1 + ageHours/recencyScale)

	return votes + forks + recency
}

type RankedPrompt struct {
	models.PromptWithStats
	RankScore float64 `json:"rank_score"`
}

func compareNewest(a, b models.Prompt) int {
	if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
		return c
	}
	return strings.Compare(a.ID.String(), b.ID.String())
}

// SortPrompts scores and orders items. Ties fall back to newest first and
// then to id so the order is stable across calls.
func SortPrompts(items []models.PromptWithStats, by Sort, now time.Time) []RankedPrompt {
	ranked := make([]RankedPrompt, len(items))
	for i, it := range items {
		ranked[i] = RankedPrompt{PromptWithStats: it, RankScore: Score(it.Prompt, it.Stats, now)}
	}

	slices.SortFunc(ranked, func(a, b RankedPrompt) int {
		switch by {
		case SortTop:
			if a.Stats.Upvotes != b.Stats.Upvotes {
				return b.Stats.Upvotes - a.Stats.Upvotes
			}
		case SortBest:
			if a.RankScore != b.RankScore {
				if a.RankScore > b.RankScore {
					return -1
				}
				return 1
			}
		}
		return compareNewest(a.Prompt, b.Prompt)
	})
	return ranked
}

type RankedProblem struct {
	models.Problem
	RankScore    float64    `json:"rank_score"`
	PromptCount  int        `json:"prompt_count"`
	Upvotes      int        `json:"upvotes"`
	BestPromptID *uuid.UUID `json:"best_prompt_id,omitempty"`
}

// ScoreProblems attaches to each problem the score of its best visible
// prompt plus a small bonus for the number of visible prompts. prompts must
// already be filtered to the visible ones.
func ScoreProblems(problems []models.Problem, prompts []models.PromptWithStats, now time.Time) []RankedProblem {
	byProblem := make(map[uuid.UUID][]models.PromptWithStats)
	for _, p := range prompts {
		byProblem[p.ProblemID] = append(byProblem[p.ProblemID], p)
	}

	out := make([]RankedProblem, 0, len(problems))
	for _, pr := range problems {
		rp := RankedProblem{Problem: pr}
		best := math.Inf(-1)
		for _, p := range byProblem[pr.ID] {
			rp.PromptCount++
			rp.Upvotes += p.Stats.Upvotes
			if s := Score(p.Prompt, p.Stats, now); s > best {
				best = s
				id := p.ID
				rp.BestPromptID = &id
			}
		}
		if rp.PromptCount > 0 {
			rp.RankScore = best + breadthBonus*math.Log1p(float64(rp.PromptCount))
		}
		out = append(out, rp)
	}
	return out
}

// SortProblems orders scored problems. top uses the total upvotes of their
// visible prompts.
func SortProblems(items []RankedProblem, by Sort) {
	slices.SortFunc(items, func(a, b RankedProblem) int {
		switch by {
		case SortTop:
			if a.Upvotes != b.Upvotes {
				return b.Upvotes - a.Upvotes
			}
		case SortBest:
			if a.RankScore != b.RankScore {
				if a.RankScore > b.RankScore {
					return -1
				}
				return 1
			}
		}
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID.String(), b.ID.String())
	})
}

// Page applies limit and offset. A non-positive limit returns everything from
// offset on.
func Page[T any](items []T, limit, offset int) []T {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(items) {
		return []T{}
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}
