// Package lineage walks the fork tree of prompts.
package lineage

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/nikhilbhutani/promptvexity/internal/apperr"
	"github.com/nikhilbhutani/promptvexity/internal/models"
)

// MaxDepth bounds the number of ancestors followed from a single prompt.
const MaxDepth = 1000

type Node struct {
	ID    uuid.UUID `json:"id"`
	Title string    `json:"title"`
	Depth int       `json:"depth"`
}

type Child struct {
	ID                 uuid.UUID `json:"id"`
	Title              string    `json:"title"`
	CreatedAt          time.Time `json:"created_at"`
	ImprovementSummary string    `json:"improvement_summary,omitempty"`
}

type PromptReader interface {
	GetPrompt(ctx context.Context, id uuid.UUID) (models.Prompt, error)
	ListChildren(ctx context.Context, parentID uuid.UUID) ([]models.Prompt, error)
}

type Resolver struct {
	prompts PromptReader
}

func NewResolver(prompts PromptReader) *Resolver {
	return &Resolver{prompts: prompts}
}

// GetLineage returns the chain from the root down to promptID. Soft-deleted
// ancestors stay in the chain so the history reads the same after moderation.
func (r *Resolver) GetLineage(ctx context.Context, promptID uuid.UUID) ([]Node, error) {
	chain, err := r.ancestors(ctx, promptID)
	if err != nil {
		return nil, err
	}

	nodes := make([]Node, len(chain))
	for i, p := range chain {
		depth := len(chain) - 1 - i
		nodes[depth] = Node{ID: p.ID, Title: p.Title, Depth: depth}
	}
	return nodes, nil
}

// ancestors returns promptID followed by each parent up to the root.
func (r *Resolver) ancestors(ctx context.Context, promptID uuid.UUID) ([]models.Prompt, error) {
	var chain []models.Prompt
	seen := make(map[uuid.UUID]struct{})

	cur := promptID
	for {
		if _, ok := seen[cur]; ok {
			return nil, apperr.New(apperr.Conflict, "lineage_cycle",
				fmt.Sprintf("lineage of prompt %s loops back to %s", promptID, cur))
		}
		if len(chain) > MaxDepth {
			return nil, apperr.New(apperr.Conflict, "lineage_too_deep",
				fmt.Sprintf("lineage of prompt %s exceeds %d ancestors", promptID, MaxDepth))
		}

		p, err := r.prompts.GetPrompt(ctx, cur)
		if err != nil {
			if len(chain) == 0 {
				return nil, err
			}
			return nil, fmt.Errorf("get ancestor %s: %w", cur, err)
		}
		seen[cur] = struct{}{}
		chain = append(chain, p)

		if p.ParentPromptID == nil {
			return chain, nil
		}
		cur = *p.ParentPromptID
	}
}

// CheckAcyclic fails when following parents from promptID does not reach a
// root within MaxDepth steps.
func (r *Resolver) CheckAcyclic(ctx context.Context, promptID uuid.UUID) error {
	_, err := r.ancestors(ctx, promptID)
	return err
}

// GetChildren returns the direct forks of promptID, newest first. The result
// is never nil.
func (r *Resolver) GetChildren(ctx context.Context, promptID uuid.UUID) ([]Child, error) {
	if _, err := r.prompts.GetPrompt(ctx, promptID); err != nil {
		return nil, err
	}

	prompts, err := r.prompts.ListChildren(ctx, promptID)
	if err != nil {
		return nil, fmt.Errorf("list children: %w", err)
	}

	slices.SortFunc(prompts, func(a, b models.Prompt) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return slices.Compare(a.ID[:], b.ID[:])
	})

	children := make([]Child, 0, len(prompts))
	for _, p := range prompts {
		if p.IsDeleted {
			continue
		}
		children = append(children, Child{
			ID:                 p.ID,
			Title:              p.Title,
			CreatedAt:          p.CreatedAt,
			ImprovementSummary: p.ImprovementSummary,
		})
	}
	return children, nil
}
