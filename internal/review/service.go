// Package review collects "worked", "failed" and free-form notes on prompts.
// A user may leave one review of each type per prompt per UTC day.
package review

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/nikhilbhutani/promptvexity/internal/apperr"
	"github.com/nikhilbhutani/promptvexity/internal/authz"
	"github.com/nikhilbhutani/promptvexity/internal/models"
)

const maxTextLen = 2000

type Store interface {
	GetPrompt(ctx context.Context, id uuid.UUID) (models.Prompt, error)
	CreateReview(ctx context.Context, r models.PromptReview) (models.PromptReview, error)
	ListReviews(ctx context.Context, promptID uuid.UUID) ([]models.PromptReview, error)
}

type Service struct {
	store Store
	gate  *authz.Gate
	now   func() time.Time
}

func NewService(st Store, gate *authz.Gate) *Service {
	return &Service{store: st, gate: gate, now: time.Now}
}

type CreateInput struct {
	Type    models.ReviewType `json:"review_type"`
	Reason  string            `json:"reason"`
	Comment string            `json:"comment"`
}

func (in CreateInput) validate() error {
	switch in.Type {
	case models.ReviewWorked:
	case models.ReviewFailed:
		if in.Reason == "" {
			return apperr.Validationf("a failed review needs a reason")
		}
	case models.ReviewNote:
		if in.Comment == "" {
			return apperr.Validationf("a note needs a comment")
		}
	default:
		return apperr.Validationf("unknown review type %q", in.Type)
	}
	if len(in.Reason) > maxTextLen || len(in.Comment) > maxTextLen {
		return apperr.Validationf("reason and comment must be at most %d characters", maxTextLen)
	}
	return nil
}

func (s *Service) visiblePrompt(ctx context.Context, actor authz.Actor, promptID uuid.UUID) error {
	p, err := s.store.GetPrompt(ctx, promptID)
	if err != nil {
		return err
	}
	if p.IsDeleted {
		return apperr.NotFoundf("prompt %s not found", promptID)
	}
	ok, err := s.gate.CanViewPrompt(ctx, actor, p)
	if err != nil {
		return err
	}
	if !ok {
		return apperr.AccessDeniedf("not allowed to review this prompt")
	}
	return nil
}

func (s *Service) Create(ctx context.Context, actor authz.Actor, promptID uuid.UUID, in CreateInput) (models.PromptReview, error) {
	if err := actor.RequireUser(); err != nil {
		return models.PromptReview{}, err
	}
	in.Reason = strings.TrimSpace(in.Reason)
	in.Comment = strings.TrimSpace(in.Comment)
	if err := in.validate(); err != nil {
		return models.PromptReview{}, err
	}
	if err := s.visiblePrompt(ctx, actor, promptID); err != nil {
		return models.PromptReview{}, err
	}

	r, err := s.store.CreateReview(ctx, models.PromptReview{
		ID:        uuid.New(),
		PromptID:  promptID,
		UserID:    actor.UserID,
		Type:      in.Type,
		Reason:    in.Reason,
		Comment:   in.Comment,
		CreatedAt: s.now().UTC(),
	})
	if err != nil {
		return models.PromptReview{}, fmt.Errorf("create review: %w", err)
	}
	return r, nil
}

// List returns the prompt's reviews, newest first.
func (s *Service) List(ctx context.Context, actor authz.Actor, promptID uuid.UUID) ([]models.PromptReview, error) {
	if err := s.visiblePrompt(ctx, actor, promptID); err != nil {
		return nil, err
	}
	reviews, err := s.store.ListReviews(ctx, promptID)
	if err != nil {
		return nil, fmt.Errorf("list reviews: %w", err)
	}
	slices.SortStableFunc(reviews, func(a, b models.PromptReview) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	return reviews, nil
}
