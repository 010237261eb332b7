// Package vote records up and down votes on prompts. Counters are never
// incremented here; every write returns stats re-aggregated by the store.
package vote

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/nikhilbhutani/promptvexity/internal/apperr"
	"github.com/nikhilbhutani/promptvexity/internal/authz"
	"github.com/nikhilbhutani/promptvexity/internal/metrics"
	"github.com/nikhilbhutani/promptvexity/internal/models"
	"github.com/nikhilbhutani/promptvexity/internal/rank"
)

type Store interface {
	GetPrompt(ctx context.Context, id uuid.UUID) (models.Prompt, error)
	UpsertVote(ctx context.Context, v models.Vote) (models.PromptStats, error)
	DeleteVote(ctx context.Context, promptID, userID uuid.UUID) (models.PromptStats, error)
	GetVote(ctx context.Context, promptID, userID uuid.UUID) (models.Vote, error)
}

type Service struct {
	store   Store
	gate    *authz.Gate
	views   rank.Invalidator
	metrics *metrics.Metrics
	now     func() time.Time
}

func NewService(st Store, gate *authz.Gate, views rank.Invalidator, m *metrics.Metrics) *Service {
	return &Service{store: st, gate: gate, views: views, metrics: m, now: time.Now}
}

// visiblePrompt loads a prompt the actor may vote on. Deleted prompts are
// reported as missing.
func (s *Service) visiblePrompt(ctx context.Context, actor authz.Actor, promptID uuid.UUID) (models.Prompt, error) {
	p, err := s.store.GetPrompt(ctx, promptID)
	if err != nil {
		return models.Prompt{}, err
	}
	if p.IsDeleted {
		return models.Prompt{}, apperr.NotFoundf("prompt %s not found", promptID)
	}
	ok, err := s.gate.CanViewPrompt(ctx, actor, p)
	if err != nil {
		return models.Prompt{}, err
	}
	if !ok {
		return models.Prompt{}, apperr.AccessDeniedf("not allowed to vote on this prompt")
	}
	return p, nil
}

func (s *Service) CastVote(ctx context.Context, actor authz.Actor, promptID uuid.UUID, value int) (models.PromptStats, error) {
	if err := actor.RequireUser(); err != nil {
		return models.PromptStats{}, err
	}
	if value != 1 && value != -1 {
		return models.PromptStats{}, apperr.Validationf("vote value must be 1 or -1, got %d", value)
	}
	if _, err := s.visiblePrompt(ctx, actor, promptID); err != nil {
		return models.PromptStats{}, err
	}

	now := s.now().UTC()
	st, err := s.store.UpsertVote(ctx, models.Vote{
		PromptID:  promptID,
		UserID:    actor.UserID,
		Value:     value,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		return models.PromptStats{}, fmt.Errorf("cast vote: %w", err)
	}

	s.metrics.RecordVote(value)
	s.invalidate(ctx)
	return st, nil
}

// ClearVote removes the actor's vote. Clearing a vote that does not exist is
// not an error.
func (s *Service) ClearVote(ctx context.Context, actor authz.Actor, promptID uuid.UUID) (models.PromptStats, error) {
	if err := actor.RequireUser(); err != nil {
		return models.PromptStats{}, err
	}
	if _, err := s.visiblePrompt(ctx, actor, promptID); err != nil {
		return models.PromptStats{}, err
	}

	st, err := s.store.DeleteVote(ctx, promptID, actor.UserID)
	if err != nil {
		return models.PromptStats{}, fmt.Errorf("clear vote: %w", err)
	}

	s.metrics.RecordVote(0)
	s.invalidate(ctx)
	return st, nil
}

// GetUserVote returns the actor's current vote. Anonymous actors never have
// one.
func (s *Service) GetUserVote(ctx context.Context, actor authz.Actor, promptID uuid.UUID) (int, bool, error) {
	if !actor.Authenticated() {
		return 0, false, nil
	}
	v, err := s.store.GetVote(ctx, promptID, actor.UserID)
	if apperr.Is(err, apperr.NotFound) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("get vote: %w", err)
	}
	return v.Value, true, nil
}

func (s *Service) invalidate(ctx context.Context) {
	if s.views != nil {
		s.views.Invalidate(ctx)
	}
}
