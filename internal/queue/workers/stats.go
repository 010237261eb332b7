package workers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/nikhilbhutani/promptvexity/internal/apperr"
	"github.com/nikhilbhutani/promptvexity/internal/models"
	"github.com/nikhilbhutani/promptvexity/internal/queue"
	"github.com/nikhilbhutani/promptvexity/internal/rank"
)

type StatsStore interface {
	queue.EventStore
	RefreshStats(ctx context.Context, promptID uuid.UUID) (models.PromptStats, error)
}

type StatsWorker struct {
	store StatsStore
	views rank.Invalidator
}

func NewStatsWorker(st StatsStore, views rank.Invalidator) *StatsWorker {
	return &StatsWorker{store: st, views: views}
}

// Register mounts the worker's handlers.
func (w *StatsWorker) Register(r *queue.HandlersRegistry) {
	r.Register(queue.TypePromptView, asynq.HandlerFunc(w.ProcessEvent))
	r.Register(queue.TypePromptCopy, asynq.HandlerFunc(w.ProcessEvent))
	r.Register(queue.TypeStatsRecompute, asynq.HandlerFunc(w.ProcessRecompute))
}

// ProcessEvent stores one view or copy event. Events for prompts that no
// longer exist are dropped without retry.
func (w *StatsWorker) ProcessEvent(ctx context.Context, t *asynq.Task) error {
	kind, err := queue.EventKind(t.Type())
	if err != nil {
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}
	var payload queue.PromptEventPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("unmarshal payload: %v: %w", err, asynq.SkipRetry)
	}
	promptID, userID, err := payload.Parse()
	if err != nil {
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}
	at := payload.OccurredAt
	if at.IsZero() {
		at = time.Now().UTC()
	}

	_, err = w.store.RecordPromptEvent(ctx, promptID, userID, kind, at)
	if apperr.Is(err, apperr.NotFound) {
		slog.Warn("dropping event for missing prompt", "prompt_id", promptID, "kind", kind)
		return nil
	}
	if err != nil {
		return fmt.Errorf("record %s event: %w", kind, err)
	}
	return nil
}

func (w *StatsWorker) ProcessRecompute(ctx context.Context, t *asynq.Task) error {
	var payload queue.StatsRecomputePayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("unmarshal payload: %v: %w", err, asynq.SkipRetry)
	}
	promptID, err := uuid.Parse(payload.PromptID)
	if err != nil {
		return fmt.Errorf("parse prompt ID: %v: %w", err, asynq.SkipRetry)
	}

	st, err := w.store.RefreshStats(ctx, promptID)
	if apperr.Is(err, apperr.NotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("refresh stats: %w", err)
	}
	if w.views != nil {
		w.views.Invalidate(ctx)
	}
	slog.Info("stats recomputed", "prompt_id", promptID, "score", st.Score, "fork_count", st.ForkCount)
	return nil
}
