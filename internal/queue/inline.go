package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/nikhilbhutani/promptvexity/internal/models"
)

type EventStore interface {
	RecordPromptEvent(ctx context.Context, promptID uuid.UUID, userID *uuid.UUID, kind models.PromptEventKind, at time.Time) (models.PromptStats, error)
}

type InlineStore interface {
	EventStore
	RefreshStats(ctx context.Context, promptID uuid.UUID) (models.PromptStats, error)
}

// Inline records events synchronously. It stands in for the queue when no
// Redis is configured.
type Inline struct {
	store InlineStore
	now   func() time.Time
}

func NewInline(st InlineStore) *Inline {
	return &Inline{store: st, now: time.Now}
}

func (i *Inline) RecordEvent(ctx context.Context, promptID uuid.UUID, userID *uuid.UUID, kind models.PromptEventKind) error {
	if _, err := i.store.RecordPromptEvent(ctx, promptID, userID, kind, i.now().UTC()); err != nil {
		return fmt.Errorf("record %s event: %w", kind, err)
	}
	return nil
}

func (i *Inline) EnqueueStatsRecompute(ctx context.Context, promptID uuid.UUID) error {
	if _, err := i.store.RefreshStats(ctx, promptID); err != nil {
		return fmt.Errorf("refresh stats: %w", err)
	}
	return nil
}
