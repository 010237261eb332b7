package rank

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nikhilbhutani/promptvexity/internal/cache"
	"github.com/nikhilbhutani/promptvexity/internal/metrics"
	"github.com/nikhilbhutani/promptvexity/internal/models"
	"golang.org/x/sync/singleflight"
)

const (
	promptsKey  = "rank:prompts"
	problemsKey = "rank:problems"
)

type ViewCache interface {
	Get(ctx context.Context, key string, dest any) error
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
}

type Source interface {
	ListRankablePrompts(ctx context.Context) ([]models.PromptWithStats, error)
	ListProblems(ctx context.Context) ([]models.Problem, error)
}

// Invalidator is implemented by anything holding rank read views that go
// stale after votes, forks or moderation.
type Invalidator interface {
	Invalidate(ctx context.Context)
}

// Views serves the ranked prompt and problem listings. Results are cached
// for ttl when a cache is configured; concurrent misses on one key share a
// single recomputation.
type Views struct {
	source  Source
	cache   ViewCache
	ttl     time.Duration
	now     func() time.Time
	metrics *metrics.Metrics
	group   singleflight.Group
}

// NewViews accepts a nil cache, in which case every read recomputes.
func NewViews(source Source, c ViewCache, ttl time.Duration, m *metrics.Metrics) *Views {
	return &Views{source: source, cache: c, ttl: ttl, now: time.Now, metrics: m}
}

func (v *Views) RankPrompts(ctx context.Context, limit int) ([]RankedPrompt, error) {
	all, err := load(ctx, v, promptsKey, func(ctx context.Context) ([]RankedPrompt, error) {
		prompts, err := v.source.ListRankablePrompts(ctx)
		if err != nil {
			return nil, fmt.Errorf("list rankable prompts: %w", err)
		}
		return SortPrompts(prompts, SortBest, v.now()), nil
	})
	if err != nil {
		return nil, err
	}
	return Page(all, limit, 0), nil
}

func (v *Views) RankProblems(ctx context.Context, limit int) ([]RankedProblem, error) {
	all, err := load(ctx, v, problemsKey, func(ctx context.Context) ([]RankedProblem, error) {
		return v.scoredProblems(ctx, SortBest)
	})
	if err != nil {
		return nil, err
	}
	return Page(all, limit, 0), nil
}

// ListProblems returns every public, visible problem in the requested order.
// It reads through to the source; only the best-first view is cached.
func (v *Views) ListProblems(ctx context.Context, by Sort) ([]RankedProblem, error) {
	if by == SortBest {
		return v.RankProblems(ctx, 0)
	}
	return v.scoredProblems(ctx, by)
}

func (v *Views) scoredProblems(ctx context.Context, by Sort) ([]RankedProblem, error) {
	problems, err := v.source.ListProblems(ctx)
	if err != nil {
		return nil, fmt.Errorf("list problems: %w", err)
	}
	visible := problems[:0:0]
	for _, p := range problems {
		if p.Visibility == models.VisibilityPublic && !p.IsHidden && !p.IsDeleted {
			visible = append(visible, p)
		}
	}
	prompts, err := v.source.ListRankablePrompts(ctx)
	if err != nil {
		return nil, fmt.Errorf("list rankable prompts: %w", err)
	}
	scored := ScoreProblems(visible, prompts, v.now())
	SortProblems(scored, by)
	return scored, nil
}

// Invalidate drops the cached views. Failures are logged; the TTL bounds
// how long a stale view can survive. A load already in flight may still
// write its older result after the delete, also bounded by the TTL.
func (v *Views) Invalidate(ctx context.Context) {
	if v.cache == nil {
		return
	}
	if err := v.cache.Delete(ctx, promptsKey, problemsKey); err != nil {
		slog.Warn("invalidate rank views", "error", err)
	}
}

func load[T any](ctx context.Context, v *Views, key string, compute func(context.Context) ([]T, error)) ([]T, error) {
	if v.cache != nil {
		var cached []T
		err := v.cache.Get(ctx, key, &cached)
		if err == nil {
			v.metrics.RecordCacheLookup(true)
			return cached, nil
		}
		if !errors.Is(err, cache.ErrMiss) {
			slog.Warn("read rank view cache", "key", key, "error", err)
		}
		v.metrics.RecordCacheLookup(false)
	}

	res, err, _ := v.group.Do(key, func() (any, error) {
		out, err := compute(ctx)
		if err != nil {
			return nil, err
		}
		if v.cache != nil {
			if err := v.cache.Set(ctx, key, out, v.ttl); err != nil {
				slog.Warn("write rank view cache", "key", key, "error", err)
			}
		}
		return out, nil
	})
	if err != nil {
		return nil, err
	}
	return res.([]T), nil
}
