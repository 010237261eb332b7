package rank

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/nikhilbhutani/promptvexity/internal/cache"
	"github.com/nikhilbhutani/promptvexity/internal/models"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

type countingSource struct {
	mu       sync.Mutex
	prompts  []models.PromptWithStats
	problems []models.Problem
	calls    atomic.Int32
	gate     chan struct{}
}

func (s *countingSource) ListRankablePrompts(context.Context) ([]models.PromptWithStats, error) {
	s.calls.Add(1)
	if s.gate != nil {
		<-s.gate
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.PromptWithStats(nil), s.prompts...), nil
}

func (s *countingSource) ListProblems(context.Context) ([]models.Problem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.Problem(nil), s.problems...), nil
}

func newRedisCache(t *testing.T) *cache.Cache {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return cache.NewCache(client, "pv:")
}

func TestRankPromptsCachesUntilInvalidated(t *testing.T) {
	ctx := context.Background()
	src := &countingSource{prompts: []models.PromptWithStats{item(3, 0, 0, time.Hour), item(9, 0, 0, time.Hour)}}
	v := NewViews(src, newRedisCache(t), time.Minute, nil)

	first, err := v.RankPrompts(ctx, 10)
	require.NoError(t, err)
	require.Len(t, first, 2)
	assert.Equal(t, 9, first[0].Stats.Upvotes)

	_, err = v.RankPrompts(ctx, 1)
	require.NoError(t, err)
	assert.EqualValues(t, 1, src.calls.Load())

	src.mu.Lock()
	src.prompts = append(src.prompts, item(50, 0, 0, time.Hour))
	src.mu.Unlock()
	v.Invalidate(ctx)

	again, err := v.RankPrompts(ctx, 1)
	require.NoError(t, err)
	require.Len(t, again, 1)
	assert.Equal(t, 50, again[0].Stats.Upvotes)
	assert.EqualValues(t, 2, src.calls.Load())
}

func TestRankPromptsWithoutCache(t *testing.T) {
	src := &countingSource{prompts: []models.PromptWithStats{item(1, 0, 0, 0)}}
	v := NewViews(src, nil, time.Minute, nil)

	for range 3 {
		_, err := v.RankPrompts(context.Background(), 5)
		require.NoError(t, err)
	}
	assert.EqualValues(t, 3, src.calls.Load())
	assert.NotPanics(t, func() { v.Invalidate(context.Background()) })
}

func TestConcurrentMissesShareOneLoad(t *testing.T) {
	src := &countingSource{prompts: []models.PromptWithStats{item(1, 0, 0, 0)}, gate: make(chan struct{})}
	v := NewViews(src, nil, time.Minute, nil)

	var g errgroup.Group
	for range 8 {
		g.Go(func() error {
			_, err := v.RankPrompts(context.Background(), 5)
			return err
		})
	}
	// Let every goroutine block inside the shared call before releasing it.
	require.Eventually(t, func() bool { return src.calls.Load() == 1 }, time.Second, time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	assert.EqualValues(t, 1, src.calls.Load())
	close(src.gate)
	require.NoError(t, g.Wait())
}

func TestRankProblemsSkipsHiddenAndPrivate(t *testing.T) {
	visible := models.Problem{ID: uuid.New(), Visibility: models.VisibilityPublic, CreatedAt: now}
	hidden := models.Problem{ID: uuid.New(), Visibility: models.VisibilityPublic, Moderation: models.Moderation{IsHidden: true}}
	private := models.Problem{ID: uuid.New(), Visibility: models.VisibilityPrivate}
	p := item(2, 0, 0, time.Hour)
	p.ProblemID = visible.ID

	src := &countingSource{prompts: []models.PromptWithStats{p}, problems: []models.Problem{visible, hidden, private}}
	v := NewViews(src, newRedisCache(t), time.Minute, nil)

	got, err := v.RankProblems(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, visible.ID, got[0].ID)
	assert.Equal(t, 1, got[0].PromptCount)
}
