package rank

import (
	"math"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/nikhilbhutani/promptvexity/internal/apperr"
	"github.com/nikhilbhutani/promptvexity/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func item(up, down, forks int, age time.Duration) models.PromptWithStats {
	id := uuid.New()
	return models.PromptWithStats{
		Prompt: models.Prompt{ID: id, CreatedAt: now.Add(-age)},
		Stats:  models.PromptStats{PromptID: id, Upvotes: up, Downvotes: down, ForkCount: forks},
	}
}

func score(it models.PromptWithStats) float64 {
	return Score(it.Prompt, it.Stats, now)
}

func TestScoreFormula(t *testing.T) {
	it := item(5, 2, 3, 48*time.Hour)
	want := math.Log(4) + 0.5*math.Log(4) + 1.0/3.0
	assert.InDelta(t, want, score(it), 1e-9)

	neg := item(0, 3, 0, 0)
	assert.InDelta(t, -math.Log(4)+1, score(neg), 1e-9)
}

func TestScoreMonotonic(t *testing.T) {
	for up := range 50 {
		assert.Less(t, score(item(up, 3, 2, time.Hour)), score(item(up+1, 3, 2, time.Hour)), "upvotes %d", up)
	}
	for down := range 50 {
		assert.GreaterOrEqual(t, score(item(4, down, 2, time.Hour)), score(item(4, down+1, 2, time.Hour)), "downvotes %d", down)
	}
	for forks := range 50 {
		assert.Less(t, score(item(4, 1, forks, time.Hour)), score(item(4, 1, forks+1, time.Hour)), "forks %d", forks)
	}
	assert.Greater(t, score(item(3, 0, 0, time.Hour)), score(item(3, 0, 0, 72*time.Hour)))
}

func TestScoreFutureCreatedAtClamps(t *testing.T) {
	assert.InDelta(t, 1.0, score(item(0, 0, 0, -time.Hour)), 1e-9)
}

func TestSortTopIsExact(t *testing.T) {
	a := item(10, 9, 0, 5*time.Hour)
	b := item(10, 0, 0, time.Hour)
	c := item(3, 0, 40, 0)
	d := item(11, 50, 0, 100*time.Hour)

	got := SortPrompts([]models.PromptWithStats{a, b, c, d}, SortTop, now)
	ids := []uuid.UUID{got[0].ID, got[1].ID, got[2].ID, got[3].ID}
	assert.Equal(t, []uuid.UUID{d.ID, b.ID, a.ID, c.ID}, ids)
}

func TestSortNewest(t *testing.T) {
	old := item(100, 0, 0, 10*time.Hour)
	fresh := item(0, 0, 0, time.Minute)

	got := SortPrompts([]models.PromptWithStats{old, fresh}, SortNewest, now)
	assert.Equal(t, fresh.ID, got[0].ID)
}

func TestSortBest(t *testing.T) {
	weak := item(1, 0, 0, time.Hour)
	strong := item(20, 1, 4, 24*time.Hour)

	got := SortPrompts([]models.PromptWithStats{weak, strong}, SortBest, now)
	assert.Equal(t, strong.ID, got[0].ID)
	assert.Greater(t, got[0].RankScore, got[1].RankScore)
}

func TestSortTiesBreakByID(t *testing.T) {
	a := item(2, 0, 0, time.Hour)
	b := item(2, 0, 0, time.Hour)
	first := SortPrompts([]models.PromptWithStats{a, b}, SortTop, now)
	second := SortPrompts([]models.PromptWithStats{b, a}, SortTop, now)
	assert.Equal(t, first[0].ID, second[0].ID)
}

func TestScoreProblems(t *testing.T) {
	busy := models.Problem{ID: uuid.New(), CreatedAt: now.Add(-time.Hour)}
	empty := models.Problem{ID: uuid.New(), CreatedAt: now}

	p1 := item(4, 0, 1, 2*time.Hour)
	p1.ProblemID = busy.ID
	p2 := item(1, 0, 0, time.Hour)
	p2.ProblemID = busy.ID

	got := ScoreProblems([]models.Problem{busy, empty}, []models.PromptWithStats{p1, p2}, now)
	require.Len(t, got, 2)

	want := math.Max(score(p1), score(p2)) + 0.25*math.Log(3)
	assert.InDelta(t, want, got[0].RankScore, 1e-9)
	assert.Equal(t, 2, got[0].PromptCount)
	assert.Equal(t, 5, got[0].Upvotes)
	require.NotNil(t, got[0].BestPromptID)
	assert.Equal(t, p1.ID, *got[0].BestPromptID)

	assert.Zero(t, got[1].RankScore)
	assert.Nil(t, got[1].BestPromptID)

	SortProblems(got, SortBest)
	assert.Equal(t, busy.ID, got[0].ID)
	SortProblems(got, SortNewest)
	assert.Equal(t, empty.ID, got[0].ID)
}

func TestParseSort(t *testing.T) {
	for in, want := range map[string]Sort{"": SortNewest, "top": SortTop, " Best ": SortBest, "newest": SortNewest} {
		got, err := ParseSort(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := ParseSort("random")
	assert.True(t, apperr.Is(err, apperr.Validation))
}

func TestPage(t *testing.T) {
	items := []int{1, 2, 3, 4, 5}
	assert.Equal(t, []int{1, 2}, Page(items, 2, 0))
	assert.Equal(t, []int{4, 5}, Page(items, 10, 3))
	assert.Equal(t, []int{3, 4, 5}, Page(items, 0, 2))
	assert.Equal(t, []int{}, Page(items, 2, 9))
}
