package vote

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/google/uuid"
	"github.com/nikhilbhutani/promptvexity/internal/apperr"
	"github.com/nikhilbhutani/promptvexity/internal/authz"
	"github.com/nikhilbhutani/promptvexity/internal/models"
	"github.com/nikhilbhutani/promptvexity/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

type countingInvalidator struct{ n atomic.Int32 }

func (c *countingInvalidator) Invalidate(context.Context) { c.n.Add(1) }

func setup(t *testing.T, vis models.Visibility) (*Service, *store.MemoryStore, models.Prompt, *countingInvalidator) {
	t.Helper()
	ctx := context.Background()
	st := store.NewMemoryStore()
	owner := uuid.New()
	ws, err := st.CreateWorkspace(ctx, models.Workspace{OwnerID: owner, Name: "ws", Slug: "ws"})
	require.NoError(t, err)
	pr, err := st.CreateProblem(ctx, models.Problem{WorkspaceID: ws.ID, CreatedBy: owner, Slug: "p", Title: "P", Visibility: models.VisibilityPublic})
	require.NoError(t, err)
	p, err := st.CreatePrompt(ctx, models.Prompt{
		ProblemID: pr.ID, WorkspaceID: ws.ID, CreatedBy: owner,
		Slug: "prompt", Title: "Prompt", Status: models.PromptStatusPublished, Visibility: vis, IsListed: true,
	})
	require.NoError(t, err)

	inv := &countingInvalidator{}
	return NewService(st, authz.NewGate(st), inv, nil), st, p.Prompt, inv
}

func TestCastVoteIsIdempotent(t *testing.T) {
	ctx := context.Background()
	svc, _, p, inv := setup(t, models.VisibilityPublic)
	voter := authz.User(uuid.New())

	for range 3 {
		st, err := svc.CastVote(ctx, voter, p.ID, 1)
		require.NoError(t, err)
		assert.Equal(t, 1, st.Upvotes)
		assert.Equal(t, 0, st.Downvotes)
		assert.Equal(t, 1, st.Score)
	}
	assert.EqualValues(t, 3, inv.n.Load())
}

func TestCastVoteFlipAndClear(t *testing.T) {
	ctx := context.Background()
	svc, _, p, _ := setup(t, models.VisibilityPublic)
	voter := authz.User(uuid.New())
	other := authz.User(uuid.New())

	_, err := svc.CastVote(ctx, other, p.ID, 1)
	require.NoError(t, err)
	_, err = svc.CastVote(ctx, voter, p.ID, 1)
	require.NoError(t, err)

	st, err := svc.CastVote(ctx, voter, p.ID, -1)
	require.NoError(t, err)
	assert.Equal(t, 1, st.Upvotes)
	assert.Equal(t, 1, st.Downvotes)
	assert.Equal(t, 0, st.Score)

	v, ok, err := svc.GetUserVote(ctx, voter, p.ID)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, -1, v)

	st, err = svc.ClearVote(ctx, voter, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, st.Upvotes)
	assert.Equal(t, 0, st.Downvotes)

	_, ok, err = svc.GetUserVote(ctx, voter, p.ID)
	require.NoError(t, err)
	assert.False(t, ok)

	st, err = svc.ClearVote(ctx, voter, p.ID)
	require.NoError(t, err, "clearing twice is a no-op")
	assert.Equal(t, 1, st.Upvotes)
}

func TestCastVoteErrors(t *testing.T) {
	ctx := context.Background()
	svc, st, p, _ := setup(t, models.VisibilityPublic)
	voter := authz.User(uuid.New())

	_, err := svc.CastVote(ctx, authz.Anonymous(), p.ID, 1)
	assert.True(t, apperr.Is(err, apperr.Unauthenticated))

	_, err = svc.CastVote(ctx, authz.Anonymous(), p.ID, 7)
	assert.True(t, apperr.Is(err, apperr.Unauthenticated), "authentication is checked first")

	for _, bad := range []int{0, 2, -2} {
		_, err = svc.CastVote(ctx, voter, p.ID, bad)
		assert.True(t, apperr.Is(err, apperr.Validation), "value %d", bad)
	}

	_, err = svc.CastVote(ctx, voter, uuid.New(), 1)
	assert.True(t, apperr.Is(err, apperr.NotFound))

	require.NoError(t, st.SoftDeletePrompt(ctx, p.ID, p.CreatedBy, p.CreatedAt))
	_, err = svc.CastVote(ctx, voter, p.ID, 1)
	assert.True(t, apperr.Is(err, apperr.NotFound))
}

func TestCastVoteOnPrivatePrompt(t *testing.T) {
	ctx := context.Background()
	svc, st, p, _ := setup(t, models.VisibilityPrivate)

	_, err := svc.CastVote(ctx, authz.User(uuid.New()), p.ID, 1)
	assert.True(t, apperr.Is(err, apperr.AccessDenied))

	member := uuid.New()
	require.NoError(t, st.UpsertMembership(ctx, models.ScopeWorkspace, models.Membership{
		ResourceID: p.WorkspaceID, UserID: member, Role: models.RoleViewer,
	}))
	_, err = svc.CastVote(ctx, authz.User(member), p.ID, 1)
	assert.NoError(t, err)
}

func TestConcurrentVotesAreAllCounted(t *testing.T) {
	ctx := context.Background()
	svc, st, p, _ := setup(t, models.VisibilityPublic)

	const voters = 64
	var g errgroup.Group
	for i := range voters {
		g.Go(func() error {
			value := 1
			if i%4 == 0 {
				value = -1
			}
			u := authz.User(uuid.New())
			if _, err := svc.CastVote(ctx, u, p.ID, value); err != nil {
				return err
			}
			// Re-voting the same value must not change the totals.
			_, err := svc.CastVote(ctx, u, p.ID, value)
			return err
		})
	}
	require.NoError(t, g.Wait())

	stats, err := st.GetStats(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 48, stats.Upvotes)
	assert.Equal(t, 16, stats.Downvotes)
	assert.Equal(t, 32, stats.Score)
}

func TestGetUserVoteAnonymous(t *testing.T) {
	svc, _, p, _ := setup(t, models.VisibilityPublic)

	_, ok, err := svc.GetUserVote(context.Background(), authz.Anonymous(), p.ID)
	require.NoError(t, err)
	assert.False(t, ok)
}
