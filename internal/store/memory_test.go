package store

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/nikhilbhutani/promptvexity/internal/apperr"
	"github.com/nikhilbhutani/promptvexity/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

type fixture struct {
	st      *MemoryStore
	ws      models.Workspace
	problem models.Problem
	owner   uuid.UUID
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	ctx := context.Background()
	st := NewMemoryStore()
	owner := uuid.New()
	ws, err := st.CreateWorkspace(ctx, models.Workspace{OwnerID: owner, Name: "owner", Slug: "owner"})
	require.NoError(t, err)
	pr, err := st.CreateProblem(ctx, models.Problem{
		WorkspaceID: ws.ID,
		CreatedBy:   owner,
		Slug:        "sql",
		Title:       "SQL",
		Visibility:  models.VisibilityPublic,
	})
	require.NoError(t, err)
	return fixture{st: st, ws: ws, problem: pr, owner: owner}
}

func (f fixture) prompt(t *testing.T, slug string) models.PromptWithStats {
	t.Helper()
	p, err := f.st.CreatePrompt(context.Background(), models.Prompt{
		ProblemID:   f.problem.ID,
		WorkspaceID: f.ws.ID,
		CreatedBy:   f.owner,
		Slug:        slug,
		Title:       slug,
		Status:      models.PromptStatusPublished,
		Visibility:  models.VisibilityPublic,
		IsListed:    true,
	})
	require.NoError(t, err)
	return p
}

func TestCreateProblemAddsOwnerMembership(t *testing.T) {
	f := newFixture(t)

	m, err := f.st.GetMembership(context.Background(), models.ScopeProblem, f.problem.ID, f.owner)
	require.NoError(t, err)
	assert.Equal(t, models.RoleOwner, m.Role)
}

func TestCreatePromptConflictsAndMissingProblem(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.prompt(t, "sql-generator")

	_, err := f.st.CreatePrompt(ctx, models.Prompt{ProblemID: f.problem.ID, WorkspaceID: f.ws.ID, Slug: "sql-generator"})
	assert.True(t, apperr.Is(err, apperr.Conflict))

	_, err = f.st.CreatePrompt(ctx, models.Prompt{ProblemID: uuid.New(), WorkspaceID: f.ws.ID, Slug: "other"})
	assert.True(t, apperr.Is(err, apperr.NotFound))
}

func TestCreateForkRecountsParent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	parent := f.prompt(t, "root")

	child, err := f.st.CreateFork(ctx, models.Prompt{
		ProblemID:      f.problem.ID,
		WorkspaceID:    f.ws.ID,
		ParentPromptID: &parent.ID,
		Slug:           "root-2",
	}, models.ForkEvent{ParentPromptID: parent.ID, ForkedBy: f.owner, ForkReason: "tighter"})
	require.NoError(t, err)
	assert.Equal(t, 0, child.Stats.ForkCount)

	st, err := f.st.GetStats(ctx, parent.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, st.ForkCount)

	children, err := f.st.ListChildren(ctx, parent.ID)
	require.NoError(t, err)
	require.Len(t, children, 1)
	assert.Equal(t, child.ID, children[0].ID)
}

func TestCreateForkOfDeletedParent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	parent := f.prompt(t, "root")
	require.NoError(t, f.st.SoftDeletePrompt(ctx, parent.ID, f.owner, time.Now()))

	_, err := f.st.CreateFork(ctx, models.Prompt{ProblemID: f.problem.ID, WorkspaceID: f.ws.ID, Slug: "x"},
		models.ForkEvent{ParentPromptID: parent.ID})
	assert.Equal(t, "parent_not_found", apperr.CodeOf(err))
}

func TestStatsAreReaggregated(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.prompt(t, "root")
	alice, bob := uuid.New(), uuid.New()

	_, err := f.st.UpsertVote(ctx, models.Vote{PromptID: p.ID, UserID: alice, Value: 1})
	require.NoError(t, err)
	_, err = f.st.UpsertVote(ctx, models.Vote{PromptID: p.ID, UserID: bob, Value: -1})
	require.NoError(t, err)
	st, err := f.st.UpsertVote(ctx, models.Vote{PromptID: p.ID, UserID: bob, Value: 1})
	require.NoError(t, err)
	assert.Equal(t, 2, st.Upvotes)
	assert.Equal(t, 0, st.Downvotes)
	assert.Equal(t, 2, st.Score)

	_, err = f.st.RecordPromptEvent(ctx, p.ID, nil, models.PromptEventView, time.Now())
	require.NoError(t, err)
	st, err = f.st.RecordPromptEvent(ctx, p.ID, &alice, models.PromptEventCopy, time.Now())
	require.NoError(t, err)
	assert.Equal(t, 1, st.ViewCount)
	assert.Equal(t, 1, st.CopyCount)

	st, err = f.st.DeleteVote(ctx, p.ID, alice)
	require.NoError(t, err)
	assert.Equal(t, 1, st.Score)

	refreshed, err := f.st.RefreshStats(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, st.Upvotes, refreshed.Upvotes)
	assert.Equal(t, st.ViewCount, refreshed.ViewCount)
}

func TestConcurrentUpsertVote(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.prompt(t, "root")

	var g errgroup.Group
	for range 50 {
		g.Go(func() error {
			_, err := f.st.UpsertVote(ctx, models.Vote{PromptID: p.ID, UserID: uuid.New(), Value: 1})
			return err
		})
	}
	require.NoError(t, g.Wait())

	st, err := f.st.GetStats(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 50, st.Upvotes)
	assert.Equal(t, 50, st.Score)
}

func TestListRankablePromptsFilters(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	visible := f.prompt(t, "visible")
	hidden := f.prompt(t, "hidden")
	deleted := f.prompt(t, "deleted")
	require.NoError(t, f.st.SetPromptHidden(ctx, hidden.ID, true))
	require.NoError(t, f.st.SoftDeletePrompt(ctx, deleted.ID, f.owner, time.Now()))
	_, err := f.st.CreatePrompt(ctx, models.Prompt{
		ProblemID: f.problem.ID, WorkspaceID: f.ws.ID, Slug: "private",
		Visibility: models.VisibilityPrivate,
	})
	require.NoError(t, err)

	got, err := f.st.ListRankablePrompts(ctx)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, visible.ID, got[0].ID)
}

func TestReviewDailyUniqueness(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.prompt(t, "root")
	user := uuid.New()
	day := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	_, err := f.st.CreateReview(ctx, models.PromptReview{PromptID: p.ID, UserID: user, Type: models.ReviewWorked, CreatedAt: day})
	require.NoError(t, err)
	_, err = f.st.CreateReview(ctx, models.PromptReview{PromptID: p.ID, UserID: user, Type: models.ReviewWorked, CreatedAt: day.Add(3 * time.Hour)})
	assert.Equal(t, "duplicate_review", apperr.CodeOf(err))
	_, err = f.st.CreateReview(ctx, models.PromptReview{PromptID: p.ID, UserID: user, Type: models.ReviewWorked, CreatedAt: day.Add(24 * time.Hour)})
	require.NoError(t, err)

	st, err := f.st.GetStats(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, st.WorksCount)
	assert.Equal(t, 2, st.ReviewsCount)
}

func TestReportFlagsFollowPendingReports(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.prompt(t, "root")
	ref := models.PromptRef{ID: p.ID}
	reviewer := uuid.New()

	r1, err := f.st.CreateReport(ctx, models.Report{Content: ref, ReporterID: uuid.New(), Reason: models.ReasonSpam})
	require.NoError(t, err)
	_, err = f.st.CreateReport(ctx, models.Report{Content: ref, ReporterID: r1.ReporterID, Reason: models.ReasonSpam})
	assert.Equal(t, "duplicate_report", apperr.CodeOf(err))

	got, err := f.st.GetPrompt(ctx, p.ID)
	require.NoError(t, err)
	assert.True(t, got.IsReported)
	assert.Equal(t, 1, got.ReportCount)

	_, err = f.st.ResolveReport(ctx, ResolveReportParams{ReportID: r1.ID, ReviewerID: reviewer, Status: models.ReportDismissed})
	require.NoError(t, err)
	got, err = f.st.GetPrompt(ctx, p.ID)
	require.NoError(t, err)
	assert.False(t, got.IsReported)
	assert.Equal(t, 1, got.ReportCount)
	assert.False(t, got.IsDeleted)

	_, err = f.st.ResolveReport(ctx, ResolveReportParams{ReportID: r1.ID, ReviewerID: reviewer, Status: models.ReportResolved})
	assert.True(t, apperr.Is(err, apperr.Conflict))
}

func TestResolveReportDeletesProblemAndAudits(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ref := models.ProblemRef{ID: f.problem.ID}
	reviewer := uuid.New()

	r, err := f.st.CreateReport(ctx, models.Report{Content: ref, ReporterID: uuid.New(), Reason: models.ReasonOffensive})
	require.NoError(t, err)

	_, err = f.st.ResolveReport(ctx, ResolveReportParams{
		ReportID:      r.ID,
		ReviewerID:    reviewer,
		Status:        models.ReportResolved,
		DeleteContent: true,
		Audit:         models.AuditLog{Action: "report.resolved", ResourceID: &r.ID},
	})
	require.NoError(t, err)

	pr, err := f.st.GetProblem(ctx, f.problem.ID)
	require.NoError(t, err)
	assert.True(t, pr.IsDeleted)
	require.NotNil(t, pr.DeletedBy)
	assert.Equal(t, reviewer, *pr.DeletedBy)

	logs, err := f.st.ListAuditLogs(ctx, AuditQuery{Action: "report.resolved"})
	require.NoError(t, err)
	require.Len(t, logs, 1)
	require.NotNil(t, logs[0].ResourceID)
	assert.Equal(t, r.ID, *logs[0].ResourceID)
}

func TestWorkspacePerOwner(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.st.CreateWorkspace(ctx, models.Workspace{OwnerID: f.owner, Name: "again", Slug: "again"})
	assert.True(t, apperr.Is(err, apperr.Conflict))

	got, err := f.st.GetWorkspaceByOwner(ctx, f.owner)
	require.NoError(t, err)
	assert.Equal(t, f.ws.ID, got.ID)

	m, err := f.st.GetMembership(ctx, models.ScopeWorkspace, f.ws.ID, f.owner)
	require.NoError(t, err)
	assert.Equal(t, models.RoleOwner, m.Role)
}
