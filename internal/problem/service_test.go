package problem

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/nikhilbhutani/promptvexity/internal/apperr"
	"github.com/nikhilbhutani/promptvexity/internal/audit"
	"github.com/nikhilbhutani/promptvexity/internal/authz"
	"github.com/nikhilbhutani/promptvexity/internal/models"
	"github.com/nikhilbhutani/promptvexity/internal/rank"
	"github.com/nikhilbhutani/promptvexity/internal/store"
	"github.com/nikhilbhutani/promptvexity/internal/workspace"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newService(t *testing.T) (*Service, *store.MemoryStore) {
	t.Helper()
	st := store.NewMemoryStore()
	gate := authz.NewGate(st)
	a := audit.NewService(st)
	views := rank.NewViews(st, nil, time.Minute, nil)
	return NewService(st, gate, workspace.NewService(st, gate, a), views, a), st
}

func newUser(t *testing.T, st *store.MemoryStore) authz.Actor {
	t.Helper()
	u, err := st.CreateUser(context.Background(), models.User{ID: uuid.New()})
	require.NoError(t, err)
	return authz.User(u.ID)
}

func TestNormalizeTags(t *testing.T) {
	got := NormalizeTags([]string{" SQL ", "sql", "", "Data Eng", "  ", "data eng", "llm"})
	assert.Equal(t, []string{"sql", "data eng", "llm"}, got)
	assert.NotNil(t, NormalizeTags(nil))
}

func TestCreate(t *testing.T) {
	ctx := context.Background()
	svc, st := newService(t)
	alice := newUser(t, st)

	p, err := svc.Create(ctx, alice, CreateInput{
		Title:       "  SQL Generator ",
		Description: "Turn questions into SQL",
		Tags:        []string{"SQL", "sql", " Postgres"},
		Inputs:      []string{"schema", " "},
	})
	require.NoError(t, err)
	assert.Equal(t, "sql-generator", p.Slug)
	assert.Equal(t, "SQL Generator", p.Title)
	assert.Equal(t, []string{"sql", "postgres"}, p.Tags)
	assert.Equal(t, []string{"schema"}, p.Inputs)
	assert.Equal(t, models.VisibilityPublic, p.Visibility)
	assert.False(t, p.IsHidden)

	ws, err := st.GetWorkspaceByOwner(ctx, alice.UserID)
	require.NoError(t, err)
	assert.Equal(t, ws.ID, p.WorkspaceID)

	m, err := st.GetMembership(ctx, models.ScopeProblem, p.ID, alice.UserID)
	require.NoError(t, err)
	assert.Equal(t, models.RoleOwner, m.Role)

	again, err := svc.Create(ctx, alice, CreateInput{Title: "SQL generator", Description: "again"})
	require.NoError(t, err)
	assert.NotEqual(t, p.Slug, again.Slug)
	assert.True(t, strings.HasPrefix(again.Slug, "sql-generator-"))
}

func TestCreateValidation(t *testing.T) {
	ctx := context.Background()
	svc, st := newService(t)
	alice := newUser(t, st)

	_, err := svc.Create(ctx, authz.Anonymous(), CreateInput{Title: "x", Description: "y"})
	assert.True(t, apperr.Is(err, apperr.Unauthenticated))

	cases := []CreateInput{
		{Title: " ", Description: "y"},
		{Title: "x", Description: ""},
		{Title: "x", Description: "y", Visibility: "secret"},
		{Title: strings.Repeat("t", maxTitleLen+1), Description: "y"},
		{Title: "x", Description: "y", Tags: []string{"a", "b", "c", "d", "e", "f", "g", "h", "i", "j", "k"}},
	}
	for _, in := range cases {
		_, err := svc.Create(ctx, alice, in)
		assert.True(t, apperr.Is(err, apperr.Validation), "input %+v", in)
	}
}

func TestGetPrivateAndDeleted(t *testing.T) {
	ctx := context.Background()
	svc, st := newService(t)
	alice, bob := newUser(t, st), newUser(t, st)

	p, err := svc.Create(ctx, alice, CreateInput{Title: "Secret", Description: "d", Visibility: models.VisibilityPrivate})
	require.NoError(t, err)

	_, err = svc.Get(ctx, bob, p.ID)
	assert.True(t, apperr.Is(err, apperr.AccessDenied))

	_, err = svc.AddMember(ctx, alice, p.ID, bob.UserID, models.RoleViewer)
	require.NoError(t, err)
	_, err = svc.Get(ctx, bob, p.ID)
	assert.NoError(t, err)

	_, err = svc.Get(ctx, bob, uuid.New())
	assert.True(t, apperr.Is(err, apperr.NotFound))
}

func TestUpdate(t *testing.T) {
	ctx := context.Background()
	svc, st := newService(t)
	alice, bob := newUser(t, st), newUser(t, st)

	p, err := svc.Create(ctx, alice, CreateInput{Title: "Summariser", Description: "d", Tags: []string{"a"}})
	require.NoError(t, err)

	title := "Better summariser"
	_, err = svc.Update(ctx, bob, p.ID, UpdateInput{Title: &title})
	assert.True(t, apperr.Is(err, apperr.AccessDenied))

	updated, err := svc.Update(ctx, alice, p.ID, UpdateInput{Title: &title, Tags: []string{"B", "b"}})
	require.NoError(t, err)
	assert.Equal(t, title, updated.Title)
	assert.Equal(t, "summariser", updated.Slug, "slug is stable across edits")
	assert.Equal(t, []string{"b"}, updated.Tags)
	assert.Equal(t, "d", updated.Description)

	_, err = svc.AddMember(ctx, alice, p.ID, bob.UserID, models.RoleAdmin)
	require.NoError(t, err)
	goal := "shorter"
	_, err = svc.Update(ctx, bob, p.ID, UpdateInput{Goal: &goal})
	assert.NoError(t, err, "problem admins may edit")

	empty := " "
	_, err = svc.Update(ctx, alice, p.ID, UpdateInput{Description: &empty})
	assert.True(t, apperr.Is(err, apperr.Validation))
}

func TestListSorts(t *testing.T) {
	ctx := context.Background()
	svc, st := newService(t)
	alice := newUser(t, st)

	fixed := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return fixed }
	older, err := svc.Create(ctx, alice, CreateInput{Title: "Older", Description: "d"})
	require.NoError(t, err)
	svc.now = func() time.Time { return fixed.Add(time.Hour) }
	newer, err := svc.Create(ctx, alice, CreateInput{Title: "Newer", Description: "d"})
	require.NoError(t, err)
	_, err = svc.Create(ctx, alice, CreateInput{Title: "Hidden away", Description: "d", Visibility: models.VisibilityPrivate})
	require.NoError(t, err)

	got, err := svc.List(ctx, rank.SortNewest, 10, 0)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, newer.ID, got[0].ID)
	assert.Equal(t, older.ID, got[1].ID)

	got, err = svc.List(ctx, rank.SortNewest, 1, 1)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, older.ID, got[0].ID)
}

func TestProblemMembers(t *testing.T) {
	ctx := context.Background()
	svc, st := newService(t)
	alice, bob := newUser(t, st), newUser(t, st)

	p, err := svc.Create(ctx, alice, CreateInput{Title: "Shared", Description: "d"})
	require.NoError(t, err)

	_, err = svc.AddMember(ctx, bob, p.ID, bob.UserID, models.RoleAdmin)
	assert.True(t, apperr.Is(err, apperr.AccessDenied))

	_, err = svc.AddMember(ctx, alice, p.ID, bob.UserID, models.RoleMember)
	require.NoError(t, err)

	members, err := svc.ListMembers(ctx, bob, p.ID)
	require.NoError(t, err)
	assert.Len(t, members, 2)

	err = svc.RemoveMember(ctx, bob, p.ID, alice.UserID)
	assert.Equal(t, "owner_not_removable", apperr.CodeOf(err))
	require.NoError(t, svc.RemoveMember(ctx, alice, p.ID, bob.UserID))

	_, err = svc.ListMembers(ctx, alice, uuid.New())
	assert.True(t, apperr.Is(err, apperr.NotFound))
}
