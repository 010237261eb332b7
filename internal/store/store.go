// Package store persists users, workspaces, problems, prompts and the tables
// their stats are derived from. Every method that touches more than one row
// runs as a single atomic unit, and every PromptStats value returned is a
// fresh re-aggregation of the source tables.
//
// Errors are *apperr.Error values: NotFound for missing rows and Conflict for
// unique constraint violations.
package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/nikhilbhutani/promptvexity/internal/models"
)

type UserStore interface {
	CreateUser(ctx context.Context, u models.User) (models.User, error)
	GetUser(ctx context.Context, id uuid.UUID) (models.User, error)
}

type WorkspaceStore interface {
	// CreateWorkspace inserts the workspace and its owner membership. A second
	// workspace for the same owner fails with Conflict.
	CreateWorkspace(ctx context.Context, ws models.Workspace) (models.Workspace, error)
	GetWorkspace(ctx context.Context, id uuid.UUID) (models.Workspace, error)
	GetWorkspaceByOwner(ctx context.Context, ownerID uuid.UUID) (models.Workspace, error)
}

type MembershipStore interface {
	GetMembership(ctx context.Context, scope models.MembershipScope, resourceID, userID uuid.UUID) (models.Membership, error)
	UpsertMembership(ctx context.Context, scope models.MembershipScope, m models.Membership) error
	DeleteMembership(ctx context.Context, scope models.MembershipScope, resourceID, userID uuid.UUID) error
	ListMemberships(ctx context.Context, scope models.MembershipScope, resourceID uuid.UUID) ([]models.Membership, error)
}

type ProblemStore interface {
	// CreateProblem inserts the problem and an owner membership for its
	// creator. A duplicate slug within the workspace fails with Conflict.
	CreateProblem(ctx context.Context, p models.Problem) (models.Problem, error)
	GetProblem(ctx context.Context, id uuid.UUID) (models.Problem, error)
	UpdateProblem(ctx context.Context, p models.Problem) (models.Problem, error)
	// ListProblems returns every problem that is not soft-deleted.
	ListProblems(ctx context.Context) ([]models.Problem, error)
}

type PromptStore interface {
	// CreatePrompt inserts the prompt together with its stats row.
	CreatePrompt(ctx context.Context, p models.Prompt) (models.PromptWithStats, error)
	// CreateFork inserts the child prompt, its stats row and the fork event,
	// then recomputes the parent's stats.
	CreateFork(ctx context.Context, child models.Prompt, ev models.ForkEvent) (models.PromptWithStats, error)
	// GetPrompt returns the prompt even when it is soft-deleted.
	GetPrompt(ctx context.Context, id uuid.UUID) (models.Prompt, error)
	GetPromptWithStats(ctx context.Context, id uuid.UUID) (models.PromptWithStats, error)
	UpdatePrompt(ctx context.Context, p models.Prompt) (models.Prompt, error)
	SoftDeletePrompt(ctx context.Context, id, actorID uuid.UUID, at time.Time) error
	SetPromptHidden(ctx context.Context, id uuid.UUID, hidden bool) error
	// ListPromptsByProblem returns the problem's prompts that are not
	// soft-deleted, in no particular order.
	ListPromptsByProblem(ctx context.Context, problemID uuid.UUID) ([]models.PromptWithStats, error)
	// ListChildren returns direct forks of parentID that are not soft-deleted.
	ListChildren(ctx context.Context, parentID uuid.UUID) ([]models.Prompt, error)
	// ListRankablePrompts returns public, listed, visible prompts whose
	// problem is public and visible.
	ListRankablePrompts(ctx context.Context) ([]models.PromptWithStats, error)
	GetStats(ctx context.Context, promptID uuid.UUID) (models.PromptStats, error)
	RefreshStats(ctx context.Context, promptID uuid.UUID) (models.PromptStats, error)
	RecordPromptEvent(ctx context.Context, promptID uuid.UUID, userID *uuid.UUID, kind models.PromptEventKind, at time.Time) (models.PromptStats, error)
}

type VoteStore interface {
	// UpsertVote writes the (prompt, user) vote and re-aggregates the prompt's
	// counters. Concurrent writers on one prompt are serialized.
	UpsertVote(ctx context.Context, v models.Vote) (models.PromptStats, error)
	DeleteVote(ctx context.Context, promptID, userID uuid.UUID) (models.PromptStats, error)
	GetVote(ctx context.Context, promptID, userID uuid.UUID) (models.Vote, error)
}

type ReviewStore interface {
	// CreateReview fails with Conflict when the user already left a review of
	// the same type on the prompt that UTC day.
	CreateReview(ctx context.Context, r models.PromptReview) (models.PromptReview, error)
	ListReviews(ctx context.Context, promptID uuid.UUID) ([]models.PromptReview, error)
}

type ResolveReportParams struct {
	ReportID      uuid.UUID
	ReviewerID    uuid.UUID
	Status        models.ReportStatus
	DeleteContent bool
	At            time.Time
	// Audit is written in the same operation when its Action is set.
	Audit models.AuditLog
}

type ReportStore interface {
	// CreateReport fails with Conflict when the reporter already has a pending
	// report on the same content. The content's report flags are recomputed.
	CreateReport(ctx context.Context, r models.Report) (models.Report, error)
	GetReport(ctx context.Context, id uuid.UUID) (models.Report, error)
	// ListReports filters by status; an empty status returns all reports.
	ListReports(ctx context.Context, status models.ReportStatus) ([]models.Report, error)
	// ResolveReport moves a pending report to its final status, optionally
	// soft-deletes the content, recomputes the content's report flags and
	// writes p.Audit.
	// A report that is no longer pending fails with Conflict.
	ResolveReport(ctx context.Context, p ResolveReportParams) (models.Report, error)
}

type AuditQuery struct {
	Action string
	Limit  int
	Offset int
}

type AuditStore interface {
	InsertAuditLog(ctx context.Context, l models.AuditLog) error
	ListAuditLogs(ctx context.Context, q AuditQuery) ([]models.AuditLog, error)
}

type Store interface {
	UserStore
	WorkspaceStore
	MembershipStore
	ProblemStore
	PromptStore
	VoteStore
	ReviewStore
	ReportStore
	AuditStore
	Ping(ctx context.Context) error
}
