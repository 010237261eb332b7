// Package moderation runs the report queue. Anyone signed in may report a
// prompt or problem; only platform admins resolve reports.
package moderation

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/nikhilbhutani/promptvexity/internal/apperr"
	"github.com/nikhilbhutani/promptvexity/internal/audit"
	"github.com/nikhilbhutani/promptvexity/internal/authz"
	"github.com/nikhilbhutani/promptvexity/internal/metrics"
	"github.com/nikhilbhutani/promptvexity/internal/models"
	"github.com/nikhilbhutani/promptvexity/internal/rank"
	"github.com/nikhilbhutani/promptvexity/internal/store"
)

const maxDetailsLen = 1000

type Action string

const (
	ActionDismiss Action = "dismiss"
	ActionResolve Action = "resolve"
)

type Store interface {
	GetPrompt(ctx context.Context, id uuid.UUID) (models.Prompt, error)
	GetProblem(ctx context.Context, id uuid.UUID) (models.Problem, error)
	CreateReport(ctx context.Context, r models.Report) (models.Report, error)
	GetReport(ctx context.Context, id uuid.UUID) (models.Report, error)
	ListReports(ctx context.Context, status models.ReportStatus) ([]models.Report, error)
	ResolveReport(ctx context.Context, p store.ResolveReportParams) (models.Report, error)
}

type Service struct {
	store   Store
	gate    *authz.Gate
	audit   *audit.Service
	views   rank.Invalidator
	metrics *metrics.Metrics
	now     func() time.Time
}

func NewService(st Store, gate *authz.Gate, a *audit.Service, views rank.Invalidator, m *metrics.Metrics) *Service {
	return &Service{store: st, gate: gate, audit: a, views: views, metrics: m, now: time.Now}
}

// canSee checks that the reported content exists, is not deleted and is
// visible to the reporter.
func (s *Service) canSee(ctx context.Context, actor authz.Actor, ref models.ContentRef) error {
	var (
		ok  bool
		err error
	)
	switch ref := ref.(type) {
	case models.PromptRef:
		var p models.Prompt
		if p, err = s.store.GetPrompt(ctx, ref.ID); err != nil {
			return err
		}
		if p.IsDeleted {
			return apperr.NotFoundf("prompt %s not found", ref.ID)
		}
		ok, err = s.gate.CanViewPrompt(ctx, actor, p)
	case models.ProblemRef:
		var p models.Problem
		if p, err = s.store.GetProblem(ctx, ref.ID); err != nil {
			return err
		}
		if p.IsDeleted {
			return apperr.NotFoundf("problem %s not found", ref.ID)
		}
		ok, err = s.gate.CanViewProblem(ctx, actor, p)
	default:
		return apperr.Validationf("unsupported content")
	}
	if err != nil {
		return err
	}
	if !ok {
		return apperr.AccessDeniedf("not allowed to view this content")
	}
	return nil
}

func (s *Service) CreateReport(ctx context.Context, actor authz.Actor, ref models.ContentRef, reason models.ReportReason, details string) (models.Report, error) {
	if err := actor.RequireUser(); err != nil {
		return models.Report{}, err
	}
	if ref == nil {
		return models.Report{}, apperr.Validationf("content is required")
	}
	if !reason.Valid() {
		return models.Report{}, apperr.Validationf("unknown report reason %q", reason)
	}
	details = strings.TrimSpace(details)
	switch {
	case reason == models.ReasonOther && details == "":
		return models.Report{}, apperr.Validationf("details are required when the reason is other")
	case len(details) > maxDetailsLen:
		return models.Report{}, apperr.Validationf("details must be at most %d characters", maxDetailsLen)
	}
	if err := s.canSee(ctx, actor, ref); err != nil {
		return models.Report{}, err
	}

	r, err := s.store.CreateReport(ctx, models.Report{
		ID:         uuid.New(),
		Content:    ref,
		ReporterID: actor.UserID,
		Reason:     reason,
		Details:    details,
		Status:     models.ReportPending,
		CreatedAt:  s.now().UTC(),
	})
	if err != nil {
		return models.Report{}, fmt.Errorf("create report: %w", err)
	}
	s.metrics.RecordReport("created")
	return r, nil
}

// ResolveReport closes a pending report. Deleting the content is only
// possible when resolving.
func (s *Service) ResolveReport(ctx context.Context, actor authz.Actor, reportID uuid.UUID, action Action, deleteContent bool) (models.Report, error) {
	if err := requireAdmin(actor); err != nil {
		return models.Report{}, err
	}
	var (
		status      models.ReportStatus
		auditAction string
	)
	switch action {
	case ActionResolve:
		status, auditAction = models.ReportResolved, audit.ActionReportResolve
	case ActionDismiss:
		if deleteContent {
			return models.Report{}, apperr.Validationf("delete_content is only allowed when resolving")
		}
		status, auditAction = models.ReportDismissed, audit.ActionReportDismiss
	default:
		return models.Report{}, apperr.Validationf("action must be dismiss or resolve, got %q", action)
	}

	existing, err := s.store.GetReport(ctx, reportID)
	if err != nil {
		return models.Report{}, err
	}

	now := s.now().UTC()
	params := store.ResolveReportParams{
		ReportID:      reportID,
		ReviewerID:    actor.UserID,
		Status:        status,
		DeleteContent: deleteContent,
		At:            now,
	}
	if s.audit != nil {
		params.Audit = s.audit.Entry(audit.LogEntry{
			ActorID:      actor.UserID,
			Action:       auditAction,
			ResourceType: "report",
			ResourceID:   reportID,
			Details: map[string]any{
				"content_type":   string(existing.Content.ContentType()),
				"content_id":     existing.Content.ContentID().String(),
				"delete_content": deleteContent,
			},
		})
	}

	r, err := s.store.ResolveReport(ctx, params)
	if err != nil {
		return models.Report{}, fmt.Errorf("resolve report: %w", err)
	}
	s.metrics.RecordReport(string(status))
	if deleteContent && s.views != nil {
		s.views.Invalidate(ctx)
	}
	return r, nil
}

func (s *Service) ListReports(ctx context.Context, actor authz.Actor, status models.ReportStatus) ([]models.Report, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	switch status {
	case "", models.ReportPending, models.ReportResolved, models.ReportDismissed:
	default:
		return nil, apperr.Validationf("unknown report status %q", status)
	}
	reports, err := s.store.ListReports(ctx, status)
	if err != nil {
		return nil, fmt.Errorf("list reports: %w", err)
	}
	return reports, nil
}

func requireAdmin(actor authz.Actor) error {
	if err := actor.RequireUser(); err != nil {
		return err
	}
	if !actor.PlatformAdmin {
		return apperr.AccessDeniedf("platform admin required")
	}
	return nil
}
