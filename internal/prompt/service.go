// Package prompt handles submissions, forks and template rendering for the
// prompts written against a problem.
package prompt

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/nikhilbhutani/promptvexity/internal/apperr"
	"github.com/nikhilbhutani/promptvexity/internal/audit"
	"github.com/nikhilbhutani/promptvexity/internal/authz"
	"github.com/nikhilbhutani/promptvexity/internal/lineage"
	"github.com/nikhilbhutani/promptvexity/internal/metrics"
	"github.com/nikhilbhutani/promptvexity/internal/models"
	"github.com/nikhilbhutani/promptvexity/internal/rank"
	"github.com/nikhilbhutani/promptvexity/internal/slug"
	"github.com/nikhilbhutani/promptvexity/internal/workspace"
)

const (
	maxTitleLen      = 200
	maxModelLen      = 100
	maxForkReasonLen = 500
)

type Store interface {
	GetProblem(ctx context.Context, id uuid.UUID) (models.Problem, error)
	CreatePrompt(ctx context.Context, p models.Prompt) (models.PromptWithStats, error)
	CreateFork(ctx context.Context, child models.Prompt, ev models.ForkEvent) (models.PromptWithStats, error)
	GetPrompt(ctx context.Context, id uuid.UUID) (models.Prompt, error)
	GetPromptWithStats(ctx context.Context, id uuid.UUID) (models.PromptWithStats, error)
	UpdatePrompt(ctx context.Context, p models.Prompt) (models.Prompt, error)
	SoftDeletePrompt(ctx context.Context, id, actorID uuid.UUID, at time.Time) error
	SetPromptHidden(ctx context.Context, id uuid.UUID, hidden bool) error
	ListPromptsByProblem(ctx context.Context, problemID uuid.UUID) ([]models.PromptWithStats, error)
}

// EventRecorder accepts view and copy events. The queue client enqueues them;
// queue.Inline writes them straight to the store.
type EventRecorder interface {
	RecordEvent(ctx context.Context, promptID uuid.UUID, userID *uuid.UUID, kind models.PromptEventKind) error
}

type Deps struct {
	Store      Store
	Gate       *authz.Gate
	Lineage    *lineage.Resolver
	Workspaces *workspace.Service
	Views      rank.Invalidator
	Events     EventRecorder
	Audit      *audit.Service
	Metrics    *metrics.Metrics
}

type Service struct {
	store      Store
	gate       *authz.Gate
	lineage    *lineage.Resolver
	workspaces *workspace.Service
	views      rank.Invalidator
	events     EventRecorder
	audit      *audit.Service
	metrics    *metrics.Metrics
	now        func() time.Time
}

func NewService(d Deps) *Service {
	return &Service{
		store:      d.Store,
		gate:       d.Gate,
		lineage:    d.Lineage,
		workspaces: d.Workspaces,
		views:      d.Views,
		events:     d.Events,
		audit:      d.Audit,
		metrics:    d.Metrics,
		now:        time.Now,
	}
}

type CreateInput struct {
	ProblemID     uuid.UUID           `json:"problem_id"`
	Title         string              `json:"title"`
	SystemPrompt  string              `json:"system_prompt"`
	UserTemplate  string              `json:"user_template"`
	Model         string              `json:"model"`
	Params        json.RawMessage     `json:"params"`
	ExampleInput  string              `json:"example_input"`
	ExampleOutput string              `json:"example_output"`
	Notes         string              `json:"notes"`
	Status        models.PromptStatus `json:"status"`
	Visibility    models.Visibility   `json:"visibility"`
	IsListed      *bool               `json:"is_listed"`
}

// UpdateInput changes only the fields that are set.
type UpdateInput struct {
	Title         *string              `json:"title"`
	SystemPrompt  *string              `json:"system_prompt"`
	UserTemplate  *string              `json:"user_template"`
	Model         *string              `json:"model"`
	Params        json.RawMessage      `json:"params"`
	ExampleInput  *string              `json:"example_input"`
	ExampleOutput *string              `json:"example_output"`
	Notes         *string              `json:"notes"`
	Status        *models.PromptStatus `json:"status"`
	Visibility    *models.Visibility   `json:"visibility"`
	IsListed      *bool                `json:"is_listed"`
}

type ForkInput struct {
	Title          string `json:"title"`
	ForkReason     string `json:"fork_reason"`
	ChangesSummary string `json:"changes_summary"`
}

type RenderResult struct {
	SystemPrompt string   `json:"system_prompt"`
	UserPrompt   string   `json:"user_prompt"`
	Variables    []string `json:"variables"`
}

func validateTitle(title string) error {
	switch {
	case title == "":
		return apperr.Validationf("title is required")
	case len(title) > maxTitleLen:
		return apperr.Validationf("title must be at most %d characters", maxTitleLen)
	}
	return nil
}

// normalizeParams returns "{}" for empty params and rejects anything that is
// not a JSON object.
func normalizeParams(raw json.RawMessage) (json.RawMessage, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return json.RawMessage("{}"), nil
	}
	var obj map[string]any
	if err := json.Unmarshal(trimmed, &obj); err != nil {
		return nil, apperr.Validationf("params must be a JSON object")
	}
	return json.RawMessage(trimmed), nil
}

// listed derives is_listed. Unlisted and private prompts are never listed.
func listed(vis models.Visibility, requested *bool) bool {
	if vis != models.VisibilityPublic {
		return false
	}
	return requested == nil || *requested
}

func validateBody(p models.Prompt) error {
	if err := validateTitle(p.Title); err != nil {
		return err
	}
	if strings.TrimSpace(p.SystemPrompt) == "" && strings.TrimSpace(p.UserTemplate) == "" {
		return apperr.Validationf("system_prompt or user_template is required")
	}
	if len(p.Model) > maxModelLen {
		return apperr.Validationf("model must be at most %d characters", maxModelLen)
	}
	if !p.Status.Valid() {
		return apperr.Validationf("unknown status %q", p.Status)
	}
	if !p.Visibility.Valid() {
		return apperr.Validationf("unknown visibility %q", p.Visibility)
	}
	return nil
}

// Create submits an original prompt for a problem the actor can see.
func (s *Service) Create(ctx context.Context, actor authz.Actor, in CreateInput) (models.PromptWithStats, error) {
	if err := actor.RequireUser(); err != nil {
		return models.PromptWithStats{}, err
	}
	if in.Status == "" {
		in.Status = models.PromptStatusPublished
	}
	if in.Visibility == "" {
		in.Visibility = models.VisibilityPublic
	}
	params, err := normalizeParams(in.Params)
	if err != nil {
		return models.PromptWithStats{}, err
	}
	draft := models.Prompt{
		ProblemID:     in.ProblemID,
		CreatedBy:     actor.UserID,
		Title:         strings.TrimSpace(in.Title),
		SystemPrompt:  in.SystemPrompt,
		UserTemplate:  in.UserTemplate,
		Model:         strings.TrimSpace(in.Model),
		Params:        params,
		ExampleInput:  in.ExampleInput,
		ExampleOutput: in.ExampleOutput,
		Notes:         in.Notes,
		Status:        in.Status,
		Visibility:    in.Visibility,
		IsListed:      listed(in.Visibility, in.IsListed),
	}
	if err := validateBody(draft); err != nil {
		return models.PromptWithStats{}, err
	}

	problem, err := s.store.GetProblem(ctx, in.ProblemID)
	if err != nil {
		return models.PromptWithStats{}, err
	}
	if problem.IsDeleted {
		return models.PromptWithStats{}, apperr.NotFoundf("problem %s not found", in.ProblemID)
	}
	ok, err := s.gate.CanViewProblem(ctx, actor, problem)
	if err != nil {
		return models.PromptWithStats{}, err
	}
	if !ok {
		return models.PromptWithStats{}, apperr.AccessDeniedf("not allowed to submit to this problem")
	}

	ws, err := s.workspaces.Ensure(ctx, actor.UserID)
	if err != nil {
		return models.PromptWithStats{}, err
	}
	draft.WorkspaceID = ws.ID

	now := s.now().UTC()
	draft.CreatedAt, draft.UpdatedAt = now, now
	out, err := slug.Unique(slug.Make(draft.Title), func(sl string) (models.PromptWithStats, error) {
		p := draft
		p.ID = uuid.New()
		p.Slug = sl
		return s.store.CreatePrompt(ctx, p)
	})
	if err != nil {
		return models.PromptWithStats{}, fmt.Errorf("create prompt: %w", err)
	}

	s.invalidate(ctx)
	return out, nil
}

// visible loads a prompt the actor may see. Soft-deleted prompts are missing
// to everyone except platform admins.
func (s *Service) visible(ctx context.Context, actor authz.Actor, id uuid.UUID) (models.Prompt, error) {
	p, err := s.store.GetPrompt(ctx, id)
	if err != nil {
		return models.Prompt{}, err
	}
	if p.IsDeleted && !actor.PlatformAdmin {
		return models.Prompt{}, apperr.NotFoundf("prompt %s not found", id)
	}
	ok, err := s.gate.CanViewPrompt(ctx, actor, p)
	if err != nil {
		return models.Prompt{}, err
	}
	if !ok {
		return models.Prompt{}, apperr.AccessDeniedf("not allowed to view this prompt")
	}
	return p, nil
}

func (s *Service) Get(ctx context.Context, actor authz.Actor, id uuid.UUID) (models.PromptWithStats, error) {
	if _, err := s.visible(ctx, actor, id); err != nil {
		return models.PromptWithStats{}, err
	}
	return s.store.GetPromptWithStats(ctx, id)
}

// Update edits the prompt's content. Only the creator may do this; moderation
// flags, lineage and ownership are never touched.
func (s *Service) Update(ctx context.Context, actor authz.Actor, id uuid.UUID, in UpdateInput) (models.PromptWithStats, error) {
	if err := actor.RequireUser(); err != nil {
		return models.PromptWithStats{}, err
	}
	p, err := s.store.GetPrompt(ctx, id)
	if err != nil {
		return models.PromptWithStats{}, err
	}
	if p.IsDeleted {
		return models.PromptWithStats{}, apperr.NotFoundf("prompt %s not found", id)
	}
	if !s.gate.CanEditPrompt(actor, p) {
		return models.PromptWithStats{}, apperr.AccessDeniedf("only the creator can edit this prompt")
	}

	if in.Title != nil {
		p.Title = strings.TrimSpace(*in.Title)
	}
	if in.SystemPrompt != nil {
		p.SystemPrompt = *in.SystemPrompt
	}
	if in.UserTemplate != nil {
		p.UserTemplate = *in.UserTemplate
	}
	if in.Model != nil {
		p.Model = strings.TrimSpace(*in.Model)
	}
	if in.Params != nil {
		params, err := normalizeParams(in.Params)
		if err != nil {
			return models.PromptWithStats{}, err
		}
		p.Params = params
	}
	if in.ExampleInput != nil {
		p.ExampleInput = *in.ExampleInput
	}
	if in.ExampleOutput != nil {
		p.ExampleOutput = *in.ExampleOutput
	}
	if in.Notes != nil {
		p.Notes = *in.Notes
	}
	if in.Status != nil {
		p.Status = *in.Status
	}
	if in.Visibility != nil {
		p.Visibility = *in.Visibility
	}
	requested := in.IsListed
	if requested == nil {
		requested = &p.IsListed
	}
	p.IsListed = listed(p.Visibility, requested)
	if err := validateBody(p); err != nil {
		return models.PromptWithStats{}, err
	}
	p.UpdatedAt = s.now().UTC()

	if _, err := s.store.UpdatePrompt(ctx, p); err != nil {
		return models.PromptWithStats{}, fmt.Errorf("update prompt: %w", err)
	}
	s.invalidate(ctx)
	return s.store.GetPromptWithStats(ctx, id)
}

// Delete soft-deletes the prompt. The creator and admins of the prompt's
// workspace or problem may do this.
func (s *Service) Delete(ctx context.Context, actor authz.Actor, id uuid.UUID) error {
	if err := actor.RequireUser(); err != nil {
		return err
	}
	p, err := s.store.GetPrompt(ctx, id)
	if err != nil {
		return err
	}
	if p.IsDeleted {
		return apperr.NotFoundf("prompt %s not found", id)
	}
	ok, err := s.gate.CanDeletePrompt(ctx, actor, p)
	if err != nil {
		return err
	}
	if !ok {
		return apperr.AccessDeniedf("not allowed to delete this prompt")
	}

	if err := s.store.SoftDeletePrompt(ctx, id, actor.UserID, s.now().UTC()); err != nil {
		return fmt.Errorf("delete prompt: %w", err)
	}
	s.invalidate(ctx)
	s.log(ctx, audit.LogEntry{
		ActorID:      actor.UserID,
		Action:       audit.ActionPromptDeleted,
		ResourceType: string(models.ContentPrompt),
		ResourceID:   id,
	})
	return nil
}

// SetHidden toggles the moderation hidden flag.
func (s *Service) SetHidden(ctx context.Context, actor authz.Actor, id uuid.UUID, hidden bool) error {
	if err := actor.RequireUser(); err != nil {
		return err
	}
	p, err := s.store.GetPrompt(ctx, id)
	if err != nil {
		return err
	}
	if p.IsDeleted {
		return apperr.NotFoundf("prompt %s not found", id)
	}
	ok, err := s.gate.IsModerator(ctx, actor, p.WorkspaceID, p.ProblemID)
	if err != nil {
		return err
	}
	if !ok {
		return apperr.AccessDeniedf("only moderators can hide prompts")
	}

	if err := s.store.SetPromptHidden(ctx, id, hidden); err != nil {
		return fmt.Errorf("set prompt hidden: %w", err)
	}
	s.invalidate(ctx)
	s.log(ctx, audit.LogEntry{
		ActorID:      actor.UserID,
		Action:       audit.ActionPromptHidden,
		ResourceType: string(models.ContentPrompt),
		ResourceID:   id,
		Details:      map[string]any{"hidden": hidden},
	})
	return nil
}

// Fork copies the parent's content into a new draft in the forker's
// workspace. Moderation state and counters always start from zero.
func (s *Service) Fork(ctx context.Context, actor authz.Actor, parentID uuid.UUID, in ForkInput) (models.PromptWithStats, error) {
	if err := actor.RequireUser(); err != nil {
		return models.PromptWithStats{}, err
	}
	parent, err := s.store.GetPrompt(ctx, parentID)
	if apperr.Is(err, apperr.NotFound) || (err == nil && parent.IsDeleted) {
		return models.PromptWithStats{}, apperr.New(apperr.NotFound, "parent_not_found", "parent prompt not found")
	}
	if err != nil {
		return models.PromptWithStats{}, fmt.Errorf("get parent prompt: %w", err)
	}
	ok, err := s.gate.CanFork(ctx, actor, parent)
	if err != nil {
		return models.PromptWithStats{}, err
	}
	if !ok {
		return models.PromptWithStats{}, apperr.AccessDeniedf("not allowed to fork this prompt")
	}

	title := strings.TrimSpace(in.Title)
	if title == "" {
		title = parent.Title
	}
	if err := validateTitle(title); err != nil {
		return models.PromptWithStats{}, err
	}
	reason := strings.TrimSpace(in.ForkReason)
	switch {
	case reason == "":
		return models.PromptWithStats{}, apperr.Validationf("fork_reason is required")
	case len(reason) > maxForkReasonLen:
		return models.PromptWithStats{}, apperr.Validationf("fork_reason must be at most %d characters", maxForkReasonLen)
	}
	summary := strings.TrimSpace(in.ChangesSummary)

	ws, err := s.workspaces.Ensure(ctx, actor.UserID)
	if err != nil {
		return models.PromptWithStats{}, err
	}
	if err := s.lineage.CheckAcyclic(ctx, parent.ID); err != nil {
		return models.PromptWithStats{}, err
	}

	params, err := normalizeParams(parent.Params)
	if err != nil {
		params = json.RawMessage("{}")
	}
	now := s.now().UTC()
	pid := parent.ID
	out, err := slug.Unique(slug.Make(title), func(sl string) (models.PromptWithStats, error) {
		child := models.Prompt{
			ID:                 uuid.New(),
			ProblemID:          parent.ProblemID,
			WorkspaceID:        ws.ID,
			ParentPromptID:     &pid,
			CreatedBy:          actor.UserID,
			Slug:               sl,
			Title:              title,
			SystemPrompt:       parent.SystemPrompt,
			UserTemplate:       parent.UserTemplate,
			Model:              parent.Model,
			Params:             append(json.RawMessage(nil), params...),
			ExampleInput:       parent.ExampleInput,
			ExampleOutput:      parent.ExampleOutput,
			Notes:              parent.Notes,
			ImprovementSummary: summary,
			Status:             models.PromptStatusDraft,
			Visibility:         parent.Visibility,
			IsListed:           listed(parent.Visibility, nil),
			CreatedAt:          now,
			UpdatedAt:          now,
		}
		return s.store.CreateFork(ctx, child, models.ForkEvent{
			ID:             uuid.New(),
			ParentPromptID: parent.ID,
			ForkedBy:       actor.UserID,
			ForkReason:     reason,
			ChangesSummary: summary,
			CreatedAt:      now,
		})
	})
	if err != nil {
		return models.PromptWithStats{}, fmt.Errorf("create fork: %w", err)
	}

	s.metrics.RecordFork()
	s.invalidate(ctx)
	s.log(ctx, audit.LogEntry{
		ActorID:      actor.UserID,
		Action:       audit.ActionPromptForked,
		ResourceType: string(models.ContentPrompt),
		ResourceID:   out.ID,
		Details:      map[string]any{"parent_prompt_id": parent.ID.String(), "fork_reason": reason},
	})
	return out, nil
}

// ListByProblem returns the problem's prompts the actor may see in a listing.
// Unlisted prompts only show up for their creator.
func (s *Service) ListByProblem(ctx context.Context, actor authz.Actor, problemID uuid.UUID, by rank.Sort, limit, offset int) ([]rank.RankedPrompt, error) {
	problem, err := s.store.GetProblem(ctx, problemID)
	if err != nil {
		return nil, err
	}
	if problem.IsDeleted && !actor.PlatformAdmin {
		return nil, apperr.NotFoundf("problem %s not found", problemID)
	}
	ok, err := s.gate.CanViewProblem(ctx, actor, problem)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apperr.AccessDeniedf("not allowed to view this problem")
	}

	all, err := s.store.ListPromptsByProblem(ctx, problemID)
	if err != nil {
		return nil, fmt.Errorf("list prompts: %w", err)
	}
	items := make([]models.PromptWithStats, 0, len(all))
	for _, p := range all {
		own := actor.Authenticated() && p.CreatedBy == actor.UserID
		if !own && (p.Visibility == models.VisibilityUnlisted || (p.Visibility == models.VisibilityPublic && !p.IsListed)) {
			continue
		}
		ok, err := s.gate.CanViewPrompt(ctx, actor, p.Prompt)
		if err != nil {
			return nil, err
		}
		if ok {
			items = append(items, p)
		}
	}
	return rank.Page(rank.SortPrompts(items, by, s.now()), limit, offset), nil
}

// Render fills the prompt's templates with vars.
func (s *Service) Render(ctx context.Context, actor authz.Actor, id uuid.UUID, vars map[string]string) (RenderResult, error) {
	p, err := s.visible(ctx, actor, id)
	if err != nil {
		return RenderResult{}, err
	}
	system, err := Render(p.SystemPrompt, vars)
	if err != nil {
		return RenderResult{}, err
	}
	user, err := Render(p.UserTemplate, vars)
	if err != nil {
		return RenderResult{}, err
	}
	return RenderResult{
		SystemPrompt: system,
		UserPrompt:   user,
		Variables:    ExtractVariables(p.SystemPrompt, p.UserTemplate),
	}, nil
}

func (s *Service) RecordView(ctx context.Context, actor authz.Actor, id uuid.UUID) {
	s.record(ctx, actor, id, models.PromptEventView)
}

func (s *Service) RecordCopy(ctx context.Context, actor authz.Actor, id uuid.UUID) {
	s.record(ctx, actor, id, models.PromptEventCopy)
}

// record never fails the caller; analytics are best effort.
func (s *Service) record(ctx context.Context, actor authz.Actor, id uuid.UUID, kind models.PromptEventKind) {
	if s.events == nil {
		return
	}
	var userID *uuid.UUID
	if actor.Authenticated() {
		uid := actor.UserID
		userID = &uid
	}
	if err := s.events.RecordEvent(ctx, id, userID, kind); err != nil {
		s.metrics.RecordEnqueueFailure("prompt:" + string(kind))
		slog.Warn("failed to record prompt event", "prompt_id", id, "kind", kind, "error", err)
	}
}

func (s *Service) invalidate(ctx context.Context) {
	if s.views != nil {
		s.views.Invalidate(ctx)
	}
}

func (s *Service) log(ctx context.Context, entry audit.LogEntry) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Log(ctx, entry); err != nil {
		slog.Warn("failed to write audit log", "action", entry.Action, "error", err)
	}
}
