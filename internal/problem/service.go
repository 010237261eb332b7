// Package problem manages the problems prompts are written against.
package problem

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/nikhilbhutani/promptvexity/internal/apperr"
	"github.com/nikhilbhutani/promptvexity/internal/audit"
	"github.com/nikhilbhutani/promptvexity/internal/authz"
	"github.com/nikhilbhutani/promptvexity/internal/models"
	"github.com/nikhilbhutani/promptvexity/internal/rank"
	"github.com/nikhilbhutani/promptvexity/internal/slug"
	"github.com/nikhilbhutani/promptvexity/internal/workspace"
)

const (
	maxTitleLen = 200
	maxTags     = 10
)

type Store interface {
	workspace.MemberStore
	CreateProblem(ctx context.Context, p models.Problem) (models.Problem, error)
	GetProblem(ctx context.Context, id uuid.UUID) (models.Problem, error)
	UpdateProblem(ctx context.Context, p models.Problem) (models.Problem, error)
}

type Lister interface {
	ListProblems(ctx context.Context, by rank.Sort) ([]rank.RankedProblem, error)
}

type Service struct {
	store      Store
	gate       *authz.Gate
	workspaces *workspace.Service
	lister     Lister
	members    *workspace.Members
	now        func() time.Time
}

func NewService(st Store, gate *authz.Gate, ws *workspace.Service, lister Lister, a *audit.Service) *Service {
	return &Service{
		store:      st,
		gate:       gate,
		workspaces: ws,
		lister:     lister,
		members:    workspace.NewMembers(models.ScopeProblem, st, gate, a),
		now:        time.Now,
	}
}

type CreateInput struct {
	Title           string            `json:"title"`
	Description     string            `json:"description"`
	Goal            string            `json:"goal"`
	Inputs          []string          `json:"inputs"`
	Constraints     []string          `json:"constraints"`
	SuccessCriteria []string          `json:"success_criteria"`
	Tags            []string          `json:"tags"`
	Industry        string            `json:"industry"`
	Visibility      models.Visibility `json:"visibility"`
}

// UpdateInput changes only the fields that are set.
type UpdateInput struct {
	Title           *string            `json:"title"`
	Description     *string            `json:"description"`
	Goal            *string            `json:"goal"`
	Inputs          []string           `json:"inputs"`
	Constraints     []string           `json:"constraints"`
	SuccessCriteria []string           `json:"success_criteria"`
	Tags            []string           `json:"tags"`
	Industry        *string            `json:"industry"`
	Visibility      *models.Visibility `json:"visibility"`
}

// NormalizeTags trims and lowercases tags, dropping blanks and repeats while
// keeping the first-seen order.
func NormalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := make(map[string]struct{}, len(tags))
	for _, t := range tags {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}

func cleanList(items []string) []string {
	out := make([]string, 0, len(items))
	for _, it := range items {
		if it = strings.TrimSpace(it); it != "" {
			out = append(out, it)
		}
	}
	return out
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

func (s *Service) Create(ctx context.Context, actor authz.Actor, in CreateInput) (models.Problem, error) {
	if err := actor.RequireUser(); err != nil {
		return models.Problem{}, err
	}
	in.Title = strings.TrimSpace(in.Title)
	if err := validateTitle(in.Title); err != nil {
		return models.Problem{}, err
	}
	if strings.TrimSpace(in.Description) == "" {
		return models.Problem{}, apperr.Validationf("description is required")
	}
	if in.Visibility == "" {
		in.Visibility = models.VisibilityPublic
	}
	if !in.Visibility.Valid() {
		return models.Problem{}, apperr.Validationf("unknown visibility %q", in.Visibility)
	}
	tags := NormalizeTags(in.Tags)
	if len(tags) > maxTags {
		return models.Problem{}, apperr.Validationf("at most %d tags are allowed", maxTags)
	}

	ws, err := s.workspaces.Ensure(ctx, actor.UserID)
	if err != nil {
		return models.Problem{}, err
	}

	now := s.now().UTC()
	p, err := slug.Unique(slug.Make(in.Title), func(sl string) (models.Problem, error) {
		return s.store.CreateProblem(ctx, models.Problem{
			ID:              uuid.New(),
			WorkspaceID:     ws.ID,
			CreatedBy:       actor.UserID,
			Slug:            sl,
			Title:           in.Title,
			Description:     strings.TrimSpace(in.Description),
			Goal:            strings.TrimSpace(in.Goal),
			Inputs:          cleanList(in.Inputs),
			Constraints:     cleanList(in.Constraints),
			SuccessCriteria: cleanList(in.SuccessCriteria),
			Tags:            tags,
			Industry:        strings.TrimSpace(in.Industry),
			Visibility:      in.Visibility,
			CreatedAt:       now,
			UpdatedAt:       now,
		})
	})
	if err != nil {
		return models.Problem{}, fmt.Errorf("create problem: %w", err)
	}
	return p, nil
}

// Get hides soft-deleted problems from everyone but platform admins.
func (s *Service) Get(ctx context.Context, actor authz.Actor, id uuid.UUID) (models.Problem, error) {
	p, err := s.store.GetProblem(ctx, id)
	if err != nil {
		return models.Problem{}, err
	}
	if p.IsDeleted && !actor.PlatformAdmin {
		return models.Problem{}, apperr.NotFoundf("problem %s not found", id)
	}
	ok, err := s.gate.CanViewProblem(ctx, actor, p)
	if err != nil {
		return models.Problem{}, err
	}
	if !ok {
		return models.Problem{}, apperr.AccessDeniedf("not allowed to view this problem")
	}
	return p, nil
}

// List returns public, visible problems in the requested order.
func (s *Service) List(ctx context.Context, by rank.Sort, limit, offset int) ([]rank.RankedProblem, error) {
	all, err := s.lister.ListProblems(ctx, by)
	if err != nil {
		return nil, err
	}
	return rank.Page(all, limit, offset), nil
}

func (s *Service) Update(ctx context.Context, actor authz.Actor, id uuid.UUID, in UpdateInput) (models.Problem, error) {
	if err := actor.RequireUser(); err != nil {
		return models.Problem{}, err
	}
	p, err := s.store.GetProblem(ctx, id)
	if err != nil {
		return models.Problem{}, err
	}
	if p.IsDeleted {
		return models.Problem{}, apperr.NotFoundf("problem %s not found", id)
	}
	ok, err := s.gate.CanEditProblem(ctx, actor, p)
	if err != nil {
		return models.Problem{}, err
	}
	if !ok {
		return models.Problem{}, apperr.AccessDeniedf("only the creator or an admin can edit this problem")
	}

	if in.Title != nil {
		title := strings.TrimSpace(*in.Title)
		if err := validateTitle(title); err != nil {
			return models.Problem{}, err
		}
		p.Title = title
	}
	if in.Description != nil {
		if strings.TrimSpace(*in.Description) == "" {
			return models.Problem{}, apperr.Validationf("description cannot be empty")
		}
		p.Description = strings.TrimSpace(*in.Description)
	}
	if in.Goal != nil {
		p.Goal = strings.TrimSpace(*in.Goal)
	}
	if in.Industry != nil {
		p.Industry = strings.TrimSpace(*in.Industry)
	}
	if in.Visibility != nil {
		if !in.Visibility.Valid() {
			return models.Problem{}, apperr.Validationf("unknown visibility %q", *in.Visibility)
		}
		p.Visibility = *in.Visibility
	}
	if in.Inputs != nil {
		p.Inputs = cleanList(in.Inputs)
	}
	if in.Constraints != nil {
		p.Constraints = cleanList(in.Constraints)
	}
	if in.SuccessCriteria != nil {
		p.SuccessCriteria = cleanList(in.SuccessCriteria)
	}
	if in.Tags != nil {
		tags := NormalizeTags(in.Tags)
		if len(tags) > maxTags {
			return models.Problem{}, apperr.Validationf("at most %d tags are allowed", maxTags)
		}
		p.Tags = tags
	}
	p.UpdatedAt = s.now().UTC()

	updated, err := s.store.UpdateProblem(ctx, p)
	if err != nil {
		return models.Problem{}, fmt.Errorf("update problem: %w", err)
	}
	return updated, nil
}

func (s *Service) AddMember(ctx context.Context, actor authz.Actor, problemID, userID uuid.UUID, role models.Role) (models.Membership, error) {
	if _, err := s.store.GetProblem(ctx, problemID); err != nil {
		return models.Membership{}, err
	}
	return s.members.Add(ctx, actor, problemID, userID, role)
}

func (s *Service) RemoveMember(ctx context.Context, actor authz.Actor, problemID, userID uuid.UUID) error {
	if _, err := s.store.GetProblem(ctx, problemID); err != nil {
		return err
	}
	return s.members.Remove(ctx, actor, problemID, userID)
}

func (s *Service) ListMembers(ctx context.Context, actor authz.Actor, problemID uuid.UUID) ([]models.Membership, error) {
	if _, err := s.store.GetProblem(ctx, problemID); err != nil {
		return nil, err
	}
	return s.members.List(ctx, actor, problemID)
}
