// Package workspace gives every user exactly one personal workspace and
// manages who else belongs to it.
package workspace

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/nikhilbhutani/promptvexity/internal/apperr"
	"github.com/nikhilbhutani/promptvexity/internal/audit"
	"github.com/nikhilbhutani/promptvexity/internal/authz"
	"github.com/nikhilbhutani/promptvexity/internal/models"
)

type Store interface {
	MemberStore
	CreateWorkspace(ctx context.Context, ws models.Workspace) (models.Workspace, error)
	GetWorkspace(ctx context.Context, id uuid.UUID) (models.Workspace, error)
	GetWorkspaceByOwner(ctx context.Context, ownerID uuid.UUID) (models.Workspace, error)
}

type Service struct {
	store   Store
	members *Members
}

func NewService(st Store, gate *authz.Gate, a *audit.Service) *Service {
	return &Service{store: st, members: NewMembers(models.ScopeWorkspace, st, gate, a)}
}

// Ensure returns the user's workspace, creating it on first use. The insert
// is attempted first; losing a race to a concurrent caller surfaces as a
// unique violation, after which the winner's row is read back.
func (s *Service) Ensure(ctx context.Context, userID uuid.UUID) (models.Workspace, error) {
	if userID == uuid.Nil {
		return models.Workspace{}, apperr.Unauthenticatedf("sign in required")
	}

	ws, err := s.store.CreateWorkspace(ctx, models.Workspace{
		ID:      uuid.New(),
		OwnerID: userID,
		Name:    "Personal workspace",
		Slug:    defaultSlug(userID),
	})
	if err == nil {
		return ws, nil
	}
	if !apperr.Is(err, apperr.Conflict) {
		return models.Workspace{}, fmt.Errorf("create workspace: %w", err)
	}

	ws, err = s.store.GetWorkspaceByOwner(ctx, userID)
	if err != nil {
		return models.Workspace{}, fmt.Errorf("reselect workspace: %w", err)
	}
	return ws, nil
}

func defaultSlug(userID uuid.UUID) string {
	return "ws-" + strings.ReplaceAll(userID.String(), "-", "")[:12]
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (models.Workspace, error) {
	return s.store.GetWorkspace(ctx, id)
}

func (s *Service) AddMember(ctx context.Context, actor authz.Actor, workspaceID, userID uuid.UUID, role models.Role) (models.Membership, error) {
	if _, err := s.store.GetWorkspace(ctx, workspaceID); err != nil {
		return models.Membership{}, err
	}
	return s.members.Add(ctx, actor, workspaceID, userID, role)
}

func (s *Service) RemoveMember(ctx context.Context, actor authz.Actor, workspaceID, userID uuid.UUID) error {
	if _, err := s.store.GetWorkspace(ctx, workspaceID); err != nil {
		return err
	}
	return s.members.Remove(ctx, actor, workspaceID, userID)
}

func (s *Service) ListMembers(ctx context.Context, actor authz.Actor, workspaceID uuid.UUID) ([]models.Membership, error) {
	if _, err := s.store.GetWorkspace(ctx, workspaceID); err != nil {
		return nil, err
	}
	return s.members.List(ctx, actor, workspaceID)
}
