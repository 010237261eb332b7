// Package authz decides who may see and change prompts, problems and
// memberships. Services call it with an explicit Actor; nothing is read from
// the request context here.
package authz

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/nikhilbhutani/promptvexity/internal/apperr"
	"github.com/nikhilbhutani/promptvexity/internal/models"
)

// Actor is the caller of a service operation. The zero value is anonymous.
type Actor struct {
	UserID        uuid.UUID
	PlatformAdmin bool
}

func Anonymous() Actor { return Actor{} }

func User(id uuid.UUID) Actor { return Actor{UserID: id} }

func ActorFor(u *models.User) Actor {
	if u == nil {
		return Anonymous()
	}
	return Actor{UserID: u.ID, PlatformAdmin: u.Role == models.PlatformRoleAdmin}
}

func (a Actor) Authenticated() bool { return a.UserID != uuid.Nil }

// RequireUser returns Unauthenticated for anonymous actors.
func (a Actor) RequireUser() error {
	if !a.Authenticated() {
		return apperr.Unauthenticatedf("sign in required")
	}
	return nil
}

var roleRank = map[models.Role]int{
	models.RoleViewer: 1,
	models.RoleMember: 2,
	models.RoleAdmin:  3,
	models.RoleOwner:  4,
}

func ValidRole(r models.Role) bool {
	_, ok := roleRank[r]
	return ok
}

// AtLeast reports whether have ranks at or above want. Unknown roles rank
// below viewer.
func AtLeast(have, want models.Role) bool {
	return roleRank[have] >= roleRank[want]
}

type MembershipReader interface {
	GetMembership(ctx context.Context, scope models.MembershipScope, resourceID, userID uuid.UUID) (models.Membership, error)
}

type Gate struct {
	members MembershipReader
}

func NewGate(members MembershipReader) *Gate {
	return &Gate{members: members}
}

// Role returns the actor's role on the resource, or "" when there is none.
func (g *Gate) Role(ctx context.Context, actor Actor, scope models.MembershipScope, resourceID uuid.UUID) (models.Role, error) {
	if !actor.Authenticated() {
		return "", nil
	}
	m, err := g.members.GetMembership(ctx, scope, resourceID, actor.UserID)
	if apperr.Is(err, apperr.NotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("get membership: %w", err)
	}
	return m.Role, nil
}

func (g *Gate) hasRole(ctx context.Context, actor Actor, scope models.MembershipScope, resourceID uuid.UUID, want models.Role) (bool, error) {
	role, err := g.Role(ctx, actor, scope, resourceID)
	if err != nil {
		return false, err
	}
	return role != "" && AtLeast(role, want), nil
}

// IsModerator reports admin or owner rights on either the workspace or the
// problem. Platform admins always qualify.
func (g *Gate) IsModerator(ctx context.Context, actor Actor, workspaceID, problemID uuid.UUID) (bool, error) {
	if !actor.Authenticated() {
		return false, nil
	}
	if actor.PlatformAdmin {
		return true, nil
	}
	ok, err := g.hasRole(ctx, actor, models.ScopeWorkspace, workspaceID, models.RoleAdmin)
	if err != nil || ok {
		return ok, err
	}
	if problemID == uuid.Nil {
		return false, nil
	}
	return g.hasRole(ctx, actor, models.ScopeProblem, problemID, models.RoleAdmin)
}

func (g *Gate) isMember(ctx context.Context, actor Actor, scope models.MembershipScope, resourceID uuid.UUID) (bool, error) {
	return g.hasRole(ctx, actor, scope, resourceID, models.RoleViewer)
}

// CanViewProblem applies visibility and the hidden flag. Deleted problems are
// handled by callers as not found.
func (g *Gate) CanViewProblem(ctx context.Context, actor Actor, p models.Problem) (bool, error) {
	if actor.PlatformAdmin || (actor.Authenticated() && actor.UserID == p.CreatedBy) {
		return true, nil
	}
	if p.IsHidden {
		return g.IsModerator(ctx, actor, p.WorkspaceID, p.ID)
	}
	if p.Visibility != models.VisibilityPrivate {
		return true, nil
	}
	ok, err := g.isMember(ctx, actor, models.ScopeProblem, p.ID)
	if err != nil || ok {
		return ok, err
	}
	return g.isMember(ctx, actor, models.ScopeWorkspace, p.WorkspaceID)
}

// CanViewPrompt applies the same rules as CanViewProblem, with membership
// taken from the prompt's workspace or its problem.
func (g *Gate) CanViewPrompt(ctx context.Context, actor Actor, p models.Prompt) (bool, error) {
	if actor.PlatformAdmin || (actor.Authenticated() && actor.UserID == p.CreatedBy) {
		return true, nil
	}
	if p.IsHidden {
		return g.IsModerator(ctx, actor, p.WorkspaceID, p.ProblemID)
	}
	if p.Visibility != models.VisibilityPrivate {
		return true, nil
	}
	ok, err := g.isMember(ctx, actor, models.ScopeWorkspace, p.WorkspaceID)
	if err != nil || ok {
		return ok, err
	}
	return g.isMember(ctx, actor, models.ScopeProblem, p.ProblemID)
}

// CanFork allows forking public, visible prompts. Anything hidden, unlisted
// or private needs membership in the parent's workspace.
func (g *Gate) CanFork(ctx context.Context, actor Actor, parent models.Prompt) (bool, error) {
	if !actor.Authenticated() {
		return false, nil
	}
	if parent.Visibility == models.VisibilityPublic && !parent.IsHidden {
		return true, nil
	}
	return g.isMember(ctx, actor, models.ScopeWorkspace, parent.WorkspaceID)
}

// CanEditPrompt is reserved to the creator.
func (g *Gate) CanEditPrompt(actor Actor, p models.Prompt) bool {
	return actor.Authenticated() && actor.UserID == p.CreatedBy
}

func (g *Gate) CanDeletePrompt(ctx context.Context, actor Actor, p models.Prompt) (bool, error) {
	if g.CanEditPrompt(actor, p) {
		return true, nil
	}
	return g.IsModerator(ctx, actor, p.WorkspaceID, p.ProblemID)
}

func (g *Gate) CanEditProblem(ctx context.Context, actor Actor, p models.Problem) (bool, error) {
	if actor.Authenticated() && actor.UserID == p.CreatedBy {
		return true, nil
	}
	return g.IsModerator(ctx, actor, p.WorkspaceID, p.ID)
}

// CanManageMembers requires admin or owner on the resource itself.
func (g *Gate) CanManageMembers(ctx context.Context, actor Actor, scope models.MembershipScope, resourceID uuid.UUID) (bool, error) {
	return g.hasRole(ctx, actor, scope, resourceID, models.RoleAdmin)
}

// CheckGrant validates a role being handed out. Owner is never grantable.
func CheckGrant(role models.Role) error {
	if !ValidRole(role) {
		return apperr.Validationf("unknown role %q", role)
	}
	if role == models.RoleOwner {
		return apperr.New(apperr.AccessDenied, "owner_not_grantable", "the owner role cannot be granted")
	}
	return nil
}

// CheckRemoval enforces who may remove whom. The owner stays; members and
// viewers may leave or be removed by an admin or the owner; admins may leave
// or be removed by the owner.
func CheckRemoval(actorRole, targetRole models.Role, self bool) error {
	switch {
	case targetRole == models.RoleOwner:
		return apperr.New(apperr.AccessDenied, "owner_not_removable", "the owner cannot be removed")
	case self:
		return nil
	case targetRole == models.RoleAdmin && actorRole == models.RoleOwner:
		return nil
	case targetRole != models.RoleAdmin && AtLeast(actorRole, models.RoleAdmin):
		return nil
	}
	return apperr.AccessDeniedf("not allowed to remove this member")
}
