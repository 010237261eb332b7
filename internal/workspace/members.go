package workspace

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/nikhilbhutani/promptvexity/internal/apperr"
	"github.com/nikhilbhutani/promptvexity/internal/audit"
	"github.com/nikhilbhutani/promptvexity/internal/authz"
	"github.com/nikhilbhutani/promptvexity/internal/models"
	"github.com/nikhilbhutani/promptvexity/internal/store"
)

type MemberStore interface {
	store.MembershipStore
	GetUser(ctx context.Context, id uuid.UUID) (models.User, error)
}

// Members manages the membership table of one scope. Workspaces and problems
// share the same rules.
type Members struct {
	scope models.MembershipScope
	store MemberStore
	gate  *authz.Gate
	audit *audit.Service
}

func NewMembers(scope models.MembershipScope, st MemberStore, gate *authz.Gate, a *audit.Service) *Members {
	return &Members{scope: scope, store: st, gate: gate, audit: a}
}

// Add grants role to userID, or changes the role of an existing member. Only
// admins and the owner may do this, and the owner's own row is fixed.
func (m *Members) Add(ctx context.Context, actor authz.Actor, resourceID, userID uuid.UUID, role models.Role) (models.Membership, error) {
	if err := actor.RequireUser(); err != nil {
		return models.Membership{}, err
	}
	if err := authz.CheckGrant(role); err != nil {
		return models.Membership{}, err
	}
	ok, err := m.gate.CanManageMembers(ctx, actor, m.scope, resourceID)
	if err != nil {
		return models.Membership{}, err
	}
	if !ok {
		return models.Membership{}, apperr.AccessDeniedf("only admins and the owner can manage members")
	}
	if _, err := m.store.GetUser(ctx, userID); err != nil {
		return models.Membership{}, err
	}

	existing, err := m.store.GetMembership(ctx, m.scope, resourceID, userID)
	switch {
	case err == nil && existing.Role == models.RoleOwner:
		return models.Membership{}, apperr.New(apperr.AccessDenied, "owner_role_fixed", "the owner's role cannot be changed")
	case err != nil && !apperr.Is(err, apperr.NotFound):
		return models.Membership{}, fmt.Errorf("get membership: %w", err)
	}

	mem := models.Membership{ResourceID: resourceID, UserID: userID, Role: role}
	if err := m.store.UpsertMembership(ctx, m.scope, mem); err != nil {
		return models.Membership{}, fmt.Errorf("upsert membership: %w", err)
	}
	m.log(ctx, audit.LogEntry{
		ActorID:      actor.UserID,
		Action:       audit.ActionMemberAdded,
		ResourceType: string(m.scope),
		ResourceID:   resourceID,
		Details:      map[string]any{"user_id": userID, "role": role},
	})

	return m.store.GetMembership(ctx, m.scope, resourceID, userID)
}

func (m *Members) Remove(ctx context.Context, actor authz.Actor, resourceID, userID uuid.UUID) error {
	if err := actor.RequireUser(); err != nil {
		return err
	}
	target, err := m.store.GetMembership(ctx, m.scope, resourceID, userID)
	if err != nil {
		return err
	}
	actorRole, err := m.gate.Role(ctx, actor, m.scope, resourceID)
	if err != nil {
		return err
	}
	if err := authz.CheckRemoval(actorRole, target.Role, actor.UserID == userID); err != nil {
		return err
	}

	if err := m.store.DeleteMembership(ctx, m.scope, resourceID, userID); err != nil {
		return fmt.Errorf("delete membership: %w", err)
	}
	m.log(ctx, audit.LogEntry{
		ActorID:      actor.UserID,
		Action:       audit.ActionMemberRemoved,
		ResourceType: string(m.scope),
		ResourceID:   resourceID,
		Details:      map[string]any{"user_id": userID, "role": target.Role},
	})
	return nil
}

// List is visible to members of the resource and to platform admins.
func (m *Members) List(ctx context.Context, actor authz.Actor, resourceID uuid.UUID) ([]models.Membership, error) {
	if err := actor.RequireUser(); err != nil {
		return nil, err
	}
	if !actor.PlatformAdmin {
		role, err := m.gate.Role(ctx, actor, m.scope, resourceID)
		if err != nil {
			return nil, err
		}
		if role == "" {
			return nil, apperr.AccessDeniedf("only members can list members")
		}
	}
	members, err := m.store.ListMemberships(ctx, m.scope, resourceID)
	if err != nil {
		return nil, fmt.Errorf("list memberships: %w", err)
	}
	return members, nil
}

func (m *Members) log(ctx context.Context, entry audit.LogEntry) {
	if m.audit == nil {
		return
	}
	if err := m.audit.Log(ctx, entry); err != nil {
		slog.Warn("write audit log", "action", entry.Action, "error", err)
	}
}
