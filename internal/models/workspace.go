package models

import (
	"time"

	"github.com/google/uuid"
)

type Role string

const (
	RoleViewer Role = "viewer"
	RoleMember Role = "member"
	RoleAdmin  Role = "admin"
	RoleOwner  Role = "owner"
)

type Workspace struct {
	ID        uuid.UUID `json:"id" db:"id"`
	OwnerID   uuid.UUID `json:"owner_id" db:"owner_id"`
	Name      string    `json:"name" db:"name"`
	Slug      string    `json:"slug" db:"slug"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// Membership grants a role on a workspace or a problem. ResourceID is the
// workspace or problem id depending on which table the row came from.
type Membership struct {
	ResourceID uuid.UUID `json:"resource_id" db:"resource_id"`
	UserID     uuid.UUID `json:"user_id" db:"user_id"`
	Role       Role      `json:"role" db:"role"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}

type MembershipScope string

const (
	ScopeWorkspace MembershipScope = "workspace"
	ScopeProblem   MembershipScope = "problem"
)
