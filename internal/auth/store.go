package auth

import (
	"context"
	"time"
)

// MembershipStore resolves a caller's role in an organization. Implementations
// return ErrNotFound when the user has no membership.
type MembershipStore interface {
	Membership(ctx context.Context, organizationID, userID int64) (Membership, error)
}

// RoleStore persists roles and memberships.
type RoleStore interface {
	CreateRole(ctx context.Context, organizationID int64, name, description string, permissions []string) (Role, error)
	GetRole(ctx context.Context, organizationID, roleID int64) (Role, error)
	// ReplaceRolePermissions swaps the role's permission keys only if its
	// last_updated_at still equals expected. It reports false when no row matched.
	ReplaceRolePermissions(ctx context.Context, organizationID, roleID int64, expected time.Time, permissions []string) (Role, bool, error)
	AssignMember(ctx context.Context, organizationID, userID, roleID int64) (Member, error)
}

// SessionStore is the session registry consulted on every request.
type SessionStore interface {
	// Active returns the user bound to an unexpired, unrevoked session.
	Active(ctx context.Context, sessionID string) (userID int64, ok bool, err error)
}
