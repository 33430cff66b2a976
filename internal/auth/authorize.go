package auth

import (
	"context"
	"errors"
	"fmt"

	"fleetops.io/internal/authz"
	"fleetops.io/internal/catalog"
)

// AuthorizationContext is what the caller may do inside one organization for
// the lifetime of a single request. It is never mutated after Build; a role
// change takes effect on the next request.
type AuthorizationContext struct {
	OrganizationID int64
	UserID         int64
	RoleID         int64
	RoleName       string
	Permissions    authz.PermissionSet

	evaluator *authz.Evaluator
}

// Authorize evaluates req and maps the outcome to an error: nil on allow,
// authz.ErrForbidden on deny, catalog.ErrConfiguration on a malformed req.
func (ac *AuthorizationContext) Authorize(req authz.Requirement, ownerCheck authz.OwnerCheck) error {
	d, err := ac.evaluator.Evaluate(ac.Permissions, req, ownerCheck)
	if err != nil {
		return err
	}
	return d.Err()
}

// OwnerCheck compares a record's owner with the caller. Unknown owners (0) never match.
func (ac *AuthorizationContext) OwnerCheck(ownerID int64) authz.OwnerCheck {
	return func() bool {
		return ownerID > 0 && ownerID == ac.UserID
	}
}

// Builder assembles authorization contexts from authoritative membership data.
type Builder struct {
	members   MembershipStore
	catalog   *catalog.Catalog
	evaluator *authz.Evaluator
}

// NewBuilder returns a Builder; a nil catalog selects the default one.
func NewBuilder(members MembershipStore, c *catalog.Catalog) (*Builder, error) {
	if members == nil {
		return nil, errors.New("membership store is required")
	}
	if c == nil {
		c = catalog.Default()
	}
	return &Builder{members: members, catalog: c, evaluator: authz.NewEvaluator(c)}, nil
}

// Build resolves the caller's role in organizationID. It fails with
// ErrUnauthenticated without an identity and ErrNoMembership without a role.
// Cancellation of ctx is returned as is.
func (b *Builder) Build(ctx context.Context, identity *Identity, organizationID int64) (*AuthorizationContext, error) {
	if identity == nil || identity.UserID <= 0 {
		return nil, ErrUnauthenticated
	}
	if organizationID <= 0 {
		return nil, ErrNoMembership
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m, err := b.members.Membership(ctx, organizationID, identity.UserID)
	switch {
	case errors.Is(err, ErrNotFound):
		return nil, ErrNoMembership
	case err != nil:
		return nil, fmt.Errorf("load membership: %w", err)
	}
	if m.OrganizationID != organizationID || m.UserID != identity.UserID {
		return nil, ErrNoMembership
	}
	set, err := authz.ParsePermissionSet(b.catalog, m.Role.Permissions)
	if err != nil {
		return nil, fmt.Errorf("role %d: %w", m.Role.ID, err)
	}
	return &AuthorizationContext{
		OrganizationID: organizationID,
		UserID:         identity.UserID,
		RoleID:         m.Role.ID,
		RoleName:       m.Role.Name,
		Permissions:    set,
		evaluator:      b.evaluator,
	}, nil
}
