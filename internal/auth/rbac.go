package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"fleetops.io/internal/authz"
	"fleetops.io/internal/catalog"
	"fleetops.io/internal/concurrency"
)

var (
	roleResource   = catalog.Static(catalog.KindRole)
	memberResource = catalog.Static(catalog.KindMember)
)

// RBACService administers roles and memberships of an organization.
type RBACService struct {
	store   RoleStore
	catalog *catalog.Catalog
}

// NewRBACService returns a service over store; a nil catalog selects the default.
func NewRBACService(store RoleStore, c *catalog.Catalog) (*RBACService, error) {
	if store == nil {
		return nil, errors.New("role store is required")
	}
	if c == nil {
		c = catalog.Default()
	}
	return &RBACService{store: store, catalog: c}, nil
}

// CreateRole adds a role to the caller's organization.
func (s *RBACService) CreateRole(ctx context.Context, ac *AuthorizationContext, name, description string, permissions []string) (Role, error) {
	if err := ac.Authorize(authz.Require(roleResource, catalog.ActionNew), nil); err != nil {
		return Role{}, err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return Role{}, fmt.Errorf("%w: role name is required", ErrInvalidInput)
	}
	keys, err := s.normalizePermissions(permissions)
	if err != nil {
		return Role{}, err
	}
	return s.store.CreateRole(ctx, ac.OrganizationID, name, strings.TrimSpace(description), keys)
}

// SetRolePermissions replaces a role's permission keys. lastUpdatedAt is the
// role version the client edited; a stale or missing value yields a conflict
// carrying the current role.
func (s *RBACService) SetRolePermissions(ctx context.Context, ac *AuthorizationContext, roleID int64, lastUpdatedAt *time.Time, permissions []string) (Role, error) {
	if err := ac.Authorize(authz.Require(roleResource, catalog.ActionEdit), nil); err != nil {
		return Role{}, err
	}
	keys, err := s.normalizePermissions(permissions)
	if err != nil {
		return Role{}, err
	}
	current, err := s.store.GetRole(ctx, ac.OrganizationID, roleID)
	if err != nil {
		return Role{}, err
	}
	if err := concurrency.CheckExclusive(lastUpdatedAt, current.LastUpdatedAt); err != nil {
		return Role{}, conflictWith(err, current)
	}
	updated, ok, err := s.store.ReplaceRolePermissions(ctx, ac.OrganizationID, roleID, current.LastUpdatedAt, keys)
	if err != nil {
		return Role{}, err
	}
	if !ok {
		latest, err := s.store.GetRole(ctx, ac.OrganizationID, roleID)
		if err != nil {
			return Role{}, err
		}
		return Role{}, &concurrency.ConflictError{Current: latest.LastUpdatedAt, State: latest}
	}
	return updated, nil
}

// AssignMember sets the role a user holds in the caller's organization.
func (s *RBACService) AssignMember(ctx context.Context, ac *AuthorizationContext, userID, roleID int64) (Member, error) {
	if err := ac.Authorize(authz.Require(memberResource, catalog.ActionEdit), nil); err != nil {
		return Member{}, err
	}
	if userID <= 0 || roleID <= 0 {
		return Member{}, fmt.Errorf("%w: user and role are required", ErrInvalidInput)
	}
	if _, err := s.store.GetRole(ctx, ac.OrganizationID, roleID); err != nil {
		return Member{}, err
	}
	return s.store.AssignMember(ctx, ac.OrganizationID, userID, roleID)
}

// Provision creates the built-in roles in a fresh organization and makes
// ownerID its owner. It runs outside any request context, from ops tooling.
func (s *RBACService) Provision(ctx context.Context, organizationID, ownerID int64) ([]Role, error) {
	if organizationID <= 0 || ownerID <= 0 {
		return nil, fmt.Errorf("%w: organization and owner are required", ErrInvalidInput)
	}
	var (
		roles []Role
		owner Role
	)
	for _, tpl := range BuiltinRoles() {
		role, err := s.store.CreateRole(ctx, organizationID, tpl.Name, tpl.Description, tpl.Permissions)
		if err != nil {
			return nil, fmt.Errorf("create role %s: %w", tpl.Name, err)
		}
		if tpl.Name == OwnerRoleName {
			owner = role
		}
		roles = append(roles, role)
	}
	if _, err := s.store.AssignMember(ctx, organizationID, ownerID, owner.ID); err != nil {
		return nil, fmt.Errorf("assign owner: %w", err)
	}
	return roles, nil
}

func (s *RBACService) normalizePermissions(permissions []string) ([]string, error) {
	set, err := authz.ParsePermissionSet(s.catalog, dedupeStrings(permissions))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	return set.Keys(), nil
}

func conflictWith(err error, current Role) error {
	var ce *concurrency.ConflictError
	if errors.As(err, &ce) {
		ce.State = current
		return ce
	}
	return err
}

func dedupeStrings(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	set := make(map[string]struct{}, len(values))
	result := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if _, ok := set[v]; ok {
			continue
		}
		set[v] = struct{}{}
		result = append(result, v)
	}
	return result
}
