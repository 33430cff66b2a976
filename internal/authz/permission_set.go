package authz

import (
	"fmt"
	"sort"

	"fleetops.io/internal/catalog"
)

// Grant is a single (resource, action) pair granted by a role.
type Grant struct {
	Resource catalog.Resource
	Action   catalog.Action
}

// Key renders the grant in storage form.
func (g Grant) Key() string { return catalog.Key(g.Resource, g.Action) }

// PermissionSet is the immutable collection of grants resolved for a caller.
// The zero value grants nothing.
type PermissionSet struct {
	grants map[catalog.Resource]map[catalog.Action]struct{}
}

// NewPermissionSet validates every grant against the catalog. A grant the
// catalog does not know is a configuration error, never silently dropped.
func NewPermissionSet(c *catalog.Catalog, grants []Grant) (PermissionSet, error) {
	set := PermissionSet{grants: make(map[catalog.Resource]map[catalog.Action]struct{})}
	for _, g := range grants {
		if err := c.Validate(g.Resource, g.Action); err != nil {
			return PermissionSet{}, fmt.Errorf("permission set: %w", err)
		}
		actions, ok := set.grants[g.Resource]
		if !ok {
			actions = make(map[catalog.Action]struct{})
			set.grants[g.Resource] = actions
		}
		actions[g.Action] = struct{}{}
	}
	return set, nil
}

// ParsePermissionSet builds a set from stored permission keys.
func ParsePermissionSet(c *catalog.Catalog, keys []string) (PermissionSet, error) {
	grants := make([]Grant, 0, len(keys))
	for _, key := range keys {
		r, a, err := c.ParseKey(key)
		if err != nil {
			return PermissionSet{}, fmt.Errorf("permission set: %w", err)
		}
		grants = append(grants, Grant{Resource: r, Action: a})
	}
	return NewPermissionSet(c, grants)
}

// Has reports whether the exact (resource, action) pair is granted.
func (s PermissionSet) Has(r catalog.Resource, a catalog.Action) bool {
	_, ok := s.grants[r][a]
	return ok
}

// Covers reports whether the set has any grant at all for resource.
func (s PermissionSet) Covers(r catalog.Resource) bool {
	return len(s.grants[r]) > 0
}

// Len returns the number of grants.
func (s PermissionSet) Len() int {
	n := 0
	for _, actions := range s.grants {
		n += len(actions)
	}
	return n
}

// Keys lists the grants in storage form, sorted.
func (s PermissionSet) Keys() []string {
	keys := make([]string, 0, s.Len())
	for r, actions := range s.grants {
		for a := range actions {
			keys = append(keys, catalog.Key(r, a))
		}
	}
	sort.Strings(keys)
	return keys
}
