package catalog

import (
	"fmt"
	"sort"
	"strings"
)

var crud = []Action{ActionFind, ActionNew, ActionEdit, ActionEditOwn, ActionDelete, ActionDeleteOwn}

// defaultActions is the built-in resource/action table of the fleet application.
var defaultActions = map[Kind][]Action{
	KindOrganization:    {ActionFind, ActionEdit},
	KindMember:          {ActionFind, ActionNew, ActionEdit, ActionDelete},
	KindRole:            {ActionFind, ActionNew, ActionEdit, ActionDelete},
	KindVehicle:         append(crud, ActionExport, ActionImport, ActionShare),
	KindVehicleGroup:    {ActionFind, ActionNew, ActionEdit, ActionDelete},
	KindDriver:          append(crud, ActionExport, ActionImport),
	KindCustomer:        append(crud, ActionExport, ActionImport),
	KindCustomerRoute:   append(crud, ActionExport),
	KindOrder:           append(crud, ActionExport, ActionImport, ActionApprove, ActionCancel, ActionShare),
	KindTrip:            append(crud, ActionExport, ActionApprove, ActionCancel),
	KindMaintenance:     append(crud, ActionApprove),
	KindExpense:         append(crud, ActionExport, ActionApprove),
	KindReport:          {ActionFind, ActionExport},
	KindSetting:         {ActionFind, ActionEdit},
	KindDynamicAnalysis: {ActionFind, ActionEdit, ActionShare},
}

// Catalog is the static registry of resources and the actions each supports.
// It is immutable once built and safe for concurrent use.
type Catalog struct {
	actions map[Kind]map[Action]struct{}
}

var defaultCatalog = MustNew(defaultActions)

// Default returns the built-in catalog.
func Default() *Catalog { return defaultCatalog }

// New builds a catalog from a kind → actions table. Every ownership-qualified
// action must be paired with its unqualified base on the same kind.
func New(table map[Kind][]Action) (*Catalog, error) {
	if len(table) == 0 {
		return nil, fmt.Errorf("%w: empty catalog", ErrConfiguration)
	}
	c := &Catalog{actions: make(map[Kind]map[Action]struct{}, len(table))}
	for kind, actions := range table {
		if strings.TrimSpace(string(kind)) == "" {
			return nil, fmt.Errorf("%w: empty resource kind", ErrConfiguration)
		}
		if len(actions) == 0 {
			return nil, fmt.Errorf("%w: resource %s has no actions", ErrConfiguration, kind)
		}
		set := make(map[Action]struct{}, len(actions))
		for _, a := range actions {
			if strings.TrimSpace(string(a)) == "" || strings.Contains(string(a), ":") {
				return nil, fmt.Errorf("%w: invalid action %q on %s", ErrConfiguration, a, kind)
			}
			set[a] = struct{}{}
		}
		for a := range set {
			if !a.OwnershipQualified() {
				continue
			}
			if _, ok := set[a.Base()]; !ok {
				return nil, fmt.Errorf("%w: %s on %s has no base action %s", ErrConfiguration, a, kind, a.Base())
			}
		}
		c.actions[kind] = set
	}
	return c, nil
}

// MustNew is New that panics on an invalid table.
func MustNew(table map[Kind][]Action) *Catalog {
	c, err := New(table)
	if err != nil {
		panic(fmt.Sprintf("catalog.MustNew: %v", err))
	}
	return c
}

// IsValidAction reports whether action is registered for resource. A
// parametrized resource must carry a positive id, a static one must not.
func (c *Catalog) IsValidAction(r Resource, a Action) bool {
	return c.Validate(r, a) == nil
}

// Validate is IsValidAction returning an ErrConfiguration describing the misuse.
func (c *Catalog) Validate(r Resource, a Action) error {
	set, ok := c.actions[r.Kind]
	if !ok {
		return fmt.Errorf("%w: unknown resource %q", ErrConfiguration, r.Kind)
	}
	if r.Parametrized() != (r.Param > 0) || r.Param < 0 {
		return fmt.Errorf("%w: resource %q has invalid parameter %d", ErrConfiguration, r.Kind, r.Param)
	}
	if _, ok := set[a]; !ok {
		return fmt.Errorf("%w: action %q is not registered for %s", ErrConfiguration, a, r.Kind)
	}
	return nil
}

// HasAction reports whether kind supports action, ignoring parameters.
func (c *Catalog) HasAction(k Kind, a Action) bool {
	_, ok := c.actions[k][a]
	return ok
}

// Actions lists the actions registered for kind in lexical order.
func (c *Catalog) Actions(k Kind) []Action {
	set := c.actions[k]
	out := make([]Action, 0, len(set))
	for a := range set {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Kinds lists the registered kinds in lexical order.
func (c *Catalog) Kinds() []Kind {
	out := make([]Kind, 0, len(c.actions))
	for k := range c.actions {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Keys returns every static permission key, used to seed the permission table.
func (c *Catalog) Keys() []string {
	var keys []string
	for _, k := range c.Kinds() {
		if parametrized[k] {
			continue
		}
		for _, a := range c.Actions(k) {
			keys = append(keys, Key(Static(k), a))
		}
	}
	return keys
}

// IsValidAction checks against the default catalog.
func IsValidAction(r Resource, a Action) bool { return defaultCatalog.IsValidAction(r, a) }

// Key renders the storage form of a grant, e.g. "vehicle:edit-own" or
// "dynamic-analysis-7:find".
func Key(r Resource, a Action) string { return r.String() + ":" + string(a) }

// ParseKey splits a permission key and validates it against the catalog.
func (c *Catalog) ParseKey(key string) (Resource, Action, error) {
	res, act, ok := strings.Cut(strings.TrimSpace(key), ":")
	if !ok {
		return Resource{}, "", fmt.Errorf("%w: malformed permission key %q", ErrConfiguration, key)
	}
	r, err := ParseResource(res)
	if err != nil {
		return Resource{}, "", err
	}
	a := Action(act)
	if err := c.Validate(r, a); err != nil {
		return Resource{}, "", err
	}
	return r, a, nil
}
