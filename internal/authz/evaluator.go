package authz

import (
	"errors"
	"fmt"

	"fleetops.io/internal/catalog"
)

// ErrForbidden is returned by Decision.Err for a denied request. It carries no
// detail about which condition failed.
var ErrForbidden = errors.New("forbidden")

// MatchMode selects how a multi-action requirement is combined.
type MatchMode int

const (
	// MatchAll requires every listed action to be allowed.
	MatchAll MatchMode = iota
	// MatchOneOf requires at least one listed action to be allowed.
	MatchOneOf
)

func (m MatchMode) String() string {
	switch m {
	case MatchAll:
		return "all"
	case MatchOneOf:
		return "oneOf"
	default:
		return fmt.Sprintf("MatchMode(%d)", int(m))
	}
}

// Requirement is the static descriptor a protected operation declares.
type Requirement struct {
	Resource catalog.Resource
	Actions  []catalog.Action
	Match    MatchMode
}

// Require is shorthand for a single-action requirement.
func Require(r catalog.Resource, a catalog.Action) Requirement {
	return Requirement{Resource: r, Actions: []catalog.Action{a}, Match: MatchAll}
}

// OwnerCheck reports whether the caller owns the record under evaluation.
type OwnerCheck func() bool

// Decision is the outcome of an evaluation.
type Decision bool

const (
	Deny  Decision = false
	Allow Decision = true
)

func (d Decision) String() string {
	if d {
		return "allow"
	}
	return "deny"
}

// Err maps Deny to ErrForbidden.
func (d Decision) Err() error {
	if d {
		return nil
	}
	return ErrForbidden
}

// Evaluator decides requirements against permission sets. It holds no
// mutable state and is safe for concurrent use.
type Evaluator struct {
	catalog *catalog.Catalog
}

// NewEvaluator returns an evaluator backed by c, or the default catalog when c is nil.
func NewEvaluator(c *catalog.Catalog) *Evaluator {
	if c == nil {
		c = catalog.Default()
	}
	return &Evaluator{catalog: c}
}

// Evaluate decides req against set. Ownership-qualified grants are honoured
// only when ownerCheck is supplied and returns true; ownerCheck runs at most
// once. A malformed requirement yields a catalog.ErrConfiguration error.
func (e *Evaluator) Evaluate(set PermissionSet, req Requirement, ownerCheck OwnerCheck) (Decision, error) {
	if len(req.Actions) == 0 {
		return Deny, fmt.Errorf("%w: requirement on %s lists no actions", catalog.ErrConfiguration, req.Resource)
	}
	if req.Match != MatchAll && req.Match != MatchOneOf {
		return Deny, fmt.Errorf("%w: unknown match mode %s", catalog.ErrConfiguration, req.Match)
	}
	for _, a := range req.Actions {
		if err := e.catalog.Validate(req.Resource, a); err != nil {
			return Deny, err
		}
	}
	if !set.Covers(req.Resource) {
		return Deny, nil
	}

	owns := memoizeOwner(ownerCheck)
	for _, a := range req.Actions {
		allowed := e.allows(set, req.Resource, a, owns)
		switch {
		case req.Match == MatchOneOf && allowed:
			return Allow, nil
		case req.Match == MatchAll && !allowed:
			return Deny, nil
		}
	}
	if req.Match == MatchAll {
		return Allow, nil
	}
	return Deny, nil
}

// allows resolves one action. The unqualified grant covers its -own variant;
// the -own grant covers the unqualified action only for owned records.
func (e *Evaluator) allows(set PermissionSet, r catalog.Resource, a catalog.Action, owns func() bool) bool {
	base := a.Base()
	if set.Has(r, base) {
		return true
	}
	owned := base.Owned()
	if !e.catalog.HasAction(r.Kind, owned) {
		return false
	}
	return set.Has(r, owned) && owns()
}

func memoizeOwner(check OwnerCheck) func() bool {
	var (
		done   bool
		result bool
	)
	return func() bool {
		if check == nil {
			return false
		}
		if !done {
			result = check()
			done = true
		}
		return result
	}
}

// Evaluate checks against the default catalog.
func Evaluate(set PermissionSet, req Requirement, ownerCheck OwnerCheck) (Decision, error) {
	return defaultEvaluator.Evaluate(set, req, ownerCheck)
}

var defaultEvaluator = NewEvaluator(nil)
