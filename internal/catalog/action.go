package catalog

import "strings"

// ownSuffix marks the ownership-qualified variant of an action.
const ownSuffix = "-own"

// Action identifies an operation kind performable on a resource.
type Action string

const (
	ActionFind      Action = "find"
	ActionNew       Action = "new"
	ActionEdit      Action = "edit"
	ActionEditOwn   Action = "edit-own"
	ActionDelete    Action = "delete"
	ActionDeleteOwn Action = "delete-own"
	ActionExport    Action = "export"
	ActionImport    Action = "import"
	ActionApprove   Action = "approve"
	ActionShare     Action = "share"
	ActionCancel    Action = "cancel"
)

// IsOwnershipQualified reports whether the action only applies to records the caller owns.
func IsOwnershipQualified(a Action) bool {
	return strings.HasSuffix(string(a), ownSuffix) && len(a) > len(ownSuffix)
}

// OwnershipQualified is the method form of IsOwnershipQualified.
func (a Action) OwnershipQualified() bool { return IsOwnershipQualified(a) }

// Base returns the unqualified action, e.g. "edit" for "edit-own".
// Unqualified actions are returned unchanged.
func (a Action) Base() Action {
	if !a.OwnershipQualified() {
		return a
	}
	return Action(strings.TrimSuffix(string(a), ownSuffix))
}

// Owned returns the ownership-qualified variant of an unqualified action.
func (a Action) Owned() Action {
	if a.OwnershipQualified() {
		return a
	}
	return a + ownSuffix
}

func (a Action) String() string { return string(a) }
