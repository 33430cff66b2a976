package auth

import "fleetops.io/internal/catalog"

// RoleTemplate is a role provisioned into every new organization.
type RoleTemplate struct {
	Name        string
	Description string
	Permissions []string
}

const OwnerRoleName = "owner"

func keys(kind catalog.Kind, actions ...catalog.Action) []string {
	out := make([]string, 0, len(actions))
	for _, a := range actions {
		out = append(out, catalog.Key(catalog.Static(kind), a))
	}
	return out
}

func concat(groups ...[]string) []string {
	var out []string
	for _, g := range groups {
		out = append(out, g...)
	}
	return out
}

// BuiltinRoles returns the default roles of a new organization.
func BuiltinRoles() []RoleTemplate {
	const (
		find, create, edit, editOwn = catalog.ActionFind, catalog.ActionNew, catalog.ActionEdit, catalog.ActionEditOwn
		del, delOwn, export         = catalog.ActionDelete, catalog.ActionDeleteOwn, catalog.ActionExport
	)
	return []RoleTemplate{
		{
			Name:        OwnerRoleName,
			Description: "Full access to the organization",
			Permissions: catalog.Default().Keys(),
		},
		{
			Name:        "dispatcher",
			Description: "Plans orders and trips, edits their own fleet records",
			Permissions: concat(
				keys(catalog.KindVehicle, find, create, editOwn, delOwn, export),
				keys(catalog.KindDriver, find, create, editOwn),
				keys(catalog.KindCustomer, find, create, editOwn),
				keys(catalog.KindCustomerRoute, find, create, edit, delOwn),
				keys(catalog.KindOrder, find, create, edit, delOwn, export, catalog.ActionCancel),
				keys(catalog.KindTrip, find, create, edit, delOwn, export),
				keys(catalog.KindReport, find),
			),
		},
		{
			Name:        "driver",
			Description: "Reads assignments and updates own trips",
			Permissions: concat(
				keys(catalog.KindVehicle, find),
				keys(catalog.KindOrder, find),
				keys(catalog.KindTrip, find, editOwn),
				keys(catalog.KindExpense, find, create, editOwn, delOwn),
			),
		},
	}
}
