package catalog

import (
	"fmt"
	"strconv"
	"strings"
)

// Kind is the closed set of protected entity kinds.
type Kind string

const (
	KindOrganization    Kind = "organization"
	KindMember          Kind = "member"
	KindRole            Kind = "role"
	KindVehicle         Kind = "vehicle"
	KindVehicleGroup    Kind = "vehicle-group"
	KindDriver          Kind = "driver"
	KindCustomer        Kind = "customer"
	KindCustomerRoute   Kind = "customer-route"
	KindOrder           Kind = "order"
	KindTrip            Kind = "trip"
	KindMaintenance     Kind = "maintenance"
	KindExpense         Kind = "expense"
	KindReport          Kind = "report"
	KindSetting         Kind = "setting"
	KindDynamicAnalysis Kind = "dynamic-analysis"
)

// parametrized kinds carry an instance id in their resource name.
var parametrized = map[Kind]bool{
	KindDynamicAnalysis: true,
}

// Resource names a protected entity kind. Parametrized kinds also carry a
// positive instance id and render as "<kind>-<id>".
type Resource struct {
	Kind  Kind
	Param int64
}

// Static returns the resource for a non-parametrized kind.
func Static(k Kind) Resource { return Resource{Kind: k} }

// DynamicAnalysis returns the resource guarding a single dynamic analysis board.
func DynamicAnalysis(id int64) Resource {
	return Resource{Kind: KindDynamicAnalysis, Param: id}
}

// Parametrized reports whether the resource carries an instance id.
func (r Resource) Parametrized() bool { return parametrized[r.Kind] }

func (r Resource) String() string {
	if r.Parametrized() {
		return string(r.Kind) + "-" + strconv.FormatInt(r.Param, 10)
	}
	return string(r.Kind)
}

// ParseResource is the inverse of Resource.String. It only checks syntax;
// registration is checked by Catalog.Validate.
func ParseResource(s string) (Resource, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Resource{}, fmt.Errorf("%w: empty resource", ErrConfiguration)
	}
	for k := range parametrized {
		prefix := string(k) + "-"
		if !strings.HasPrefix(s, prefix) {
			continue
		}
		id, err := strconv.ParseInt(strings.TrimPrefix(s, prefix), 10, 64)
		if err != nil || id <= 0 {
			return Resource{}, fmt.Errorf("%w: malformed resource %q", ErrConfiguration, s)
		}
		return Resource{Kind: k, Param: id}, nil
	}
	return Static(Kind(s)), nil
}
