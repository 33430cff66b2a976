package records

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"

	"fleetops.io/internal/catalog"
)

// ColumnType is the JSON shape an editable column accepts.
type ColumnType int

const (
	Text ColumnType = iota
	Number
	Integer
	Bool
)

// Column is an editable field of a record kind. Nullable columns accept JSON null.
type Column struct {
	Type     ColumnType
	Nullable bool
}

// Spec describes how a record kind is stored and which fields clients may edit.
type Spec struct {
	Kind    catalog.Kind
	Table   string
	Columns map[string]Column
}

var specs = map[catalog.Kind]Spec{
	catalog.KindVehicle: {
		Kind:  catalog.KindVehicle,
		Table: "vehicles",
		Columns: map[string]Column{
			"name":         {Type: Text},
			"plate_number": {Type: Text},
			"vin":          {Type: Text, Nullable: true},
			"status":       {Type: Text},
			"odometer_km":  {Type: Number, Nullable: true},
		},
	},
	catalog.KindDriver: {
		Kind:  catalog.KindDriver,
		Table: "drivers",
		Columns: map[string]Column{
			"full_name":      {Type: Text},
			"phone":          {Type: Text, Nullable: true},
			"license_number": {Type: Text, Nullable: true},
			"status":         {Type: Text},
		},
	},
	catalog.KindCustomer: {
		Kind:  catalog.KindCustomer,
		Table: "customers",
		Columns: map[string]Column{
			"name":    {Type: Text},
			"email":   {Type: Text, Nullable: true},
			"phone":   {Type: Text, Nullable: true},
			"address": {Type: Text, Nullable: true},
		},
	},
	catalog.KindCustomerRoute: {
		Kind:  catalog.KindCustomerRoute,
		Table: "customer_routes",
		Columns: map[string]Column{
			"name":        {Type: Text},
			"origin":      {Type: Text},
			"destination": {Type: Text},
			"distance_km": {Type: Number, Nullable: true},
		},
	},
	catalog.KindOrder: {
		Kind:  catalog.KindOrder,
		Table: "orders",
		Columns: map[string]Column{
			"reference":    {Type: Text},
			"status":       {Type: Text},
			"notes":        {Type: Text, Nullable: true},
			"amount_cents": {Type: Integer, Nullable: true},
		},
	},
	catalog.KindTrip: {
		Kind:  catalog.KindTrip,
		Table: "trips",
		Columns: map[string]Column{
			"status":      {Type: Text},
			"notes":       {Type: Text, Nullable: true},
			"distance_km": {Type: Number, Nullable: true},
			"completed":   {Type: Bool},
		},
	},
}

// Lookup returns the spec of an ownable record kind.
func Lookup(kind catalog.Kind) (Spec, bool) {
	s, ok := specs[kind]
	return s, ok
}

// Kinds lists the record kinds served, in lexical order.
func Kinds() []catalog.Kind {
	out := make([]catalog.Kind, 0, len(specs))
	for k := range specs {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// ColumnNames lists the editable columns in lexical order.
func (s Spec) ColumnNames() []string {
	out := make([]string, 0, len(s.Columns))
	for name := range s.Columns {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Coerce validates client-supplied fields against the column set and returns
// them in their storage types. Unknown columns are rejected.
func (s Spec) Coerce(fields map[string]any) (map[string]any, error) {
	if len(fields) == 0 {
		return nil, fmt.Errorf("%w: no fields to update", ErrInvalidInput)
	}
	out := make(map[string]any, len(fields))
	for name, raw := range fields {
		col, ok := s.Columns[name]
		if !ok {
			return nil, fmt.Errorf("%w: %s has no editable field %q", ErrInvalidInput, s.Kind, name)
		}
		v, err := col.coerce(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: field %q: %v", ErrInvalidInput, name, err)
		}
		out[name] = v
	}
	return out, nil
}

func (c Column) coerce(raw any) (any, error) {
	if raw == nil {
		if !c.Nullable {
			return nil, fmt.Errorf("must not be null")
		}
		return nil, nil
	}
	switch c.Type {
	case Text:
		if v, ok := raw.(string); ok {
			return v, nil
		}
		return nil, fmt.Errorf("must be a string")
	case Bool:
		if v, ok := raw.(bool); ok {
			return v, nil
		}
		return nil, fmt.Errorf("must be a boolean")
	case Number, Integer:
		f, err := toFloat(raw)
		if err != nil {
			return nil, err
		}
		if c.Type == Number {
			return f, nil
		}
		if f != math.Trunc(f) || math.Abs(f) > 1<<53 {
			return nil, fmt.Errorf("must be an integer")
		}
		return int64(f), nil
	default:
		return nil, fmt.Errorf("unsupported column type %d", c.Type)
	}
}

func toFloat(raw any) (float64, error) {
	switch v := raw.(type) {
	case float64:
		return v, nil
	case int:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case json.Number:
		return v.Float64()
	default:
		return 0, fmt.Errorf("must be a number")
	}
}

func fieldNames(fields map[string]any) []string {
	out := make([]string, 0, len(fields))
	for name := range fields {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
