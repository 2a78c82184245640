// Package equals provides a filter matching a column against a list of
// accepted values.
package equals

import (
	"fmt"

	"github.com/vk/cleangrid/internal/column"
	"github.com/vk/cleangrid/internal/descriptor"
	"github.com/vk/cleangrid/internal/registry"
	"github.com/zclconf/go-cty/cty"
)

// Outcomes of the filter.
const (
	Valid   = "VALID"
	Invalid = "INVALID"
)

// Module implements the registry.Module interface for this package.
type Module struct{}

// Descriptor describes the equals filter.
var Descriptor = descriptor.NewFilter("equals", New).
	DisplayName("Equals").
	Description("Categorizes a row as VALID when its column equals one of the given values.").
	InputColumns("column", cty.DynamicPseudoType, descriptor.Arity(1, 1)).
	Property("values", cty.String, descriptor.Array(), descriptor.Required(),
		descriptor.Describe("Accepted values, compared as text.")).
	Outcomes(Valid, Invalid).
	Build()

// Filter is an equals instance.
type Filter struct {
	col      *column.InputColumn
	accepted map[string]struct{}
}

// New creates a Filter from its properties.
func New(p descriptor.Properties) (descriptor.Filter, error) {
	cols := p.Columns("column")
	if len(cols) != 1 {
		return nil, fmt.Errorf("equals compares exactly one column, got %d", len(cols))
	}
	values, err := descriptor.Get[[]string](p, "values")
	if err != nil {
		return nil, err
	}
	accepted := make(map[string]struct{}, len(values))
	for _, v := range values {
		accepted[v] = struct{}{}
	}
	return &Filter{col: cols[0], accepted: accepted}, nil
}

// Categorize implements descriptor.Filter.
func (f *Filter) Categorize(row column.Row) (string, error) {
	v := row.Value(f.col)
	if v.IsNull() || !v.IsKnown() {
		return Invalid, nil
	}
	if _, ok := f.accepted[column.Format(v)]; ok {
		return Valid, nil
	}
	return Invalid, nil
}

// Register registers the filter's descriptor.
func (m *Module) Register(r *registry.Registry) error {
	return r.Register(Descriptor)
}
