// Package null_check provides a filter routing rows by whether their values
// are present.
package null_check

import (
	"github.com/vk/cleangrid/internal/column"
	"github.com/vk/cleangrid/internal/descriptor"
	"github.com/vk/cleangrid/internal/registry"
	"github.com/zclconf/go-cty/cty"
)

// Outcomes of the filter.
const (
	NotNull = "NOT_NULL"
	Null    = "NULL"
)

// Module implements the registry.Module interface for this package.
type Module struct{}

// Descriptor describes the null-check filter.
var Descriptor = descriptor.NewFilter("null-check", New).
	DisplayName("Null check").
	Alias("NullCheck", "Not null").
	Description("Categorizes a row as NULL when any of its columns has no value.").
	InputColumns("columns", cty.DynamicPseudoType, descriptor.Describe("Columns that must have a value.")).
	Property("consider_empty_string_as_null", cty.Bool,
		descriptor.Default(cty.False),
		descriptor.Describe("Treat empty strings like missing values.")).
	Outcomes(NotNull, Null).
	Build()

// Filter is a null-check instance.
type Filter struct {
	cols        []*column.InputColumn
	emptyIsNull bool
}

// New creates a Filter from its properties.
func New(p descriptor.Properties) (descriptor.Filter, error) {
	emptyIsNull, err := descriptor.Get[bool](p, "consider_empty_string_as_null")
	if err != nil {
		return nil, err
	}
	return &Filter{cols: p.Columns("columns"), emptyIsNull: emptyIsNull}, nil
}

// Categorize implements descriptor.Filter.
func (f *Filter) Categorize(row column.Row) (string, error) {
	for _, c := range f.cols {
		v := row.Value(c)
		if v.IsNull() || !v.IsKnown() {
			return Null, nil
		}
		if f.emptyIsNull && column.IsNullOrEmpty(v) {
			return Null, nil
		}
	}
	return NotNull, nil
}

// Register registers the filter's descriptor.
func (m *Module) Register(r *registry.Registry) error {
	return r.Register(Descriptor)
}
