// Package number_range provides a filter checking numbers against bounds.
package number_range

import (
	"fmt"
	"math/big"

	"github.com/vk/cleangrid/internal/column"
	"github.com/vk/cleangrid/internal/descriptor"
	"github.com/vk/cleangrid/internal/registry"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"
)

// Outcomes of the filter.
const (
	Valid   = "VALID"
	Invalid = "INVALID"
)

// Module implements the registry.Module interface for this package.
type Module struct{}

// Descriptor describes the number-range filter.
var Descriptor = descriptor.NewFilter("number-range", New).
	DisplayName("Number range").
	Description("Categorizes a row as VALID when every column holds a number within the inclusive bounds.").
	InputColumns("columns", cty.Number).
	Property("lowest_value", cty.Number, descriptor.Optional(), descriptor.Describe("Inclusive lower bound.")).
	Property("highest_value", cty.Number, descriptor.Optional(), descriptor.Describe("Inclusive upper bound.")).
	Property("null_is_valid", cty.Bool, descriptor.Default(cty.False)).
	Outcomes(Valid, Invalid).
	Build()

// Filter is a number-range instance. Nil bounds are open.
type Filter struct {
	cols        []*column.InputColumn
	low, high   *big.Float
	nullIsValid bool
}

// New creates a Filter from its properties.
func New(p descriptor.Properties) (descriptor.Filter, error) {
	f := &Filter{cols: p.Columns("columns")}
	if v := p.Value("lowest_value"); !v.IsNull() {
		f.low = v.AsBigFloat()
	}
	if v := p.Value("highest_value"); !v.IsNull() {
		f.high = v.AsBigFloat()
	}
	if f.low != nil && f.high != nil && f.low.Cmp(f.high) > 0 {
		return nil, fmt.Errorf("lowest_value %s is greater than highest_value %s", f.low.Text('g', -1), f.high.Text('g', -1))
	}
	var err error
	f.nullIsValid, err = descriptor.Get[bool](p, "null_is_valid")
	return f, err
}

// Categorize implements descriptor.Filter.
func (f *Filter) Categorize(row column.Row) (string, error) {
	for _, c := range f.cols {
		v := row.Value(c)
		if v.IsNull() || !v.IsKnown() {
			if f.nullIsValid {
				continue
			}
			return Invalid, nil
		}
		n, err := convert.Convert(v, cty.Number)
		if err != nil {
			return Invalid, nil
		}
		x := n.AsBigFloat()
		if f.low != nil && x.Cmp(f.low) < 0 {
			return Invalid, nil
		}
		if f.high != nil && x.Cmp(f.high) > 0 {
			return Invalid, nil
		}
	}
	return Valid, nil
}

// Register registers the filter's descriptor.
func (m *Module) Register(r *registry.Registry) error {
	return r.Register(Descriptor)
}
