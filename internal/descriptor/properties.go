package descriptor

import (
	"fmt"
	"maps"
	"slices"

	"github.com/vk/cleangrid/internal/column"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"
	"github.com/zclconf/go-cty/cty/gocty"
)

// Properties is the view of a component's configuration handed to its factory.
type Properties interface {
	// Value returns the configured value, the declared default, or a null
	// value of the property's type.
	Value(name string) cty.Value
	// Columns returns the columns bound to an input-column property.
	Columns(name string) []*column.InputColumn
	// Provided returns an injected helper object, or nil.
	Provided(name string) any
}

// PropertyValues is the standard Properties implementation.
type PropertyValues struct {
	desc     *Descriptor
	values   map[string]cty.Value
	columns  map[string][]*column.InputColumn
	provided map[string]any
}

// NewPropertyValues binds values, columns and provided helpers to d. The
// maps are copied.
func NewPropertyValues(d *Descriptor, values map[string]cty.Value, columns map[string][]*column.InputColumn, provided map[string]any) *PropertyValues {
	pv := &PropertyValues{
		desc:     d,
		values:   maps.Clone(values),
		columns:  make(map[string][]*column.InputColumn, len(columns)),
		provided: maps.Clone(provided),
	}
	for k, v := range columns {
		pv.columns[k] = slices.Clone(v)
	}
	return pv
}

// Value implements Properties.
func (pv *PropertyValues) Value(name string) cty.Value {
	if v, ok := pv.values[name]; ok && !v.IsNull() {
		return v
	}
	p, ok := pv.desc.Property(name)
	if !ok {
		return cty.NullVal(cty.DynamicPseudoType)
	}
	if p.Default != nil {
		if v, err := convert.Convert(*p.Default, p.ValueType()); err == nil {
			return v
		}
		return *p.Default
	}
	return cty.NullVal(p.ValueType())
}

// Columns implements Properties.
func (pv *PropertyValues) Columns(name string) []*column.InputColumn {
	return slices.Clone(pv.columns[name])
}

// Provided implements Properties.
func (pv *PropertyValues) Provided(name string) any {
	return pv.provided[name]
}

// Decode converts the value of a property into the Go value pointed to by
// target. A null value leaves target untouched.
func Decode(p Properties, name string, target any) error {
	v := p.Value(name)
	if v.IsNull() {
		return nil
	}
	if !v.IsWhollyKnown() {
		return fmt.Errorf("property %q: value is not known", name)
	}
	if err := gocty.FromCtyValue(v, target); err != nil {
		return fmt.Errorf("property %q: %w", name, err)
	}
	return nil
}

// Get decodes the value of a property into a T. A null value yields the
// zero T.
func Get[T any](p Properties, name string) (T, error) {
	var out T
	err := Decode(p, name, &out)
	return out, err
}
