package builder

import (
	"fmt"
	"io"
	"maps"
	"slices"

	"github.com/vk/cleangrid/internal/column"
	"github.com/vk/cleangrid/internal/descriptor"
	"github.com/vk/cleangrid/internal/errs"
	"github.com/vk/cleangrid/internal/job"
	"github.com/vk/cleangrid/internal/nodeid"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"
	"github.com/zclconf/go-cty/cty/gocty"
)

type requirement struct {
	filter  *ComponentBuilder
	outcome string
}

// ComponentBuilder is a component-in-progress inside a Builder.
type ComponentBuilder struct {
	b           *Builder
	desc        *descriptor.Descriptor
	name        string
	values      map[string]cty.Value
	columns     map[string][]*column.InputColumn
	outputs     []*column.InputColumn
	requirement *requirement
}

func newComponentBuilder(b *Builder, d *descriptor.Descriptor, name string) *ComponentBuilder {
	return &ComponentBuilder{
		b:       b,
		desc:    d,
		name:    name,
		values:  make(map[string]cty.Value),
		columns: make(map[string][]*column.InputColumn),
	}
}

// Descriptor returns the component's descriptor.
func (cb *ComponentBuilder) Descriptor() *descriptor.Descriptor { return cb.desc }

// Kind returns the component's kind.
func (cb *ComponentBuilder) Kind() descriptor.Kind { return cb.desc.Kind() }

// Name returns the component's name.
func (cb *ComponentBuilder) Name() string {
	if cb == nil {
		return ""
	}
	return cb.name
}

// String implements fmt.Stringer.
func (cb *ComponentBuilder) String() string {
	return nodeid.Component(cb.Kind().String(), cb.name).String()
}

// SetName renames the component. Names are unique within a builder.
func (cb *ComponentBuilder) SetName(name string) error {
	if name == cb.name {
		return nil
	}
	if err := nodeid.ValidateName(name); err != nil {
		return errs.Configuration(cb.name, "rename component", err)
	}
	if cb.b != nil {
		if _, taken := cb.b.Component(name); taken {
			return errs.Configuration(cb.name, "rename component", fmt.Errorf("name %q is already in use", name))
		}
	}
	cb.name = name
	cb.notifyReconfigured()
	return nil
}

// Value returns the configured value of a property, or its default.
func (cb *ComponentBuilder) Value(name string) cty.Value {
	return descriptor.NewPropertyValues(cb.desc, cb.values, nil, nil).Value(name)
}

// Columns returns the columns bound to an input-column property.
func (cb *ComponentBuilder) Columns(name string) []*column.InputColumn {
	return slices.Clone(cb.columns[name])
}

// InputColumns returns every column bound to any input-column property.
func (cb *ComponentBuilder) InputColumns() []*column.InputColumn {
	var out []*column.InputColumn
	for _, p := range cb.desc.InputColumnProperties() {
		out = append(out, cb.columns[p.Name]...)
	}
	return out
}

// OutputColumns returns the virtual columns the component produces. Only
// configured transformers produce columns.
func (cb *ComponentBuilder) OutputColumns() []*column.InputColumn { return slices.Clone(cb.outputs) }

// OutputColumn finds an output column by name.
func (cb *ComponentBuilder) OutputColumn(name string) (*column.InputColumn, bool) {
	for _, c := range cb.outputs {
		if c.Name() == name {
			return c, true
		}
	}
	return nil, false
}

// SetConfiguredProperty sets the value of a property. Literal properties
// accept a cty.Value or any Go value gocty can describe; input-column
// properties accept a *column.InputColumn or a []*column.InputColumn. A nil
// value clears the property. Values are converted to the declared type; a
// value that cannot be converted is rejected and the property keeps its
// previous value.
func (cb *ComponentBuilder) SetConfiguredProperty(name string, value any) error {
	const op = "set property"
	p, ok := cb.desc.Property(name)
	if !ok {
		return errs.Configuration(cb.name, op,
			fmt.Errorf("%w: %q is not a property of %s", errs.ErrInvalidProperty, name, cb.desc.Identity()))
	}

	if isNil(value) {
		delete(cb.values, name)
		delete(cb.columns, name)
		cb.changed()
		return nil
	}

	if p.InputColumn {
		cols, err := cb.checkColumns(p, value)
		if err != nil {
			return errs.Configuration(cb.name, op, err)
		}
		if len(cols) == 0 {
			delete(cb.columns, name)
		} else {
			cb.columns[name] = cols
		}
		cb.changed()
		return nil
	}

	v, err := toCtyValue(value)
	if err == nil && !v.IsNull() {
		v, err = convert.Convert(v, p.ValueType())
	}
	if err != nil {
		return errs.Configuration(cb.name, op,
			fmt.Errorf("%w: %q rejects value %s: %w", errs.ErrInvalidProperty, name, describeValue(value), err))
	}
	if v.IsNull() {
		delete(cb.values, name)
	} else {
		cb.values[name] = v
	}
	cb.changed()
	return nil
}

// SetInputColumns binds cols to the component's first input-column
// property.
func (cb *ComponentBuilder) SetInputColumns(cols ...*column.InputColumn) error {
	props := cb.desc.InputColumnProperties()
	if len(props) == 0 {
		return errs.Configuration(cb.name, "set property",
			fmt.Errorf("%w: %s has no input column property", errs.ErrInvalidProperty, cb.desc.Identity()))
	}
	return cb.SetConfiguredProperty(props[0].Name, cols)
}

func (cb *ComponentBuilder) checkColumns(p *descriptor.ConfiguredProperty, value any) ([]*column.InputColumn, error) {
	var cols []*column.InputColumn
	switch v := value.(type) {
	case *column.InputColumn:
		cols = []*column.InputColumn{v}
	case []*column.InputColumn:
		cols = slices.Clone(v)
	default:
		return nil, fmt.Errorf("%w: %q takes columns, got %s", errs.ErrInvalidProperty, p.Name, describeValue(value))
	}
	if !p.Array && len(cols) > 1 {
		return nil, fmt.Errorf("%w: %q takes a single column, got %d", errs.ErrInvalidProperty, p.Name, len(cols))
	}
	for _, c := range cols {
		if c == nil {
			return nil, fmt.Errorf("%w: %q rejects a nil column", errs.ErrInvalidProperty, p.Name)
		}
		if !p.AcceptsColumnType(c.Type()) {
			return nil, fmt.Errorf("%w: %q rejects column %s of type %s, want %s",
				errs.ErrInvalidProperty, p.Name, c, c.Type().FriendlyName(), p.Type.FriendlyName())
		}
		if slices.ContainsFunc(cb.outputs, func(o *column.InputColumn) bool { return o.Key() == c.Key() }) {
			return nil, fmt.Errorf("%w: component cannot consume its own output %s", errs.ErrCyclicDependency, c)
		}
	}
	return cols, nil
}

// SetRequirement gates the component on filter producing outcome.
func (cb *ComponentBuilder) SetRequirement(filter *ComponentBuilder, outcome string) error {
	const op = "set requirement"
	switch {
	case filter == nil:
		return errs.Configuration(cb.name, op, fmt.Errorf("%w: filter is nil", errs.ErrDanglingRequirement))
	case filter == cb:
		return errs.Configuration(cb.name, op, fmt.Errorf("%w: component requires itself", errs.ErrCyclicDependency))
	case cb.b == nil || filter.b != cb.b:
		return errs.Configuration(cb.name, op,
			fmt.Errorf("%w: filter %q is not part of the same builder", errs.ErrDanglingRequirement, filter.name))
	case filter.Kind() != descriptor.KindFilter:
		return errs.Configuration(cb.name, op,
			fmt.Errorf("%w: %q is a %s, not a filter", errs.ErrDanglingRequirement, filter.name, filter.Kind()))
	case !filter.desc.HasOutcome(outcome):
		return errs.Configuration(cb.name, op,
			fmt.Errorf("%w: %q is not an outcome of filter %q (%v)", errs.ErrDanglingRequirement, outcome, filter.name, filter.desc.Outcomes()))
	}
	cb.requirement = &requirement{filter: filter, outcome: outcome}
	cb.notifyRequirement()
	return nil
}

// ClearRequirement removes the component's requirement, if any.
func (cb *ComponentBuilder) ClearRequirement() {
	if cb.requirement == nil {
		return
	}
	cb.requirement = nil
	cb.notifyRequirement()
}

// Requirement returns the gating filter and outcome.
func (cb *ComponentBuilder) Requirement() (*ComponentBuilder, string, bool) {
	if cb.requirement == nil {
		return nil, "", false
	}
	return cb.requirement.filter, cb.requirement.outcome, true
}

// IsConfigured reports whether the component can be frozen into a job.
func (cb *ComponentBuilder) IsConfigured(includeOptional bool) bool {
	return cb.CheckConfigured(includeOptional) == nil
}

// CheckConfigured returns the first reason the component is not configured:
// a required property without a value (or any property when
// includeOptional is set), or a column binding outside its arity.
func (cb *ComponentBuilder) CheckConfigured(includeOptional bool) error {
	const op = "check configuration"
	for _, p := range cb.desc.Properties() {
		if p.InputColumn {
			n := len(cb.columns[p.Name])
			needed := p.Required || includeOptional
			if n == 0 && !needed {
				continue
			}
			least := p.MinColumns
			if needed && least < 1 {
				least = 1
			}
			if n < least {
				return errs.Configuration(cb.name, op,
					fmt.Errorf("%w: %q needs at least %d column(s), has %d", errs.ErrNotConfigured, p.Name, least, n))
			}
			if p.MaxColumns > 0 && n > p.MaxColumns {
				return errs.Configuration(cb.name, op,
					fmt.Errorf("%w: %q accepts at most %d column(s), has %d", errs.ErrNotConfigured, p.Name, p.MaxColumns, n))
			}
			continue
		}
		if !p.Required && !includeOptional {
			continue
		}
		if cb.Value(p.Name).IsNull() {
			return errs.Configuration(cb.name, op, fmt.Errorf("%w: %q has no value", errs.ErrNotConfigured, p.Name))
		}
	}
	return nil
}

// changed notifies listeners and refreshes derived output columns.
func (cb *ComponentBuilder) changed() {
	cb.notifyReconfigured()
	cb.refreshOutputs()
}

func (cb *ComponentBuilder) notifyReconfigured() {
	if cb.b != nil {
		cb.b.notify(func(l Listener) { l.ComponentReconfigured(cb) })
	}
}

func (cb *ComponentBuilder) notifyRequirement() {
	if cb.b != nil {
		cb.b.notify(func(l Listener) { l.RequirementChanged(cb) })
	}
}

// dropColumn removes every binding of the column with key and reports
// whether anything changed.
func (cb *ComponentBuilder) dropColumn(key string) bool {
	changed := false
	for name, cols := range cb.columns {
		kept := slices.DeleteFunc(slices.Clone(cols), func(c *column.InputColumn) bool { return c.Key() == key })
		if len(kept) == len(cols) {
			continue
		}
		changed = true
		if len(kept) == 0 {
			delete(cb.columns, name)
		} else {
			cb.columns[name] = kept
		}
	}
	return changed
}

// refreshOutputs re-derives a transformer's output columns from a fresh
// instance. Output i keeps its synthetic id across reconfiguration, so
// downstream bindings survive renames and retyping. Outputs that disappear
// are unbound from their consumers. An unconfigured transformer keeps its
// previous outputs.
func (cb *ComponentBuilder) refreshOutputs() {
	if cb.Kind() != descriptor.KindTransformer || cb.CheckConfigured(false) != nil {
		return
	}
	inst, err := cb.desc.Instantiate(cb.properties())
	if err != nil {
		return
	}
	if c, ok := inst.(io.Closer); ok {
		defer c.Close()
	}
	declared := inst.(descriptor.Transformer).OutputColumns()

	next := make([]*column.InputColumn, len(declared))
	for i, oc := range declared {
		if i < len(cb.outputs) {
			prev := cb.outputs[i]
			if prev.Name() == oc.Name && prev.Type().Equals(oc.Type) {
				next[i] = prev
				continue
			}
			next[i] = column.NewVirtualWithID(prev.ID(), oc.Name, oc.Type)
			continue
		}
		next[i] = column.NewVirtual(oc.Name, oc.Type)
	}
	var dropped []*column.InputColumn
	if len(cb.outputs) > len(next) {
		dropped = cb.outputs[len(next):]
	}
	cb.outputs = next

	if cb.b == nil {
		return
	}
	for _, c := range next {
		cb.b.rebind(c)
	}
	for _, c := range dropped {
		cb.b.unbind(c.Key(), cb)
	}
}

func (cb *ComponentBuilder) properties() descriptor.Properties {
	return descriptor.NewPropertyValues(cb.desc, cb.values, cb.columns, nil)
}

func (cb *ComponentBuilder) spec() job.ComponentSpec {
	s := job.ComponentSpec{
		Name:       cb.name,
		Descriptor: cb.desc,
		Values:     maps.Clone(cb.values),
		Columns:    make(map[string][]*column.InputColumn, len(cb.columns)),
		Outputs:    slices.Clone(cb.outputs),
	}
	for k, v := range cb.columns {
		s.Columns[k] = slices.Clone(v)
	}
	if cb.requirement != nil {
		s.Requirement = &job.RequirementSpec{Filter: cb.requirement.filter.name, Outcome: cb.requirement.outcome}
	}
	return s
}

func isNil(value any) bool {
	switch v := value.(type) {
	case nil:
		return true
	case *column.InputColumn:
		return v == nil
	case cty.Value:
		return v.IsNull()
	}
	return false
}

// toCtyValue describes a Go value as a cty.Value.
func toCtyValue(value any) (cty.Value, error) {
	if v, ok := value.(cty.Value); ok {
		return v, nil
	}
	ty, err := gocty.ImpliedType(value)
	if err != nil {
		return cty.NilVal, fmt.Errorf("unable to infer a type for %T: %w", value, err)
	}
	return gocty.ToCtyValue(value, ty)
}

func describeValue(value any) string {
	if v, ok := value.(cty.Value); ok {
		if !v.IsKnown() || v.IsNull() || !v.Type().IsPrimitiveType() {
			return v.Type().FriendlyName()
		}
		switch v.Type() {
		case cty.String:
			return fmt.Sprintf("%q", v.AsString())
		case cty.Number:
			return v.AsBigFloat().Text('g', -1)
		case cty.Bool:
			return fmt.Sprint(v.True())
		}
	}
	return fmt.Sprintf("%#v", value)
}
