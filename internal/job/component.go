package job

import (
	"fmt"
	"maps"
	"slices"

	"github.com/vk/cleangrid/internal/column"
	"github.com/vk/cleangrid/internal/descriptor"
	"github.com/vk/cleangrid/internal/nodeid"
	"github.com/zclconf/go-cty/cty"
)

// Requirement gates a component on the outcome of an upstream filter.
type Requirement struct {
	Filter  *ComponentJob
	Outcome string
}

// String implements fmt.Stringer.
func (r *Requirement) String() string {
	if r == nil {
		return "<none>"
	}
	return fmt.Sprintf("%s=%s", r.Filter.Name(), r.Outcome)
}

// ComponentJob is one configured, wired component inside a frozen job.
type ComponentJob struct {
	name        string
	address     *nodeid.Address
	desc        *descriptor.Descriptor
	values      map[string]cty.Value
	columns     map[string][]*column.InputColumn
	outputs     []*column.InputColumn
	requirement *Requirement
	index       int
}

// Name returns the component's name, unique within its job.
func (c *ComponentJob) Name() string { return c.name }

// Address returns the structured identifier of the component.
func (c *ComponentJob) Address() *nodeid.Address { return c.address }

// Kind returns the component's kind.
func (c *ComponentJob) Kind() descriptor.Kind { return c.desc.Kind() }

// Descriptor returns the component's descriptor.
func (c *ComponentJob) Descriptor() *descriptor.Descriptor { return c.desc }

// Index returns the component's position in the job's topological order.
func (c *ComponentJob) Index() int { return c.index }

// Value returns a configured value, falling back to the declared default.
func (c *ComponentJob) Value(name string) cty.Value {
	return descriptor.NewPropertyValues(c.desc, c.values, nil, nil).Value(name)
}

// Values returns a copy of the explicitly configured values.
func (c *ComponentJob) Values() map[string]cty.Value { return maps.Clone(c.values) }

// Columns returns the columns bound to an input-column property.
func (c *ComponentJob) Columns(name string) []*column.InputColumn {
	return slices.Clone(c.columns[name])
}

// ColumnBindings returns a copy of all input-column bindings.
func (c *ComponentJob) ColumnBindings() map[string][]*column.InputColumn {
	out := make(map[string][]*column.InputColumn, len(c.columns))
	for k, v := range c.columns {
		out[k] = slices.Clone(v)
	}
	return out
}

// InputColumns returns every distinct column the component consumes, ordered.
func (c *ComponentJob) InputColumns() []*column.InputColumn {
	seen := make(map[string]struct{})
	var out []*column.InputColumn
	for _, cols := range c.columns {
		for _, col := range cols {
			if _, ok := seen[col.Key()]; ok {
				continue
			}
			seen[col.Key()] = struct{}{}
			out = append(out, col)
		}
	}
	column.Sort(out)
	return out
}

// OutputColumns returns the virtual columns produced by a transformer.
func (c *ComponentJob) OutputColumns() []*column.InputColumn { return slices.Clone(c.outputs) }

// Requirement returns the component's requirement, or nil.
func (c *ComponentJob) Requirement() *Requirement { return c.requirement }

// Properties returns the component's configuration with the given helper
// objects injected, ready to be handed to the descriptor's factory.
func (c *ComponentJob) Properties(provided map[string]any) descriptor.Properties {
	return descriptor.NewPropertyValues(c.desc, c.values, c.columns, provided)
}

// String implements fmt.Stringer.
func (c *ComponentJob) String() string { return c.address.String() }
