package descriptor

import (
	"fmt"
	"slices"

	"github.com/vk/cleangrid/internal/errs"
)

// Descriptor is the immutable metadata of a component type.
type Descriptor struct {
	identity    string
	displayName string
	description string
	aliases     []string
	kind        Kind
	properties  []*ConfiguredProperty
	provided    []*ProvidedProperty
	outcomes    []string
	reducer     Reducer
	factory     Factory
}

// Identity returns the implementation identity, unique within a registry.
func (d *Descriptor) Identity() string { return d.identity }

// DisplayName returns the human readable name.
func (d *Descriptor) DisplayName() string { return d.displayName }

// Description returns the human readable description.
func (d *Descriptor) Description() string { return d.description }

// Aliases returns alternative display names.
func (d *Descriptor) Aliases() []string { return slices.Clone(d.aliases) }

// Kind returns the role of the component type.
func (d *Descriptor) Kind() Kind { return d.kind }

// Properties returns the configured properties, input-column properties first.
func (d *Descriptor) Properties() []*ConfiguredProperty { return slices.Clone(d.properties) }

// Property returns the configured property with the given name.
func (d *Descriptor) Property(name string) (*ConfiguredProperty, bool) {
	for _, p := range d.properties {
		if p.Name == name {
			return p, true
		}
	}
	return nil, false
}

// InputColumnProperties returns the properties that bind columns.
func (d *Descriptor) InputColumnProperties() []*ConfiguredProperty {
	var out []*ConfiguredProperty
	for _, p := range d.properties {
		if p.InputColumn {
			out = append(out, p)
		}
	}
	return out
}

// Provided returns the provided properties.
func (d *Descriptor) Provided() []*ProvidedProperty { return slices.Clone(d.provided) }

// Outcomes returns the outcome categories of a filter.
func (d *Descriptor) Outcomes() []string { return slices.Clone(d.outcomes) }

// HasOutcome reports whether o is one of the filter's outcome categories.
func (d *Descriptor) HasOutcome(o string) bool { return slices.Contains(d.outcomes, o) }

// IsDistributable reports whether partial results of the analyzer can be
// reduced, which allows running it over more than one partition.
func (d *Descriptor) IsDistributable() bool { return d.reducer != nil }

// Reduce combines partial results with the descriptor's reducer.
func (d *Descriptor) Reduce(partials []Result) (Result, error) {
	if d.reducer == nil {
		return nil, errs.Configuration(d.identity, "reduce", errs.ErrNotDistributable)
	}
	return d.reducer(partials)
}

// Instantiate creates a new component instance and checks that it
// implements the contract of the descriptor's kind.
func (d *Descriptor) Instantiate(props Properties) (any, error) {
	if d.factory == nil {
		return nil, errs.Configuration(d.identity, "instantiate", fmt.Errorf("%w: no factory", errs.ErrInvalidDescriptor))
	}
	c, err := d.factory(props)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, fmt.Errorf("factory of %q returned a nil component", d.identity)
	}

	var ok bool
	switch d.kind {
	case KindFilter:
		_, ok = c.(Filter)
	case KindTransformer:
		_, ok = c.(Transformer)
	case KindAnalyzer:
		_, ok = c.(Analyzer)
	}
	if !ok {
		return nil, fmt.Errorf("component %T of %q does not implement the %s contract", c, d.identity, d.kind)
	}
	return c, nil
}

// String implements fmt.Stringer.
func (d *Descriptor) String() string {
	return fmt.Sprintf("%s %q", d.kind, d.identity)
}
