package builder

import (
	"errors"
	"fmt"
	"regexp"
	"slices"

	"github.com/vk/cleangrid/internal/column"
	"github.com/vk/cleangrid/internal/descriptor"
	"github.com/vk/cleangrid/internal/errs"
	"github.com/vk/cleangrid/internal/job"
	"github.com/vk/cleangrid/internal/registry"
)

// Builder is a mutable job-in-progress.
type Builder struct {
	reg        *registry.Registry
	meta       job.Metadata
	sources    []*column.InputColumn
	components []*ComponentBuilder
	listeners  []Listener
}

// New creates an empty builder resolving descriptors through reg.
func New(reg *registry.Registry) *Builder {
	return &Builder{reg: reg}
}

// Registry returns the registry the builder resolves descriptors with.
func (b *Builder) Registry() *registry.Registry { return b.reg }

// Metadata returns the job metadata.
func (b *Builder) Metadata() job.Metadata { return b.meta }

// SetMetadata replaces the job metadata.
func (b *Builder) SetMetadata(meta job.Metadata) { b.meta = meta }

// AddSourceColumn makes a physical column available to components. Adding
// a column that is already present does nothing.
func (b *Builder) AddSourceColumn(col *column.InputColumn) error {
	if col == nil {
		return errs.Configuration("", "add source column", errors.New("column is nil"))
	}
	if !col.IsPhysical() {
		return errs.Configuration(col.Name(), "add source column", fmt.Errorf("%w: %s is not a physical column", errs.ErrInvalidProperty, col))
	}
	if b.sourceIndex(col) >= 0 {
		return nil
	}
	b.sources = append(b.sources, col)
	b.notify(func(l Listener) { l.SourceColumnAdded(col) })
	return nil
}

// RemoveSourceColumn removes a source column and unbinds it from every
// component. It reports whether the column was present.
func (b *Builder) RemoveSourceColumn(col *column.InputColumn) bool {
	i := b.sourceIndex(col)
	if i < 0 {
		return false
	}
	removed := b.sources[i]
	b.sources = slices.Delete(b.sources, i, i+1)
	b.notify(func(l Listener) { l.SourceColumnRemoved(removed) })
	b.unbind(removed.Key(), nil)
	return true
}

func (b *Builder) sourceIndex(col *column.InputColumn) int {
	if col == nil {
		return -1
	}
	return slices.IndexFunc(b.sources, func(c *column.InputColumn) bool { return c.Key() == col.Key() })
}

// SourceColumns returns the source columns in the order they were added.
func (b *Builder) SourceColumns() []*column.InputColumn { return slices.Clone(b.sources) }

// SourceColumn finds a source column by name.
func (b *Builder) SourceColumn(name string) (*column.InputColumn, bool) {
	for _, c := range b.sources {
		if c.Name() == name {
			return c, true
		}
	}
	return nil, false
}

// AddComponent adds a component of any kind bound to d.
func (b *Builder) AddComponent(d *descriptor.Descriptor) (*ComponentBuilder, error) {
	if d == nil {
		return nil, errs.Configuration("", "add component", fmt.Errorf("%w: nil descriptor", errs.ErrInvalidDescriptor))
	}
	if err := d.Validate(); err != nil {
		return nil, err
	}
	cb := newComponentBuilder(b, d, b.uniqueName(d.Identity()))
	b.components = append(b.components, cb)
	b.notify(func(l Listener) { l.ComponentAdded(cb) })
	cb.refreshOutputs()
	return cb, nil
}

// AddFilter adds a filter component.
func (b *Builder) AddFilter(d *descriptor.Descriptor) (*ComponentBuilder, error) {
	return b.addKind(d, descriptor.KindFilter)
}

// AddTransformer adds a transformer component.
func (b *Builder) AddTransformer(d *descriptor.Descriptor) (*ComponentBuilder, error) {
	return b.addKind(d, descriptor.KindTransformer)
}

// AddAnalyzer adds an analyzer component.
func (b *Builder) AddAnalyzer(d *descriptor.Descriptor) (*ComponentBuilder, error) {
	return b.addKind(d, descriptor.KindAnalyzer)
}

func (b *Builder) addKind(d *descriptor.Descriptor, kind descriptor.Kind) (*ComponentBuilder, error) {
	if d != nil && d.Kind() != kind {
		return nil, errs.Configuration(d.Identity(), "add component",
			fmt.Errorf("%w: %s is a %s, not a %s", errs.ErrInvalidDescriptor, d.Identity(), d.Kind(), kind))
	}
	return b.AddComponent(d)
}

// AddComponentByName resolves ref (identity, display name or alias) in the
// registry and adds a component bound to it.
func (b *Builder) AddComponentByName(ref string) (*ComponentBuilder, error) {
	if b.reg == nil {
		return nil, errs.Configuration(ref, "add component", errors.New("builder has no registry"))
	}
	d, ok := b.reg.Lookup(ref)
	if !ok {
		return nil, errs.Configuration(ref, "add component", fmt.Errorf("%w: %q", errs.ErrUnknownComponent, ref))
	}
	return b.AddComponent(d)
}

// RemoveComponent removes cb. Requirements on cb and bindings to its output
// columns are cleared first, each with its own notification.
func (b *Builder) RemoveComponent(cb *ComponentBuilder) error {
	i := slices.Index(b.components, cb)
	if i < 0 {
		return errs.Configuration(cb.Name(), "remove component", errors.New("component is not part of this builder"))
	}
	for _, other := range b.components {
		if other != cb && other.requirement != nil && other.requirement.filter == cb {
			other.ClearRequirement()
		}
	}
	for _, out := range cb.outputs {
		b.unbind(out.Key(), cb)
	}
	b.components = slices.Delete(b.components, i, i+1)
	cb.b = nil
	b.notify(func(l Listener) { l.ComponentRemoved(cb) })
	return nil
}

// unbind drops every binding of the column with the given key from all
// components except skip.
func (b *Builder) unbind(key string, skip *ComponentBuilder) {
	for _, cb := range b.components {
		if cb == skip {
			continue
		}
		if cb.dropColumn(key) {
			b.notify(func(l Listener) { l.ComponentReconfigured(cb) })
			cb.refreshOutputs()
		}
	}
}

// rebind replaces the bound instance of a column in every component, after
// a transformer renamed or retyped one of its outputs.
func (b *Builder) rebind(col *column.InputColumn) {
	for _, cb := range b.components {
		for name, cols := range cb.columns {
			for i, c := range cols {
				if c.Key() == col.Key() && c != col {
					cb.columns[name][i] = col
				}
			}
		}
	}
}

// Components returns the components in the order they were added.
func (b *Builder) Components() []*ComponentBuilder { return slices.Clone(b.components) }

// Component finds a component by name.
func (b *Builder) Component(name string) (*ComponentBuilder, bool) {
	for _, cb := range b.components {
		if cb.name == name {
			return cb, true
		}
	}
	return nil, false
}

// Filters returns the filter components.
func (b *Builder) Filters() []*ComponentBuilder { return b.ofKind(descriptor.KindFilter) }

// Transformers returns the transformer components.
func (b *Builder) Transformers() []*ComponentBuilder { return b.ofKind(descriptor.KindTransformer) }

// Analyzers returns the analyzer components.
func (b *Builder) Analyzers() []*ComponentBuilder { return b.ofKind(descriptor.KindAnalyzer) }

func (b *Builder) ofKind(k descriptor.Kind) []*ComponentBuilder {
	var out []*ComponentBuilder
	for _, cb := range b.components {
		if cb.Kind() == k {
			out = append(out, cb)
		}
	}
	return out
}

// AvailableInputColumns returns the columns cb may consume: the source
// columns followed by the outputs of every other transformer.
func (b *Builder) AvailableInputColumns(cb *ComponentBuilder) []*column.InputColumn {
	out := slices.Clone(b.sources)
	for _, other := range b.components {
		if other != cb {
			out = append(out, other.outputs...)
		}
	}
	return out
}

// producerOf returns the transformer producing the column with key, or nil.
func (b *Builder) producerOf(key string) *ComponentBuilder {
	for _, cb := range b.components {
		for _, out := range cb.outputs {
			if out.Key() == key {
				return cb
			}
		}
	}
	return nil
}

// IsConfigured reports whether every component is configured.
func (b *Builder) IsConfigured(includeOptional bool) bool {
	return b.CheckConfigured(includeOptional) == nil
}

// CheckConfigured returns the first configuration problem of any component.
func (b *Builder) CheckConfigured(includeOptional bool) error {
	for _, cb := range b.components {
		if err := cb.CheckConfigured(includeOptional); err != nil {
			return err
		}
	}
	return nil
}

// ToAnalysisJob validates the whole graph and freezes a snapshot of it.
func (b *Builder) ToAnalysisJob() (*job.AnalysisJob, error) {
	if err := b.CheckConfigured(false); err != nil {
		return nil, err
	}
	specs := make([]job.ComponentSpec, 0, len(b.components))
	for _, cb := range b.components {
		specs = append(specs, cb.spec())
	}
	return job.New(b.meta, b.sources, specs)
}

var invalidNameChars = regexp.MustCompile(`[^a-zA-Z0-9_-]+`)

// uniqueName derives a component name from base that no component uses yet.
func (b *Builder) uniqueName(base string) string {
	base = invalidNameChars.ReplaceAllString(base, "_")
	if base == "" || base == "-" {
		base = "component"
	}
	name := base
	for i := 2; ; i++ {
		if _, taken := b.Component(name); !taken {
			return name
		}
		name = fmt.Sprintf("%s-%d", base, i)
	}
}
