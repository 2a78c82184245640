package builder

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sort"
	"strings"

	"github.com/vk/cleangrid/internal/column"
	"github.com/vk/cleangrid/internal/config"
	"github.com/vk/cleangrid/internal/ctxlog"
	"github.com/vk/cleangrid/internal/descriptor"
	"github.com/vk/cleangrid/internal/errs"
	"github.com/vk/cleangrid/internal/job"
	"github.com/vk/cleangrid/internal/registry"
	"github.com/zclconf/go-cty/cty"
)

const opLoad = "load definition"

// FromAnalysisJob creates a builder holding the same graph as j. Column
// instances, including transformer outputs, are shared with the job.
func FromAnalysisJob(reg *registry.Registry, j *job.AnalysisJob) *Builder {
	b := New(reg)
	b.meta = j.Metadata()
	b.sources = j.SourceColumns()

	byName := make(map[string]*ComponentBuilder)
	for _, c := range j.Components() {
		cb := newComponentBuilder(b, c.Descriptor(), c.Name())
		cb.values = c.Values()
		cb.columns = c.ColumnBindings()
		cb.outputs = c.OutputColumns()
		b.components = append(b.components, cb)
		byName[cb.name] = cb
	}
	for _, c := range j.Components() {
		if r := c.Requirement(); r != nil {
			byName[c.Name()].requirement = &requirement{filter: byName[r.Filter.Name()], outcome: r.Outcome}
		}
	}
	return b
}

// FromDefinition creates a builder from a declarative job definition.
// Descriptors are resolved through reg. Column bindings are resolved
// iteratively, so a component may consume the output of a transformer
// declared after it.
func FromDefinition(ctx context.Context, reg *registry.Registry, def *config.JobDefinition) (*Builder, error) {
	logger := ctxlog.FromContext(ctx)
	b := New(reg)
	b.meta = job.Metadata{Name: def.Name, Datastore: def.Datastore, Table: def.Table}

	for _, sc := range def.SourceColumns {
		typ := sc.Type
		if typ == cty.NilType {
			typ = cty.DynamicPseudoType
		}
		if err := b.AddSourceColumn(column.NewPhysical(sc.Name, sc.Number, typ)); err != nil {
			return nil, err
		}
	}

	type pendingBinding struct {
		cb       *ComponentBuilder
		property string
		refs     []string
	}
	var pending []pendingBinding

	for _, c := range def.Components {
		cb, err := b.addDefined(c)
		if err != nil {
			return nil, err
		}
		for _, name := range sortedKeys(c.Properties) {
			if err := cb.SetConfiguredProperty(name, c.Properties[name]); err != nil {
				return nil, err
			}
		}
		for _, name := range sortedKeys(c.Columns) {
			pending = append(pending, pendingBinding{cb: cb, property: name, refs: c.Columns[name]})
		}
	}

	// Binding columns may configure a transformer and so reveal its
	// outputs; repeat until no binding makes progress.
	for len(pending) > 0 {
		var next []pendingBinding
		for _, p := range pending {
			cols, ok := b.resolveRefs(p.refs)
			if !ok {
				next = append(next, p)
				continue
			}
			if err := p.cb.SetConfiguredProperty(p.property, cols); err != nil {
				return nil, err
			}
		}
		if len(next) == len(pending) {
			p := next[0]
			return nil, errs.Configuration(p.cb.name, opLoad,
				fmt.Errorf("%w: %q binds %s", errs.ErrUnresolvedColumn, p.property, b.unresolved(p.refs)))
		}
		pending = next
	}

	for _, c := range def.Components {
		if c.Requirement == nil {
			continue
		}
		cb, _ := b.Component(c.Name)
		filter, ok := b.Component(c.Requirement.Component)
		if !ok {
			return nil, errs.Configuration(c.Name, opLoad,
				fmt.Errorf("%w: filter %q is not part of the job", errs.ErrDanglingRequirement, c.Requirement.Component))
		}
		if err := cb.SetRequirement(filter, c.Requirement.Outcome); err != nil {
			return nil, err
		}
	}

	logger.Debug("Job definition loaded into builder.",
		"job", def.Name,
		"source_columns", len(b.sources),
		"components", len(b.components),
	)
	return b, nil
}

func (b *Builder) addDefined(c *config.Component) (*ComponentBuilder, error) {
	if b.reg == nil {
		return nil, errs.Configuration(c.Name, opLoad, fmt.Errorf("builder has no registry"))
	}
	d, ok := b.reg.Lookup(c.Descriptor)
	if !ok {
		return nil, errs.Configuration(c.Name, opLoad, fmt.Errorf("%w: %q", errs.ErrUnknownComponent, c.Descriptor))
	}
	kind, err := descriptor.ParseKind(c.Kind)
	if err != nil {
		return nil, errs.Configuration(c.Name, opLoad, err)
	}
	cb, err := b.addKind(d, kind)
	if err != nil {
		return nil, err
	}
	if err := cb.SetName(c.Name); err != nil {
		return nil, err
	}
	return cb, nil
}

// resolveRefs resolves column references: a source column name, or
// "<transformer>.<output>".
func (b *Builder) resolveRefs(refs []string) ([]*column.InputColumn, bool) {
	cols := make([]*column.InputColumn, 0, len(refs))
	for _, ref := range refs {
		col, ok := b.resolveRef(ref)
		if !ok {
			return nil, false
		}
		cols = append(cols, col)
	}
	return cols, true
}

func (b *Builder) resolveRef(ref string) (*column.InputColumn, bool) {
	if col, ok := b.SourceColumn(ref); ok {
		return col, true
	}
	producer, output, ok := strings.Cut(ref, ".")
	if !ok {
		return nil, false
	}
	cb, ok := b.Component(producer)
	if !ok {
		return nil, false
	}
	return cb.OutputColumn(output)
}

func (b *Builder) unresolved(refs []string) string {
	var missing []string
	for _, ref := range refs {
		if _, ok := b.resolveRef(ref); !ok {
			missing = append(missing, fmt.Sprintf("%q", ref))
		}
	}
	return "unknown column " + strings.Join(missing, ", ")
}

// columnRef returns the textual reference to col.
func (b *Builder) columnRef(col *column.InputColumn) (string, error) {
	if col.IsPhysical() {
		if b.sourceIndex(col) < 0 {
			return "", fmt.Errorf("%w: source column %s is not part of the job", errs.ErrUnresolvedColumn, col)
		}
		return col.Name(), nil
	}
	producer := b.producerOf(col.Key())
	if producer == nil {
		return "", fmt.Errorf("%w: column %s has no producer", errs.ErrUnresolvedColumn, col)
	}
	return producer.name + "." + col.Name(), nil
}

// Definition describes the builder's graph declaratively. Components are
// listed in the order they were added.
func (b *Builder) Definition() (*config.JobDefinition, error) {
	def := &config.JobDefinition{
		FormatVersion: config.CurrentFormatVersion,
		Name:          b.meta.Name,
		Datastore:     b.meta.Datastore,
		Table:         b.meta.Table,
	}

	sources := slices.Clone(b.sources)
	column.Sort(sources)
	for _, c := range sources {
		def.SourceColumns = append(def.SourceColumns, &config.SourceColumn{Name: c.Name(), Number: c.Number(), Type: c.Type()})
	}

	for _, cb := range b.components {
		c := &config.Component{
			Kind:       cb.Kind().String(),
			Descriptor: cb.desc.Identity(),
			Name:       cb.name,
			Properties: maps.Clone(cb.values),
			Columns:    make(map[string][]string, len(cb.columns)),
		}
		for name, cols := range cb.columns {
			refs := make([]string, len(cols))
			for i, col := range cols {
				ref, err := b.columnRef(col)
				if err != nil {
					return nil, errs.Configuration(cb.name, "describe job", err)
				}
				refs[i] = ref
			}
			c.Columns[name] = refs
		}
		if r := cb.requirement; r != nil {
			c.Requirement = &config.Requirement{Component: r.filter.name, Outcome: r.outcome}
		}
		def.Components = append(def.Components, c)
	}
	return def, nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
