package job

import (
	"errors"
	"fmt"
	"maps"
	"slices"

	"github.com/vk/cleangrid/internal/column"
	"github.com/vk/cleangrid/internal/dag"
	"github.com/vk/cleangrid/internal/descriptor"
	"github.com/vk/cleangrid/internal/errs"
	"github.com/vk/cleangrid/internal/nodeid"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"
)

const opValidate = "validate job"

// Metadata names a job and the table it reads from.
type Metadata struct {
	Name      string
	Datastore string
	Table     string
}

// RequirementSpec is the unresolved form of a Requirement: the name of the
// gating filter and the outcome it must have produced.
type RequirementSpec struct {
	Filter  string
	Outcome string
}

// ComponentSpec is the unresolved description of one component handed to New.
type ComponentSpec struct {
	Name        string
	Descriptor  *descriptor.Descriptor
	Values      map[string]cty.Value
	Columns     map[string][]*column.InputColumn
	Outputs     []*column.InputColumn
	Requirement *RequirementSpec
}

// AnalysisJob is the frozen, validated component graph.
type AnalysisJob struct {
	meta       Metadata
	sources    []*column.InputColumn
	components []*ComponentJob
	byName     map[string]*ComponentJob
	producers  map[string]*ComponentJob
}

// New validates the graph described by sources and specs and freezes it.
// The first violated invariant is reported as a configuration error.
func New(meta Metadata, sources []*column.InputColumn, specs []ComponentSpec) (*AnalysisJob, error) {
	v := &validator{
		sources:  make(map[string]*column.InputColumn),
		specs:    make(map[string]*ComponentSpec, len(specs)),
		producer: make(map[string]string),
		outputs:  make(map[string]*column.InputColumn),
	}

	srcs, err := v.collectSources(sources)
	if err != nil {
		return nil, err
	}
	for i := range specs {
		if err := v.collectSpec(&specs[i]); err != nil {
			return nil, err
		}
	}
	for _, s := range v.order {
		if err := v.checkValues(s); err != nil {
			return nil, err
		}
		if err := v.checkColumns(s); err != nil {
			return nil, err
		}
		if err := v.checkRequirement(s); err != nil {
			return nil, err
		}
	}

	sorted, err := v.sort()
	if err != nil {
		return nil, err
	}
	return v.freeze(meta, srcs, sorted), nil
}

type validator struct {
	sources  map[string]*column.InputColumn
	specs    map[string]*ComponentSpec
	order    []*ComponentSpec
	producer map[string]string // column key -> producing component
	outputs  map[string]*column.InputColumn
}

func (v *validator) collectSources(cols []*column.InputColumn) ([]*column.InputColumn, error) {
	out := make([]*column.InputColumn, 0, len(cols))
	for _, c := range cols {
		if c == nil {
			return nil, errs.Configuration("", opValidate, errors.New("source column is nil"))
		}
		if !c.IsPhysical() {
			return nil, errs.Configuration(c.Name(), opValidate,
				fmt.Errorf("%w: source column %q is not physical", errs.ErrInvalidProperty, c.Name()))
		}
		if _, dup := v.sources[c.Key()]; dup {
			continue
		}
		v.sources[c.Key()] = c
		out = append(out, c)
	}
	column.Sort(out)
	return out, nil
}

func (v *validator) collectSpec(s *ComponentSpec) error {
	if s.Descriptor == nil {
		return errs.Configuration(s.Name, opValidate, errors.New("component has no descriptor"))
	}
	if err := nodeid.ValidateName(s.Name); err != nil {
		return errs.Configuration(s.Name, opValidate, err)
	}
	if _, dup := v.specs[s.Name]; dup {
		return errs.Configuration(s.Name, opValidate, fmt.Errorf("component name %q is used more than once", s.Name))
	}
	if len(s.Outputs) > 0 && s.Descriptor.Kind() != descriptor.KindTransformer {
		return errs.Configuration(s.Name, opValidate,
			fmt.Errorf("%w: only transformers produce columns", errs.ErrInvalidProperty))
	}
	for _, out := range s.Outputs {
		if out == nil || !out.IsVirtual() {
			return errs.Configuration(s.Name, opValidate,
				fmt.Errorf("%w: transformer output %v is not a virtual column", errs.ErrInvalidProperty, out))
		}
		if _, isSource := v.sources[out.Key()]; isSource {
			return errs.Configuration(s.Name, opValidate, fmt.Errorf("column %s has more than one producer", out))
		}
		if other, dup := v.producer[out.Key()]; dup {
			return errs.Configuration(s.Name, opValidate,
				fmt.Errorf("column %s has more than one producer: also produced by %q", out, other))
		}
		v.producer[out.Key()] = s.Name
		v.outputs[out.Key()] = out
	}
	v.specs[s.Name] = s
	v.order = append(v.order, s)
	return nil
}

func (v *validator) checkValues(s *ComponentSpec) error {
	for name, val := range s.Values {
		p, ok := s.Descriptor.Property(name)
		if !ok {
			return errs.Configuration(s.Name, opValidate,
				fmt.Errorf("%w: %q is not a property of %s", errs.ErrInvalidProperty, name, s.Descriptor.Identity()))
		}
		if p.InputColumn {
			return errs.Configuration(s.Name, opValidate,
				fmt.Errorf("%w: %q takes columns, not a value", errs.ErrInvalidProperty, name))
		}
		if val.IsNull() {
			continue
		}
		if _, err := convert.Convert(val, p.ValueType()); err != nil {
			return errs.Configuration(s.Name, opValidate,
				fmt.Errorf("%w: %q: %w", errs.ErrInvalidProperty, name, err))
		}
	}
	return nil
}

func (v *validator) checkColumns(s *ComponentSpec) error {
	for name := range s.Columns {
		p, ok := s.Descriptor.Property(name)
		if !ok || !p.InputColumn {
			return errs.Configuration(s.Name, opValidate,
				fmt.Errorf("%w: %q is not an input column property of %s", errs.ErrInvalidProperty, name, s.Descriptor.Identity()))
		}
	}
	for _, p := range s.Descriptor.InputColumnProperties() {
		for _, col := range s.Columns[p.Name] {
			if col == nil {
				return errs.Configuration(s.Name, opValidate,
					fmt.Errorf("%w: %q references a nil column", errs.ErrUnresolvedColumn, p.Name))
			}
			if _, ok := v.sources[col.Key()]; ok {
				continue
			}
			producer, ok := v.producer[col.Key()]
			if !ok {
				return errs.Configuration(s.Name, opValidate,
					fmt.Errorf("%w: column %s has no producer", errs.ErrUnresolvedColumn, col))
			}
			if producer == s.Name {
				return errs.Configuration(s.Name, opValidate,
					fmt.Errorf("%w: component consumes its own output %s", errs.ErrCyclicDependency, col))
			}
		}
	}
	return nil
}

func (v *validator) checkRequirement(s *ComponentSpec) error {
	r := s.Requirement
	if r == nil {
		return nil
	}
	if r.Filter == s.Name {
		return errs.Configuration(s.Name, opValidate,
			fmt.Errorf("%w: component requires itself", errs.ErrCyclicDependency))
	}
	f, ok := v.specs[r.Filter]
	if !ok {
		return errs.Configuration(s.Name, opValidate,
			fmt.Errorf("%w: filter %q is not part of the job", errs.ErrDanglingRequirement, r.Filter))
	}
	if f.Descriptor.Kind() != descriptor.KindFilter {
		return errs.Configuration(s.Name, opValidate,
			fmt.Errorf("%w: %q is a %s, not a filter", errs.ErrDanglingRequirement, r.Filter, f.Descriptor.Kind()))
	}
	if !f.Descriptor.HasOutcome(r.Outcome) {
		return errs.Configuration(s.Name, opValidate,
			fmt.Errorf("%w: %q is not an outcome of filter %q (%v)", errs.ErrDanglingRequirement, r.Outcome, r.Filter, f.Descriptor.Outcomes()))
	}
	return nil
}

// sort orders the components so that producers and gating filters precede
// their dependents. Analyzers are held back while other components are ready.
func (v *validator) sort() ([]*ComponentSpec, error) {
	g := dag.New()
	for _, s := range v.order {
		g.AddNode(s.Name)
	}
	for _, s := range v.order {
		for _, cols := range s.Columns {
			for _, col := range cols {
				if producer, ok := v.producer[col.Key()]; ok {
					if err := g.AddEdge(producer, s.Name); err != nil {
						return nil, errs.Configuration(s.Name, opValidate, err)
					}
				}
			}
		}
		if s.Requirement != nil {
			if err := g.AddEdge(s.Requirement.Filter, s.Name); err != nil {
				return nil, errs.Configuration(s.Name, opValidate, err)
			}
		}
	}

	if err := g.DetectCycles(); err != nil {
		return nil, errs.Configuration("", opValidate, fmt.Errorf("%w: %w", errs.ErrCyclicDependency, err))
	}
	ids, err := g.TopologicalSort(func(id string) int {
		if v.specs[id].Descriptor.Kind() == descriptor.KindAnalyzer {
			return 1
		}
		return 0
	})
	if err != nil {
		return nil, errs.Configuration("", opValidate, fmt.Errorf("%w: %w", errs.ErrCyclicDependency, err))
	}

	out := make([]*ComponentSpec, len(ids))
	for i, id := range ids {
		out[i] = v.specs[id]
	}
	return out, nil
}

// canonical returns the column instance owned by its producer, so every
// consumer of a column shares one pointer.
func (v *validator) canonical(col *column.InputColumn) *column.InputColumn {
	if c, ok := v.sources[col.Key()]; ok {
		return c
	}
	return v.outputs[col.Key()]
}

func (v *validator) freeze(meta Metadata, sources []*column.InputColumn, sorted []*ComponentSpec) *AnalysisJob {
	j := &AnalysisJob{
		meta:       meta,
		sources:    sources,
		components: make([]*ComponentJob, len(sorted)),
		byName:     make(map[string]*ComponentJob, len(sorted)),
		producers:  make(map[string]*ComponentJob),
	}

	for i, s := range sorted {
		cj := &ComponentJob{
			name:    s.Name,
			address: nodeid.Component(s.Descriptor.Kind().String(), s.Name),
			desc:    s.Descriptor,
			values:  make(map[string]cty.Value, len(s.Values)),
			columns: make(map[string][]*column.InputColumn, len(s.Columns)),
			outputs: slices.Clone(s.Outputs),
			index:   i,
		}
		for name, val := range s.Values {
			if val.IsNull() {
				continue
			}
			p, _ := s.Descriptor.Property(name)
			if conv, err := convert.Convert(val, p.ValueType()); err == nil {
				val = conv
			}
			cj.values[name] = val
		}
		for name, cols := range s.Columns {
			bound := make([]*column.InputColumn, len(cols))
			for k, col := range cols {
				bound[k] = v.canonical(col)
			}
			cj.columns[name] = bound
		}
		for _, out := range cj.outputs {
			j.producers[out.Key()] = cj
		}
		j.components[i] = cj
		j.byName[cj.name] = cj
	}

	// Filters precede their dependents, so requirements resolve in one pass.
	for i, s := range sorted {
		if s.Requirement != nil {
			j.components[i].requirement = &Requirement{
				Filter:  j.byName[s.Requirement.Filter],
				Outcome: s.Requirement.Outcome,
			}
		}
	}
	return j
}

// Metadata returns the job's metadata.
func (j *AnalysisJob) Metadata() Metadata { return j.meta }

// Name returns the job's name.
func (j *AnalysisJob) Name() string { return j.meta.Name }

// SourceColumns returns the physical columns, ordered by column number.
func (j *AnalysisJob) SourceColumns() []*column.InputColumn { return slices.Clone(j.sources) }

// Components returns every component in topological order.
func (j *AnalysisJob) Components() []*ComponentJob { return slices.Clone(j.components) }

// Filters returns the filter components in topological order.
func (j *AnalysisJob) Filters() []*ComponentJob { return j.ofKind(descriptor.KindFilter) }

// Transformers returns the transformer components in topological order.
func (j *AnalysisJob) Transformers() []*ComponentJob { return j.ofKind(descriptor.KindTransformer) }

// Analyzers returns the analyzer components in topological order.
func (j *AnalysisJob) Analyzers() []*ComponentJob { return j.ofKind(descriptor.KindAnalyzer) }

func (j *AnalysisJob) ofKind(k descriptor.Kind) []*ComponentJob {
	var out []*ComponentJob
	for _, c := range j.components {
		if c.Kind() == k {
			out = append(out, c)
		}
	}
	return out
}

// Component finds a component by name. A full address such as
// `analyzer.stats` is accepted too and must match the component's kind.
func (j *AnalysisJob) Component(name string) (*ComponentJob, bool) {
	if c, ok := j.byName[name]; ok {
		return c, true
	}
	addr, err := nodeid.Parse(name)
	if err != nil || addr.HasPartition() {
		return nil, false
	}
	c, ok := j.byName[addr.Name]
	if !ok || !c.Address().Equal(addr) {
		return nil, false
	}
	return c, true
}

// Producer returns the transformer producing col, or nil for source columns.
func (j *AnalysisJob) Producer(col *column.InputColumn) *ComponentJob {
	if col == nil {
		return nil
	}
	return j.producers[col.Key()]
}

// ColumnRef returns the textual reference to col used in job definitions:
// the bare name of a source column, or "<transformer>.<output>" for a
// virtual one.
func (j *AnalysisJob) ColumnRef(col *column.InputColumn) string {
	if p := j.Producer(col); p != nil {
		return p.Name() + "." + col.Name()
	}
	return col.Name()
}

// Equal reports whether two jobs describe the same graph: same metadata,
// source columns, components, property values, column bindings and
// requirements. Virtual column ids are not compared.
func (j *AnalysisJob) Equal(o *AnalysisJob) bool {
	if j == nil || o == nil {
		return j == o
	}
	if j.meta != o.meta || len(j.sources) != len(o.sources) || len(j.components) != len(o.components) {
		return false
	}
	for i, c := range j.sources {
		oc := o.sources[i]
		if c.Name() != oc.Name() || c.Number() != oc.Number() || !c.Type().Equals(oc.Type()) {
			return false
		}
	}
	for _, c := range j.components {
		oc, ok := o.byName[c.name]
		if !ok || !j.componentEqual(c, o, oc) {
			return false
		}
	}
	return true
}

func (j *AnalysisJob) componentEqual(c *ComponentJob, o *AnalysisJob, oc *ComponentJob) bool {
	if c.desc.Identity() != oc.desc.Identity() || c.Kind() != oc.Kind() {
		return false
	}
	if !maps.EqualFunc(c.values, oc.values, valuesEqual) {
		return false
	}
	if len(c.columns) != len(oc.columns) {
		return false
	}
	for name, cols := range c.columns {
		ocols, ok := oc.columns[name]
		if !ok || len(cols) != len(ocols) {
			return false
		}
		for k := range cols {
			if j.ColumnRef(cols[k]) != o.ColumnRef(ocols[k]) {
				return false
			}
		}
	}
	if len(c.outputs) != len(oc.outputs) {
		return false
	}
	for k := range c.outputs {
		if c.outputs[k].Name() != oc.outputs[k].Name() || !c.outputs[k].Type().Equals(oc.outputs[k].Type()) {
			return false
		}
	}
	switch {
	case c.requirement == nil && oc.requirement == nil:
		return true
	case c.requirement == nil || oc.requirement == nil:
		return false
	default:
		return c.requirement.Filter.name == oc.requirement.Filter.name &&
			c.requirement.Outcome == oc.requirement.Outcome
	}
}

func valuesEqual(a, b cty.Value) bool {
	if a.IsNull() || b.IsNull() {
		return a.IsNull() && b.IsNull()
	}
	if !a.IsWhollyKnown() || !b.IsWhollyKnown() {
		return false
	}
	if conv, err := convert.Convert(b, a.Type()); err == nil {
		b = conv
	}
	return a.Equals(b).True()
}
