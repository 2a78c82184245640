// Package value_distribution provides an analyzer counting how often each
// value of a column occurs.
package value_distribution

import (
	"cmp"
	"fmt"
	"maps"
	"slices"

	"github.com/vk/cleangrid/internal/column"
	"github.com/vk/cleangrid/internal/descriptor"
	"github.com/vk/cleangrid/internal/registry"
	"github.com/zclconf/go-cty/cty"
)

// Module implements the registry.Module interface for this package.
type Module struct{}

// Descriptor describes the value-distribution analyzer.
var Descriptor = descriptor.NewAnalyzer("value-distribution", New).
	DisplayName("Value distribution").
	Description("Counts the occurrences of every distinct value of a column.").
	InputColumns("column", cty.DynamicPseudoType, descriptor.Arity(1, 1)).
	Property("top_n", cty.Number, descriptor.Optional(),
		descriptor.Describe("Number of most frequent values to report. All values are reported when unset.")).
	Reducer(Reduce).
	Build()

// ValueCount is one entry of a distribution.
type ValueCount struct {
	Value string `yaml:"value"`
	Count int64  `yaml:"count"`
}

// Distribution is the result of the analyzer. Counts holds every distinct
// value; TopN only limits what Top reports.
type Distribution struct {
	Column string           `yaml:"column"`
	Rows   int64            `yaml:"rows"`
	Nulls  int64            `yaml:"nulls"`
	TopN   int              `yaml:"top_n,omitempty"`
	Counts map[string]int64 `yaml:"-"`
}

// Distinct returns the number of distinct non-null values.
func (d *Distribution) Distinct() int { return len(d.Counts) }

// Top returns the most frequent values, most frequent first. Ties are
// ordered by value.
func (d *Distribution) Top() []ValueCount {
	out := make([]ValueCount, 0, len(d.Counts))
	for _, v := range slices.Sorted(maps.Keys(d.Counts)) {
		out = append(out, ValueCount{Value: v, Count: d.Counts[v]})
	}
	slices.SortStableFunc(out, func(a, b ValueCount) int { return cmp.Compare(b.Count, a.Count) })
	if d.TopN > 0 && len(out) > d.TopN {
		out = out[:d.TopN]
	}
	return out
}

// MarshalYAML renders the reported values instead of the raw counts.
func (d *Distribution) MarshalYAML() (any, error) {
	return struct {
		Column   string       `yaml:"column"`
		Rows     int64        `yaml:"rows"`
		Nulls    int64        `yaml:"nulls"`
		Distinct int          `yaml:"distinct"`
		Top      []ValueCount `yaml:"top"`
	}{d.Column, d.Rows, d.Nulls, d.Distinct(), d.Top()}, nil
}

// Analyzer is a value-distribution instance.
type Analyzer struct {
	col  *column.InputColumn
	dist *Distribution
}

// New creates an Analyzer from its properties.
func New(p descriptor.Properties) (descriptor.Analyzer, error) {
	cols := p.Columns("column")
	if len(cols) != 1 {
		return nil, fmt.Errorf("value distribution takes exactly one column, got %d", len(cols))
	}
	topN, err := descriptor.Get[int](p, "top_n")
	if err != nil {
		return nil, err
	}
	if topN < 0 {
		return nil, fmt.Errorf("top_n must not be negative, got %d", topN)
	}
	return &Analyzer{
		col:  cols[0],
		dist: &Distribution{Column: cols[0].Name(), TopN: topN, Counts: make(map[string]int64)},
	}, nil
}

// Run implements descriptor.Analyzer.
func (a *Analyzer) Run(row column.Row) error {
	a.dist.Rows++
	v := row.Value(a.col)
	if v.IsNull() || !v.IsKnown() {
		a.dist.Nulls++
		return nil
	}
	a.dist.Counts[column.Format(v)]++
	return nil
}

// Result implements descriptor.Analyzer.
func (a *Analyzer) Result() (descriptor.Result, error) {
	return a.dist, nil
}

// Reduce adds up partial distributions.
func Reduce(partials []descriptor.Result) (descriptor.Result, error) {
	var out *Distribution
	for _, p := range partials {
		d, ok := p.(*Distribution)
		if !ok {
			return nil, fmt.Errorf("unexpected partial result %T", p)
		}
		if out == nil {
			out = &Distribution{Column: d.Column, TopN: d.TopN, Counts: make(map[string]int64, len(d.Counts))}
		}
		out.Rows += d.Rows
		out.Nulls += d.Nulls
		for v, n := range d.Counts {
			out.Counts[v] += n
		}
	}
	return out, nil
}

// Register registers the analyzer's descriptor.
func (m *Module) Register(r *registry.Registry) error {
	return r.Register(Descriptor)
}
