// Package row_sampler provides an analyzer keeping the first rows it sees.
//
// A sample depends on source order, so the analyzer has no reducer and a
// job using it runs in a single partition.
package row_sampler

import (
	"fmt"

	"github.com/vk/cleangrid/internal/column"
	"github.com/vk/cleangrid/internal/descriptor"
	"github.com/vk/cleangrid/internal/registry"
	"github.com/zclconf/go-cty/cty"
)

// DefaultSampleSize is the number of rows kept when sample_size is unset.
const DefaultSampleSize = 10

// Module implements the registry.Module interface for this package.
type Module struct{}

// Descriptor describes the row-sampler analyzer.
var Descriptor = descriptor.NewAnalyzer("row-sampler", New).
	DisplayName("Row sampler").
	Description("Keeps the first rows in source order.").
	InputColumns("columns", cty.DynamicPseudoType).
	Property("sample_size", cty.Number, descriptor.Default(cty.NumberIntVal(DefaultSampleSize))).
	Build()

// Sample is the result of the analyzer. Rows hold formatted values in
// column order.
type Sample struct {
	Columns []string   `yaml:"columns"`
	RowIDs  []int64    `yaml:"row_ids"`
	Rows    [][]string `yaml:"rows"`
}

// Analyzer is a row-sampler instance.
type Analyzer struct {
	cols   []*column.InputColumn
	size   int
	sample *Sample
}

// New creates an Analyzer from its properties.
func New(p descriptor.Properties) (descriptor.Analyzer, error) {
	size, err := descriptor.Get[int](p, "sample_size")
	if err != nil {
		return nil, err
	}
	if size < 1 {
		return nil, fmt.Errorf("sample_size must be at least 1, got %d", size)
	}
	cols := p.Columns("columns")
	names := make([]string, len(cols))
	for i, c := range cols {
		names[i] = c.Name()
	}
	return &Analyzer{cols: cols, size: size, sample: &Sample{Columns: names}}, nil
}

// Run implements descriptor.Analyzer.
func (a *Analyzer) Run(row column.Row) error {
	if len(a.sample.Rows) >= a.size {
		return nil
	}
	values := make([]string, len(a.cols))
	for i, c := range a.cols {
		values[i] = column.Format(row.Value(c))
	}
	a.sample.RowIDs = append(a.sample.RowIDs, row.ID())
	a.sample.Rows = append(a.sample.Rows, values)
	return nil
}

// Result implements descriptor.Analyzer.
func (a *Analyzer) Result() (descriptor.Result, error) {
	return a.sample, nil
}

// Register registers the analyzer's descriptor.
func (m *Module) Register(r *registry.Registry) error {
	return r.Register(Descriptor)
}
