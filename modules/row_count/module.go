// Package row_count provides an analyzer counting the rows it sees.
package row_count

import (
	"fmt"

	"github.com/vk/cleangrid/internal/column"
	"github.com/vk/cleangrid/internal/descriptor"
	"github.com/vk/cleangrid/internal/registry"
	"github.com/zclconf/go-cty/cty"
)

// Module implements the registry.Module interface for this package.
type Module struct{}

// Descriptor describes the row-count analyzer.
var Descriptor = descriptor.NewAnalyzer("row-count", New).
	DisplayName("Row count").
	Description("Counts rows.").
	InputColumns("columns", cty.DynamicPseudoType, descriptor.Optional()).
	Reducer(Reduce).
	Build()

// Analyzer is a row-count instance.
type Analyzer struct {
	rows int64
}

// New creates an Analyzer.
func New(descriptor.Properties) (descriptor.Analyzer, error) {
	return &Analyzer{}, nil
}

// Run implements descriptor.Analyzer.
func (a *Analyzer) Run(column.Row) error {
	a.rows++
	return nil
}

// Result implements descriptor.Analyzer. The result is an int64.
func (a *Analyzer) Result() (descriptor.Result, error) {
	return a.rows, nil
}

// Reduce sums partial counts.
func Reduce(partials []descriptor.Result) (descriptor.Result, error) {
	var total int64
	for _, p := range partials {
		n, ok := p.(int64)
		if !ok {
			return nil, fmt.Errorf("unexpected partial result %T", p)
		}
		total += n
	}
	return total, nil
}

// Register registers the analyzer's descriptor.
func (m *Module) Register(r *registry.Registry) error {
	return r.Register(Descriptor)
}
