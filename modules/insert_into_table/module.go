// Package insert_into_table provides an analyzer copying the rows it sees
// into a table of another datastore.
//
// Rows are written in batches through a scheduler.WriteBuffer. Every
// partition opens its own connection to the target datastore, which must
// be registered in the run's catalog and accept writes.
package insert_into_table

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/vk/cleangrid/internal/column"
	"github.com/vk/cleangrid/internal/datastore"
	"github.com/vk/cleangrid/internal/descriptor"
	"github.com/vk/cleangrid/internal/registry"
	"github.com/vk/cleangrid/internal/scheduler"
	"github.com/zclconf/go-cty/cty"
)

// DefaultBufferSize is the batch size used when buffer_size is unset.
const DefaultBufferSize = 100

// Module implements the registry.Module interface for this package.
type Module struct{}

// Descriptor describes the insert-into-table analyzer.
var Descriptor = descriptor.NewAnalyzer("insert-into-table", New).
	DisplayName("Insert into table").
	Description("Writes the values of its columns into a table of a catalog datastore.").
	InputColumns("columns", cty.DynamicPseudoType).
	Property("datastore", cty.String, descriptor.Required(), descriptor.Describe("Name of the target datastore.")).
	Property("table", cty.String, descriptor.Required()).
	Property("column_names", cty.String, descriptor.Array(), descriptor.Optional(),
		descriptor.Describe("Target column names. Defaults to the input column names.")).
	Property("buffer_size", cty.Number, descriptor.Default(cty.NumberIntVal(DefaultBufferSize))).
	Provided("catalog", descriptor.ProvidedCatalog).
	Provided("logger", descriptor.ProvidedLogger).
	Reducer(Reduce).
	Build()

// Summary is the result of the analyzer.
type Summary struct {
	Datastore string `yaml:"datastore"`
	Table     string `yaml:"table"`
	Rows      int64  `yaml:"rows"`
}

// Analyzer is an insert-into-table instance.
type Analyzer struct {
	cols       []*column.InputColumn
	names      []string
	target     string
	table      string
	bufferSize int
	catalog    *datastore.Catalog
	logger     *slog.Logger

	ctx    context.Context
	src    datastore.RowSource
	buffer *scheduler.WriteBuffer[[]cty.Value]
	rows   int64
}

// New creates an Analyzer from its properties. The target is resolved in
// Init.
func New(p descriptor.Properties) (descriptor.Analyzer, error) {
	a := &Analyzer{cols: p.Columns("columns")}
	var err error
	if a.target, err = descriptor.Get[string](p, "datastore"); err != nil {
		return nil, err
	}
	if a.table, err = descriptor.Get[string](p, "table"); err != nil {
		return nil, err
	}
	if a.names, err = descriptor.Get[[]string](p, "column_names"); err != nil {
		return nil, err
	}
	if a.bufferSize, err = descriptor.Get[int](p, "buffer_size"); err != nil {
		return nil, err
	}
	if len(a.names) == 0 {
		for _, c := range a.cols {
			a.names = append(a.names, c.Name())
		}
	}
	if len(a.names) != len(a.cols) {
		return nil, fmt.Errorf("%d column name(s) given for %d input column(s)", len(a.names), len(a.cols))
	}
	a.catalog, _ = p.Provided("catalog").(*datastore.Catalog)
	a.logger, _ = p.Provided("logger").(*slog.Logger)
	if a.logger == nil {
		a.logger = slog.Default()
	}
	return a, nil
}

// Init opens the target datastore.
func (a *Analyzer) Init(ctx context.Context) error {
	if a.catalog == nil {
		return fmt.Errorf("no datastore catalog available")
	}
	ds, ok := a.catalog.Get(a.target)
	if !ok {
		return fmt.Errorf("datastore %q is not in the catalog, known: %v", a.target, a.catalog.Names())
	}
	src, err := ds.Open(ctx)
	if err != nil {
		return fmt.Errorf("failed to open datastore %q: %w", a.target, err)
	}
	sink, ok := src.(datastore.RowSink)
	if !ok {
		_ = src.Close()
		return fmt.Errorf("datastore %q does not accept writes", a.target)
	}
	a.ctx = ctx
	a.src = src
	a.buffer = scheduler.NewWriteBuffer(a.bufferSize, func(ctx context.Context, batch [][]cty.Value) error {
		if err := sink.InsertRows(ctx, a.table, a.names, batch); err != nil {
			return err
		}
		a.logger.Debug("Rows written.", "datastore", a.target, "table", a.table, "rows", len(batch))
		return nil
	})
	return nil
}

// Run implements descriptor.Analyzer.
func (a *Analyzer) Run(row column.Row) error {
	values := make([]cty.Value, len(a.cols))
	for i, c := range a.cols {
		values[i] = row.Value(c)
	}
	if err := a.buffer.Add(a.ctx, values); err != nil {
		return err
	}
	a.rows++
	return nil
}

// Result flushes pending rows and reports how many were written.
func (a *Analyzer) Result() (descriptor.Result, error) {
	if err := a.buffer.Flush(a.ctx); err != nil {
		return nil, err
	}
	return &Summary{Datastore: a.target, Table: a.table, Rows: a.rows}, nil
}

// Close releases the target connection.
func (a *Analyzer) Close() error {
	if a.src == nil {
		return nil
	}
	src := a.src
	a.src = nil
	return src.Close()
}

// Reduce adds up written rows.
func Reduce(partials []descriptor.Result) (descriptor.Result, error) {
	var out *Summary
	for _, p := range partials {
		s, ok := p.(*Summary)
		if !ok {
			return nil, fmt.Errorf("unexpected partial result %T", p)
		}
		if out == nil {
			out = &Summary{Datastore: s.Datastore, Table: s.Table}
		}
		out.Rows += s.Rows
	}
	return out, nil
}

// Register registers the analyzer's descriptor.
func (m *Module) Register(r *registry.Registry) error {
	return r.Register(Descriptor)
}
