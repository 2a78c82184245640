// Package memory implements an in-process datastore of cty rows. It backs
// tests and small profiling jobs that do not need a database.
package memory

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/vk/cleangrid/internal/column"
	"github.com/vk/cleangrid/internal/datastore"
	"github.com/vk/cleangrid/internal/errs"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"
)

type table struct {
	cols []*column.InputColumn
	rows [][]cty.Value
}

// Store is a named set of in-memory tables. It is safe for concurrent use.
type Store struct {
	name string

	mu     sync.RWMutex
	tables map[string]*table

	opens  atomic.Int32
	closes atomic.Int32
}

var _ datastore.Datastore = (*Store)(nil)

// New creates an empty store.
func New(name string) *Store {
	return &Store{name: name, tables: make(map[string]*table)}
}

// Name implements datastore.Datastore.
func (s *Store) Name() string { return s.name }

// Open implements datastore.Datastore.
func (s *Store) Open(context.Context) (datastore.RowSource, error) {
	s.opens.Add(1)
	return &source{store: s}, nil
}

// Opens returns how many connections were opened.
func (s *Store) Opens() int { return int(s.opens.Load()) }

// Closes returns how many connections were closed.
func (s *Store) Closes() int { return int(s.closes.Load()) }

// CreateTable declares a table. Column numbers are positions in each row.
func (s *Store) CreateTable(name string, cols ...*column.InputColumn) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.tables[name]; exists {
		return fmt.Errorf("table %q already exists", name)
	}
	sorted := slices.Clone(cols)
	column.Sort(sorted)
	for i, c := range sorted {
		if !c.IsPhysical() || c.Number() != i {
			return fmt.Errorf("table %q: column %s must be physical and numbered %d", name, c, i)
		}
	}
	s.tables[name] = &table{cols: sorted}
	return nil
}

// Insert appends rows to a table. Values are converted to the column types.
func (s *Store) Insert(name string, rows ...[]cty.Value) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tables[name]
	if !ok {
		return fmt.Errorf("table %q does not exist", name)
	}
	for _, row := range rows {
		converted, err := conform(t.cols, row)
		if err != nil {
			return fmt.Errorf("table %q, row %d: %w", name, len(t.rows), err)
		}
		t.rows = append(t.rows, converted)
	}
	return nil
}

// Rows returns a copy of a table's rows.
func (s *Store) Rows(name string) ([][]cty.Value, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tables[name]
	if !ok {
		return nil, fmt.Errorf("table %q does not exist", name)
	}
	out := make([][]cty.Value, len(t.rows))
	for i, r := range t.rows {
		out[i] = slices.Clone(r)
	}
	return out, nil
}

func conform(cols []*column.InputColumn, row []cty.Value) ([]cty.Value, error) {
	if len(row) != len(cols) {
		return nil, fmt.Errorf("got %d values for %d columns", len(row), len(cols))
	}
	out := make([]cty.Value, len(row))
	for i, v := range row {
		if v.IsNull() {
			v = cty.NullVal(cols[i].Type())
		}
		if cols[i].Type() != cty.DynamicPseudoType {
			cv, err := convert.Convert(v, cols[i].Type())
			if err != nil {
				return nil, fmt.Errorf("column %s: %w", cols[i].Name(), err)
			}
			v = cv
		}
		out[i] = v
	}
	return out, nil
}

type source struct {
	store  *Store
	closed atomic.Bool
}

var (
	_ datastore.RowSource = (*source)(nil)
	_ datastore.RowSink   = (*source)(nil)
)

func (src *source) table(name string) (*table, error) {
	if src.closed.Load() {
		return nil, errs.Resource(src.store.name, "read table", errs.ErrResourceClosed)
	}
	t, ok := src.store.tables[name]
	if !ok {
		return nil, errs.Configuration(src.store.name, "read table", fmt.Errorf("table %q does not exist", name))
	}
	return t, nil
}

func (src *source) Columns(_ context.Context, name string) ([]*column.InputColumn, error) {
	src.store.mu.RLock()
	defer src.store.mu.RUnlock()
	t, err := src.table(name)
	if err != nil {
		return nil, err
	}
	return slices.Clone(t.cols), nil
}

func (src *source) RowCount(_ context.Context, name string) (int64, error) {
	src.store.mu.RLock()
	defer src.store.mu.RUnlock()
	t, err := src.table(name)
	if err != nil {
		return 0, err
	}
	return int64(len(t.rows)), nil
}

func (src *source) Scan(ctx context.Context, name string, cols []*column.InputColumn, p datastore.Partition, fn datastore.ScanFunc) error {
	src.store.mu.RLock()
	t, err := src.table(name)
	if err != nil {
		src.store.mu.RUnlock()
		return err
	}
	positions := make([]int, len(cols))
	for i, c := range cols {
		positions[i] = slices.IndexFunc(t.cols, func(tc *column.InputColumn) bool { return tc.Name() == c.Name() })
		if positions[i] < 0 {
			src.store.mu.RUnlock()
			return errs.Configuration(src.store.name, "scan table", fmt.Errorf("%w: table %q has no column %q", errs.ErrUnresolvedColumn, name, c.Name()))
		}
	}
	end := int64(len(t.rows))
	if p.Limit >= 0 && p.Offset+p.Limit < end {
		end = p.Offset + p.Limit
	}
	rows := t.rows[min(p.Offset, end):end]
	src.store.mu.RUnlock()

	for i, row := range rows {
		if err := ctx.Err(); err != nil {
			return err
		}
		values := make([]cty.Value, len(positions))
		for j, pos := range positions {
			values[j] = row[pos]
		}
		if err := fn(p.Offset+int64(i), values); err != nil {
			return err
		}
	}
	return nil
}

func (src *source) InsertRows(_ context.Context, name string, columns []string, rows [][]cty.Value) error {
	if src.closed.Load() {
		return errs.Resource(src.store.name, "insert rows", errs.ErrResourceClosed)
	}
	src.store.mu.Lock()
	defer src.store.mu.Unlock()
	t, ok := src.store.tables[name]
	if !ok {
		return errs.Configuration(src.store.name, "insert rows", fmt.Errorf("table %q does not exist", name))
	}
	for _, in := range rows {
		row := make([]cty.Value, len(t.cols))
		for i, c := range t.cols {
			row[i] = cty.NullVal(c.Type())
		}
		for i, colName := range columns {
			pos := slices.IndexFunc(t.cols, func(c *column.InputColumn) bool { return c.Name() == colName })
			if pos < 0 || i >= len(in) {
				return fmt.Errorf("insert rows: unknown column %q", colName)
			}
			row[pos] = in[i]
		}
		converted, err := conform(t.cols, row)
		if err != nil {
			return fmt.Errorf("insert rows: %w", err)
		}
		t.rows = append(t.rows, converted)
	}
	return nil
}

func (src *source) Close() error {
	if !src.closed.CompareAndSwap(false, true) {
		return errs.ErrResourceClosed
	}
	src.store.closes.Add(1)
	return nil
}
