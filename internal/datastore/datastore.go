// Package datastore defines the row source contract the engine reads from,
// the partitioning of a table into independently processed row ranges, and
// the usage-counted connection partitions share.
package datastore

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/vk/cleangrid/internal/column"
	"github.com/vk/cleangrid/internal/errs"
	"github.com/zclconf/go-cty/cty"
)

// Datastore is a named, openable source of tables.
type Datastore interface {
	Name() string
	Open(ctx context.Context) (RowSource, error)
}

// ScanFunc receives one row: its id within the table and the values of the
// requested columns, in request order. Returning an error stops the scan.
type ScanFunc func(id int64, values []cty.Value) error

// RowSource is an open connection to a datastore.
type RowSource interface {
	// Columns describes the physical columns of table in column order.
	Columns(ctx context.Context, table string) ([]*column.InputColumn, error)
	// RowCount returns the number of rows in table.
	RowCount(ctx context.Context, table string) (int64, error)
	// Scan reads the rows of partition p in source order.
	Scan(ctx context.Context, table string, cols []*column.InputColumn, p Partition, fn ScanFunc) error
	Close() error
}

// RowSink is implemented by row sources that accept writes.
type RowSink interface {
	InsertRows(ctx context.Context, table string, columns []string, rows [][]cty.Value) error
}

// Partition is a contiguous range of rows, in source order.
type Partition struct {
	Index  int
	Offset int64
	Limit  int64
}

// String implements fmt.Stringer.
func (p Partition) String() string {
	return fmt.Sprintf("partition %d [%d, %d)", p.Index, p.Offset, p.Offset+p.Limit)
}

// Whole is the partition covering every row of a table.
var Whole = Partition{Limit: -1}

// SplitRange divides total rows into n contiguous partitions whose sizes
// differ by at most one. Earlier partitions take the remainder. An n below
// 1 is treated as 1.
func SplitRange(total int64, n int) []Partition {
	if n < 1 {
		n = 1
	}
	if total < 0 {
		total = 0
	}
	size, rem := total/int64(n), total%int64(n)
	parts := make([]Partition, n)
	var offset int64
	for i := range parts {
		limit := size
		if int64(i) < rem {
			limit++
		}
		parts[i] = Partition{Index: i, Offset: offset, Limit: limit}
		offset += limit
	}
	return parts
}

// Catalog holds the datastores a run may use, by name. It is safe for
// concurrent use.
type Catalog struct {
	mu     sync.RWMutex
	stores map[string]Datastore
}

// NewCatalog creates a catalog holding stores.
func NewCatalog(stores ...Datastore) (*Catalog, error) {
	c := &Catalog{stores: make(map[string]Datastore)}
	for _, ds := range stores {
		if err := c.Register(ds); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// Register adds ds. Names are unique within a catalog.
func (c *Catalog) Register(ds Datastore) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.stores[ds.Name()]; exists {
		return errs.Configuration(ds.Name(), "register datastore", fmt.Errorf("a datastore named %q is already registered", ds.Name()))
	}
	c.stores[ds.Name()] = ds
	return nil
}

// Get finds a datastore by name.
func (c *Catalog) Get(name string) (Datastore, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	ds, ok := c.stores[name]
	return ds, ok
}

// Names returns the registered names, sorted.
func (c *Catalog) Names() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	names := make([]string, 0, len(c.stores))
	for name := range c.stores {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
