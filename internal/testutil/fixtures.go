package testutil

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/vk/cleangrid/internal/column"
	"github.com/vk/cleangrid/internal/ctxlog"
	"github.com/vk/cleangrid/internal/datastore/memory"
	"github.com/vk/cleangrid/internal/datastore/sqlite"
	"github.com/zclconf/go-cty/cty"
)

// Table describes a SQLite table to create for a test.
type Table struct {
	Name string
	// Columns holds the column definitions, e.g. "id INTEGER, email TEXT".
	Columns string
	Rows    [][]any
}

// NewSQLiteDatastore creates a database file in a fresh temp directory and
// fills it with tables.
func NewSQLiteDatastore(t *testing.T, name string, tables ...Table) *sqlite.Store {
	t.Helper()
	ctx := context.Background()
	store := sqlite.New(name, filepath.Join(t.TempDir(), name+".db"))
	for _, tbl := range tables {
		require.NoError(t, store.Exec(ctx, fmt.Sprintf("CREATE TABLE %s (%s)", tbl.Name, tbl.Columns)))
		for _, row := range tbl.Rows {
			marks := strings.TrimSuffix(strings.Repeat("?, ", len(row)), ", ")
			require.NoError(t, store.Exec(ctx, fmt.Sprintf("INSERT INTO %s VALUES (%s)", tbl.Name, marks), row...))
		}
	}
	return store
}

// NewMemoryDatastore creates an in-memory datastore with one table of the
// given columns and rows.
func NewMemoryDatastore(t *testing.T, name, table string, cols []*column.InputColumn, rows ...[]cty.Value) *memory.Store {
	t.Helper()
	ds := memory.New(name)
	require.NoError(t, ds.CreateTable(table, cols...))
	require.NoError(t, ds.Insert(table, rows...))
	return ds
}

// NewTestContext returns a context whose logger writes to w at debug level.
// Pass io.Discard to silence it.
func NewTestContext(t *testing.T, w io.Writer) context.Context {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: slog.LevelDebug}))
	ctx, cancel := context.WithCancel(ctxlog.WithLogger(context.Background(), logger))
	t.Cleanup(cancel)
	return ctx
}
