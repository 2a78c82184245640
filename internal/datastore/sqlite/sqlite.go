// Package sqlite implements a datastore backed by a SQLite database file.
//
// Rows are read in rowid order, so partitions are stable LIMIT/OFFSET
// windows over the same ordering. Declared column types map to cty types by
// SQLite affinity rules.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"math/big"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/vk/cleangrid/internal/column"
	"github.com/vk/cleangrid/internal/datastore"
	"github.com/vk/cleangrid/internal/errs"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"
)

// Store is a SQLite database file.
type Store struct {
	name string
	path string
}

var _ datastore.Datastore = (*Store)(nil)

// New creates a datastore for the database at path.
func New(name, path string) *Store {
	return &Store{name: name, path: path}
}

// Name implements datastore.Datastore.
func (s *Store) Name() string { return s.name }

// Path returns the database file path.
func (s *Store) Path() string { return s.path }

// Open implements datastore.Datastore.
func (s *Store) Open(ctx context.Context) (datastore.RowSource, error) {
	db, err := sql.Open("sqlite3", s.path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", s.path, err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to %s: %w", s.path, err)
	}
	return &source{name: s.name, db: db}, nil
}

// Exec runs statements against the database outside of any run, typically
// to prepare tables.
func (s *Store) Exec(ctx context.Context, query string, args ...any) error {
	db, err := sql.Open("sqlite3", s.path)
	if err != nil {
		return err
	}
	defer db.Close()
	_, err = db.ExecContext(ctx, query, args...)
	return err
}

type source struct {
	name string
	db   *sql.DB
}

var (
	_ datastore.RowSource = (*source)(nil)
	_ datastore.RowSink   = (*source)(nil)
)

func quote(ident string) string {
	return `"` + strings.ReplaceAll(ident, `"`, `""`) + `"`
}

func (src *source) Columns(ctx context.Context, table string) ([]*column.InputColumn, error) {
	rows, err := src.db.QueryContext(ctx, "SELECT name, type FROM pragma_table_info(?) ORDER BY cid", table)
	if err != nil {
		return nil, errs.Resource(src.name, "describe table", err)
	}
	defer rows.Close()

	var cols []*column.InputColumn
	for rows.Next() {
		var name, declared string
		if err := rows.Scan(&name, &declared); err != nil {
			return nil, errs.Resource(src.name, "describe table", err)
		}
		cols = append(cols, column.NewPhysical(name, len(cols), TypeOf(declared)))
	}
	if err := rows.Err(); err != nil {
		return nil, errs.Resource(src.name, "describe table", err)
	}
	if len(cols) == 0 {
		return nil, errs.Configuration(src.name, "describe table", fmt.Errorf("table %q does not exist", table))
	}
	return cols, nil
}

// TypeOf maps a declared SQLite column type to a cty type following the
// affinity rules: INT, CHAR/CLOB/TEXT, REAL/FLOA/DOUB, NUMERIC. BOOL is
// recognized before the numeric fallback.
func TypeOf(declared string) cty.Type {
	t := strings.ToUpper(declared)
	switch {
	case strings.Contains(t, "INT"):
		return cty.Number
	case strings.Contains(t, "CHAR"), strings.Contains(t, "CLOB"), strings.Contains(t, "TEXT"):
		return cty.String
	case strings.Contains(t, "BOOL"):
		return cty.Bool
	case strings.Contains(t, "REAL"), strings.Contains(t, "FLOA"), strings.Contains(t, "DOUB"),
		strings.Contains(t, "NUMERIC"), strings.Contains(t, "DECIMAL"):
		return cty.Number
	default:
		return cty.DynamicPseudoType
	}
}

func (src *source) RowCount(ctx context.Context, table string) (int64, error) {
	var n int64
	if err := src.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+quote(table)).Scan(&n); err != nil {
		return 0, errs.Resource(src.name, "count rows", err)
	}
	return n, nil
}

// checkColumns verifies that every column exists in table. A quoted name
// that matches no column would otherwise be read back as a string literal.
func (src *source) checkColumns(ctx context.Context, table string, cols []*column.InputColumn) error {
	rows, err := src.db.QueryContext(ctx, "SELECT name FROM pragma_table_info(?)", table)
	if err != nil {
		return errs.Resource(src.name, "scan table", err)
	}
	defer rows.Close()

	known := make(map[string]bool)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return errs.Resource(src.name, "scan table", err)
		}
		known[strings.ToLower(name)] = true
	}
	if err := rows.Err(); err != nil {
		return errs.Resource(src.name, "scan table", err)
	}
	if len(known) == 0 {
		return errs.Resource(src.name, "scan table", fmt.Errorf("table %q does not exist", table))
	}
	for _, c := range cols {
		if !known[strings.ToLower(c.Name())] {
			return errs.Resource(src.name, "scan table",
				fmt.Errorf("%w: table %q has no column %q", errs.ErrUnresolvedColumn, table, c.Name()))
		}
	}
	return nil
}

func (src *source) Scan(ctx context.Context, table string, cols []*column.InputColumn, p datastore.Partition, fn datastore.ScanFunc) error {
	if err := src.checkColumns(ctx, table, cols); err != nil {
		return err
	}
	names := make([]string, len(cols))
	for i, c := range cols {
		names[i] = quote(c.Name())
	}
	query := fmt.Sprintf("SELECT rowid, %s FROM %s ORDER BY rowid LIMIT ? OFFSET ?", strings.Join(names, ", "), quote(table))
	if len(cols) == 0 {
		query = fmt.Sprintf("SELECT rowid FROM %s ORDER BY rowid LIMIT ? OFFSET ?", quote(table))
	}
	rows, err := src.db.QueryContext(ctx, query, p.Limit, p.Offset)
	if err != nil {
		return errs.Resource(src.name, "scan table", err)
	}
	defer rows.Close()

	raw := make([]any, len(cols)+1)
	ptrs := make([]any, len(raw))
	for i := range raw {
		ptrs[i] = &raw[i]
	}
	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			return errs.Resource(src.name, "scan table", err)
		}
		id, _ := raw[0].(int64)
		values := make([]cty.Value, len(cols))
		for i, c := range cols {
			v, err := toCty(raw[i+1], c.Type())
			if err != nil {
				return errs.Resource(src.name, "scan table", fmt.Errorf("row %d, column %s: %w", id, c.Name(), err))
			}
			values[i] = v
		}
		if err := fn(id, values); err != nil {
			return err
		}
	}
	if err := rows.Err(); err != nil {
		return errs.Resource(src.name, "scan table", err)
	}
	return nil
}

func toCty(raw any, want cty.Type) (cty.Value, error) {
	var v cty.Value
	switch x := raw.(type) {
	case nil:
		return cty.NullVal(want), nil
	case int64:
		v = cty.NumberIntVal(x)
	case float64:
		v = cty.NumberFloatVal(x)
	case bool:
		v = cty.BoolVal(x)
	case []byte:
		v = cty.StringVal(string(x))
	case string:
		v = cty.StringVal(x)
	case time.Time:
		v = cty.StringVal(x.Format(time.RFC3339Nano))
	default:
		return cty.NilVal, fmt.Errorf("unsupported value of type %T", raw)
	}
	if want == cty.DynamicPseudoType {
		return v, nil
	}
	if want == cty.Bool && v.Type() == cty.Number {
		return cty.BoolVal(v.AsBigFloat().Sign() != 0), nil
	}
	return convert.Convert(v, want)
}

func fromCty(v cty.Value) (any, error) {
	if v.IsNull() {
		return nil, nil
	}
	if !v.IsKnown() {
		return nil, fmt.Errorf("value is not known")
	}
	switch v.Type() {
	case cty.String:
		return v.AsString(), nil
	case cty.Bool:
		return v.True(), nil
	case cty.Number:
		bf := v.AsBigFloat()
		if bf.IsInt() {
			if i, acc := bf.Int64(); acc == big.Exact {
				return i, nil
			}
		}
		f, _ := bf.Float64()
		return f, nil
	}
	s, err := convert.Convert(v, cty.String)
	if err != nil {
		return nil, fmt.Errorf("cannot store a %s", v.Type().FriendlyName())
	}
	return s.AsString(), nil
}

func (src *source) InsertRows(ctx context.Context, table string, columns []string, rows [][]cty.Value) error {
	const op = "insert rows"
	if len(rows) == 0 {
		return nil
	}
	names := make([]string, len(columns))
	marks := make([]string, len(columns))
	for i, c := range columns {
		names[i] = quote(c)
		marks[i] = "?"
	}
	stmt := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", quote(table), strings.Join(names, ", "), strings.Join(marks, ", "))

	tx, err := src.db.BeginTx(ctx, nil)
	if err != nil {
		return errs.Resource(src.name, op, err)
	}
	defer tx.Rollback()
	prepared, err := tx.PrepareContext(ctx, stmt)
	if err != nil {
		return errs.Resource(src.name, op, err)
	}
	defer prepared.Close()

	args := make([]any, len(columns))
	for n, row := range rows {
		if len(row) != len(columns) {
			return fmt.Errorf("%s: row %d has %d values for %d columns", op, n, len(row), len(columns))
		}
		for i, v := range row {
			if args[i], err = fromCty(v); err != nil {
				return fmt.Errorf("%s: row %d, column %s: %w", op, n, columns[i], err)
			}
		}
		if _, err := prepared.ExecContext(ctx, args...); err != nil {
			return errs.Resource(src.name, op, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return errs.Resource(src.name, op, err)
	}
	return nil
}

func (src *source) Close() error {
	return src.db.Close()
}
