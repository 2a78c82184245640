// Package column models references to values flowing through a job graph.
//
// A column is either physical, backed by a column of the row source and
// ordered by its natural column number, or virtual, produced by a transformer
// and identified by a stable synthetic id.
package column

import (
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/zclconf/go-cty/cty"
)

// Kind distinguishes physical and virtual columns.
type Kind int

const (
	// Physical columns are read from the row source.
	Physical Kind = iota
	// Virtual columns are produced by transformers during row processing.
	Virtual
)

// String returns the string representation of the Kind.
func (k Kind) String() string {
	if k == Virtual {
		return "virtual"
	}
	return "physical"
}

// InputColumn is a typed reference to a value in a row. It is immutable.
type InputColumn struct {
	kind   Kind
	name   string
	number int
	id     string
	typ    cty.Type
}

// NewPhysical creates a column backed by the row source.
func NewPhysical(name string, number int, typ cty.Type) *InputColumn {
	if typ == cty.NilType {
		typ = cty.DynamicPseudoType
	}
	return &InputColumn{kind: Physical, name: name, number: number, typ: typ}
}

// NewVirtual creates a transformer output column with a fresh synthetic id.
func NewVirtual(name string, typ cty.Type) *InputColumn {
	return NewVirtualWithID(uuid.NewString(), name, typ)
}

// NewVirtualWithID creates a transformer output column with the given id.
// It is used to keep ids stable when a transformer is reconfigured.
func NewVirtualWithID(id, name string, typ cty.Type) *InputColumn {
	if typ == cty.NilType {
		typ = cty.DynamicPseudoType
	}
	return &InputColumn{kind: Virtual, name: name, id: id, number: -1, typ: typ}
}

// Kind returns whether the column is physical or virtual.
func (c *InputColumn) Kind() Kind { return c.kind }

// IsPhysical reports whether the column is backed by the row source.
func (c *InputColumn) IsPhysical() bool { return c.kind == Physical }

// IsVirtual reports whether the column is produced by a transformer.
func (c *InputColumn) IsVirtual() bool { return c.kind == Virtual }

// Name returns the display name of the column.
func (c *InputColumn) Name() string { return c.name }

// Number returns the column number of a physical column, or -1.
func (c *InputColumn) Number() int { return c.number }

// ID returns the synthetic id of a virtual column, or an empty string.
func (c *InputColumn) ID() string { return c.id }

// Type returns the semantic type of the column's values.
func (c *InputColumn) Type() cty.Type { return c.typ }

// Key returns a string that identifies the column within one job graph.
func (c *InputColumn) Key() string {
	if c.kind == Virtual {
		return "virtual:" + c.id
	}
	return fmt.Sprintf("physical:%d:%s", c.number, c.name)
}

// String implements fmt.Stringer.
func (c *InputColumn) String() string {
	if c == nil {
		return "<nil>"
	}
	if c.kind == Virtual {
		return fmt.Sprintf("%s (virtual %s)", c.name, c.id)
	}
	return fmt.Sprintf("%s (#%d)", c.name, c.number)
}

// Compare orders columns: physical before virtual, physical columns by
// number, virtual columns by id. Names break ties between physical columns
// that share a number.
func Compare(a, b *InputColumn) int {
	if a.kind != b.kind {
		if a.kind == Physical {
			return -1
		}
		return 1
	}
	if a.kind == Physical {
		switch {
		case a.number < b.number:
			return -1
		case a.number > b.number:
			return 1
		}
		return strings.Compare(a.name, b.name)
	}
	return strings.Compare(a.id, b.id)
}

// Sort orders the given columns in place using Compare.
func Sort(cols []*InputColumn) {
	sort.SliceStable(cols, func(i, j int) bool {
		return Compare(cols[i], cols[j]) < 0
	})
}

// UniqueNames returns an error if two columns share a name. Components that
// key their results by column name use it to reject ambiguous bindings,
// e.g. a source column and a transformer output both called email.
func UniqueNames(cols []*InputColumn) error {
	seen := make(map[string]*InputColumn, len(cols))
	for _, c := range cols {
		if prev, ok := seen[c.Name()]; ok && prev.Key() != c.Key() {
			return fmt.Errorf("columns %s and %s share the name %q", prev, c, c.Name())
		}
		seen[c.Name()] = c
	}
	return nil
}

// Row is the view of one row a component sees while it is processed.
type Row interface {
	// ID returns the row's identifier within its source.
	ID() int64
	// Value returns the current value of the column. Columns that are not
	// (yet) present in the row yield a null value of the column's type.
	Value(col *InputColumn) cty.Value
}

// IsNullOrEmpty reports whether v is null, unknown, or an empty string.
func IsNullOrEmpty(v cty.Value) bool {
	if v.IsNull() || !v.IsKnown() {
		return true
	}
	return v.Type() == cty.String && v.AsString() == ""
}
