package column

import "github.com/zclconf/go-cty/cty"

// MapRow is a Row backed by a map of column keys to values. The engine uses
// it as the live column set of a row, appending transformer outputs as
// they are computed.
type MapRow struct {
	id     int64
	values map[string]cty.Value
}

// NewMapRow creates a row containing the given physical values.
func NewMapRow(id int64, cols []*InputColumn, values []cty.Value) *MapRow {
	r := &MapRow{id: id, values: make(map[string]cty.Value, len(cols))}
	for i, col := range cols {
		if i < len(values) {
			r.values[col.Key()] = values[i]
		}
	}
	return r
}

// ID implements Row.
func (r *MapRow) ID() int64 { return r.id }

// Value implements Row.
func (r *MapRow) Value(col *InputColumn) cty.Value {
	if v, ok := r.values[col.Key()]; ok {
		return v
	}
	return cty.NullVal(col.Type())
}

// Set adds or replaces the value of a column.
func (r *MapRow) Set(col *InputColumn, v cty.Value) {
	r.values[col.Key()] = v
}
