// Package string_length provides a transformer measuring strings.
package string_length

import (
	"fmt"
	"unicode/utf8"

	"github.com/mattn/go-runewidth"
	"github.com/vk/cleangrid/internal/column"
	"github.com/vk/cleangrid/internal/descriptor"
	"github.com/vk/cleangrid/internal/registry"
	"github.com/zclconf/go-cty/cty"
)

// Measures understood by the "measure" property.
const (
	MeasureCharacters = "characters"
	MeasureBytes      = "bytes"
	// MeasureWidth counts terminal cells, so wide East Asian characters
	// count twice.
	MeasureWidth = "width"
)

// Module implements the registry.Module interface for this package.
type Module struct{}

// Descriptor describes the string-length transformer.
var Descriptor = descriptor.NewTransformer("string-length", New).
	DisplayName("String length").
	Description("Produces one number column per input column holding the length of its text.").
	InputColumns("columns", cty.String).
	Property("measure", cty.String, descriptor.Default(cty.StringVal(MeasureCharacters)),
		descriptor.Describe("One of characters, bytes or width.")).
	Build()

// Transformer is a string-length instance.
type Transformer struct {
	cols    []*column.InputColumn
	measure func(string) int
}

// New creates a Transformer from its properties.
func New(p descriptor.Properties) (descriptor.Transformer, error) {
	measure, err := descriptor.Get[string](p, "measure")
	if err != nil {
		return nil, err
	}
	t := &Transformer{cols: p.Columns("columns")}
	switch measure {
	case MeasureCharacters, "":
		t.measure = utf8.RuneCountInString
	case MeasureBytes:
		t.measure = func(s string) int { return len(s) }
	case MeasureWidth:
		t.measure = runewidth.StringWidth
	default:
		return nil, fmt.Errorf("unknown measure %q, expected %s, %s or %s", measure, MeasureCharacters, MeasureBytes, MeasureWidth)
	}
	return t, nil
}

// OutputColumns implements descriptor.Transformer.
func (t *Transformer) OutputColumns() []descriptor.OutputColumn {
	out := make([]descriptor.OutputColumn, len(t.cols))
	for i, c := range t.cols {
		out[i] = descriptor.OutputColumn{Name: c.Name() + "_length", Type: cty.Number}
	}
	return out
}

// Transform implements descriptor.Transformer.
func (t *Transformer) Transform(row column.Row) ([]cty.Value, error) {
	out := make([]cty.Value, len(t.cols))
	for i, c := range t.cols {
		v := row.Value(c)
		if v.IsNull() || !v.IsKnown() {
			out[i] = cty.NullVal(cty.Number)
			continue
		}
		out[i] = cty.NumberIntVal(int64(t.measure(column.Format(v))))
	}
	return out, nil
}

// Register registers the transformer's descriptor.
func (m *Module) Register(r *registry.Registry) error {
	return r.Register(Descriptor)
}
