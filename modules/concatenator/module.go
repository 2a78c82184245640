// Package concatenator provides a transformer joining column values into
// one string column.
package concatenator

import (
	"strings"

	"github.com/vk/cleangrid/internal/column"
	"github.com/vk/cleangrid/internal/descriptor"
	"github.com/vk/cleangrid/internal/registry"
	"github.com/zclconf/go-cty/cty"
)

// Module implements the registry.Module interface for this package.
type Module struct{}

// Descriptor describes the concatenator transformer.
var Descriptor = descriptor.NewTransformer("concatenator", New).
	DisplayName("Concatenator").
	Description("Joins the text of its columns, skipping missing values. Yields null when every value is missing.").
	InputColumns("columns", cty.DynamicPseudoType).
	Property("separator", cty.String, descriptor.Default(cty.StringVal(""))).
	Property("output_name", cty.String, descriptor.Default(cty.StringVal("concat")),
		descriptor.Describe("Name of the produced column.")).
	Build()

// Transformer is a concatenator instance.
type Transformer struct {
	cols      []*column.InputColumn
	separator string
	output    string
}

// New creates a Transformer from its properties.
func New(p descriptor.Properties) (descriptor.Transformer, error) {
	sep, err := descriptor.Get[string](p, "separator")
	if err != nil {
		return nil, err
	}
	output, err := descriptor.Get[string](p, "output_name")
	if err != nil {
		return nil, err
	}
	if output == "" {
		output = "concat"
	}
	return &Transformer{cols: p.Columns("columns"), separator: sep, output: output}, nil
}

// OutputColumns implements descriptor.Transformer.
func (t *Transformer) OutputColumns() []descriptor.OutputColumn {
	return []descriptor.OutputColumn{{Name: t.output, Type: cty.String}}
}

// Transform implements descriptor.Transformer.
func (t *Transformer) Transform(row column.Row) ([]cty.Value, error) {
	parts := make([]string, 0, len(t.cols))
	for _, c := range t.cols {
		v := row.Value(c)
		if v.IsNull() || !v.IsKnown() {
			continue
		}
		parts = append(parts, column.Format(v))
	}
	if len(parts) == 0 {
		return []cty.Value{cty.NullVal(cty.String)}, nil
	}
	return []cty.Value{cty.StringVal(strings.Join(parts, t.separator))}, nil
}

// Register registers the transformer's descriptor.
func (m *Module) Register(r *registry.Registry) error {
	return r.Register(Descriptor)
}
