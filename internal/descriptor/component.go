package descriptor

import (
	"context"

	"github.com/vk/cleangrid/internal/column"
	"github.com/zclconf/go-cty/cty"
)

// Filter categorizes each row into one of its descriptor's outcomes.
type Filter interface {
	Categorize(row column.Row) (string, error)
}

// OutputColumn declares one value produced by a transformer.
type OutputColumn struct {
	Name string
	Type cty.Type
}

// Transformer computes new column values from the current row.
type Transformer interface {
	// OutputColumns returns the columns the transformer produces, in the
	// order Transform returns their values.
	OutputColumns() []OutputColumn
	Transform(row column.Row) ([]cty.Value, error)
}

// Result is the opaque output of an analyzer for one partition of rows.
type Result any

// Analyzer accumulates state over the rows it sees and finalizes it into
// a Result.
type Analyzer interface {
	Run(row column.Row) error
	Result() (Result, error)
}

// Reducer combines partial results of one analyzer into a single result.
// Implementations must be associative and independent of input order.
type Reducer func(partials []Result) (Result, error)

// Initializer is implemented by components that need set-up work (such as
// opening a connection) before they see their first row.
type Initializer interface {
	Init(ctx context.Context) error
}

// Factory creates a component instance from its property values.
type Factory func(props Properties) (any, error)
