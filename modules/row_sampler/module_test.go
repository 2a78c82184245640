package row_sampler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/cleangrid/internal/column"
	"github.com/vk/cleangrid/internal/descriptor"
	"github.com/vk/cleangrid/internal/errs"
	"github.com/vk/cleangrid/internal/reducer"
	"github.com/zclconf/go-cty/cty"
)

func TestSampler(t *testing.T) {
	// Arrange
	id := column.NewPhysical("id", 0, cty.Number)
	name := column.NewPhysical("name", 1, cty.String)
	cols := []*column.InputColumn{id, name}
	a, err := New(descriptor.NewPropertyValues(Descriptor,
		map[string]cty.Value{"sample_size": cty.NumberIntVal(2)},
		map[string][]*column.InputColumn{"columns": cols}, nil))
	require.NoError(t, err)

	// Act
	for i, n := range []cty.Value{cty.StringVal("ann"), cty.NullVal(cty.String), cty.StringVal("cy")} {
		require.NoError(t, a.Run(column.NewMapRow(int64(i), cols, []cty.Value{cty.NumberIntVal(int64(i + 1)), n})))
	}
	res, err := a.Result()

	// Assert
	require.NoError(t, err)
	assert.Equal(t, &Sample{
		Columns: []string{"id", "name"},
		RowIDs:  []int64{0, 1},
		Rows:    [][]string{{"1", "ann"}, {"2", column.NullText}},
	}, res)
}

func TestSampler_NotDistributable(t *testing.T) {
	assert.False(t, Descriptor.IsDistributable())

	_, err := reducer.Reduce(Descriptor, []descriptor.Result{&Sample{}, &Sample{}})

	assert.ErrorIs(t, err, errs.ErrNotDistributable)
}

func TestNew_InvalidSampleSize(t *testing.T) {
	_, err := New(descriptor.NewPropertyValues(Descriptor, map[string]cty.Value{"sample_size": cty.NumberIntVal(0)}, nil, nil))

	assert.Error(t, err)
}
