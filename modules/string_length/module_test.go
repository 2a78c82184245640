package string_length

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/cleangrid/internal/column"
	"github.com/vk/cleangrid/internal/descriptor"
	"github.com/zclconf/go-cty/cty"
)

func TestTransform(t *testing.T) {
	name := column.NewPhysical("name", 0, cty.String)
	cols := []*column.InputColumn{name}

	testCases := []struct {
		measure string
		in      cty.Value
		want    cty.Value
	}{
		{MeasureCharacters, cty.StringVal("héllo"), cty.NumberIntVal(5)},
		{MeasureBytes, cty.StringVal("héllo"), cty.NumberIntVal(6)},
		{MeasureWidth, cty.StringVal("日本"), cty.NumberIntVal(4)},
		{MeasureCharacters, cty.NullVal(cty.String), cty.NullVal(cty.Number)},
	}
	for _, tc := range testCases {
		t.Run(tc.measure, func(t *testing.T) {
			props := descriptor.NewPropertyValues(Descriptor,
				map[string]cty.Value{"measure": cty.StringVal(tc.measure)},
				map[string][]*column.InputColumn{"columns": cols}, nil)
			inst, err := Descriptor.Instantiate(props)
			require.NoError(t, err)
			tr := inst.(descriptor.Transformer)

			out, err := tr.Transform(column.NewMapRow(0, cols, []cty.Value{tc.in}))

			require.NoError(t, err)
			assert.Equal(t, []descriptor.OutputColumn{{Name: "name_length", Type: cty.Number}}, tr.OutputColumns())
			assert.True(t, tc.want.RawEquals(out[0]), "got %#v", out[0])
		})
	}
}

func TestNew_UnknownMeasure(t *testing.T) {
	props := descriptor.NewPropertyValues(Descriptor, map[string]cty.Value{"measure": cty.StringVal("furlongs")}, nil, nil)

	_, err := Descriptor.Instantiate(props)

	assert.ErrorContains(t, err, `unknown measure "furlongs"`)
}
