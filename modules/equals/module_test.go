package equals

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/cleangrid/internal/column"
	"github.com/vk/cleangrid/internal/descriptor"
	"github.com/zclconf/go-cty/cty"
)

func TestCategorize(t *testing.T) {
	status := column.NewPhysical("status", 0, cty.DynamicPseudoType)
	props := descriptor.NewPropertyValues(Descriptor,
		map[string]cty.Value{"values": cty.ListVal([]cty.Value{cty.StringVal("active"), cty.StringVal("1")})},
		map[string][]*column.InputColumn{"column": {status}}, nil)
	inst, err := Descriptor.Instantiate(props)
	require.NoError(t, err)
	f := inst.(descriptor.Filter)

	testCases := []struct {
		name string
		in   cty.Value
		want string
	}{
		{"accepted text", cty.StringVal("active"), Valid},
		{"numbers compare as text", cty.NumberIntVal(1), Valid},
		{"other", cty.StringVal("inactive"), Invalid},
		{"case sensitive", cty.StringVal("Active"), Invalid},
		{"null", cty.NullVal(cty.String), Invalid},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := f.Categorize(column.NewMapRow(0, []*column.InputColumn{status}, []cty.Value{tc.in}))
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}
