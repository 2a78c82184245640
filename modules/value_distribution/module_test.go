package value_distribution

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/cleangrid/internal/column"
	"github.com/vk/cleangrid/internal/descriptor"
	"github.com/vk/cleangrid/internal/reducer"
	"github.com/zclconf/go-cty/cty"
	"gopkg.in/yaml.v3"
)

var country = column.NewPhysical("country", 0, cty.String)

func distribute(t *testing.T, topN int, values ...string) *Distribution {
	t.Helper()
	props := map[string]cty.Value{}
	if topN > 0 {
		props["top_n"] = cty.NumberIntVal(int64(topN))
	}
	a, err := New(descriptor.NewPropertyValues(Descriptor, props, map[string][]*column.InputColumn{"column": {country}}, nil))
	require.NoError(t, err)
	for i, v := range values {
		val := cty.StringVal(v)
		if v == "" {
			val = cty.NullVal(cty.String)
		}
		require.NoError(t, a.Run(column.NewMapRow(int64(i), []*column.InputColumn{country}, []cty.Value{val})))
	}
	res, err := a.Result()
	require.NoError(t, err)
	return res.(*Distribution)
}

func TestDistribution(t *testing.T) {
	d := distribute(t, 2, "DE", "FR", "DE", "", "NL", "FR", "DE")

	assert.Equal(t, int64(7), d.Rows)
	assert.Equal(t, int64(1), d.Nulls)
	assert.Equal(t, 3, d.Distinct())
	assert.Equal(t, []ValueCount{{"DE", 3}, {"FR", 2}}, d.Top())
}

func TestDistribution_TiesOrderedByValue(t *testing.T) {
	d := distribute(t, 0, "b", "a", "c")

	assert.Equal(t, []ValueCount{{"a", 1}, {"b", 1}, {"c", 1}}, d.Top())
}

func TestReduce(t *testing.T) {
	whole := distribute(t, 1, "x", "y", "x", "", "z", "x")
	left := distribute(t, 1, "x", "y")
	right := distribute(t, 1, "x", "", "z", "x")

	res, err := reducer.Reduce(Descriptor, []descriptor.Result{right, left})

	require.NoError(t, err)
	assert.Equal(t, whole, res)
}

func TestMarshalYAML(t *testing.T) {
	d := distribute(t, 1, "x", "y", "x")

	out, err := yaml.Marshal(d)

	require.NoError(t, err)
	assert.YAMLEq(t, `
column: country
rows: 3
nulls: 0
distinct: 2
top:
  - value: x
    count: 2
`, string(out))
}
