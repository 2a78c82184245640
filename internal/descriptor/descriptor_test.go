package descriptor

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/cleangrid/internal/column"
	"github.com/vk/cleangrid/internal/errs"
	"github.com/zclconf/go-cty/cty"
)

type stubFilter struct{}

func (stubFilter) Categorize(column.Row) (string, error) { return "VALID", nil }

type stubAnalyzer struct{}

func (stubAnalyzer) Run(column.Row) error    { return nil }
func (stubAnalyzer) Result() (Result, error) { return 0, nil }

func newStubFilter(Properties) (Filter, error)     { return stubFilter{}, nil }
func newStubAnalyzer(Properties) (Analyzer, error) { return stubAnalyzer{}, nil }
func newStubAnalyzerAny(Properties) (any, error)   { return stubAnalyzer{}, nil }
func newWrongKind(Properties) (any, error)         { return stubFilter{}, nil }
func failingFactory(Properties) (Analyzer, error)  { return nil, errors.New("no way") }
func sumReducer(partials []Result) (Result, error) { return len(partials), nil }

func validFilterBuilder(identity string) *Builder {
	return NewFilter(identity, newStubFilter).Outcomes("VALID", "INVALID")
}

func validAnalyzerBuilder(identity string) *Builder {
	return NewAnalyzer(identity, newStubAnalyzer)
}

func mustValidate(t *testing.T, d *Descriptor) {
	t.Helper()
	require.NoError(t, d.Validate())
}

func namesOf(props []*ConfiguredProperty) []string {
	var names []string
	for _, p := range props {
		names = append(names, p.Name)
	}
	return names
}

func TestBuild_PropertyOrdering(t *testing.T) {
	d := validAnalyzerBuilder("ordering").
		Property("alpha", cty.String).
		Property("beta", cty.Number).
		InputColumns("columns", cty.String).
		Property("gamma", cty.Bool).
		Build()

	mustValidate(t, d)
	assert.Equal(t, []string{"columns", "alpha", "beta", "gamma"}, namesOf(d.Properties()))
	assert.Equal(t, []string{"columns"}, namesOf(d.InputColumnProperties()))
}

func TestBuild_Defaults(t *testing.T) {
	d := validFilterBuilder("defaults").
		Alias("Legacy defaults").
		InputColumns("columns", cty.DynamicPseudoType, Arity(1, 2)).
		Property("flag", cty.Bool, Default(cty.True), Describe("a flag")).
		Build()

	mustValidate(t, d)
	assert.Equal(t, "defaults", d.DisplayName())
	assert.Equal(t, []string{"Legacy defaults"}, d.Aliases())
	assert.True(t, d.HasOutcome("VALID"))
	assert.False(t, d.HasOutcome("MAYBE"))
	assert.False(t, d.IsDistributable())

	cols, ok := d.Property("columns")
	require.True(t, ok)
	assert.True(t, cols.Required)
	assert.Equal(t, 1, cols.MinColumns)
	assert.Equal(t, 2, cols.MaxColumns)

	flag, ok := d.Property("flag")
	require.True(t, ok)
	assert.Equal(t, "a flag", flag.Description)
}

func TestValidate_Rejections(t *testing.T) {
	testCases := []struct {
		name        string
		descriptor  *Descriptor
		errContains string
	}{
		{
			name:        "missing factory",
			descriptor:  NewAnalyzer("abstract", nil).Build(),
			errContains: "not instantiable",
		},
		{
			name:        "missing kind",
			descriptor:  New("unmarked", KindUnknown).Factory(newStubAnalyzerAny).Build(),
			errContains: "kind is not declared",
		},
		{
			name:        "array with undetermined element type",
			descriptor:  validAnalyzerBuilder("bad-array").Property("values", cty.DynamicPseudoType, Array()).Build(),
			errContains: "element type cannot be determined",
		},
		{
			name:        "array with nil element type",
			descriptor:  validAnalyzerBuilder("nil-array").Property("values", cty.NilType, Array()).Build(),
			errContains: "element type cannot be determined",
		},
		{
			name:        "filter without outcomes",
			descriptor:  NewFilter("mute", newStubFilter).Build(),
			errContains: "no outcome categories",
		},
		{
			name:        "duplicate outcome",
			descriptor:  NewFilter("echo", newStubFilter).Outcomes("A", "A").Build(),
			errContains: "more than once",
		},
		{
			name:        "outcomes on analyzer",
			descriptor:  validAnalyzerBuilder("chatty").Outcomes("A").Build(),
			errContains: "only filters",
		},
		{
			name:        "reducer on filter",
			descriptor:  validFilterBuilder("reducing").Reducer(sumReducer).Build(),
			errContains: "only analyzers",
		},
		{
			name:        "duplicate property",
			descriptor:  validAnalyzerBuilder("twice").Property("x", cty.String).Property("x", cty.Number).Build(),
			errContains: "declared more than once",
		},
		{
			name:        "default of wrong type",
			descriptor:  validAnalyzerBuilder("bad-default").Property("n", cty.Number, Default(cty.StringVal("many"))).Build(),
			errContains: "default does not conform",
		},
		{
			name:        "inverted arity",
			descriptor:  validAnalyzerBuilder("arity").InputColumns("columns", cty.String, Arity(3, 1)).Build(),
			errContains: "exceeds maximum",
		},
		{
			name:        "empty identity",
			descriptor:  validAnalyzerBuilder("").Build(),
			errContains: "identity is empty",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.descriptor.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.errContains)
			assert.ErrorIs(t, err, errs.ErrInvalidDescriptor)
			assert.True(t, errs.IsConfiguration(err))
			if tc.descriptor.Identity() != "" {
				assert.Contains(t, err.Error(), tc.descriptor.Identity(), "error must name the offending component")
			}
		})
	}
}

func TestInstantiate(t *testing.T) {
	t.Run("checks kind contract", func(t *testing.T) {
		d := New("confused", KindAnalyzer).Factory(newWrongKind).Build()
		_, err := d.Instantiate(NewPropertyValues(d, nil, nil, nil))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "does not implement the analyzer contract")
	})

	t.Run("propagates factory error", func(t *testing.T) {
		d := NewAnalyzer("broken", failingFactory).Build()
		_, err := d.Instantiate(NewPropertyValues(d, nil, nil, nil))
		assert.EqualError(t, err, "no way")
	})

	t.Run("returns component", func(t *testing.T) {
		d := validAnalyzerBuilder("fine").Build()
		c, err := d.Instantiate(NewPropertyValues(d, nil, nil, nil))
		require.NoError(t, err)
		assert.Implements(t, (*Analyzer)(nil), c)
	})
}

func TestReduce(t *testing.T) {
	d := validAnalyzerBuilder("summing").Reducer(sumReducer).Build()
	assert.True(t, d.IsDistributable())
	r, err := d.Reduce([]Result{1, 2, 3})
	require.NoError(t, err)
	assert.Equal(t, 3, r)

	nd := validAnalyzerBuilder("single").Build()
	_, err = nd.Reduce([]Result{1, 2})
	assert.ErrorIs(t, err, errs.ErrNotDistributable)
}

func TestPropertyValues(t *testing.T) {
	email := column.NewPhysical("email", 1, cty.String)
	d := validAnalyzerBuilder("props").
		InputColumns("columns", cty.String).
		Property("limit", cty.Number, Default(cty.NumberIntVal(10))).
		Property("labels", cty.String, Array()).
		Property("name", cty.String).
		Provided("run", ProvidedRunID).
		Build()
	mustValidate(t, d)

	pv := NewPropertyValues(d,
		map[string]cty.Value{"labels": cty.ListVal([]cty.Value{cty.StringVal("a"), cty.StringVal("b")})},
		map[string][]*column.InputColumn{"columns": {email}},
		map[string]any{"run": "run-1"},
	)

	limit, err := Get[int](pv, "limit")
	require.NoError(t, err)
	assert.Equal(t, 10, limit)

	labels, err := Get[[]string](pv, "labels")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, labels)

	name, err := Get[string](pv, "name")
	require.NoError(t, err)
	assert.Empty(t, name)
	assert.True(t, pv.Value("name").IsNull())

	assert.Equal(t, []*column.InputColumn{email}, pv.Columns("columns"))
	assert.Equal(t, "run-1", pv.Provided("run"))
	assert.Nil(t, pv.Provided("missing"))
}
