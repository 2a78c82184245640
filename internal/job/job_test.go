package job

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/cleangrid/internal/column"
	"github.com/vk/cleangrid/internal/descriptor"
	"github.com/vk/cleangrid/internal/errs"
	"github.com/zclconf/go-cty/cty"
)

type nopFilter struct{}

func (nopFilter) Categorize(column.Row) (string, error) { return "VALID", nil }

type nopTransformer struct{}

func (nopTransformer) OutputColumns() []descriptor.OutputColumn { return nil }
func (nopTransformer) Transform(column.Row) ([]cty.Value, error) {
	return nil, nil
}

type nopAnalyzer struct{}

func (nopAnalyzer) Run(column.Row) error               { return nil }
func (nopAnalyzer) Result() (descriptor.Result, error) { return nil, nil }

var (
	filterDesc = descriptor.NewFilter("null-check", func(descriptor.Properties) (descriptor.Filter, error) {
		return nopFilter{}, nil
	}).
		InputColumns("columns", cty.DynamicPseudoType).
		Property("consider_empty_string_as_null", cty.Bool, descriptor.Default(cty.False)).
		Outcomes("VALID", "INVALID").
		Build()

	transformerDesc = descriptor.NewTransformer("concatenator", func(descriptor.Properties) (descriptor.Transformer, error) {
		return nopTransformer{}, nil
	}).
		InputColumns("columns", cty.DynamicPseudoType).
		Property("separator", cty.String, descriptor.Default(cty.StringVal(""))).
		Build()

	analyzerDesc = descriptor.NewAnalyzer("string-analyzer", func(descriptor.Properties) (descriptor.Analyzer, error) {
		return nopAnalyzer{}, nil
	}).
		InputColumns("columns", cty.String).
		Build()
)

type fixture struct {
	id, email *column.InputColumn
	concat    *column.InputColumn
}

func newFixture() *fixture {
	return &fixture{
		id:     column.NewPhysical("id", 0, cty.Number),
		email:  column.NewPhysical("email", 1, cty.String),
		concat: column.NewVirtualWithID("c-1", "concat", cty.String),
	}
}

func (f *fixture) sources() []*column.InputColumn {
	return []*column.InputColumn{f.email, f.id}
}

// specs declares the analyzer first to show that order is not significant.
func (f *fixture) specs() []ComponentSpec {
	return []ComponentSpec{
		{
			Name:        "stats",
			Descriptor:  analyzerDesc,
			Columns:     map[string][]*column.InputColumn{"columns": {f.concat}},
			Requirement: &RequirementSpec{Filter: "notnull", Outcome: "VALID"},
		},
		{
			Name:       "concat",
			Descriptor: transformerDesc,
			Values:     map[string]cty.Value{"separator": cty.StringVal("-")},
			Columns:    map[string][]*column.InputColumn{"columns": {f.id, f.email}},
			Outputs:    []*column.InputColumn{f.concat},
		},
		{
			Name:       "notnull",
			Descriptor: filterDesc,
			Values:     map[string]cty.Value{"consider_empty_string_as_null": cty.True},
			Columns:    map[string][]*column.InputColumn{"columns": {f.email}},
		},
	}
}

func names(cs []*ComponentJob) []string {
	var out []string
	for _, c := range cs {
		out = append(out, c.Name())
	}
	return out
}

func TestNew_Valid(t *testing.T) {
	f := newFixture()
	meta := Metadata{Name: "profile", Datastore: "main", Table: "customers"}

	j, err := New(meta, f.sources(), f.specs())
	require.NoError(t, err)

	t.Run("topological order holds analyzers back", func(t *testing.T) {
		assert.Equal(t, []string{"concat", "notnull", "stats"}, names(j.Components()))
		for i, c := range j.Components() {
			assert.Equal(t, i, c.Index())
		}
	})

	t.Run("sources are sorted by column number", func(t *testing.T) {
		assert.Equal(t, []*column.InputColumn{f.id, f.email}, j.SourceColumns())
	})

	t.Run("kind views", func(t *testing.T) {
		assert.Equal(t, []string{"notnull"}, names(j.Filters()))
		assert.Equal(t, []string{"concat"}, names(j.Transformers()))
		assert.Equal(t, []string{"stats"}, names(j.Analyzers()))
	})

	t.Run("lookup by address", func(t *testing.T) {
		stats, ok := j.Component("analyzer.stats")
		require.True(t, ok)
		assert.Equal(t, "stats", stats.Name())

		_, ok = j.Component("filter.stats")
		assert.False(t, ok, "kind must match")
		_, ok = j.Component("analyzer.stats[1]")
		assert.False(t, ok, "partition instances are not components")
		_, ok = j.Component("analyzer.unknown")
		assert.False(t, ok)
	})

	t.Run("component wiring", func(t *testing.T) {
		stats, ok := j.Component("stats")
		require.True(t, ok)
		assert.Equal(t, "analyzer.stats", stats.Address().String())
		require.NotNil(t, stats.Requirement())
		assert.Equal(t, "notnull", stats.Requirement().Filter.Name())
		assert.Equal(t, "notnull=VALID", stats.Requirement().String())
		assert.Same(t, f.concat, stats.Columns("columns")[0])

		concat, _ := j.Component("concat")
		assert.Same(t, concat, j.Producer(f.concat))
		assert.Nil(t, j.Producer(f.id))
		assert.Equal(t, "concat.concat", j.ColumnRef(f.concat))
		assert.Equal(t, "email", j.ColumnRef(f.email))
		assert.Equal(t, []*column.InputColumn{f.id, f.email}, concat.InputColumns())
	})

	t.Run("values fall back to defaults", func(t *testing.T) {
		notnull, _ := j.Component("notnull")
		assert.True(t, notnull.Value("consider_empty_string_as_null").True())

		concat, _ := j.Component("concat")
		assert.Equal(t, cty.StringVal("-"), concat.Value("separator"))
		assert.Equal(t, "-", concat.Properties(nil).Value("separator").AsString())
	})

	t.Run("metadata", func(t *testing.T) {
		assert.Equal(t, meta, j.Metadata())
		assert.Equal(t, "profile", j.Name())
	})
}

func TestNew_IsASnapshot(t *testing.T) {
	f := newFixture()
	specs := f.specs()

	j, err := New(Metadata{}, f.sources(), specs)
	require.NoError(t, err)

	// Arrange: mutate the inputs after freezing.
	specs[1].Values["separator"] = cty.StringVal("+")
	specs[1].Columns["columns"][0] = f.email

	// Assert
	concat, _ := j.Component("concat")
	assert.Equal(t, cty.StringVal("-"), concat.Value("separator"))
	assert.Same(t, f.id, concat.Columns("columns")[0])
}

func TestNew_Rejections(t *testing.T) {
	f := newFixture()
	orphan := column.NewVirtualWithID("c-2", "orphan", cty.String)

	testCases := []struct {
		name      string
		mutate    func(specs []ComponentSpec) []ComponentSpec
		sentinel  error
		component string
	}{
		{
			name: "unresolved input column",
			mutate: func(s []ComponentSpec) []ComponentSpec {
				s[0].Columns["columns"] = []*column.InputColumn{orphan}
				return s
			},
			sentinel:  errs.ErrUnresolvedColumn,
			component: "stats",
		},
		{
			name: "requirement on a missing filter",
			mutate: func(s []ComponentSpec) []ComponentSpec {
				s[0].Requirement = &RequirementSpec{Filter: "ghost", Outcome: "VALID"}
				return s
			},
			sentinel:  errs.ErrDanglingRequirement,
			component: "stats",
		},
		{
			name: "requirement on a foreign outcome",
			mutate: func(s []ComponentSpec) []ComponentSpec {
				s[0].Requirement = &RequirementSpec{Filter: "notnull", Outcome: "NULL"}
				return s
			},
			sentinel:  errs.ErrDanglingRequirement,
			component: "stats",
		},
		{
			name: "requirement on a non-filter",
			mutate: func(s []ComponentSpec) []ComponentSpec {
				s[0].Requirement = &RequirementSpec{Filter: "concat", Outcome: "VALID"}
				return s
			},
			sentinel:  errs.ErrDanglingRequirement,
			component: "stats",
		},
		{
			name: "transformer consumes its own output",
			mutate: func(s []ComponentSpec) []ComponentSpec {
				s[1].Columns["columns"] = append(s[1].Columns["columns"], f.concat)
				return s
			},
			sentinel:  errs.ErrCyclicDependency,
			component: "concat",
		},
		{
			name: "gated by a filter that consumes the output",
			mutate: func(s []ComponentSpec) []ComponentSpec {
				s[1].Requirement = &RequirementSpec{Filter: "notnull", Outcome: "VALID"}
				s[2].Columns["columns"] = []*column.InputColumn{f.concat}
				return s
			},
			sentinel: errs.ErrCyclicDependency,
		},
		{
			name: "unknown property",
			mutate: func(s []ComponentSpec) []ComponentSpec {
				s[1].Values["colour"] = cty.StringVal("red")
				return s
			},
			sentinel:  errs.ErrInvalidProperty,
			component: "concat",
		},
		{
			name: "value of the wrong type",
			mutate: func(s []ComponentSpec) []ComponentSpec {
				s[2].Values["consider_empty_string_as_null"] = cty.StringVal("maybe")
				return s
			},
			sentinel:  errs.ErrInvalidProperty,
			component: "notnull",
		},
		{
			name: "column produced twice",
			mutate: func(s []ComponentSpec) []ComponentSpec {
				dup := s[1]
				dup.Name = "concat-2"
				return append(s, dup)
			},
			component: "concat-2",
		},
		{
			name: "duplicate name",
			mutate: func(s []ComponentSpec) []ComponentSpec {
				extra := s[2]
				extra.Requirement = nil
				return append(s, extra)
			},
			component: "notnull",
		},
		{
			name: "invalid name",
			mutate: func(s []ComponentSpec) []ComponentSpec {
				s[2].Name = "not null"
				return s
			},
			component: "not null",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			// Act
			_, err := New(Metadata{}, f.sources(), tc.mutate(f.specs()))

			// Assert
			require.Error(t, err)
			assert.True(t, errs.IsConfiguration(err), "expected a configuration error, got %v", err)
			if tc.sentinel != nil {
				assert.ErrorIs(t, err, tc.sentinel)
			}
			if tc.component != "" {
				assert.Equal(t, tc.component, errs.ComponentOf(err))
			}
		})
	}
}

func TestNew_DuplicateSourceColumnsCollapse(t *testing.T) {
	f := newFixture()
	j, err := New(Metadata{}, []*column.InputColumn{f.id, f.id, f.email}, nil)
	require.NoError(t, err)
	assert.Len(t, j.SourceColumns(), 2)
	assert.Empty(t, j.Components())
}

func TestEqual(t *testing.T) {
	f := newFixture()
	a, err := New(Metadata{Name: "x"}, f.sources(), f.specs())
	require.NoError(t, err)

	t.Run("fresh columns with the same names are equal", func(t *testing.T) {
		g := newFixture()
		g.concat = column.NewVirtual("concat", cty.String)
		b, err := New(Metadata{Name: "x"}, g.sources(), g.specs())
		require.NoError(t, err)
		assert.True(t, a.Equal(b))
		assert.True(t, b.Equal(a))
	})

	t.Run("different value", func(t *testing.T) {
		specs := f.specs()
		specs[1].Values["separator"] = cty.StringVal("+")
		b, err := New(Metadata{Name: "x"}, f.sources(), specs)
		require.NoError(t, err)
		assert.False(t, a.Equal(b))
	})

	t.Run("different requirement", func(t *testing.T) {
		specs := f.specs()
		specs[0].Requirement.Outcome = "INVALID"
		b, err := New(Metadata{Name: "x"}, f.sources(), specs)
		require.NoError(t, err)
		assert.False(t, a.Equal(b))
	})

	t.Run("different metadata", func(t *testing.T) {
		b, err := New(Metadata{Name: "y"}, f.sources(), f.specs())
		require.NoError(t, err)
		assert.False(t, a.Equal(b))
	})

	t.Run("nil", func(t *testing.T) {
		var none *AnalysisJob
		assert.False(t, a.Equal(nil))
		assert.True(t, none.Equal(nil))
	})
}
