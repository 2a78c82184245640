package hcl

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/cleangrid/internal/config"
	"github.com/zclconf/go-cty/cty"
)

func TestWriter_RoundTrip(t *testing.T) {
	ctx := context.Background()
	original, err := NewLoader().LoadBytes(ctx, []byte(profileHCL), "profile.hcl")
	require.NoError(t, err)

	// Act
	var buf bytes.Buffer
	require.NoError(t, NewWriter().Write(ctx, original, &buf))
	reloaded, err := NewLoader().LoadBytes(ctx, buf.Bytes(), "written.hcl")

	// Assert
	require.NoError(t, err, "written HCL:\n%s", buf.String())
	assert.Equal(t, original.Name, reloaded.Name)
	assert.Equal(t, original.Datastore, reloaded.Datastore)
	assert.Equal(t, original.Table, reloaded.Table)
	require.Len(t, reloaded.SourceColumns, len(original.SourceColumns))
	for i, sc := range original.SourceColumns {
		assert.Equal(t, sc.Name, reloaded.SourceColumns[i].Name)
		assert.Equal(t, sc.Number, reloaded.SourceColumns[i].Number)
		assert.True(t, sc.Type.Equals(reloaded.SourceColumns[i].Type), "type of %s", sc.Name)
	}
	require.Len(t, reloaded.Components, len(original.Components))
	for _, c := range original.Components {
		rc, ok := reloaded.Component(c.Name)
		require.True(t, ok, c.Name)
		assert.Equal(t, c.Kind, rc.Kind)
		assert.Equal(t, c.Descriptor, rc.Descriptor)
		assert.Equal(t, c.Columns, rc.Columns)
		assert.Equal(t, c.Requirement, rc.Requirement)
		require.Len(t, rc.Properties, len(c.Properties))
		for name, v := range c.Properties {
			assert.True(t, v.Equals(rc.Properties[name]).True(), "property %s.%s", c.Name, name)
		}
	}
}

func TestWriter_Output(t *testing.T) {
	def := &config.JobDefinition{
		Name:      "small",
		Datastore: "main",
		Table:     "t",
		SourceColumns: []*config.SourceColumn{
			{Name: "n", Number: 0, Type: cty.Number},
		},
		Components: []*config.Component{
			{
				Kind:       "analyzer",
				Descriptor: "value-distribution",
				Name:       "dist",
				Properties: map[string]cty.Value{
					"top_n": cty.NumberIntVal(3),
					"unset": cty.NullVal(cty.String),
				},
				Columns: map[string][]string{"columns": {"n"}},
			},
		},
	}

	var buf bytes.Buffer
	require.NoError(t, NewWriter().Write(context.Background(), def, &buf))
	out := buf.String()

	assert.Contains(t, out, "format_version = 2")
	assert.Contains(t, out, `job "small" {`)
	assert.Contains(t, out, "type   = number")
	assert.Contains(t, out, `analyzer "value-distribution" "dist" {`)
	assert.Contains(t, out, "top_n = 3")
	assert.NotContains(t, out, "unset", "null properties are omitted")
	assert.NotContains(t, out, "requires")
}

func TestTypeTokens(t *testing.T) {
	testCases := []struct {
		typ  cty.Type
		want string
	}{
		{cty.String, "string"},
		{cty.DynamicPseudoType, "any"},
		{cty.List(cty.Number), "list(number)"},
		{cty.Map(cty.Bool), "map(bool)"},
		{cty.Set(cty.List(cty.String)), "set(list(string))"},
	}
	for _, tc := range testCases {
		t.Run(tc.want, func(t *testing.T) {
			tokens, err := typeTokens(tc.typ)
			require.NoError(t, err)
			assert.Equal(t, tc.want, string(tokens.Bytes()))
		})
	}

	t.Run("object types are rejected", func(t *testing.T) {
		_, err := typeTokens(cty.EmptyObject)
		assert.Error(t, err)
	})
}
