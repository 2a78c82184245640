package config

import (
	"github.com/zclconf/go-cty/cty"
)

// JobDefinition is the unified, format-agnostic representation of a job.
type JobDefinition struct {
	FormatVersion int             `validate:"gte=0"`
	Name          string          `validate:"required"`
	Datastore     string          `validate:"required"`
	Table         string          `validate:"required"`
	SourceColumns []*SourceColumn `validate:"dive,required"`
	Components    []*Component    `validate:"dive,required"`
}

// SourceColumn is the format-agnostic representation of a physical column.
type SourceColumn struct {
	Name   string   `validate:"required"`
	Number int      `validate:"gte=0"`
	Type   cty.Type `validate:"-"`
}

// Component is the format-agnostic representation of a filter, transformer
// or analyzer block. Columns binds input-column properties to column
// references: a source column name, or "<transformer>.<output>".
type Component struct {
	// Kind is the component kind keyword, e.g. "filter".
	Kind        string               `validate:"oneof=filter transformer analyzer"`
	Descriptor  string               `validate:"required"`
	Name        string               `validate:"componentname"`
	Properties  map[string]cty.Value `validate:"-"`
	Columns     map[string][]string  `validate:"dive,keys,required,endkeys,dive,required"`
	Requirement *Requirement         `validate:"omitnil"`
}

// Requirement is the format-agnostic representation of a `requires` block.
type Requirement struct {
	Component string `validate:"componentname"`
	Outcome   string `validate:"required"`
}

// Component finds a component definition by name.
func (d *JobDefinition) Component(name string) (*Component, bool) {
	for _, c := range d.Components {
		if c.Name == name {
			return c, true
		}
	}
	return nil, false
}
