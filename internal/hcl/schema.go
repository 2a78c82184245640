package hcl

import (
	"github.com/hashicorp/hcl/v2"
)

// fileRoot is a struct used to decode all possible top-level blocks from any file.
type fileRoot struct {
	FormatVersion *int                 `hcl:"format_version,optional"`
	Jobs          []*jobBlock          `hcl:"job,block"`
	SourceColumns []*sourceColumnBlock `hcl:"source_column,block"`
	Filters       []*componentBlock    `hcl:"filter,block"`
	Transformers  []*componentBlock    `hcl:"transformer,block"`
	Analyzers     []*componentBlock    `hcl:"analyzer,block"`
}

type jobBlock struct {
	Name      string `hcl:"name,label"`
	Datastore string `hcl:"datastore,optional"`
	Table     string `hcl:"table"`
}

type sourceColumnBlock struct {
	Name   string         `hcl:"name,label"`
	Number int            `hcl:"number"`
	Type   hcl.Expression `hcl:"type,optional"`
}

type componentBlock struct {
	Descriptor string         `hcl:"descriptor,label"`
	Name       string         `hcl:"name,label"`
	Properties *bodyBlock     `hcl:"properties,block"`
	Columns    *bodyBlock     `hcl:"columns,block"`
	Requires   *requiresBlock `hcl:"requires,block"`
}

// bodyBlock captures a block whose attributes are free-form.
type bodyBlock struct {
	Body hcl.Body `hcl:",remain"`
}

type requiresBlock struct {
	Component string `hcl:"component"`
	Outcome   string `hcl:"outcome"`
}
