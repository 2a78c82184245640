// This file contains the logic for translating decoded HCL blocks into the
// format-agnostic job definition of the config package.

package hcl

import (
	"context"
	"fmt"
	"sort"

	"github.com/hashicorp/hcl/v2"
	"github.com/vk/cleangrid/internal/config"
	"github.com/vk/cleangrid/internal/ctxlog"
	"github.com/vk/cleangrid/internal/errs"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"
)

// exprPresent reports whether an optional attribute was written. gohcl
// fills omitted optional expressions with zero-width placeholders.
func exprPresent(expr hcl.Expression) bool {
	if expr == nil {
		return false
	}
	r := expr.Range()
	return r.End.Byte > r.Start.Byte
}

func translateSourceColumn(ctx context.Context, b *sourceColumnBlock) (*config.SourceColumn, error) {
	typ := cty.DynamicPseudoType
	if exprPresent(b.Type) {
		var err error
		typ, err = typeExprToCtyType(ctx, b.Type)
		if err != nil {
			return nil, errs.Configuration(b.Name, "load job", fmt.Errorf("source column type: %w", err))
		}
	}
	return &config.SourceColumn{Name: b.Name, Number: b.Number, Type: typ}, nil
}

func translateComponent(ctx context.Context, kind string, b *componentBlock) (*config.Component, error) {
	logger := ctxlog.FromContext(ctx).With("component", b.Name)
	logger.Debug("Translating component block.", "kind", kind, "descriptor", b.Descriptor)

	c := &config.Component{
		Kind:       kind,
		Descriptor: b.Descriptor,
		Name:       b.Name,
		Properties: make(map[string]cty.Value),
		Columns:    make(map[string][]string),
	}

	if b.Properties != nil {
		attrs, err := extractBodyAttributes(b.Properties.Body)
		if err != nil {
			return nil, errs.Configuration(b.Name, "load job", fmt.Errorf("properties: %w", err))
		}
		for name, attr := range attrs {
			val, diags := attr.Expr.Value(nil)
			if diags.HasErrors() {
				return nil, errs.Configuration(b.Name, "load job", fmt.Errorf("property %q: %w", name, diags))
			}
			c.Properties[name] = val
		}
	}

	if b.Columns != nil {
		attrs, err := extractBodyAttributes(b.Columns.Body)
		if err != nil {
			return nil, errs.Configuration(b.Name, "load job", fmt.Errorf("columns: %w", err))
		}
		for name, attr := range attrs {
			refs, err := columnRefs(attr)
			if err != nil {
				return nil, errs.Configuration(b.Name, "load job", fmt.Errorf("columns %q: %w", name, err))
			}
			c.Columns[name] = refs
		}
	}

	if b.Requires != nil {
		c.Requirement = &config.Requirement{Component: b.Requires.Component, Outcome: b.Requires.Outcome}
	}
	return c, nil
}

// columnRefs evaluates a column binding. Both a single reference and a list
// of references are accepted.
func columnRefs(attr *hcl.Attribute) ([]string, error) {
	val, diags := attr.Expr.Value(nil)
	if diags.HasErrors() {
		return nil, diags
	}
	if val.Type() == cty.String {
		if val.IsNull() {
			return nil, nil
		}
		return []string{val.AsString()}, nil
	}
	list, err := convert.Convert(val, cty.List(cty.String))
	if err != nil {
		return nil, fmt.Errorf("expected a column reference or a list of them: %w", err)
	}
	if list.IsNull() {
		return nil, nil
	}
	var refs []string
	for it := list.ElementIterator(); it.Next(); {
		_, v := it.Element()
		if v.IsNull() {
			return nil, fmt.Errorf("column reference is null")
		}
		refs = append(refs, v.AsString())
	}
	return refs, nil
}

// extractBodyAttributes returns the attributes of a free-form block body.
func extractBodyAttributes(body hcl.Body) (map[string]*hcl.Attribute, error) {
	if body == nil {
		return nil, nil
	}
	attrs, diags := body.JustAttributes()
	if diags.HasErrors() {
		return nil, diags
	}
	return attrs, nil
}

// sortedKeys returns the keys of m in lexical order.
func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
