package hcl

import (
	"context"
	"fmt"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclsyntax"
	"github.com/hashicorp/hcl/v2/hclwrite"
	"github.com/vk/cleangrid/internal/ctxlog"
	"github.com/zclconf/go-cty/cty"
)

// primitiveTypes maps the type keywords a column block may use.
var primitiveTypes = map[string]cty.Type{
	"string": cty.String,
	"number": cty.Number,
	"bool":   cty.Bool,
	"any":    cty.DynamicPseudoType,
}

// collectionTypes maps the type constructors, e.g. `list(string)`.
var collectionTypes = map[string]func(cty.Type) cty.Type{
	"list": cty.List,
	"map":  cty.Map,
	"set":  cty.Set,
}

// typeExprToCtyType reads the `type` attribute of a column block. A missing
// expression means any type.
func typeExprToCtyType(ctx context.Context, expr hcl.Expression) (cty.Type, error) {
	if expr == nil {
		return cty.DynamicPseudoType, nil
	}

	switch v := expr.(type) {
	case *hclsyntax.ScopeTraversalExpr:
		if len(v.Traversal) != 1 {
			return cty.DynamicPseudoType, fmt.Errorf("invalid type keyword: traversal path is not a single identifier")
		}
		keyword := v.Traversal.RootName()
		t, ok := primitiveTypes[keyword]
		if !ok {
			return cty.DynamicPseudoType, fmt.Errorf("unknown primitive type %q", keyword)
		}
		return t, nil

	case *hclsyntax.FunctionCallExpr:
		ctor, ok := collectionTypes[v.Name]
		if !ok {
			return cty.DynamicPseudoType, fmt.Errorf("unknown type constructor function %q", v.Name)
		}
		if len(v.Args) != 1 {
			return cty.DynamicPseudoType, fmt.Errorf("%s() takes exactly one element type, got %d", v.Name, len(v.Args))
		}
		elem, err := typeExprToCtyType(ctx, v.Args[0])
		if err != nil {
			return cty.DynamicPseudoType, err
		}
		if elem == cty.DynamicPseudoType {
			return cty.DynamicPseudoType, fmt.Errorf("%s(any) is not a column type", v.Name)
		}
		ctxlog.FromContext(ctx).Debug("Parsed collection column type.", "type", v.Name, "element", elem.FriendlyName())
		return ctor(elem), nil

	default:
		return cty.DynamicPseudoType, fmt.Errorf("unsupported expression for type definition: %T", v)
	}
}

// typeTokens renders t as the type expression typeExprToCtyType accepts.
func typeTokens(t cty.Type) (hclwrite.Tokens, error) {
	for keyword, pt := range primitiveTypes {
		if t.Equals(pt) {
			return hclwrite.TokensForIdentifier(keyword), nil
		}
	}

	var ctor string
	switch {
	case t.IsListType():
		ctor = "list"
	case t.IsMapType():
		ctor = "map"
	case t.IsSetType():
		ctor = "set"
	default:
		return nil, fmt.Errorf("type %s has no HCL type expression", t.FriendlyName())
	}
	elem, err := typeTokens(t.ElementType())
	if err != nil {
		return nil, err
	}
	return hclwrite.TokensForFunctionCall(ctor, elem), nil
}
