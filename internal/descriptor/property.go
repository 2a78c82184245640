package descriptor

import (
	"github.com/zclconf/go-cty/cty"
)

// ConfiguredProperty describes one user-configurable property of a
// component type.
type ConfiguredProperty struct {
	Name        string
	Description string
	// Type is the semantic type of a value. For array and input-column
	// properties it is the element type.
	Type     cty.Type
	Required bool
	Array    bool
	Default  *cty.Value

	// InputColumn marks properties whose value is a set of columns rather
	// than a literal.
	InputColumn bool
	MinColumns  int
	MaxColumns  int // 0 means unbounded.
}

// ValueType returns the type a literal value of the property must conform to.
func (p *ConfiguredProperty) ValueType() cty.Type {
	if p.Array {
		return cty.List(p.Type)
	}
	return p.Type
}

// AcceptsColumnType reports whether a column of type t may be bound to the
// property.
func (p *ConfiguredProperty) AcceptsColumnType(t cty.Type) bool {
	if p.Type == cty.DynamicPseudoType || t == cty.DynamicPseudoType {
		return true
	}
	return t.Equals(p.Type)
}

// ProvidedProperty describes a helper object injected by the engine.
type ProvidedProperty struct {
	Name string
	Kind ProvidedKind
}

// PropertyOption customizes a ConfiguredProperty at declaration time.
type PropertyOption func(*ConfiguredProperty)

// Required marks the property as mandatory.
func Required() PropertyOption {
	return func(p *ConfiguredProperty) { p.Required = true }
}

// Optional marks the property as not mandatory.
func Optional() PropertyOption {
	return func(p *ConfiguredProperty) { p.Required = false }
}

// Default sets the value used when the property is not configured.
func Default(v cty.Value) PropertyOption {
	return func(p *ConfiguredProperty) { p.Default = &v }
}

// Array declares the property as a list of its type.
func Array() PropertyOption {
	return func(p *ConfiguredProperty) { p.Array = true }
}

// Describe attaches a human readable description.
func Describe(s string) PropertyOption {
	return func(p *ConfiguredProperty) { p.Description = s }
}

// Arity bounds the number of columns an input-column property accepts.
// A max of 0 leaves the upper bound open.
func Arity(min, max int) PropertyOption {
	return func(p *ConfiguredProperty) {
		p.MinColumns = min
		p.MaxColumns = max
	}
}
