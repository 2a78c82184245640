package descriptor

import (
	"github.com/zclconf/go-cty/cty"
)

// Builder assembles a Descriptor. It is not safe for concurrent use.
type Builder struct {
	d       *Descriptor
	columns []*ConfiguredProperty
	plain   []*ConfiguredProperty
}

// New starts a descriptor of the given kind. Most callers use NewFilter,
// NewTransformer or NewAnalyzer instead.
func New(identity string, kind Kind) *Builder {
	return &Builder{d: &Descriptor{identity: identity, displayName: identity, kind: kind}}
}

// NewFilter starts a filter descriptor.
func NewFilter(identity string, factory func(Properties) (Filter, error)) *Builder {
	b := New(identity, KindFilter)
	if factory != nil {
		b.d.factory = func(p Properties) (any, error) {
			f, err := factory(p)
			if err != nil {
				return nil, err
			}
			return f, nil
		}
	}
	return b
}

// NewTransformer starts a transformer descriptor.
func NewTransformer(identity string, factory func(Properties) (Transformer, error)) *Builder {
	b := New(identity, KindTransformer)
	if factory != nil {
		b.d.factory = func(p Properties) (any, error) {
			t, err := factory(p)
			if err != nil {
				return nil, err
			}
			return t, nil
		}
	}
	return b
}

// NewAnalyzer starts an analyzer descriptor.
func NewAnalyzer(identity string, factory func(Properties) (Analyzer, error)) *Builder {
	b := New(identity, KindAnalyzer)
	if factory != nil {
		b.d.factory = func(p Properties) (any, error) {
			a, err := factory(p)
			if err != nil {
				return nil, err
			}
			return a, nil
		}
	}
	return b
}

// Factory sets an untyped factory.
func (b *Builder) Factory(f Factory) *Builder {
	b.d.factory = f
	return b
}

// DisplayName sets the human readable name. It defaults to the identity.
func (b *Builder) DisplayName(name string) *Builder {
	b.d.displayName = name
	return b
}

// Alias adds alternative display names.
func (b *Builder) Alias(names ...string) *Builder {
	b.d.aliases = append(b.d.aliases, names...)
	return b
}

// Description sets the human readable description.
func (b *Builder) Description(s string) *Builder {
	b.d.description = s
	return b
}

// Property declares a literal configured property.
func (b *Builder) Property(name string, typ cty.Type, opts ...PropertyOption) *Builder {
	p := &ConfiguredProperty{Name: name, Type: typ}
	for _, opt := range opts {
		opt(p)
	}
	b.plain = append(b.plain, p)
	return b
}

// InputColumns declares a property that binds one or more columns of the
// given element type. It is required and needs at least one column unless
// options say otherwise.
func (b *Builder) InputColumns(name string, typ cty.Type, opts ...PropertyOption) *Builder {
	p := &ConfiguredProperty{Name: name, Type: typ, Required: true, Array: true, InputColumn: true, MinColumns: 1}
	for _, opt := range opts {
		opt(p)
	}
	p.InputColumn = true
	b.columns = append(b.columns, p)
	return b
}

// Provided declares a helper object the engine injects at run time.
func (b *Builder) Provided(name string, kind ProvidedKind) *Builder {
	b.d.provided = append(b.d.provided, &ProvidedProperty{Name: name, Kind: kind})
	return b
}

// Outcomes declares the outcome categories of a filter.
func (b *Builder) Outcomes(outcomes ...string) *Builder {
	b.d.outcomes = append(b.d.outcomes, outcomes...)
	return b
}

// Reducer marks an analyzer as distributable.
func (b *Builder) Reducer(r Reducer) *Builder {
	b.d.reducer = r
	return b
}

// Build returns the descriptor. It does not validate; registries do.
func (b *Builder) Build() *Descriptor {
	d := *b.d
	d.aliases = append([]string(nil), b.d.aliases...)
	d.outcomes = append([]string(nil), b.d.outcomes...)
	d.provided = append([]*ProvidedProperty(nil), b.d.provided...)
	d.properties = make([]*ConfiguredProperty, 0, len(b.columns)+len(b.plain))
	d.properties = append(d.properties, b.columns...)
	d.properties = append(d.properties, b.plain...)
	return &d
}
