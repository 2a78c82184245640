package descriptor

import (
	"fmt"
	"strings"

	"github.com/vk/cleangrid/internal/errs"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"
)

// Validate checks that the descriptor describes an instantiable, well-formed
// component type. The returned error names the descriptor's identity.
func (d *Descriptor) Validate() error {
	if err := d.validate(); err != nil {
		identity := d.identity
		if identity == "" {
			identity = "<anonymous>"
		}
		return errs.Configuration(identity, "validate descriptor", fmt.Errorf("%w: %w", errs.ErrInvalidDescriptor, err))
	}
	return nil
}

func (d *Descriptor) validate() error {
	if strings.TrimSpace(d.identity) == "" {
		return fmt.Errorf("identity is empty")
	}
	if d.kind != KindFilter && d.kind != KindTransformer && d.kind != KindAnalyzer {
		return fmt.Errorf("component kind is not declared")
	}
	if d.factory == nil {
		return fmt.Errorf("component is not instantiable: no factory")
	}
	for _, alias := range d.aliases {
		if strings.TrimSpace(alias) == "" {
			return fmt.Errorf("alias is empty")
		}
	}

	seen := make(map[string]struct{})
	for _, p := range d.properties {
		if err := validateProperty(p); err != nil {
			return err
		}
		if _, dup := seen[p.Name]; dup {
			return fmt.Errorf("property %q is declared more than once", p.Name)
		}
		seen[p.Name] = struct{}{}
	}
	for _, p := range d.provided {
		if p.Name == "" {
			return fmt.Errorf("provided property has no name")
		}
		if p.Kind < ProvidedLogger || p.Kind > ProvidedPartition {
			return fmt.Errorf("provided property %q has an unknown kind", p.Name)
		}
		if _, dup := seen[p.Name]; dup {
			return fmt.Errorf("property %q is declared more than once", p.Name)
		}
		seen[p.Name] = struct{}{}
	}

	if d.kind == KindFilter {
		if len(d.outcomes) == 0 {
			return fmt.Errorf("filter declares no outcome categories")
		}
		outcomes := make(map[string]struct{}, len(d.outcomes))
		for _, o := range d.outcomes {
			if strings.TrimSpace(o) == "" {
				return fmt.Errorf("outcome category is empty")
			}
			if _, dup := outcomes[o]; dup {
				return fmt.Errorf("outcome category %q is declared more than once", o)
			}
			outcomes[o] = struct{}{}
		}
	} else if len(d.outcomes) > 0 {
		return fmt.Errorf("only filters declare outcome categories")
	}

	if d.reducer != nil && d.kind != KindAnalyzer {
		return fmt.Errorf("only analyzers declare a reducer")
	}
	return nil
}

func validateProperty(p *ConfiguredProperty) error {
	if strings.TrimSpace(p.Name) == "" {
		return fmt.Errorf("property has no name")
	}
	if p.Type == cty.NilType {
		if p.Array || p.InputColumn {
			return fmt.Errorf("array property %q: element type cannot be determined", p.Name)
		}
		return fmt.Errorf("property %q has no type", p.Name)
	}
	if p.Array && !p.InputColumn && p.Type == cty.DynamicPseudoType {
		return fmt.Errorf("array property %q: element type cannot be determined", p.Name)
	}
	if p.InputColumn {
		if p.MinColumns < 0 || p.MaxColumns < 0 {
			return fmt.Errorf("property %q: column arity cannot be negative", p.Name)
		}
		if p.MaxColumns > 0 && p.MinColumns > p.MaxColumns {
			return fmt.Errorf("property %q: minimum column count %d exceeds maximum %d", p.Name, p.MinColumns, p.MaxColumns)
		}
		if p.Default != nil {
			return fmt.Errorf("input column property %q cannot have a default", p.Name)
		}
		return nil
	}
	if p.Default != nil {
		if _, err := convert.Convert(*p.Default, p.ValueType()); err != nil {
			return fmt.Errorf("property %q: default does not conform to %s: %w", p.Name, p.ValueType().FriendlyName(), err)
		}
	}
	return nil
}
