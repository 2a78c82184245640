package registry

import (
	"context"
	"fmt"
	"strings"

	"github.com/vk/cleangrid/internal/ctxlog"
	"github.com/vk/cleangrid/internal/descriptor"
	"github.com/zclconf/go-cty/cty"
)

// RegisterModules lets every module register its descriptors and then
// validates the resulting registry as a whole.
func (r *Registry) RegisterModules(ctx context.Context, modules ...Module) error {
	logger := ctxlog.FromContext(ctx)
	for _, mod := range modules {
		if err := mod.Register(r); err != nil {
			return fmt.Errorf("failed to register module %T: %w", mod, err)
		}
	}
	logger.Debug("All component modules registered.", "modules", len(modules), "descriptors", r.Len())
	return r.ValidateRegistry(ctx)
}

// ValidateRegistry re-checks every registered descriptor and reports all
// problems at once.
func (r *Registry) ValidateRegistry(ctx context.Context) error {
	var errs []string
	logger := ctxlog.FromContext(ctx)

	for _, d := range r.All() {
		if err := d.Validate(); err != nil {
			errs = append(errs, err.Error())
			continue
		}
		if found, ok := r.FindByDisplayName(d.DisplayName()); !ok || found != d {
			errs = append(errs, fmt.Sprintf("%s '%s': display name %q does not resolve to it", d.Kind(), d.Identity(), d.DisplayName()))
		}
		for _, alias := range d.Aliases() {
			if found, ok := r.FindByDisplayName(alias); !ok || found != d {
				errs = append(errs, fmt.Sprintf("%s '%s': alias %q does not resolve to it", d.Kind(), d.Identity(), alias))
			}
		}
		for _, p := range d.Properties() {
			if !p.InputColumn && p.Type.Equals(cty.DynamicPseudoType) {
				logger.Warn("Descriptor has a property with 'type = any', which disables type checking.", "identity", d.Identity(), "property", p.Name)
			}
		}
		if d.Kind() == descriptor.KindAnalyzer && !d.IsDistributable() {
			logger.Debug("Analyzer is not distributable and runs in a single partition only.", "identity", d.Identity())
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("registry validation failed:\n- %s", strings.Join(errs, "\n- "))
	}
	return nil
}
