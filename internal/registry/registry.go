package registry

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/vk/cleangrid/internal/descriptor"
	"github.com/vk/cleangrid/internal/errs"
	"golang.org/x/text/cases"
)

// Module is the interface that all component modules must implement to be registered.
type Module interface {
	Register(r *Registry) error
}

// Registry holds all registered descriptors for a single application instance.
type Registry struct {
	mu         sync.RWMutex
	byIdentity map[string]*descriptor.Descriptor
	byName     map[string]*descriptor.Descriptor
}

// New creates and initializes a new Registry instance.
func New() *Registry {
	return &Registry{
		byIdentity: make(map[string]*descriptor.Descriptor),
		byName:     make(map[string]*descriptor.Descriptor),
	}
}

// Register validates d and adds it to the registry. Registering the same
// identity again replaces the prior entry without error. A display name or
// alias already claimed by another identity is rejected.
func (r *Registry) Register(d *descriptor.Descriptor) error {
	if d == nil {
		return errs.Configuration("", "register", fmt.Errorf("%w: nil descriptor", errs.ErrInvalidDescriptor))
	}
	if err := d.Validate(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	names := r.namesOf(d)
	for _, name := range names {
		if other, ok := r.byName[name]; ok && other.Identity() != d.Identity() {
			return errs.Configuration(d.Identity(), "register",
				fmt.Errorf("%w: display name %q is already used by %q", errs.ErrInvalidDescriptor, name, other.Identity()))
		}
	}

	if prior, ok := r.byIdentity[d.Identity()]; ok {
		for _, name := range r.namesOf(prior) {
			delete(r.byName, name)
		}
		slog.Debug("Replacing registered descriptor.", "identity", d.Identity())
	} else {
		slog.Debug("Registering descriptor.", "identity", d.Identity(), "kind", d.Kind().String())
	}

	r.byIdentity[d.Identity()] = d
	for _, name := range names {
		r.byName[name] = d
	}
	return nil
}

// namesOf returns the folded display name and aliases of d.
func (r *Registry) namesOf(d *descriptor.Descriptor) []string {
	names := []string{foldName(d.DisplayName())}
	for _, alias := range d.Aliases() {
		names = append(names, foldName(alias))
	}
	return names
}

// foldName normalizes a display name for case-insensitive lookup. A Caser
// keeps state, so each call gets its own.
func foldName(name string) string {
	return cases.Fold().String(strings.TrimSpace(name))
}

// Find returns the descriptor registered under the given identity.
func (r *Registry) Find(identity string) (*descriptor.Descriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.byIdentity[identity]
	return d, ok
}

// FindByDisplayName returns the descriptor whose display name or alias
// matches name, ignoring case. Every name of a descriptor resolves to the
// same instance.
func (r *Registry) FindByDisplayName(name string) (*descriptor.Descriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.byName[foldName(name)]
	return d, ok
}

// Lookup resolves a reference by identity first, then by display name.
func (r *Registry) Lookup(ref string) (*descriptor.Descriptor, bool) {
	if d, ok := r.Find(ref); ok {
		return d, true
	}
	return r.FindByDisplayName(ref)
}

// All returns every registered descriptor ordered by display name.
func (r *Registry) All() []*descriptor.Descriptor {
	r.mu.RLock()
	out := make([]*descriptor.Descriptor, 0, len(r.byIdentity))
	for _, d := range r.byIdentity {
		out = append(out, d)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].DisplayName() != out[j].DisplayName() {
			return out[i].DisplayName() < out[j].DisplayName()
		}
		return out[i].Identity() < out[j].Identity()
	})
	return out
}

// ByKind returns the registered descriptors of one kind, ordered by display name.
func (r *Registry) ByKind(kind descriptor.Kind) []*descriptor.Descriptor {
	var out []*descriptor.Descriptor
	for _, d := range r.All() {
		if d.Kind() == kind {
			out = append(out, d)
		}
	}
	return out
}

// Filters returns the registered filter descriptors.
func (r *Registry) Filters() []*descriptor.Descriptor { return r.ByKind(descriptor.KindFilter) }

// Transformers returns the registered transformer descriptors.
func (r *Registry) Transformers() []*descriptor.Descriptor {
	return r.ByKind(descriptor.KindTransformer)
}

// Analyzers returns the registered analyzer descriptors.
func (r *Registry) Analyzers() []*descriptor.Descriptor { return r.ByKind(descriptor.KindAnalyzer) }

// Len returns the number of registered descriptors.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byIdentity)
}
