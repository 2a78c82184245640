package builder

import "github.com/vk/cleangrid/internal/column"

// Listener observes mutations of a Builder. Callbacks run synchronously on
// the mutating goroutine, in the order the mutations occurred.
type Listener interface {
	SourceColumnAdded(col *column.InputColumn)
	SourceColumnRemoved(col *column.InputColumn)
	ComponentAdded(cb *ComponentBuilder)
	ComponentRemoved(cb *ComponentBuilder)
	ComponentReconfigured(cb *ComponentBuilder)
	RequirementChanged(cb *ComponentBuilder)
}

// NopListener implements Listener with no-op methods. Embed it to observe
// only some events.
type NopListener struct{}

func (NopListener) SourceColumnAdded(*column.InputColumn)   {}
func (NopListener) SourceColumnRemoved(*column.InputColumn) {}
func (NopListener) ComponentAdded(*ComponentBuilder)        {}
func (NopListener) ComponentRemoved(*ComponentBuilder)      {}
func (NopListener) ComponentReconfigured(*ComponentBuilder) {}
func (NopListener) RequirementChanged(*ComponentBuilder)    {}

var _ Listener = NopListener{}

// AddListener registers l.
func (b *Builder) AddListener(l Listener) {
	b.listeners = append(b.listeners, l)
}

// RemoveListener unregisters l. Listeners are compared by identity.
func (b *Builder) RemoveListener(l Listener) {
	for i, existing := range b.listeners {
		if existing == l {
			b.listeners = append(b.listeners[:i], b.listeners[i+1:]...)
			return
		}
	}
}

func (b *Builder) notify(fn func(Listener)) {
	for _, l := range b.listeners {
		fn(l)
	}
}
