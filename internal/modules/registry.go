package modules

import (
	"log/slog"
	"reflect"
	"sync"
)

// Resolver looks up capabilities by name, triggering deferred resolution.
// It is implemented by the per-context binding table, so a factory may
// depend on other registered modules.
type Resolver interface {
	Resolve(name string) (any, error)
}

// Factory constructs a capability value on first guest reference.
type Factory func(r Resolver) (any, error)

// provider is either an already-constructed singleton or a deferred factory.
type provider struct {
	eager   any
	isEager bool
	factory Factory
}

// same reports whether two providers are identical. Eager values compare with
// == when the type allows it; factories compare by function identity.
func (p provider) same(other provider) bool {
	if p.isEager != other.isEager {
		return false
	}
	if p.isEager {
		if p.eager == nil || other.eager == nil {
			return p.eager == other.eager
		}
		if !reflect.TypeOf(p.eager).Comparable() || !reflect.TypeOf(other.eager).Comparable() {
			return false
		}
		return p.eager == other.eager
	}
	return reflect.ValueOf(p.factory).Pointer() == reflect.ValueOf(other.factory).Pointer()
}

// Registry is the process-wide mapping from capability name to a resolution
// strategy. It is populated at startup or during plugin installation and is
// read-mostly afterward. Instances are handed out as shared, non-owning
// references; there is no ambient global lookup.
type Registry struct {
	mu        sync.RWMutex
	order     []string
	providers map[string]provider
}

// NewRegistry creates an empty module registry.
func NewRegistry() *Registry {
	return &Registry{
		providers: make(map[string]provider),
	}
}

// Register maps a capability name to an already-constructed singleton value.
// Re-registering the identical value is a no-op; a different provider under
// the same name fails with DuplicateModuleError.
func (r *Registry) Register(name string, value any) error {
	return r.register(name, provider{eager: value, isEager: true})
}

// RegisterDeferred maps a capability name to a factory invoked exactly once on
// first guest reference. The same duplicate policy as Register applies, with
// factory identity compared by function pointer.
func (r *Registry) RegisterDeferred(name string, factory Factory) error {
	return r.register(name, provider{factory: factory})
}

func (r *Registry) register(name string, p provider) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.providers[name]; ok {
		if existing.same(p) {
			slog.Debug("Ignoring idempotent module re-registration", "module", name)
			return nil
		}
		return &DuplicateModuleError{Name: name}
	}

	r.providers[name] = p
	r.order = append(r.order, name)
	slog.Debug("Registered module", "module", name, "deferred", !p.isEager)
	return nil
}

// Names returns all registered capability names in registration order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, len(r.order))
	copy(names, r.order)
	return names
}

// InstallInto seeds a context's binding table with every registered module, in
// registration order. Eager values are bound directly; deferred factories keep
// their lazy semantics in the binding table.
func (r *Registry) InstallInto(b *Bindings) error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, name := range r.order {
		p := r.providers[name]
		var err error
		if p.isEager {
			err = b.Bind(name, p.eager)
		} else {
			err = b.BindDeferred(name, p.factory)
		}
		if err != nil {
			return err
		}
	}
	return nil
}
