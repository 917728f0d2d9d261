package modules

import (
	"sync"
	"sync/atomic"
)

// binding is a single entry in a context's binding table. Deferred entries
// hold a factory until first resolution; the sync.Once serializes concurrent
// first access so the factory runs exactly once (single-winner semantics).
type binding struct {
	provider provider
	once     sync.Once
	value    any
	err      error
	resolved atomic.Bool
}

// Bindings is the guest-visible binding table of one execution context. It is
// mutable during context initialization, sealed afterward; resolution remains
// available for the lifetime of the context.
type Bindings struct {
	mu      sync.RWMutex
	order   []string
	entries map[string]*binding
	sealed  bool
}

// NewBindings creates an empty binding table.
func NewBindings() *Bindings {
	return &Bindings{
		entries: make(map[string]*binding),
	}
}

// Bind registers an eager capability value under a unique name.
func (b *Bindings) Bind(name string, value any) error {
	return b.add(name, provider{eager: value, isEager: true})
}

// BindDeferred registers a factory resolved on first guest reference.
func (b *Bindings) BindDeferred(name string, factory Factory) error {
	return b.add(name, provider{factory: factory})
}

func (b *Bindings) add(name string, p provider) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.sealed {
		return ErrSealed
	}
	if existing, ok := b.entries[name]; ok {
		if existing.provider.same(p) {
			return nil
		}
		return &DuplicateModuleError{Name: name}
	}

	b.entries[name] = &binding{provider: p}
	b.order = append(b.order, name)
	return nil
}

// Seal closes the table for first-phase registration. Resolution of deferred
// entries is still permitted. Sealing twice is harmless.
func (b *Bindings) Seal() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sealed = true
}

// Has reports whether a capability name is bound.
func (b *Bindings) Has(name string) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	_, ok := b.entries[name]
	return ok
}

// Names returns all bound capability names in binding order.
func (b *Bindings) Names() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	names := make([]string, len(b.order))
	copy(names, b.order)
	return names
}

// Resolve returns the capability value for a name. A deferred entry invokes
// its factory exactly once and memoizes the result, including a factory
// error; losers of a concurrent first resolution observe the winner's result.
func (b *Bindings) Resolve(name string) (any, error) {
	b.mu.RLock()
	entry, ok := b.entries[name]
	b.mu.RUnlock()
	if !ok {
		return nil, &NotFoundError{Name: name}
	}

	if entry.provider.isEager {
		return entry.provider.eager, nil
	}

	entry.once.Do(func() {
		entry.value, entry.err = entry.provider.factory(b)
		entry.resolved.Store(true)
	})
	return entry.value, entry.err
}

// Resolved reports whether a deferred entry has been resolved. Eager entries
// are always resolved.
func (b *Bindings) Resolved(name string) bool {
	b.mu.RLock()
	entry, ok := b.entries[name]
	b.mu.RUnlock()
	if !ok {
		return false
	}
	if entry.provider.isEager {
		return true
	}
	return entry.resolved.Load()
}
