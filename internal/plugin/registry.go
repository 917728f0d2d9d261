package plugin

import (
	"fmt"
	"log/slog"
	"reflect"
	"sync"
)

// registration is one installed plugin: its key identity, configuration
// snapshot, and the checkpoint-bound install closure.
type registration struct {
	id             string
	name           string
	cfg            any
	installPC      uintptr
	engineInstall  func(EngineScope) error
	contextInstall func(ContextScope) error
}

// Registry is the typed registry of installable extensions. Installation
// order matches registration order.
type Registry struct {
	mu    sync.RWMutex
	order []*registration
	byID  map[string]*registration
}

// NewRegistry creates an empty plugin registry.
func NewRegistry() *Registry {
	return &Registry{
		byID: make(map[string]*registration),
	}
}

// RegisterEngine registers an engine-scoped plugin. Its install routine runs
// once per engine at the EngineCreated checkpoint. Re-registering the
// identical routine and configuration under the same key is a no-op; anything
// else under a used key fails with DuplicateKeyError.
func RegisterEngine[C any](r *Registry, key Key[C], cfg C, install EngineInstall[C]) error {
	reg := &registration{
		id:        keyID(key),
		name:      string(key),
		cfg:       cfg,
		installPC: reflect.ValueOf(install).Pointer(),
		engineInstall: func(scope EngineScope) error {
			return install(scope, cfg)
		},
	}
	return r.add(reg)
}

// RegisterContext registers a context-scoped plugin. Its install routine runs
// once per context at the ContextCreated checkpoint.
func RegisterContext[C any](r *Registry, key Key[C], cfg C, install ContextInstall[C]) error {
	reg := &registration{
		id:        keyID(key),
		name:      string(key),
		cfg:       cfg,
		installPC: reflect.ValueOf(install).Pointer(),
		contextInstall: func(scope ContextScope) error {
			return install(scope, cfg)
		},
	}
	return r.add(reg)
}

// keyID combines the key name with its configuration type, so the same name
// used with different configuration types forms distinct keys.
func keyID[C any](key Key[C]) string {
	var zero C
	return fmt.Sprintf("%s#%T", string(key), zero)
}

func (r *Registry) add(reg *registration) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.byID[reg.id]; ok {
		if existing.installPC == reg.installPC && reflect.DeepEqual(existing.cfg, reg.cfg) {
			slog.Debug("Ignoring idempotent plugin re-registration", "key", reg.name)
			return nil
		}
		return &DuplicateKeyError{Key: reg.name}
	}

	r.byID[reg.id] = reg
	r.order = append(r.order, reg)
	slog.Debug("Registered plugin", "key", reg.name, "engine_scoped", reg.engineInstall != nil)
	return nil
}

// Keys returns registered plugin names in registration order.
func (r *Registry) Keys() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.order))
	for _, reg := range r.order {
		names = append(names, reg.name)
	}
	return names
}

// InstallEngine runs all engine-scoped install routines against the scope, in
// registration order. The first failure aborts the remaining plugins and is
// returned as an InstallError naming the offending key.
func (r *Registry) InstallEngine(scope EngineScope) error {
	for _, reg := range r.snapshot() {
		if reg.engineInstall == nil {
			continue
		}
		if err := reg.engineInstall(scope); err != nil {
			return &InstallError{Key: reg.name, Err: err}
		}
		slog.Debug("Installed engine plugin", "key", reg.name, "engine", scope.EngineID())
	}
	return nil
}

// InstallContext runs all context-scoped install routines against the scope,
// in registration order, with the same fail-fast policy as InstallEngine.
func (r *Registry) InstallContext(scope ContextScope) error {
	for _, reg := range r.snapshot() {
		if reg.contextInstall == nil {
			continue
		}
		if err := reg.contextInstall(scope); err != nil {
			return &InstallError{Key: reg.name, Err: err}
		}
		slog.Debug("Installed context plugin", "key", reg.name, "context", scope.ContextID())
	}
	return nil
}

func (r *Registry) snapshot() []*registration {
	r.mu.RLock()
	defer r.mu.RUnlock()
	regs := make([]*registration, len(r.order))
	copy(regs, r.order)
	return regs
}
