package host

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/samber/do/v2"

	"github.com/nfrund/scripthost/internal/lang"
	"github.com/nfrund/scripthost/internal/lifecycle"
	"github.com/nfrund/scripthost/internal/manifest"
	"github.com/nfrund/scripthost/internal/modules"
	"github.com/nfrund/scripthost/internal/plugin"
	"github.com/nfrund/scripthost/internal/pubsub"
)

// Config is the engine's configuration snapshot, immutable once built.
type Config struct {
	DefaultLanguage lang.ID
	Platform        string
	Limits          lang.SecurityLimits
}

// Engine owns the shared, expensive-to-build execution infrastructure:
// installed guest languages, the plugin registry, the module registry, and
// the lifecycle bus. It is created once via a Builder and never mutated;
// contexts are acquired from it and become invalid when it is disposed.
type Engine struct {
	id        string
	cfg       Config
	languages map[lang.ID]lang.Language
	plugins   *plugin.Registry
	bus       *lifecycle.Bus
	injector  do.Injector
	modules   *modules.Registry
	manifests *manifest.Registry
	publisher pubsub.Publisher

	mu       sync.Mutex
	contexts map[string]*Context
	disposed bool
}

// ID returns the engine's unique identity.
func (e *Engine) ID() string {
	return e.id
}

// Config returns the engine's immutable configuration snapshot.
func (e *Engine) Config() Config {
	return e.cfg
}

// Bus returns the engine's lifecycle event bus.
func (e *Engine) Bus() *lifecycle.Bus {
	return e.bus
}

// Modules returns the process-wide module registry this engine installs from.
func (e *Engine) Modules() *modules.Registry {
	return e.modules
}

// Services returns the dependency injector handed to plugin installs.
func (e *Engine) Services() do.Injector {
	return e.injector
}

// Languages returns the installed guest language identifiers.
func (e *Engine) Languages() []lang.ID {
	ids := make([]lang.ID, 0, len(e.languages))
	for id := range e.languages {
		ids = append(ids, id)
	}
	return ids
}

func (e *Engine) language(id lang.ID) (lang.Language, bool) {
	l, ok := e.languages[id]
	return l, ok
}

// ContextIDs returns the identities of all live contexts.
func (e *Engine) ContextIDs() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	ids := make([]string, 0, len(e.contexts))
	for id := range e.contexts {
		ids = append(ids, id)
	}
	return ids
}

// AcquireContext creates a new execution context bound to a fresh guest
// executor. The ContextCreated checkpoint runs the context-scoped plugin
// installs against a mutable installation scope; manifest bundles are then
// mounted and setup scripts run on the executor before ContextInitialized
// fires. A plugin or handler failure aborts the checkpoint fail-fast: the
// context is disposed, ContextInitialized never fires, and the error is
// returned to the caller.
func (e *Engine) AcquireContext(ctx context.Context) (*Context, error) {
	e.mu.Lock()
	if e.disposed {
		e.mu.Unlock()
		return nil, NewError(ErrorTypeEngineDisposed, e.id, "", "engine is disposed", nil)
	}
	c := newContext(e)
	e.contexts[c.id] = c
	e.mu.Unlock()

	if err := e.initContext(ctx, c); err != nil {
		c.Dispose()
		return nil, err
	}
	return c, nil
}

func (e *Engine) initContext(ctx context.Context, c *Context) error {
	// Seed the binding table with process-wide module registrations before
	// plugins run, so plugin factories can depend on built-in capabilities.
	if err := e.modules.InstallInto(c.bindings); err != nil {
		return err
	}

	if err := e.bus.Emit(lifecycle.Event{
		Kind:      lifecycle.ContextCreated,
		EngineID:  e.id,
		ContextID: c.id,
		Payload:   c,
	}); err != nil {
		return err
	}

	scope := &contextScope{engineScope: engineScope{engine: e}, ctx: c}
	if err := e.plugins.InstallContext(scope); err != nil {
		var installErr *plugin.InstallError
		if errors.As(err, &installErr) {
			return NewError(ErrorTypePluginInstall, e.id, c.id, "context plugin installation failed", err)
		}
		return err
	}

	if err := e.applyManifests(ctx, c); err != nil {
		return err
	}

	c.bindings.Seal()

	if err := e.bus.Emit(lifecycle.Event{
		Kind:      lifecycle.ContextInitialized,
		EngineID:  e.id,
		ContextID: c.id,
		Payload:   c,
	}); err != nil {
		return err
	}

	slog.Debug("Acquired context", "context", c.id, "engine", e.id, "bindings", len(c.bindings.Names()))
	return nil
}

// applyManifests mounts resource bundles and runs setup scripts for every
// installed language that has manifest entries. Languages without entries are
// skipped; resolution failures other than a missing entry propagate.
func (e *Engine) applyManifests(ctx context.Context, c *Context) error {
	if e.manifests == nil {
		return nil
	}

	for id := range e.languages {
		m, err := e.manifests.Resolve(string(id), e.cfg.Platform)
		if err != nil {
			var resErr *manifest.ResolutionError
			if errors.As(err, &resErr) {
				continue
			}
			return err
		}

		if err := e.manifests.Mount(c.fs, m); err != nil {
			return err
		}

		for _, scriptPath := range m.Scripts {
			source, err := e.manifests.ReadScript(scriptPath)
			if err != nil {
				return err
			}
			if _, err := c.exec.Submit(ctx, func(tctx context.Context) (any, error) {
				return c.Eval(tctx, id, source)
			}); err != nil {
				return NewError(ErrorTypeGuestExecution, e.id, c.id, "setup script failed: "+scriptPath, err)
			}
		}
	}
	return nil
}

func (e *Engine) forget(c *Context) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.contexts, c.id)
}

// Dispose releases the engine's shared state and disposes every live
// context. Idempotent; contexts acquired before disposal become invalid and
// AcquireContext fails afterward.
func (e *Engine) Dispose() error {
	e.mu.Lock()
	if e.disposed {
		e.mu.Unlock()
		return nil
	}
	e.disposed = true
	live := make([]*Context, 0, len(e.contexts))
	for _, c := range e.contexts {
		live = append(live, c)
	}
	e.mu.Unlock()

	for _, c := range live {
		c.Dispose()
	}

	slog.Info("Disposed engine", "engine", e.id, "contexts", len(live))
	return nil
}

// engineScope is the installation handle for engine-scoped plugins.
type engineScope struct {
	engine *Engine
}

func (s *engineScope) EngineID() string           { return s.engine.id }
func (s *engineScope) Services() do.Injector      { return s.engine.injector }
func (s *engineScope) Modules() *modules.Registry { return s.engine.modules }

// contextScope extends the engine scope with the context's binding table.
type contextScope struct {
	engineScope
	ctx *Context
}

func (s *contextScope) ContextID() string { return s.ctx.id }

func (s *contextScope) Bind(name string, value any) error {
	return s.ctx.bindings.Bind(name, value)
}

func (s *contextScope) BindDeferred(name string, factory modules.Factory) error {
	return s.ctx.bindings.BindDeferred(name, factory)
}

func (s *contextScope) Publisher() pubsub.Publisher {
	return s.engine.publisher
}

// newEngine is shared by the builder.
func newEngine(cfg Config, b *Builder) *Engine {
	languages := make(map[lang.ID]lang.Language, len(b.languages))
	for _, l := range b.languages {
		languages[l.ID()] = l
	}
	return &Engine{
		id:        uuid.NewString(),
		cfg:       cfg,
		languages: languages,
		plugins:   b.plugins,
		bus:       b.bus,
		injector:  b.injector,
		modules:   b.modules,
		manifests: b.manifests,
		publisher: b.publisher,
		contexts:  make(map[string]*Context),
	}
}
