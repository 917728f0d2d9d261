package host

import (
	"log/slog"

	"github.com/samber/do/v2"

	"github.com/nfrund/scripthost/internal/lang"
	"github.com/nfrund/scripthost/internal/lifecycle"
	"github.com/nfrund/scripthost/internal/manifest"
	"github.com/nfrund/scripthost/internal/modules"
	"github.com/nfrund/scripthost/internal/plugin"
	"github.com/nfrund/scripthost/internal/pubsub"
)

// Builder assembles an Engine. Configuration is validated at Build time;
// plugins registered on the builder observe the engine's creation checkpoints,
// plugins registered later do not retroactively receive those events.
type Builder struct {
	cfg       Config
	languages []lang.Language
	plugins   *plugin.Registry
	bus       *lifecycle.Bus
	injector  do.Injector
	modules   *modules.Registry
	manifests *manifest.Registry
	publisher pubsub.Publisher
}

// NewBuilder creates a builder with default limits, a fresh lifecycle bus,
// and empty plugin and module registries.
func NewBuilder() *Builder {
	return &Builder{
		cfg: Config{
			Limits: lang.DefaultSecurityLimits(),
		},
		plugins: plugin.NewRegistry(),
		bus:     lifecycle.NewBus(),
		modules: modules.NewRegistry(),
	}
}

// WithLanguage installs a guest language into the engine.
func (b *Builder) WithLanguage(l lang.Language) *Builder {
	b.languages = append(b.languages, l)
	return b
}

// WithDefaultLanguage selects the language used when a caller does not name one.
func (b *Builder) WithDefaultLanguage(id lang.ID) *Builder {
	b.cfg.DefaultLanguage = id
	return b
}

// WithPlatform sets the host platform used for manifest resolution.
func (b *Builder) WithPlatform(platform string) *Builder {
	b.cfg.Platform = platform
	return b
}

// WithLimits sets the security limits applied to guest execution.
func (b *Builder) WithLimits(limits lang.SecurityLimits) *Builder {
	b.cfg.Limits = limits
	return b
}

// WithPlugins replaces the builder's plugin registry.
func (b *Builder) WithPlugins(r *plugin.Registry) *Builder {
	b.plugins = r
	return b
}

// WithBus replaces the builder's lifecycle bus.
func (b *Builder) WithBus(bus *lifecycle.Bus) *Builder {
	b.bus = bus
	return b
}

// WithInjector supplies the dependency injector exposed to plugin installs.
func (b *Builder) WithInjector(injector do.Injector) *Builder {
	b.injector = injector
	return b
}

// WithModules replaces the builder's module registry.
func (b *Builder) WithModules(r *modules.Registry) *Builder {
	b.modules = r
	return b
}

// WithManifests supplies the language-plugin manifest registry.
func (b *Builder) WithManifests(r *manifest.Registry) *Builder {
	b.manifests = r
	return b
}

// WithPublisher supplies the pub/sub publisher; lifecycle events are mirrored
// to it for asynchronous observers.
func (b *Builder) WithPublisher(pub pubsub.Publisher) *Builder {
	b.publisher = pub
	return b
}

// Plugins returns the builder's plugin registry for registration.
func (b *Builder) Plugins() *plugin.Registry {
	return b.plugins
}

// Bus returns the builder's lifecycle bus, so handlers can subscribe before
// the engine's creation checkpoints fire.
func (b *Builder) Bus() *lifecycle.Bus {
	return b.bus
}

// Modules returns the builder's module registry.
func (b *Builder) Modules() *modules.Registry {
	return b.modules
}

// Build validates the configuration, constructs the engine, runs the
// engine-scoped plugin installs, and fires EngineCreated followed by
// EngineInitialized. Any checkpoint failure leaves no usable engine.
func (b *Builder) Build() (*Engine, error) {
	if err := b.validate(); err != nil {
		return nil, err
	}

	if b.injector == nil {
		b.injector = do.New()
	}
	if b.publisher != nil {
		lifecycle.Mirror(b.bus, b.publisher)
	}

	e := newEngine(b.cfg, b)

	scope := &engineScope{engine: e}
	if err := b.plugins.InstallEngine(scope); err != nil {
		return nil, NewError(ErrorTypePluginInstall, e.id, "", "engine plugin installation failed", err)
	}

	if err := e.bus.Emit(lifecycle.Event{
		Kind:     lifecycle.EngineCreated,
		EngineID: e.id,
		Payload:  e,
	}); err != nil {
		return nil, err
	}
	if err := e.bus.Emit(lifecycle.Event{
		Kind:     lifecycle.EngineInitialized,
		EngineID: e.id,
		Payload:  e,
	}); err != nil {
		return nil, err
	}

	slog.Info("Built engine",
		"engine", e.id,
		"languages", len(e.languages),
		"plugins", len(b.plugins.Keys()),
	)
	return e, nil
}

func (b *Builder) validate() error {
	seen := make(map[lang.ID]bool)
	for _, l := range b.languages {
		if seen[l.ID()] {
			return NewError(ErrorTypeEngineBuild, "", "", "duplicate language: "+string(l.ID()), nil)
		}
		seen[l.ID()] = true
	}

	if b.cfg.Limits.MaxExecutionTime < 0 {
		return NewError(ErrorTypeEngineBuild, "", "", "negative max execution time", nil)
	}
	if b.cfg.Limits.MaxMemoryBytes < 0 {
		return NewError(ErrorTypeEngineBuild, "", "", "negative max memory limit", nil)
	}

	if b.cfg.DefaultLanguage != "" && len(b.languages) > 0 && !seen[b.cfg.DefaultLanguage] {
		return NewError(ErrorTypeEngineBuild, "", "", "default language not installed: "+string(b.cfg.DefaultLanguage), nil)
	}

	return nil
}
