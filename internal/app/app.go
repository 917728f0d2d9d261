// Package app wires the host's process-wide singletons and builds the
// engine. The dependency injector assembled here is the installation-time
// service surface for plugins.
package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/samber/do/v2"

	"github.com/nfrund/scripthost/internal/config"
	"github.com/nfrund/scripthost/internal/host"
	"github.com/nfrund/scripthost/internal/lang"
	"github.com/nfrund/scripthost/internal/lang/tengolang"
	"github.com/nfrund/scripthost/internal/logging"
	"github.com/nfrund/scripthost/internal/manifest"
	"github.com/nfrund/scripthost/internal/modules"
	"github.com/nfrund/scripthost/internal/modules/builtin"
	"github.com/nfrund/scripthost/internal/plugin"
	"github.com/nfrund/scripthost/internal/pubsub"
	"github.com/nfrund/scripthost/internal/resources"
)

// App holds the assembled host: configuration, the shared engine, and the
// services behind it.
type App struct {
	Config   config.Provider
	Engine   *host.Engine
	Bridge   *pubsub.WatermillBridge
	Injector do.Injector
	Modules  *modules.Registry
	Manifest *manifest.Registry
}

// Options tweaks assembly for embedders; the zero value is production wiring.
type Options struct {
	// Plugins registered before the engine is built observe its creation
	// checkpoints.
	Plugins *plugin.Registry
}

// New assembles the application: logging, configuration, pub/sub, the module
// and manifest registries, and finally the engine itself.
func New(ctx context.Context, opts Options) (*App, error) {
	logging.New()
	cfg := config.New()
	bridge := pubsub.NewWatermillBridge()

	injector := do.New()
	do.ProvideValue[config.Provider](injector, cfg)
	do.ProvideValue[pubsub.Publisher](injector, bridge)
	do.ProvideValue[pubsub.Subscriber](injector, bridge)

	registry := modules.NewRegistry()
	if err := builtin.Register(registry, builtin.Dependencies{
		Config:    cfg,
		Publisher: bridge,
	}); err != nil {
		return nil, fmt.Errorf("failed to register built-in modules: %w", err)
	}

	manifests := manifest.NewRegistry(resources.FS())
	if err := manifests.Add(manifest.Entry{
		Language: string(tengolang.LanguageID),
		Bundles: []manifest.Bundle{
			{Path: "setup/tengo/data", MountAt: "data"},
		},
		Scripts: []string{"setup/tengo/prelude.tengo"},
	}); err != nil {
		return nil, err
	}

	if dir := cfg.GetBundleOverrideDir(); dir != "" {
		manifests.SetOverrideDir(dir)
		if err := manifests.StartWatcher(ctx, dir, cfg.GetHotReloadEnabled()); err != nil {
			slog.Error("Failed to start manifest watcher", "error", err)
			// The watcher is a convenience; assembly continues without it.
		}
	}

	builder := host.NewBuilder().
		WithLanguage(tengolang.New()).
		WithDefaultLanguage(lang.ID(cfg.GetDefaultLanguage())).
		WithPlatform(cfg.GetHostPlatform()).
		WithLimits(lang.SecurityLimits{
			MaxExecutionTime: cfg.GetMaxExecutionTime(),
			MaxMemoryBytes:   cfg.GetMaxMemoryBytes(),
			AllowedPackages:  cfg.GetAllowedPackages(),
		}).
		WithInjector(injector).
		WithModules(registry).
		WithManifests(manifests).
		WithPublisher(bridge)

	if opts.Plugins != nil {
		builder.WithPlugins(opts.Plugins)
	}

	engine, err := builder.Build()
	if err != nil {
		return nil, err
	}

	return &App{
		Config:   cfg,
		Engine:   engine,
		Bridge:   bridge,
		Injector: injector,
		Modules:  registry,
		Manifest: manifests,
	}, nil
}

// Shutdown disposes the engine and closes shared services.
func (a *App) Shutdown(ctx context.Context) error {
	a.Manifest.StopWatcher()
	if err := a.Engine.Dispose(); err != nil {
		return err
	}
	if err := a.Bridge.Close(); err != nil {
		slog.Warn("Failed to close pub/sub bridge", "error", err)
	}
	slog.Info("Application shutdown complete")
	return nil
}
