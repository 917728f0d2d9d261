package plugin

import (
	"fmt"

	"github.com/samber/do/v2"

	"github.com/nfrund/scripthost/internal/modules"
	"github.com/nfrund/scripthost/internal/pubsub"
)

// Key is a type-safe plugin key. The string value is the plugin name; the
// type parameter pins the configuration type expected at registration, so a
// key identifies both.
type Key[C any] string

// EngineScope is the installation handle passed to engine-scoped plugins at
// the EngineCreated checkpoint. Plugins use it to register process-wide
// modules and resolve shared services.
type EngineScope interface {
	// EngineID returns the identity of the engine being installed into.
	EngineID() string

	// Services returns the dependency injector holding process-wide
	// singletons. The host calls into it but does not implement it.
	Services() do.Injector

	// Modules returns the process-wide module registry.
	Modules() *modules.Registry
}

// ContextScope is the installation handle passed to context-scoped plugins at
// the ContextCreated checkpoint. It extends the engine scope with the
// context's mutable binding table.
type ContextScope interface {
	EngineScope

	// ContextID returns the identity of the context being installed into.
	ContextID() string

	// Bind adds an eager capability to the context's binding table.
	Bind(name string, value any) error

	// BindDeferred adds a capability resolved on first guest reference.
	BindDeferred(name string, factory modules.Factory) error

	// Publisher returns the host's pub/sub publisher for guest-visible
	// eventing.
	Publisher() pubsub.Publisher
}

// EngineInstall is a plugin's engine-scoped install routine.
type EngineInstall[C any] func(scope EngineScope, cfg C) error

// ContextInstall is a plugin's context-scoped install routine.
type ContextInstall[C any] func(scope ContextScope, cfg C) error

// DuplicateKeyError indicates a second registration under an already-used key
// with a different routine or configuration.
type DuplicateKeyError struct {
	Key string
}

func (e *DuplicateKeyError) Error() string {
	return fmt.Sprintf("plugin key already registered: %s", e.Key)
}

// InstallError wraps a failure raised by a plugin's install routine. The
// checkpoint that triggered the install fails fast: remaining plugins do not
// run, and bindings applied by earlier plugins are not rolled back.
type InstallError struct {
	Key string
	Err error
}

func (e *InstallError) Error() string {
	return fmt.Sprintf("plugin %q failed during install: %v", e.Key, e.Err)
}

func (e *InstallError) Unwrap() error {
	return e.Err
}
