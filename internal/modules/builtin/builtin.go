// Package builtin registers the standard guest-visible capabilities shipped
// with the host. Each capability is a named module resolved into a context's
// binding table; values are guest-representable so scripts can reach them
// through the "use" function.
package builtin

import (
	"github.com/nfrund/scripthost/internal/config"
	"github.com/nfrund/scripthost/internal/modules"
	"github.com/nfrund/scripthost/internal/pubsub"
)

// Dependencies holds the services the built-in modules are constructed from.
type Dependencies struct {
	Config    config.Provider
	Publisher pubsub.Publisher
}

// Register adds the standard built-in modules to a registry. Host info is
// eager; events and ids defer construction until first guest reference.
func Register(reg *modules.Registry, deps Dependencies) error {
	if err := reg.Register("host.info", HostInfo(deps.Config)); err != nil {
		return err
	}
	if err := reg.RegisterDeferred("events", Events(deps.Publisher)); err != nil {
		return err
	}
	if err := reg.RegisterDeferred("ids", IDs()); err != nil {
		return err
	}
	return nil
}
