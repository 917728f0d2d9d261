package modules

import (
	"errors"
	"fmt"
)

// ErrSealed is returned when a binding table is mutated after its first-phase
// registration window has closed.
var ErrSealed = errors.New("binding table is sealed")

// DuplicateModuleError indicates an attempt to register a capability name that
// is already registered with a different provider.
type DuplicateModuleError struct {
	Name string
}

func (e *DuplicateModuleError) Error() string {
	return fmt.Sprintf("module %q is already registered with a different provider", e.Name)
}

// NotFoundError indicates a capability name with no registration.
type NotFoundError struct {
	Name string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("module not found: %s", e.Name)
}
