package lang

import (
	"context"
	"time"

	"github.com/spf13/afero"
)

// ID is a short string identifying a guest language, e.g. "tengo".
type ID string

// SecurityLimits defines resource constraints for guest execution.
type SecurityLimits struct {
	MaxExecutionTime time.Duration
	MaxMemoryBytes   int64
	AllowedPackages  []string
}

// DefaultSecurityLimits returns the limits applied when a caller supplies none.
func DefaultSecurityLimits() SecurityLimits {
	return SecurityLimits{
		MaxExecutionTime: 5 * time.Second,
		MaxMemoryBytes:   32 * 1024 * 1024,
		AllowedPackages:  []string{"fmt", "strings", "math"},
	}
}

// Options configures a per-context evaluator.
type Options struct {
	Limits SecurityLimits

	// Lookup resolves a named host capability on first guest reference.
	Lookup func(name string) (any, error)

	// FS is the context's mounted resource view. Guests read bundle
	// contents through it; nil means no filesystem access.
	FS afero.Fs
}

// Language describes a guest language embedded in the engine. Implementations
// own shared compilation state; per-context state lives in the Evaluator.
type Language interface {
	// ID returns the language identifier used in manifests and requests.
	ID() ID

	// NewEvaluator creates the per-context execution state for this language.
	NewEvaluator(opts Options) (Evaluator, error)
}

// Evaluator executes guest source inside one execution context. Evaluators
// are not safe for concurrent use; the guest executor serializes all calls.
type Evaluator interface {
	// Evaluate runs guest source with the given globals and returns the
	// value of the script's "result" variable, if any.
	Evaluate(ctx context.Context, source string, globals map[string]any) (any, error)

	// Close releases per-context language state.
	Close() error
}
