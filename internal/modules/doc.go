// Package modules maps capability names to resolution strategies and holds
// the per-context binding tables guest code resolves them from.
//
// A Registry is process-wide and populated at startup or by plugin installs.
// Each execution context gets its own Bindings seeded from the registry;
// deferred entries construct their value on first guest reference and
// memoize the result. Built-in capabilities live in the builtin subpackage.
package modules
