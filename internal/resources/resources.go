// Package resources holds the embedded resource bundles and setup scripts
// shipped with the host's language plugins.
package resources

import (
	"embed"

	"github.com/spf13/afero"
)

//go:embed all:setup
var embedded embed.FS

// FS returns the embedded resources as an afero filesystem, suitable for a
// manifest registry.
func FS() afero.Fs {
	return afero.FromIOFS{FS: embedded}
}
