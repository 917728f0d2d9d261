package builtin

import (
	"runtime"

	"github.com/nfrund/scripthost/internal/config"
)

// HostInfo returns the eager "host.info" capability: a read-only map of host
// facts for guest code.
func HostInfo(cfg config.Provider) map[string]any {
	platform := runtime.GOOS
	language := ""
	if cfg != nil {
		platform = cfg.GetHostPlatform()
		language = cfg.GetDefaultLanguage()
	}
	return map[string]any{
		"platform":         platform,
		"arch":             runtime.GOARCH,
		"default_language": language,
	}
}
