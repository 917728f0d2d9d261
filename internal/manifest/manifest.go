package manifest

import (
	"fmt"
	iofs "io/fs"
	"log/slog"
	"path"
	"path/filepath"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/afero"
)

// Bundle is a resource subtree mounted into a context's virtual filesystem
// before any guest code runs.
type Bundle struct {
	// Path is the bundle root under the registry's resource filesystem.
	Path string `validate:"required"`
	// MountAt is the mount point inside the context filesystem.
	MountAt string `validate:"required"`
}

// Entry declares the resources of one language on one host platform. An entry
// with an empty Platform applies to all platforms.
type Entry struct {
	Language string `validate:"required"`
	Platform string
	Bundles  []Bundle `validate:"dive"`
	// Scripts are resource paths to guest source run once, in order, at
	// context initialization.
	Scripts []string `validate:"dive,required"`
}

// Manifest is the resolved resource set for a (language, platform) query.
type Manifest struct {
	Language string
	Platform string
	Bundles  []Bundle
	Scripts  []string
}

// ResolutionError indicates that no manifest entry matches a query and none
// is platform-agnostic.
type ResolutionError struct {
	Language string
	Platform string
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("no manifest entry for language %q on platform %q", e.Language, e.Platform)
}

// Registry holds manifest entries and the resource filesystems they address.
// Embedded resources come from the resource fs (typically an embed.FS wrapped
// with afero); an optional override directory on the host filesystem takes
// precedence when reading individual resources.
type Registry struct {
	mu        sync.RWMutex
	resources afero.Fs
	overrides afero.Fs
	entries   []Entry
	cache     map[string]string
	validate  *validator.Validate
	watch     watchState
}

// NewRegistry creates a manifest registry reading from the given resource
// filesystem.
func NewRegistry(resources afero.Fs) *Registry {
	return &Registry{
		resources: resources,
		cache:     make(map[string]string),
		validate:  validator.New(),
	}
}

// SetOverrideDir points the registry at a host directory whose files shadow
// embedded resources of the same path.
func (r *Registry) SetOverrideDir(dir string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if dir == "" {
		r.overrides = nil
		return
	}
	r.overrides = afero.NewBasePathFs(afero.NewOsFs(), dir)
	r.cache = make(map[string]string)
}

// Add registers a manifest entry. Entries are validated eagerly; registering
// a second entry for the same (language, platform) pair is a configuration
// error.
func (r *Registry) Add(e Entry) error {
	if err := r.validate.Struct(e); err != nil {
		return fmt.Errorf("invalid manifest entry for language %q: %w", e.Language, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.entries {
		if existing.Language == e.Language && existing.Platform == e.Platform {
			return fmt.Errorf("manifest entry for language %q platform %q already registered", e.Language, e.Platform)
		}
	}

	r.entries = append(r.entries, e)
	slog.Debug("Registered manifest entry",
		"language", e.Language,
		"platform", e.Platform,
		"bundles", len(e.Bundles),
		"scripts", len(e.Scripts),
	)
	return nil
}

// Resolve returns the manifest for a language on a host platform. A
// platform-specific entry takes precedence over a platform-agnostic one; when
// both exist, specific resources win per logical resource (bundles keyed by
// mount point, scripts by base name) and agnostic extras are retained.
func (r *Registry) Resolve(language, platform string) (*Manifest, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var agnostic, specific *Entry
	for i := range r.entries {
		e := &r.entries[i]
		if e.Language != language {
			continue
		}
		switch e.Platform {
		case "":
			agnostic = e
		case platform:
			specific = e
		}
	}

	if agnostic == nil && specific == nil {
		return nil, &ResolutionError{Language: language, Platform: platform}
	}

	m := &Manifest{Language: language, Platform: platform}
	m.Bundles = mergeBundles(agnostic, specific)
	m.Scripts = mergeScripts(agnostic, specific)
	return m, nil
}

func mergeBundles(agnostic, specific *Entry) []Bundle {
	var out []Bundle
	overridden := make(map[string]Bundle)
	if specific != nil {
		for _, b := range specific.Bundles {
			overridden[b.MountAt] = b
		}
	}
	if agnostic != nil {
		for _, b := range agnostic.Bundles {
			if sb, ok := overridden[b.MountAt]; ok {
				out = append(out, sb)
				delete(overridden, b.MountAt)
			} else {
				out = append(out, b)
			}
		}
	}
	if specific != nil {
		for _, b := range specific.Bundles {
			if _, still := overridden[b.MountAt]; still {
				out = append(out, b)
			}
		}
	}
	return out
}

func mergeScripts(agnostic, specific *Entry) []string {
	var out []string
	overridden := make(map[string]string)
	if specific != nil {
		for _, s := range specific.Scripts {
			overridden[path.Base(s)] = s
		}
	}
	if agnostic != nil {
		for _, s := range agnostic.Scripts {
			if ss, ok := overridden[path.Base(s)]; ok {
				out = append(out, ss)
				delete(overridden, path.Base(s))
			} else {
				out = append(out, s)
			}
		}
	}
	if specific != nil {
		for _, s := range specific.Scripts {
			if _, still := overridden[path.Base(s)]; still {
				out = append(out, s)
			}
		}
	}
	return out
}

// ReadScript returns the source text of a setup script, preferring the
// override directory when one is configured. Contents are cached until an
// override change invalidates them.
func (r *Registry) ReadScript(scriptPath string) (string, error) {
	r.mu.RLock()
	if cached, ok := r.cache[scriptPath]; ok {
		r.mu.RUnlock()
		return cached, nil
	}
	overrides := r.overrides
	r.mu.RUnlock()

	var data []byte
	var err error
	if overrides != nil {
		if ok, _ := afero.Exists(overrides, scriptPath); ok {
			data, err = afero.ReadFile(overrides, scriptPath)
		}
	}
	if data == nil && err == nil {
		data, err = afero.ReadFile(r.resources, scriptPath)
	}
	if err != nil {
		return "", fmt.Errorf("failed to read setup script %s: %w", scriptPath, err)
	}

	content := string(data)
	r.mu.Lock()
	r.cache[scriptPath] = content
	r.mu.Unlock()
	return content, nil
}

// Mount copies every bundle's subtree into the target filesystem at its mount
// point. Override files shadow embedded ones per path.
func (r *Registry) Mount(target afero.Fs, m *Manifest) error {
	for _, bundle := range m.Bundles {
		if err := r.mountBundle(target, bundle); err != nil {
			return err
		}
	}
	return nil
}

func (r *Registry) mountBundle(target afero.Fs, bundle Bundle) error {
	r.mu.RLock()
	overrides := r.overrides
	r.mu.RUnlock()

	walk := func(source afero.Fs) error {
		return afero.Walk(source, bundle.Path, func(p string, info iofs.FileInfo, err error) error {
			if err != nil {
				return err
			}
			if info.IsDir() {
				return nil
			}
			rel, err := filepath.Rel(bundle.Path, p)
			if err != nil {
				return err
			}
			data, err := afero.ReadFile(source, p)
			if err != nil {
				return err
			}
			dest := path.Join(bundle.MountAt, filepath.ToSlash(rel))
			if err := target.MkdirAll(path.Dir(dest), 0o755); err != nil {
				return err
			}
			return afero.WriteFile(target, dest, data, 0o644)
		})
	}

	if err := walk(r.resources); err != nil {
		return fmt.Errorf("failed to mount bundle %s: %w", bundle.Path, err)
	}

	// Apply overrides last so they shadow embedded files.
	if overrides != nil {
		if ok, _ := afero.DirExists(overrides, bundle.Path); ok {
			if err := walk(overrides); err != nil {
				return fmt.Errorf("failed to mount bundle overrides %s: %w", bundle.Path, err)
			}
		}
	}
	return nil
}
