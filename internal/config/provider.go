package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"sync"
)

// VersionSource reports an opaque version of the backing config document.
// An empty version means the document does not exist. The Provider reloads
// only when the version changes.
type VersionSource interface {
	Version() (string, error)
}

// FileVersion derives a version from a file's modification time and size.
type FileVersion struct {
	Path string
}

// Version implements VersionSource.
func (f FileVersion) Version() (string, error) {
	info, err := os.Stat(f.Path)
	if errors.Is(err, fs.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("stat config: %w", err)
	}
	return strconv.FormatInt(info.ModTime().UnixNano(), 10) + "-" + strconv.FormatInt(info.Size(), 10), nil
}

// Provider serves the current configuration, re-reading the file only when
// its VersionSource reports a change.
//
// Thread-safety: Provider is safe for concurrent use.
type Provider struct {
	path   string
	source VersionSource

	mu      sync.Mutex
	cached  Config
	version string
	loaded  bool
}

// ProviderOption configures a Provider.
type ProviderOption func(*Provider)

// WithVersionSource replaces the default file stat version source.
// Tests use this to drive reloads deterministically.
func WithVersionSource(s VersionSource) ProviderOption {
	return func(p *Provider) {
		p.source = s
	}
}

// NewProvider creates a Provider backed by the YAML file at path.
func NewProvider(path string, opts ...ProviderOption) *Provider {
	p := &Provider{
		path:   path,
		source: FileVersion{Path: path},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Path returns the backing file path.
func (p *Provider) Path() string {
	return p.path
}

// Current returns the configuration for the current document version.
// A missing file yields the embedded defaults. A file that exists but does
// not parse or validate yields ErrCorrupt and is not cached.
func (p *Provider) Current() (Config, error) {
	version, err := p.source.Version()
	if err != nil {
		return Config{}, fmt.Errorf("config version: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.loaded && version == p.version {
		return p.cached.clone(), nil
	}

	cfg, err := p.read(version)
	if err != nil {
		return Config{}, err
	}
	p.cached = cfg
	p.version = version
	p.loaded = true
	return cfg.clone(), nil
}

func (p *Provider) read(version string) (Config, error) {
	if version == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(p.path)
	if errors.Is(err, fs.ErrNotExist) {
		return Default(), nil
	}
	if err != nil {
		return Config{}, fmt.Errorf("read config %s: %w", p.path, err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return Config{}, fmt.Errorf("%w: %s: %w", ErrCorrupt, p.path, err)
	}
	return cfg, nil
}

// Save validates cfg, writes it atomically, and invalidates the cache so the
// next Current re-reads the file.
func (p *Provider) Save(cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	data, err := cfg.Marshal()
	if err != nil {
		return err
	}
	// Round-trip through Parse so a saved file is always loadable.
	if _, err := Parse(data); err != nil {
		return err
	}
	if err := WriteFileAtomic(p.path, data, 0o644); err != nil {
		return fmt.Errorf("save config: %w", err)
	}
	p.Invalidate()
	return nil
}

// Invalidate drops the cached configuration.
func (p *Provider) Invalidate() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.loaded = false
}
