package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	yamlv3 "gopkg.in/yaml.v3"
)

// DefaultPath is the config file looked up when --config is not given.
const DefaultPath = ".hydroforge.yml"

// Load reads configuration from the given YAML file, then overlays
// environment variable overrides (HYDROFORGE_*).
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	// Start from defaults.
	cfg := DefaultConfig()

	// Load YAML file if it exists.
	if _, err := os.Stat(path); err == nil {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("accessing config %s: %w", path, err)
	}

	// Overlay environment variables: HYDROFORGE_PORT -> port, etc.
	if err := k.Load(env.Provider("HYDROFORGE_", ".", func(s string) string {
		return strings.ToLower(strings.TrimPrefix(s, "HYDROFORGE_"))
	}), nil); err != nil {
		return nil, fmt.Errorf("loading env overrides: %w", err)
	}

	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}

	return cfg, nil
}

// Save writes the configuration to the given YAML file path.
func (c *Config) Save(path string) error {
	data, err := yamlv3.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshalling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}
	return nil
}

// DatabasePath is the SQLite file shared by every process that reads or
// writes overlay settings.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.DataDir, "hydroforge.db")
}

// validKinds is the set of recognized source kinds.
var validKinds = map[SourceKind]bool{
	SourceManifest:  true,
	SourceGitHubDir: true,
}

// Validate checks that the configuration contains valid values.
func (c *Config) Validate() error {
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}
	if c.DataDir == "" {
		return fmt.Errorf("data_dir is required")
	}
	if c.HTTPTimeout <= 0 {
		return fmt.Errorf("http_timeout must be positive")
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("poll_interval must be positive")
	}
	if c.PingInterval <= 0 {
		return fmt.Errorf("ping_interval must be positive")
	}

	if len(c.Sources) == 0 {
		return fmt.Errorf("at least one source is required")
	}
	primaries := 0
	names := make(map[string]bool, len(c.Sources))
	for i, s := range c.Sources {
		if s.Name == "" {
			return fmt.Errorf("sources[%d]: name is required", i)
		}
		if names[s.Name] {
			return fmt.Errorf("sources[%d]: duplicate name %q", i, s.Name)
		}
		names[s.Name] = true
		if !validKinds[s.Kind] {
			return fmt.Errorf("source %q: invalid kind %q: must be one of manifest, github-dir", s.Name, s.Kind)
		}
		if err := checkURL(s.ManifestURL); err != nil {
			return fmt.Errorf("source %q: manifest_url: %w", s.Name, err)
		}
		if s.Kind == SourceGitHubDir {
			if err := checkURL(s.RawBase); err != nil {
				return fmt.Errorf("source %q: raw_base: %w", s.Name, err)
			}
		}
		if s.Concurrency < 0 {
			return fmt.Errorf("source %q: concurrency must be non-negative", s.Name)
		}
		if s.Primary {
			primaries++
		}
	}
	if primaries != 1 {
		return fmt.Errorf("exactly one source must be primary, found %d", primaries)
	}

	if c.Contact.URL != "" {
		if err := checkURL(c.Contact.URL); err != nil {
			return fmt.Errorf("contact.url: %w", err)
		}
	}

	for _, pattern := range c.Loader.TrustedHosts {
		if !doublestar.ValidatePattern(pattern) {
			return fmt.Errorf("loader.trusted_hosts: invalid pattern %q", pattern)
		}
	}
	if c.Loader.SessionTTL <= 0 {
		return fmt.Errorf("loader.session_ttl must be positive")
	}
	for i, d := range c.Loader.DirectEmbed {
		if !names[d.Source] {
			return fmt.Errorf("loader.direct_embed[%d]: unknown source %q", i, d.Source)
		}
	}

	return nil
}

// checkURL requires an absolute http(s) URL.
func checkURL(raw string) error {
	if raw == "" {
		return fmt.Errorf("required")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%q is not an http(s) URL", raw)
	}
	if u.Host == "" {
		return fmt.Errorf("%q has no host", raw)
	}
	return nil
}
