package config

import "time"

// SourceKind selects how a catalog source's manifest is read.
type SourceKind string

const (
	// SourceManifest is a JSON array of game records with placeholder tokens.
	SourceManifest SourceKind = "manifest"
	// SourceGitHubDir is a GitHub contents listing where every directory is
	// one game with an optional metadata.json.
	SourceGitHubDir SourceKind = "github-dir"
)

// Config is the top-level hydroforge configuration, corresponding to .hydroforge.yml.
type Config struct {
	Port            int           `yaml:"port" koanf:"port"`
	DataDir         string        `yaml:"data_dir" koanf:"data_dir"`
	AllowAllOrigins bool          `yaml:"allow_all_origins" koanf:"allow_all_origins"`
	HTTPTimeout     time.Duration `yaml:"http_timeout" koanf:"http_timeout"`
	PollInterval    time.Duration `yaml:"poll_interval" koanf:"poll_interval"`
	PingInterval    time.Duration `yaml:"ping_interval" koanf:"ping_interval"`
	Sources         []Source      `yaml:"sources" koanf:"sources"`
	Contact         Contact       `yaml:"contact" koanf:"contact"`
	Loader          LoaderConfig  `yaml:"loader" koanf:"loader"`
}

// Source describes one remote catalog manifest. Sources are merged in the
// order they are listed; the one marked primary must load for the catalog
// to be considered available.
type Source struct {
	Name         string            `yaml:"name" koanf:"name"`
	Kind         SourceKind        `yaml:"kind" koanf:"kind"`
	Primary      bool              `yaml:"primary" koanf:"primary"`
	ManifestURL  string            `yaml:"manifest_url" koanf:"manifest_url"`
	Placeholders map[string]string `yaml:"placeholders,omitempty" koanf:"placeholders"`
	RawBase      string            `yaml:"raw_base,omitempty" koanf:"raw_base"`
	IDOffset     int               `yaml:"id_offset,omitempty" koanf:"id_offset"`
	Concurrency  int               `yaml:"concurrency,omitempty" koanf:"concurrency"`
}

// Contact is the non-playable info card that links out instead of loading.
type Contact struct {
	Title string `yaml:"title" koanf:"title"`
	Cover string `yaml:"cover" koanf:"cover"`
	URL   string `yaml:"url" koanf:"url"`
}

// LoaderConfig holds the content loader's trust boundary and routing table.
type LoaderConfig struct {
	// TrustedHosts are doublestar patterns matched against "host/path" of
	// absolute content URLs. Matching content is fetched and injected;
	// anything else is opened as an external link.
	TrustedHosts []string      `yaml:"trusted_hosts" koanf:"trusted_hosts"`
	DirectEmbed  []DirectEmbed `yaml:"direct_embed" koanf:"direct_embed"`
	// SessionTTL is how long a session may go unused before the server
	// closes it and drops its document.
	SessionTTL   time.Duration `yaml:"session_ttl" koanf:"session_ttl"`
}

// DirectEmbed lists entries whose content is embedded by address instead of
// being fetched and re-served. An empty IDs list matches the whole source.
type DirectEmbed struct {
	Source string `yaml:"source" koanf:"source"`
	IDs    []int  `yaml:"ids" koanf:"ids"`
}
