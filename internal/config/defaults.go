package config

import "time"

const (
	gnMathCoverURL = "https://cdn.jsdelivr.net/gh/gn-math/covers@main"
	gnMathHTMLURL  = "https://cdn.jsdelivr.net/gh/gn-math/html@main"
)

// DefaultSources are the manifests the portal aggregates out of the box.
var DefaultSources = []Source{
	{
		Name:        "gn-math",
		Kind:        SourceManifest,
		Primary:     true,
		ManifestURL: "https://cdn.jsdelivr.net/gh/gn-math/assets@main/zones.json",
		Placeholders: map[string]string{
			"COVER_URL": gnMathCoverURL,
			"HTML_URL":  gnMathHTMLURL,
		},
	},
	{
		Name:        "3kh0",
		Kind:        SourceGitHubDir,
		ManifestURL: "https://api.github.com/repos/3kh0/3kh0-lite/contents/projects",
		RawBase:     "https://raw.githubusercontent.com/3kh0/3kh0-lite/main/projects",
		IDOffset:    10000,
		Concurrency: 8,
	},
}

// DefaultTrustedHosts are the content hosts whose documents are injected:
// the gn-math CDN and the raw files of the 3kh0 project tree.
var DefaultTrustedHosts = []string{
	"cdn.jsdelivr.net/**",
	"raw.githubusercontent.com/3kh0/3kh0-lite/**",
}

// DefaultSessionTTL is how long an unused loader session is kept.
const DefaultSessionTTL = 2 * time.Hour

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	sources := make([]Source, len(DefaultSources))
	copy(sources, DefaultSources)

	return &Config{
		Port:         8080,
		DataDir:      ".hydroforge",
		HTTPTimeout:  15 * time.Second,
		PollInterval: 100 * time.Millisecond,
		PingInterval: 2 * time.Second,
		Sources:      sources,
		Contact: Contact{
			Title: "[!] SUGGEST GAMES .gg/D4c9VFYWyU",
			Cover: gnMathCoverURL + "/dc.png",
			URL:   "https://discord.gg/D4c9VFYWyU",
		},
		Loader: LoaderConfig{
			TrustedHosts: append([]string(nil), DefaultTrustedHosts...),
			SessionTTL:   DefaultSessionTTL,
		},
	}
}
