package loader

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/hydroforge/hydroforge/internal/catalog"
	"github.com/hydroforge/hydroforge/internal/config"
)

// Strategy is how a selected entry's content reaches the user.
type Strategy string

const (
	// StrategyContact links out to the contact card's address. No session.
	StrategyContact Strategy = "contact"
	// StrategyDirect embeds the content address as-is with elevated capabilities.
	StrategyDirect Strategy = "direct"
	// StrategyExternal opens an untrusted address in a new top-level context. No session.
	StrategyExternal Strategy = "external"
	// StrategyInject fetches the document and writes it into a sandboxed surface.
	StrategyInject Strategy = "inject"
)

// CreatesSession reports whether the strategy produces a LoadSession.
func (s Strategy) CreatesSession() bool {
	return s == StrategyDirect || s == StrategyInject
}

// rule is one row of the routing table.
type rule struct {
	name     string
	match    func(catalog.Entry) bool
	strategy Strategy
}

// Router maps entries to strategies. It is a pure function of the entry and
// the configured table; the rules are consulted in order and the first
// match wins.
type Router struct {
	rules   []rule
	trusted []string
}

// NewRouter builds the routing table from configuration.
func NewRouter(cfg config.LoaderConfig) *Router {
	r := &Router{trusted: cfg.TrustedHosts}

	r.rules = append(r.rules, rule{
		name:     "contact",
		match:    catalog.Entry.IsContact,
		strategy: StrategyContact,
	})
	for _, d := range cfg.DirectEmbed {
		ids := make(map[int]bool, len(d.IDs))
		for _, id := range d.IDs {
			ids[id] = true
		}
		source := d.Source
		r.rules = append(r.rules, rule{
			name: "direct:" + source,
			match: func(e catalog.Entry) bool {
				return e.Source == source && (len(ids) == 0 || ids[e.ID])
			},
			strategy: StrategyDirect,
		})
	}
	return r
}

// Route returns the strategy for e. Addresses that cannot be loaded at all
// (relative, or a non-http scheme) are reported as errors.
func (r *Router) Route(e catalog.Entry) (Strategy, error) {
	for _, rl := range r.rules {
		if rl.match(e) {
			return rl.strategy, nil
		}
	}

	u, err := url.Parse(e.ContentURL)
	if err != nil {
		return "", fmt.Errorf("parsing content url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("content url %q is not an absolute http(s) address", e.ContentURL)
	}
	if u.Host == "" {
		return "", fmt.Errorf("content url %q has no host", e.ContentURL)
	}
	if !r.Trusted(u) {
		return StrategyExternal, nil
	}
	return StrategyInject, nil
}

// Trusted reports whether "host/path" of u matches a trusted pattern.
func (r *Router) Trusted(u *url.URL) bool {
	target := strings.ToLower(u.Host) + u.EscapedPath()
	for _, pattern := range r.trusted {
		if ok, err := doublestar.Match(pattern, target); err == nil && ok {
			return true
		}
	}
	return false
}
