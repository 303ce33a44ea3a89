package catalog

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hydroforge/hydroforge/internal/config"
)

// manifestRecord is one raw record of a JSON manifest.
type manifestRecord struct {
	ID         int    `json:"id"`
	Name       string `json:"name"`
	Cover      string `json:"cover"`
	URL        string `json:"url"`
	Author     string `json:"author"`
	AuthorLink string `json:"authorLink"`
	Featured   bool   `json:"featured"`
}

// manifestSource reads a JSON array of records whose URL fields embed
// {COVER_URL}/{HTML_URL} style tokens.
type manifestSource struct {
	cfg      config.Source
	client   *http.Client
	now      func() time.Time
	replacer *strings.Replacer
}

func newManifestSource(cfg config.Source, client *http.Client, now func() time.Time) *manifestSource {
	return &manifestSource{
		cfg:      cfg,
		client:   client,
		now:      now,
		replacer: newReplacer(cfg.Placeholders),
	}
}

func (m *manifestSource) fetch(ctx context.Context) ([]Entry, error) {
	target, err := CacheBust(m.cfg.ManifestURL, m.now())
	if err != nil {
		return nil, err
	}

	var records []manifestRecord
	if err := getJSON(ctx, m.client, target, &records); err != nil {
		return nil, err
	}
	base, err := url.Parse(m.cfg.ManifestURL)
	if err != nil {
		return nil, fmt.Errorf("parsing manifest url: %w", err)
	}

	entries := make([]Entry, 0, len(records))
	seen := make(map[int]bool, len(records))
	for _, rec := range records {
		if seen[rec.ID] {
			return nil, fmt.Errorf("manifest %s: duplicate id %d", m.cfg.Name, rec.ID)
		}
		seen[rec.ID] = true

		entries = append(entries, Entry{
			ID:         rec.ID,
			Title:      rec.Name,
			CoverImage: resolveRef(base, m.replacer.Replace(rec.Cover)),
			ContentURL: resolveRef(base, m.replacer.Replace(rec.URL)),
			Author:     rec.Author,
			AuthorLink: rec.AuthorLink,
			Featured:   rec.Featured,
			Source:     m.cfg.Name,
		})
	}
	return entries, nil
}

// resolveRef makes a relative address absolute against the manifest it was
// read from. Absolute and unparsable addresses are returned unchanged.
func resolveRef(base *url.URL, ref string) string {
	if ref == "" {
		return ""
	}
	u, err := url.Parse(ref)
	if err != nil || u.IsAbs() {
		return ref
	}
	return base.ResolveReference(u).String()
}
