package catalog

import (
	"context"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hydroforge/hydroforge/internal/config"
	"github.com/hydroforge/hydroforge/internal/progress"
)

const defaultDirConcurrency = 4

// dirItem is one element of a GitHub contents listing.
type dirItem struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// projectMetadata is the optional metadata.json inside a project directory.
type projectMetadata struct {
	Title string `json:"title"`
	Icon  string `json:"icon"`
}

// githubDirSource lists project directories of a repository and reads each
// project's metadata.json for its title and icon.
type githubDirSource struct {
	cfg      config.Source
	client   *http.Client
	now      func() time.Time
	reporter progress.Reporter
}

func (g *githubDirSource) fetch(ctx context.Context) ([]Entry, error) {
	target, err := CacheBust(g.cfg.ManifestURL, g.now())
	if err != nil {
		return nil, err
	}

	var items []dirItem
	if err := getJSON(ctx, g.client, target, &items); err != nil {
		return nil, err
	}

	var dirs []string
	for _, it := range items {
		if it.Type == "dir" {
			dirs = append(dirs, it.Name)
		}
	}

	entries := make([]Entry, len(dirs))
	limit := g.cfg.Concurrency
	if limit <= 0 {
		limit = defaultDirConcurrency
	}

	var (
		mu   sync.Mutex
		done int
	)
	g.reporter.Start(len(dirs), "Fetching "+g.cfg.Name)
	defer g.reporter.Finish()

	var eg errgroup.Group
	eg.SetLimit(limit)
	for i, name := range dirs {
		eg.Go(func() error {
			entries[i] = g.project(ctx, i, name)
			mu.Lock()
			done++
			g.reporter.Update(done, name)
			mu.Unlock()
			return nil
		})
	}
	_ = eg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}

// project builds the entry for one directory. A missing or unreadable
// metadata.json falls back to a title derived from the directory name.
func (g *githubDirSource) project(ctx context.Context, index int, name string) Entry {
	base := strings.TrimRight(g.cfg.RawBase, "/") + "/" + name

	title := strings.ReplaceAll(name, "-", " ")
	icon := "icon.png"

	var meta projectMetadata
	if err := getJSON(ctx, g.client, base+"/metadata.json", &meta); err != nil {
		log.Printf("catalog: %s/%s: no metadata, using directory name: %v", g.cfg.Name, name, err)
	} else {
		if meta.Title != "" {
			title = meta.Title
		} else {
			title = name
		}
		if meta.Icon != "" {
			icon = meta.Icon
		}
	}

	return Entry{
		ID:         g.cfg.IDOffset + index,
		Title:      title,
		CoverImage: base + "/" + icon,
		ContentURL: base + "/index.html",
		Source:     g.cfg.Name,
	}
}
