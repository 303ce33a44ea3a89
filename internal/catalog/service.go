package catalog

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hydroforge/hydroforge/internal/config"
	"github.com/hydroforge/hydroforge/internal/progress"
)

// Fetcher produces a fresh catalog.
type Fetcher interface {
	Fetch(ctx context.Context) ([]Entry, error)
}

// Options customise a Service. Zero values pick defaults.
type Options struct {
	Client   *http.Client
	Now      func() time.Time
	Reporter progress.Reporter
}

type source interface {
	fetch(ctx context.Context) ([]Entry, error)
}

type namedSource struct {
	name    string
	primary bool
	src     source
}

// Service fetches every configured manifest and merges them in priority order.
type Service struct {
	sources []namedSource
}

// NewService creates a Service over the given sources, listed in priority order.
func NewService(sources []config.Source, opts Options) (*Service, error) {
	if opts.Client == nil {
		opts.Client = &http.Client{Timeout: 15 * time.Second}
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Reporter == nil {
		opts.Reporter = progress.Nop{}
	}

	s := &Service{}
	for _, sc := range sources {
		var src source
		switch sc.Kind {
		case config.SourceManifest:
			src = newManifestSource(sc, opts.Client, opts.Now)
		case config.SourceGitHubDir:
			src = &githubDirSource{cfg: sc, client: opts.Client, now: opts.Now, reporter: opts.Reporter}
		default:
			return nil, fmt.Errorf("source %q: unsupported kind %q", sc.Name, sc.Kind)
		}
		s.sources = append(s.sources, namedSource{name: sc.Name, primary: sc.Primary, src: src})
	}
	return s, nil
}

// Fetch loads every source concurrently and concatenates the results in
// source order. A failing primary source fails the whole catalog with a
// *FetchError; failing secondary sources are logged and omitted.
func (s *Service) Fetch(ctx context.Context) ([]Entry, error) {
	results := make([][]Entry, len(s.sources))
	errs := make([]error, len(s.sources))

	var eg errgroup.Group
	for i, ns := range s.sources {
		eg.Go(func() error {
			results[i], errs[i] = ns.src.fetch(ctx)
			return nil
		})
	}
	_ = eg.Wait()

	var merged []Entry
	for i, ns := range s.sources {
		if err := errs[i]; err != nil {
			if ns.primary {
				return nil, &FetchError{Source: ns.name, Err: err}
			}
			log.Printf("catalog: %v", &OptionalSourceError{Source: ns.name, Err: err})
			continue
		}
		merged = append(merged, results[i]...)
	}
	return merged, nil
}

// IsUnavailable reports whether err means the catalog could not be loaded.
func IsUnavailable(err error) bool {
	var fe *FetchError
	return errors.As(err, &fe)
}
