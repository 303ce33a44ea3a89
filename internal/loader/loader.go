package loader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hydroforge/hydroforge/internal/catalog"
)

// maxDocumentBytes caps a fetched document. Some bundled games inline all
// of their assets, so the limit is generous.
const maxDocumentBytes = 64 << 20

// ErrSessionClosed is returned for operations on a closed session.
var ErrSessionClosed = errors.New("session closed")

// ContentLoadError reports a failed fetch or injection. It is recoverable:
// the session stays open with an empty surface and can be refreshed.
type ContentLoadError struct {
	Entry catalog.Entry
	Err   error
}

func (e *ContentLoadError) Error() string {
	return fmt.Sprintf("failed to load %q: %v", e.Entry.Title, e.Err)
}

func (e *ContentLoadError) Unwrap() error { return e.Err }

// Status is the state of a session's embedded surface.
type Status string

const (
	StatusLoading Status = "loading"
	StatusReady   Status = "ready"
	StatusFailed  Status = "failed"
	StatusClosed  Status = "closed"
)

// Session is the embedded surface's current target. Its generation grows
// with every load attempt; a fetch only lands if its generation is still
// current when it completes.
type Session struct {
	ID       string
	Entry    catalog.Entry
	Strategy Strategy
	Surface  Sink

	mu         sync.Mutex
	generation uint64
	status     Status
	lastErr    error
}

// Generation returns the current generation.
func (s *Session) Generation() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.generation
}

// Status returns the session status and the last load error, if any.
func (s *Session) Status() (Status, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status, s.lastErr
}

// begin starts a new generation, discarding whatever is in flight.
func (s *Session) begin() (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status == StatusClosed {
		return 0, ErrSessionClosed
	}
	s.generation++
	s.status = StatusLoading
	s.lastErr = nil
	s.Surface.Clear()
	return s.generation, nil
}

// Outcome is the result of selecting an entry. Session is nil for the
// strategies that navigate away instead of embedding.
type Outcome struct {
	Strategy   Strategy
	Session    *Session
	NavigateTo string
}

// Loader selects and executes loading strategies.
type Loader struct {
	router     *Router
	client     *http.Client
	now        func() time.Time
	newSurface func() Sink
}

// New creates a Loader. A nil client gets a default with a timeout.
func New(router *Router, client *http.Client) *Loader {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &Loader{
		router:     router,
		client:     client,
		now:        time.Now,
		newSurface: func() Sink { return &Frame{} },
	}
}

// Router returns the routing table in use.
func (l *Loader) Router() *Router { return l.router }

// Load routes e and executes the chosen strategy. When injection fails the
// returned Outcome still carries the session alongside a *ContentLoadError
// so the caller can offer a retry.
func (l *Loader) Load(ctx context.Context, e catalog.Entry) (*Outcome, error) {
	out, err := l.Prepare(e)
	if err != nil || out.Session == nil {
		return out, err
	}
	return out, l.Start(ctx, out.Session)
}

// Prepare routes e and, for the embedding strategies, creates the session
// without loading anything into it. Callers that track which session is
// current register it before calling Start, so a slow load can never
// displace a newer selection.
func (l *Loader) Prepare(e catalog.Entry) (*Outcome, error) {
	strategy, err := l.router.Route(e)
	if err != nil {
		return nil, &ContentLoadError{Entry: e, Err: err}
	}

	if !strategy.CreatesSession() {
		return &Outcome{Strategy: strategy, NavigateTo: e.ContentURL}, nil
	}

	s := &Session{
		ID:       uuid.NewString(),
		Entry:    e,
		Strategy: strategy,
		Surface:  l.newSurface(),
		status:   StatusLoading,
	}
	return &Outcome{Strategy: strategy, Session: s}, nil
}

// Start runs the first load of a session created by Prepare. It returns
// ErrSessionClosed if the session was closed in the meantime.
func (l *Loader) Start(ctx context.Context, s *Session) error {
	return l.run(ctx, s)
}

// Refresh starts a new generation and re-executes the session's strategy
// against the same entry. Results still in flight for older generations
// are dropped when they arrive.
func (l *Loader) Refresh(ctx context.Context, s *Session) error {
	return l.run(ctx, s)
}

func (l *Loader) run(ctx context.Context, s *Session) error {
	gen, err := s.begin()
	if err != nil {
		return err
	}

	if s.Strategy == StrategyDirect {
		return l.apply(s, gen, func() error {
			em, ok := s.Surface.(Embedder)
			if !ok {
				return errors.New("surface cannot embed by address")
			}
			em.Embed(s.Entry.ContentURL, DirectCapabilities())
			return nil
		})
	}

	markup, fetchErr := l.fetchDocument(ctx, s.Entry.ContentURL)
	return l.apply(s, gen, func() error {
		if fetchErr != nil {
			return fetchErr
		}
		return s.Surface.Write(markup, InjectCapabilities())
	})
}

// apply runs write only if gen is still the session's generation.
func (l *Loader) apply(s *Session, gen uint64, write func() error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status == StatusClosed || gen != s.generation {
		log.Printf("loader: session %s: dropping generation %d result (current %d)", s.ID, gen, s.generation)
		return nil
	}

	if err := write(); err != nil {
		s.Surface.Clear()
		s.status = StatusFailed
		s.lastErr = &ContentLoadError{Entry: s.Entry, Err: err}
		return s.lastErr
	}
	s.status = StatusReady
	return nil
}

// Close discards the session. Fetches still in flight never land.
func (l *Loader) Close(s *Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = StatusClosed
	s.generation++
	s.Surface.Clear()
}

// Fullscreen asks the session's surface to go fullscreen. It reports false,
// without error, when the surface cannot do so.
func (l *Loader) Fullscreen(s *Session) bool {
	fs, ok := s.Surface.(Fullscreener)
	if !ok {
		return false
	}
	if st, _ := s.Status(); st == StatusClosed {
		return false
	}
	fs.RequestFullscreen()
	return true
}

// OpenInNewTab repeats the session's load against a freshly opened blank
// context instead of the embedded surface.
func (l *Loader) OpenInNewTab(ctx context.Context, s *Session) (*Tab, error) {
	if st, _ := s.Status(); st == StatusClosed {
		return nil, ErrSessionClosed
	}

	tab := &Tab{ID: uuid.NewString()}
	markup, err := l.fetchDocument(ctx, s.Entry.ContentURL)
	if err != nil {
		return nil, &ContentLoadError{Entry: s.Entry, Err: err}
	}
	if err := tab.Write(markup, InjectCapabilities()); err != nil {
		return nil, &ContentLoadError{Entry: s.Entry, Err: err}
	}
	return tab, nil
}

// fetchDocument GETs the content address with a cache buster and returns
// the body as text.
func (l *Loader) fetchDocument(ctx context.Context, contentURL string) (string, error) {
	target, err := catalog.CacheBust(contentURL, l.now())
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	resp, err := l.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetching document: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("fetching document: unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxDocumentBytes+1))
	if err != nil {
		return "", fmt.Errorf("reading document: %w", err)
	}
	if len(body) > maxDocumentBytes {
		return "", fmt.Errorf("document exceeds %d bytes", maxDocumentBytes)
	}
	return string(body), nil
}
