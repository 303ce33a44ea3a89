package loader

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hydroforge/hydroforge/internal/catalog"
	"github.com/hydroforge/hydroforge/internal/config"
	"github.com/hydroforge/hydroforge/internal/resolver"
)

// contentHost serves numbered documents. Requests listed in block wait for
// their channel to be closed before answering; started is signalled when a
// blocked request arrives.
type contentHost struct {
	*httptest.Server
	hits    atomic.Int32
	mu      sync.Mutex
	block   map[int32]chan struct{}
	started chan int32
	fail    atomic.Bool
}

func newContentHost(t *testing.T) *contentHost {
	t.Helper()
	h := &contentHost{block: make(map[int32]chan struct{}), started: make(chan int32, 8)}
	h.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := h.hits.Add(1)
		if r.URL.Query().Get("t") == "" {
			http.Error(w, "missing cache buster", http.StatusBadRequest)
			return
		}
		h.mu.Lock()
		ch := h.block[n]
		h.mu.Unlock()
		if ch != nil {
			h.started <- n
			<-ch
		}
		if h.fail.Load() {
			http.Error(w, "gone", http.StatusInternalServerError)
			return
		}
		fmt.Fprintf(w, "<html><body>doc-%d</body></html>", n)
	}))
	t.Cleanup(h.Close)
	return h
}

func (h *contentHost) blockRequest(n int32) chan struct{} {
	ch := make(chan struct{})
	h.mu.Lock()
	h.block[n] = ch
	h.mu.Unlock()
	return ch
}

func (h *contentHost) trustedPattern() string {
	u, _ := url.Parse(h.URL)
	return strings.ToLower(u.Host) + "/**"
}

func (h *contentHost) entry(id int, title string) catalog.Entry {
	return catalog.Entry{ID: id, Title: title, ContentURL: fmt.Sprintf("%s/%d.html", h.URL, id), Source: "gn-math"}
}

func newTestLoader(h *contentHost, direct ...config.DirectEmbed) *Loader {
	return New(NewRouter(config.LoaderConfig{
		TrustedHosts: []string{h.trustedPattern()},
		DirectEmbed:  direct,
	}), h.Client())
}

func frameMarkup(t *testing.T, s *Session) string {
	t.Helper()
	f, ok := s.Surface.(*Frame)
	if !ok {
		t.Fatalf("surface is %T, want *Frame", s.Surface)
	}
	markup, _, _ := f.Contents()
	return markup
}

func TestRouterStrategies(t *testing.T) {
	r := NewRouter(config.LoaderConfig{
		TrustedHosts: []string{"cdn.jsdelivr.net/**"},
		DirectEmbed:  []config.DirectEmbed{{Source: "gn-math", IDs: []int{42}}, {Source: "videos"}},
	})

	tests := []struct {
		name  string
		entry catalog.Entry
		want  Strategy
	}{
		{"contact", catalog.Entry{ID: -1, ContentURL: "https://discord.gg/x", Source: "gn-math"}, StrategyContact},
		{"direct by id", catalog.Entry{ID: 42, ContentURL: "https://cdn.jsdelivr.net/gh/a/42.html", Source: "gn-math"}, StrategyDirect},
		{"direct by source", catalog.Entry{ID: 7, ContentURL: "https://video.example/7", Source: "videos"}, StrategyDirect},
		{"trusted inject", catalog.Entry{ID: 1, ContentURL: "https://cdn.jsdelivr.net/gh/a/1.html", Source: "gn-math"}, StrategyInject},
		{"host case", catalog.Entry{ID: 1, ContentURL: "https://CDN.jsdelivr.net/gh/a/1.html", Source: "gn-math"}, StrategyInject},
		{"untrusted", catalog.Entry{ID: 2, ContentURL: "https://raw.githubusercontent.com/3kh0/x/index.html", Source: "3kh0"}, StrategyExternal},
		{"lookalike host", catalog.Entry{ID: 3, ContentURL: "https://cdn.jsdelivr.net.evil.example/a.html", Source: "gn-math"}, StrategyExternal},
		{"trusted host in path", catalog.Entry{ID: 4, ContentURL: "https://evil.example/cdn.jsdelivr.net/a.html", Source: "gn-math"}, StrategyExternal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := r.Route(tt.entry)
			if err != nil {
				t.Fatalf("Route: %v", err)
			}
			if got != tt.want {
				t.Errorf("Route = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestRouterRejectsUnloadableAddresses(t *testing.T) {
	r := NewRouter(config.LoaderConfig{TrustedHosts: []string{"cdn.jsdelivr.net/**"}})
	for _, raw := range []string{"javascript:alert(1)", "/relative/game.html", "file:///etc/passwd", "https:///nohost"} {
		if _, err := r.Route(catalog.Entry{ID: 1, ContentURL: raw}); err == nil {
			t.Errorf("Route(%q) succeeded, want error", raw)
		}
	}
}

func TestCapabilitySets(t *testing.T) {
	inject := InjectCapabilities()
	for _, tok := range []string{"allow-scripts", "allow-same-origin", "allow-forms", "allow-popups", "allow-modals", "allow-pointer-lock"} {
		if !inject.Has(tok) {
			t.Errorf("inject set missing %s", tok)
		}
	}
	for _, tok := range inject.Sandbox {
		if strings.HasPrefix(tok, "allow-top-navigation") {
			t.Errorf("inject set grants %s", tok)
		}
	}
	if len(inject.Allow) != 0 {
		t.Errorf("inject allow = %v, want none", inject.Allow)
	}

	direct := DirectCapabilities()
	if !direct.Has("allow-top-navigation-by-user-activation") {
		t.Error("direct set missing top navigation on user activation")
	}
	if got := direct.AllowAttr(); got != "autoplay; fullscreen" {
		t.Errorf("direct allow = %q", got)
	}
	if got := inject.CSP(); got != "sandbox "+strings.Join(injectSandbox, " ") {
		t.Errorf("CSP = %q", got)
	}

	// Callers get copies.
	inject.Sandbox[0] = "allow-top-navigation"
	if InjectCapabilities().Has("allow-top-navigation") {
		t.Error("mutating a returned set changed the shared allow-list")
	}
}

func TestLoadInject(t *testing.T) {
	h := newContentHost(t)
	l := newTestLoader(h)

	out, err := l.Load(context.Background(), h.entry(226, "Undertale"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if out.Strategy != StrategyInject || out.Session == nil {
		t.Fatalf("outcome = %+v, want inject session", out)
	}
	s := out.Session
	if st, _ := s.Status(); st != StatusReady {
		t.Errorf("status = %s, want ready", st)
	}
	if s.Generation() != 1 {
		t.Errorf("generation = %d, want 1", s.Generation())
	}
	if got := frameMarkup(t, s); got != "<html><body>doc-1</body></html>" {
		t.Errorf("markup = %q", got)
	}
	_, caps, _ := s.Surface.(*Frame).Contents()
	if caps.Has("allow-top-navigation-by-user-activation") {
		t.Error("injected document may navigate its parent")
	}
}

func TestLoadDirect(t *testing.T) {
	h := newContentHost(t)
	l := newTestLoader(h, config.DirectEmbed{Source: "gn-math", IDs: []int{42}})

	e := h.entry(42, "Movie Night")
	out, err := l.Load(context.Background(), e)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if out.Strategy != StrategyDirect {
		t.Fatalf("strategy = %s, want direct", out.Strategy)
	}
	if h.hits.Load() != 0 {
		t.Errorf("direct embed fetched content %d times", h.hits.Load())
	}
	f := out.Session.Surface.(*Frame)
	if f.Source() != e.ContentURL {
		t.Errorf("src = %q, want %q", f.Source(), e.ContentURL)
	}
	if !f.Capabilities().Has("allow-top-navigation-by-user-activation") {
		t.Error("direct embed missing elevated capabilities")
	}
	if _, _, ok := f.Contents(); ok {
		t.Error("direct embed reported injected markup")
	}
}

func TestLoadNavigatesWithoutSession(t *testing.T) {
	h := newContentHost(t)
	l := newTestLoader(h)

	contact := catalog.Entry{ID: catalog.ContactID, Title: "Contact", ContentURL: "https://discord.gg/example"}
	out, err := l.Load(context.Background(), contact)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if out.Strategy != StrategyContact || out.Session != nil || out.NavigateTo != contact.ContentURL {
		t.Errorf("contact outcome = %+v", out)
	}

	ext := catalog.Entry{ID: 10001, ContentURL: "https://raw.githubusercontent.com/3kh0/slope/index.html", Source: "3kh0"}
	out, err = l.Load(context.Background(), ext)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if out.Strategy != StrategyExternal || out.Session != nil || out.NavigateTo != ext.ContentURL {
		t.Errorf("external outcome = %+v", out)
	}
	if h.hits.Load() != 0 {
		t.Errorf("navigation fetched content %d times", h.hits.Load())
	}
}

func TestLoadFailureIsRecoverable(t *testing.T) {
	h := newContentHost(t)
	l := newTestLoader(h)
	h.fail.Store(true)

	out, err := l.Load(context.Background(), h.entry(226, "Undertale"))
	var cle *ContentLoadError
	if !errors.As(err, &cle) {
		t.Fatalf("Load error = %v, want *ContentLoadError", err)
	}
	if out == nil || out.Session == nil {
		t.Fatal("failed load did not keep its session")
	}
	s := out.Session
	if st, lastErr := s.Status(); st != StatusFailed || lastErr == nil {
		t.Errorf("status = %s, %v; want failed with error", st, lastErr)
	}
	if _, _, ok := s.Surface.(*Frame).Contents(); ok {
		t.Error("failed load left content on the surface")
	}

	h.fail.Store(false)
	if err := l.Refresh(context.Background(), s); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if st, lastErr := s.Status(); st != StatusReady || lastErr != nil {
		t.Errorf("after retry status = %s, %v", st, lastErr)
	}
	if got := frameMarkup(t, s); !strings.Contains(got, "doc-2") {
		t.Errorf("markup = %q, want doc-2", got)
	}
}

func TestStaleRefreshIsDropped(t *testing.T) {
	h := newContentHost(t)
	l := newTestLoader(h)

	out, err := l.Load(context.Background(), h.entry(226, "Undertale"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	s := out.Session

	release := h.blockRequest(2)
	done := make(chan error, 1)
	go func() { done <- l.Refresh(context.Background(), s) }()
	<-h.started

	// A newer refresh completes while generation 2 is still in flight.
	if err := l.Refresh(context.Background(), s); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if s.Generation() != 3 {
		t.Fatalf("generation = %d, want 3", s.Generation())
	}

	close(release)
	if err := <-done; err != nil {
		t.Fatalf("stale Refresh: %v", err)
	}
	if got := frameMarkup(t, s); !strings.Contains(got, "doc-3") {
		t.Errorf("markup = %q, stale result overwrote doc-3", got)
	}
	if st, _ := s.Status(); st != StatusReady {
		t.Errorf("status = %s, want ready", st)
	}
}

func TestGenerationMonotonic(t *testing.T) {
	h := newContentHost(t)
	l := newTestLoader(h)

	out, err := l.Load(context.Background(), h.entry(1, "One"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	s := out.Session
	prev := s.Generation()
	for i := 0; i < 5; i++ {
		if err := l.Refresh(context.Background(), s); err != nil {
			t.Fatalf("Refresh: %v", err)
		}
		if g := s.Generation(); g <= prev {
			t.Fatalf("generation %d after %d", g, prev)
		}
		prev = s.Generation()
	}
}

func TestCloseDropsInFlight(t *testing.T) {
	h := newContentHost(t)
	l := newTestLoader(h)

	out, err := l.Load(context.Background(), h.entry(226, "Undertale"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	s := out.Session

	release := h.blockRequest(2)
	done := make(chan error, 1)
	go func() { done <- l.Refresh(context.Background(), s) }()
	<-h.started

	l.Close(s)
	close(release)
	if err := <-done; err != nil {
		t.Fatalf("in-flight Refresh: %v", err)
	}
	if _, _, ok := s.Surface.(*Frame).Contents(); ok {
		t.Error("closed session received content")
	}
	if st, _ := s.Status(); st != StatusClosed {
		t.Errorf("status = %s, want closed", st)
	}
	if err := l.Refresh(context.Background(), s); !errors.Is(err, ErrSessionClosed) {
		t.Errorf("Refresh after close = %v, want ErrSessionClosed", err)
	}
	if _, err := l.OpenInNewTab(context.Background(), s); !errors.Is(err, ErrSessionClosed) {
		t.Errorf("OpenInNewTab after close = %v, want ErrSessionClosed", err)
	}
}

// plainSink accepts markup but has no fullscreen or embed support.
type plainSink struct{ markup string }

func (p *plainSink) Write(markup string, _ Capabilities) error { p.markup = markup; return nil }
func (p *plainSink) Clear()                                    { p.markup = "" }

func TestFullscreen(t *testing.T) {
	h := newContentHost(t)
	l := newTestLoader(h, config.DirectEmbed{Source: "gn-math", IDs: []int{42}})

	out, err := l.Load(context.Background(), h.entry(1, "One"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !l.Fullscreen(out.Session) {
		t.Error("Fullscreen on a frame = false")
	}
	if !out.Session.Surface.(*Frame).Fullscreen() {
		t.Error("frame not marked fullscreen")
	}

	l.newSurface = func() Sink { return &plainSink{} }
	out, err = l.Load(context.Background(), h.entry(2, "Two"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if l.Fullscreen(out.Session) {
		t.Error("Fullscreen on an unsupported surface = true, want no-op")
	}
	if got := out.Session.Surface.(*plainSink).markup; !strings.Contains(got, "doc-") {
		t.Errorf("plain sink markup = %q", got)
	}

	// Direct embeds need a surface that can take an address.
	out, err = l.Load(context.Background(), h.entry(42, "Direct"))
	var cle *ContentLoadError
	if !errors.As(err, &cle) {
		t.Errorf("direct embed into plain sink = %v, want *ContentLoadError", err)
	}
	if st, _ := out.Session.Status(); st != StatusFailed {
		t.Errorf("status = %s, want failed", st)
	}
}

func TestOpenInNewTab(t *testing.T) {
	h := newContentHost(t)
	l := newTestLoader(h)

	out, err := l.Load(context.Background(), h.entry(226, "Undertale"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	tab, err := l.OpenInNewTab(context.Background(), out.Session)
	if err != nil {
		t.Fatalf("OpenInNewTab: %v", err)
	}
	markup, caps, ok := tab.Contents()
	if !ok || !strings.Contains(markup, "doc-2") {
		t.Errorf("tab contents = %q, %v", markup, ok)
	}
	if caps.Has("allow-top-navigation-by-user-activation") {
		t.Error("tab document may navigate")
	}
	if out.Session.Generation() != 1 {
		t.Errorf("new tab changed the session generation to %d", out.Session.Generation())
	}
	if got := frameMarkup(t, out.Session); !strings.Contains(got, "doc-1") {
		t.Errorf("new tab touched the embedded surface: %q", got)
	}
}

func TestRegistryViewerReplacement(t *testing.T) {
	reg := NewRegistry()
	a := &Session{ID: "a"}
	b := &Session{ID: "b"}

	if prev := reg.Attach("viewer", a); prev != nil {
		t.Errorf("first attach replaced %v", prev.ID)
	}
	reg.AddTab("a", &Tab{ID: "tab-a"})
	if prev := reg.Attach("viewer", b); prev != a {
		t.Errorf("second attach replaced %v, want a", prev)
	}
	if _, ok := reg.Get("a"); ok {
		t.Error("replaced session still registered")
	}
	if _, ok := reg.Tab("tab-a"); ok {
		t.Error("tab of replaced session still registered")
	}
	if prev := reg.Detach("viewer"); prev != b {
		t.Errorf("Detach = %v, want b", prev)
	}
	if reg.Len() != 0 {
		t.Errorf("Len = %d, want 0", reg.Len())
	}
}

// fetcherFunc adapts a function to catalog.Fetcher.
type fetcherFunc func(ctx context.Context) ([]catalog.Entry, error)

func (f fetcherFunc) Fetch(ctx context.Context) ([]catalog.Entry, error) { return f(ctx) }

func setupRoutes(t *testing.T, h *contentHost) (*chi.Mux, *Registry) {
	t.Helper()
	entries := []catalog.Entry{h.entry(226, "Undertale"), h.entry(188, "Friday Night Funkin'")}
	holder := catalog.NewHolder(fetcherFunc(func(context.Context) ([]catalog.Entry, error) {
		return entries, nil
	}), config.Contact{Title: "Contact", URL: "https://discord.gg/example"})
	if err := holder.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh: %v", err)
	}

	reg := NewRegistry()
	r := chi.NewRouter()
	RegisterRoutes(r, newTestLoader(h), reg, holder)
	return r, reg
}

func do(t *testing.T, r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestSessionRoutes(t *testing.T) {
	h := newContentHost(t)
	r, reg := setupRoutes(t, h)

	w := do(t, r, http.MethodPost, "/api/sessions", `{"source":"gn-math","id":226,"viewer":"v1"}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("load status = %d: %s", w.Code, w.Body.String())
	}
	var out outcomeView
	if err := json.NewDecoder(w.Body).Decode(&out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.Session == nil || out.Session.Status != StatusReady || out.Session.FrameURL == "" {
		t.Fatalf("session view = %+v", out.Session)
	}
	id := out.Session.ID

	w = do(t, r, http.MethodGet, out.Session.FrameURL, "")
	if w.Code != http.StatusOK {
		t.Fatalf("frame status = %d", w.Code)
	}
	csp := w.Header().Get("Content-Security-Policy")
	if !strings.HasPrefix(csp, "sandbox ") || strings.Contains(csp, "allow-top-navigation") {
		t.Errorf("frame CSP = %q", csp)
	}
	if !strings.Contains(w.Body.String(), "doc-1") {
		t.Errorf("frame body = %q", w.Body.String())
	}

	w = do(t, r, http.MethodPost, "/api/sessions/"+id+"/refresh", "")
	var view sessionView
	json.NewDecoder(w.Body).Decode(&view)
	if w.Code != http.StatusOK || view.Generation != 2 {
		t.Errorf("refresh = %d generation %d", w.Code, view.Generation)
	}

	w = do(t, r, http.MethodPost, "/api/sessions/"+id+"/fullscreen", "")
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "true") {
		t.Errorf("fullscreen = %d %s", w.Code, w.Body.String())
	}

	w = do(t, r, http.MethodPost, "/api/sessions/"+id+"/tab", "")
	if w.Code != http.StatusCreated {
		t.Fatalf("tab status = %d", w.Code)
	}
	var tab map[string]string
	json.NewDecoder(w.Body).Decode(&tab)
	w = do(t, r, http.MethodGet, tab["url"], "")
	if w.Code != http.StatusOK || w.Header().Get("Content-Security-Policy") == "" {
		t.Errorf("tab document = %d, csp %q", w.Code, w.Header().Get("Content-Security-Policy"))
	}

	w = do(t, r, http.MethodDelete, "/api/sessions/"+id, "")
	if w.Code != http.StatusNoContent {
		t.Errorf("close status = %d", w.Code)
	}
	if reg.Len() != 0 {
		t.Errorf("registry has %d sessions after close", reg.Len())
	}
	if w := do(t, r, http.MethodGet, "/api/sessions/"+id, ""); w.Code != http.StatusNotFound {
		t.Errorf("get closed session = %d", w.Code)
	}
	if w := do(t, r, http.MethodGet, tab["url"], ""); w.Code != http.StatusNotFound {
		t.Errorf("tab of closed session = %d", w.Code)
	}
}

func TestSelectContactClosesViewer(t *testing.T) {
	h := newContentHost(t)
	r, reg := setupRoutes(t, h)

	w := do(t, r, http.MethodPost, "/api/sessions", `{"source":"gn-math","id":226,"viewer":"v1"}`)
	var first outcomeView
	json.NewDecoder(w.Body).Decode(&first)
	s, ok := reg.Get(first.Session.ID)
	if !ok {
		t.Fatal("session not registered")
	}

	hits := h.hits.Load()
	w = do(t, r, http.MethodPost, "/api/sessions", `{"source":"gn-math","id":-1,"viewer":"v1"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("contact status = %d", w.Code)
	}
	var out outcomeView
	json.NewDecoder(w.Body).Decode(&out)
	if out.Strategy != StrategyContact || out.Session != nil || out.NavigateTo != "https://discord.gg/example" {
		t.Errorf("contact outcome = %+v", out)
	}
	if reg.Len() != 0 {
		t.Errorf("registry has %d sessions, want 0", reg.Len())
	}
	if st, _ := s.Status(); st != StatusClosed {
		t.Errorf("previous session status = %s, want closed", st)
	}
	if h.hits.Load() != hits {
		t.Error("contact selection fetched content")
	}
}

func TestLoadRouteFailure(t *testing.T) {
	h := newContentHost(t)
	r, _ := setupRoutes(t, h)
	h.fail.Store(true)

	w := do(t, r, http.MethodPost, "/api/sessions", `{"source":"gn-math","id":188}`)
	if w.Code != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502", w.Code)
	}
	var out outcomeView
	json.NewDecoder(w.Body).Decode(&out)
	if out.Session == nil || out.Session.Status != StatusFailed || out.Session.Error == "" {
		t.Errorf("session view = %+v", out.Session)
	}

	if w := do(t, r, http.MethodPost, "/api/sessions", `{"source":"gn-math","id":999}`); w.Code != http.StatusNotFound {
		t.Errorf("unknown entry = %d, want 404", w.Code)
	}
	if w := do(t, r, http.MethodPost, "/api/sessions", `not json`); w.Code != http.StatusBadRequest {
		t.Errorf("bad body = %d, want 400", w.Code)
	}
}

// hostRewriter sends every request to target, keeping path and query, so
// entries with real content addresses can be loaded in tests.
type hostRewriter struct {
	target *url.URL
	next   http.RoundTripper
}

func (h hostRewriter) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	req.URL.Scheme = h.target.Scheme
	req.URL.Host = h.target.Host
	req.Host = h.target.Host
	return h.next.RoundTrip(req)
}

func TestEitherDuplicateStartsSessionWithDefaults(t *testing.T) {
	h := newContentHost(t)
	target, _ := url.Parse(h.URL)
	client := &http.Client{Transport: hostRewriter{target: target, next: h.Client().Transport}}
	l := New(NewRouter(config.DefaultConfig().Loader), client)

	entries := []catalog.Entry{
		{ID: 226, Title: "Undertale", ContentURL: "https://cdn.jsdelivr.net/gh/gn-math/html@main/226.html", Source: "gn-math"},
		{ID: 188, Title: "Friday Night Funkin'", ContentURL: "https://cdn.jsdelivr.net/gh/gn-math/html@main/188.html", Source: "gn-math"},
		{ID: 10042, Title: "undertale ", ContentURL: "https://raw.githubusercontent.com/3kh0/3kh0-lite/main/projects/undertale/index.html", Source: "3kh0"},
	}
	res := resolver.GroupByTitle(entries).Resolve(entries[0])
	if !res.Ambiguous || len(res.Choices) != 2 {
		t.Fatalf("resolution = %+v, want a choice between two", res)
	}

	for _, choice := range res.Choices {
		out, err := l.Load(context.Background(), choice)
		if err != nil {
			t.Fatalf("Load %s: %v", choice.Key(), err)
		}
		if out.Strategy != StrategyInject || out.Session == nil {
			t.Fatalf("Load %s = %s, session %v", choice.Key(), out.Strategy, out.Session)
		}
		if out.Session.Entry.ContentURL != choice.ContentURL {
			t.Errorf("session loads %q, want %q", out.Session.Entry.ContentURL, choice.ContentURL)
		}
		if st, _ := out.Session.Status(); st != StatusReady {
			t.Errorf("%s status = %s", choice.Key(), st)
		}
	}
}

func TestNewerSelectionWinsOverSlowerOlder(t *testing.T) {
	h := newContentHost(t)
	r, reg := setupRoutes(t, h)
	release := h.blockRequest(1)

	type result struct {
		code int
		out  outcomeView
	}
	older := make(chan result, 1)
	go func() {
		req := httptest.NewRequest(http.MethodPost, "/api/sessions", strings.NewReader(`{"source":"gn-math","id":226,"viewer":"v1"}`))
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		var out outcomeView
		json.NewDecoder(w.Body).Decode(&out)
		older <- result{w.Code, out}
	}()
	<-h.started

	w := do(t, r, http.MethodPost, "/api/sessions", `{"source":"gn-math","id":188,"viewer":"v1"}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("newer selection = %d: %s", w.Code, w.Body.String())
	}
	var newer outcomeView
	json.NewDecoder(w.Body).Decode(&newer)

	close(release)
	old := <-older
	if old.code != http.StatusConflict {
		t.Errorf("older selection status = %d, want 409", old.code)
	}
	if old.out.Session == nil || old.out.Session.Status != StatusClosed {
		t.Errorf("older session view = %+v", old.out.Session)
	}

	if _, ok := reg.Get(old.out.Session.ID); ok {
		t.Error("older selection is still registered")
	}
	s, ok := reg.Get(newer.Session.ID)
	if !ok {
		t.Fatal("newer selection was displaced")
	}
	if st, _ := s.Status(); st != StatusReady {
		t.Errorf("newer session status = %s", st)
	}
	if got := frameMarkup(t, s); !strings.Contains(got, "doc-2") {
		t.Errorf("newer frame = %q, want doc-2", got)
	}
	if reg.Len() != 1 {
		t.Errorf("registry has %d sessions, want 1", reg.Len())
	}
}

func TestRegistryExpiresIdleSessions(t *testing.T) {
	reg := NewRegistry()
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	reg.now = func() time.Time { return now }

	idle := &Session{ID: "idle"}
	used := &Session{ID: "used"}
	reg.Attach("", idle)
	reg.Attach("viewer", used)
	reg.AddTab("idle", &Tab{ID: "tab-idle"})

	now = now.Add(20 * time.Minute)
	reg.Get("used")
	now = now.Add(20 * time.Minute)

	expired := reg.Expire(30 * time.Minute)
	if len(expired) != 1 || expired[0] != idle {
		t.Fatalf("expired = %v, want only the idle session", expired)
	}
	if _, ok := reg.Tab("tab-idle"); ok {
		t.Error("tab of expired session still registered")
	}
	if _, ok := reg.Get("used"); !ok {
		t.Error("recently used session expired")
	}

	now = now.Add(time.Hour)
	if expired := reg.Expire(30 * time.Minute); len(expired) != 1 || expired[0] != used {
		t.Fatalf("expired = %v, want the used session", expired)
	}
	if prev := reg.Detach("viewer"); prev != nil {
		t.Error("viewer still points at an expired session")
	}
}
