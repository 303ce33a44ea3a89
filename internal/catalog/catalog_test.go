package catalog

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hydroforge/hydroforge/internal/config"
)

var fixedNow = time.Date(2026, 10, 17, 12, 0, 0, 0, time.UTC)

func clock() time.Time { return fixedNow }

const zonesJSON = `[
	{"id": -1, "name": "[!] SUGGEST GAMES", "cover": "{COVER_URL}/dc.png", "url": "https://discord.gg/example"},
	{"id": 226, "name": "Undertale", "cover": "{COVER_URL}/226.png", "url": "{HTML_URL}/226.html", "author": "Toby Fox", "authorLink": "https://tobyfox.example", "featured": true},
	{"id": 188, "name": "Friday Night Funkin'", "cover": "{COVER_URL}/188.png", "url": "{HTML_URL}/188.html"}
]`

const listingJSON = `[
	{"name": "undertale", "type": "dir"},
	{"name": "README.md", "type": "file"},
	{"name": "slope-game", "type": "dir"}
]`

// upstream fakes the manifest hosts. Handlers can be overridden per test.
type upstream struct {
	*httptest.Server
	zones      http.HandlerFunc
	listing    http.HandlerFunc
	zonesHits  atomic.Int32
	lastBuster atomic.Value
}

func newUpstream(t *testing.T) *upstream {
	t.Helper()
	u := &upstream{}
	u.zones = func(w http.ResponseWriter, r *http.Request) { w.Write([]byte(zonesJSON)) }
	u.listing = func(w http.ResponseWriter, r *http.Request) { w.Write([]byte(listingJSON)) }

	mux := http.NewServeMux()
	mux.HandleFunc("/assets/zones.json", func(w http.ResponseWriter, r *http.Request) {
		u.zonesHits.Add(1)
		u.lastBuster.Store(r.URL.Query().Get("t"))
		u.zones(w, r)
	})
	mux.HandleFunc("/api/projects", func(w http.ResponseWriter, r *http.Request) { u.listing(w, r) })
	mux.HandleFunc("/raw/undertale/metadata.json", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"title": "Undertale", "icon": "cover.jpg"}`))
	})
	mux.HandleFunc("/raw/slope-game/metadata.json", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})

	u.Server = httptest.NewServer(mux)
	t.Cleanup(u.Close)
	return u
}

func (u *upstream) sources() []config.Source {
	return []config.Source{
		{
			Name:        "gn-math",
			Kind:        config.SourceManifest,
			Primary:     true,
			ManifestURL: u.URL + "/assets/zones.json",
			Placeholders: map[string]string{
				"COVER_URL": "https://covers.example/",
				"HTML_URL":  "https://cdn.jsdelivr.net/gh/gn-math/html@main",
			},
		},
		{
			Name:        "3kh0",
			Kind:        config.SourceGitHubDir,
			ManifestURL: u.URL + "/api/projects",
			RawBase:     u.URL + "/raw",
			IDOffset:    10000,
			Concurrency: 2,
		},
	}
}

func newTestService(t *testing.T, sources []config.Source) *Service {
	t.Helper()
	svc, err := NewService(sources, Options{Now: clock})
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return svc
}

func TestFetchMergesSourcesInPriorityOrder(t *testing.T) {
	u := newUpstream(t)
	svc := newTestService(t, u.sources())

	entries, err := svc.Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}

	want := []struct {
		source string
		id     int
		title  string
	}{
		{"gn-math", -1, "[!] SUGGEST GAMES"},
		{"gn-math", 226, "Undertale"},
		{"gn-math", 188, "Friday Night Funkin'"},
		{"3kh0", 10000, "Undertale"},
		{"3kh0", 10001, "slope game"},
	}
	if len(entries) != len(want) {
		t.Fatalf("got %d entries, want %d: %+v", len(entries), len(want), entries)
	}
	for i, w := range want {
		e := entries[i]
		if e.Source != w.source || e.ID != w.id || e.Title != w.title {
			t.Errorf("entries[%d] = %s/%d %q, want %s/%d %q", i, e.Source, e.ID, e.Title, w.source, w.id, w.title)
		}
	}
}

func TestFetchSubstitutesPlaceholders(t *testing.T) {
	u := newUpstream(t)
	svc := newTestService(t, u.sources()[:1])

	entries, err := svc.Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}

	undertale := entries[1]
	if undertale.CoverImage != "https://covers.example/226.png" {
		t.Errorf("cover = %q", undertale.CoverImage)
	}
	if undertale.ContentURL != "https://cdn.jsdelivr.net/gh/gn-math/html@main/226.html" {
		t.Errorf("url = %q", undertale.ContentURL)
	}
	if undertale.Author != "Toby Fox" || !undertale.Featured {
		t.Errorf("attribution lost: %+v", undertale)
	}
	if got, want := u.lastBuster.Load(), strconv.FormatInt(fixedNow.UnixMilli(), 10); got != want {
		t.Errorf("cache buster = %v, want %s", got, want)
	}
}

func TestFetchResolvesRelativeAddresses(t *testing.T) {
	u := newUpstream(t)
	u.zones = func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[
			{"id": 1, "name": "Local", "cover": "covers/1.png", "url": "../games/1/index.html"},
			{"id": 2, "name": "Rooted", "cover": "", "url": "/play/2.html"}
		]`))
	}
	svc := newTestService(t, u.sources()[:1])

	entries, err := svc.Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if got, want := entries[0].ContentURL, u.URL+"/games/1/index.html"; got != want {
		t.Errorf("url = %q, want %q", got, want)
	}
	if got, want := entries[0].CoverImage, u.URL+"/assets/covers/1.png"; got != want {
		t.Errorf("cover = %q, want %q", got, want)
	}
	if got, want := entries[1].ContentURL, u.URL+"/play/2.html"; got != want {
		t.Errorf("url = %q, want %q", got, want)
	}
	if entries[1].CoverImage != "" {
		t.Errorf("empty cover became %q", entries[1].CoverImage)
	}
}

func TestFetchGitHubDirMetadata(t *testing.T) {
	u := newUpstream(t)
	svc := newTestService(t, u.sources()[1:])
	// A lone secondary source still loads; primary-ness is what matters for failure.
	entries, err := svc.Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("got %d entries, want 2", len(entries))
	}
	if entries[0].CoverImage != u.URL+"/raw/undertale/cover.jpg" {
		t.Errorf("metadata icon not used: %q", entries[0].CoverImage)
	}
	if entries[1].CoverImage != u.URL+"/raw/slope-game/icon.png" {
		t.Errorf("fallback icon not used: %q", entries[1].CoverImage)
	}
	if entries[1].ContentURL != u.URL+"/raw/slope-game/index.html" {
		t.Errorf("content url = %q", entries[1].ContentURL)
	}
}

func TestFetchPrimaryFailureIsTerminal(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"http error", func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "boom", http.StatusServiceUnavailable)
		}},
		{"unparsable", func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte("<html>not json</html>"))
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u := newUpstream(t)
			u.zones = tt.handler
			svc := newTestService(t, u.sources())

			entries, err := svc.Fetch(context.Background())
			if entries != nil {
				t.Errorf("expected no entries, got %d", len(entries))
			}
			var fe *FetchError
			if !errors.As(err, &fe) {
				t.Fatalf("expected *FetchError, got %v", err)
			}
			if fe.Source != "gn-math" {
				t.Errorf("Source = %q", fe.Source)
			}
			if !IsUnavailable(err) {
				t.Error("IsUnavailable should be true")
			}
		})
	}
}

func TestFetchOptionalFailureOmitsEntries(t *testing.T) {
	u := newUpstream(t)
	u.listing = func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusForbidden)
	}
	svc := newTestService(t, u.sources())

	entries, err := svc.Fetch(context.Background())
	if err != nil {
		t.Fatalf("optional failure must not fail the catalog: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("got %d entries, want only the 3 primary ones", len(entries))
	}
	for _, e := range entries {
		if e.Source != "gn-math" {
			t.Errorf("unexpected entry from %s", e.Source)
		}
	}
}

func TestFetchRejectsDuplicateIDs(t *testing.T) {
	u := newUpstream(t)
	u.zones = func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"id": 1, "name": "a", "cover": "", "url": ""}, {"id": 1, "name": "b", "cover": "", "url": ""}]`))
	}
	svc := newTestService(t, u.sources()[:1])
	if _, err := svc.Fetch(context.Background()); !IsUnavailable(err) {
		t.Errorf("expected unavailable catalog for duplicate ids, got %v", err)
	}
}

func TestCacheBust(t *testing.T) {
	got, err := CacheBust("https://cdn.example/zones.json?v=2", fixedNow)
	if err != nil {
		t.Fatalf("CacheBust: %v", err)
	}
	want := "https://cdn.example/zones.json?t=" + strconv.FormatInt(fixedNow.UnixMilli(), 10) + "&v=2"
	if got != want {
		t.Errorf("CacheBust = %q, want %q", got, want)
	}
}

func TestNewServiceRejectsUnknownKind(t *testing.T) {
	_, err := NewService([]config.Source{{Name: "x", Kind: "rss"}}, Options{})
	if err == nil {
		t.Error("expected error for unknown kind")
	}
}

// stubFetcher returns queued results, optionally blocking until released.
type stubFetcher struct {
	calls   atomic.Int32
	results []stubResult
}

type stubResult struct {
	entries []Entry
	err     error
	release chan struct{}
}

func (s *stubFetcher) Fetch(ctx context.Context) ([]Entry, error) {
	r := s.results[s.calls.Add(1)-1]
	if r.release != nil {
		<-r.release
	}
	return r.entries, r.err
}

func TestHolderStates(t *testing.T) {
	undertale := Entry{ID: 226, Title: "Undertale", Source: "gn-math"}
	f := &stubFetcher{results: []stubResult{
		{entries: []Entry{undertale}},
		{err: &FetchError{Source: "gn-math", Err: errors.New("503")}},
	}}
	h := NewHolder(f, config.Contact{})

	if got := h.Snapshot().State; got != StateLoading {
		t.Errorf("initial state = %s, want loading", got)
	}

	if err := h.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	snap := h.Snapshot()
	if snap.State != StateReady || len(snap.Entries) != 1 {
		t.Fatalf("after success: %+v", snap)
	}
	if _, ok := h.Find("gn-math", 226); !ok {
		t.Error("Find should locate the loaded entry")
	}

	if err := h.Refresh(context.Background()); err == nil {
		t.Fatal("expected refresh error")
	}
	snap = h.Snapshot()
	if snap.State != StateFailed {
		t.Errorf("state = %s, want failed", snap.State)
	}
	if len(snap.Entries) != 0 {
		t.Errorf("failed catalog must be empty, got %d entries", len(snap.Entries))
	}
	if snap.Error == "" {
		t.Error("failed catalog should carry a user-facing error")
	}
	if snap.Version != 2 {
		t.Errorf("Version = %d, want 2", snap.Version)
	}
}

func TestHolderDropsSupersededRefresh(t *testing.T) {
	slow := make(chan struct{})
	f := &stubFetcher{results: []stubResult{
		{entries: []Entry{{ID: 1, Title: "old", Source: "a"}}, release: slow},
		{entries: []Entry{{ID: 2, Title: "new", Source: "a"}}},
	}}
	h := NewHolder(f, config.Contact{})

	done := make(chan struct{})
	go func() {
		h.Refresh(context.Background())
		close(done)
	}()
	for f.calls.Load() < 1 {
		time.Sleep(time.Millisecond)
	}

	if err := h.Refresh(context.Background()); err != nil {
		t.Fatalf("second Refresh: %v", err)
	}
	close(slow)
	<-done

	snap := h.Snapshot()
	if len(snap.Entries) != 1 || snap.Entries[0].Title != "new" {
		t.Errorf("superseded refresh overwrote the catalog: %+v", snap.Entries)
	}
}

func TestHolderContactFallback(t *testing.T) {
	f := &stubFetcher{results: []stubResult{
		{entries: []Entry{{ID: 5, Title: "Game", Source: "a"}}},
		{entries: []Entry{{ID: ContactID, Title: "Manifest contact", ContentURL: "https://m.example", Source: "a"}}},
	}}
	h := NewHolder(f, config.Contact{Title: "Config contact", URL: "https://c.example"})

	h.Refresh(context.Background())
	c, ok := h.Contact()
	if !ok || c.Title != "Config contact" || !c.IsContact() {
		t.Errorf("expected configured contact, got %+v", c)
	}

	h.Refresh(context.Background())
	c, ok = h.Contact()
	if !ok || c.Title != "Manifest contact" {
		t.Errorf("expected manifest contact, got %+v", c)
	}
	if found, ok := h.Find("anything", ContactID); !ok || found.Title != "Manifest contact" {
		t.Errorf("Find(-1) = %+v, %v", found, ok)
	}
}

func TestRefreshRoute(t *testing.T) {
	f := &stubFetcher{results: []stubResult{
		{err: &FetchError{Source: "gn-math", Err: errors.New("down")}},
	}}
	h := NewHolder(f, config.Contact{})
	r := chi.NewRouter()
	RegisterRoutes(r, h)

	req := httptest.NewRequest(http.MethodPost, "/api/catalog/refresh", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusBadGateway {
		t.Errorf("expected 502, got %d", w.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/catalog/status", nil)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
}
