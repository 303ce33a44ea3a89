package catalog

import (
	"context"
	"sync"
	"time"

	"github.com/hydroforge/hydroforge/internal/config"
)

// State is the load state of the catalog as seen by clients.
type State string

const (
	StateLoading State = "loading"
	StateReady   State = "ready"
	StateFailed  State = "failed"
)

// Snapshot is an immutable view of the catalog at one version.
type Snapshot struct {
	State    State     `json:"state"`
	Version  uint64    `json:"version"`
	Entries  []Entry   `json:"-"`
	Error    string    `json:"error,omitempty"`
	LoadedAt time.Time `json:"loaded_at,omitzero"`
}

// Holder keeps the most recently fetched catalog in memory. Nothing is
// persisted; a restart starts from StateLoading again.
type Holder struct {
	fetcher Fetcher
	contact Entry

	mu       sync.RWMutex
	state    State
	entries  []Entry
	err      error
	loadedAt time.Time
	version  uint64
	started  uint64
}

// NewHolder creates a Holder that refreshes from fetcher. The configured
// contact card is used when no manifest supplies one.
func NewHolder(fetcher Fetcher, contact config.Contact) *Holder {
	h := &Holder{fetcher: fetcher, state: StateLoading}
	if contact.URL != "" {
		h.contact = Entry{
			ID:         ContactID,
			Title:      contact.Title,
			CoverImage: contact.Cover,
			ContentURL: contact.URL,
			Source:     "config",
		}
	}
	return h
}

// Refresh fetches a new catalog and replaces the current one. When two
// refreshes overlap only the most recently started one is applied. A failed
// refresh leaves the catalog failed and empty, never partially populated.
func (h *Holder) Refresh(ctx context.Context) error {
	h.mu.Lock()
	h.started++
	gen := h.started
	h.mu.Unlock()

	entries, err := h.fetcher.Fetch(ctx)

	h.mu.Lock()
	defer h.mu.Unlock()
	if gen != h.started {
		return err
	}

	h.version++
	if err != nil {
		h.state = StateFailed
		h.entries = nil
		h.err = err
		return err
	}
	h.state = StateReady
	h.entries = entries
	h.err = nil
	h.loadedAt = time.Now().UTC()
	return nil
}

// Snapshot returns the current catalog.
func (h *Holder) Snapshot() Snapshot {
	h.mu.RLock()
	defer h.mu.RUnlock()

	s := Snapshot{
		State:    h.state,
		Version:  h.version,
		Entries:  h.entries,
		LoadedAt: h.loadedAt,
	}
	if h.err != nil {
		s.Error = "unable to load games"
	}
	return s
}

// Find looks up an entry by source and id.
func (h *Holder) Find(source string, id int) (Entry, bool) {
	if id == ContactID {
		c, ok := h.Contact()
		return c, ok
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, e := range h.entries {
		if e.ID == id && e.Source == source {
			return e, true
		}
	}
	return Entry{}, false
}

// Contact returns the contact card: the one shipped in a manifest if any,
// otherwise the configured one.
func (h *Holder) Contact() (Entry, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, e := range h.entries {
		if e.IsContact() {
			return e, true
		}
	}
	return h.contact, h.contact.ContentURL != ""
}
