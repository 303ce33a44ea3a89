package loader

import (
	"context"
	"log"
	"sync"
	"time"
)

// Registry tracks live sessions for the HTTP layer. A viewer (one browser
// game viewer) has at most one session; selecting a new entry replaces it.
// Sessions nobody has looked up for a while are expired by Sweep.
type Registry struct {
	now func() time.Time

	mu        sync.Mutex
	sessions  map[string]*Session
	lastUsed  map[string]time.Time
	viewers   map[string]string
	tabs      map[string]*Tab
	tabsOwner map[string]string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		now:       time.Now,
		sessions:  make(map[string]*Session),
		lastUsed:  make(map[string]time.Time),
		viewers:   make(map[string]string),
		tabs:      make(map[string]*Tab),
		tabsOwner: make(map[string]string),
	}
}

// Attach records s as viewer's session and returns the session it replaced.
// An empty viewer only registers s.
func (r *Registry) Attach(viewer string, s *Session) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.sessions[s.ID] = s
	r.lastUsed[s.ID] = r.now()
	if viewer == "" {
		return nil
	}
	prevID, ok := r.viewers[viewer]
	r.viewers[viewer] = s.ID
	if !ok || prevID == s.ID {
		return nil
	}
	return r.removeLocked(prevID)
}

// Detach drops viewer's session, if any, and returns it.
func (r *Registry) Detach(viewer string) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	id, ok := r.viewers[viewer]
	if !ok {
		return nil
	}
	delete(r.viewers, viewer)
	return r.removeLocked(id)
}

// Get looks up a session by id and marks it as in use.
func (r *Registry) Get(id string) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if ok {
		r.lastUsed[id] = r.now()
	}
	return s, ok
}

// Remove forgets a session and the tabs opened from it.
func (r *Registry) Remove(id string) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	for v, sid := range r.viewers {
		if sid == id {
			delete(r.viewers, v)
		}
	}
	return r.removeLocked(id)
}

func (r *Registry) removeLocked(id string) *Session {
	s, ok := r.sessions[id]
	if !ok {
		return nil
	}
	delete(r.sessions, id)
	delete(r.lastUsed, id)
	for tabID, owner := range r.tabsOwner {
		if owner == id {
			delete(r.tabs, tabID)
			delete(r.tabsOwner, tabID)
		}
	}
	return s
}

// AddTab records a tab opened from session sessionID.
func (r *Registry) AddTab(sessionID string, t *Tab) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tabs[t.ID] = t
	r.tabsOwner[t.ID] = sessionID
}

// Tab looks up an opened tab. Using a tab keeps its session alive.
func (r *Registry) Tab(id string) (*Tab, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tabs[id]
	if ok {
		r.lastUsed[r.tabsOwner[id]] = r.now()
	}
	return t, ok
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Expire removes every session not used within idle and returns them.
func (r *Registry) Expire(idle time.Duration) []*Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	cutoff := r.now().Add(-idle)
	var expired []*Session
	for id, used := range r.lastUsed {
		if !used.Before(cutoff) {
			continue
		}
		for v, sid := range r.viewers {
			if sid == id {
				delete(r.viewers, v)
			}
		}
		if s := r.removeLocked(id); s != nil {
			expired = append(expired, s)
		}
	}
	return expired
}

// Sweep closes idle sessions every interval until ctx is cancelled.
func (r *Registry) Sweep(ctx context.Context, l *Loader, interval, idle time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, s := range r.Expire(idle) {
				log.Printf("loader: session %s idle for %s, closing", s.ID, idle)
				l.Close(s)
			}
		}
	}
}
