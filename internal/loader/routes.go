package loader

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hydroforge/hydroforge/internal/catalog"
)

// loadRequest selects an entry for a viewer.
type loadRequest struct {
	Source string `json:"source"`
	ID     int    `json:"id"`
	Viewer string `json:"viewer"`
}

// sessionView is the client-facing description of a session.
type sessionView struct {
	ID         string        `json:"id"`
	Entry      catalog.Entry `json:"entry"`
	Strategy   Strategy      `json:"strategy"`
	Generation uint64        `json:"generation"`
	Status     Status        `json:"status"`
	Error      string        `json:"error,omitempty"`
	FrameURL   string        `json:"frame_url,omitempty"`
	Src        string        `json:"src,omitempty"`
	Sandbox    string        `json:"sandbox"`
	Allow      string        `json:"allow,omitempty"`
	Fullscreen bool          `json:"fullscreen"`
}

// outcomeView is the response to a selection.
type outcomeView struct {
	Strategy   Strategy     `json:"strategy"`
	NavigateTo string       `json:"navigate_to,omitempty"`
	Session    *sessionView `json:"session,omitempty"`
}

type handlers struct {
	loader   *Loader
	registry *Registry
	holder   *catalog.Holder
}

// RegisterRoutes mounts session endpoints and the document endpoints that
// serve injected markup under its sandbox policy.
func RegisterRoutes(r chi.Router, l *Loader, reg *Registry, holder *catalog.Holder) {
	h := &handlers{loader: l, registry: reg, holder: holder}

	r.Route("/api/sessions", func(r chi.Router) {
		r.Post("/", h.handleLoad)
		r.Get("/{id}", h.handleGet)
		r.Post("/{id}/refresh", h.handleRefresh)
		r.Post("/{id}/fullscreen", h.handleFullscreen)
		r.Post("/{id}/tab", h.handleNewTab)
		r.Delete("/{id}", h.handleClose)
	})
	r.Get("/frames/{id}", h.handleFrame)
	r.Get("/tabs/{id}", h.handleTab)
}

func (h *handlers) handleLoad(w http.ResponseWriter, r *http.Request) {
	var req loadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	entry, ok := h.holder.Find(req.Source, req.ID)
	if !ok {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}

	out, err := h.loader.Prepare(entry)
	if err != nil {
		log.Printf("loader: %v", err)
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
		return
	}

	if out.Session == nil {
		// Navigating away closes whatever the viewer had open.
		if prev := h.registry.Detach(req.Viewer); prev != nil {
			h.loader.Close(prev)
		}
		writeJSON(w, http.StatusOK, outcomeView{Strategy: out.Strategy, NavigateTo: out.NavigateTo})
		return
	}

	// The viewer switches to the new session before its content arrives; a
	// newer selection arriving during the fetch closes this one instead.
	if prev := h.registry.Attach(req.Viewer, out.Session); prev != nil {
		h.loader.Close(prev)
	}

	status := http.StatusCreated
	err = h.loader.Start(r.Context(), out.Session)
	switch {
	case errors.Is(err, ErrSessionClosed):
		status = http.StatusConflict
	case err != nil:
		log.Printf("loader: %v", err)
		status = http.StatusBadGateway
	default:
		if st, _ := out.Session.Status(); st == StatusClosed {
			status = http.StatusConflict
		}
	}
	view := viewOf(out.Session)
	writeJSON(w, status, outcomeView{Strategy: out.Strategy, Session: &view})
}

func (h *handlers) session(w http.ResponseWriter, r *http.Request) (*Session, bool) {
	s, ok := h.registry.Get(chi.URLParam(r, "id"))
	if !ok {
		http.Error(w, "not found", http.StatusNotFound)
	}
	return s, ok
}

func (h *handlers) handleGet(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, viewOf(s))
}

func (h *handlers) handleRefresh(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	if err := h.loader.Refresh(r.Context(), s); err != nil {
		log.Printf("loader: refresh %s: %v", s.ID, err)
		status := http.StatusBadGateway
		if errors.Is(err, ErrSessionClosed) {
			status = http.StatusGone
		}
		writeJSON(w, status, viewOf(s))
		return
	}
	writeJSON(w, http.StatusOK, viewOf(s))
}

func (h *handlers) handleFullscreen(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"fullscreen": h.loader.Fullscreen(s)})
}

func (h *handlers) handleNewTab(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	tab, err := h.loader.OpenInNewTab(r.Context(), s)
	if err != nil {
		log.Printf("loader: new tab %s: %v", s.ID, err)
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}
	h.registry.AddTab(s.ID, tab)
	writeJSON(w, http.StatusCreated, map[string]string{"tab_id": tab.ID, "url": "/tabs/" + tab.ID})
}

func (h *handlers) handleClose(w http.ResponseWriter, r *http.Request) {
	s := h.registry.Remove(chi.URLParam(r, "id"))
	if s == nil {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	h.loader.Close(s)
	w.WriteHeader(http.StatusNoContent)
}

func (h *handlers) handleFrame(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	frame, ok := s.Surface.(*Frame)
	if !ok {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	markup, caps, ok := frame.Contents()
	if !ok {
		http.Error(w, "no document loaded", http.StatusNotFound)
		return
	}
	serveDocument(w, markup, caps)
}

func (h *handlers) handleTab(w http.ResponseWriter, r *http.Request) {
	tab, ok := h.registry.Tab(chi.URLParam(r, "id"))
	if !ok {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	markup, caps, ok := tab.Contents()
	if !ok {
		http.Error(w, "no document loaded", http.StatusNotFound)
		return
	}
	serveDocument(w, markup, caps)
}

// serveDocument writes injected markup with its sandbox policy attached.
func serveDocument(w http.ResponseWriter, markup string, caps Capabilities) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Content-Security-Policy", caps.CSP())
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(markup))
}

func viewOf(s *Session) sessionView {
	status, err := s.Status()
	v := sessionView{
		ID:         s.ID,
		Entry:      s.Entry,
		Strategy:   s.Strategy,
		Generation: s.Generation(),
		Status:     status,
	}
	if err != nil {
		v.Error = err.Error()
	}
	if frame, ok := s.Surface.(*Frame); ok {
		caps := frame.Capabilities()
		v.Src = frame.Source()
		v.Sandbox = caps.SandboxAttr()
		v.Allow = caps.AllowAttr()
		v.Fullscreen = frame.Fullscreen()
		if s.Strategy == StrategyInject && status == StatusReady {
			v.FrameURL = "/frames/" + s.ID
		}
	}
	return v
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
