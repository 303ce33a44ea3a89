package settings

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
)

// Options configures the HTTP and WebSocket surface.
type Options struct {
	// PingInterval is how often connected clients are pinged to measure
	// their round trip time.
	PingInterval time.Duration
	// Observer, if set, receives every measured round trip.
	Observer RTTObserver
}

// RegisterRoutes mounts the settings API and the /ws/settings push channel.
func RegisterRoutes(r chi.Router, store *Store, opts Options) {
	if opts.PingInterval <= 0 {
		opts.PingInterval = 2 * time.Second
	}
	h := &handlers{store: store, opts: opts}

	r.Route("/api/settings", func(r chi.Router) {
		r.Get("/", h.handleAll)
		r.Post("/reset", h.handleReset)
		r.Get("/{key}", h.handleGet)
		r.Put("/{key}", h.handlePut)
	})
	r.Get("/ws/settings", h.handleWebSocket)
}

type handlers struct {
	store *Store
	opts  Options
}

type valueResponse struct {
	Key   string `json:"key"`
	Value any    `json:"value"`
}

type resetRequest struct {
	Keys []string `json:"keys"`
}

func (h *handlers) handleAll(w http.ResponseWriter, r *http.Request) {
	all, err := h.store.All(r.Context())
	if err != nil {
		log.Printf("settings: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to read settings"})
		return
	}
	writeJSON(w, http.StatusOK, all)
}

func (h *handlers) handleGet(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	v, err := h.store.Get(r.Context(), key)
	if errors.Is(err, ErrUnknownKey) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "unknown key"})
		return
	}
	if err != nil {
		log.Printf("settings: get %s: %v", key, err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to read setting"})
		return
	}
	writeJSON(w, http.StatusOK, valueResponse{Key: key, Value: v})
}

func (h *handlers) handlePut(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	body, err := io.ReadAll(io.LimitReader(r.Body, 64<<10))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if !json.Valid(body) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "body must be a JSON value"})
		return
	}

	err = h.store.Set(r.Context(), key, json.RawMessage(body))
	switch {
	case errors.Is(err, ErrUnknownKey):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "unknown key"})
		return
	case errors.Is(err, ErrInvalidValue):
		// The previous value stays in effect; report it alongside the reason.
		current, _ := h.store.Get(r.Context(), key)
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{"error": err.Error(), "value": current})
		return
	case err != nil:
		log.Printf("settings: set %s: %v", key, err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to save setting"})
		return
	}

	v, _ := h.store.Get(r.Context(), key)
	writeJSON(w, http.StatusOK, valueResponse{Key: key, Value: v})
}

func (h *handlers) handleReset(w http.ResponseWriter, r *http.Request) {
	var req resetRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
			return
		}
	}

	err := h.store.Reset(r.Context(), req.Keys...)
	if errors.Is(err, ErrUnknownKey) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	if err != nil {
		log.Printf("settings: reset: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to reset settings"})
		return
	}
	h.handleAll(w, r)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
