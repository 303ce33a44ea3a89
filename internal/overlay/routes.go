package overlay

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"

	"github.com/hydroforge/hydroforge/internal/settings"
)

type handlers struct {
	ctrl    *Controller
	readout *Readout

	mu    sync.Mutex
	drags map[string]*Drag
}

// RegisterRoutes mounts the overlay API under /api/overlay.
func RegisterRoutes(r chi.Router, ctrl *Controller, readout *Readout) {
	h := &handlers{ctrl: ctrl, readout: readout, drags: make(map[string]*Drag)}

	r.Route("/api/overlay", func(r chi.Router) {
		r.Get("/", h.handleGet)
		r.Post("/reset", h.handleReset)
		r.Get("/ping", h.handlePing)
		r.Put("/crosshair/style", h.handleStyle)
		r.Put("/crosshair/rotation", h.handleRotation)
		r.Put("/{widget}/position", h.handlePosition)
		r.Post("/{widget}/nudge", h.handleNudge)
		r.Put("/{widget}/enabled", h.handleEnabled)
		r.Post("/{widget}/drag/{phase}", h.handleDrag)
	})
}

type nudgeRequest struct {
	DX int `json:"dx"`
	DY int `json:"dy"`
}

type enabledRequest struct {
	Enabled bool `json:"enabled"`
}

type styleRequest struct {
	Style Style `json:"style"`
}

type rotationRequest struct {
	Degrees json.RawMessage `json:"degrees"`
}

type dragRequest struct {
	Client string  `json:"client"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
}

type dragResponse struct {
	State    string `json:"state"`
	Position *Point `json:"position,omitempty"`
}

func (h *handlers) handleGet(w http.ResponseWriter, r *http.Request) {
	s, err := h.ctrl.Settings(r.Context())
	if err != nil {
		log.Printf("overlay: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to read overlay settings"})
		return
	}
	writeJSON(w, http.StatusOK, s)
}

func (h *handlers) handleReset(w http.ResponseWriter, r *http.Request) {
	if err := h.ctrl.Reset(r.Context()); err != nil {
		log.Printf("overlay: reset: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to reset overlay"})
		return
	}
	h.handleGet(w, r)
}

func (h *handlers) handlePing(w http.ResponseWriter, r *http.Request) {
	if client := r.URL.Query().Get("client"); client != "" {
		stats, ok := h.readout.Stats(client)
		if !ok {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "no samples"})
			return
		}
		writeJSON(w, http.StatusOK, stats)
		return
	}
	writeJSON(w, http.StatusOK, h.readout.All())
}

func (h *handlers) handleStyle(w http.ResponseWriter, r *http.Request) {
	var req styleRequest
	if !decode(w, r, &req) {
		return
	}
	h.respond(w, r, h.ctrl.SetStyle(r.Context(), req.Style))
}

func (h *handlers) handleRotation(w http.ResponseWriter, r *http.Request) {
	var req rotationRequest
	if !decode(w, r, &req) {
		return
	}
	// Passed through raw so fractional or out of range input is rejected
	// by the store rather than truncated here.
	h.respond(w, r, h.ctrl.Store().Set(r.Context(), settings.KeyCrosshairRotation, req.Degrees))
}

func (h *handlers) handlePosition(w http.ResponseWriter, r *http.Request) {
	var p Point
	if !decode(w, r, &p) {
		return
	}
	_, err := h.ctrl.SetPosition(r.Context(), Widget(chi.URLParam(r, "widget")), p)
	h.respond(w, r, err)
}

func (h *handlers) handleNudge(w http.ResponseWriter, r *http.Request) {
	var req nudgeRequest
	if !decode(w, r, &req) {
		return
	}
	_, err := h.ctrl.Nudge(r.Context(), Widget(chi.URLParam(r, "widget")), req.DX, req.DY)
	h.respond(w, r, err)
}

func (h *handlers) handleEnabled(w http.ResponseWriter, r *http.Request) {
	var req enabledRequest
	if !decode(w, r, &req) {
		return
	}
	h.respond(w, r, h.ctrl.SetEnabled(r.Context(), Widget(chi.URLParam(r, "widget")), req.Enabled))
}

func dragKey(client string, widget Widget) string {
	return client + "/" + string(widget)
}

// activeDrag returns the client's drag of widget, if one is in progress.
func (h *handlers) activeDrag(client string, widget Widget) (*Drag, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	d, ok := h.drags[dragKey(client, widget)]
	return d, ok
}

func (h *handlers) handleDrag(w http.ResponseWriter, r *http.Request) {
	widget := Widget(chi.URLParam(r, "widget"))
	if _, ok := keys[widget]; !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "unknown widget"})
		return
	}
	phase := chi.URLParam(r, "phase")
	if phase != "down" && phase != "move" && phase != "up" {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "unknown drag phase"})
		return
	}
	var req dragRequest
	if !decode(w, r, &req) {
		return
	}
	if req.Client == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "client is required"})
		return
	}
	pointer := Point{X: req.X, Y: req.Y}
	idle := dragResponse{State: Idle.String()}

	switch phase {
	case "down":
		d := h.ctrl.NewDrag(widget, DefaultGrips[widget])
		started, err := d.PointerDown(r.Context(), pointer)
		if err != nil {
			h.respond(w, r, err)
			return
		}
		if !started {
			writeJSON(w, http.StatusOK, idle)
			return
		}
		h.mu.Lock()
		h.drags[dragKey(req.Client, widget)] = d
		h.mu.Unlock()
		writeJSON(w, http.StatusOK, dragResponse{State: d.State().String()})
	case "move":
		d, ok := h.activeDrag(req.Client, widget)
		if !ok {
			writeJSON(w, http.StatusOK, idle)
			return
		}
		stored, moved, err := d.PointerMove(r.Context(), pointer)
		if err != nil {
			h.respond(w, r, err)
			return
		}
		resp := dragResponse{State: d.State().String()}
		if moved {
			resp.Position = &stored
		}
		writeJSON(w, http.StatusOK, resp)
	case "up":
		h.mu.Lock()
		d, ok := h.drags[dragKey(req.Client, widget)]
		delete(h.drags, dragKey(req.Client, widget))
		h.mu.Unlock()
		if ok {
			d.PointerUp()
		}
		writeJSON(w, http.StatusOK, idle)
	}
}

// respond maps a controller error to a status, or writes the aggregate.
func (h *handlers) respond(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case err == nil:
		h.handleGet(w, r)
	case errors.Is(err, ErrUnknownWidget):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
	case errors.Is(err, ErrNotToggleable), errors.Is(err, settings.ErrInvalidValue):
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"error": err.Error()})
	default:
		log.Printf("overlay: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to update overlay"})
	}
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
