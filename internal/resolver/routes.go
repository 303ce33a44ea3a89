package resolver

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hydroforge/hydroforge/internal/catalog"
)

// listingResponse is the deduplicated catalog as shown in the game grid.
type listingResponse struct {
	State   catalog.State   `json:"state"`
	Error   string          `json:"error,omitempty"`
	Games   []catalog.Entry `json:"games"`
	Contact *catalog.Entry  `json:"contact,omitempty"`
}

// selectRequest identifies an entry by its source and id.
type selectRequest struct {
	Source string `json:"source"`
	ID     int    `json:"id"`
}

// RegisterRoutes mounts the listing and selection endpoints.
func RegisterRoutes(r chi.Router, ix *Index) {
	r.Get("/api/catalog", handleListing(ix))
	r.Get("/api/catalog/titles/{title}", handleTitle(ix))
	r.Post("/api/catalog/select", handleSelect(ix))
}

func handleListing(ix *Index) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		groups, snap := ix.Current()

		resp := listingResponse{
			State: snap.State,
			Error: snap.Error,
			Games: groups.Listing(),
		}
		if snap.State == catalog.StateReady {
			if c, ok := ix.Holder().Contact(); ok {
				resp.Contact = &c
			}
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func handleTitle(ix *Index) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		groups, _ := ix.Current()
		grp, ok := groups.Lookup(chi.URLParam(r, "title"))
		if !ok {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		writeJSON(w, http.StatusOK, grp)
	}
}

func handleSelect(ix *Index) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req selectRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}

		entry, ok := ix.Holder().Find(req.Source, req.ID)
		if !ok {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}

		groups, _ := ix.Current()
		writeJSON(w, http.StatusOK, groups.Resolve(entry))
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
