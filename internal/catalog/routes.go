package catalog

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
)

// RegisterRoutes mounts catalog maintenance endpoints on the given router.
// The deduplicated listing itself is served by the resolver package.
func RegisterRoutes(r chi.Router, holder *Holder) {
	r.Get("/api/catalog/status", handleStatus(holder))
	r.Post("/api/catalog/refresh", handleRefresh(holder))
}

func handleStatus(holder *Holder) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		snap := holder.Snapshot()
		writeJSON(w, http.StatusOK, map[string]any{
			"state":     snap.State,
			"version":   snap.Version,
			"count":     len(snap.Entries),
			"error":     snap.Error,
			"loaded_at": snap.LoadedAt,
		})
	}
}

func handleRefresh(holder *Holder) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := holder.Refresh(r.Context()); err != nil {
			log.Printf("catalog: refresh: %v", err)
			writeJSON(w, http.StatusBadGateway, holder.Snapshot())
			return
		}
		writeJSON(w, http.StatusOK, holder.Snapshot())
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
