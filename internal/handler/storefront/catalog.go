package storefront

import (
	"context"
	"net/http"
	"time"

	"github.com/dukerupert/cutroom/internal/catalog"
	"github.com/dukerupert/cutroom/internal/handler"
)

// CatalogHandler serves the service and addon definitions.
type CatalogHandler struct {
	catalog catalog.Provider
}

// NewCatalogHandler creates a new catalog handler
func NewCatalogHandler(p catalog.Provider) *CatalogHandler {
	return &CatalogHandler{catalog: p}
}

// List handles GET /api/catalog
func (h *CatalogHandler) List(w http.ResponseWriter, r *http.Request) {
	snap, err := h.catalog.Snapshot(r.Context())
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}
	w.Header().Set("Cache-Control", "public, max-age=60")
	handler.WriteJSON(w, http.StatusOK, snap)
}

// Pinger is a dependency the health check can probe.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Health handles GET /health. Each named dependency is pinged with a short
// timeout; any failure reports 503.
func Health(deps map[string]Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		status := http.StatusOK
		checks := make(map[string]string, len(deps))
		for name, dep := range deps {
			if err := dep.Ping(ctx); err != nil {
				checks[name] = "down"
				status = http.StatusServiceUnavailable
				continue
			}
			checks[name] = "ok"
		}

		overall := "ok"
		if status != http.StatusOK {
			overall = "degraded"
		}
		handler.WriteJSON(w, status, map[string]any{"status": overall, "checks": checks})
	}
}
