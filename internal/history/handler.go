// Package history exposes the recorded deployment runs over HTTP. The API
// is read-only: runs are created by the CLI, never through this surface.
package history

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/dockhand/dockhand/internal/api"
	"github.com/dockhand/dockhand/internal/store"
)

// Handler handles HTTP requests for the run history.
type Handler struct {
	Store  store.Store
	Logger *slog.Logger
}

// NewHandler creates a new history handler.
func NewHandler(s store.Store, logger *slog.Logger) *Handler {
	return &Handler{Store: s, Logger: logger}
}

// Router builds the full route tree for the history server.
func (h *Handler) Router() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", h.Healthz)
	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/deployments", func(r chi.Router) {
			r.Get("/", h.ListDeployments)
			r.Get("/{id}", h.GetDeployment)
		})
	})

	return r
}

// ListDeployments handles GET /api/v1/deployments
func (h *Handler) ListDeployments(w http.ResponseWriter, r *http.Request) {
	records, err := h.Store.ListDeployments(r.Context())
	if err != nil {
		h.Logger.Error("Failed to list deployments", "error", err)
		http.Error(w, "failed to list deployments", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(api.Response{
		Data: records,
	})
}

// GetDeployment handles GET /api/v1/deployments/{id}
func (h *Handler) GetDeployment(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	record, err := h.Store.GetDeployment(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			http.Error(w, "deployment not found", http.StatusNotFound)
			return
		}
		h.Logger.Error("Failed to load deployment", "id", id, "error", err)
		http.Error(w, "failed to load deployment", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(api.Response{
		Data: record,
	})
}

// Healthz handles GET /healthz
func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(api.Response{
		Message: "ok",
	})
}
