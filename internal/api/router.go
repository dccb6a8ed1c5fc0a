package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/raido/internal/relayservice"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// sseHandler, if non-nil, is mounted at GET /events inside the auth group.
func NewRouter(svc *relayservice.Service, authEnabled bool, token string, sseHandler http.Handler) chi.Router {
	h := NewHandler(svc)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	r.Get("/snapshot", h.GetSnapshot)
	r.Get("/stats", h.GetStats)

	// Metadata cache.
	r.Get("/metadata", h.GetMetadata)
	r.Delete("/metadata", h.InvalidateMetadata)
	r.Delete("/metadata/missing", h.ForgetMissing)

	// Archive.
	r.Get("/tracks", h.ListTrack)
	r.Get("/models", h.ListModelFiles)

	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}
