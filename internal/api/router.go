package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// sseHandler, if non-nil, is mounted at GET /events inside the auth group.
func NewRouter(h *Handler, authEnabled bool, token string, sseHandler http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	// CEC engine surface.
	r.Get("/cec/targets", h.GetTargets)
	r.Post("/cec/command", h.ExecuteCommand)
	r.Put("/cec/override", h.SetOverride)

	// Scenes.
	r.Get("/scenes", h.ListScenes)
	r.Post("/scenes", h.CreateScene)
	r.Post("/scenes/deactivate", h.DeactivateScene)
	r.Get("/scenes/{id}", h.GetScene)
	r.Delete("/scenes/{id}", h.DeleteScene)
	r.Get("/scenes/{id}/cec-config", h.GetSceneCecConfig)
	r.Put("/scenes/{id}/cec-config", h.UpdateSceneCecConfig)
	r.Post("/scenes/{id}/cec-config/auto-resolve", h.AutoResolveCecConfig)
	r.Post("/scenes/{id}/activate", h.ActivateScene)

	// State ingestion from the unit poller / webhook proxy.
	r.Get("/state", h.GetState)
	r.Put("/state/routing", h.UpdateRouting)
	r.Put("/state/outputs", h.UpdateOutputs)
	r.Put("/state/inputs", h.UpdateInputs)

	// SSE endpoint (protected by same auth middleware).
	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}
