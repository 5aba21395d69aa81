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

	r.Route("/sessions", func(r chi.Router) {
		r.Get("/", h.ListSessions)
		r.Post("/", h.CreateSession)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.GetSession)
			r.Delete("/", h.DeleteSession)
			r.Put("/mode", h.SwitchMode)
			r.Put("/shape", h.SelectShape)
			r.Post("/shape/advance", h.AdvanceShape)
			r.Post("/shape/jump", h.JumpToShape)
			r.Put("/key", h.SetKey)
			r.Post("/root", h.SetRoot)
			r.Post("/clicks", h.Click)
			r.Get("/notes/{string}/{fret}", h.GetNote)
			r.Delete("/edits", h.ResetEdits)
			r.Post("/import", h.Import)
			r.Get("/export", h.Export)
		})
	})

	r.Get("/tutorials", h.Tutorials)
	r.Get("/tutorials/*", h.GetTutorial)

	// SSE endpoint (protected by same auth middleware).
	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}
