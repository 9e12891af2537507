package server

import (
	"github.com/go-chi/chi/v5"
)

// setupRoutes configures all API routes.
func (s *Server) setupRoutes() {
	r := s.router

	// Session routes. The engine holds one active conversation, so the
	// bare /session resource addresses it.
	r.Route("/session", func(r chi.Router) {
		r.Get("/", s.getSession)
		r.Post("/", s.createSession)

		r.Get("/message", s.getMessages)
		r.Post("/message", s.sendMessage)
		r.Get("/summary", s.getSummary)

		r.Route("/{sessionID}", func(r chi.Router) {
			r.Post("/load", s.loadSession)
			r.Delete("/", s.deleteSession)
		})
	})

	// Event streaming (SSE)
	r.Get("/event", s.events)

	r.Get("/health", s.health)
}
