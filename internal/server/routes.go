package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	guardmw "github.com/MrEthical07/goGuard/middleware"
)

func (s *Server) registerRoutes(metrics http.Handler) {
	s.router.Get("/health", s.handleHealth)
	if metrics != nil {
		s.router.Method(http.MethodGet, "/metrics", metrics)
	}

	s.router.Route("/v1", func(r chi.Router) {
		r.Post("/check", s.handleCheck)
		r.Post("/success", s.handleSuccess)
	})

	if s.tokens == nil {
		s.logger.Warn("admin endpoints disabled (no token manager configured)")
		return
	}
	s.router.Route("/admin", func(r chi.Router) {
		r.Use(guardmw.RequireAdmin(s.tokens))
		r.Post("/reset", s.handleReset)
		r.Post("/unblock", s.handleUnblock)
		r.Get("/stats", s.handleStats)
	})
}
