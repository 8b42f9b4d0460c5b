package server

import "github.com/go-chi/chi/v5"

// Router exposes the chi router built by New.
func (s *Server) Router() *chi.Mux {
	return s.router
}
