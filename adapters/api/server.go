// Package api exposes reconstruction, filtering, and analysis over HTTP.
package api

import (
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"transcssr/domain/core"
	"transcssr/ports"
)

// Server is the HTTP application.
type Server struct {
	router *chi.Mux
	store  ports.MachineStore
	params core.Params
}

// Config holds server configuration.
type Config struct {
	Port   string
	Params core.Params
}

// NewServer wires the routes around a machine store.
func NewServer(cfg Config, store ports.MachineStore) *Server {
	s := &Server{
		router: chi.NewRouter(),
		store:  store,
		params: cfg.Params,
	}
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(middleware.Logger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Timeout(120 * time.Second))
}

func (s *Server) setupRoutes() {
	s.router.Route("/machines", func(r chi.Router) {
		r.Post("/", s.handleReconstruct)
		r.Get("/", s.handleList)
		r.Route("/{machineID}", func(r chi.Router) {
			r.Get("/", s.handleGetDOT)
			r.Post("/filter", s.handleFilter)
			r.Get("/measures", s.handleMeasures)
		})
	})
	s.router.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

// Handler returns the root handler for mounting or serving.
func (s *Server) Handler() http.Handler { return s.router }

// Start runs the HTTP server on the given port. Blocks until the listener
// fails.
func (s *Server) Start(port string) error {
	log.Printf("machine registry API listening on :%s", port)
	return http.ListenAndServe(":"+port, s.router)
}
