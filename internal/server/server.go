package server

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"sales-dashboard/internal/handlers"
	"sales-dashboard/internal/services"
)

type Server struct {
	dashboard    *services.Dashboard
	router       chi.Router
	logger       *slog.Logger
	pageHandlers *handlers.PageHandlers
	apiHandlers  *handlers.APIHandlers
	sseHandlers  *handlers.SSEHandlers
}

// NewServer builds the router. source backs POST /admin/reload and may be nil.
func NewServer(dashboard *services.Dashboard, source services.Source, logger *slog.Logger) *Server {
	s := &Server{
		dashboard:    dashboard,
		router:       chi.NewRouter(),
		logger:       logger,
		pageHandlers: handlers.NewPageHandlers(dashboard, logger),
		apiHandlers:  handlers.NewAPIHandlers(dashboard, source, logger),
		sseHandlers:  handlers.NewSSEHandlers(dashboard, logger),
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	r := s.router

	// Dashboard routes
	r.Get("/", s.pageHandlers.HandleDashboard)
	r.Get("/health", s.apiHandlers.HandleHealth)

	r.Route("/admin", func(r chi.Router) {
		r.Get("/stats", s.apiHandlers.HandleStats)
		r.Post("/reload", s.apiHandlers.HandleReload)
	})

	// REST API endpoints
	r.Route("/api", func(r chi.Router) {
		r.Get("/view", s.apiHandlers.HandleView)
		r.Get("/summary", s.apiHandlers.HandleSummary)
		r.Get("/regions", s.apiHandlers.HandleRegions)
		r.Get("/top-products", s.apiHandlers.HandleTopProducts)
		r.Get("/monthly-profit", s.apiHandlers.HandleMonthlyProfit)
		r.Get("/options", s.apiHandlers.HandleOptions)
	})

	// Datastar SSE endpoints. POST is accepted too since datastar sends
	// signals in the body for non-GET actions.
	r.Route("/sse", func(r chi.Router) {
		r.Get("/dashboard", s.sseHandlers.HandleDashboard)
		r.Post("/dashboard", s.sseHandlers.HandleDashboard)
		r.Get("/stream", s.sseHandlers.HandleStream)
	})
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}
