package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"time"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/celulas/locator/internal/admin"
	"github.com/celulas/locator/internal/auth"
	"github.com/celulas/locator/internal/domain"
	"github.com/celulas/locator/internal/suggest"
	"github.com/celulas/locator/internal/view"
)

// GroupQuerier runs the filter/sort pipeline over the current catalog.
type GroupQuerier interface {
	Query(f domain.FilterState) []domain.Group
}

// Deps are the services the HTTP surface exposes.
type Deps struct {
	Ready   []sharedobs.ReadinessChecker
	Groups  GroupQuerier
	Suggest *suggest.Service
	Views   *view.Registry
	Auth    *auth.Manager
	Admin   *admin.Service
	// AllowedOrigins lists the browser origins allowed by CORS. Empty allows any.
	AllowedOrigins []string
}

// Server exposes health, readiness, metrics and the locator API.
type Server struct {
	httpServer *http.Server
	deps       Deps
	logger     *slog.Logger
}

// NewServer creates an HTTP server with every route registered.
func NewServer(addr string, deps Deps, logger *slog.Logger) *Server {
	s := &Server{deps: deps, logger: logger}

	r := mux.NewRouter()
	r.HandleFunc("/healthz", sharedobs.LivenessHandler()).Methods(http.MethodGet)
	r.HandleFunc("/readyz", sharedobs.ReadinessHandler(allReady(deps.Ready))).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	s.registerPublic(api)
	s.registerSessions(api)
	s.registerAuth(api)

	adminRoutes := api.PathPrefix("/admin").Subrouter()
	adminRoutes.Use(s.requireAdmin)
	s.registerAdmin(adminRoutes)

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "not found")
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	})

	cors := handlers.CORS(
		handlers.AllowedOrigins(allowedOrigins(deps.AllowedOrigins)),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete}),
		handlers.AllowedHeaders([]string{"Authorization", "Content-Type"}),
	)

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      handlers.CombinedLoggingHandler(os.Stdout, handlers.RecoveryHandler()(cors(r))),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

func allowedOrigins(origins []string) []string {
	if len(origins) == 0 {
		return []string{"*"}
	}
	return origins
}

// readyChecks is ready when every check is.
type readyChecks []sharedobs.ReadinessChecker

func allReady(checks []sharedobs.ReadinessChecker) readyChecks {
	return readyChecks(checks)
}

func (c readyChecks) CheckReadiness(ctx context.Context) error {
	var errs []error
	for _, check := range c {
		if err := check.CheckReadiness(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
