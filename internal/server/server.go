// Package server hosts the application's HTTP surface: the routed app
// pages with their guards, the JSON API the pages consume, and the
// metrics endpoint.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/FahimFBA/crowdcredit/internal/api/tabledata"
	"github.com/FahimFBA/crowdcredit/internal/api/userauth"
	"github.com/FahimFBA/crowdcredit/internal/logging"
	"github.com/FahimFBA/crowdcredit/internal/metrics"
	"github.com/FahimFBA/crowdcredit/internal/middleware"
	"github.com/FahimFBA/crowdcredit/internal/store"
)

const (
	loginPath   = "/login"
	profilePath = "/profile"
)

// Options configure the server.
type Options struct {
	Addr           string
	AllowedOrigins []string
	RateLimitRPS   float64
	RateLimitBurst int
	Logger         *logging.Logger
}

// Server ties the router to the endpoint services and the store.
type Server struct {
	http    *http.Server
	router  *mux.Router
	log     *logging.Logger
	store   *store.Store
	auth    *userauth.Service
	tables  *tabledata.Service
	metrics *metrics.Metrics
}

// New builds the router with all routes and middleware attached.
func New(opts Options, st *store.Store, auth *userauth.Service, tables *tabledata.Service, m *metrics.Metrics) *Server {
	log := opts.Logger
	if log == nil {
		log = logging.New("server")
	}

	s := &Server{
		router:  mux.NewRouter(),
		log:     log,
		store:   st,
		auth:    auth,
		tables:  tables,
		metrics: m,
	}

	rps := opts.RateLimitRPS
	if rps <= 0 {
		rps = 50
	}
	burst := opts.RateLimitBurst
	if burst <= 0 {
		burst = 100
	}

	s.router.Use(middleware.Logging(log))
	s.router.Use(middleware.Metrics(m))
	s.router.Use(middleware.CORS(opts.AllowedOrigins))
	s.router.Use(middleware.NewRateLimiter(rps, burst).Middleware)

	s.registerPages()
	s.registerAPI()
	s.router.Handle("/metrics", m.Handler()).Methods(http.MethodGet)

	s.http = &http.Server{
		Addr:         opts.Addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves until the listener fails or Shutdown is called.
func (s *Server) Start() error {
	s.log.WithField("addr", s.http.Addr).Info("http server listening")
	if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}
