package server

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/hongminglow/kinder-admin/internal/auth"
	"github.com/hongminglow/kinder-admin/internal/config"
	"github.com/hongminglow/kinder-admin/internal/http/handlers"
	"github.com/hongminglow/kinder-admin/internal/middleware"
	"github.com/hongminglow/kinder-admin/internal/permission"
	"github.com/hongminglow/kinder-admin/internal/storage"
)

// Deps are the collaborators the HTTP layer needs.
type Deps struct {
	Store    storage.Store
	Auth     *auth.Service
	Registry *permission.Registry
	Checks   map[string]handlers.Pinger
	Logger   *zap.Logger
	// Metrics receives the HTTP collectors and backs /metrics. Nil uses the
	// process-wide defaults.
	Metrics *prometheus.Registry
}

// Server wraps an http.Server with configured routes.
type Server struct {
	inner *http.Server
}

// New wires up middleware, routes, and returns a ready server.
func New(cfg config.Config, deps Deps) (*Server, error) {
	handler, err := NewHandler(cfg, deps)
	if err != nil {
		return nil, err
	}

	httpServer := &http.Server{
		Addr:              cfg.HTTPAddress(),
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	return &Server{inner: httpServer}, nil
}

// NewHandler builds the full middleware chain. Health and metrics bypass the
// session gate; everything else goes through it.
func NewHandler(cfg config.Config, deps Deps) (http.Handler, error) {
	log := deps.Logger
	if log == nil {
		log = zap.NewNop()
	}

	app := http.NewServeMux()
	handlers.NewAuthHandler(deps.Auth, cfg.CookieSecure, log).Register(app)
	handlers.NewPostHandler(deps.Store, deps.Auth, cfg.PostsPerPage, log).Register(app)
	handlers.NewUserHandler(deps.Store, deps.Registry, deps.Auth, log).Register(app)

	root := http.NewServeMux()
	checks := deps.Checks
	if checks == nil {
		checks = map[string]handlers.Pinger{"database": deps.Store}
	}
	handlers.NewHealthHandler(time.Now(), checks, log).Register(root)

	var (
		reg      prometheus.Registerer = prometheus.DefaultRegisterer
		gatherer prometheus.Gatherer   = prometheus.DefaultGatherer
	)
	if deps.Metrics != nil {
		reg, gatherer = deps.Metrics, deps.Metrics
	}
	root.Handle("GET /metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	root.Handle("/", middleware.Session(deps.Auth, "/auth/unconfirmed", log, app))

	metrics, err := middleware.NewHTTPMetrics(middleware.HTTPMetricsOptions{
		Registerer: reg,
		Route: func(r *http.Request) string {
			if _, pattern := root.Handler(r); pattern != "/" {
				return pattern
			}
			if _, pattern := app.Handler(r); pattern != "" {
				return pattern
			}
			return "unmatched"
		},
	})
	if err != nil {
		return nil, err
	}

	var handler http.Handler = root
	handler = metrics.Handler(handler)
	handler = middleware.Logging(log, handler)
	handler = middleware.RequestID(handler)
	handler = middleware.CORS(cfg.CORSOrigins, handler)
	return handler, nil
}

// Start begins serving HTTP traffic.
func (s *Server) Start() error {
	return s.inner.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.inner.Shutdown(ctx)
}
