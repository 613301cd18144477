package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RouterConfig contains the dependencies of the HTTP router.
//
//	router := api.NewRouter(api.RouterConfig{Engine: engine, Registry: reg})
//	ts := httptest.NewServer(router)
type RouterConfig struct {
	// Engine holds the baked field (required).
	Engine *Engine

	// Registry is served on /metrics. Nil disables the endpoint.
	Registry *prometheus.Registry

	// RateLimiter guards POST /field/rebuild. If nil, one is created from
	// RateLimitConfig, or DefaultRateLimitConfig when that is nil too.
	RateLimiter     *ClientRateLimiter
	RateLimitConfig *RateLimitConfig

	// Events receives rebuild notifications. If nil, a hub with
	// MaxEventClients slots is created.
	Events *EventHub

	// CORSOrigins defaults to localhost origins.
	CORSOrigins []string

	// DisableLogging drops the request logger middleware.
	DisableLogging bool
}

type routerHandlers struct {
	engine *Engine
	events *EventHub
}

// NewRouter constructs the router. It starts no goroutines and opens no
// listeners.
func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	if !cfg.DisableLogging {
		r.Use(middleware.Logger)
	}
	r.Use(middleware.Recoverer)

	corsOrigins := cfg.CORSOrigins
	if corsOrigins == nil {
		corsOrigins = []string{"http://localhost:*", "http://127.0.0.1:*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: corsOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"*"},
	}))

	limiter := cfg.RateLimiter
	if limiter == nil {
		rlCfg := DefaultRateLimitConfig
		if cfg.RateLimitConfig != nil {
			rlCfg = *cfg.RateLimitConfig
		}
		limiter = NewClientRateLimiter(rlCfg)
	}

	events := cfg.Events
	if events == nil {
		events = NewEventHub(MaxEventClients)
	}

	h := &routerHandlers{engine: cfg.Engine, events: events}

	r.Get("/health", h.handleHealth)
	r.Get("/field.png", h.handleRaster)
	r.Route("/field", func(r chi.Router) {
		r.Get("/quiver.png", h.handleQuiver)
		r.Get("/stats", h.handleStats)
		r.Get("/sample", h.handleSample)
		r.Get("/events", h.handleEvents)
		r.With(limiter.Middleware).Post("/rebuild", h.handleRebuild)
	})

	if cfg.Registry != nil {
		r.Handle("/metrics", promhttp.HandlerFor(cfg.Registry, promhttp.HandlerOpts{}))
	}

	return r
}

// Serve runs the router on addr until the server fails.
func Serve(addr string, cfg RouterConfig) error {
	srv := &http.Server{Addr: addr, Handler: NewRouter(cfg)}
	return srv.ListenAndServe()
}
