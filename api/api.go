package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/vocdoni/consent-z-sandbox/log"
	"github.com/vocdoni/consent-z-sandbox/service"
	"github.com/vocdoni/consent-z-sandbox/state"
)

// APIConfig type represents the configuration for the API HTTP server.
type APIConfig struct {
	Host    string
	Port    int
	Service *service.VerificationService
	State   *state.State
	// EnableTestEndpoints registers the reset endpoint. Never enable it
	// in production: it wipes the accumulator and the nullifier set.
	EnableTestEndpoints bool
}

// API type represents the consent API HTTP server.
type API struct {
	router              *chi.Mux
	service             *service.VerificationService
	state               *state.State
	host                string
	port                int
	enableTestEndpoints bool
}

// New creates a new API instance with the given configuration and builds
// its router. Call Start to begin serving.
func New(conf *APIConfig) (*API, error) {
	if conf == nil {
		return nil, fmt.Errorf("missing API configuration")
	}
	if conf.Service == nil || conf.State == nil {
		return nil, fmt.Errorf("missing verification service or state instance")
	}
	a := &API{
		service:             conf.Service,
		state:               conf.State,
		host:                conf.Host,
		port:                conf.Port,
		enableTestEndpoints: conf.EnableTestEndpoints,
	}
	a.initRouter()
	return a, nil
}

// Start launches the HTTP server in the background.
func (a *API) Start() {
	go func() {
		log.Infow("starting API server", "host", a.host, "port", a.port)
		if err := http.ListenAndServe(fmt.Sprintf("%s:%d", a.host, a.port), a.router); err != nil {
			log.Fatalf("failed to start the API server: %v", err)
		}
	}()
}

// Router returns the chi router for testing purposes
func (a *API) Router() *chi.Mux {
	return a.router
}

// registerHandlers registers all the API handlers.
func (a *API) registerHandlers() {
	log.Infow("register handler", "endpoint", PingEndpoint, "method", "GET")
	a.router.Get(PingEndpoint, func(w http.ResponseWriter, r *http.Request) {
		httpWriteOK(w)
	})
	log.Infow("register handler", "endpoint", ConsentsEndpoint, "method", "POST")
	a.router.Post(ConsentsEndpoint, a.submitConsent)
	log.Infow("register handler", "endpoint", RootEndpoint, "method", "GET")
	a.router.Get(RootEndpoint, a.root)
	if a.enableTestEndpoints {
		log.Warnw("registering test-only handler", "endpoint", ResetEndpoint, "method", "POST")
		a.router.Post(ResetEndpoint, a.reset)
	}
}

// initRouter creates the router with all the routes and middleware.
func (a *API) initRouter() {
	// Create the router with a basic middleware stack
	a.router = chi.NewRouter()
	a.router.Use(cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		AllowCredentials: true,
		MaxAge:           300, // Maximum value not ignored by any of major browsers
	}).Handler)
	a.router.Use(middleware.Logger)
	a.router.Use(middleware.Recoverer)
	a.router.Use(middleware.Throttle(100))
	a.router.Use(middleware.ThrottleBacklog(5000, 40000, 60*time.Second))
	a.router.Use(middleware.Timeout(45 * time.Second))

	// Register the API handlers
	a.registerHandlers()
}
