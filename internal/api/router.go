package api

import (
	"fmt"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"diagview/internal/auth"
	"diagview/internal/board"
	"diagview/internal/config"
	"diagview/internal/events"
	"diagview/internal/plugins"
	"diagview/internal/sim"
	"diagview/internal/storage"
)

// Deps are the services the API serves
type Deps struct {
	Config     *config.Config
	Board      *board.Board
	Mirror     SurfaceSelector // optional, receives surface selections
	Monitor    Monitor
	Robot      *sim.Robot
	Storage    storage.Storage
	EventStore *events.Store
	Plugins    *plugins.Registry
	WSTokens   *auth.WSTokenStore
	RateLimit  *auth.LoginRateLimiter
	Logger     *log.Logger
}

// Server represents the API server
type Server struct {
	router     *chi.Mux
	deps       Deps
	jwtManager *auth.JWTManager
	authMw     *auth.Middleware
}

// NewServer creates new API server
func NewServer(deps Deps) (*Server, error) {
	jwtManager, err := auth.NewJWTManager(deps.Config.JWTSecret(), deps.Config.JWTExpiration())
	if err != nil {
		return nil, fmt.Errorf("failed to create JWT manager: %w", err)
	}
	if deps.WSTokens == nil {
		deps.WSTokens = auth.NewWSTokenStore()
	}
	if deps.RateLimit == nil {
		deps.RateLimit = auth.NewLoginRateLimiter()
	}
	if deps.EventStore == nil {
		deps.EventStore = events.NewStore(events.DefaultMaxEvents)
	}

	s := &Server{
		router:     chi.NewRouter(),
		deps:       deps,
		jwtManager: jwtManager,
		authMw:     auth.NewMiddleware(jwtManager, deps.Config.NoAuth()),
	}

	s.setupRoutes()
	return s, nil
}

// setupRoutes configures all routes
func (s *Server) setupRoutes() {
	r := s.router
	d := s.deps

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	if d.Logger != nil {
		r.Use(middleware.RequestLogger(&middleware.DefaultLogFormatter{Logger: d.Logger, NoColor: true}))
	}
	r.Use(middleware.Recoverer)

	authHandler := NewAuthHandler(auth.NewPasswordAuth(d.Config.AdminPassword()), s.jwtManager, d.WSTokens, d.EventStore, d.RateLimit)
	eventsHandler := NewEventsHandler(d.EventStore)
	surfaceHandler := NewSurfaceHandler(d.Board, d.Mirror, d.EventStore)
	diagHandler := NewDiagnosticsHandler(d.Monitor, d.Robot, d.EventStore)
	settingsHandler := NewSettingsHandler(d.Storage, d.Config, d.EventStore)
	streamHandler := NewStreamHandler(d.Board, d.WSTokens, d.Config.NoAuth())

	// Public routes
	r.Post("/api/auth/login", authHandler.Login)
	// The stream authenticates with a one-time ws_token since browsers cannot
	// set headers on the upgrade request
	r.Get("/api/stream", streamHandler.Connect)

	// Protected API routes
	r.Group(func(r chi.Router) {
		r.Use(s.authMw.RequireAuth)
		r.Use(middleware.Compress(5))

		r.Post("/api/auth/logout", authHandler.Logout)
		r.Get("/api/auth/me", authHandler.Me)
		r.Get("/api/auth/ws-token", authHandler.WSToken)

		r.Get("/api/events", eventsHandler.List)

		r.Get("/api/surfaces", surfaceHandler.List)
		r.Get("/api/surfaces/active", surfaceHandler.Active)
		r.Get("/api/surfaces/{id}", surfaceHandler.Get)
		r.Post("/api/surfaces/{id}/select", surfaceHandler.Select)

		r.Get("/api/health", diagHandler.Health)
		r.Get("/api/catalog", diagHandler.Catalog)
		r.Get("/api/settings", settingsHandler.Get)

		var pluginHandler *PluginHandler
		if d.Plugins != nil {
			pluginHandler = NewPluginHandler(d.Plugins, d.EventStore)
			r.Get("/api/plugins", pluginHandler.List)
			r.Get("/api/plugins/{name}", pluginHandler.Get)
		}

		// Changes
		r.Group(func(r chi.Router) {
			r.Use(s.authMw.RequireAdmin)
			r.Put("/api/settings", settingsHandler.Put)
			if d.Robot != nil {
				r.Post("/api/devices/{name}/faults", diagHandler.InjectFaults)
			}
			if pluginHandler != nil {
				r.Put("/api/plugins/{name}/enabled", pluginHandler.SetEnabled)
			}
		})

		s.registerPluginRoutes(r)
	})
}

// registerPluginRoutes registers routes of the active plugins
func (s *Server) registerPluginRoutes(r chi.Router) {
	if s.deps.Plugins == nil {
		return
	}

	for _, route := range s.deps.Plugins.Routes() {
		var handler http.Handler = route.Handler
		if route.RequireAdmin {
			handler = s.authMw.RequireAdmin(handler)
		}

		switch route.Method {
		case http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
			r.Method(route.Method, route.Path, handler)
		default:
			log.Printf("Unknown HTTP method for plugin route: %s %s", route.Method, route.Path)
			continue
		}

		log.Printf("Registered plugin route: %s %s (admin=%v)", route.Method, route.Path, route.RequireAdmin)
	}
}

// Router returns the chi router
func (s *Server) Router() *chi.Mux {
	return s.router
}
