package server

import (
	"context"
	"log"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/watchpoint/watchpoint/internal/auth"
	"github.com/watchpoint/watchpoint/internal/database"
	"github.com/watchpoint/watchpoint/internal/ratelimit"
	"github.com/watchpoint/watchpoint/internal/view"
)

type Pinger interface {
	Ping(ctx context.Context) error
}

type Config struct {
	DB          database.DBTX
	Pinger      Pinger
	Storage     view.ObjectStorage
	GeoResolver view.GeoResolver
	JWTSecret   string
	BaseURL     string
}

type Server struct {
	router      chi.Router
	pinger      Pinger
	authHandler *auth.Handler
	viewHandler *view.Handler
}

func New(cfg Config) *Server {
	r := chi.NewRouter()
	r.Use(slogMiddleware)
	r.Use(middleware.Recoverer)

	s := &Server{router: r, pinger: cfg.Pinger}

	if cfg.DB != nil {
		jwtSecret := cfg.JWTSecret
		if jwtSecret == "" {
			log.Fatal("JWT_SECRET is required; set the environment variable")
		}

		baseURL := cfg.BaseURL
		if baseURL == "" {
			baseURL = "http://localhost:8080"
		}

		secureCookies := strings.HasPrefix(baseURL, "https://")
		s.authHandler = auth.NewHandler(cfg.DB, jwtSecret, secureCookies)
		s.viewHandler = view.NewHandler(cfg.DB, cfg.Storage, baseURL)
		if cfg.GeoResolver != nil {
			s.viewHandler.SetGeoResolver(cfg.GeoResolver)
		}
	}

	s.routes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() {
	s.router.Get("/api/health", s.handleHealth)

	if s.authHandler != nil {
		authLimiter := ratelimit.NewLimiter(0.5, 5)
		s.router.Route("/api/auth", func(r chi.Router) {
			r.Use(authLimiter.Middleware)
			r.Post("/register", s.authHandler.Register)
			r.Post("/login", s.authHandler.Login)
			r.Post("/refresh", s.authHandler.Refresh)
			r.Post("/logout", s.authHandler.Logout)
		})
	}

	if s.viewHandler != nil {
		// Progress pushes arrive every few seconds per active viewer,
		// so the session routes get a looser budget than auth.
		viewLimiter := ratelimit.NewLimiter(5, 20)
		s.router.Route("/api/videos", func(r chi.Router) {
			r.Use(viewLimiter.Middleware)
			r.Use(s.authHandler.Middleware)
			r.Get("/{id}", s.viewHandler.Watch)
			r.Route("/{id}/view", func(r chi.Router) {
				r.Post("/check", s.viewHandler.Check)
				r.Post("/start", s.viewHandler.Start)
				r.Post("/resume", s.viewHandler.Resume)
				r.Post("/update", s.viewHandler.Update)
			})
		})
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if s.pinger != nil {
		if err := s.pinger.Ping(r.Context()); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"unhealthy","error":"database unreachable"}`))
			return
		}
	}
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}
