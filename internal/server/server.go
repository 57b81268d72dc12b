package server

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/coursetrack/coursetrack/internal/auth"
	"github.com/coursetrack/coursetrack/internal/database"
	"github.com/coursetrack/coursetrack/internal/docs"
	"github.com/coursetrack/coursetrack/internal/httputil"
	"github.com/coursetrack/coursetrack/internal/ratelimit"
	"github.com/coursetrack/coursetrack/internal/tracker"
	"github.com/coursetrack/coursetrack/internal/validate"
	"github.com/coursetrack/coursetrack/internal/webhook"
)

type Pinger interface {
	Ping(ctx context.Context) error
}

type Config struct {
	DB             database.DBTX
	Pinger         Pinger
	JWTSecret      string
	BaseURL        string
	MetricsEnabled bool
	APIDocsEnabled bool
	RateLimitRPS   float64
	RateLimitBurst int
	WebhookURL     string
	WebhookSecret  string
}

type Server struct {
	router         chi.Router
	pinger         Pinger
	authHandler    *auth.Handler
	trackerHandler *tracker.Handler
	limiter        *ratelimit.Limiter
	webhooks       *webhook.Client
	docs           *docs.Handler
	metricsEnabled bool
}

func New(cfg Config) *Server {
	r := chi.NewRouter()
	r.Use(httputil.RequestID)
	r.Use(slogMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(securityHeaders(SecurityConfig{BaseURL: cfg.BaseURL}))

	s := &Server{
		router:         r,
		pinger:         cfg.Pinger,
		metricsEnabled: cfg.MetricsEnabled,
	}
	if cfg.APIDocsEnabled {
		s.docs = docs.New(cfg.BaseURL)
	}

	if cfg.DB != nil {
		rps, burst := cfg.RateLimitRPS, cfg.RateLimitBurst
		if rps <= 0 {
			rps = 5
		}
		if burst <= 0 {
			burst = 20
		}
		s.authHandler = auth.NewHandler(cfg.DB, cfg.JWTSecret)
		s.trackerHandler = tracker.NewHandler(cfg.DB)
		if cfg.WebhookURL != "" {
			s.webhooks = webhook.New(cfg.DB, webhook.Config{URL: cfg.WebhookURL, Secret: cfg.WebhookSecret})
			s.trackerHandler.WithEvents(s.webhooks)
		}
		s.limiter = ratelimit.NewLimiter(rps, burst).WithKeyFunc(ratelimit.ByUser(auth.UserIDFromContext))
	}

	s.routes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Limiter returns the API rate limiter so the caller can run its cleanup
// loop. It is nil when no database is configured.
func (s *Server) Limiter() *ratelimit.Limiter {
	return s.limiter
}

// Drain waits for background webhook deliveries to finish.
func (s *Server) Drain() {
	if s.webhooks != nil {
		s.webhooks.Wait()
	}
}

func (s *Server) routes() {
	s.router.Get("/api/health", s.handleHealth)
	s.router.Get("/api/limits", handleLimits)

	if s.metricsEnabled {
		s.router.Handle("/metrics", promhttp.Handler())
	}

	if s.docs != nil {
		s.docs.Mount(s.router)
	}

	if s.trackerHandler == nil {
		return
	}

	h := s.trackerHandler
	s.router.Group(func(r chi.Router) {
		r.Use(s.authHandler.Middleware)
		r.Use(s.limiter.Middleware)

		r.Route("/api/progress", func(r chi.Router) {
			r.Post("/video/{videoId}", h.UpsertVideoProgress)
			r.Get("/video/{videoId}", h.GetVideoProgress)
			r.Post("/chapter/{chapterId}", h.CompleteChapter)
			r.Get("/chapters", h.CompletedChapters)
			r.Get("/streak", h.Streak)
		})

		r.Post("/api/bookmarks", h.CreateBookmark)
		r.Delete("/api/bookmarks/{videoId}", h.DeleteBookmark)

		r.Route("/api/notes", func(r chi.Router) {
			r.Get("/", h.ListNotes)
			r.Post("/", h.CreateNote)
			r.Patch("/{id}", h.UpdateNote)
			r.Delete("/{id}", h.DeleteNote)
		})

		r.Get("/api/videos/{videoId}/chapters", h.ListChapters)
	})
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

func handleLimits(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, validate.FieldLimits())
}
