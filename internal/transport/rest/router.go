// Package rest exposes quiz generation, results and health checks over HTTP.
package rest

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/p-n-ai/statquiz/internal/quiz"
	"github.com/p-n-ai/statquiz/internal/results"
)

// Generator produces quizzes.
type Generator interface {
	Generate(ctx context.Context, req quiz.Request) (*quiz.Quiz, error)
}

// Check reports whether one dependency is usable.
type Check func(ctx context.Context) error

// Config wires the router.
type Config struct {
	Quizzes Generator
	Results results.Store
	// Checks run on /readyz, keyed by dependency name.
	Checks map[string]Check
	// Play serves the live quiz WebSocket on /ws/play when set.
	Play           http.Handler
	AllowedOrigins []string
	// GenerateTimeout bounds POST /api/quiz; zero means no extra bound.
	GenerateTimeout time.Duration
}

// NewRouter builds the HTTP handler.
func NewRouter(cfg Config) http.Handler {
	h := &handler{
		quizzes:         cfg.Quizzes,
		results:         cfg.Results,
		checks:          cfg.Checks,
		generateTimeout: cfg.GenerateTimeout,
	}

	origins := cfg.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID"},
		MaxAge:         300,
	}))

	r.Get("/healthz", h.healthz)
	r.Get("/readyz", h.readyz)

	r.Route("/api", func(r chi.Router) {
		r.Post("/quiz", h.generateQuiz)
		r.Get("/results", h.listResults)
		r.Get("/results/export.xlsx", h.exportResults)
		r.Get("/results/{id}", h.getResult)
	})

	if cfg.Play != nil {
		r.Handle("/ws/play", cfg.Play)
	}
	return r
}
