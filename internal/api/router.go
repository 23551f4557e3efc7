package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/quill/internal/noteservice"
)

// RouterConfig controls the middleware stack of the API router.
type RouterConfig struct {
	AuthEnabled bool
	Token       string
	// JWTSecret, if set, replaces the static token check with HS256 JWTs.
	JWTSecret []byte

	// Events, if non-nil, is mounted at GET /events inside the auth group.
	Events http.Handler

	AllowedOrigins []string
	CORSMaxAge     int

	// RPS and Burst configure the shared rate limiter. Zero RPS disables it.
	RPS   int
	Burst int
}

// NewRouter creates a chi router with all API routes mounted.
func NewRouter(svc *noteservice.Service, cfg RouterConfig) chi.Router {
	h := NewHandler(svc)

	r := chi.NewRouter()
	r.Use(CORS(cfg.AllowedOrigins, cfg.CORSMaxAge))
	if cfg.RPS > 0 {
		r.Use(RateLimit(cfg.RPS, cfg.Burst))
	}
	if len(cfg.JWTSecret) > 0 {
		r.Use(JWTMiddleware(cfg.JWTSecret))
	} else {
		r.Use(AuthMiddleware(cfg.AuthEnabled, cfg.Token))
	}

	// Notes.
	r.Get("/notes", h.ListNotes)
	r.Post("/notes", h.CreateNote)
	r.Route("/notes/{id}", func(r chi.Router) {
		r.Get("/", h.GetNote)
		r.Put("/", h.UpdateNote)
		r.Delete("/", h.DeleteNote)
		r.Post("/pin", h.TogglePin)

		r.Get("/image", h.GetImage)
		r.Put("/image", h.PutImage)
		r.Delete("/image", h.DeleteImage)
	})

	// Preferences.
	r.Get("/preferences", h.GetPreferences)
	r.Put("/preferences", h.UpdatePreferences)

	r.Post("/reload", h.Reload)

	// SSE endpoint (protected by same auth middleware).
	if cfg.Events != nil {
		r.Get("/events", cfg.Events.ServeHTTP)
	}

	return r
}
