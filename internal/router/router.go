package router

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/avolov/imgd/internal/api"
	"github.com/avolov/imgd/internal/cache"
	"github.com/avolov/imgd/internal/config"
	"github.com/avolov/imgd/internal/database"
	"github.com/avolov/imgd/internal/handler"
	"github.com/avolov/imgd/internal/storage"
	"github.com/avolov/imgd/internal/transcoder"
)

// Server holds the application dependencies and HTTP router.
type Server struct {
	DB     database.Database
	Store  storage.Storage
	Config *config.Config
	Router chi.Router
}

// New creates a new Server with a fully configured chi router.
func New(db database.Database, store storage.Storage, c *cache.Cache, worker *transcoder.Worker, cfg *config.Config) *Server {
	s := &Server{DB: db, Store: store, Config: cfg}

	h := &handler.Handler{
		DB:     db,
		Store:  store,
		Cache:  c,
		Worker: worker,
		Config: cfg,
	}

	r := chi.NewRouter()

	// CORS — must be before other middleware to handle preflight OPTIONS
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		ExposedHeaders:   []string{"Content-Length", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// Health check (no auth required).
	r.Get("/health", s.Health)

	// Image delivery (no auth, like a CDN edge).
	r.Get("/images/{image_id}", h.ServeImage)

	// Computed-event stream (no auth; carries identifiers only).
	r.Get("/events", h.Events)

	r.Group(func(r chi.Router) {
		r.Use(api.AuthMiddleware(cfg.AuthToken))

		r.Post("/images", h.UploadImage)
		r.Get("/images/{image_id}/meta", h.GetImageMeta)
		r.Delete("/images/{image_id}", h.DeleteImage)
		r.Get("/stats", h.GetStats)
	})

	s.Router = r
	return s
}

// Health returns a simple health-check response.
func (s *Server) Health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]string{"status": "ok"}); err != nil {
		slog.Error("failed to encode health response", "error", err)
	}
}
