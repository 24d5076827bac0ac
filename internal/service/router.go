package service

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/Kale254/final/internal/auth"
	"github.com/Kale254/final/internal/events"
	"github.com/Kale254/final/internal/metrics"
	"github.com/Kale254/final/internal/middleware"
	"github.com/Kale254/final/internal/storage"
)

// Deps are the collaborators the HTTP layer needs.
type Deps struct {
	Store          storage.Store
	Authenticator  auth.Authenticator
	JWTManager     *auth.JWTManager
	Publisher      events.Publisher
	Metrics        *metrics.Collector
	Logger         *slog.Logger
	AllowedOrigins []string
}

// NewRouter wires the record store and identity endpoints.
func NewRouter(d Deps) http.Handler {
	if d.Publisher == nil {
		d.Publisher = events.Nop{}
	}

	items := NewItemService(d.Store, d.Publisher, d.Metrics, d.Logger)
	authSvc := NewAuthService(d.Authenticator, d.JWTManager, d.Store, d.Metrics, d.Logger)

	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestLogger(d.Logger))
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.Instrument(d.Metrics))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   d.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", healthCheck(d.Store))
	r.Method(http.MethodGet, "/metrics", d.Metrics.Handler())

	// Record store. Tokens are optional and only attribute requests.
	r.Group(func(r chi.Router) {
		r.Use(middleware.OptionalAuth(d.JWTManager))

		r.Get("/users/{userId}/budgetItems", items.ListByUser)
		r.Post("/users/{userId}/budgetItems", items.Create)
		r.Get("/budgetItems", items.ListAll)
		r.Get("/budgetItems/{id}", items.Get)
		r.Delete("/budgetItems/{id}", items.Delete)
	})

	// Identity provider.
	r.Route("/auth", func(r chi.Router) {
		r.Post("/signup", authSvc.Signup)
		r.Post("/login", authSvc.Login)
		r.Post("/refresh", authSvc.Refresh)

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireAuth(d.JWTManager))
			r.Get("/me", authSvc.Me)
			r.Post("/logout", authSvc.Logout)
		})
	})

	return r
}

func healthCheck(store storage.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := store.Ping(ctx); err != nil {
			writeError(w, http.StatusServiceUnavailable, "storage unavailable")
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
