package main

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/ocgrimoire/grimoire-api/internal/api"
	apiMiddleware "github.com/ocgrimoire/grimoire-api/internal/api/middleware"
	"github.com/ocgrimoire/grimoire-api/internal/media/images"
)

// maxRequestBytes caps every request body. Uploads carry a 4 MiB image plus
// the form envelope and the book JSON.
const maxRequestBytes = images.MaxUploadBytes + 1<<20

// setupRouter creates and configures the application router with all routes and middleware.
func (app *application) setupRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	// Forwarding headers are client controlled unless a proxy rewrites them,
	// and the auth rate limiter keys on the address RealIP produces.
	if app.config.Server.TrustProxy {
		r.Use(middleware.RealIP)
	}
	r.Use(apiMiddleware.Trace(app.logger))
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestSize(maxRequestBytes))

	authHandler := api.NewAuthHandler(app.userService)
	bookHandler := api.NewBookHandler(app.bookService, api.ImageURLs{
		BaseURL:      app.config.Storage.BaseURL,
		PublicPrefix: app.config.Storage.PublicPrefix,
	})
	authMiddleware := apiMiddleware.NewAuthMiddleware(app.jwtService)

	r.Route("/api", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Use(apiMiddleware.RateLimit(app.limiter, 1))
			r.Post("/signup", authHandler.Signup)
			r.Post("/login", authHandler.Login)
		})

		r.Route("/books", func(r chi.Router) {
			r.Get("/", bookHandler.List)
			r.Get("/bestrating", bookHandler.BestRated)
			r.Get("/{id}", bookHandler.Get)

			r.Group(func(r chi.Router) {
				r.Use(authMiddleware.Authenticate)
				r.Post("/", bookHandler.Create)
				r.Put("/{id}", bookHandler.Update)
				r.Delete("/{id}", bookHandler.Delete)
				r.Post("/{id}/rating", bookHandler.Rate)
			})
		})
	})

	prefix := "/" + strings.Trim(app.config.Storage.PublicPrefix, "/")
	r.Get(prefix+"/{name}", app.serveImage)

	r.Get("/health", app.writeText("OK"))
	r.Get("/", app.writeText("Server running!"))

	return r
}

func (app *application) writeText(body string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte(body)); err != nil {
			app.logger.Error("failed to write response", slog.String("error", err.Error()))
		}
	}
}
