package http

import (
	nethttp "net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/mkarpov/otpvault/internal/middleware"
)

// NewRouter constructs the HTTP handler serving the vault API.
//
// Routes:
//
//	GET    /api/secrets                    → list the collection
//	POST   /api/secrets                    → add a record
//	PUT    /api/secrets/{id}               → update a record
//	DELETE /api/secrets/{id}               → delete a record
//	GET    /api/secrets/{id}/code          → current one-time code
//	GET    /api/backups                    → page of backups
//	POST   /api/backups                    → immediate manual backup
//	GET    /api/backups/{key}              → decoded backup preview
//	POST   /api/backups/{key}/restore      → restore the collection
//	GET    /api/backups/{key}/export       → uri/json/csv export
//	DELETE /api/backups/{key}              → delete one backup
//
// Sensitive operations (every mutation, restore, export and code
// generation) go through the shared token bucket before reaching
// their handler.
func NewRouter(
	secretsHandler *SecretsHandler,
	backupsHandler *BackupsHandler,
	logger *zap.Logger,
	limiter *rate.Limiter,
) nethttp.Handler {
	r := chi.NewRouter()

	r.Use(middleware.WithRequestLogging(logger))

	r.Route("/api", func(r chi.Router) {
		r.Route("/secrets", func(r chi.Router) {
			r.Get("/", secretsHandler.List)

			r.Group(func(r chi.Router) {
				r.Use(middleware.RateLimit(limiter))
				r.Post("/", secretsHandler.Create)
				r.Put("/{id}", secretsHandler.Update)
				r.Delete("/{id}", secretsHandler.Delete)
				r.Get("/{id}/code", secretsHandler.Code)
			})
		})

		r.Route("/backups", func(r chi.Router) {
			r.Get("/", backupsHandler.List)
			r.Get("/{key}", backupsHandler.Preview)

			r.Group(func(r chi.Router) {
				r.Use(middleware.RateLimit(limiter))
				r.Post("/", backupsHandler.Create)
				r.Post("/{key}/restore", backupsHandler.Restore)
				r.Get("/{key}/export", backupsHandler.Export)
				r.Delete("/{key}", backupsHandler.Delete)
			})
		})
	})

	return r
}
