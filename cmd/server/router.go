package main

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/bizscan/bizscan-api/internal/api"
	apiMiddleware "github.com/bizscan/bizscan-api/internal/api/middleware"
	"github.com/bizscan/bizscan-api/internal/queue"
	"github.com/bizscan/bizscan-api/internal/service/auth"
)

// statsCategories fixes the category order of the quota section in the admin
// stats response.
var statsCategories = []queue.TaskCategory{
	queue.CategoryGammaPDF,
	queue.CategoryGammaPPTX,
	queue.CategoryOFDataCompany,
	queue.CategoryOFDataPerson,
}

// setupRouter creates and configures the application router with all routes
// and middleware. Task endpoints require a service JWT; the stats endpoint is
// mounted only when an admin key hash is configured.
func (app *application) setupRouter() http.Handler {
	r := chi.NewRouter()

	// Apply standard middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(apiMiddleware.TraceMiddleware)

	taskHandler := api.NewTaskHandler(app.queue, app.eventStore)
	authMiddleware := apiMiddleware.NewAuthMiddleware(app.jwtService)

	r.Route("/api", func(r chi.Router) {
		// Task endpoints (service token required)
		r.Group(func(r chi.Router) {
			r.Use(authMiddleware.Authenticate)
			r.Post("/tasks", taskHandler.SubmitTask)
			r.Get("/tasks/{id}", taskHandler.GetTask)
			r.Delete("/tasks/{id}", taskHandler.CancelTask)
		})

		// Admin endpoints (X-Admin-Key required). Without a configured
		// hash there is no valid key, so the routes are not mounted at all.
		if app.config.Auth.AdminKeyHash != "" {
			statsHandler := api.NewStatsHandler(app.eventStore, app.queue, statsCategories)
			adminMiddleware := apiMiddleware.NewAdminMiddleware(
				auth.NewBcryptVerifier(),
				app.config.Auth.AdminKeyHash,
			)
			r.Group(func(r chi.Router) {
				r.Use(adminMiddleware.RequireAdminKey)
				r.Get("/stats", statsHandler.GetStats)
			})
		}
	})

	// Health check endpoint
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("OK")); err != nil {
			app.logger.Error("Failed to write health check response", "error", err)
		}
	})

	return r
}
