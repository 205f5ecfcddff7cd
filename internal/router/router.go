package router

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	hrest "warehouse-notify/internal/handler/http"
	wshandler "warehouse-notify/internal/handler/ws"
	"warehouse-notify/internal/middleware"
)

// SetupRoutes configures the HTTP routes for the notification core.
func SetupRoutes(
	r chi.Router,
	h *hrest.NotificationHandler,
	jobs *hrest.JobsHandler,
	wsHandler *wshandler.WSHandler,
	auth *middleware.Auth,
) chi.Router {
	// ---- Global Middleware ----
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"},
		AllowedHeaders: []string{
			"Accept",
			"Authorization",
			"Content-Type",
			"X-CSRF-Token",
		},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	// ============================================================
	// Notification Routes (all require user auth)
	// ============================================================
	r.Route("/api/v1/notifications", func(r chi.Router) {
		r.Use(auth.RequireUser)

		r.Get("/", h.ListNotifications)
		r.Get("/unread", h.ListUnread)
		r.Get("/unread/count", h.CountUnread)
		r.Patch("/{id}/read", h.MarkAsRead)
		r.Post("/read-all", h.MarkAllAsRead)
		r.Patch("/{id}/hide", h.HideNotification)

		r.Get("/preferences", h.GetPreferences)
		r.Post("/preferences", h.UpsertPreferences)

		// WebSocket endpoint (realtime bridge)
		r.Get("/ws", wsHandler.HandleNotifications)
	})

	// ============================================================
	// Scheduled Job Routes (worker bearer secret)
	// ============================================================
	r.Route("/api/v1/jobs", func(r chi.Router) {
		r.Use(auth.RequireWorker)

		r.Post("/process-events", jobs.ProcessEvents)
		r.Post("/process-email-queue", jobs.ProcessEmailQueue)
		r.Post("/relay-events", jobs.RelayEvents)
	})

	return r
}
