package router

import (
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/redis/go-redis/v9"

	hrest "messaging-service/internal/handler/http"
	wshandler "messaging-service/internal/handler/ws"
	"messaging-service/pkg/middleware"
)

// SetupRoutes configures the HTTP routes for the messaging service.
func SetupRoutes(
	r chi.Router,
	messages *hrest.MessageHandler,
	notifications *hrest.NotificationHandler,
	wsHandler *wshandler.WSHandler,
	jwtSecret string,
	rdb *redis.Client,
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

	r.Use(middleware.Auth(jwtSecret))
	r.Use(middleware.RateLimiter(rdb, 120, time.Minute, 10*time.Minute, "messaging"))

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/messages", func(r chi.Router) {
			r.Post("/", messages.Create)
			r.Get("/", messages.LoadRange)
			r.Get("/by-ids", messages.LoadByIDs)
			r.Get("/updates", messages.LoadUpdatesSince)
			r.Patch("/{id}", messages.Edit)
			r.Delete("/{id}", messages.Delete)
			r.Put("/{id}/reactions/{symbol}", messages.SetReaction)
			r.Delete("/{id}/reactions/{symbol}", messages.UnsetReaction)
		})

		r.Route("/channels/{channelID}", func(r chi.Router) {
			r.Delete("/messages", messages.DeleteAllByCreator)
			r.Put("/watch", notifications.SetChannelWatch)
		})

		r.Route("/notifications", func(r chi.Router) {
			r.Get("/", notifications.List)
			r.Get("/unread/count", notifications.CountUnread)
			r.Patch("/{id}/read", notifications.MarkRead)
			r.Post("/read-all", notifications.MarkAllRead)
			r.Delete("/{id}", notifications.Delete)
		})

		r.Route("/push", func(r chi.Router) {
			r.Post("/subscriptions", notifications.RegisterSubscription)
			r.Delete("/subscriptions/{deviceID}", notifications.RemoveSubscription)
			r.Put("/preferences", notifications.UpsertPreference)
			r.Put("/dm", notifications.SetDMEnabled)
		})

		// WebSocket endpoint
		r.Get("/ws", wsHandler.HandleSocket)
	})
	return r
}
