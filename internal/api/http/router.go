package http

import (
	"net/http"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"

	"github.com/spec-kit/auction-service/internal/api/http/handlers"
	"github.com/spec-kit/auction-service/internal/auth"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Auctions       *handlers.AuctionsHandler
	Notifications  *handlers.NotificationsHandler
	Metrics        http.Handler
	AuthMiddleware *auth.AuthMiddleware
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	if cfg.Metrics != nil {
		app.Get("/metrics", adaptor.HTTPHandler(cfg.Metrics))
	}

	api := app.Group("/api/v1", cfg.AuthMiddleware.Handle)

	auctions := api.Group("/auctions")
	auctions.Post("", cfg.Auctions.CreateAuction)
	auctions.Get("", cfg.Auctions.ListAuctions)
	auctions.Get("/:id", cfg.Auctions.GetAuction)
	auctions.Put("/:id", cfg.Auctions.UpdateAuction)
	auctions.Post("/:id/bids", cfg.Auctions.PlaceBid)
	auctions.Get("/:id/bids", cfg.Auctions.ListBids)
	auctions.Post("/:id/auto-bids", cfg.Auctions.CreateAutoBid)

	api.Get("/notifications", cfg.Notifications.ListNotifications)
	api.Delete("/notifications", cfg.Notifications.ClearNotifications)
	api.Get("/statistics", cfg.Notifications.Statistics)
}
