package http

import (
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/midnight-markets/backend/internal/config"
	"github.com/midnight-markets/backend/internal/http/handlers"
	"github.com/midnight-markets/backend/internal/middleware"
)

func SetupRouter(
	app *fiber.App,
	cfg *config.Config,
	log *zap.Logger,
	rdb *redis.Client,
	authHandler *handlers.AuthHandler,
	contractHandler *handlers.ContractHandler,
	marketHandler *handlers.MarketHandler,
	offerHandler *handlers.OfferHandler,
	nameHandler *handlers.NameHandler,
	wsHub *handlers.WSHub,
) {
	// Global middleware
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization, X-Request-ID",
	}))
	app.Use(middleware.RequestIDMiddleware())
	app.Use(middleware.LoggerMiddleware(log))

	// Health check
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	api := app.Group("/api/v1")

	// Auth (public)
	api.Post("/auth/session", authHandler.CreateSession)

	// Anonymous routes are limited per IP
	if rdb != nil {
		api.Use(middleware.RateLimitMiddleware(rdb, 100, time.Minute))
	}

	// Name pricing preview (public, read-only)
	api.Get("/names/preview", nameHandler.Preview)

	// Contract state (public, read-only)
	api.Get("/contract/state", contractHandler.State)

	// Protected endpoints, limited per authenticated identity
	protected := api.Group("", middleware.AuthMiddleware(cfg, log))
	if rdb != nil {
		protected.Use(middleware.RateLimitMiddleware(rdb, 300, time.Minute))
	}

	// Generic operation call
	protected.Post("/contract/call", contractHandler.Call)

	// Markets
	protected.Post("/markets", marketHandler.CreateMarket)
	protected.Get("/markets", marketHandler.ListMarkets)
	protected.Post("/markets/:id/hidden", marketHandler.SetHidden)
	protected.Post("/platform/fee", marketHandler.SetPlatformFee)

	// Offers
	protected.Post("/offers", offerHandler.PostOffer)
	protected.Get("/offers", offerHandler.ListOffers)
	protected.Post("/offers/:id/accept", offerHandler.AcceptOffer)
	protected.Post("/offers/:id/proof", offerHandler.SubmitProof)
	protected.Post("/offers/:id/release", offerHandler.ReleaseFunds)
	protected.Post("/offers/:id/cancel", offerHandler.CancelOffer)
	protected.Post("/offers/:id/hidden", offerHandler.SetHidden)

	// Names
	protected.Post("/names/register", nameHandler.Register)

	// WebSocket
	app.Use("/ws", handlers.WSUpgradeMiddleware())
	app.Get("/ws", websocket.New(wsHub.HandleWS))
}
