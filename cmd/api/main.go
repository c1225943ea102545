package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/midnight-markets/backend/internal/config"
	"github.com/midnight-markets/backend/internal/contract"
	"github.com/midnight-markets/backend/internal/db"
	"github.com/midnight-markets/backend/internal/events"
	apphttp "github.com/midnight-markets/backend/internal/http"
	"github.com/midnight-markets/backend/internal/http/handlers"
	"github.com/midnight-markets/backend/internal/ledger"
	"github.com/midnight-markets/backend/internal/repositories"
	"github.com/midnight-markets/backend/internal/services"
)

func main() {
	log, _ := zap.NewProduction()
	defer log.Sync()

	cfg := config.Load()
	cfg.Validate(log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Database
	pool, err := db.NewPostgresPool(ctx, cfg.PostgresDSN, log)
	if err != nil {
		log.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer pool.Close()

	// Run migrations
	if err := db.RunMigrations(ctx, pool, "migrations", log); err != nil {
		log.Fatal("failed to run migrations", zap.Error(err))
	}

	// Redis
	rdb, err := db.NewRedisClient(ctx, cfg.RedisURL, log)
	if err != nil {
		log.Fatal("failed to connect to redis", zap.Error(err))
	}
	defer rdb.Close()

	// Ledger
	store := ledger.NewPostgres(pool)
	if err := store.EnsureGenesis(ctx, cfg.OwnerID, cfg.PlatformFeeBPS); err != nil {
		log.Fatal("failed to write genesis platform state", zap.Error(err))
	}

	// Engine + service
	engine := contract.NewEngine(store, cfg.RefundWindow, cfg.ClaimWindow, log)
	auditRepo := repositories.NewAuditRepo(pool)
	publisher := events.NewRedisPublisher(rdb, log)
	subscriber := events.NewRedisSubscriber(rdb, log)
	contractService := services.NewContractService(engine, auditRepo, publisher, log)

	// Handlers
	authHandler := handlers.NewAuthHandler(cfg, log)
	contractHandler := handlers.NewContractHandler(contractService, log)
	marketHandler := handlers.NewMarketHandler(contractService, log)
	offerHandler := handlers.NewOfferHandler(contractService, log)
	nameHandler := handlers.NewNameHandler(contractService, log)
	wsHub := handlers.NewWSHub(cfg, subscriber, log)

	// Start WS hub
	wsHub.Start(ctx)

	// Fiber app
	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{"error": err.Error()})
		},
	})

	apphttp.SetupRouter(app, cfg, log, rdb, authHandler, contractHandler, marketHandler, offerHandler, nameHandler, wsHub)

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Info("shutting down...")
		cancel()
		_ = app.Shutdown()
	}()

	addr := fmt.Sprintf(":%s", cfg.APIPort)
	log.Info("starting API server", zap.String("addr", addr))
	if err := app.Listen(addr); err != nil {
		log.Fatal("server error", zap.Error(err))
	}
}
