package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/midnight-markets/backend/internal/config"
	"github.com/midnight-markets/backend/internal/contract"
	"github.com/midnight-markets/backend/internal/db"
	"github.com/midnight-markets/backend/internal/events"
	"github.com/midnight-markets/backend/internal/ledger"
	"github.com/midnight-markets/backend/internal/repositories"
	"github.com/midnight-markets/backend/internal/services"
)

func main() {
	log, _ := zap.NewProduction()
	defer log.Sync()

	cfg := config.Load()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool, err := db.NewPostgresPool(ctx, cfg.PostgresDSN, log)
	if err != nil {
		log.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer pool.Close()

	rdb, err := db.NewRedisClient(ctx, cfg.RedisURL, log)
	if err != nil {
		log.Fatal("failed to connect to redis", zap.Error(err))
	}
	defer rdb.Close()

	store := ledger.NewPostgres(pool)
	engine := contract.NewEngine(store, cfg.RefundWindow, cfg.ClaimWindow, log)
	auditRepo := repositories.NewAuditRepo(pool)
	publisher := events.NewRedisPublisher(rdb, log)
	contractService := services.NewContractService(engine, auditRepo, publisher, log)

	log.Info("worker started", zap.Duration("sweep_interval", cfg.SweepInterval))

	sweepTicker := time.NewTicker(cfg.SweepInterval)
	defer sweepTicker.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	for {
		select {
		case <-sweepTicker.C:
			runTimeoutSweep(ctx, contractService, log)
		case <-sigCh:
			log.Info("shutting down worker")
			cancel()
			return
		case <-ctx.Done():
			return
		}
	}
}

func runTimeoutSweep(ctx context.Context, svc *services.ContractService, log *zap.Logger) {
	res, err := svc.SweepTimeouts(ctx)
	if err != nil {
		log.Error("timeout sweep failed", zap.Error(err))
		return
	}
	if len(res.Refunded) > 0 || len(res.Claimed) > 0 {
		log.Info("timeout sweep resolved stalled offers",
			zap.Uint64s("refunded", res.Refunded),
			zap.Uint64s("claimed", res.Claimed),
		)
	}
}
