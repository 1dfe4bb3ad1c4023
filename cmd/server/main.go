package main

import (
	"context"
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"

	"github.com/mfreitas/stockholder-portal/internal/auth"
	"github.com/mfreitas/stockholder-portal/internal/config"
	"github.com/mfreitas/stockholder-portal/internal/database"
	"github.com/mfreitas/stockholder-portal/internal/handler"
	"github.com/mfreitas/stockholder-portal/internal/logger"
	"github.com/mfreitas/stockholder-portal/internal/queue"
	"github.com/mfreitas/stockholder-portal/internal/repository"
	"github.com/mfreitas/stockholder-portal/internal/router"
)

func main() {
	_ = godotenv.Load() // .env is optional; real env wins

	cfg := config.Load()
	logger.Init(cfg.Env)
	defer func() { _ = logger.Sync() }()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatalf("open database: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := database.InitSchema(ctx, db); err != nil {
		log.Fatalf("init schema: %v", err)
	}
	if err := database.EnsureAdmin(ctx, db, cfg.AdminPassword, cfg.BcryptCost); err != nil {
		log.Fatalf("bootstrap admin: %v", err)
	}
	if err := database.EnsureCompany(ctx, db, cfg.CompanyName); err != nil {
		log.Fatalf("bootstrap company: %v", err)
	}

	users := repository.NewUserRepo(db)
	stocks := repository.NewStockRepo(db)
	attempts := repository.NewAttemptRepo(db)
	failures := repository.NewLockoutRepo(db)
	revocations := repository.NewRevocationRepo(db)

	// sweep stale rate-limit state from previous runs
	if err := attempts.DeleteOlderThan(ctx, time.Now().UTC().Add(-24*time.Hour)); err != nil {
		logger.S().Warnw("startup sweep failed", "err", err)
	} else {
		logger.S().Infow("cleaned up old login attempts")
	}

	svc := auth.NewService(users, attempts, failures, revocations, logger.S(), cfg.BcryptCost)

	rdb := config.NewRedisClient()
	if rdb == nil {
		logger.S().Warnw("redis unavailable, response cache disabled")
	}
	go queue.StartSecurityConsumer()

	e := echo.New()
	e.HideBanner = true
	router.RegisterRoutes(e, cfg, svc,
		handler.NewAuthHandler(cfg, svc, users),
		handler.NewDashboardHandler(stocks),
		handler.NewAdminHandler(cfg, svc, users, stocks),
		rdb)

	addr := ":" + cfg.Port
	logger.S().Infow("listening", "addr", addr, "env", cfg.Env)
	if err := e.Start(addr); err != nil {
		log.Fatal(err)
	}
}
