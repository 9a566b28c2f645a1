package main

import (
	"context"
	"net/http"
	"os"

	"github.com/joho/godotenv"

	"github.com/digitalhandshake/dhs-backend/api/routes"
	"github.com/digitalhandshake/dhs-backend/internal/auth"
	"github.com/digitalhandshake/dhs-backend/internal/disputes"
	"github.com/digitalhandshake/dhs-backend/internal/escrow"
	"github.com/digitalhandshake/dhs-backend/internal/handshakes"
	"github.com/digitalhandshake/dhs-backend/internal/requests"
	"github.com/digitalhandshake/dhs-backend/internal/rng"
	"github.com/digitalhandshake/dhs-backend/internal/token"
	"github.com/digitalhandshake/dhs-backend/internal/users"
	"github.com/digitalhandshake/dhs-backend/pkg/config"
	"github.com/digitalhandshake/dhs-backend/pkg/db"
	"github.com/digitalhandshake/dhs-backend/pkg/logger"
	"github.com/digitalhandshake/dhs-backend/pkg/migrate"
	"github.com/digitalhandshake/dhs-backend/pkg/outbox"
	"github.com/digitalhandshake/dhs-backend/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	outboxSvc := outbox.NewService(outbox.NewRepository(dbClient.DB()), logg)

	usersRepo := users.NewRepository(dbClient.DB())
	handshakesRepo := handshakes.NewRepository(dbClient.DB())
	ledger := token.NewGormLedger(dbClient.DB())
	escrowSvc := escrow.NewService(escrow.NewRepository(dbClient.DB()), ledger, cfg.Escrow, logg)

	usersService := users.NewService(dbClient, usersRepo, cfg.Password, logg)
	authService := auth.NewService(usersRepo, cfg.JWT, logg)
	requestsService := requests.NewService(dbClient, requests.NewRepository(dbClient.DB()), usersRepo, handshakesRepo, outboxSvc, logg)
	handshakesService := handshakes.NewService(dbClient, handshakesRepo, escrowSvc, ledger, usersRepo, outboxSvc, cfg.Escrow, logg)
	disputesService := disputes.NewService(dbClient, disputes.NewRepository(dbClient.DB()), handshakesRepo, usersRepo, escrowSvc, rng.NewSeededSource(), outboxSvc, cfg.Escrow, logg)

	// Transfers to the engine account are escrow lock notifications, so the
	// token service calls back into the handshakes workflow.
	tokenService := token.NewService(dbClient, ledger, handshakesService, cfg.Escrow, logg)

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(
			cfg,
			logg,
			dbClient,
			redisClient,
			authService,
			usersService,
			requestsService,
			handshakesService,
			disputesService,
			tokenService,
		),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}
