package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/estateline/estateline/internal/accounts"
	"github.com/estateline/estateline/internal/app"
	"github.com/estateline/estateline/internal/audit"
	"github.com/estateline/estateline/internal/authz"
	"github.com/estateline/estateline/internal/identity"
	"github.com/estateline/estateline/internal/observability"
	"github.com/estateline/estateline/internal/platform/cache"
	"github.com/estateline/estateline/internal/platform/db"
	"github.com/estateline/estateline/internal/provisioning"
	"github.com/estateline/estateline/internal/shared"
	"github.com/estateline/estateline/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	idp := identity.NewClient(cfg.IdentityURL, cfg.IdentityServiceKey)
	repo := accounts.NewRepository(pool)
	loader := accounts.NewLoader(repo)
	locker := shared.NewUserLocker(redisClient, cfg.UserLockTTL, cfg.UserLockWait)
	auditLogger := audit.NewLogger(pool)
	metrics := observability.NewMetrics()

	asynqClient := asynq.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := asynqClient.Close(); err != nil {
			logger.Warn("asynq close", slog.Any("error", err))
		}
	}()
	enqueuer := jobs.NewEnqueuer(asynqClient)

	provisioningService := provisioning.NewService(idp, repo, locker, auditLogger, enqueuer, logger).
		WithObserver(metrics)
	usersHandler := provisioning.NewHandler(logger, provisioningService)

	authMiddleware := authz.Middleware{Verifier: idp, Loader: loader, Logger: logger}
	permissionsHandler := authz.NewPermissionsHandler(logger)

	router := app.NewRouter(app.RouterParams{
		Logger:             logger,
		Config:             cfg,
		AuthMiddleware:     authMiddleware,
		UsersHandler:       usersHandler,
		PermissionsHandler: permissionsHandler,
		Metrics:            metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
