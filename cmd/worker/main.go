package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/daoyee/daoyee-quote/internal/app"
	"github.com/daoyee/daoyee-quote/internal/catalog"
	"github.com/daoyee/daoyee-quote/internal/localcache"
	"github.com/daoyee/daoyee-quote/internal/platform/cache"
	"github.com/daoyee/daoyee-quote/internal/platform/db"
	"github.com/daoyee/daoyee-quote/internal/remote"
	"github.com/daoyee/daoyee-quote/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping worker startup")
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

	// The worker targets the same remote the coordinator pushes to. Prefer
	// persisted settings; fall back to the environment.
	settings := localSettings(cfg, logger)
	if settings.RemoteDSN == "" {
		logger.Error("no remote DSN configured; worker has nothing to push to")
		os.Exit(1)
	}

	pool, err := db.New(ctx, settings.RemoteDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	store := remote.NewStore(pool)
	if err := store.EnsureSchema(ctx); err != nil {
		logger.Error("ensure remote schema", slog.Any("error", err))
		os.Exit(1)
	}

	redisClient, err := cache.New(ctx, settings.RedisAddr)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: settings.RedisAddr},
		Logger:    logger,
		Processor: jobs.NewProcessor(logger, store, remote.NewNotifier(redisClient, logger)),
	})
	if err != nil {
		logger.Error("build worker", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("worker started", slog.String("queue", jobs.QueueDefault))
	if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("worker stopped", slog.Any("error", err))
		os.Exit(1)
	}
}

// localSettings reads the sync settings persisted by the server, falling back
// to environment configuration when the cache is absent or empty.
func localSettings(cfg *app.Config, logger *slog.Logger) catalog.AppSettings {
	settings := catalog.AppSettings{
		RemoteDSN: cfg.PGDSN,
		RedisAddr: cfg.RedisAddr,
	}

	local, err := localcache.Open(cfg.CachePath, logger)
	if err != nil {
		logger.Warn("open local cache", slog.Any("error", err))
		return settings
	}
	defer func() {
		_ = local.Close()
	}()

	if saved := local.LoadSettings(); saved.RemoteDSN != "" {
		settings.RemoteDSN = saved.RemoteDSN
		settings.RedisAddr = saved.RedisAddr
	}
	return settings
}
