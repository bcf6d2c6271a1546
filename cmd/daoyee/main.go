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

	"github.com/daoyee/daoyee-quote/internal/advisory"
	"github.com/daoyee/daoyee-quote/internal/app"
	"github.com/daoyee/daoyee-quote/internal/catalog"
	cataloghttp "github.com/daoyee/daoyee-quote/internal/catalog/http"
	"github.com/daoyee/daoyee-quote/internal/localcache"
	"github.com/daoyee/daoyee-quote/internal/sheet"
	"github.com/daoyee/daoyee-quote/internal/syncer"
	"github.com/daoyee/daoyee-quote/jobs"
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

	local, err := localcache.Open(cfg.CachePath, logger)
	if err != nil {
		logger.Error("open local cache", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := local.Close(); err != nil {
			logger.Warn("close local cache", slog.Any("error", err))
		}
	}()

	// First run: seed sync settings from the environment. Persisted settings
	// always win afterwards.
	if local.LoadSettings() == (catalog.AppSettings{}) {
		if seed := cfg.BootstrapSettings(); seed != (catalog.AppSettings{}) {
			if err := local.SaveSettings(seed); err != nil {
				logger.Warn("seed settings", slog.Any("error", err))
			}
		}
	}

	var pusher syncer.Pusher
	if cfg.UseQueue {
		queueClient := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
		defer func() {
			if err := queueClient.Close(); err != nil {
				logger.Warn("close queue client", slog.Any("error", err))
			}
		}()
		pusher = jobs.NewPusher(queueClient, logger)
	}

	store := catalog.NewStore()
	coord, err := syncer.Connect(ctx, syncer.Options{
		Logger: logger,
		Store:  store,
		Local:  local,
		Pusher: pusher,
		OnWarning: func(msg string) {
			logger.Warn(msg)
		},
	})
	if err != nil {
		logger.Error("start sync coordinator", slog.Any("error", err))
		os.Exit(1)
	}
	defer coord.Close()

	renderer, err := sheet.NewRenderer()
	if err != nil {
		logger.Error("parse templates", slog.Any("error", err))
		os.Exit(1)
	}

	advisor := advisory.NewClient(cfg.AdvisoryURL, cfg.AdvisoryKey, cfg.AdvisoryModel, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:         logger,
		Config:         cfg,
		CatalogHandler: cataloghttp.NewHandler(logger, store, coord, advisor, renderer),
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
