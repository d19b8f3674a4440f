package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/catsync/catsync/internal/app"
	"github.com/catsync/catsync/internal/bulk"
	"github.com/catsync/catsync/internal/importer"
	"github.com/catsync/catsync/internal/importlog"
	jobmetrics "github.com/catsync/catsync/internal/jobs"
	"github.com/catsync/catsync/internal/platform/cache"
	"github.com/catsync/catsync/internal/platform/db"
	"github.com/catsync/catsync/jobs"
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

	pool, err := db.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("connect database", slog.Any("error", err))
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

	metrics := jobmetrics.NewMetrics(nil)

	logStore := importlog.NewStore(pool)
	importService := importer.NewService(pool, logger, cfg.ImporterConfig(), importlog.NewRecorder(logStore), nil)
	bulkService := bulk.NewService(logger, redisClient, nil, importService)

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskTypeBulkImport, Handler: bulkService.HandleTask},
			{Type: jobs.TaskTypeLogPrune, Handler: importlog.PruneHandler(logger, logStore, cfg.LogRetention(), metrics)},
		},
		Cron: []jobs.CronRegistration{
			{Spec: "45 3 * * *", Task: jobs.NewLogPruneTask(), Options: []asynq.Option{asynq.MaxRetry(2)}},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	if err := worker.Run(ctx); err != nil && err != context.Canceled {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}
