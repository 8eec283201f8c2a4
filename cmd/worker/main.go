package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/orderbridge/orderbridge/internal/app"
	jobmetrics "github.com/orderbridge/orderbridge/internal/jobs"
	"github.com/orderbridge/orderbridge/internal/notify"
	"github.com/orderbridge/orderbridge/internal/platform/cache"
	"github.com/orderbridge/orderbridge/internal/platform/db"
	"github.com/orderbridge/orderbridge/internal/reporting"
	"github.com/orderbridge/orderbridge/internal/shared"
	"github.com/orderbridge/orderbridge/jobs"
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
	if cfg.TelegramBotToken == "" {
		logger.Error("TELEGRAM_BOT_TOKEN is required by the worker")
		os.Exit(1)
	}

	pool, err := db.New(ctx, cfg.PGDSN, cfg.PGMaxConns)
	if err != nil {
		logger.Error("connect database", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Warn("redis ping", slog.Any("error", err))
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	metrics := jobmetrics.NewMetrics(nil)

	notificationJob := jobs.NewNotificationJob(notify.NewTelegram(cfg.TelegramAPIURL, cfg.TelegramBotToken), logger, metrics)
	cleanupJob := jobs.NewIdempotencyCleanupJob(shared.NewIdempotencyStore(pool), cfg.IdempotencyRetention, logger, metrics)
	cleanupHandler, cleanupCron := cleanupJob.Registrations("")

	handlers := []jobs.TaskHandler{notificationJob.TaskHandler(), cleanupHandler}
	crons := []jobs.CronRegistration{cleanupCron}

	reportDB, err := reporting.Open(cfg.MySQLDSN)
	if err != nil {
		logger.Warn("reporting database unavailable, reference refresh disabled", slog.Any("error", err))
	} else {
		reference := reporting.NewService(reporting.NewRepository(reportDB), reporting.NewCache(redisClient, cfg.ReferenceCacheTTL), logger)
		refreshHandler, refreshCron := jobs.NewReferenceRefreshJob(reference, logger, metrics).Registrations("")
		handlers = append(handlers, refreshHandler)
		crons = append(crons, refreshCron)
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts:   cache.QueueOpt(cfg.RedisAddr),
		Logger:      logger,
		Concurrency: cfg.WorkerConcurrency,
		Handlers:    handlers,
		Cron:        crons,
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("starting worker", slog.Int("handlers", len(handlers)), slog.Int("schedules", len(crons)))
	if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}
