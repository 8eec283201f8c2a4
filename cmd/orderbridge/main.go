package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/orderbridge/orderbridge/internal/app"
	"github.com/orderbridge/orderbridge/internal/lineage"
	"github.com/orderbridge/orderbridge/internal/netsuite"
	"github.com/orderbridge/orderbridge/internal/notify"
	"github.com/orderbridge/orderbridge/internal/observability"
	"github.com/orderbridge/orderbridge/internal/orders"
	"github.com/orderbridge/orderbridge/internal/platform/cache"
	"github.com/orderbridge/orderbridge/internal/platform/db"
	"github.com/orderbridge/orderbridge/internal/reporting"
	"github.com/orderbridge/orderbridge/internal/shared"
	"github.com/orderbridge/orderbridge/internal/workflow"
	"github.com/orderbridge/orderbridge/jobs"
	"github.com/orderbridge/orderbridge/migrations"
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

	if cfg.MigrateOnRun {
		if err := db.Migrate(cfg.PGDSN, migrations.FS, logger); err != nil {
			logger.Error("migrate database", slog.Any("error", err))
			os.Exit(1)
		}
	}

	dbpool, err := db.New(ctx, cfg.PGDSN, cfg.PGMaxConns)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Warn("redis ping", slog.Any("error", err))
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	var reference orders.ReferenceReader
	reportDB, err := reporting.Open(cfg.MySQLDSN)
	if err != nil {
		logger.Warn("reporting database unavailable, order views will not be enriched", slog.Any("error", err))
	} else {
		reference = reporting.NewService(
			reporting.NewRepository(reportDB),
			reporting.NewCache(redisClient, cfg.ReferenceCacheTTL),
			logger,
		)
	}

	metrics := observability.NewMetrics()
	gateway := netsuite.NewClient(cfg.NetSuiteBaseURL, cfg.Credentials(), cfg.NetSuiteTimeout,
		netsuite.WithConcurrency(cfg.NetSuiteConcurrency),
		netsuite.WithRateLimit(cfg.NetSuiteRateLimit),
		netsuite.WithMetrics(netsuite.NewMetrics(metrics.Registerer())),
	)

	queueOpt := cache.QueueOpt(cfg.RedisAddr)
	jobClient, err := jobs.NewClient(queueOpt)
	if err != nil {
		logger.Error("init job client", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := jobClient.Close(); err != nil {
			logger.Warn("job client close", slog.Any("error", err))
		}
	}()

	lineageRepo := lineage.NewRepository(dbpool)
	service := orders.NewService(orders.ServiceParams{
		Gateway:          gateway,
		Lineage:          lineageRepo,
		Numbers:          lineage.NewAllocator(lineageRepo, logger),
		Workflow:         workflow.NewRepository(dbpool),
		Publisher:        jobClient,
		Formatter:        notify.NewFormatter(cfg.NotifyLocale),
		Audit:            shared.NewAuditLogger(dbpool),
		Idempotency:      shared.NewIdempotencyStore(dbpool),
		Reference:        reference,
		CoordinationChat: cfg.CoordinationChatIDs,
		Logger:           logger,
	})

	inspector := asynq.NewInspector(queueOpt)
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()

	router := app.NewRouter(app.RouterParams{
		Logger:       logger,
		Config:       cfg,
		OrderHandler: orders.NewHandler(logger, service),
		JobHandler:   jobs.NewHandler(inspector, logger),
		Metrics:      metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr), slog.String("netsuite", cfg.NetSuiteBaseURL))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
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
