package jobs

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/orderbridge/orderbridge/internal/jobs"
)

// TaskIdempotencyCleanup purges expired idempotency keys.
const TaskIdempotencyCleanup = "idempotency:cleanup"

// KeyCleaner removes idempotency keys older than a retention window.
type KeyCleaner interface {
	Cleanup(ctx context.Context, olderThan time.Duration) (int64, error)
}

// IdempotencyCleanupJob keeps idempotency_keys bounded.
type IdempotencyCleanupJob struct {
	Store     KeyCleaner
	Retention time.Duration
	Logger    *slog.Logger
	Metrics   *jobmetrics.Metrics
}

// NewIdempotencyCleanupJob wires dependencies for the cleanup handler.
func NewIdempotencyCleanupJob(store KeyCleaner, retention time.Duration, logger *slog.Logger, metrics *jobmetrics.Metrics) *IdempotencyCleanupJob {
	if retention <= 0 {
		retention = 72 * time.Hour
	}
	if logger == nil {
		logger = slog.Default()
	}
	if metrics == nil {
		metrics = defaultJobMetrics
	}
	return &IdempotencyCleanupJob{Store: store, Retention: retention, Logger: logger, Metrics: metrics}
}

// Handle processes TaskIdempotencyCleanup tasks.
func (j *IdempotencyCleanupJob) Handle(ctx context.Context, _ *asynq.Task) error {
	if j == nil || j.Store == nil {
		return errors.New("idempotency cleanup: handler not configured")
	}
	tracker := j.Metrics.Track(TaskIdempotencyCleanup)
	removed, err := j.Store.Cleanup(ctx, j.Retention)
	if err != nil {
		j.Logger.Error("cleanup idempotency keys", slog.Any("error", err))
		return tracker.End(err)
	}
	j.Logger.Info("idempotency keys cleaned", slog.Int64("removed", removed), slog.Duration("retention", j.Retention))
	return tracker.End(nil)
}

// Registrations returns the handler and its cron schedule.
func (j *IdempotencyCleanupJob) Registrations(spec string) (TaskHandler, CronRegistration) {
	if spec == "" {
		spec = "30 2 * * *"
	}
	return TaskHandler{Type: TaskIdempotencyCleanup, Handler: j.Handle},
		CronRegistration{Spec: spec, Task: asynq.NewTask(TaskIdempotencyCleanup, nil), Options: []asynq.Option{asynq.Queue(QueueDefault)}}
}
