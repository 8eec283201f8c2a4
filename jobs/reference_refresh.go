package jobs

import (
	"context"
	"errors"
	"log/slog"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/orderbridge/orderbridge/internal/jobs"
)

// TaskReferenceRefresh drops cached reporting reference lists.
const TaskReferenceRefresh = "reporting:refresh"

// ReferenceRefresher invalidates cached reference data.
type ReferenceRefresher interface {
	RefreshReferenceLists(ctx context.Context) error
}

// ReferenceRefreshJob periodically forces location and condition lists to reload.
type ReferenceRefreshJob struct {
	Refresher ReferenceRefresher
	Logger    *slog.Logger
	Metrics   *jobmetrics.Metrics
}

// NewReferenceRefreshJob wires dependencies for the refresh handler.
func NewReferenceRefreshJob(refresher ReferenceRefresher, logger *slog.Logger, metrics *jobmetrics.Metrics) *ReferenceRefreshJob {
	return &ReferenceRefreshJob{Refresher: refresher, Logger: logger, Metrics: metrics}
}

// Handle processes TaskReferenceRefresh tasks.
func (j *ReferenceRefreshJob) Handle(ctx context.Context, _ *asynq.Task) error {
	if j == nil || j.Refresher == nil {
		return errors.New("reference refresh: handler not configured")
	}
	metrics := j.Metrics
	if metrics == nil {
		metrics = defaultJobMetrics
	}
	tracker := metrics.Track(TaskReferenceRefresh)
	err := j.Refresher.RefreshReferenceLists(ctx)
	logger := j.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if err != nil {
		logger.Error("refresh reference lists", slog.Any("error", err))
	} else {
		logger.Info("reference lists invalidated")
	}
	return tracker.End(err)
}

// Registrations returns the handler and its cron schedule.
func (j *ReferenceRefreshJob) Registrations(spec string) (TaskHandler, CronRegistration) {
	if spec == "" {
		spec = "@every 1h"
	}
	return TaskHandler{Type: TaskReferenceRefresh, Handler: j.Handle},
		CronRegistration{Spec: spec, Task: asynq.NewTask(TaskReferenceRefresh, nil), Options: []asynq.Option{asynq.Queue(QueueDefault)}}
}
