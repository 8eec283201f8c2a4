package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/orderbridge/orderbridge/internal/jobs"
	"github.com/orderbridge/orderbridge/internal/notify"
)

var defaultJobMetrics = jobmetrics.NewMetrics(nil)

// Sender delivers a message to its chat.
type Sender interface {
	Send(ctx context.Context, msg notify.Message) error
}

// NotificationJob delivers queued notifications.
type NotificationJob struct {
	Sender  Sender
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// NewNotificationJob wires dependencies for the notification handler.
func NewNotificationJob(sender Sender, logger *slog.Logger, metrics *jobmetrics.Metrics) *NotificationJob {
	return &NotificationJob{Sender: sender, Logger: logger, Metrics: metrics}
}

// Handle processes TaskNotifyTelegram tasks. Malformed payloads are not retried.
func (j *NotificationJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Sender == nil {
		return errors.New("notify telegram: handler not configured")
	}
	var msg notify.Message
	if err := json.Unmarshal(t.Payload(), &msg); err != nil {
		j.logger().Warn("discarding malformed notification", slog.Any("error", err))
		return fmt.Errorf("decode notification: %v: %w", err, asynq.SkipRetry)
	}
	if err := msg.Validate(); err != nil {
		j.logger().Warn("discarding invalid notification", slog.Any("error", err))
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}

	tracker := j.metrics().Track(TaskNotifyTelegram)
	err := j.Sender.Send(ctx, msg)
	if err != nil {
		j.logger().Error("deliver notification", slog.String("chat_id", msg.ChatID), slog.Any("error", err))
	} else {
		j.logger().Debug("notification delivered", slog.String("chat_id", msg.ChatID))
	}
	return tracker.End(err)
}

// TaskHandler exposes the job for worker registration.
func (j *NotificationJob) TaskHandler() TaskHandler {
	return TaskHandler{Type: TaskNotifyTelegram, Handler: j.Handle}
}

func (j *NotificationJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger
	}
	return slog.Default()
}

func (j *NotificationJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}
