package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"

	"github.com/orderbridge/orderbridge/internal/notify"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// QueueNotifications carries outbound staff notifications.
	QueueNotifications = "notifications"
	// TaskNotifyTelegram delivers one chat message through the Telegram Bot API.
	TaskNotifyTelegram = "notify:telegram"

	notifyMaxRetry = 5
)

// NewNotifyTelegramTask constructs an Asynq task carrying msg.
func NewNotifyTelegramTask(msg notify.Message) (*asynq.Task, error) {
	data, err := json.Marshal(msg)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskNotifyTelegram, data), nil
}
