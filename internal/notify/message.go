// Package notify describes staff notifications and delivers them over Telegram.
package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Button is an inline keyboard action attached to a message.
type Button struct {
	Text         string `json:"text"`
	CallbackData string `json:"callback_data"`
}

// Message is a single chat notification.
type Message struct {
	ChatID  string   `json:"chat_id"`
	Text    string   `json:"text"`
	Buttons []Button `json:"buttons,omitempty"`
}

// Validate reports whether the message can be delivered.
func (m Message) Validate() error {
	if strings.TrimSpace(m.ChatID) == "" {
		return errors.New("notify: chat id required")
	}
	if strings.TrimSpace(m.Text) == "" {
		return errors.New("notify: text required")
	}
	return nil
}

// Publisher hands messages to the delivery pipeline.
type Publisher interface {
	Publish(ctx context.Context, msg Message) error
}

// PublishAll publishes text to every chat id and joins the failures.
func PublishAll(ctx context.Context, p Publisher, chatIDs []string, text string, buttons ...Button) error {
	if p == nil {
		return errors.New("notify: publisher not configured")
	}
	var errs []error
	for _, id := range chatIDs {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if err := p.Publish(ctx, Message{ChatID: id, Text: text, Buttons: buttons}); err != nil {
			errs = append(errs, fmt.Errorf("chat %s: %w", id, err))
		}
	}
	return errors.Join(errs...)
}

// ReviewButtons are the approve/revise actions sent to department reviewers.
func ReviewButtons(orderID string) []Button {
	return []Button{
		{Text: "Approve", CallbackData: "approve:" + orderID},
		{Text: "Revise", CallbackData: "revise:" + orderID},
	}
}
