package notify

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingPublisher struct {
	sent []Message
	fail map[string]bool
}

func (p *recordingPublisher) Publish(_ context.Context, msg Message) error {
	if p.fail[msg.ChatID] {
		return errors.New("queue unavailable")
	}
	p.sent = append(p.sent, msg)
	return nil
}

func TestPublishAllSkipsBlankAndJoinsErrors(t *testing.T) {
	pub := &recordingPublisher{fail: map[string]bool{"2": true}}
	err := PublishAll(context.Background(), pub, []string{"1", " ", "2", "3"}, "hello")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "chat 2")
	require.Len(t, pub.sent, 2)
	assert.Equal(t, "1", pub.sent[0].ChatID)
	assert.Equal(t, "3", pub.sent[1].ChatID)
}

func TestReviewButtons(t *testing.T) {
	buttons := ReviewButtons("555")
	assert.Equal(t, "approve:555", buttons[0].CallbackData)
	assert.Equal(t, "revise:555", buttons[1].CallbackData)
}

func TestMessageValidate(t *testing.T) {
	assert.Error(t, Message{Text: "x"}.Validate())
	assert.Error(t, Message{ChatID: "1"}.Validate())
	assert.NoError(t, Message{ChatID: "1", Text: "x"}.Validate())
}

func TestFormatterTexts(t *testing.T) {
	f := NewFormatter("en")
	assert.Equal(t, "Sales order SO1 (id 555) was updated by ayu.\nHeader fields changed.\n2 line(s) changed.",
		f.OrderUpdated("SO1", "555", "ayu", true, 2))
	assert.Equal(t, "Sales order SO1 (id 555) was updated by ayu.", f.OrderUpdated("SO1", "555", "ayu", false, 0))
	assert.Contains(t, f.ReviewRequest("SO1", "555", "ayu", "WH"), "[WH]")
	assert.Contains(t, f.OrderSplit("SO1", "SOV2405001", "901", "ayu", 1, 3), "SOV2405001 (id 901)")
}

func TestTelegramSendPostsInlineKeyboard(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/botTOKEN/sendMessage", r.URL.Path)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"ok":true,"result":{}}`))
	}))
	defer srv.Close()

	tg := NewTelegram(srv.URL, "TOKEN")
	err := tg.Send(context.Background(), Message{ChatID: "42", Text: "review", Buttons: ReviewButtons("555")})
	require.NoError(t, err)

	assert.Equal(t, "42", got["chat_id"])
	markup := got["reply_markup"].(map[string]any)
	rows := markup["inline_keyboard"].([]any)
	require.Len(t, rows, 1)
	assert.Len(t, rows[0].([]any), 2)
}

func TestTelegramSendReportsAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"ok":false,"description":"Bad Request: chat not found"}`))
	}))
	defer srv.Close()

	err := NewTelegram(srv.URL, "TOKEN").Send(context.Background(), Message{ChatID: "1", Text: "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "chat not found")
}

func TestTelegramRequiresToken(t *testing.T) {
	err := NewTelegram("", "").Send(context.Background(), Message{ChatID: "1", Text: "x"})
	assert.Error(t, err)
}
