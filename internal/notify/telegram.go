// Package notify sends best-effort direct messages to technicians over the
// Telegram bot API. Failures are reported to the caller, never retried.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/erkinov-wtf/rmbot-sub002/internal/config"
)

// Telegram is a thin bot API client for per-chat messages.
type Telegram struct {
	apiBase string
	token   string
	client  *http.Client
}

// NewTelegram builds the client from escalation config; the same bot serves
// both the ops chat and technician DMs.
func NewTelegram(cfg config.EscalationConfig) *Telegram {
	return &Telegram{
		apiBase: cfg.TelegramAPIBase,
		token:   cfg.TelegramBotToken,
		client:  &http.Client{Timeout: cfg.DeliveryTimeout()},
	}
}

// Enabled reports whether a bot token is configured.
func (t *Telegram) Enabled() bool {
	return t != nil && t.token != ""
}

type sendMessageRequest struct {
	ChatID int64  `json:"chat_id"`
	Text   string `json:"text"`
}

// Send posts one message to a chat.
func (t *Telegram) Send(ctx context.Context, chatID int64, text string) error {
	if !t.Enabled() {
		return fmt.Errorf("telegram notifier not configured")
	}

	body, err := json.Marshal(sendMessageRequest{ChatID: chatID, Text: text})
	if err != nil {
		return err
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", t.apiBase, t.token)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("sendMessage returned %d", resp.StatusCode)
	}
	return nil
}
