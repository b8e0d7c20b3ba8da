package escalation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/erkinov-wtf/rmbot-sub002/internal/config"
	"github.com/erkinov-wtf/rmbot-sub002/internal/domain"
	apperrors "github.com/erkinov-wtf/rmbot-sub002/pkg/util"
)

// TelegramChannel posts escalation messages to the ops chat via the bot
// API.
type TelegramChannel struct {
	apiBase string
	token   string
	chatID  int64
	client  *http.Client
}

// NewTelegramChannel builds the channel from escalation config.
func NewTelegramChannel(cfg config.EscalationConfig) *TelegramChannel {
	return &TelegramChannel{
		apiBase: cfg.TelegramAPIBase,
		token:   cfg.TelegramBotToken,
		chatID:  cfg.TelegramChatID,
		client:  &http.Client{Timeout: cfg.DeliveryTimeout()},
	}
}

// Kind identifies the channel.
func (c *TelegramChannel) Kind() domain.ChannelKind {
	return domain.ChannelTelegram
}

type telegramMessage struct {
	ChatID int64  `json:"chat_id"`
	Text   string `json:"text"`
}

// Deliver sends one sendMessage call.
func (c *TelegramChannel) Deliver(ctx context.Context, payload Payload) error {
	if c.token == "" || c.chatID == 0 {
		return apperrors.NewDeliveryFailure(string(c.Kind()), false, fmt.Errorf("telegram channel not configured"))
	}

	body, err := json.Marshal(telegramMessage{ChatID: c.chatID, Text: payload.Message})
	if err != nil {
		return apperrors.NewDeliveryFailure(string(c.Kind()), false, err)
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", c.apiBase, c.token)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return apperrors.NewDeliveryFailure(string(c.Kind()), false, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		// transport errors are worth another try
		return apperrors.NewDeliveryFailure(string(c.Kind()), true, err)
	}
	defer resp.Body.Close()

	return classifyStatus(c.Kind(), resp.StatusCode)
}
