package escalation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"

	"github.com/erkinov-wtf/rmbot-sub002/internal/config"
	"github.com/erkinov-wtf/rmbot-sub002/internal/domain"
	apperrors "github.com/erkinov-wtf/rmbot-sub002/pkg/util"
)

const webhookTokenTTL = 5 * time.Minute

// WebhookChannel posts escalation payloads to an operator endpoint,
// authenticating each delivery with a short-lived HS256 token.
type WebhookChannel struct {
	url    string
	secret []byte
	client *http.Client
}

// NewWebhookChannel builds the channel from escalation config.
func NewWebhookChannel(cfg config.EscalationConfig) *WebhookChannel {
	return &WebhookChannel{
		url:    cfg.WebhookURL,
		secret: []byte(cfg.WebhookSecret),
		client: &http.Client{Timeout: cfg.DeliveryTimeout()},
	}
}

// Kind identifies the channel.
func (c *WebhookChannel) Kind() domain.ChannelKind {
	return domain.ChannelWebhook
}

// webhookClaims describes the delivery token payload.
type webhookClaims struct {
	EventID int64  `json:"event_id"`
	Rule    string `json:"rule"`
	Kind    string `json:"kind"`
	jwt.RegisteredClaims
}

func (c *WebhookChannel) signToken(payload Payload) (string, error) {
	now := time.Now()
	claims := &webhookClaims{
		EventID: payload.EventID,
		Rule:    payload.Rule,
		Kind:    payload.Kind,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   fmt.Sprintf("automation-event-%d", payload.EventID),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(webhookTokenTTL)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(c.secret)
}

// Deliver posts the payload as JSON with a Bearer token.
func (c *WebhookChannel) Deliver(ctx context.Context, payload Payload) error {
	if c.url == "" {
		return apperrors.NewDeliveryFailure(string(c.Kind()), false, fmt.Errorf("webhook channel not configured"))
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return apperrors.NewDeliveryFailure(string(c.Kind()), false, err)
	}
	token, err := c.signToken(payload)
	if err != nil {
		return apperrors.NewDeliveryFailure(string(c.Kind()), false, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return apperrors.NewDeliveryFailure(string(c.Kind()), false, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.client.Do(req)
	if err != nil {
		return apperrors.NewDeliveryFailure(string(c.Kind()), true, err)
	}
	defer resp.Body.Close()

	return classifyStatus(c.Kind(), resp.StatusCode)
}
