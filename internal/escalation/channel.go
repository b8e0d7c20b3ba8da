// Package escalation delivers automation events to operator-facing
// channels: the ops Telegram chat, a signed webhook and a Kafka stream.
package escalation

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/erkinov-wtf/rmbot-sub002/internal/domain"
	apperrors "github.com/erkinov-wtf/rmbot-sub002/pkg/util"
)

// Payload is the wire form of one automation event delivery.
type Payload struct {
	EventID   int64     `json:"event_id"`
	Rule      string    `json:"rule"`
	Kind      string    `json:"kind"`
	Value     float64   `json:"value"`
	Threshold float64   `json:"threshold"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}

// Channel delivers one payload. A nil return is a success; failures carry
// the retryable flag so the delivery service can classify the attempt.
type Channel interface {
	Kind() domain.ChannelKind
	Deliver(ctx context.Context, payload Payload) error
}

// classifyStatus maps an HTTP response code onto the delivery error
// contract: 2xx succeeds, 408/429 and 5xx are retryable, every other 4xx
// is permanent.
func classifyStatus(channel domain.ChannelKind, status int) error {
	switch {
	case status >= 200 && status < 300:
		return nil
	case status == http.StatusRequestTimeout, status == http.StatusTooManyRequests:
		return apperrors.NewDeliveryFailure(string(channel), true, fmt.Errorf("endpoint returned %d", status))
	case status >= 500:
		return apperrors.NewDeliveryFailure(string(channel), true, fmt.Errorf("endpoint returned %d", status))
	default:
		return apperrors.NewDeliveryFailure(string(channel), false, fmt.Errorf("endpoint returned %d", status))
	}
}
