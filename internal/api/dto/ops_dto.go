package dto

import (
	"time"

	"github.com/erkinov-wtf/rmbot-sub002/internal/domain"
)

// PublishRulesRequest submits a new rules document.
type PublishRulesRequest struct {
	Document string `json:"document"`
}

// RulesVersionResponse is one published revision. Document is included only
// on single-version reads.
type RulesVersionResponse struct {
	Version   int       `json:"version"`
	Document  string    `json:"document,omitempty"`
	CreatedBy string    `json:"created_by"`
	CreatedAt time.Time `json:"created_at"`
}

// StockoutResponse is one incident.
type StockoutResponse struct {
	ID              string     `json:"id"`
	StartedAt       time.Time  `json:"started_at"`
	EndedAt         *time.Time `json:"ended_at,omitempty"`
	StartCount      int        `json:"start_count"`
	EndCount        *int       `json:"end_count,omitempty"`
	DurationSeconds int64      `json:"duration_seconds"`
}

// RuleMetricResponse is one rule's reading from an evaluator run.
type RuleMetricResponse struct {
	Rule      domain.RuleKey `json:"rule"`
	Value     float64        `json:"value"`
	Threshold float64        `json:"threshold"`
	Breach    bool           `json:"breach"`
	Details   map[string]any `json:"details,omitempty"`
}

// AutomationEventResponse is one emitted alert-lifecycle event.
type AutomationEventResponse struct {
	ID        int64            `json:"id"`
	Rule      domain.RuleKey   `json:"rule"`
	Kind      domain.EventKind `json:"kind"`
	Value     float64          `json:"value"`
	Threshold float64          `json:"threshold"`
	Details   map[string]any   `json:"details,omitempty"`
	CreatedAt time.Time        `json:"created_at"`
}

// EvaluationResponse reports one evaluator run.
type EvaluationResponse struct {
	EvaluatedAt time.Time                 `json:"evaluated_at"`
	Enabled     bool                      `json:"enabled"`
	Metrics     []RuleMetricResponse      `json:"metrics"`
	Events      []AutomationEventResponse `json:"events"`
}

// DeliveryAttemptResponse is one escalation delivery attempt.
type DeliveryAttemptResponse struct {
	ID         int64                  `json:"id"`
	EventID    int64                  `json:"event_id"`
	Channel    domain.ChannelKind     `json:"channel"`
	Outcome    domain.DeliveryOutcome `json:"outcome"`
	Detail     string                 `json:"detail,omitempty"`
	DurationMS int64                  `json:"duration_ms"`
	CreatedAt  time.Time              `json:"created_at"`
}
