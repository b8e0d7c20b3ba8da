package domain

import "time"

// RuleKey identifies one automation rule.
type RuleKey string

const (
	RuleStockoutDuration RuleKey = "stockout_duration"
	RuleBacklogPressure  RuleKey = "backlog_pressure"
	RuleQCPassRate       RuleKey = "qc_pass_rate"
)

// EventKind classifies an automation event within a rule's lifecycle.
type EventKind string

const (
	EventTriggered EventKind = "triggered"
	EventReminder  EventKind = "reminder"
	EventResolved  EventKind = "resolved"
)

// AutomationEvent is an append-only record of one rule firing. The latest
// row per rule carries the cooldown state, so the evaluator stays correct
// across process restarts.
type AutomationEvent struct {
	ID        int64
	Rule      RuleKey
	Kind      EventKind
	Value     float64
	Threshold float64
	Details   map[string]any
	CreatedAt time.Time
}

// DeliveryOutcome classifies one escalation delivery attempt.
type DeliveryOutcome string

const (
	OutcomeSuccess          DeliveryOutcome = "success"
	OutcomeFailure          DeliveryOutcome = "failure"
	OutcomeRetryableFailure DeliveryOutcome = "retryable_failure"
	OutcomeSkipped          DeliveryOutcome = "skipped"
)

// ChannelKind identifies an escalation delivery channel.
type ChannelKind string

const (
	ChannelTelegram ChannelKind = "telegram"
	ChannelWebhook  ChannelKind = "webhook"
	ChannelStream   ChannelKind = "stream"
)

// DeliveryAttempt is an append-only record of one delivery of an automation
// event over one channel.
type DeliveryAttempt struct {
	ID         int64
	EventID    int64
	Channel    ChannelKind
	Outcome    DeliveryOutcome
	Detail     string
	DurationMS int64
	CreatedAt  time.Time
}

// Final reports whether the attempt ends processing for its channel.
// Retryable failures are picked up again by the delivery worker.
func (a DeliveryAttempt) Final() bool {
	return a.Outcome == OutcomeSuccess || a.Outcome == OutcomeFailure || a.Outcome == OutcomeSkipped
}
