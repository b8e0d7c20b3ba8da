package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/erkinov-wtf/rmbot-sub002/internal/domain"
	"github.com/erkinov-wtf/rmbot-sub002/internal/escalation"
	"github.com/erkinov-wtf/rmbot-sub002/internal/observability"
	"github.com/erkinov-wtf/rmbot-sub002/internal/queue"
	"github.com/erkinov-wtf/rmbot-sub002/internal/repository"
	"github.com/erkinov-wtf/rmbot-sub002/pkg/ident"
	apperrors "github.com/erkinov-wtf/rmbot-sub002/pkg/util"
)

// EscalationService fans one automation event out to its delivery channels
// and records every attempt. Channels that already succeeded for an event
// are skipped on redelivery, so requeued messages never double-send.
type EscalationService struct {
	repos    repository.RepoProvider
	channels map[domain.ChannelKind]escalation.Channel
	timeout  time.Duration
	metrics  *observability.Metrics
	logger   *zap.Logger
}

// EscalationDependencies bundles collaborators for delivery.
type EscalationDependencies struct {
	Repos    repository.RepoProvider
	Channels []escalation.Channel
	Timeout  time.Duration
	Metrics  *observability.Metrics
	Logger   *zap.Logger
}

// NewEscalationService constructs the service.
func NewEscalationService(deps EscalationDependencies) *EscalationService {
	channels := make(map[domain.ChannelKind]escalation.Channel, len(deps.Channels))
	for _, ch := range deps.Channels {
		channels[ch.Kind()] = ch
	}
	timeout := deps.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &EscalationService{
		repos:    deps.Repos,
		channels: channels,
		timeout:  timeout,
		metrics:  deps.Metrics,
		logger:   deps.Logger,
	}
}

// Deliver processes one queued message. It returns true when at least one
// channel failed retryably, so the worker can requeue while attempts remain.
// A missing event is acked away: the alert log row is the source of truth
// and there is nothing left to send.
func (s *EscalationService) Deliver(ctx context.Context, msg queue.DeliveryMessage) (bool, error) {
	event, err := s.repos.AutomationEvents().GetByID(ctx, msg.EventID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			s.logger.Warn("delivery for unknown event dropped", zap.Int64("event_id", msg.EventID))
			return false, nil
		}
		return false, apperrors.MapError(err)
	}
	payload := buildPayload(event)

	retry := false
	for _, name := range msg.Channels {
		kind := domain.ChannelKind(name)
		channel, ok := s.channels[kind]
		if !ok {
			if err := s.record(ctx, event.ID, kind, domain.OutcomeFailure, "channel not configured", 0); err != nil {
				return retry, apperrors.MapError(err)
			}
			s.logger.Warn("no channel registered for delivery",
				zap.Int64("event_id", event.ID),
				zap.String("channel", name),
			)
			continue
		}

		done, err := s.repos.DeliveryAttempts().HasSuccess(ctx, event.ID, kind)
		if err != nil {
			return retry, apperrors.MapError(err)
		}
		if done {
			if err := s.record(ctx, event.ID, kind, domain.OutcomeSkipped, "already delivered", 0); err != nil {
				return retry, apperrors.MapError(err)
			}
			continue
		}

		outcome, detail, elapsed := s.attempt(ctx, channel, payload)
		if outcome == domain.OutcomeRetryableFailure {
			retry = true
		}
		if err := s.record(ctx, event.ID, kind, outcome, detail, elapsed); err != nil {
			return retry, apperrors.MapError(err)
		}
	}
	return retry, nil
}

// Attempts lists delivery attempts for one event, oldest first.
func (s *EscalationService) Attempts(ctx context.Context, eventID int64) ([]domain.DeliveryAttempt, error) {
	attempts, err := s.repos.DeliveryAttempts().ListByEvent(ctx, eventID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return attempts, nil
}

// attempt runs one channel delivery under the per-channel deadline and
// classifies the result.
func (s *EscalationService) attempt(ctx context.Context, channel escalation.Channel, payload escalation.Payload) (domain.DeliveryOutcome, string, int64) {
	cctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	start := time.Now()
	err := channel.Deliver(cctx, payload)
	elapsed := time.Since(start).Milliseconds()

	if err == nil {
		s.logger.Info("escalation delivered",
			zap.Int64("event_id", payload.EventID),
			zap.String("channel", string(channel.Kind())),
			zap.Int64("duration_ms", elapsed),
		)
		return domain.OutcomeSuccess, "", elapsed
	}

	outcome := domain.OutcomeFailure
	if apperrors.IsRetryable(err) {
		outcome = domain.OutcomeRetryableFailure
	}
	s.logger.Warn("escalation delivery failed",
		zap.Int64("event_id", payload.EventID),
		zap.String("channel", string(channel.Kind())),
		zap.String("outcome", string(outcome)),
		zap.Error(err),
	)
	return outcome, err.Error(), elapsed
}

func (s *EscalationService) record(ctx context.Context, eventID int64, channel domain.ChannelKind, outcome domain.DeliveryOutcome, detail string, elapsed int64) error {
	attempt := &domain.DeliveryAttempt{
		ID:         ident.Next(),
		EventID:    eventID,
		Channel:    channel,
		Outcome:    outcome,
		Detail:     detail,
		DurationMS: elapsed,
	}
	if err := s.repos.DeliveryAttempts().Create(ctx, attempt); err != nil {
		return err
	}
	s.metrics.RecordDelivery(string(channel), string(outcome))
	return nil
}

func buildPayload(event *domain.AutomationEvent) escalation.Payload {
	return escalation.Payload{
		EventID:   event.ID,
		Rule:      string(event.Rule),
		Kind:      string(event.Kind),
		Value:     event.Value,
		Threshold: event.Threshold,
		Message:   formatMessage(event),
		CreatedAt: event.CreatedAt,
	}
}

func formatMessage(event *domain.AutomationEvent) string {
	switch event.Kind {
	case domain.EventReminder:
		return fmt.Sprintf("SLA reminder: %s still at %.2f (threshold %.2f)", event.Rule, event.Value, event.Threshold)
	case domain.EventResolved:
		return fmt.Sprintf("SLA resolved: %s back at %.2f (threshold %.2f)", event.Rule, event.Value, event.Threshold)
	default:
		return fmt.Sprintf("SLA alert: %s at %.2f (threshold %.2f)", event.Rule, event.Value, event.Threshold)
	}
}
