package service

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/erkinov-wtf/rmbot-sub002/internal/domain"
	"github.com/erkinov-wtf/rmbot-sub002/internal/observability"
	"github.com/erkinov-wtf/rmbot-sub002/internal/queue"
	"github.com/erkinov-wtf/rmbot-sub002/internal/repository"
	"github.com/erkinov-wtf/rmbot-sub002/internal/rules"
	"github.com/erkinov-wtf/rmbot-sub002/pkg/ident"
	apperrors "github.com/erkinov-wtf/rmbot-sub002/pkg/util"
)

// Rolling-window defaults for qc_pass_rate when the rules document leaves
// the knobs unset.
const (
	defaultQCWindowMinutes = 24 * 60
	defaultQCMinSamples    = 1
)

// backlogStatuses are the states counted as backlog pressure: tickets that
// exist but are not being actively worked.
var backlogStatuses = []domain.TicketStatus{
	domain.TicketStatusUnderReview,
	domain.TicketStatusNew,
	domain.TicketStatusAssigned,
	domain.TicketStatusRework,
}

// ruleOrder fixes the evaluation order so runs are deterministic.
var ruleOrder = []domain.RuleKey{
	domain.RuleStockoutDuration,
	domain.RuleBacklogPressure,
	domain.RuleQCPassRate,
}

// RuleMetric is one rule's reading at an evaluation instant.
type RuleMetric struct {
	Rule      domain.RuleKey
	Value     float64
	Threshold float64
	Breach    bool
	Details   map[string]any
}

// EvaluationResult reports one evaluator run: every metric computed plus the
// events the run emitted. Disabled automation fills Metrics and leaves
// Events empty.
type EvaluationResult struct {
	EvaluatedAt time.Time
	Enabled     bool
	Metrics     []RuleMetric
	Events      []domain.AutomationEvent
}

// AutomationService evaluates the SLA rules against current operational
// metrics and appends triggered/reminder/resolved events under the cooldown
// policy. Cooldown state lives in the latest event row per rule, so a
// restarted evaluator picks up exactly where the last one left off.
type AutomationService struct {
	repos    repository.RepoProvider
	rules    RulesSource
	producer queue.Producer
	metrics  *observability.Metrics
	logger   *zap.Logger
}

// AutomationDependencies bundles collaborators for the evaluator.
type AutomationDependencies struct {
	Repos    repository.RepoProvider
	Rules    RulesSource
	Producer queue.Producer
	Metrics  *observability.Metrics
	Logger   *zap.Logger
}

// NewAutomationService constructs the service.
func NewAutomationService(deps AutomationDependencies) *AutomationService {
	return &AutomationService{
		repos:    deps.Repos,
		rules:    deps.Rules,
		producer: deps.Producer,
		metrics:  deps.Metrics,
		logger:   deps.Logger,
	}
}

// Evaluate runs every rule once at now. Emitted events are appended to the
// event log and enqueued for delivery; metric gauges are published even when
// automation is disabled.
func (s *AutomationService) Evaluate(ctx context.Context, now time.Time) (*EvaluationResult, error) {
	snap := s.rules.Active()
	if snap == nil {
		return nil, apperrors.NewInternalError(errors.New("no active rules snapshot"))
	}

	result := &EvaluationResult{
		EvaluatedAt: now,
		Enabled:     snap.Config.SLA.Enabled,
	}
	for _, rule := range ruleOrder {
		metric, err := s.read(ctx, snap, rule, now)
		if err != nil {
			return nil, apperrors.MapError(err)
		}
		result.Metrics = append(result.Metrics, metric)

		if !snap.Config.SLA.Enabled {
			continue
		}
		cfg, ok := snap.Config.SLA.Rule(rule)
		if !ok {
			continue
		}
		kind, emit, err := s.decide(ctx, rule, cfg, metric, now)
		if err != nil {
			return nil, apperrors.MapError(err)
		}
		if !emit {
			continue
		}

		event := &domain.AutomationEvent{
			ID:        ident.Next(),
			Rule:      rule,
			Kind:      kind,
			Value:     metric.Value,
			Threshold: cfg.Threshold,
			Details:   metric.Details,
		}
		if err := s.repos.AutomationEvents().Create(ctx, event); err != nil {
			return nil, apperrors.MapError(err)
		}
		s.metrics.RecordAutomationEvent(string(rule), string(kind))
		s.logger.Info("automation event emitted",
			zap.String("rule", string(rule)),
			zap.String("kind", string(kind)),
			zap.Float64("value", metric.Value),
			zap.Float64("threshold", cfg.Threshold),
		)
		s.enqueue(ctx, snap, event)
		result.Events = append(result.Events, *event)
	}
	return result, nil
}

// Events lists emitted events for the ops surface.
func (s *AutomationService) Events(ctx context.Context, filter repository.AutomationEventFilter) ([]domain.AutomationEvent, error) {
	list, err := s.repos.AutomationEvents().List(ctx, filter)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return list, nil
}

// read computes one rule's metric and publishes its gauge.
func (s *AutomationService) read(ctx context.Context, snap *rules.Snapshot, rule domain.RuleKey, now time.Time) (RuleMetric, error) {
	cfg, configured := snap.Config.SLA.Rule(rule)
	metric := RuleMetric{Rule: rule}
	if configured {
		metric.Threshold = cfg.Threshold
	}

	switch rule {
	case domain.RuleStockoutDuration:
		incident, err := s.repos.Stockouts().GetOpen(ctx)
		if err != nil && !errors.Is(err, pgx.ErrNoRows) {
			return metric, err
		}
		if incident != nil {
			metric.Value = incident.Duration(now).Minutes()
			metric.Details = map[string]any{"incident_id": incident.ID}
			metric.Breach = configured && metric.Value >= cfg.Threshold
		}

	case domain.RuleBacklogPressure:
		count, err := s.repos.Tickets().CountByStatuses(ctx, backlogStatuses)
		if err != nil {
			return metric, err
		}
		s.metrics.SetBacklog(count)
		metric.Value = float64(count)
		metric.Details = map[string]any{"ticket_count": count}
		metric.Breach = configured && metric.Value >= cfg.Threshold

	case domain.RuleQCPassRate:
		window := time.Duration(defaultQCWindowMinutes) * time.Minute
		if configured && cfg.WindowMinutes > 0 {
			window = time.Duration(cfg.WindowMinutes) * time.Minute
		}
		minSamples := defaultQCMinSamples
		if configured && cfg.MinSamples > 0 {
			minSamples = cfg.MinSamples
		}
		counts, err := s.repos.TicketTransitions().CountActionsSince(ctx, now.Add(-window))
		if err != nil {
			return metric, err
		}
		passes := counts[domain.ActionQCPass]
		fails := counts[domain.ActionQCFail]
		samples := passes + fails
		rate := 1.0
		if samples > 0 {
			rate = float64(passes) / float64(samples)
		}
		s.metrics.SetQCPassRate(rate)
		metric.Value = rate
		metric.Details = map[string]any{"passes": passes, "fails": fails, "samples": samples}
		metric.Breach = configured && samples >= minSamples && rate < cfg.Threshold
	}
	return metric, nil
}

// decide maps a reading onto the event kind to emit, if any. An open alert
// is a latest event of kind triggered or reminder; it re-alerts only after
// the cooldown and closes with a single resolved event.
func (s *AutomationService) decide(ctx context.Context, rule domain.RuleKey, cfg rules.SLARule, metric RuleMetric, now time.Time) (domain.EventKind, bool, error) {
	latest, err := s.repos.AutomationEvents().LatestByRule(ctx, rule)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return "", false, err
	}
	alertOpen := latest != nil && (latest.Kind == domain.EventTriggered || latest.Kind == domain.EventReminder)

	switch {
	case metric.Breach && !alertOpen:
		return domain.EventTriggered, true, nil
	case metric.Breach && alertOpen:
		cooldown := time.Duration(cfg.CooldownMinutes) * time.Minute
		if now.Sub(latest.CreatedAt) >= cooldown {
			return domain.EventReminder, true, nil
		}
	case alertOpen:
		return domain.EventResolved, true, nil
	}
	return "", false, nil
}

// enqueue hands an event to the delivery stream. A failed enqueue is logged
// and dropped; the event row stays and the next breach re-alerts.
func (s *AutomationService) enqueue(ctx context.Context, snap *rules.Snapshot, event *domain.AutomationEvent) {
	channels := snap.Config.SLA.ChannelsFor(event.Rule)
	if len(channels) == 0 {
		return
	}
	msg := queue.DeliveryMessage{
		EventID:  event.ID,
		Rule:     string(event.Rule),
		Kind:     string(event.Kind),
		Channels: channels,
	}
	if err := s.producer.Enqueue(ctx, msg); err != nil {
		s.logger.Warn("delivery enqueue failed",
			zap.Int64("event_id", event.ID),
			zap.String("rule", string(event.Rule)),
			zap.Error(err),
		)
	}
}
