// Package worker hosts the background engines: the stockout detector, the
// SLA evaluator, the pause budget enforcer, the rules refresher and the
// escalation delivery consumer.
package worker

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/erkinov-wtf/rmbot-sub002/internal/config"
	"github.com/erkinov-wtf/rmbot-sub002/internal/queue"
	"github.com/erkinov-wtf/rmbot-sub002/internal/rules"
	"github.com/erkinov-wtf/rmbot-sub002/internal/service"
)

const (
	defaultStockoutInterval = 30 * time.Second
	defaultTickTimeout      = 20 * time.Second
	readRetryBackoff        = time.Second
)

// Runner drives the periodic engines until its context is canceled.
type Runner struct {
	cfg        config.WorkerConfig
	rules      *rules.Provider
	stockouts  *service.StockoutService
	automation *service.AutomationService
	sessions   *service.SessionService
	escalation *service.EscalationService
	consumer   *queue.RedisConsumer
	logger     *zap.Logger
}

// RunnerDependencies bundles the engines a runner drives.
type RunnerDependencies struct {
	Config     config.WorkerConfig
	Rules      *rules.Provider
	Stockouts  *service.StockoutService
	Automation *service.AutomationService
	Sessions   *service.SessionService
	Escalation *service.EscalationService
	Consumer   *queue.RedisConsumer
	Logger     *zap.Logger
}

// NewRunner constructs the runner.
func NewRunner(deps RunnerDependencies) *Runner {
	return &Runner{
		cfg:        deps.Config,
		rules:      deps.Rules,
		stockouts:  deps.Stockouts,
		automation: deps.Automation,
		sessions:   deps.Sessions,
		escalation: deps.Escalation,
		consumer:   deps.Consumer,
		logger:     deps.Logger,
	}
}

// Run starts every loop and blocks until the context ends or a loop fails
// unrecoverably. Tick-level failures are logged and the loop keeps going.
func (r *Runner) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return r.stockoutLoop(ctx) })
	g.Go(func() error { return r.evaluateLoop(ctx) })
	g.Go(func() error { return r.pauseEnforceLoop(ctx) })
	g.Go(func() error { return r.rulesRefreshLoop(ctx) })
	g.Go(func() error { return r.deliveryLoop(ctx) })
	return g.Wait()
}

// stockoutLoop paces the detector from the active rules so a published
// change of cadence takes effect without a restart.
func (r *Runner) stockoutLoop(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(r.stockoutInterval()):
		}
		r.tick(ctx, "stockout check", func(tctx context.Context) error {
			_, err := r.stockouts.Check(tctx, time.Now())
			return err
		})
	}
}

func (r *Runner) stockoutInterval() time.Duration {
	if snap := r.rules.Active(); snap != nil && snap.Config.Stockout.CheckIntervalSeconds > 0 {
		return time.Duration(snap.Config.Stockout.CheckIntervalSeconds) * time.Second
	}
	return defaultStockoutInterval
}

func (r *Runner) evaluateLoop(ctx context.Context) error {
	ticker := time.NewTicker(positive(r.cfg.EvaluateInterval(), time.Minute))
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
		r.tick(ctx, "sla evaluation", func(tctx context.Context) error {
			_, err := r.automation.Evaluate(tctx, time.Now())
			return err
		})
	}
}

func (r *Runner) pauseEnforceLoop(ctx context.Context) error {
	ticker := time.NewTicker(positive(r.cfg.PauseEnforceInterval(), 30*time.Second))
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
		r.tick(ctx, "pause budget enforcement", func(tctx context.Context) error {
			resumed, err := r.sessions.EnforcePauseBudgets(tctx)
			if resumed > 0 {
				r.logger.Info("pause budgets enforced", zap.Int("resumed", resumed))
			}
			return err
		})
	}
}

func (r *Runner) rulesRefreshLoop(ctx context.Context) error {
	ticker := time.NewTicker(positive(r.cfg.RulesRefreshInterval(), time.Minute))
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
		r.tick(ctx, "rules refresh", r.rules.Load)
	}
}

// deliveryLoop consumes the escalation stream. Retryable outcomes requeue
// with the attempt counter bumped until the ceiling, then the message is
// acked away with its attempt rows as the record.
func (r *Runner) deliveryLoop(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		messages, err := r.consumer.Read(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			r.logger.Error("delivery stream read failed", zap.Error(err))
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(readRetryBackoff):
			}
			continue
		}
		for _, msg := range messages {
			r.handleDelivery(ctx, msg)
		}
	}
}

func (r *Runner) handleDelivery(ctx context.Context, msg queue.Message) {
	retry, err := r.escalation.Deliver(ctx, msg.Delivery)
	if err != nil {
		r.logger.Error("delivery processing failed",
			zap.Int64("event_id", msg.Delivery.EventID),
			zap.Int("attempt", msg.Delivery.Attempt),
			zap.Error(err),
		)
		retry = true
	}

	if retry && msg.Delivery.Attempt < r.consumer.MaxAttempts() {
		if err := r.consumer.Requeue(ctx, msg); err != nil {
			r.logger.Error("delivery requeue failed",
				zap.Int64("event_id", msg.Delivery.EventID),
				zap.Error(err),
			)
		}
		return
	}
	if retry {
		r.logger.Warn("delivery attempts exhausted",
			zap.Int64("event_id", msg.Delivery.EventID),
			zap.Int("attempt", msg.Delivery.Attempt),
		)
	}
	if err := r.consumer.Ack(ctx, msg); err != nil {
		r.logger.Error("delivery ack failed",
			zap.Int64("event_id", msg.Delivery.EventID),
			zap.Error(err),
		)
	}
}

// tick runs one engine pass under the configured deadline.
func (r *Runner) tick(ctx context.Context, name string, fn func(context.Context) error) {
	tctx, cancel := context.WithTimeout(ctx, positive(r.cfg.TickTimeout(), defaultTickTimeout))
	defer cancel()
	if err := fn(tctx); err != nil {
		r.logger.Error(name+" failed", zap.Error(err))
	}
}

func positive(d, fallback time.Duration) time.Duration {
	if d <= 0 {
		return fallback
	}
	return d
}
