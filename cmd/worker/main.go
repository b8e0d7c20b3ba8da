package main

import (
	"context"
	"errors"
	"log"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/erkinov-wtf/rmbot-sub002/internal/config"
	"github.com/erkinov-wtf/rmbot-sub002/internal/escalation"
	"github.com/erkinov-wtf/rmbot-sub002/internal/observability"
	"github.com/erkinov-wtf/rmbot-sub002/internal/persistence"
	"github.com/erkinov-wtf/rmbot-sub002/internal/queue"
	"github.com/erkinov-wtf/rmbot-sub002/internal/repository"
	"github.com/erkinov-wtf/rmbot-sub002/internal/rules"
	"github.com/erkinov-wtf/rmbot-sub002/internal/service"
	"github.com/erkinov-wtf/rmbot-sub002/internal/worker"
	"github.com/erkinov-wtf/rmbot-sub002/pkg/ident"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	if err := ident.Init(cfg.Ident.NodeID); err != nil {
		logger.Fatal("failed to init id generator", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	redis := persistence.NewRedis(cfg.Redis, logger)
	defer redis.Close()

	pool := pg.PoolHandle()
	repos := repository.NewRepositories(pool)
	tx := repository.NewTxRunner(pool)

	rulesProvider := rules.NewProvider(repository.NewRulesRepository(pool), redis.Client, logger)
	if err := rulesProvider.Load(ctx); err != nil {
		logger.Fatal("failed to load rules", zap.Error(err))
	}

	metrics := observability.NewMetrics()
	producer := queue.NewRedisProducer(redis.Client, cfg.Worker.DeliveryStream, logger)

	stockouts := service.NewStockoutService(service.StockoutDependencies{
		Tx:      tx,
		Repos:   repos,
		Rules:   rulesProvider,
		Metrics: metrics,
		Logger:  logger,
	})
	automation := service.NewAutomationService(service.AutomationDependencies{
		Repos:    repos,
		Rules:    rulesProvider,
		Producer: producer,
		Metrics:  metrics,
		Logger:   logger,
	})
	sessions := service.NewSessionService(service.SessionDependencies{
		Tx:     tx,
		Repos:  repos,
		Rules:  rulesProvider,
		Logger: logger,
	})

	stream := escalation.NewStreamChannel(cfg.Kafka)
	defer stream.Close() //nolint:errcheck
	escalations := service.NewEscalationService(service.EscalationDependencies{
		Repos: repos,
		Channels: []escalation.Channel{
			escalation.NewTelegramChannel(cfg.Escalation),
			escalation.NewWebhookChannel(cfg.Escalation),
			stream,
		},
		Timeout: cfg.Escalation.DeliveryTimeout(),
		Metrics: metrics,
		Logger:  logger,
	})

	consumer, err := queue.NewRedisConsumer(redis.Client, queue.ConsumerConfig{
		Stream:   cfg.Worker.DeliveryStream,
		Group:    cfg.Worker.DeliveryGroup,
		Consumer: cfg.Worker.DeliveryConsumer,
	})
	if err != nil {
		logger.Fatal("failed to init delivery consumer", zap.Error(err))
	}

	runner := worker.NewRunner(worker.RunnerDependencies{
		Config:     cfg.Worker,
		Rules:      rulesProvider,
		Stockouts:  stockouts,
		Automation: automation,
		Sessions:   sessions,
		Escalation: escalations,
		Consumer:   consumer,
		Logger:     logger,
	})

	logger.Info("worker started", zap.String("consumer", cfg.Worker.DeliveryConsumer))
	if err := runner.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatal("worker stopped", zap.Error(err))
	}
	logger.Info("worker shut down")
}
