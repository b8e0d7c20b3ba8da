package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/erkinov-wtf/rmbot-sub002/internal/api/http"
	"github.com/erkinov-wtf/rmbot-sub002/internal/api/http/handlers"
	"github.com/erkinov-wtf/rmbot-sub002/internal/config"
	"github.com/erkinov-wtf/rmbot-sub002/internal/events"
	"github.com/erkinov-wtf/rmbot-sub002/internal/notify"
	"github.com/erkinov-wtf/rmbot-sub002/internal/observability"
	"github.com/erkinov-wtf/rmbot-sub002/internal/persistence"
	"github.com/erkinov-wtf/rmbot-sub002/internal/queue"
	"github.com/erkinov-wtf/rmbot-sub002/internal/repository"
	"github.com/erkinov-wtf/rmbot-sub002/internal/rules"
	"github.com/erkinov-wtf/rmbot-sub002/internal/service"
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

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	if cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

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

	dispatcher := events.NewInMemoryDispatcher()
	notifications := service.NewNotificationService(repos, notify.NewTelegram(cfg.Escalation), logger)
	notifications.RegisterHandlers(dispatcher)

	workflow := service.NewWorkflowService(service.WorkflowDependencies{
		Tx:         tx,
		Repos:      repos,
		Rules:      rulesProvider,
		Dispatcher: dispatcher,
		Metrics:    metrics,
		Logger:     logger,
	})
	sessions := service.NewSessionService(service.SessionDependencies{
		Tx:     tx,
		Repos:  repos,
		Rules:  rulesProvider,
		Logger: logger,
	})
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
	// The API process never delivers escalations itself, it only serves the
	// attempt audit, so no channels are wired here.
	escalations := service.NewEscalationService(service.EscalationDependencies{
		Repos:   repos,
		Metrics: metrics,
		Logger:  logger,
	})
	registry := service.NewRegistryService(repos, logger)

	app := fiber.New(fiber.Config{AppName: cfg.App.Name})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:   handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, pg, redis),
		Tickets:  handlers.NewTicketsHandler(workflow),
		Sessions: handlers.NewSessionsHandler(sessions),
		Rules:    handlers.NewRulesHandler(rulesProvider),
		Ops:      handlers.NewOpsHandler(stockouts, automation, escalations),
		Registry: handlers.NewRegistryHandler(registry),
		Metrics:  metrics,
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	_ = app.Shutdown()
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
