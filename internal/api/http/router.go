package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/erkinov-wtf/rmbot-sub002/internal/api/http/handlers"
	"github.com/erkinov-wtf/rmbot-sub002/internal/observability"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health   *handlers.HealthHandler
	Tickets  *handlers.TicketsHandler
	Sessions *handlers.SessionsHandler
	Rules    *handlers.RulesHandler
	Ops      *handlers.OpsHandler
	Registry *handlers.RegistryHandler
	Metrics  *observability.Metrics
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(cfg.Metrics.Registry(), promhttp.HandlerOpts{})))

	tickets := app.Group("/tickets")
	tickets.Post("", cfg.Tickets.Create)
	tickets.Get("", cfg.Tickets.List)
	tickets.Get("/:id", cfg.Tickets.Get)
	tickets.Delete("/:id", cfg.Tickets.Delete)
	tickets.Get("/:id/history", cfg.Tickets.History)
	tickets.Post("/:id/approve-review", cfg.Tickets.ApproveReview)
	tickets.Post("/:id/assign", cfg.Tickets.Assign)
	tickets.Post("/:id/start", cfg.Tickets.Start)
	tickets.Post("/:id/waiting-qc", cfg.Tickets.MoveToWaitingQC)
	tickets.Post("/:id/qc-pass", cfg.Tickets.QCPass)
	tickets.Post("/:id/qc-fail", cfg.Tickets.QCFail)

	tickets.Post("/:id/sessions", cfg.Sessions.Start)
	tickets.Get("/:id/sessions", cfg.Sessions.ListByTicket)

	sessions := app.Group("/sessions")
	sessions.Get("/:id", cfg.Sessions.Get)
	sessions.Post("/:id/pause", cfg.Sessions.Pause)
	sessions.Post("/:id/resume", cfg.Sessions.Resume)
	sessions.Post("/:id/stop", cfg.Sessions.Stop)

	technicians := app.Group("/technicians")
	technicians.Get("", cfg.Registry.Technicians)
	technicians.Get("/:id", cfg.Registry.Technician)
	technicians.Get("/:id/xp", cfg.Registry.TechnicianXP)
	technicians.Get("/:id/pause-budget", cfg.Sessions.PauseBudget)

	inventory := app.Group("/inventory")
	inventory.Get("", cfg.Registry.Inventory)
	inventory.Get("/:id", cfg.Registry.InventoryItem)
	inventory.Post("/:id/state", cfg.Registry.SetInventoryState)

	rules := app.Group("/rules")
	rules.Post("", cfg.Rules.Publish)
	rules.Get("", cfg.Rules.List)
	rules.Get("/active", cfg.Rules.Active)
	rules.Get("/:version", cfg.Rules.Get)
	rules.Post("/:version/activate", cfg.Rules.Activate)

	ops := app.Group("/ops")
	ops.Get("/stockout", cfg.Ops.CurrentStockout)
	ops.Get("/stockout/history", cfg.Ops.StockoutHistory)
	ops.Post("/stockout/check", cfg.Ops.CheckStockout)
	ops.Post("/evaluate", cfg.Ops.Evaluate)
	ops.Get("/automation-events", cfg.Ops.AutomationEvents)
	ops.Get("/automation-events/:id/deliveries", cfg.Ops.EventDeliveries)
}
