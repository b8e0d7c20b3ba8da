package handlers

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/erkinov-wtf/rmbot-sub002/internal/api/dto"
	"github.com/erkinov-wtf/rmbot-sub002/internal/domain"
	"github.com/erkinov-wtf/rmbot-sub002/internal/repository"
	"github.com/erkinov-wtf/rmbot-sub002/internal/service"
	apperrors "github.com/erkinov-wtf/rmbot-sub002/pkg/util"
)

// OpsHandler exposes the operational surface: stockout state, on-demand
// engine runs and the automation event audit.
type OpsHandler struct {
	stockouts  *service.StockoutService
	automation *service.AutomationService
	escalation *service.EscalationService
}

// NewOpsHandler constructs handler.
func NewOpsHandler(stockouts *service.StockoutService, automation *service.AutomationService, escalation *service.EscalationService) *OpsHandler {
	return &OpsHandler{stockouts: stockouts, automation: automation, escalation: escalation}
}

// CurrentStockout GET /ops/stockout.
func (h *OpsHandler) CurrentStockout(c *fiber.Ctx) error {
	incident, err := h.stockouts.Current(c.UserContext())
	if err != nil {
		return err
	}
	if incident == nil {
		return c.JSON(fiber.Map{"data": nil})
	}
	return c.JSON(fiber.Map{"data": stockoutResponse(incident, time.Now())})
}

// CheckStockout POST /ops/stockout/check runs the detector once.
func (h *OpsHandler) CheckStockout(c *fiber.Ctx) error {
	incident, err := h.stockouts.Check(c.UserContext(), time.Now())
	if err != nil {
		return err
	}
	if incident == nil {
		return c.JSON(fiber.Map{"data": nil})
	}
	return c.JSON(fiber.Map{"data": stockoutResponse(incident, time.Now())})
}

// StockoutHistory GET /ops/stockout/history.
func (h *OpsHandler) StockoutHistory(c *fiber.Ctx) error {
	limit := parseInt(c.Query("limit"), 20)
	page := parseInt(c.Query("page"), 1)
	incidents, err := h.stockouts.History(c.UserContext(), limit, (page-1)*limit)
	if err != nil {
		return err
	}
	now := time.Now()
	items := make([]dto.StockoutResponse, 0, len(incidents))
	for i := range incidents {
		items = append(items, stockoutResponse(&incidents[i], now))
	}
	return c.JSON(fiber.Map{"data": items})
}

// Evaluate POST /ops/evaluate runs the SLA evaluator once.
func (h *OpsHandler) Evaluate(c *fiber.Ctx) error {
	result, err := h.automation.Evaluate(c.UserContext(), time.Now())
	if err != nil {
		return err
	}

	metrics := make([]dto.RuleMetricResponse, 0, len(result.Metrics))
	for _, m := range result.Metrics {
		metrics = append(metrics, dto.RuleMetricResponse{
			Rule:      m.Rule,
			Value:     m.Value,
			Threshold: m.Threshold,
			Breach:    m.Breach,
			Details:   m.Details,
		})
	}
	events := make([]dto.AutomationEventResponse, 0, len(result.Events))
	for i := range result.Events {
		events = append(events, automationEventResponse(&result.Events[i]))
	}
	return c.JSON(fiber.Map{"data": dto.EvaluationResponse{
		EvaluatedAt: result.EvaluatedAt,
		Enabled:     result.Enabled,
		Metrics:     metrics,
		Events:      events,
	}})
}

// AutomationEvents GET /ops/automation-events.
func (h *OpsHandler) AutomationEvents(c *fiber.Ctx) error {
	filter := repository.AutomationEventFilter{
		Limit: parseInt(c.Query("limit"), 50),
	}
	page := parseInt(c.Query("page"), 1)
	filter.Offset = (page - 1) * filter.Limit
	if rule := c.Query("rule"); rule != "" {
		key := domain.RuleKey(rule)
		filter.Rule = &key
	}
	if kind := c.Query("kind"); kind != "" {
		k := domain.EventKind(kind)
		filter.Kind = &k
	}

	events, err := h.automation.Events(c.UserContext(), filter)
	if err != nil {
		return err
	}
	items := make([]dto.AutomationEventResponse, 0, len(events))
	for i := range events {
		items = append(items, automationEventResponse(&events[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// EventDeliveries GET /ops/automation-events/:id/deliveries.
func (h *OpsHandler) EventDeliveries(c *fiber.Ctx) error {
	eventID, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil {
		return apperrors.NewValidationError("event id must be an integer", nil)
	}
	attempts, err := h.escalation.Attempts(c.UserContext(), eventID)
	if err != nil {
		return err
	}
	items := make([]dto.DeliveryAttemptResponse, 0, len(attempts))
	for _, attempt := range attempts {
		items = append(items, dto.DeliveryAttemptResponse{
			ID:         attempt.ID,
			EventID:    attempt.EventID,
			Channel:    attempt.Channel,
			Outcome:    attempt.Outcome,
			Detail:     attempt.Detail,
			DurationMS: attempt.DurationMS,
			CreatedAt:  attempt.CreatedAt,
		})
	}
	return c.JSON(fiber.Map{"data": items})
}

func stockoutResponse(incident *domain.StockoutIncident, now time.Time) dto.StockoutResponse {
	return dto.StockoutResponse{
		ID:              incident.ID,
		StartedAt:       incident.StartedAt,
		EndedAt:         incident.EndedAt,
		StartCount:      incident.StartCount,
		EndCount:        incident.EndCount,
		DurationSeconds: int64(incident.Duration(now) / time.Second),
	}
}

func automationEventResponse(event *domain.AutomationEvent) dto.AutomationEventResponse {
	return dto.AutomationEventResponse{
		ID:        event.ID,
		Rule:      event.Rule,
		Kind:      event.Kind,
		Value:     event.Value,
		Threshold: event.Threshold,
		Details:   event.Details,
		CreatedAt: event.CreatedAt,
	}
}
