package handlers

import (
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/erkinov-wtf/rmbot-sub002/internal/api/dto"
	"github.com/erkinov-wtf/rmbot-sub002/internal/domain"
	"github.com/erkinov-wtf/rmbot-sub002/internal/repository"
	"github.com/erkinov-wtf/rmbot-sub002/internal/service"
	apperrors "github.com/erkinov-wtf/rmbot-sub002/pkg/util"
)

// ActorLocalKey is where the actor middleware stores the caller identity.
const ActorLocalKey = "actor"

// TicketsHandler exposes the workflow state machine over HTTP.
type TicketsHandler struct {
	workflow *service.WorkflowService
}

// NewTicketsHandler constructs handler.
func NewTicketsHandler(workflow *service.WorkflowService) *TicketsHandler {
	return &TicketsHandler{workflow: workflow}
}

// Create POST /tickets.
func (h *TicketsHandler) Create(c *fiber.Ctx) error {
	var req dto.CreateTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	input := service.TicketCreateInput{
		InventoryItemID: req.InventoryItemID,
		Note:            req.Note,
	}
	for _, part := range req.Parts {
		input.Parts = append(input.Parts, service.TicketPartInput{
			PartName:         part.PartName,
			Severity:         part.Severity,
			EstimatedMinutes: part.EstimatedMinutes,
		})
	}
	if req.Manual != nil {
		input.Manual = &service.ManualMetrics{
			TotalDuration: req.Manual.TotalDuration,
			FlagColor:     req.Manual.FlagColor,
			XPAmount:      req.Manual.XPAmount,
		}
	}

	ticket, err := h.workflow.CreateTicket(c.UserContext(), actor(c), input)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": ticketResponse(ticket)})
}

// List GET /tickets.
func (h *TicketsHandler) List(c *fiber.Ctx) error {
	tickets, err := h.workflow.List(c.UserContext(), parseTicketQuery(c))
	if err != nil {
		return err
	}
	items := make([]dto.TicketResponse, 0, len(tickets))
	for i := range tickets {
		items = append(items, ticketResponse(&tickets[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// Get GET /tickets/:id.
func (h *TicketsHandler) Get(c *fiber.Ctx) error {
	ticket, err := h.workflow.Get(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	history, err := h.workflow.History(c.UserContext(), ticket.ID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketDetail(ticket, history)})
}

// History GET /tickets/:id/history.
func (h *TicketsHandler) History(c *fiber.Ctx) error {
	history, err := h.workflow.History(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	items := make([]dto.TransitionResponse, 0, len(history))
	for i := range history {
		items = append(items, transitionResponse(&history[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// ApproveReview POST /tickets/:id/approve-review.
func (h *TicketsHandler) ApproveReview(c *fiber.Ctx) error {
	ticket, err := h.workflow.ApproveReview(c.UserContext(), c.Params("id"), actor(c))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketResponse(ticket)})
}

// Assign POST /tickets/:id/assign.
func (h *TicketsHandler) Assign(c *fiber.Ctx) error {
	var req dto.AssignTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	ticket, err := h.workflow.Assign(c.UserContext(), c.Params("id"), req.TechnicianID, actor(c))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketResponse(ticket)})
}

// Start POST /tickets/:id/start.
func (h *TicketsHandler) Start(c *fiber.Ctx) error {
	ticket, err := h.workflow.Start(c.UserContext(), c.Params("id"), actor(c))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketResponse(ticket)})
}

// MoveToWaitingQC POST /tickets/:id/waiting-qc.
func (h *TicketsHandler) MoveToWaitingQC(c *fiber.Ctx) error {
	ticket, err := h.workflow.MoveToWaitingQC(c.UserContext(), c.Params("id"), actor(c))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketResponse(ticket)})
}

// QCPass POST /tickets/:id/qc-pass.
func (h *TicketsHandler) QCPass(c *fiber.Ctx) error {
	ticket, err := h.workflow.QCPass(c.UserContext(), c.Params("id"), actor(c))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketResponse(ticket)})
}

// QCFail POST /tickets/:id/qc-fail.
func (h *TicketsHandler) QCFail(c *fiber.Ctx) error {
	var req dto.QCFailRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	ticket, err := h.workflow.QCFail(c.UserContext(), c.Params("id"), actor(c), req.Note)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketResponse(ticket)})
}

// Delete DELETE /tickets/:id.
func (h *TicketsHandler) Delete(c *fiber.Ctx) error {
	if err := h.workflow.SoftDelete(c.UserContext(), c.Params("id"), actor(c)); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// actor reads the caller identity installed by the actor middleware.
func actor(c *fiber.Ctx) string {
	if v, ok := c.Locals(ActorLocalKey).(string); ok {
		return v
	}
	return ""
}

func parseTicketQuery(c *fiber.Ctx) repository.TicketFilter {
	filter := repository.TicketFilter{}
	if statusStr := c.Query("status"); statusStr != "" {
		for _, part := range strings.Split(statusStr, ",") {
			filter.Statuses = append(filter.Statuses, domain.TicketStatus(strings.TrimSpace(part)))
		}
	}
	if itemID := c.Query("inventory_item_id"); itemID != "" {
		filter.InventoryItemID = &itemID
	}
	if technicianID := c.Query("technician_id"); technicianID != "" {
		filter.TechnicianID = &technicianID
	}
	if from := parseTime(c.Query("created_from")); from != nil {
		filter.CreatedFrom = from
	}
	if to := parseTime(c.Query("created_to")); to != nil {
		filter.CreatedTo = to
	}
	page := parseInt(c.Query("page"), 1)
	pageSize := parseInt(c.Query("page_size"), 20)
	filter.Offset = (page - 1) * pageSize
	filter.Limit = pageSize
	return filter
}

func parseTime(val string) *time.Time {
	if val == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339, val)
	if err != nil {
		return nil
	}
	return &t
}

func parseInt(val string, def int) int {
	if val == "" {
		return def
	}
	parsed, err := strconv.Atoi(val)
	if err != nil || parsed <= 0 {
		return def
	}
	return parsed
}

func ticketResponse(ticket *domain.Ticket) dto.TicketResponse {
	return dto.TicketResponse{
		ID:              ticket.ID,
		InventoryItemID: ticket.InventoryItemID,
		TechnicianID:    ticket.TechnicianID,
		Status:          ticket.Status,
		TotalDuration:   ticket.TotalDuration,
		FlagColor:       ticket.FlagColor,
		XPAmount:        ticket.XPAmount,
		IsManual:        ticket.IsManual,
		Note:            ticket.Note,
		ApprovedBy:      ticket.ApprovedBy,
		ApprovedAt:      ticket.ApprovedAt,
		AssignedAt:      ticket.AssignedAt,
		StartedAt:       ticket.StartedAt,
		FinishedAt:      ticket.FinishedAt,
		CreatedAt:       ticket.CreatedAt,
		UpdatedAt:       ticket.UpdatedAt,
	}
}

func ticketDetail(ticket *domain.Ticket, history []domain.TicketTransition) dto.TicketDetailResponse {
	parts := make([]dto.TicketPartResponse, 0, len(ticket.Parts))
	for _, part := range ticket.Parts {
		parts = append(parts, dto.TicketPartResponse{
			ID:               part.ID,
			PartName:         part.PartName,
			Severity:         part.Severity,
			EstimatedMinutes: part.EstimatedMinutes,
			Position:         part.Position,
		})
	}
	transitions := make([]dto.TransitionResponse, 0, len(history))
	for i := range history {
		transitions = append(transitions, transitionResponse(&history[i]))
	}
	return dto.TicketDetailResponse{
		TicketResponse: ticketResponse(ticket),
		Parts:          parts,
		History:        transitions,
	}
}

func transitionResponse(tr *domain.TicketTransition) dto.TransitionResponse {
	return dto.TransitionResponse{
		ID:         tr.ID,
		FromStatus: tr.FromStatus,
		ToStatus:   tr.ToStatus,
		Action:     tr.Action,
		Actor:      tr.Actor,
		Note:       tr.Note,
		Metadata:   tr.Metadata,
		CreatedAt:  tr.CreatedAt,
	}
}
