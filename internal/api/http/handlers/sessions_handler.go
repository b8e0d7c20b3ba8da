package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/erkinov-wtf/rmbot-sub002/internal/api/dto"
	"github.com/erkinov-wtf/rmbot-sub002/internal/domain"
	"github.com/erkinov-wtf/rmbot-sub002/internal/service"
	apperrors "github.com/erkinov-wtf/rmbot-sub002/pkg/util"
)

// SessionsHandler exposes the work session timer.
type SessionsHandler struct {
	sessions *service.SessionService
}

// NewSessionsHandler constructs handler.
func NewSessionsHandler(sessions *service.SessionService) *SessionsHandler {
	return &SessionsHandler{sessions: sessions}
}

// Start POST /tickets/:id/sessions.
func (h *SessionsHandler) Start(c *fiber.Ctx) error {
	var req dto.StartSessionRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	session, err := h.sessions.Start(c.UserContext(), c.Params("id"), req.TechnicianID)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": sessionResponse(session)})
}

// ListByTicket GET /tickets/:id/sessions.
func (h *SessionsHandler) ListByTicket(c *fiber.Ctx) error {
	sessions, err := h.sessions.ListByTicket(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	items := make([]dto.SessionResponse, 0, len(sessions))
	for i := range sessions {
		items = append(items, sessionResponse(&sessions[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// Get GET /sessions/:id.
func (h *SessionsHandler) Get(c *fiber.Ctx) error {
	session, log, err := h.sessions.Get(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": sessionDetail(session, log)})
}

// Pause POST /sessions/:id/pause.
func (h *SessionsHandler) Pause(c *fiber.Ctx) error {
	session, err := h.sessions.Pause(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": sessionResponse(session)})
}

// Resume POST /sessions/:id/resume.
func (h *SessionsHandler) Resume(c *fiber.Ctx) error {
	session, err := h.sessions.Resume(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": sessionResponse(session)})
}

// Stop POST /sessions/:id/stop.
func (h *SessionsHandler) Stop(c *fiber.Ctx) error {
	session, err := h.sessions.Stop(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": sessionResponse(session)})
}

// PauseBudget GET /technicians/:id/pause-budget.
func (h *SessionsHandler) PauseBudget(c *fiber.Ctx) error {
	budget, err := h.sessions.PauseBudgetStatus(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.PauseBudgetResponse{
		TechnicianID:     budget.TechnicianID,
		DayStart:         budget.DayStart,
		DayEnd:           budget.DayEnd,
		LimitSeconds:     budget.LimitSeconds,
		ConsumedSeconds:  budget.ConsumedSeconds,
		RemainingSeconds: budget.RemainingSeconds,
	}})
}

func sessionResponse(session *domain.WorkSession) dto.SessionResponse {
	return dto.SessionResponse{
		ID:            session.ID,
		TicketID:      session.TicketID,
		TechnicianID:  session.TechnicianID,
		Status:        session.Status,
		ActiveSeconds: session.ActiveSeconds,
		StartedAt:     session.StartedAt,
		StoppedAt:     session.StoppedAt,
	}
}

func sessionDetail(session *domain.WorkSession, log []domain.WorkSessionTransition) dto.SessionDetailResponse {
	transitions := make([]dto.SessionTransitionResponse, 0, len(log))
	for _, tr := range log {
		transitions = append(transitions, dto.SessionTransitionResponse{
			ID:         tr.ID,
			FromStatus: tr.FromStatus,
			ToStatus:   tr.ToStatus,
			Action:     tr.Action,
			CreatedAt:  tr.CreatedAt,
		})
	}
	return dto.SessionDetailResponse{
		SessionResponse: sessionResponse(session),
		Log:             transitions,
	}
}
