package handlers

import (
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/erkinov-wtf/rmbot-sub002/internal/api/dto"
	"github.com/erkinov-wtf/rmbot-sub002/internal/domain"
	"github.com/erkinov-wtf/rmbot-sub002/internal/rules"
	apperrors "github.com/erkinov-wtf/rmbot-sub002/pkg/util"
)

// RulesHandler administers the versioned rules document.
type RulesHandler struct {
	provider *rules.Provider
}

// NewRulesHandler constructs handler.
func NewRulesHandler(provider *rules.Provider) *RulesHandler {
	return &RulesHandler{provider: provider}
}

// Publish POST /rules. The document validates as a whole before a version
// row is written; a rejected document changes nothing.
func (h *RulesHandler) Publish(c *fiber.Ctx) error {
	var req dto.PublishRulesRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if req.Document == "" {
		return apperrors.NewValidationError("document is required", nil)
	}

	snap, err := h.provider.Publish(c.UserContext(), []byte(req.Document), actor(c))
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": fiber.Map{"version": snap.Version}})
}

// Activate POST /rules/:version/activate re-activates a published version.
func (h *RulesHandler) Activate(c *fiber.Ctx) error {
	version, err := strconv.Atoi(c.Params("version"))
	if err != nil || version <= 0 {
		return apperrors.NewValidationError("version must be a positive integer", nil)
	}
	snap, err := h.provider.Rollback(c.UserContext(), version)
	if err != nil {
		return apperrors.MapError(err)
	}
	return c.JSON(fiber.Map{"data": fiber.Map{"version": snap.Version}})
}

// Active GET /rules/active returns the live snapshot's version and document.
func (h *RulesHandler) Active(c *fiber.Ctx) error {
	snap := h.provider.Active()
	if snap == nil {
		return apperrors.NewNotFound("active rules", nil)
	}
	stored, err := h.provider.Version(c.UserContext(), snap.Version)
	if err != nil {
		return apperrors.MapError(err)
	}
	return c.JSON(fiber.Map{"data": rulesVersionResponse(stored, true)})
}

// List GET /rules returns published versions, newest first.
func (h *RulesHandler) List(c *fiber.Ctx) error {
	limit := parseInt(c.Query("limit"), 20)
	versions, err := h.provider.Versions(c.UserContext(), limit)
	if err != nil {
		return apperrors.MapError(err)
	}
	items := make([]dto.RulesVersionResponse, 0, len(versions))
	for i := range versions {
		items = append(items, rulesVersionResponse(versions[i], false))
	}
	return c.JSON(fiber.Map{"data": items})
}

// Get GET /rules/:version returns one revision with its document.
func (h *RulesHandler) Get(c *fiber.Ctx) error {
	version, err := strconv.Atoi(c.Params("version"))
	if err != nil || version <= 0 {
		return apperrors.NewValidationError("version must be a positive integer", nil)
	}
	stored, err := h.provider.Version(c.UserContext(), version)
	if err != nil {
		return apperrors.MapError(err)
	}
	return c.JSON(fiber.Map{"data": rulesVersionResponse(stored, true)})
}

func rulesVersionResponse(v domain.RulesVersion, includeDocument bool) dto.RulesVersionResponse {
	resp := dto.RulesVersionResponse{
		Version:   v.Version,
		CreatedBy: v.CreatedBy,
		CreatedAt: v.CreatedAt,
	}
	if includeDocument {
		resp.Document = string(v.Document)
	}
	return resp
}
