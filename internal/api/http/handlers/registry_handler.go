package handlers

import (
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/erkinov-wtf/rmbot-sub002/internal/api/dto"
	"github.com/erkinov-wtf/rmbot-sub002/internal/domain"
	"github.com/erkinov-wtf/rmbot-sub002/internal/repository"
	"github.com/erkinov-wtf/rmbot-sub002/internal/service"
	apperrors "github.com/erkinov-wtf/rmbot-sub002/pkg/util"
)

// RegistryHandler serves the technician and fleet read models.
type RegistryHandler struct {
	registry *service.RegistryService
}

// NewRegistryHandler constructs handler.
func NewRegistryHandler(registry *service.RegistryService) *RegistryHandler {
	return &RegistryHandler{registry: registry}
}

// Technicians GET /technicians.
func (h *RegistryHandler) Technicians(c *fiber.Ctx) error {
	filter := repository.TechnicianFilter{
		Limit: parseInt(c.Query("page_size"), 50),
	}
	filter.Offset = (parseInt(c.Query("page"), 1) - 1) * filter.Limit
	if role := c.Query("role"); role != "" {
		r := domain.TechnicianRole(role)
		filter.Role = &r
	}
	if activeStr := c.Query("active"); activeStr != "" {
		active, err := strconv.ParseBool(activeStr)
		if err != nil {
			return apperrors.NewValidationError("active must be a boolean", nil)
		}
		filter.Active = &active
	}

	technicians, err := h.registry.Technicians(c.UserContext(), filter)
	if err != nil {
		return err
	}
	items := make([]dto.TechnicianResponse, 0, len(technicians))
	for i := range technicians {
		items = append(items, technicianResponse(&technicians[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// Technician GET /technicians/:id.
func (h *RegistryHandler) Technician(c *fiber.Ctx) error {
	technician, err := h.registry.Technician(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": technicianResponse(technician)})
}

// TechnicianXP GET /technicians/:id/xp.
func (h *RegistryHandler) TechnicianXP(c *fiber.Ctx) error {
	technicianID := c.Params("id")
	limit := parseInt(c.Query("page_size"), 50)
	offset := (parseInt(c.Query("page"), 1) - 1) * limit

	entries, total, err := h.registry.TechnicianXP(c.UserContext(), technicianID, limit, offset)
	if err != nil {
		return err
	}
	items := make([]dto.XPEntryResponse, 0, len(entries))
	for _, entry := range entries {
		items = append(items, dto.XPEntryResponse{
			ID:        entry.ID,
			TicketID:  entry.TicketID,
			Type:      entry.Type,
			Amount:    entry.Amount,
			Reference: entry.Reference,
			CreatedAt: entry.CreatedAt,
		})
	}
	return c.JSON(fiber.Map{"data": dto.XPSummaryResponse{
		TechnicianID: technicianID,
		Total:        total,
		Entries:      items,
	}})
}

// Inventory GET /inventory.
func (h *RegistryHandler) Inventory(c *fiber.Ctx) error {
	limit := parseInt(c.Query("page_size"), 50)
	offset := (parseInt(c.Query("page"), 1) - 1) * limit
	var state *domain.InventoryState
	if stateStr := c.Query("state"); stateStr != "" {
		s := domain.InventoryState(stateStr)
		state = &s
	}

	items, err := h.registry.Inventory(c.UserContext(), state, limit, offset)
	if err != nil {
		return err
	}
	resp := make([]dto.InventoryItemResponse, 0, len(items))
	for i := range items {
		resp = append(resp, inventoryItemResponse(&items[i]))
	}
	return c.JSON(fiber.Map{"data": resp})
}

// InventoryItem GET /inventory/:id.
func (h *RegistryHandler) InventoryItem(c *fiber.Ctx) error {
	item, err := h.registry.InventoryItem(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": inventoryItemResponse(item)})
}

// SetInventoryState POST /inventory/:id/state.
func (h *RegistryHandler) SetInventoryState(c *fiber.Ctx) error {
	var req dto.SetInventoryStateRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	item, err := h.registry.SetInventoryState(c.UserContext(), c.Params("id"), req.State)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": inventoryItemResponse(item)})
}

func technicianResponse(t *domain.Technician) dto.TechnicianResponse {
	return dto.TechnicianResponse{
		ID:        t.ID,
		Name:      t.Name,
		Role:      t.Role,
		Active:    t.Active,
		CreatedAt: t.CreatedAt,
	}
}

func inventoryItemResponse(item *domain.InventoryItem) dto.InventoryItemResponse {
	return dto.InventoryItemResponse{
		ID:        item.ID,
		Label:     item.Label,
		State:     item.State,
		CreatedAt: item.CreatedAt,
		UpdatedAt: item.UpdatedAt,
	}
}
