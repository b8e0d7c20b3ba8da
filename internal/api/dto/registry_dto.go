package dto

import (
	"time"

	"github.com/erkinov-wtf/rmbot-sub002/internal/domain"
)

// TechnicianResponse is the staff read model.
type TechnicianResponse struct {
	ID        string                `json:"id"`
	Name      string                `json:"name"`
	Role      domain.TechnicianRole `json:"role"`
	Active    bool                  `json:"active"`
	CreatedAt time.Time             `json:"created_at"`
}

// InventoryItemResponse is the fleet read model.
type InventoryItemResponse struct {
	ID        string                `json:"id"`
	Label     string                `json:"label"`
	State     domain.InventoryState `json:"state"`
	CreatedAt time.Time             `json:"created_at"`
	UpdatedAt time.Time             `json:"updated_at"`
}

// SetInventoryStateRequest moves an item between READY and RETIRED.
type SetInventoryStateRequest struct {
	State domain.InventoryState `json:"state"`
}

// XPEntryResponse is one ledger row.
type XPEntryResponse struct {
	ID        int64              `json:"id"`
	TicketID  string             `json:"ticket_id"`
	Type      domain.XPEntryType `json:"type"`
	Amount    int                `json:"amount"`
	Reference string             `json:"reference"`
	CreatedAt time.Time          `json:"created_at"`
}

// XPSummaryResponse is a technician's ledger plus running total.
type XPSummaryResponse struct {
	TechnicianID string            `json:"technician_id"`
	Total        int               `json:"total"`
	Entries      []XPEntryResponse `json:"entries"`
}
