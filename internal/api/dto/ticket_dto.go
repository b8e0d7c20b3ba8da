package dto

import (
	"time"

	"github.com/erkinov-wtf/rmbot-sub002/internal/domain"
)

// TicketPartRequest describes one part spec at intake.
type TicketPartRequest struct {
	PartName         string               `json:"part_name"`
	Severity         domain.SeverityColor `json:"severity"`
	EstimatedMinutes int                  `json:"estimated_minutes"`
}

// ManualMetricsRequest overrides the computed ticket metrics.
type ManualMetricsRequest struct {
	TotalDuration int                  `json:"total_duration"`
	FlagColor     domain.SeverityColor `json:"flag_color"`
	XPAmount      int                  `json:"xp_amount"`
}

// CreateTicketRequest payload.
type CreateTicketRequest struct {
	InventoryItemID string                `json:"inventory_item_id"`
	Note            string                `json:"note"`
	Parts           []TicketPartRequest   `json:"parts"`
	Manual          *ManualMetricsRequest `json:"manual,omitempty"`
}

// AssignTicketRequest payload.
type AssignTicketRequest struct {
	TechnicianID string `json:"technician_id"`
}

// QCFailRequest payload.
type QCFailRequest struct {
	Note string `json:"note"`
}

// TicketPartResponse is one part spec on a ticket.
type TicketPartResponse struct {
	ID               string               `json:"id"`
	PartName         string               `json:"part_name"`
	Severity         domain.SeverityColor `json:"severity"`
	EstimatedMinutes int                  `json:"estimated_minutes"`
	Position         int                  `json:"position"`
}

// TicketResponse is the summary projection.
type TicketResponse struct {
	ID              string               `json:"id"`
	InventoryItemID string               `json:"inventory_item_id"`
	TechnicianID    *string              `json:"technician_id"`
	Status          domain.TicketStatus  `json:"status"`
	TotalDuration   int                  `json:"total_duration"`
	FlagColor       domain.SeverityColor `json:"flag_color"`
	XPAmount        int                  `json:"xp_amount"`
	IsManual        bool                 `json:"is_manual"`
	Note            string               `json:"note,omitempty"`
	ApprovedBy      *string              `json:"approved_by,omitempty"`
	ApprovedAt      *time.Time           `json:"approved_at,omitempty"`
	AssignedAt      *time.Time           `json:"assigned_at,omitempty"`
	StartedAt       *time.Time           `json:"started_at,omitempty"`
	FinishedAt      *time.Time           `json:"finished_at,omitempty"`
	CreatedAt       time.Time            `json:"created_at"`
	UpdatedAt       time.Time            `json:"updated_at"`
}

// TicketDetailResponse carries the full read model: ticket, part specs and
// the transition log.
type TicketDetailResponse struct {
	TicketResponse
	Parts   []TicketPartResponse `json:"parts"`
	History []TransitionResponse `json:"history"`
}

// TransitionResponse is one workflow audit row.
type TransitionResponse struct {
	ID         int64                 `json:"id"`
	FromStatus domain.TicketStatus   `json:"from_status,omitempty"`
	ToStatus   domain.TicketStatus   `json:"to_status"`
	Action     domain.WorkflowAction `json:"action"`
	Actor      string                `json:"actor"`
	Note       string                `json:"note,omitempty"`
	Metadata   map[string]any        `json:"metadata,omitempty"`
	CreatedAt  time.Time             `json:"created_at"`
}
