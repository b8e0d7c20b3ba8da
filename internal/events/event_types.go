package events

import (
	"time"

	"github.com/erkinov-wtf/rmbot-sub002/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventTicketCreated  EventType = "ticket_created"
	EventTicketApproved EventType = "ticket_approved"
	EventTicketAssigned EventType = "ticket_assigned"
	EventTicketStarted  EventType = "ticket_started"
	EventTicketWaiting  EventType = "ticket_waiting_qc"
	EventTicketQCPassed EventType = "ticket_qc_passed"
	EventTicketQCFailed EventType = "ticket_qc_failed"
)

// Event represents a domain event emitted by services.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	TicketID  string      `json:"ticket_id"`
	Actor     string      `json:"actor"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// TicketCreatedPayload payload.
type TicketCreatedPayload struct {
	InventoryItemID string               `json:"inventory_item_id"`
	FlagColor       domain.SeverityColor `json:"flag_color"`
	TotalDuration   int                  `json:"total_duration"`
	PartCount       int                  `json:"part_count"`
}

// TicketStatusChangedPayload payload shared by workflow transitions.
type TicketStatusChangedPayload struct {
	OldStatus domain.TicketStatus   `json:"old_status"`
	NewStatus domain.TicketStatus   `json:"new_status"`
	Action    domain.WorkflowAction `json:"action"`
	Note      string                `json:"note,omitempty"`
}

// TicketAssignedPayload payload.
type TicketAssignedPayload struct {
	TechnicianID string `json:"technician_id"`
}

// TicketQCPayload payload for qc_pass and qc_fail.
type TicketQCPayload struct {
	TechnicianID string `json:"technician_id"`
	XPAwarded    int    `json:"xp_awarded,omitempty"`
	FirstPass    bool   `json:"first_pass,omitempty"`
	Reason       string `json:"reason,omitempty"`
}
