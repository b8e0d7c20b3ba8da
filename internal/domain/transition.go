package domain

import "time"

// TicketTransition is an immutable audit row appended once per successful
// workflow action.
type TicketTransition struct {
	ID         int64
	TicketID   string
	FromStatus TicketStatus
	ToStatus   TicketStatus
	Action     WorkflowAction
	Actor      string
	Note       string
	Metadata   map[string]any
	CreatedAt  time.Time
}
