package domain

import "time"

// TicketStatus enumerates lifecycle states for repair tickets.
type TicketStatus string

const (
	TicketStatusUnderReview TicketStatus = "UNDER_REVIEW"
	TicketStatusNew         TicketStatus = "NEW"
	TicketStatusAssigned    TicketStatus = "ASSIGNED"
	TicketStatusInProgress  TicketStatus = "IN_PROGRESS"
	TicketStatusWaitingQC   TicketStatus = "WAITING_QC"
	TicketStatusRework      TicketStatus = "REWORK"
	TicketStatusDone        TicketStatus = "DONE"
)

// IsTerminal reports whether the status ends the ticket lifecycle.
func (s TicketStatus) IsTerminal() bool {
	return s == TicketStatusDone
}

// WorkflowAction enumerates the state-machine operations recorded in the
// transition log.
type WorkflowAction string

const (
	ActionCreate        WorkflowAction = "create"
	ActionApproveReview WorkflowAction = "approve_review"
	ActionAssign        WorkflowAction = "assign"
	ActionStart         WorkflowAction = "start"
	ActionWaitingQC     WorkflowAction = "move_to_waiting_qc"
	ActionQCPass        WorkflowAction = "qc_pass"
	ActionQCFail        WorkflowAction = "qc_fail"
)

// SeverityColor flags how urgent a part replacement is. RED outranks YELLOW
// outranks GREEN; a ticket inherits the highest color among its parts.
type SeverityColor string

const (
	SeverityGreen  SeverityColor = "GREEN"
	SeverityYellow SeverityColor = "YELLOW"
	SeverityRed    SeverityColor = "RED"
)

var severityRank = map[SeverityColor]int{
	SeverityGreen:  0,
	SeverityYellow: 1,
	SeverityRed:    2,
}

// Ticket is the aggregate for one repair job on one inventory item.
type Ticket struct {
	ID              string
	InventoryItemID string
	TechnicianID    *string
	Status          TicketStatus
	Parts           []TicketPartSpec
	TotalDuration   int // planned minutes, sum of part estimates
	FlagColor       SeverityColor
	XPAmount        int
	IsManual        bool // metrics entered by an admin, not recomputed
	Note            string
	ApprovedBy      *string
	ApprovedAt      *time.Time
	AssignedAt      *time.Time
	StartedAt       *time.Time
	FinishedAt      *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
	DeletedAt       *time.Time
}

// TicketPartSpec describes one part to service within a ticket.
type TicketPartSpec struct {
	ID               string
	TicketID         string
	PartName         string
	Severity         SeverityColor
	EstimatedMinutes int
	Position         int
	CreatedAt        time.Time
	DeletedAt        *time.Time
}

// TotalDuration sums part estimates in minutes.
func TotalDuration(parts []TicketPartSpec) int {
	total := 0
	for _, part := range parts {
		total += part.EstimatedMinutes
	}
	return total
}

// MaxSeverity returns the highest severity color across parts, GREEN when
// there are none.
func MaxSeverity(parts []TicketPartSpec) SeverityColor {
	color := SeverityGreen
	for _, part := range parts {
		if severityRank[part.Severity] > severityRank[color] {
			color = part.Severity
		}
	}
	return color
}
