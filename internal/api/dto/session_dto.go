package dto

import (
	"time"

	"github.com/erkinov-wtf/rmbot-sub002/internal/domain"
)

// StartSessionRequest payload.
type StartSessionRequest struct {
	TechnicianID string `json:"technician_id"`
}

// SessionResponse is the work session summary.
type SessionResponse struct {
	ID            string                   `json:"id"`
	TicketID      string                   `json:"ticket_id"`
	TechnicianID  string                   `json:"technician_id"`
	Status        domain.WorkSessionStatus `json:"status"`
	ActiveSeconds int64                    `json:"active_seconds"`
	StartedAt     time.Time                `json:"started_at"`
	StoppedAt     *time.Time               `json:"stopped_at,omitempty"`
}

// SessionTransitionResponse is one timer audit row.
type SessionTransitionResponse struct {
	ID         int64                    `json:"id"`
	FromStatus domain.WorkSessionStatus `json:"from_status,omitempty"`
	ToStatus   domain.WorkSessionStatus `json:"to_status"`
	Action     domain.SessionAction     `json:"action"`
	CreatedAt  time.Time                `json:"created_at"`
}

// SessionDetailResponse carries the session, its log and the replayed
// active seconds as of the request.
type SessionDetailResponse struct {
	SessionResponse
	Log []SessionTransitionResponse `json:"log"`
}

// PauseBudgetResponse reports a technician's pause budget for the current
// business day.
type PauseBudgetResponse struct {
	TechnicianID     string    `json:"technician_id"`
	DayStart         time.Time `json:"day_start"`
	DayEnd           time.Time `json:"day_end"`
	LimitSeconds     int64     `json:"limit_seconds"`
	ConsumedSeconds  int64     `json:"consumed_seconds"`
	RemainingSeconds int64     `json:"remaining_seconds"`
}
