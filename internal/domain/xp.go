package domain

import (
	"strconv"
	"time"
)

// XPEntryType enumerates the reasons an XP entry can be posted.
type XPEntryType string

const (
	XPTicketReward   XPEntryType = "TICKET_REWARD"
	XPFirstPassBonus XPEntryType = "FIRST_PASS_BONUS"
	XPQCReview       XPEntryType = "QC_REVIEW"
)

// XPEntry is an append-only ledger row crediting a technician. Reference is
// unique per (type, ticket) so a replayed workflow action can never double
// post.
type XPEntry struct {
	ID           int64
	TechnicianID string
	TicketID     string
	Type         XPEntryType
	Amount       int
	Reference    string
	CreatedAt    time.Time
}

// XPReference builds the idempotency key for an entry.
func XPReference(t XPEntryType, ticketID string) string {
	return string(t) + ":" + ticketID
}

// XPReviewReference keys a QC review credit. A ticket can be reviewed more
// than once (fail, rework, pass), so the verdict's transition id is part of
// the reference.
func XPReviewReference(ticketID string, transitionID int64) string {
	return string(XPQCReview) + ":" + ticketID + ":" + strconv.FormatInt(transitionID, 10)
}
