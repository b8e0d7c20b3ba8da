package domain

import "time"

// WorkSessionStatus enumerates timer states for a work session.
type WorkSessionStatus string

const (
	SessionStatusRunning WorkSessionStatus = "RUNNING"
	SessionStatusPaused  WorkSessionStatus = "PAUSED"
	SessionStatusStopped WorkSessionStatus = "STOPPED"
)

// SessionAction enumerates timer operations recorded in the session
// transition log.
type SessionAction string

const (
	SessionActionStart  SessionAction = "start"
	SessionActionPause  SessionAction = "pause"
	SessionActionResume SessionAction = "resume"
	SessionActionStop   SessionAction = "stop"
)

// WorkSession is one open-or-closed timer for a (ticket, technician) pair.
// ActiveSeconds is derived; the transition log is the source of truth.
type WorkSession struct {
	ID            string
	TicketID      string
	TechnicianID  string
	Status        WorkSessionStatus
	ActiveSeconds int64
	StartedAt     time.Time
	StoppedAt     *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// WorkSessionTransition is an immutable audit row for one timer state change.
type WorkSessionTransition struct {
	ID           int64
	SessionID    string
	TechnicianID string
	FromStatus   WorkSessionStatus
	ToStatus     WorkSessionStatus
	Action       SessionAction
	CreatedAt    time.Time
}

// ReplayActiveSeconds recomputes active time by walking the ordered
// transition log: every interval that begins with a transition into RUNNING
// counts until the next transition, or until now when the log ends while
// still running. Replaying the same log with the same now always yields the
// same total, which is what makes recovery after a crash safe.
func ReplayActiveSeconds(transitions []WorkSessionTransition, now time.Time) int64 {
	var total int64
	for i, tr := range transitions {
		if tr.ToStatus != SessionStatusRunning {
			continue
		}
		end := now
		if i+1 < len(transitions) {
			end = transitions[i+1].CreatedAt
		}
		if end.After(tr.CreatedAt) {
			total += int64(end.Sub(tr.CreatedAt) / time.Second)
		}
	}
	return total
}

// ReplayPausedSeconds computes pause-budget consumption from the transition
// log, counting only the portion of each PAUSED interval that overlaps
// [dayStart, dayEnd). A pause spanning a business-day boundary charges each
// day for its own share.
func ReplayPausedSeconds(transitions []WorkSessionTransition, dayStart, dayEnd, now time.Time) int64 {
	var total int64
	for i, tr := range transitions {
		if tr.ToStatus != SessionStatusPaused {
			continue
		}
		end := now
		if i+1 < len(transitions) {
			end = transitions[i+1].CreatedAt
		}
		total += overlapSeconds(tr.CreatedAt, end, dayStart, dayEnd)
	}
	return total
}

func overlapSeconds(start, end, boundStart, boundEnd time.Time) int64 {
	if start.Before(boundStart) {
		start = boundStart
	}
	if end.After(boundEnd) {
		end = boundEnd
	}
	if !end.After(start) {
		return 0
	}
	return int64(end.Sub(start) / time.Second)
}
