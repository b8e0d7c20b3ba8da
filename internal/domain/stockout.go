package domain

import "time"

// StockoutIncident records one continuous interval during which the ready
// fleet count stayed at zero inside the business window. EndedAt and
// EndCount are nil while the incident is open; at most one open incident
// exists at a time.
type StockoutIncident struct {
	ID         string
	StartedAt  time.Time
	EndedAt    *time.Time
	StartCount int
	EndCount   *int
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Open reports whether the incident is still running.
func (s StockoutIncident) Open() bool {
	return s.EndedAt == nil
}

// Duration returns how long the incident has lasted, using now for open
// incidents.
func (s StockoutIncident) Duration(now time.Time) time.Duration {
	end := now
	if s.EndedAt != nil {
		end = *s.EndedAt
	}
	if end.Before(s.StartedAt) {
		return 0
	}
	return end.Sub(s.StartedAt)
}
