// Package calendar evaluates business windows for the repair shop: which
// instants count as working time for stockout detection and which interval
// bounds a technician's daily pause budget.
package calendar

import (
	"fmt"
	"time"
)

// Window is one open interval within a weekday, in minutes from midnight.
type Window struct {
	OpenMinute  int
	CloseMinute int
}

// Calendar answers business-window questions in a fixed rules timezone.
// Instances are immutable; build a new one when the rules change.
type Calendar struct {
	loc      *time.Location
	windows  map[time.Weekday][]Window
	holidays map[string]struct{}
}

// New builds a calendar for the given IANA timezone name. Windows map each
// weekday to its open intervals; holidays are YYYY-MM-DD dates in the same
// timezone with no working time at all.
func New(timezone string, windows map[time.Weekday][]Window, holidays []string) (*Calendar, error) {
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", timezone, err)
	}
	hs := make(map[string]struct{}, len(holidays))
	for _, h := range holidays {
		hs[h] = struct{}{}
	}
	ws := make(map[time.Weekday][]Window, len(windows))
	for d, list := range windows {
		ws[d] = append([]Window(nil), list...)
	}
	return &Calendar{loc: loc, windows: ws, holidays: hs}, nil
}

// Location returns the rules timezone.
func (c *Calendar) Location() *time.Location {
	return c.loc
}

// IsHoliday reports whether the local date of t is configured as a holiday.
func (c *Calendar) IsHoliday(t time.Time) bool {
	_, ok := c.holidays[t.In(c.loc).Format("2006-01-02")]
	return ok
}

// InBusinessWindow reports whether t falls inside a working interval: a
// non-holiday date whose weekday has a window covering the local time of
// day. The close minute is exclusive.
func (c *Calendar) InBusinessWindow(t time.Time) bool {
	local := t.In(c.loc)
	if c.IsHoliday(local) {
		return false
	}
	minute := local.Hour()*60 + local.Minute()
	for _, w := range c.windows[local.Weekday()] {
		if minute >= w.OpenMinute && minute < w.CloseMinute {
			return true
		}
	}
	return false
}

// DayBounds returns the [start, end) interval of the local calendar day
// containing t. Pause budgets reset at this boundary.
func (c *Calendar) DayBounds(t time.Time) (time.Time, time.Time) {
	local := t.In(c.loc)
	start := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, c.loc)
	return start, start.AddDate(0, 0, 1)
}
