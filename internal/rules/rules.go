// Package rules parses, validates and serves the operational rules
// document: XP amounts, pause budgets, business hours, stockout cadence and
// SLA automation thresholds. Services read an immutable snapshot; admins
// publish new versions which activate atomically.
package rules

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/erkinov-wtf/rmbot-sub002/internal/calendar"
	"github.com/erkinov-wtf/rmbot-sub002/internal/domain"
)

// TicketXP configures reward amounts per severity color plus bonuses.
type TicketXP struct {
	Green          int `yaml:"green"`
	Yellow         int `yaml:"yellow"`
	Red            int `yaml:"red"`
	FirstPassBonus int `yaml:"first_pass_bonus"`
	QCReview       int `yaml:"qc_review"`
}

// Amount returns the base reward for a severity color.
func (x TicketXP) Amount(color domain.SeverityColor) int {
	switch color {
	case domain.SeverityRed:
		return x.Red
	case domain.SeverityYellow:
		return x.Yellow
	default:
		return x.Green
	}
}

// WorkSessionRules configures the timer engine.
type WorkSessionRules struct {
	DailyPauseLimitMinutes int `yaml:"daily_pause_limit_minutes"`
}

// DayWindow is one open interval in "HH:MM" local wall time.
type DayWindow struct {
	Open  string `yaml:"open"`
	Close string `yaml:"close"`
}

// StockoutRules configures the detector cadence.
type StockoutRules struct {
	CheckIntervalSeconds int `yaml:"check_interval_seconds"`
}

// SLARule is one automation threshold with its cooldown. WindowMinutes and
// MinSamples shape rolling-window rules; rules that evaluate an instant
// value leave them zero.
type SLARule struct {
	Threshold       float64 `yaml:"threshold"`
	CooldownMinutes int     `yaml:"cooldown_minutes"`
	WindowMinutes   int     `yaml:"window_minutes,omitempty"`
	MinSamples      int     `yaml:"min_samples,omitempty"`
}

// EscalationRoute maps a rule key to its delivery channels.
type EscalationRoute struct {
	Rule     string   `yaml:"rule"`
	Channels []string `yaml:"channels"`
}

// SLARules configures the automation evaluator and escalation routing.
type SLARules struct {
	Enabled         bool               `yaml:"enabled"`
	Rules           map[string]SLARule `yaml:"rules"`
	Routes          []EscalationRoute  `yaml:"routes"`
	DefaultChannels []string           `yaml:"default_channels"`
}

// Config is the root of the rules document.
type Config struct {
	Timezone      string                 `yaml:"timezone"`
	TicketXP      TicketXP               `yaml:"ticket_xp"`
	WorkSession   WorkSessionRules       `yaml:"work_session"`
	BusinessHours map[string][]DayWindow `yaml:"business_hours"`
	Holidays      []string               `yaml:"holidays"`
	Stockout      StockoutRules          `yaml:"stockout"`
	SLA           SLARules               `yaml:"sla"`
}

// ChannelsFor resolves delivery channels for a rule key, falling back to
// the default channel list when no route matches.
func (s SLARules) ChannelsFor(rule domain.RuleKey) []string {
	for _, r := range s.Routes {
		if r.Rule == string(rule) {
			return r.Channels
		}
	}
	return s.DefaultChannels
}

// Rule returns the threshold config for a rule key.
func (s SLARules) Rule(key domain.RuleKey) (SLARule, bool) {
	r, ok := s.Rules[string(key)]
	return r, ok
}

// Parse decodes a YAML rules document. It does not validate; callers run
// Validate before activating a version.
func Parse(doc []byte) (*Config, error) {
	var cfg Config
	dec := yaml.NewDecoder(strings.NewReader(string(doc)))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decode rules document: %w", err)
	}
	return &cfg, nil
}

// Snapshot is one immutable, validated rules version with its derived
// calendar. Readers obtain it once per operation and never see a mix of
// two versions.
type Snapshot struct {
	Version  int
	Config   *Config
	Calendar *calendar.Calendar
}

// BuildSnapshot parses, validates and compiles a document into a snapshot.
func BuildSnapshot(version int, doc []byte) (*Snapshot, error) {
	cfg, err := Parse(doc)
	if err != nil {
		return nil, err
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	cal, err := buildCalendar(cfg)
	if err != nil {
		return nil, err
	}
	return &Snapshot{Version: version, Config: cfg, Calendar: cal}, nil
}

var weekdayNames = map[string]time.Weekday{
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
	"sunday":    time.Sunday,
}

func buildCalendar(cfg *Config) (*calendar.Calendar, error) {
	windows := make(map[time.Weekday][]calendar.Window, len(cfg.BusinessHours))
	for day, list := range cfg.BusinessHours {
		wd, ok := weekdayNames[strings.ToLower(day)]
		if !ok {
			return nil, fmt.Errorf("unknown weekday %q", day)
		}
		for _, w := range list {
			open, err := parseClock(w.Open)
			if err != nil {
				return nil, fmt.Errorf("weekday %s: %w", day, err)
			}
			closeAt, err := parseClock(w.Close)
			if err != nil {
				return nil, fmt.Errorf("weekday %s: %w", day, err)
			}
			windows[wd] = append(windows[wd], calendar.Window{OpenMinute: open, CloseMinute: closeAt})
		}
	}
	return calendar.New(cfg.Timezone, windows, cfg.Holidays)
}

func parseClock(s string) (int, error) {
	parts := strings.SplitN(s, ":", 2)
	if len(parts) != 2 {
		return 0, fmt.Errorf("invalid clock value %q", s)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 {
		return 0, fmt.Errorf("invalid clock value %q", s)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return 0, fmt.Errorf("invalid clock value %q", s)
	}
	return h*60 + m, nil
}
