package rules

import (
	"fmt"
	"strings"
	"time"

	"github.com/erkinov-wtf/rmbot-sub002/internal/domain"
)

var knownRuleKeys = map[string]struct{}{
	string(domain.RuleStockoutDuration): {},
	string(domain.RuleBacklogPressure):  {},
	string(domain.RuleQCPassRate):       {},
}

var knownChannels = map[string]struct{}{
	string(domain.ChannelTelegram): {},
	string(domain.ChannelWebhook):  {},
	string(domain.ChannelStream):   {},
}

// Validate checks a parsed document for activation. It walks the whole
// config and reports every problem at once so an admin can fix a document
// in a single round trip.
func Validate(cfg *Config) error {
	var problems []string
	add := func(format string, args ...any) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}

	if cfg.Timezone == "" {
		add("timezone is required")
	} else if _, err := time.LoadLocation(cfg.Timezone); err != nil {
		add("timezone %q is not a valid IANA zone", cfg.Timezone)
	}

	if cfg.TicketXP.Green < 0 || cfg.TicketXP.Yellow < 0 || cfg.TicketXP.Red < 0 {
		add("ticket_xp amounts must be non-negative")
	}
	if cfg.TicketXP.FirstPassBonus < 0 {
		add("ticket_xp.first_pass_bonus must be non-negative")
	}
	if cfg.TicketXP.QCReview < 0 {
		add("ticket_xp.qc_review must be non-negative")
	}

	if cfg.WorkSession.DailyPauseLimitMinutes < 0 {
		add("work_session.daily_pause_limit_minutes must be non-negative")
	}

	for day, list := range cfg.BusinessHours {
		if _, ok := weekdayNames[strings.ToLower(day)]; !ok {
			add("business_hours: unknown weekday %q", day)
			continue
		}
		for _, w := range list {
			open, err := parseClock(w.Open)
			if err != nil {
				add("business_hours.%s: %v", day, err)
				continue
			}
			closeAt, err := parseClock(w.Close)
			if err != nil {
				add("business_hours.%s: %v", day, err)
				continue
			}
			if open >= closeAt {
				add("business_hours.%s: window %s-%s must open before it closes", day, w.Open, w.Close)
			}
		}
	}

	for _, h := range cfg.Holidays {
		if _, err := time.Parse("2006-01-02", h); err != nil {
			add("holidays: %q is not a YYYY-MM-DD date", h)
		}
	}

	if cfg.Stockout.CheckIntervalSeconds <= 0 {
		add("stockout.check_interval_seconds must be positive")
	}

	for key, rule := range cfg.SLA.Rules {
		if _, ok := knownRuleKeys[key]; !ok {
			add("sla.rules: unknown rule %q", key)
		}
		if rule.Threshold <= 0 {
			add("sla.rules.%s: threshold must be positive", key)
		}
		if key == string(domain.RuleQCPassRate) && rule.Threshold > 1 {
			add("sla.rules.%s: threshold is a ratio and must not exceed 1", key)
		}
		if rule.CooldownMinutes < 0 {
			add("sla.rules.%s: cooldown_minutes must be non-negative", key)
		}
		if rule.WindowMinutes < 0 {
			add("sla.rules.%s: window_minutes must be non-negative", key)
		}
		if rule.MinSamples < 0 {
			add("sla.rules.%s: min_samples must be non-negative", key)
		}
	}

	for _, route := range cfg.SLA.Routes {
		if _, ok := knownRuleKeys[route.Rule]; !ok {
			add("sla.routes: unknown rule %q", route.Rule)
		}
		if len(route.Channels) == 0 {
			add("sla.routes: rule %q routes to no channels", route.Rule)
		}
		for _, ch := range route.Channels {
			if _, ok := knownChannels[ch]; !ok {
				add("sla.routes: unknown channel %q", ch)
			}
		}
	}
	for _, ch := range cfg.SLA.DefaultChannels {
		if _, ok := knownChannels[ch]; !ok {
			add("sla.default_channels: unknown channel %q", ch)
		}
	}

	if len(problems) > 0 {
		return fmt.Errorf("rules document invalid: %s", strings.Join(problems, "; "))
	}
	return nil
}
