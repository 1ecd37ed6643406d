// Package schedule turns the configured timing policy into concrete trigger
// times. A Policy satisfies robfig/cron's Schedule interface, so it plugs
// directly into the cron runner as the single source of truth for when the
// next crawl round happens.
package schedule

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/news-crawler/internal/config"
)

// clock is a wall-clock time of day in minutes since midnight
type clock int

func (c clock) String() string {
	return fmt.Sprintf("%02d:%02d", int(c)/60, int(c)%60)
}

// Policy computes the next trigger time for the configured schedule type.
// It is stateless: every call derives the answer from the given time only,
// so trigger times missed while the process was down are skipped, never
// replayed.
type Policy struct {
	typ            string
	interval       time.Duration
	clocks         []clock // sorted, for daily (one entry) and custom
	runImmediately bool
}

// NewPolicy builds a Policy from the schedule configuration. All parsing
// happens here; a malformed time string or an impossible parameter is a
// *config.ConfigError at startup, never a runtime surprise.
func NewPolicy(cfg config.ScheduleConfig) (*Policy, error) {
	p := &Policy{typ: cfg.Type, runImmediately: cfg.RunImmediately}

	switch cfg.Type {
	case config.ScheduleInterval:
		if cfg.IntervalMinutes <= 0 {
			return nil, &config.ConfigError{Key: "INTERVAL_MINUTES", Reason: "must be a positive integer"}
		}
		p.interval = time.Duration(cfg.IntervalMinutes) * time.Minute

	case config.ScheduleHourly:
		p.interval = time.Hour

	case config.ScheduleDaily:
		c, err := parseClock(cfg.DailyTime)
		if err != nil {
			return nil, &config.ConfigError{Key: "DAILY_TIME", Reason: err.Error()}
		}
		p.clocks = []clock{c}

	case config.ScheduleCustom:
		if len(cfg.CustomTimes) == 0 {
			return nil, &config.ConfigError{Key: "CUSTOM_TIMES", Reason: "must list at least one HH:MM time"}
		}
		seen := make(map[clock]bool)
		for _, s := range cfg.CustomTimes {
			c, err := parseClock(s)
			if err != nil {
				return nil, &config.ConfigError{Key: "CUSTOM_TIMES", Reason: err.Error()}
			}
			if !seen[c] {
				seen[c] = true
				p.clocks = append(p.clocks, c)
			}
		}
		sort.Slice(p.clocks, func(i, j int) bool { return p.clocks[i] < p.clocks[j] })

	default:
		return nil, &config.ConfigError{Key: "SCHEDULE_TYPE", Reason: fmt.Sprintf("unknown type %q", cfg.Type)}
	}

	return p, nil
}

// Next returns the next trigger time strictly after t. It implements
// cron.Schedule. For interval/hourly the trigger floats relative to the last
// fire; for daily/custom it snaps to the configured wall-clock times, so each
// listed time fires at most once per calendar day.
func (p *Policy) Next(t time.Time) time.Time {
	switch p.typ {
	case config.ScheduleInterval, config.ScheduleHourly:
		return t.Add(p.interval)
	default:
		return p.nextClock(t)
	}
}

// nextClock finds the soonest configured time of day after t, wrapping to
// the earliest entry tomorrow when all of today's have passed.
func (p *Policy) nextClock(t time.Time) time.Time {
	for _, c := range p.clocks {
		candidate := time.Date(t.Year(), t.Month(), t.Day(), int(c)/60, int(c)%60, 0, 0, t.Location())
		if candidate.After(t) {
			return candidate
		}
	}
	first := p.clocks[0]
	tomorrow := t.AddDate(0, 0, 1)
	return time.Date(tomorrow.Year(), tomorrow.Month(), tomorrow.Day(), int(first)/60, int(first)%60, 0, 0, t.Location())
}

// RunImmediately reports whether a round should run at startup before the
// first scheduled trigger.
func (p *Policy) RunImmediately() bool {
	return p.runImmediately
}

// Describe returns a human-readable summary for startup logging
func (p *Policy) Describe() string {
	switch p.typ {
	case config.ScheduleInterval:
		return fmt.Sprintf("every %s", p.interval)
	case config.ScheduleHourly:
		return "every hour"
	case config.ScheduleDaily:
		return fmt.Sprintf("daily at %s", p.clocks[0])
	default:
		times := make([]string, len(p.clocks))
		for i, c := range p.clocks {
			times[i] = c.String()
		}
		return fmt.Sprintf("daily at %s", strings.Join(times, ", "))
	}
}

// parseClock parses an HH:MM string into minutes since midnight
func parseClock(s string) (clock, error) {
	t, err := time.Parse("15:04", strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("%q is not a valid HH:MM time", s)
	}
	return clock(t.Hour()*60 + t.Minute()), nil
}
