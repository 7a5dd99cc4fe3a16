// Package scheduler periodically prefetches configured segment spans
package scheduler

import (
	"errors"
	"fmt"
	"time"

	"github.com/ethpandaops/ephemeris/pkg/swe"
	"github.com/robfig/cron/v3"
)

var (
	// ErrScheduleRequired is returned when the warmup is enabled without a schedule
	ErrScheduleRequired = errors.New("schedule is required")
	// ErrInvalidSpan is returned when a span ends before it starts
	ErrInvalidSpan = errors.New("span must not end before it starts")
	// ErrNoSpans is returned when the warmup is enabled with nothing to prefetch
	ErrNoSpans = errors.New("at least one span is required")
	// ErrInvalidLease is returned when the leader lease is not longer than its renewal interval
	ErrInvalidLease = errors.New("leaseTtl must be greater than renewInterval")
)

// Span is a range of years whose segments are kept resident
type Span struct {
	From   int      `yaml:"from"`
	To     int      `yaml:"to"`
	Bodies []string `yaml:"bodies"`
}

// Config defines warmup scheduling
type Config struct {
	Enabled       bool          `yaml:"enabled" default:"false"`
	Schedule      string        `yaml:"schedule" default:"@every 6h"`
	RunOnStart    bool          `yaml:"runOnStart" default:"true"`
	Spans         []Span        `yaml:"spans"`
	LeaseTTL      time.Duration `yaml:"leaseTtl" default:"10s"`
	RenewInterval time.Duration `yaml:"renewInterval" default:"3s"`
}

// Validate checks if the scheduler configuration is valid
func (c *Config) Validate() error {
	if !c.Enabled {
		return nil
	}

	if c.Schedule == "" {
		return ErrScheduleRequired
	}

	if _, err := parseSchedule(c.Schedule); err != nil {
		return err
	}

	if len(c.Spans) == 0 {
		return ErrNoSpans
	}

	for i, span := range c.Spans {
		if span.To < span.From {
			return fmt.Errorf("%w: span %d (%d to %d)", ErrInvalidSpan, i, span.From, span.To)
		}

		if _, err := span.bodies(); err != nil {
			return fmt.Errorf("span %d: %w", i, err)
		}
	}

	if c.LeaseTTL <= c.RenewInterval {
		return ErrInvalidLease
	}

	return nil
}

// bodies parses the configured body names; an empty list means every body
func (s Span) bodies() ([]swe.Body, error) {
	if len(s.Bodies) == 0 {
		return swe.Bodies(), nil
	}

	out := make([]swe.Body, 0, len(s.Bodies))

	for _, name := range s.Bodies {
		body, err := swe.ParseBody(name)
		if err != nil {
			return nil, err
		}

		out = append(out, body)
	}

	return out, nil
}

func parseSchedule(schedule string) (cron.Schedule, error) {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

	sched, err := parser.Parse(schedule)
	if err != nil {
		return nil, fmt.Errorf("invalid schedule format: %w", err)
	}

	return sched, nil
}
