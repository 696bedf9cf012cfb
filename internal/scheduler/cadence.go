package scheduler

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/aura-community/challenges/internal/models"
)

var weekdays = map[string]time.Weekday{
	"sunday":    time.Sunday,
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
}

// Cadence declares when a trigger fires. Calendar cadences use Weekday and At, optionally
// every EveryWeeks weeks counted from the week containing Anchor. In compressed mode only
// Offset is used: the trigger fires Offset into every compressed period.
type Cadence struct {
	Weekday    string        `yaml:"weekday"`
	At         string        `yaml:"at"`
	EveryWeeks int           `yaml:"every_weeks"`
	Anchor     string        `yaml:"anchor"`
	Offset     time.Duration `yaml:"offset"`

	weekday time.Weekday
	hour    int
	minute  int
	anchor  time.Time
}

// Compressed runs every cycle in a fixed period for testing.
type Compressed struct {
	Enabled bool          `yaml:"enabled"`
	Period  time.Duration `yaml:"period"`
}

// Schedule is the YAML schedule file.
type Schedule struct {
	Location     string                                              `yaml:"location"`
	Guilds       []string                                            `yaml:"guilds"`
	DrawWindow   time.Duration                                       `yaml:"draw_window"`
	CatchUpGrace time.Duration                                       `yaml:"catch_up_grace"`
	Compressed   Compressed                                          `yaml:"compressed"`
	Categories   map[models.Category]map[models.TriggerKind]*Cadence `yaml:"categories"`

	loc *time.Location
}

// LoadSchedule reads and validates a schedule file.
func LoadSchedule(path string) (*Schedule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read schedule: %w", err)
	}
	return ParseSchedule(data)
}

// HasGuild reports whether guildID is listed in the schedule.
func (s *Schedule) HasGuild(guildID string) bool {
	for _, g := range s.Guilds {
		if g == guildID {
			return true
		}
	}
	return false
}

// ParseSchedule decodes and validates schedule YAML.
func ParseSchedule(data []byte) (*Schedule, error) {
	var s Schedule
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parse schedule: %w", err)
	}
	if err := s.prepare(); err != nil {
		return nil, err
	}
	return &s, nil
}

func (s *Schedule) prepare() error {
	loc := time.UTC
	if s.Location != "" {
		var err error
		if loc, err = time.LoadLocation(s.Location); err != nil {
			return fmt.Errorf("schedule location: %w", err)
		}
	}
	s.loc = loc
	if s.Compressed.Enabled && s.Compressed.Period <= 0 {
		return fmt.Errorf("compressed period must be positive")
	}
	if s.DrawWindow <= 0 {
		s.DrawWindow = 7 * 24 * time.Hour
	}
	// A compressed cycle draws over its own period only.
	if s.Compressed.Enabled && s.DrawWindow > s.Compressed.Period {
		s.DrawWindow = s.Compressed.Period
	}
	if s.CatchUpGrace <= 0 {
		s.CatchUpGrace = 6 * time.Hour
	}
	for cat, triggers := range s.Categories {
		for kind, c := range triggers {
			if !kind.Valid() {
				return fmt.Errorf("category %s: unknown trigger %q", cat, kind)
			}
			if c == nil {
				return fmt.Errorf("category %s: trigger %s has no cadence", cat, kind)
			}
			if err := c.prepare(s.Compressed); err != nil {
				return fmt.Errorf("category %s trigger %s: %w", cat, kind, err)
			}
		}
	}
	return nil
}

func (c *Cadence) prepare(compressed Compressed) error {
	if compressed.Enabled {
		if c.Offset < 0 || c.Offset >= compressed.Period {
			return fmt.Errorf("offset %s outside compressed period %s", c.Offset, compressed.Period)
		}
		return nil
	}
	wd, ok := weekdays[strings.ToLower(c.Weekday)]
	if !ok {
		return fmt.Errorf("invalid weekday %q", c.Weekday)
	}
	at, err := time.Parse("15:04", c.At)
	if err != nil {
		return fmt.Errorf("invalid time %q, want HH:MM", c.At)
	}
	c.weekday, c.hour, c.minute = wd, at.Hour(), at.Minute()
	if c.EveryWeeks <= 0 {
		c.EveryWeeks = 1
	}
	if c.Anchor != "" {
		if c.anchor, err = time.Parse("2006-01-02", c.Anchor); err != nil {
			return fmt.Errorf("invalid anchor %q, want YYYY-MM-DD", c.Anchor)
		}
	}
	return nil
}

// Cadence returns the cadence of a category trigger.
func (s *Schedule) Cadence(category models.Category, kind models.TriggerKind) (*Cadence, bool) {
	c, ok := s.Categories[category][kind]
	return c, ok
}

// Next returns the first occurrence of c strictly after after.
func (s *Schedule) Next(c *Cadence, after time.Time) time.Time {
	if s.Compressed.Enabled {
		t := after.Truncate(s.Compressed.Period).Add(c.Offset)
		if !t.After(after) {
			t = t.Add(s.Compressed.Period)
		}
		return t
	}
	local := after.In(s.loc)
	y, m, d := local.Date()
	for i := 0; i <= 7*c.EveryWeeks+7; i++ {
		t := time.Date(y, m, d+i, c.hour, c.minute, 0, 0, s.loc)
		if t.Weekday() != c.weekday || !t.After(after) {
			continue
		}
		if c.EveryWeeks > 1 && !c.onWeek(t) {
			continue
		}
		return t
	}
	// unreachable for a prepared cadence
	return after.Add(7 * 24 * time.Hour)
}

// Previous returns the most recent occurrence of c at or before at within one cycle.
func (s *Schedule) Previous(c *Cadence, at time.Time) time.Time {
	span := 7 * 24 * time.Hour * time.Duration(c.EveryWeeks)
	if s.Compressed.Enabled {
		span = s.Compressed.Period
	}
	t := s.Next(c, at.Add(-span-2*time.Hour))
	for {
		n := s.Next(c, t)
		if n.After(at) {
			return t
		}
		t = n
	}
}

// onWeek reports whether t falls in a week that is a multiple of EveryWeeks from the anchor.
func (c *Cadence) onWeek(t time.Time) bool {
	weeks := (civilDays(weekStart(t)) - civilDays(weekStart(c.anchor))) / 7
	return ((weeks%c.EveryWeeks)+c.EveryWeeks)%c.EveryWeeks == 0
}

func weekStart(t time.Time) time.Time {
	y, m, d := t.Date()
	offset := (int(t.Weekday()) + 6) % 7
	return time.Date(y, m, d-offset, 0, 0, 0, 0, time.UTC)
}

func civilDays(t time.Time) int {
	y, m, d := t.Date()
	return int(time.Date(y, m, d, 0, 0, 0, 0, time.UTC).Unix() / 86400)
}
