package scheduler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aura-community/challenges/internal/models"
)

func utc(y int, m time.Month, d, h, min int) time.Time {
	return time.Date(y, m, d, h, min, 0, 0, time.UTC)
}

func TestNextWeekly(t *testing.T) {
	s, err := ParseSchedule([]byte(`
guilds: [g1]
categories:
  combat:
    poll_open: {weekday: monday, at: "18:00"}
`))
	require.NoError(t, err)
	c, ok := s.Cadence(models.CategoryCombat, models.TriggerPollOpen)
	require.True(t, ok)

	tests := []struct {
		name  string
		after time.Time
		want  time.Time
	}{
		{name: "later the same day", after: utc(2026, 3, 9, 17, 0), want: utc(2026, 3, 9, 18, 0)},
		{name: "exactly at occurrence", after: utc(2026, 3, 9, 18, 0), want: utc(2026, 3, 16, 18, 0)},
		{name: "mid week", after: utc(2026, 3, 11, 9, 30), want: utc(2026, 3, 16, 18, 0)},
		{name: "sunday night", after: utc(2026, 3, 15, 23, 59), want: utc(2026, 3, 16, 18, 0)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, s.Next(c, tt.after))
		})
	}
}

func TestNextEveryOtherWeek(t *testing.T) {
	s, err := ParseSchedule([]byte(`
categories:
  seasonal:
    poll_open: {weekday: monday, at: "12:00", every_weeks: 2, anchor: "2026-03-02"}
`))
	require.NoError(t, err)
	c, _ := s.Cadence(models.CategorySeasonal, models.TriggerPollOpen)

	assert.Equal(t, utc(2026, 3, 2, 12, 0), s.Next(c, utc(2026, 3, 1, 0, 0)))
	assert.Equal(t, utc(2026, 3, 16, 12, 0), s.Next(c, utc(2026, 3, 3, 0, 0)))
	assert.Equal(t, utc(2026, 3, 30, 12, 0), s.Next(c, utc(2026, 3, 16, 12, 0)))
}

func TestNextCompressed(t *testing.T) {
	s, err := ParseSchedule([]byte(`
compressed: {enabled: true, period: 30m}
categories:
  combat:
    poll_open: {offset: 0s}
    event_start: {offset: 5m}
    prize_draw: {offset: 25m}
`))
	require.NoError(t, err)
	c, _ := s.Cadence(models.CategoryCombat, models.TriggerEventStart)

	assert.Equal(t, utc(2026, 3, 9, 10, 5), s.Next(c, utc(2026, 3, 9, 10, 4)))
	assert.Equal(t, utc(2026, 3, 9, 10, 35), s.Next(c, utc(2026, 3, 9, 10, 7)))
	assert.Equal(t, utc(2026, 3, 9, 10, 35), s.Next(c, utc(2026, 3, 9, 10, 5)))
}

func TestPrevious(t *testing.T) {
	s, err := ParseSchedule([]byte(`
categories:
  combat:
    prize_draw: {weekday: monday, at: "17:00"}
`))
	require.NoError(t, err)
	c, _ := s.Cadence(models.CategoryCombat, models.TriggerPrizeDraw)

	assert.Equal(t, utc(2026, 3, 9, 17, 0), s.Previous(c, utc(2026, 3, 10, 8, 0)))
	assert.Equal(t, utc(2026, 3, 9, 17, 0), s.Previous(c, utc(2026, 3, 9, 17, 0)))
	assert.Equal(t, utc(2026, 3, 2, 17, 0), s.Previous(c, utc(2026, 3, 9, 16, 59)))
}

func TestParseScheduleDefaults(t *testing.T) {
	s, err := ParseSchedule([]byte(`guilds: [g1]`))
	require.NoError(t, err)
	assert.Equal(t, 7*24*time.Hour, s.DrawWindow)
	assert.Equal(t, 6*time.Hour, s.CatchUpGrace)
}

func TestParseScheduleCompressedDrawWindow(t *testing.T) {
	s, err := ParseSchedule([]byte("draw_window: 336h\ncompressed: {enabled: true, period: 30m}"))
	require.NoError(t, err)
	assert.Equal(t, 30*time.Minute, s.DrawWindow)

	s, err = ParseSchedule([]byte("compressed: {enabled: true, period: 1h}"))
	require.NoError(t, err)
	assert.Equal(t, time.Hour, s.DrawWindow)

	s, err = ParseSchedule([]byte("draw_window: 20m\ncompressed: {enabled: true, period: 1h}"))
	require.NoError(t, err)
	assert.Equal(t, 20*time.Minute, s.DrawWindow)
}

func TestParseScheduleErrors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{name: "bad weekday", yaml: "categories: {combat: {poll_open: {weekday: funday, at: \"18:00\"}}}"},
		{name: "bad time", yaml: "categories: {combat: {poll_open: {weekday: monday, at: \"6pm\"}}}"},
		{name: "unknown trigger", yaml: "categories: {combat: {lunch: {weekday: monday, at: \"12:00\"}}}"},
		{name: "bad anchor", yaml: "categories: {combat: {poll_open: {weekday: monday, at: \"12:00\", anchor: soon}}}"},
		{name: "offset outside period", yaml: "compressed: {enabled: true, period: 10m}\ncategories: {combat: {poll_open: {offset: 10m}}}"},
		{name: "compressed without period", yaml: "compressed: {enabled: true}"},
		{name: "unknown location", yaml: "location: Nowhere/Atlantis"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseSchedule([]byte(tt.yaml))
			assert.Error(t, err)
		})
	}
}

func TestLoadShippedSchedule(t *testing.T) {
	s, err := LoadSchedule("../../schedule.yaml")
	require.NoError(t, err)
	assert.Equal(t, 336*time.Hour, s.DrawWindow)

	c, ok := s.Cadence(models.CategoryCombat, models.TriggerPrizeDraw)
	require.True(t, ok)
	assert.Equal(t, utc(2026, 1, 19, 17, 0), s.Next(c, utc(2026, 1, 6, 0, 0)))

	_, ok = s.Cadence(models.CategorySkilling, models.TriggerPrizeDraw)
	assert.False(t, ok)
}
