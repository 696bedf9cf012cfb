package models

import (
	"time"
)

const drawKeyLayout = "20060102T1504Z"

// DrawKey is the id of the draw aggregating [start, end).
func DrawKey(start, end time.Time) string {
	return start.UTC().Format(drawKeyLayout) + "_" + end.UTC().Format(drawKeyLayout)
}

// PrizeDraw is a snapshot of prize-eligible entries for a window and its winner.
type PrizeDraw struct {
	ID            string         `json:"id"`
	GuildID       string         `json:"guild_id"`
	WindowStart   time.Time      `json:"window_start"`
	WindowEnd     time.Time      `json:"window_end"`
	Participants  map[string]int `json:"participants"`
	Tickets       []string       `json:"-"`
	TotalEntries  int            `json:"total_entries"`
	TierBreakdown TierCounts     `json:"tier_breakdown"`
	WinnerID      string         `json:"winner_id,omitempty"`
	RolledAt      *time.Time     `json:"rolled_at,omitempty"`
	AnnouncedAt   *time.Time     `json:"announced_at,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
}

// HasWinner reports whether the draw has been rolled successfully.
func (d *PrizeDraw) HasWinner() bool {
	return d.WinnerID != ""
}
