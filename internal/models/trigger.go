package models

import "time"

// TriggerKind is one of the scheduled steps of a category cycle.
type TriggerKind string

const (
	TriggerPollOpen   TriggerKind = "poll_open"
	TriggerEventStart TriggerKind = "event_start"
	TriggerPrizeDraw  TriggerKind = "prize_draw"
)

// Valid reports whether k is a known trigger.
func (k TriggerKind) Valid() bool {
	switch k {
	case TriggerPollOpen, TriggerEventStart, TriggerPrizeDraw:
		return true
	}
	return false
}

// TriggerState is the persisted schedule position of one trigger.
type TriggerState struct {
	GuildID     string      `json:"guild_id"`
	Category    Category    `json:"category"`
	Trigger     TriggerKind `json:"trigger"`
	LastFiredAt *time.Time  `json:"last_fired_at,omitempty"`
	NextFireAt  time.Time   `json:"next_fire_at"`
	LastError   string      `json:"last_error,omitempty"`
	UpdatedAt   time.Time   `json:"updated_at"`
}

// UserStats holds cumulative per-member counters.
type UserStats struct {
	GuildID   string `json:"guild_id"`
	UserID    string `json:"user_id"`
	VotesCast int    `json:"votes_cast"`
	PrizesWon int    `json:"prizes_won"`
}

// GuildSettings maps a community to its announcement destinations. Rows are written by
// the setup tooling; the engine only reads them.
type GuildSettings struct {
	GuildID             string `json:"guild_id"`
	AnnouncementChannel string `json:"announcement_channel"`
	ReviewChannel       string `json:"review_channel"`
	DrawChannel         string `json:"draw_channel"`
	ReviewerRole        string `json:"reviewer_role"`
}
