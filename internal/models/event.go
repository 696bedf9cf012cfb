package models

import (
	"time"

	"github.com/google/uuid"
)

// EventStatus is derived from the event window and the current time. It is never stored.
type EventStatus string

const (
	EventUpcoming EventStatus = "upcoming"
	EventActive   EventStatus = "active"
	EventEnded    EventStatus = "ended"
)

// ChallengeEvent is a running challenge bound to a resolved poll.
type ChallengeEvent struct {
	ID           uuid.UUID        `json:"id"`
	GuildID      string           `json:"guild_id"`
	Category     Category         `json:"category"`
	PollID       uuid.UUID        `json:"poll_id"`
	Template     TemplateSnapshot `json:"template"`
	Keyword      string           `json:"keyword"`
	StartsAt     time.Time        `json:"starts_at"`
	EndsAt       time.Time        `json:"ends_at"`
	Thresholds   Thresholds       `json:"thresholds"`
	Announcement MessageRef       `json:"announcement"`
	Counts       TierCounts       `json:"counts"`
	Completions  map[string]Tier  `json:"-"` // user id -> highest approved tier
	CreatedAt    time.Time        `json:"created_at"`
}

// Status derives the lifecycle status at now.
func (e *ChallengeEvent) Status(now time.Time) EventStatus {
	switch {
	case now.Before(e.StartsAt):
		return EventUpcoming
	case now.Before(e.EndsAt):
		return EventActive
	default:
		return EventEnded
	}
}

// HeldTier returns the highest tier userID has been approved for.
func (e *ChallengeEvent) HeldTier(userID string) Tier {
	if e.Completions == nil {
		return TierNone
	}
	return e.Completions[userID]
}

// Name renders the challenge name from the copied thresholds.
func (e *ChallengeEvent) Name() string {
	snap := e.Template
	snap.Thresholds = e.Thresholds
	return snap.Name()
}
