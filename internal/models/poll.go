package models

import (
	"time"

	"github.com/google/uuid"
)

// MessageRef identifies a message posted through the notification sink.
type MessageRef struct {
	ChannelID string `json:"channel_id,omitempty"`
	MessageID string `json:"message_id,omitempty"`
}

// IsZero reports whether no message was captured.
func (r MessageRef) IsZero() bool {
	return r.MessageID == ""
}

// PollOption is one candidate of a poll. Position is the original candidate order
// and decides ties.
type PollOption struct {
	OptionID string           `json:"option_id"`
	Position int              `json:"position"`
	Template TemplateSnapshot `json:"template"`
}

// Poll is a vote between candidate challenges for one category.
type Poll struct {
	ID             uuid.UUID         `json:"id"`
	GuildID        string            `json:"guild_id"`
	Category       Category          `json:"category"`
	Options        []PollOption      `json:"options"`
	Votes          map[string]string `json:"-"` // user id -> option id
	Active         bool              `json:"active"`
	WinnerOptionID string            `json:"winner_option_id,omitempty"`
	Announcement   MessageRef        `json:"announcement"`
	CreatedAt      time.Time         `json:"created_at"`
	ClosedAt       *time.Time        `json:"closed_at,omitempty"`
}

// Option returns the option with id.
func (p *Poll) Option(id string) (PollOption, bool) {
	for _, o := range p.Options {
		if o.OptionID == id {
			return o, true
		}
	}
	return PollOption{}, false
}

// Winner returns the resolved winning option.
func (p *Poll) Winner() (PollOption, bool) {
	if p.WinnerOptionID == "" {
		return PollOption{}, false
	}
	return p.Option(p.WinnerOptionID)
}

// Tally counts votes per option. Every option is present, unvoted ones at zero.
func (p *Poll) Tally() map[string]int {
	tally := make(map[string]int, len(p.Options))
	for _, o := range p.Options {
		tally[o.OptionID] = 0
	}
	for _, optionID := range p.Votes {
		if _, ok := tally[optionID]; ok {
			tally[optionID]++
		}
	}
	return tally
}
