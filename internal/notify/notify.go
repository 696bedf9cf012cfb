// Package notify carries outbound announcements to the chat gateway. Content is
// structured data; the gateway's presentation layer renders it.
package notify

import (
	"context"

	"github.com/aura-community/challenges/internal/models"
)

// Kind names the announcement template the gateway should render.
type Kind string

const (
	KindPollOpened         Kind = "poll_opened"
	KindPollClosed         Kind = "poll_closed"
	KindEventStarted       Kind = "event_started"
	KindEventProgress      Kind = "event_progress"
	KindSubmissionPending  Kind = "submission_pending"
	KindSubmissionApproved Kind = "submission_approved"
	KindSubmissionRejected Kind = "submission_rejected"
	KindDrawAnnounced      Kind = "draw_announced"
	KindDrawWinner         Kind = "draw_winner"
)

// Content is the data of one announcement.
type Content struct {
	Kind   Kind           `json:"kind"`
	Fields map[string]any `json:"fields"`
}

// Sink delivers announcements. Post returns a reference that Edit and Retract accept.
type Sink interface {
	Post(ctx context.Context, guildID, channelID string, content Content) (models.MessageRef, error)
	Edit(ctx context.Context, guildID string, ref models.MessageRef, content Content) error
	Retract(ctx context.Context, guildID string, ref models.MessageRef) error
	DirectMessage(ctx context.Context, guildID, userID string, content Content) error
}

// Discard drops every announcement. Useful when no gateway is configured.
type Discard struct{}

func (Discard) Post(context.Context, string, string, Content) (models.MessageRef, error) {
	return models.MessageRef{}, nil
}
func (Discard) Edit(context.Context, string, models.MessageRef, Content) error { return nil }
func (Discard) Retract(context.Context, string, models.MessageRef) error { return nil }
func (Discard) DirectMessage(context.Context, string, string, Content) error { return nil }
