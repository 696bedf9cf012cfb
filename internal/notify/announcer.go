package notify

import (
	"context"

	"go.uber.org/zap"

	"github.com/aura-community/challenges/internal/apperr"
	"github.com/aura-community/challenges/internal/metrics"
	"github.com/aura-community/challenges/internal/models"
)

// Destination selects a configured guild channel.
type Destination int

const (
	Announcements Destination = iota
	Reviews
	Draws
)

func (d Destination) String() string {
	switch d {
	case Reviews:
		return "review"
	case Draws:
		return "draw"
	}
	return "announcement"
}

// SettingsReader resolves a guild's channels.
type SettingsReader interface {
	Settings(ctx context.Context, guildID string) (*models.GuildSettings, error)
}

// Announcer resolves destinations and applies the best-effort policy engines share:
// the Try* methods log and count failures instead of returning them.
type Announcer struct {
	sink     Sink
	settings SettingsReader
	metrics  *metrics.Metrics
	logger   *zap.Logger
}

// NewAnnouncer creates an Announcer.
func NewAnnouncer(sink Sink, settings SettingsReader, m *metrics.Metrics, logger *zap.Logger) *Announcer {
	if logger == nil {
		logger = zap.NewNop()
	}
	if sink == nil {
		sink = Discard{}
	}
	return &Announcer{sink: sink, settings: settings, metrics: m, logger: logger}
}

func (a *Announcer) channel(ctx context.Context, guildID string, dest Destination) (string, error) {
	gs, err := a.settings.Settings(ctx, guildID)
	if err != nil {
		return "", err
	}
	var ch string
	switch dest {
	case Reviews:
		ch = gs.ReviewChannel
	case Draws:
		ch = gs.DrawChannel
		if ch == "" {
			ch = gs.AnnouncementChannel
		}
	default:
		ch = gs.AnnouncementChannel
	}
	if ch == "" {
		return "", apperr.Validation("no %s channel configured", dest)
	}
	return ch, nil
}

// Post sends content to a guild destination and returns the message reference.
func (a *Announcer) Post(ctx context.Context, guildID string, dest Destination, content Content) (models.MessageRef, error) {
	ch, err := a.channel(ctx, guildID, dest)
	if err != nil {
		return models.MessageRef{}, err
	}
	ref, err := a.sink.Post(ctx, guildID, ch, content)
	if err != nil {
		return models.MessageRef{}, apperr.Unavailable(err, "post %s", content.Kind)
	}
	return ref, nil
}

// TryPost is Post with failures logged. A failed post returns a zero reference.
func (a *Announcer) TryPost(ctx context.Context, guildID string, dest Destination, content Content) models.MessageRef {
	ref, err := a.Post(ctx, guildID, dest, content)
	if err != nil {
		a.failed("post", guildID, content.Kind, err)
	}
	return ref
}

// TryEdit updates an earlier post in place. Zero references are skipped.
func (a *Announcer) TryEdit(ctx context.Context, guildID string, ref models.MessageRef, content Content) {
	if ref.IsZero() {
		return
	}
	if err := a.sink.Edit(ctx, guildID, ref, content); err != nil {
		a.failed("edit", guildID, content.Kind, err)
	}
}

// TryRetract removes an earlier post. Zero references are skipped.
func (a *Announcer) TryRetract(ctx context.Context, guildID string, ref models.MessageRef) {
	if ref.IsZero() {
		return
	}
	if err := a.sink.Retract(ctx, guildID, ref); err != nil {
		a.failed("retract", guildID, "", err)
	}
}

// TryDirectMessage notifies a member directly.
func (a *Announcer) TryDirectMessage(ctx context.Context, guildID, userID string, content Content) {
	if err := a.sink.DirectMessage(ctx, guildID, userID, content); err != nil {
		a.metrics.NotifyFailed("direct_message")
		a.logger.Warn("direct message failed",
			zap.String("guild_id", guildID),
			zap.String("user_id", userID),
			zap.String("kind", string(content.Kind)),
			zap.Error(err))
	}
}

func (a *Announcer) failed(op, guildID string, kind Kind, err error) {
	a.metrics.NotifyFailed(op)
	a.logger.Warn("announcement failed",
		zap.String("op", op),
		zap.String("guild_id", guildID),
		zap.String("kind", string(kind)),
		zap.Error(err))
}
