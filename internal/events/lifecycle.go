package events

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/aura-community/challenges/internal/apperr"
	"github.com/aura-community/challenges/internal/metrics"
	"github.com/aura-community/challenges/internal/models"
	"github.com/aura-community/challenges/internal/notify"
)

// Store persists events. UpdateEvent runs fn on a locked row and writes the result back.
type Store interface {
	CreateEvent(ctx context.Context, e *models.ChallengeEvent) error
	GetEvent(ctx context.Context, guildID string, id uuid.UUID) (*models.ChallengeEvent, error)
	EventByPoll(ctx context.Context, guildID string, pollID uuid.UUID) (*models.ChallengeEvent, error)
	UpdateEvent(ctx context.Context, guildID string, id uuid.UUID, fn func(*models.ChallengeEvent) error) (*models.ChallengeEvent, error)
	ListEventsStarted(ctx context.Context, guildID string, from, to time.Time) ([]models.ChallengeEvent, error)
}

// Config controls event windows and keywords.
type Config struct {
	DefaultDuration time.Duration
	Durations       map[models.Category]time.Duration
	Keywords        []string
	// MaxRetries bounds retries of counter updates when the store is unavailable.
	MaxRetries uint64
}

// DefaultConfig runs events for a week.
func DefaultConfig() Config {
	return Config{DefaultDuration: 7 * 24 * time.Hour, MaxRetries: 4}
}

// Duration returns the event length of category.
func (c Config) Duration(category models.Category) time.Duration {
	if d, ok := c.Durations[category]; ok && d > 0 {
		return d
	}
	if c.DefaultDuration > 0 {
		return c.DefaultDuration
	}
	return 7 * 24 * time.Hour
}

// Lifecycle starts events from resolved polls and keeps their counters.
type Lifecycle struct {
	store     Store
	announcer *notify.Announcer
	cfg       Config
	metrics   *metrics.Metrics
	now       func() time.Time
	backoff   func() backoff.BackOff
	logger    *zap.Logger
}

// NewLifecycle creates an event lifecycle.
func NewLifecycle(store Store, announcer *notify.Announcer, cfg Config, m *metrics.Metrics, logger *zap.Logger) *Lifecycle {
	if logger == nil {
		logger = zap.NewNop()
	}
	l := &Lifecycle{store: store, announcer: announcer, cfg: cfg, metrics: m, now: time.Now, logger: logger}
	l.backoff = func() backoff.BackOff {
		b := backoff.NewExponentialBackOff()
		b.InitialInterval = 100 * time.Millisecond
		b.MaxInterval = 2 * time.Second
		return backoff.WithMaxRetries(b, l.cfg.MaxRetries)
	}
	return l
}

// Get returns an event.
func (l *Lifecycle) Get(ctx context.Context, guildID string, id uuid.UUID) (*models.ChallengeEvent, error) {
	return l.store.GetEvent(ctx, guildID, id)
}

// ListStarted returns events whose start lies in [from, to).
func (l *Lifecycle) ListStarted(ctx context.Context, guildID string, from, to time.Time) ([]models.ChallengeEvent, error) {
	return l.store.ListEventsStarted(ctx, guildID, from, to)
}

// StartEvent creates the event of a resolved poll. The winner's thresholds and text are
// copied so later catalog edits do not reach the event. Starting the same poll again
// returns the existing event.
func (l *Lifecycle) StartEvent(ctx context.Context, poll *models.Poll) (*models.ChallengeEvent, error) {
	if poll.Active {
		return nil, apperr.Validation("poll must be resolved before its event starts")
	}
	winner, ok := poll.Winner()
	if !ok {
		return nil, apperr.Validation("poll has no winner")
	}
	existing, err := l.store.EventByPoll(ctx, poll.GuildID, poll.ID)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, apperr.ErrNotFound) {
		return nil, err
	}

	now := l.now()
	e := &models.ChallengeEvent{
		ID:          uuid.New(),
		GuildID:     poll.GuildID,
		Category:    poll.Category,
		PollID:      poll.ID,
		Template:    winner.Template,
		Keyword:     Keyword(l.cfg.Keywords, poll.GuildID, now),
		StartsAt:    now,
		EndsAt:      now.Add(l.cfg.Duration(poll.Category)),
		Thresholds:  winner.Template.Thresholds,
		Completions: map[string]models.Tier{},
		CreatedAt:   now,
	}
	if err := l.store.CreateEvent(ctx, e); err != nil {
		if errors.Is(err, apperr.ErrConflict) {
			return l.store.EventByPoll(ctx, poll.GuildID, poll.ID)
		}
		return nil, err
	}
	l.metrics.EventStarted()
	l.logger.Info("event started",
		zap.String("guild_id", e.GuildID),
		zap.String("category", string(e.Category)),
		zap.String("event_id", e.ID.String()),
		zap.String("keyword", e.Keyword),
		zap.Time("ends_at", e.EndsAt))

	ref := l.announcer.TryPost(ctx, e.GuildID, notify.Announcements, notify.EventAnnouncement(notify.KindEventStarted, e))
	if ref.IsZero() {
		return e, nil
	}
	updated, err := l.store.UpdateEvent(ctx, e.GuildID, e.ID, func(cur *models.ChallengeEvent) error {
		cur.Announcement = ref
		return nil
	})
	if err != nil {
		l.logger.Warn("store event announcement", zap.String("event_id", e.ID.String()), zap.Error(err))
		e.Announcement = ref
		return e, nil
	}
	return updated, nil
}

// RecordProgress credits userID with tier on the event. Only upgrades count: the user's
// previous tier is subtracted before the new one is added, and a tier at or below the
// held one changes nothing. The update is retried while the store is unavailable.
func (l *Lifecycle) RecordProgress(ctx context.Context, guildID string, eventID uuid.UUID, userID string, tier models.Tier) (*models.ChallengeEvent, bool, error) {
	if tier == models.TierNone {
		return nil, false, apperr.Validation("tier is required")
	}
	var (
		e       *models.ChallengeEvent
		changed bool
	)
	op := func() error {
		changed = false
		var err error
		e, err = l.store.UpdateEvent(ctx, guildID, eventID, func(cur *models.ChallengeEvent) error {
			if cur.Completions == nil {
				cur.Completions = map[string]models.Tier{}
			}
			prev := cur.Completions[userID]
			if tier <= prev {
				return apperr.ErrNoChange
			}
			cur.Counts.Add(prev, -1)
			cur.Counts.Add(tier, 1)
			cur.Completions[userID] = tier
			changed = true
			return nil
		})
		if err != nil && !apperr.Retryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}
	notifyRetry := func(err error, wait time.Duration) {
		l.logger.Warn("retrying event progress", zap.String("event_id", eventID.String()), zap.Duration("wait", wait), zap.Error(err))
	}
	if err := backoff.RetryNotify(op, backoff.WithContext(l.backoff(), ctx), notifyRetry); err != nil {
		return nil, false, err
	}
	if changed {
		l.announcer.TryEdit(ctx, guildID, e.Announcement, notify.EventAnnouncement(notify.KindEventProgress, e))
	}
	return e, changed, nil
}
