package draws

import (
	"context"
	"math/rand/v2"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/aura-community/challenges/internal/apperr"
	"github.com/aura-community/challenges/internal/metrics"
	"github.com/aura-community/challenges/internal/models"
	"github.com/aura-community/challenges/internal/notify"
)

// Store persists draws. SaveSnapshot must leave a draw that already has a winner untouched
// and return the stored row.
type Store interface {
	SaveSnapshot(ctx context.Context, d *models.PrizeDraw) (*models.PrizeDraw, error)
	GetDraw(ctx context.Context, guildID, id string) (*models.PrizeDraw, error)
	UpdateDraw(ctx context.Context, guildID, id string, fn func(*models.PrizeDraw) error) (*models.PrizeDraw, error)
}

// EventLister finds the events of a window.
type EventLister interface {
	ListEventsStarted(ctx context.Context, guildID string, from, to time.Time) ([]models.ChallengeEvent, error)
}

// ApprovedLister finds approved submissions of events.
type ApprovedLister interface {
	ListApproved(ctx context.Context, guildID string, eventIDs []uuid.UUID) ([]models.Submission, error)
}

// PrizeCounter records wins in member statistics.
type PrizeCounter interface {
	IncrementPrizesWon(ctx context.Context, guildID, userID string) error
}

// Engine snapshots prize-eligible entries for a window, rolls a winner and announces it.
type Engine struct {
	store     Store
	events    EventLister
	approved  ApprovedLister
	prizes    PrizeCounter
	announcer *notify.Announcer
	metrics   *metrics.Metrics
	pick      func(n int) int
	now       func() time.Time
	logger    *zap.Logger
}

// NewEngine creates a draw engine.
func NewEngine(store Store, events EventLister, approved ApprovedLister, prizes PrizeCounter, announcer *notify.Announcer, m *metrics.Metrics, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		store:     store,
		events:    events,
		approved:  approved,
		prizes:    prizes,
		announcer: announcer,
		metrics:   m,
		pick:      rand.IntN,
		now:       time.Now,
		logger:    logger,
	}
}

// Get returns a draw.
func (e *Engine) Get(ctx context.Context, guildID, id string) (*models.PrizeDraw, error) {
	return e.store.GetDraw(ctx, guildID, id)
}

type entryKey struct {
	event uuid.UUID
	user  string
}

type entry struct {
	rolls int
	tier  models.Tier
}

// SnapshotDraw aggregates approved submissions of events started in [start, end). A member
// earns the rolls of their best submission on each event, summed across events. The draw
// id is derived from the window, so snapshotting it again refreshes the entries until a
// winner is rolled and returns the rolled draw unchanged afterwards.
func (e *Engine) SnapshotDraw(ctx context.Context, guildID string, start, end time.Time) (*models.PrizeDraw, error) {
	if !end.After(start) {
		return nil, apperr.Validation("draw window end must be after its start")
	}
	id := models.DrawKey(start, end)
	if existing, err := e.store.GetDraw(ctx, guildID, id); err == nil && existing.HasWinner() {
		return existing, nil
	}

	evs, err := e.events.ListEventsStarted(ctx, guildID, start, end)
	if err != nil {
		return nil, err
	}
	ids := make([]uuid.UUID, 0, len(evs))
	for _, ev := range evs {
		ids = append(ids, ev.ID)
	}
	var subs []models.Submission
	if len(ids) > 0 {
		if subs, err = e.approved.ListApproved(ctx, guildID, ids); err != nil {
			return nil, err
		}
	}

	best := make(map[entryKey]entry)
	for _, s := range subs {
		tier := s.Status.Tier()
		if tier == models.TierNone {
			continue
		}
		k := entryKey{event: s.EventID, user: s.UserID}
		cur, ok := best[k]
		if !ok || s.Rolls > cur.rolls || (s.Rolls == cur.rolls && tier > cur.tier) {
			best[k] = entry{rolls: s.Rolls, tier: tier}
		}
	}

	d := &models.PrizeDraw{
		ID:           id,
		GuildID:      guildID,
		WindowStart:  start,
		WindowEnd:    end,
		Participants: make(map[string]int),
		CreatedAt:    e.now(),
	}
	for k, en := range best {
		d.Participants[k.user] += en.rolls
		d.TierBreakdown.Add(en.tier, 1)
	}
	users := make([]string, 0, len(d.Participants))
	for u, n := range d.Participants {
		if n > 0 {
			users = append(users, u)
		}
	}
	sort.Strings(users)
	for _, u := range users {
		for i := 0; i < d.Participants[u]; i++ {
			d.Tickets = append(d.Tickets, u)
		}
	}
	d.TotalEntries = len(d.Tickets)

	saved, err := e.store.SaveSnapshot(ctx, d)
	if err != nil {
		e.metrics.Draw("snapshot", "error")
		return nil, err
	}
	e.metrics.Draw("snapshot", "ok")
	e.logger.Info("draw snapshot",
		zap.String("guild_id", guildID),
		zap.String("draw_id", id),
		zap.Int("events", len(evs)),
		zap.Int("participants", len(saved.Participants)),
		zap.Int("entries", saved.TotalEntries))
	return saved, nil
}

// RollDraw picks a uniform ticket as the winner. A draw that already has a winner is
// returned as is; a draw without tickets comes back without a winner and without error.
func (e *Engine) RollDraw(ctx context.Context, guildID, id string) (*models.PrizeDraw, error) {
	rolled := false
	d, err := e.store.UpdateDraw(ctx, guildID, id, func(cur *models.PrizeDraw) error {
		if cur.HasWinner() || len(cur.Tickets) == 0 {
			return apperr.ErrNoChange
		}
		at := e.now()
		cur.WinnerID = cur.Tickets[e.pick(len(cur.Tickets))]
		cur.RolledAt = &at
		rolled = true
		return nil
	})
	if err != nil {
		e.metrics.Draw("roll", "error")
		return nil, err
	}
	if !rolled {
		if d.HasWinner() {
			e.metrics.Draw("roll", "already_rolled")
		} else {
			e.metrics.Draw("roll", "empty")
			e.logger.Info("draw has no entries", zap.String("guild_id", guildID), zap.String("draw_id", id))
		}
		return d, nil
	}
	e.metrics.Draw("roll", "ok")
	e.logger.Info("draw rolled",
		zap.String("guild_id", guildID),
		zap.String("draw_id", id),
		zap.String("winner_id", d.WinnerID),
		zap.Int("winner_tickets", d.Participants[d.WinnerID]),
		zap.Int("entries", d.TotalEntries))
	if err := e.prizes.IncrementPrizesWon(ctx, guildID, d.WinnerID); err != nil {
		e.logger.Error("increment prizes won",
			zap.String("guild_id", guildID),
			zap.String("user_id", d.WinnerID),
			zap.Error(err))
	}
	return d, nil
}

// AnnounceDraw posts the winner to the draw channel exactly once. The announcement is
// claimed before posting and released again if the post fails, so a later call can retry.
func (e *Engine) AnnounceDraw(ctx context.Context, guildID, id string) (*models.PrizeDraw, error) {
	claimedAt := e.now()
	claimed := false
	d, err := e.store.UpdateDraw(ctx, guildID, id, func(cur *models.PrizeDraw) error {
		if !cur.HasWinner() {
			return apperr.Validation("draw %s has no winner", id)
		}
		if cur.AnnouncedAt != nil {
			return apperr.ErrNoChange
		}
		cur.AnnouncedAt = &claimedAt
		claimed = true
		return nil
	})
	if err != nil {
		return nil, err
	}
	if !claimed {
		e.metrics.Draw("announce", "already_announced")
		return d, nil
	}

	if _, err := e.announcer.Post(ctx, guildID, notify.Draws, notify.DrawAnnounced(d)); err != nil {
		e.metrics.Draw("announce", "error")
		_, relErr := e.store.UpdateDraw(ctx, guildID, id, func(cur *models.PrizeDraw) error {
			if cur.AnnouncedAt == nil || !cur.AnnouncedAt.Equal(claimedAt) {
				return apperr.ErrNoChange
			}
			cur.AnnouncedAt = nil
			return nil
		})
		if relErr != nil {
			e.logger.Error("release draw announcement", zap.String("draw_id", id), zap.Error(relErr))
		}
		return nil, err
	}
	e.metrics.Draw("announce", "ok")
	e.announcer.TryDirectMessage(ctx, guildID, d.WinnerID, notify.DrawWinner(d))
	return d, nil
}

// Run snapshots, rolls and announces the draw of [start, end). A window without entries
// stops after the roll.
func (e *Engine) Run(ctx context.Context, guildID string, start, end time.Time) (*models.PrizeDraw, error) {
	d, err := e.SnapshotDraw(ctx, guildID, start, end)
	if err != nil {
		return nil, err
	}
	if d, err = e.RollDraw(ctx, guildID, d.ID); err != nil {
		return nil, err
	}
	if !d.HasWinner() || d.AnnouncedAt != nil {
		return d, nil
	}
	return e.AnnounceDraw(ctx, guildID, d.ID)
}
