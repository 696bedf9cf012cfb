package events

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aura-community/challenges/internal/apperr"
	"github.com/aura-community/challenges/internal/memstore"
	"github.com/aura-community/challenges/internal/models"
	"github.com/aura-community/challenges/internal/notify"
	"github.com/aura-community/challenges/internal/notify/notifytest"
)

const guild = "g1"

var start = time.Date(2026, 3, 9, 18, 0, 0, 0, time.UTC)

type fixture struct {
	store     *memstore.Store
	sink      *notifytest.Recorder
	lifecycle *Lifecycle
	clock     time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memstore.New()
	store.PutSettings(models.GuildSettings{GuildID: guild, AnnouncementChannel: "ann"})
	sink := notifytest.New()
	f := &fixture{store: store, sink: sink, clock: start}
	f.lifecycle = NewLifecycle(store, notify.NewAnnouncer(sink, store, nil, nil), DefaultConfig(), nil, nil)
	f.lifecycle.now = func() time.Time { return f.clock }
	f.lifecycle.backoff = func() backoff.BackOff {
		return backoff.WithMaxRetries(&backoff.ZeroBackOff{}, 3)
	}
	return f
}

func resolvedPoll(category models.Category, text string) *models.Poll {
	tmpl := models.TemplateSnapshot{
		TemplateID: uuid.New(),
		Text:       text,
		Category:   category,
		Thresholds: models.Thresholds{Bronze: 10, Silver: 25, Gold: 50},
	}
	return &models.Poll{
		ID:             uuid.New(),
		GuildID:        guild,
		Category:       category,
		Options:        []models.PollOption{{OptionID: tmpl.TemplateID.String(), Position: 0, Template: tmpl}},
		Votes:          map[string]string{},
		WinnerOptionID: tmpl.TemplateID.String(),
	}
}

func (f *fixture) start(t *testing.T, p *models.Poll) *models.ChallengeEvent {
	t.Helper()
	e, err := f.lifecycle.StartEvent(context.Background(), p)
	require.NoError(t, err)
	return e
}

func TestStartEvent(t *testing.T) {
	f := newFixture(t)
	p := resolvedPoll(models.CategoryCombat, "Defeat {amount} bosses")

	e := f.start(t, p)

	assert.Equal(t, p.ID, e.PollID)
	assert.Equal(t, models.CategoryCombat, e.Category)
	assert.Equal(t, start, e.StartsAt)
	assert.Equal(t, start.Add(7*24*time.Hour), e.EndsAt)
	assert.Equal(t, models.Thresholds{Bronze: 10, Silver: 25, Gold: 50}, e.Thresholds)
	assert.NotEmpty(t, e.Keyword)
	assert.Equal(t, models.EventActive, e.Status(start.Add(time.Hour)))

	require.Len(t, f.sink.PostsOf(notify.KindEventStarted), 1)
	assert.Equal(t, "m1", e.Announcement.MessageID)
}

func TestStartEventIdempotent(t *testing.T) {
	f := newFixture(t)
	p := resolvedPoll(models.CategoryCombat, "Defeat {amount} bosses")

	first := f.start(t, p)
	second := f.start(t, p)

	assert.Equal(t, first.ID, second.ID)
	assert.Len(t, f.sink.PostsOf(notify.KindEventStarted), 1)
}

func TestStartEventRequiresResolvedPoll(t *testing.T) {
	f := newFixture(t)

	active := resolvedPoll(models.CategoryCombat, "x")
	active.Active = true
	_, err := f.lifecycle.StartEvent(context.Background(), active)
	assert.ErrorIs(t, err, apperr.ErrValidation)

	noWinner := resolvedPoll(models.CategoryCombat, "x")
	noWinner.WinnerOptionID = ""
	_, err = f.lifecycle.StartEvent(context.Background(), noWinner)
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestStartEventThresholdsAreCopied(t *testing.T) {
	f := newFixture(t)
	p := resolvedPoll(models.CategoryCombat, "Defeat {amount} bosses")
	e := f.start(t, p)

	p.Options[0].Template.Thresholds = models.Thresholds{Bronze: 1, Silver: 2, Gold: 3}

	got, err := f.lifecycle.Get(context.Background(), guild, e.ID)
	require.NoError(t, err)
	assert.Equal(t, models.Thresholds{Bronze: 10, Silver: 25, Gold: 50}, got.Thresholds)
	assert.Equal(t, "Defeat 10/25/50 bosses", got.Name())
}

func TestStartEventKeywordSharedAcrossCategories(t *testing.T) {
	f := newFixture(t)
	combat := f.start(t, resolvedPoll(models.CategoryCombat, "a"))
	f.clock = start.Add(2 * time.Hour)
	skilling := f.start(t, resolvedPoll(models.CategorySkilling, "b"))

	assert.Equal(t, combat.Keyword, skilling.Keyword)

	f.clock = start.Add(7 * 24 * time.Hour)
	next := f.start(t, resolvedPoll(models.CategoryCombat, "c"))
	assert.Equal(t, Keyword(nil, guild, f.clock), next.Keyword)
}

func TestStartEventSurvivesPostFailure(t *testing.T) {
	f := newFixture(t)
	f.sink.FailPost = errors.New("gateway down")

	e := f.start(t, resolvedPoll(models.CategoryCombat, "a"))

	assert.True(t, e.Announcement.IsZero())
}

func TestRecordProgressUpgradesOnly(t *testing.T) {
	f := newFixture(t)
	e := f.start(t, resolvedPoll(models.CategoryCombat, "a"))
	ctx := context.Background()

	got, changed, err := f.lifecycle.RecordProgress(ctx, guild, e.ID, "u1", models.TierBronze)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, 1, got.Counts.Get(models.TierBronze))

	got, changed, err = f.lifecycle.RecordProgress(ctx, guild, e.ID, "u1", models.TierGold)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, 0, got.Counts.Get(models.TierBronze))
	assert.Equal(t, 0, got.Counts.Get(models.TierSilver))
	assert.Equal(t, 1, got.Counts.Get(models.TierGold))
	assert.Equal(t, models.TierGold, got.HeldTier("u1"))

	got, changed, err = f.lifecycle.RecordProgress(ctx, guild, e.ID, "u1", models.TierSilver)
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Equal(t, 1, got.Counts.Total())
	assert.Equal(t, models.TierGold, got.HeldTier("u1"))

	assert.Len(t, f.sink.Edits, 2)
}

func TestRecordProgressRejectsNoTier(t *testing.T) {
	f := newFixture(t)
	e := f.start(t, resolvedPoll(models.CategoryCombat, "a"))

	_, _, err := f.lifecycle.RecordProgress(context.Background(), guild, e.ID, "u1", models.TierNone)

	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestRecordProgressRetriesUnavailable(t *testing.T) {
	f := newFixture(t)
	e := f.start(t, resolvedPoll(models.CategoryCombat, "a"))

	var failures atomic.Int32
	f.store.Fail = func(op string) error {
		if op == "UpdateEvent" && failures.Add(1) <= 2 {
			return apperr.Unavailable(errors.New("connection reset"), "update event")
		}
		return nil
	}

	got, changed, err := f.lifecycle.RecordProgress(context.Background(), guild, e.ID, "u1", models.TierSilver)

	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, 1, got.Counts.Get(models.TierSilver))
	assert.Equal(t, int32(3), failures.Load())
}

func TestRecordProgressDoesNotRetryNotFound(t *testing.T) {
	f := newFixture(t)

	var calls atomic.Int32
	f.store.Fail = func(op string) error {
		if op == "UpdateEvent" {
			calls.Add(1)
		}
		return nil
	}

	_, _, err := f.lifecycle.RecordProgress(context.Background(), guild, uuid.New(), "u1", models.TierSilver)

	assert.ErrorIs(t, err, apperr.ErrNotFound)
	assert.Equal(t, int32(1), calls.Load())
}

func TestListStarted(t *testing.T) {
	f := newFixture(t)
	first := f.start(t, resolvedPoll(models.CategoryCombat, "a"))
	f.clock = start.Add(24 * time.Hour)
	f.start(t, resolvedPoll(models.CategorySkilling, "b"))

	list, err := f.lifecycle.ListStarted(context.Background(), guild, start, start.Add(time.Hour))

	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, first.ID, list[0].ID)
}

func TestKeywordStableWithinWeek(t *testing.T) {
	monday := time.Date(2026, 3, 9, 0, 0, 0, 0, time.UTC)
	sunday := time.Date(2026, 3, 15, 23, 59, 0, 0, time.UTC)

	assert.Equal(t, Keyword(nil, guild, monday), Keyword(nil, guild, sunday))
	assert.NotEqual(t, Keyword(nil, guild, monday), Keyword(nil, "other", monday))
	assert.Regexp(t, `^[A-Z][a-z]+-\d{2}$`, Keyword(nil, guild, monday))
}
