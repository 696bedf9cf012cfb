package events

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aura-community/challenges/internal/apperr"
	"github.com/aura-community/challenges/internal/models"
	"github.com/aura-community/challenges/pkg/database/databasetest"
)

func storedEvent(t *testing.T, repo *Repository, guildID string, startsAt time.Time) *models.ChallengeEvent {
	t.Helper()
	e := &models.ChallengeEvent{
		ID:       uuid.New(),
		GuildID:  guildID,
		Category: models.CategorySkilling,
		PollID:   databasetest.InsertPoll(t, repo.pool, guildID, string(models.CategorySkilling)),
		Template: models.TemplateSnapshot{
			TemplateID: uuid.New(),
			Text:       "Catch {amount} sharks",
			Category:   models.CategorySkilling,
		},
		Keyword:    "Raven-07",
		StartsAt:   startsAt,
		EndsAt:     startsAt.Add(7 * 24 * time.Hour),
		Thresholds: models.Thresholds{Bronze: 10, Silver: 25, Gold: 50},
		CreatedAt:  startsAt,
	}
	require.NoError(t, repo.CreateEvent(context.Background(), e))
	return e
}

func TestRepositoryEventRoundTrip(t *testing.T) {
	pool := databasetest.Pool(t)
	repo := NewRepository(pool)
	ctx := context.Background()
	guildID := databasetest.Guild(t)
	e := storedEvent(t, repo, guildID, start)

	got, err := repo.GetEvent(ctx, guildID, e.ID)
	require.NoError(t, err)
	assert.Equal(t, "Raven-07", got.Keyword)
	assert.Equal(t, e.Thresholds, got.Thresholds)
	assert.Equal(t, "Catch {amount} sharks", got.Template.Text)
	assert.NotNil(t, got.Completions)
	assert.Zero(t, got.Counts.Total())

	byPoll, err := repo.EventByPoll(ctx, guildID, e.PollID)
	require.NoError(t, err)
	assert.Equal(t, e.ID, byPoll.ID)

	dup := *e
	dup.ID = uuid.New()
	assert.ErrorIs(t, repo.CreateEvent(ctx, &dup), apperr.ErrConflict)
}

func TestRepositoryUpdateEventCompletions(t *testing.T) {
	pool := databasetest.Pool(t)
	repo := NewRepository(pool)
	ctx := context.Background()
	guildID := databasetest.Guild(t)
	e := storedEvent(t, repo, guildID, start)

	_, err := repo.UpdateEvent(ctx, guildID, e.ID, func(cur *models.ChallengeEvent) error {
		cur.Completions["u1"] = models.TierSilver
		cur.Completions["u2"] = models.TierGold
		cur.Counts.Add(models.TierSilver, 1)
		cur.Counts.Add(models.TierGold, 1)
		cur.Announcement = models.MessageRef{ChannelID: "ann", MessageID: "m1"}
		return nil
	})
	require.NoError(t, err)

	got, err := repo.GetEvent(ctx, guildID, e.ID)
	require.NoError(t, err)
	assert.Equal(t, map[string]models.Tier{"u1": models.TierSilver, "u2": models.TierGold}, got.Completions)
	assert.Equal(t, models.TierGold, got.HeldTier("u2"))
	assert.Equal(t, 1, got.Counts.Get(models.TierSilver))
	assert.Equal(t, "m1", got.Announcement.MessageID)

	_, err = repo.UpdateEvent(ctx, databasetest.Guild(t), e.ID, func(*models.ChallengeEvent) error { return nil })
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestRepositoryConcurrentUpdatesSerialize(t *testing.T) {
	pool := databasetest.Pool(t)
	repo := NewRepository(pool)
	ctx := context.Background()
	guildID := databasetest.Guild(t)
	e := storedEvent(t, repo, guildID, start)

	const members = 10
	var wg sync.WaitGroup
	errs := make([]error, members)
	for i := 0; i < members; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = repo.UpdateEvent(ctx, guildID, e.ID, func(cur *models.ChallengeEvent) error {
				cur.Completions[fmt.Sprintf("u%d", i)] = models.TierBronze
				cur.Counts.Add(models.TierBronze, 1)
				return nil
			})
		}(i)
	}
	wg.Wait()
	for _, err := range errs {
		require.NoError(t, err)
	}

	got, err := repo.GetEvent(ctx, guildID, e.ID)
	require.NoError(t, err)
	assert.Equal(t, members, got.Counts.Get(models.TierBronze))
	assert.Len(t, got.Completions, members)
}

func TestRepositoryListEventsStarted(t *testing.T) {
	pool := databasetest.Pool(t)
	repo := NewRepository(pool)
	guildID := databasetest.Guild(t)
	early := storedEvent(t, repo, guildID, start)
	late := storedEvent(t, repo, guildID, start.Add(7*24*time.Hour))

	list, err := repo.ListEventsStarted(context.Background(), guildID, start, start.Add(7*24*time.Hour))
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, early.ID, list[0].ID)

	list, err = repo.ListEventsStarted(context.Background(), guildID, start, start.Add(8*24*time.Hour))
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, late.ID, list[1].ID)
}
