package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aura-community/challenges/internal/models"
	"github.com/aura-community/challenges/pkg/database/databasetest"
)

func TestRepositoryTriggerStates(t *testing.T) {
	pool := databasetest.Pool(t)
	repo := NewRepository(pool)
	ctx := context.Background()
	guildID := databasetest.Guild(t)

	armed := utc(2026, 3, 10, 9, 0)
	for _, st := range []models.TriggerState{
		{GuildID: guildID, Category: models.CategoryCombat, Trigger: models.TriggerPollOpen, NextFireAt: utc(2026, 3, 15, 18, 0), UpdatedAt: armed},
		{GuildID: guildID, Category: models.CategoryCombat, Trigger: models.TriggerPrizeDraw, NextFireAt: utc(2026, 3, 16, 17, 0), UpdatedAt: armed},
	} {
		require.NoError(t, repo.SaveTriggerState(ctx, &st))
	}

	fired := utc(2026, 3, 15, 18, 0)
	require.NoError(t, repo.SaveTriggerState(ctx, &models.TriggerState{
		GuildID:     guildID,
		Category:    models.CategoryCombat,
		Trigger:     models.TriggerPollOpen,
		LastFiredAt: &fired,
		NextFireAt:  utc(2026, 3, 22, 18, 0),
		LastError:   "poll store unavailable",
		UpdatedAt:   fired,
	}))

	list, err := repo.LoadTriggerStates(ctx, guildID)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, models.TriggerPollOpen, list[0].Trigger)
	require.NotNil(t, list[0].LastFiredAt)
	assert.True(t, fired.Equal(*list[0].LastFiredAt))
	assert.True(t, utc(2026, 3, 22, 18, 0).Equal(list[0].NextFireAt))
	assert.Equal(t, "poll store unavailable", list[0].LastError)
	assert.Nil(t, list[1].LastFiredAt)

	other, err := repo.LoadTriggerStates(ctx, databasetest.Guild(t))
	require.NoError(t, err)
	assert.Empty(t, other)
}

func TestSchedulerResumesFromRepository(t *testing.T) {
	pool := databasetest.Pool(t)
	repo := NewRepository(pool)
	guildID := databasetest.Guild(t)
	s, err := ParseSchedule([]byte("guilds: [" + guildID + "]\ncategories: {combat: {poll_open: {weekday: sunday, at: \"18:00\"}}}"))
	require.NoError(t, err)

	f := newFixture(t, weeklySchedule, utc(2026, 3, 10, 9, 0))
	first := New(s, repo, f.polls, f.events, f.draws, 0, nil, nil)
	first.now = func() time.Time { return utc(2026, 3, 10, 9, 0) }
	require.NoError(t, first.Load(context.Background()))

	second := New(s, repo, f.polls, f.events, f.draws, 0, nil, nil)
	second.now = func() time.Time { return utc(2026, 3, 15, 20, 0) }
	require.NoError(t, second.Load(context.Background()))
	second.Tick(context.Background())
	second.Wait()

	assert.Equal(t, []models.Category{models.CategoryCombat}, f.rec.opened)
	states := second.States(guildID)
	require.Len(t, states, 1)
	assert.True(t, utc(2026, 3, 22, 18, 0).Equal(states[0].NextFireAt))
}
