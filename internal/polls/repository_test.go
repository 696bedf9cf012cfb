package polls

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aura-community/challenges/internal/apperr"
	"github.com/aura-community/challenges/internal/models"
	"github.com/aura-community/challenges/pkg/database/databasetest"
)

func newPoll(guildID string, category models.Category) *models.Poll {
	return &models.Poll{
		ID:       uuid.New(),
		GuildID:  guildID,
		Category: category,
		Options: []models.PollOption{
			{OptionID: "a", Position: 1, Template: models.TemplateSnapshot{Text: "Catch {amount} sharks", Category: category}},
			{OptionID: "b", Position: 2, Template: models.TemplateSnapshot{Text: "Chop {amount} yews", Category: category}},
		},
		Votes:     map[string]string{},
		Active:    true,
		CreatedAt: time.Now().UTC().Truncate(time.Microsecond),
	}
}

func TestRepositoryOneActivePollPerCategory(t *testing.T) {
	pool := databasetest.Pool(t)
	repo := NewRepository(pool)
	ctx := context.Background()
	guildID := databasetest.Guild(t)

	first := newPoll(guildID, models.CategorySkilling)
	require.NoError(t, repo.CreatePoll(ctx, first))

	err := repo.CreatePoll(ctx, newPoll(guildID, models.CategorySkilling))
	assert.ErrorIs(t, err, apperr.ErrConflict)

	require.NoError(t, repo.CreatePoll(ctx, newPoll(guildID, models.CategoryCombat)))
	require.NoError(t, repo.CreatePoll(ctx, newPoll(databasetest.Guild(t), models.CategorySkilling)))

	closedAt := time.Now().UTC()
	_, err = repo.UpdatePoll(ctx, guildID, first.ID, func(p *models.Poll) error {
		p.Active = false
		p.WinnerOptionID = "a"
		p.ClosedAt = &closedAt
		return nil
	})
	require.NoError(t, err)

	second := newPoll(guildID, models.CategorySkilling)
	second.CreatedAt = first.CreatedAt.Add(time.Second)
	require.NoError(t, repo.CreatePoll(ctx, second))

	active, err := repo.ActivePoll(ctx, guildID, models.CategorySkilling)
	require.NoError(t, err)
	assert.Equal(t, second.ID, active.ID)

	latest, err := repo.LatestPoll(ctx, guildID, models.CategorySkilling)
	require.NoError(t, err)
	assert.Equal(t, second.ID, latest.ID)
}

func TestRepositoryUpdatePollWritesBack(t *testing.T) {
	pool := databasetest.Pool(t)
	repo := NewRepository(pool)
	ctx := context.Background()
	guildID := databasetest.Guild(t)
	p := newPoll(guildID, models.CategoryMinigame)
	require.NoError(t, repo.CreatePoll(ctx, p))

	_, err := repo.UpdatePoll(ctx, guildID, p.ID, func(cur *models.Poll) error {
		cur.Votes["u1"] = "b"
		cur.Announcement = models.MessageRef{ChannelID: "ann", MessageID: "m1"}
		return nil
	})
	require.NoError(t, err)

	_, err = repo.UpdatePoll(ctx, guildID, p.ID, func(cur *models.Poll) error {
		cur.Votes["u2"] = "a"
		return apperr.ErrNoChange
	})
	require.NoError(t, err)

	got, err := repo.GetPoll(ctx, guildID, p.ID)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"u1": "b"}, got.Votes)
	assert.Equal(t, "m1", got.Announcement.MessageID)
	require.Len(t, got.Options, 2)
	assert.Equal(t, "Chop {amount} yews", got.Options[1].Template.Text)

	_, err = repo.GetPoll(ctx, databasetest.Guild(t), p.ID)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	_, err = repo.ActivePoll(ctx, guildID, models.CategoryCombat)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}
