package catalog

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aura-community/challenges/internal/apperr"
	"github.com/aura-community/challenges/internal/models"
	"github.com/aura-community/challenges/pkg/database/databasetest"
)

func TestRepositoryUpsertKeepsWeight(t *testing.T) {
	pool := databasetest.Pool(t)
	repo := NewRepository(pool)
	ctx := context.Background()
	guildID := databasetest.Guild(t)

	tmpl := template("Catch {amount} sharks", models.CategorySkilling, 2.5)
	tmpl.GuildID = guildID
	require.NoError(t, repo.UpsertTemplate(ctx, &tmpl))
	require.NotEqual(t, uuid.Nil, tmpl.ID)

	again := template("Catch {amount} sharks", models.CategorySkilling, 1.0)
	again.GuildID = guildID
	again.Thresholds = models.Thresholds{Bronze: 5, Silver: 10, Gold: 20}
	require.NoError(t, repo.UpsertTemplate(ctx, &again))
	assert.Equal(t, tmpl.ID, again.ID)
	assert.Equal(t, 2.5, again.Weight)

	list, err := repo.ListTemplates(ctx, guildID, models.CategorySkilling)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, 20, list[0].Thresholds.Gold)

	_, err = repo.GetTemplate(ctx, databasetest.Guild(t), tmpl.ID)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestRepositoryFeedbackStoresAppliedStep(t *testing.T) {
	pool := databasetest.Pool(t)
	repo := NewRepository(pool)
	svc := NewService(repo, DefaultWeightPolicy(), nil)
	ctx := context.Background()
	guildID := databasetest.Guild(t)

	tmpl := template("Chop {amount} yews", models.CategorySkilling, 10)
	tmpl.GuildID = guildID
	require.NoError(t, repo.UpsertTemplate(ctx, &tmpl))

	res, err := svc.AdjustFeedback(ctx, guildID, tmpl.ID, uuid.Nil, "u1", models.DirectionUp)
	require.NoError(t, err)
	assert.Equal(t, 10.0, res.Template.Weight)

	res, err = svc.AdjustFeedback(ctx, guildID, tmpl.ID, uuid.Nil, "u1", models.DirectionUp)
	require.NoError(t, err)
	assert.False(t, res.Changed)

	res, err = svc.AdjustFeedback(ctx, guildID, tmpl.ID, uuid.Nil, "u1", models.DirectionDown)
	require.NoError(t, err)
	assert.Equal(t, 9.9, res.Template.Weight)

	var (
		direction string
		applied   float64
	)
	require.NoError(t, pool.QueryRow(ctx, `SELECT direction, applied_delta FROM template_feedback
		WHERE guild_id = $1 AND user_id = $2 AND template_id = $3`, guildID, "u1", tmpl.ID).Scan(&direction, &applied))
	assert.Equal(t, "down", direction)
	assert.InDelta(t, -0.1, applied, 1e-9)

	got, err := repo.GetTemplate(ctx, guildID, tmpl.ID)
	require.NoError(t, err)
	assert.Equal(t, 9.9, got.Weight)

	_, err = svc.AdjustFeedback(ctx, guildID, uuid.New(), uuid.Nil, "u1", models.DirectionUp)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}
