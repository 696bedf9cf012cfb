package catalog

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aura-community/challenges/internal/apperr"
	"github.com/aura-community/challenges/internal/memstore"
	"github.com/aura-community/challenges/internal/models"
)

func seedTemplate(t *testing.T, store *memstore.Store, text string) *models.ChallengeTemplate {
	t.Helper()
	return seedWeighted(t, store, text, 1.0)
}

func seedWeighted(t *testing.T, store *memstore.Store, text string, weight float64) *models.ChallengeTemplate {
	t.Helper()
	tmpl := &models.ChallengeTemplate{
		GuildID:    "g1",
		Text:       text,
		Category:   models.CategorySkilling,
		Thresholds: models.Thresholds{Bronze: 1, Silver: 2, Gold: 3},
		Weight:     weight,
	}
	require.NoError(t, store.UpsertTemplate(context.Background(), tmpl))
	return tmpl
}

func TestAdjustFeedback(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	svc := NewService(store, DefaultWeightPolicy(), nil)
	tmpl := seedTemplate(t, store, "Catch {amount} sharks")
	eventID := uuid.New()

	res, err := svc.AdjustFeedback(ctx, "g1", tmpl.ID, eventID, "u1", models.DirectionUp)
	require.NoError(t, err)
	assert.True(t, res.Changed)
	assert.Equal(t, 1.1, res.Template.Weight)

	res, err = svc.AdjustFeedback(ctx, "g1", tmpl.ID, eventID, "u1", models.DirectionUp)
	require.NoError(t, err)
	assert.False(t, res.Changed, "repeating a direction must not stack")
	assert.Equal(t, 1.1, res.Template.Weight)

	res, err = svc.AdjustFeedback(ctx, "g1", tmpl.ID, eventID, "u1", models.DirectionDown)
	require.NoError(t, err)
	assert.True(t, res.Changed)
	assert.Equal(t, 0.9, res.Template.Weight)

	res, err = svc.AdjustFeedback(ctx, "g1", tmpl.ID, eventID, "u2", models.DirectionDown)
	require.NoError(t, err)
	assert.Equal(t, 0.8, res.Template.Weight)

	fb, ok := store.Feedback("g1", "u1", tmpl.ID)
	require.True(t, ok)
	assert.Equal(t, models.DirectionDown, fb.Direction)
}

func TestAdjustFeedbackFlipAtBounds(t *testing.T) {
	ctx := context.Background()

	t.Run("ceiling", func(t *testing.T) {
		store := memstore.New()
		svc := NewService(store, DefaultWeightPolicy(), nil)
		tmpl := seedWeighted(t, store, "Catch {amount} sharks", 10)

		res, err := svc.AdjustFeedback(ctx, "g1", tmpl.ID, uuid.Nil, "u1", models.DirectionUp)
		require.NoError(t, err)
		assert.Equal(t, 10.0, res.Template.Weight)
		fb, ok := store.Feedback("g1", "u1", tmpl.ID)
		require.True(t, ok)
		assert.Zero(t, fb.Applied)

		res, err = svc.AdjustFeedback(ctx, "g1", tmpl.ID, uuid.Nil, "u1", models.DirectionDown)
		require.NoError(t, err)
		assert.Equal(t, 9.9, res.Template.Weight)
		assert.InDelta(t, -0.1, res.Delta, 1e-9)
	})

	t.Run("floor", func(t *testing.T) {
		store := memstore.New()
		svc := NewService(store, DefaultWeightPolicy(), nil)
		tmpl := seedWeighted(t, store, "Chop {amount} yews", 0.1)

		res, err := svc.AdjustFeedback(ctx, "g1", tmpl.ID, uuid.Nil, "u1", models.DirectionDown)
		require.NoError(t, err)
		assert.Equal(t, 0.1, res.Template.Weight)

		res, err = svc.AdjustFeedback(ctx, "g1", tmpl.ID, uuid.Nil, "u1", models.DirectionUp)
		require.NoError(t, err)
		assert.Equal(t, 0.2, res.Template.Weight)
		fb, ok := store.Feedback("g1", "u1", tmpl.ID)
		require.True(t, ok)
		assert.InDelta(t, 0.1, fb.Applied, 1e-9)
	})
}

func TestAdjustFeedbackErrors(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	svc := NewService(store, DefaultWeightPolicy(), nil)
	tmpl := seedTemplate(t, store, "Kill {amount} dragons")

	_, err := svc.AdjustFeedback(ctx, "g1", tmpl.ID, uuid.Nil, "u1", "sideways")
	assert.ErrorIs(t, err, apperr.ErrValidation)

	_, err = svc.AdjustFeedback(ctx, "g1", uuid.New(), uuid.Nil, "u1", models.DirectionUp)
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	_, err = svc.AdjustFeedback(ctx, "other-guild", tmpl.ID, uuid.Nil, "u1", models.DirectionUp)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestCandidates(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	svc := NewService(store, DefaultWeightPolicy(), nil)

	_, err := svc.Candidates(ctx, "g1", models.CategorySkilling)
	assert.ErrorIs(t, err, apperr.ErrValidation)

	for _, text := range []string{"a", "b", "c", "d"} {
		seedTemplate(t, store, text)
	}
	got, err := svc.Candidates(ctx, "g1", models.CategorySkilling)
	require.NoError(t, err)
	assert.Len(t, got, CandidateCount)
}
