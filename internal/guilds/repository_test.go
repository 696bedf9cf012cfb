package guilds

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aura-community/challenges/internal/apperr"
	"github.com/aura-community/challenges/pkg/database/databasetest"
)

func TestRepositorySettings(t *testing.T) {
	pool := databasetest.Pool(t)
	repo := NewRepository(pool)
	ctx := context.Background()
	guildID := databasetest.Guild(t)

	_, err := repo.Settings(ctx, guildID)
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	_, err = pool.Exec(ctx, `INSERT INTO guild_settings (guild_id, announcement_channel, review_channel)
		VALUES ($1, 'ann', 'review')`, guildID)
	require.NoError(t, err)

	gs, err := repo.Settings(ctx, guildID)
	require.NoError(t, err)
	assert.Equal(t, "ann", gs.AnnouncementChannel)
	assert.Equal(t, "review", gs.ReviewChannel)
	assert.Empty(t, gs.DrawChannel)
	assert.Empty(t, gs.ReviewerRole)
}
