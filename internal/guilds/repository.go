package guilds

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/aura-community/challenges/internal/models"
	"github.com/aura-community/challenges/pkg/database"
)

// Repository reads guild settings. Rows are written by the setup tooling.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a guild settings repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Settings returns a guild's announcement destinations.
func (r *Repository) Settings(ctx context.Context, guildID string) (*models.GuildSettings, error) {
	const query = `SELECT guild_id, announcement_channel, review_channel, draw_channel, reviewer_role
		FROM guild_settings WHERE guild_id = $1`
	var gs models.GuildSettings
	err := r.pool.QueryRow(ctx, query, guildID).
		Scan(&gs.GuildID, &gs.AnnouncementChannel, &gs.ReviewChannel, &gs.DrawChannel, &gs.ReviewerRole)
	if err != nil {
		return nil, database.Classify(err, "guild settings")
	}
	return &gs, nil
}
