package stats

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/aura-community/challenges/internal/apperr"
	"github.com/aura-community/challenges/internal/models"
	"github.com/aura-community/challenges/pkg/database"
)

// Repository persists per-member counters.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a stats repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// IncrementVotesCast adds one to a member's vote counter.
func (r *Repository) IncrementVotesCast(ctx context.Context, guildID, userID string) error {
	const query = `INSERT INTO user_stats (guild_id, user_id, votes_cast) VALUES ($1, $2, 1)
		ON CONFLICT (guild_id, user_id) DO UPDATE SET votes_cast = user_stats.votes_cast + 1`
	_, err := r.pool.Exec(ctx, query, guildID, userID)
	return database.Classify(err, "user stats")
}

// IncrementPrizesWon adds one to a member's prize counter.
func (r *Repository) IncrementPrizesWon(ctx context.Context, guildID, userID string) error {
	const query = `INSERT INTO user_stats (guild_id, user_id, prizes_won) VALUES ($1, $2, 1)
		ON CONFLICT (guild_id, user_id) DO UPDATE SET prizes_won = user_stats.prizes_won + 1`
	_, err := r.pool.Exec(ctx, query, guildID, userID)
	return database.Classify(err, "user stats")
}

// GetStats returns a member's counters; unknown members have zero counters.
func (r *Repository) GetStats(ctx context.Context, guildID, userID string) (*models.UserStats, error) {
	const query = `SELECT votes_cast, prizes_won FROM user_stats WHERE guild_id = $1 AND user_id = $2`
	st := models.UserStats{GuildID: guildID, UserID: userID}
	err := r.pool.QueryRow(ctx, query, guildID, userID).Scan(&st.VotesCast, &st.PrizesWon)
	if err != nil {
		classified := database.Classify(err, "user stats")
		if errors.Is(classified, apperr.ErrNotFound) {
			return &st, nil
		}
		return nil, classified
	}
	return &st, nil
}
