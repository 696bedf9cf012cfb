package scheduler

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/aura-community/challenges/internal/models"
	"github.com/aura-community/challenges/pkg/database"
)

// Repository persists trigger states.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a trigger state repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// LoadTriggerStates returns the stored trigger states of a guild.
func (r *Repository) LoadTriggerStates(ctx context.Context, guildID string) ([]models.TriggerState, error) {
	const query = `SELECT guild_id, category, trigger_kind, last_fired_at, next_fire_at, last_error, updated_at
		FROM trigger_states WHERE guild_id = $1 ORDER BY category, trigger_kind`
	rows, err := r.pool.Query(ctx, query, guildID)
	if err != nil {
		return nil, database.Classify(err, "trigger states")
	}
	defer rows.Close()
	var list []models.TriggerState
	for rows.Next() {
		var st models.TriggerState
		if err := rows.Scan(&st.GuildID, &st.Category, &st.Trigger, &st.LastFiredAt, &st.NextFireAt, &st.LastError, &st.UpdatedAt); err != nil {
			return nil, database.Classify(err, "trigger states")
		}
		list = append(list, st)
	}
	return list, database.Classify(rows.Err(), "trigger states")
}

// SaveTriggerState upserts a trigger state.
func (r *Repository) SaveTriggerState(ctx context.Context, st *models.TriggerState) error {
	const query = `INSERT INTO trigger_states (guild_id, category, trigger_kind, last_fired_at, next_fire_at, last_error, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (guild_id, category, trigger_kind) DO UPDATE SET
			last_fired_at = EXCLUDED.last_fired_at,
			next_fire_at = EXCLUDED.next_fire_at,
			last_error = EXCLUDED.last_error,
			updated_at = EXCLUDED.updated_at`
	_, err := r.pool.Exec(ctx, query, st.GuildID, st.Category, st.Trigger, st.LastFiredAt, st.NextFireAt, st.LastError, st.UpdatedAt)
	return database.Classify(err, "trigger state")
}
