package draws

import (
	"context"
	"errors"

	"github.com/AlekSi/pointer"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/aura-community/challenges/internal/apperr"
	"github.com/aura-community/challenges/internal/models"
	"github.com/aura-community/challenges/pkg/database"
)

const drawColumns = `id, guild_id, window_start, window_end, participants, tickets, total_entries, tier_breakdown,
	winner_id, rolled_at, announced_at, created_at`

// Repository handles prize draw persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a draws repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func scanDraw(row pgx.Row) (*models.PrizeDraw, error) {
	var (
		d      models.PrizeDraw
		winner *string
	)
	err := row.Scan(&d.ID, &d.GuildID, &d.WindowStart, &d.WindowEnd, &d.Participants, &d.Tickets, &d.TotalEntries,
		&d.TierBreakdown, &winner, &d.RolledAt, &d.AnnouncedAt, &d.CreatedAt)
	if err != nil {
		return nil, err
	}
	d.WinnerID = pointer.GetString(winner)
	if d.Participants == nil {
		d.Participants = map[string]int{}
	}
	return &d, nil
}

// SaveSnapshot upserts the entries of a draw. Rows that already have a winner are not
// touched, and the stored row is returned either way.
func (r *Repository) SaveSnapshot(ctx context.Context, d *models.PrizeDraw) (*models.PrizeDraw, error) {
	tickets := d.Tickets
	if tickets == nil {
		tickets = []string{}
	}
	participants := d.Participants
	if participants == nil {
		participants = map[string]int{}
	}
	const upsert = `INSERT INTO prize_draws (id, guild_id, window_start, window_end, participants, tickets,
		total_entries, tier_breakdown, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (guild_id, id) DO UPDATE SET
			participants = EXCLUDED.participants,
			tickets = EXCLUDED.tickets,
			total_entries = EXCLUDED.total_entries,
			tier_breakdown = EXCLUDED.tier_breakdown
		WHERE prize_draws.winner_id IS NULL`
	_, err := r.pool.Exec(ctx, upsert, d.ID, d.GuildID, d.WindowStart, d.WindowEnd, participants, tickets,
		d.TotalEntries, d.TierBreakdown, d.CreatedAt)
	if err != nil {
		return nil, database.Classify(err, "draw")
	}
	return r.GetDraw(ctx, d.GuildID, d.ID)
}

// GetDraw returns a draw by ID.
func (r *Repository) GetDraw(ctx context.Context, guildID, id string) (*models.PrizeDraw, error) {
	query := `SELECT ` + drawColumns + ` FROM prize_draws WHERE guild_id = $1 AND id = $2`
	d, err := scanDraw(r.pool.QueryRow(ctx, query, guildID, id))
	if err != nil {
		return nil, database.Classify(err, "draw")
	}
	return d, nil
}

// UpdateDraw locks the draw row, applies fn and writes the winner and announcement back.
func (r *Repository) UpdateDraw(ctx context.Context, guildID, id string, fn func(*models.PrizeDraw) error) (*models.PrizeDraw, error) {
	var d *models.PrizeDraw
	err := database.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		query := `SELECT ` + drawColumns + ` FROM prize_draws WHERE guild_id = $1 AND id = $2 FOR UPDATE`
		var err error
		d, err = scanDraw(tx.QueryRow(ctx, query, guildID, id))
		if err != nil {
			return database.Classify(err, "draw")
		}
		if err := fn(d); err != nil {
			return err
		}
		const update = `UPDATE prize_draws SET winner_id = $3, rolled_at = $4, announced_at = $5
			WHERE guild_id = $1 AND id = $2`
		_, err = tx.Exec(ctx, update, guildID, id, pointer.ToStringOrNil(d.WinnerID), d.RolledAt, d.AnnouncedAt)
		return database.Classify(err, "draw")
	})
	if errors.Is(err, apperr.ErrNoChange) {
		return d, nil
	}
	if err != nil {
		return nil, err
	}
	return d, nil
}
