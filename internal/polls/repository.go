package polls

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/aura-community/challenges/internal/apperr"
	"github.com/aura-community/challenges/internal/models"
	"github.com/aura-community/challenges/pkg/database"
)

const pollColumns = `id, guild_id, category, options, votes, active, winner_option_id, announcement, created_at, closed_at`

// Repository handles poll persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a polls repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func votes(m map[string]string) map[string]string {
	if m == nil {
		return map[string]string{}
	}
	return m
}

func scanPoll(row pgx.Row) (*models.Poll, error) {
	var p models.Poll
	err := row.Scan(&p.ID, &p.GuildID, &p.Category, &p.Options, &p.Votes, &p.Active,
		&p.WinnerOptionID, &p.Announcement, &p.CreatedAt, &p.ClosedAt)
	if err != nil {
		return nil, err
	}
	if p.Votes == nil {
		p.Votes = map[string]string{}
	}
	return &p, nil
}

// CreatePoll inserts a new poll. The partial unique index on active polls turns a second
// open poll for a category into a conflict.
func (r *Repository) CreatePoll(ctx context.Context, p *models.Poll) error {
	const query = `INSERT INTO polls (id, guild_id, category, options, votes, active, winner_option_id, announcement, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	_, err := r.pool.Exec(ctx, query, p.ID, p.GuildID, p.Category, p.Options, votes(p.Votes), p.Active,
		p.WinnerOptionID, p.Announcement, p.CreatedAt)
	return database.Classify(err, "poll")
}

// GetPoll returns a poll by ID.
func (r *Repository) GetPoll(ctx context.Context, guildID string, id uuid.UUID) (*models.Poll, error) {
	query := `SELECT ` + pollColumns + ` FROM polls WHERE guild_id = $1 AND id = $2`
	p, err := scanPoll(r.pool.QueryRow(ctx, query, guildID, id))
	if err != nil {
		return nil, database.Classify(err, "poll")
	}
	return p, nil
}

// ActivePoll returns the open poll of a category.
func (r *Repository) ActivePoll(ctx context.Context, guildID string, category models.Category) (*models.Poll, error) {
	query := `SELECT ` + pollColumns + ` FROM polls WHERE guild_id = $1 AND category = $2 AND active`
	p, err := scanPoll(r.pool.QueryRow(ctx, query, guildID, category))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("no poll currently open for %s", category)
	}
	if err != nil {
		return nil, database.Classify(err, "poll")
	}
	return p, nil
}

// LatestPoll returns the newest poll of a category.
func (r *Repository) LatestPoll(ctx context.Context, guildID string, category models.Category) (*models.Poll, error) {
	query := `SELECT ` + pollColumns + ` FROM polls WHERE guild_id = $1 AND category = $2
		ORDER BY created_at DESC LIMIT 1`
	p, err := scanPoll(r.pool.QueryRow(ctx, query, guildID, category))
	if err != nil {
		return nil, database.Classify(err, "poll")
	}
	return p, nil
}

// UpdatePoll locks the poll row, applies fn and writes the mutable columns back.
func (r *Repository) UpdatePoll(ctx context.Context, guildID string, id uuid.UUID, fn func(*models.Poll) error) (*models.Poll, error) {
	var p *models.Poll
	err := database.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		query := `SELECT ` + pollColumns + ` FROM polls WHERE guild_id = $1 AND id = $2 FOR UPDATE`
		var err error
		p, err = scanPoll(tx.QueryRow(ctx, query, guildID, id))
		if err != nil {
			return database.Classify(err, "poll")
		}
		if err := fn(p); err != nil {
			return err
		}
		const update = `UPDATE polls SET votes = $3, active = $4, winner_option_id = $5, announcement = $6, closed_at = $7
			WHERE guild_id = $1 AND id = $2`
		_, err = tx.Exec(ctx, update, guildID, id, votes(p.Votes), p.Active, p.WinnerOptionID, p.Announcement, p.ClosedAt)
		return database.Classify(err, "poll")
	})
	if errors.Is(err, apperr.ErrNoChange) {
		return p, nil
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}
