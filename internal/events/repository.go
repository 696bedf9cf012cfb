package events

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/aura-community/challenges/internal/apperr"
	"github.com/aura-community/challenges/internal/models"
	"github.com/aura-community/challenges/pkg/database"
)

const eventColumns = `id, guild_id, category, poll_id, template, keyword, starts_at, ends_at,
	thresholds, announcement, counts, completions, created_at`

// Repository handles challenge event persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates an events repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func completions(m map[string]models.Tier) map[string]models.Tier {
	if m == nil {
		return map[string]models.Tier{}
	}
	return m
}

func scanEvent(row pgx.Row) (*models.ChallengeEvent, error) {
	var e models.ChallengeEvent
	err := row.Scan(&e.ID, &e.GuildID, &e.Category, &e.PollID, &e.Template, &e.Keyword, &e.StartsAt, &e.EndsAt,
		&e.Thresholds, &e.Announcement, &e.Counts, &e.Completions, &e.CreatedAt)
	if err != nil {
		return nil, err
	}
	if e.Completions == nil {
		e.Completions = map[string]models.Tier{}
	}
	return &e, nil
}

// CreateEvent inserts an event. poll_id is unique, so a second event for a poll is a conflict.
func (r *Repository) CreateEvent(ctx context.Context, e *models.ChallengeEvent) error {
	const query = `INSERT INTO challenge_events (id, guild_id, category, poll_id, template, keyword, starts_at, ends_at,
		thresholds, announcement, counts, completions, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`
	_, err := r.pool.Exec(ctx, query, e.ID, e.GuildID, e.Category, e.PollID, e.Template, e.Keyword, e.StartsAt, e.EndsAt,
		e.Thresholds, e.Announcement, e.Counts, completions(e.Completions), e.CreatedAt)
	return database.Classify(err, "event")
}

// GetEvent returns an event by ID.
func (r *Repository) GetEvent(ctx context.Context, guildID string, id uuid.UUID) (*models.ChallengeEvent, error) {
	query := `SELECT ` + eventColumns + ` FROM challenge_events WHERE guild_id = $1 AND id = $2`
	e, err := scanEvent(r.pool.QueryRow(ctx, query, guildID, id))
	if err != nil {
		return nil, database.Classify(err, "event")
	}
	return e, nil
}

// EventByPoll returns the event started from a poll.
func (r *Repository) EventByPoll(ctx context.Context, guildID string, pollID uuid.UUID) (*models.ChallengeEvent, error) {
	query := `SELECT ` + eventColumns + ` FROM challenge_events WHERE guild_id = $1 AND poll_id = $2`
	e, err := scanEvent(r.pool.QueryRow(ctx, query, guildID, pollID))
	if err != nil {
		return nil, database.Classify(err, "event")
	}
	return e, nil
}

// UpdateEvent locks the event row, applies fn and writes counters, completions and announcement back.
func (r *Repository) UpdateEvent(ctx context.Context, guildID string, id uuid.UUID, fn func(*models.ChallengeEvent) error) (*models.ChallengeEvent, error) {
	var e *models.ChallengeEvent
	err := database.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		query := `SELECT ` + eventColumns + ` FROM challenge_events WHERE guild_id = $1 AND id = $2 FOR UPDATE`
		var err error
		e, err = scanEvent(tx.QueryRow(ctx, query, guildID, id))
		if err != nil {
			return database.Classify(err, "event")
		}
		if err := fn(e); err != nil {
			return err
		}
		const update = `UPDATE challenge_events SET counts = $3, completions = $4, announcement = $5
			WHERE guild_id = $1 AND id = $2`
		_, err = tx.Exec(ctx, update, guildID, id, e.Counts, completions(e.Completions), e.Announcement)
		return database.Classify(err, "event")
	})
	if errors.Is(err, apperr.ErrNoChange) {
		return e, nil
	}
	if err != nil {
		return nil, err
	}
	return e, nil
}

// ListEventsStarted returns events whose start lies in [from, to), oldest first.
func (r *Repository) ListEventsStarted(ctx context.Context, guildID string, from, to time.Time) ([]models.ChallengeEvent, error) {
	query := `SELECT ` + eventColumns + ` FROM challenge_events
		WHERE guild_id = $1 AND starts_at >= $2 AND starts_at < $3 ORDER BY starts_at, id`
	rows, err := r.pool.Query(ctx, query, guildID, from, to)
	if err != nil {
		return nil, database.Classify(err, "events")
	}
	defer rows.Close()
	var list []models.ChallengeEvent
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, database.Classify(err, "events")
		}
		list = append(list, *e)
	}
	return list, database.Classify(rows.Err(), "events")
}
