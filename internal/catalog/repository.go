package catalog

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

const templateColumns = `id, guild_id, text, category, completion_type, bronze, silver, gold, weight, created_at`

// Repository handles template and feedback persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a catalog repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func scanTemplate(row pgx.Row) (*models.ChallengeTemplate, error) {
	var t models.ChallengeTemplate
	err := row.Scan(&t.ID, &t.GuildID, &t.Text, &t.Category, &t.CompletionType,
		&t.Thresholds.Bronze, &t.Thresholds.Silver, &t.Thresholds.Gold, &t.Weight, &t.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// ListTemplates returns a guild's templates for a category in creation order.
func (r *Repository) ListTemplates(ctx context.Context, guildID string, category models.Category) ([]models.ChallengeTemplate, error) {
	query := `SELECT ` + templateColumns + ` FROM challenge_templates
		WHERE guild_id = $1 AND category = $2 ORDER BY created_at, id`
	rows, err := r.pool.Query(ctx, query, guildID, category)
	if err != nil {
		return nil, database.Classify(err, "templates")
	}
	defer rows.Close()
	var list []models.ChallengeTemplate
	for rows.Next() {
		t, err := scanTemplate(rows)
		if err != nil {
			return nil, database.Classify(err, "templates")
		}
		list = append(list, *t)
	}
	return list, database.Classify(rows.Err(), "templates")
}

// GetTemplate returns a template by ID.
func (r *Repository) GetTemplate(ctx context.Context, guildID string, id uuid.UUID) (*models.ChallengeTemplate, error) {
	query := `SELECT ` + templateColumns + ` FROM challenge_templates WHERE guild_id = $1 AND id = $2`
	t, err := scanTemplate(r.pool.QueryRow(ctx, query, guildID, id))
	if err != nil {
		return nil, database.Classify(err, "template")
	}
	return t, nil
}

// UpsertTemplate inserts a template or refreshes its thresholds. The stored weight is kept.
func (r *Repository) UpsertTemplate(ctx context.Context, t *models.ChallengeTemplate) error {
	const query = `INSERT INTO challenge_templates (guild_id, text, category, completion_type, bronze, silver, gold, weight)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (guild_id, category, text) DO UPDATE
		SET completion_type = EXCLUDED.completion_type, bronze = EXCLUDED.bronze,
			silver = EXCLUDED.silver, gold = EXCLUDED.gold
		RETURNING id, weight, created_at`
	err := r.pool.QueryRow(ctx, query, t.GuildID, t.Text, t.Category, t.CompletionType,
		t.Thresholds.Bronze, t.Thresholds.Silver, t.Thresholds.Gold, t.Weight).
		Scan(&t.ID, &t.Weight, &t.CreatedAt)
	return database.Classify(err, "template")
}

// ApplyFeedback runs fn against the locked template and prior feedback and persists the result.
func (r *Repository) ApplyFeedback(ctx context.Context, guildID string, templateID uuid.UUID, userID string,
	fn func(t *models.ChallengeTemplate, prev *models.Feedback) (*models.Feedback, error)) (*models.ChallengeTemplate, error) {
	var out *models.ChallengeTemplate
	err := database.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		query := `SELECT ` + templateColumns + ` FROM challenge_templates WHERE guild_id = $1 AND id = $2 FOR UPDATE`
		t, err := scanTemplate(tx.QueryRow(ctx, query, guildID, templateID))
		if err != nil {
			return database.Classify(err, "template")
		}
		out = t

		var prev *models.Feedback
		var fb models.Feedback
		err = tx.QueryRow(ctx, `SELECT id, guild_id, template_id, event_id, user_id, direction, applied_delta, created_at
			FROM template_feedback WHERE guild_id = $1 AND user_id = $2 AND template_id = $3 FOR UPDATE`,
			guildID, userID, templateID).
			Scan(&fb.ID, &fb.GuildID, &fb.TemplateID, &fb.EventID, &fb.UserID, &fb.Direction, &fb.Applied, &fb.CreatedAt)
		switch {
		case err == nil:
			prev = &fb
		case !errors.Is(err, pgx.ErrNoRows):
			return database.Classify(err, "feedback")
		}

		next, err := fn(t, prev)
		if err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `UPDATE challenge_templates SET weight = $3 WHERE guild_id = $1 AND id = $2`,
			guildID, templateID, t.Weight); err != nil {
			return database.Classify(err, "template")
		}
		_, err = tx.Exec(ctx, `INSERT INTO template_feedback (id, guild_id, template_id, event_id, user_id, direction, applied_delta, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			ON CONFLICT (guild_id, user_id, template_id) DO UPDATE
			SET direction = EXCLUDED.direction, event_id = EXCLUDED.event_id, applied_delta = EXCLUDED.applied_delta`,
			next.ID, guildID, templateID, next.EventID, userID, next.Direction, next.Applied, next.CreatedAt)
		return database.Classify(err, "feedback")
	})
	if errors.Is(err, apperr.ErrNoChange) {
		return out, nil
	}
	if err != nil {
		return nil, err
	}
	return out, nil
}
