package submissions

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

const submissionColumns = `id, guild_id, event_id, user_id, evidence, notes, status, reviewer_id, reviewed_at,
	rejection_reason, rolls, challenge_name, review_message, archive_keys, created_at`

// Repository handles submission persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a submissions repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func scanSubmission(row pgx.Row) (*models.Submission, error) {
	var s models.Submission
	err := row.Scan(&s.ID, &s.GuildID, &s.EventID, &s.UserID, &s.Evidence, &s.Notes, &s.Status, &s.ReviewerID, &s.ReviewedAt,
		&s.RejectionReason, &s.Rolls, &s.ChallengeName, &s.ReviewMessage, &s.ArchiveKeys, &s.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func nonNil(list []string) []string {
	if list == nil {
		return []string{}
	}
	return list
}

// CreateSubmission inserts a submission.
func (r *Repository) CreateSubmission(ctx context.Context, s *models.Submission) error {
	const query = `INSERT INTO submissions (id, guild_id, event_id, user_id, evidence, notes, status, reviewer_id, reviewed_at,
		rejection_reason, rolls, challenge_name, review_message, archive_keys, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`
	_, err := r.pool.Exec(ctx, query, s.ID, s.GuildID, s.EventID, s.UserID, nonNil(s.Evidence), s.Notes, s.Status, s.ReviewerID,
		s.ReviewedAt, s.RejectionReason, s.Rolls, s.ChallengeName, s.ReviewMessage, nonNil(s.ArchiveKeys), s.CreatedAt)
	return database.Classify(err, "submission")
}

// GetSubmission returns a submission by ID.
func (r *Repository) GetSubmission(ctx context.Context, guildID string, id uuid.UUID) (*models.Submission, error) {
	query := `SELECT ` + submissionColumns + ` FROM submissions WHERE guild_id = $1 AND id = $2`
	s, err := scanSubmission(r.pool.QueryRow(ctx, query, guildID, id))
	if err != nil {
		return nil, database.Classify(err, "submission")
	}
	return s, nil
}

// UpdateSubmission locks the row, applies fn and writes the review fields back.
func (r *Repository) UpdateSubmission(ctx context.Context, guildID string, id uuid.UUID, fn func(*models.Submission) error) (*models.Submission, error) {
	var s *models.Submission
	err := database.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		query := `SELECT ` + submissionColumns + ` FROM submissions WHERE guild_id = $1 AND id = $2 FOR UPDATE`
		var err error
		s, err = scanSubmission(tx.QueryRow(ctx, query, guildID, id))
		if err != nil {
			return database.Classify(err, "submission")
		}
		if err := fn(s); err != nil {
			return err
		}
		const update = `UPDATE submissions SET status = $3, reviewer_id = $4, reviewed_at = $5, rejection_reason = $6,
			rolls = $7, review_message = $8, archive_keys = $9
			WHERE guild_id = $1 AND id = $2`
		_, err = tx.Exec(ctx, update, guildID, id, s.Status, s.ReviewerID, s.ReviewedAt, s.RejectionReason,
			s.Rolls, s.ReviewMessage, nonNil(s.ArchiveKeys))
		return database.Classify(err, "submission")
	})
	if errors.Is(err, apperr.ErrNoChange) {
		return s, nil
	}
	if err != nil {
		return nil, err
	}
	return s, nil
}

func (r *Repository) list(ctx context.Context, query string, args ...any) ([]models.Submission, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, database.Classify(err, "submissions")
	}
	defer rows.Close()
	var list []models.Submission
	for rows.Next() {
		s, err := scanSubmission(rows)
		if err != nil {
			return nil, database.Classify(err, "submissions")
		}
		list = append(list, *s)
	}
	return list, database.Classify(rows.Err(), "submissions")
}

// ListPending returns pending submissions oldest first.
func (r *Repository) ListPending(ctx context.Context, guildID string) ([]models.Submission, error) {
	query := `SELECT ` + submissionColumns + ` FROM submissions
		WHERE guild_id = $1 AND status = 'pending' ORDER BY created_at, id`
	return r.list(ctx, query, guildID)
}

// ListApproved returns tier-approved submissions of the given events.
func (r *Repository) ListApproved(ctx context.Context, guildID string, eventIDs []uuid.UUID) ([]models.Submission, error) {
	if len(eventIDs) == 0 {
		return nil, nil
	}
	query := `SELECT ` + submissionColumns + ` FROM submissions
		WHERE guild_id = $1 AND event_id = ANY($2) AND status IN ('bronze', 'silver', 'gold')
		ORDER BY created_at, id`
	return r.list(ctx, query, guildID, eventIDs)
}
