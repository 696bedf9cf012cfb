package catalog

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/aura-community/challenges/internal/apperr"
	"github.com/aura-community/challenges/internal/models"
)

// Store persists templates and feedback.
type Store interface {
	ListTemplates(ctx context.Context, guildID string, category models.Category) ([]models.ChallengeTemplate, error)
	GetTemplate(ctx context.Context, guildID string, id uuid.UUID) (*models.ChallengeTemplate, error)
	UpsertTemplate(ctx context.Context, t *models.ChallengeTemplate) error
	// ApplyFeedback locks the template and the user's prior feedback, runs fn, then
	// persists the template weight and the returned feedback in one transaction.
	ApplyFeedback(ctx context.Context, guildID string, templateID uuid.UUID, userID string,
		fn func(t *models.ChallengeTemplate, prev *models.Feedback) (*models.Feedback, error)) (*models.ChallengeTemplate, error)
}

// FeedbackResult reports the effect of AdjustFeedback.
type FeedbackResult struct {
	Template *models.ChallengeTemplate `json:"template"`
	Changed  bool                      `json:"changed"`
	Delta    float64                   `json:"delta"`
}

// Service exposes candidate selection and weight feedback over the catalog.
type Service struct {
	store  Store
	policy WeightPolicy
	src    Source
	now    func() time.Time
	logger *zap.Logger
}

// NewService creates a catalog service.
func NewService(store Store, policy WeightPolicy, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: store, policy: policy, src: globalSource{}, now: time.Now, logger: logger}
}

// Candidates samples CandidateCount templates of category for a new poll.
func (s *Service) Candidates(ctx context.Context, guildID string, category models.Category) ([]models.ChallengeTemplate, error) {
	templates, err := s.store.ListTemplates(ctx, guildID, category)
	if err != nil {
		return nil, err
	}
	picked := SelectCandidates(templates, category, CandidateCount, s.src)
	if len(picked) == 0 {
		return nil, apperr.Validation("no challenge templates for category %s", category)
	}
	return picked, nil
}

// ListTemplates returns the catalog for a category.
func (s *Service) ListTemplates(ctx context.Context, guildID string, category models.Category) ([]models.ChallengeTemplate, error) {
	return s.store.ListTemplates(ctx, guildID, category)
}

// AdjustFeedback records userID's opinion of a template and moves its weight.
// A repeated direction changes nothing; a flipped one replaces the step the earlier
// vote applied.
func (s *Service) AdjustFeedback(ctx context.Context, guildID string, templateID, eventID uuid.UUID, userID string, dir models.Direction) (*FeedbackResult, error) {
	if !dir.Valid() {
		return nil, apperr.Validation("direction must be up or down")
	}
	if userID == "" {
		return nil, apperr.Validation("user id is required")
	}
	res := &FeedbackResult{}
	t, err := s.store.ApplyFeedback(ctx, guildID, templateID, userID, func(t *models.ChallengeTemplate, prev *models.Feedback) (*models.Feedback, error) {
		fb := &models.Feedback{
			ID:         uuid.New(),
			GuildID:    guildID,
			TemplateID: templateID,
			EventID:    eventID,
			UserID:     userID,
			CreatedAt:  s.now(),
		}
		if prev != nil {
			fb.ID = prev.ID
			fb.CreatedAt = prev.CreatedAt
		}
		w, applied, ok := s.policy.Shift(t.Weight, prev, dir)
		if !ok {
			return nil, apperr.ErrNoChange
		}
		res.Changed = true
		res.Delta = round(w - t.Weight)
		t.Weight = w
		fb.Direction = dir
		fb.Applied = applied
		return fb, nil
	})
	if err != nil {
		return nil, err
	}
	res.Template = t
	if res.Changed {
		s.logger.Info("template weight adjusted",
			zap.String("guild_id", guildID),
			zap.String("template_id", templateID.String()),
			zap.String("direction", string(dir)),
			zap.Float64("weight", t.Weight))
	}
	return res, nil
}
