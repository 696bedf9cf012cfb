package polls

import (
	"context"

	"github.com/aura-community/challenges/internal/models"
)

type fakeCandidates struct {
	CandidatesFunc func(ctx context.Context, guildID string, category models.Category) ([]models.ChallengeTemplate, error)
}

func (f *fakeCandidates) Candidates(ctx context.Context, guildID string, category models.Category) ([]models.ChallengeTemplate, error) {
	return f.CandidatesFunc(ctx, guildID, category)
}
