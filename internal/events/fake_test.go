package events

import (
	"context"

	"github.com/google/uuid"

	"github.com/aura-community/challenges/internal/models"
)

type fakePolls struct {
	GetFunc func(ctx context.Context, guildID string, pollID uuid.UUID) (*models.Poll, error)
}

func (f *fakePolls) Get(ctx context.Context, guildID string, pollID uuid.UUID) (*models.Poll, error) {
	return f.GetFunc(ctx, guildID, pollID)
}
