package scheduler

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/aura-community/challenges/internal/models"
)

type fakePolls struct {
	OpenPollFunc    func(ctx context.Context, guildID string, category models.Category) (*models.Poll, error)
	ActiveFunc      func(ctx context.Context, guildID string, category models.Category) (*models.Poll, error)
	LatestFunc      func(ctx context.Context, guildID string, category models.Category) (*models.Poll, error)
	ResolvePollFunc func(ctx context.Context, guildID string, pollID uuid.UUID) (*models.Poll, error)
}

func (f *fakePolls) OpenPoll(ctx context.Context, guildID string, category models.Category) (*models.Poll, error) {
	return f.OpenPollFunc(ctx, guildID, category)
}

func (f *fakePolls) Active(ctx context.Context, guildID string, category models.Category) (*models.Poll, error) {
	return f.ActiveFunc(ctx, guildID, category)
}

func (f *fakePolls) Latest(ctx context.Context, guildID string, category models.Category) (*models.Poll, error) {
	return f.LatestFunc(ctx, guildID, category)
}

func (f *fakePolls) ResolvePoll(ctx context.Context, guildID string, pollID uuid.UUID) (*models.Poll, error) {
	return f.ResolvePollFunc(ctx, guildID, pollID)
}

type fakeEvents struct {
	StartEventFunc func(ctx context.Context, poll *models.Poll) (*models.ChallengeEvent, error)
}

func (f *fakeEvents) StartEvent(ctx context.Context, poll *models.Poll) (*models.ChallengeEvent, error) {
	return f.StartEventFunc(ctx, poll)
}

type fakeDraws struct {
	RunFunc func(ctx context.Context, guildID string, start, end time.Time) (*models.PrizeDraw, error)
}

func (f *fakeDraws) Run(ctx context.Context, guildID string, start, end time.Time) (*models.PrizeDraw, error) {
	return f.RunFunc(ctx, guildID, start, end)
}
