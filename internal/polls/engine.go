package polls

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/aura-community/challenges/internal/apperr"
	"github.com/aura-community/challenges/internal/metrics"
	"github.com/aura-community/challenges/internal/models"
	"github.com/aura-community/challenges/internal/notify"
)

// Store persists polls. UpdatePoll runs fn on a locked row and writes the result back.
type Store interface {
	CreatePoll(ctx context.Context, p *models.Poll) error
	GetPoll(ctx context.Context, guildID string, id uuid.UUID) (*models.Poll, error)
	ActivePoll(ctx context.Context, guildID string, category models.Category) (*models.Poll, error)
	LatestPoll(ctx context.Context, guildID string, category models.Category) (*models.Poll, error)
	UpdatePoll(ctx context.Context, guildID string, id uuid.UUID, fn func(*models.Poll) error) (*models.Poll, error)
}

// CandidateSource proposes templates for a new poll.
type CandidateSource interface {
	Candidates(ctx context.Context, guildID string, category models.Category) ([]models.ChallengeTemplate, error)
}

// VoteCounter tracks how many polls a member has voted in.
type VoteCounter interface {
	IncrementVotesCast(ctx context.Context, guildID, userID string) error
}

// VoteOutcome tells the caller what a vote changed.
type VoteOutcome string

const (
	VoteRecorded  VoteOutcome = "recorded"
	VoteSwitched  VoteOutcome = "switched"
	VoteUnchanged VoteOutcome = "unchanged"
)

// VoteResult is the poll after a vote and what the vote did.
type VoteResult struct {
	Poll     *models.Poll   `json:"poll"`
	Outcome  VoteOutcome    `json:"outcome"`
	Previous string         `json:"previous_option_id,omitempty"`
	Tally    map[string]int `json:"tally"`
}

// Engine owns one active vote per category.
type Engine struct {
	store      Store
	candidates CandidateSource
	votes      VoteCounter
	announcer  *notify.Announcer
	metrics    *metrics.Metrics
	now        func() time.Time
	logger     *zap.Logger
}

// NewEngine creates a poll engine.
func NewEngine(store Store, candidates CandidateSource, votes VoteCounter, announcer *notify.Announcer, m *metrics.Metrics, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		store:      store,
		candidates: candidates,
		votes:      votes,
		announcer:  announcer,
		metrics:    m,
		now:        time.Now,
		logger:     logger,
	}
}

// OpenPoll samples candidates for category and opens a poll with them.
// An already open poll is returned with a conflict error.
func (e *Engine) OpenPoll(ctx context.Context, guildID string, category models.Category) (*models.Poll, error) {
	existing, err := e.store.ActivePoll(ctx, guildID, category)
	if err == nil {
		return existing, apperr.Conflict("a poll is already open for %s", category)
	}
	if !errors.Is(err, apperr.ErrNotFound) {
		return nil, err
	}
	candidates, err := e.candidates.Candidates(ctx, guildID, category)
	if err != nil {
		return nil, err
	}
	return e.Open(ctx, guildID, category, candidates)
}

// Open creates a poll over candidates in the given order. Fails with a conflict, returning
// the open poll, if one already exists for category.
func (e *Engine) Open(ctx context.Context, guildID string, category models.Category, candidates []models.ChallengeTemplate) (*models.Poll, error) {
	p := &models.Poll{
		ID:        uuid.New(),
		GuildID:   guildID,
		Category:  category,
		Votes:     map[string]string{},
		Active:    true,
		CreatedAt: e.now(),
	}
	seen := make(map[uuid.UUID]bool, len(candidates))
	for _, t := range candidates {
		if seen[t.ID] {
			continue
		}
		seen[t.ID] = true
		p.Options = append(p.Options, models.PollOption{
			OptionID: t.ID.String(),
			Position: len(p.Options),
			Template: t.Snapshot(),
		})
	}
	if len(p.Options) == 0 {
		return nil, apperr.Validation("a poll needs at least one candidate")
	}

	if err := e.store.CreatePoll(ctx, p); err != nil {
		if errors.Is(err, apperr.ErrConflict) {
			if existing, getErr := e.store.ActivePoll(ctx, guildID, category); getErr == nil {
				return existing, apperr.Conflict("a poll is already open for %s", category)
			}
		}
		return nil, err
	}
	e.logger.Info("poll opened",
		zap.String("guild_id", guildID),
		zap.String("category", string(category)),
		zap.String("poll_id", p.ID.String()),
		zap.Int("options", len(p.Options)))

	ref := e.announcer.TryPost(ctx, guildID, notify.Announcements, notify.PollOpened(p))
	if !ref.IsZero() {
		updated, err := e.store.UpdatePoll(ctx, guildID, p.ID, func(cur *models.Poll) error {
			cur.Announcement = ref
			return nil
		})
		if err != nil {
			e.logger.Warn("store poll announcement", zap.String("poll_id", p.ID.String()), zap.Error(err))
			p.Announcement = ref
			return p, nil
		}
		return updated, nil
	}
	return p, nil
}

// Get returns a poll.
func (e *Engine) Get(ctx context.Context, guildID string, pollID uuid.UUID) (*models.Poll, error) {
	return e.store.GetPoll(ctx, guildID, pollID)
}

// Active returns the open poll of a category.
func (e *Engine) Active(ctx context.Context, guildID string, category models.Category) (*models.Poll, error) {
	return e.store.ActivePoll(ctx, guildID, category)
}

// Latest returns the newest poll of a category, open or closed.
func (e *Engine) Latest(ctx context.Context, guildID string, category models.Category) (*models.Poll, error) {
	return e.store.LatestPoll(ctx, guildID, category)
}

// CastVote records userID's choice. Only the latest choice counts: a switch moves the
// vote in the same store transaction and a repeat is reported as VoteUnchanged.
func (e *Engine) CastVote(ctx context.Context, guildID string, pollID uuid.UUID, userID, optionID string) (*VoteResult, error) {
	if userID == "" {
		return nil, apperr.Validation("user id is required")
	}
	if optionID == "" {
		return nil, apperr.Validation("option id is required")
	}
	res := &VoteResult{}
	p, err := e.store.UpdatePoll(ctx, guildID, pollID, func(p *models.Poll) error {
		if !p.Active {
			return apperr.Validation("no poll currently open")
		}
		if _, ok := p.Option(optionID); !ok {
			return apperr.Validation("unknown option %q", optionID)
		}
		if p.Votes == nil {
			p.Votes = map[string]string{}
		}
		prev, voted := p.Votes[userID]
		switch {
		case voted && prev == optionID:
			res.Outcome = VoteUnchanged
			return apperr.ErrNoChange
		case voted:
			res.Outcome = VoteSwitched
			res.Previous = prev
		default:
			res.Outcome = VoteRecorded
		}
		p.Votes[userID] = optionID
		return nil
	})
	if err != nil {
		return nil, err
	}
	res.Poll = p
	res.Tally = p.Tally()
	e.metrics.Vote(string(res.Outcome))

	if res.Outcome == VoteRecorded && e.votes != nil {
		if err := e.votes.IncrementVotesCast(ctx, guildID, userID); err != nil {
			e.logger.Warn("increment votes cast", zap.String("guild_id", guildID), zap.String("user_id", userID), zap.Error(err))
		}
	}
	return res, nil
}

// ResolvePoll closes the poll and picks the winner. Resolving a closed poll returns the
// stored winner without writing.
func (e *Engine) ResolvePoll(ctx context.Context, guildID string, pollID uuid.UUID) (*models.Poll, error) {
	closedNow := false
	p, err := e.store.UpdatePoll(ctx, guildID, pollID, func(p *models.Poll) error {
		if !p.Active && p.WinnerOptionID != "" {
			return apperr.ErrNoChange
		}
		winner, ok := PickWinner(p)
		if !ok {
			return apperr.Validation("poll has no options")
		}
		now := e.now()
		p.Active = false
		p.WinnerOptionID = winner.OptionID
		p.ClosedAt = &now
		closedNow = true
		return nil
	})
	if err != nil {
		return nil, err
	}
	if closedNow {
		winner, _ := p.Winner()
		e.metrics.PollResolved()
		e.logger.Info("poll resolved",
			zap.String("guild_id", guildID),
			zap.String("poll_id", p.ID.String()),
			zap.String("winner_option_id", winner.OptionID),
			zap.Int("votes", len(p.Votes)))
		e.announcer.TryEdit(ctx, guildID, p.Announcement, notify.PollClosed(p, winner))
	}
	return p, nil
}

// PickWinner returns the option with the most votes. Ties go to the option listed first
// among the tied candidates, so the result depends only on the final vote set.
func PickWinner(p *models.Poll) (models.PollOption, bool) {
	if len(p.Options) == 0 {
		return models.PollOption{}, false
	}
	ordered := append([]models.PollOption(nil), p.Options...)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Position < ordered[j].Position })
	tally := p.Tally()
	best := ordered[0]
	for _, o := range ordered[1:] {
		if tally[o.OptionID] > tally[best.OptionID] {
			best = o
		}
	}
	return best, true
}
