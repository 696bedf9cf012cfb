package submissions

import (
	"context"
	"strings"
	"time"

	"github.com/AlekSi/pointer"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/aura-community/challenges/internal/apperr"
	"github.com/aura-community/challenges/internal/metrics"
	"github.com/aura-community/challenges/internal/models"
	"github.com/aura-community/challenges/internal/notify"
	"github.com/aura-community/challenges/pkg/queue"
)

// Store persists submissions. UpdateSubmission runs fn on a locked row.
type Store interface {
	CreateSubmission(ctx context.Context, s *models.Submission) error
	GetSubmission(ctx context.Context, guildID string, id uuid.UUID) (*models.Submission, error)
	UpdateSubmission(ctx context.Context, guildID string, id uuid.UUID, fn func(*models.Submission) error) (*models.Submission, error)
	ListPending(ctx context.Context, guildID string) ([]models.Submission, error)
}

// EventProgress reads events and credits approved tiers.
type EventProgress interface {
	Get(ctx context.Context, guildID string, id uuid.UUID) (*models.ChallengeEvent, error)
	RecordProgress(ctx context.Context, guildID string, eventID uuid.UUID, userID string, tier models.Tier) (*models.ChallengeEvent, bool, error)
}

// Archiver schedules evidence archival for resolved submissions.
type Archiver interface {
	EnqueueEvidenceArchive(ctx context.Context, payload queue.EvidenceArchivePayload) error
}

// Decision is a reviewer's verdict.
type Decision string

const (
	DecisionBronze Decision = "bronze"
	DecisionSilver Decision = "silver"
	DecisionGold   Decision = "gold"
	DecisionReject Decision = "reject"
)

// Tier returns the tier a decision approves, or TierNone for reject and unknown values.
func (d Decision) Tier() models.Tier {
	t, _ := models.ParseTier(string(d))
	return t
}

// Outcome is what a review did.
type Outcome string

const (
	OutcomeApproved        Outcome = "approved"
	OutcomeRejected        Outcome = "rejected"
	OutcomeAlreadyResolved Outcome = "already_resolved"
	OutcomeTierAlreadyHeld Outcome = "tier_already_held"
)

// ReviewResult is the submission after a review and what happened to it.
type ReviewResult struct {
	Submission *models.Submission     `json:"submission"`
	Outcome    Outcome                `json:"outcome"`
	Event      *models.ChallengeEvent `json:"event,omitempty"`
}

// Service runs the submission review state machine:
// pending -> bronze | silver | gold | rejected, all terminal.
type Service struct {
	store     Store
	events    EventProgress
	announcer *notify.Announcer
	archiver  Archiver
	rolls     models.TierRolls
	metrics   *metrics.Metrics
	now       func() time.Time
	logger    *zap.Logger
}

// NewService creates a review service. archiver may be nil.
func NewService(store Store, events EventProgress, announcer *notify.Announcer, archiver Archiver, rolls models.TierRolls, m *metrics.Metrics, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		store:     store,
		events:    events,
		announcer: announcer,
		archiver:  archiver,
		rolls:     rolls,
		metrics:   m,
		now:       time.Now,
		logger:    logger,
	}
}

// Get returns a submission.
func (s *Service) Get(ctx context.Context, guildID string, id uuid.UUID) (*models.Submission, error) {
	return s.store.GetSubmission(ctx, guildID, id)
}

// ListPending returns the review queue, oldest first.
func (s *Service) ListPending(ctx context.Context, guildID string) ([]models.Submission, error) {
	return s.store.ListPending(ctx, guildID)
}

// SubmitEvidence creates a pending submission for an active event and posts it to the
// review channel.
func (s *Service) SubmitEvidence(ctx context.Context, guildID string, eventID uuid.UUID, userID string, evidence []string, notes string) (*models.Submission, error) {
	refs := make([]string, 0, len(evidence))
	for _, e := range evidence {
		if e = strings.TrimSpace(e); e != "" {
			refs = append(refs, e)
		}
	}
	if len(refs) == 0 {
		return nil, apperr.Validation("at least one evidence reference is required")
	}
	e, err := s.events.Get(ctx, guildID, eventID)
	if err != nil {
		return nil, err
	}
	now := s.now()
	if st := e.Status(now); st != models.EventActive {
		return nil, apperr.Validation("event is %s, submissions are closed", st)
	}

	sub := &models.Submission{
		ID:            uuid.New(),
		GuildID:       guildID,
		EventID:       eventID,
		UserID:        userID,
		Evidence:      refs,
		Notes:         pointer.ToStringOrNil(strings.TrimSpace(notes)),
		Status:        models.SubmissionPending,
		ChallengeName: e.Name(),
		CreatedAt:     now,
	}
	if err := s.store.CreateSubmission(ctx, sub); err != nil {
		return nil, err
	}
	s.logger.Info("submission received",
		zap.String("guild_id", guildID),
		zap.String("event_id", eventID.String()),
		zap.String("submission_id", sub.ID.String()),
		zap.String("user_id", userID))

	ref := s.announcer.TryPost(ctx, guildID, notify.Reviews, notify.SubmissionPending(sub))
	if ref.IsZero() {
		return sub, nil
	}
	updated, err := s.store.UpdateSubmission(ctx, guildID, sub.ID, func(cur *models.Submission) error {
		cur.ReviewMessage = ref
		return nil
	})
	if err != nil {
		s.logger.Warn("store review message", zap.String("submission_id", sub.ID.String()), zap.Error(err))
		sub.ReviewMessage = ref
		return sub, nil
	}
	return updated, nil
}

// ReviewSubmission applies a reviewer decision. Resolved submissions are terminal and
// come back unchanged. An approval granting no more rolls than the member already holds
// on the event leaves the submission pending. A rejection requires a reason.
func (s *Service) ReviewSubmission(ctx context.Context, guildID string, id uuid.UUID, reviewerID string, decision Decision, reason string) (*ReviewResult, error) {
	tier := decision.Tier()
	reason = strings.TrimSpace(reason)
	switch {
	case decision == DecisionReject:
		if reason == "" {
			return nil, apperr.Validation("a rejection reason is required")
		}
	case tier == models.TierNone:
		return nil, apperr.Validation("unknown decision %q", decision)
	}

	sub, err := s.store.GetSubmission(ctx, guildID, id)
	if err != nil {
		return nil, err
	}
	if sub.Resolved() {
		return s.resume(ctx, sub)
	}

	if decision == DecisionReject {
		return s.reject(ctx, sub, reviewerID, reason)
	}
	return s.approve(ctx, sub, reviewerID, tier)
}

func (s *Service) approve(ctx context.Context, sub *models.Submission, reviewerID string, tier models.Tier) (*ReviewResult, error) {
	e, err := s.events.Get(ctx, sub.GuildID, sub.EventID)
	if err != nil {
		return nil, err
	}
	rolls := s.rolls.For(tier)
	if held := e.HeldTier(sub.UserID); held != models.TierNone && rolls <= s.rolls.For(held) {
		return s.result(sub, OutcomeTierAlreadyHeld, e), nil
	}

	reviewedAt := s.now()
	transitioned := false
	updated, err := s.store.UpdateSubmission(ctx, sub.GuildID, sub.ID, func(cur *models.Submission) error {
		if cur.Resolved() {
			return apperr.ErrNoChange
		}
		cur.Status = models.StatusForTier(tier)
		cur.ReviewerID = reviewerID
		cur.ReviewedAt = &reviewedAt
		cur.Rolls = rolls
		transitioned = true
		return nil
	})
	if err != nil {
		return nil, err
	}
	if !transitioned {
		return s.result(updated, OutcomeAlreadyResolved, nil), nil
	}

	return s.credit(ctx, updated, reviewerID, OutcomeTierAlreadyHeld)
}

// resume finishes an approval whose event credit never landed: the submission holds a
// tier above what the event records for the member. Anything else is already resolved.
func (s *Service) resume(ctx context.Context, sub *models.Submission) (*ReviewResult, error) {
	tier := sub.Status.Tier()
	if tier == models.TierNone {
		return s.result(sub, OutcomeAlreadyResolved, nil), nil
	}
	e, err := s.events.Get(ctx, sub.GuildID, sub.EventID)
	if err != nil {
		return nil, err
	}
	if e.HeldTier(sub.UserID) >= tier {
		return s.result(sub, OutcomeAlreadyResolved, e), nil
	}
	s.logger.Warn("resuming approval without event credit",
		zap.String("guild_id", sub.GuildID),
		zap.String("submission_id", sub.ID.String()),
		zap.String("tier", tier.String()))
	return s.credit(ctx, sub, sub.ReviewerID, OutcomeAlreadyResolved)
}

// credit records an approved submission on its event, then runs the resolution side
// effects. On failure the submission stays approved and a later review resumes it. When
// the event already holds the tier, whoever upgraded it owns the side effects and
// unchanged is returned.
func (s *Service) credit(ctx context.Context, sub *models.Submission, reviewerID string, unchanged Outcome) (*ReviewResult, error) {
	tier := sub.Status.Tier()
	e, changed, err := s.events.RecordProgress(ctx, sub.GuildID, sub.EventID, sub.UserID, tier)
	if err != nil {
		s.logger.Error("record progress for approved submission",
			zap.String("guild_id", sub.GuildID),
			zap.String("submission_id", sub.ID.String()),
			zap.Error(err))
		return nil, err
	}
	if !changed {
		return s.result(sub, unchanged, e), nil
	}
	s.logger.Info("submission approved",
		zap.String("guild_id", sub.GuildID),
		zap.String("submission_id", sub.ID.String()),
		zap.String("tier", tier.String()),
		zap.String("reviewer_id", reviewerID))
	s.resolved(ctx, sub)
	return s.result(sub, OutcomeApproved, e), nil
}

func (s *Service) reject(ctx context.Context, sub *models.Submission, reviewerID, reason string) (*ReviewResult, error) {
	reviewedAt := s.now()
	transitioned := false
	updated, err := s.store.UpdateSubmission(ctx, sub.GuildID, sub.ID, func(cur *models.Submission) error {
		if cur.Resolved() {
			return apperr.ErrNoChange
		}
		cur.Status = models.SubmissionRejected
		cur.ReviewerID = reviewerID
		cur.ReviewedAt = &reviewedAt
		cur.RejectionReason = pointer.ToString(reason)
		transitioned = true
		return nil
	})
	if err != nil {
		return nil, err
	}
	if !transitioned {
		return s.result(updated, OutcomeAlreadyResolved, nil), nil
	}
	s.logger.Info("submission rejected",
		zap.String("guild_id", sub.GuildID),
		zap.String("submission_id", sub.ID.String()),
		zap.String("reviewer_id", reviewerID))
	s.resolved(ctx, updated)
	return s.result(updated, OutcomeRejected, nil), nil
}

// resolved runs the side effects of a terminal transition. None of them can undo it.
func (s *Service) resolved(ctx context.Context, sub *models.Submission) {
	s.announcer.TryDirectMessage(ctx, sub.GuildID, sub.UserID, notify.SubmissionResolved(sub))
	if s.archiver != nil {
		err := s.archiver.EnqueueEvidenceArchive(ctx, queue.EvidenceArchivePayload{
			GuildID:      sub.GuildID,
			SubmissionID: sub.ID,
			EventID:      sub.EventID,
			UserID:       sub.UserID,
			Evidence:     sub.Evidence,
		})
		if err != nil {
			s.logger.Warn("enqueue evidence archive", zap.String("submission_id", sub.ID.String()), zap.Error(err))
		}
	}
	s.announcer.TryRetract(ctx, sub.GuildID, sub.ReviewMessage)
}

func (s *Service) result(sub *models.Submission, outcome Outcome, e *models.ChallengeEvent) *ReviewResult {
	s.metrics.Review(string(outcome))
	return &ReviewResult{Submission: sub, Outcome: outcome, Event: e}
}
