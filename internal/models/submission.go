package models

import (
	"time"

	"github.com/google/uuid"
)

// SubmissionStatus is the review state of a submission.
type SubmissionStatus string

const (
	SubmissionPending  SubmissionStatus = "pending"
	SubmissionBronze   SubmissionStatus = "bronze"
	SubmissionSilver   SubmissionStatus = "silver"
	SubmissionGold     SubmissionStatus = "gold"
	SubmissionRejected SubmissionStatus = "rejected"
)

// StatusForTier maps an approved tier to its status.
func StatusForTier(t Tier) SubmissionStatus {
	switch t {
	case TierBronze:
		return SubmissionBronze
	case TierSilver:
		return SubmissionSilver
	case TierGold:
		return SubmissionGold
	}
	return SubmissionPending
}

// Tier returns the approved tier, or TierNone for pending and rejected submissions.
func (s SubmissionStatus) Tier() Tier {
	switch s {
	case SubmissionBronze:
		return TierBronze
	case SubmissionSilver:
		return TierSilver
	case SubmissionGold:
		return TierGold
	}
	return TierNone
}

// Submission is a member's evidence for a challenge event.
type Submission struct {
	ID              uuid.UUID        `json:"id"`
	GuildID         string           `json:"guild_id"`
	EventID         uuid.UUID        `json:"event_id"`
	UserID          string           `json:"user_id"`
	Evidence        []string         `json:"evidence"`
	Notes           *string          `json:"notes,omitempty"`
	Status          SubmissionStatus `json:"status"`
	ReviewerID      string           `json:"reviewer_id,omitempty"`
	ReviewedAt      *time.Time       `json:"reviewed_at,omitempty"`
	RejectionReason *string          `json:"rejection_reason,omitempty"`
	Rolls           int              `json:"rolls"`
	ChallengeName   string           `json:"challenge_name"`
	ReviewMessage   MessageRef       `json:"review_message"`
	ArchiveKeys     []string         `json:"archive_keys,omitempty"`
	CreatedAt       time.Time        `json:"created_at"`
}

// Resolved reports whether a reviewer has acted on the submission.
func (s *Submission) Resolved() bool {
	return s.Status != SubmissionPending
}
