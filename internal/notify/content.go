package notify

import (
	"github.com/aura-community/challenges/internal/models"
)

// PollOpened describes a new poll and its options.
func PollOpened(p *models.Poll) Content {
	options := make([]map[string]any, 0, len(p.Options))
	for _, o := range p.Options {
		options = append(options, map[string]any{
			"option_id": o.OptionID,
			"position":  o.Position,
			"name":      o.Template.Name(),
		})
	}
	return Content{Kind: KindPollOpened, Fields: map[string]any{
		"poll_id":  p.ID.String(),
		"category": string(p.Category),
		"options":  options,
	}}
}

// PollClosed describes a resolved poll.
func PollClosed(p *models.Poll, winner models.PollOption) Content {
	return Content{Kind: KindPollClosed, Fields: map[string]any{
		"poll_id":   p.ID.String(),
		"category":  string(p.Category),
		"winner":    winner.Template.Name(),
		"tally":     p.Tally(),
		"option_id": winner.OptionID,
	}}
}

// EventAnnouncement describes an event and its live counters.
func EventAnnouncement(kind Kind, e *models.ChallengeEvent) Content {
	return Content{Kind: kind, Fields: map[string]any{
		"event_id":   e.ID.String(),
		"category":   string(e.Category),
		"name":       e.Name(),
		"keyword":    e.Keyword,
		"starts_at":  e.StartsAt,
		"ends_at":    e.EndsAt,
		"thresholds": e.Thresholds,
		"counts":     e.Counts,
	}}
}

// SubmissionPending describes a submission awaiting review.
func SubmissionPending(s *models.Submission) Content {
	fields := map[string]any{
		"submission_id":  s.ID.String(),
		"event_id":       s.EventID.String(),
		"user_id":        s.UserID,
		"challenge_name": s.ChallengeName,
		"evidence":       s.Evidence,
	}
	if s.Notes != nil {
		fields["notes"] = *s.Notes
	}
	return Content{Kind: KindSubmissionPending, Fields: fields}
}

// SubmissionResolved describes a review decision for the submitter.
func SubmissionResolved(s *models.Submission) Content {
	fields := map[string]any{
		"submission_id":  s.ID.String(),
		"challenge_name": s.ChallengeName,
		"status":         string(s.Status),
		"reviewer_id":    s.ReviewerID,
	}
	kind := KindSubmissionApproved
	if s.Status == models.SubmissionRejected {
		kind = KindSubmissionRejected
		if s.RejectionReason != nil {
			fields["reason"] = *s.RejectionReason
		}
	} else {
		fields["rolls"] = s.Rolls
	}
	return Content{Kind: kind, Fields: fields}
}

// DrawAnnounced describes a rolled draw for the public channel.
func DrawAnnounced(d *models.PrizeDraw) Content {
	return Content{Kind: KindDrawAnnounced, Fields: map[string]any{
		"draw_id":        d.ID,
		"window_start":   d.WindowStart,
		"window_end":     d.WindowEnd,
		"participants":   len(d.Participants),
		"total_entries":  d.TotalEntries,
		"tier_breakdown": d.TierBreakdown,
		"winner_id":      d.WinnerID,
		"winner_tickets": d.Participants[d.WinnerID],
	}}
}

// DrawWinner is the direct message sent to the winner.
func DrawWinner(d *models.PrizeDraw) Content {
	return Content{Kind: KindDrawWinner, Fields: map[string]any{
		"draw_id":        d.ID,
		"total_entries":  d.TotalEntries,
		"winner_tickets": d.Participants[d.WinnerID],
	}}
}
