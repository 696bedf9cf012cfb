package memstore

import (
	"maps"
	"slices"

	"github.com/aura-community/challenges/internal/models"
)

func clonePoll(p *models.Poll) *models.Poll {
	cp := *p
	cp.Options = slices.Clone(p.Options)
	cp.Votes = maps.Clone(p.Votes)
	if p.ClosedAt != nil {
		t := *p.ClosedAt
		cp.ClosedAt = &t
	}
	return &cp
}

func cloneEvent(e *models.ChallengeEvent) *models.ChallengeEvent {
	cp := *e
	cp.Completions = maps.Clone(e.Completions)
	return &cp
}

func cloneSubmission(s *models.Submission) *models.Submission {
	cp := *s
	cp.Evidence = slices.Clone(s.Evidence)
	cp.ArchiveKeys = slices.Clone(s.ArchiveKeys)
	if s.Notes != nil {
		n := *s.Notes
		cp.Notes = &n
	}
	if s.RejectionReason != nil {
		r := *s.RejectionReason
		cp.RejectionReason = &r
	}
	if s.ReviewedAt != nil {
		t := *s.ReviewedAt
		cp.ReviewedAt = &t
	}
	return &cp
}

func cloneDraw(d *models.PrizeDraw) *models.PrizeDraw {
	cp := *d
	cp.Participants = maps.Clone(d.Participants)
	cp.Tickets = slices.Clone(d.Tickets)
	if d.RolledAt != nil {
		t := *d.RolledAt
		cp.RolledAt = &t
	}
	if d.AnnouncedAt != nil {
		t := *d.AnnouncedAt
		cp.AnnouncedAt = &t
	}
	return &cp
}

func cloneTrigger(st *models.TriggerState) models.TriggerState {
	cp := *st
	if st.LastFiredAt != nil {
		t := *st.LastFiredAt
		cp.LastFiredAt = &t
	}
	return cp
}
