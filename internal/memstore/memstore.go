// Package memstore is an in-process implementation of every engine store. Each operation
// holds one mutex, which gives the same atomicity as the row-locking transactions of the
// Postgres repositories. It backs tests and STORE_DRIVER=memory.
package memstore

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/aura-community/challenges/internal/apperr"
	"github.com/aura-community/challenges/internal/models"
)

type triggerKey struct {
	guild    string
	category models.Category
	trigger  models.TriggerKind
}

type feedbackKey struct {
	guild    string
	user     string
	template uuid.UUID
}

type statsKey struct {
	guild string
	user  string
}

type drawKey struct {
	guild string
	id    string
}

// Store holds all entities in memory.
type Store struct {
	mu          sync.Mutex
	templates   map[uuid.UUID]*models.ChallengeTemplate
	feedback    map[feedbackKey]*models.Feedback
	polls       map[uuid.UUID]*models.Poll
	pollOrder   map[uuid.UUID]int
	events      map[uuid.UUID]*models.ChallengeEvent
	submissions map[uuid.UUID]*models.Submission
	draws       map[drawKey]*models.PrizeDraw
	triggers    map[triggerKey]*models.TriggerState
	stats       map[statsKey]*models.UserStats
	settings    map[string]*models.GuildSettings
	seq         int

	// Fail, when set, is consulted before every operation; a non-nil result is returned as is.
	Fail func(op string) error
}

// New creates an empty store.
func New() *Store {
	return &Store{
		templates:   make(map[uuid.UUID]*models.ChallengeTemplate),
		feedback:    make(map[feedbackKey]*models.Feedback),
		polls:       make(map[uuid.UUID]*models.Poll),
		pollOrder:   make(map[uuid.UUID]int),
		events:      make(map[uuid.UUID]*models.ChallengeEvent),
		submissions: make(map[uuid.UUID]*models.Submission),
		draws:       make(map[drawKey]*models.PrizeDraw),
		triggers:    make(map[triggerKey]*models.TriggerState),
		stats:       make(map[statsKey]*models.UserStats),
		settings:    make(map[string]*models.GuildSettings),
	}
}

func (s *Store) lock(op string) error {
	s.mu.Lock()
	if s.Fail != nil {
		if err := s.Fail(op); err != nil {
			s.mu.Unlock()
			return err
		}
	}
	return nil
}

// seqTime returns a strictly increasing timestamp so creation order is stable in listings.
func (s *Store) seqTime() time.Time {
	s.seq++
	return time.Unix(0, 0).Add(time.Duration(s.seq) * time.Millisecond)
}

// mutate runs fn and reports whether the caller should store the mutated copy.
func mutate(fn func() error) (bool, error) {
	if err := fn(); err != nil {
		if errors.Is(err, apperr.ErrNoChange) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// ---- templates and feedback ----

// ListTemplates returns a guild's templates for a category in creation order.
func (s *Store) ListTemplates(_ context.Context, guildID string, category models.Category) ([]models.ChallengeTemplate, error) {
	if err := s.lock("ListTemplates"); err != nil {
		return nil, err
	}
	defer s.mu.Unlock()
	var list []models.ChallengeTemplate
	for _, t := range s.templates {
		if t.GuildID == guildID && t.Category == category {
			list = append(list, *t)
		}
	}
	sort.Slice(list, func(i, j int) bool { return list[i].CreatedAt.Before(list[j].CreatedAt) })
	return list, nil
}

// GetTemplate returns a template by ID.
func (s *Store) GetTemplate(_ context.Context, guildID string, id uuid.UUID) (*models.ChallengeTemplate, error) {
	if err := s.lock("GetTemplate"); err != nil {
		return nil, err
	}
	defer s.mu.Unlock()
	t, ok := s.templates[id]
	if !ok || t.GuildID != guildID {
		return nil, apperr.NotFound("template not found")
	}
	cp := *t
	return &cp, nil
}

// UpsertTemplate inserts a template or refreshes thresholds of the one with the same text.
func (s *Store) UpsertTemplate(_ context.Context, t *models.ChallengeTemplate) error {
	if err := s.lock("UpsertTemplate"); err != nil {
		return err
	}
	defer s.mu.Unlock()
	for _, existing := range s.templates {
		if existing.GuildID == t.GuildID && existing.Category == t.Category && existing.Text == t.Text {
			existing.CompletionType = t.CompletionType
			existing.Thresholds = t.Thresholds
			t.ID, t.Weight, t.CreatedAt = existing.ID, existing.Weight, existing.CreatedAt
			return nil
		}
	}
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = s.seqTime()
	}
	cp := *t
	s.templates[t.ID] = &cp
	return nil
}

// ApplyFeedback runs fn against the template and prior feedback under the store lock.
func (s *Store) ApplyFeedback(_ context.Context, guildID string, templateID uuid.UUID, userID string,
	fn func(t *models.ChallengeTemplate, prev *models.Feedback) (*models.Feedback, error)) (*models.ChallengeTemplate, error) {
	if err := s.lock("ApplyFeedback"); err != nil {
		return nil, err
	}
	defer s.mu.Unlock()
	t, ok := s.templates[templateID]
	if !ok || t.GuildID != guildID {
		return nil, apperr.NotFound("template not found")
	}
	key := feedbackKey{guild: guildID, user: userID, template: templateID}
	var prev *models.Feedback
	if fb, ok := s.feedback[key]; ok {
		cp := *fb
		prev = &cp
	}
	work := *t
	var next *models.Feedback
	store, err := mutate(func() error {
		var err error
		next, err = fn(&work, prev)
		return err
	})
	if err != nil {
		return nil, err
	}
	if !store {
		cp := *t
		return &cp, nil
	}
	*t = work
	fb := *next
	s.feedback[key] = &fb
	cp := *t
	return &cp, nil
}

// Feedback returns the stored feedback of userID for a template.
func (s *Store) Feedback(guildID, userID string, templateID uuid.UUID) (*models.Feedback, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fb, ok := s.feedback[feedbackKey{guild: guildID, user: userID, template: templateID}]
	if !ok {
		return nil, false
	}
	cp := *fb
	return &cp, true
}

// ---- polls ----

// CreatePoll inserts a poll. A second active poll for the same category is a conflict.
func (s *Store) CreatePoll(_ context.Context, p *models.Poll) error {
	if err := s.lock("CreatePoll"); err != nil {
		return err
	}
	defer s.mu.Unlock()
	if p.Active {
		for _, existing := range s.polls {
			if existing.GuildID == p.GuildID && existing.Category == p.Category && existing.Active {
				return apperr.Conflict("a poll is already open for %s", p.Category)
			}
		}
	}
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = s.seqTime()
	}
	s.polls[p.ID] = clonePoll(p)
	s.seq++
	s.pollOrder[p.ID] = s.seq
	return nil
}

// GetPoll returns a poll by ID.
func (s *Store) GetPoll(_ context.Context, guildID string, id uuid.UUID) (*models.Poll, error) {
	if err := s.lock("GetPoll"); err != nil {
		return nil, err
	}
	defer s.mu.Unlock()
	p, ok := s.polls[id]
	if !ok || p.GuildID != guildID {
		return nil, apperr.NotFound("poll not found")
	}
	return clonePoll(p), nil
}

// ActivePoll returns the open poll of a category.
func (s *Store) ActivePoll(_ context.Context, guildID string, category models.Category) (*models.Poll, error) {
	if err := s.lock("ActivePoll"); err != nil {
		return nil, err
	}
	defer s.mu.Unlock()
	for _, p := range s.polls {
		if p.GuildID == guildID && p.Category == category && p.Active {
			return clonePoll(p), nil
		}
	}
	return nil, apperr.NotFound("no poll currently open for %s", category)
}

// LatestPoll returns the most recently created poll of a category.
func (s *Store) LatestPoll(_ context.Context, guildID string, category models.Category) (*models.Poll, error) {
	if err := s.lock("LatestPoll"); err != nil {
		return nil, err
	}
	defer s.mu.Unlock()
	var latest *models.Poll
	for _, p := range s.polls {
		if p.GuildID == guildID && p.Category == category {
			if latest == nil || s.pollOrder[p.ID] > s.pollOrder[latest.ID] {
				latest = p
			}
		}
	}
	if latest == nil {
		return nil, apperr.NotFound("no poll for %s", category)
	}
	return clonePoll(latest), nil
}

// UpdatePoll applies fn to a poll atomically.
func (s *Store) UpdatePoll(_ context.Context, guildID string, id uuid.UUID, fn func(*models.Poll) error) (*models.Poll, error) {
	if err := s.lock("UpdatePoll"); err != nil {
		return nil, err
	}
	defer s.mu.Unlock()
	p, ok := s.polls[id]
	if !ok || p.GuildID != guildID {
		return nil, apperr.NotFound("poll not found")
	}
	work := clonePoll(p)
	store, err := mutate(func() error { return fn(work) })
	if err != nil {
		return nil, err
	}
	if store {
		s.polls[id] = clonePoll(work)
	}
	return clonePoll(s.polls[id]), nil
}

// ---- events ----

// CreateEvent inserts an event. A second event for the same poll is a conflict.
func (s *Store) CreateEvent(_ context.Context, e *models.ChallengeEvent) error {
	if err := s.lock("CreateEvent"); err != nil {
		return err
	}
	defer s.mu.Unlock()
	for _, existing := range s.events {
		if existing.GuildID == e.GuildID && existing.PollID == e.PollID {
			return apperr.Conflict("event already exists for poll")
		}
	}
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = s.seqTime()
	}
	s.events[e.ID] = cloneEvent(e)
	return nil
}

// GetEvent returns an event by ID.
func (s *Store) GetEvent(_ context.Context, guildID string, id uuid.UUID) (*models.ChallengeEvent, error) {
	if err := s.lock("GetEvent"); err != nil {
		return nil, err
	}
	defer s.mu.Unlock()
	e, ok := s.events[id]
	if !ok || e.GuildID != guildID {
		return nil, apperr.NotFound("event not found")
	}
	return cloneEvent(e), nil
}

// EventByPoll returns the event started from a poll.
func (s *Store) EventByPoll(_ context.Context, guildID string, pollID uuid.UUID) (*models.ChallengeEvent, error) {
	if err := s.lock("EventByPoll"); err != nil {
		return nil, err
	}
	defer s.mu.Unlock()
	for _, e := range s.events {
		if e.GuildID == guildID && e.PollID == pollID {
			return cloneEvent(e), nil
		}
	}
	return nil, apperr.NotFound("event not found")
}

// UpdateEvent applies fn to an event atomically.
func (s *Store) UpdateEvent(_ context.Context, guildID string, id uuid.UUID, fn func(*models.ChallengeEvent) error) (*models.ChallengeEvent, error) {
	if err := s.lock("UpdateEvent"); err != nil {
		return nil, err
	}
	defer s.mu.Unlock()
	e, ok := s.events[id]
	if !ok || e.GuildID != guildID {
		return nil, apperr.NotFound("event not found")
	}
	work := cloneEvent(e)
	store, err := mutate(func() error { return fn(work) })
	if err != nil {
		return nil, err
	}
	if store {
		s.events[id] = cloneEvent(work)
	}
	return cloneEvent(s.events[id]), nil
}

// ListEventsStarted returns events whose start falls in [from, to), oldest first.
func (s *Store) ListEventsStarted(_ context.Context, guildID string, from, to time.Time) ([]models.ChallengeEvent, error) {
	if err := s.lock("ListEventsStarted"); err != nil {
		return nil, err
	}
	defer s.mu.Unlock()
	var list []models.ChallengeEvent
	for _, e := range s.events {
		if e.GuildID == guildID && !e.StartsAt.Before(from) && e.StartsAt.Before(to) {
			list = append(list, *cloneEvent(e))
		}
	}
	sort.Slice(list, func(i, j int) bool { return list[i].StartsAt.Before(list[j].StartsAt) })
	return list, nil
}

// ---- submissions ----

// CreateSubmission inserts a submission.
func (s *Store) CreateSubmission(_ context.Context, sub *models.Submission) error {
	if err := s.lock("CreateSubmission"); err != nil {
		return err
	}
	defer s.mu.Unlock()
	if sub.ID == uuid.Nil {
		sub.ID = uuid.New()
	}
	if sub.CreatedAt.IsZero() {
		sub.CreatedAt = s.seqTime()
	}
	s.submissions[sub.ID] = cloneSubmission(sub)
	return nil
}

// GetSubmission returns a submission by ID.
func (s *Store) GetSubmission(_ context.Context, guildID string, id uuid.UUID) (*models.Submission, error) {
	if err := s.lock("GetSubmission"); err != nil {
		return nil, err
	}
	defer s.mu.Unlock()
	sub, ok := s.submissions[id]
	if !ok || sub.GuildID != guildID {
		return nil, apperr.NotFound("submission not found")
	}
	return cloneSubmission(sub), nil
}

// UpdateSubmission applies fn to a submission atomically.
func (s *Store) UpdateSubmission(_ context.Context, guildID string, id uuid.UUID, fn func(*models.Submission) error) (*models.Submission, error) {
	if err := s.lock("UpdateSubmission"); err != nil {
		return nil, err
	}
	defer s.mu.Unlock()
	sub, ok := s.submissions[id]
	if !ok || sub.GuildID != guildID {
		return nil, apperr.NotFound("submission not found")
	}
	work := cloneSubmission(sub)
	store, err := mutate(func() error { return fn(work) })
	if err != nil {
		return nil, err
	}
	if store {
		s.submissions[id] = cloneSubmission(work)
	}
	return cloneSubmission(s.submissions[id]), nil
}

// ListPending returns pending submissions oldest first.
func (s *Store) ListPending(_ context.Context, guildID string) ([]models.Submission, error) {
	if err := s.lock("ListPending"); err != nil {
		return nil, err
	}
	defer s.mu.Unlock()
	var list []models.Submission
	for _, sub := range s.submissions {
		if sub.GuildID == guildID && sub.Status == models.SubmissionPending {
			list = append(list, *cloneSubmission(sub))
		}
	}
	sort.Slice(list, func(i, j int) bool { return list[i].CreatedAt.Before(list[j].CreatedAt) })
	return list, nil
}

// ListApproved returns tier-approved submissions of the given events.
func (s *Store) ListApproved(_ context.Context, guildID string, eventIDs []uuid.UUID) ([]models.Submission, error) {
	if err := s.lock("ListApproved"); err != nil {
		return nil, err
	}
	defer s.mu.Unlock()
	want := make(map[uuid.UUID]bool, len(eventIDs))
	for _, id := range eventIDs {
		want[id] = true
	}
	var list []models.Submission
	for _, sub := range s.submissions {
		if sub.GuildID == guildID && want[sub.EventID] && sub.Status.Tier() != models.TierNone {
			list = append(list, *cloneSubmission(sub))
		}
	}
	sort.Slice(list, func(i, j int) bool { return list[i].CreatedAt.Before(list[j].CreatedAt) })
	return list, nil
}

// ---- draws ----

// SaveSnapshot stores d unless the stored draw already has a winner, in which case the
// stored draw is returned unchanged.
func (s *Store) SaveSnapshot(_ context.Context, d *models.PrizeDraw) (*models.PrizeDraw, error) {
	if err := s.lock("SaveSnapshot"); err != nil {
		return nil, err
	}
	defer s.mu.Unlock()
	key := drawKey{guild: d.GuildID, id: d.ID}
	if existing, ok := s.draws[key]; ok {
		if existing.HasWinner() {
			return cloneDraw(existing), nil
		}
		cp := cloneDraw(d)
		cp.CreatedAt = existing.CreatedAt
		s.draws[key] = cp
		return cloneDraw(cp), nil
	}
	if d.CreatedAt.IsZero() {
		d.CreatedAt = s.seqTime()
	}
	s.draws[key] = cloneDraw(d)
	return cloneDraw(d), nil
}

// GetDraw returns a draw by ID.
func (s *Store) GetDraw(_ context.Context, guildID, id string) (*models.PrizeDraw, error) {
	if err := s.lock("GetDraw"); err != nil {
		return nil, err
	}
	defer s.mu.Unlock()
	d, ok := s.draws[drawKey{guild: guildID, id: id}]
	if !ok {
		return nil, apperr.NotFound("draw not found")
	}
	return cloneDraw(d), nil
}

// UpdateDraw applies fn to a draw atomically.
func (s *Store) UpdateDraw(_ context.Context, guildID, id string, fn func(*models.PrizeDraw) error) (*models.PrizeDraw, error) {
	if err := s.lock("UpdateDraw"); err != nil {
		return nil, err
	}
	defer s.mu.Unlock()
	key := drawKey{guild: guildID, id: id}
	d, ok := s.draws[key]
	if !ok {
		return nil, apperr.NotFound("draw not found")
	}
	work := cloneDraw(d)
	store, err := mutate(func() error { return fn(work) })
	if err != nil {
		return nil, err
	}
	if store {
		s.draws[key] = cloneDraw(work)
	}
	return cloneDraw(s.draws[key]), nil
}

// ---- scheduler ----

// LoadTriggerStates returns the persisted trigger states of a guild.
func (s *Store) LoadTriggerStates(_ context.Context, guildID string) ([]models.TriggerState, error) {
	if err := s.lock("LoadTriggerStates"); err != nil {
		return nil, err
	}
	defer s.mu.Unlock()
	var list []models.TriggerState
	for k, st := range s.triggers {
		if k.guild == guildID {
			list = append(list, cloneTrigger(st))
		}
	}
	sort.Slice(list, func(i, j int) bool {
		if list[i].Category != list[j].Category {
			return list[i].Category < list[j].Category
		}
		return list[i].Trigger < list[j].Trigger
	})
	return list, nil
}

// SaveTriggerState upserts a trigger state.
func (s *Store) SaveTriggerState(_ context.Context, st *models.TriggerState) error {
	if err := s.lock("SaveTriggerState"); err != nil {
		return err
	}
	defer s.mu.Unlock()
	cp := cloneTrigger(st)
	s.triggers[triggerKey{guild: st.GuildID, category: st.Category, trigger: st.Trigger}] = &cp
	return nil
}

// ---- stats and settings ----

func (s *Store) statsFor(guildID, userID string) *models.UserStats {
	key := statsKey{guild: guildID, user: userID}
	st, ok := s.stats[key]
	if !ok {
		st = &models.UserStats{GuildID: guildID, UserID: userID}
		s.stats[key] = st
	}
	return st
}

// IncrementVotesCast adds one to a member's vote counter.
func (s *Store) IncrementVotesCast(_ context.Context, guildID, userID string) error {
	if err := s.lock("IncrementVotesCast"); err != nil {
		return err
	}
	defer s.mu.Unlock()
	s.statsFor(guildID, userID).VotesCast++
	return nil
}

// IncrementPrizesWon adds one to a member's prize counter.
func (s *Store) IncrementPrizesWon(_ context.Context, guildID, userID string) error {
	if err := s.lock("IncrementPrizesWon"); err != nil {
		return err
	}
	defer s.mu.Unlock()
	s.statsFor(guildID, userID).PrizesWon++
	return nil
}

// GetStats returns a member's counters; unknown members have zero counters.
func (s *Store) GetStats(_ context.Context, guildID, userID string) (*models.UserStats, error) {
	if err := s.lock("GetStats"); err != nil {
		return nil, err
	}
	defer s.mu.Unlock()
	cp := *s.statsFor(guildID, userID)
	return &cp, nil
}

// Settings returns a guild's announcement destinations.
func (s *Store) Settings(_ context.Context, guildID string) (*models.GuildSettings, error) {
	if err := s.lock("Settings"); err != nil {
		return nil, err
	}
	defer s.mu.Unlock()
	gs, ok := s.settings[guildID]
	if !ok {
		return nil, apperr.NotFound("guild settings not found")
	}
	cp := *gs
	return &cp, nil
}

// PutSettings stores guild settings. The setup tooling owns this in production.
func (s *Store) PutSettings(gs models.GuildSettings) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings[gs.GuildID] = &gs
}
