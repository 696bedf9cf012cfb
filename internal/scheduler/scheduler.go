package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/aura-community/challenges/internal/apperr"
	"github.com/aura-community/challenges/internal/metrics"
	"github.com/aura-community/challenges/internal/models"
)

// StateStore persists trigger positions across restarts.
type StateStore interface {
	LoadTriggerStates(ctx context.Context, guildID string) ([]models.TriggerState, error)
	SaveTriggerState(ctx context.Context, st *models.TriggerState) error
}

// Polls opens and resolves category polls.
type Polls interface {
	OpenPoll(ctx context.Context, guildID string, category models.Category) (*models.Poll, error)
	Active(ctx context.Context, guildID string, category models.Category) (*models.Poll, error)
	Latest(ctx context.Context, guildID string, category models.Category) (*models.Poll, error)
	ResolvePoll(ctx context.Context, guildID string, pollID uuid.UUID) (*models.Poll, error)
}

// Events starts events from resolved polls.
type Events interface {
	StartEvent(ctx context.Context, poll *models.Poll) (*models.ChallengeEvent, error)
}

// Draws runs the prize draw of a window.
type Draws interface {
	Run(ctx context.Context, guildID string, start, end time.Time) (*models.PrizeDraw, error)
}

type triggerKey struct {
	guild    string
	category models.Category
	kind     models.TriggerKind
}

// Scheduler fires the poll_open, event_start and prize_draw triggers of every scheduled
// category. Each firing runs in its own goroutine; a trigger never overlaps itself.
type Scheduler struct {
	schedule *Schedule
	store    StateStore
	polls    Polls
	events   Events
	draws    Draws
	metrics  *metrics.Metrics
	logger   *zap.Logger
	interval time.Duration
	now      func() time.Time

	mu       sync.Mutex
	states   map[triggerKey]*models.TriggerState
	inflight map[triggerKey]bool
	due      map[triggerKey]bool
	cancel   context.CancelFunc
	done     chan struct{}
	wg       sync.WaitGroup
}

// New creates a scheduler. interval is how often due triggers are checked.
func New(schedule *Schedule, store StateStore, polls Polls, events Events, draws Draws, interval time.Duration, m *metrics.Metrics, logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if interval <= 0 {
		interval = 15 * time.Second
	}
	return &Scheduler{
		schedule: schedule,
		store:    store,
		polls:    polls,
		events:   events,
		draws:    draws,
		metrics:  m,
		logger:   logger,
		interval: interval,
		now:      time.Now,
		states:   make(map[triggerKey]*models.TriggerState),
		inflight: make(map[triggerKey]bool),
		due:      make(map[triggerKey]bool),
	}
}

// Load restores persisted trigger states and arms every scheduled trigger. An occurrence
// missed while the process was down fires once if it is within the catch-up grace; older
// ones are skipped and the trigger re-arms from now.
func (s *Scheduler) Load(ctx context.Context) error {
	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, guildID := range s.schedule.Guilds {
		stored, err := s.store.LoadTriggerStates(ctx, guildID)
		if err != nil {
			return fmt.Errorf("load trigger states for %s: %w", guildID, err)
		}
		byKey := make(map[triggerKey]models.TriggerState, len(stored))
		for _, st := range stored {
			byKey[triggerKey{guild: st.GuildID, category: st.Category, kind: st.Trigger}] = st
		}
		for category, triggers := range s.schedule.Categories {
			for kind, cadence := range triggers {
				key := triggerKey{guild: guildID, category: category, kind: kind}
				st, ok := byKey[key]
				if !ok {
					st = models.TriggerState{GuildID: guildID, Category: category, Trigger: kind, NextFireAt: s.schedule.Next(cadence, now)}
				} else if !st.NextFireAt.After(now) {
					if now.Sub(st.NextFireAt) <= s.schedule.CatchUpGrace {
						s.due[key] = true
						s.logger.Info("catching up missed trigger",
							zap.String("guild_id", guildID),
							zap.String("category", string(category)),
							zap.String("trigger", string(kind)),
							zap.Time("scheduled_at", st.NextFireAt))
					} else {
						s.logger.Warn("skipping missed trigger outside catch-up grace",
							zap.String("guild_id", guildID),
							zap.String("category", string(category)),
							zap.String("trigger", string(kind)),
							zap.Time("scheduled_at", st.NextFireAt))
						st.NextFireAt = s.schedule.Next(cadence, now)
					}
				}
				st.UpdatedAt = now
				if err := s.store.SaveTriggerState(ctx, &st); err != nil {
					return fmt.Errorf("save trigger state: %w", err)
				}
				cp := st
				s.states[key] = &cp
			}
		}
	}
	return nil
}

// Start loads trigger state and begins the check loop. Call Stop to release resources.
func (s *Scheduler) Start(ctx context.Context) error {
	if err := s.Load(ctx); err != nil {
		return err
	}
	s.mu.Lock()
	if s.cancel != nil {
		s.mu.Unlock()
		return nil
	}
	runCtx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.done = make(chan struct{})
	s.mu.Unlock()

	go s.run(runCtx)
	s.logger.Info("scheduler started",
		zap.Int("guilds", len(s.schedule.Guilds)),
		zap.Bool("compressed", s.schedule.Compressed.Enabled),
		zap.Duration("interval", s.interval))
	return nil
}

// Stop ends the loop and waits for running triggers.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if s.cancel == nil {
		s.mu.Unlock()
		return
	}
	s.cancel()
	s.cancel = nil
	done := s.done
	s.mu.Unlock()
	<-done
	s.wg.Wait()
	s.logger.Info("scheduler stopped")
}

func (s *Scheduler) run(ctx context.Context) {
	defer close(s.done)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	s.Tick(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Tick(ctx)
		}
	}
}

// Tick starts every trigger that is due and not already running.
func (s *Scheduler) Tick(ctx context.Context) {
	now := s.now()
	s.mu.Lock()
	var start []triggerKey
	for key, st := range s.states {
		if s.inflight[key] {
			continue
		}
		if s.due[key] || !st.NextFireAt.After(now) {
			s.inflight[key] = true
			delete(s.due, key)
			start = append(start, key)
		}
	}
	s.mu.Unlock()

	for _, key := range start {
		s.wg.Add(1)
		go func(key triggerKey) {
			defer s.wg.Done()
			s.fireScheduled(ctx, key)
		}(key)
	}
}

// Wait blocks until every started trigger has finished.
func (s *Scheduler) Wait() {
	s.wg.Wait()
}

func (s *Scheduler) fireScheduled(ctx context.Context, key triggerKey) {
	s.mu.Lock()
	st := *s.states[key]
	s.mu.Unlock()

	fireTime := st.NextFireAt
	_, err := s.execute(ctx, key, fireTime)

	now := s.now()
	st.LastFiredAt = &fireTime
	st.LastError = errString(err)
	if cadence, ok := s.schedule.Cadence(key.category, key.kind); ok {
		st.NextFireAt = s.schedule.Next(cadence, now)
	}
	st.UpdatedAt = now
	s.finish(ctx, key, &st)
}

// Fire runs a trigger immediately, outside its schedule. The trigger's next scheduled
// occurrence is unchanged. A prize_draw fired this way covers the window of its most
// recent scheduled occurrence.
func (s *Scheduler) Fire(ctx context.Context, guildID string, category models.Category, kind models.TriggerKind) (any, error) {
	if !kind.Valid() {
		return nil, apperr.Validation("unknown trigger %q", kind)
	}
	if !s.schedule.HasGuild(guildID) {
		return nil, apperr.NotFound("guild %s is not scheduled", guildID)
	}
	cadence, ok := s.schedule.Cadence(category, kind)
	if !ok {
		return nil, apperr.NotFound("no %s trigger scheduled for category %s", kind, category)
	}
	key := triggerKey{guild: guildID, category: category, kind: kind}

	s.mu.Lock()
	if s.inflight[key] {
		s.mu.Unlock()
		return nil, apperr.Conflict("trigger %s for %s is already running", kind, category)
	}
	s.inflight[key] = true
	st := models.TriggerState{GuildID: guildID, Category: category, Trigger: kind}
	if cur, ok := s.states[key]; ok {
		st = *cur
	} else {
		st.NextFireAt = s.schedule.Next(cadence, s.now())
	}
	s.mu.Unlock()

	now := s.now()
	fireTime := now.Truncate(time.Minute)
	if kind == models.TriggerPrizeDraw {
		fireTime = s.schedule.Previous(cadence, now)
	}
	result, err := s.execute(ctx, key, fireTime)

	st.LastFiredAt = &now
	st.LastError = errString(err)
	st.UpdatedAt = s.now()
	s.finish(ctx, key, &st)
	return result, err
}

func (s *Scheduler) finish(ctx context.Context, key triggerKey, st *models.TriggerState) {
	if err := s.store.SaveTriggerState(ctx, st); err != nil {
		s.logger.Error("save trigger state",
			zap.String("guild_id", key.guild),
			zap.String("category", string(key.category)),
			zap.String("trigger", string(key.kind)),
			zap.Error(err))
	}
	s.mu.Lock()
	cp := *st
	s.states[key] = &cp
	delete(s.inflight, key)
	s.mu.Unlock()
}

// execute runs a trigger body. A panic is logged and reported as the trigger's error.
func (s *Scheduler) execute(ctx context.Context, key triggerKey, fireTime time.Time) (result any, err error) {
	started := time.Now()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("trigger panicked: %v", r)
		}
		s.metrics.TriggerRun(string(key.kind), err, time.Since(started))
		fields := []zap.Field{
			zap.String("guild_id", key.guild),
			zap.String("category", string(key.category)),
			zap.String("trigger", string(key.kind)),
			zap.Time("fire_time", fireTime),
			zap.Duration("took", time.Since(started)),
		}
		if err != nil {
			s.logger.Error("trigger failed", append(fields, zap.Error(err))...)
			return
		}
		s.logger.Info("trigger fired", fields...)
	}()

	switch key.kind {
	case models.TriggerPollOpen:
		return s.openPoll(ctx, key)
	case models.TriggerEventStart:
		return s.startEvent(ctx, key)
	case models.TriggerPrizeDraw:
		return s.draws.Run(ctx, key.guild, fireTime.Add(-s.schedule.DrawWindow), fireTime)
	}
	return nil, apperr.Validation("unknown trigger %q", key.kind)
}

func (s *Scheduler) openPoll(ctx context.Context, key triggerKey) (*models.Poll, error) {
	p, err := s.polls.OpenPoll(ctx, key.guild, key.category)
	if errors.Is(err, apperr.ErrConflict) && p != nil {
		s.logger.Info("poll already open", zap.String("guild_id", key.guild), zap.String("poll_id", p.ID.String()))
		return p, nil
	}
	return p, err
}

// startEvent resolves the category's open poll, or falls back to its latest closed poll,
// and starts the event from it.
func (s *Scheduler) startEvent(ctx context.Context, key triggerKey) (*models.ChallengeEvent, error) {
	p, err := s.polls.Active(ctx, key.guild, key.category)
	if errors.Is(err, apperr.ErrNotFound) {
		p, err = s.polls.Latest(ctx, key.guild, key.category)
		if errors.Is(err, apperr.ErrNotFound) {
			return nil, apperr.Validation("no poll to start a %s event from", key.category)
		}
	}
	if err != nil {
		return nil, err
	}
	if p.Active {
		if p, err = s.polls.ResolvePoll(ctx, key.guild, p.ID); err != nil {
			return nil, err
		}
	}
	return s.events.StartEvent(ctx, p)
}

// States returns a guild's trigger states ordered by category and trigger.
func (s *Scheduler) States(guildID string) []models.TriggerState {
	s.mu.Lock()
	defer s.mu.Unlock()
	var list []models.TriggerState
	for key, st := range s.states {
		if key.guild == guildID {
			list = append(list, *st)
		}
	}
	sort.Slice(list, func(i, j int) bool {
		if list[i].Category != list[j].Category {
			return list[i].Category < list[j].Category
		}
		return list[i].Trigger < list[j].Trigger
	})
	return list
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
