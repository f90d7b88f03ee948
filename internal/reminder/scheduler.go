// Package reminder sends at most one reminder per habit per day at the
// habit's reminder time, by email and optionally by web push.
package reminder

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/dukerupert/habitflow/internal/day"
	"github.com/dukerupert/habitflow/internal/model"
)

// Clock supplies the current time.
type Clock interface {
	Now() time.Time
}

type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// Store loads reminder candidates and records that a reminder fired.
type Store interface {
	ListReminderCandidates() ([]model.ReminderCandidate, error)
	ClaimReminder(habitID int64, today day.Key) (bool, error)
}

type Sender interface {
	SendReminder(ctx context.Context, to, name, habitTitle string) error
}

// Pusher delivers a reminder to the owner's subscribed devices.
type Pusher interface {
	PushReminder(ctx context.Context, userID int64, habitTitle string) error
}

// Result summarises one tick.
type Result struct {
	Candidates int
	Fired      int
	Failed     int
	Pushed     int
}

// Scheduler checks reminder times once a minute.
type Scheduler struct {
	mu              sync.RWMutex
	clock           Clock
	store           Store
	sender          Sender
	pusher          Pusher
	logger          *slog.Logger
	defaultTimezone string
	cancel          context.CancelFunc
	done            chan struct{}
}

// NewScheduler creates a reminder scheduler. defaultTimezone is used for
// owners whose timezone is empty or unknown.
func NewScheduler(clock Clock, store Store, sender Sender, defaultTimezone string, logger *slog.Logger) *Scheduler {
	if clock == nil {
		clock = SystemClock{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		clock:           clock,
		store:           store,
		sender:          sender,
		logger:          logger.With("component", "reminder"),
		defaultTimezone: defaultTimezone,
	}
}

// SetPusher enables web push delivery alongside email.
func (s *Scheduler) SetPusher(p Pusher) {
	s.mu.Lock()
	s.pusher = p
	s.mu.Unlock()
}

// Start begins the scheduler loop. Ticks fire just after each minute boundary.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})
	done := s.done
	s.mu.Unlock()

	go func() {
		defer close(done)
		timer := time.NewTimer(untilNextMinute(s.clock.Now()))
		defer timer.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-timer.C:
				// A tick runs to completion even if Stop is called mid-batch.
				s.Tick(context.WithoutCancel(ctx))
				timer.Reset(untilNextMinute(s.clock.Now()))
			}
		}
	}()
}

// Stop gracefully stops the scheduler.
func (s *Scheduler) Stop() {
	s.mu.RLock()
	cancel := s.cancel
	done := s.done
	s.mu.RUnlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
}

// Tick runs one reminder pass against the clock's current minute.
func (s *Scheduler) Tick(ctx context.Context) Result {
	now := s.clock.Now()

	candidates, err := s.store.ListReminderCandidates()
	if err != nil {
		s.logger.Error("list reminder candidates", "error", err)
		return Result{}
	}

	s.mu.RLock()
	pusher := s.pusher
	s.mu.RUnlock()

	res := Result{Candidates: len(candidates)}
	for _, c := range candidates {
		loc := day.Location(c.Timezone, s.defaultTimezone)
		if c.ReminderTime != day.Clock(now, loc) {
			continue
		}
		today := day.Normalize(now, loc)
		if c.LastReminderDate != nil && *c.LastReminderDate == today {
			continue
		}

		claimed, err := s.store.ClaimReminder(c.HabitID, today)
		if err != nil {
			s.logger.Error("claim reminder", "habit_id", c.HabitID, "error", err)
			continue
		}
		if !claimed {
			continue
		}

		res.Fired++
		if err := s.sender.SendReminder(ctx, c.UserEmail, c.UserName, c.Title); err != nil {
			res.Failed++
			s.logger.Warn("send reminder", "habit_id", c.HabitID, "user_id", c.UserID, "error", err)
		} else {
			s.logger.Info("reminder sent", "habit_id", c.HabitID, "user_id", c.UserID, "day", today)
		}

		if pusher != nil {
			if err := pusher.PushReminder(ctx, c.UserID, c.Title); err != nil {
				s.logger.Warn("push reminder", "habit_id", c.HabitID, "user_id", c.UserID, "error", err)
				continue
			}
			res.Pushed++
		}
	}
	return res
}

func untilNextMinute(now time.Time) time.Duration {
	next := now.Truncate(time.Minute).Add(time.Minute)
	return next.Sub(now)
}
