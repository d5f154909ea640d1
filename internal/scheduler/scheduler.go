// Package scheduler drives foreground reminders: the fire timer, the
// one-second countdown and snoozes.
package scheduler

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/jonboulle/clockwork"

	"github.com/julianstephens/hydrate/internal/constants"
	hyerrors "github.com/julianstephens/hydrate/internal/errors"
	"github.com/julianstephens/hydrate/internal/logger"
	"github.com/julianstephens/hydrate/internal/models"
	"github.com/julianstephens/hydrate/internal/settings"
)

// Gate authorizes Start. permission.Authorizer satisfies it.
type Gate interface {
	Require() error
}

type (
	// FireFunc is called each time a reminder fires. Stop waits for it to
	// return, so it must not call back into the Scheduler or block for long.
	FireFunc func(firedAt time.Time)
	// PushFunc receives the config after every change, for the background agent.
	PushFunc func(models.SettingsUpdate)
	// CountdownFunc receives the time left until the next fire, once a second.
	CountdownFunc func(remaining time.Duration)
)

// Scheduler owns ReminderConfig and ReminderSchedule in the settings store.
// Every timer callback carries the generation it was armed in; any
// operation that changes the schedule bumps the generation under the lock,
// so a callback that was already due when Stop returned does nothing.
// fireMu is held from the generation check of a fire until its hook
// returns, and is taken before mu, so Stop never returns mid-fire.
type Scheduler struct {
	store     *settings.Store
	gate      Gate
	clock     clockwork.Clock
	onFire    FireFunc
	push      PushFunc
	countdown CountdownFunc
	log       *log.Logger

	fireMu sync.Mutex

	mu          sync.Mutex
	gen         uint64
	fire        clockwork.Timer
	tick        clockwork.Timer
	snooze      clockwork.Timer
	snoozeUntil *time.Time
	closed      bool
}

type Option func(*Scheduler)

func WithClock(c clockwork.Clock) Option { return func(s *Scheduler) { s.clock = c } }

// WithFireHook sets what happens on each fire, typically presenting a reminder.
func WithFireHook(fn FireFunc) Option { return func(s *Scheduler) { s.onFire = fn } }

// WithPusher sets where config changes are pushed.
func WithPusher(fn PushFunc) Option { return func(s *Scheduler) { s.push = fn } }

func WithCountdown(fn CountdownFunc) Option { return func(s *Scheduler) { s.countdown = fn } }

func WithLogger(l *log.Logger) Option { return func(s *Scheduler) { s.log = l } }

func New(store *settings.Store, gate Gate, opts ...Option) *Scheduler {
	s := &Scheduler{
		store: store,
		gate:  gate,
		clock: clockwork.NewRealClock(),
		log:   logger.Named("scheduler"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Config returns the current reminder config.
func (s *Scheduler) Config() models.ReminderConfig {
	return s.store.State().ReminderConfig
}

// Schedule returns the current fire schedule.
func (s *Scheduler) Schedule() models.ReminderSchedule {
	return s.store.State().ReminderSchedule
}

// Remaining returns the time until the next fire, or zero when inactive or due.
func (s *Scheduler) Remaining() time.Duration {
	next := s.store.State().NextFireAt
	if next == nil {
		return 0
	}
	if d := next.Sub(s.clock.Now()); d > 0 {
		return d
	}
	return 0
}

// SnoozedUntil reports when a pending snooze will restart reminders.
func (s *Scheduler) SnoozedUntil() (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.snoozeUntil == nil {
		return time.Time{}, false
	}
	return *s.snoozeUntil, true
}

// SetInterval changes the interval. When active, the pending fire is
// cancelled and the next reminder fires at now + minutes.
func (s *Scheduler) SetInterval(minutes int) error {
	if err := models.ValidateInterval(minutes); err != nil {
		return err
	}

	s.fireMu.Lock()
	defer s.fireMu.Unlock()
	s.mu.Lock()
	s.bumpLocked()
	now := s.clock.Now()
	state, err := s.store.Update(func(st *models.PersistedState) {
		st.IntervalMinutes = minutes
		if st.Active {
			next := now.Add(st.Interval())
			st.NextFireAt = &next
		}
	})
	if state.Active {
		s.armLocked(*state.NextFireAt)
	}
	s.mu.Unlock()

	s.log.Info("Interval set", "minutes", minutes, "active", state.Active)
	s.pushConfig(state.ReminderConfig, now)
	return s.persistErr(err)
}

// Start activates reminders. It fails with ErrPermissionRequired unless the
// gate grants notifications.
func (s *Scheduler) Start() error {
	if err := s.gate.Require(); err != nil {
		return err
	}

	s.fireMu.Lock()
	defer s.fireMu.Unlock()
	s.mu.Lock()
	state, err := s.startLocked()
	s.mu.Unlock()

	s.log.Info("Reminders started", "interval", state.Interval(), "next", state.NextFireAt.Format(constants.TimeFormat))
	s.pushConfig(state.ReminderConfig, s.clock.Now())
	return s.persistErr(err)
}

func (s *Scheduler) startLocked() (models.PersistedState, error) {
	s.bumpLocked()
	now := s.clock.Now()
	state, err := s.store.Update(func(st *models.PersistedState) {
		st.Active = true
		next := now.Add(st.Interval())
		st.NextFireAt = &next
	})
	s.armLocked(*state.NextFireAt)
	return state, err
}

// Stop deactivates reminders and cancels every pending timer, including a snooze.
func (s *Scheduler) Stop() error {
	s.fireMu.Lock()
	defer s.fireMu.Unlock()
	s.mu.Lock()
	state, err := s.stopLocked()
	s.mu.Unlock()

	s.log.Info("Reminders stopped")
	s.pushConfig(state.ReminderConfig, s.clock.Now())
	return s.persistErr(err)
}

func (s *Scheduler) stopLocked() (models.PersistedState, error) {
	s.bumpLocked()
	return s.store.Update(func(st *models.PersistedState) {
		st.Active = false
		st.NextFireAt = nil
	})
}

// Snooze stops reminders and restarts them after delay. A later Start,
// Stop, SetInterval or Snooze cancels the pending restart. Snoozing while
// inactive with nothing pending does nothing.
func (s *Scheduler) Snooze(delay time.Duration) error {
	if delay <= 0 {
		return fmt.Errorf("snooze delay must be positive, got %s", delay)
	}

	s.fireMu.Lock()
	defer s.fireMu.Unlock()
	s.mu.Lock()
	if !s.store.State().Active && s.snoozeUntil == nil {
		s.mu.Unlock()
		s.log.Debug("Snooze ignored, reminders are off")
		return nil
	}
	state, err := s.stopLocked()
	gen := s.gen
	until := s.clock.Now().Add(delay)
	s.snoozeUntil = &until
	s.snooze = s.clock.AfterFunc(delay, func() { s.wake(gen) })
	s.mu.Unlock()

	s.log.Info("Reminders snoozed", "until", until.Format(constants.TimeFormat))
	s.pushConfig(state.ReminderConfig, s.clock.Now())
	return s.persistErr(err)
}

func (s *Scheduler) wake(gen uint64) {
	s.fireMu.Lock()
	defer s.fireMu.Unlock()
	s.mu.Lock()
	if gen != s.gen || s.closed {
		s.mu.Unlock()
		return
	}
	s.snoozeUntil = nil
	if err := s.gate.Require(); err != nil {
		s.mu.Unlock()
		s.log.Warn("Snooze ended but reminders cannot restart", "error", err)
		return
	}
	state, err := s.startLocked()
	s.mu.Unlock()

	if err != nil && !errors.Is(err, hyerrors.ErrPersistenceUnavailable) {
		s.log.Error("Failed to restart after snooze", "error", err)
	}
	s.log.Info("Snooze over, reminders restarted")
	s.pushConfig(state.ReminderConfig, s.clock.Now())
}

// Restore resumes a schedule that was active when the process last exited:
// to the persisted next fire time when still ahead, otherwise to now +
// interval. A due reminder is never fired immediately. Without permission
// the record is deactivated instead.
func (s *Scheduler) Restore() error {
	state := s.store.State()
	if !state.Active {
		s.pushConfig(state.ReminderConfig, s.clock.Now())
		return nil
	}
	if err := s.gate.Require(); err != nil {
		s.log.Warn("Persisted reminders were active but permission is missing, stopping", "error", err)
		return s.Stop()
	}

	s.fireMu.Lock()
	defer s.fireMu.Unlock()
	s.mu.Lock()
	s.bumpLocked()
	now := s.clock.Now()
	next := now.Add(state.Interval())
	if state.NextFireAt != nil && state.NextFireAt.After(now) {
		next = *state.NextFireAt
	}
	state, err := s.store.Update(func(st *models.PersistedState) { st.NextFireAt = &next })
	s.armLocked(next)
	s.mu.Unlock()

	s.log.Info("Reminders resumed", "next", next.Format(constants.TimeFormat))
	s.pushConfig(state.ReminderConfig, now)
	return s.persistErr(err)
}

// Close disarms all timers without touching the persisted record, so the
// background agent carries on where the foreground left off.
func (s *Scheduler) Close() {
	s.fireMu.Lock()
	defer s.fireMu.Unlock()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bumpLocked()
	s.closed = true
}

// bumpLocked invalidates every armed timer.
func (s *Scheduler) bumpLocked() {
	s.gen++
	for _, t := range []clockwork.Timer{s.fire, s.tick, s.snooze} {
		if t != nil {
			t.Stop()
		}
	}
	s.fire, s.tick, s.snooze = nil, nil, nil
	s.snoozeUntil = nil
}

// armLocked schedules the next fire at next and restarts the countdown.
func (s *Scheduler) armLocked(next time.Time) {
	if s.closed {
		return
	}
	gen := s.gen
	s.fire = s.clock.AfterFunc(next.Sub(s.clock.Now()), func() { s.fired(gen) })
	s.tickLocked(gen)
}

func (s *Scheduler) fired(gen uint64) {
	s.fireMu.Lock()
	defer s.fireMu.Unlock()
	s.mu.Lock()
	if gen != s.gen || s.closed || !s.store.State().Active {
		s.mu.Unlock()
		return
	}
	now := s.clock.Now()
	state, err := s.store.Update(func(st *models.PersistedState) {
		fired := now
		next := now.Add(st.Interval())
		st.LastFiredAt = &fired
		st.NextFireAt = &next
	})
	if s.tick != nil {
		s.tick.Stop()
	}
	s.armLocked(*state.NextFireAt)
	s.mu.Unlock()

	if err != nil && !errors.Is(err, hyerrors.ErrPersistenceUnavailable) {
		s.log.Error("Failed to record fire", "error", err)
	}
	s.log.Debug("Reminder fired", "next", state.NextFireAt.Format(constants.TimeFormat))
	if s.onFire != nil {
		s.onFire(now)
	}
	s.pushConfig(state.ReminderConfig, now)
}

// tickLocked reports the countdown and re-arms itself every second until
// the fire is due; the next fire resumes it.
func (s *Scheduler) tickLocked(gen uint64) {
	if s.countdown == nil {
		return
	}
	s.tick = s.clock.AfterFunc(constants.CountdownTick, func() {
		s.mu.Lock()
		if gen != s.gen || s.closed {
			s.mu.Unlock()
			return
		}
		remaining := s.remainingLocked()
		if remaining > 0 {
			s.tickLocked(gen)
		} else {
			s.tick = nil
		}
		s.mu.Unlock()
		s.countdown(remaining)
	})
}

func (s *Scheduler) remainingLocked() time.Duration {
	next := s.store.State().NextFireAt
	if next == nil {
		return 0
	}
	if d := next.Sub(s.clock.Now()); d > 0 {
		return d
	}
	return 0
}

func (s *Scheduler) pushConfig(cfg models.ReminderConfig, at time.Time) {
	if s.push != nil {
		s.push(models.FullUpdate(cfg, at))
	}
}

// persistErr keeps reminders running on a degraded store; the settings store
// already logged the failure and keeps the state in memory.
func (s *Scheduler) persistErr(err error) error {
	if err == nil || errors.Is(err, hyerrors.ErrPersistenceUnavailable) {
		return nil
	}
	return err
}
