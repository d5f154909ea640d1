// Package intake tracks how much water was drunk on the current day.
package intake

import (
	"errors"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"

	hyerrors "github.com/julianstephens/hydrate/internal/errors"
	"github.com/julianstephens/hydrate/internal/logger"
	"github.com/julianstephens/hydrate/internal/models"
	"github.com/julianstephens/hydrate/internal/settings"
	"github.com/julianstephens/hydrate/internal/storage"
	"github.com/julianstephens/hydrate/internal/utils"
)

// Counter owns the DailyIntake part of the persisted record. Every read
// and write first applies the day-rollover rule.
type Counter struct {
	store *settings.Store
	clock clockwork.Clock
	log   storage.IntakeLog
}

// New creates a counter. If the store's provider keeps an intake log,
// each recorded drink is also appended there.
func New(store *settings.Store, clock clockwork.Clock) *Counter {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	c := &Counter{store: store, clock: clock}
	if l, ok := store.Provider().(storage.IntakeLog); ok {
		c.log = l
	}
	return c
}

func (c *Counter) today(state models.PersistedState) string {
	return utils.DayKey(c.clock.Now(), state.Timezone)
}

// rollover resets the intake when it belongs to another day. It reports
// whether anything changed.
func (c *Counter) rollover(state *models.PersistedState) bool {
	today := c.today(*state)
	if state.IsFor(today) {
		return false
	}
	if state.Date != "" {
		logger.Info("New day, resetting intake", "previous", state.Date, "totalMl", state.TotalMl)
	}
	state.DailyIntake = models.NewDailyIntake(today)
	return true
}

// LoadOrReset returns today's intake, resetting and persisting a stale record first.
func (c *Counter) LoadOrReset() (models.DailyIntake, error) {
	state := c.store.State()
	if !c.rollover(&state) {
		return state.DailyIntake, nil
	}
	updated, err := c.store.Update(func(s *models.PersistedState) { c.rollover(s) })
	if err != nil && !errors.Is(err, hyerrors.ErrPersistenceUnavailable) {
		return updated.DailyIntake, err
	}
	return updated.DailyIntake, nil
}

// Today is LoadOrReset for display paths that cannot act on errors.
func (c *Counter) Today() models.DailyIntake {
	d, _ := c.LoadOrReset()
	return d
}

// RecordIntake adds amountMl to today's total and persists immediately.
// A persistence failure is logged and the in-memory totals are returned.
func (c *Counter) RecordIntake(amountMl int) (models.DailyIntake, error) {
	if amountMl <= 0 {
		return models.DailyIntake{}, fmt.Errorf("%d ml: %w", amountMl, hyerrors.ErrInvalidAmount)
	}

	now := c.clock.Now()
	updated, err := c.store.Update(func(s *models.PersistedState) {
		c.rollover(s)
		s.TotalMl += amountMl
		s.DrinkCount++
	})
	if err != nil {
		if !errors.Is(err, hyerrors.ErrPersistenceUnavailable) {
			return updated.DailyIntake, err
		}
		logger.Warn("Intake kept in memory only", "error", err)
	}
	logger.Debug("Intake recorded", "amountMl", amountMl, "totalMl", updated.TotalMl, "drinks", updated.DrinkCount)

	if c.log != nil {
		rec := storage.IntakeRecord{Day: updated.Date, AmountMl: amountMl, RecordedAt: now}
		if err := c.log.AppendIntake(rec); err != nil {
			logger.Warn("Failed to append intake log", "error", err)
		}
	}
	return updated.DailyIntake, nil
}

// Progress returns today's total as a fraction of the goal, clamped to [0,1].
func (c *Counter) Progress() float64 {
	return c.Today().Progress(c.store.State().GoalMl)
}

// Goal returns the configured daily goal in ml.
func (c *Counter) Goal() int {
	return c.store.State().GoalMl
}

// SetGoal changes the daily goal.
func (c *Counter) SetGoal(ml int) error {
	if ml <= 0 {
		return fmt.Errorf("goal %d ml: %w", ml, hyerrors.ErrInvalidAmount)
	}
	_, err := c.store.Update(func(s *models.PersistedState) { s.GoalMl = ml })
	return err
}

// History returns per-day totals for the last n days including today.
// Days without drinks are absent. Returns nil when no intake log is kept.
func (c *Counter) History(n int) (map[string]int, error) {
	if c.log == nil || n <= 0 {
		return nil, nil
	}
	tz := c.store.State().Timezone
	now := c.clock.Now()
	from := utils.DayKey(now.Add(-time.Duration(n-1)*24*time.Hour), tz)
	return c.log.DailyTotals(from, utils.DayKey(now, tz))
}
