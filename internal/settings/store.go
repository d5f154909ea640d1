// Package settings loads and saves the single persisted state record.
package settings

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	jsoniter "github.com/json-iterator/go"

	"github.com/julianstephens/hydrate/internal/constants"
	hyerrors "github.com/julianstephens/hydrate/internal/errors"
	"github.com/julianstephens/hydrate/internal/logger"
	"github.com/julianstephens/hydrate/internal/models"
	"github.com/julianstephens/hydrate/internal/storage"
	"github.com/julianstephens/hydrate/internal/utils"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Store is the durable home of models.PersistedState. It keeps the last
// state it was given in memory, so a failing provider degrades to
// in-memory operation and the next Save retries the full write.
type Store struct {
	mu       sync.Mutex
	provider storage.Provider
	clock    clockwork.Clock
	state    models.PersistedState
	loaded   bool
	degraded bool
}

// New creates a store over provider. clock supplies "today" for first-run defaults.
func New(provider storage.Provider, clock clockwork.Clock) *Store {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Store{provider: provider, clock: clock}
}

// Load reads the record. A missing record yields first-run defaults. When
// the provider fails the defaults are returned along with an error wrapping
// ErrPersistenceUnavailable; the returned state is usable either way.
func (s *Store) Load() (models.PersistedState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	today := utils.DayKey(s.clock.Now(), constants.DefaultTimezone)
	raw, err := s.provider.Get(constants.StateKey)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		s.state = models.DefaultState(today)
	case err != nil:
		s.state = models.DefaultState(today)
		s.loaded, s.degraded = true, true
		logger.Warn("State unavailable, continuing in memory", "error", err)
		return s.state, fmt.Errorf("loading state: %w: %v", hyerrors.ErrPersistenceUnavailable, err)
	default:
		s.state = Decode([]byte(raw), today)
	}
	s.loaded = true
	return s.state, nil
}

// Save makes state the current record and writes it. On failure the state
// is kept in memory and an error wrapping ErrPersistenceUnavailable is returned.
func (s *Store) Save(state models.PersistedState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveLocked(state)
}

func (s *Store) saveLocked(state models.PersistedState) error {
	state.Version = constants.StateVersion
	s.state = state
	s.loaded = true

	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("encoding state: %w", err)
	}
	if err := s.provider.Put(constants.StateKey, string(data)); err != nil {
		if !s.degraded {
			logger.Warn("State write failed, continuing in memory", "error", err)
		}
		s.degraded = true
		return fmt.Errorf("saving state: %w: %v", hyerrors.ErrPersistenceUnavailable, err)
	}
	if s.degraded {
		logger.Info("State write recovered")
	}
	s.degraded = false
	return nil
}

// Update applies fn to the current record and saves the result. The
// updated record is returned even when saving fails.
func (s *Store) Update(fn func(*models.PersistedState)) (models.PersistedState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.loaded {
		s.state = models.DefaultState(utils.DayKey(s.clock.Now(), constants.DefaultTimezone))
	}
	next := s.state
	fn(&next)
	err := s.saveLocked(next)
	return s.state, err
}

// State returns the in-memory record.
func (s *Store) State() models.PersistedState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Degraded reports whether the last write failed.
func (s *Store) Degraded() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.degraded
}

// Provider returns the underlying key/value provider.
func (s *Store) Provider() storage.Provider {
	return s.provider
}

// Decode parses a stored record, recovering each field on its own: a field
// that is missing, of the wrong type or out of range takes its default.
// A missing or malformed date is left empty so the daily counter resets.
func Decode(data []byte, today string) models.PersistedState {
	state := models.DefaultState(today)

	var fields map[string]jsoniter.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		logger.Warn("State record unreadable, using defaults", "error", err)
		return state
	}

	field := func(name string, dst any, valid func() bool, reset func()) {
		raw, ok := fields[name]
		if !ok {
			return
		}
		if err := json.Unmarshal(raw, dst); err != nil || (valid != nil && !valid()) {
			logger.Warn("Recovered malformed state field", "field", name, "value", string(raw))
			reset()
		}
	}

	def := models.DefaultState(today)

	field(constants.FieldVersion, &state.Version, nil, func() { state.Version = def.Version })
	if state.Version > constants.StateVersion {
		logger.Warn("State written by a newer version", "version", state.Version)
	}
	state.Version = constants.StateVersion

	field(constants.FieldIntervalMinutes, &state.IntervalMinutes,
		func() bool { return models.ValidateInterval(state.IntervalMinutes) == nil },
		func() { state.IntervalMinutes = def.IntervalMinutes })
	field(constants.FieldActive, &state.Active, nil, func() { state.Active = def.Active })

	field(constants.FieldNextFireAt, &state.NextFireAt, nil, func() { state.NextFireAt = nil })
	field(constants.FieldLastFiredAt, &state.LastFiredAt, nil, func() { state.LastFiredAt = nil })

	if _, ok := fields[constants.FieldDate]; !ok {
		state.Date = ""
	}
	field(constants.FieldDate, &state.Date,
		func() bool { _, err := time.Parse(constants.DateFormat, state.Date); return err == nil },
		func() { state.Date = "" })
	field(constants.FieldTotalMl, &state.TotalMl,
		func() bool { return state.TotalMl >= 0 },
		func() { state.TotalMl = 0 })
	field(constants.FieldDrinkCount, &state.DrinkCount,
		func() bool { return state.DrinkCount >= 0 },
		func() { state.DrinkCount = 0 })

	field(constants.FieldGoalMl, &state.GoalMl,
		func() bool { return state.GoalMl > 0 },
		func() { state.GoalMl = def.GoalMl })
	field(constants.FieldSound, &state.Sound, nil, func() { state.Sound = def.Sound })
	field(constants.FieldTheme, &state.Theme, nil, func() { state.Theme = def.Theme })
	field(constants.FieldTimezone, &state.Timezone,
		func() bool { return utils.ValidateTimezone(state.Timezone) },
		func() { state.Timezone = def.Timezone })

	return state
}
