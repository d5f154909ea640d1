package models

import (
	"fmt"
	"time"

	"github.com/julianstephens/hydrate/internal/constants"
)

// PersistedState is the single durable record stored under constants.StateKey.
type PersistedState struct {
	Version int `json:"version"`
	ReminderConfig
	ReminderSchedule
	DailyIntake
	Preferences
}

// DefaultState returns the first-run record for the given day.
func DefaultState(today string) PersistedState {
	return PersistedState{
		Version: constants.StateVersion,
		ReminderConfig: ReminderConfig{
			IntervalMinutes: constants.DefaultIntervalMinutes,
		},
		DailyIntake: NewDailyIntake(today),
		Preferences: DefaultPreferences(),
	}
}

// Validate checks field ranges and the active => nextFireAt invariant.
func (s PersistedState) Validate() error {
	if err := Validator.Struct(s); err != nil {
		return err
	}
	if s.Active && s.NextFireAt == nil {
		return fmt.Errorf("active reminder has no next fire time")
	}
	return nil
}

// Equal compares two records, treating timestamps as instants.
func (s PersistedState) Equal(o PersistedState) bool {
	return s.Version == o.Version &&
		s.ReminderConfig == o.ReminderConfig &&
		s.DailyIntake == o.DailyIntake &&
		s.Preferences == o.Preferences &&
		timePtrEqual(s.NextFireAt, o.NextFireAt) &&
		timePtrEqual(s.LastFiredAt, o.LastFiredAt)
}

func timePtrEqual(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}
