package models

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/julianstephens/hydrate/internal/constants"
	"github.com/julianstephens/hydrate/internal/errors"
)

// ReminderConfig is owned by the scheduler and mirrored by the agent.
type ReminderConfig struct {
	IntervalMinutes int  `json:"intervalMinutes" validate:"min=1,max=1440"`
	Active          bool `json:"active"`
}

// Interval returns the configured interval as a duration.
func (c ReminderConfig) Interval() time.Duration {
	return time.Duration(c.IntervalMinutes) * time.Minute
}

// ValidateInterval rejects intervals outside [MinIntervalMinutes, MaxIntervalMinutes].
func ValidateInterval(minutes int) error {
	if err := Validator.Var(minutes, "min=1,max=1440"); err != nil {
		return fmt.Errorf("%d minutes: %w", minutes, errors.ErrInvalidInterval)
	}
	return nil
}

// ParseInterval converts user-entered text into a validated interval.
// Anything that is not a whole number of minutes ("", "NaN", "1.5") is rejected.
func ParseInterval(text string) (int, error) {
	text = strings.TrimSpace(text)
	minutes, err := strconv.Atoi(text)
	if err != nil {
		return 0, fmt.Errorf("%q is not a whole number of minutes: %w", text, errors.ErrInvalidInterval)
	}
	if err := ValidateInterval(minutes); err != nil {
		return 0, err
	}
	return minutes, nil
}

// ReminderSchedule tracks when the foreground fires next and when it last fired.
type ReminderSchedule struct {
	NextFireAt  *time.Time `json:"nextFireAt"`
	LastFiredAt *time.Time `json:"lastFiredAt"`
}

// Preferences are cosmetic settings; only GoalMl and Timezone affect behavior.
type Preferences struct {
	GoalMl   int    `json:"goalMl" validate:"gt=0"`
	Sound    string `json:"sound"`
	Theme    string `json:"theme"`
	Timezone string `json:"timezone"`
}

// DefaultPreferences returns the first-run preferences.
func DefaultPreferences() Preferences {
	return Preferences{
		GoalMl:   constants.DefaultGoalMl,
		Sound:    constants.DefaultSound,
		Theme:    constants.DefaultTheme,
		Timezone: constants.DefaultTimezone,
	}
}
