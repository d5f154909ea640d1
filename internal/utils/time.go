package utils

import (
	"fmt"
	"time"

	"github.com/julianstephens/hydrate/internal/constants"
)

// LoadLocation loads a timezone location from an IANA timezone name.
// If the timezone is "Local" or empty, it returns the system's local timezone.
func LoadLocation(timezone string) (*time.Location, error) {
	if timezone == "" || timezone == constants.DefaultTimezone {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", timezone, err)
	}
	return loc, nil
}

// ValidateTimezone checks if the timezone name is valid.
func ValidateTimezone(timezone string) bool {
	_, err := LoadLocation(timezone)
	return err == nil
}

// DayKey returns the calendar day (YYYY-MM-DD) that t falls on in the given
// timezone. An invalid timezone falls back to local time so that day rollover
// keeps working with a bad preference.
func DayKey(t time.Time, timezone string) string {
	loc, err := LoadLocation(timezone)
	if err != nil {
		loc = time.Local
	}
	return t.In(loc).Format(constants.DateFormat)
}

// FormatCountdown renders a remaining duration as MM:SS, or H:MM:SS past an hour.
// Negative durations render as 00:00.
func FormatCountdown(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	d = d.Round(time.Second)
	h := int(d / time.Hour)
	m := int(d%time.Hour) / int(time.Minute)
	s := int(d%time.Minute) / int(time.Second)
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%02d:%02d", m, s)
}
