package models

import "time"

// BackgroundSettings is the agent's own copy of the reminder config. It is
// never shared with the foreground; changes arrive as SettingsUpdate messages.
type BackgroundSettings struct {
	Active          bool       `json:"active"`
	IntervalMinutes int        `json:"intervalMinutes"`
	LastReminderAt  *time.Time `json:"lastReminderAt"`
}

// Interval returns the mirrored interval as a duration.
func (b BackgroundSettings) Interval() time.Duration {
	return time.Duration(b.IntervalMinutes) * time.Minute
}

// SettingsUpdate is a partial BackgroundSettings; nil fields are left untouched.
type SettingsUpdate struct {
	Active          *bool      `json:"active,omitempty"`
	IntervalMinutes *int       `json:"intervalMinutes,omitempty" validate:"omitempty,min=1,max=1440"`
	LastReminderAt  *time.Time `json:"lastReminderAt,omitempty"`
}

// Merge applies the non-nil fields of u and returns the result.
func (b BackgroundSettings) Merge(u SettingsUpdate) BackgroundSettings {
	if u.Active != nil {
		b.Active = *u.Active
	}
	if u.IntervalMinutes != nil {
		b.IntervalMinutes = *u.IntervalMinutes
	}
	if u.LastReminderAt != nil {
		t := *u.LastReminderAt
		b.LastReminderAt = &t
	}
	return b
}

// FullUpdate builds the update the foreground pushes on every config change.
func FullUpdate(cfg ReminderConfig, lastReminderAt time.Time) SettingsUpdate {
	active := cfg.Active
	interval := cfg.IntervalMinutes
	return SettingsUpdate{
		Active:          &active,
		IntervalMinutes: &interval,
		LastReminderAt:  &lastReminderAt,
	}
}
