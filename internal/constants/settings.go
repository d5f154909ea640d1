package constants

const (
	// Persisted record field names
	FieldVersion         = "version"
	FieldIntervalMinutes = "intervalMinutes"
	FieldActive          = "active"
	FieldNextFireAt      = "nextFireAt"
	FieldLastFiredAt     = "lastFiredAt"
	FieldDate            = "date"
	FieldTotalMl         = "totalMl"
	FieldDrinkCount      = "drinkCount"
	FieldGoalMl          = "goalMl"
	FieldSound           = "sound"
	FieldTheme           = "theme"
	FieldTimezone        = "timezone"

	// Default preference values
	DefaultSound    = "water"
	DefaultTheme    = "cyber"
	DefaultTimezone = "Local" // Use system local timezone by default
)
