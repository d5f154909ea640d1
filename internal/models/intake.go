package models

// DailyIntake is valid only for the calendar day named by Date.
type DailyIntake struct {
	Date       string `json:"date"` // YYYY-MM-DD in the configured timezone
	TotalMl    int    `json:"totalMl" validate:"gte=0"`
	DrinkCount int    `json:"drinkCount" validate:"gte=0"`
}

// NewDailyIntake returns an empty record for the given day.
func NewDailyIntake(day string) DailyIntake {
	return DailyIntake{Date: day}
}

// IsFor reports whether the record belongs to day.
func (d DailyIntake) IsFor(day string) bool {
	return d.Date == day
}

// Progress returns TotalMl/goalMl clamped to [0,1]. A non-positive goal yields 0.
func (d DailyIntake) Progress(goalMl int) float64 {
	if goalMl <= 0 {
		return 0
	}
	p := float64(d.TotalMl) / float64(goalMl)
	switch {
	case p < 0:
		return 0
	case p > 1:
		return 1
	}
	return p
}
