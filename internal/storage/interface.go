package storage

import (
	"errors"
	"time"
)

var (
	// ErrNotFound is returned by Get when the key has never been written.
	ErrNotFound = errors.New("key not found")
	// ErrNotLoaded is returned when a provider is used before Init or Load.
	ErrNotLoaded = errors.New("storage not loaded")
)

// Provider is a durable string key/value store. Values are opaque to the
// provider; callers serialize their own records.
type Provider interface {
	// Lifecycle
	Init() error
	Load() error
	Close() error

	Get(key string) (string, error)
	Put(key, value string) error
	Delete(key string) error

	// Utils
	GetConfigPath() string
}

// IntakeRecord is one logged drink.
type IntakeRecord struct {
	Day        string
	AmountMl   int
	RecordedAt time.Time
}

// IntakeLog is implemented by providers that keep per-drink history.
type IntakeLog interface {
	AppendIntake(rec IntakeRecord) error
	// DailyTotals returns the summed amount per day for days in [from, to].
	DailyTotals(from, to string) (map[string]int, error)
}
