package storage

import (
	"database/sql"
	"errors"

	"github.com/julianstephens/hydrate/internal/migration"
	"github.com/julianstephens/hydrate/internal/storage/sqlite"
)

// SQLiteStore adapts sqlite.Store to the Provider and IntakeLog interfaces.
type SQLiteStore struct {
	store *sqlite.Store
}

// NewSQLiteStore creates a new SQLite store
func NewSQLiteStore(path string) *SQLiteStore {
	return &SQLiteStore{store: sqlite.NewStore(path)}
}

func (s *SQLiteStore) Init() error  { return s.store.Init() }
func (s *SQLiteStore) Load() error  { return s.store.Load() }
func (s *SQLiteStore) Close() error { return s.store.Close() }

func (s *SQLiteStore) GetConfigPath() string { return s.store.GetConfigPath() }

// GetDB exposes the connection for backups and diagnostics.
func (s *SQLiteStore) GetDB() *sql.DB { return s.store.GetDB() }

func (s *SQLiteStore) Get(key string) (string, error) {
	if s.store.GetDB() == nil {
		return "", ErrNotLoaded
	}
	v, err := s.store.GetValue(key)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	return v, err
}

func (s *SQLiteStore) Put(key, value string) error {
	if s.store.GetDB() == nil {
		return ErrNotLoaded
	}
	return s.store.PutValue(key, value)
}

func (s *SQLiteStore) Delete(key string) error {
	if s.store.GetDB() == nil {
		return ErrNotLoaded
	}
	return s.store.DeleteValue(key)
}

func (s *SQLiteStore) AppendIntake(rec IntakeRecord) error {
	if s.store.GetDB() == nil {
		return ErrNotLoaded
	}
	return s.store.AppendIntake(rec.Day, rec.AmountMl, rec.RecordedAt)
}

func (s *SQLiteStore) DailyTotals(from, to string) (map[string]int, error) {
	if s.store.GetDB() == nil {
		return nil, ErrNotLoaded
	}
	return s.store.DailyTotals(from, to)
}

// SchemaStatus reports the applied and newest schema versions.
func (s *SQLiteStore) SchemaStatus() (migration.Status, error) {
	if s.store.GetDB() == nil {
		return migration.Status{}, ErrNotLoaded
	}
	return s.store.SchemaStatus()
}
