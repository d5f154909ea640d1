package storage

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func providers(t *testing.T) map[string]Provider {
	t.Helper()
	dir := t.TempDir()
	return map[string]Provider{
		"memory": NewMemoryStore(),
		"json":   NewJSONStore(filepath.Join(dir, "state.json")),
		"sqlite": NewSQLiteStore(filepath.Join(dir, "hydrate.db")),
	}
}

func TestProviderKeyValue(t *testing.T) {
	for name, p := range providers(t) {
		t.Run(name, func(t *testing.T) {
			if err := p.Init(); err != nil {
				t.Fatalf("Init() error = %v", err)
			}
			defer p.Close()

			if _, err := p.Get("hydrate_state"); !errors.Is(err, ErrNotFound) {
				t.Fatalf("Get() on empty store error = %v, want ErrNotFound", err)
			}

			if err := p.Put("hydrate_state", `{"version":1}`); err != nil {
				t.Fatalf("Put() error = %v", err)
			}
			if err := p.Put("hydrate_state", `{"version":1,"active":true}`); err != nil {
				t.Fatalf("Put() overwrite error = %v", err)
			}

			got, err := p.Get("hydrate_state")
			if err != nil {
				t.Fatalf("Get() error = %v", err)
			}
			if got != `{"version":1,"active":true}` {
				t.Errorf("Get() = %q", got)
			}

			if err := p.Delete("hydrate_state"); err != nil {
				t.Fatalf("Delete() error = %v", err)
			}
			if _, err := p.Get("hydrate_state"); !errors.Is(err, ErrNotFound) {
				t.Errorf("Get() after Delete error = %v, want ErrNotFound", err)
			}
			if err := p.Delete("never-written"); err != nil {
				t.Errorf("Delete() of a missing key error = %v", err)
			}
		})
	}
}

func TestProviderPersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	paths := map[string]string{
		"json":   filepath.Join(dir, "state.json"),
		"sqlite": filepath.Join(dir, "hydrate.db"),
	}

	for name, path := range paths {
		t.Run(name, func(t *testing.T) {
			first := New(path)
			if err := first.Init(); err != nil {
				t.Fatalf("Init() error = %v", err)
			}
			if err := first.Put("notification_permission", `{"state":"granted"}`); err != nil {
				t.Fatalf("Put() error = %v", err)
			}
			first.Close()

			second := New(path)
			if err := second.Load(); err != nil {
				t.Fatalf("Load() error = %v", err)
			}
			defer second.Close()

			got, err := second.Get("notification_permission")
			if err != nil || got != `{"state":"granted"}` {
				t.Errorf("Get() after reopen = %q, %v", got, err)
			}
		})
	}
}

func TestLoadUninitialized(t *testing.T) {
	dir := t.TempDir()
	for _, path := range []string{filepath.Join(dir, "missing.json"), filepath.Join(dir, "missing.db")} {
		if err := New(path).Load(); err == nil {
			t.Errorf("Load(%s) should fail before init", path)
		}
	}
}

func TestNotLoaded(t *testing.T) {
	dir := t.TempDir()
	for _, p := range []Provider{NewJSONStore(filepath.Join(dir, "x.json")), NewSQLiteStore(filepath.Join(dir, "x.db"))} {
		if _, err := p.Get("k"); !errors.Is(err, ErrNotLoaded) {
			t.Errorf("%T.Get() before Load error = %v, want ErrNotLoaded", p, err)
		}
		if err := p.Put("k", "v"); !errors.Is(err, ErrNotLoaded) {
			t.Errorf("%T.Put() before Load error = %v, want ErrNotLoaded", p, err)
		}
	}
}

func TestJSONStoreCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	if err := os.WriteFile(path, []byte("{not json"), 0600); err != nil {
		t.Fatal(err)
	}

	if err := NewJSONStore(path).Load(); err == nil {
		t.Fatal("Load() should fail on corrupt file")
	}
	if _, err := os.Stat(path + ".corrupt"); err != nil {
		t.Errorf("corrupt file should be moved aside: %v", err)
	}
}

func TestJSONStoreNoTempFileLeft(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	s := NewJSONStore(path)
	if err := s.Init(); err != nil {
		t.Fatal(err)
	}
	if err := s.Put("k", "v"); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Errorf("temp file should not remain, stat error = %v", err)
	}
}

func TestMemoryStoreFailWith(t *testing.T) {
	s := NewMemoryStore()
	boom := errors.New("disk full")
	s.FailWith("hydrate_state", boom)

	if err := s.Put("hydrate_state", "x"); !errors.Is(err, boom) {
		t.Errorf("Put() error = %v, want %v", err, boom)
	}
	if err := s.Put("other", "x"); err != nil {
		t.Errorf("Put() on other key error = %v", err)
	}

	s.FailWith("hydrate_state", nil)
	if err := s.Put("hydrate_state", "x"); err != nil {
		t.Errorf("Put() after clearing failure error = %v", err)
	}
}

func TestSQLiteIntakeLog(t *testing.T) {
	s := NewSQLiteStore(filepath.Join(t.TempDir(), "hydrate.db"))
	if err := s.Init(); err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	defer s.Close()

	at := time.Date(2026, 10, 15, 9, 0, 0, 0, time.UTC)
	records := []IntakeRecord{
		{Day: "2026-10-14", AmountMl: 500, RecordedAt: at.Add(-24 * time.Hour)},
		{Day: "2026-10-15", AmountMl: 250, RecordedAt: at},
		{Day: "2026-10-15", AmountMl: 250, RecordedAt: at.Add(time.Hour)},
		{Day: "2026-10-16", AmountMl: 300, RecordedAt: at.Add(24 * time.Hour)},
	}
	for _, r := range records {
		if err := s.AppendIntake(r); err != nil {
			t.Fatalf("AppendIntake() error = %v", err)
		}
	}

	totals, err := s.DailyTotals("2026-10-14", "2026-10-15")
	if err != nil {
		t.Fatalf("DailyTotals() error = %v", err)
	}
	if len(totals) != 2 || totals["2026-10-14"] != 500 || totals["2026-10-15"] != 500 {
		t.Errorf("DailyTotals() = %v", totals)
	}

	st, err := s.SchemaStatus()
	if err != nil {
		t.Fatalf("SchemaStatus() error = %v", err)
	}
	if st.Pending() || st.Current != 2 {
		t.Errorf("SchemaStatus() = %+v", st)
	}
}

func TestNewSelectsProvider(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{":memory:", "*storage.MemoryStore"},
		{"/tmp/state.json", "*storage.JSONStore"},
		{"/tmp/state.JSON", "*storage.JSONStore"},
		{"/tmp/hydrate.db", "*storage.SQLiteStore"},
	}

	for _, tt := range tests {
		got := typeName(New(tt.path))
		if got != tt.want {
			t.Errorf("New(%q) = %s, want %s", tt.path, got, tt.want)
		}
	}
}

func typeName(p Provider) string {
	switch p.(type) {
	case *MemoryStore:
		return "*storage.MemoryStore"
	case *JSONStore:
		return "*storage.JSONStore"
	case *SQLiteStore:
		return "*storage.SQLiteStore"
	}
	return "unknown"
}

func TestExpandHome(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home directory")
	}
	if got := ExpandHome("~/.config/hydrate/hydrate.db"); got != filepath.Join(home, ".config/hydrate/hydrate.db") {
		t.Errorf("ExpandHome() = %q", got)
	}
	if got := ExpandHome("/abs/path.db"); got != "/abs/path.db" {
		t.Errorf("ExpandHome() changed an absolute path: %q", got)
	}
}
