package store

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// newTestStore creates a new Store in a temporary directory.
func newTestStore(t *testing.T) *Store {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "test.db")
	s, err := New(dbPath)
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() {
		s.Close()
	})

	return s
}

func TestNewStore_CreatesDatabase(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")

	if _, err := os.Stat(dbPath); !os.IsNotExist(err) {
		t.Fatal("database file should not exist before creating store")
	}

	s, err := New(dbPath)
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	defer s.Close()

	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Fatal("database file should exist after creating store")
	}
	if s.Path() != dbPath {
		t.Errorf("Path() = %s, want %s", s.Path(), dbPath)
	}
}

func TestNewStore_RunsMigrations(t *testing.T) {
	s := newTestStore(t)

	for _, table := range []string{"settings", "sessions"} {
		var name string
		err := s.DB().QueryRow(
			"SELECT name FROM sqlite_master WHERE type='table' AND name=?",
			table,
		).Scan(&name)
		if err != nil {
			t.Errorf("table %q should exist after migrations: %v", table, err)
		}
	}

	var idx string
	err := s.DB().QueryRow(
		"SELECT name FROM sqlite_master WHERE type='index' AND name=?",
		"idx_sessions_started_at",
	).Scan(&idx)
	if err != nil {
		t.Errorf("index should exist after migrations: %v", err)
	}
}

func TestNewStore_Reopen(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")

	s, err := New(dbPath)
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	if err := s.Settings().Set(KeyTheme, "dark"); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	s.Close()

	s, err = New(dbPath)
	if err != nil {
		t.Fatalf("failed to reopen store: %v", err)
	}
	defer s.Close()

	got, err := s.Settings().Get(KeyTheme)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got != "dark" {
		t.Errorf("Get() = %s, want dark", got)
	}
}

func TestStore_Close(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")

	s, err := New(dbPath)
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}

	if err := s.Close(); err != nil {
		t.Errorf("close should not return error: %v", err)
	}

	if _, err := s.DB().Exec("SELECT 1"); err == nil {
		t.Error("DB operations should fail after close")
	}
}

func TestStore_ForeignKeysEnabled(t *testing.T) {
	s := newTestStore(t)

	var fkEnabled int
	if err := s.DB().QueryRow("PRAGMA foreign_keys").Scan(&fkEnabled); err != nil {
		t.Fatalf("failed to check foreign keys pragma: %v", err)
	}
	if fkEnabled != 1 {
		t.Error("foreign keys should be enabled")
	}
}

func TestSettingsRepository_GetSet(t *testing.T) {
	repo := newTestStore(t).Settings()

	if _, err := repo.Get(KeyPenColor); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get() on missing key: expected ErrNotFound, got %v", err)
	}

	if err := repo.Set(KeyPenColor, "#00ff00"); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if err := repo.Set(KeyPenColor, "#0000ff"); err != nil {
		t.Fatalf("Set() overwrite error = %v", err)
	}

	got, err := repo.Get(KeyPenColor)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got != "#0000ff" {
		t.Errorf("Get() = %s, want #0000ff", got)
	}
}

func TestSettingsRepository_AllAndDelete(t *testing.T) {
	repo := newTestStore(t).Settings()

	if err := repo.SetMany(map[string]string{"a": "1", "b": "2"}); err != nil {
		t.Fatalf("SetMany() error = %v", err)
	}

	all, err := repo.All()
	if err != nil {
		t.Fatalf("All() error = %v", err)
	}
	if len(all) != 2 || all["a"] != "1" || all["b"] != "2" {
		t.Errorf("All() = %v", all)
	}

	if err := repo.Delete("a"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if err := repo.Delete("a"); !errors.Is(err, ErrNotFound) {
		t.Errorf("second Delete() expected ErrNotFound, got %v", err)
	}
}

func TestSettingsRepository_Preferences(t *testing.T) {
	repo := newTestStore(t).Settings()

	t.Run("empty store yields zero preferences", func(t *testing.T) {
		prefs, err := repo.LoadPreferences()
		if err != nil {
			t.Fatalf("LoadPreferences() error = %v", err)
		}
		if prefs.PenColor != "" || prefs.PenThickness != 0 || prefs.Drawing != nil {
			t.Errorf("expected zero preferences, got %+v", prefs)
		}
	})

	t.Run("round trip", func(t *testing.T) {
		off := false
		on := true
		want := Preferences{
			PenColor:     "#123456",
			PenThickness: 14,
			Drawing:      &off,
			Background:   "camera",
			Theme:        "dark",
			Mirror:       &on,
		}
		if err := repo.SavePreferences(want); err != nil {
			t.Fatalf("SavePreferences() error = %v", err)
		}

		got, err := repo.LoadPreferences()
		if err != nil {
			t.Fatalf("LoadPreferences() error = %v", err)
		}
		if got.PenColor != want.PenColor || got.PenThickness != want.PenThickness ||
			got.Background != want.Background || got.Theme != want.Theme {
			t.Errorf("LoadPreferences() = %+v, want %+v", got, want)
		}
		if got.Drawing == nil || *got.Drawing != false {
			t.Errorf("Drawing = %v, want false", got.Drawing)
		}
		if got.Mirror == nil || *got.Mirror != true {
			t.Errorf("Mirror = %v, want true", got.Mirror)
		}
	})

	t.Run("unknown keys are ignored", func(t *testing.T) {
		if err := repo.Set("legacy_key", "x"); err != nil {
			t.Fatalf("Set() error = %v", err)
		}
		if _, err := repo.LoadPreferences(); err != nil {
			t.Errorf("LoadPreferences() with unknown key error = %v", err)
		}
	})

	t.Run("malformed thickness", func(t *testing.T) {
		if err := repo.Set(KeyPenThickness, "thick"); err != nil {
			t.Fatalf("Set() error = %v", err)
		}
		if _, err := repo.LoadPreferences(); err == nil {
			t.Error("expected decode error for non-numeric thickness")
		}
	})
}

func TestSessionRepository(t *testing.T) {
	repo := newTestStore(t).Sessions()

	older := &Session{ID: "s-1", StartedAt: time.Now().Add(-time.Hour)}
	if err := repo.Create(older); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	sess := &Session{ID: "s-2"}
	if err := repo.Create(sess); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if sess.StartedAt.IsZero() {
		t.Error("StartedAt should be set by Create")
	}

	sess.Frames = 120
	sess.Segments = 42
	sess.Strokes = 3
	sess.Clears = 1
	if err := repo.Finish(sess); err != nil {
		t.Fatalf("Finish() error = %v", err)
	}

	got, err := repo.GetByID("s-2")
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if got.Frames != 120 || got.Segments != 42 || got.Strokes != 3 || got.Clears != 1 {
		t.Errorf("GetByID() = %+v", got)
	}
	if got.EndedAt == nil {
		t.Error("EndedAt should be set after Finish")
	}

	recent, err := repo.Recent(5)
	if err != nil {
		t.Fatalf("Recent() error = %v", err)
	}
	if len(recent) != 2 || recent[0].ID != "s-2" {
		t.Errorf("Recent() order wrong: %v", recent)
	}
	if recent[1].EndedAt != nil {
		t.Error("unfinished session should have nil EndedAt")
	}

	if _, err := repo.GetByID("missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetByID(missing) expected ErrNotFound, got %v", err)
	}
	if err := repo.Finish(&Session{ID: "missing"}); !errors.Is(err, ErrNotFound) {
		t.Errorf("Finish(missing) expected ErrNotFound, got %v", err)
	}
}
