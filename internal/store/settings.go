package store

import (
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/mitchellh/mapstructure"
)

// Setting keys.
const (
	KeyPenColor     = "pen_color"
	KeyPenThickness = "pen_thickness"
	KeyDrawing      = "drawing"
	KeyBackground   = "background"
	KeyTheme        = "theme"
	KeyMirror       = "mirror"
)

// SettingsRepository provides access to the key-value settings table.
type SettingsRepository struct {
	db *sql.DB
}

// Settings returns the settings repository for this store.
func (s *Store) Settings() *SettingsRepository {
	return &SettingsRepository{db: s.db}
}

// Get returns the value stored under key or ErrNotFound.
func (r *SettingsRepository) Get(key string) (string, error) {
	var value string
	err := r.db.QueryRow(`SELECT value FROM settings WHERE key = ?`, key).Scan(&value)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", ErrNotFound
		}
		return "", err
	}
	return value, nil
}

// Set inserts or replaces the value stored under key.
func (r *SettingsRepository) Set(key, value string) error {
	_, err := r.db.Exec(
		`INSERT INTO settings (key, value, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, time.Now(),
	)
	return err
}

// SetMany writes all values in one transaction.
func (r *SettingsRepository) SetMany(values map[string]string) error {
	tx, err := r.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(
		`INSERT INTO settings (key, value, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
	)
	if err != nil {
		return err
	}
	defer stmt.Close()

	now := time.Now()
	for k, v := range values {
		if _, err := stmt.Exec(k, v, now); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// All returns every stored setting.
func (r *SettingsRepository) All() (map[string]string, error) {
	rows, err := r.db.Query(`SELECT key, value FROM settings`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	values := make(map[string]string)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, err
		}
		values[k] = v
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return values, nil
}

// Delete removes a setting.
func (r *SettingsRepository) Delete(key string) error {
	result, err := r.db.Exec(`DELETE FROM settings WHERE key = ?`, key)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		return ErrNotFound
	}

	return nil
}

// Preferences are the user choices restored on the next start.
// Zero values mean "not stored" and leave the configured default in place.
type Preferences struct {
	PenColor     string `mapstructure:"pen_color"`
	PenThickness int    `mapstructure:"pen_thickness"`
	Drawing      *bool  `mapstructure:"drawing"`
	Background   string `mapstructure:"background"`
	Theme        string `mapstructure:"theme"`
	Mirror       *bool  `mapstructure:"mirror"`
}

// LoadPreferences decodes the stored settings into Preferences.
func (r *SettingsRepository) LoadPreferences() (Preferences, error) {
	var prefs Preferences

	values, err := r.All()
	if err != nil {
		return prefs, err
	}

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           &prefs,
	})
	if err != nil {
		return prefs, err
	}

	if err := decoder.Decode(values); err != nil {
		return prefs, fmt.Errorf("decode preferences: %w", err)
	}

	return prefs, nil
}

// SavePreferences stores every non-zero field of prefs.
func (r *SettingsRepository) SavePreferences(prefs Preferences) error {
	values := make(map[string]string)
	if prefs.PenColor != "" {
		values[KeyPenColor] = prefs.PenColor
	}
	if prefs.PenThickness > 0 {
		values[KeyPenThickness] = strconv.Itoa(prefs.PenThickness)
	}
	if prefs.Drawing != nil {
		values[KeyDrawing] = strconv.FormatBool(*prefs.Drawing)
	}
	if prefs.Background != "" {
		values[KeyBackground] = prefs.Background
	}
	if prefs.Theme != "" {
		values[KeyTheme] = prefs.Theme
	}
	if prefs.Mirror != nil {
		values[KeyMirror] = strconv.FormatBool(*prefs.Mirror)
	}

	if len(values) == 0 {
		return nil
	}
	return r.SetMany(values)
}
