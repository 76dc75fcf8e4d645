package store

import (
	"database/sql"
	"fmt"
	"time"
)

// SettingsStore is a small key-value table for instance-wide values.
type SettingsStore struct {
	db *sql.DB
}

func NewSettingsStore(db *sql.DB) *SettingsStore {
	return &SettingsStore{db: db}
}

// Get returns "" and false when key is unset.
func (s *SettingsStore) Get(key string) (string, bool, error) {
	var value string
	err := s.db.QueryRow(`SELECT value FROM settings WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get setting %q: %w", key, err)
	}
	return value, true, nil
}

func (s *SettingsStore) Set(key, value string) error {
	_, err := s.db.Exec(
		`INSERT INTO settings (key, value, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("set setting %q: %w", key, err)
	}
	return nil
}

// GetOrCreate returns the value of key, storing the result of create first
// if the key is unset.
func (s *SettingsStore) GetOrCreate(key string, create func() (string, error)) (string, error) {
	value, ok, err := s.Get(key)
	if err != nil {
		return "", err
	}
	if ok {
		return value, nil
	}

	value, err = create()
	if err != nil {
		return "", fmt.Errorf("create setting %q: %w", key, err)
	}
	// Another process may have won the race; keep whichever was stored first.
	if _, err := s.db.Exec(`INSERT OR IGNORE INTO settings (key, value) VALUES (?, ?)`, key, value); err != nil {
		return "", fmt.Errorf("set setting %q: %w", key, err)
	}
	value, _, err = s.Get(key)
	return value, err
}
