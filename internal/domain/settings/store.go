package settings

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/containeros/appbridge/internal/shared/types"
)

const schema = `
CREATE TABLE IF NOT EXISTS settings (
	tier  TEXT NOT NULL,
	key   TEXT NOT NULL,
	value TEXT NOT NULL,
	PRIMARY KEY (tier, key)
);
`

// Store persists tiered settings in a local SQLite database.
// Use ":memory:" for tests.
type Store struct {
	db *sql.DB
}

// NewStore opens (creating if needed) the settings database at dbPath.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open settings db: %w", err)
	}

	// SQLite allows one writer at a time.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create settings schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Get returns the stored value for (tier, key). ok is false when no value
// is stored.
func (s *Store) Get(tier types.Tier, key string) (string, bool, error) {
	var value string
	err := s.db.QueryRow(
		"SELECT value FROM settings WHERE tier = ? AND key = ?",
		string(tier), key,
	).Scan(&value)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("settings get %s/%s: %w", tier, key, err)
	}
	return value, true, nil
}

// Put upserts the value for (tier, key).
func (s *Store) Put(tier types.Tier, key, value string) error {
	_, err := s.db.Exec(
		`INSERT INTO settings (tier, key, value) VALUES (?, ?, ?)
		 ON CONFLICT (tier, key) DO UPDATE SET value = excluded.value`,
		string(tier), key, value,
	)
	if err != nil {
		return fmt.Errorf("settings put %s/%s: %w", tier, key, err)
	}
	return nil
}
