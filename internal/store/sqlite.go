package store

import (
	"database/sql"
	_ "embed"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/verihire/outbox/internal/queue"
)

//go:embed schema.sql
var schemaSQL string

// Schema version tracking:
// 0 - pre-migration databases
// 1 - initial queue_slot table
const currentSchemaVersion = 1

// DefaultSlotName is the slot row used unless the host configures another.
const DefaultSlotName = "mutation_queue"

// SQLiteStore persists the queue slot as a single row in a SQLite table.
// The payload column holds the same JSON array the FileStore writes.
type SQLiteStore struct {
	db   *sql.DB
	slot string
}

// OpenSQLite creates or opens the slot database at the given path.
// Applies pragmas and schema migrations; safe to call repeatedly.
func OpenSQLite(path, slot string) (*SQLiteStore, error) {
	if slot == "" {
		slot = DefaultSlotName
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open slot database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("connect slot database: %w", err)
	}

	// SQLite supports one writer at a time; a single connection avoids
	// SQLITE_BUSY inside the process.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, err
	}
	if err := applySchema(db); err != nil {
		db.Close()
		return nil, err
	}

	return &SQLiteStore{db: db, slot: slot}, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Load reads the slot row. No row means first run (empty queue); an
// unparseable payload is logged and treated as empty.
func (s *SQLiteStore) Load() ([]queue.Item, error) {
	var payload []byte
	err := s.db.QueryRow(
		`SELECT payload FROM queue_slot WHERE name = ?`, s.slot,
	).Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load queue slot: %w", err)
	}

	items, err := Unmarshal(payload)
	if err != nil {
		slog.Warn("queue slot corrupt, treating as empty",
			"slot", s.slot,
			"error", err,
		)
		return nil, nil
	}
	return items, nil
}

// Save replaces the slot payload in a single upsert.
func (s *SQLiteStore) Save(items []queue.Item) error {
	data, err := Marshal(items)
	if err != nil {
		return err
	}

	_, err = s.db.Exec(`
		INSERT INTO queue_slot (name, payload, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			payload = excluded.payload,
			updated_at = excluded.updated_at
	`, s.slot, data, time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("save queue slot: %w", err)
	}
	return nil
}

// applyPragmas sets required SQLite configuration.
func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("apply %q: %w", pragma, err)
		}
	}
	return nil
}

// applySchema creates the slot table if absent and stamps the schema
// version. Idempotent.
func applySchema(db *sql.DB) error {
	if _, err := db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("apply slot schema: %w", err)
	}

	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("get user_version: %w", err)
	}
	if version < currentSchemaVersion {
		if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", currentSchemaVersion)); err != nil {
			return fmt.Errorf("set user_version: %w", err)
		}
	}
	return nil
}
