package cooldown

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// Store persists cooldown slots in SQLite so that long cooldowns (daily
// commands and the like) survive process restarts.
type Store struct {
	db *sql.DB
}

const storeSchema = `
CREATE TABLE IF NOT EXISTS cooldown_stamps (
	command    TEXT    NOT NULL,
	scope      TEXT    NOT NULL,
	entity     TEXT    NOT NULL,
	stamped_at INTEGER NOT NULL,
	PRIMARY KEY (command, scope, entity)
);`

// OpenStore opens (or creates) the store at path. Use ":memory:" for an
// ephemeral store in tests.
func OpenStore(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("cooldown: open store: %w", err)
	}
	s := NewStore(db)
	if _, err := db.Exec(storeSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("cooldown: create schema: %w", err)
	}
	return s, nil
}

// NewStore wraps an existing database handle. The caller is responsible for
// the schema; OpenStore applies it automatically.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Save replaces the persisted snapshot with the tracker's live slots.
func (s *Store) Save(ctx context.Context, t *Tracker) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("cooldown: begin save: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM cooldown_stamps`); err != nil {
		return fmt.Errorf("cooldown: clear snapshot: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO cooldown_stamps (command, scope, entity, stamped_at) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("cooldown: prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, e := range t.Entries() {
		if _, err := stmt.ExecContext(ctx, e.Command, string(e.Scope), e.Entity, e.StampedAt.UnixNano()); err != nil {
			return fmt.Errorf("cooldown: insert slot: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("cooldown: commit save: %w", err)
	}
	return nil
}

// Load merges the persisted snapshot into the tracker.
func (s *Store) Load(ctx context.Context, t *Tracker) error {
	rows, err := s.db.QueryContext(ctx,
		`SELECT command, scope, entity, stamped_at FROM cooldown_stamps`)
	if err != nil {
		return fmt.Errorf("cooldown: load snapshot: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			e     Entry
			scope string
			nanos int64
		)
		if err := rows.Scan(&e.Command, &scope, &e.Entity, &nanos); err != nil {
			return fmt.Errorf("cooldown: scan slot: %w", err)
		}
		e.Scope = Scope(scope)
		e.StampedAt = time.Unix(0, nanos)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("cooldown: read snapshot: %w", err)
	}
	t.Restore(entries)
	return nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}
