// Package sqlite implements store.EventStore using SQLite.
package sqlite

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/jxucoder/tomoru/model"
	"github.com/jxucoder/tomoru/store"
)

// DefaultRecentLimit is used when RecentEvents is called with a non-positive limit.
const DefaultRecentLimit = 50

// Store manages diagnostic event persistence in SQLite.
type Store struct {
	db *sql.DB
}

var _ store.EventStore = (*Store)(nil)

// New opens (or creates) a SQLite database at the given path.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Enable WAL mode for better concurrent read/write performance.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting WAL mode: %w", err)
	}

	if err := migrate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return &Store{db: db}, nil
}

func migrate(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS visit_events (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			visit_id   TEXT NOT NULL,
			kind       TEXT NOT NULL,
			data       TEXT NOT NULL DEFAULT '',
			created_at DATETIME NOT NULL DEFAULT (datetime('now'))
		);

		CREATE INDEX IF NOT EXISTS idx_visit_events_visit_id
			ON visit_events(visit_id);

		CREATE INDEX IF NOT EXISTS idx_visit_events_kind
			ON visit_events(kind);
	`)
	return err
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// AddEvent inserts a new event and sets its ID.
func (s *Store) AddEvent(event *model.Event) error {
	result, err := s.db.Exec(
		`INSERT INTO visit_events (visit_id, kind, data, created_at)
		 VALUES (?, ?, ?, ?)`,
		event.VisitID, event.Kind, event.Data, event.CreatedAt,
	)
	if err != nil {
		return err
	}
	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	event.ID = id
	return nil
}

// ListEvents returns events for a visit, optionally after a given event ID.
func (s *Store) ListEvents(visitID string, afterID int64) ([]*model.Event, error) {
	rows, err := s.db.Query(
		`SELECT id, visit_id, kind, data, created_at
		 FROM visit_events
		 WHERE visit_id = ? AND id > ?
		 ORDER BY id ASC`,
		visitID, afterID,
	)
	if err != nil {
		return nil, err
	}
	return scanEvents(rows)
}

// RecentEvents returns the newest events first. An empty kind matches all kinds.
func (s *Store) RecentEvents(kind string, limit int) ([]*model.Event, error) {
	if limit <= 0 {
		limit = DefaultRecentLimit
	}
	rows, err := s.db.Query(
		`SELECT id, visit_id, kind, data, created_at
		 FROM visit_events
		 WHERE ? = '' OR kind = ?
		 ORDER BY id DESC
		 LIMIT ?`,
		kind, kind, limit,
	)
	if err != nil {
		return nil, err
	}
	return scanEvents(rows)
}

// CountEvents returns how many events of kind exist. An empty kind counts all.
func (s *Store) CountEvents(kind string) (int, error) {
	var n int
	err := s.db.QueryRow(
		`SELECT COUNT(*) FROM visit_events WHERE ? = '' OR kind = ?`,
		kind, kind,
	).Scan(&n)
	return n, err
}

func scanEvents(rows *sql.Rows) ([]*model.Event, error) {
	defer rows.Close()

	var events []*model.Event
	for rows.Next() {
		e := &model.Event{}
		if err := rows.Scan(&e.ID, &e.VisitID, &e.Kind, &e.Data, &e.CreatedAt); err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	return events, rows.Err()
}
