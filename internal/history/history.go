// Package history keeps a local ledger of publish runs backed by SQLite,
// so operators can answer "what did we last push for this app" without the
// remote catalog.
package history

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schemaSQL string

// schemaVersion is bumped when the ledger schema changes; a mismatched
// database must be deleted and recreated.
const schemaVersion = 1

// ErrSchemaMismatch indicates the ledger was written by an incompatible
// version.
var ErrSchemaMismatch = errors.New("history schema version mismatch")

// Event is one recorded publish outcome.
type Event struct {
	ID         int64
	Artifact   string
	AppName    string
	Action     string
	EntryID    string
	Identifier string
	Version    string
	SHA256     string
	DryRun     bool
	CreatedAt  time.Time
}

// Actions recorded in the ledger.
const (
	ActionCreated = "created"
	ActionUpdated = "updated"
	ActionSkipped = "skipped"
)

// Store is the ledger handle.
type Store struct {
	db   *sql.DB
	path string
}

// Open initializes or connects to the ledger database at path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open history db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: path}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) initSchema(ctx context.Context) error {
	var tableExists int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(1) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	).Scan(&tableExists)
	if err != nil {
		return fmt.Errorf("check schema_version table: %w", err)
	}

	if tableExists == 0 {
		if _, err := s.db.ExecContext(ctx, schemaSQL); err != nil {
			return fmt.Errorf("create history schema: %w", err)
		}
		if _, err := s.db.ExecContext(ctx, "INSERT INTO schema_version (version) VALUES (?)", schemaVersion); err != nil {
			return fmt.Errorf("record schema version: %w", err)
		}
		return nil
	}

	var version int
	if err := s.db.QueryRowContext(ctx, "SELECT version FROM schema_version LIMIT 1").Scan(&version); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if version != schemaVersion {
		return fmt.Errorf("%w: database has version %d, expected %d (delete %s to recreate)",
			ErrSchemaMismatch, version, schemaVersion, s.path)
	}
	return nil
}

// Record appends an event to the ledger and returns its id.
func (s *Store) Record(ctx context.Context, event Event) (int64, error) {
	createdAt := event.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO publish_events (
            artifact, app_name, action, entry_id, identifier, version, sha256, dry_run, created_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		event.Artifact,
		event.AppName,
		event.Action,
		event.EntryID,
		event.Identifier,
		event.Version,
		event.SHA256,
		boolToInt(event.DryRun),
		createdAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return 0, fmt.Errorf("insert publish event: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("last insert id: %w", err)
	}
	return id, nil
}

// Recent returns the newest events, most recent first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Event, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, artifact, app_name, action, entry_id, identifier, version, sha256, dry_run, created_at
         FROM publish_events ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query publish events: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		event, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, event)
	}
	return events, rows.Err()
}

// LastAction returns the most recent event for the named app. The second
// return value reports whether one exists.
func (s *Store) LastAction(ctx context.Context, appName string) (Event, bool, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, artifact, app_name, action, entry_id, identifier, version, sha256, dry_run, created_at
         FROM publish_events WHERE app_name = ? ORDER BY id DESC LIMIT 1`, appName)
	event, err := scanEvent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Event{}, false, nil
	}
	if err != nil {
		return Event{}, false, err
	}
	return event, true, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEvent(row rowScanner) (Event, error) {
	var event Event
	var dryRun int
	var createdAt string
	err := row.Scan(&event.ID, &event.Artifact, &event.AppName, &event.Action,
		&event.EntryID, &event.Identifier, &event.Version, &event.SHA256, &dryRun, &createdAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Event{}, err
		}
		return Event{}, fmt.Errorf("scan publish event: %w", err)
	}
	event.DryRun = dryRun != 0
	if parsed, err := time.Parse(time.RFC3339Nano, createdAt); err == nil {
		event.CreatedAt = parsed
	}
	return event, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
