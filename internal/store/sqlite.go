// ABOUTME: SQLite implementation of the Store interface using modernc.org/sqlite
// ABOUTME: Provides session/history persistence with automatic schema creation

package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements the Store interface using SQLite
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLiteStore creates a new SQLite store at the given path.
// The schema is automatically created if it doesn't exist.
// Parent directories are created if needed.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	logger := slog.Default().With("component", "store")

	// Ensure parent directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Enable WAL mode for better concurrent performance
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	// Enable foreign keys
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	s := &SQLiteStore{
		db:     db,
		logger: logger,
	}

	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	logger.Info("SQLite store initialized", "path", path)
	return s, nil
}

// createSchema creates the database tables if they don't exist
func (s *SQLiteStore) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS sessions (
			device_id          TEXT PRIMARY KEY,
			continuation_token TEXT,
			updated_at         TEXT NOT NULL
		);

		CREATE TABLE IF NOT EXISTS history (
			id        INTEGER PRIMARY KEY AUTOINCREMENT,
			device_id TEXT NOT NULL,
			role      TEXT NOT NULL,
			content   TEXT NOT NULL,
			timestamp TEXT NOT NULL,

			CHECK (role IN ('user', 'model'))
		);

		CREATE INDEX IF NOT EXISTS idx_history_device_id
			ON history(device_id);

		CREATE INDEX IF NOT EXISTS idx_history_device_timestamp
			ON history(device_id, timestamp);
	`

	_, err := s.db.Exec(schema)
	return err
}

// GetSession retrieves the session row for a device.
func (s *SQLiteStore) GetSession(ctx context.Context, deviceID string) (*Session, error) {
	query := `
		SELECT device_id, continuation_token, updated_at
		FROM sessions
		WHERE device_id = ?
	`

	var (
		sess         Session
		token        sql.NullString
		updatedAtStr string
	)
	err := s.db.QueryRowContext(ctx, query, deviceID).Scan(&sess.DeviceID, &token, &updatedAtStr)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying session: %w", err)
	}

	if token.Valid && token.String != "" {
		sess.ContinuationToken = token.String
		sess.HasContinuation = true
	}

	sess.UpdatedAt, err = time.Parse(time.RFC3339, updatedAtStr)
	if err != nil {
		return nil, fmt.Errorf("parsing updated_at: %w", err)
	}

	return &sess, nil
}

// CommitTurn writes one completed turn in a single transaction: the session
// upsert followed by the user and model history rows. A turn that carried no
// new continuation token keeps the previously stored one.
func (s *SQLiteStore) CommitTurn(ctx context.Context, rec *TurnRecord) error {
	ts := rec.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	tsStr := ts.UTC().Format(time.RFC3339)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if rec.HasContinuation {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO sessions (device_id, continuation_token, updated_at)
			VALUES (?, ?, ?)
			ON CONFLICT(device_id) DO UPDATE SET
				continuation_token = excluded.continuation_token,
				updated_at = excluded.updated_at
		`, rec.DeviceID, rec.ContinuationToken, tsStr)
	} else {
		// No new token: retain whatever is stored, only bump updated_at.
		_, err = tx.ExecContext(ctx, `
			INSERT INTO sessions (device_id, continuation_token, updated_at)
			VALUES (?, NULL, ?)
			ON CONFLICT(device_id) DO UPDATE SET
				updated_at = excluded.updated_at
		`, rec.DeviceID, tsStr)
	}
	if err != nil {
		return fmt.Errorf("upserting session: %w", err)
	}

	insert := `INSERT INTO history (device_id, role, content, timestamp) VALUES (?, ?, ?, ?)`
	if _, err := tx.ExecContext(ctx, insert, rec.DeviceID, RoleUser, rec.UserText, tsStr); err != nil {
		return fmt.Errorf("appending user entry: %w", err)
	}
	if _, err := tx.ExecContext(ctx, insert, rec.DeviceID, RoleModel, rec.ModelText, tsStr); err != nil {
		return fmt.Errorf("appending model entry: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing turn: %w", err)
	}

	s.logger.Debug("turn committed",
		"device_id", rec.DeviceID,
		"has_continuation", rec.HasContinuation)
	return nil
}

// ListHistory returns up to limit history entries for a device, oldest first.
func (s *SQLiteStore) ListHistory(ctx context.Context, deviceID string, limit int) ([]*HistoryEntry, error) {
	if limit <= 0 {
		limit = 100
	}

	// Fetch the newest entries, then reverse so callers read in order.
	query := `
		SELECT id, device_id, role, content, timestamp
		FROM history
		WHERE device_id = ?
		ORDER BY id DESC
		LIMIT ?
	`

	rows, err := s.db.QueryContext(ctx, query, deviceID, limit)
	if err != nil {
		return nil, fmt.Errorf("querying history: %w", err)
	}
	defer rows.Close()

	var entries []*HistoryEntry
	for rows.Next() {
		var (
			e     HistoryEntry
			tsStr string
		)
		if err := rows.Scan(&e.ID, &e.DeviceID, &e.Role, &e.Content, &tsStr); err != nil {
			return nil, fmt.Errorf("scanning history entry: %w", err)
		}
		e.Timestamp, err = time.Parse(time.RFC3339, tsStr)
		if err != nil {
			return nil, fmt.Errorf("parsing timestamp: %w", err)
		}
		entries = append(entries, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating history: %w", err)
	}

	// Reverse into chronological order
	for i, j := 0, len(entries)-1; i < j; i, j = i+1, j-1 {
		entries[i], entries[j] = entries[j], entries[i]
	}

	return entries, nil
}

// ListSessions returns device sessions, most recently updated first.
func (s *SQLiteStore) ListSessions(ctx context.Context, limit int) ([]*Session, error) {
	if limit <= 0 {
		limit = 100
	}

	query := `
		SELECT device_id, continuation_token, updated_at
		FROM sessions
		ORDER BY updated_at DESC
		LIMIT ?
	`

	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("querying sessions: %w", err)
	}
	defer rows.Close()

	var sessions []*Session
	for rows.Next() {
		var (
			sess         Session
			token        sql.NullString
			updatedAtStr string
		)
		if err := rows.Scan(&sess.DeviceID, &token, &updatedAtStr); err != nil {
			return nil, fmt.Errorf("scanning session: %w", err)
		}
		if token.Valid && token.String != "" {
			sess.ContinuationToken = token.String
			sess.HasContinuation = true
		}
		sess.UpdatedAt, err = time.Parse(time.RFC3339, updatedAtStr)
		if err != nil {
			return nil, fmt.Errorf("parsing updated_at: %w", err)
		}
		sessions = append(sessions, &sess)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating sessions: %w", err)
	}

	return sessions, nil
}

// Close closes the underlying database connection
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
