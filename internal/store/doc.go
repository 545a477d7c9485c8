// Package store provides persistent storage for the gateway using SQLite.
//
// # Data Models
//
//   - Session: one row per device carrying the opaque continuation token
//     that lets the reasoning service resume context across restarts
//   - HistoryEntry: append-only conversation log, two rows per completed
//     turn (user, then model)
//
// # Transactional Turns
//
// CommitTurn is the only write path. It performs the session upsert and both
// history appends inside a single transaction, so a turn is either fully
// recorded or not recorded at all. A turn that produced no new continuation
// token retains the previously stored one; absence of a token is preserved
// as NULL, distinct from an empty string.
//
// # SQLite Configuration
//
// The store uses SQLite with WAL mode for concurrent reads:
//
//	PRAGMA journal_mode=WAL;
//	PRAGMA foreign_keys=ON;
//
// # Error Handling
//
// ErrNotFound is returned when a device has no session yet. All methods
// accept context.Context for cancellation support.
//
// # Testing
//
// Use NewMockStore() for unit tests; it implements Store in memory and can
// inject commit failures. Use NewSQLiteStore with a temp path for
// integration tests against real SQLite.
package store
