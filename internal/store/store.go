// ABOUTME: Store interface and data types for silas-gateway persistence
// ABOUTME: Defines Session, HistoryEntry structs and the Store interface for database operations

package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested entity does not exist
var ErrNotFound = errors.New("not found")

// Role constants for history entries
const (
	RoleUser  = "user"
	RoleModel = "model"
)

// Session is the per-device record that carries reasoning context across
// process and device restarts. At most one row exists per device.
type Session struct {
	DeviceID          string
	ContinuationToken string // opaque thought signature; empty means none stored
	HasContinuation   bool   // distinguishes "no token" from an empty token
	UpdatedAt         time.Time
}

// HistoryEntry is one immutable message in a device's conversation log.
// Entries are append-only; nothing in the gateway mutates or deletes them.
type HistoryEntry struct {
	ID        int64
	DeviceID  string
	Role      string // "user" or "model"
	Content   string
	Timestamp time.Time
}

// TurnRecord is everything one completed turn persists in a single
// transaction: the session upsert plus the user/model history pair.
type TurnRecord struct {
	DeviceID string
	// ContinuationToken is the new token extracted from the reply. When
	// HasContinuation is false the previously stored token is retained;
	// a turn that produced no token never clears a valid prior one.
	ContinuationToken string
	HasContinuation   bool
	UserText          string
	ModelText         string
	Timestamp         time.Time
}

// Store defines the interface for session and history persistence
type Store interface {
	// GetSession returns the session for a device, or ErrNotFound if the
	// device has never completed a turn.
	GetSession(ctx context.Context, deviceID string) (*Session, error)

	// CommitTurn atomically upserts the device session and appends the
	// user and model history entries, in that order. Either everything is
	// written or nothing is.
	CommitTurn(ctx context.Context, rec *TurnRecord) error

	// ListHistory returns up to limit entries for a device, oldest first.
	ListHistory(ctx context.Context, deviceID string, limit int) ([]*HistoryEntry, error)

	// ListSessions returns all device sessions, most recently updated first.
	ListSessions(ctx context.Context, limit int) ([]*Session, error)

	// Close releases any resources held by the store
	Close() error
}
