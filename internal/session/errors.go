// ABOUTME: Typed turn failure errors for the session orchestrator
// ABOUTME: Distinguishes reasoning-service failures from persistence failures

package session

import "fmt"

// ReasoningError marks a turn that failed at the reasoning service.
// Nothing was persisted for the turn.
type ReasoningError struct {
	Err error
}

func (e *ReasoningError) Error() string {
	return fmt.Sprintf("reasoning service: %v", e.Err)
}

func (e *ReasoningError) Unwrap() error {
	return e.Err
}

// PersistenceError marks a turn that failed at the storage layer. The
// transaction guarantees no partial writes; the reply computed for the
// turn is dropped.
type PersistenceError struct {
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence: %v", e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}
