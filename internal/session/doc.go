// Package session orchestrates conversational turns.
//
// # Turn Lifecycle
//
// ProcessTurn runs a strict sequence for each turn:
//
//  1. Classify the input into a thinking level (low/high)
//  2. Load the device's prior continuation token (absent on first turn)
//  3. Call the reasoning service, re-injecting the prior token
//  4. Parse the reply: clean text, hardware-state block, new token
//  5. Broadcast dashboard events (fire-and-forget)
//  6. Persist the session upsert and the user/model history pair atomically
//
// A reasoning failure aborts the turn before any write. A persistence
// failure aborts the turn with no partial writes; the computed reply is
// dropped rather than returned, because a reply whose continuation token
// was never saved would desynchronize the next turn.
//
// # Concurrency
//
// Turns for one device are serialized with a refcounted per-device lock:
// the whole load-generate-persist span holds the lock, so two concurrent
// turns can never both read the same prior token and race on the update.
// Turns for distinct devices share nothing and run in parallel. Waiters
// respect context cancellation, and the lock is always released, including
// on timeout paths.
package session
