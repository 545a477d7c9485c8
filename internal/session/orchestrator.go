// ABOUTME: Session orchestrator coordinating one conversational turn end to end
// ABOUTME: Classify, load continuation, generate, parse, broadcast, persist

package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/silaslabs/silas-gateway/internal/broadcast"
	"github.com/silaslabs/silas-gateway/internal/classify"
	"github.com/silaslabs/silas-gateway/internal/reasoning"
	"github.com/silaslabs/silas-gateway/internal/reply"
	"github.com/silaslabs/silas-gateway/internal/store"
)

// SessionStore defines what the orchestrator needs from storage
type SessionStore interface {
	GetSession(ctx context.Context, deviceID string) (*store.Session, error)
	CommitTurn(ctx context.Context, rec *store.TurnRecord) error
}

// Generator defines what the orchestrator needs from the reasoning service
type Generator interface {
	Generate(ctx context.Context, req *reasoning.GenerateRequest) (*reasoning.GenerateResult, error)
}

// Publisher defines what the orchestrator needs from the event broadcaster
type Publisher interface {
	Publish(name string, payload any)
}

// Orchestrator runs turns. Turns for one device are serialized through a
// per-device lock; turns for distinct devices run fully in parallel.
type Orchestrator struct {
	store             SessionStore
	generator         Generator
	publisher         Publisher
	systemInstruction string
	locks             *deviceLocks
	logger            *slog.Logger
}

// New creates an Orchestrator. Pass nil logger for default.
func New(st SessionStore, gen Generator, pub Publisher, systemInstruction string, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		store:             st,
		generator:         gen,
		publisher:         pub,
		systemInstruction: systemInstruction,
		locks:             newDeviceLocks(),
		logger:            logger.With("component", "session"),
	}
}

// TurnResult is what a completed turn returns to the transport layer.
type TurnResult struct {
	CleanText         string
	Tier              classify.Tier
	State             map[string]any
	Summary           string
	ThinkingTokens    int
	TotalTokens       int
	ContinuationToken string // empty when the reply produced none
}

// ProcessTurn runs one turn for a device. The load-generate-persist span
// holds the device lock so concurrent turns for the same device cannot race
// on the continuation token. Failures are typed: *ReasoningError means the
// service call failed and nothing was written; *PersistenceError means the
// storage write failed and the computed reply was dropped (the reply is
// intentionally not returned; handing out a reply whose continuation token
// was never saved would desynchronize the device's next turn).
func (o *Orchestrator) ProcessTurn(ctx context.Context, deviceID, text string) (*TurnResult, error) {
	tier := classify.Classify(text)

	release, err := o.locks.acquire(ctx, deviceID)
	if err != nil {
		return nil, fmt.Errorf("acquiring device lock: %w", err)
	}
	defer release()

	// Load the prior continuation token; absent on a device's first turn.
	var prior string
	sess, err := o.store.GetSession(ctx, deviceID)
	switch {
	case err == nil:
		if sess.HasContinuation {
			prior = sess.ContinuationToken
		}
	case errors.Is(err, store.ErrNotFound):
		// First turn for this device
	default:
		return nil, &PersistenceError{Err: fmt.Errorf("loading session: %w", err)}
	}

	result, err := o.generator.Generate(ctx, &reasoning.GenerateRequest{
		SystemInstruction: o.systemInstruction,
		Tier:              tier,
		PriorContinuation: prior,
		UserText:          text,
	})
	if err != nil {
		return nil, &ReasoningError{Err: err}
	}

	parsed := reply.Parse(result.ReplyText, result.ContinuationCandidates, result.ThoughtSummary)

	// Fire-and-forget dashboard events. One goroutine keeps the summary
	// event ahead of the completed event without blocking persistence.
	go o.broadcastTurn(deviceID, tier, parsed, result)

	rec := &store.TurnRecord{
		DeviceID:          deviceID,
		ContinuationToken: parsed.ContinuationToken,
		HasContinuation:   parsed.ContinuationToken != "",
		UserText:          text,
		ModelText:         parsed.CleanText,
		Timestamp:         time.Now(),
	}
	if err := o.store.CommitTurn(ctx, rec); err != nil {
		return nil, &PersistenceError{Err: err}
	}

	o.logger.Info("turn completed",
		"device_id", deviceID,
		"thinking_level", tier,
		"thinking_tokens", result.ThinkingTokens,
		"has_continuation", rec.HasContinuation)

	return &TurnResult{
		CleanText:         parsed.CleanText,
		Tier:              tier,
		State:             parsed.State,
		Summary:           parsed.Summary,
		ThinkingTokens:    result.ThinkingTokens,
		TotalTokens:       result.TotalTokens,
		ContinuationToken: parsed.ContinuationToken,
	}, nil
}

// broadcastTurn publishes the lightweight summary event followed by the
// full turn event. Best-effort by contract; the broadcaster absorbs slow
// subscribers.
func (o *Orchestrator) broadcastTurn(deviceID string, tier classify.Tier, parsed reply.Parsed, result *reasoning.GenerateResult) {
	o.publisher.Publish(broadcast.EventThoughtSummary, map[string]any{
		"text": parsed.Summary,
	})
	o.publisher.Publish(broadcast.EventTurnCompleted, map[string]any{
		"device_id":      deviceID,
		"level":          string(tier),
		"summary":        parsed.Summary,
		"text":           parsed.CleanText,
		"hardware_state": parsed.State,
		"thought_tokens": result.ThinkingTokens,
		// Presence only. The raw continuation token never leaves the
		// gateway, here or in the inspection API.
		"has_signature": parsed.ContinuationToken != "",
	})
}
