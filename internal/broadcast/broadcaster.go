// ABOUTME: In-memory fan-out event broadcaster for dashboard awareness
// ABOUTME: Publishes named turn events to all current subscribers, best-effort

package broadcast

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	// subscriberBufferSize is the channel buffer for each subscriber.
	subscriberBufferSize = 64
)

// Event names published by the gateway.
const (
	// EventThoughtSummary is the lightweight "new reasoning available"
	// notification carrying only the thought summary.
	EventThoughtSummary = "thought.summary"
	// EventTurnCompleted is the full turn notification with text, state,
	// and usage.
	EventTurnCompleted = "turn.completed"
	// EventTurnReset tells dashboards a new request has started.
	EventTurnReset = "turn.reset"
)

// Event is one named notification with an arbitrary JSON-friendly payload.
type Event struct {
	Name      string    `json:"event"`
	Payload   any       `json:"payload"`
	Timestamp time.Time `json:"timestamp"`
}

// Broadcaster provides in-memory pub/sub for turn events. Subscribers
// receive every published event; delivery is fire-and-forget and a slow
// subscriber never blocks turn processing.
type Broadcaster struct {
	mu          sync.RWMutex
	subscribers map[string]chan *Event // subID -> ch
	logger      *slog.Logger
}

// New creates a broadcaster. Pass nil logger for default.
func New(logger *slog.Logger) *Broadcaster {
	if logger == nil {
		logger = slog.Default()
	}
	return &Broadcaster{
		subscribers: make(map[string]chan *Event),
		logger:      logger.With("component", "broadcaster"),
	}
}

// Subscribe registers a subscriber. Returns a channel that receives events
// and a subscription ID for later unsubscription. The subscription is
// automatically cleaned up when ctx is cancelled.
func (b *Broadcaster) Subscribe(ctx context.Context) (<-chan *Event, string) {
	subID := uuid.New().String()
	ch := make(chan *Event, subscriberBufferSize)

	b.mu.Lock()
	b.subscribers[subID] = ch
	b.mu.Unlock()

	b.logger.Debug("subscriber added", "sub_id", subID)

	// Auto-cleanup on context cancellation
	go func() {
		<-ctx.Done()
		b.Unsubscribe(subID)
	}()

	return ch, subID
}

// Publish sends a named event to all current subscribers. Non-blocking:
// the event is dropped for subscribers whose channels are full. Publish
// never fails; there is nothing for a caller to handle.
func (b *Broadcaster) Publish(name string, payload any) {
	event := &Event{
		Name:      name,
		Payload:   payload,
		Timestamp: time.Now(),
	}

	// Sends happen under the read lock. They are non-blocking, so holding
	// it is cheap, and Unsubscribe/Close take the write lock before closing
	// a channel; a send can therefore never race a close.
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, ch := range b.subscribers {
		select {
		case ch <- event:
			// Sent
		default:
			// Subscriber channel full, drop event for this subscriber
			b.logger.Debug("dropped event for slow subscriber", "event", name)
		}
	}
}

// Unsubscribe removes a subscription and closes its channel.
func (b *Broadcaster) Unsubscribe(subID string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch, ok := b.subscribers[subID]
	if !ok {
		return
	}

	delete(b.subscribers, subID)
	close(ch)

	b.logger.Debug("subscriber removed", "sub_id", subID)
}

// Close shuts down the broadcaster and closes all subscriber channels.
func (b *Broadcaster) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	for subID, ch := range b.subscribers {
		close(ch)
		delete(b.subscribers, subID)
	}

	b.logger.Debug("broadcaster closed")
}
