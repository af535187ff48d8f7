// Package intake buffers inbound engine messages between the transport
// subscriptions and the single evaluation loop.
//
// Enqueue is non-blocking: producers observe backpressure as a false
// return, never a stall. A single consumer drains via Dequeue, which is
// what pins the engine to one evaluation at a time.
package intake

import (
	"context"
	"sync"

	"github.com/xbard-C42/resource-council/internal/domain/model"
	"github.com/xbard-C42/resource-council/pkg/metrics"
)

// Default queue capacity; overridable via options.
const defaultCapacity = 4096

// Kind discriminates the message payload.
type Kind string

// Message kinds accepted by the engine.
const (
	KindOffer   Kind = "offer_capacity"
	KindNeed    Kind = "register_need"
	KindPrefs   Kind = "preference_update"
	KindInsight Kind = "council_insight"
)

// Message is one unit of work for the evaluation loop. Exactly one payload
// field is set, matching Kind.
type Message struct {
	Kind    Kind
	Offer   *model.CapacityOffer
	Need    *model.NeedRegistration
	Prefs   *model.PreferenceUpdate
	Insight *model.CouncilInsight
}

// Offer wraps a capacity offer as an intake message.
func Offer(o model.CapacityOffer) Message {
	return Message{Kind: KindOffer, Offer: &o}
}

// Need wraps a need registration as an intake message.
func Need(n model.NeedRegistration) Message {
	return Message{Kind: KindNeed, Need: &n}
}

// Prefs wraps a preference update as an intake message.
func Prefs(p model.PreferenceUpdate) Message {
	return Message{Kind: KindPrefs, Prefs: &p}
}

// Insight wraps a council insight as an intake message.
func Insight(i model.CouncilInsight) Message {
	return Message{Kind: KindInsight, Insight: &i}
}

// Queue provides non-blocking enqueue and channel-based dequeue semantics.
type Queue struct {
	messages chan Message
	capacity int
	mu       sync.RWMutex
	closed   bool
}

// NewQueue creates a bounded intake queue with configuration options.
func NewQueue(opts ...Option) *Queue {
	q := &Queue{capacity: defaultCapacity}
	for _, opt := range opts {
		opt(q)
	}
	q.messages = make(chan Message, q.capacity)
	metrics.UpdateIntakeQueueSize(0, q.capacity)
	return q
}

// Enqueue adds a message. Returns false when the queue is full or closed.
func (q *Queue) Enqueue(ctx context.Context, m Message) bool {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		metrics.RecordIntakeDrop()
		metrics.RecordErrorByComponent("intake", "closed")
		return false
	}

	select {
	case q.messages <- m:
		metrics.RecordIntakeEnqueue()
		metrics.UpdateIntakeQueueSize(len(q.messages), q.capacity)
		return true
	case <-ctx.Done():
		metrics.RecordIntakeDrop()
		metrics.RecordErrorByComponent("intake", "context_cancelled")
		return false
	default:
		metrics.RecordIntakeDrop()
		metrics.RecordErrorByComponent("intake", "queue_full")
		return false
	}
}

// Dequeue returns a channel that yields messages until the queue closes.
func (q *Queue) Dequeue(ctx context.Context) <-chan Message {
	out := make(chan Message)
	go func() {
		defer close(out)
		for m := range q.messages {
			select {
			case out <- m:
				metrics.RecordIntakeDequeue()
				metrics.UpdateIntakeQueueSize(len(q.messages), q.capacity)
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

// Len returns the current queue depth.
func (q *Queue) Len() int {
	return len(q.messages)
}

// Close shuts the queue down; pending messages still drain.
func (q *Queue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return nil
	}
	close(q.messages)
	q.closed = true
	return nil
}

// IsClosed reports whether the queue has been closed.
func (q *Queue) IsClosed() bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.closed
}
