package transport

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/xbard-C42/resource-council/internal/domain/trust"
)

// Bus implements Transport in memory. Delivery is synchronous and
// in-process; delivery guarantees are explicitly not part of the contract.
type Bus struct {
	mu        sync.RWMutex
	directory map[string][]string             // participant -> capabilities
	subs      map[string]map[string][]Handler // topic -> participant -> handlers
	closed    bool

	trustStore *trust.Store
	minTrust   float64
	now        func() time.Time
}

// NewBus creates an in-memory bus with configuration options.
func NewBus(opts ...BusOption) *Bus {
	b := &Bus{
		directory: make(map[string][]string),
		subs:      make(map[string]map[string][]Handler),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// BusOption applies a configuration option to the Bus.
type BusOption func(*Bus)

// WithTrustGate makes whispers consult the given token store with the
// given minimum confidence. Without it, whispers are ungated.
func WithTrustGate(store *trust.Store, minConfidence float64) BusOption {
	return func(b *Bus) {
		b.trustStore = store
		b.minTrust = minConfidence
	}
}

// WithClock overrides the time source, mainly for tests.
func WithClock(now func() time.Time) BusOption {
	return func(b *Bus) {
		if now != nil {
			b.now = now
		}
	}
}

// Register announces a participant to the capability directory. Repeat
// registration replaces the declared capabilities.
func (b *Bus) Register(id string, capabilities ...string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.directory[id] = append([]string(nil), capabilities...)
}

// Capabilities returns the declared capabilities of a participant.
func (b *Bus) Capabilities(id string) ([]string, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	caps, ok := b.directory[id]
	if !ok {
		return nil, false
	}
	return append([]string(nil), caps...), true
}

// WithCapability returns every registered participant declaring capability.
func (b *Bus) WithCapability(capability string) []string {
	b.mu.RLock()
	defer b.mu.RUnlock()

	var ids []string
	for id, caps := range b.directory {
		for _, c := range caps {
			if c == capability {
				ids = append(ids, id)
				break
			}
		}
	}
	return ids
}

// Subscribe attaches a handler for topic on behalf of participantID.
func (b *Bus) Subscribe(participantID, topic string, handler Handler) error {
	if handler == nil {
		return fmt.Errorf("%w: nil handler", ErrBadSubscription)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return ErrClosed
	}
	if _, ok := b.directory[participantID]; !ok {
		return fmt.Errorf("%w: %s", ErrNotRegistered, participantID)
	}

	byParticipant, ok := b.subs[topic]
	if !ok {
		byParticipant = make(map[string][]Handler)
		b.subs[topic] = byParticipant
	}
	byParticipant[participantID] = append(byParticipant[participantID], handler)
	return nil
}

// Broadcast fans payload out to every handler subscribed to topic.
func (b *Bus) Broadcast(ctx context.Context, from, topic string, payload any) error {
	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		return ErrClosed
	}
	var handlers []Handler
	for _, hs := range b.subs[topic] {
		handlers = append(handlers, hs...)
	}
	b.mu.RUnlock()

	msg := Message{
		ID:      uuid.NewString(),
		Topic:   topic,
		From:    from,
		Payload: payload,
		At:      b.now(),
	}
	for _, h := range handlers {
		h(ctx, msg)
	}
	return nil
}

// Whisper delivers payload to the handlers one participant holds for topic.
// When a trust gate is configured, an unexpired token from -> to at or
// above the minimum confidence is required.
func (b *Bus) Whisper(ctx context.Context, from, to, topic string, payload any) error {
	if b.trustStore != nil {
		if err := b.trustStore.Allowed(from, to, b.minTrust); err != nil {
			return err
		}
	}

	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		return ErrClosed
	}
	handlers := append([]Handler(nil), b.subs[topic][to]...)
	b.mu.RUnlock()

	msg := Message{
		ID:      uuid.NewString(),
		Topic:   topic,
		From:    from,
		To:      to,
		Payload: payload,
		At:      b.now(),
	}
	for _, h := range handlers {
		h(ctx, msg)
	}
	return nil
}

// Convene opens a deliberation session and notifies the participants on
// topic. An empty participant list convenes everyone whose declared
// capabilities include the topic.
func (b *Bus) Convene(ctx context.Context, topic string, participants []string) (string, error) {
	if len(participants) == 0 {
		participants = b.WithCapability(topic)
	}

	sessionID := uuid.NewString()
	notice := ConveneNotice{
		SessionID:    sessionID,
		Topic:        topic,
		Participants: append([]string(nil), participants...),
	}

	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		return "", ErrClosed
	}
	byParticipant := b.subs[topic]
	var handlers []Handler
	for _, p := range participants {
		handlers = append(handlers, byParticipant[p]...)
	}
	b.mu.RUnlock()

	msg := Message{
		ID:      uuid.NewString(),
		Topic:   topic,
		Payload: notice,
		At:      b.now(),
	}
	for _, h := range handlers {
		h(ctx, msg)
	}
	return sessionID, nil
}

// Close shuts the bus down; further operations fail with ErrClosed.
func (b *Bus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	return nil
}

// IsClosed reports whether the bus has been closed.
func (b *Bus) IsClosed() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.closed
}
