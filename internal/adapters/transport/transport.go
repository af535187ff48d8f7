// Package transport defines the agent messaging contract the engine
// consumes: register, broadcast, whisper, convene, subscribe.
//
// The engine is a client of this interface, never its implementation. Bus
// is an in-memory stand-in for the host SDK, used by tests and the
// simulation binary.
package transport

import (
	"context"
	"time"
)

// Message is one delivery, broadcast or point-to-point.
type Message struct {
	ID      string
	Topic   string
	From    string
	To      string // empty for broadcasts
	Payload any
	At      time.Time
}

// Handler consumes messages delivered to a subscription.
type Handler func(ctx context.Context, msg Message)

// ConveneNotice announces a deliberation session to its participants.
type ConveneNotice struct {
	SessionID    string
	Topic        string
	Participants []string
}

// Transport is the messaging surface the engine depends on. Payloads are
// structured records; wire encoding is the transport's concern.
type Transport interface {
	// Register announces a participant and its declared capabilities to
	// the capability directory.
	Register(id string, capabilities ...string)

	// Broadcast fans a payload out to every subscriber of topic.
	Broadcast(ctx context.Context, from, topic string, payload any) error

	// Whisper delivers point-to-point, subject to trust gating.
	Whisper(ctx context.Context, from, to, topic string, payload any) error

	// Convene opens a bounded deliberation session and notifies the
	// chosen participants. Returns the session id.
	Convene(ctx context.Context, topic string, participants []string) (string, error)

	// Subscribe attaches a handler for a topic on behalf of a registered
	// participant.
	Subscribe(participantID, topic string, handler Handler) error
}
