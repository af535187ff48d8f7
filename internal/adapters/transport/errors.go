package transport

import "errors"

// Sentinel kinds for transport errors.
var (
	ErrClosed          = errors.New("transport closed")
	ErrNotRegistered   = errors.New("participant not registered")
	ErrBadSubscription = errors.New("invalid subscription")
)
