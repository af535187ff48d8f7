package service

import "errors"

// Service errors.
var (
	// ErrNoTransport indicates Start was called without a configured bus.
	ErrNoTransport = errors.New("no transport configured")
)
