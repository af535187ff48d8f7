package execute

import (
	"time"

	"github.com/xbard-C42/resource-council/pkg/logger"
)

// Option applies a configuration option to the Executor.
type Option func(*Executor)

// WithEngineID sets the participant id the executor speaks as.
func WithEngineID(id string) Option {
	return func(e *Executor) {
		if id != "" {
			e.engineID = id
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(l logger.Logger) Option {
	return func(e *Executor) {
		if l != nil {
			e.log = l
		}
	}
}

// WithClock overrides the time source, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(e *Executor) {
		if now != nil {
			e.now = now
		}
	}
}
