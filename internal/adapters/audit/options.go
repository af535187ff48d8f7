package audit

import "time"

// Option applies a configuration option to the Log.
type Option func(*Log)

// WithClock overrides the time source, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(l *Log) {
		if now != nil {
			l.now = now
		}
	}
}
