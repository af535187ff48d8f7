package council

import "time"

type sessionConfig struct {
	deadline *time.Duration
	now      *func() time.Time
}

// Option applies a configuration option to a Session.
type Option func(*Session, *sessionConfig)

// WithQuorum sets the number of insights required before synthesis.
func WithQuorum(n int) Option {
	return func(s *Session, _ *sessionConfig) {
		if n > 0 {
			s.quorum = n
		}
	}
}

// WithInsightWeight sets the weight of the insight mean in the blend; the
// original proposal carries the complement.
func WithInsightWeight(w float64) Option {
	return func(s *Session, _ *sessionConfig) {
		if w >= 0 && w <= 1 {
			s.weight = w
		}
	}
}

// WithDeadline bounds how long the session stays open.
func WithDeadline(d time.Duration) Option {
	return func(_ *Session, cfg *sessionConfig) {
		if d > 0 {
			*cfg.deadline = d
		}
	}
}

// WithClock overrides the time source, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(_ *Session, cfg *sessionConfig) {
		if now != nil {
			*cfg.now = now
		}
	}
}
