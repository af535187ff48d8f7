package trust

import "time"

// Option applies a configuration option to the Store.
type Option func(*Store)

// WithTokenTTL sets the lifetime of granted tokens.
func WithTokenTTL(ttl time.Duration) Option {
	return func(s *Store) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

// WithClock overrides the time source, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}
