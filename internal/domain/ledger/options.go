package ledger

import "time"

// Option applies a configuration option to the Ledger.
type Option func(*Ledger)

// WithConcentrationLimit sets the single-cell share of total proposed
// volume that triggers concentration risk.
func WithConcentrationLimit(limit float64) Option {
	return func(l *Ledger) {
		if limit > 0 && limit <= 1 {
			l.concentrationLimit = limit
		}
	}
}

// WithClock overrides the time source, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) {
		if now != nil {
			l.now = now
		}
	}
}
