package service

import (
	"time"

	"github.com/xbard-C42/resource-council/internal/adapters/transport"
	"github.com/xbard-C42/resource-council/internal/domain/trust"
	"github.com/xbard-C42/resource-council/pkg/logger"
)

// Option configures the engine at construction time.
type Option func(*Service)

// WithTransport sets the message bus the engine speaks over. Required.
func WithTransport(t transport.Transport) Option {
	return func(s *Service) {
		s.bus = t
	}
}

// WithTrustStore shares a token store with the transport so grants issued
// by the engine gate its own whispers.
func WithTrustStore(st *trust.Store) Option {
	return func(s *Service) {
		if st != nil {
			s.trustStore = st
		}
	}
}

// WithEngineID overrides the engine's participant identity.
func WithEngineID(id string) Option {
	return func(s *Service) {
		if id != "" {
			s.engineID = id
		}
	}
}

// WithConfidenceThreshold sets the escalation boundary in [0,1].
func WithConfidenceThreshold(t float64) Option {
	return func(s *Service) {
		if t >= 0 && t <= 1 {
			s.confidenceThreshold = t
		}
	}
}

// WithConcentrationLimit sets the single-cell share of total volume that
// flags a proposal for review.
func WithConcentrationLimit(l float64) Option {
	return func(s *Service) {
		if l > 0 && l <= 1 {
			s.concentrationLimit = l
		}
	}
}

// WithCouncilQuorum sets how many distinct insights trigger synthesis.
func WithCouncilQuorum(q int) Option {
	return func(s *Service) {
		if q > 0 {
			s.quorum = q
		}
	}
}

// WithCouncilDeadline bounds how long a session waits for quorum.
func WithCouncilDeadline(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.councilDeadline = d
		}
	}
}

// WithInsightWeight sets the council share of the synthesis blend.
func WithInsightWeight(w float64) Option {
	return func(s *Service) {
		if w >= 0 && w <= 1 {
			s.insightWeight = w
		}
	}
}

// WithMinWhisperTrust sets the confidence floor for direct messages.
func WithMinWhisperTrust(t float64) Option {
	return func(s *Service) {
		if t >= 0 && t <= 1 {
			s.minWhisperTrust = t
		}
	}
}

// WithTrustTokenTTL sets how long a trust grant stays valid.
func WithTrustTokenTTL(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.trustTokenTTL = d
		}
	}
}

// WithHistoryLimit caps the events returned by DashboardSnapshot.
func WithHistoryLimit(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.historyLimit = n
		}
	}
}

// WithQueueSize sets the intake queue capacity.
func WithQueueSize(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.queueSize = n
		}
	}
}

// WithLogger sets the engine logger.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.log = l
		}
	}
}

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}
