// Package trust tracks short-lived trust tokens gating whisper delivery.
//
// The store is append-only except for expiry pruning: tokens are granted
// on healthy interactions and silently age out.
package trust

import (
	"fmt"
	"sync"
	"time"

	"github.com/xbard-C42/resource-council/internal/domain/model"
	"github.com/xbard-C42/resource-council/pkg/metrics"
)

// Default token lifetime; overridable via options.
const defaultTokenTTL = 10 * time.Minute

// Token records one party's confidence in another, with an expiry.
type Token struct {
	From       string
	To         string
	Confidence float64
	ExpiresAt  time.Time
}

// Store holds trust tokens keyed by the (from, to) pair.
type Store struct {
	mu     sync.RWMutex
	tokens map[string][]Token
	ttl    time.Duration
	now    func() time.Time
}

// NewStore creates an empty token store with configuration options.
func NewStore(opts ...Option) *Store {
	s := &Store{
		tokens: make(map[string][]Token),
		ttl:    defaultTokenTTL,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Grant appends a token from one participant to another. Confidence is
// clamped to [0, 1].
func (s *Store) Grant(from, to string, confidence float64) {
	if confidence < 0 {
		confidence = 0
	} else if confidence > 1 {
		confidence = 1
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	k := key(from, to)
	s.tokens[k] = append(s.tokens[k], Token{
		From:       from,
		To:         to,
		Confidence: confidence,
		ExpiresAt:  s.now().Add(s.ttl),
	})
}

// Allowed reports whether an unexpired token from -> to meets the minimum
// confidence. Returns ErrTrustNotEstablished otherwise; callers surface the
// failure and do not retry.
func (s *Store) Allowed(from, to string, minConfidence float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	k := key(from, to)
	live := s.pruneLocked(k)
	for _, t := range live {
		if t.Confidence >= minConfidence {
			return nil
		}
	}
	metrics.RecordTrustDenial()
	return fmt.Errorf("%w: %s -> %s (min %.2f)", ErrTrustNotEstablished, from, to, minConfidence)
}

// TrustScore converts a donor trust level (0-100) to token confidence.
func TrustScore(d model.DonorProfile) float64 {
	return float64(d.Trust) / float64(model.TrustMax)
}

// Size returns the number of live tokens across all pairs.
func (s *Store) Size() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int
	for k := range s.tokens {
		n += len(s.pruneLocked(k))
	}
	return n
}

// pruneLocked drops expired tokens for a key and returns the survivors.
// Caller must hold the write lock.
func (s *Store) pruneLocked(k string) []Token {
	now := s.now()
	live := s.tokens[k][:0]
	for _, t := range s.tokens[k] {
		if t.ExpiresAt.After(now) {
			live = append(live, t)
		}
	}
	if len(live) == 0 {
		delete(s.tokens, k)
		return nil
	}
	s.tokens[k] = live
	return live
}

func key(from, to string) string {
	return from + "\x00" + to
}
