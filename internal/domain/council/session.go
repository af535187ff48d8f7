// Package council implements bounded deliberation sessions: insight
// collection up to a quorum and the fixed-weight synthesis blend.
package council

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/xbard-C42/resource-council/internal/domain/model"
	"github.com/xbard-C42/resource-council/pkg/metrics"
)

// Default session policy; overridable via options.
const (
	defaultQuorum        = 3
	defaultInsightWeight = 0.7
	defaultDeadline      = 30 * time.Second
)

// Session collects advisor insights for one escalated proposal. It only
// ever holds ledger snapshots; it never mutates participant state.
type Session struct {
	mu sync.Mutex

	ctx      model.CouncilContext
	quorum   int
	weight   float64 // insight-mean weight in the blend
	insights []model.Insight
	seen     map[string]bool
	closed   bool
}

// NewSession opens a session around an escalated proposal. The proposal
// matrix and profile snapshots are copied in, so later ledger changes
// cannot leak into deliberation.
func NewSession(topic string, proposed model.Matrix, confidence float64, donors []model.DonorProfile, causes []model.CauseProfile, opts ...Option) *Session {
	s := &Session{
		quorum: defaultQuorum,
		weight: defaultInsightWeight,
		seen:   make(map[string]bool),
	}

	deadline := defaultDeadline
	now := time.Now
	cfg := &sessionConfig{deadline: &deadline, now: &now}
	for _, opt := range opts {
		opt(s, cfg)
	}

	openedAt := now()
	s.ctx = model.CouncilContext{
		ID:         uuid.NewString(),
		Topic:      topic,
		Proposed:   proposed.Clone(),
		Confidence: confidence,
		Donors:     donors,
		Causes:     causes,
		Question: fmt.Sprintf(
			"Proposed allocation satisfies %.0f%% of outstanding need. How should the split be adjusted?",
			confidence*100,
		),
		OpenedAt: openedAt,
		Deadline: openedAt.Add(deadline),
	}
	return s
}

// Context returns a copy of the session context for broadcasting.
func (s *Session) Context() model.CouncilContext {
	s.mu.Lock()
	defer s.mu.Unlock()
	ctx := s.ctx
	ctx.Proposed = s.ctx.Proposed.Clone()
	return ctx
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.ctx.ID }

// AddInsight records one advisor recommendation. Duplicate agents and
// arrivals after quorum are ignored. Returns whether the insight was
// accepted and whether the quorum is now reached.
func (s *Session) AddInsight(in model.Insight) (accepted, quorumReached bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || s.seen[in.AgentID] || len(s.insights) >= s.quorum {
		return false, len(s.insights) >= s.quorum
	}

	s.seen[in.AgentID] = true
	s.insights = append(s.insights, in)
	metrics.RecordInsightReceived()
	return true, len(s.insights) >= s.quorum
}

// PendingInsights returns how many insights are still needed for quorum.
func (s *Session) PendingInsights() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n := s.quorum - len(s.insights); n > 0 {
		return n
	}
	return 0
}

// Insights returns a copy of the collected insights, for audit detail.
func (s *Session) Insights() []model.Insight {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Insight, len(s.insights))
	copy(out, s.insights)
	return out
}

// Expired reports whether the session passed its deadline.
func (s *Session) Expired(now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return now.After(s.ctx.Deadline)
}

// Close marks the session finished; further insights are ignored.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
}

// Synthesize blends the collected insights with the original proposal.
//
// For each cell of the original proposal, every insight that carries a
// value for that cell contributes to the mean; insights that omit the cell
// abstain. With at least one recommendation the final value is
// weight*mean + (1-weight)*original; with none the original stands. Cells
// absent from the proposal are never introduced, so synthesis cannot grow
// the allocation surface. Insight confidences do not weight the blend.
func (s *Session) Synthesize() model.Matrix {
	s.mu.Lock()
	defer s.mu.Unlock()

	final := make(model.Matrix)
	for _, cell := range s.ctx.Proposed.Cells() {
		var sum float64
		var count int
		for _, in := range s.insights {
			if v, ok := in.Recommendations.Get(cell.DonorID, cell.CauseID); ok {
				sum += v
				count++
			}
		}

		value := cell.Amount
		if count > 0 {
			mean := sum / float64(count)
			value = s.weight*mean + (1-s.weight)*cell.Amount
		}
		final.Set(cell.DonorID, cell.CauseID, value)
	}
	return final
}
