// Package ledger owns donor and cause state and computes proposed
// allocations, confidence, and concentration risk.
//
// The ledger is the single writer for participant state: every mutation
// goes through its methods under one lock, and everything handed outward
// is a copy.
package ledger

import (
	"math"
	"sort"
	"sync"
	"time"

	"github.com/xbard-C42/resource-council/internal/domain/model"
	"github.com/xbard-C42/resource-council/pkg/metrics"
)

// Default policy values; overridable via options.
const (
	defaultConcentrationLimit = 0.3
	engagementTrustGain       = 2
	inactivityTrustLoss       = 1
)

// Ledger holds the donor and cause maps behind a single lock.
type Ledger struct {
	mu     sync.RWMutex
	donors map[string]*model.DonorProfile
	causes map[string]*model.CauseProfile

	concentrationLimit float64
	now                func() time.Time
}

// New creates an empty ledger with configuration options.
func New(opts ...Option) *Ledger {
	l := &Ledger{
		donors:             make(map[string]*model.DonorProfile),
		causes:             make(map[string]*model.CauseProfile),
		concentrationLimit: defaultConcentrationLimit,
		now:                time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// RecordCapacityOffer upserts a donor profile and recomputes its budget.
// Unknown donors are created; fraction is clamped to (0, 1] and weights
// to [0, 1]. Returns a copy of the stored profile.
func (l *Ledger) RecordCapacityOffer(offer model.CapacityOffer) model.DonorProfile {
	l.mu.Lock()
	defer l.mu.Unlock()

	d, ok := l.donors[offer.DonorID]
	if !ok {
		d = &model.DonorProfile{
			ID:          offer.DonorID,
			Preferences: make(map[string]float64),
			Trust:       model.TrustMax / 2,
		}
		l.donors[offer.DonorID] = d
	}

	wallet := offer.Wallet
	if wallet < 0 {
		wallet = 0
	}
	fraction := clampFraction(offer.Fraction)

	d.Wallet = wallet
	d.Budget = wallet * fraction
	for causeID, w := range offer.Preferences {
		d.Preferences[causeID] = clamp01(w)
	}
	d.LastActive = l.now()
	d.Trust = min(d.Trust+engagementTrustGain, model.TrustMax)

	metrics.UpdateActiveDonors(len(l.donors))
	return d.Clone()
}

// RecordNeedRegistration upserts a cause profile. Priority is clamped to
// [0, 1] and negative need to zero. Returns a copy of the stored profile.
func (l *Ledger) RecordNeedRegistration(reg model.NeedRegistration) model.CauseProfile {
	l.mu.Lock()
	defer l.mu.Unlock()

	c, ok := l.causes[reg.CauseID]
	if !ok {
		c = &model.CauseProfile{ID: reg.CauseID}
		l.causes[reg.CauseID] = c
	}

	if reg.Name != "" {
		c.Name = reg.Name
	}
	c.Need = math.Max(reg.Need, 0)
	c.Priority = clamp01(reg.Priority)
	c.UpdatedAt = l.now()

	metrics.UpdateActiveCauses(len(l.causes))
	return *c
}

// UpdatePreferences merges clamped weights into an existing donor profile.
// Returns false when the donor is unknown.
func (l *Ledger) UpdatePreferences(donorID string, prefs map[string]float64) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	d, ok := l.donors[donorID]
	if !ok {
		return false
	}
	for causeID, w := range prefs {
		d.Preferences[causeID] = clamp01(w)
	}
	d.LastActive = l.now()
	d.Trust = min(d.Trust+engagementTrustGain, model.TrustMax)
	return true
}

// ProposedAllocation computes the per-donor proportional split.
//
// For every donor with budget > 0 and at least one positively weighted
// cause: score(cause) = preference * priority * min(need, budget); each
// donor's scores are normalized by their sum and the budget split in those
// proportions, each cell capped at the cause's unmet need. The split is
// greedy and per-donor independent: donors competing for one cause can
// over-subscribe it within a cycle, resolved only by the commit-time cap.
// Iteration is sorted, so the result is deterministic and idempotent.
func (l *Ledger) ProposedAllocation() model.Matrix {
	l.mu.RLock()
	defer l.mu.RUnlock()

	m := make(model.Matrix)
	for _, donorID := range sortedKeys(l.donors) {
		d := l.donors[donorID]
		if d.Budget <= 0 {
			continue
		}

		causeIDs := l.relevantCauses(d)
		if len(causeIDs) == 0 {
			continue
		}

		var scoreSum float64
		scores := make(map[string]float64, len(causeIDs))
		for _, causeID := range causeIDs {
			s := l.scoreCell(d, l.causes[causeID])
			scores[causeID] = s
			scoreSum += s
		}
		if scoreSum <= 0 {
			continue
		}

		for _, causeID := range causeIDs {
			c := l.causes[causeID]
			alloc := d.Budget * (scores[causeID] / scoreSum)
			if unmet := c.Unmet(); alloc > unmet {
				alloc = unmet
			}
			if alloc > 0 {
				m.Set(donorID, causeID, alloc)
			}
		}
	}
	return m
}

// scoreCell weighs one donor-cause pair: preference * priority * the lesser
// of need and budget.
func (l *Ledger) scoreCell(d *model.DonorProfile, c *model.CauseProfile) float64 {
	return d.Preferences[c.ID] * c.Priority * math.Min(c.Need, d.Budget)
}

// relevantCauses returns the sorted ids of causes the donor positively
// weighs and that exist in the ledger.
func (l *Ledger) relevantCauses(d *model.DonorProfile) []string {
	ids := make([]string, 0, len(d.Preferences))
	for causeID, w := range d.Preferences {
		if w <= 0 {
			continue
		}
		if _, ok := l.causes[causeID]; ok {
			ids = append(ids, causeID)
		}
	}
	sort.Strings(ids)
	return ids
}

// Confidence returns the fraction of total outstanding need the proposal
// would satisfy: sum over causes of min(proposed, need) over sum of need.
// Defined as 1.0 when total need is zero. Always in [0, 1].
func (l *Ledger) Confidence(m model.Matrix) float64 {
	l.mu.RLock()
	defer l.mu.RUnlock()

	proposedPerCause := make(map[string]float64)
	for _, row := range m {
		for causeID, amount := range row {
			proposedPerCause[causeID] += amount
		}
	}

	var totalNeed, met float64
	for causeID, c := range l.causes {
		totalNeed += c.Need
		met += math.Min(proposedPerCause[causeID], c.Need)
	}
	if totalNeed <= 0 {
		return 1.0
	}
	return met / totalNeed
}

// ConcentrationRisk reports whether any single donor-cause cell exceeds the
// configured share of the total proposed volume. A sole donor cannot be
// concentrated relative to peers, so single-donor proposals never flag.
func (l *Ledger) ConcentrationRisk(m model.Matrix) bool {
	total := m.Total()
	if total <= 0 || len(m) < 2 {
		return false
	}
	for _, row := range m {
		for _, amount := range row {
			if amount > l.concentrationLimit*total {
				return true
			}
		}
	}
	return false
}

// Snapshot returns deep copies of every donor and cause profile, sorted by id.
func (l *Ledger) Snapshot() ([]model.DonorProfile, []model.CauseProfile) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	donors := make([]model.DonorProfile, 0, len(l.donors))
	for _, id := range sortedKeys(l.donors) {
		donors = append(donors, l.donors[id].Clone())
	}
	causes := make([]model.CauseProfile, 0, len(l.causes))
	for _, id := range sortedKeys(l.causes) {
		causes = append(causes, *l.causes[id])
	}
	return donors, causes
}

// Donor returns a copy of one donor profile.
func (l *Ledger) Donor(id string) (model.DonorProfile, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	d, ok := l.donors[id]
	if !ok {
		return model.DonorProfile{}, false
	}
	return d.Clone(), true
}

// Cause returns a copy of one cause profile.
func (l *Ledger) Cause(id string) (model.CauseProfile, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	c, ok := l.causes[id]
	if !ok {
		return model.CauseProfile{}, false
	}
	return *c, true
}

// DonorCount returns the number of tracked donors.
func (l *Ledger) DonorCount() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.donors)
}

// CauseCount returns the number of tracked causes.
func (l *Ledger) CauseCount() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.causes)
}

// ApplyTrustDecay lowers trust for donors idle longer than idleAfter.
func (l *Ledger) ApplyTrustDecay(idleAfter time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := l.now().Add(-idleAfter)
	for _, d := range l.donors {
		if d.LastActive.Before(cutoff) {
			d.Trust = max(d.Trust-inactivityTrustLoss, model.TrustMin)
		}
	}
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}

// clampFraction bounds a cycle fraction to (0, 1]. Offers above 1 clamp to
// the whole wallet; non-positive offers yield a zero budget, which parks the
// donor for the cycle.
func clampFraction(f float64) float64 {
	switch {
	case f > 1:
		return 1
	case f <= 0:
		return 0
	default:
		return f
	}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
