// Package audit keeps the engine's append-only trail: one entry per
// significant action, each carrying a checksum of its serialized payload.
//
// The checksum is FNV-1a, a corruption-detection aid only. Tamper-proof
// integrity is an explicit non-goal; swap in a cryptographic digest if that
// ever changes.
package audit

import (
	"encoding/json"
	"fmt"
	"hash/fnv"
	"sync"
	"time"

	"github.com/xbard-C42/resource-council/internal/domain/model"
	"github.com/xbard-C42/resource-council/pkg/metrics"
)

// Kind labels the action an entry records.
type Kind string

// Entry kinds appended by the engine.
const (
	KindAllocationBatch  Kind = "allocation_batch"
	KindCouncilConvened  Kind = "council_convened"
	KindCouncilSynthesis Kind = "council_synthesis"
	KindCouncilExpired   Kind = "council_expired"
	KindCapacityOffer    Kind = "capacity_offer"
	KindNeedRegistration Kind = "need_registration"
)

// QueryKind selects how the allocation history is filtered.
type QueryKind string

// Supported audit query kinds.
const (
	QueryFullHistory   QueryKind = "full_history"
	QueryDonorActivity QueryKind = "donor_activity"
	QueryCauseFunding  QueryKind = "cause_funding"
)

// Entry is one immutable audit record.
type Entry struct {
	Timestamp time.Time       `json:"timestamp"`
	Kind      Kind            `json:"kind"`
	Details   json.RawMessage `json:"details"`
	Checksum  uint64          `json:"checksum"`
}

// QueryResult is a filtered slice of allocation events plus a checksum of
// the serialized response.
type QueryResult struct {
	Kind     QueryKind               `json:"kind"`
	Subject  string                  `json:"subject,omitempty"`
	Events   []model.AllocationEvent `json:"events"`
	Checksum uint64                  `json:"checksum"`
}

// Log is the append-only audit trail plus the allocation event history it
// serves queries from. Only the execution unit appends.
type Log struct {
	mu      sync.RWMutex
	entries []Entry
	events  []model.AllocationEvent
	now     func() time.Time
}

// NewLog creates an empty audit log with configuration options.
func NewLog(opts ...Option) *Log {
	l := &Log{now: time.Now}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Append serializes details, checksums the payload, and appends an entry.
// Entries are never mutated afterwards.
func (l *Log) Append(kind Kind, details any) (Entry, error) {
	payload, err := json.Marshal(details)
	if err != nil {
		return Entry{}, fmt.Errorf("%w: %w", ErrSerializeDetails, err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	e := Entry{
		Timestamp: l.now(),
		Kind:      kind,
		Details:   payload,
		Checksum:  checksum(payload),
	}
	l.entries = append(l.entries, e)
	metrics.RecordAuditEntry()
	return e, nil
}

// RecordEvents adds committed allocation events to the queryable history.
func (l *Log) RecordEvents(events []model.AllocationEvent) {
	if len(events) == 0 {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, events...)
}

// Entries returns a copy of every audit entry.
func (l *Log) Entries() []Entry {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]Entry, len(l.entries))
	copy(out, l.entries)
	return out
}

// Len returns the number of audit entries.
func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}

// Query filters the allocation history by request kind and checksums the
// response.
func (l *Log) Query(kind QueryKind, subject string) (QueryResult, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var filtered []model.AllocationEvent
	switch kind {
	case QueryFullHistory:
		filtered = append(filtered, l.events...)
	case QueryDonorActivity:
		for _, e := range l.events {
			if e.DonorID == subject {
				filtered = append(filtered, e)
			}
		}
	case QueryCauseFunding:
		for _, e := range l.events {
			if e.CauseID == subject {
				filtered = append(filtered, e)
			}
		}
	default:
		return QueryResult{}, fmt.Errorf("%w: %q", ErrUnknownQueryKind, kind)
	}

	payload, err := json.Marshal(filtered)
	if err != nil {
		return QueryResult{}, fmt.Errorf("%w: %w", ErrSerializeDetails, err)
	}
	return QueryResult{
		Kind:     kind,
		Subject:  subject,
		Events:   filtered,
		Checksum: checksum(payload),
	}, nil
}

// Verify re-checksums every entry and reports whether the trail is intact.
func (l *Log) Verify() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	for _, e := range l.entries {
		if checksum(e.Details) != e.Checksum {
			return false
		}
	}
	return true
}

func checksum(payload []byte) uint64 {
	h := fnv.New64a()
	_, _ = h.Write(payload)
	return h.Sum64()
}
