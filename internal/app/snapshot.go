package service

import (
	"github.com/xbard-C42/resource-council/internal/adapters/audit"
	"github.com/xbard-C42/resource-council/internal/domain/model"
)

// DashboardSnapshot is a read-only view of the engine for dashboards and
// the HTTP layer.
type DashboardSnapshot struct {
	State           State                   `json:"state"`
	Donors          []model.DonorProfile    `json:"donors"`
	Causes          []model.CauseProfile    `json:"causes"`
	TotalAllocated  float64                 `json:"total_allocated"`
	RecentEvents    []model.AllocationEvent `json:"recent_events"`
	CouncilActive   bool                    `json:"council_active"`
	CouncilID       string                  `json:"council_id,omitempty"`
	PendingInsights int                     `json:"pending_insights"`
	QueueDepth      int                     `json:"queue_depth"`
	AuditEntries    int                     `json:"audit_entries"`
}

// Snapshot assembles the dashboard view. Safe to call from any goroutine.
func (s *Service) Snapshot() DashboardSnapshot {
	donors, causes := s.ledger.Snapshot()

	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := DashboardSnapshot{
		State:          s.state,
		Donors:         donors,
		Causes:         causes,
		TotalAllocated: s.totalAllocated,
		RecentEvents:   append([]model.AllocationEvent(nil), s.history...),
		QueueDepth:     s.queue.Len(),
		AuditEntries:   s.auditLog.Len(),
	}
	if s.session != nil {
		snap.CouncilActive = true
		snap.CouncilID = s.session.ID()
		snap.PendingInsights = s.session.PendingInsights()
	}
	return snap
}

// AuditQuery runs a structured query against the audit trail.
func (s *Service) AuditQuery(kind audit.QueryKind, subject string) (audit.QueryResult, error) {
	return s.auditLog.Query(kind, subject)
}

// AuditTrail returns a copy of every raw audit entry in append order.
func (s *Service) AuditTrail() []audit.Entry {
	return s.auditLog.Entries()
}

// AuditVerify re-walks the trail checking every entry checksum.
func (s *Service) AuditVerify() bool {
	return s.auditLog.Verify()
}

// Stats reports coarse engine counters.
func (s *Service) Stats() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return map[string]any{
		"state":           s.state,
		"donor_count":     s.ledger.DonorCount(),
		"cause_count":     s.ledger.CauseCount(),
		"total_allocated": s.totalAllocated,
		"event_count":     len(s.history),
		"audit_entries":   s.auditLog.Len(),
		"queue_depth":     s.queue.Len(),
		"trust_tokens":    s.trustStore.Size(),
		"council_active":  s.session != nil,
	}
}

// recordHistory appends committed events to the bounded dashboard buffer.
// Caller must hold s.mu.
func (s *Service) recordHistory(events []model.AllocationEvent) {
	s.history = append(s.history, events...)
	if over := len(s.history) - s.historyLimit; over > 0 {
		s.history = append(s.history[:0], s.history[over:]...)
	}
}
