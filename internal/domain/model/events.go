package model

import "time"

// AllocationEvent records one committed funds movement. Immutable once built.
type AllocationEvent struct {
	Timestamp       time.Time `json:"timestamp"`
	DonorID         string    `json:"donor_id"`
	CauseID         string    `json:"cause_id"`
	Amount          float64   `json:"amount"` // always > 0
	Confidence      float64   `json:"confidence"`
	Rationale       string    `json:"rationale"`
	CouncilReviewed bool      `json:"council_reviewed"`
}

// CouncilContext is the ephemeral session record broadcast to advisors.
type CouncilContext struct {
	ID         string
	Topic      string
	Proposed   Matrix
	Confidence float64
	Donors     []DonorProfile
	Causes     []CauseProfile
	Question   string
	OpenedAt   time.Time
	Deadline   time.Time
}

// Insight is one advisor's independent recommendation.
//
// Recommendations may be partial: a cell absent from the matrix is an
// abstention for that cell, not a recommendation of zero. Confidence is
// carried for audit and display only; it never weights the blend.
type Insight struct {
	AgentID         string
	Recommendations Matrix
	Confidence      float64
	Rationale       string
}
