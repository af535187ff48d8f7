package model

import "time"

// Topic names consumed and produced over the messaging transport.
const (
	TopicOfferCapacity     = "offer_capacity"
	TopicRegisterNeed      = "register_need"
	TopicPreferenceUpdate  = "preference_update"
	TopicCouncilInsight    = "council_insight"
	TopicCapacityAck       = "capacity_acknowledged"
	TopicNeedAck           = "need_acknowledged"
	TopicCouncilContext    = "council:resource_context"
	TopicAllocationDone    = "allocation_executed"
	TopicFundingReceived   = "funding_received"
	TopicAllocationSummary = "allocation_summary"
)

// CapacityOffer is the inbound offer_capacity payload.
type CapacityOffer struct {
	DonorID     string
	Wallet      float64
	Fraction    float64 // share of wallet offered this cycle, clamped to (0,1]
	Preferences map[string]float64
}

// NeedRegistration is the inbound register_need payload.
type NeedRegistration struct {
	CauseID  string
	Name     string
	Need     float64
	Priority float64
}

// PreferenceUpdate is the inbound preference_update payload.
type PreferenceUpdate struct {
	DonorID     string
	Preferences map[string]float64
}

// CouncilInsight is the inbound council_insight payload.
type CouncilInsight struct {
	AgentID         string
	CouncilID       string
	Recommendations Matrix
	Confidence      float64
	Rationale       string
}

// CapacityAck is whispered back to a donor after an offer lands.
type CapacityAck struct {
	Budget  float64
	Message string
}

// NeedAck is whispered back to a cause after a registration lands.
type NeedAck struct {
	Need     float64
	Priority float64
	Message  string
}

// AllocationExecuted is whispered to the donor side of each transfer.
type AllocationExecuted struct {
	CauseID         string
	Amount          float64
	RemainingWallet float64
	CouncilReviewed bool
}

// FundingReceived is whispered to the cause side of each transfer.
type FundingReceived struct {
	DonorID       string
	Amount        float64
	TotalReceived float64
	NeedRemaining float64
}

// AllocationSummary is broadcast after each commit batch.
type AllocationSummary struct {
	TotalAllocated  float64
	AllocationCount int
	DonorCount      int
	CauseCount      int
	CouncilReviewed bool
	Timestamp       time.Time
}
