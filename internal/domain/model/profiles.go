// Package model contains domain types passed between engine layers.
package model

import "time"

// Trust bounds for donor profiles.
const (
	TrustMin = 0
	TrustMax = 100
)

// DonorProfile represents a participant offering capacity.
type DonorProfile struct {
	ID          string
	Wallet      float64            // total balance, never negative
	Preferences map[string]float64 // cause id -> weight in [0,1]
	Budget      float64            // wallet * offered fraction; Budget <= Wallet always
	LastActive  time.Time
	Trust       int // 0-100, grows with engagement, decays with inactivity
}

// Clone returns a deep copy safe to hand to councils or the UI layer.
func (d DonorProfile) Clone() DonorProfile {
	prefs := make(map[string]float64, len(d.Preferences))
	for k, v := range d.Preferences {
		prefs[k] = v
	}
	d.Preferences = prefs
	return d
}

// CauseProfile represents a participant requesting funding.
//
// Need is an externally re-asserted figure: it is only ever changed by a
// need registration and is NOT decremented as funding accumulates. Failing
// to re-register leaves the old ask in force.
type CauseProfile struct {
	ID            string
	Name          string
	Need          float64 // outstanding ask, never negative
	Priority      float64 // urgency in [0,1]
	ReceivedCycle float64 // reset to zero after each execution
	TotalReceived float64 // lifetime total
	UpdatedAt     time.Time
}

// Unmet returns the portion of the ask not yet covered this cycle.
func (c CauseProfile) Unmet() float64 {
	if rem := c.Need - c.ReceivedCycle; rem > 0 {
		return rem
	}
	return 0
}
