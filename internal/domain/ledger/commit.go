package ledger

import "github.com/xbard-C42/resource-council/internal/domain/model"

// Tx gives the execution unit exclusive ledger access for one commit batch.
// The writer lock is held for the whole callback, so a batch can never
// interleave with offers, registrations, or another commit.
type Tx struct {
	l *Ledger
}

// Transact runs fn while holding the ledger's writer lock.
func (l *Ledger) Transact(fn func(tx *Tx)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	fn(&Tx{l: l})
}

// Donor returns a copy of the live donor profile inside the transaction.
func (tx *Tx) Donor(id string) (model.DonorProfile, bool) {
	d, ok := tx.l.donors[id]
	if !ok {
		return model.DonorProfile{}, false
	}
	return d.Clone(), true
}

// Cause returns a copy of the live cause profile inside the transaction.
func (tx *Tx) Cause(id string) (model.CauseProfile, bool) {
	c, ok := tx.l.causes[id]
	if !ok {
		return model.CauseProfile{}, false
	}
	return *c, true
}

// Transfer moves up to amount from donor to cause, re-capping against the
// cause's current unmet need and the donor's live wallet and budget. The
// second return is false when either side no longer exists. An applied
// amount of zero with ok true means the transfer was capped away.
func (tx *Tx) Transfer(donorID, causeID string, amount float64) (float64, bool) {
	d, dok := tx.l.donors[donorID]
	c, cok := tx.l.causes[causeID]
	if !dok || !cok {
		return 0, false
	}

	applied := amount
	if unmet := c.Unmet(); applied > unmet {
		applied = unmet
	}
	if applied > d.Budget {
		applied = d.Budget
	}
	if applied > d.Wallet {
		applied = d.Wallet
	}
	if applied <= 0 {
		return 0, true
	}

	d.Wallet -= applied
	d.Budget -= applied
	c.ReceivedCycle += applied
	c.TotalReceived += applied
	return applied, true
}

// ResetCycles zeroes every cause's received-this-cycle figure. Need is left
// untouched: it is only ever changed by an explicit registration.
func (tx *Tx) ResetCycles() {
	for _, c := range tx.l.causes {
		c.ReceivedCycle = 0
	}
}
