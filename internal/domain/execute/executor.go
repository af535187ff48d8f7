// Package execute commits allocation matrices: it is the only component
// that moves balances, and every batch it applies lands in the audit log.
package execute

import (
	"context"
	"fmt"
	"time"

	"github.com/xbard-C42/resource-council/internal/adapters/audit"
	"github.com/xbard-C42/resource-council/internal/adapters/transport"
	"github.com/xbard-C42/resource-council/internal/domain/ledger"
	"github.com/xbard-C42/resource-council/internal/domain/model"
	"github.com/xbard-C42/resource-council/pkg/logger"
	"github.com/xbard-C42/resource-council/pkg/metrics"
)

// Executor applies committed batches to the ledger and fans out
// notifications. The whole batch runs inside one ledger transaction, so a
// commit can never interleave with incoming offers or another commit.
type Executor struct {
	ledger   *ledger.Ledger
	bus      transport.Transport
	auditLog *audit.Log
	log      logger.Logger
	engineID string
	now      func() time.Time
}

// Result summarizes one commit batch.
type Result struct {
	Events         []model.AllocationEvent
	TotalAllocated float64
	Skipped        int
}

// NewExecutor wires an executor with configuration options.
func NewExecutor(l *ledger.Ledger, bus transport.Transport, auditLog *audit.Log, opts ...Option) *Executor {
	e := &Executor{
		ledger:   l,
		bus:      bus,
		auditLog: auditLog,
		log:      logger.Get().Named("execute"),
		engineID: "allocation_engine",
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// notification pairs an allocation event with the whisper payloads owed to
// each side, captured while the ledger lock is held.
type notification struct {
	event model.AllocationEvent
	donor model.AllocationExecuted
	cause model.FundingReceived
}

// Commit applies a matrix cell by cell in deterministic order.
//
// Each amount is re-capped against the live unmet need, wallet, and budget
// at commit time, which closes the staleness window between proposal and
// commit. Cells whose donor or cause vanished are skipped silently; that
// tolerance for stale proposals is deliberate and lossy. After the loop,
// every cause's received-this-cycle resets to zero; need is untouched.
func (e *Executor) Commit(ctx context.Context, m model.Matrix, confidence float64, councilReviewed bool) Result {
	start := e.now()
	defer func() {
		metrics.RecordCommitLatency(float64(time.Since(start).Milliseconds()))
	}()

	rationale := fmt.Sprintf("proportional preference split at confidence %.2f", confidence)
	if councilReviewed {
		rationale += ", adjusted by council synthesis"
	}

	var res Result
	var notes []notification

	e.ledger.Transact(func(tx *ledger.Tx) {
		for _, cell := range m.Cells() {
			if cell.Amount <= 0 {
				continue
			}

			applied, ok := tx.Transfer(cell.DonorID, cell.CauseID, cell.Amount)
			if !ok {
				// Donor or cause removed between proposal and commit.
				res.Skipped++
				metrics.RecordCommitSkip()
				e.log.Debug(ctx, "skipping stale allocation cell",
					logger.String("donor", cell.DonorID),
					logger.String("cause", cell.CauseID),
				)
				continue
			}
			if applied <= 0 {
				res.Skipped++
				metrics.RecordCommitSkip()
				continue
			}

			d, _ := tx.Donor(cell.DonorID)
			c, _ := tx.Cause(cell.CauseID)

			event := model.AllocationEvent{
				Timestamp:       e.now(),
				DonorID:         cell.DonorID,
				CauseID:         cell.CauseID,
				Amount:          applied,
				Confidence:      confidence,
				Rationale:       rationale,
				CouncilReviewed: councilReviewed,
			}
			res.Events = append(res.Events, event)
			res.TotalAllocated += applied
			metrics.RecordAllocationExecuted(applied)

			notes = append(notes, notification{
				event: event,
				donor: model.AllocationExecuted{
					CauseID:         cell.CauseID,
					Amount:          applied,
					RemainingWallet: d.Wallet,
					CouncilReviewed: councilReviewed,
				},
				cause: model.FundingReceived{
					DonorID:       cell.DonorID,
					Amount:        applied,
					TotalReceived: c.TotalReceived,
					NeedRemaining: c.Unmet(),
				},
			})
		}

		tx.ResetCycles()
	})

	e.notify(ctx, notes)
	e.summarize(ctx, res, councilReviewed)
	e.audit(ctx, res, confidence, councilReviewed)
	return res
}

// notify whispers each side of every transfer. Trust denials are logged
// and counted but never abort the batch.
func (e *Executor) notify(ctx context.Context, notes []notification) {
	for _, n := range notes {
		if err := e.bus.Whisper(ctx, e.engineID, n.event.DonorID, model.TopicAllocationDone, n.donor); err != nil {
			e.log.Warn(ctx, "donor notification failed",
				logger.String("donor", n.event.DonorID),
				logger.Error(err),
			)
		}
		if err := e.bus.Whisper(ctx, e.engineID, n.event.CauseID, model.TopicFundingReceived, n.cause); err != nil {
			e.log.Warn(ctx, "cause notification failed",
				logger.String("cause", n.event.CauseID),
				logger.Error(err),
			)
		}
	}
}

func (e *Executor) summarize(ctx context.Context, res Result, councilReviewed bool) {
	donors := make(map[string]struct{})
	causes := make(map[string]struct{})
	for _, ev := range res.Events {
		donors[ev.DonorID] = struct{}{}
		causes[ev.CauseID] = struct{}{}
	}

	summary := model.AllocationSummary{
		TotalAllocated:  res.TotalAllocated,
		AllocationCount: len(res.Events),
		DonorCount:      len(donors),
		CauseCount:      len(causes),
		CouncilReviewed: councilReviewed,
		Timestamp:       e.now(),
	}
	if err := e.bus.Broadcast(ctx, e.engineID, model.TopicAllocationSummary, summary); err != nil {
		e.log.Warn(ctx, "summary broadcast failed", logger.Error(err))
	}
}

func (e *Executor) audit(ctx context.Context, res Result, confidence float64, councilReviewed bool) {
	e.auditLog.RecordEvents(res.Events)
	_, err := e.auditLog.Append(audit.KindAllocationBatch, map[string]any{
		"allocation_count": len(res.Events),
		"total_allocated":  res.TotalAllocated,
		"skipped":          res.Skipped,
		"confidence":       confidence,
		"council_reviewed": councilReviewed,
		"events":           res.Events,
	})
	if err != nil {
		e.log.Error(ctx, "audit append failed", logger.Error(err))
	}
}
