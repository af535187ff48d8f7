// Command simulate drives a scripted donor and cause population through an
// in-process engine over the in-memory bus, with advisor agents answering
// council escalations. Useful for eyeballing allocation behaviour without
// standing up the HTTP surface.
package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"time"

	"github.com/xbard-C42/resource-council/internal/adapters/transport"
	app "github.com/xbard-C42/resource-council/internal/app"
	"github.com/xbard-C42/resource-council/internal/domain/model"
	"github.com/xbard-C42/resource-council/internal/domain/trust"
	"github.com/xbard-C42/resource-council/pkg/logger"
)

const (
	defaultCycles   = 5
	defaultDeadline = 2 * time.Second
	offerFraction   = 0.1
	settleTimeout   = 5 * time.Second
)

type donor struct {
	id          string
	wallet      float64
	preferences map[string]float64
}

type cause struct {
	id       string
	name     string
	need     float64
	priority float64
}

func main() {
	var (
		cycles   = flag.Int("cycles", defaultCycles, "Number of allocation cycles to run")
		seed     = flag.Int64("seed", time.Now().UnixNano(), "Random seed for drift")
		deadline = flag.Duration("deadline", defaultDeadline, "Council deadline")
		quorum   = flag.Int("quorum", 3, "Council quorum")
	)
	flag.Parse()

	if err := logger.Init(); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		return
	}
	_ = logger.SetLevelString("warn")

	ctx := context.Background()
	rng := rand.New(rand.NewSource(*seed))

	store := trust.NewStore()
	bus := transport.NewBus(transport.WithTrustGate(store, 0.4))
	defer bus.Close()

	svc := app.New(
		app.WithTransport(bus),
		app.WithTrustStore(store),
		app.WithCouncilQuorum(*quorum),
		app.WithCouncilDeadline(*deadline),
	)
	if err := svc.Start(ctx); err != nil {
		os.Stderr.WriteString("failed to start engine: " + err.Error() + "\n")
		return
	}
	defer svc.Stop()

	donors := []*donor{
		{id: "alice", wallet: 100, preferences: map[string]float64{"climate": 0.8, "journalism": 0.3}},
		{id: "bob", wallet: 50, preferences: map[string]float64{"climate": 0.4, "journalism": 0.7}},
	}
	causes := []*cause{
		{id: "climate", name: "Climate Justice Fund", need: 30, priority: 0.9},
		{id: "journalism", name: "Independent Journalism", need: 20, priority: 0.6},
	}

	registerParticipants(bus, donors, causes)
	registerAdvisors(ctx, bus, *quorum)

	for _, c := range causes {
		must(bus.Broadcast(ctx, c.id, model.TopicRegisterNeed, model.NeedRegistration{
			CauseID: c.id, Name: c.name, Need: c.need, Priority: c.priority,
		}))
	}

	fmt.Printf("running %d allocation cycles (seed %d)\n\n", *cycles, *seed)

	for cycle := 1; cycle <= *cycles; cycle++ {
		fmt.Printf("--- cycle %d ---\n", cycle)
		if cycle > 1 {
			drift(ctx, bus, rng, donors, causes)
		}

		before := svc.Snapshot().TotalAllocated
		for _, d := range donors {
			d.wallet = walletOf(svc, d.id, d.wallet)
			must(bus.Broadcast(ctx, d.id, model.TopicOfferCapacity, model.CapacityOffer{
				DonorID: d.id, Wallet: d.wallet, Fraction: offerFraction,
				Preferences: d.preferences,
			}))
		}

		settle(svc, before)
		report(svc, before)
		fmt.Println()
	}

	fmt.Println("--- final state ---")
	snap := svc.Snapshot()
	for _, d := range snap.Donors {
		fmt.Printf("donor %s: wallet %.2f, trust %d\n", d.ID, d.Wallet, d.Trust)
	}
	for _, c := range snap.Causes {
		fmt.Printf("cause %s: received %.2f of need %.2f\n", c.ID, c.TotalReceived, c.Need)
	}
	fmt.Printf("total allocated: %.2f across %d events, audit intact: %v\n",
		snap.TotalAllocated, len(snap.RecentEvents), svc.AuditVerify())
}

// registerParticipants puts donors and causes on the bus and wires their
// notification subscriptions.
func registerParticipants(bus *transport.Bus, donors []*donor, causes []*cause) {
	for _, d := range donors {
		id := d.id
		bus.Register(id)
		must(bus.Subscribe(id, model.TopicAllocationDone, func(_ context.Context, m transport.Message) {
			done := m.Payload.(model.AllocationExecuted)
			fmt.Printf("  %s -> %s: %.2f (wallet %.2f remaining)\n", id, done.CauseID, done.Amount, done.RemainingWallet)
		}))
	}
	for _, c := range causes {
		id := c.id
		bus.Register(id)
		must(bus.Subscribe(id, model.TopicFundingReceived, func(_ context.Context, m transport.Message) {
			recv := m.Payload.(model.FundingReceived)
			fmt.Printf("  %s funded %.2f by %s (%.2f still needed)\n", id, recv.Amount, recv.DonorID, recv.NeedRemaining)
		}))
	}
}

// registerAdvisors attaches council advisors that trim every proposed cell
// by an advisor-specific factor, so quorum synthesis has spread to blend.
func registerAdvisors(ctx context.Context, bus *transport.Bus, quorum int) {
	factors := []float64{0.8, 1.0, 1.2}
	for i := 0; i < quorum; i++ {
		id := fmt.Sprintf("advisor_%d", i+1)
		factor := factors[i%len(factors)]
		bus.Register(id, model.TopicCouncilContext)
		must(bus.Subscribe(id, model.TopicCouncilContext, func(_ context.Context, m transport.Message) {
			cctx, ok := m.Payload.(model.CouncilContext)
			if !ok {
				return
			}
			rec := make(model.Matrix)
			for _, cell := range cctx.Proposed.Cells() {
				rec.Set(cell.DonorID, cell.CauseID, cell.Amount*factor)
			}
			_ = bus.Broadcast(ctx, id, model.TopicCouncilInsight, model.CouncilInsight{
				AgentID:         id,
				CouncilID:       cctx.ID,
				Recommendations: rec,
				Confidence:      0.75,
				Rationale:       fmt.Sprintf("scale proposal by %.1f", factor),
			})
		}))
	}
}

// drift applies the occasional preference or need change between cycles.
func drift(ctx context.Context, bus *transport.Bus, rng *rand.Rand, donors []*donor, causes []*cause) {
	if rng.Float64() < 0.3 {
		d := donors[rng.Intn(len(donors))]
		for causeID := range d.preferences {
			w := 0.1 + rng.Float64()*0.9
			d.preferences[causeID] = w
			fmt.Printf("  %s updated preference for %s: %.2f\n", d.id, causeID, w)
			must(bus.Broadcast(ctx, d.id, model.TopicPreferenceUpdate, model.PreferenceUpdate{
				DonorID: d.id, Preferences: d.preferences,
			}))
			break
		}
	}
	if rng.Float64() < 0.4 {
		c := causes[rng.Intn(len(causes))]
		c.need = 10 + rng.Float64()*40
		c.priority = 0.3 + rng.Float64()*0.7
		fmt.Printf("  %s updated need: %.2f (priority %.2f)\n", c.name, c.need, c.priority)
		must(bus.Broadcast(ctx, c.id, model.TopicRegisterNeed, model.NeedRegistration{
			CauseID: c.id, Name: c.name, Need: c.need, Priority: c.priority,
		}))
	}
}

// settle waits for the engine to come back to rest after a burst of offers.
func settle(svc *app.Service, before float64) {
	deadline := time.Now().Add(settleTimeout)
	for time.Now().Before(deadline) {
		snap := svc.Snapshot()
		if snap.TotalAllocated > before && !snap.CouncilActive {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
}

func report(svc *app.Service, before float64) {
	snap := svc.Snapshot()
	fmt.Printf("  allocated this cycle: %.2f (running total %.2f)\n",
		snap.TotalAllocated-before, snap.TotalAllocated)
}

func walletOf(svc *app.Service, id string, fallback float64) float64 {
	for _, d := range svc.Snapshot().Donors {
		if d.ID == id {
			return d.Wallet
		}
	}
	return fallback
}

func must(err error) {
	if err != nil {
		os.Stderr.WriteString(err.Error() + "\n")
		os.Exit(1)
	}
}
