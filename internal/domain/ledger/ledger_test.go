package ledger_test

import (
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
	"github.com/xbard-C42/resource-council/internal/domain/ledger"
	"github.com/xbard-C42/resource-council/internal/domain/model"
)

func offer(donorID string, wallet, fraction float64, prefs map[string]float64) model.CapacityOffer {
	return model.CapacityOffer{DonorID: donorID, Wallet: wallet, Fraction: fraction, Preferences: prefs}
}

func need(causeID, name string, amount, priority float64) model.NeedRegistration {
	return model.NeedRegistration{CauseID: causeID, Name: name, Need: amount, Priority: priority}
}

func TestRecordCapacityOffer(t *testing.T) {
	Convey("Given an empty ledger", t, func() {
		l := ledger.New()

		Convey("When a donor offers capacity", func() {
			d := l.RecordCapacityOffer(offer("alice", 150, 0.2, map[string]float64{"climate": 0.8}))

			Convey("Then the profile is created with budget = wallet * fraction", func() {
				So(d.ID, ShouldEqual, "alice")
				So(d.Wallet, ShouldEqual, 150)
				So(d.Budget, ShouldAlmostEqual, 30)
				So(d.Preferences["climate"], ShouldEqual, 0.8)
				So(l.DonorCount(), ShouldEqual, 1)
			})

			Convey("And the budget never exceeds the wallet", func() {
				d2 := l.RecordCapacityOffer(offer("alice", 150, 5.0, nil))
				So(d2.Budget, ShouldBeLessThanOrEqualTo, d2.Wallet)
				So(d2.Budget, ShouldEqual, 150)
			})
		})

		Convey("When the fraction is non-positive", func() {
			d := l.RecordCapacityOffer(offer("bob", 100, -0.5, nil))

			Convey("Then the donor is parked with a zero budget", func() {
				So(d.Budget, ShouldEqual, 0)
			})
		})

		Convey("When preference weights are out of range", func() {
			d := l.RecordCapacityOffer(offer("carol", 10, 0.5, map[string]float64{"x": 1.7, "y": -0.3}))

			Convey("Then they are clamped to [0,1]", func() {
				So(d.Preferences["x"], ShouldEqual, 1)
				So(d.Preferences["y"], ShouldEqual, 0)
			})
		})
	})
}

func TestRecordNeedRegistration(t *testing.T) {
	Convey("Given an empty ledger", t, func() {
		l := ledger.New()

		Convey("When a cause registers a need", func() {
			c := l.RecordNeedRegistration(need("climate", "Climate Justice Fund", 45, 0.9))

			Convey("Then the profile is created", func() {
				So(c.Name, ShouldEqual, "Climate Justice Fund")
				So(c.Need, ShouldEqual, 45)
				So(c.Priority, ShouldEqual, 0.9)
			})
		})

		Convey("When priority and need are out of range", func() {
			c := l.RecordNeedRegistration(need("x", "X", -10, 1.8))

			Convey("Then both are clamped", func() {
				So(c.Need, ShouldEqual, 0)
				So(c.Priority, ShouldEqual, 1)
			})
		})

		Convey("When a registration repeats", func() {
			l.RecordNeedRegistration(need("x", "X", 10, 0.5))
			c := l.RecordNeedRegistration(need("x", "", 20, 0.6))

			Convey("Then it upserts and keeps the prior name", func() {
				So(c.Name, ShouldEqual, "X")
				So(c.Need, ShouldEqual, 20)
				So(l.CauseCount(), ShouldEqual, 1)
			})
		})
	})
}

func TestUpdatePreferences(t *testing.T) {
	Convey("Given a ledger with one donor", t, func() {
		l := ledger.New()
		l.RecordCapacityOffer(offer("alice", 100, 0.1, map[string]float64{"a": 0.5}))

		Convey("When updating a known donor", func() {
			ok := l.UpdatePreferences("alice", map[string]float64{"a": 0.9, "b": 0.2})
			d, _ := l.Donor("alice")

			Convey("Then weights merge and clamp", func() {
				So(ok, ShouldBeTrue)
				So(d.Preferences["a"], ShouldEqual, 0.9)
				So(d.Preferences["b"], ShouldEqual, 0.2)
			})
		})

		Convey("When updating an unknown donor", func() {
			So(l.UpdatePreferences("nobody", map[string]float64{"a": 1}), ShouldBeFalse)
		})
	})
}

func TestProposedAllocation(t *testing.T) {
	Convey("Given alice with budget 30 and climate needing 45 at priority 0.9", t, func() {
		l := ledger.New()
		l.RecordCapacityOffer(offer("alice", 150, 0.2, map[string]float64{"climate": 0.8}))
		l.RecordNeedRegistration(need("climate", "Climate Justice Fund", 45, 0.9))

		Convey("When computing the proposal", func() {
			m := l.ProposedAllocation()

			Convey("Then the full budget goes to climate", func() {
				amount, ok := m.Get("alice", "climate")
				So(ok, ShouldBeTrue)
				So(amount, ShouldAlmostEqual, 30)
			})

			Convey("And confidence is 30/45", func() {
				So(l.Confidence(m), ShouldAlmostEqual, 30.0/45.0)
			})

			Convey("And computing again without state change yields the same matrix", func() {
				So(l.ProposedAllocation().Equal(m), ShouldBeTrue)
			})
		})
	})

	Convey("Given the same donor but a need of only 20", t, func() {
		l := ledger.New()
		l.RecordCapacityOffer(offer("alice", 150, 0.2, map[string]float64{"climate": 0.8}))
		l.RecordNeedRegistration(need("climate", "Climate Justice Fund", 20, 0.9))

		Convey("When computing the proposal", func() {
			m := l.ProposedAllocation()

			Convey("Then the allocation is capped at the need", func() {
				amount, _ := m.Get("alice", "climate")
				So(amount, ShouldAlmostEqual, 20)
			})

			Convey("And confidence is exactly 1.0", func() {
				So(l.Confidence(m), ShouldEqual, 1.0)
			})
		})
	})

	Convey("Given two donors with split preferences over two causes", t, func() {
		l := ledger.New()
		l.RecordCapacityOffer(offer("alice", 100, 0.1, map[string]float64{"climate": 0.8, "journalism": 0.3}))
		l.RecordCapacityOffer(offer("bob", 50, 0.1, map[string]float64{"climate": 0.4, "journalism": 0.7}))
		l.RecordNeedRegistration(need("climate", "Climate Justice Fund", 30, 0.9))
		l.RecordNeedRegistration(need("journalism", "Independent Journalism", 20, 0.6))

		Convey("When computing the proposal", func() {
			m := l.ProposedAllocation()

			Convey("Then every donor stays within budget", func() {
				for donorID, row := range m {
					var sum float64
					for _, v := range row {
						sum += v
					}
					d, ok := l.Donor(donorID)
					So(ok, ShouldBeTrue)
					So(sum, ShouldBeLessThanOrEqualTo, d.Budget+1e-9)
				}
			})

			Convey("And each donor splits proportionally to preference*priority*min(need,budget)", func() {
				// alice: budget 10; climate score 0.8*0.9*10=7.2, journalism 0.3*0.6*10=1.8
				a, _ := m.Get("alice", "climate")
				b, _ := m.Get("alice", "journalism")
				So(a, ShouldAlmostEqual, 10*7.2/9.0)
				So(b, ShouldAlmostEqual, 10*1.8/9.0)
			})
		})
	})

	Convey("Given donors with no relevant causes or zero scores", t, func() {
		l := ledger.New()
		l.RecordCapacityOffer(offer("dora", 100, 0.5, map[string]float64{"missing": 0.9}))
		l.RecordCapacityOffer(offer("emma", 100, 0.5, map[string]float64{"idle": 0.9}))
		l.RecordNeedRegistration(need("idle", "Idle Cause", 50, 0))

		Convey("Then neither contributes this cycle", func() {
			m := l.ProposedAllocation()
			So(m.Total(), ShouldEqual, 0)
		})
	})
}

func TestConfidenceBounds(t *testing.T) {
	Convey("Given a ledger with no causes", t, func() {
		l := ledger.New()

		Convey("Then confidence of any matrix is 1.0", func() {
			So(l.Confidence(make(model.Matrix)), ShouldEqual, 1.0)
		})
	})

	Convey("Given an over-subscribed cause", t, func() {
		l := ledger.New()
		l.RecordNeedRegistration(need("x", "X", 10, 1))
		m := make(model.Matrix)
		m.Set("a", "x", 50)
		m.Set("b", "x", 50)

		Convey("Then confidence is still capped at 1.0", func() {
			c := l.Confidence(m)
			So(c, ShouldBeLessThanOrEqualTo, 1.0)
			So(c, ShouldBeGreaterThanOrEqualTo, 0)
		})
	})
}

func TestConcentrationRisk(t *testing.T) {
	Convey("Given two donors each proposing at least 30% to the same cause", t, func() {
		l := ledger.New()
		m := make(model.Matrix)
		m.Set("alice", "climate", 40)
		m.Set("bob", "climate", 40)
		m.Set("alice", "journalism", 20)

		Convey("Then concentration risk is flagged", func() {
			So(l.ConcentrationRisk(m), ShouldBeTrue)
		})
	})

	Convey("Given an evenly spread proposal", t, func() {
		l := ledger.New()
		m := make(model.Matrix)
		for _, cell := range []struct{ d, c string }{
			{"a", "x"}, {"a", "y"}, {"b", "x"}, {"b", "y"}, {"c", "x"},
		} {
			m.Set(cell.d, cell.c, 10)
		}

		Convey("Then no risk is flagged", func() {
			So(l.ConcentrationRisk(m), ShouldBeFalse)
		})
	})

	Convey("Given a proposal from a single donor", t, func() {
		l := ledger.New()
		m := make(model.Matrix)
		m.Set("alice", "climate", 20)

		Convey("Then the dominance rule does not apply", func() {
			So(l.ConcentrationRisk(m), ShouldBeFalse)
		})
	})

	Convey("Given an empty proposal", t, func() {
		l := ledger.New()

		Convey("Then there is no risk", func() {
			So(l.ConcentrationRisk(make(model.Matrix)), ShouldBeFalse)
		})
	})
}

func TestTransact(t *testing.T) {
	Convey("Given a funded ledger", t, func() {
		l := ledger.New()
		l.RecordCapacityOffer(offer("alice", 150, 0.2, map[string]float64{"climate": 0.8}))
		l.RecordNeedRegistration(need("climate", "Climate Justice Fund", 45, 0.9))

		Convey("When transferring within the caps", func() {
			var applied float64
			var ok bool
			l.Transact(func(tx *ledger.Tx) {
				applied, ok = tx.Transfer("alice", "climate", 30)
			})

			Convey("Then balances move on both sides", func() {
				So(ok, ShouldBeTrue)
				So(applied, ShouldAlmostEqual, 30)
				d, _ := l.Donor("alice")
				c, _ := l.Cause("climate")
				So(d.Wallet, ShouldAlmostEqual, 120)
				So(d.Budget, ShouldAlmostEqual, 0)
				So(c.ReceivedCycle, ShouldAlmostEqual, 30)
				So(c.TotalReceived, ShouldAlmostEqual, 30)
			})
		})

		Convey("When transferring more than the unmet need", func() {
			l.RecordNeedRegistration(need("small", "Small", 5, 1))
			var applied float64
			l.Transact(func(tx *ledger.Tx) {
				applied, _ = tx.Transfer("alice", "small", 30)
			})

			Convey("Then the amount is re-capped at the need", func() {
				So(applied, ShouldAlmostEqual, 5)
				c, _ := l.Cause("small")
				So(c.ReceivedCycle, ShouldBeLessThanOrEqualTo, c.Need)
			})
		})

		Convey("When a side no longer exists", func() {
			var ok bool
			l.Transact(func(tx *ledger.Tx) {
				_, ok = tx.Transfer("ghost", "climate", 10)
			})

			Convey("Then the transfer reports the missing entity", func() {
				So(ok, ShouldBeFalse)
			})
		})

		Convey("When cycles reset", func() {
			l.Transact(func(tx *ledger.Tx) {
				_, _ = tx.Transfer("alice", "climate", 10)
				tx.ResetCycles()
			})

			Convey("Then received-this-cycle is zero and need untouched", func() {
				c, _ := l.Cause("climate")
				So(c.ReceivedCycle, ShouldEqual, 0)
				So(c.Need, ShouldEqual, 45)
				So(c.TotalReceived, ShouldAlmostEqual, 10)
			})
		})
	})
}

func TestSnapshotIsolation(t *testing.T) {
	Convey("Given a populated ledger", t, func() {
		l := ledger.New()
		l.RecordCapacityOffer(offer("alice", 100, 0.1, map[string]float64{"x": 0.4}))
		l.RecordNeedRegistration(need("x", "X", 10, 0.5))

		Convey("When mutating a snapshot", func() {
			donors, causes := l.Snapshot()
			donors[0].Preferences["x"] = 0
			donors[0].Wallet = 0
			causes[0].Need = 999

			Convey("Then the ledger is unaffected", func() {
				d, _ := l.Donor("alice")
				c, _ := l.Cause("x")
				So(d.Preferences["x"], ShouldEqual, 0.4)
				So(d.Wallet, ShouldEqual, 100)
				So(c.Need, ShouldEqual, 10)
			})
		})
	})
}

func TestTrustDynamics(t *testing.T) {
	Convey("Given a ledger with a controllable clock", t, func() {
		now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
		clock := func() time.Time { return now }
		l := ledger.New(ledger.WithClock(clock))

		d := l.RecordCapacityOffer(offer("alice", 100, 0.1, nil))
		initial := d.Trust

		Convey("When the donor re-engages", func() {
			d = l.RecordCapacityOffer(offer("alice", 100, 0.1, nil))

			Convey("Then trust grows, capped at the maximum", func() {
				So(d.Trust, ShouldBeGreaterThan, initial)
				for i := 0; i < 100; i++ {
					d = l.RecordCapacityOffer(offer("alice", 100, 0.1, nil))
				}
				So(d.Trust, ShouldEqual, model.TrustMax)
			})
		})

		Convey("When the donor goes idle", func() {
			trustBefore := d.Trust
			now = now.Add(48 * time.Hour)
			l.ApplyTrustDecay(24 * time.Hour)

			Convey("Then trust decays", func() {
				after, _ := l.Donor("alice")
				So(after.Trust, ShouldBeLessThan, trustBefore)
			})
		})
	})
}
