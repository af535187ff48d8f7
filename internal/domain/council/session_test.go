package council_test

import (
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
	"github.com/xbard-C42/resource-council/internal/domain/council"
	"github.com/xbard-C42/resource-council/internal/domain/model"
)

func proposal() model.Matrix {
	m := make(model.Matrix)
	m.Set("alice", "climate", 30)
	m.Set("bob", "education", 10)
	return m
}

func insight(agent string, cells map[[2]string]float64) model.Insight {
	recs := make(model.Matrix)
	for k, v := range cells {
		recs.Set(k[0], k[1], v)
	}
	return model.Insight{AgentID: agent, Recommendations: recs, Confidence: 0.8}
}

func TestSessionLifecycle(t *testing.T) {
	Convey("Given a new session over a proposal", t, func() {
		s := council.NewSession("resource_allocation", proposal(), 0.66, nil, nil)

		Convey("Then the context carries the proposal and a deadline", func() {
			ctx := s.Context()
			So(ctx.ID, ShouldNotBeEmpty)
			So(ctx.Confidence, ShouldAlmostEqual, 0.66)
			So(ctx.Deadline.After(ctx.OpenedAt), ShouldBeTrue)
			v, ok := ctx.Proposed.Get("alice", "climate")
			So(ok, ShouldBeTrue)
			So(v, ShouldEqual, 30)
		})

		Convey("And mutating the broadcast context cannot touch the session", func() {
			ctx := s.Context()
			ctx.Proposed.Set("alice", "climate", 999)
			v, _ := s.Context().Proposed.Get("alice", "climate")
			So(v, ShouldEqual, 30)
		})

		Convey("When insights arrive", func() {
			a1, q1 := s.AddInsight(insight("advisor-1", map[[2]string]float64{{"alice", "climate"}: 24}))
			a2, q2 := s.AddInsight(insight("advisor-2", map[[2]string]float64{{"alice", "climate"}: 30}))

			Convey("Then quorum is pending until the third", func() {
				So(a1, ShouldBeTrue)
				So(q1, ShouldBeFalse)
				So(a2, ShouldBeTrue)
				So(q2, ShouldBeFalse)
				So(s.PendingInsights(), ShouldEqual, 1)

				a3, q3 := s.AddInsight(insight("advisor-3", map[[2]string]float64{{"alice", "climate"}: 36}))
				So(a3, ShouldBeTrue)
				So(q3, ShouldBeTrue)
				So(s.PendingInsights(), ShouldEqual, 0)
			})

			Convey("And a duplicate agent is ignored", func() {
				dup, _ := s.AddInsight(insight("advisor-1", map[[2]string]float64{{"alice", "climate"}: 5}))
				So(dup, ShouldBeFalse)
				So(len(s.Insights()), ShouldEqual, 2)
			})
		})

		Convey("When quorum has been reached", func() {
			for _, agent := range []string{"a", "b", "c"} {
				s.AddInsight(insight(agent, map[[2]string]float64{{"alice", "climate"}: 30}))
			}

			Convey("Then late insights are rejected", func() {
				accepted, reached := s.AddInsight(insight("late", nil))
				So(accepted, ShouldBeFalse)
				So(reached, ShouldBeTrue)
			})
		})
	})
}

func TestSynthesize(t *testing.T) {
	Convey("Given a session with three insights on one cell", t, func() {
		s := council.NewSession("resource_allocation", proposal(), 0.66, nil, nil)
		s.AddInsight(insight("a", map[[2]string]float64{{"alice", "climate"}: 24}))
		s.AddInsight(insight("b", map[[2]string]float64{{"alice", "climate"}: 30}))
		s.AddInsight(insight("c", map[[2]string]float64{{"alice", "climate"}: 36}))

		Convey("When synthesizing", func() {
			final := s.Synthesize()

			Convey("Then the blend is exactly 0.7*mean + 0.3*original", func() {
				v, _ := final.Get("alice", "climate")
				So(v, ShouldAlmostEqual, 0.7*((24.0+30+36)/3)+0.3*30)
			})

			Convey("And a cell every insight omitted stays at the original", func() {
				v, _ := final.Get("bob", "education")
				So(v, ShouldEqual, 10)
			})

			Convey("And no cells beyond the proposal are introduced", func() {
				So(len(final.Cells()), ShouldEqual, len(proposal().Cells()))
			})
		})
	})

	Convey("Given a custom blend weight and quorum", t, func() {
		s := council.NewSession("resource_allocation", proposal(), 0.5, nil, nil,
			council.WithQuorum(2),
			council.WithInsightWeight(0.5),
		)
		s.AddInsight(insight("a", map[[2]string]float64{{"alice", "climate"}: 10}))
		_, reached := s.AddInsight(insight("b", map[[2]string]float64{{"alice", "climate"}: 20}))

		Convey("Then quorum honors the option", func() {
			So(reached, ShouldBeTrue)
		})

		Convey("And the blend honors the weight", func() {
			v, _ := s.Synthesize().Get("alice", "climate")
			So(v, ShouldAlmostEqual, 0.5*15+0.5*30)
		})
	})

	Convey("Given a session with no insights at all", t, func() {
		s := council.NewSession("resource_allocation", proposal(), 0.4, nil, nil)

		Convey("Then synthesis returns the original proposal", func() {
			So(s.Synthesize().Equal(proposal()), ShouldBeTrue)
		})
	})

	Convey("Given insights that recommend cells outside the proposal", t, func() {
		s := council.NewSession("resource_allocation", proposal(), 0.4, nil, nil)
		s.AddInsight(insight("a", map[[2]string]float64{{"mallory", "slushfund"}: 1000}))

		Convey("Then the rogue cell never appears in the result", func() {
			_, ok := s.Synthesize().Get("mallory", "slushfund")
			So(ok, ShouldBeFalse)
		})
	})
}

func TestSessionDeadline(t *testing.T) {
	Convey("Given a session with a controllable clock", t, func() {
		now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
		s := council.NewSession("resource_allocation", proposal(), 0.4, nil, nil,
			council.WithClock(func() time.Time { return now }),
			council.WithDeadline(10*time.Second),
		)

		Convey("Then it is live before the deadline", func() {
			So(s.Expired(now.Add(5*time.Second)), ShouldBeFalse)
		})

		Convey("And expired after it", func() {
			So(s.Expired(now.Add(11*time.Second)), ShouldBeTrue)
		})

		Convey("And a closed session rejects further insights", func() {
			s.Close()
			accepted, _ := s.AddInsight(insight("a", nil))
			So(accepted, ShouldBeFalse)
		})
	})
}
