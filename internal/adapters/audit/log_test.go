package audit_test

import (
	"errors"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
	"github.com/xbard-C42/resource-council/internal/adapters/audit"
	"github.com/xbard-C42/resource-council/internal/domain/model"
)

func someEvents() []model.AllocationEvent {
	ts := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	return []model.AllocationEvent{
		{Timestamp: ts, DonorID: "alice", CauseID: "climate", Amount: 30, Confidence: 0.66},
		{Timestamp: ts, DonorID: "bob", CauseID: "climate", Amount: 5, Confidence: 0.66},
		{Timestamp: ts, DonorID: "alice", CauseID: "journalism", Amount: 2, Confidence: 0.66},
	}
}

func TestAppendAndVerify(t *testing.T) {
	Convey("Given an empty audit log", t, func() {
		l := audit.NewLog()

		Convey("When appending entries", func() {
			e1, err1 := l.Append(audit.KindCouncilConvened, map[string]any{"council_id": "c-1"})
			e2, err2 := l.Append(audit.KindAllocationBatch, map[string]any{"count": 3})

			Convey("Then each entry carries a checksum of its payload", func() {
				So(err1, ShouldBeNil)
				So(err2, ShouldBeNil)
				So(e1.Checksum, ShouldNotEqual, 0)
				So(e1.Checksum, ShouldNotEqual, e2.Checksum)
				So(l.Len(), ShouldEqual, 2)
			})

			Convey("And the trail verifies intact", func() {
				So(l.Verify(), ShouldBeTrue)
			})

			Convey("And Entries returns copies in append order", func() {
				entries := l.Entries()
				So(entries[0].Kind, ShouldEqual, audit.KindCouncilConvened)
				So(entries[1].Kind, ShouldEqual, audit.KindAllocationBatch)
			})
		})

		Convey("When details cannot be serialized", func() {
			_, err := l.Append(audit.KindAllocationBatch, map[string]any{"bad": make(chan int)})

			Convey("Then the sentinel error surfaces", func() {
				So(errors.Is(err, audit.ErrSerializeDetails), ShouldBeTrue)
			})
		})
	})
}

func TestQuery(t *testing.T) {
	Convey("Given a log with recorded allocation history", t, func() {
		l := audit.NewLog()
		l.RecordEvents(someEvents())

		Convey("When querying full history", func() {
			res, err := l.Query(audit.QueryFullHistory, "")

			Convey("Then every event returns with a checksum", func() {
				So(err, ShouldBeNil)
				So(len(res.Events), ShouldEqual, 3)
				So(res.Checksum, ShouldNotEqual, 0)
			})
		})

		Convey("When querying donor activity", func() {
			res, err := l.Query(audit.QueryDonorActivity, "alice")

			Convey("Then only that donor's events return", func() {
				So(err, ShouldBeNil)
				So(len(res.Events), ShouldEqual, 2)
				for _, e := range res.Events {
					So(e.DonorID, ShouldEqual, "alice")
				}
			})
		})

		Convey("When querying cause funding", func() {
			res, err := l.Query(audit.QueryCauseFunding, "climate")

			Convey("Then only that cause's events return", func() {
				So(err, ShouldBeNil)
				So(len(res.Events), ShouldEqual, 2)
				for _, e := range res.Events {
					So(e.CauseID, ShouldEqual, "climate")
				}
			})
		})

		Convey("When identical queries repeat", func() {
			r1, _ := l.Query(audit.QueryDonorActivity, "alice")
			r2, _ := l.Query(audit.QueryDonorActivity, "alice")

			Convey("Then checksums agree", func() {
				So(r1.Checksum, ShouldEqual, r2.Checksum)
			})
		})

		Convey("When the query kind is unknown", func() {
			_, err := l.Query(audit.QueryKind("everything"), "")

			Convey("Then the sentinel error surfaces", func() {
				So(errors.Is(err, audit.ErrUnknownQueryKind), ShouldBeTrue)
			})
		})
	})
}
