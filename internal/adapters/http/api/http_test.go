package api_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/xbard-C42/resource-council/internal/adapters/audit"
	"github.com/xbard-C42/resource-council/internal/adapters/http/api"
	service "github.com/xbard-C42/resource-council/internal/app"
	"github.com/xbard-C42/resource-council/internal/domain/model"
)

// mockEngine fakes the engine query surface.
type mockEngine struct {
	snapshot service.DashboardSnapshot
	queries  []string
}

func (m *mockEngine) Snapshot() service.DashboardSnapshot {
	return m.snapshot
}

func (m *mockEngine) AuditQuery(kind audit.QueryKind, subject string) (audit.QueryResult, error) {
	m.queries = append(m.queries, string(kind)+":"+subject)
	switch kind {
	case audit.QueryFullHistory, audit.QueryDonorActivity, audit.QueryCauseFunding:
		return audit.QueryResult{
			Kind:    kind,
			Subject: subject,
			Events: []model.AllocationEvent{
				{DonorID: "alice", CauseID: "climate", Amount: 30, Confidence: 0.8},
			},
		}, nil
	default:
		return audit.QueryResult{}, audit.ErrUnknownQueryKind
	}
}

func (m *mockEngine) AuditVerify() bool { return true }

func (m *mockEngine) Stats() map[string]any {
	return map[string]any{"donor_count": 2, "cause_count": 1}
}

func newTestMux(engine *mockEngine) *http.ServeMux {
	mux := http.NewServeMux()
	api.NewServer(engine).Register(mux)
	return mux
}

func TestSnapshotEndpoint(t *testing.T) {
	Convey("Given a registered API server", t, func() {
		engine := &mockEngine{
			snapshot: service.DashboardSnapshot{
				State:          service.StateIdle,
				TotalAllocated: 42.5,
				CouncilActive:  true,
				CouncilID:      "c-1",
			},
		}
		mux := newTestMux(engine)

		Convey("GET /snapshot returns the dashboard view", func() {
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/snapshot", nil))

			So(rec.Code, ShouldEqual, http.StatusOK)
			var snap service.DashboardSnapshot
			So(json.Unmarshal(rec.Body.Bytes(), &snap), ShouldBeNil)
			So(snap.TotalAllocated, ShouldAlmostEqual, 42.5, 1e-9)
			So(snap.CouncilActive, ShouldBeTrue)
			So(snap.CouncilID, ShouldEqual, "c-1")
		})

		Convey("POST /snapshot is rejected", func() {
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/snapshot", nil))
			So(rec.Code, ShouldEqual, http.StatusNotFound)
		})
	})
}

func TestAuditEndpoint(t *testing.T) {
	Convey("Given a registered API server", t, func() {
		engine := &mockEngine{}
		mux := newTestMux(engine)

		Convey("GET /audit defaults to full history", func() {
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/audit", nil))

			So(rec.Code, ShouldEqual, http.StatusOK)
			So(engine.queries, ShouldResemble, []string{"full_history:"})

			var res audit.QueryResult
			So(json.Unmarshal(rec.Body.Bytes(), &res), ShouldBeNil)
			So(res.Events, ShouldHaveLength, 1)
			So(res.Events[0].DonorID, ShouldEqual, "alice")
		})

		Convey("GET /audit with a donor filter passes the subject through", func() {
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/audit?kind=donor_activity&subject=alice", nil))

			So(rec.Code, ShouldEqual, http.StatusOK)
			So(engine.queries, ShouldResemble, []string{"donor_activity:alice"})
		})

		Convey("GET /audit with an unknown kind is a client error", func() {
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/audit?kind=bogus", nil))

			So(rec.Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("GET /audit/verify reports trail integrity", func() {
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/audit/verify", nil))

			So(rec.Code, ShouldEqual, http.StatusOK)
			So(rec.Body.String(), ShouldContainSubstring, `"intact":true`)
		})
	})
}

func TestStatsEndpoint(t *testing.T) {
	Convey("Given a registered API server", t, func() {
		mux := newTestMux(&mockEngine{})

		Convey("GET /stats returns engine counters", func() {
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/stats", nil))

			So(rec.Code, ShouldEqual, http.StatusOK)
			var stats map[string]any
			So(json.Unmarshal(rec.Body.Bytes(), &stats), ShouldBeNil)
			So(stats["donor_count"], ShouldEqual, 2.0)
		})
	})
}

func TestHealthEndpoint(t *testing.T) {
	Convey("Given a registered API server", t, func() {
		mux := newTestMux(&mockEngine{})

		Convey("GET /healthz serves the metrics registry", func() {
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
			So(rec.Code, ShouldEqual, http.StatusOK)
		})
	})
}
