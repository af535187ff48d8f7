// Package api declares HTTP contracts and route registration helpers for
// the engine's read-only query surface.
package api

import (
	"encoding/json"
	"net/http"

	"github.com/xbard-C42/resource-council/internal/adapters/audit"
	service "github.com/xbard-C42/resource-council/internal/app"
)

// Dependencies bundles the engine operations the handlers need. An
// interface keeps the handler layer loosely coupled to the service.
type Dependencies interface {
	// Snapshot returns the dashboard view of the engine.
	Snapshot() service.DashboardSnapshot

	// AuditQuery runs a structured query against the audit trail.
	AuditQuery(kind audit.QueryKind, subject string) (audit.QueryResult, error)

	// AuditVerify re-checks every audit entry checksum.
	AuditVerify() bool

	// Stats reports coarse engine counters.
	Stats() map[string]any
}

// Server wires HTTP routes for the engine API.
type Server struct {
	healthHandler   *HealthHandler
	snapshotHandler *SnapshotHandler
	auditHandler    *AuditHandler
	statsHandler    *StatsHandler
}

// NewServer creates an API server with all handlers.
func NewServer(deps Dependencies) *Server {
	return &Server{
		healthHandler:   NewHealthHandler(),
		snapshotHandler: NewSnapshotHandler(deps),
		auditHandler:    NewAuditHandler(deps),
		statsHandler:    NewStatsHandler(deps),
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(mux *http.ServeMux) {
	mux.HandleFunc("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("/snapshot", MetricsMiddleware(s.snapshotHandler.HandleSnapshot, "snapshot"))
	mux.HandleFunc("/audit", MetricsMiddleware(s.auditHandler.HandleQuery, "audit"))
	mux.HandleFunc("/audit/verify", MetricsMiddleware(s.auditHandler.HandleVerify, "audit_verify"))
	mux.HandleFunc("/stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}
