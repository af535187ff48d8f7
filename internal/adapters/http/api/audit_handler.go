package api

import (
	"errors"
	"net/http"

	"github.com/xbard-C42/resource-council/internal/adapters/audit"
)

// AuditHandler handles audit trail queries.
type AuditHandler struct {
	deps Dependencies
}

// NewAuditHandler creates a new audit handler.
func NewAuditHandler(deps Dependencies) *AuditHandler {
	return &AuditHandler{deps: deps}
}

// HandleQuery handles GET /audit?kind=K&subject=S requests. Kind defaults
// to full_history; donor_activity and cause_funding require a subject.
func (h *AuditHandler) HandleQuery(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}

	kind := audit.QueryKind(r.URL.Query().Get("kind"))
	if kind == "" {
		kind = audit.QueryFullHistory
	}
	subject := r.URL.Query().Get("subject")

	res, err := h.deps.AuditQuery(kind, subject)
	if err != nil {
		if errors.Is(err, audit.ErrUnknownQueryKind) {
			writeError(w, http.StatusBadRequest, "bad_request", err)
			return
		}
		writeError(w, http.StatusInternalServerError, "internal_error", err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

type verifyResponse struct {
	Intact bool `json:"intact"`
}

// HandleVerify handles GET /audit/verify requests.
func (h *AuditHandler) HandleVerify(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	writeJSON(w, http.StatusOK, verifyResponse{Intact: h.deps.AuditVerify()})
}
