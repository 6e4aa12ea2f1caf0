package server

import (
	"net/http"

	"github.com/iacguard/iacguard/internal/storage"
	"github.com/iacguard/iacguard/pkg/models"
)

func (s *Server) handleListFindings(w http.ResponseWriter, r *http.Request) {
	filter := storage.FindingFilter{
		ProjectID: queryUint(r, "project_id"),
		ScanID:    queryUint(r, "scan_id"),
		Status:    models.VulnStatus(r.URL.Query().Get("status")),
		Severity:  models.Severity(r.URL.Query().Get("severity")),
		CheckID:   r.URL.Query().Get("check_id"),
		Limit:     queryInt(r, "limit", 100),
		Offset:    queryInt(r, "offset", 0),
	}
	if filter.Status != "" && !filter.Status.Valid() {
		writeError(w, http.StatusBadRequest, "invalid status filter")
		return
	}
	if filter.Severity != "" && !filter.Severity.Valid() {
		writeError(w, http.StatusBadRequest, "invalid severity filter")
		return
	}

	findings, err := s.store.ListFindings(filter)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, findings)
}

func (s *Server) handleGetFinding(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	finding, err := s.store.GetFinding(id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, finding)
}

// handlePatchFindingStatus applies a manual lifecycle transition. Illegal
// transitions come back as 409, never as a silent no-op.
func (s *Server) handlePatchFindingStatus(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var payload struct {
		Status models.VulnStatus `json:"status"`
	}
	if err := decodeJSON(r, &payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid payload: "+err.Error())
		return
	}

	finding, err := s.engine.UpdateStatus(id, payload.Status)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, finding)
}
