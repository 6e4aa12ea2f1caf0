package server

import (
	"net/http"
	"strconv"

	"github.com/iacguard/iacguard/pkg/models"
)

func (s *Server) handleListPolicies(w http.ResponseWriter, r *http.Request) {
	var builtIn *bool
	if raw := r.URL.Query().Get("built_in"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid built_in filter")
			return
		}
		builtIn = &v
	}
	policies, err := s.store.ListPolicies(r.URL.Query().Get("platform"), builtIn)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, policies)
}

func (s *Server) handleCreatePolicy(w http.ResponseWriter, r *http.Request) {
	var policy models.Policy
	if err := decodeJSON(r, &policy); err != nil {
		writeError(w, http.StatusBadRequest, "invalid policy payload: "+err.Error())
		return
	}
	policy.ID = 0
	// policies created over the API are custom by definition
	policy.BuiltIn = false
	if err := s.store.UpsertPolicy(&policy); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, policy)
}

func (s *Server) handleGetPolicy(w http.ResponseWriter, r *http.Request) {
	policy, err := s.store.GetPolicy(r.PathValue("checkID"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, policy)
}

func (s *Server) handleUpdatePolicy(w http.ResponseWriter, r *http.Request) {
	existing, err := s.store.GetPolicy(r.PathValue("checkID"))
	if err != nil {
		writeDomainError(w, err)
		return
	}

	var payload models.Policy
	if err := decodeJSON(r, &payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid policy payload: "+err.Error())
		return
	}
	payload.ID = existing.ID
	payload.CheckID = existing.CheckID
	payload.BuiltIn = existing.BuiltIn

	if err := s.store.UpdatePolicy(&payload); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, payload)
}

func (s *Server) handleDeletePolicy(w http.ResponseWriter, r *http.Request) {
	if err := s.store.DeletePolicy(r.PathValue("checkID")); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusNoContent, nil)
}

func (s *Server) handleSavePolicyConfig(w http.ResponseWriter, r *http.Request) {
	var config models.PolicyConfig
	if err := decodeJSON(r, &config); err != nil {
		writeError(w, http.StatusBadRequest, "invalid policy config payload: "+err.Error())
		return
	}
	if err := s.store.SavePolicyConfig(&config); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, config)
}

func (s *Server) handleDeletePolicyConfig(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.store.DeletePolicyConfig(id); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusNoContent, nil)
}
