package server

import (
	"net/http"

	"github.com/iacguard/iacguard/pkg/models"
)

func (s *Server) handleGetNotificationSettings(w http.ResponseWriter, r *http.Request) {
	projectID, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if _, err := s.store.GetProject(projectID); err != nil {
		writeDomainError(w, err)
		return
	}
	settings, err := s.store.NotificationSettingsFor(projectID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, settings)
}

func (s *Server) handlePutNotificationSettings(w http.ResponseWriter, r *http.Request) {
	projectID, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	current, err := s.store.NotificationSettingsFor(projectID)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	var payload models.NotificationSettings
	if err := decodeJSON(r, &payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid settings payload: "+err.Error())
		return
	}
	// identity fields are server-owned
	payload.ID = current.ID
	payload.ProjectID = projectID
	payload.CreatedAt = current.CreatedAt

	if err := s.store.SaveNotificationSettings(&payload); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, payload)
}

// handleTestNotification sends a test message so delivery settings can be
// verified without waiting for a scan.
func (s *Server) handleTestNotification(w http.ResponseWriter, r *http.Request) {
	projectID, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	project, err := s.store.GetProject(projectID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if err := s.notifier.SendTest(project); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "sent"})
}

func (s *Server) handleNotificationHistory(w http.ResponseWriter, r *http.Request) {
	projectID, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	history, err := s.store.ListNotificationHistory(projectID, queryInt(r, "limit", 50))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, history)
}
