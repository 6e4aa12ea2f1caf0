package server

import (
	"net/http"
	"time"

	"github.com/iacguard/iacguard/pkg/models"
	"github.com/iacguard/iacguard/pkg/utils"
)

// handleSuggestFix asks the AI provider for a remediation of one finding,
// using the latest stored snapshot of the affected file as context.
func (s *Server) handleSuggestFix(w http.ResponseWriter, r *http.Request) {
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

	var payload struct {
		UploadID    string `json:"upload_id"`
		FileContent string `json:"file_content"`
	}
	if err := decodeJSON(r, &payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid payload: "+err.Error())
		return
	}

	content := payload.FileContent
	if content == "" && payload.UploadID != "" {
		versions, err := s.store.FileVersionHistory(payload.UploadID, finding.FilePath)
		if err == nil && len(versions) > 0 {
			content = versions[len(versions)-1].Content
		}
	}
	if content == "" {
		writeError(w, http.StatusBadRequest, "file content unavailable; supply file_content or upload_id")
		return
	}

	suggestion, err := s.aiService.SuggestFix(r.Context(), finding, content)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, suggestion)
}

// handleAIEdit applies a free-form instruction to a file and, when an
// upload is referenced, records the result as a new file version.
func (s *Server) handleAIEdit(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		UploadID    string `json:"upload_id"`
		ProjectID   uint   `json:"project_id"`
		FilePath    string `json:"file_path"`
		FileContent string `json:"file_content"`
		Instruction string `json:"instruction"`
	}
	if err := decodeJSON(r, &payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid payload: "+err.Error())
		return
	}

	content := payload.FileContent
	if content == "" && payload.UploadID != "" && payload.FilePath != "" {
		versions, err := s.store.FileVersionHistory(payload.UploadID, payload.FilePath)
		if err == nil && len(versions) > 0 {
			content = versions[len(versions)-1].Content
		}
	}
	if content == "" {
		writeError(w, http.StatusBadRequest, "file content unavailable; supply file_content or upload_id + file_path")
		return
	}

	result, err := s.aiService.EditFile(r.Context(), content, payload.Instruction)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	if payload.UploadID != "" && payload.FilePath != "" && payload.ProjectID != 0 && result.EditedCode != content {
		fv := &models.FileVersion{
			UploadID:      payload.UploadID,
			ProjectID:     payload.ProjectID,
			FilePath:      utils.NormalizeRelPath(payload.FilePath),
			Content:       result.EditedCode,
			ContentHash:   utils.SHA256Hash(result.EditedCode),
			ChangeSummary: utils.TruncateString("ai edit: "+payload.Instruction, 500),
			EditedBy:      "ai",
		}
		if err := s.store.AppendFileVersion(fv); err != nil {
			s.logger.Warnf("Failed to snapshot AI edit of %s: %v", payload.FilePath, err)
		}
	}

	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleCreateToken(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Name string `json:"name"`
		TTL  string `json:"ttl"`
	}
	if err := decodeJSON(r, &payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid payload: "+err.Error())
		return
	}
	if payload.Name == "" {
		writeError(w, http.StatusBadRequest, "token name is required")
		return
	}
	var ttl time.Duration
	if payload.TTL != "" {
		parsed, err := time.ParseDuration(payload.TTL)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid ttl: "+err.Error())
			return
		}
		ttl = parsed
	}

	plaintext, token, err := s.store.CreateAPIToken(payload.Name, ttl)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	// the plaintext token is shown exactly once
	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"token":    plaintext,
		"metadata": token,
	})
}

func (s *Server) handleListTokens(w http.ResponseWriter, r *http.Request) {
	tokens, err := s.store.ListAPITokens()
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tokens)
}

func (s *Server) handleRevokeToken(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.store.RevokeAPIToken(id); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusNoContent, nil)
}
