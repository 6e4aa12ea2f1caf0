package server

import (
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/iacguard/iacguard/pkg/utils"
)

// handleCreateScan accepts a multipart upload of IaC files, snapshots them
// as file versions, and launches the scan pipeline. The response carries
// the pending scan; progress is polled via GET /scans/{id}.
func (s *Server) handleCreateScan(w http.ResponseWriter, r *http.Request) {
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

	r.Body = http.MaxBytesReader(w, r.Body, s.config.MaxUploadBytes)
	if err := r.ParseMultipartForm(s.config.MaxUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart upload: "+err.Error())
		return
	}
	files := r.MultipartForm.File["files"]
	if len(files) == 0 {
		writeError(w, http.StatusBadRequest, "no files uploaded")
		return
	}

	uploadID := uuid.NewString()
	uploadDir := filepath.Join(s.config.UploadDir, uploadID)
	if err := utils.EnsureDir(uploadDir); err != nil {
		writeDomainError(w, err)
		return
	}

	for _, header := range files {
		if err := saveUploadFile(header, uploadDir); err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("store %s: %v", header.Filename, err))
			return
		}
	}

	scan, err := s.pipeline.StartScan(r.Context(), project, uploadDir, "upload", r.FormValue("triggered_by"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if err := s.pipeline.CaptureUpload(project, &scan.ID, uploadID, uploadDir); err != nil {
		s.logger.Warnf("File snapshots for upload %s failed: %v", uploadID, err)
	}

	writeJSON(w, http.StatusAccepted, map[string]interface{}{
		"scan":      scan,
		"upload_id": uploadID,
	})
}

func saveUploadFile(header *multipart.FileHeader, dir string) error {
	// flatten traversal attempts; uploads keep their base name plus any
	// safe relative subpath
	cleaned := filepath.Clean(strings.ReplaceAll(header.Filename, "\\", "/"))
	if strings.HasPrefix(cleaned, "..") || filepath.IsAbs(cleaned) {
		cleaned = filepath.Base(cleaned)
	}
	dst := filepath.Join(dir, cleaned)
	if err := utils.EnsureDir(filepath.Dir(dst)); err != nil {
		return err
	}

	src, err := header.Open()
	if err != nil {
		return err
	}
	defer src.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()
	_, err = io.Copy(out, src)
	return err
}

func (s *Server) handleListScans(w http.ResponseWriter, r *http.Request) {
	projectID, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	scans, err := s.store.ListScans(projectID, queryInt(r, "limit", 50))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, scans)
}

func (s *Server) handleGetScan(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	scan, err := s.store.GetScan(id)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	payload := map[string]interface{}{"scan": scan}
	if active := s.pipeline.GetScanStatus(id); active != nil {
		payload["progress"] = map[string]interface{}{
			"status":   active.Status,
			"progress": active.Progress,
		}
	}
	writeJSON(w, http.StatusOK, payload)
}

func (s *Server) handleCancelScan(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.pipeline.CancelScan(id); err != nil {
		writeError(w, http.StatusConflict, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "cancelled"})
}

func (s *Server) handleActiveScans(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.pipeline.Stats())
}
