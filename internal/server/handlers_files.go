package server

import (
	"net/http"
	"strings"
)

func (s *Server) handleListUploadFiles(w http.ResponseWriter, r *http.Request) {
	files, err := s.store.ListUploadFiles(r.PathValue("uploadID"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, files)
}

func (s *Server) handleFileVersionHistory(w http.ResponseWriter, r *http.Request) {
	filePath := r.URL.Query().Get("file_path")
	if filePath == "" {
		writeError(w, http.StatusBadRequest, "file_path query parameter is required")
		return
	}
	versions, err := s.store.FileVersionHistory(r.PathValue("uploadID"), filePath)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	// content is omitted from the listing; fetch a single version for it
	type versionView struct {
		VersionNumber int    `json:"version_number"`
		ContentHash   string `json:"content_hash"`
		ScanID        *uint  `json:"scan_id,omitempty"`
		ChangeSummary string `json:"change_summary,omitempty"`
		CreatedAt     string `json:"created_at"`
	}
	views := make([]versionView, 0, len(versions))
	for _, v := range versions {
		views = append(views, versionView{
			VersionNumber: v.VersionNumber,
			ContentHash:   v.ContentHash,
			ScanID:        v.ScanID,
			ChangeSummary: v.ChangeSummary,
			CreatedAt:     v.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
		})
	}
	writeJSON(w, http.StatusOK, views)
}

// handleFileVersionDiff compares two stored versions of a file line by line.
func (s *Server) handleFileVersionDiff(w http.ResponseWriter, r *http.Request) {
	uploadID := r.PathValue("uploadID")
	filePath := r.URL.Query().Get("file_path")
	if filePath == "" {
		writeError(w, http.StatusBadRequest, "file_path query parameter is required")
		return
	}
	fromN := queryInt(r, "from", 0)
	toN := queryInt(r, "to", 0)
	if fromN <= 0 || toN <= 0 {
		writeError(w, http.StatusBadRequest, "from and to version numbers are required")
		return
	}

	from, err := s.store.GetFileVersion(uploadID, filePath, fromN)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	to, err := s.store.GetFileVersion(uploadID, filePath, toN)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"file_path":    filePath,
		"from_version": from.VersionNumber,
		"to_version":   to.VersionNumber,
		"unchanged":    from.ContentHash == to.ContentHash,
		"diff":         diffLines(from.Content, to.Content),
	})
}

// diffLines produces a minimal line diff ("-" removed, "+" added, " " kept)
// via longest common subsequence.
func diffLines(before, after string) []string {
	a := strings.Split(before, "\n")
	b := strings.Split(after, "\n")

	lcs := make([][]int, len(a)+1)
	for i := range lcs {
		lcs[i] = make([]int, len(b)+1)
	}
	for i := len(a) - 1; i >= 0; i-- {
		for j := len(b) - 1; j >= 0; j-- {
			if a[i] == b[j] {
				lcs[i][j] = lcs[i+1][j+1] + 1
			} else if lcs[i+1][j] >= lcs[i][j+1] {
				lcs[i][j] = lcs[i+1][j]
			} else {
				lcs[i][j] = lcs[i][j+1]
			}
		}
	}

	var out []string
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		switch {
		case a[i] == b[j]:
			out = append(out, " "+a[i])
			i++
			j++
		case lcs[i+1][j] >= lcs[i][j+1]:
			out = append(out, "-"+a[i])
			i++
		default:
			out = append(out, "+"+b[j])
			j++
		}
	}
	for ; i < len(a); i++ {
		out = append(out, "-"+a[i])
	}
	for ; j < len(b); j++ {
		out = append(out, "+"+b[j])
	}
	return out
}
