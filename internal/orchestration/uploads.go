package orchestration

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/iacguard/iacguard/pkg/models"
	"github.com/iacguard/iacguard/pkg/utils"
)

// CaptureUpload snapshots every text file of an upload as an immutable
// FileVersion, keyed by (upload_id, relative path). Binary or oversized
// files are skipped; they cannot be diffed or AI-edited anyway.
func (p *Pipeline) CaptureUpload(project *models.Project, scanID *uint, uploadID, root string) error {
	files, err := utils.WalkFiles(root)
	if err != nil {
		return fmt.Errorf("walk upload %s: %w", root, err)
	}

	captured := 0
	for _, path := range files {
		info, err := os.Stat(path)
		if err != nil || info.Size() > p.config.SnapshotMaxBytes {
			continue
		}
		content, err := os.ReadFile(path)
		if err != nil {
			p.logger.Warnf("Skipping unreadable upload file %s: %v", path, err)
			continue
		}
		if !utf8.Valid(content) {
			continue
		}

		rel := relativeUploadPath(root, path)
		fv := &models.FileVersion{
			UploadID:    uploadID,
			ProjectID:   project.ID,
			FilePath:    rel,
			Content:     string(content),
			ContentHash: utils.SHA256HashBytes(content),
			ScanID:      scanID,
		}
		if err := p.store.AppendFileVersion(fv); err != nil {
			p.logger.Warnf("Failed to snapshot %s: %v", rel, err)
			continue
		}
		captured++
	}

	p.logger.Debugf("Captured %d file snapshot(s) for upload %s", captured, uploadID)
	return nil
}

func relativeUploadPath(root, path string) string {
	rel, err := filepath.Rel(root, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		rel = filepath.Base(path)
	}
	return utils.NormalizeRelPath(rel)
}
