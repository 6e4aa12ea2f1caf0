package models

import (
	"fmt"
	"time"
)

// FileVersion is an append-only snapshot of a file's content per scan,
// addressed by (upload_id, file_path, version_number). Created by the
// upload/edit pipeline, never mutated, pruned only by project deletion.
type FileVersion struct {
	ID        uint   `gorm:"primaryKey" json:"id"`
	UploadID  string `gorm:"size:100;not null;index:idx_filever_upload_path,priority:1" json:"upload_id"`
	ProjectID uint   `gorm:"not null;index" json:"project_id"`
	FilePath  string `gorm:"size:1000;not null;index:idx_filever_upload_path,priority:2" json:"file_path"`

	Content       string `gorm:"type:text;not null" json:"content"`
	ContentHash   string `gorm:"size:64;not null" json:"content_hash"`
	VersionNumber int    `gorm:"not null" json:"version_number"`

	ScanID        *uint  `gorm:"index" json:"scan_id,omitempty"`
	ChangeSummary string `gorm:"size:500" json:"change_summary,omitempty"`
	EditedBy      string `gorm:"size:100" json:"edited_by,omitempty"`

	CreatedAt time.Time `gorm:"autoCreateTime;index" json:"created_at"`
}

func (f *FileVersion) Validate() error {
	if f.UploadID == "" {
		return fmt.Errorf("file version upload_id is required")
	}
	if f.FilePath == "" {
		return fmt.Errorf("file version file_path is required")
	}
	if f.ContentHash == "" {
		return fmt.Errorf("file version content_hash is required")
	}
	if f.VersionNumber < 1 {
		return fmt.Errorf("file version number must be >= 1")
	}
	return nil
}
