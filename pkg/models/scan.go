package models

import (
	"fmt"
	"time"

	"gorm.io/datatypes"
)

const (
	ScanStatusPending   = "pending"
	ScanStatusRunning   = "running"
	ScanStatusCompleted = "completed"
	ScanStatusFailed    = "failed"
)

// Scan is one execution of the scanner against a project's file set.
// Once completed it is the append-only unit of history reconciliation
// operates over; only status and error fields may change afterwards.
type Scan struct {
	ID          uint   `gorm:"primaryKey" json:"id"`
	ProjectID   uint   `gorm:"not null;index" json:"project_id"`
	ScanType    string `gorm:"size:50;not null" json:"scan_type"`
	Branch      string `gorm:"size:255" json:"branch,omitempty"`
	CommitSHA   string `gorm:"size:255" json:"commit_sha,omitempty"`
	TriggeredBy string `gorm:"size:255" json:"triggered_by,omitempty"`
	Status      string `gorm:"size:50;default:pending;index" json:"status"`

	TotalChecks   int `gorm:"default:0" json:"total_checks"`
	PassedChecks  int `gorm:"default:0" json:"passed_checks"`
	FailedChecks  int `gorm:"default:0" json:"failed_checks"`
	SkippedChecks int `gorm:"default:0" json:"skipped_checks"`

	Metadata     datatypes.JSON `json:"metadata,omitempty"`
	ErrorMessage string         `gorm:"type:text" json:"error_message,omitempty"`

	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	CreatedAt   time.Time  `gorm:"autoCreateTime" json:"created_at"`

	Vulnerabilities []Vulnerability `gorm:"foreignKey:ScanID;constraint:OnDelete:CASCADE" json:"-"`
}

func (s *Scan) Validate() error {
	if s.ProjectID == 0 {
		return fmt.Errorf("scan project_id is required")
	}
	if s.ScanType == "" {
		return fmt.Errorf("scan type is required")
	}
	switch s.Status {
	case "", ScanStatusPending, ScanStatusRunning, ScanStatusCompleted, ScanStatusFailed:
	default:
		return fmt.Errorf("invalid scan status: %s", s.Status)
	}
	return nil
}

func (s *Scan) IsTerminal() bool {
	return s.Status == ScanStatusCompleted || s.Status == ScanStatusFailed
}

// PassRate is passed_checks/total_checks for this scan. A scan with zero
// checks reports 0, never a division error.
func (s *Scan) PassRate() float64 {
	if s.TotalChecks <= 0 {
		return 0
	}
	return float64(s.PassedChecks) / float64(s.TotalChecks)
}

func (s *Scan) Duration() time.Duration {
	if s.StartedAt == nil || s.CompletedAt == nil {
		return 0
	}
	return s.CompletedAt.Sub(*s.StartedAt)
}
