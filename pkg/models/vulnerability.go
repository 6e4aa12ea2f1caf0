package models

import (
	"fmt"
	"time"
)

// VulnStatus is the lifecycle state of a single finding.
type VulnStatus string

const (
	VulnStatusOpen       VulnStatus = "open"
	VulnStatusInProgress VulnStatus = "in_progress"
	VulnStatusResolved   VulnStatus = "resolved"
	VulnStatusIgnored    VulnStatus = "ignored"
)

func (s VulnStatus) Valid() bool {
	switch s {
	case VulnStatusOpen, VulnStatusInProgress, VulnStatusResolved, VulnStatusIgnored:
		return true
	}
	return false
}

// Vulnerability is one detected policy violation. Identity across scans is
// the ContentHash; at most one open row per (project, hash) may exist at a
// time, while resolved rows with the same hash remain as audit history.
type Vulnerability struct {
	ID        uint `gorm:"primaryKey" json:"id"`
	ScanID    uint `gorm:"not null;index" json:"scan_id"`
	ProjectID uint `gorm:"not null;index:idx_vuln_project_hash_status,priority:1" json:"project_id"`

	CheckID      string     `gorm:"size:100;not null;index" json:"check_id"`
	CheckName    string     `gorm:"size:500" json:"check_name"`
	Severity     Severity   `gorm:"size:20;not null;index" json:"severity"`
	Status       VulnStatus `gorm:"size:20;default:open;index:idx_vuln_project_hash_status,priority:3" json:"status"`
	ResourceType string     `gorm:"size:255" json:"resource_type,omitempty"`
	ResourceName string     `gorm:"size:500" json:"resource_name,omitempty"`
	FilePath     string     `gorm:"size:1000" json:"file_path"`
	LineStart    int        `json:"line_start"`
	LineEnd      int        `json:"line_end"`
	Description  string     `gorm:"type:text" json:"description,omitempty"`
	Remediation  string     `gorm:"type:text" json:"remediation,omitempty"`
	GuidelineURL string     `gorm:"size:500" json:"guideline_url,omitempty"`

	// ContentHash is the stable fingerprint of "the same issue" across
	// scans: xxh3-128 over (check_id, normalized file path, line, resource).
	ContentHash string `gorm:"size:32;not null;index:idx_vuln_project_hash_status,priority:2" json:"content_hash"`

	DetectedAt       time.Time  `json:"detected_at"`
	LastSeenAt       time.Time  `json:"last_seen_at"`
	ResolvedAt       *time.Time `json:"resolved_at,omitempty"`
	ResolutionScanID *uint      `json:"resolution_scan_id,omitempty"`
}

func (v *Vulnerability) Validate() error {
	if v.CheckID == "" {
		return fmt.Errorf("vulnerability check_id is required")
	}
	if v.FilePath == "" {
		return fmt.Errorf("vulnerability file_path is required")
	}
	if !v.Severity.Valid() {
		return fmt.Errorf("invalid severity: %s", v.Severity)
	}
	if v.Status != "" && !v.Status.Valid() {
		return fmt.Errorf("invalid status: %s", v.Status)
	}
	return nil
}

// IsOpen reports whether the finding is part of a project's prior open set
// for reconciliation purposes. Ignored findings are not tracked for
// resolution and are excluded here.
func (v *Vulnerability) IsOpen() bool {
	return v.Status == VulnStatusOpen || v.Status == VulnStatusInProgress
}
