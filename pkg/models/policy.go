package models

import (
	"fmt"
	"time"
)

// Policy is a check definition, either a scanner built-in or a user-supplied
// custom check. Built-in policies are immutable; custom policies carry their
// source code and file path and may be edited.
type Policy struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	CheckID      string    `gorm:"size:100;uniqueIndex;not null" json:"check_id"`
	Name         string    `gorm:"size:500;not null" json:"name"`
	Platform     string    `gorm:"size:50;not null;index:idx_policy_platform_severity,priority:1" json:"platform"`
	Severity     Severity  `gorm:"size:20;not null;index:idx_policy_platform_severity,priority:2" json:"severity"`
	Category     string    `gorm:"size:100;index" json:"category,omitempty"`
	Description  string    `gorm:"type:text" json:"description,omitempty"`
	Guideline    string    `gorm:"type:text" json:"guideline,omitempty"`
	GuidelineURL string    `gorm:"size:500" json:"guideline_url,omitempty"`
	BuiltIn      bool      `gorm:"default:true;index" json:"built_in"`
	FilePath     string    `gorm:"size:1000" json:"file_path,omitempty"`
	Code         string    `gorm:"type:text" json:"code,omitempty"`
	CreatedAt    time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (p *Policy) Validate() error {
	if p.CheckID == "" {
		return fmt.Errorf("policy check_id is required")
	}
	if p.Name == "" {
		return fmt.Errorf("policy name is required")
	}
	if !p.Severity.Valid() {
		return fmt.Errorf("invalid severity: %s", p.Severity)
	}
	return nil
}

// PolicyConfig overrides a policy's behavior for one project, or globally
// when ProjectID is nil. Consulted by the normalizer before a finding is
// materialized and by notification threshold evaluation.
type PolicyConfig struct {
	ID               uint      `gorm:"primaryKey" json:"id"`
	ProjectID        *uint     `gorm:"index" json:"project_id,omitempty"`
	CheckID          string    `gorm:"size:100;not null;index" json:"check_id"`
	Enabled          bool      `gorm:"default:true" json:"enabled"`
	SeverityOverride *Severity `gorm:"size:20" json:"severity_override,omitempty"`
	CustomMessage    string    `gorm:"type:text" json:"custom_message,omitempty"`
	CreatedAt        time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (c *PolicyConfig) Validate() error {
	if c.CheckID == "" {
		return fmt.Errorf("policy config check_id is required")
	}
	if c.SeverityOverride != nil && !c.SeverityOverride.Valid() {
		return fmt.Errorf("invalid severity override: %s", *c.SeverityOverride)
	}
	return nil
}
