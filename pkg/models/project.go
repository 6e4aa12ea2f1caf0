package models

import (
	"fmt"
	"time"
)

const (
	ProjectStatusActive   = "active"
	ProjectStatusInactive = "inactive"
	ProjectStatusArchived = "archived"
)

type Project struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	Name          string    `gorm:"size:255;uniqueIndex;not null" json:"name"`
	Description   string    `gorm:"type:text" json:"description,omitempty"`
	RepositoryURL string    `gorm:"size:500" json:"repository_url,omitempty"`
	Framework     string    `gorm:"size:50;not null" json:"framework"`
	Status        string    `gorm:"size:50;default:active" json:"status"`
	CreatedAt     time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time `gorm:"autoUpdateTime" json:"updated_at"`

	Scans         []Scan         `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	PolicyConfigs []PolicyConfig `gorm:"constraint:OnDelete:CASCADE" json:"-"`
}

func (p *Project) Validate() error {
	if p.Name == "" {
		return fmt.Errorf("project name is required")
	}
	if p.Framework == "" {
		return fmt.Errorf("project framework is required")
	}
	switch p.Status {
	case "", ProjectStatusActive, ProjectStatusInactive, ProjectStatusArchived:
	default:
		return fmt.Errorf("invalid project status: %s", p.Status)
	}
	return nil
}
