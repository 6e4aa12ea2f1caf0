package models

import (
	"fmt"
	"time"

	"gorm.io/datatypes"
)

const (
	NotificationTypeCritical = "critical"
	NotificationTypeSummary  = "summary"
	NotificationTypeWeekly   = "weekly"
	NotificationTypeFailed   = "failed"
)

const (
	NotificationStatusSent   = "sent"
	NotificationStatusFailed = "failed"
	NotificationStatusQueued = "queued"
)

const (
	SummarySendAlways       = "always"
	SummarySendHasChanges   = "has_changes"
	SummarySendCriticalHigh = "has_critical_high"
)

// NotificationSettings holds a project's thresholds and recipients,
// read by the trigger evaluator after each reconciliation.
type NotificationSettings struct {
	ID        uint `gorm:"primaryKey" json:"id"`
	ProjectID uint `gorm:"not null;uniqueIndex" json:"project_id"`

	CriticalRecipients datatypes.JSON `json:"critical_recipients,omitempty"`
	SummaryRecipients  datatypes.JSON `json:"summary_recipients,omitempty"`
	WeeklyRecipients   datatypes.JSON `json:"weekly_recipients,omitempty"`

	CriticalImmediateEnabled bool `gorm:"default:true" json:"critical_immediate_enabled"`
	ScanSummaryEnabled       bool `gorm:"default:true" json:"scan_summary_enabled"`
	WeeklySummaryEnabled     bool `gorm:"default:true" json:"weekly_summary_enabled"`
	ScanFailedEnabled        bool `gorm:"default:true" json:"scan_failed_enabled"`

	// Thresholds fire on count >= threshold; an explicit 0 disables that
	// trigger entirely rather than firing on every scan.
	CriticalThreshold int `gorm:"default:1" json:"critical_threshold"`
	HighThreshold     int `gorm:"default:5" json:"high_threshold"`
	FixedThreshold    int `gorm:"default:1" json:"fixed_threshold"`

	SummarySendWhen string `gorm:"size:50;default:has_changes" json:"summary_send_when"`

	WeeklyDay  string `gorm:"size:20;default:monday" json:"weekly_day"`
	WeeklyTime string `gorm:"size:10;default:09:00" json:"weekly_time"`

	QuietHoursEnabled bool   `gorm:"default:false" json:"quiet_hours_enabled"`
	QuietHoursStart   string `gorm:"size:10;default:22:00" json:"quiet_hours_start"`
	QuietHoursEnd     string `gorm:"size:10;default:08:00" json:"quiet_hours_end"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (s *NotificationSettings) Validate() error {
	if s.ProjectID == 0 {
		return fmt.Errorf("notification settings project_id is required")
	}
	switch s.SummarySendWhen {
	case "", SummarySendAlways, SummarySendHasChanges, SummarySendCriticalHigh:
	default:
		return fmt.Errorf("invalid summary_send_when: %s", s.SummarySendWhen)
	}
	return nil
}

// NotificationHistory is the append-only audit log of firing decisions,
// written exactly once per (scan, type) with the counts that triggered it.
type NotificationHistory struct {
	ID        uint  `gorm:"primaryKey" json:"id"`
	ProjectID uint  `gorm:"not null;index" json:"project_id"`
	ScanID    *uint `gorm:"index" json:"scan_id,omitempty"`

	NotificationType string         `gorm:"size:50;not null" json:"notification_type"`
	Subject          string         `gorm:"size:500;not null" json:"subject"`
	Recipients       datatypes.JSON `json:"recipients,omitempty"`
	Status           string         `gorm:"size:50;default:sent" json:"status"`
	ErrorMessage     string         `gorm:"size:1000" json:"error_message,omitempty"`

	CriticalCount int `gorm:"default:0" json:"critical_count"`
	HighCount     int `gorm:"default:0" json:"high_count"`
	NewCount      int `gorm:"default:0" json:"new_count"`
	FixedCount    int `gorm:"default:0" json:"fixed_count"`

	SentAt time.Time `gorm:"autoCreateTime;index" json:"sent_at"`
}
