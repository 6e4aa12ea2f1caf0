package storage

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/iacguard/iacguard/pkg/models"
)

// NotificationSettingsFor returns the project's settings, creating the
// default row on first access so evaluation always has something to read.
func (s *Store) NotificationSettingsFor(projectID uint) (*models.NotificationSettings, error) {
	var settings models.NotificationSettings
	err := s.db.Where("project_id = ?", projectID).First(&settings).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		settings = models.NotificationSettings{
			ProjectID:                projectID,
			CriticalImmediateEnabled: true,
			ScanSummaryEnabled:       true,
			WeeklySummaryEnabled:     true,
			ScanFailedEnabled:        true,
			CriticalThreshold:        1,
			HighThreshold:            5,
			FixedThreshold:           1,
			SummarySendWhen:          models.SummarySendHasChanges,
			WeeklyDay:                "monday",
			WeeklyTime:               "09:00",
			QuietHoursStart:          "22:00",
			QuietHoursEnd:            "08:00",
		}
		if err := s.db.Create(&settings).Error; err != nil {
			return nil, fmt.Errorf("failed to create default notification settings: %w", err)
		}
		return &settings, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load notification settings: %w", err)
	}
	return &settings, nil
}

func (s *Store) SaveNotificationSettings(settings *models.NotificationSettings) error {
	if err := settings.Validate(); err != nil {
		return fmt.Errorf("invalid notification settings: %w", err)
	}
	if err := s.db.Save(settings).Error; err != nil {
		return fmt.Errorf("failed to save notification settings: %w", err)
	}
	return nil
}

// RecordNotification appends to the audit log, at most once per
// (scan, type). A duplicate record for the same scan and type is dropped,
// which makes pipeline retries safe.
func (s *Store) RecordNotification(h *models.NotificationHistory) error {
	if h.ScanID != nil {
		var n int64
		err := s.db.Model(&models.NotificationHistory{}).
			Where("scan_id = ? AND notification_type = ?", *h.ScanID, h.NotificationType).
			Count(&n).Error
		if err != nil {
			return fmt.Errorf("failed to check notification history: %w", err)
		}
		if n > 0 {
			s.logger.Debugf("Notification %s for scan %d already recorded, skipping", h.NotificationType, *h.ScanID)
			return nil
		}
	}
	if err := s.db.Create(h).Error; err != nil {
		return fmt.Errorf("failed to record notification: %w", err)
	}
	return nil
}

func (s *Store) ListNotificationHistory(projectID uint, limit int) ([]models.NotificationHistory, error) {
	q := s.db.Order("sent_at desc")
	if projectID != 0 {
		q = q.Where("project_id = ?", projectID)
	}
	if limit > 0 {
		q = q.Limit(limit)
	}
	var history []models.NotificationHistory
	if err := q.Find(&history).Error; err != nil {
		return nil, fmt.Errorf("failed to list notification history: %w", err)
	}
	return history, nil
}
