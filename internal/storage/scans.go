package storage

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/iacguard/iacguard/pkg/models"
)

func (s *Store) CreateScan(scan *models.Scan) error {
	if err := scan.Validate(); err != nil {
		return fmt.Errorf("invalid scan: %w", err)
	}
	if scan.Status == "" {
		scan.Status = models.ScanStatusPending
	}
	if err := s.db.Create(scan).Error; err != nil {
		return fmt.Errorf("failed to create scan: %w", err)
	}
	return nil
}

func (s *Store) GetScan(id uint) (*models.Scan, error) {
	var scan models.Scan
	if err := s.db.First(&scan, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to load scan %d: %w", id, err)
	}
	return &scan, nil
}

func (s *Store) ListScans(projectID uint, limit int) ([]models.Scan, error) {
	q := s.db.Order("created_at desc")
	if projectID != 0 {
		q = q.Where("project_id = ?", projectID)
	}
	if limit > 0 {
		q = q.Limit(limit)
	}
	var scans []models.Scan
	if err := q.Find(&scans).Error; err != nil {
		return nil, fmt.Errorf("failed to list scans: %w", err)
	}
	return scans, nil
}

// ListCompletedScans returns completed scans for a project in ascending
// time order, the shape the pass-rate trend series needs.
func (s *Store) ListCompletedScans(projectID uint, since time.Time) ([]models.Scan, error) {
	q := s.db.Where("status = ?", models.ScanStatusCompleted).Order("created_at asc")
	if projectID != 0 {
		q = q.Where("project_id = ?", projectID)
	}
	if !since.IsZero() {
		q = q.Where("created_at >= ?", since)
	}
	var scans []models.Scan
	if err := q.Find(&scans).Error; err != nil {
		return nil, fmt.Errorf("failed to list completed scans: %w", err)
	}
	return scans, nil
}

func (s *Store) MarkScanRunning(id uint) error {
	now := time.Now()
	return s.updateScan(id, map[string]interface{}{
		"status":     models.ScanStatusRunning,
		"started_at": &now,
	})
}

func (s *Store) MarkScanCompleted(id uint, agg *models.RunAggregate, metadata []byte) error {
	now := time.Now()
	updates := map[string]interface{}{
		"status":         models.ScanStatusCompleted,
		"completed_at":   &now,
		"total_checks":   agg.Total(),
		"passed_checks":  agg.Passed,
		"failed_checks":  agg.Failed,
		"skipped_checks": agg.Skipped,
	}
	if len(metadata) > 0 {
		updates["metadata"] = metadata
	}
	return s.updateScan(id, updates)
}

// MarkScanFailed records the failure reason; a failed scan is never
// reconciled, so the prior open set stays authoritative.
func (s *Store) MarkScanFailed(id uint, reason string) error {
	now := time.Now()
	return s.updateScan(id, map[string]interface{}{
		"status":        models.ScanStatusFailed,
		"completed_at":  &now,
		"error_message": reason,
	})
}

// RecordScanError attaches an error message to a scan without touching its
// status. Used when post-completion processing fails: the scanner run itself
// succeeded (status stays completed), but the failure must still be visible
// on the scan row. Scanner failures go through MarkScanFailed instead.
func (s *Store) RecordScanError(id uint, reason string) error {
	return s.updateScan(id, map[string]interface{}{
		"error_message": reason,
	})
}

func (s *Store) updateScan(id uint, updates map[string]interface{}) error {
	res := s.db.Model(&models.Scan{}).Where("id = ?", id).Updates(updates)
	if res.Error != nil {
		return fmt.Errorf("failed to update scan %d: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
