package storage

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/iacguard/iacguard/pkg/models"
)

// AppendFileVersion stores a new immutable snapshot, assigning the next
// version number for (upload_id, file_path). Identical content to the
// latest version is skipped to avoid no-op versions.
func (s *Store) AppendFileVersion(fv *models.FileVersion) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		var latest models.FileVersion
		err := tx.Where("upload_id = ? AND file_path = ?", fv.UploadID, fv.FilePath).
			Order("version_number desc").
			First(&latest).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			fv.VersionNumber = 1
		case err != nil:
			return fmt.Errorf("failed to find latest file version: %w", err)
		case latest.ContentHash == fv.ContentHash:
			s.logger.Debugf("File %s unchanged since v%d, skipping snapshot", fv.FilePath, latest.VersionNumber)
			return nil
		default:
			fv.VersionNumber = latest.VersionNumber + 1
		}

		if err := fv.Validate(); err != nil {
			return fmt.Errorf("invalid file version: %w", err)
		}
		if err := tx.Create(fv).Error; err != nil {
			return fmt.Errorf("failed to append file version: %w", err)
		}
		return nil
	})
}

func (s *Store) FileVersionHistory(uploadID, filePath string) ([]models.FileVersion, error) {
	var versions []models.FileVersion
	err := s.db.Where("upload_id = ? AND file_path = ?", uploadID, filePath).
		Order("version_number asc").
		Find(&versions).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load file version history: %w", err)
	}
	return versions, nil
}

func (s *Store) GetFileVersion(uploadID, filePath string, version int) (*models.FileVersion, error) {
	var fv models.FileVersion
	err := s.db.Where("upload_id = ? AND file_path = ? AND version_number = ?",
		uploadID, filePath, version).First(&fv).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to load file version: %w", err)
	}
	return &fv, nil
}

func (s *Store) ListUploadFiles(uploadID string) ([]string, error) {
	var paths []string
	err := s.db.Model(&models.FileVersion{}).
		Where("upload_id = ?", uploadID).
		Distinct("file_path").
		Order("file_path asc").
		Pluck("file_path", &paths).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list upload files: %w", err)
	}
	return paths, nil
}
