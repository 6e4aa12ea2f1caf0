package storage

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/iacguard/iacguard/pkg/models"
)

var ErrNotFound = errors.New("record not found")

func (s *Store) CreateProject(p *models.Project) error {
	if err := p.Validate(); err != nil {
		return fmt.Errorf("invalid project: %w", err)
	}
	if p.Status == "" {
		p.Status = models.ProjectStatusActive
	}
	if err := s.db.Create(p).Error; err != nil {
		return fmt.Errorf("failed to create project: %w", err)
	}
	return nil
}

func (s *Store) GetProject(id uint) (*models.Project, error) {
	var p models.Project
	if err := s.db.First(&p, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to load project %d: %w", id, err)
	}
	return &p, nil
}

func (s *Store) GetProjectByName(name string) (*models.Project, error) {
	var p models.Project
	if err := s.db.Where("name = ?", name).First(&p).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to load project %q: %w", name, err)
	}
	return &p, nil
}

func (s *Store) ListProjects() ([]models.Project, error) {
	var projects []models.Project
	if err := s.db.Order("name asc").Find(&projects).Error; err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}
	return projects, nil
}

func (s *Store) UpdateProject(p *models.Project) error {
	if err := p.Validate(); err != nil {
		return fmt.Errorf("invalid project: %w", err)
	}
	if err := s.db.Save(p).Error; err != nil {
		return fmt.Errorf("failed to update project: %w", err)
	}
	return nil
}

// DeleteProject removes the project and cascades to its scans, findings,
// policy configs, notification settings/history and file versions.
func (s *Store) DeleteProject(id uint) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		var scanIDs []uint
		if err := tx.Model(&models.Scan{}).Where("project_id = ?", id).Pluck("id", &scanIDs).Error; err != nil {
			return err
		}
		if len(scanIDs) > 0 {
			if err := tx.Where("scan_id IN ?", scanIDs).Delete(&models.Vulnerability{}).Error; err != nil {
				return err
			}
		}
		for _, m := range []interface{}{
			&models.Scan{}, &models.PolicyConfig{}, &models.NotificationSettings{},
			&models.NotificationHistory{}, &models.FileVersion{},
		} {
			if err := tx.Where("project_id = ?", id).Delete(m).Error; err != nil {
				return err
			}
		}
		res := tx.Delete(&models.Project{}, id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return nil
	})
}
