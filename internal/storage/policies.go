package storage

import (
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/iacguard/iacguard/pkg/models"
)

func (s *Store) UpsertPolicy(p *models.Policy) error {
	if err := p.Validate(); err != nil {
		return fmt.Errorf("invalid policy: %w", err)
	}
	err := s.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "check_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"name", "platform", "severity", "category", "description",
			"guideline", "guideline_url", "built_in", "file_path", "code", "updated_at",
		}),
	}).Create(p).Error
	if err != nil {
		return fmt.Errorf("failed to upsert policy %s: %w", p.CheckID, err)
	}
	return nil
}

func (s *Store) GetPolicy(checkID string) (*models.Policy, error) {
	var p models.Policy
	if err := s.db.Where("check_id = ?", checkID).First(&p).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to load policy %s: %w", checkID, err)
	}
	return &p, nil
}

func (s *Store) ListPolicies(platform string, builtIn *bool) ([]models.Policy, error) {
	q := s.db.Order("check_id asc")
	if platform != "" {
		q = q.Where("platform = ?", platform)
	}
	if builtIn != nil {
		q = q.Where("built_in = ?", *builtIn)
	}
	var policies []models.Policy
	if err := q.Find(&policies).Error; err != nil {
		return nil, fmt.Errorf("failed to list policies: %w", err)
	}
	return policies, nil
}

func (s *Store) UpdatePolicy(p *models.Policy) error {
	if p.BuiltIn {
		return fmt.Errorf("built-in policy %s is immutable", p.CheckID)
	}
	if err := p.Validate(); err != nil {
		return fmt.Errorf("invalid policy: %w", err)
	}
	if err := s.db.Save(p).Error; err != nil {
		return fmt.Errorf("failed to update policy: %w", err)
	}
	return nil
}

func (s *Store) DeletePolicy(checkID string) error {
	var p models.Policy
	if err := s.db.Where("check_id = ?", checkID).First(&p).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		return err
	}
	if p.BuiltIn {
		return fmt.Errorf("built-in policy %s cannot be deleted", checkID)
	}
	return s.db.Delete(&p).Error
}

// PolicyConfigs returns the effective override set for a project: global
// rows (project_id null) overlaid by project-specific rows, keyed by
// check id.
func (s *Store) PolicyConfigs(projectID uint) (map[string]*models.PolicyConfig, error) {
	var rows []models.PolicyConfig
	err := s.db.Where("project_id IS NULL OR project_id = ?", projectID).
		Order("project_id asc").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load policy configs: %w", err)
	}
	configs := make(map[string]*models.PolicyConfig, len(rows))
	for i := range rows {
		// project-specific rows sort after global ones and win.
		configs[rows[i].CheckID] = &rows[i]
	}
	return configs, nil
}

func (s *Store) SavePolicyConfig(c *models.PolicyConfig) error {
	if err := c.Validate(); err != nil {
		return fmt.Errorf("invalid policy config: %w", err)
	}
	if err := s.db.Save(c).Error; err != nil {
		return fmt.Errorf("failed to save policy config: %w", err)
	}
	return nil
}

func (s *Store) DeletePolicyConfig(id uint) error {
	res := s.db.Delete(&models.PolicyConfig{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
