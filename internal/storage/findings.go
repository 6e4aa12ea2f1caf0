package storage

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/iacguard/iacguard/pkg/models"
)

type FindingFilter struct {
	ProjectID uint
	ScanID    uint
	Status    models.VulnStatus
	Severity  models.Severity
	CheckID   string
	Limit     int
	Offset    int
}

func (s *Store) GetFinding(id uint) (*models.Vulnerability, error) {
	var v models.Vulnerability
	if err := s.db.First(&v, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to load finding %d: %w", id, err)
	}
	return &v, nil
}

func (s *Store) ListFindings(filter FindingFilter) ([]models.Vulnerability, error) {
	q := s.db.Order("detected_at desc")
	if filter.ProjectID != 0 {
		q = q.Where("project_id = ?", filter.ProjectID)
	}
	if filter.ScanID != 0 {
		q = q.Where("scan_id = ?", filter.ScanID)
	}
	if filter.Status != "" {
		q = q.Where("status = ?", filter.Status)
	}
	if filter.Severity != "" {
		q = q.Where("severity = ?", filter.Severity)
	}
	if filter.CheckID != "" {
		q = q.Where("check_id = ?", filter.CheckID)
	}
	if filter.Limit > 0 {
		q = q.Limit(filter.Limit)
	}
	if filter.Offset > 0 {
		q = q.Offset(filter.Offset)
	}
	var findings []models.Vulnerability
	if err := q.Find(&findings).Error; err != nil {
		return nil, fmt.Errorf("failed to list findings: %w", err)
	}
	return findings, nil
}

// OpenFindings returns a project's prior open set (open and in_progress),
// keyed by content hash. Ignored findings are deliberately excluded: they
// are not tracked for resolution.
func OpenFindings(tx *gorm.DB, projectID uint) (map[string]*models.Vulnerability, error) {
	var rows []models.Vulnerability
	err := tx.Where("project_id = ? AND status IN ?", projectID,
		[]models.VulnStatus{models.VulnStatusOpen, models.VulnStatusInProgress}).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load open findings: %w", err)
	}
	byHash := make(map[string]*models.Vulnerability, len(rows))
	for i := range rows {
		byHash[rows[i].ContentHash] = &rows[i]
	}
	return byHash, nil
}

// ResolvedFindings returns the most recent resolved row per content hash
// for the given hashes; the reconciliation "new" path consults this to
// revive regressions instead of inserting duplicates.
func ResolvedFindings(tx *gorm.DB, projectID uint, hashes []string) (map[string]*models.Vulnerability, error) {
	if len(hashes) == 0 {
		return map[string]*models.Vulnerability{}, nil
	}
	var rows []models.Vulnerability
	err := tx.Where("project_id = ? AND status = ? AND content_hash IN ?",
		projectID, models.VulnStatusResolved, hashes).
		Order("resolved_at asc").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load resolved findings: %w", err)
	}
	byHash := make(map[string]*models.Vulnerability, len(rows))
	for i := range rows {
		// ascending order: the last row per hash is the most recent.
		byHash[rows[i].ContentHash] = &rows[i]
	}
	return byHash, nil
}

// IgnoredFindings returns ignored rows for the given hashes. A re-detected
// ignored finding keeps its existing row; reconciliation must never insert a
// second open row for a hash the user has suppressed.
func IgnoredFindings(tx *gorm.DB, projectID uint, hashes []string) (map[string]*models.Vulnerability, error) {
	if len(hashes) == 0 {
		return map[string]*models.Vulnerability{}, nil
	}
	var rows []models.Vulnerability
	err := tx.Where("project_id = ? AND status = ? AND content_hash IN ?",
		projectID, models.VulnStatusIgnored, hashes).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load ignored findings: %w", err)
	}
	byHash := make(map[string]*models.Vulnerability, len(rows))
	for i := range rows {
		byHash[rows[i].ContentHash] = &rows[i]
	}
	return byHash, nil
}

func (s *Store) CountOpenBySeverity(projectID uint) (map[models.Severity]int, error) {
	type row struct {
		Severity models.Severity
		N        int
	}
	q := s.db.Model(&models.Vulnerability{}).
		Select("severity, count(*) as n").
		Where("status IN ?", []models.VulnStatus{models.VulnStatusOpen, models.VulnStatusInProgress}).
		Group("severity")
	if projectID != 0 {
		q = q.Where("project_id = ?", projectID)
	}
	var rows []row
	if err := q.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to count findings by severity: %w", err)
	}
	counts := make(map[models.Severity]int, len(rows))
	for _, r := range rows {
		counts[r.Severity] = r.N
	}
	return counts, nil
}

func (s *Store) CountOpenByProject() (map[uint]int, error) {
	type row struct {
		ProjectID uint
		N         int
	}
	var rows []row
	err := s.db.Model(&models.Vulnerability{}).
		Select("project_id, count(*) as n").
		Where("status IN ?", []models.VulnStatus{models.VulnStatusOpen, models.VulnStatusInProgress}).
		Group("project_id").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to count open findings per project: %w", err)
	}
	counts := make(map[uint]int, len(rows))
	for _, r := range rows {
		counts[r.ProjectID] = r.N
	}
	return counts, nil
}

func (s *Store) SaveFinding(v *models.Vulnerability) error {
	if err := v.Validate(); err != nil {
		return fmt.Errorf("invalid finding: %w", err)
	}
	if err := s.db.Save(v).Error; err != nil {
		return fmt.Errorf("failed to save finding: %w", err)
	}
	return nil
}
