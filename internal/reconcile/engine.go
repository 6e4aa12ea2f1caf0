package reconcile

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/iacguard/iacguard/internal/storage"
	"github.com/iacguard/iacguard/pkg/models"
)

// ErrScanFailed marks a run whose scanner invocation failed: reconciliation
// is skipped entirely and the prior open set stays authoritative. A crashed
// scan must never read as "everything fixed".
var ErrScanFailed = errors.New("scan failed, reconciliation skipped")

// Result is the outcome of one reconciliation: the three disjoint
// partitions plus revived regressions, consumed by the rollup aggregator
// and the notification evaluator.
type Result struct {
	ProjectID     uint                    `json:"project_id"`
	ScanID        uint                    `json:"scan_id"`
	New           int                     `json:"new"`
	StillOpen     int                     `json:"still_open"`
	Fixed         int                     `json:"fixed"`
	Reopened      int                     `json:"reopened"`
	NewBySeverity map[models.Severity]int `json:"new_by_severity"`
}

func (r *Result) HasChanges() bool {
	return r.New > 0 || r.Fixed > 0 || r.Reopened > 0
}

// Engine computes the delta between a new run's normalized drafts and the
// project's current open set, and applies the resulting mutations in one
// transaction under a per-project lock.
type Engine struct {
	store  *storage.Store
	locks  *ProjectLocks
	logger *logrus.Logger
}

func NewEngine(store *storage.Store, locks *ProjectLocks, logger *logrus.Logger) *Engine {
	if logger == nil {
		logger = logrus.New()
	}
	if locks == nil {
		locks = NewProjectLocks()
	}
	return &Engine{store: store, locks: locks, logger: logger}
}

// Reconcile partitions the drafts against the prior open set and persists
// the delta. The open set is re-read inside the transaction, never cached,
// so replaying the same scan converges instead of double-counting.
func (e *Engine) Reconcile(ctx context.Context, scan *models.Scan, drafts []models.Vulnerability) (*Result, error) {
	if scan.Status == models.ScanStatusFailed {
		return nil, ErrScanFailed
	}

	release, err := e.locks.Acquire(ctx, scan.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("acquire project lock: %w", err)
	}
	defer release()

	now := time.Now()
	result := &Result{
		ProjectID:     scan.ProjectID,
		ScanID:        scan.ID,
		NewBySeverity: make(map[models.Severity]int),
	}

	err = e.store.Transaction(func(tx *gorm.DB) error {
		openSet, err := storage.OpenFindings(tx, scan.ProjectID)
		if err != nil {
			return err
		}

		var candidateHashes []string
		for i := range drafts {
			if _, ok := openSet[drafts[i].ContentHash]; !ok {
				candidateHashes = append(candidateHashes, drafts[i].ContentHash)
			}
		}
		resolvedSet, err := storage.ResolvedFindings(tx, scan.ProjectID, candidateHashes)
		if err != nil {
			return err
		}
		ignoredSet, err := storage.IgnoredFindings(tx, scan.ProjectID, candidateHashes)
		if err != nil {
			return err
		}

		seen := make(map[string]bool, len(drafts))
		for i := range drafts {
			draft := &drafts[i]
			hash := draft.ContentHash
			if seen[hash] {
				continue
			}
			seen[hash] = true

			if existing, ok := openSet[hash]; ok {
				// still open: the row keeps its status and any manual
				// annotations; only the most-recent detector moves.
				updates := map[string]interface{}{
					"scan_id":      scan.ID,
					"last_seen_at": now,
				}
				if err := tx.Model(&models.Vulnerability{}).Where("id = ?", existing.ID).Updates(updates).Error; err != nil {
					return fmt.Errorf("update still-open finding %d: %w", existing.ID, err)
				}
				result.StillOpen++
				continue
			}

			if prior, ok := ignoredSet[hash]; ok {
				// the user suppressed this hash: keep the ignored row
				// current instead of inserting a duplicate open row; a
				// later un-ignore yields exactly one open row per hash.
				updates := map[string]interface{}{
					"scan_id":      scan.ID,
					"last_seen_at": now,
				}
				if err := tx.Model(&models.Vulnerability{}).Where("id = ?", prior.ID).Updates(updates).Error; err != nil {
					return fmt.Errorf("update ignored finding %d: %w", prior.ID, err)
				}
				continue
			}

			if prior, ok := resolvedSet[hash]; ok {
				// regression: revive the resolved row in place rather
				// than inserting a duplicate open row for the same hash.
				updates := map[string]interface{}{
					"status":             models.VulnStatusOpen,
					"scan_id":            scan.ID,
					"severity":           draft.Severity,
					"description":        draft.Description,
					"remediation":        draft.Remediation,
					"line_start":         draft.LineStart,
					"line_end":           draft.LineEnd,
					"detected_at":        now,
					"last_seen_at":       now,
					"resolved_at":        nil,
					"resolution_scan_id": nil,
				}
				if err := tx.Model(&models.Vulnerability{}).Where("id = ?", prior.ID).Updates(updates).Error; err != nil {
					return fmt.Errorf("revive finding %d: %w", prior.ID, err)
				}
				result.Reopened++
				continue
			}

			row := *draft
			row.ScanID = scan.ID
			row.Status = models.VulnStatusOpen
			row.DetectedAt = now
			row.LastSeenAt = now
			if err := tx.Create(&row).Error; err != nil {
				return fmt.Errorf("insert new finding %s: %w", hash, err)
			}
			result.New++
			result.NewBySeverity[row.Severity]++
		}

		// fixed: open rows whose hash no longer appears in this run.
		for hash, existing := range openSet {
			if seen[hash] {
				continue
			}
			updates := map[string]interface{}{
				"status":             models.VulnStatusResolved,
				"resolved_at":        now,
				"resolution_scan_id": scan.ID,
			}
			if err := tx.Model(&models.Vulnerability{}).Where("id = ?", existing.ID).Updates(updates).Error; err != nil {
				return fmt.Errorf("resolve finding %d: %w", existing.ID, err)
			}
			result.Fixed++
		}

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("reconciliation for project %d failed: %w", scan.ProjectID, err)
	}

	e.logger.WithFields(logrus.Fields{
		"project_id": scan.ProjectID,
		"scan_id":    scan.ID,
		"new":        result.New,
		"still_open": result.StillOpen,
		"fixed":      result.Fixed,
		"reopened":   result.Reopened,
	}).Info("Reconciliation completed")

	return result, nil
}

// UpdateStatus applies a manual status change through the state machine.
func (e *Engine) UpdateStatus(findingID uint, to models.VulnStatus) (*models.Vulnerability, error) {
	finding, err := e.store.GetFinding(findingID)
	if err != nil {
		return nil, err
	}
	if err := ApplyTransition(finding, to); err != nil {
		return nil, err
	}
	if err := e.store.SaveFinding(finding); err != nil {
		return nil, err
	}
	e.logger.Infof("Finding %d status changed to %s", findingID, to)
	return finding, nil
}
