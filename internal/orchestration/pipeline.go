package orchestration

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/datatypes"

	"github.com/iacguard/iacguard/internal/checkov"
	"github.com/iacguard/iacguard/internal/normalize"
	"github.com/iacguard/iacguard/internal/notify"
	"github.com/iacguard/iacguard/internal/reconcile"
	"github.com/iacguard/iacguard/internal/storage"
	"github.com/iacguard/iacguard/pkg/models"
	"github.com/iacguard/iacguard/pkg/utils"
)

// PipelineConfig bounds the scan pipeline.
type PipelineConfig struct {
	MaxConcurrentScans int           `mapstructure:"max_concurrent_scans"`
	ScanTimeout        time.Duration `mapstructure:"scan_timeout"`
	SnapshotMaxBytes   int64         `mapstructure:"snapshot_max_bytes"`
}

func (c *PipelineConfig) withDefaults() PipelineConfig {
	out := *c
	if out.MaxConcurrentScans <= 0 {
		out.MaxConcurrentScans = 4
	}
	if out.ScanTimeout <= 0 {
		out.ScanTimeout = 15 * time.Minute
	}
	if out.SnapshotMaxBytes <= 0 {
		out.SnapshotMaxBytes = 1 << 20
	}
	return out
}

// ScanContext tracks one in-flight scan for progress reporting and cancel.
type ScanContext struct {
	ScanID     uint
	ProjectID  uint
	StartTime  time.Time
	Status     string
	Progress   float64
	CancelFunc context.CancelFunc
}

// Pipeline drives a scan end to end: scanner run, normalization,
// reconciliation, metrics, notification. Notification and metric failures
// are logged and never fail the scan; a scanner failure marks the scan
// failed and leaves the prior open set untouched.
type Pipeline struct {
	runner     *checkov.Runner
	normalizer *normalize.Normalizer
	engine     *reconcile.Engine
	notifier   *notify.Notifier
	store      *storage.Store
	metrics    *utils.MetricsCollector
	logger     *logrus.Logger
	config     PipelineConfig

	mu          sync.RWMutex
	activeScans map[uint]*ScanContext
	slots       chan struct{}
}

func NewPipeline(
	runner *checkov.Runner,
	normalizer *normalize.Normalizer,
	engine *reconcile.Engine,
	notifier *notify.Notifier,
	store *storage.Store,
	metrics *utils.MetricsCollector,
	config PipelineConfig,
	logger *logrus.Logger,
) *Pipeline {
	if logger == nil {
		logger = logrus.New()
	}
	cfg := config.withDefaults()
	return &Pipeline{
		runner:      runner,
		normalizer:  normalizer,
		engine:      engine,
		notifier:    notifier,
		store:       store,
		metrics:     metrics,
		logger:      logger,
		config:      cfg,
		activeScans: make(map[uint]*ScanContext),
		slots:       make(chan struct{}, cfg.MaxConcurrentScans),
	}
}

// StartScan creates the scan record and launches the pipeline in the
// background. The returned scan is in pending state; progress is available
// through GetScanStatus.
func (p *Pipeline) StartScan(ctx context.Context, project *models.Project, uploadPath, scanType, triggeredBy string) (*models.Scan, error) {
	if scanType == "" {
		scanType = "upload"
	}
	metadata, _ := json.Marshal(map[string]string{"upload_path": uploadPath})
	scan := &models.Scan{
		ProjectID:   project.ID,
		ScanType:    scanType,
		TriggeredBy: triggeredBy,
		Status:      models.ScanStatusPending,
		Metadata:    datatypes.JSON(metadata),
	}
	if err := p.store.CreateScan(scan); err != nil {
		return nil, err
	}

	scanCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.config.ScanTimeout)
	sc := &ScanContext{
		ScanID:     scan.ID,
		ProjectID:  project.ID,
		StartTime:  time.Now(),
		Status:     "queued",
		CancelFunc: cancel,
	}
	p.mu.Lock()
	p.activeScans[scan.ID] = sc
	p.mu.Unlock()

	go p.executeScan(scanCtx, project, scan, sc, uploadPath)
	return scan, nil
}

func (p *Pipeline) executeScan(ctx context.Context, project *models.Project, scan *models.Scan, sc *ScanContext, uploadPath string) {
	defer func() {
		p.mu.Lock()
		delete(p.activeScans, scan.ID)
		p.mu.Unlock()
		sc.CancelFunc()
	}()

	select {
	case p.slots <- struct{}{}:
		defer func() { <-p.slots }()
	case <-ctx.Done():
		p.failScan(project, scan, "scan queue wait cancelled")
		return
	}

	start := time.Now()
	if err := p.store.MarkScanRunning(scan.ID); err != nil {
		p.logger.Errorf("Failed to mark scan %d running: %v", scan.ID, err)
	}

	p.updateProgress(sc, "scanning", 10)
	agg, err := p.runner.ScanUpload(ctx, uploadPath)
	if err != nil {
		p.failScan(project, scan, fmt.Sprintf("scanner run failed: %v", err))
		p.observeScan(models.ScanStatusFailed, project.Framework, time.Since(start))
		return
	}

	p.updateProgress(sc, "normalizing", 50)
	configs, err := p.store.PolicyConfigs(project.ID)
	if err != nil {
		p.failScan(project, scan, fmt.Sprintf("load policy configs: %v", err))
		p.observeScan(models.ScanStatusFailed, project.Framework, time.Since(start))
		return
	}
	drafts := p.normalizer.Normalize(project.ID, agg.FailedChecks, configs)
	if p.metrics != nil {
		for i := range drafts {
			p.metrics.FindingsObserved.WithLabelValues(string(drafts[i].Severity)).Inc()
		}
	}

	metadata, _ := json.Marshal(map[string]interface{}{
		"upload_path":        uploadPath,
		"frameworks_scanned": agg.Frameworks,
		"total_files":        agg.FilesScanned,
	})
	if err := p.store.MarkScanCompleted(scan.ID, agg, metadata); err != nil {
		p.failScan(project, scan, fmt.Sprintf("persist scan outcome: %v", err))
		return
	}
	scan.Status = models.ScanStatusCompleted
	scan.TotalChecks = agg.Total()
	scan.PassedChecks = agg.Passed
	scan.FailedChecks = agg.Failed
	scan.SkippedChecks = agg.Skipped

	p.updateProgress(sc, "reconciling", 70)
	result, err := p.engine.Reconcile(ctx, scan, drafts)
	if err != nil {
		// the scan itself completed; reconciliation failure must not
		// repaint it as a scanner failure, but it still surfaces on the
		// scan row so the user sees why the findings were not updated
		reason := fmt.Sprintf("reconciliation failed: %v", err)
		p.logger.Errorf("Reconciliation failed for scan %d: %v", scan.ID, err)
		if rerr := p.store.RecordScanError(scan.ID, reason); rerr != nil {
			p.logger.Errorf("Failed to persist reconciliation error for scan %d: %v", scan.ID, rerr)
		}
		scan.ErrorMessage = reason
		p.updateProgress(sc, "failed", 100)
		p.observeScan(models.ScanStatusCompleted, project.Framework, time.Since(start))
		return
	}
	p.observeReconciliation(project, result)

	p.updateProgress(sc, "notifying", 90)
	p.notifier.ProcessResult(project, scan, result)

	p.updateProgress(sc, "completed", 100)
	p.observeScan(models.ScanStatusCompleted, project.Framework, time.Since(start))
	p.logger.WithFields(logrus.Fields{
		"project_id": project.ID,
		"scan_id":    scan.ID,
		"duration":   time.Since(start).Round(time.Millisecond).String(),
		"new":        result.New,
		"fixed":      result.Fixed,
	}).Info("Scan pipeline completed")
}

func (p *Pipeline) failScan(project *models.Project, scan *models.Scan, reason string) {
	p.logger.Errorf("Scan %d for project %d failed: %s", scan.ID, project.ID, reason)
	if err := p.store.MarkScanFailed(scan.ID, reason); err != nil {
		p.logger.Errorf("Failed to persist scan failure: %v", err)
	}
	scan.Status = models.ScanStatusFailed
	scan.ErrorMessage = reason

	p.mu.Lock()
	if sc, ok := p.activeScans[scan.ID]; ok {
		sc.Status = "failed"
		sc.Progress = 100
	}
	p.mu.Unlock()

	p.notifier.ProcessFailure(project, scan)
}

func (p *Pipeline) observeScan(status, framework string, duration time.Duration) {
	if p.metrics != nil {
		p.metrics.ObserveScan(status, framework, duration)
	}
}

func (p *Pipeline) observeReconciliation(project *models.Project, result *reconcile.Result) {
	if p.metrics == nil {
		return
	}
	p.metrics.ObserveReconciliation(result.New, result.StillOpen, result.Fixed, result.Reopened)
	counts, err := p.store.CountOpenBySeverity(project.ID)
	if err != nil {
		p.logger.Debugf("Open-findings gauge update skipped: %v", err)
		return
	}
	total := 0
	for _, n := range counts {
		total += n
	}
	p.metrics.OpenFindings.WithLabelValues(fmt.Sprintf("%d", project.ID)).Set(float64(total))
}

func (p *Pipeline) updateProgress(sc *ScanContext, status string, progress float64) {
	p.mu.Lock()
	sc.Status = status
	sc.Progress = progress
	p.mu.Unlock()
}

// GetScanStatus reports an in-flight scan's progress, or nil when the scan
// is no longer active (finished scans live in the store).
func (p *Pipeline) GetScanStatus(scanID uint) *ScanContext {
	p.mu.RLock()
	defer p.mu.RUnlock()
	sc, ok := p.activeScans[scanID]
	if !ok {
		return nil
	}
	copied := *sc
	return &copied
}

// CancelScan aborts an in-flight scan.
func (p *Pipeline) CancelScan(scanID uint) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	sc, ok := p.activeScans[scanID]
	if !ok {
		return fmt.Errorf("scan %d is not active", scanID)
	}
	sc.CancelFunc()
	sc.Status = "cancelled"
	sc.Progress = 100
	p.logger.Infof("Scan %d cancelled", scanID)
	return nil
}

// ListActiveScans snapshots the in-flight scan registry.
func (p *Pipeline) ListActiveScans() []ScanContext {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]ScanContext, 0, len(p.activeScans))
	for _, sc := range p.activeScans {
		out = append(out, *sc)
	}
	return out
}

// Stats summarizes the pipeline for the ops endpoint.
func (p *Pipeline) Stats() map[string]interface{} {
	p.mu.RLock()
	defer p.mu.RUnlock()

	details := make([]map[string]interface{}, 0, len(p.activeScans))
	for _, sc := range p.activeScans {
		details = append(details, map[string]interface{}{
			"scan_id":    sc.ScanID,
			"project_id": sc.ProjectID,
			"status":     sc.Status,
			"progress":   sc.Progress,
			"start_time": sc.StartTime,
		})
	}
	return map[string]interface{}{
		"active_scans":   len(p.activeScans),
		"max_concurrent": p.config.MaxConcurrentScans,
		"scan_timeout":   p.config.ScanTimeout.String(),
		"details":        details,
	}
}
