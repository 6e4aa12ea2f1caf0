package checkov

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/iacguard/iacguard/pkg/models"
	"github.com/iacguard/iacguard/pkg/utils"
)

// ErrNoScannableFiles is returned when an upload contains nothing any
// framework can scan; the caller marks the scan failed with this reason.
var ErrNoScannableFiles = errors.New("no scannable files in upload")

// Config controls the external scanner invocation.
type Config struct {
	BinaryPath        string        `mapstructure:"binary_path"`
	CustomPoliciesDir string        `mapstructure:"custom_policies_dir"`
	FileTimeout       time.Duration `mapstructure:"file_timeout"`
	Concurrency       int           `mapstructure:"concurrency"`
}

func (c *Config) withDefaults() Config {
	out := *c
	if out.BinaryPath == "" {
		out.BinaryPath = "checkov"
	}
	if out.FileTimeout <= 0 {
		out.FileTimeout = 5 * time.Minute
	}
	if out.Concurrency <= 0 {
		out.Concurrency = 4
	}
	return out
}

// Runner invokes the external checkov binary per file and aggregates the
// JSON reports. The scanner is treated as opaque: its exit code is not
// trusted (it is nonzero whenever checks fail), only its JSON output is.
type Runner struct {
	config Config
	logger *logrus.Logger
}

func NewRunner(config Config, logger *logrus.Logger) *Runner {
	if logger == nil {
		logger = logrus.New()
	}
	return &Runner{config: config.withDefaults(), logger: logger}
}

// ScanUpload detects frameworks under uploadPath and scans each file with a
// bounded worker group. A single unparseable or timed-out file is skipped
// with a warning; only an upload with nothing scannable fails the run.
func (r *Runner) ScanUpload(ctx context.Context, uploadPath string) (*models.RunAggregate, error) {
	grouped, err := GroupByFramework(uploadPath)
	if err != nil {
		return nil, fmt.Errorf("inspect upload %s: %w", uploadPath, err)
	}
	if len(grouped) == 0 {
		return nil, ErrNoScannableFiles
	}

	frameworks := make([]string, 0, len(grouped))
	for fw := range grouped {
		frameworks = append(frameworks, fw)
	}
	sort.Strings(frameworks)

	agg := &models.RunAggregate{Frameworks: frameworks}
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.config.Concurrency)

	for _, fw := range frameworks {
		for _, file := range grouped[fw] {
			fw, file := fw, file
			g.Go(func() error {
				report, err := r.scanFile(gctx, file, fw)
				if err != nil {
					if errors.Is(err, context.Canceled) || errors.Is(gctx.Err(), context.Canceled) {
						return err
					}
					r.logger.Warnf("Skipping %s (%s): %v", file, fw, err)
					return nil
				}
				mu.Lock()
				agg.Merge(report)
				agg.FilesScanned++
				mu.Unlock()
				return nil
			})
		}
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if agg.FilesScanned == 0 {
		return nil, fmt.Errorf("all %d files failed to scan", countFiles(grouped))
	}

	r.logger.WithFields(logrus.Fields{
		"upload":     uploadPath,
		"files":      agg.FilesScanned,
		"frameworks": frameworks,
		"failed":     agg.Failed,
		"passed":     agg.Passed,
	}).Info("Scanner run completed")
	return agg, nil
}

func (r *Runner) scanFile(ctx context.Context, file, framework string) (*models.CheckovReport, error) {
	fctx, cancel := context.WithTimeout(ctx, r.config.FileTimeout)
	defer cancel()

	args := []string{"-f", file, "--framework", framework, "-o", "json", "--quiet", "--compact"}
	if r.config.CustomPoliciesDir != "" {
		policyDir := filepath.Join(r.config.CustomPoliciesDir, framework)
		if info, err := os.Stat(policyDir); err == nil && info.IsDir() {
			args = append(args, "--external-checks-dir", policyDir)
		}
	}

	cmd := exec.CommandContext(fctx, r.config.BinaryPath, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if fctx.Err() == context.DeadlineExceeded {
		return nil, fmt.Errorf("scanner timed out after %s", r.config.FileTimeout)
	}
	if err != nil && stdout.Len() == 0 {
		// a nonzero exit with JSON on stdout just means checks failed
		return nil, fmt.Errorf("scanner failed: %w (stderr: %s)", err, utils.TruncateString(stderr.String(), 200))
	}
	if stdout.Len() == 0 {
		return nil, fmt.Errorf("scanner produced no output")
	}

	report, err := parseReport(stdout.Bytes())
	if err != nil {
		return nil, fmt.Errorf("parse scanner output: %w", err)
	}
	return report, nil
}

// parseReport accepts both of the scanner's output shapes: a single report
// object, or an array of per-framework reports.
func parseReport(raw []byte) (*models.CheckovReport, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("empty report")
	}
	if trimmed[0] == '[' {
		var reports []models.CheckovReport
		if err := json.Unmarshal(trimmed, &reports); err != nil {
			return nil, err
		}
		merged := &models.CheckovReport{CheckType: "multi"}
		for i := range reports {
			merged.Summary.Passed += reports[i].Summary.Passed
			merged.Summary.Failed += reports[i].Summary.Failed
			merged.Summary.Skipped += reports[i].Summary.Skipped
			merged.Results.FailedChecks = append(merged.Results.FailedChecks, reports[i].Results.FailedChecks...)
		}
		return merged, nil
	}
	var report models.CheckovReport
	if err := json.Unmarshal(trimmed, &report); err != nil {
		return nil, err
	}
	return &report, nil
}

// Version reports the installed scanner version, used by the health check.
func (r *Runner) Version(ctx context.Context) (string, error) {
	vctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	out, err := exec.CommandContext(vctx, r.config.BinaryPath, "--version").Output()
	if err != nil {
		return "", fmt.Errorf("scanner not available: %w", err)
	}
	return string(bytes.TrimSpace(out)), nil
}

func countFiles(grouped map[string][]string) int {
	n := 0
	for _, files := range grouped {
		n += len(files)
	}
	return n
}
