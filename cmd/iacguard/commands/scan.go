package commands

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/iacguard/iacguard/internal/checkov"
	"github.com/iacguard/iacguard/internal/storage"
	"github.com/iacguard/iacguard/pkg/models"
)

func NewScanCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scan <path>",
		Short: "Scan a local directory or file",
		Long:  `Run a one-shot scan of local IaC files for a project, reconcile the findings, and print the outcome.`,
		Args:  cobra.ExactArgs(1),
		RunE:  runScan,
	}
	cmd.Flags().StringP("project", "p", "", "project name (created if missing)")
	cmd.Flags().StringP("framework", "f", "", "project framework tag (used when creating the project)")
	_ = cmd.MarkFlagRequired("project")
	return cmd
}

func runScan(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	application, err := buildApp(ctx)
	if err != nil {
		return err
	}
	defer application.close()

	projectName, _ := cmd.Flags().GetString("project")
	framework, _ := cmd.Flags().GetString("framework")

	project, err := application.store.GetProjectByName(projectName)
	if errors.Is(err, storage.ErrNotFound) {
		if framework == "" {
			framework = checkov.DetectFramework(args[0])
		}
		project = &models.Project{Name: projectName, Framework: framework}
		if err := application.store.CreateProject(project); err != nil {
			return fmt.Errorf("create project %q: %w", projectName, err)
		}
		application.logger.Infof("Created project %q (framework: %s)", projectName, framework)
	} else if err != nil {
		return err
	}

	uploadID := uuid.NewString()
	scan, err := application.pipeline.StartScan(ctx, project, args[0], "cli", "cli")
	if err != nil {
		return err
	}
	if err := application.pipeline.CaptureUpload(project, &scan.ID, uploadID, args[0]); err != nil {
		application.logger.Warnf("File snapshots failed: %v", err)
	}

	fmt.Printf("Scan #%d started for project %q\n", scan.ID, project.Name)
	final, err := waitForScan(ctx, application, scan.ID)
	if err != nil {
		return err
	}

	fmt.Printf("\nStatus:   %s\n", final.Status)
	if final.Status == models.ScanStatusFailed {
		fmt.Printf("Error:    %s\n", final.ErrorMessage)
		return fmt.Errorf("scan failed")
	}
	fmt.Printf("Checks:   %d total, %d passed, %d failed, %d skipped\n",
		final.TotalChecks, final.PassedChecks, final.FailedChecks, final.SkippedChecks)
	fmt.Printf("Pass rate: %.1f%%\n", final.PassRate()*100)

	counts, err := application.store.CountOpenBySeverity(project.ID)
	if err == nil {
		fmt.Println("\nOpen findings:")
		for _, sev := range models.Severities() {
			if counts[sev] > 0 {
				fmt.Printf("  %-10s %d\n", sev, counts[sev])
			}
		}
	}
	return nil
}

func waitForScan(ctx context.Context, application *app, scanID uint) (*models.Scan, error) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
			if sc := application.pipeline.GetScanStatus(scanID); sc != nil {
				fmt.Printf("  %s (%.0f%%)\n", sc.Status, sc.Progress)
				continue
			}
			scan, err := application.store.GetScan(scanID)
			if err != nil {
				return nil, err
			}
			if scan.IsTerminal() {
				return scan, nil
			}
		}
	}
}
