package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/iacguard/iacguard/pkg/models"
)

func NewStatsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show dashboard statistics",
		Long:  `Show stored projects, scans, and open findings by severity.`,
		RunE:  runStats,
	}
}

func runStats(cmd *cobra.Command, args []string) error {
	application, err := buildApp(context.Background())
	if err != nil {
		return err
	}
	defer application.close()

	overview, err := application.aggregator.BuildOverview(5)
	if err != nil {
		return err
	}

	fmt.Println("Dashboard Statistics")
	fmt.Println("════════════════════")
	fmt.Printf("Projects:       %d (%d active)\n", overview.Projects, overview.ActiveProjects)
	fmt.Printf("Total scans:    %d\n", overview.TotalScans)
	fmt.Printf("Open findings:  %d\n", overview.OpenFindings)

	fmt.Println("\nOpen findings by severity:")
	for _, sev := range models.Severities() {
		fmt.Printf("  %-10s %d\n", sev, overview.BySeverity[sev])
	}

	if len(overview.RecentScans) > 0 {
		fmt.Println("\nRecent scans:")
		for _, scan := range overview.RecentScans {
			fmt.Printf("  #%-5d project=%-4d %-10s %d/%d passed\n",
				scan.ID, scan.ProjectID, scan.Status, scan.PassedChecks, scan.TotalChecks)
		}
	}
	return nil
}
