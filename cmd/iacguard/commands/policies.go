package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/iacguard/iacguard/pkg/models"
)

func NewPoliciesCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "policies",
		Short: "Manage policy definitions",
	}
	cmd.AddCommand(newPoliciesImportCommand())
	cmd.AddCommand(newPoliciesListCommand())
	return cmd
}

// policyManifest is the YAML shape accepted by `policies import`.
type policyManifest struct {
	Policies []struct {
		CheckID      string `yaml:"check_id"`
		Name         string `yaml:"name"`
		Platform     string `yaml:"platform"`
		Severity     string `yaml:"severity"`
		Category     string `yaml:"category"`
		Description  string `yaml:"description"`
		Guideline    string `yaml:"guideline"`
		GuidelineURL string `yaml:"guideline_url"`
		BuiltIn      *bool  `yaml:"built_in"`
		FilePath     string `yaml:"file_path"`
		Code         string `yaml:"code"`
	} `yaml:"policies"`
}

func newPoliciesImportCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "import <manifest.yaml>",
		Short: "Import policy definitions from a YAML manifest",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			application, err := buildApp(context.Background())
			if err != nil {
				return err
			}
			defer application.close()

			raw, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read manifest: %w", err)
			}
			var manifest policyManifest
			if err := yaml.Unmarshal(raw, &manifest); err != nil {
				return fmt.Errorf("parse manifest: %w", err)
			}
			if len(manifest.Policies) == 0 {
				return fmt.Errorf("manifest contains no policies")
			}

			imported := 0
			for _, entry := range manifest.Policies {
				severity, err := models.ParseSeverity(entry.Severity)
				if err != nil {
					application.logger.Warnf("Skipping %s: %v", entry.CheckID, err)
					continue
				}
				builtIn := true
				if entry.BuiltIn != nil {
					builtIn = *entry.BuiltIn
				}
				policy := &models.Policy{
					CheckID:      entry.CheckID,
					Name:         entry.Name,
					Platform:     entry.Platform,
					Severity:     severity,
					Category:     entry.Category,
					Description:  entry.Description,
					Guideline:    entry.Guideline,
					GuidelineURL: entry.GuidelineURL,
					BuiltIn:      builtIn,
					FilePath:     entry.FilePath,
					Code:         entry.Code,
				}
				if err := application.store.UpsertPolicy(policy); err != nil {
					application.logger.Warnf("Skipping %s: %v", entry.CheckID, err)
					continue
				}
				imported++
			}

			fmt.Printf("Imported %d of %d policies\n", imported, len(manifest.Policies))
			return nil
		},
	}
}

func newPoliciesListCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List stored policy definitions",
		RunE: func(cmd *cobra.Command, args []string) error {
			application, err := buildApp(context.Background())
			if err != nil {
				return err
			}
			defer application.close()

			platform, _ := cmd.Flags().GetString("platform")
			policies, err := application.store.ListPolicies(platform, nil)
			if err != nil {
				return err
			}

			fmt.Printf("%-24s %-12s %-10s %s\n", "CHECK ID", "PLATFORM", "SEVERITY", "NAME")
			for _, p := range policies {
				fmt.Printf("%-24s %-12s %-10s %s\n", p.CheckID, p.Platform, p.Severity, p.Name)
			}
			fmt.Printf("\n%d policies\n", len(policies))
			return nil
		},
	}
	cmd.Flags().String("platform", "", "filter by platform")
	return cmd
}
