package normalize

import (
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/iacguard/iacguard/pkg/models"
	"github.com/iacguard/iacguard/pkg/utils"
)

// Normalizer converts raw scanner checks for one run into canonical finding
// drafts with stable content hashes, applying per-project policy overrides
// on the way. Disabled checks never reach the reconciliation engine.
type Normalizer struct {
	logger *logrus.Logger
}

func NewNormalizer(logger *logrus.Logger) *Normalizer {
	if logger == nil {
		logger = logrus.New()
	}
	return &Normalizer{logger: logger}
}

// Normalize emits one draft per retained raw finding. A raw check missing
// check_id or file_path cannot be reconciled deterministically and is
// dropped with a warning; it never aborts the batch. Output order carries
// no meaning; the engine keys the set by hash.
func (n *Normalizer) Normalize(projectID uint, checks []models.CheckovCheck, configs map[string]*models.PolicyConfig) []models.Vulnerability {
	drafts := make([]models.Vulnerability, 0, len(checks))
	seen := make(map[string]bool, len(checks))

	for i := range checks {
		check := &checks[i]
		if check.CheckID == "" || check.FilePath == "" {
			n.logger.Warnf("Dropping malformed finding (check_id=%q, file_path=%q): missing required field",
				check.CheckID, check.FilePath)
			continue
		}

		cfg := configs[check.CheckID]
		if cfg != nil && !cfg.Enabled {
			n.logger.Debugf("Check %s disabled by policy config, skipping", check.CheckID)
			continue
		}

		severity := SeverityFor(check.CheckID, check.Severity, categoryFromClass(check.CheckClass))
		description := buildDescription(check)
		if cfg != nil {
			if cfg.SeverityOverride != nil {
				severity = *cfg.SeverityOverride
			}
			if cfg.CustomMessage != "" {
				description = cfg.CustomMessage
			}
		}

		lineStart, lineEnd := check.LineRange()
		hash := ContentHash(check.CheckID, check.FilePath, lineStart, check.Resource)
		if seen[hash] {
			// the scanner occasionally reports the same violation twice
			// for multi-document files; one draft per hash is enough.
			continue
		}
		seen[hash] = true

		drafts = append(drafts, models.Vulnerability{
			ProjectID:    projectID,
			CheckID:      check.CheckID,
			CheckName:    check.CheckName,
			Severity:     severity,
			Status:       models.VulnStatusOpen,
			ResourceType: check.ResourceType,
			ResourceName: check.Resource,
			FilePath:     utils.NormalizeRelPath(check.FilePath),
			LineStart:    lineStart,
			LineEnd:      lineEnd,
			Description:  description,
			Remediation:  buildRemediation(check),
			GuidelineURL: check.Guideline,
			ContentHash:  hash,
		})
	}

	return drafts
}

func categoryFromClass(checkClass string) string {
	// checkov.terraform.checks.resource.aws.S3Encryption -> S3Encryption
	if checkClass == "" {
		return ""
	}
	parts := strings.Split(checkClass, ".")
	return parts[len(parts)-1]
}

func buildDescription(check *models.CheckovCheck) string {
	var b strings.Builder
	name := check.CheckName
	if name == "" {
		name = check.CheckID
	}
	b.WriteString(name)

	if len(check.CodeBlock) > 0 {
		b.WriteString("\n\nCode:")
		limit := len(check.CodeBlock)
		if limit > 10 {
			limit = 10
		}
		for _, pair := range check.CodeBlock[:limit] {
			line, content := pair[0], pair[1]
			b.WriteString(fmt.Sprintf("\n%v: %s", line, strings.TrimRight(fmt.Sprintf("%v", content), "\n")))
		}
	}

	if len(check.Details) > 0 {
		b.WriteString("\n\nDetails:")
		limit := len(check.Details)
		if limit > 3 {
			limit = 3
		}
		for _, d := range check.Details[:limit] {
			b.WriteString("\n- " + d)
		}
	}

	return b.String()
}

func buildRemediation(check *models.CheckovCheck) string {
	var parts []string
	if check.FixedDefinition != nil {
		parts = append(parts, "Fixed definition available")
	}
	if check.Guideline != "" {
		parts = append(parts, "See: "+check.Guideline)
	}
	return strings.Join(parts, "\n")
}
