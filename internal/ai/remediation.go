package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/iacguard/iacguard/pkg/models"
	"github.com/iacguard/iacguard/pkg/utils"
)

var (
	// ErrDisabled is returned when no provider is configured.
	ErrDisabled = errors.New("ai remediation is not configured")
	// ErrFileTooLarge guards the prompt size.
	ErrFileTooLarge = errors.New("file exceeds ai remediation size limit")
)

// FixSuggestion is a proposed remediation for one finding.
type FixSuggestion struct {
	OriginalCode   string   `json:"original_code"`
	FixedCode      string   `json:"fixed_code"`
	Explanation    string   `json:"explanation"`
	ChangesSummary []string `json:"changes_summary"`
	RiskLevel      string   `json:"risk_level"`
	Provider       string   `json:"provider"`
}

// EditResult is the outcome of a free-form file edit.
type EditResult struct {
	EditedCode  string   `json:"edited_code"`
	Explanation string   `json:"explanation"`
	ChangesMade []string `json:"changes_made"`
	Provider    string   `json:"provider"`
}

// Service wraps a Provider with rate limiting, timeouts, and response
// parsing. A slow or failed call surfaces as an error on this path only;
// it never touches the scan pipeline.
type Service struct {
	provider    Provider
	limiter     *rate.Limiter
	timeout     time.Duration
	maxFileSize int
	metrics     *utils.MetricsCollector
	logger      *logrus.Logger
}

func NewService(provider Provider, config Config, metrics *utils.MetricsCollector, logger *logrus.Logger) *Service {
	if logger == nil {
		logger = logrus.New()
	}
	perMin := config.RatePerMin
	if perMin <= 0 {
		perMin = 20
	}
	timeout := config.Timeout
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	maxFileSize := config.MaxFileSize
	if maxFileSize <= 0 {
		maxFileSize = 64 * 1024
	}
	return &Service{
		provider:    provider,
		limiter:     rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMin)), perMin),
		timeout:     timeout,
		maxFileSize: maxFileSize,
		metrics:     metrics,
		logger:      logger,
	}
}

func (s *Service) Enabled() bool {
	return s.provider != nil
}

// SuggestFix asks the provider for a remediation of one finding within its
// file. The original content is always preserved in the suggestion so the
// caller can diff.
func (s *Service) SuggestFix(ctx context.Context, vuln *models.Vulnerability, fileContent string) (*FixSuggestion, error) {
	if err := s.precheck(fileContent); err != nil {
		return nil, err
	}

	prompt := buildFixPrompt(vuln, fileContent)
	raw, err := s.generate(ctx, prompt)
	if err != nil {
		return nil, err
	}

	fixed, explanation := splitCodeAndText(raw, fileContent)
	return &FixSuggestion{
		OriginalCode:   fileContent,
		FixedCode:      fixed,
		Explanation:    explanation,
		ChangesSummary: extractBullets(explanation),
		RiskLevel:      riskLevelFor(vuln.Severity),
		Provider:       s.provider.Name(),
	}, nil
}

// EditFile applies a free-form natural-language instruction to a file.
func (s *Service) EditFile(ctx context.Context, fileContent, instruction string) (*EditResult, error) {
	if err := s.precheck(fileContent); err != nil {
		return nil, err
	}
	if strings.TrimSpace(instruction) == "" {
		return nil, fmt.Errorf("edit instruction is required")
	}

	prompt := buildEditPrompt(fileContent, instruction)
	raw, err := s.generate(ctx, prompt)
	if err != nil {
		return nil, err
	}

	edited, explanation := splitCodeAndText(raw, fileContent)
	return &EditResult{
		EditedCode:  edited,
		Explanation: explanation,
		ChangesMade: extractBullets(explanation),
		Provider:    s.provider.Name(),
	}, nil
}

func (s *Service) precheck(fileContent string) error {
	if s.provider == nil {
		return ErrDisabled
	}
	if len(fileContent) > s.maxFileSize {
		return fmt.Errorf("%w: %d bytes", ErrFileTooLarge, len(fileContent))
	}
	return nil
}

func (s *Service) generate(ctx context.Context, prompt string) (string, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limit wait: %w", err)
	}
	gctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	start := time.Now()
	raw, err := s.provider.Generate(gctx, prompt)
	status := "ok"
	if err != nil {
		status = "error"
	}
	if s.metrics != nil {
		s.metrics.AIRequests.WithLabelValues(s.provider.Name(), status).Inc()
	}
	if err != nil {
		s.logger.Warnf("AI generation failed after %s: %v", time.Since(start).Round(time.Millisecond), err)
		return "", err
	}
	return raw, nil
}

func buildFixPrompt(vuln *models.Vulnerability, fileContent string) string {
	var b strings.Builder
	b.WriteString("Fix the following infrastructure-as-code security issue.\n\n")
	fmt.Fprintf(&b, "Check: %s (%s)\nSeverity: %s\nFile: %s\n", vuln.CheckID, vuln.CheckName, vuln.Severity, vuln.FilePath)
	if vuln.ResourceName != "" {
		fmt.Fprintf(&b, "Resource: %s\n", vuln.ResourceName)
	}
	if vuln.LineStart > 0 {
		fmt.Fprintf(&b, "Lines: %d-%d\n", vuln.LineStart, vuln.LineEnd)
	}
	if vuln.GuidelineURL != "" {
		fmt.Fprintf(&b, "Guideline: %s\n", vuln.GuidelineURL)
	}
	b.WriteString("\nFile content:\n```\n")
	b.WriteString(fileContent)
	b.WriteString("\n```\n\n")
	b.WriteString("Respond with the complete corrected file inside a single fenced code block, " +
		"followed by a short explanation listing each change as a bullet point. " +
		"Change only what is needed to fix this issue.")
	return b.String()
}

func buildEditPrompt(fileContent, instruction string) string {
	var b strings.Builder
	b.WriteString("Apply the following instruction to this infrastructure-as-code file.\n\n")
	b.WriteString("Instruction: " + instruction + "\n\nFile content:\n```\n")
	b.WriteString(fileContent)
	b.WriteString("\n```\n\n")
	b.WriteString("Respond with the complete edited file inside a single fenced code block, " +
		"followed by a short explanation listing each change as a bullet point.")
	return b.String()
}

// splitCodeAndText pulls the first fenced code block out of a model
// response. When no block is present the original content is returned
// unchanged so a confused model can never destroy a file.
func splitCodeAndText(raw, fallback string) (code, text string) {
	idx := strings.Index(raw, "```")
	if idx < 0 {
		return fallback, strings.TrimSpace(raw)
	}
	rest := raw[idx+3:]
	if nl := strings.IndexByte(rest, '\n'); nl >= 0 {
		// drop the language tag line
		rest = rest[nl+1:]
	}
	end := strings.Index(rest, "```")
	if end < 0 {
		return fallback, strings.TrimSpace(raw[:idx])
	}
	code = strings.TrimSpace(rest[:end])
	text = strings.TrimSpace(raw[:idx] + rest[end+3:])
	if code == "" {
		code = fallback
	}
	return code, text
}

func extractBullets(text string) []string {
	var bullets []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "- ") || strings.HasPrefix(line, "* ") {
			bullets = append(bullets, strings.TrimSpace(line[2:]))
		}
	}
	return bullets
}

func riskLevelFor(severity models.Severity) string {
	switch severity {
	case models.SeverityCritical, models.SeverityHigh:
		return "high"
	case models.SeverityMedium:
		return "medium"
	default:
		return "low"
	}
}

// Close releases the underlying provider.
func (s *Service) Close() error {
	if s.provider == nil {
		return nil
	}
	return s.provider.Close()
}
