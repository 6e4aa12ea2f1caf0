package ai

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iacguard/iacguard/pkg/models"
)

type fakeProvider struct {
	response string
	err      error
	prompts  []string
}

func (f *fakeProvider) Name() string { return "fake" }

func (f *fakeProvider) Generate(_ context.Context, prompt string) (string, error) {
	f.prompts = append(f.prompts, prompt)
	return f.response, f.err
}

func (f *fakeProvider) Close() error { return nil }

func TestSplitCodeAndTextFencedBlock(t *testing.T) {
	raw := "Here is the fix:\n```hcl\nresource \"aws_s3_bucket\" \"b\" {}\n```\n- enabled encryption"
	code, text := splitCodeAndText(raw, "original")
	assert.Equal(t, `resource "aws_s3_bucket" "b" {}`, code)
	assert.Contains(t, text, "Here is the fix:")
	assert.Contains(t, text, "- enabled encryption")
}

func TestSplitCodeAndTextFallbacks(t *testing.T) {
	// no fence at all: original survives
	code, text := splitCodeAndText("I cannot help with that.", "original")
	assert.Equal(t, "original", code)
	assert.Equal(t, "I cannot help with that.", text)

	// unterminated fence: original survives
	code, _ = splitCodeAndText("explanation\n```hcl\ntruncated", "original")
	assert.Equal(t, "original", code)

	// empty block: original survives
	code, _ = splitCodeAndText("```\n\n```", "original")
	assert.Equal(t, "original", code)
}

func TestExtractBullets(t *testing.T) {
	text := "Summary:\n- first change\n* second change\nplain line\n-no space"
	assert.Equal(t, []string{"first change", "second change"}, extractBullets(text))
}

func TestRiskLevelFor(t *testing.T) {
	assert.Equal(t, "high", riskLevelFor(models.SeverityCritical))
	assert.Equal(t, "high", riskLevelFor(models.SeverityHigh))
	assert.Equal(t, "medium", riskLevelFor(models.SeverityMedium))
	assert.Equal(t, "low", riskLevelFor(models.SeverityLow))
	assert.Equal(t, "low", riskLevelFor(models.SeverityInfo))
}

func TestSuggestFix(t *testing.T) {
	provider := &fakeProvider{response: "```\nfixed content\n```\n- change one"}
	svc := NewService(provider, Config{}, nil, nil)

	vuln := &models.Vulnerability{
		CheckID:   "CKV_AWS_20",
		CheckName: "public bucket",
		Severity:  models.SeverityHigh,
		FilePath:  "main.tf",
		LineStart: 1,
		LineEnd:   8,
	}
	suggestion, err := svc.SuggestFix(context.Background(), vuln, "original content")
	require.NoError(t, err)

	assert.Equal(t, "original content", suggestion.OriginalCode)
	assert.Equal(t, "fixed content", suggestion.FixedCode)
	assert.Equal(t, []string{"change one"}, suggestion.ChangesSummary)
	assert.Equal(t, "high", suggestion.RiskLevel)
	assert.Equal(t, "fake", suggestion.Provider)

	require.Len(t, provider.prompts, 1)
	assert.Contains(t, provider.prompts[0], "CKV_AWS_20")
	assert.Contains(t, provider.prompts[0], "original content")
}

func TestEditFile(t *testing.T) {
	provider := &fakeProvider{response: "```\nedited\n```\n- did the thing"}
	svc := NewService(provider, Config{}, nil, nil)

	result, err := svc.EditFile(context.Background(), "before", "rename the bucket")
	require.NoError(t, err)
	assert.Equal(t, "edited", result.EditedCode)
	assert.Equal(t, []string{"did the thing"}, result.ChangesMade)

	_, err = svc.EditFile(context.Background(), "before", "   ")
	assert.Error(t, err)
}

func TestServiceDisabled(t *testing.T) {
	svc := NewService(nil, Config{}, nil, nil)
	assert.False(t, svc.Enabled())

	_, err := svc.SuggestFix(context.Background(), &models.Vulnerability{}, "x")
	assert.ErrorIs(t, err, ErrDisabled)
}

func TestServiceFileSizeLimit(t *testing.T) {
	provider := &fakeProvider{response: "```\nok\n```"}
	svc := NewService(provider, Config{MaxFileSize: 10}, nil, nil)

	_, err := svc.SuggestFix(context.Background(), &models.Vulnerability{}, strings.Repeat("x", 11))
	assert.ErrorIs(t, err, ErrFileTooLarge)
}
