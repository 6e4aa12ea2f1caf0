package normalize

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iacguard/iacguard/pkg/models"
)

func rawCheck(checkID, filePath string, line int, resource string) models.CheckovCheck {
	return models.CheckovCheck{
		CheckID:       checkID,
		CheckName:     "test check",
		FilePath:      filePath,
		FileLineRange: []int{line, line + 2},
		Resource:      resource,
	}
}

func TestNormalizeEmitsDrafts(t *testing.T) {
	n := NewNormalizer(nil)
	drafts := n.Normalize(1, []models.CheckovCheck{
		rawCheck("CKV_AWS_20", "main.tf", 3, "aws_s3_bucket.data"),
		rawCheck("CKV_AWS_21", "main.tf", 9, "aws_s3_bucket.data"),
	}, nil)

	require.Len(t, drafts, 2)
	for _, d := range drafts {
		assert.Equal(t, uint(1), d.ProjectID)
		assert.Equal(t, models.VulnStatusOpen, d.Status)
		assert.Len(t, d.ContentHash, 32)
	}
}

func TestNormalizeDropsMalformed(t *testing.T) {
	n := NewNormalizer(nil)
	drafts := n.Normalize(1, []models.CheckovCheck{
		{CheckID: "", FilePath: "main.tf"},
		{CheckID: "CKV_AWS_20", FilePath: ""},
		rawCheck("CKV_AWS_20", "main.tf", 3, "r"),
	}, nil)
	assert.Len(t, drafts, 1)
}

func TestNormalizeSkipsDisabledChecks(t *testing.T) {
	n := NewNormalizer(nil)
	configs := map[string]*models.PolicyConfig{
		"CKV_AWS_20": {CheckID: "CKV_AWS_20", Enabled: false},
	}
	drafts := n.Normalize(1, []models.CheckovCheck{
		rawCheck("CKV_AWS_20", "main.tf", 3, "r"),
		rawCheck("CKV_AWS_21", "main.tf", 9, "r"),
	}, configs)
	require.Len(t, drafts, 1)
	assert.Equal(t, "CKV_AWS_21", drafts[0].CheckID)
}

func TestNormalizeAppliesOverrides(t *testing.T) {
	n := NewNormalizer(nil)
	low := models.SeverityLow
	configs := map[string]*models.PolicyConfig{
		"CKV_AWS_20": {
			CheckID:          "CKV_AWS_20",
			Enabled:          true,
			SeverityOverride: &low,
			CustomMessage:    "team-specific guidance",
		},
	}
	drafts := n.Normalize(1, []models.CheckovCheck{rawCheck("CKV_AWS_20", "main.tf", 3, "r")}, configs)
	require.Len(t, drafts, 1)
	assert.Equal(t, models.SeverityLow, drafts[0].Severity)
	assert.Equal(t, "team-specific guidance", drafts[0].Description)
}

func TestNormalizeDeduplicatesByHash(t *testing.T) {
	n := NewNormalizer(nil)
	check := rawCheck("CKV_AWS_20", "main.tf", 3, "r")
	drafts := n.Normalize(1, []models.CheckovCheck{check, check}, nil)
	assert.Len(t, drafts, 1)
}

func TestNormalizeSeverityIndependentOfHash(t *testing.T) {
	n := NewNormalizer(nil)
	check := rawCheck("CKV_AWS_20", "main.tf", 3, "r")
	first := n.Normalize(1, []models.CheckovCheck{check}, nil)

	high := models.SeverityHigh
	second := n.Normalize(1, []models.CheckovCheck{check}, map[string]*models.PolicyConfig{
		"CKV_AWS_20": {CheckID: "CKV_AWS_20", Enabled: true, SeverityOverride: &high},
	})

	require.Len(t, first, 1)
	require.Len(t, second, 1)
	assert.NotEqual(t, first[0].Severity, second[0].Severity)
	assert.Equal(t, first[0].ContentHash, second[0].ContentHash)
}
