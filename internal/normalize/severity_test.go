package normalize

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/iacguard/iacguard/pkg/models"
)

func TestSeverityForRawSeverityWins(t *testing.T) {
	assert.Equal(t, models.SeverityLow, SeverityFor("CKV_AWS_1", "LOW", ""))
	assert.Equal(t, models.SeverityHigh, SeverityFor("CKV_UNKNOWN", "High", ""))
}

func TestSeverityForKnownChecks(t *testing.T) {
	assert.Equal(t, models.SeverityCritical, SeverityFor("CKV_AWS_1", "", ""))
	assert.Equal(t, models.SeverityCritical, SeverityFor("CKV_K8S_16", "", ""))
	assert.Equal(t, models.SeverityHigh, SeverityFor("CKV_AWS_24", "", ""))
}

func TestSeverityForSecretPrefix(t *testing.T) {
	assert.Equal(t, models.SeverityCritical, SeverityFor("CKV_SECRET_6", "", ""))
}

func TestSeverityForCategoryHeuristics(t *testing.T) {
	assert.Equal(t, models.SeverityCritical, SeverityFor("CKV_X_1", "", "HardcodedPassword"))
	assert.Equal(t, models.SeverityHigh, SeverityFor("CKV_X_1", "", "S3Encryption"))
	assert.Equal(t, models.SeverityMedium, SeverityFor("CKV_X_1", "", "FlowLogging"))
	assert.Equal(t, models.SeverityLow, SeverityFor("CKV_X_1", "", "NamingConvention"))
}

func TestSeverityForDefaultsToMedium(t *testing.T) {
	assert.Equal(t, models.SeverityMedium, SeverityFor("CKV_UNKNOWN_999", "", ""))
	assert.Equal(t, models.SeverityMedium, SeverityFor("CKV_UNKNOWN_999", "bogus", "Widget"))
}
