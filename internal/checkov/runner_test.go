package checkov

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iacguard/iacguard/pkg/models"
)

const objectReport = `{
  "check_type": "terraform",
  "results": {
    "failed_checks": [
      {
        "check_id": "CKV_AWS_20",
        "check_name": "S3 Bucket has an ACL defined which allows public READ access",
        "file_path": "/main.tf",
        "file_line_range": [1, 8],
        "resource": "aws_s3_bucket.data",
        "check_result": {"result": "FAILED"}
      }
    ]
  },
  "summary": {"passed": 4, "failed": 1, "skipped": 0}
}`

const arrayReport = `[
  {
    "check_type": "terraform",
    "results": {"failed_checks": [{"check_id": "CKV_AWS_20", "file_path": "/main.tf", "check_result": {"result": "FAILED"}}]},
    "summary": {"passed": 2, "failed": 1, "skipped": 0}
  },
  {
    "check_type": "secrets",
    "results": {"failed_checks": [{"check_id": "CKV_SECRET_6", "file_path": "/main.tf", "check_result": {"result": "FAILED"}}]},
    "summary": {"passed": 0, "failed": 1, "skipped": 1}
  }
]`

func TestParseReportObjectShape(t *testing.T) {
	report, err := parseReport([]byte(objectReport))
	require.NoError(t, err)
	assert.Equal(t, "terraform", report.CheckType)
	assert.Equal(t, 4, report.Summary.Passed)
	assert.Equal(t, 1, report.Summary.Failed)
	require.Len(t, report.Results.FailedChecks, 1)

	check := report.Results.FailedChecks[0]
	assert.Equal(t, "CKV_AWS_20", check.CheckID)
	start, end := check.LineRange()
	assert.Equal(t, 1, start)
	assert.Equal(t, 8, end)
}

func TestParseReportArrayShape(t *testing.T) {
	report, err := parseReport([]byte(arrayReport))
	require.NoError(t, err)
	assert.Equal(t, "multi", report.CheckType)
	assert.Equal(t, 2, report.Summary.Passed)
	assert.Equal(t, 2, report.Summary.Failed)
	assert.Equal(t, 1, report.Summary.Skipped)
	assert.Len(t, report.Results.FailedChecks, 2)
}

func TestParseReportRejectsGarbage(t *testing.T) {
	_, err := parseReport([]byte(""))
	assert.Error(t, err)

	_, err = parseReport([]byte("   \n"))
	assert.Error(t, err)

	_, err = parseReport([]byte("not json"))
	assert.Error(t, err)
}

func TestRunAggregateMerge(t *testing.T) {
	first, err := parseReport([]byte(objectReport))
	require.NoError(t, err)
	second, err := parseReport([]byte(arrayReport))
	require.NoError(t, err)

	run := &models.RunAggregate{}
	run.Merge(first)
	run.Merge(second)
	run.Merge(nil)

	assert.Equal(t, 6, run.Passed)
	assert.Equal(t, 3, run.Failed)
	assert.Equal(t, 1, run.Skipped)
	assert.Equal(t, 10, run.Total())
	assert.Len(t, run.FailedChecks, 3)
}
