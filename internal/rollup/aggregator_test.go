package rollup

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iacguard/iacguard/internal/normalize"
	"github.com/iacguard/iacguard/internal/storage"
	"github.com/iacguard/iacguard/pkg/models"
)

func newTestAggregator(t *testing.T) (*Aggregator, *storage.Store, *models.Project) {
	t.Helper()
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)

	store, err := storage.Open(storage.Config{
		Driver: "sqlite",
		DSN:    filepath.Join(t.TempDir(), "test.db"),
	}, logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	project := &models.Project{Name: "rollup-project", Framework: "terraform"}
	require.NoError(t, store.CreateProject(project))

	return NewAggregator(store, logger), store, project
}

func completedScan(t *testing.T, store *storage.Store, projectID uint, passed, failed int) *models.Scan {
	t.Helper()
	scan := &models.Scan{
		ProjectID:    projectID,
		ScanType:     "upload",
		Status:       models.ScanStatusCompleted,
		TotalChecks:  passed + failed,
		PassedChecks: passed,
		FailedChecks: failed,
	}
	require.NoError(t, store.CreateScan(scan))
	return scan
}

func openFinding(t *testing.T, store *storage.Store, projectID, scanID uint, checkID string, sev models.Severity) {
	t.Helper()
	now := time.Now()
	f := &models.Vulnerability{
		ProjectID:   projectID,
		ScanID:      scanID,
		CheckID:     checkID,
		CheckName:   checkID + " name",
		Severity:    sev,
		Status:      models.VulnStatusOpen,
		FilePath:    "main.tf",
		LineStart:   1,
		LineEnd:     1,
		ContentHash: normalize.ContentHash(checkID, "main.tf", 1, "r"),
		DetectedAt:  now,
		LastSeenAt:  now,
	}
	require.NoError(t, store.SaveFinding(f))
}

func TestSeverityHistogramZeroFilled(t *testing.T) {
	agg, store, project := newTestAggregator(t)
	scan := completedScan(t, store, project.ID, 5, 2)
	openFinding(t, store, project.ID, scan.ID, "CKV_AWS_20", models.SeverityCritical)
	openFinding(t, store, project.ID, scan.ID, "CKV_AWS_21", models.SeverityCritical)
	openFinding(t, store, project.ID, scan.ID, "CKV_AWS_22", models.SeverityLow)

	hist, err := agg.SeverityHistogram(project.ID)
	require.NoError(t, err)

	// all severities are present even when empty
	assert.Len(t, hist, len(models.Severities()))
	assert.Equal(t, 2, hist[models.SeverityCritical])
	assert.Equal(t, 0, hist[models.SeverityHigh])
	assert.Equal(t, 0, hist[models.SeverityMedium])
	assert.Equal(t, 1, hist[models.SeverityLow])
	assert.Equal(t, 0, hist[models.SeverityInfo])
}

func TestPassRateSeriesPerScan(t *testing.T) {
	agg, store, project := newTestAggregator(t)
	completedScan(t, store, project.ID, 8, 2)
	completedScan(t, store, project.ID, 10, 0)
	completedScan(t, store, project.ID, 0, 0) // empty scan reports 0, not NaN

	points, err := agg.PassRateSeries(project.ID, time.Now().Add(-time.Hour))
	require.NoError(t, err)
	require.Len(t, points, 3)
	assert.InDelta(t, 0.8, points[0].PassRate, 1e-9)
	assert.InDelta(t, 1.0, points[1].PassRate, 1e-9)
	assert.Zero(t, points[2].PassRate)
}

func TestPassRateSeriesSkipsUnfinishedScans(t *testing.T) {
	agg, store, project := newTestAggregator(t)
	completedScan(t, store, project.ID, 8, 2)

	running := &models.Scan{ProjectID: project.ID, ScanType: "upload", Status: models.ScanStatusRunning}
	require.NoError(t, store.CreateScan(running))

	points, err := agg.PassRateSeries(project.ID, time.Now().Add(-time.Hour))
	require.NoError(t, err)
	assert.Len(t, points, 1)
}

func TestDailyTrendZeroFillsGapDays(t *testing.T) {
	agg, store, project := newTestAggregator(t)
	completedScan(t, store, project.ID, 6, 4)

	trend, err := agg.DailyTrend(project.ID, 7)
	require.NoError(t, err)
	require.Len(t, trend, 7)

	today := time.Now().Format("2006-01-02")
	for _, day := range trend[:6] {
		assert.Zero(t, day.Scans, "day %s", day.Date)
		assert.Zero(t, day.PassRate, "day %s", day.Date)
	}
	last := trend[6]
	assert.Equal(t, today, last.Date)
	assert.Equal(t, 1, last.Scans)
	assert.InDelta(t, 0.6, last.PassRate, 1e-9)
}

func TestBuildOverview(t *testing.T) {
	agg, store, project := newTestAggregator(t)
	scan := completedScan(t, store, project.ID, 5, 1)
	openFinding(t, store, project.ID, scan.ID, "CKV_AWS_20", models.SeverityHigh)

	archived := &models.Project{Name: "retired", Framework: "terraform", Status: models.ProjectStatusArchived}
	require.NoError(t, store.CreateProject(archived))

	ov, err := agg.BuildOverview(5)
	require.NoError(t, err)
	assert.Equal(t, 2, ov.Projects)
	assert.Equal(t, 1, ov.ActiveProjects)
	assert.Equal(t, 1, ov.TotalScans)
	assert.Equal(t, 1, ov.OpenFindings)
	assert.Equal(t, 1, ov.ByProject[project.ID])
	assert.Equal(t, 1, ov.BySeverity[models.SeverityHigh])
	require.Len(t, ov.RecentScans, 1)
}
