package rollup

import (
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/iacguard/iacguard/internal/storage"
	"github.com/iacguard/iacguard/pkg/models"
)

// Aggregator computes dashboard rollups over persisted scans and findings.
// All series are derived per request; nothing is cached across calls.
type Aggregator struct {
	store  *storage.Store
	logger *logrus.Logger
}

func NewAggregator(store *storage.Store, logger *logrus.Logger) *Aggregator {
	if logger == nil {
		logger = logrus.New()
	}
	return &Aggregator{store: store, logger: logger}
}

// SeverityHistogram counts currently-open findings per severity. projectID=0
// spans all projects. Every known severity appears in the result, zero or not,
// so chart axes stay stable.
func (a *Aggregator) SeverityHistogram(projectID uint) (map[models.Severity]int, error) {
	counts, err := a.store.CountOpenBySeverity(projectID)
	if err != nil {
		return nil, err
	}
	hist := make(map[models.Severity]int, len(models.Severities()))
	for _, sev := range models.Severities() {
		hist[sev] = counts[sev]
	}
	return hist, nil
}

// PassRatePoint is one scan's pass rate on the trend series.
type PassRatePoint struct {
	ScanID    uint      `json:"scan_id"`
	Timestamp time.Time `json:"timestamp"`
	PassRate  float64   `json:"pass_rate"`
	Total     int       `json:"total_checks"`
	Failed    int       `json:"failed_checks"`
}

// PassRateSeries returns per-scan pass rates for completed scans, ordered by
// time. Pass rate is per scan, never per finding; a scan with zero checks
// reports 0.
func (a *Aggregator) PassRateSeries(projectID uint, since time.Time) ([]PassRatePoint, error) {
	scans, err := a.store.ListCompletedScans(projectID, since)
	if err != nil {
		return nil, err
	}
	points := make([]PassRatePoint, 0, len(scans))
	for i := range scans {
		scan := &scans[i]
		points = append(points, PassRatePoint{
			ScanID:    scan.ID,
			Timestamp: scan.CreatedAt,
			PassRate:  scan.PassRate(),
			Total:     scan.TotalChecks,
			Failed:    scan.FailedChecks,
		})
	}
	return points, nil
}

// TrendDay is one calendar day on the daily trend.
type TrendDay struct {
	Date     string  `json:"date"`
	Scans    int     `json:"scans"`
	Failed   int     `json:"failed_checks"`
	Passed   int     `json:"passed_checks"`
	PassRate float64 `json:"pass_rate"`
}

// DailyTrend buckets completed scans into calendar days over the last `days`
// days. Days without activity are zero-filled, never interpolated, so gaps
// in scanning show as gaps and not as invented improvement.
func (a *Aggregator) DailyTrend(projectID uint, days int) ([]TrendDay, error) {
	if days <= 0 {
		days = 30
	}
	now := time.Now()
	start := now.AddDate(0, 0, -(days - 1))
	startDay := time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, start.Location())

	scans, err := a.store.ListCompletedScans(projectID, startDay)
	if err != nil {
		return nil, err
	}

	byDay := make(map[string]*TrendDay, days)
	trend := make([]TrendDay, 0, days)
	for d := 0; d < days; d++ {
		date := startDay.AddDate(0, 0, d).Format("2006-01-02")
		trend = append(trend, TrendDay{Date: date})
		byDay[date] = &trend[len(trend)-1]
	}

	for i := range scans {
		scan := &scans[i]
		day, ok := byDay[scan.CreatedAt.Format("2006-01-02")]
		if !ok {
			continue
		}
		day.Scans++
		day.Passed += scan.PassedChecks
		day.Failed += scan.FailedChecks
	}

	for i := range trend {
		day := &trend[i]
		total := day.Passed + day.Failed
		if total > 0 {
			day.PassRate = float64(day.Passed) / float64(total)
		}
	}
	return trend, nil
}

// ProjectOpenCounts returns open-finding counts keyed by project for the
// cross-project dashboard.
func (a *Aggregator) ProjectOpenCounts() (map[uint]int, error) {
	return a.store.CountOpenByProject()
}

// Overview is the dashboard landing payload.
type Overview struct {
	Projects       int                     `json:"projects"`
	ActiveProjects int                     `json:"active_projects"`
	TotalScans     int                     `json:"total_scans"`
	OpenFindings   int                     `json:"open_findings"`
	BySeverity     map[models.Severity]int `json:"by_severity"`
	ByProject      map[uint]int            `json:"by_project"`
	RecentScans    []models.Scan           `json:"recent_scans"`
}

// BuildOverview assembles the cross-project dashboard summary.
func (a *Aggregator) BuildOverview(recentLimit int) (*Overview, error) {
	if recentLimit <= 0 {
		recentLimit = 10
	}

	projects, err := a.store.ListProjects()
	if err != nil {
		return nil, fmt.Errorf("overview projects: %w", err)
	}
	hist, err := a.SeverityHistogram(0)
	if err != nil {
		return nil, fmt.Errorf("overview histogram: %w", err)
	}
	byProject, err := a.store.CountOpenByProject()
	if err != nil {
		return nil, fmt.Errorf("overview project counts: %w", err)
	}
	recent, err := a.store.ListScans(0, recentLimit)
	if err != nil {
		return nil, fmt.Errorf("overview recent scans: %w", err)
	}

	ov := &Overview{
		Projects:    len(projects),
		BySeverity:  hist,
		ByProject:   byProject,
		RecentScans: recent,
	}
	for i := range projects {
		if projects[i].Status == models.ProjectStatusActive {
			ov.ActiveProjects++
		}
	}
	for _, n := range byProject {
		ov.OpenFindings += n
	}

	var totalScans int64
	if err := a.store.DB().Model(&models.Scan{}).Count(&totalScans).Error; err != nil {
		return nil, fmt.Errorf("overview scan count: %w", err)
	}
	ov.TotalScans = int(totalScans)

	return ov, nil
}
