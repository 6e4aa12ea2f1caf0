package notify

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iacguard/iacguard/internal/reconcile"
	"github.com/iacguard/iacguard/pkg/models"
)

func defaultSettings() *models.NotificationSettings {
	return &models.NotificationSettings{
		CriticalImmediateEnabled: true,
		CriticalThreshold:        1,
		HighThreshold:            5,
		ScanSummaryEnabled:       true,
		SummarySendWhen:          models.SummarySendHasChanges,
		FixedThreshold:           1,
		ScanFailedEnabled:        true,
	}
}

func resultWith(newCritical, newHigh, fixed int) *reconcile.Result {
	return &reconcile.Result{
		New:   newCritical + newHigh,
		Fixed: fixed,
		NewBySeverity: map[models.Severity]int{
			models.SeverityCritical: newCritical,
			models.SeverityHigh:     newHigh,
		},
	}
}

func decisionFor(t *testing.T, decisions []Decision, typ string) Decision {
	t.Helper()
	for _, d := range decisions {
		if d.Type == typ {
			return d
		}
	}
	t.Fatalf("no decision of type %s", typ)
	return Decision{}
}

func TestEvaluateCriticalThreshold(t *testing.T) {
	e := NewEvaluator()

	d := decisionFor(t, e.Evaluate(resultWith(1, 0, 0), defaultSettings()), models.NotificationTypeCritical)
	assert.True(t, d.Fire)
	assert.False(t, d.Suppressed)

	d = decisionFor(t, e.Evaluate(resultWith(0, 0, 0), defaultSettings()), models.NotificationTypeCritical)
	assert.False(t, d.Fire)
}

func TestEvaluateHighThreshold(t *testing.T) {
	e := NewEvaluator()

	d := decisionFor(t, e.Evaluate(resultWith(0, 4, 0), defaultSettings()), models.NotificationTypeCritical)
	assert.False(t, d.Fire, "below high threshold")

	d = decisionFor(t, e.Evaluate(resultWith(0, 5, 0), defaultSettings()), models.NotificationTypeCritical)
	assert.True(t, d.Fire)
}

func TestEvaluateZeroThresholdDisablesTrigger(t *testing.T) {
	e := NewEvaluator()

	s := defaultSettings()
	s.CriticalThreshold = 0
	s.HighThreshold = 0
	d := decisionFor(t, e.Evaluate(resultWith(3, 6, 0), s), models.NotificationTypeCritical)
	assert.False(t, d.Fire, "zero threshold disables the trigger")

	s = defaultSettings()
	s.FixedThreshold = 0
	d = decisionFor(t, e.Evaluate(resultWith(0, 0, 4), s), models.NotificationTypeSummary)
	assert.False(t, d.Fire, "fixed findings alone are not changes with the trigger off")
}

func TestEvaluateCriticalDisabled(t *testing.T) {
	e := NewEvaluator()
	s := defaultSettings()
	s.CriticalImmediateEnabled = false

	d := decisionFor(t, e.Evaluate(resultWith(3, 0, 0), s), models.NotificationTypeCritical)
	assert.False(t, d.Fire)
}

func TestEvaluateQuietHoursSuppressCriticalOnly(t *testing.T) {
	e := &Evaluator{now: func() time.Time {
		return time.Date(2026, 8, 17, 23, 0, 0, 0, time.UTC)
	}}
	s := defaultSettings()
	s.SummarySendWhen = models.SummarySendAlways
	s.QuietHoursEnabled = true
	s.QuietHoursStart = "22:00"
	s.QuietHoursEnd = "08:00"

	decisions := e.Evaluate(resultWith(2, 0, 0), s)

	critical := decisionFor(t, decisions, models.NotificationTypeCritical)
	assert.True(t, critical.Fire)
	assert.True(t, critical.Suppressed)

	summary := decisionFor(t, decisions, models.NotificationTypeSummary)
	assert.True(t, summary.Fire)
	assert.False(t, summary.Suppressed, "quiet hours only gate critical alerts")
}

func TestEvaluateSummaryAlways(t *testing.T) {
	e := NewEvaluator()
	s := defaultSettings()
	s.SummarySendWhen = models.SummarySendAlways

	d := decisionFor(t, e.Evaluate(resultWith(0, 0, 0), s), models.NotificationTypeSummary)
	assert.True(t, d.Fire)
}

func TestEvaluateSummaryHasChanges(t *testing.T) {
	e := NewEvaluator()

	d := decisionFor(t, e.Evaluate(resultWith(0, 1, 0), defaultSettings()), models.NotificationTypeSummary)
	assert.True(t, d.Fire, "new findings count as changes")

	d = decisionFor(t, e.Evaluate(resultWith(0, 0, 1), defaultSettings()), models.NotificationTypeSummary)
	assert.True(t, d.Fire, "fixed findings at threshold count as changes")

	d = decisionFor(t, e.Evaluate(resultWith(0, 0, 0), defaultSettings()), models.NotificationTypeSummary)
	assert.False(t, d.Fire)
}

func TestEvaluateSummaryCriticalHighOnly(t *testing.T) {
	e := NewEvaluator()
	s := defaultSettings()
	s.SummarySendWhen = models.SummarySendCriticalHigh

	d := decisionFor(t, e.Evaluate(resultWith(0, 1, 0), s), models.NotificationTypeSummary)
	assert.True(t, d.Fire)

	// changes without critical/high stay silent under this policy
	lowOnly := &reconcile.Result{New: 3, NewBySeverity: map[models.Severity]int{models.SeverityLow: 3}}
	d = decisionFor(t, e.Evaluate(lowOnly, s), models.NotificationTypeSummary)
	assert.False(t, d.Fire)
}

func TestEvaluateFailure(t *testing.T) {
	e := NewEvaluator()

	d := e.EvaluateFailure(defaultSettings())
	require.Equal(t, models.NotificationTypeFailed, d.Type)
	assert.True(t, d.Fire)

	s := defaultSettings()
	s.ScanFailedEnabled = false
	assert.False(t, e.EvaluateFailure(s).Fire)
}
