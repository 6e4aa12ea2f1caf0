package notify

import (
	"time"

	"github.com/iacguard/iacguard/internal/reconcile"
	"github.com/iacguard/iacguard/pkg/models"
)

// Decision is one firing verdict for a notification type, with the reason
// kept for the audit trail and for logging why nothing fired.
type Decision struct {
	Type       string
	Fire       bool
	Suppressed bool
	Reason     string
}

// Evaluator applies a project's thresholds to a reconciliation outcome.
// It is pure: persistence and delivery belong to the Notifier.
type Evaluator struct {
	now func() time.Time
}

func NewEvaluator() *Evaluator {
	return &Evaluator{now: time.Now}
}

// Evaluate decides which notifications a completed reconciliation should
// emit. Quiet hours suppress critical alerts only; summaries are periodic
// and always pass through.
func (e *Evaluator) Evaluate(result *reconcile.Result, settings *models.NotificationSettings) []Decision {
	decisions := []Decision{
		e.evaluateCritical(result, settings),
		e.evaluateSummary(result, settings),
	}
	return decisions
}

func (e *Evaluator) evaluateCritical(result *reconcile.Result, settings *models.NotificationSettings) Decision {
	d := Decision{Type: models.NotificationTypeCritical}
	if !settings.CriticalImmediateEnabled {
		d.Reason = "critical alerts disabled"
		return d
	}
	newCritical := result.NewBySeverity[models.SeverityCritical]
	newHigh := result.NewBySeverity[models.SeverityHigh]
	// a zero threshold disables the trigger, it never means "fire always"
	switch {
	case settings.CriticalThreshold > 0 && newCritical >= settings.CriticalThreshold:
		d.Fire = true
		d.Reason = "new critical findings at or above threshold"
	case settings.HighThreshold > 0 && newHigh >= settings.HighThreshold:
		d.Fire = true
		d.Reason = "new high findings at or above threshold"
	default:
		d.Reason = "thresholds not reached"
		return d
	}
	if InQuietHours(settings, e.now()) {
		d.Suppressed = true
		d.Reason += " (suppressed by quiet hours)"
	}
	return d
}

func (e *Evaluator) evaluateSummary(result *reconcile.Result, settings *models.NotificationSettings) Decision {
	d := Decision{Type: models.NotificationTypeSummary}
	if !settings.ScanSummaryEnabled {
		d.Reason = "scan summaries disabled"
		return d
	}
	sendWhen := settings.SummarySendWhen
	if sendWhen == "" {
		sendWhen = models.SummarySendHasChanges
	}
	switch sendWhen {
	case models.SummarySendAlways:
		d.Fire = true
		d.Reason = "summary policy: always"
	case models.SummarySendHasChanges:
		if result.New > 0 || (settings.FixedThreshold > 0 && result.Fixed >= settings.FixedThreshold) {
			d.Fire = true
			d.Reason = "scan produced changes"
		} else {
			d.Reason = "no changes to report"
		}
	case models.SummarySendCriticalHigh:
		if result.NewBySeverity[models.SeverityCritical] > 0 || result.NewBySeverity[models.SeverityHigh] > 0 {
			d.Fire = true
			d.Reason = "new critical or high findings"
		} else {
			d.Reason = "no new critical or high findings"
		}
	default:
		d.Reason = "unknown summary policy: " + sendWhen
	}
	return d
}

// EvaluateFailure decides whether a failed scan should alert.
func (e *Evaluator) EvaluateFailure(settings *models.NotificationSettings) Decision {
	d := Decision{Type: models.NotificationTypeFailed}
	if !settings.ScanFailedEnabled {
		d.Reason = "failure alerts disabled"
		return d
	}
	d.Fire = true
	d.Reason = "scan failed"
	return d
}
