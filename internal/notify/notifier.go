package notify

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/datatypes"

	"github.com/iacguard/iacguard/internal/reconcile"
	"github.com/iacguard/iacguard/internal/storage"
	"github.com/iacguard/iacguard/pkg/models"
	"github.com/iacguard/iacguard/pkg/utils"
)

// Notifier evaluates trigger decisions after each reconciliation, delivers
// the mail, and records every firing decision in NotificationHistory. A
// notification failure is logged and recorded but never propagated into the
// scan pipeline.
type Notifier struct {
	store     *storage.Store
	evaluator *Evaluator
	mailer    *Mailer
	metrics   *utils.MetricsCollector
	logger    *logrus.Logger
}

func NewNotifier(store *storage.Store, mailer *Mailer, metrics *utils.MetricsCollector, logger *logrus.Logger) *Notifier {
	if logger == nil {
		logger = logrus.New()
	}
	return &Notifier{
		store:     store,
		evaluator: NewEvaluator(),
		mailer:    mailer,
		metrics:   metrics,
		logger:    logger,
	}
}

// ProcessResult runs the trigger evaluation for one completed reconciliation.
func (n *Notifier) ProcessResult(project *models.Project, scan *models.Scan, result *reconcile.Result) {
	settings, err := n.store.NotificationSettingsFor(project.ID)
	if err != nil {
		n.logger.Errorf("Failed to load notification settings for project %d: %v", project.ID, err)
		return
	}

	for _, decision := range n.evaluator.Evaluate(result, settings) {
		if !decision.Fire {
			n.logger.WithFields(logrus.Fields{
				"project_id": project.ID,
				"scan_id":    scan.ID,
				"type":       decision.Type,
			}).Debugf("Notification not fired: %s", decision.Reason)
			continue
		}
		n.dispatch(project, scan, result, settings, decision)
	}
}

// ProcessFailure alerts on a failed scan run.
func (n *Notifier) ProcessFailure(project *models.Project, scan *models.Scan) {
	settings, err := n.store.NotificationSettingsFor(project.ID)
	if err != nil {
		n.logger.Errorf("Failed to load notification settings for project %d: %v", project.ID, err)
		return
	}
	decision := n.evaluator.EvaluateFailure(settings)
	if !decision.Fire {
		return
	}
	n.dispatch(project, scan, &reconcile.Result{ProjectID: project.ID, ScanID: scan.ID}, settings, decision)
}

// SendWeeklySummaries emits the weekly digest for every project whose slot
// has opened since the last send. Intended to be driven by a ticker.
func (n *Notifier) SendWeeklySummaries(now time.Time) {
	projects, err := n.store.ListProjects()
	if err != nil {
		n.logger.Errorf("Weekly summary: failed to list projects: %v", err)
		return
	}
	for i := range projects {
		project := &projects[i]
		if project.Status != models.ProjectStatusActive {
			continue
		}
		settings, err := n.store.NotificationSettingsFor(project.ID)
		if err != nil {
			n.logger.Errorf("Weekly summary: settings for project %d: %v", project.ID, err)
			continue
		}
		lastSent, err := n.lastSentAt(project.ID, models.NotificationTypeWeekly)
		if err != nil {
			n.logger.Errorf("Weekly summary: history for project %d: %v", project.ID, err)
			continue
		}
		if !WeeklyDue(settings, now, lastSent) {
			continue
		}
		n.sendWeekly(project, settings)
	}
}

func (n *Notifier) dispatch(project *models.Project, scan *models.Scan, result *reconcile.Result, settings *models.NotificationSettings, decision Decision) {
	recipients := n.recipientsFor(settings, decision.Type)
	subject, body := n.render(project, scan, result, decision)

	history := &models.NotificationHistory{
		ProjectID:        project.ID,
		ScanID:           &scan.ID,
		NotificationType: decision.Type,
		Subject:          subject,
		Recipients:       encodeRecipients(recipients),
		Status:           models.NotificationStatusSent,
		CriticalCount:    result.NewBySeverity[models.SeverityCritical],
		HighCount:        result.NewBySeverity[models.SeverityHigh],
		NewCount:         result.New,
		FixedCount:       result.Fixed,
	}

	switch {
	case decision.Suppressed:
		// quiet hours: queued, never silently lost
		history.Status = models.NotificationStatusQueued
		n.logger.WithFields(logrus.Fields{
			"project_id": project.ID,
			"scan_id":    scan.ID,
			"type":       decision.Type,
		}).Infof("Notification queued: %s", decision.Reason)
	case len(recipients) == 0:
		history.Status = models.NotificationStatusFailed
		history.ErrorMessage = "no recipients configured"
		n.logger.Warnf("Notification %s for project %d has no recipients", decision.Type, project.ID)
	default:
		if err := n.mailer.Send(recipients, subject, body); err != nil {
			history.Status = models.NotificationStatusFailed
			history.ErrorMessage = utils.TruncateString(err.Error(), 1000)
			n.logger.Errorf("Notification %s for project %d failed: %v", decision.Type, project.ID, err)
		}
	}

	if n.metrics != nil {
		n.metrics.Notifications.WithLabelValues(decision.Type, history.Status).Inc()
	}
	if err := n.store.RecordNotification(history); err != nil {
		n.logger.Errorf("Failed to record notification history: %v", err)
	}
}

func (n *Notifier) sendWeekly(project *models.Project, settings *models.NotificationSettings) {
	counts, err := n.store.CountOpenBySeverity(project.ID)
	if err != nil {
		n.logger.Errorf("Weekly summary: counts for project %d: %v", project.ID, err)
		return
	}
	recipients := n.recipientsFor(settings, models.NotificationTypeWeekly)
	subject := fmt.Sprintf("Weekly Security Summary: %q", project.Name)

	var b strings.Builder
	fmt.Fprintf(&b, "Weekly security summary for project %q\n\nOpen findings by severity:\n", project.Name)
	for _, sev := range models.Severities() {
		fmt.Fprintf(&b, "  %-10s %d\n", sev, counts[sev])
	}

	history := &models.NotificationHistory{
		ProjectID:        project.ID,
		NotificationType: models.NotificationTypeWeekly,
		Subject:          subject,
		Recipients:       encodeRecipients(recipients),
		Status:           models.NotificationStatusSent,
		CriticalCount:    counts[models.SeverityCritical],
		HighCount:        counts[models.SeverityHigh],
	}
	if len(recipients) == 0 {
		history.Status = models.NotificationStatusFailed
		history.ErrorMessage = "no recipients configured"
	} else if err := n.mailer.Send(recipients, subject, b.String()); err != nil {
		history.Status = models.NotificationStatusFailed
		history.ErrorMessage = utils.TruncateString(err.Error(), 1000)
		n.logger.Errorf("Weekly summary for project %d failed: %v", project.ID, err)
	}
	if n.metrics != nil {
		n.metrics.Notifications.WithLabelValues(models.NotificationTypeWeekly, history.Status).Inc()
	}
	if err := n.store.RecordNotification(history); err != nil {
		n.logger.Errorf("Failed to record weekly notification: %v", err)
	}
}

// SendTest delivers a test message so operators can verify their SMTP and
// recipient configuration without waiting for a scan.
func (n *Notifier) SendTest(project *models.Project) error {
	settings, err := n.store.NotificationSettingsFor(project.ID)
	if err != nil {
		return err
	}
	recipients := decodeRecipients(settings.SummaryRecipients)
	if len(recipients) == 0 {
		recipients = decodeRecipients(settings.CriticalRecipients)
	}
	if len(recipients) == 0 {
		return fmt.Errorf("no recipients configured for project %q", project.Name)
	}

	subject := fmt.Sprintf("Test Notification: %q", project.Name)
	body := fmt.Sprintf("This is a test notification for project %q. "+
		"If you are reading this, delivery is configured correctly.\n", project.Name)
	if err := n.mailer.Send(recipients, subject, body); err != nil {
		return err
	}

	history := &models.NotificationHistory{
		ProjectID:        project.ID,
		NotificationType: models.NotificationTypeSummary,
		Subject:          subject,
		Recipients:       encodeRecipients(recipients),
		Status:           models.NotificationStatusSent,
	}
	if err := n.store.RecordNotification(history); err != nil {
		n.logger.Errorf("Failed to record test notification: %v", err)
	}
	return nil
}

func (n *Notifier) render(project *models.Project, scan *models.Scan, result *reconcile.Result, decision Decision) (subject, body string) {
	switch decision.Type {
	case models.NotificationTypeCritical:
		critical := result.NewBySeverity[models.SeverityCritical]
		high := result.NewBySeverity[models.SeverityHigh]
		subject = fmt.Sprintf("CRITICAL ALERT: Project %q - %d critical, %d high new issues", project.Name, critical, high)
		body = fmt.Sprintf(
			"Scan #%d of project %q introduced %d critical and %d high severity findings.\n\n"+
				"New findings: %d\nFixed: %d\nStill open: %d\n\nReview them in the dashboard.\n",
			scan.ID, project.Name, critical, high, result.New, result.Fixed, result.StillOpen)
	case models.NotificationTypeFailed:
		subject = fmt.Sprintf("Scan Failed: %q - action required", project.Name)
		body = fmt.Sprintf("Scan #%d of project %q failed.\n\nError: %s\n", scan.ID, project.Name, scan.ErrorMessage)
	default:
		subject = fmt.Sprintf("Scan Complete: %q - %d fixed, %d new issues", project.Name, result.Fixed, result.New)
		body = fmt.Sprintf(
			"Scan #%d of project %q completed.\n\nNew findings: %d\nFixed: %d\nStill open: %d\nReopened: %d\n"+
				"Checks: %d passed / %d failed / %d total\n",
			scan.ID, project.Name, result.New, result.Fixed, result.StillOpen, result.Reopened,
			scan.PassedChecks, scan.FailedChecks, scan.TotalChecks)
	}
	return subject, body
}

func (n *Notifier) recipientsFor(settings *models.NotificationSettings, notificationType string) []string {
	switch notificationType {
	case models.NotificationTypeCritical, models.NotificationTypeFailed:
		return decodeRecipients(settings.CriticalRecipients)
	case models.NotificationTypeWeekly:
		return decodeRecipients(settings.WeeklyRecipients)
	default:
		return decodeRecipients(settings.SummaryRecipients)
	}
}

func (n *Notifier) lastSentAt(projectID uint, notificationType string) (time.Time, error) {
	entries, err := n.store.ListNotificationHistory(projectID, 50)
	if err != nil {
		return time.Time{}, err
	}
	for _, e := range entries {
		if e.NotificationType == notificationType && e.Status == models.NotificationStatusSent {
			return e.SentAt, nil
		}
	}
	return time.Time{}, nil
}

func decodeRecipients(raw datatypes.JSON) []string {
	if len(raw) == 0 {
		return nil
	}
	var out []string
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil
	}
	filtered := out[:0]
	for _, addr := range out {
		if strings.Contains(addr, "@") {
			filtered = append(filtered, addr)
		}
	}
	return filtered
}

func encodeRecipients(recipients []string) datatypes.JSON {
	if len(recipients) == 0 {
		return nil
	}
	raw, err := json.Marshal(recipients)
	if err != nil {
		return nil
	}
	return datatypes.JSON(raw)
}
