package notify

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"

	"github.com/iacguard/iacguard/internal/reconcile"
	"github.com/iacguard/iacguard/internal/storage"
	"github.com/iacguard/iacguard/pkg/models"
)

func newTestNotifier(t *testing.T) (*Notifier, *storage.Store, *models.Project, *models.Scan) {
	t.Helper()
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)

	store, err := storage.Open(storage.Config{
		Driver: "sqlite",
		DSN:    filepath.Join(t.TempDir(), "test.db"),
	}, logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	project := &models.Project{Name: "notify-project", Framework: "terraform"}
	require.NoError(t, store.CreateProject(project))
	scan := &models.Scan{ProjectID: project.ID, ScanType: "upload", Status: models.ScanStatusCompleted}
	require.NoError(t, store.CreateScan(scan))

	notifier := NewNotifier(store, NewMailer(MailConfig{}, logger), nil, logger)
	return notifier, store, project, scan
}

func withRecipients(t *testing.T, store *storage.Store, projectID uint) {
	t.Helper()
	settings, err := store.NotificationSettingsFor(projectID)
	require.NoError(t, err)
	addrs := datatypes.JSON(`["sec@example.com"]`)
	settings.CriticalRecipients = addrs
	settings.SummaryRecipients = addrs
	settings.WeeklyRecipients = addrs
	require.NoError(t, store.SaveNotificationSettings(settings))
}

func TestProcessResultRecordsHistoryOnce(t *testing.T) {
	notifier, store, project, scan := newTestNotifier(t)
	withRecipients(t, store, project.ID)

	result := &reconcile.Result{
		ProjectID: project.ID,
		ScanID:    scan.ID,
		New:       2,
		NewBySeverity: map[models.Severity]int{
			models.SeverityCritical: 2,
		},
	}
	notifier.ProcessResult(project, scan, result)
	// retrying the same scan must not duplicate the audit trail
	notifier.ProcessResult(project, scan, result)

	history, err := store.ListNotificationHistory(project.ID, 0)
	require.NoError(t, err)
	require.Len(t, history, 2)

	types := map[string]models.NotificationHistory{}
	for _, h := range history {
		types[h.NotificationType] = h
	}
	critical, ok := types[models.NotificationTypeCritical]
	require.True(t, ok)
	assert.Equal(t, models.NotificationStatusSent, critical.Status)
	assert.Equal(t, 2, critical.CriticalCount)
	assert.Contains(t, critical.Subject, "CRITICAL ALERT")

	summary, ok := types[models.NotificationTypeSummary]
	require.True(t, ok)
	assert.Equal(t, 2, summary.NewCount)
}

func TestProcessResultQuietHoursQueuesCritical(t *testing.T) {
	notifier, store, project, scan := newTestNotifier(t)
	withRecipients(t, store, project.ID)

	settings, err := store.NotificationSettingsFor(project.ID)
	require.NoError(t, err)
	settings.QuietHoursEnabled = true
	require.NoError(t, store.SaveNotificationSettings(settings))

	notifier.evaluator = &Evaluator{now: func() time.Time {
		return time.Date(2026, 8, 17, 23, 0, 0, 0, time.UTC)
	}}

	notifier.ProcessResult(project, scan, &reconcile.Result{
		ProjectID:     project.ID,
		ScanID:        scan.ID,
		New:           1,
		NewBySeverity: map[models.Severity]int{models.SeverityCritical: 1},
	})

	history, err := store.ListNotificationHistory(project.ID, 0)
	require.NoError(t, err)
	for _, h := range history {
		if h.NotificationType == models.NotificationTypeCritical {
			assert.Equal(t, models.NotificationStatusQueued, h.Status)
			return
		}
	}
	t.Fatal("no critical history entry recorded")
}

func TestProcessResultNoRecipients(t *testing.T) {
	notifier, store, project, scan := newTestNotifier(t)

	notifier.ProcessResult(project, scan, &reconcile.Result{
		ProjectID:     project.ID,
		ScanID:        scan.ID,
		New:           1,
		NewBySeverity: map[models.Severity]int{models.SeverityCritical: 1},
	})

	history, err := store.ListNotificationHistory(project.ID, 0)
	require.NoError(t, err)
	require.NotEmpty(t, history)
	for _, h := range history {
		assert.Equal(t, models.NotificationStatusFailed, h.Status)
		assert.Equal(t, "no recipients configured", h.ErrorMessage)
	}
}

func TestProcessFailure(t *testing.T) {
	notifier, store, project, scan := newTestNotifier(t)
	withRecipients(t, store, project.ID)
	scan.ErrorMessage = "scanner exploded"

	notifier.ProcessFailure(project, scan)

	history, err := store.ListNotificationHistory(project.ID, 0)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, models.NotificationTypeFailed, history[0].NotificationType)
	assert.Contains(t, history[0].Subject, "Scan Failed")
}

func TestSendWeeklySummaries(t *testing.T) {
	notifier, store, project, _ := newTestNotifier(t)
	withRecipients(t, store, project.ID)

	// a Monday whose slot is safely in the past relative to the recorded
	// sent_at timestamps
	monday := time.Date(2020, 1, 6, 9, 30, 0, 0, time.UTC)
	notifier.SendWeeklySummaries(monday)
	// the slot is already satisfied; a second tick must not resend
	notifier.SendWeeklySummaries(monday.Add(time.Minute))

	history, err := store.ListNotificationHistory(project.ID, 0)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, models.NotificationTypeWeekly, history[0].NotificationType)
	assert.Contains(t, history[0].Subject, "Weekly Security Summary")
}

func TestDecodeRecipientsFiltersJunk(t *testing.T) {
	raw := datatypes.JSON(`["ops@example.com", "not-an-address", "sec@example.com"]`)
	assert.Equal(t, []string{"ops@example.com", "sec@example.com"}, decodeRecipients(raw))
	assert.Nil(t, decodeRecipients(nil))
	assert.Nil(t, decodeRecipients(datatypes.JSON(`{"broken"`)))
}
