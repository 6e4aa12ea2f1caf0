package storage

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iacguard/iacguard/pkg/models"
	"github.com/iacguard/iacguard/pkg/utils"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)

	store, err := Open(Config{
		Driver: "sqlite",
		DSN:    filepath.Join(t.TempDir(), "test.db"),
	}, logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestAPITokenRoundtrip(t *testing.T) {
	store := newTestStore(t)

	plaintext, token, err := store.CreateAPIToken("ci-pipeline", 0)
	require.NoError(t, err)
	assert.True(t, len(plaintext) > 12)
	assert.Equal(t, plaintext[:12], token.Prefix)
	assert.NotContains(t, token.TokenHash, plaintext, "plaintext must never be stored")

	verified, err := store.VerifyAPIToken(plaintext)
	require.NoError(t, err)
	assert.Equal(t, token.ID, verified.ID)

	_, err = store.VerifyAPIToken("igd_definitely-not-a-token")
	assert.Error(t, err)
	_, err = store.VerifyAPIToken("short")
	assert.Error(t, err)
}

func TestAPITokenExpiry(t *testing.T) {
	store := newTestStore(t)

	plaintext, _, err := store.CreateAPIToken("short-lived", time.Nanosecond)
	require.NoError(t, err)

	time.Sleep(time.Millisecond)
	_, err = store.VerifyAPIToken(plaintext)
	assert.Error(t, err)
}

func TestAPITokenRevoke(t *testing.T) {
	store := newTestStore(t)

	plaintext, token, err := store.CreateAPIToken("to-revoke", 0)
	require.NoError(t, err)
	require.NoError(t, store.RevokeAPIToken(token.ID))

	_, err = store.VerifyAPIToken(plaintext)
	assert.Error(t, err)
	assert.ErrorIs(t, store.RevokeAPIToken(token.ID), ErrNotFound)
}

func fileVersion(projectID uint, uploadID, path, content string) *models.FileVersion {
	return &models.FileVersion{
		UploadID:    uploadID,
		ProjectID:   projectID,
		FilePath:    path,
		Content:     content,
		ContentHash: utils.SHA256HashBytes([]byte(content)),
	}
}

func TestAppendFileVersionNumbering(t *testing.T) {
	store := newTestStore(t)

	v1 := fileVersion(1, "up-1", "main.tf", "a")
	require.NoError(t, store.AppendFileVersion(v1))
	assert.Equal(t, 1, v1.VersionNumber)

	v2 := fileVersion(1, "up-1", "main.tf", "b")
	require.NoError(t, store.AppendFileVersion(v2))
	assert.Equal(t, 2, v2.VersionNumber)

	// identical content is a no-op, not a new version
	dup := fileVersion(1, "up-1", "main.tf", "b")
	require.NoError(t, store.AppendFileVersion(dup))

	history, err := store.FileVersionHistory("up-1", "main.tf")
	require.NoError(t, err)
	assert.Len(t, history, 2)

	// a different file starts its own sequence
	other := fileVersion(1, "up-1", "db.tf", "c")
	require.NoError(t, store.AppendFileVersion(other))
	assert.Equal(t, 1, other.VersionNumber)

	files, err := store.ListUploadFiles("up-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"db.tf", "main.tf"}, files)
}

func TestGetFileVersion(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.AppendFileVersion(fileVersion(1, "up-1", "main.tf", "a")))

	fv, err := store.GetFileVersion("up-1", "main.tf", 1)
	require.NoError(t, err)
	assert.Equal(t, "a", fv.Content)

	_, err = store.GetFileVersion("up-1", "main.tf", 9)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRecordScanErrorKeepsStatus(t *testing.T) {
	store := newTestStore(t)

	scan := &models.Scan{ProjectID: 1, ScanType: "upload", Status: models.ScanStatusCompleted}
	require.NoError(t, store.CreateScan(scan))

	require.NoError(t, store.RecordScanError(scan.ID, "reconciliation failed: lock timeout"))

	after, err := store.GetScan(scan.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ScanStatusCompleted, after.Status, "post-completion errors never repaint the scan as failed")
	assert.Equal(t, "reconciliation failed: lock timeout", after.ErrorMessage)

	assert.ErrorIs(t, store.RecordScanError(9999, "x"), ErrNotFound)
}

func TestRecordNotificationDedup(t *testing.T) {
	store := newTestStore(t)
	scanID := uint(7)

	entry := func() *models.NotificationHistory {
		return &models.NotificationHistory{
			ProjectID:        1,
			ScanID:           &scanID,
			NotificationType: models.NotificationTypeCritical,
			Subject:          "CRITICAL ALERT",
			Status:           models.NotificationStatusSent,
		}
	}
	require.NoError(t, store.RecordNotification(entry()))
	require.NoError(t, store.RecordNotification(entry()))

	// a different type for the same scan still records
	summary := entry()
	summary.NotificationType = models.NotificationTypeSummary
	require.NoError(t, store.RecordNotification(summary))

	history, err := store.ListNotificationHistory(1, 0)
	require.NoError(t, err)
	assert.Len(t, history, 2)
}

func TestRecordNotificationWithoutScanAlwaysAppends(t *testing.T) {
	store := newTestStore(t)

	weekly := func() *models.NotificationHistory {
		return &models.NotificationHistory{
			ProjectID:        1,
			NotificationType: models.NotificationTypeWeekly,
			Subject:          "Weekly summary",
			Status:           models.NotificationStatusSent,
		}
	}
	require.NoError(t, store.RecordNotification(weekly()))
	require.NoError(t, store.RecordNotification(weekly()))

	history, err := store.ListNotificationHistory(1, 0)
	require.NoError(t, err)
	assert.Len(t, history, 2)
}

func TestNotificationSettingsDefaults(t *testing.T) {
	store := newTestStore(t)

	settings, err := store.NotificationSettingsFor(3)
	require.NoError(t, err)
	assert.Equal(t, uint(3), settings.ProjectID)
	assert.True(t, settings.CriticalImmediateEnabled)
	assert.Equal(t, 1, settings.CriticalThreshold)
	assert.Equal(t, 5, settings.HighThreshold)
	assert.Equal(t, models.SummarySendHasChanges, settings.SummarySendWhen)

	// second read returns the same row, not a new one
	again, err := store.NotificationSettingsFor(3)
	require.NoError(t, err)
	assert.Equal(t, settings.ID, again.ID)
}
