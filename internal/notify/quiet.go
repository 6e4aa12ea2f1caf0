package notify

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/iacguard/iacguard/pkg/models"
)

// parseClock converts "HH:MM" to a minute-of-day offset.
func parseClock(s string) (int, error) {
	parts := strings.SplitN(strings.TrimSpace(s), ":", 2)
	if len(parts) != 2 {
		return 0, fmt.Errorf("invalid clock value %q", s)
	}
	hour, err := strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return 0, fmt.Errorf("invalid hour in %q", s)
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return 0, fmt.Errorf("invalid minute in %q", s)
	}
	return hour*60 + minute, nil
}

// InQuietHours reports whether t falls inside the settings' quiet window.
// The window is half-open [start, end) in minute-of-day terms; an overnight
// window such as 22:00-08:00 wraps midnight. Unparseable bounds disable
// suppression rather than silently eating alerts.
func InQuietHours(settings *models.NotificationSettings, t time.Time) bool {
	if settings == nil || !settings.QuietHoursEnabled {
		return false
	}
	start, err := parseClock(settings.QuietHoursStart)
	if err != nil {
		return false
	}
	end, err := parseClock(settings.QuietHoursEnd)
	if err != nil {
		return false
	}
	if start == end {
		return false
	}
	now := t.Hour()*60 + t.Minute()
	if start < end {
		return now >= start && now < end
	}
	// overnight wrap: in-window means after start or before end
	return now >= start || now < end
}

// weeklyDays maps the stored day name to time.Weekday.
var weeklyDays = map[string]time.Weekday{
	"sunday":    time.Sunday,
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
}

// WeeklyDue reports whether a weekly summary is due at t given the settings
// and the time the last one was sent. Due means: configured weekday, at or
// past the configured time, and not already sent since that slot opened.
func WeeklyDue(settings *models.NotificationSettings, t, lastSent time.Time) bool {
	if settings == nil || !settings.WeeklySummaryEnabled {
		return false
	}
	day, ok := weeklyDays[strings.ToLower(settings.WeeklyDay)]
	if !ok {
		day = time.Monday
	}
	at, err := parseClock(settings.WeeklyTime)
	if err != nil {
		at = 9 * 60
	}
	if t.Weekday() != day {
		return false
	}
	if t.Hour()*60+t.Minute() < at {
		return false
	}
	slot := time.Date(t.Year(), t.Month(), t.Day(), at/60, at%60, 0, 0, t.Location())
	return lastSent.Before(slot)
}
