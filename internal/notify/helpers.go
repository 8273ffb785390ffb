package notify

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"campusnotify/internal/common"
)

var typeIcons = map[common.NotificationType]string{
	common.PaymentReceivedType:     "💰",
	common.OrderUpdateType:         "📦",
	common.EventReminderType:       "📅",
	common.RewardRedeemedType:      "🎁",
	common.AchievementUnlockedType: "🏆",
	common.SocialActivityType:      "👥",
	common.SecurityAlertType:       "🔒",
	common.SystemType:              "⚙️",
}

var priorityColors = map[common.Priority]string{
	common.PriorityLow:    "text-gray-500",
	common.PriorityMedium: "text-blue-500",
	common.PriorityHigh:   "text-orange-500",
	common.PriorityUrgent: "text-red-500",
}

// IconFor maps a notification type to a display glyph. Unknown types get the
// generic bell.
func IconFor(t common.NotificationType) string {
	if icon, ok := typeIcons[t]; ok {
		return icon
	}
	return "🔔"
}

// ColorClassFor maps a priority to a display hint, defaulting to the
// medium-priority hint.
func ColorClassFor(p common.Priority) string {
	if c, ok := priorityColors[p]; ok {
		return c
	}
	return priorityColors[common.PriorityMedium]
}

// RelativeTime renders a timestamp relative to now: "Just now" under an hour,
// "Nh ago" under a day, "Yesterday" under two, a plain date after that.
func RelativeTime(t time.Time) string {
	return relativeTimeAt(t, time.Now())
}

func relativeTimeAt(t, now time.Time) string {
	diff := now.Sub(t)
	switch {
	case diff < time.Hour: // future timestamps land here too
		return "Just now"
	case diff < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(diff.Hours()))
	case diff < 48*time.Hour:
		return "Yesterday"
	default:
		return t.Format("Jan 2, 2006")
	}
}

// ShouldDeliver reports whether an in-app notification passes the user's
// delivery preferences. A type without an explicit false entry is deliverable.
func ShouldDeliver(n common.Notification, prefs common.Preferences) bool {
	if !prefs.InApp.Enabled {
		return false
	}
	if enabled, ok := prefs.InApp.Types[n.Type]; ok && !enabled {
		return false
	}
	return true
}

// IsQuietNow reports whether the current local time falls inside the
// configured quiet-hours window.
func IsQuietNow(q common.QuietHours) bool {
	return isQuietAt(q, time.Now())
}

func isQuietAt(q common.QuietHours, now time.Time) bool {
	if !q.Enabled {
		return false
	}
	start, ok := parseClock(q.StartTime)
	if !ok {
		return false
	}
	end, ok := parseClock(q.EndTime)
	if !ok {
		return false
	}
	cur := now.Hour()*60 + now.Minute()
	if start <= end {
		return cur >= start && cur <= end
	}
	// Window wraps midnight.
	return cur >= start || cur <= end
}

// parseClock converts "HH:MM" to minutes since midnight.
func parseClock(s string) (int, bool) {
	parts := strings.SplitN(s, ":", 2)
	if len(parts) != 2 {
		return 0, false
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 {
		return 0, false
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return 0, false
	}
	return h*60 + m, true
}
