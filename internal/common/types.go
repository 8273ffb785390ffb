package common

import (
	"time"
)

type NotificationType string

const (
	PaymentReceivedType     NotificationType = "payment_received"
	OrderUpdateType         NotificationType = "order_update"
	EventReminderType       NotificationType = "event_reminder"
	RewardRedeemedType      NotificationType = "reward_redeemed"
	AchievementUnlockedType NotificationType = "achievement_unlocked"
	SocialActivityType      NotificationType = "social_activity"
	SecurityAlertType       NotificationType = "security_alert"
	SystemType              NotificationType = "system"
)

type Category string

const (
	CategoryPayment     Category = "payment"
	CategoryEvent       Category = "event"
	CategoryOrder       Category = "order"
	CategorySystem      Category = "system"
	CategorySocial      Category = "social"
	CategorySecurity    Category = "security"
	CategoryAchievement Category = "achievement"
)

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

type Metadata map[string]interface{}

// Notification is the canonical client-side record. The id is server-assigned
// except for ephemeral local notifications, which carry a client-generated id
// and are never sent to any endpoint.
type Notification struct {
	ID          string           `json:"id"`
	Type        NotificationType `json:"type"`
	Title       string           `json:"title"`
	Message     string           `json:"message"`
	Category    Category         `json:"category"`
	Priority    Priority         `json:"priority"`
	Read        bool             `json:"read"`
	ReadAt      *time.Time       `json:"readAt,omitempty"`
	IsImportant bool             `json:"isImportant"`
	ActionURL   string           `json:"actionUrl,omitempty"`
	ActionText  string           `json:"actionText,omitempty"`
	CreatedAt   time.Time        `json:"createdAt"`
	Data        Metadata         `json:"data,omitempty"`
}

type Stats struct {
	Total      int              `json:"total"`
	Unread     int              `json:"unread"`
	Important  int              `json:"important"`
	ByCategory map[Category]int `json:"byCategory,omitempty"`
}

type FrequencyType string

const (
	FrequencyInstant FrequencyType = "instant"
	FrequencyDigest  FrequencyType = "digest"
	FrequencyWeekly  FrequencyType = "weekly"
)

// Preferences is the per-user delivery configuration. Digest/weekly fields
// are preserved verbatim even when the matching frequency mode is inactive.
type Preferences struct {
	InApp      InAppPreferences `json:"inApp"`
	Push       PushPreferences  `json:"push"`
	Frequency  Frequency        `json:"frequency"`
	QuietHours QuietHours       `json:"quietHours"`
}

type InAppPreferences struct {
	Enabled bool                      `json:"enabled"`
	Types   map[NotificationType]bool `json:"types,omitempty"`
}

// Push delivery is disabled in this system; the switch is carried so the
// preferences round-trip stays lossless.
type PushPreferences struct {
	Enabled bool `json:"enabled"`
}

type Frequency struct {
	Type       FrequencyType `json:"type"`
	DigestTime string        `json:"digestTime,omitempty"` // "HH:MM"
	WeeklyDay  string        `json:"weeklyDay,omitempty"`
}

// QuietHours times are "HH:MM" local time. A start after the end means the
// window wraps midnight.
type QuietHours struct {
	Enabled   bool   `json:"enabled"`
	StartTime string `json:"startTime"`
	EndTime   string `json:"endTime"`
}

func DefaultPreferences() Preferences {
	return Preferences{
		InApp: InAppPreferences{Enabled: true},
		Push:  PushPreferences{Enabled: false},
		Frequency: Frequency{
			Type:       FrequencyInstant,
			DigestTime: "09:00",
			WeeklyDay:  "monday",
		},
		QuietHours: QuietHours{
			Enabled:   false,
			StartTime: "22:00",
			EndTime:   "07:00",
		},
	}
}
