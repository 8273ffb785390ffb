package common

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTextCoercion(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"plain string", `"Payment received"`, "Payment received"},
		{"object with title", `{"title":"Order shipped","extra":1}`, "Order shipped"},
		{"object with message", `{"message":"Event starts soon"}`, "Event starts soon"},
		{"object with name", `{"name":"Career Fair"}`, "Career Fair"},
		{"title wins over message", `{"title":"A","message":"B"}`, "A"},
		{"object without text fields stringifies", `{"foo":"bar"}`, `{"foo":"bar"}`},
		{"empty object falls back", `{}`, "Notification"},
		{"null is empty", `null`, ""},
		{"number stringifies", `42`, "42"},
		{"array stringifies", `[1,2]`, "[1,2]"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Text(json.RawMessage(tt.raw)))
		})
	}
}

func TestNotificationUnmarshalNormalizesText(t *testing.T) {
	raw := `{
		"id": "n1",
		"type": "order_update",
		"title": {"title": "Your order"},
		"message": {"message": {"nested": true}},
		"category": "order",
		"priority": "high",
		"read": false,
		"createdAt": "2026-08-30T10:00:00Z"
	}`

	var n Notification
	require.NoError(t, json.Unmarshal([]byte(raw), &n))
	assert.Equal(t, "Your order", n.Title)
	// Nested object without extractable text stringifies.
	assert.JSONEq(t, `{"message":{"nested":true}}`, n.Message)
	assert.Equal(t, OrderUpdateType, n.Type)
}

func TestNotificationUnmarshalReadAtInvariant(t *testing.T) {
	t.Run("unread record drops stray readAt", func(t *testing.T) {
		raw := `{"id":"n1","title":"a","message":"b","read":false,"readAt":"2026-08-30T10:00:00Z","createdAt":"2026-08-30T09:00:00Z"}`
		var n Notification
		require.NoError(t, json.Unmarshal([]byte(raw), &n))
		assert.Nil(t, n.ReadAt)
	})

	t.Run("read record without readAt gets one", func(t *testing.T) {
		raw := `{"id":"n2","title":"a","message":"b","read":true,"createdAt":"2026-08-30T09:00:00Z"}`
		var n Notification
		require.NoError(t, json.Unmarshal([]byte(raw), &n))
		require.NotNil(t, n.ReadAt)
		assert.Equal(t, time.Date(2026, 8, 30, 9, 0, 0, 0, time.UTC), *n.ReadAt)
	})
}

func TestDefaultPreferences(t *testing.T) {
	prefs := DefaultPreferences()
	assert.True(t, prefs.InApp.Enabled)
	assert.False(t, prefs.Push.Enabled)
	assert.Equal(t, FrequencyInstant, prefs.Frequency.Type)
	assert.False(t, prefs.QuietHours.Enabled)
}
