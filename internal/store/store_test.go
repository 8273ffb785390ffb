package store

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"campusnotify/internal/common"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const listBody = `{
	"notifications": [
		{"id":"n1","type":"order_update","title":"Order shipped","message":"On its way","category":"order","priority":"medium","read":false,"createdAt":"2026-08-30T10:00:00Z"},
		{"id":"n2","type":"payment_received","title":"Payment","message":"Received 50 pts","category":"payment","priority":"low","read":true,"readAt":"2026-08-30T09:05:00Z","createdAt":"2026-08-30T09:00:00Z"},
		{"id":"n1","type":"order_update","title":"Order shipped","message":"duplicate arrival","category":"order","priority":"medium","read":false,"createdAt":"2026-08-30T10:00:00Z"}
	],
	"unreadCount": 7,
	"total": 3,
	"page": 1,
	"totalPages": 1
}`

func newTestStore(t *testing.T, handler http.Handler) *Store {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return New(NewClient(srv.URL, func() string { return "test-token" }))
}

func listHandler(t *testing.T) *http.ServeMux {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/notifications", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(listBody))
	})
	return mux
}

func TestFetchReplacesAndDedupes(t *testing.T) {
	s := newTestStore(t, listHandler(t))

	res, err := s.Fetch(context.Background(), 1, 20)
	require.NoError(t, err)
	assert.Equal(t, 7, res.UnreadCount)

	list := s.Notifications()
	require.Len(t, list, 2, "duplicate ids must never be appended twice")
	assert.Equal(t, "n1", list[0].ID)
	assert.Equal(t, "On its way", list[0].Message, "first arrival wins")
	assert.Equal(t, "n2", list[1].ID)
}

func TestMarkReadPatchesAfterServerConfirms(t *testing.T) {
	mux := listHandler(t)
	mux.HandleFunc("PUT /api/notifications/n1/read", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"message":"marked as read"}`))
	})
	s := newTestStore(t, mux)
	_, err := s.Fetch(context.Background(), 1, 20)
	require.NoError(t, err)

	var order []string
	s.Subscribe(func(snap Snapshot) { order = append(order, "first") })
	s.Subscribe(func(snap Snapshot) { order = append(order, "second") })

	require.NoError(t, s.MarkRead(context.Background(), "n1"))

	list := s.Notifications()
	assert.True(t, list[0].Read)
	require.NotNil(t, list[0].ReadAt)
	assert.Equal(t, []string{"first", "second"}, order, "one notification per listener, in subscription order")
}

func TestMarkReadRejectionLeavesLocalStateAlone(t *testing.T) {
	mux := listHandler(t)
	mux.HandleFunc("PUT /api/notifications/n1/read", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte(`{"message":"not your notification"}`))
	})
	s := newTestStore(t, mux)
	_, err := s.Fetch(context.Background(), 1, 20)
	require.NoError(t, err)

	notified := 0
	s.Subscribe(func(Snapshot) { notified++ })

	err = s.MarkRead(context.Background(), "n1")
	require.Error(t, err)
	assert.Equal(t, "not your notification", err.Error())
	assert.False(t, s.Notifications()[0].Read, "mutation must not apply on failure")
	assert.Zero(t, notified)
}

func TestErrorWithoutMessageFieldIsGeneric(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("PUT /api/notifications/mark-all-read", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte("<html>boom</html>"))
	})
	s := newTestStore(t, mux)

	err := s.MarkAllRead(context.Background())
	require.Error(t, err)
	assert.Equal(t, genericNetworkError, err.Error())
}

func TestMarkAllReadIsIdempotent(t *testing.T) {
	mux := listHandler(t)
	mux.HandleFunc("PUT /api/notifications/mark-all-read", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"message":"ok"}`))
	})
	s := newTestStore(t, mux)
	_, err := s.Fetch(context.Background(), 1, 20)
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		require.NoError(t, s.MarkAllRead(context.Background()))
		for _, n := range s.Notifications() {
			assert.True(t, n.Read)
			assert.NotNil(t, n.ReadAt)
		}
	}
}

func TestDeleteRemovesRecord(t *testing.T) {
	mux := listHandler(t)
	mux.HandleFunc("DELETE /api/notifications/n1", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"message":"deleted"}`))
	})
	s := newTestStore(t, mux)
	_, err := s.Fetch(context.Background(), 1, 20)
	require.NoError(t, err)

	require.NoError(t, s.Delete(context.Background(), "n1"))
	list := s.Notifications()
	require.Len(t, list, 1)
	assert.Equal(t, "n2", list[0].ID)
}

func TestFilteredDoesNotMutateMainCollection(t *testing.T) {
	mux := listHandler(t)
	mux.HandleFunc("GET /api/notifications/filtered", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "false", r.URL.Query().Get("read"))
		assert.Equal(t, "order", r.URL.Query().Get("category"))
		w.Write([]byte(`{"notifications":[{"id":"x9","title":"other","message":"m","read":false,"createdAt":"2026-08-30T10:00:00Z"}]}`))
	})
	s := newTestStore(t, mux)
	_, err := s.Fetch(context.Background(), 1, 20)
	require.NoError(t, err)

	unread := false
	got, err := s.Filtered(context.Background(), FilterOptions{Read: &unread, Category: common.CategoryOrder})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "x9", got[0].ID)

	assert.Len(t, s.Notifications(), 2, "filtered queries must not touch the main collection")
}

func TestPreferenceUpdatesReplaceInMemoryObject(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("PUT /api/notifications/preferences/quiet-hours", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"preferences":{"inApp":{"enabled":true},"push":{"enabled":false},"frequency":{"type":"digest","digestTime":"08:00"},"quietHours":{"enabled":true,"startTime":"21:00","endTime":"08:00"}}}`))
	})
	s := newTestStore(t, mux)

	notified := 0
	s.Subscribe(func(Snapshot) { notified++ })

	err := s.UpdateQuietHours(context.Background(), common.QuietHours{Enabled: true, StartTime: "21:00", EndTime: "08:00"})
	require.NoError(t, err)

	prefs := s.Prefs()
	assert.True(t, prefs.QuietHours.Enabled)
	assert.Equal(t, "21:00", prefs.QuietHours.StartTime)
	assert.Equal(t, common.FrequencyDigest, prefs.Frequency.Type)
	assert.Equal(t, "08:00", prefs.Frequency.DigestTime, "inactive-mode fields are preserved")
	assert.Equal(t, 1, notified)
}

func TestUnsubscribeStopsNotifications(t *testing.T) {
	mux := listHandler(t)
	s := newTestStore(t, mux)

	calls := 0
	id := s.Subscribe(func(Snapshot) { calls++ })
	_, err := s.Fetch(context.Background(), 1, 20)
	require.NoError(t, err)
	s.Unsubscribe(id)
	_, err = s.Fetch(context.Background(), 1, 20)
	require.NoError(t, err)

	assert.Equal(t, 1, calls)
}
