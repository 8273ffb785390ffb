package devserver

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"campusnotify/internal/common"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestAPI(t *testing.T) (*Server, *httptest.Server, string) {
	t.Helper()
	srv := NewServer("test-secret")
	ts := httptest.NewServer(srv.Router())
	t.Cleanup(ts.Close)
	token, err := srv.Token("u1")
	require.NoError(t, err)
	return srv, ts, token
}

func request(t *testing.T, ts *httptest.Server, token, method, path string, body string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, ts.URL+path, strings.NewReader(body))
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestRequestsWithoutTokenAreRejected(t *testing.T) {
	_, ts, _ := newTestAPI(t)
	resp := request(t, ts, "", http.MethodGet, "/api/notifications", "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestListIsScopedToUser(t *testing.T) {
	srv, ts, token := newTestAPI(t)
	srv.Seed("u1", common.Notification{Title: "mine", Message: "m"})
	srv.Seed("someone-else", common.Notification{Title: "theirs", Message: "m"})

	resp := request(t, ts, token, http.MethodGet, "/api/notifications?page=1&limit=10", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Notifications []common.Notification `json:"notifications"`
		UnreadCount   int                   `json:"unreadCount"`
		Total         int                   `json:"total"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.Len(t, body.Notifications, 1)
	assert.Equal(t, "mine", body.Notifications[0].Title)
	assert.Equal(t, 1, body.UnreadCount)
	assert.Equal(t, 1, body.Total)
}

func TestMarkReadUnknownIDReturnsNotFound(t *testing.T) {
	_, ts, token := newTestAPI(t)
	resp := request(t, ts, token, http.MethodPut, "/api/notifications/nope/read", "")
	require.Equal(t, http.StatusNotFound, resp.StatusCode)

	var body struct {
		Message string `json:"message"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "notification not found", body.Message)
}

func TestFilteredByReadState(t *testing.T) {
	srv, ts, token := newTestAPI(t)
	srv.Seed("u1", common.Notification{Title: "unread", Message: "m"})
	srv.Seed("u1", common.Notification{Title: "read", Message: "m", Read: true})

	resp := request(t, ts, token, http.MethodGet, "/api/notifications/filtered?read=false", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Notifications []common.Notification `json:"notifications"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.Len(t, body.Notifications, 1)
	assert.Equal(t, "unread", body.Notifications[0].Title)
}

func TestPreferencesRoundTripAndReset(t *testing.T) {
	_, ts, token := newTestAPI(t)

	resp := request(t, ts, token, http.MethodPut, "/api/notifications/preferences/type",
		`{"type":"order_update","channel":"inApp","enabled":false}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Preferences common.Preferences `json:"preferences"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	enabled, ok := body.Preferences.InApp.Types[common.OrderUpdateType]
	require.True(t, ok)
	assert.False(t, enabled)

	resp = request(t, ts, token, http.MethodPost, "/api/notifications/preferences/reset", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body.Preferences = common.Preferences{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Empty(t, body.Preferences.InApp.Types)
	assert.True(t, body.Preferences.InApp.Enabled)
}

func TestWebsocketIntentMarksRead(t *testing.T) {
	srv, ts, token := newTestAPI(t)
	id := srv.Seed("u1", common.Notification{Title: "a", Message: "m"})

	wsAddr := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws?token=" + token
	conn, resp, err := websocket.DefaultDialer.Dial(wsAddr, nil)
	require.NoError(t, err)
	if resp != nil {
		resp.Body.Close()
	}
	defer conn.Close()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))

	var f frame
	require.NoError(t, conn.ReadJSON(&f))
	require.Equal(t, eventConnected, f.Event)

	payload, err := json.Marshal(map[string]string{"id": id})
	require.NoError(t, err)
	require.NoError(t, conn.WriteJSON(frame{Event: intentMarkRead, Data: payload}))

	require.NoError(t, conn.ReadJSON(&f))
	assert.Equal(t, eventRead, f.Event)
	var n common.Notification
	require.NoError(t, json.Unmarshal(f.Data, &n))
	assert.True(t, n.Read)
	require.NotNil(t, n.ReadAt)
}

func TestStatsCountsByCategory(t *testing.T) {
	srv, ts, token := newTestAPI(t)
	srv.Seed("u1", common.Notification{Title: "a", Message: "m", Category: common.CategoryOrder})
	srv.Seed("u1", common.Notification{Title: "b", Message: "m", Category: common.CategoryOrder, IsImportant: true})
	srv.Seed("u1", common.Notification{Title: "c", Message: "m", Category: common.CategoryEvent, Read: true})

	resp := request(t, ts, token, http.MethodGet, "/api/notifications/stats", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var stats common.Stats
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&stats))
	assert.Equal(t, 3, stats.Total)
	assert.Equal(t, 2, stats.Unread)
	assert.Equal(t, 1, stats.Important)
	assert.Equal(t, 2, stats.ByCategory[common.CategoryOrder])
}
