// Package devserver is an in-memory implementation of the notification API
// used by cmd/notifyd and the integration tests. Nothing is persisted; the
// persistence engine behind the real API is out of scope here.
package devserver

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"campusnotify/internal/common"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
)

type ctxKey string

const userKey ctxKey = "user_id"

type claims struct {
	UserID string `json:"user_id"`
	jwt.RegisteredClaims
}

type userState struct {
	notifications []common.Notification // newest first
	preferences   common.Preferences
}

type Server struct {
	secret []byte
	hub    *hub

	mu    sync.Mutex
	users map[string]*userState
}

func NewServer(secret string) *Server {
	s := &Server{
		secret: []byte(secret),
		users:  map[string]*userState{},
	}
	s.hub = newHub(s)
	return s
}

// Token signs a dev credential for the given user.
func (s *Server) Token(userID string) (string, error) {
	c := &claims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(24 * time.Hour)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			Issuer:    "campusnotify-dev",
			Subject:   "user-auth",
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(s.secret)
}

func (s *Server) parseToken(tok string) (string, error) {
	parsed, err := jwt.ParseWithClaims(tok, &claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return s.secret, nil
	})
	if err != nil {
		return "", err
	}
	if c, ok := parsed.Claims.(*claims); ok && parsed.Valid && c.UserID != "" {
		return c.UserID, nil
	}
	return "", errors.New("invalid token")
}

// Router builds the full API surface.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/ws", s.handleWS)

	api := r.PathPrefix("/api/notifications").Subrouter()
	api.Use(s.auth)
	api.HandleFunc("", s.handleList).Methods(http.MethodGet)
	api.HandleFunc("/filtered", s.handleFiltered).Methods(http.MethodGet)
	api.HandleFunc("/search", s.handleSearch).Methods(http.MethodGet)
	api.HandleFunc("/stats", s.handleStats).Methods(http.MethodGet)
	api.HandleFunc("/important", s.handleImportant).Methods(http.MethodGet)
	api.HandleFunc("/unread-count", s.handleUnreadCount).Methods(http.MethodGet)
	api.HandleFunc("/category/{category}", s.handleCategory).Methods(http.MethodGet)
	api.HandleFunc("/mark-all-read", s.handleMarkAllRead).Methods(http.MethodPut)
	api.HandleFunc("/preferences", s.handleGetPreferences).Methods(http.MethodGet)
	api.HandleFunc("/preferences", s.handlePutPreferences).Methods(http.MethodPut)
	api.HandleFunc("/preferences/type", s.handlePutTypePreference).Methods(http.MethodPut)
	api.HandleFunc("/preferences/frequency", s.handlePutFrequency).Methods(http.MethodPut)
	api.HandleFunc("/preferences/quiet-hours", s.handlePutQuietHours).Methods(http.MethodPut)
	api.HandleFunc("/preferences/reset", s.handleResetPreferences).Methods(http.MethodPost)
	api.HandleFunc("/{id}/read", s.handleMarkRead).Methods(http.MethodPut)
	api.HandleFunc("/{id}/important", s.handleMarkImportant).Methods(http.MethodPut)
	api.HandleFunc("/{id}", s.handleDelete).Methods(http.MethodDelete)
	return r
}

func (s *Server) auth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tok := bearerToken(r)
		if tok == "" {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "missing token"})
			return
		}
		userID, err := s.parseToken(tok)
		if err != nil {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "invalid token"})
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), userKey, userID)))
	})
}

func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if strings.HasPrefix(h, "Bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return r.URL.Query().Get("token")
}

func requestUser(r *http.Request) string {
	userID, _ := r.Context().Value(userKey).(string)
	return userID
}

// Seed inserts a notification for a user without broadcasting. Returns the id.
func (s *Server) Seed(userID string, n common.Notification) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.insertLocked(userID, n)
}

// Push inserts a notification and broadcasts it on the user's socket.
func (s *Server) Push(userID string, n common.Notification) string {
	s.mu.Lock()
	id := s.insertLocked(userID, n)
	stored := s.findLocked(userID, id)
	var payload common.Notification
	if stored != nil {
		payload = *stored
	}
	s.mu.Unlock()
	s.hub.broadcast(userID, eventNew, payload)
	return id
}

func (s *Server) insertLocked(userID string, n common.Notification) string {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now()
	}
	if n.Priority == "" {
		n.Priority = common.PriorityMedium
	}
	u := s.userLocked(userID)
	u.notifications = append([]common.Notification{n}, u.notifications...)
	return n.ID
}

func (s *Server) userLocked(userID string) *userState {
	u, ok := s.users[userID]
	if !ok {
		u = &userState{preferences: common.DefaultPreferences()}
		s.users[userID] = u
	}
	return u
}

func (s *Server) findLocked(userID, id string) *common.Notification {
	u := s.userLocked(userID)
	for i := range u.notifications {
		if u.notifications[i].ID == id {
			return &u.notifications[i]
		}
	}
	return nil
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	userID := requestUser(r)
	page := queryInt(r, "page", 1)
	limit := queryInt(r, "limit", 20)

	s.mu.Lock()
	u := s.userLocked(userID)
	total := len(u.notifications)
	unread := 0
	for _, n := range u.notifications {
		if !n.Read {
			unread++
		}
	}
	start := (page - 1) * limit
	if start > total {
		start = total
	}
	end := start + limit
	if end > total {
		end = total
	}
	pageItems := make([]common.Notification, end-start)
	copy(pageItems, u.notifications[start:end])
	s.mu.Unlock()

	totalPages := (total + limit - 1) / limit
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"notifications": pageItems,
		"unreadCount":   unread,
		"total":         total,
		"page":          page,
		"totalPages":    totalPages,
	})
}

func (s *Server) handleFiltered(w http.ResponseWriter, r *http.Request) {
	userID := requestUser(r)
	q := r.URL.Query()

	s.mu.Lock()
	u := s.userLocked(userID)
	out := make([]common.Notification, 0, len(u.notifications))
	for _, n := range u.notifications {
		if v := q.Get("read"); v != "" {
			want, err := strconv.ParseBool(v)
			if err != nil || n.Read != want {
				continue
			}
		}
		if v := q.Get("category"); v != "" && string(n.Category) != v {
			continue
		}
		if v := q.Get("priority"); v != "" && string(n.Priority) != v {
			continue
		}
		out = append(out, n)
	}
	s.mu.Unlock()

	if q.Get("sort") == "oldest" {
		sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	}
	out = paginate(out, queryInt(r, "page", 1), queryInt(r, "limit", len(out)))
	writeJSON(w, http.StatusOK, map[string]interface{}{"notifications": out})
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	userID := requestUser(r)
	query := strings.ToLower(r.URL.Query().Get("q"))

	s.mu.Lock()
	u := s.userLocked(userID)
	out := make([]common.Notification, 0)
	for _, n := range u.notifications {
		if strings.Contains(strings.ToLower(n.Title), query) ||
			strings.Contains(strings.ToLower(n.Message), query) {
			out = append(out, n)
		}
	}
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]interface{}{"notifications": out})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	userID := requestUser(r)

	s.mu.Lock()
	u := s.userLocked(userID)
	stats := common.Stats{
		Total:      len(u.notifications),
		ByCategory: map[common.Category]int{},
	}
	for _, n := range u.notifications {
		if !n.Read {
			stats.Unread++
		}
		if n.IsImportant {
			stats.Important++
		}
		stats.ByCategory[n.Category]++
	}
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleImportant(w http.ResponseWriter, r *http.Request) {
	userID := requestUser(r)

	s.mu.Lock()
	u := s.userLocked(userID)
	out := make([]common.Notification, 0)
	for _, n := range u.notifications {
		if n.IsImportant {
			out = append(out, n)
		}
	}
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]interface{}{"notifications": out})
}

func (s *Server) handleUnreadCount(w http.ResponseWriter, r *http.Request) {
	userID := requestUser(r)

	s.mu.Lock()
	u := s.userLocked(userID)
	count := 0
	for _, n := range u.notifications {
		if !n.Read {
			count++
		}
	}
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]int{"count": count})
}

func (s *Server) handleCategory(w http.ResponseWriter, r *http.Request) {
	userID := requestUser(r)
	category := mux.Vars(r)["category"]

	s.mu.Lock()
	u := s.userLocked(userID)
	out := make([]common.Notification, 0)
	for _, n := range u.notifications {
		if string(n.Category) == category {
			out = append(out, n)
		}
	}
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]interface{}{"notifications": out})
}

func (s *Server) handleMarkRead(w http.ResponseWriter, r *http.Request) {
	userID := requestUser(r)
	id := mux.Vars(r)["id"]

	s.mu.Lock()
	n := s.findLocked(userID, id)
	if n == nil {
		s.mu.Unlock()
		writeJSON(w, http.StatusNotFound, map[string]string{"message": "notification not found"})
		return
	}
	if !n.Read {
		now := time.Now()
		n.Read = true
		n.ReadAt = &now
	}
	updated := *n
	s.mu.Unlock()

	s.hub.broadcast(userID, eventRead, updated)
	writeJSON(w, http.StatusOK, map[string]string{"message": "marked as read"})
}

func (s *Server) handleMarkImportant(w http.ResponseWriter, r *http.Request) {
	userID := requestUser(r)
	id := mux.Vars(r)["id"]

	var body struct {
		IsImportant bool `json:"isImportant"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "invalid request body"})
		return
	}

	s.mu.Lock()
	n := s.findLocked(userID, id)
	if n == nil {
		s.mu.Unlock()
		writeJSON(w, http.StatusNotFound, map[string]string{"message": "notification not found"})
		return
	}
	n.IsImportant = body.IsImportant
	updated := *n
	s.mu.Unlock()

	s.hub.broadcast(userID, eventImportant, updated)
	writeJSON(w, http.StatusOK, map[string]string{"message": "importance updated"})
}

func (s *Server) handleMarkAllRead(w http.ResponseWriter, r *http.Request) {
	userID := requestUser(r)

	s.mu.Lock()
	u := s.userLocked(userID)
	now := time.Now()
	for i := range u.notifications {
		if !u.notifications[i].Read {
			u.notifications[i].Read = true
			u.notifications[i].ReadAt = &now
		}
	}
	s.mu.Unlock()

	s.hub.broadcast(userID, eventUpdated, nil)
	writeJSON(w, http.StatusOK, map[string]string{"message": "all notifications marked as read"})
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	userID := requestUser(r)
	id := mux.Vars(r)["id"]

	s.mu.Lock()
	u := s.userLocked(userID)
	found := false
	for i := range u.notifications {
		if u.notifications[i].ID == id {
			u.notifications = append(u.notifications[:i], u.notifications[i+1:]...)
			found = true
			break
		}
	}
	s.mu.Unlock()

	if !found {
		writeJSON(w, http.StatusNotFound, map[string]string{"message": "notification not found"})
		return
	}
	s.hub.broadcast(userID, eventDeleted, map[string]string{"id": id})
	writeJSON(w, http.StatusOK, map[string]string{"message": "notification deleted"})
}

func (s *Server) handleGetPreferences(w http.ResponseWriter, r *http.Request) {
	userID := requestUser(r)
	s.mu.Lock()
	prefs := s.userLocked(userID).preferences
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]interface{}{"preferences": prefs})
}

func (s *Server) handlePutPreferences(w http.ResponseWriter, r *http.Request) {
	userID := requestUser(r)
	var prefs common.Preferences
	if err := json.NewDecoder(r.Body).Decode(&prefs); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "invalid request body"})
		return
	}
	s.mu.Lock()
	s.userLocked(userID).preferences = prefs
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]interface{}{"preferences": prefs})
}

func (s *Server) handlePutTypePreference(w http.ResponseWriter, r *http.Request) {
	userID := requestUser(r)
	var body struct {
		Type    common.NotificationType `json:"type"`
		Channel string                  `json:"channel"`
		Enabled bool                    `json:"enabled"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Type == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "type and channel are required"})
		return
	}

	s.mu.Lock()
	u := s.userLocked(userID)
	if body.Channel == "" || body.Channel == "inApp" {
		if u.preferences.InApp.Types == nil {
			u.preferences.InApp.Types = map[common.NotificationType]bool{}
		}
		u.preferences.InApp.Types[body.Type] = body.Enabled
	}
	prefs := u.preferences
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]interface{}{"preferences": prefs})
}

func (s *Server) handlePutFrequency(w http.ResponseWriter, r *http.Request) {
	userID := requestUser(r)
	var freq common.Frequency
	if err := json.NewDecoder(r.Body).Decode(&freq); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "invalid request body"})
		return
	}
	s.mu.Lock()
	u := s.userLocked(userID)
	u.preferences.Frequency = freq
	prefs := u.preferences
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]interface{}{"preferences": prefs})
}

func (s *Server) handlePutQuietHours(w http.ResponseWriter, r *http.Request) {
	userID := requestUser(r)
	var q common.QuietHours
	if err := json.NewDecoder(r.Body).Decode(&q); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "invalid request body"})
		return
	}
	s.mu.Lock()
	u := s.userLocked(userID)
	u.preferences.QuietHours = q
	prefs := u.preferences
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]interface{}{"preferences": prefs})
}

func (s *Server) handleResetPreferences(w http.ResponseWriter, r *http.Request) {
	userID := requestUser(r)
	prefs := common.DefaultPreferences()
	s.mu.Lock()
	s.userLocked(userID).preferences = prefs
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]interface{}{"preferences": prefs})
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	tok := bearerToken(r)
	userID, err := s.parseToken(tok)
	if err != nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "invalid token"})
		return
	}
	s.hub.serve(userID, w, r)
}

func paginate(list []common.Notification, page, limit int) []common.Notification {
	if limit <= 0 {
		return list
	}
	start := (page - 1) * limit
	if start > len(list) {
		start = len(list)
	}
	end := start + limit
	if end > len(list) {
		end = len(list)
	}
	return list[start:end]
}

func queryInt(r *http.Request, key string, fallback int) int {
	if v := r.URL.Query().Get(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return fallback
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
